package zone

import (
	"fmt"
	"math"
	"strconv"

	"github.com/dhconnelly/rtreego"

	"github.com/onnwee/zonefeed/internal/geo"
)

// R-tree shape, matching the spatial indexes used elsewhere for zone lookups.
const (
	treeDimensions  = 2
	treeMinChildren = 25
	treeMaxChildren = 50

	// minExtent pads degenerate bounding boxes; rtreego rejects zero lengths.
	minExtent = 1e-9
)

// Index holds an immutable, ordered set of zones. It is safe for concurrent use.
type Index struct {
	zones []Zone
	tree  *rtreego.Rtree
}

// Nearest is the closest zone to a point that no zone contains.
type Nearest struct {
	Name       string
	DistanceKm float64 // rounded to two decimals
	raw        float64
}

// Resolution is the outcome of resolving a point.
type Resolution struct {
	Label     string
	Zone      string
	Contained bool
	// DistanceKm is zero when Contained is true.
	DistanceKm float64
}

// spatialZone adapts a zone's bounding box to rtreego.Spatial.
type spatialZone struct {
	order int
	rect  rtreego.Rect
}

func (s *spatialZone) Bounds() rtreego.Rect {
	return s.rect
}

// New builds an index from zones in the given order.
func New(zones []Zone) *Index {
	cp := make([]Zone, len(zones))
	copy(cp, zones)
	return newIndex(cp)
}

func newIndex(zones []Zone) *Index {
	tree := rtreego.NewTree(treeDimensions, treeMinChildren, treeMaxChildren)
	for i, z := range zones {
		minLon, minLat, maxLon, maxLat := z.bounds()
		rect, err := rtreego.NewRect(
			rtreego.Point{minLon, minLat},
			[]float64{max(maxLon-minLon, minExtent), max(maxLat-minLat, minExtent)},
		)
		if err != nil {
			// Only reachable with NaN corners; such a zone can never contain a point.
			continue
		}
		tree.Insert(&spatialZone{order: i, rect: rect})
	}
	return &Index{zones: zones, tree: tree}
}

// Len returns the number of zones.
func (idx *Index) Len() int {
	return len(idx.zones)
}

// Zones returns a copy of the zones in load order.
func (idx *Index) Zones() []Zone {
	out := make([]Zone, len(idx.zones))
	copy(out, idx.zones)
	return out
}

// Classify returns the first zone in load order that contains p.
func (idx *Index) Classify(p geo.Point) (string, bool) {
	if math.IsNaN(p.Lon) || math.IsNaN(p.Lat) {
		return "", false
	}
	query, err := rtreego.NewRect(rtreego.Point{p.Lon, p.Lat}, []float64{minExtent, minExtent})
	if err != nil {
		return "", false
	}

	first := -1
	for _, s := range idx.tree.SearchIntersect(query) {
		order := s.(*spatialZone).order
		if first != -1 && order > first {
			continue
		}
		if idx.zones[order].Contains(p) {
			first = order
		}
	}
	if first == -1 {
		return "", false
	}
	return idx.zones[first].Name, true
}

// NearestZone returns the zone whose closest corner is nearest to p. Ties go
// to the earlier zone. It reports false when the index is empty or p is NaN.
func (idx *Index) NearestZone(p geo.Point) (Nearest, bool) {
	best := -1
	bestDist := math.Inf(1)
	for i, z := range idx.zones {
		if d := z.CornerDistanceKm(p); d < bestDist {
			best, bestDist = i, d
		}
	}
	if best == -1 {
		return Nearest{}, false
	}
	return Nearest{
		Name:       idx.zones[best].Name,
		DistanceKm: roundKm(bestDist),
		raw:        bestDist,
	}, true
}

// Resolve returns the label for p: the containing zone's name, otherwise the
// nearest zone's name, suffixed with " (approx. <km>km)" when annotate is set.
func (idx *Index) Resolve(p geo.Point, annotate bool) string {
	return idx.ResolveDetail(p, annotate).Label
}

// ResolveDetail is Resolve with the intermediate result exposed.
func (idx *Index) ResolveDetail(p geo.Point, annotate bool) Resolution {
	if name, ok := idx.Classify(p); ok {
		return Resolution{Label: name, Zone: name, Contained: true}
	}
	n, ok := idx.NearestZone(p)
	if !ok {
		return Resolution{}
	}
	res := Resolution{Label: n.Name, Zone: n.Name, DistanceKm: n.DistanceKm}
	if annotate && n.raw > 0 {
		res.Label = AnnotateDistance(n.Name, n.DistanceKm)
	}
	return res
}

// AnnotateDistance renders a nearest-zone label with its distance.
// Trailing zeros are dropped: 12.30 renders as "12.3".
func AnnotateDistance(name string, km float64) string {
	return fmt.Sprintf("%s (approx. %skm)", name, strconv.FormatFloat(km, 'f', -1, 64))
}

func roundKm(km float64) float64 {
	return math.Round(km*100) / 100
}
