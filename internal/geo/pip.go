package geo

// InRing reports whether pt lies inside the closed ring using the even-odd
// (crossing number) rule. The ring is implicitly closed; the first vertex must
// not be repeated at the end. Rings with fewer than three vertices contain nothing.
//
// Points exactly on an edge may fall either way.
func InRing(pt Point, ring []Point) bool {
	n := len(ring)
	if n < 3 {
		return false
	}
	inside := false
	x, y := pt.Lon, pt.Lat
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[i].Lon, ring[i].Lat
		xj, yj := ring[j].Lon, ring[j].Lat
		// yi != yj is guaranteed whenever the first clause holds.
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}
