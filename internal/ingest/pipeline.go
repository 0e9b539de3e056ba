// Package ingest turns decoded feed batches into zone-labelled rows and
// merges them into the persisted windows.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/onnwee/zonefeed/internal/feed"
	"github.com/onnwee/zonefeed/internal/store"
	"github.com/onnwee/zonefeed/internal/tracing"
	"github.com/onnwee/zonefeed/internal/zone"
)

// Store names used in logs and metrics.
const (
	DetailedStore = "detailed"
	SimpleStore   = "simple"
)

// Resolved is one candidate event with its zone and rendered outputs.
type Resolved struct {
	Event      feed.Event
	Resolution zone.Resolution
	Row        string // detailed store row
	Line       string // simple store line
}

// Batch is the in-memory result of ingesting one payload.
type Batch struct {
	ID        string
	Received  int
	Matched   int
	Malformed int
	Resolved  []Resolved
}

// DetailedRows returns the detailed rows in batch order.
func (b Batch) DetailedRows() []string {
	rows := make([]string, len(b.Resolved))
	for i, r := range b.Resolved {
		rows[i] = r.Row
	}
	return rows
}

// SimpleLines returns the simple lines in batch order.
func (b Batch) SimpleLines() []string {
	lines := make([]string, len(b.Resolved))
	for i, r := range b.Resolved {
		lines[i] = r.Line
	}
	return lines
}

// Update describes a committed batch. Sinks receive it after both windows
// are persisted.
type Update struct {
	BatchID  string
	Resolved []Resolved
	Detailed []string // full detailed window after the merge
	Simple   []string // full simple window after the merge
}

// Sink receives committed updates. Sink failures never fail a batch.
type Sink interface {
	Name() string
	Publish(ctx context.Context, u Update) error
}

// Options configures a Pipeline.
type Options struct {
	// Annotate appends the approximate distance to nearest-zone labels.
	Annotate bool
	// Location is used to render clock times. Nil means time.Local.
	Location *time.Location
	// Workers bounds parallel zone resolution. Zero means GOMAXPROCS.
	Workers int
	Sinks   []Sink
	Metrics *feed.Metrics
	Logger  *slog.Logger
}

// Pipeline filters, resolves, merges and persists feed batches. Zone
// resolution runs in parallel; merges are serialized by the stores.
type Pipeline struct {
	zones    *zone.Index
	filter   *feed.RecordFilter
	mapper   *feed.Mapper
	detailed *store.Store
	simple   *store.Store

	annotate bool
	loc      *time.Location
	workers  int
	sinks    []Sink
	metrics  *feed.Metrics
	logger   *slog.Logger
}

// New creates a Pipeline.
func New(zones *zone.Index, filter *feed.RecordFilter, detailed, simple *store.Store, opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Pipeline{
		zones:    zones,
		filter:   filter,
		mapper:   feed.NewMapper(),
		detailed: detailed,
		simple:   simple,
		annotate: opts.Annotate,
		loc:      loc,
		workers:  workers,
		sinks:    opts.Sinks,
		metrics:  opts.Metrics,
		logger:   logger,
	}
}

// HandleMessage decodes a payload, ingests it and commits the result.
// Only persist failures are returned; malformed payloads and records are
// logged and skipped.
func (p *Pipeline) HandleMessage(ctx context.Context, payload []byte) (err error) {
	start := time.Now()
	batchID := uuid.NewString()

	ctx, endSpan := tracing.StartSpan(ctx, "ingest.batch")
	defer func() { endSpan(err) }()
	tracing.SetAttributes(ctx, attribute.String("batch.id", batchID))

	if p.metrics != nil {
		p.metrics.IncBatchesReceived()
		defer func() { p.metrics.ObserveIngestLatency(time.Since(start).Seconds()) }()
	}

	records, skipped, err := feed.DecodeBatch(payload)
	if err != nil {
		p.logger.Warn("dropping undecodable payload",
			slog.String("batch_id", batchID),
			slog.Int("bytes", len(payload)),
			slog.String("error", err.Error()))
		return nil
	}
	if skipped > 0 {
		p.logger.Warn("skipped undecodable records",
			slog.String("batch_id", batchID),
			slog.Int("count", skipped))
		if p.metrics != nil {
			p.metrics.AddRecordsMalformed(skipped)
		}
	}

	batch := p.ingest(ctx, batchID, records)
	if len(batch.Resolved) == 0 {
		p.logger.Debug("batch has no candidates",
			slog.String("batch_id", batchID),
			slog.Int("records", batch.Received))
		return nil
	}
	return p.Commit(ctx, batch)
}

// Ingest filters batch, resolves the zone of every candidate and renders
// the detailed rows and simple lines. Nothing is persisted.
func (p *Pipeline) Ingest(ctx context.Context, batch []feed.Record) Batch {
	return p.ingest(ctx, uuid.NewString(), batch)
}

func (p *Pipeline) ingest(ctx context.Context, batchID string, records []feed.Record) Batch {
	candidates := p.filter.Filter(records)
	out := Batch{
		ID:       batchID,
		Received: len(records),
		Matched:  len(candidates),
	}

	_, endSpan := tracing.StartSpan(ctx, "ingest.resolve")
	defer endSpan(nil)

	results := make([]*Resolved, len(candidates))
	var g errgroup.Group
	g.SetLimit(p.workers)
	for i, rec := range candidates {
		g.Go(func() error {
			ev, err := p.mapper.Map(rec)
			if err != nil {
				p.logger.Warn("skipping malformed record",
					slog.String("batch_id", batchID),
					slog.String("error", err.Error()))
				return nil
			}
			r := p.resolve(ev)
			results[i] = &r
			return nil
		})
	}
	_ = g.Wait()

	out.Resolved = make([]Resolved, 0, len(results))
	for _, r := range results {
		if r == nil {
			out.Malformed++
			continue
		}
		out.Resolved = append(out.Resolved, *r)
		if p.metrics != nil {
			kind := feed.ResolutionNearest
			if r.Resolution.Contained {
				kind = feed.ResolutionContained
			}
			p.metrics.ObserveResolution(kind)
		}
	}
	if out.Malformed > 0 {
		tracing.AddEvent(ctx, "batch.malformed", attribute.Int("count", out.Malformed))
		if p.metrics != nil {
			p.metrics.AddRecordsMalformed(out.Malformed)
		}
	}
	return out
}

// resolve labels ev and renders its outputs.
func (p *Pipeline) resolve(ev feed.Event) Resolved {
	res := p.zones.ResolveDetail(ev.Point, p.annotate)
	return Resolved{
		Event:      ev,
		Resolution: res,
		Row:        DetailedRow(ev, res.Label, p.loc),
		Line:       SimpleLine(ev, res.Label),
	}
}

// Commit merges batch into both windows and persists them, then publishes
// the update to every sink. A persist failure aborts the commit and is
// returned wrapping store.ErrPersist.
func (p *Pipeline) Commit(ctx context.Context, batch Batch) (err error) {
	ctx, endSpan := tracing.StartSpan(ctx, "store.merge")
	tracing.SetAttributes(ctx,
		attribute.String("batch.id", batch.ID),
		attribute.Int("batch.rows", len(batch.Resolved)))
	defer func() { endSpan(err) }()

	detailed, err := p.mergeInto(p.detailed, batch.DetailedRows())
	if err != nil {
		return err
	}
	simple, err := p.mergeInto(p.simple, batch.SimpleLines())
	if err != nil {
		return err
	}

	p.logger.Info("batch committed",
		slog.String("batch_id", batch.ID),
		slog.Int("records", batch.Received),
		slog.Int("candidates", batch.Matched),
		slog.Int("resolved", len(batch.Resolved)),
		slog.Int("malformed", batch.Malformed))

	p.publish(ctx, Update{
		BatchID:  batch.ID,
		Resolved: batch.Resolved,
		Detailed: detailed,
		Simple:   simple,
	})
	return nil
}

func (p *Pipeline) mergeInto(s *store.Store, rows []string) ([]string, error) {
	merged, err := s.MergeAndPersist(rows)
	if err != nil {
		if p.metrics != nil && errors.Is(err, store.ErrPersist) {
			p.metrics.IncPersistFailures()
		}
		return nil, fmt.Errorf("%s store: %w", s.Name(), err)
	}
	if p.metrics != nil {
		p.metrics.SetStoreRows(s.Name(), len(merged))
	}
	return merged, nil
}

// publish delivers u to every sink, logging and counting failures.
func (p *Pipeline) publish(ctx context.Context, u Update) {
	for _, s := range p.sinks {
		if err := s.Publish(ctx, u); err != nil {
			p.logger.Warn("sink publish failed",
				slog.String("sink", s.Name()),
				slog.String("batch_id", u.BatchID),
				slog.String("error", err.Error()))
			if p.metrics != nil {
				p.metrics.IncSinkFailures(s.Name())
			}
		}
	}
}

// lineBreaks flattens a field onto one line so a rendered row never spans
// more than one line of a store file.
var lineBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// DetailedRow renders id,latitude,longitude,name,created,observed,reported,label.
func DetailedRow(ev feed.Event, label string, loc *time.Location) string {
	return strings.Join([]string{
		lineBreaks.Replace(ev.ID),
		lineBreaks.Replace(ev.Latitude),
		lineBreaks.Replace(ev.Longitude),
		lineBreaks.Replace(ev.Name),
		feed.FormatClock(ev.Created, loc),
		feed.FormatClock(ev.Observed, loc),
		feed.FormatClock(ev.Reported, loc),
		lineBreaks.Replace(label),
	}, ",")
}

// SimpleLine renders "<label> - <first name token>". A line break in the
// name ends the first token like a space does.
func SimpleLine(ev feed.Event, label string) string {
	ev.Name = lineBreaks.Replace(ev.Name)
	return lineBreaks.Replace(label) + " - " + ev.FirstNameToken()
}
