package history

import (
	"io"
	"log/slog"
	"time"

	"github.com/onnwee/zonefeed/internal/feed"
	"github.com/onnwee/zonefeed/internal/geo"
	"github.com/onnwee/zonefeed/internal/ingest"
	"github.com/onnwee/zonefeed/internal/zone"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func emptyUpdate() ingest.Update {
	return ingest.Update{BatchID: "empty"}
}

func resolved(id, name string, lon, lat float64, res zone.Resolution) ingest.Resolved {
	return ingest.Resolved{
		Event: feed.Event{
			ID:       id,
			Point:    geo.Point{Lon: lon, Lat: lat},
			Name:     name,
			Created:  time.UnixMilli(1700000000000),
			Reported: time.UnixMilli(1700000060000),
		},
		Resolution: res,
	}
}
