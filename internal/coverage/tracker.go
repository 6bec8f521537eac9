package coverage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"partrecon/internal/config"
	"partrecon/internal/logging"
	"partrecon/internal/reconcile"
)

// Open returns the store for a configured backend.
func Open(ctx context.Context, backend, path string) (Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("coverage history path is not configured")
	}
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", config.BackendTSV:
		return OpenTSV(path), nil
	case config.BackendSQLite:
		return OpenSQLite(ctx, path)
	default:
		return nil, fmt.Errorf("unknown coverage backend %q", backend)
	}
}

// Tracker appends snapshots and reads trends from a store.
type Tracker struct {
	store  Store
	now    func() time.Time
	logger *slog.Logger
}

// NewTracker wraps a store. A nil logger discards output.
func NewTracker(store Store, logger *slog.Logger) *Tracker {
	return &Tracker{
		store:  store,
		now:    time.Now,
		logger: logging.NewComponentLogger(logger, "coverage"),
	}
}

// Record appends one snapshot derived from report.
func (t *Tracker) Record(ctx context.Context, report *reconcile.Report) (Snapshot, error) {
	snap := FromReport(report, t.now())
	if err := t.store.Append(ctx, snap); err != nil {
		return Snapshot{}, err
	}
	t.logger.Info("coverage snapshot recorded",
		logging.String("run_id", snap.RunID),
		logging.Int("total", snap.Total),
		logging.Float64("coverage", snap.Coverage),
	)
	return snap, nil
}

// Window returns the last n snapshots, oldest first.
func (t *Tracker) Window(ctx context.Context, n int) ([]Snapshot, error) {
	return t.store.Window(ctx, n)
}

// Trend returns the deltas over the last n snapshots.
func (t *Tracker) Trend(ctx context.Context, n int) ([]Snapshot, Trend, bool, error) {
	rows, err := t.store.Window(ctx, n)
	if err != nil {
		return nil, Trend{}, false, err
	}
	trend, ok := ComputeTrend(rows)
	return rows, trend, ok, nil
}
