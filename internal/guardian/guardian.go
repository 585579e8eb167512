// Package guardian reclaims expired blobs.
//
// A Guardian does not run in the background. Request handlers call Check
// before touching the store, and Check sweeps the whole storage root when
// the configured interval has elapsed since the last completed sweep.
package guardian

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"floppy/internal/blobstore"
	"floppy/internal/observability"
	"floppy/internal/retention"
)

const (
	// DefaultInterval is the interval used by CheckHourly.
	DefaultInterval = time.Hour
	// DefaultWorkers bounds how many entries a sweep evaluates at once.
	DefaultWorkers = 4
)

// Store is the part of the blob store a sweep needs.
type Store interface {
	Keys(ctx context.Context) ([]string, error)
	Stat(ctx context.Context, key string) (blobstore.Stat, error)
	Remove(ctx context.Context, key string) (bool, error)
	PruneStaging(ctx context.Context, maxAge time.Duration) (int, error)
}

// SweepReport summarizes one pass over the storage root.
type SweepReport struct {
	Scanned int `json:"scanned" yaml:"scanned"`
	Evicted int `json:"evicted" yaml:"evicted"`
	Failed  int `json:"failed" yaml:"failed"`
	// StagingPruned counts abandoned staging files removed by the sweep.
	StagingPruned int      `json:"staging_pruned" yaml:"staging_pruned"`
	Expired       []string `json:"expired,omitempty" yaml:"expired,omitempty"`
}

// Guardian holds the time of the last sweep. Build one per process and share
// it between all request handlers.
type Guardian struct {
	store   Store
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
	workers int
	staging time.Duration

	mu        sync.Mutex
	lastCheck time.Time
	flight    singleflight.Group
}

// Option configures a Guardian.
type Option func(*Guardian)

func WithClock(c clockwork.Clock) Option { return func(g *Guardian) { g.clock = c } }

func WithLogger(l *slog.Logger) Option { return func(g *Guardian) { g.logger = l } }

func WithMetrics(m *observability.Metrics) Option { return func(g *Guardian) { g.metrics = m } }

// WithWorkers bounds sweep concurrency. Values below one mean one.
func WithWorkers(n int) Option { return func(g *Guardian) { g.workers = n } }

// WithStagingMaxAge sets how old a staging file must be before a sweep
// treats it as abandoned. Non-positive values mean DefaultInterval.
func WithStagingMaxAge(d time.Duration) Option { return func(g *Guardian) { g.staging = d } }

// New returns a Guardian that has never swept, so its first Check sweeps.
func New(store Store, opts ...Option) *Guardian {
	g := &Guardian{
		store:   store,
		clock:   clockwork.NewRealClock(),
		logger:  slog.Default(),
		workers: DefaultWorkers,
		staging: DefaultInterval,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.workers < 1 {
		g.workers = 1
	}
	if g.staging <= 0 {
		g.staging = DefaultInterval
	}
	return g
}

// LastCheck returns when the last completed sweep started. It is zero until
// the first sweep.
func (g *Guardian) LastCheck() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastCheck
}

// CheckHourly is Check with a one hour interval.
func (g *Guardian) CheckHourly(ctx context.Context) error {
	return g.Check(ctx, DefaultInterval)
}

// Check sweeps if at least interval has passed since the last sweep.
// Concurrent callers that find a sweep due share a single sweep. Errors are
// only returned when the storage root could not be listed; callers are
// expected to log them and carry on.
func (g *Guardian) Check(ctx context.Context, interval time.Duration) error {
	if !g.due(interval) {
		return nil
	}
	_, err, _ := g.flight.Do("sweep", func() (any, error) {
		// A sweep may have finished between the due check and here.
		if !g.due(interval) {
			return nil, nil
		}
		_, err := g.Sweep(context.WithoutCancel(ctx))
		return nil, err
	})
	return err
}

func (g *Guardian) due(interval time.Duration) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastCheck.IsZero() || g.clock.Since(g.lastCheck) >= interval
}

// Sweep evaluates every stored blob and deletes the expired ones,
// regardless of when the last sweep ran.
func (g *Guardian) Sweep(ctx context.Context) (SweepReport, error) {
	return g.sweep(ctx, false)
}

// DryRun reports which blobs a sweep would delete without deleting them.
// It does not count as a sweep for throttling.
func (g *Guardian) DryRun(ctx context.Context) (SweepReport, error) {
	return g.sweep(ctx, true)
}

func (g *Guardian) sweep(ctx context.Context, dryRun bool) (_ SweepReport, err error) {
	op, ctx := observability.StartOperation(ctx, g.metrics, "guardian.sweep")
	defer func() { op.End(err) }()

	started := g.clock.Now()
	g.logger.InfoContext(ctx, "sweep started", "dry_run", dryRun)

	keys, err := g.store.Keys(ctx)
	if err != nil {
		g.countSweep("error")
		return SweepReport{}, err
	}

	var (
		evicted atomic.Int64
		failed  atomic.Int64
		mu      sync.Mutex
		expired []string
	)
	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(g.workers)
	for _, key := range keys {
		grp.Go(func() error {
			gone, err := g.evaluate(gctx, key, started, dryRun)
			if err != nil {
				failed.Add(1)
				g.logger.WarnContext(gctx, "sweep entry failed", "key", key, "error", err)
				return nil
			}
			if gone {
				evicted.Add(1)
				mu.Lock()
				expired = append(expired, key)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = grp.Wait()

	report := SweepReport{
		Scanned: len(keys),
		Failed:  int(failed.Load()),
		Expired: expired,
	}
	if !dryRun {
		pruned, err := g.store.PruneStaging(ctx, g.staging)
		if err != nil {
			g.logger.WarnContext(ctx, "pruning staging files failed", "error", err)
		}
		report.StagingPruned = pruned
		report.Evicted = int(evicted.Load())
		g.mu.Lock()
		g.lastCheck = started
		g.mu.Unlock()
		if g.metrics != nil {
			g.metrics.Evictions.Add(float64(report.Evicted))
			g.metrics.SweepEntryErrors.Add(float64(report.Failed))
		}
		g.countSweep("ok")
	}

	g.logger.InfoContext(ctx, "sweep finished",
		"dry_run", dryRun,
		"scanned", report.Scanned,
		"evicted", report.Evicted,
		"expired", len(report.Expired),
		"failed", report.Failed,
		"duration", g.clock.Since(started),
	)
	return report, nil
}

// evaluate deletes key when its retention has run out. It reports whether
// the key was (or, in a dry run, would be) removed.
func (g *Guardian) evaluate(ctx context.Context, key string, now time.Time, dryRun bool) (bool, error) {
	st, err := g.store.Stat(ctx, key)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			// Removed concurrently or never completed.
			return false, nil
		}
		return false, err
	}
	if !retention.Expired(st.SizeBytes, st.CreatedAt, now) {
		return false, nil
	}
	if dryRun {
		return true, nil
	}
	removed, err := g.store.Remove(ctx, key)
	if err != nil {
		return false, err
	}
	if !removed {
		// Another sweeper got there first.
		return false, nil
	}
	g.logger.DebugContext(ctx, "evicted expired blob", "key", key, "size", st.SizeBytes, "created_at", st.CreatedAt)
	return true, nil
}

func (g *Guardian) countSweep(result string) {
	if g.metrics != nil {
		g.metrics.Sweeps.WithLabelValues(result).Inc()
	}
}
