package metrics

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Source provides a stats snapshot.
type Source interface {
	Snapshot() any
}

// SourceFunc is a function adapter for Source.
type SourceFunc func() any

func (f SourceFunc) Snapshot() any {
	return f()
}

// Config holds reporter configuration.
type Config struct {
	Interval time.Duration // Report interval, <= 0 disables the loop (default: 1m)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval: time.Minute,
	}
}

// Reporter logs stats snapshots from registered sources.
type Reporter struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.RWMutex
	sources map[string]Source

	reports atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Reporter.
func New(cfg Config, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{
		cfg:     cfg,
		logger:  logger,
		sources: make(map[string]Source),
	}
}

// Add registers a source under name, replacing any previous one.
func (r *Reporter) Add(name string, src Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[name] = src
}

// Collect snapshots every source.
func (r *Reporter) Collect() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]any, len(r.sources))
	for name, src := range r.sources {
		out[name] = src.Snapshot()
	}
	return out
}

// Reports returns the number of stats lines logged so far.
func (r *Reporter) Reports() int64 {
	return r.reports.Load()
}

// Start begins the report loop.
func (r *Reporter) Start(ctx context.Context) error {
	if r.cfg.Interval <= 0 {
		r.logger.Info("stats reporter disabled")
		return nil
	}

	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.run()

	r.logger.Info("stats reporter started", "interval", r.cfg.Interval)
	return nil
}

// Stop shuts down the report loop and logs a final snapshot.
func (r *Reporter) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.report()
		r.logger.Info("stats reporter stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Reporter) run() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.report()
		}
	}
}

// report logs one line with a group per source, in name order.
func (r *Reporter) report() {
	snapshots := r.Collect()

	names := make([]string, 0, len(snapshots))
	for name := range snapshots {
		names = append(names, name)
	}
	sort.Strings(names)

	args := make([]any, 0, len(names))
	for _, name := range names {
		args = append(args, slog.Any(name, snapshots[name]))
	}

	r.reports.Add(1)
	r.logger.Info("stats", args...)
}
