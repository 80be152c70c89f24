package watch

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/aliskhannn/image-compressor/internal/dedup"
	"github.com/aliskhannn/image-compressor/internal/model"
	"github.com/aliskhannn/image-compressor/internal/processor"
)

// compressor defines the interface for compressing one source file.
type compressor interface {
	Compress(ctx context.Context, path string) (model.Result, error)
}

// RouterOptions configures a Router.
type RouterOptions struct {
	SettleDelay time.Duration // Wait after detection before reading the file
	Coalesce    bool          // Drop events for a path that is already settling or compressing
	Suffix      string        // Artifact suffix used by the filter
}

// Router admits filesystem events for one watch root and dispatches at most one
// compression per qualifying path and change. Each dispatched path runs in its
// own goroutine, so distinct paths compress concurrently.
//
// A path moves idle -> settling -> dispatched -> idle. Once compressed it is kept
// in the root's processed set and never dispatched again by this process.
type Router struct {
	root       string
	filter     Filter
	processed  *dedup.Set
	compressor compressor
	opts       RouterOptions
	logger     zerolog.Logger

	mu       sync.Mutex
	inFlight map[string]int
	wg       sync.WaitGroup

	accepted  atomic.Int64
	rejected  atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
}

// NewRouter creates a Router for root with its own empty processed set.
func NewRouter(root string, c compressor, opts RouterOptions, logger zerolog.Logger) *Router {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	if opts.Suffix == "" {
		opts.Suffix = processor.DefaultSuffix
	}

	return &Router{
		root:       root,
		filter:     Filter{Suffix: opts.Suffix},
		processed:  dedup.New(),
		compressor: c,
		opts:       opts,
		logger:     logger.With().Str("component", "watch.router").Str("root", root).Logger(),
		inFlight:   make(map[string]int),
	}
}

// Root returns the absolute watch root.
func (r *Router) Root() string {
	return r.root
}

// Suffix returns the artifact suffix the router filters on.
func (r *Router) Suffix() string {
	return r.filter.Suffix
}

// Route evaluates ev and, if it qualifies, schedules a compression after the
// settle delay. It never blocks on the compression itself.
func (r *Router) Route(ctx context.Context, ev model.ChangeEvent) (Reason, bool) {
	ev.Path = filepath.Clean(ev.Path)

	reason, ok := r.admit(ev)
	if !ok {
		r.rejected.Add(1)
		r.logger.Debug().
			Str("path", ev.Path).
			Str("kind", string(ev.Kind)).
			Str("reason", string(reason)).
			Msg("event ignored")
		return reason, false
	}

	r.accepted.Add(1)
	r.logger.Info().
		Str("path", ev.Path).
		Str("kind", string(ev.Kind)).
		Dur("settle", r.opts.SettleDelay).
		Msg("new file detected")

	r.wg.Add(1)
	go r.dispatch(ctx, ev.Path)

	return ReasonNone, true
}

// admit runs the filter, then the processed and in-flight checks, and marks the
// path in flight when it is admitted.
func (r *Router) admit(ev model.ChangeEvent) (Reason, bool) {
	if reason, ok := r.filter.Check(ev); !ok {
		return reason, false
	}
	if r.processed.Has(ev.Path) {
		return ReasonProcessed, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.opts.Coalesce && r.inFlight[ev.Path] > 0 {
		return ReasonInFlight, false
	}
	r.inFlight[ev.Path]++

	return ReasonNone, true
}

func (r *Router) release(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.inFlight[path] <= 1 {
		delete(r.inFlight, path)
		return
	}
	r.inFlight[path]--
}

func (r *Router) dispatch(ctx context.Context, path string) {
	defer r.wg.Done()
	defer r.release(path)

	if r.opts.SettleDelay > 0 {
		timer := time.NewTimer(r.opts.SettleDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			r.logger.Info().Str("path", path).Msg("shutdown before dispatch, skipping")
			return
		case <-timer.C:
		}
	}

	res, err := r.compressor.Compress(ctx, path)
	if err != nil {
		r.failed.Add(1)
		r.logger.Error().
			Err(err).
			Str("path", path).
			Int("attempts", res.Attempts).
			Msg("failed to compress image")
		return
	}

	r.processed.Add(path)
	r.succeeded.Add(1)
	r.logger.Info().
		Str("path", path).
		Str("output", res.Output).
		Str("job_id", res.JobID.String()).
		Int("quality", res.Quality).
		Int("width", res.Width).
		Int("height", res.Height).
		Int64("bytes", res.Bytes).
		Int("attempts", res.Attempts).
		Dur("took", res.Duration).
		Msg("image compressed")
}

// Wait blocks until every dispatched compression has returned.
func (r *Router) Wait() {
	r.wg.Wait()
}

// Stats returns a snapshot of the router counters.
func (r *Router) Stats() model.RootStats {
	r.mu.Lock()
	inFlight := 0
	for _, n := range r.inFlight {
		inFlight += n
	}
	r.mu.Unlock()

	return model.RootStats{
		Root:      r.root,
		Accepted:  r.accepted.Load(),
		Rejected:  r.rejected.Load(),
		Succeeded: r.succeeded.Load(),
		Failed:    r.failed.Load(),
		InFlight:  inFlight,
		Processed: r.processed.Len(),
	}
}
