package matcher

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Taff4/conciliador-notas/internal/amount"
)

// Searcher runs subset-sum searches. It holds configuration only; a single
// Searcher may serve concurrent calls.
type Searcher struct {
	workers           int
	reachabilityLimit amount.Amount
	log               zerolog.Logger
	now               func() time.Time
}

// Option configures a Searcher.
type Option func(*Searcher)

// WithWorkers evaluates each combination size across n goroutines. The
// result is identical to the serial search. n <= 1 means serial.
func WithWorkers(n int) Option {
	return func(s *Searcher) {
		if n < 1 {
			n = 1
		}
		s.workers = n
	}
}

// WithReachabilityLimit enables the DP pre-pass for targets up to limit
// minor units. Zero disables it.
func WithReachabilityLimit(limit amount.Amount) Option {
	return func(s *Searcher) { s.reachabilityLimit = limit }
}

// WithLogger sets the debug logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Searcher) { s.log = l }
}

// New returns a serial Searcher with the DP pre-pass disabled.
func New(opts ...Option) *Searcher {
	s := &Searcher{
		workers: 1,
		log:     zerolog.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search is a convenience wrapper around New().Search.
func Search(ctx context.Context, candidates []amount.Amount, target amount.Amount, maxSize int, sink ProgressSink) (Result, error) {
	return New().Search(ctx, Request{Target: target, Candidates: candidates, MaxSize: maxSize}, sink)
}

// Search looks for the smallest combination of req.Candidates summing to
// req.Target. sink, if non-nil, is notified once per size before that size
// is evaluated. Cancellation of ctx yields a Cancelled result, not an error;
// the only error returned is a *RequestError.
func (s *Searcher) Search(ctx context.Context, req Request, sink ProgressSink) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}
	if sink == nil {
		sink = discardProgress{}
	}

	start := s.now()
	n := len(req.Candidates)
	k := req.effectiveSize()
	res := Result{Outcome: NotFound, Depth: k}
	finish := func(o Outcome) (Result, error) {
		res.Outcome = o
		res.Elapsed = s.now().Sub(start)
		s.log.Debug().
			Str("outcome", o.String()).
			Int("size", res.Size()).
			Uint64("evaluated", res.Evaluated).
			Dur("elapsed", res.Elapsed).
			Msg("search finished")
		return res, nil
	}

	// Levels below fromSize cannot match and are reported without being
	// enumerated.
	fromSize := 1
	if s.reachabilityLimit > 0 && k > 0 {
		minSize, ok, err := minCardinalityDP(ctx, req.Candidates, req.Target, s.reachabilityLimit)
		if err != nil {
			return finish(Cancelled)
		}
		if ok {
			if minSize == 0 || minSize > k {
				fromSize = k + 1
			} else {
				fromSize = minSize
			}
			s.log.Debug().Int("min_size", minSize).Int("depth", k).Msg("reachability pre-pass")
		}
	}

	for r := 1; r <= k; r++ {
		if ctx.Err() != nil {
			return finish(Cancelled)
		}
		sink.Progress(levelProgress(r, k, n))
		if r < fromSize {
			continue
		}

		var (
			idx       []int
			evaluated uint64
			err       error
		)
		if s.workers > 1 {
			idx, evaluated, err = s.scanLevelParallel(ctx, req.Candidates, req.Target, r)
		} else {
			idx, evaluated, err = scanLevel(ctx, req.Candidates, req.Target, r)
		}
		res.Evaluated += evaluated
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return finish(Cancelled)
			}
			return Result{}, err
		}
		if idx != nil {
			res.Indices = idx
			res.Combination = make([]amount.Amount, len(idx))
			for i, p := range idx {
				res.Combination[i] = req.Candidates[p]
			}
			return finish(Found)
		}
	}
	return finish(NotFound)
}

// scanLevel evaluates every r-combination serially in canonical order.
func scanLevel(ctx context.Context, vals []amount.Amount, target amount.Amount, r int) ([]int, uint64, error) {
	var total uint64
	for first := 0; first <= len(vals)-r; first++ {
		idx, evaluated, err := scanBlock(ctx, vals, target, r, first, nil)
		total += evaluated
		if err != nil || idx != nil {
			return idx, total, err
		}
	}
	return nil, total, nil
}

// scanLevelParallel splits the r-combinations by their first position and
// scans the blocks concurrently. The match in the block with the smallest
// first position is the canonical one, so blocks past a known match are
// skipped or abandoned, and blocks before it always run to completion.
func (s *Searcher) scanLevelParallel(ctx context.Context, vals []amount.Amount, target amount.Amount, r int) ([]int, uint64, error) {
	lastFirst := len(vals) - r
	matches := make([][]int, lastFirst+1)

	var best atomic.Int64
	best.Store(math.MaxInt64)
	var evaluated atomic.Uint64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for first := 0; first <= lastFirst; first++ {
		if int64(first) > best.Load() {
			break
		}
		first := first
		g.Go(func() error {
			if int64(first) > best.Load() {
				return nil
			}
			stop := func() bool { return int64(first) > best.Load() }
			idx, n, err := scanBlock(gctx, vals, target, r, first, stop)
			evaluated.Add(n)
			if err != nil {
				return err
			}
			if idx == nil {
				return nil
			}
			matches[first] = idx
			for {
				cur := best.Load()
				if int64(first) >= cur || best.CompareAndSwap(cur, int64(first)) {
					return nil
				}
			}
		})
	}
	if err := g.Wait(); err != nil {
		return nil, evaluated.Load(), err
	}
	if b := best.Load(); b != math.MaxInt64 {
		return matches[b], evaluated.Load(), nil
	}
	return nil, evaluated.Load(), nil
}
