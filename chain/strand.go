package chain

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// seqlockRetryDelay is the reader's back-off while a writer holds the
// seqlock odd, per spec §5 ("sleeps ~10 ms").
const seqlockRetryDelay = 10 * time.Millisecond

// writeStrand serializes every chain mutation (store/import/disconnect)
// onto a single logical sequence, the way the teacher's BroadcastAsync
// bounds fan-out with an errgroup and a buffered-channel semaphore, except
// here the semaphore has capacity one: at most one mutation runs at a time,
// so callers never observe a torn write.
type writeStrand struct {
	sem chan struct{}
}

func newWriteStrand() *writeStrand {
	return &writeStrand{sem: make(chan struct{}, 1)}
}

// run executes fn on the write strand, returning its error. It blocks the
// calling goroutine until the strand is free; concurrent callers are
// serialized in the order they arrive at the semaphore.
func (w *writeStrand) run(ctx context.Context, fn func() error) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case w.sem <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
		defer func() { <-w.sem }()
		return fn()
	})
	return g.Wait()
}

// readStrand runs fetch_* operations concurrently, up to a fixed worker
// bound, with one rate limiter shared by the scan-shaped queries
// (fetch_history, fetch_stealth) that can otherwise be used to walk a
// sibling index unboundedly. This borrows the teacher's *rate.Limiter
// pattern (network/network.go's getLimiter), but with a single limiter
// for both operations instead of one per peer ID or per operation kind.
//
// Every fn run through run/runScan is wrapped in the spec §5 seqlock read
// protocol: snapshot the sequence number, refuse to read while it's odd
// (a writer is mid-mutation), then re-check it hasn't changed underneath
// the read before trusting the result. Without this, a read can observe
// a write-strand mutation in progress — e.g. a UTXO insert triggering
// mmapfile.Resize's munmap/remap — and dereference a mapping that moved
// out from under it mid-read.
type readStrand struct {
	sem     chan struct{}
	scanLim *rate.Limiter
	seq     func() uint64
}

func newReadStrand(workers int, scanRatePerSec float64, scanBurst int, seq func() uint64) *readStrand {
	if workers <= 0 {
		workers = 1
	}
	return &readStrand{
		sem:     make(chan struct{}, workers),
		scanLim: rate.NewLimiter(rate.Limit(scanRatePerSec), scanBurst),
		seq:     seq,
	}
}

// run executes fn as a bounded-concurrency read, retrying under the
// seqlock protocol until it observes a quiescent snapshot.
func (r *readStrand) run(ctx context.Context, fn func() error) error {
	select {
	case r.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-r.sem }()
	return r.readSeqlocked(ctx, fn)
}

// readSeqlocked implements spec §5's reader protocol: load S; if odd,
// yield and retry; execute the read; reload S; if unchanged, publish the
// result, otherwise retry from the top.
func (r *readStrand) readSeqlocked(ctx context.Context, fn func() error) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		before := r.seq()
		if before%2 != 0 {
			if err := seqlockWait(ctx); err != nil {
				return err
			}
			continue
		}
		if err := fn(); err != nil {
			return err
		}
		if r.seq() == before {
			return nil
		}
	}
}

func seqlockWait(ctx context.Context) error {
	t := time.NewTimer(seqlockRetryDelay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runScan is like run but first waits for a token from the scan rate
// limiter, for fetch_history/fetch_stealth which can otherwise be abused
// to walk a sibling index unboundedly.
func (r *readStrand) runScan(ctx context.Context, fn func() error) error {
	if err := r.scanLim.Wait(ctx); err != nil {
		return err
	}
	return r.run(ctx, fn)
}
