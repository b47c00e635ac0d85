package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// workerPool is the Scheduler's bounded job runner (§4.7: "a thread-pool
// executor (≤3 concurrent tasks)"), adapted from the reference lineage's
// goroutine-lifecycle-manager idiom: each dispatched job runs on its own
// tracked goroutine, panics are recovered and logged rather than crashing
// the pool, and Stop joins every in-flight job within a bound. Unlike that
// lineage's manager, Submit blocks the caller until a slot is free instead
// of rejecting over-capacity callers — a cron fire should queue, not be
// dropped.
type workerPool struct {
	sem    chan struct{}
	log    zerolog.Logger
	wg     sync.WaitGroup
	stopCh chan struct{}
	once   sync.Once
}

func newWorkerPool(size int, log zerolog.Logger) *workerPool {
	if size <= 0 {
		size = 3
	}
	return &workerPool{
		sem:    make(chan struct{}, size),
		log:    log,
		stopCh: make(chan struct{}),
	}
}

// Submit blocks until a slot is available (or the pool is stopping), then
// runs fn on a new goroutine. A panic inside fn is recovered and logged;
// it never propagates to the caller or crashes the pool.
func (p *workerPool) Submit(name string, fn func()) {
	select {
	case p.sem <- struct{}{}:
	case <-p.stopCh:
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() { <-p.sem }()
		defer func() {
			if r := recover(); r != nil {
				p.log.Error().Str("job", name).Interface("panic", r).Msg("scheduler job panicked")
			}
		}()
		fn()
	}()
}

// Stop waits for in-flight jobs to finish, up to timeout. Already-queued
// Submit calls that haven't acquired a slot yet are abandoned.
func (p *workerPool) Stop(timeout time.Duration) {
	p.once.Do(func() { close(p.stopCh) })

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	select {
	case <-done:
	case <-ctx.Done():
		p.log.Warn().Msg("worker pool stop timed out with jobs still running")
	}
}
