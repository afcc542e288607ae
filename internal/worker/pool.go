// ============================================================================
// flatset - Flat collection manager
// ============================================================================
//
// Package:     worker
// Description: Fixed-size worker pool for fire-and-forget commands
// Author:      Mike Stoffels
// Created:     2026-10-19
// License:     MIT
// ============================================================================

package worker

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	mdwerror "github.com/msto63/flatset/foundation/core/error"
	mdwlog "github.com/msto63/flatset/foundation/core/log"
)

// Job is a unit of work. The context is the pool's context.
type Job func(ctx context.Context)

// Options configures a Pool
type Options struct {
	Workers   int
	QueueSize int
	Logger    *mdwlog.Logger
}

// Pool runs jobs on a fixed number of goroutines fed by a bounded queue.
// Submit blocks while the queue is full.
type Pool struct {
	jobs    chan Job
	group   *errgroup.Group
	ctx     context.Context
	logger  *mdwlog.Logger
	pending sync.WaitGroup

	mu     sync.RWMutex
	closed bool
	once   sync.Once
}

// New starts the workers. They stop once Close has drained the queue.
func New(ctx context.Context, opts Options) *Pool {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = 1
	}
	if opts.Logger == nil {
		opts.Logger = mdwlog.NewNop()
	}

	g, gctx := errgroup.WithContext(ctx)
	p := &Pool{
		jobs:   make(chan Job, opts.QueueSize),
		group:  g,
		ctx:    gctx,
		logger: opts.Logger.WithField("component", "worker"),
	}
	for i := 0; i < opts.Workers; i++ {
		id := i
		g.Go(func() error {
			p.work(id)
			return nil
		})
	}
	return p
}

func (p *Pool) work(id int) {
	for job := range p.jobs {
		p.run(id, job)
	}
}

func (p *Pool) run(id int, job Job) {
	defer p.pending.Done()
	defer func() {
		if r := recover(); r != nil {
			p.logger.ErrorWithErr("job panicked", nil, mdwlog.Fields{"worker": id, "panic": fmt.Sprint(r)})
		}
	}()
	job(p.ctx)
}

// Submit enqueues job, blocking while the queue is full. It fails once the
// pool is closed or ctx is done.
func (p *Pool) Submit(ctx context.Context, job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return mdwerror.New("worker pool is closed").WithCode(mdwerror.CodeShutdown)
	}

	p.pending.Add(1)
	select {
	case p.jobs <- job:
		return nil
	case <-ctx.Done():
		p.pending.Done()
		return mdwerror.Wrap(ctx.Err(), "submit cancelled").WithCode(mdwerror.CodeShutdown)
	}
}

// Wait blocks until every job submitted so far has finished
func (p *Pool) Wait() {
	p.pending.Wait()
}

// Close stops intake, lets the workers drain the queue and waits for them
func (p *Pool) Close() error {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.jobs)
		p.mu.Unlock()
	})
	return p.group.Wait()
}
