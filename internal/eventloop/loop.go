// Package eventloop runs submitted jobs one at a time on a single goroutine.
package eventloop

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
)

// Loop errors.
var (
	ErrStopped = errors.New("event loop stopped")
	ErrRunning = errors.New("event loop already running")
)

// Job is a unit of work executed on the loop goroutine.
type Job func(ctx context.Context) error

type request struct {
	ctx  context.Context
	job  Job
	done chan error
}

// Loop serializes jobs submitted from any goroutine. Jobs never overlap and run
// in the order the loop accepts them.
type Loop struct {
	requests chan request
	stopped  chan struct{}
	running  atomic.Bool
	logger   *zap.Logger
}

// New creates a Loop. Nothing runs until Run is called.
func New(logger *zap.Logger) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{
		requests: make(chan request),
		stopped:  make(chan struct{}),
		logger:   logger,
	}
}

// Run executes jobs on the calling goroutine until ctx is done.
// A Loop runs at most once.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer close(l.stopped)

	l.logger.Debug("event loop started")
	for {
		select {
		case <-ctx.Done():
			l.logger.Debug("event loop stopped")
			return nil
		case req := <-l.requests:
			req.done <- l.execute(req)
		}
	}
}

// Do hands job to the loop and waits for its result. A job is skipped when
// its context is already done before it starts; once started it runs to
// completion and its context is no longer cancelled with the caller's.
func (l *Loop) Do(ctx context.Context, job Job) error {
	req := request{ctx: ctx, job: job, done: make(chan error, 1)}

	select {
	case l.requests <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-l.stopped:
		return ErrStopped
	}

	return <-req.done
}

func (l *Loop) execute(req request) (err error) {
	if err := req.ctx.Err(); err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("event loop job panicked", zap.Any("panic", r), zap.Stack("stack"))
			err = fmt.Errorf("event loop job panicked: %v", r)
		}
	}()

	return req.job(context.WithoutCancel(req.ctx))
}
