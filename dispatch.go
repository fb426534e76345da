package scripting

import (
	"context"
	"sync"
)

// dispatcher serializes work onto a single goroutine, standing in for the
// host application's UI event-processing thread. Scripts touch host GUI and
// data-model objects, so evaluations issued from other goroutines are queued
// here and the caller blocks until the script body finishes.
//
// There is no preemption: a caller whose context is cancelled stops waiting,
// but the in-flight task runs to completion and its result is discarded.
type dispatcher struct {
	tasks chan *dispatchTask
	quit  chan struct{}
	once  sync.Once
}

type dispatchTask struct {
	fn   func()
	done chan struct{}
}

func newDispatcher() *dispatcher {
	d := &dispatcher{
		tasks: make(chan *dispatchTask),
		quit:  make(chan struct{}),
	}
	go d.loop()
	return d
}

func (d *dispatcher) loop() {
	for {
		select {
		case task := <-d.tasks:
			task.fn()
			close(task.done)
		case <-d.quit:
			return
		}
	}
}

// run executes fn on the dispatch goroutine and blocks until it completes.
// A cancelled ctx abandons the wait (and, if the task was not yet picked
// up, the submission) and returns the context error; an abandoned task that
// already started still runs to completion.
func (d *dispatcher) run(ctx context.Context, fn func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	task := &dispatchTask{fn: fn, done: make(chan struct{})}
	select {
	case d.tasks <- task:
	case <-ctx.Done():
		return ctx.Err()
	case <-d.quit:
		return ErrManagerDisposed
	}
	select {
	case <-task.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-d.quit:
		return ErrManagerDisposed
	}
}

// stop shuts the dispatch goroutine down. Queued tasks that were not picked
// up never run.
func (d *dispatcher) stop() {
	d.once.Do(func() {
		close(d.quit)
	})
}
