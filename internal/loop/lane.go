package loop

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
)

var ErrLaneClosed = errors.New("lane closed")

// Task is one unit of session work. It runs alone on its lane.
type Task func(ctx context.Context) error

// FailureFunc observes a task that returned an error or panicked.
type FailureFunc func(name string, err error)

type job struct {
	name string
	run  Task
	done chan error
}

// Lane runs submitted tasks one at a time in submission order on a single
// goroutine. A failing task never stops the lane.
type Lane struct {
	name      string
	ctx       context.Context
	cancel    context.CancelFunc
	jobs      chan job
	onFailure FailureFunc

	sendMu sync.RWMutex
	closed bool

	mu      sync.Mutex
	pending int
	wg      sync.WaitGroup
}

// NewLane starts a lane. capacity bounds how many tasks may wait before Submit blocks.
func NewLane(parent context.Context, name string, capacity int, onFailure FailureFunc) *Lane {
	if capacity <= 0 {
		capacity = 64
	}
	ctx, cancel := context.WithCancel(parent)
	l := &Lane{
		name:      name,
		ctx:       ctx,
		cancel:    cancel,
		jobs:      make(chan job, capacity),
		onFailure: onFailure,
	}
	l.wg.Add(1)
	go l.run()
	return l
}

// Submit enqueues a task and returns a channel that receives its result once
// it has run. The channel is buffered so callers may ignore it.
func (l *Lane) Submit(name string, t Task) <-chan error {
	done := make(chan error, 1)
	l.sendMu.RLock()
	defer l.sendMu.RUnlock()
	if l.closed {
		done <- ErrLaneClosed
		return done
	}
	l.mu.Lock()
	l.pending++
	l.mu.Unlock()

	l.jobs <- job{name: name, run: t, done: done}
	return done
}

// Do submits a task and waits for it, or for ctx to end.
func (l *Lane) Do(ctx context.Context, name string, t Task) error {
	select {
	case err := <-l.Submit(name, t):
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending is the number of submitted tasks not yet finished.
func (l *Lane) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pending
}

// Close stops accepting tasks, lets queued ones finish, then returns.
func (l *Lane) Close() {
	l.sendMu.Lock()
	if l.closed {
		l.sendMu.Unlock()
		return
	}
	l.closed = true
	close(l.jobs)
	l.sendMu.Unlock()
	l.wg.Wait()
	l.cancel()
}

func (l *Lane) run() {
	defer l.wg.Done()
	for j := range l.jobs {
		err := l.exec(j)
		if err != nil && l.onFailure != nil {
			l.onFailure(j.name, err)
		}
		l.mu.Lock()
		l.pending--
		l.mu.Unlock()
		j.done <- err
	}
}

func (l *Lane) exec(j job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[lane] %s task=%s panic: %v\n%s", l.name, j.name, r, debug.Stack())
			err = fmt.Errorf("task %s panicked: %v", j.name, r)
		}
	}()
	return j.run(l.ctx)
}
