package prefetch

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Depth is how many positions may be submitted beyond the one currently being
// consumed. Work items download and transcode audio to local disk, so a deeper
// pipeline would multiply temporary space usage without improving throughput.
const Depth = 1

// WorkerError wraps a failure raised by a submitted work function, preserving
// the position it belongs to and the original cause.
type WorkerError struct {
	Position int
	Err      error
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("prefetch worker: position %d: %v", e.Position, e.Err)
}

func (e *WorkerError) Unwrap() error {
	return e.Err
}

type outcome[T any] struct {
	value T
	err   error
}

// Pipeline runs work functions for a fixed ordered sequence of positions and
// hands the results back in position order. Submissions must be issued in
// position order, at most Depth ahead of the last awaited position.
type Pipeline[T any] struct {
	discard func(T)

	mu         sync.Mutex
	slots      map[int]chan outcome[T]
	nextSubmit int
	nextAwait  int
	closed     bool
	wg         sync.WaitGroup
}

// New constructs an empty pipeline. discard, when non-nil, is invoked for any
// successfully produced result that is never awaited, so resources backing it
// can be released on early exit. Callers own teardown via Close.
func New[T any](discard func(T)) *Pipeline[T] {
	return &Pipeline[T]{
		discard: discard,
		slots:   make(map[int]chan outcome[T]),
	}
}

// Submit schedules fn for the given position and returns immediately. The
// work function must carry all state it needs; it runs on its own goroutine.
func (p *Pipeline[T]) Submit(position int, fn func() (T, error)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.New("prefetch: submit on closed pipeline")
	}
	if position != p.nextSubmit {
		return fmt.Errorf("prefetch: submit position %d out of order, expected %d", position, p.nextSubmit)
	}
	if position > p.nextAwait+Depth {
		return fmt.Errorf("prefetch: position %d exceeds lookahead depth %d", position, Depth)
	}
	ch := make(chan outcome[T], 1)
	p.slots[position] = ch
	p.nextSubmit = position + 1

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				var zero T
				ch <- outcome[T]{value: zero, err: fmt.Errorf("panic: %v", r)}
			}
		}()
		value, err := fn()
		ch <- outcome[T]{value: value, err: err}
	}()
	return nil
}

// Await blocks until the result for position is available and returns it.
// A work-function failure is reported as a WorkerError wrapping the cause.
func (p *Pipeline[T]) Await(ctx context.Context, position int) (T, error) {
	var zero T

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return zero, errors.New("prefetch: await on closed pipeline")
	}
	ch, ok := p.slots[position]
	if !ok {
		p.mu.Unlock()
		return zero, fmt.Errorf("prefetch: position %d was never submitted", position)
	}
	delete(p.slots, position)
	if position >= p.nextAwait {
		p.nextAwait = position + 1
	}
	p.mu.Unlock()

	select {
	case <-ctx.Done():
		// Park the slot back so Close can drain and discard the result.
		p.mu.Lock()
		if !p.closed {
			p.slots[position] = ch
			p.mu.Unlock()
		} else {
			p.mu.Unlock()
			p.drain(ch)
		}
		return zero, ctx.Err()
	case res := <-ch:
		if res.err != nil {
			return zero, &WorkerError{Position: position, Err: res.err}
		}
		return res.value, nil
	}
}

// InFlight returns the number of submitted positions not yet awaited.
func (p *Pipeline[T]) InFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.slots)
}

// Close tears the pipeline down on every exit path: it rejects further
// submissions, waits for all outstanding work functions to finish, and
// discards any result that was produced but never awaited.
func (p *Pipeline[T]) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	orphans := make([]chan outcome[T], 0, len(p.slots))
	for pos, ch := range p.slots {
		orphans = append(orphans, ch)
		delete(p.slots, pos)
	}
	p.mu.Unlock()

	p.wg.Wait()
	for _, ch := range orphans {
		p.drain(ch)
	}
}

func (p *Pipeline[T]) drain(ch chan outcome[T]) {
	select {
	case res := <-ch:
		if res.err == nil && p.discard != nil {
			p.discard(res.value)
		}
	default:
	}
}
