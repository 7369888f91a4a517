package mqtt

import (
	"context"
	"sync"
)

// dispatcher runs the work of inbound messages in arrival order on its own
// goroutine, so paho message handlers return immediately.
type dispatcher struct {
	mu     sync.Mutex
	queue  []func()
	closed bool
	wake   chan struct{}
	stop   chan struct{}
	done   chan struct{}
}

func newDispatcher() *dispatcher {
	d := &dispatcher{
		wake: make(chan struct{}, 1),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go d.run()
	return d
}

// push queues fn without blocking. It returns false once the dispatcher is
// closed.
func (d *dispatcher) push(fn func()) bool {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return false
	}
	d.queue = append(d.queue, fn)
	d.mu.Unlock()
	select {
	case d.wake <- struct{}{}:
	default:
	}
	return true
}

func (d *dispatcher) next() (func(), bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.queue) == 0 {
		return nil, false
	}
	fn := d.queue[0]
	d.queue[0] = nil
	d.queue = d.queue[1:]
	return fn, true
}

func (d *dispatcher) run() {
	defer close(d.done)
	for {
		select {
		case <-d.stop:
			return
		case <-d.wake:
		}
		for fn, ok := d.next(); ok; fn, ok = d.next() {
			fn()
		}
	}
}

// flush waits until the work queued before the call has run.
func (d *dispatcher) flush(ctx context.Context) error {
	ran := make(chan struct{})
	if !d.push(func() { close(ran) }) {
		return nil
	}
	select {
	case <-ran:
		return nil
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close drops pending work and stops the goroutine once the running item
// returns.
func (d *dispatcher) close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	d.queue = nil
	close(d.stop)
}
