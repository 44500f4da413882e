package goKeeper

import (
	"log"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// eventDispatcher fans state transition events out to registered listeners.
//
// Events are enqueued under the Manager mutex and drained by a single
// goroutine, so listeners observe transitions in the order they occurred. A
// listener registered mid-transition either sees that transition fully or not
// at all: the listener set is snapshotted per event, after dequeue.
type eventDispatcher struct {
	cfg EventsConfig

	mu        sync.RWMutex
	listeners map[string]Listener
	order     []string

	ch        chan Event
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

func newEventDispatcher(cfg EventsConfig) *eventDispatcher {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}

	d := &eventDispatcher{
		cfg:       cfg,
		listeners: make(map[string]Listener),
		ch:        make(chan Event, cfg.BufferSize),
		done:      make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *eventDispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case event := <-d.ch:
			d.deliver(event)
		case <-d.done:
			for {
				select {
				case event := <-d.ch:
					d.deliver(event)
				default:
					return
				}
			}
		}
	}
}

func (d *eventDispatcher) deliver(event Event) {
	d.mu.RLock()
	fns := make([]Listener, 0, len(d.order))
	for _, id := range d.order {
		if fn, ok := d.listeners[id]; ok {
			fns = append(fns, fn)
		}
	}
	d.mu.RUnlock()

	for _, fn := range fns {
		d.invoke(fn, event)
	}
}

// Listener failures are isolated: a panic is recovered and logged, never
// propagated to other listeners or back into Manager state.
func (d *eventDispatcher) invoke(fn Listener, event Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("goKeeper: state listener panic recovered: %v", r)
		}
	}()
	fn(event)
}

func (d *eventDispatcher) subscribe(fn Listener) func() {
	if d == nil || fn == nil {
		return func() {}
	}

	id := uuid.NewString()

	d.mu.Lock()
	d.listeners[id] = fn
	d.order = append(d.order, id)
	d.mu.Unlock()

	return func() {
		d.unsubscribe(id)
	}
}

func (d *eventDispatcher) unsubscribe(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.listeners[id]; !ok {
		return
	}
	delete(d.listeners, id)
	for i, v := range d.order {
		if v == id {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}

func (d *eventDispatcher) emit(event Event) {
	if d == nil || d.closed.Load() {
		return
	}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- event:
		case <-d.done:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.ch <- event:
	case <-d.done:
	}
}

func (d *eventDispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

func (d *eventDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
