package identity

import "sync"

// dispatcher fans provider session-change events out to subscribers. A single
// goroutine drains the event channel, so no two handler invocations for the
// same subscriber ever overlap and every subscriber sees events in emit order.
type dispatcher struct {
	mu     sync.Mutex
	subs   map[int]func(*Identity)
	nextID int

	startOnce sync.Once
	events    chan *Identity
	done      chan struct{}
}

func newDispatcher() *dispatcher {
	return &dispatcher{
		subs:   make(map[int]func(*Identity)),
		events: make(chan *Identity, 16),
		done:   make(chan struct{}),
	}
}

func (d *dispatcher) start() {
	d.startOnce.Do(func() {
		go d.loop()
	})
}

func (d *dispatcher) loop() {
	for {
		select {
		case id := <-d.events:
			d.mu.Lock()
			handlers := make([]func(*Identity), 0, len(d.subs))
			for _, h := range d.subs {
				handlers = append(handlers, h)
			}
			d.mu.Unlock()

			for _, h := range handlers {
				h(id)
			}
		case <-d.done:
			return
		}
	}
}

// subscribe registers a handler and returns its cancel function.
func (d *dispatcher) subscribe(handler func(*Identity)) (cancel func()) {
	d.start()

	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.subs[id] = handler
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		delete(d.subs, id)
		d.mu.Unlock()
	}
}

// emit queues an event for delivery to all current subscribers.
func (d *dispatcher) emit(id *Identity) {
	d.start()
	d.events <- id
}

// close stops the dispatch loop. Pending events are dropped.
func (d *dispatcher) close() {
	close(d.done)
}
