package server

import (
	"sync"

	"github.com/lotas/tabflow/internal/types"
)

// eventQueue is an unbounded FIFO between the WebSocket read loop and the
// consumer of Events. push never blocks, so a slow consumer cannot stall
// command responses and no event is lost.
type eventQueue struct {
	mu     sync.Mutex
	items  []types.Event
	notify chan struct{}
	out    chan types.Event
	done   chan struct{}
	once   sync.Once
}

func newEventQueue() *eventQueue {
	q := &eventQueue{
		notify: make(chan struct{}, 1),
		out:    make(chan types.Event),
		done:   make(chan struct{}),
	}
	go q.pump()
	return q
}

func (q *eventQueue) push(ev types.Event) {
	q.mu.Lock()
	q.items = append(q.items, ev)
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// pending reports how many events wait for the consumer.
func (q *eventQueue) pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *eventQueue) pump() {
	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			q.mu.Unlock()
			select {
			case <-q.notify:
				continue
			case <-q.done:
				return
			}
		}
		ev := q.items[0]
		q.items[0] = types.Event{}
		q.items = q.items[1:]
		q.mu.Unlock()

		select {
		case q.out <- ev:
		case <-q.done:
			return
		}
	}
}

// close stops the pump. Undelivered events are discarded.
func (q *eventQueue) close() {
	q.once.Do(func() { close(q.done) })
}
