// Package changefeed implements the table change-notification broker: store
// writes are published here, in-process listeners subscribe per table, and
// browsers receive the same stream as Server-Sent Events.
package changefeed

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Collections that publish changes.
const (
	TableNotes  = "notes"
	TableTasks  = "tasks"
	TableEvents = "events"
	TableImages = "images"
)

// Change kinds.
const (
	KindInsert = "insert"
	KindUpdate = "update"
	KindDelete = "delete"
)

// Change says that some row in Table changed. Consumers must not rely on
// anything beyond "something changed"; RowID is informational.
type Change struct {
	Table string `json:"table"`
	Kind  string `json:"kind"`
	RowID string `json:"id,omitempty"`
}

// Subscription is a registered listener. C is closed when the subscription
// is released or the broker stops.
type Subscription struct {
	C      <-chan Change
	ch     chan Change
	tables map[string]struct{}
}

func (s *Subscription) wants(table string) bool {
	if len(s.tables) == 0 {
		return true
	}
	_, ok := s.tables[table]
	return ok
}

// Broker fans out table changes to subscribers.
//
// A single event loop owns the subscriber set; public methods talk to it
// over channels. Each SSE connection throttles its own workspace events.
//
// Delivery to a subscriber whose buffer is full is dropped. Since changes
// carry no payload that matters, a full buffer already guarantees the
// subscriber a later wake-up that observes the dropped write.
type Broker struct {
	workspaceMin time.Duration

	subscribeCh   chan *Subscription
	unsubscribeCh chan *Subscription
	publishCh     chan Change
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker. workspaceThrottle bounds how often the SSE
// stream emits the aggregate "workspace.changed" event.
func NewBroker(workspaceThrottle time.Duration) *Broker {
	if workspaceThrottle <= 0 {
		workspaceThrottle = 2 * time.Second
	}

	b := &Broker{
		workspaceMin:  workspaceThrottle,
		subscribeCh:   make(chan *Subscription),
		unsubscribeCh: make(chan *Subscription),
		publishCh:     make(chan Change, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	subs := make(map[*Subscription]struct{})

	for {
		select {
		case <-b.stopCh:
			for s := range subs {
				close(s.ch)
			}
			return

		case s := <-b.subscribeCh:
			subs[s] = struct{}{}

		case s := <-b.unsubscribeCh:
			if _, ok := subs[s]; ok {
				delete(subs, s)
				close(s.ch)
			}

		case c := <-b.publishCh:
			for s := range subs {
				if !s.wants(c.Table) {
					continue
				}
				select {
				case s.ch <- c:
				default:
				}
			}

		case resp := <-b.countReqCh:
			resp <- len(subs)
		}
	}
}

// Close stops the event loop and closes every subscription channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe registers a listener for the given tables (all tables when none
// are given).
func (b *Broker) Subscribe(tables ...string) *Subscription {
	ch := make(chan Change, 64)
	s := &Subscription{C: ch, ch: ch, tables: make(map[string]struct{}, len(tables))}
	for _, t := range tables {
		s.tables[t] = struct{}{}
	}
	if b.closed.Load() {
		close(ch)
		return s
	}

	select {
	case b.subscribeCh <- s:
	case <-b.stopped:
		close(ch)
	}
	return s
}

// Unsubscribe releases s. Releasing twice is a no-op.
func (b *Broker) Unsubscribe(s *Subscription) {
	if s == nil || b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- s:
	case <-b.stopped:
	}
}

// SubscriberCount returns the number of registered subscriptions.
func (b *Broker) SubscriberCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish broadcasts a change to every interested subscriber.
func (b *Broker) Publish(c Change) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- c:
	case <-b.stopped:
	}
}

// ServeHTTP streams every change as SSE (GET /api/events), followed by a
// throttled "workspace.changed" event that browsers use as a refetch hint.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	var lastWorkspace time.Time
	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-sub.C:
			if !ok {
				return
			}
			_, _ = w.Write(formatEvent(c.Table+"."+c.Kind, c))

			now := time.Now()
			if now.Sub(lastWorkspace) >= b.workspaceMin {
				lastWorkspace = now
				_, _ = w.Write(formatEvent("workspace.changed", map[string]string{}))
			}
			flusher.Flush()
		}
	}
}

func formatEvent(name string, data any) []byte {
	payload, err := json.Marshal(data)
	if err != nil {
		payload = []byte("{}")
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", name, payload))
}
