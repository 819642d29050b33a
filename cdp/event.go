package cdp

import (
	"sync"

	"github.com/chromedp/cdproto"
)

// Event is a CDP event received from the browser.
type Event struct {
	Name cdproto.MethodType
	// Data is the unmarshalled event, e.g. *page.EventLoadEventFired.
	Data      interface{}
	SessionID string
}

type subscription struct {
	sessionID string
	events    map[cdproto.MethodType]bool
	ch        chan *Event
}

// eventWatcher fans out events to the subscribers of a session.
type eventWatcher struct {
	mu     sync.RWMutex
	nextID int64
	subs   map[int64]*subscription
}

func newEventWatcher() *eventWatcher {
	return &eventWatcher{subs: make(map[int64]*subscription)}
}

const subscriptionBufferSize = 16

// subscribe returns a channel notified of the given events of sessionID and
// a function that removes the subscription and closes the channel.
func (w *eventWatcher) subscribe(sessionID string, events ...cdproto.MethodType) (<-chan *Event, func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	sub := &subscription{
		sessionID: sessionID,
		events:    make(map[cdproto.MethodType]bool, len(events)),
		ch:        make(chan *Event, subscriptionBufferSize),
	}
	for _, evt := range events {
		sub.events[evt] = true
	}
	w.nextID++
	id := w.nextID
	w.subs[id] = sub

	return sub.ch, func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if _, ok := w.subs[id]; ok {
			delete(w.subs, id)
			close(sub.ch)
		}
	}
}

// notify delivers evt to matching subscribers. It never blocks: a
// subscriber with a full buffer misses the event. It returns the number of
// subscribers notified.
func (w *eventWatcher) notify(evt *Event) int {
	w.mu.RLock()
	defer w.mu.RUnlock()

	var n int
	for _, sub := range w.subs {
		if sub.sessionID != evt.SessionID || !sub.events[evt.Name] {
			continue
		}
		select {
		case sub.ch <- evt:
			n++
		default:
		}
	}
	return n
}

// closeAll closes every subscription channel.
func (w *eventWatcher) closeAll() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for id, sub := range w.subs {
		close(sub.ch)
		delete(w.subs, id)
	}
}
