package notification

import (
	"github.com/google/uuid"

	"tourly/models"
)

// subscriberBuffer is how many undelivered events a subscription may hold
// before the hub gives up on it. A dropped subscriber re-fetches current
// state on reconnect; there is no replay buffer.
const subscriberBuffer = 16

// Subscription is one live listener on the booking-change stream. Events
// arrive on C until the caller unsubscribes or the hub drops the
// subscription; C is closed in either case.
type Subscription struct {
	ID     string
	Filter models.ScopeFilter
	C      chan models.BookingEvent
}

// Hub fans committed booking-change events out to every subscription whose
// scope filter matches. A single run loop owns the subscriber set, so events
// for the same booking reach each subscriber in publish (= commit) order.
type Hub struct {
	register   chan *Subscription
	unregister chan *Subscription
	broadcast  chan models.BookingEvent
	done       chan struct{}

	subs map[*Subscription]bool
}

func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Subscription),
		unregister: make(chan *Subscription),
		broadcast:  make(chan models.BookingEvent),
		done:       make(chan struct{}),
		subs:       make(map[*Subscription]bool),
	}
}

// Run processes registrations and broadcasts until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case s := <-h.register:
			h.subs[s] = true

		case s := <-h.unregister:
			if h.subs[s] {
				delete(h.subs, s)
				close(s.C)
			}

		case ev := <-h.broadcast:
			for s := range h.subs {
				if !s.Filter.Matches(ev) {
					continue
				}
				select {
				case s.C <- ev:
				default:
					// Slow consumer: drop it rather than stall the stream.
					delete(h.subs, s)
					close(s.C)
				}
			}

		case <-h.done:
			for s := range h.subs {
				delete(h.subs, s)
				close(s.C)
			}
			return
		}
	}
}

// Stop tears down the hub and closes every open subscription.
func (h *Hub) Stop() {
	close(h.done)
}

// Subscribe registers a listener for events matching the filter. The filter
// must select at least one of agent, property, or user.
func (h *Hub) Subscribe(filter models.ScopeFilter) (*Subscription, error) {
	if filter.Empty() {
		return nil, models.ErrValidation("a subscription must select an agent, property, or user")
	}
	s := &Subscription{
		ID:     uuid.New().String(),
		Filter: filter,
		C:      make(chan models.BookingEvent, subscriberBuffer),
	}
	select {
	case h.register <- s:
		return s, nil
	case <-h.done:
		return nil, models.ErrValidation("notification hub is shut down")
	}
}

// Unsubscribe releases the subscription. Idempotent; safe after Stop.
func (h *Hub) Unsubscribe(s *Subscription) {
	if s == nil {
		return
	}
	select {
	case h.unregister <- s:
	case <-h.done:
	}
}

// Publish delivers the event to every matching live subscription. Callers
// invoke it synchronously right after each successful commit, which is what
// gives same-booking events their commit ordering.
func (h *Hub) Publish(ev models.BookingEvent) {
	select {
	case h.broadcast <- ev:
	case <-h.done:
	}
}
