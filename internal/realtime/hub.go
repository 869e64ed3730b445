package realtime

import (
	"sort"
	"sync"
	"sync/atomic"
)

// DefaultBuffer is the per-subscriber queue length used when none is given.
const DefaultBuffer = 64

// Subscriber is one consumer of hub events, typically a websocket
// connection. Events arrive on C until the subscriber is removed.
type Subscriber struct {
	ch      chan Event
	topics  map[string]struct{}
	dropped atomic.Int64
	removed bool
}

// C returns the receive side of the subscriber's queue. It is closed when
// the subscriber is removed from the hub.
func (s *Subscriber) C() <-chan Event { return s.ch }

// Dropped reports how many events this subscriber has lost to a full queue.
func (s *Subscriber) Dropped() int64 { return s.dropped.Load() }

// Hub is an in-process topic router. All mutations and publishes are
// serialized by one mutex, so every subscriber of a topic observes that
// topic's events in publish order.
type Hub struct {
	buffer int

	mu     sync.Mutex
	topics map[string]map[*Subscriber]struct{}
	subs   map[*Subscriber]struct{}
}

// NewHub returns a hub whose subscribers buffer up to buffer events.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{
		buffer: buffer,
		topics: make(map[string]map[*Subscriber]struct{}),
		subs:   make(map[*Subscriber]struct{}),
	}
}

// NewSubscriber registers a subscriber with no topics.
func (h *Hub) NewSubscriber() *Subscriber { return h.Subscribe() }

// Subscribe registers a subscriber already joined to topics. Registration and
// joins happen atomically, so no event published afterwards is missed.
func (h *Hub) Subscribe(topics ...string) *Subscriber {
	s := &Subscriber{
		ch:     make(chan Event, h.buffer),
		topics: make(map[string]struct{}, len(topics)),
	}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	for _, t := range topics {
		h.joinLocked(s, t)
	}
	h.mu.Unlock()
	subscribersGauge.Inc()
	return s
}

// Join adds s to topic. Joining twice is a no-op, as is joining after Remove.
func (h *Hub) Join(s *Subscriber, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s.removed {
		return
	}
	h.joinLocked(s, topic)
}

func (h *Hub) joinLocked(s *Subscriber, topic string) {
	set, ok := h.topics[topic]
	if !ok {
		set = make(map[*Subscriber]struct{})
		h.topics[topic] = set
	}
	set[s] = struct{}{}
	s.topics[topic] = struct{}{}
}

// Leave removes s from topic. Leaving a topic never joined is a no-op.
func (h *Hub) Leave(s *Subscriber, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(s, topic)
}

func (h *Hub) leaveLocked(s *Subscriber, topic string) {
	delete(s.topics, topic)
	if set, ok := h.topics[topic]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(h.topics, topic)
		}
	}
}

// Remove detaches s from every topic and closes its queue. Safe to call more
// than once.
func (h *Hub) Remove(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s.removed {
		return
	}
	for topic := range s.topics {
		h.leaveLocked(s, topic)
	}
	delete(h.subs, s)
	s.removed = true
	close(s.ch)
	subscribersGauge.Dec()
}

// Topics lists the topics s is joined to, sorted.
func (h *Hub) Topics(s *Subscriber) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(s.topics))
	for t := range s.topics {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Publish delivers ev to every subscriber of topic without blocking. A full
// queue drops the event for that subscriber only.
func (h *Hub) Publish(topic string, ev Event) {
	ev.Topic = topic
	kind := topicKind(topic)
	eventsPublished.WithLabelValues(kind).Inc()

	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.topics[topic] {
		select {
		case s.ch <- ev:
		default:
			s.dropped.Add(1)
			eventsDropped.WithLabelValues(kind).Inc()
		}
	}
}

// Deliver sends ev to s alone, with the same drop semantics as Publish.
// Used for per-connection acknowledgements.
func (h *Hub) Deliver(s *Subscriber, ev Event) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s.removed {
		return false
	}
	select {
	case s.ch <- ev:
		return true
	default:
		s.dropped.Add(1)
		eventsDropped.WithLabelValues(topicKind(ev.Topic)).Inc()
		return false
	}
}

// SubscriberCount reports the number of live subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

var _ Publisher = (*Hub)(nil)
