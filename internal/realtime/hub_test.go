package realtime

import (
	"sync"
	"testing"
	"time"
)

func recv(t *testing.T, s *Subscriber) Event {
	t.Helper()
	select {
	case ev, ok := <-s.C():
		if !ok {
			t.Fatalf("subscriber closed")
		}
		return ev
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for event")
	}
	return Event{}
}

func expectNone(t *testing.T, s *Subscriber) {
	t.Helper()
	select {
	case ev := <-s.C():
		t.Fatalf("unexpected event: %+v", ev)
	default:
	}
}

func TestTopics_NamesAndParse(t *testing.T) {
	if got := ConversationTopic(42); got != "conversation:42" {
		t.Fatalf("ConversationTopic=%q", got)
	}
	if id, ok := ParseConversationTopic("conversation:42"); !ok || id != 42 {
		t.Fatalf("parse: %d %v", id, ok)
	}
	for _, bad := range []string{"dashboard", "conversation:", "conversation:0", "conversation:x"} {
		if _, ok := ParseConversationTopic(bad); ok {
			t.Fatalf("%q should not parse", bad)
		}
	}
	if topicKind(DashboardTopic) != "dashboard" || topicKind("conversation:1") != "conversation" || topicKind("x") != "other" {
		t.Fatalf("topicKind labels wrong")
	}
}

func TestHub_TopicIsolation(t *testing.T) {
	h := NewHub(8)
	a := h.Subscribe(ConversationTopic(1))
	b := h.Subscribe(ConversationTopic(2))
	dash := h.Subscribe(DashboardTopic)

	h.Publish(ConversationTopic(1), Event{Type: TypeNewMessage, Data: "hi"})

	ev := recv(t, a)
	if ev.Type != TypeNewMessage || ev.Topic != "conversation:1" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	expectNone(t, b)
	expectNone(t, dash)
}

func TestHub_JoinLeaveIdempotent(t *testing.T) {
	h := NewHub(8)
	s := h.NewSubscriber()
	topic := ConversationTopic(5)

	h.Join(s, topic)
	h.Join(s, topic)
	h.Publish(topic, Event{Type: TypeNewMessage})
	recv(t, s)
	expectNone(t, s) // one delivery despite double join

	h.Leave(s, topic)
	h.Leave(s, topic)
	h.Leave(s, "never-joined")
	h.Publish(topic, Event{Type: TypeNewMessage})
	expectNone(t, s)

	if got := h.Topics(s); len(got) != 0 {
		t.Fatalf("topics after leave: %v", got)
	}
}

func TestHub_OrderPreservedPerTopic(t *testing.T) {
	h := NewHub(128)
	s := h.Subscribe(DashboardTopic)
	for i := 0; i < 100; i++ {
		h.Publish(DashboardTopic, Event{Type: TypeDashboardUpdate, Data: i})
	}
	for i := 0; i < 100; i++ {
		if ev := recv(t, s); ev.Data != i {
			t.Fatalf("event %d out of order: %+v", i, ev)
		}
	}
}

func TestHub_FullQueueDropsOnlyForSlowSubscriber(t *testing.T) {
	h := NewHub(2)
	slow := h.Subscribe(DashboardTopic)
	fast := h.Subscribe(DashboardTopic)

	for i := 0; i < 3; i++ {
		h.Publish(DashboardTopic, Event{Type: TypeDashboardUpdate, Data: i})
		if i < 2 {
			recv(t, fast)
		}
	}
	recv(t, fast)

	if slow.Dropped() != 1 {
		t.Fatalf("slow subscriber should drop one event, dropped=%d", slow.Dropped())
	}
	if fast.Dropped() != 0 {
		t.Fatalf("fast subscriber dropped %d", fast.Dropped())
	}
	if ev := recv(t, slow); ev.Data != 0 {
		t.Fatalf("slow subscriber should keep the oldest events: %+v", ev)
	}
}

func TestHub_RemoveClosesAndIsIdempotent(t *testing.T) {
	h := NewHub(4)
	s := h.Subscribe(DashboardTopic)
	if h.SubscriberCount() != 1 {
		t.Fatalf("count=%d", h.SubscriberCount())
	}

	h.Remove(s)
	h.Remove(s)
	if _, ok := <-s.C(); ok {
		t.Fatalf("queue should be closed")
	}
	if h.SubscriberCount() != 0 {
		t.Fatalf("count after remove=%d", h.SubscriberCount())
	}

	// Publishing and joining after removal must not panic.
	h.Publish(DashboardTopic, Event{Type: TypeDashboardUpdate})
	h.Join(s, DashboardTopic)
	if h.Deliver(s, Event{Type: TypeAck}) {
		t.Fatalf("Deliver to removed subscriber should fail")
	}
}

func TestHub_ConcurrentPublishAndChurn(t *testing.T) {
	h := NewHub(16)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				h.Publish(DashboardTopic, Event{Type: TypeDashboardUpdate})
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				s := h.Subscribe(DashboardTopic)
				h.Join(s, ConversationTopic(uint(i+1)))
				h.Remove(s)
			}
		}()
	}
	wg.Wait()
	if h.SubscriberCount() != 0 {
		t.Fatalf("leaked subscribers: %d", h.SubscriberCount())
	}
}

func TestNewHub_DefaultBuffer(t *testing.T) {
	h := NewHub(0)
	s := h.NewSubscriber()
	if cap(s.ch) != DefaultBuffer {
		t.Fatalf("buffer=%d want %d", cap(s.ch), DefaultBuffer)
	}
}
