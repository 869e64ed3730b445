// Package realtime delivers events to connected clients over named topics.
//
// Delivery is best-effort and at-most-once: there is no replay, and a
// subscriber whose queue is full loses the event. Every connection is joined
// to DashboardTopic; conversation traffic flows on ConversationTopic(id).
package realtime

import (
	"strconv"
	"strings"
)

// DashboardTopic carries report status, moderation and delete notices.
const DashboardTopic = "dashboard"

const conversationPrefix = "conversation:"

// Event types pushed to clients.
const (
	TypeDashboardUpdate = "dashboard_update"
	TypeNewMessage      = "new_message"
	TypeAck             = "ack"
)

// Event is a single server push. Topic is filled in by the hub.
type Event struct {
	Type  string `json:"type"`
	Topic string `json:"topic,omitempty"`
	Data  any    `json:"data,omitempty"`
}

// Publisher accepts events for fan-out. Publish must not block on slow
// consumers.
type Publisher interface {
	Publish(topic string, ev Event)
}

// ConversationTopic names the topic for one conversation.
func ConversationTopic(id uint) string {
	return conversationPrefix + strconv.FormatUint(uint64(id), 10)
}

// ParseConversationTopic extracts the conversation id from a topic name.
func ParseConversationTopic(topic string) (uint, bool) {
	rest, ok := strings.CutPrefix(topic, conversationPrefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseUint(rest, 10, strconv.IntSize)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint(n), true
}

// topicKind is the metrics label for a topic; ids are never used as labels.
func topicKind(topic string) string {
	if topic == DashboardTopic {
		return "dashboard"
	}
	if strings.HasPrefix(topic, conversationPrefix) {
		return "conversation"
	}
	return "other"
}
