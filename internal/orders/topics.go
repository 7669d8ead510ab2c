package orders

import "strconv"

const (
	TopicOrderCreated       = "order.created"
	TopicOrderStatusChanged = "order.status_changed"
	TopicOrderCancelled     = "order.cancelled"
	TopicReleaseRequested   = "inventory.release.requested"
)

var topicByEvent = map[string]string{
	EventOrderCreated:       TopicOrderCreated,
	EventOrderStatusChanged: TopicOrderStatusChanged,
	EventOrderCancelled:     TopicOrderCancelled,
	EventReleaseRequested:   TopicReleaseRequested,
}

// TopicFor maps an event type to its Kafka topic. Unknown types go to a topic
// named after the type.
func TopicFor(eventType string) string {
	if t, ok := topicByEvent[eventType]; ok {
		return t
	}
	return eventType
}

// ProductKey keys reconciliation messages by product so releases for one
// product are applied in order.
func ProductKey(productID int64) []byte { return []byte(strconv.FormatInt(productID, 10)) }
