package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const Version = 1

// Envelope is the wire form of every domain event.
type Envelope struct {
	EventID       string          `json:"event_id"`
	Type          string          `json:"type"`
	Version       int             `json:"event_version"`
	Timestamp     time.Time       `json:"timestamp"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// Keyed payloads choose their own partition key.
type Keyed interface {
	EventKey() string
}

// New stamps the envelope with a fresh id and the current UTC time.
func New(producer, eventType string, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	env := Envelope{
		EventID:   uuid.NewString(),
		Type:      eventType,
		Version:   Version,
		Timestamp: time.Now().UTC(),
		Producer:  producer,
		Payload:   b,
	}
	if k, ok := payload.(Keyed); ok {
		env.CorrelationID = k.EventKey()
	}
	return env, nil
}

func Decode(b []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return env, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}
