package models

import "time"

// MessageEnvelope is the broker representation of an analytics event.
type MessageEnvelope struct {
	ID        string                 `json:"id"`
	Source    string                 `json:"source"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload"`
	Metadata  Metadata               `json:"metadata"`
}

type Metadata struct {
	TraceID   string                 `json:"trace_id,omitempty"`
	EventName string                 `json:"event_name,omitempty"`
	SessionID string                 `json:"session_id,omitempty"`
	Delivery  map[string]interface{} `json:"delivery,omitempty"`
}
