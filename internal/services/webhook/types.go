package webhook

import "time"

// Result reports what happened to one delivery. Processed is false only for
// a redelivery of an event already recorded.
type Result struct {
	Processed bool   `json:"processed"`
	EventType string `json:"event_type"`
	EventID   string `json:"event_id"`
	Outcome   string `json:"outcome,omitempty"`
	PaymentID string `json:"payment_id,omitempty"`
}

type Config struct {
	Timeout time.Duration
}
