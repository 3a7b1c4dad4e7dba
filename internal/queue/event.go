// Package queue publishes and consumes auth audit events over RabbitMQ.
// Publishing is best-effort: a broker outage never blocks or fails the
// request that produced the event.
package queue

import "time"

// authQueueName is the durable queue carrying audit events.
const authQueueName = "auth.events"

// AuthEventMessage is the wire shape of one audit record.
type AuthEventMessage struct {
	ID     string    `json:"id"`      // unique event id
	Type   string    `json:"type"`    // signup | signin | okta_login | logout
	UserID uint64    `json:"user_id"` // subject of the event
	Email  string    `json:"email,omitempty"`
	At     time.Time `json:"at"` // UTC emission time
}
