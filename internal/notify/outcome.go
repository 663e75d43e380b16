// Package notify composes and delivers SMS notifications for order events.
// Delivery is best effort: callers fold the outcome into their response and
// never fail a committed business operation over it.
package notify

// Outcome reports what happened to one notification attempt.
type Outcome struct {
	Sent  bool   `json:"sms_sent"`
	Error string `json:"sms_error,omitempty"`
}
