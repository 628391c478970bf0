package amqp

import (
	"encoding/json"
	"time"
)

// Notification kinds carried on the alert queue.
const (
	KindBudgetAlert   = "budget_alert"
	KindPasswordReset = "password_reset"
)

// NotificationMessage is the envelope consumed by the alert worker. Delivery
// is fire-and-forget: the web process publishes and moves on, so a slow or
// unreachable mail relay never blocks a render.
type NotificationMessage struct {
	Kind      string    `json:"kind"`
	To        string    `json:"to"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`

	// Optional SMTP sender credentials captured from the session at publish
	// time. Empty credentials make the worker skip delivery silently.
	SMTPEmail    string `json:"smtp_email,omitempty"`
	SMTPPassword string `json:"smtp_password,omitempty"`
}

// NewBudgetAlertMessage builds the over-budget notification for one category.
func NewBudgetAlertMessage(to, category, overage string) *NotificationMessage {
	return &NotificationMessage{
		Kind:      KindBudgetAlert,
		To:        to,
		Subject:   "Budget Alert",
		Body:      category + ": over by " + overage,
		Timestamp: time.Now(),
	}
}

// NewPasswordResetMessage builds the reset-token email.
func NewPasswordResetMessage(to, token string) *NotificationMessage {
	return &NotificationMessage{
		Kind:      KindPasswordReset,
		To:        to,
		Subject:   "Password Reset",
		Body:      "Your password reset token is: " + token,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *NotificationMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// NotificationMessageFromJSON decodes a message from JSON bytes.
func NotificationMessageFromJSON(data []byte) (*NotificationMessage, error) {
	var msg NotificationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
