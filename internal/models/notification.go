// internal/models/notification.go
package models

import "time"

// Notification channels.
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

// Delivery statuses of a notification attempt.
const (
	DeliverySent     = "sent"
	DeliveryFailed   = "failed"
	DeliveryDisabled = "disabled"
	DeliverySkipped  = "skipped"
)

// Notification records one delivery attempt on one channel.
type Notification struct {
	ID            string    `json:"id"`
	ApplicationID string    `json:"applicationId"`
	RecipientID   string    `json:"recipientId"`
	Channel       string    `json:"channel"`
	Status        string    `json:"status"`
	MessageID     string    `json:"messageId,omitempty"`
	Error         string    `json:"error,omitempty"`
	SentAt        time.Time `json:"sentAt"`
}

// DecisionMessage is the rendered content sent to a student.
type DecisionMessage struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
	SMS     string `json:"sms"`
}
