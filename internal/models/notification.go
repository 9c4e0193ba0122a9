package models

import (
	"time"

	"github.com/google/uuid"
)

// Channel is the delivery method of a notification.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelInApp Channel = "in_app"
	// SMS and push are reserved; no sender is wired for them yet.
	ChannelSMS  Channel = "sms"
	ChannelPush Channel = "push"
)

// NotificationStatus is the delivery state of a notification. Valid
// transitions: pending->sent, pending->failed, sent->delivered.
type NotificationStatus string

const (
	NotificationPending   NotificationStatus = "pending"
	NotificationSent      NotificationStatus = "sent"
	NotificationFailed    NotificationStatus = "failed"
	NotificationDelivered NotificationStatus = "delivered"
)

// NotificationKind classifies a notification.
type NotificationKind string

const (
	KindAlertNotification NotificationKind = "alert_notification"
	KindReminder          NotificationKind = "reminder"
	KindEscalationNotice  NotificationKind = "escalation_notice"
	KindStatusUpdate      NotificationKind = "status_update"
)

// Notification is one delivery-channel attempt record belonging to an alert.
// There is at most one row per (alert, channel); a retried dispatch updates
// the same row.
type Notification struct {
	ID            uuid.UUID          `json:"id"`
	AlertID       uuid.UUID          `json:"alert_id"`
	RecipientID   int64              `json:"recipient_id"`
	Kind          NotificationKind   `json:"kind"`
	Subject       string             `json:"subject"`
	Content       string             `json:"content"`
	Channel       Channel            `json:"channel"`
	Status        NotificationStatus `json:"status"`
	SentAt        *time.Time         `json:"sent_at,omitempty"`
	FailedAt      *time.Time         `json:"failed_at,omitempty"`
	FailureReason string             `json:"failure_reason,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
}

// MarkSent records successful delivery.
func (n *Notification) MarkSent(at time.Time) {
	n.Status = NotificationSent
	n.SentAt = &at
	n.FailedAt = nil
	n.FailureReason = ""
}

// MarkFailed records a delivery failure with its reason.
func (n *Notification) MarkFailed(at time.Time, reason string) {
	n.Status = NotificationFailed
	n.FailedAt = &at
	n.FailureReason = reason
}

// MarkDelivered upgrades a sent notification to delivered (receipt path).
func (n *Notification) MarkDelivered() error {
	if n.Status != NotificationSent {
		return ErrInvalidTransition
	}
	n.Status = NotificationDelivered
	return nil
}
