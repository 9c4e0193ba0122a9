package models

import (
	"time"

	"github.com/google/uuid"
)

// AlertKind identifies what produced an alert.
type AlertKind string

const (
	AlertKindTimeline     AlertKind = "timeline"
	AlertKindStatusChange AlertKind = "status_change"
	AlertKindEscalation   AlertKind = "escalation"
	AlertKindSystem       AlertKind = "system"
)

// AlertStatus is the lifecycle state of an alert. Acknowledged and dismissed
// are terminal for escalation purposes.
type AlertStatus string

const (
	AlertStatusActive       AlertStatus = "active"
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	AlertStatusDismissed    AlertStatus = "dismissed"
	AlertStatusEscalated    AlertStatus = "escalated"
)

// Priority is totally ordered; higher values are more urgent.
type Priority int

const (
	PriorityLow Priority = iota + 1
	PriorityMedium
	PriorityHigh
	PriorityUrgent
	PriorityCritical
)

// MaxEscalationLevel is the terminal escalation tier.
const MaxEscalationLevel = 3

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	case PriorityUrgent:
		return "urgent"
	case PriorityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Escalated returns the priority one step up the ladder. Critical stays
// critical.
func (p Priority) Escalated() Priority {
	if p >= PriorityCritical {
		return PriorityCritical
	}
	return p + 1
}

// AlertMetadata carries the detection fingerprint and escalation lineage.
// Fields are populated per kind: Threshold and HoursUntilDeparture for
// timeline alerts, OriginalAlertID/EscalationLevel/EscalatedFrom for
// escalation alerts, OldStatus/NewStatus for status-change alerts. Stored as
// JSONB; Threshold doubles as the idempotency key for timeline detection.
type AlertMetadata struct {
	Threshold           int       `json:"threshold,omitempty"`
	HoursUntilDeparture float64   `json:"hours_until_departure,omitempty"`
	OriginalAlertID     uuid.UUID `json:"original_alert_id,omitempty"`
	EscalationLevel     int       `json:"escalation_level,omitempty"`
	EscalatedFrom       string    `json:"escalated_from,omitempty"`
	OldStatus           string    `json:"old_status,omitempty"`
	NewStatus           string    `json:"new_status,omitempty"`
}

// Alert is one unit of required human attention tied to a flight request and
// a recipient.
type Alert struct {
	ID              uuid.UUID     `json:"id"`
	RequestID       uuid.UUID     `json:"request_id"`
	UserID          int64         `json:"user_id"`
	Kind            AlertKind     `json:"kind"`
	Title           string        `json:"title"`
	Message         string        `json:"message"`
	Priority        Priority      `json:"priority"`
	Status          AlertStatus   `json:"status"`
	EscalationLevel int           `json:"escalation_level"`
	CreatedAt       time.Time     `json:"created_at"`
	AcknowledgedAt  *time.Time    `json:"acknowledged_at,omitempty"`
	AcknowledgedBy  *int64        `json:"acknowledged_by,omitempty"`
	EscalatedAt     *time.Time    `json:"escalated_at,omitempty"`
	Metadata        AlertMetadata `json:"metadata"`
}

// Active reports whether the alert may still be escalated or dispatched.
func (a *Alert) Active() bool {
	return a.Status == AlertStatusActive
}

// Acknowledge transitions the alert to acknowledged and records who acted.
// Returns ErrNotActive if the alert is no longer active.
func (a *Alert) Acknowledge(userID int64, at time.Time) error {
	if a.Status != AlertStatusActive {
		return ErrNotActive
	}
	a.Status = AlertStatusAcknowledged
	a.AcknowledgedAt = &at
	a.AcknowledgedBy = &userID
	return nil
}

// Dismiss transitions the alert to dismissed.
func (a *Alert) Dismiss() error {
	if a.Status != AlertStatusActive {
		return ErrNotActive
	}
	a.Status = AlertStatusDismissed
	return nil
}

// Escalate advances the alert one escalation level. Only the escalation
// scheduler calls this; the level never decreases and never skips.
func (a *Alert) Escalate(at time.Time) error {
	if a.Status != AlertStatusActive {
		return ErrNotActive
	}
	a.Status = AlertStatusEscalated
	a.EscalatedAt = &at
	a.EscalationLevel++
	return nil
}

// TimelinePriority maps an hours-before-departure threshold to the fixed
// priority for timeline alerts.
func TimelinePriority(threshold int) Priority {
	switch threshold {
	case 72:
		return PriorityLow
	case 48:
		return PriorityMedium
	case 24:
		return PriorityHigh
	case 12:
		return PriorityUrgent
	case 6:
		return PriorityCritical
	default:
		return PriorityMedium
	}
}
