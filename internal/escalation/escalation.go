// Package escalation advances unacknowledged alerts up a fixed chain of
// increasingly senior recipients. Each chain moves strictly 0 -> 1 -> 2 -> 3; an
// acknowledged or dismissed alert cancels all future escalation for its
// chain.
package escalation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"flight-alert-service/internal/logging"
	"flight-alert-service/internal/models"
	"flight-alert-service/internal/scheduler"
)

// AlertStore is the alert persistence the escalation scheduler needs.
// EscalateAlert must be a compare-and-set guarded by the active status.
type AlertStore interface {
	GetAlert(ctx context.Context, id uuid.UUID) (*models.Alert, error)
	EscalateAlert(ctx context.Context, id uuid.UUID) (*models.Alert, error)
	CreateAlert(ctx context.Context, a *models.Alert) error
}

// RecipientResolver maps roles to users. Injected so tests can substitute a
// fixture set for the live directory.
type RecipientResolver interface {
	UsersWithRole(ctx context.Context, roles ...models.Role) ([]models.User, error)
	UserByID(ctx context.Context, id int64) (models.User, error)
}

// Dispatcher receives every newly created escalation alert for delivery.
type Dispatcher interface {
	EnqueueDispatch(alertID uuid.UUID)
}

// TaskScheduler runs escalate invocations, immediately or after a delay.
type TaskScheduler interface {
	Enqueue(queue string, t scheduler.Task)
	EnqueueAfter(queue string, delay time.Duration, t scheduler.Task)
}

// Retry policy for a whole escalate invocation.
const (
	escalateMaxAttempts = 2
	escalateBackoff     = 30 * time.Second
)

var titlePrefixes = map[int]string{
	1: "ESCALATED: ",
	2: "MANAGEMENT ESCALATION: ",
	3: "CRITICAL SYSTEM ESCALATION: ",
}

// Options configures an escalation Service.
type Options struct {
	Alerts     AlertStore
	Resolver   RecipientResolver
	Dispatcher Dispatcher
	Runner     TaskScheduler
	Logger     *logging.Logger
	Now        func() time.Time
}

// Service is the escalation scheduler.
type Service struct {
	alerts     AlertStore
	resolver   RecipientResolver
	dispatcher Dispatcher
	runner     TaskScheduler
	logger     *logging.Logger
	now        func() time.Time
}

func New(opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		alerts:     opts.Alerts,
		resolver:   opts.Resolver,
		dispatcher: opts.Dispatcher,
		runner:     opts.Runner,
		logger:     opts.Logger,
		now:        opts.Now,
	}
}

// EnqueueEscalate places an immediate escalate invocation on the alerts
// queue. The SLA scan uses this to seed chains.
func (s *Service) EnqueueEscalate(alertID uuid.UUID) {
	s.runner.Enqueue(scheduler.QueueAlerts, s.task(alertID))
}

func (s *Service) task(alertID uuid.UUID) scheduler.Task {
	return scheduler.Task{
		Name:        fmt.Sprintf("escalate:%s", alertID),
		MaxAttempts: escalateMaxAttempts,
		Backoff:     escalateBackoff,
		Run: func(ctx context.Context) error {
			return s.Escalate(ctx, alertID)
		},
	}
}

// Escalate runs one escalation step for the given alert. A missing alert is
// a successful no-op; an alert no longer active means the recipient acted
// first and the chain is cancelled; a chain already at the maximum level is
// never advanced.
func (s *Service) Escalate(ctx context.Context, alertID uuid.UUID) error {
	alert, err := s.alerts.GetAlert(ctx, alertID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Warnf("Alert %s not found for escalation", alertID)
			return nil
		}
		return err
	}
	if !alert.Active() {
		s.logger.Debugf("Alert %s is %s, skipping escalation", alertID, alert.Status)
		return nil
	}
	if alert.EscalationLevel >= models.MaxEscalationLevel {
		s.logger.Warnf("Maximum escalation level reached for alert %s", alertID)
		return nil
	}

	updated, err := s.alerts.EscalateAlert(ctx, alertID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Warnf("Alert %s not found for escalation", alertID)
			return nil
		}
		if errors.Is(err, models.ErrNotActive) {
			// Lost the race against an acknowledgement.
			s.logger.Debugf("Alert %s no longer active, skipping escalation", alertID)
			return nil
		}
		return err
	}

	level := updated.EscalationLevel
	role, ok := models.EscalationRole(level)
	if !ok {
		s.logger.Warnf("Maximum escalation level reached for alert %s", alertID)
		return nil
	}

	recipients, err := s.resolver.UsersWithRole(ctx, role)
	if err != nil {
		return fmt.Errorf("resolving %s recipients for alert %s: %w", role, alertID, err)
	}
	if len(recipients) == 0 {
		s.logger.Warnf("No %s users to escalate alert %s to", role, alertID)
		return nil
	}

	escalatedFrom := s.previousRole(ctx, updated)

	var successor *models.Alert
	for _, u := range recipients {
		na := &models.Alert{
			RequestID:       updated.RequestID,
			UserID:          u.ID,
			Kind:            models.AlertKindEscalation,
			Title:           titlePrefixes[level] + baseTitle(updated.Title),
			Message:         buildEscalationMessage(updated, role, level),
			Priority:        updated.Priority.Escalated(),
			Status:          models.AlertStatusActive,
			EscalationLevel: level,
			Metadata: models.AlertMetadata{
				Threshold:       updated.Metadata.Threshold,
				OriginalAlertID: updated.ID,
				EscalationLevel: level,
				EscalatedFrom:   escalatedFrom,
			},
		}
		if err := s.alerts.CreateAlert(ctx, na); err != nil {
			return fmt.Errorf("creating level %d alert for alert %s: %w", level, alertID, err)
		}
		s.dispatcher.EnqueueDispatch(na.ID)
		if successor == nil {
			successor = na
		}
	}

	s.logger.Infof("Alert %s escalated to %s (level %d)", alertID, role, level)

	// The first successor is the chain representative; if it too goes
	// unacknowledged, the chain advances after the level's wait.
	if level < models.MaxEscalationLevel {
		s.runner.EnqueueAfter(scheduler.QueueAlerts, WaitTime(level), s.task(successor.ID))
	}
	return nil
}

// previousRole reports the role of the recipient the chain is escalating
// away from.
func (s *Service) previousRole(ctx context.Context, alert *models.Alert) string {
	u, err := s.resolver.UserByID(ctx, alert.UserID)
	if err != nil {
		return ""
	}
	return string(u.Role)
}

// WaitTime is how long a freshly escalated chain waits before the next
// level is considered.
func WaitTime(level int) time.Duration {
	switch level {
	case 1:
		return 2 * time.Hour
	case 2:
		return time.Hour
	default:
		return 30 * time.Minute
	}
}

// baseTitle strips any escalation prefix so chained escalations do not stack
// prefixes.
func baseTitle(title string) string {
	for _, p := range titlePrefixes {
		if strings.HasPrefix(title, p) {
			return title[len(p):]
		}
	}
	return title
}

func buildEscalationMessage(original *models.Alert, role models.Role, level int) string {
	return fmt.Sprintf(
		"ESCALATION LEVEL %d: %s attention required.\n\n"+
			"Original Alert: %s\n"+
			"Original Priority: %s\n"+
			"Created: %s\n\n"+
			"This alert has been unacknowledged for an extended period and requires immediate attention.\n\n"+
			"Original Message:\n%s",
		level,
		role,
		baseTitle(original.Title),
		original.Priority,
		original.CreatedAt.Format("January 02, 2006 at 15:04"),
		original.Message,
	)
}
