// Package dispatch delivers the notifications owed for an alert: one row per
// (alert, channel) with a terminal status, retried with backoff by the task
// layer.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"flight-alert-service/internal/logging"
	"flight-alert-service/internal/models"
	"flight-alert-service/internal/scheduler"
)

// AlertStore is the read side of the alert table the dispatcher needs.
type AlertStore interface {
	GetAlert(ctx context.Context, id uuid.UUID) (*models.Alert, error)
}

// NotificationStore persists delivery attempt records. UpsertNotification is
// keyed by (alert_id, channel) so retried dispatches update in place.
type NotificationStore interface {
	UpsertNotification(ctx context.Context, n *models.Notification) error
	MarkNotificationSent(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkNotificationFailed(ctx context.Context, id uuid.UUID, at time.Time, reason string) error
}

// UserDirectory resolves an alert's recipient to a contact address.
type UserDirectory interface {
	UserByID(ctx context.Context, id int64) (models.User, error)
}

// EmailSender delivers a directed message to an external address.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Pusher fans an in-app notification out to live sessions. Best effort.
type Pusher interface {
	SendToUser(userID int64, message []byte)
}

// OperatorNotifier surfaces an exhausted delivery to the operator channel.
type OperatorNotifier interface {
	NotifyFailure(ctx context.Context, alertID uuid.UUID, reason string)
}

// TaskScheduler enqueues dispatch work on the notifications queue.
type TaskScheduler interface {
	Enqueue(queue string, t scheduler.Task)
}

// Retry policy for a whole dispatch invocation.
const (
	dispatchMaxAttempts = 3
	dispatchBackoff     = 30 * time.Second
)

// Options configures a dispatch Service.
type Options struct {
	Alerts        AlertStore
	Notifications NotificationStore
	Users         UserDirectory
	Email         EmailSender
	Pusher        Pusher
	Operator      OperatorNotifier
	Runner        TaskScheduler
	Logger        *logging.Logger
	Now           func() time.Time
}

// Service is the notification dispatcher.
type Service struct {
	alerts   AlertStore
	notifs   NotificationStore
	users    UserDirectory
	email    EmailSender
	pusher   Pusher
	operator OperatorNotifier
	runner   TaskScheduler
	logger   *logging.Logger
	now      func() time.Time
}

// New constructs a dispatcher. Email, Pusher, Operator, and Runner are
// optional; a nil Email skips the email channel entirely.
func New(opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		alerts:   opts.Alerts,
		notifs:   opts.Notifications,
		users:    opts.Users,
		email:    opts.Email,
		pusher:   opts.Pusher,
		operator: opts.Operator,
		runner:   opts.Runner,
		logger:   opts.Logger,
		now:      opts.Now,
	}
}

// EnqueueDispatch hands an alert to the notifications queue for delivery with
// the standard retry policy.
func (s *Service) EnqueueDispatch(alertID uuid.UUID) {
	s.runner.Enqueue(scheduler.QueueNotifications, scheduler.Task{
		Name:        fmt.Sprintf("dispatch:%s", alertID),
		MaxAttempts: dispatchMaxAttempts,
		Backoff:     dispatchBackoff,
		Run: func(ctx context.Context) error {
			return s.Dispatch(ctx, alertID)
		},
		OnExhausted: func(err error) {
			s.surfaceFailure(alertID, err)
		},
	})
}

// Dispatch delivers all notifications for one alert. A missing alert is a
// successful no-op; an inactive alert means the recipient already acted and
// delivery is cancelled. A failed email send leaves the notification row
// failed and returns the error so the task layer retries the whole call.
func (s *Service) Dispatch(ctx context.Context, alertID uuid.UUID) error {
	alert, err := s.alerts.GetAlert(ctx, alertID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Warnf("Alert %s not found for notification delivery", alertID)
			return nil
		}
		return err
	}
	if !alert.Active() {
		s.logger.Debugf("Alert %s is %s, skipping delivery", alertID, alert.Status)
		return nil
	}

	user, err := s.users.UserByID(ctx, alert.UserID)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			return err
		}
		s.logger.Warnf("Recipient %d of alert %s not found, email channel skipped", alert.UserID, alertID)
	}

	var emailErr error
	if s.email != nil && user.Email != "" {
		emailErr = s.deliverEmail(ctx, alert, user)
	} else {
		s.logger.Debugf("No email address for recipient %d of alert %s, skipping email channel", alert.UserID, alertID)
	}

	if err := s.deliverInApp(ctx, alert); err != nil {
		return err
	}

	return emailErr
}

// deliverEmail creates (or resets) the email notification row, attempts the
// send, and records the terminal status.
func (s *Service) deliverEmail(ctx context.Context, alert *models.Alert, user models.User) error {
	n := &models.Notification{
		AlertID:     alert.ID,
		RecipientID: alert.UserID,
		Kind:        models.KindAlertNotification,
		Subject:     alert.Title,
		Content:     alert.Message,
		Channel:     models.ChannelEmail,
		Status:      models.NotificationPending,
	}
	if err := s.notifs.UpsertNotification(ctx, n); err != nil {
		return err
	}

	if err := s.email.Send(ctx, user.Email, n.Subject, n.Content); err != nil {
		if markErr := s.notifs.MarkNotificationFailed(ctx, n.ID, s.now(), err.Error()); markErr != nil {
			s.logger.Errorf("Failed to record delivery failure for notification %s: %v", n.ID, markErr)
		}
		s.logger.Errorf("Failed to send email notification for alert %s: %v", alert.ID, err)
		return fmt.Errorf("email delivery for alert %s: %w", alert.ID, err)
	}

	if err := s.notifs.MarkNotificationSent(ctx, n.ID, s.now()); err != nil {
		return err
	}
	s.logger.Infof("Email notification sent for alert %s to %s", alert.ID, user.Email)
	return nil
}

// deliverInApp records the in-app notification as sent immediately; delivery
// on this channel is synchronous by construction. Live sessions get a push.
func (s *Service) deliverInApp(ctx context.Context, alert *models.Alert) error {
	n := &models.Notification{
		AlertID:     alert.ID,
		RecipientID: alert.UserID,
		Kind:        models.KindAlertNotification,
		Subject:     alert.Title,
		Content:     alert.Message,
		Channel:     models.ChannelInApp,
		Status:      models.NotificationPending,
	}
	if err := s.notifs.UpsertNotification(ctx, n); err != nil {
		return err
	}
	if err := s.notifs.MarkNotificationSent(ctx, n.ID, s.now()); err != nil {
		return err
	}

	if s.pusher != nil {
		s.pusher.SendToUser(alert.UserID, []byte(fmt.Sprintf("New alert: %s", alert.Title)))
	}
	s.logger.Infof("In-app notification created for alert %s", alert.ID)
	return nil
}

// surfaceFailure runs after the task layer gives up so the failure is
// operator-visible rather than silently dropped.
func (s *Service) surfaceFailure(alertID uuid.UUID, err error) {
	s.logger.Errorf("Notification delivery for alert %s exhausted retries: %v", alertID, err)
	if s.operator != nil {
		s.operator.NotifyFailure(context.Background(), alertID, err.Error())
	}
}
