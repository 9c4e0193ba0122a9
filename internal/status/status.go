// Package status raises alerts when a flight request moves through a
// significant status transition. Events arrive from the request system over
// Kafka.
package status

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"flight-alert-service/internal/logging"
	"flight-alert-service/internal/models"
)

// RequestRegistry fetches the read-only view of one flight request.
type RequestRegistry interface {
	GetRequest(ctx context.Context, id uuid.UUID) (*models.FlightRequest, error)
}

// AlertStore persists created alerts.
type AlertStore interface {
	CreateAlert(ctx context.Context, a *models.Alert) error
}

// RecipientResolver maps roles to users and ids to requesters.
type RecipientResolver interface {
	UsersWithRole(ctx context.Context, roles ...models.Role) ([]models.User, error)
	UserByID(ctx context.Context, id int64) (models.User, error)
}

// Dispatcher receives every created alert for delivery.
type Dispatcher interface {
	EnqueueDispatch(alertID uuid.UUID)
}

// significantTransitions lists the old->new pairs worth alerting on. The
// empty old status covers a request entering the system.
var significantTransitions = map[[2]string]bool{
	{"sent", "received"}:              true,
	{"received", "under_review"}:      true,
	{"under_review", "under_process"}: true,
	{"under_process", "completed"}:    true,
	{"under_process", "unable"}:       true,
	{"", "sent"}:                      true,
}

// Options configures a status Service.
type Options struct {
	Requests   RequestRegistry
	Alerts     AlertStore
	Resolver   RecipientResolver
	Dispatcher Dispatcher
	Logger     *logging.Logger
}

// Service creates status-change alerts.
type Service struct {
	requests   RequestRegistry
	alerts     AlertStore
	resolver   RecipientResolver
	dispatcher Dispatcher
	logger     *logging.Logger
}

func New(opts Options) *Service {
	return &Service{
		requests:   opts.Requests,
		alerts:     opts.Alerts,
		resolver:   opts.Resolver,
		dispatcher: opts.Dispatcher,
		logger:     opts.Logger,
	}
}

// HandleStatusChange raises status-change alerts for one transition. An
// insignificant transition or a vanished request is a no-op.
func (s *Service) HandleStatusChange(ctx context.Context, requestID uuid.UUID, oldStatus, newStatus string) error {
	if !SignificantChange(oldStatus, newStatus) {
		s.logger.Debugf("Status change %q -> %q on request %s not significant, skipping", oldStatus, newStatus, requestID)
		return nil
	}

	r, err := s.requests.GetRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Warnf("Request %s not found for status-change alert", requestID)
			return nil
		}
		return err
	}

	recipients, err := s.recipients(ctx, r, newStatus)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		return nil
	}

	priority := ChangePriority(newStatus)
	for _, u := range recipients {
		a := &models.Alert{
			RequestID: r.ID,
			UserID:    u.ID,
			Kind:      models.AlertKindStatusChange,
			Title:     fmt.Sprintf("Flight Status Updated: %s", r.RequestNumber),
			Message:   buildMessage(r, oldStatus, newStatus),
			Priority:  priority,
			Status:    models.AlertStatusActive,
			Metadata: models.AlertMetadata{
				OldStatus: oldStatus,
				NewStatus: newStatus,
			},
		}
		if err := s.alerts.CreateAlert(ctx, a); err != nil {
			return fmt.Errorf("creating status-change alert for request %s: %w", requestID, err)
		}
		s.dispatcher.EnqueueDispatch(a.ID)
	}

	s.logger.Infof("Created %d status-change alerts for request %s (%s -> %s)",
		len(recipients), r.RequestNumber, oldStatus, newStatus)
	return nil
}

// recipients picks who is told about the new status: operations for inbound
// work, the requester for terminal outcomes.
func (s *Service) recipients(ctx context.Context, r *models.FlightRequest, newStatus string) ([]models.User, error) {
	switch newStatus {
	case "received", "under_review":
		return s.resolver.UsersWithRole(ctx, models.RoleOperationsStaff, models.RoleOperationsAdmin)
	case "completed", "unable":
		if r.RequesterID == 0 {
			return nil, nil
		}
		u, err := s.resolver.UserByID(ctx, r.RequesterID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				s.logger.Warnf("Requester %d of request %s not found", r.RequesterID, r.RequestNumber)
				return nil, nil
			}
			return nil, err
		}
		return []models.User{u}, nil
	default:
		return nil, nil
	}
}

// SignificantChange reports whether a transition warrants an alert.
func SignificantChange(oldStatus, newStatus string) bool {
	return significantTransitions[[2]string{oldStatus, newStatus}]
}

// ChangePriority maps a new request status to the alert priority.
func ChangePriority(newStatus string) models.Priority {
	switch newStatus {
	case "received":
		return models.PriorityLow
	case "under_review":
		return models.PriorityMedium
	case "under_process":
		return models.PriorityHigh
	case "completed":
		return models.PriorityLow
	case "unable":
		return models.PriorityHigh
	default:
		return models.PriorityMedium
	}
}

func buildMessage(r *models.FlightRequest, oldStatus, newStatus string) string {
	prev := oldStatus
	if prev == "" {
		prev = "none"
	}
	return fmt.Sprintf(
		"Flight Request %s status has been updated.\n\n"+
			"Previous Status: %s\n"+
			"New Status: %s\n\n"+
			"VIP: %s\n"+
			"Route: %s -> %s\n"+
			"Passengers: %d\n\n%s",
		r.RequestNumber, prev, newStatus, r.VIPCodename,
		r.DepartureAirport, r.ArrivalAirport, r.Passengers,
		actionMessage(newStatus),
	)
}

func actionMessage(status string) string {
	switch status {
	case "received":
		return "This request is now ready for review by operations staff."
	case "under_review":
		return "This request is currently being reviewed."
	case "under_process":
		return "This request is being processed. Flight arrangements are being made."
	case "completed":
		return "This request has been completed successfully. Flight details are finalized."
	case "unable":
		return "This request could not be processed. Please review the details and contact operations if needed."
	default:
		return "Please review this request in the flight management system."
	}
}
