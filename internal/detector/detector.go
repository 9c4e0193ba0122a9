// Package detector periodically scans pending flight requests and raises
// timeline alerts as departures approach. The same pass also selects stale
// critical alerts for escalation.
package detector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"flight-alert-service/internal/logging"
	"flight-alert-service/internal/models"
)

// Thresholds are the fixed hours-before-departure boundaries, descending. A
// request first observed inside several thresholds fires all of them in one
// pass: catch-up is intentional.
var Thresholds = []int{72, 48, 24, 12, 6}

// Look-ahead window for the deadline scan.
const (
	windowStart = time.Hour
	windowEnd   = 72 * time.Hour
)

// DeadlineRegistry is the read-only view over pending requests and their
// earliest departure instants.
type DeadlineRegistry interface {
	PendingRequestsWithDeparturesIn(ctx context.Context, from, to time.Time) ([]models.FlightRequest, error)
}

// AlertStore is the alert persistence the detector needs.
type AlertStore interface {
	TimelineAlertExists(ctx context.Context, requestID uuid.UUID, threshold int) (bool, error)
	CreateAlert(ctx context.Context, a *models.Alert) error
	EscalatableAlerts(ctx context.Context, olderThan time.Time) ([]uuid.UUID, error)
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

// Escalator receives stale critical alerts selected by the SLA scan.
type Escalator interface {
	EnqueueEscalate(alertID uuid.UUID)
}

// Options configures a detector Service.
type Options struct {
	Registry   DeadlineRegistry
	Alerts     AlertStore
	Resolver   RecipientResolver
	Dispatcher Dispatcher
	Escalator  Escalator
	Logger     *logging.Logger

	// CheckInterval is the scan period; SLAWindow is how long a critical
	// alert may stay unacknowledged before escalation begins.
	CheckInterval time.Duration
	SLAWindow     time.Duration

	Now func() time.Time
}

// Service is the periodic checker.
type Service struct {
	registry   DeadlineRegistry
	alerts     AlertStore
	resolver   RecipientResolver
	dispatcher Dispatcher
	escalator  Escalator
	logger     *logging.Logger

	interval  time.Duration
	slaWindow time.Duration
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

func New(opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.CheckInterval == 0 {
		opts.CheckInterval = 5 * time.Minute
	}
	if opts.SLAWindow == 0 {
		opts.SLAWindow = time.Hour
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		registry:   opts.Registry,
		alerts:     opts.Alerts,
		resolver:   opts.Resolver,
		dispatcher: opts.Dispatcher,
		escalator:  opts.Escalator,
		logger:     opts.Logger,
		interval:   opts.CheckInterval,
		slaWindow:  opts.SLAWindow,
		now:        opts.Now,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start launches the periodic scan loop.
func (s *Service) Start(wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		s.logger.Infof("Flight alert checker started (interval %v)", s.interval)
		for {
			select {
			case <-s.ctx.Done():
				s.logger.Infof("Flight alert checker stopped")
				return
			case <-ticker.C:
				s.RunOnce(s.ctx)
			}
		}
	}()
}

// Stop cancels the scan loop.
func (s *Service) Stop() {
	s.cancel()
}

// RunOnce performs one full checker pass: timeline detection plus the SLA
// escalation scan.
func (s *Service) RunOnce(ctx context.Context) {
	if err := s.CheckTimelineAlerts(ctx); err != nil {
		s.logger.Errorf("Timeline alert scan failed: %v", err)
	}
	if err := s.ScheduleEscalations(ctx); err != nil {
		s.logger.Errorf("Escalation scan failed: %v", err)
	}
}

// CheckTimelineAlerts scans every pending request departing inside the
// look-ahead window. Per-request errors are logged and skipped so one bad
// request never aborts the batch.
func (s *Service) CheckTimelineAlerts(ctx context.Context) error {
	now := s.now()
	requests, err := s.registry.PendingRequestsWithDeparturesIn(ctx, now.Add(windowStart), now.Add(windowEnd))
	if err != nil {
		return fmt.Errorf("querying pending requests: %w", err)
	}

	for i := range requests {
		if err := s.checkRequest(ctx, &requests[i], now); err != nil {
			s.logger.Errorf("Alert check for request %s failed: %v", requests[i].RequestNumber, err)
		}
	}
	return nil
}

// checkRequest fires every threshold the request has crossed that has not
// fired before. The existence check only asks whether a threshold has ever
// fired for this request, so a request first seen deep inside the window
// catches up on all crossed thresholds in one pass.
func (s *Service) checkRequest(ctx context.Context, r *models.FlightRequest, now time.Time) error {
	hours := r.HoursUntilDeparture(now)
	if hours <= 0 {
		return nil
	}

	for _, threshold := range Thresholds {
		if hours > float64(threshold) {
			continue
		}
		exists, err := s.alerts.TimelineAlertExists(ctx, r.ID, threshold)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if err := s.createTimelineAlerts(ctx, r, threshold, hours); err != nil {
			return err
		}
	}
	return nil
}

// createTimelineAlerts raises one alert per recipient for the crossed
// threshold: every operations user plus the original requester.
func (s *Service) createTimelineAlerts(ctx context.Context, r *models.FlightRequest, threshold int, hours float64) error {
	priority := models.TimelinePriority(threshold)
	meta := models.AlertMetadata{
		Threshold:           threshold,
		HoursUntilDeparture: hours,
	}

	operations, err := s.resolver.UsersWithRole(ctx, models.RoleOperationsStaff, models.RoleOperationsAdmin)
	if err != nil {
		return fmt.Errorf("resolving operations recipients: %w", err)
	}

	for _, u := range operations {
		a := &models.Alert{
			RequestID: r.ID,
			UserID:    u.ID,
			Kind:      models.AlertKindTimeline,
			Title:     fmt.Sprintf("Flight Alert: %dh until departure", threshold),
			Message:   buildOperationsMessage(r, hours),
			Priority:  priority,
			Status:    models.AlertStatusActive,
			Metadata:  meta,
		}
		if err := s.alerts.CreateAlert(ctx, a); err != nil {
			return fmt.Errorf("creating timeline alert: %w", err)
		}
		s.dispatcher.EnqueueDispatch(a.ID)
	}

	if r.RequesterID != 0 {
		requester, err := s.resolver.UserByID(ctx, r.RequesterID)
		switch {
		case errors.Is(err, models.ErrNotFound):
			s.logger.Warnf("Requester %d of request %s not found", r.RequesterID, r.RequestNumber)
		case err != nil:
			return fmt.Errorf("resolving requester: %w", err)
		default:
			a := &models.Alert{
				RequestID: r.ID,
				UserID:    requester.ID,
				Kind:      models.AlertKindTimeline,
				Title:     fmt.Sprintf("Flight Status Reminder: %dh until departure", threshold),
				Message:   buildRequesterMessage(r, threshold),
				Priority:  priority,
				Status:    models.AlertStatusActive,
				Metadata:  meta,
			}
			if err := s.alerts.CreateAlert(ctx, a); err != nil {
				return fmt.Errorf("creating requester alert: %w", err)
			}
			s.dispatcher.EnqueueDispatch(a.ID)
		}
	}

	s.logger.Infof("Created %dh timeline alerts for request %s", threshold, r.RequestNumber)
	return nil
}

// ScheduleEscalations selects active critical alerts older than the SLA
// window and hands each to the escalation scheduler.
func (s *Service) ScheduleEscalations(ctx context.Context) error {
	ids, err := s.alerts.EscalatableAlerts(ctx, s.now().Add(-s.slaWindow))
	if err != nil {
		return fmt.Errorf("scanning escalatable alerts: %w", err)
	}
	for _, id := range ids {
		s.escalator.EnqueueEscalate(id)
	}
	if len(ids) > 0 {
		s.logger.Infof("Queued %d alerts for escalation", len(ids))
	}
	return nil
}

func buildOperationsMessage(r *models.FlightRequest, hours float64) string {
	return fmt.Sprintf(
		"Flight Request %s requires attention.\n\n"+
			"Time until departure: %.1f hours\n"+
			"Status: %s\n"+
			"VIP: %s\n"+
			"Route: %s -> %s\n"+
			"Passengers: %d\n\n"+
			"Please review and process this request.",
		r.RequestNumber, hours, r.Status, r.VIPCodename,
		r.DepartureAirport, r.ArrivalAirport, r.Passengers,
	)
}

func buildRequesterMessage(r *models.FlightRequest, threshold int) string {
	return fmt.Sprintf(
		"Your flight request %s is %d hours from departure.\n\n"+
			"Current Status: %s\n"+
			"Route: %s -> %s\n"+
			"Departure: %s\n\n"+
			"Please ensure all required documentation is submitted.",
		r.RequestNumber, threshold, r.Status,
		r.DepartureAirport, r.ArrivalAirport,
		r.DepartureTime.Format("January 02, 2006 at 15:04"),
	)
}
