package escalation

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"flight-alert-service/internal/logging"
	"flight-alert-service/internal/models"
	"flight-alert-service/internal/scheduler"
)

type fakeStore struct {
	alerts map[uuid.UUID]*models.Alert
}

func newFakeStore(seed ...*models.Alert) *fakeStore {
	f := &fakeStore{alerts: make(map[uuid.UUID]*models.Alert)}
	for _, a := range seed {
		if a.ID == uuid.Nil {
			a.ID = uuid.New()
		}
		f.alerts[a.ID] = a
	}
	return f
}

func (f *fakeStore) GetAlert(ctx context.Context, id uuid.UUID) (*models.Alert, error) {
	a, ok := f.alerts[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeStore) EscalateAlert(ctx context.Context, id uuid.UUID) (*models.Alert, error) {
	a, ok := f.alerts[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if a.Status != models.AlertStatusActive || a.EscalationLevel >= models.MaxEscalationLevel {
		return nil, models.ErrNotActive
	}
	now := time.Now()
	a.Status = models.AlertStatusEscalated
	a.EscalatedAt = &now
	a.EscalationLevel++
	cp := *a
	return &cp, nil
}

func (f *fakeStore) CreateAlert(ctx context.Context, a *models.Alert) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	cp := *a
	f.alerts[a.ID] = &cp
	return nil
}

func (f *fakeStore) byKind(kind models.AlertKind) []*models.Alert {
	var out []*models.Alert
	for _, a := range f.alerts {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	return out
}

type fakeResolver struct {
	byRole map[models.Role][]models.User
	users  map[int64]models.User
}

func (f *fakeResolver) UsersWithRole(ctx context.Context, roles ...models.Role) ([]models.User, error) {
	var out []models.User
	for _, r := range roles {
		out = append(out, f.byRole[r]...)
	}
	return out, nil
}

func (f *fakeResolver) UserByID(ctx context.Context, id int64) (models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return models.User{}, models.ErrNotFound
	}
	return u, nil
}

type fakeDispatcher struct {
	dispatched []uuid.UUID
}

func (f *fakeDispatcher) EnqueueDispatch(id uuid.UUID) {
	f.dispatched = append(f.dispatched, id)
}

type scheduled struct {
	queue string
	delay time.Duration
	task  scheduler.Task
}

type fakeRunner struct {
	immediate []scheduled
	delayed   []scheduled
}

func (f *fakeRunner) Enqueue(queue string, t scheduler.Task) {
	f.immediate = append(f.immediate, scheduled{queue: queue, task: t})
}

func (f *fakeRunner) EnqueueAfter(queue string, delay time.Duration, t scheduler.Task) {
	f.delayed = append(f.delayed, scheduled{queue: queue, delay: delay, task: t})
}

func defaultResolver() *fakeResolver {
	return &fakeResolver{
		byRole: map[models.Role][]models.User{
			models.RoleOperationsAdmin: {{ID: 10, Role: models.RoleOperationsAdmin}},
			models.RoleManagement:      {{ID: 20, Role: models.RoleManagement}},
			models.RoleSuperAdmin:      {{ID: 30, Role: models.RoleSuperAdmin}},
		},
		users: map[int64]models.User{
			1: {ID: 1, Role: models.RoleOperationsStaff},
		},
	}
}

func newTestService(store *fakeStore, res *fakeResolver, disp *fakeDispatcher, runner *fakeRunner) *Service {
	return New(Options{
		Alerts:     store,
		Resolver:   res,
		Dispatcher: disp,
		Runner:     runner,
		Logger:     logging.NewNop(),
	})
}

func seedAlert(priority models.Priority) *models.Alert {
	return &models.Alert{
		ID:        uuid.New(),
		RequestID: uuid.New(),
		UserID:    1,
		Kind:      models.AlertKindTimeline,
		Title:     "Flight Alert: 6h until departure",
		Message:   "Flight Request FR-1001 requires attention.",
		Priority:  priority,
		Status:    models.AlertStatusActive,
		CreatedAt: time.Now().Add(-2 * time.Hour),
	}
}

func TestEscalateFirstLevel(t *testing.T) {
	original := seedAlert(models.PriorityCritical)
	store := newFakeStore(original)
	disp := &fakeDispatcher{}
	runner := &fakeRunner{}
	svc := newTestService(store, defaultResolver(), disp, runner)

	if err := svc.Escalate(context.Background(), original.ID); err != nil {
		t.Fatalf("Escalate() error = %v", err)
	}

	got := store.alerts[original.ID]
	if got.Status != models.AlertStatusEscalated {
		t.Errorf("original status = %s, want escalated", got.Status)
	}
	if got.EscalationLevel != 1 {
		t.Errorf("original level = %d, want 1", got.EscalationLevel)
	}
	if got.EscalatedAt == nil {
		t.Errorf("escalated_at not stamped")
	}

	successors := store.byKind(models.AlertKindEscalation)
	if len(successors) != 1 {
		t.Fatalf("created %d successors, want 1", len(successors))
	}
	suc := successors[0]
	if suc.UserID != 10 {
		t.Errorf("successor recipient = %d, want operations admin 10", suc.UserID)
	}
	if suc.Priority != models.PriorityCritical {
		t.Errorf("successor priority = %s, want critical", suc.Priority)
	}
	if !strings.HasPrefix(suc.Title, "ESCALATED: ") {
		t.Errorf("successor title = %q, want ESCALATED prefix", suc.Title)
	}
	if suc.Metadata.OriginalAlertID != original.ID {
		t.Errorf("successor lineage = %s, want %s", suc.Metadata.OriginalAlertID, original.ID)
	}
	if suc.Metadata.EscalationLevel != 1 {
		t.Errorf("successor metadata level = %d, want 1", suc.Metadata.EscalationLevel)
	}
	if suc.Metadata.EscalatedFrom != string(models.RoleOperationsStaff) {
		t.Errorf("escalated_from = %q, want operations_staff", suc.Metadata.EscalatedFrom)
	}

	if len(disp.dispatched) != 1 || disp.dispatched[0] != suc.ID {
		t.Errorf("successor was not dispatched")
	}
	if len(runner.delayed) != 1 {
		t.Fatalf("scheduled %d follow-ups, want 1", len(runner.delayed))
	}
	if runner.delayed[0].delay != 2*time.Hour {
		t.Errorf("follow-up delay = %v, want 2h", runner.delayed[0].delay)
	}
}

func TestEscalationPriorityLadder(t *testing.T) {
	original := seedAlert(models.PriorityHigh)
	store := newFakeStore(original)
	svc := newTestService(store, defaultResolver(), &fakeDispatcher{}, &fakeRunner{})

	if err := svc.Escalate(context.Background(), original.ID); err != nil {
		t.Fatalf("Escalate() error = %v", err)
	}
	successors := store.byKind(models.AlertKindEscalation)
	if len(successors) != 1 {
		t.Fatalf("created %d successors, want 1", len(successors))
	}
	if successors[0].Priority != models.PriorityUrgent {
		t.Errorf("successor priority = %s, want urgent", successors[0].Priority)
	}
}

func TestEscalationCancelledByAcknowledgement(t *testing.T) {
	original := seedAlert(models.PriorityCritical)
	original.Status = models.AlertStatusAcknowledged
	store := newFakeStore(original)
	disp := &fakeDispatcher{}
	runner := &fakeRunner{}
	svc := newTestService(store, defaultResolver(), disp, runner)

	if err := svc.Escalate(context.Background(), original.ID); err != nil {
		t.Fatalf("Escalate() error = %v", err)
	}
	if len(store.byKind(models.AlertKindEscalation)) != 0 {
		t.Errorf("successor created for acknowledged alert")
	}
	if len(disp.dispatched) != 0 || len(runner.delayed) != 0 {
		t.Errorf("acknowledged alert still produced work")
	}
	if store.alerts[original.ID].EscalationLevel != 0 {
		t.Errorf("acknowledged alert level changed")
	}
}

func TestEscalationChainMonotonic(t *testing.T) {
	// Follow the chain by executing each scheduled follow-up: levels must be
	// 1, 2, 3 with waits 2h then 1h, and nothing scheduled past level 3.
	original := seedAlert(models.PriorityCritical)
	store := newFakeStore(original)
	runner := &fakeRunner{}
	svc := newTestService(store, defaultResolver(), &fakeDispatcher{}, runner)

	if err := svc.Escalate(context.Background(), original.ID); err != nil {
		t.Fatalf("level 1 Escalate() error = %v", err)
	}

	wantDelays := []time.Duration{2 * time.Hour, time.Hour}
	wantRecipients := []int64{20, 30} // management then super admin
	for i := 0; i < 2; i++ {
		if len(runner.delayed) != i+1 {
			t.Fatalf("after level %d: %d follow-ups scheduled, want %d", i+1, len(runner.delayed), i+1)
		}
		next := runner.delayed[i]
		if next.delay != wantDelays[i] {
			t.Errorf("level %d follow-up delay = %v, want %v", i+1, next.delay, wantDelays[i])
		}
		if err := next.task.Run(context.Background()); err != nil {
			t.Fatalf("level %d follow-up error = %v", i+2, err)
		}
		successors := store.byKind(models.AlertKindEscalation)
		var found bool
		for _, s := range successors {
			if s.UserID == wantRecipients[i] && s.Metadata.EscalationLevel == i+2 {
				found = true
			}
		}
		if !found {
			t.Errorf("level %d successor for user %d not created", i+2, wantRecipients[i])
		}
	}

	// Level 3 reached: no further follow-up.
	if len(runner.delayed) != 2 {
		t.Errorf("scheduled %d follow-ups, want exactly 2", len(runner.delayed))
	}

	// Observed chain levels never decrease and never skip.
	var levels []int
	for _, a := range store.byKind(models.AlertKindEscalation) {
		levels = append(levels, a.Metadata.EscalationLevel)
	}
	seen := map[int]bool{}
	for _, l := range levels {
		seen[l] = true
	}
	for want := 1; want <= 3; want++ {
		if !seen[want] {
			t.Errorf("chain skipped level %d (saw %v)", want, levels)
		}
	}
}

func TestEscalationTerminalLevel(t *testing.T) {
	top := seedAlert(models.PriorityCritical)
	top.Kind = models.AlertKindEscalation
	top.EscalationLevel = models.MaxEscalationLevel
	store := newFakeStore(top)
	disp := &fakeDispatcher{}
	runner := &fakeRunner{}
	svc := newTestService(store, defaultResolver(), disp, runner)

	for i := 0; i < 3; i++ {
		if err := svc.Escalate(context.Background(), top.ID); err != nil {
			t.Fatalf("Escalate() #%d error = %v", i+1, err)
		}
	}
	if store.alerts[top.ID].EscalationLevel != models.MaxEscalationLevel {
		t.Errorf("terminal alert level = %d, want %d", store.alerts[top.ID].EscalationLevel, models.MaxEscalationLevel)
	}
	if store.alerts[top.ID].Status != models.AlertStatusActive {
		t.Errorf("terminal alert status changed to %s", store.alerts[top.ID].Status)
	}
	if len(runner.delayed) != 0 || len(disp.dispatched) != 0 {
		t.Errorf("terminal alert produced further work")
	}
}

func TestEscalateMissingAlertIsNoOp(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, defaultResolver(), &fakeDispatcher{}, &fakeRunner{})

	if err := svc.Escalate(context.Background(), uuid.New()); err != nil {
		t.Errorf("Escalate() on missing alert error = %v, want nil", err)
	}
}

func TestEscalationTitleDoesNotStackPrefixes(t *testing.T) {
	original := seedAlert(models.PriorityCritical)
	store := newFakeStore(original)
	runner := &fakeRunner{}
	svc := newTestService(store, defaultResolver(), &fakeDispatcher{}, runner)

	if err := svc.Escalate(context.Background(), original.ID); err != nil {
		t.Fatalf("Escalate() error = %v", err)
	}
	if err := runner.delayed[0].task.Run(context.Background()); err != nil {
		t.Fatalf("follow-up error = %v", err)
	}

	for _, a := range store.byKind(models.AlertKindEscalation) {
		if a.Metadata.EscalationLevel == 2 {
			want := "MANAGEMENT ESCALATION: Flight Alert: 6h until departure"
			if a.Title != want {
				t.Errorf("level 2 title = %q, want %q", a.Title, want)
			}
		}
	}
}

func TestWaitTime(t *testing.T) {
	tests := []struct {
		level int
		want  time.Duration
	}{
		{1, 2 * time.Hour},
		{2, time.Hour},
		{3, 30 * time.Minute},
	}
	for _, tt := range tests {
		if got := WaitTime(tt.level); got != tt.want {
			t.Errorf("WaitTime(%d) = %v, want %v", tt.level, got, tt.want)
		}
	}
}
