package models

import (
	"testing"
	"time"
)

func TestPriorityEscalated(t *testing.T) {
	tests := []struct {
		name string
		in   Priority
		want Priority
	}{
		{"low steps to medium", PriorityLow, PriorityMedium},
		{"medium steps to high", PriorityMedium, PriorityHigh},
		{"high steps to urgent", PriorityHigh, PriorityUrgent},
		{"urgent steps to critical", PriorityUrgent, PriorityCritical},
		{"critical stays critical", PriorityCritical, PriorityCritical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.Escalated(); got != tt.want {
				t.Errorf("Escalated(%s) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestTimelinePriority(t *testing.T) {
	tests := []struct {
		threshold int
		want      Priority
	}{
		{72, PriorityLow},
		{48, PriorityMedium},
		{24, PriorityHigh},
		{12, PriorityUrgent},
		{6, PriorityCritical},
		{99, PriorityMedium},
	}
	for _, tt := range tests {
		if got := TimelinePriority(tt.threshold); got != tt.want {
			t.Errorf("TimelinePriority(%d) = %s, want %s", tt.threshold, got, tt.want)
		}
	}
}

func TestAlertTransitions(t *testing.T) {
	now := time.Now()

	t.Run("acknowledge active", func(t *testing.T) {
		a := &Alert{Status: AlertStatusActive}
		if err := a.Acknowledge(7, now); err != nil {
			t.Fatalf("Acknowledge() error = %v", err)
		}
		if a.Status != AlertStatusAcknowledged {
			t.Errorf("status = %s, want acknowledged", a.Status)
		}
		if a.AcknowledgedBy == nil || *a.AcknowledgedBy != 7 {
			t.Errorf("acknowledged_by not recorded")
		}
		if a.AcknowledgedAt == nil {
			t.Errorf("acknowledged_at not stamped")
		}
	})

	t.Run("acknowledge twice fails", func(t *testing.T) {
		a := &Alert{Status: AlertStatusActive}
		if err := a.Acknowledge(7, now); err != nil {
			t.Fatalf("first Acknowledge() error = %v", err)
		}
		if err := a.Acknowledge(8, now); err != ErrNotActive {
			t.Errorf("second Acknowledge() error = %v, want ErrNotActive", err)
		}
	})

	t.Run("dismiss escalated fails", func(t *testing.T) {
		a := &Alert{Status: AlertStatusEscalated}
		if err := a.Dismiss(); err != ErrNotActive {
			t.Errorf("Dismiss() error = %v, want ErrNotActive", err)
		}
	})

	t.Run("escalate increments level and stamps", func(t *testing.T) {
		a := &Alert{Status: AlertStatusActive, EscalationLevel: 1}
		if err := a.Escalate(now); err != nil {
			t.Fatalf("Escalate() error = %v", err)
		}
		if a.EscalationLevel != 2 {
			t.Errorf("level = %d, want 2", a.EscalationLevel)
		}
		if a.Status != AlertStatusEscalated || a.EscalatedAt == nil {
			t.Errorf("escalate did not record status/timestamp")
		}
	})

	t.Run("escalate acknowledged fails", func(t *testing.T) {
		a := &Alert{Status: AlertStatusAcknowledged}
		if err := a.Escalate(now); err != ErrNotActive {
			t.Errorf("Escalate() error = %v, want ErrNotActive", err)
		}
	})
}

func TestEscalationRole(t *testing.T) {
	tests := []struct {
		level int
		want  Role
		ok    bool
	}{
		{1, RoleOperationsAdmin, true},
		{2, RoleManagement, true},
		{3, RoleSuperAdmin, true},
		{0, "", false},
		{4, "", false},
	}
	for _, tt := range tests {
		got, ok := EscalationRole(tt.level)
		if got != tt.want || ok != tt.ok {
			t.Errorf("EscalationRole(%d) = (%s, %v), want (%s, %v)", tt.level, got, ok, tt.want, tt.ok)
		}
	}
}

func TestNotificationTerminalStates(t *testing.T) {
	now := time.Now()

	n := &Notification{Status: NotificationPending}
	n.MarkSent(now)
	if n.Status != NotificationSent || n.SentAt == nil {
		t.Errorf("MarkSent() left status %s", n.Status)
	}
	if err := n.MarkDelivered(); err != nil {
		t.Errorf("MarkDelivered() after sent error = %v", err)
	}

	n = &Notification{Status: NotificationPending}
	n.MarkFailed(now, "smtp timeout")
	if n.Status != NotificationFailed || n.FailureReason != "smtp timeout" || n.FailedAt == nil {
		t.Errorf("MarkFailed() did not record failure details")
	}
	if err := n.MarkDelivered(); err != ErrInvalidTransition {
		t.Errorf("MarkDelivered() after failed error = %v, want ErrInvalidTransition", err)
	}
}
