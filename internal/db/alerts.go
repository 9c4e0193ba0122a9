package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"flight-alert-service/internal/models"
)

const alertColumns = `
	id, request_id, user_id, kind, title, message, priority, status,
	escalation_level, created_at, acknowledged_at, acknowledged_by,
	escalated_at, metadata`

// CreateAlert inserts a new alert record, generating an id if not set.
func (d *DB) CreateAlert(ctx context.Context, a *models.Alert) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	query := `
	INSERT INTO alerts (
		id, request_id, user_id, kind, title, message, priority, status,
		escalation_level, created_at, metadata
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := d.Pool.Exec(ctx, query,
		a.ID, a.RequestID, a.UserID, a.Kind, a.Title, a.Message,
		int(a.Priority), a.Status, a.EscalationLevel, a.CreatedAt, a.Metadata)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

// GetAlert fetches one alert by id. Returns models.ErrNotFound when the row
// does not exist.
func (d *DB) GetAlert(ctx context.Context, id uuid.UUID) (*models.Alert, error) {
	row := d.Pool.QueryRow(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = $1`, id)
	a, err := scanAlert(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get alert %s: %w", id, err)
	}
	return a, nil
}

// TimelineAlertExists reports whether a timeline alert with the given
// threshold fingerprint already exists for the request. This is the
// idempotency check for the detector.
func (d *DB) TimelineAlertExists(ctx context.Context, requestID uuid.UUID, threshold int) (bool, error) {
	var exists bool
	query := `
	SELECT EXISTS(
		SELECT 1 FROM alerts
		WHERE request_id = $1 AND kind = $2 AND (metadata->>'threshold')::int = $3
	)`
	err := d.Pool.QueryRow(ctx, query, requestID, models.AlertKindTimeline, threshold).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check timeline alert for request %s: %w", requestID, err)
	}
	return exists, nil
}

// EscalateAlert performs the single escalate transition as a compare-and-set:
// the row is updated only while still active, so a concurrent acknowledgement
// wins cleanly. Returns the updated alert, models.ErrNotActive when the
// status precondition failed, or models.ErrNotFound.
func (d *DB) EscalateAlert(ctx context.Context, id uuid.UUID) (*models.Alert, error) {
	query := `
	UPDATE alerts
	SET status = $2, escalated_at = $3, escalation_level = escalation_level + 1
	WHERE id = $1 AND status = $4 AND escalation_level < $5
	RETURNING ` + alertColumns

	row := d.Pool.QueryRow(ctx, query, id, models.AlertStatusEscalated, time.Now(),
		models.AlertStatusActive, models.MaxEscalationLevel)
	a, err := scanAlert(row)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to escalate alert %s: %w", id, err)
	}

	// Zero rows: distinguish a vanished alert from a lost race.
	if _, getErr := d.GetAlert(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, models.ErrNotActive
}

// AcknowledgeAlert marks an active alert acknowledged by the acting user.
func (d *DB) AcknowledgeAlert(ctx context.Context, id uuid.UUID, userID int64) error {
	return d.transitionAlert(ctx, id, `
	UPDATE alerts
	SET status = $2, acknowledged_at = $3, acknowledged_by = $4
	WHERE id = $1 AND status = $5`,
		models.AlertStatusAcknowledged, time.Now(), userID, models.AlertStatusActive)
}

// DismissAlert marks an active alert dismissed.
func (d *DB) DismissAlert(ctx context.Context, id uuid.UUID) error {
	return d.transitionAlert(ctx, id, `
	UPDATE alerts
	SET status = $2
	WHERE id = $1 AND status = $3`,
		models.AlertStatusDismissed, models.AlertStatusActive)
}

func (d *DB) transitionAlert(ctx context.Context, id uuid.UUID, query string, args ...interface{}) error {
	tag, err := d.Pool.Exec(ctx, query, append([]interface{}{id}, args...)...)
	if err != nil {
		return fmt.Errorf("failed to update alert %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := d.GetAlert(ctx, id); getErr != nil {
			return getErr
		}
		return models.ErrNotActive
	}
	return nil
}

// EscalatableAlerts returns ids of active critical alerts created before the
// cutoff. This is the SLA scan that seeds escalation chains.
func (d *DB) EscalatableAlerts(ctx context.Context, olderThan time.Time) ([]uuid.UUID, error) {
	rows, err := d.Pool.Query(ctx, `
	SELECT id FROM alerts
	WHERE status = $1 AND priority = $2 AND created_at < $3
	ORDER BY created_at ASC`,
		models.AlertStatusActive, int(models.PriorityCritical), olderThan)
	if err != nil {
		return nil, fmt.Errorf("failed to scan escalatable alerts: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan alert id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListAlertsByUser fetches a user's alerts newest-highest-priority first, with
// optional status and kind filters and pagination.
func (d *DB) ListAlertsByUser(ctx context.Context, userID int64, status, kind string, limit, offset int) ([]models.Alert, int, error) {
	where := `WHERE user_id = $1`
	args := []interface{}{userID}
	if status != "" {
		args = append(args, status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if kind != "" {
		args = append(args, kind)
		where += fmt.Sprintf(" AND kind = $%d", len(args))
	}

	var total int
	if err := d.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM alerts `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count alerts: %w", err)
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM alerts %s ORDER BY priority DESC, created_at ASC LIMIT $%d OFFSET $%d`,
		alertColumns, where, len(args)-1, len(args))

	rows, err := d.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	var list []models.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan alert: %w", err)
		}
		list = append(list, *a)
	}
	return list, total, rows.Err()
}

// AlertDashboard aggregates alert counts for one user.
type AlertDashboard struct {
	Total          int            `json:"total_alerts"`
	Unacknowledged int            `json:"unacknowledged"`
	Critical       int            `json:"critical"`
	ByKind         map[string]int `json:"by_kind"`
	ByPriority     map[string]int `json:"by_priority"`
}

// DashboardCounts builds the alert summary for a user.
func (d *DB) DashboardCounts(ctx context.Context, userID int64) (AlertDashboard, error) {
	dash := AlertDashboard{
		ByKind:     make(map[string]int),
		ByPriority: make(map[string]int),
	}

	rows, err := d.Pool.Query(ctx, `
	SELECT kind, priority, status, COUNT(*)
	FROM alerts
	WHERE user_id = $1
	GROUP BY kind, priority, status`, userID)
	if err != nil {
		return dash, fmt.Errorf("failed to aggregate alerts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind, status string
		var priority, count int
		if err := rows.Scan(&kind, &priority, &status, &count); err != nil {
			return dash, fmt.Errorf("failed to scan alert counts: %w", err)
		}
		dash.Total += count
		if status == string(models.AlertStatusActive) {
			dash.Unacknowledged += count
		}
		if priority == int(models.PriorityCritical) {
			dash.Critical += count
		}
		dash.ByKind[kind] += count
		dash.ByPriority[models.Priority(priority).String()] += count
	}
	return dash, rows.Err()
}

func scanAlert(row pgx.Row) (*models.Alert, error) {
	var a models.Alert
	var priority int
	var ackAt, escAt pgtype.Timestamptz
	var ackBy pgtype.Int8

	err := row.Scan(
		&a.ID, &a.RequestID, &a.UserID, &a.Kind, &a.Title, &a.Message,
		&priority, &a.Status, &a.EscalationLevel, &a.CreatedAt,
		&ackAt, &ackBy, &escAt, &a.Metadata,
	)
	if err != nil {
		return nil, err
	}
	a.Priority = models.Priority(priority)
	if ackAt.Valid {
		t := ackAt.Time
		a.AcknowledgedAt = &t
	}
	if ackBy.Valid {
		v := ackBy.Int64
		a.AcknowledgedBy = &v
	}
	if escAt.Valid {
		t := escAt.Time
		a.EscalatedAt = &t
	}
	return &a, nil
}
