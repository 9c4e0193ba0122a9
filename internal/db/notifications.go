package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"flight-alert-service/internal/models"
)

const notificationColumns = `
	id, alert_id, recipient_id, kind, subject, content, channel, status,
	sent_at, failed_at, failure_reason, created_at`

// UpsertNotification creates the notification row for (alert, channel) or, if
// a previous dispatch attempt already created it, resets that same row to
// pending. Retried dispatches therefore never duplicate rows.
func (d *DB) UpsertNotification(ctx context.Context, n *models.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	query := `
	INSERT INTO notifications (
		id, alert_id, recipient_id, kind, subject, content, channel, status, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (alert_id, channel) DO UPDATE
	SET status = EXCLUDED.status, subject = EXCLUDED.subject,
	    content = EXCLUDED.content, failed_at = NULL, failure_reason = ''
	RETURNING id, created_at`

	err := d.Pool.QueryRow(ctx, query,
		n.ID, n.AlertID, n.RecipientID, n.Kind, n.Subject, n.Content,
		n.Channel, n.Status, n.CreatedAt,
	).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert notification for alert %s: %w", n.AlertID, err)
	}
	return nil
}

// MarkNotificationSent records successful delivery.
func (d *DB) MarkNotificationSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := d.Pool.Exec(ctx, `
	UPDATE notifications
	SET status = $2, sent_at = $3, failed_at = NULL, failure_reason = ''
	WHERE id = $1`, id, models.NotificationSent, at)
	if err != nil {
		return fmt.Errorf("failed to mark notification %s sent: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// MarkNotificationFailed records a delivery failure with its reason.
func (d *DB) MarkNotificationFailed(ctx context.Context, id uuid.UUID, at time.Time, reason string) error {
	tag, err := d.Pool.Exec(ctx, `
	UPDATE notifications
	SET status = $2, failed_at = $3, failure_reason = $4
	WHERE id = $1`, id, models.NotificationFailed, at, reason)
	if err != nil {
		return fmt.Errorf("failed to mark notification %s failed: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ListNotificationsByUser fetches a user's notifications newest first.
func (d *DB) ListNotificationsByUser(ctx context.Context, userID int64, limit, offset int) ([]models.Notification, error) {
	rows, err := d.Pool.Query(ctx, `
	SELECT `+notificationColumns+`
	FROM notifications
	WHERE recipient_id = $1
	ORDER BY created_at DESC
	LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications for user %d: %w", userID, err)
	}
	defer rows.Close()

	var list []models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		list = append(list, *n)
	}
	return list, rows.Err()
}

func scanNotification(row pgx.Row) (*models.Notification, error) {
	var n models.Notification
	var sentAt, failedAt pgtype.Timestamptz

	err := row.Scan(
		&n.ID, &n.AlertID, &n.RecipientID, &n.Kind, &n.Subject, &n.Content,
		&n.Channel, &n.Status, &sentAt, &failedAt, &n.FailureReason, &n.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if sentAt.Valid {
		t := sentAt.Time
		n.SentAt = &t
	}
	if failedAt.Valid {
		t := failedAt.Time
		n.FailedAt = &t
	}
	return &n, nil
}
