package repository

import (
	"context"
	"database/sql"

	"github.com/istrom/site-inventory/internal/auth"
	"github.com/istrom/site-inventory/internal/model"
)

// NotificationRepo persists workflow notifications.  Visibility is
// identity-based rather than site-based: a NULL target addresses all
// global administrators, a concrete target addresses one credential.
type NotificationRepo struct {
	db *sql.DB
}

// NewNotificationRepo returns a new NotificationRepo bound to the given database.
func NewNotificationRepo(db *sql.DB) *NotificationRepo { return &NotificationRepo{db: db} }

const notificationColumns = `id, kind, title, message, target_id, request_id, is_read, created_at`

func scanNotification(row interface{ Scan(...any) error }) (*model.Notification, error) {
	var n model.Notification
	var target, request sql.NullInt64
	if err := row.Scan(&n.ID, &n.Kind, &n.Title, &n.Message, &target, &request, &n.IsRead, &n.CreatedAt); err != nil {
		return nil, err
	}
	if target.Valid {
		t := uint64(target.Int64)
		n.TargetID = &t
	}
	if request.Valid {
		rid := uint64(request.Int64)
		n.RequestID = &rid
	}
	return &n, nil
}

// CreateTx enqueues a notification inside the workflow transaction so
// the enqueue commits or rolls back together with the transition that
// caused it.
func (r *NotificationRepo) CreateTx(ctx context.Context, tx *sql.Tx, n *model.Notification) error {
	var target any
	if n.TargetID != nil {
		target = *n.TargetID
	}
	var request any
	if n.RequestID != nil {
		request = *n.RequestID
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO notifications (kind, title, message, target_id, request_id) VALUES (?, ?, ?, ?, ?)`,
		n.Kind, n.Title, n.Message, target, request)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	n.ID = uint64(id)
	return nil
}

// visibilityClause renders which notifications the identity may see:
// the global admin sees broadcast rows (NULL target) plus their own,
// everyone else sees only their own.
func visibilityClause(id auth.Identity) (string, []any) {
	if id.IsGlobalAdmin() {
		return `(target_id IS NULL OR target_id = ?)`, []any{id.CredentialID}
	}
	return `target_id = ?`, []any{id.CredentialID}
}

// VisibleTo lists every notification the identity may see, newest first.
func (r *NotificationRepo) VisibleTo(ctx context.Context, id auth.Identity) ([]model.Notification, error) {
	clause, args := visibilityClause(id)
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE `+clause+` ORDER BY created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectNotifications(rows)
}

// Unread lists the newest unread notifications visible to the
// identity, capped at limit, for the polling endpoint.
func (r *NotificationRepo) Unread(ctx context.Context, id auth.Identity, limit int) ([]model.Notification, error) {
	if limit <= 0 {
		limit = 10
	}
	clause, args := visibilityClause(id)
	args = append(args, limit)
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE `+clause+` AND is_read = 0 ORDER BY created_at DESC, id DESC LIMIT ?`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectNotifications(rows)
}

func collectNotifications(rows *sql.Rows) ([]model.Notification, error) {
	out := make([]model.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

// GetByID fetches one notification.
func (r *NotificationRepo) GetByID(ctx context.Context, id uint64) (*model.Notification, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = ?`, id)
	return scanNotification(row)
}

// MarkRead advances the read flag.  Read state only ever moves
// forward and only through this call.
func (r *NotificationRepo) MarkRead(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET is_read = 1 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes one notification.
func (r *NotificationRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteByRequestTx removes every notification referencing a request,
// inside the transaction that deletes the request itself.  This is
// the cascade that keeps notifications from outliving their subject.
func (r *NotificationRepo) DeleteByRequestTx(ctx context.Context, tx *sql.Tx, requestID uint64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM notifications WHERE request_id = ?`, requestID)
	return err
}

// AdminStats returns unread and total counts of broadcast
// notifications for the admin overview.
func (r *NotificationRepo) AdminStats(ctx context.Context) (unread, total int, err error) {
	err = r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN is_read = 0 THEN 1 ELSE 0 END), 0) FROM notifications WHERE target_id IS NULL`).
		Scan(&total, &unread)
	return unread, total, err
}
