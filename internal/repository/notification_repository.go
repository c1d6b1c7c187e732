package repository

import (
	"context"
	"database/sql"

	"github.com/memflow/lowcode-backend/internal/model"
)

// NotificationRepo persists the durable notification records that back the
// best-effort real-time channel.  A recipient who was offline when a
// message was pushed can still poll these rows.
type NotificationRepo struct{ DB *sql.DB }

func NewNotificationRepo(db *sql.DB) *NotificationRepo { return &NotificationRepo{DB: db} }

// Create inserts an unread notification addressed to username about the
// template with the given id.
func (r *NotificationRepo) Create(ctx context.Context, targetID uint64, username, message string) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO notifications (target_id, username, type_id, message, status) VALUES (?,?,?,?,?)",
		targetID, username, model.NotificationTypeTemplateApprove, message, model.NotificationUnread)
	return err
}

// MarkReadByTarget flips every notification for the template to read.  It
// is intentionally not scoped to a recipient: whichever admin resolves the
// request clears it for all of them.
func (r *NotificationRepo) MarkReadByTarget(ctx context.Context, targetID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE notifications SET status=? WHERE target_id=?", model.NotificationRead, targetID)
	return err
}

// ListByUsername returns a recipient's notifications, newest first.
func (r *NotificationRepo) ListByUsername(ctx context.Context, username string) ([]model.Notification, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id,target_id,username,type_id,message,status,created_at FROM notifications WHERE username=? ORDER BY created_at DESC",
		username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.TargetID, &n.Username, &n.TypeID, &n.Message, &n.Status, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
