package model

import "time"

// Notification read states stored in `notifications.status`.
const (
	NotificationUnread = "unread"
	NotificationRead   = "read"
)

// Notification type tags stored in `notifications.type_id`.
const (
	NotificationTypeTemplateApprove = 1
)

// Notification represents a row in the `notifications` table.  A record is
// created when a template enters the pending state and flipped to read when
// the request is resolved, regardless of which admin acted.  It is the
// durable fallback for the best-effort real-time channel.
//
// Fields:
//  ID        – primary key identifier.
//  TargetID  – id of the template the notification refers to.
//  Username  – recipient username (the approver asked to review).
//  TypeID    – notification type tag.
//  Message   – display message.
//  Status    – NotificationUnread or NotificationRead.
//  CreatedAt – timestamp of creation.
type Notification struct {
	ID        uint64    `json:"id"`
	TargetID  uint64    `json:"target_id"`
	Username  string    `json:"username"`
	TypeID    int       `json:"type_id"`
	Message   string    `json:"message"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
