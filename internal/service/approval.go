// Package service holds the workflow logic between handlers and storage.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/memflow/lowcode-backend/internal/broker"
	"github.com/memflow/lowcode-backend/internal/model"
	"github.com/memflow/lowcode-backend/internal/queue"
)

// ErrInvalidTransition is returned when an operation is applied to a
// template that is not in the state the operation requires.  The lifecycle
// is strictly draft -> pending -> approved|rejected; there is no shortcut
// and no way back.
var ErrInvalidTransition = errors.New("invalid template status transition")

// Messages pushed over the real-time channel.
const (
	msgApprovalRequested = "You have a template awaiting approval"
	msgStatusChanged     = "Approval status updated"
	msgNotificationText  = "Template approval request"
)

// TemplateStore is the slice of the template repository the workflow needs.
type TemplateStore interface {
	GetByKey(ctx context.Context, key string) (model.Template, error)
	UpdateStatus(ctx context.Context, key string, status model.TemplateStatus) error
}

// NotificationStore persists the durable notification records.
type NotificationStore interface {
	Create(ctx context.Context, targetID uint64, username, message string) error
	MarkReadByTarget(ctx context.Context, targetID uint64) error
}

// UserStore resolves a template owner to their role tier, which decides
// the queue their status-change message goes to.
type UserStore interface {
	GetByUsername(ctx context.Context, username string) (model.User, error)
}

// ApprovalService drives the template lifecycle and pairs every storage
// mutation with a best-effort notification emission.  The two side effects
// are independent: emission runs on its own goroutine and a delivery
// failure is logged and swallowed, never rolled back against storage.
type ApprovalService struct {
	templates     TemplateStore
	notifications NotificationStore
	users         UserStore
	broker        broker.Broker
	logger        *zap.Logger

	// publishEvent feeds the AMQP audit trail; swappable for tests.
	publishEvent func(ctx context.Context, ev queue.TemplateStatusEvent) error

	wg sync.WaitGroup
}

func NewApprovalService(templates TemplateStore, notifications NotificationStore, users UserStore, b broker.Broker, logger *zap.Logger) *ApprovalService {
	return &ApprovalService{
		templates:     templates,
		notifications: notifications,
		users:         users,
		broker:        b,
		logger:        logger,
		publishEvent:  queue.PublishTemplateStatus,
	}
}

// Wait blocks until all in-flight notification emissions have finished.
// Used on shutdown and by tests.
func (s *ApprovalService) Wait() { s.wg.Wait() }

// RequestApproval moves a draft template to pending, records an unread
// notification for the chosen approver and pushes a real-time message to
// the admin queue.
func (s *ApprovalService) RequestApproval(ctx context.Context, templateKey, approver string) error {
	tpl, err := s.templates.GetByKey(ctx, templateKey)
	if err != nil {
		return err
	}
	if tpl.Status != model.StatusDraft {
		return ErrInvalidTransition
	}
	if err := s.templates.UpdateStatus(ctx, templateKey, model.StatusPending); err != nil {
		return err
	}
	// The durable record is part of the transition; only the push is
	// best-effort.
	if err := s.notifications.Create(ctx, tpl.ID, approver, msgNotificationText); err != nil {
		return err
	}

	s.emit(func(ctx context.Context) {
		env := broker.Envelope{
			Event:     "requst-message",
			Recipient: approver,
			Message:   msgApprovalRequested,
		}
		if err := s.broker.Publish(ctx, broker.TopicAdmin, env); err != nil {
			s.logger.Warn("approval: notify approver failed",
				zap.String("template_key", templateKey), zap.Error(err))
		}
		s.audit(ctx, tpl, model.StatusPending, approver)
	})
	return nil
}

// Approve terminal-transitions a pending template to approved.
func (s *ApprovalService) Approve(ctx context.Context, templateKey string) error {
	return s.resolve(ctx, templateKey, model.StatusApproved)
}

// Reject terminal-transitions a pending template to rejected.
func (s *ApprovalService) Reject(ctx context.Context, templateKey string) error {
	return s.resolve(ctx, templateKey, model.StatusRejected)
}

func (s *ApprovalService) resolve(ctx context.Context, templateKey string, status model.TemplateStatus) error {
	tpl, err := s.templates.GetByKey(ctx, templateKey)
	if err != nil {
		return err
	}
	if tpl.Status != model.StatusPending {
		return ErrInvalidTransition
	}
	if err := s.templates.UpdateStatus(ctx, templateKey, status); err != nil {
		return err
	}
	// Whichever admin acted, the originating notification is resolved.
	if err := s.notifications.MarkReadByTarget(ctx, tpl.ID); err != nil {
		return err
	}

	s.emit(func(ctx context.Context) {
		s.notifyOwner(ctx, tpl)
		s.audit(ctx, tpl, status, "")
	})
	return nil
}

// notifyOwner pushes the status-change message onto the queue matching the
// owner's role tier.
func (s *ApprovalService) notifyOwner(ctx context.Context, tpl model.Template) {
	topic := broker.TopicPublic
	if owner, err := s.users.GetByUsername(ctx, tpl.Username); err == nil {
		if owner.RoleID.AtLeast(model.RoleAdmin) {
			topic = broker.TopicAdmin
		}
	}
	env := broker.Envelope{
		Event:     "template-change-message",
		Recipient: tpl.Username,
		Message:   msgStatusChanged,
	}
	if err := s.broker.Publish(ctx, topic, env); err != nil {
		s.logger.Warn("approval: notify owner failed",
			zap.String("template_key", tpl.TemplateKey), zap.Error(err))
	}
}

func (s *ApprovalService) audit(ctx context.Context, tpl model.Template, status model.TemplateStatus, approver string) {
	ev := queue.TemplateStatusEvent{
		TemplateKey:  tpl.TemplateKey,
		TemplateName: tpl.TemplateName,
		Owner:        tpl.Username,
		Approver:     approver,
		Status:       string(status),
		OccurredAt:   time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.publishEvent(ctx, ev); err != nil {
		s.logger.Warn("approval: audit event failed",
			zap.String("template_key", tpl.TemplateKey), zap.Error(err))
	}
}

// emit runs a notification emission concurrently with the caller.  The
// emission uses a fresh context: it must not be cancelled when the HTTP
// request that triggered it completes.
func (s *ApprovalService) emit(fn func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		fn(ctx)
	}()
}
