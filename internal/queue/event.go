// Package queue defines message payloads exchanged over the message broker.
package queue

// TemplateStatusEvent is published on every approval-workflow transition.
// It contains enough information for downstream consumers to build an audit
// trail without querying the primary database.
type TemplateStatusEvent struct {
	TemplateKey  string `json:"template_key"`
	TemplateName string `json:"template_name"`
	Owner        string `json:"owner"`
	Approver     string `json:"approver,omitempty"`
	Status       string `json:"status"`
	OccurredAt   string `json:"occurred_at"`
}
