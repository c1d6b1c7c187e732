package model

import "time"

// TemplateStatus is the lifecycle state of a low-code template.  Transitions
// are one-directional: draft -> pending -> approved|rejected.  There is no
// shortcut from draft to a terminal state; pending is mandatory.
type TemplateStatus string

const (
	StatusDraft    TemplateStatus = "draft"
	StatusPending  TemplateStatus = "pending"
	StatusApproved TemplateStatus = "approved"
	StatusRejected TemplateStatus = "rejected"
)

// Template represents a row in the `lowcode_templates` table.
//
// Fields:
//  ID           – primary key identifier.
//  TemplateKey  – opaque unique key handed to clients (memory_flow_<uuid>).
//  TemplateName – unique human-readable name.
//  TemplateJSON – the saved low-code configuration body.
//  Username     – owner's username.
//  Status       – lifecycle state, see TemplateStatus.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type Template struct {
	ID           uint64         `json:"id"`
	TemplateKey  string         `json:"template_key"`
	TemplateName string         `json:"template_name"`
	TemplateJSON string         `json:"template_json"`
	Username     string         `json:"username"`
	Status       TemplateStatus `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}
