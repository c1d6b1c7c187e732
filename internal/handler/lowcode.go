package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/memflow/lowcode-backend/internal/middleware"
	"github.com/memflow/lowcode-backend/internal/model"
	"github.com/memflow/lowcode-backend/internal/repository"
	"github.com/memflow/lowcode-backend/internal/service"
)

// LowcodeHandler serves the template CRUD and approval endpoints.
type LowcodeHandler struct {
	Templates *repository.TemplateRepo
	Approval  *service.ApprovalService
}

func NewLowcodeHandler(t *repository.TemplateRepo, a *service.ApprovalService) *LowcodeHandler {
	return &LowcodeHandler{Templates: t, Approval: a}
}

type saveTemplateReq struct {
	TemplateName string `json:"template_name"`
	TemplateJSON string `json:"template_json"`
}

type approvalReq struct {
	TemplateKey string `json:"template_key"`
	Approver    string `json:"approver"`
}

// Save creates a draft template owned by the caller.
func (h *LowcodeHandler) Save(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
	}
	var req saveTemplateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.TemplateName == "" || req.TemplateJSON == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "template_name/template_json required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	tpl, err := h.Templates.Create(ctx, req.TemplateName, req.TemplateJSON, id.Username)
	if err != nil {
		if errors.Is(err, repository.ErrTemplateExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "template already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create template failed"})
	}
	return c.JSON(http.StatusCreated, tpl)
}

// All lists templates scoped by role: admin tier sees everything, a public
// user only their own.
func (h *LowcodeHandler) All(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	var (
		templates []model.Template
		err       error
	)
	if id.Role.AtLeast(model.RoleAdmin) {
		templates, err = h.Templates.ListAll(ctx)
	} else {
		templates, err = h.Templates.ListByOwner(ctx, id.Username)
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"templates": templates})
}

// Pendings returns a page of the admin review queue.
func (h *LowcodeHandler) Pendings(c echo.Context) error {
	var req struct {
		Page     int `json:"page"`
		PageSize int `json:"pageSize"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	templates, hasNext, err := h.Templates.ListPending(ctx, req.Page, req.PageSize)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"templates": templates, "hasNext": hasNext})
}

// RequestApproval submits a draft for review by the named approver.
func (h *LowcodeHandler) RequestApproval(c echo.Context) error {
	var req approvalReq
	if err := c.Bind(&req); err != nil || req.TemplateKey == "" || req.Approver == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "template_key/approver required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Approval.RequestApproval(ctx, req.TemplateKey, req.Approver); err != nil {
		return approvalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"msg": "approval requested"})
}

// ApproveRequest resolves a pending template as approved.
func (h *LowcodeHandler) ApproveRequest(c echo.Context) error {
	return h.resolveRequest(c, h.Approval.Approve)
}

// RejectRequest resolves a pending template as rejected.
func (h *LowcodeHandler) RejectRequest(c echo.Context) error {
	return h.resolveRequest(c, h.Approval.Reject)
}

func (h *LowcodeHandler) resolveRequest(c echo.Context, fn func(ctx context.Context, key string) error) error {
	var req approvalReq
	if err := c.Bind(&req); err != nil || req.TemplateKey == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "template_key required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := fn(ctx, req.TemplateKey); err != nil {
		return approvalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"msg": "resolved"})
}

func approvalError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "template not found"})
	case errors.Is(err, service.ErrInvalidTransition):
		return c.JSON(http.StatusConflict, echo.Map{"error": "template is not in a state that allows this"})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "operation failed"})
}

// Get returns a single template by key.  Ownership is not checked: keys
// are unguessable UUIDs and approved templates are meant to be shared.
func (h *LowcodeHandler) Get(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	tpl, err := h.Templates.GetByKey(ctx, c.Param("key"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "template not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, tpl)
}

// Update rewrites a template's name and body.  Only the owner or an admin
// may modify it.
func (h *LowcodeHandler) Update(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
	}
	var req saveTemplateReq
	if err := c.Bind(&req); err != nil || req.TemplateName == "" || req.TemplateJSON == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "template_name/template_json required"})
	}
	key := c.Param("key")

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	tpl, err := h.Templates.GetByKey(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "template not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if tpl.Username != id.Username && !id.Role.AtLeast(model.RoleAdmin) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not the template owner"})
	}

	if err := h.Templates.UpdateContent(ctx, key, req.TemplateName, req.TemplateJSON); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "template not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"msg": "updated"})
}

// Delete removes a template, same ownership rule as Update.
func (h *LowcodeHandler) Delete(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
	}
	key := c.Param("key")

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	tpl, err := h.Templates.GetByKey(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "template not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if tpl.Username != id.Username && !id.Role.AtLeast(model.RoleAdmin) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not the template owner"})
	}

	if err := h.Templates.DeleteByKey(ctx, key); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "template not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"msg": "deleted"})
}
