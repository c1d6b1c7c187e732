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
	"github.com/memflow/lowcode-backend/internal/utils"
)

// UserHandler serves the account management endpoints.
type UserHandler struct {
	Users         *repository.UserRepo
	Notifications *repository.NotificationRepo
}

func NewUserHandler(u *repository.UserRepo, n *repository.NotificationRepo) *UserHandler {
	return &UserHandler{Users: u, Notifications: n}
}

type updateUserReq struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Avatar   string `json:"avatar"`
	Role     string `json:"role"`
	Status   *uint8 `json:"status"`
}

// Info returns the caller's current profile from storage, refreshed past
// whatever snapshot the token carries, and re-issues the role cookie.  A
// disabled account is cut off here even if its token has not expired yet.
func (h *UserHandler) Info(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByUsername(ctx, id.Username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !u.Enabled() {
		utils.ClearRefreshCookie(c)
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "user disabled"})
	}

	utils.SetRoleCookie(c, u.RoleID)
	return c.JSON(http.StatusOK, echo.Map{"userInfo": userInfoOf(u)})
}

// All lists every account (admin tier only; enforced by route middleware).
func (h *UserHandler) All(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	users, err := h.Users.List(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]userInfo, 0, len(users))
	for _, u := range users {
		out = append(out, userInfoOf(u))
	}
	return c.JSON(http.StatusOK, echo.Map{"users": out})
}

// Admins lists the available approvers for the request-approval picker.
func (h *UserHandler) Admins(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	admins, err := h.Users.ListAdmins(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"admins": admins})
}

// Notifications returns the caller's durable notification records, the
// fallback for pushes missed while offline.
func (h *UserHandler) ListNotifications(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Notifications.ListByUsername(ctx, id.Username)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"notifications": items})
}

// Update edits another account's profile.  Rank rules: the actor must
// outrank-or-equal both the target's current role and the role being
// assigned, so an admin can never touch a super admin or mint one.
func (h *UserHandler) Update(c echo.Context) error {
	actor, ok := middleware.IdentityFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
	}
	target := c.Param("username")

	var req updateUserReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByUsername(ctx, target)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !actor.Role.AtLeast(u.RoleID) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "cannot modify a higher-ranked user"})
	}

	upd := repository.UserUpdate{
		Username: u.Username,
		Email:    u.Email,
		Avatar:   u.Avatar,
		Role:     u.RoleID,
		Status:   u.Status,
	}
	if req.Username != "" {
		upd.Username = req.Username
	}
	if req.Email != "" {
		upd.Email = req.Email
	}
	if req.Avatar != "" {
		upd.Avatar = req.Avatar
	}
	if req.Role != "" {
		requested := model.RoleFromName(req.Role)
		if !actor.Role.AtLeast(requested) {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "cannot assign a higher role than your own"})
		}
		upd.Role = requested
	}
	if req.Status != nil {
		upd.Status = *req.Status
	}

	if err := h.Users.Update(ctx, target, upd); err != nil {
		switch {
		case errors.Is(err, repository.ErrUsernameExists):
			return c.JSON(http.StatusConflict, echo.Map{"error": "username already exists"})
		case errors.Is(err, repository.ErrEmailExists):
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
		case errors.Is(err, repository.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"msg": "updated"})
}

// Delete removes an account.  Same rank rule as Update, plus nobody
// deletes themselves.
func (h *UserHandler) Delete(c echo.Context) error {
	actor, ok := middleware.IdentityFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
	}
	target := c.Param("username")
	if target == actor.Username {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot delete your own account"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByUsername(ctx, target)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !actor.Role.AtLeast(u.RoleID) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "cannot delete a higher-ranked user"})
	}

	if err := h.Users.Delete(ctx, target); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"msg": "deleted"})
}
