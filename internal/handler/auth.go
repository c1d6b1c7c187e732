package handler

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/memflow/lowcode-backend/internal/config"
	"github.com/memflow/lowcode-backend/internal/model"
	"github.com/memflow/lowcode-backend/internal/oauth"
	"github.com/memflow/lowcode-backend/internal/repository"
	"github.com/memflow/lowcode-backend/internal/service"
	"github.com/memflow/lowcode-backend/internal/token"
	"github.com/memflow/lowcode-backend/internal/utils"
)

// initLockFile guards the one-time super-admin bootstrap.  Its presence
// means initialization already ran.
const initLockFile = "memory.lock"

// AuthHandler bundles dependencies for auth endpoints.  Everything under
// the auth route group runs without the JWT middleware.
type AuthHandler struct {
	Cfg    config.Config
	Users  *repository.UserRepo
	Tokens *token.Service
	Verify *service.VerificationService
	GitHub *oauth.GitHub
	Logger *zap.Logger
}

func NewAuthHandler(cfg config.Config, u *repository.UserRepo, t *token.Service, v *service.VerificationService, gh *oauth.GitHub, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t, Verify: v, GitHub: gh, Logger: logger}
}

// ----- DTOs -----

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type registerReq struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Avatar    string `json:"avatar"`
	EmailCode string `json:"emailCode"`
}
type forgetReq struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	EmailCode string `json:"emailCode"`
}

type userInfo struct {
	ID       uint64     `json:"id"`
	Username string     `json:"username"`
	Email    string     `json:"email"`
	Role     model.Role `json:"role"`
	Status   uint8      `json:"status"`
	Avatar   string     `json:"avatar"`
}

func userInfoOf(u model.User) userInfo {
	return userInfo{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Role:     u.RoleID,
		Status:   u.Status,
		Avatar:   u.Avatar,
	}
}

func identityOf(u model.User) token.Identity {
	return token.Identity{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Role:     u.RoleID,
		Avatar:   u.Avatar,
	}
}

// Login: verify credentials, return the user info plus an access token and
// set the refresh and role cookies.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !u.Enabled() {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "user disabled, contact an administrator"})
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	access, err := h.Tokens.IssueAccess(identityOf(u))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
	}
	refresh, err := h.Tokens.IssueRefresh(identityOf(u))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue refresh failed"})
	}

	utils.SetRefreshCookie(c, refresh, time.Duration(h.Cfg.RefreshTTLDays)*24*time.Hour)
	utils.SetRoleCookie(c, u.RoleID)

	return c.JSON(http.StatusOK, echo.Map{
		"userInfo":    userInfoOf(u),
		"accessToken": access,
	})
}

// Register: create a public-tier user after checking uniqueness and the
// email verification code.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username/email/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	// Pre-check both unique keys so the client learns which one collided.
	if _, err := h.Users.GetByUsername(ctx, req.Username); err == nil {
		return c.JSON(http.StatusConflict, echo.Map{"error": "username already exists"})
	}
	if _, err := h.Users.GetByEmail(ctx, req.Email); err == nil {
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
	}

	if err := h.Verify.CheckCode(ctx, req.Email, req.EmailCode); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "verification code invalid or expired"})
	}

	uid, err := h.Users.Create(ctx, req.Username, req.Email, req.Password, req.Avatar, model.RolePublic, h.Cfg.BcryptCost)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrUsernameExists):
			return c.JSON(http.StatusConflict, echo.Map{"error": "username already exists"})
		case errors.Is(err, repository.ErrEmailExists):
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
	}

	return c.JSON(http.StatusCreated, echo.Map{"id": uid, "username": req.Username})
}

// Init bootstraps the one super admin.  A lock file written on success
// makes the endpoint single-use.
func (h *AuthHandler) Init(c echo.Context) error {
	if _, err := os.Stat(initLockFile); err == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "already initialized"})
	}

	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username/email/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Verify.CheckCode(ctx, req.Email, req.EmailCode); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "verification code invalid or expired"})
	}
	if _, err := h.Users.Create(ctx, req.Username, req.Email, req.Password, req.Avatar, model.RoleSuper, h.Cfg.BcryptCost); err != nil {
		h.Logger.Error("init: create super admin failed", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "initialization failed"})
	}
	if err := os.WriteFile(initLockFile, []byte("initialized"), 0o644); err != nil {
		h.Logger.Error("init: write lock file failed", zap.Error(err))
	}
	return c.JSON(http.StatusOK, echo.Map{"msg": "initialized"})
}

// Forget resets a password after verifying the email code.
func (h *AuthHandler) Forget(c echo.Context) error {
	var req forgetReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Verify.CheckCode(ctx, req.Email, req.EmailCode); err != nil {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "verification code invalid or expired"})
	}
	if err := h.Users.UpdatePassword(ctx, req.Email, req.Password, h.Cfg.BcryptCost); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update password failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"msg": "password updated"})
}

// EmailCode issues a verification code, one outstanding code per address.
// Upstream mail failures degrade to a generic message instead of exposing
// provider errors.
func (h *AuthHandler) EmailCode(c echo.Context) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email required"})
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	if err := h.Verify.SendCode(ctx, email); err != nil {
		if errors.Is(err, service.ErrCodeLocked) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "please wait 60 seconds before requesting another code"})
		}
		return c.JSON(http.StatusOK, echo.Map{"message": "verification code could not be sent, please try again"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "verification code sent, check your inbox"})
}

// Logout clears the refresh cookie.  There is no server-side session to
// revoke: access tokens simply age out.
func (h *AuthHandler) Logout(c echo.Context) error {
	utils.ClearRefreshCookie(c)
	return c.JSON(http.StatusOK, echo.Map{"msg": "logged out"})
}

// Refresh exchanges a valid refresh cookie for a new access token.  The
// user record is re-checked so a disabled or deleted account cannot keep
// refreshing; in that case the cookie is cleared.
func (h *AuthHandler) Refresh(c echo.Context) error {
	raw, ok := utils.ReadRefreshCookie(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "refresh token missing"})
	}
	id, err := h.Tokens.Verify(raw, token.KindRefresh)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired refresh token"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByUsername(ctx, id.Username)
	if err != nil || !u.Enabled() {
		utils.ClearRefreshCookie(c)
		return c.JSON(http.StatusForbidden, echo.Map{"error": "user not found"})
	}

	access, err := h.Tokens.IssueAccess(identityOf(u))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"accessToken": access})
}

// GitHubLogin redirects the browser to the GitHub consent page.
func (h *AuthHandler) GitHubLogin(c echo.Context) error {
	if !h.GitHub.Enabled() {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "github login not configured"})
	}
	return c.Redirect(http.StatusFound, h.GitHub.AuthURL("login"))
}

// GitHubCallback finishes the OAuth handoff: exchange the code, find or
// create the account by email, set the refresh cookie and send the browser
// home.  No access token is returned here — the frontend's first API call
// gets a 401 and transparently hits the refresh endpoint.
func (h *AuthHandler) GitHubCallback(c echo.Context) error {
	if !h.GitHub.Enabled() {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "github login not configured"})
	}
	code := c.QueryParam("code")
	if code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "code required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	profile, err := h.GitHub.Exchange(ctx, code)
	if err != nil {
		if errors.Is(err, oauth.ErrNoPublicEmail) {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "github email must be public"})
		}
		h.Logger.Warn("github: exchange failed", zap.Error(err))
		return c.JSON(http.StatusForbidden, echo.Map{"error": "github login failed"})
	}

	u, err := h.Users.GetByEmail(ctx, profile.Email)
	if errors.Is(err, repository.ErrNotFound) {
		// First GitHub login creates the account.  The GitHub id stands in
		// for a password; it is hashed like any other.
		if _, err := h.Users.Create(ctx, profile.Username, profile.Email, profile.GitHubID, profile.Avatar, model.RolePublic, h.Cfg.BcryptCost); err != nil {
			h.Logger.Warn("github: create user failed", zap.Error(err))
			return c.JSON(http.StatusForbidden, echo.Map{"error": "github login failed"})
		}
		u, err = h.Users.GetByEmail(ctx, profile.Email)
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	refresh, err := h.Tokens.IssueRefresh(identityOf(u))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue refresh failed"})
	}
	utils.SetRefreshCookie(c, refresh, time.Duration(h.Cfg.RefreshTTLDays)*24*time.Hour)

	return c.Redirect(http.StatusFound, h.Cfg.FrontendHomeURL)
}
