package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/memflow/lowcode-backend/internal/model"
	"github.com/memflow/lowcode-backend/internal/utils"
)

const userColumns = "id,username,email,password_hash,role_id,status,avatar,created_at,updated_at"

// UserRepo persists user accounts in the 'users' table.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// AdminInfo is the subset of user fields exposed when listing approvers.
type AdminInfo struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Avatar   string `json:"avatar"`
}

// UserUpdate carries the mutable profile fields for Update.  Zero values
// mean "leave unchanged" except Status, which is always written.
type UserUpdate struct {
	Username string
	Email    string
	Avatar   string
	Role     model.Role
	Status   uint8
}

// Create inserts a user with the given role and returns its ID.
func (r *UserRepo) Create(ctx context.Context, username, email, password, avatar string, role model.Role, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (username, email, password_hash, role_id, status, avatar) VALUES (?,?,?,?,?,?)",
		username, email, hash, uint8(role), model.StatusEnabled, avatar)
	if err != nil {
		return 0, duplicateKeyError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email)
}

// GetByUsername fetches a user by username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (model.User, error) {
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE username=? LIMIT 1", username)
}

func (r *UserRepo) getOne(ctx context.Context, query string, arg any) (model.User, error) {
	var u model.User
	var roleID uint8
	err := r.DB.QueryRowContext(ctx, query, arg).
		Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &roleID, &u.Status, &u.Avatar, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, err
	}
	u.RoleID = model.Role(roleID)
	return u, nil
}

// List returns all users without password hashes.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id,username,email,role_id,status,avatar,created_at,updated_at FROM users ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var u model.User
		var roleID uint8
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &roleID, &u.Status, &u.Avatar, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		u.RoleID = model.Role(roleID)
		users = append(users, u)
	}
	return users, rows.Err()
}

// ListAdmins returns everyone at admin tier or above, in the shape the
// frontend needs to populate the approver picker.
func (r *UserRepo) ListAdmins(ctx context.Context) ([]AdminInfo, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT username,email,avatar FROM users WHERE role_id >= ? AND status = ? ORDER BY username",
		uint8(model.RoleAdmin), model.StatusEnabled)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var admins []AdminInfo
	for rows.Next() {
		var a AdminInfo
		if err := rows.Scan(&a.Username, &a.Email, &a.Avatar); err != nil {
			return nil, err
		}
		admins = append(admins, a)
	}
	return admins, rows.Err()
}

// Update rewrites the mutable profile fields of the named user.
func (r *UserRepo) Update(ctx context.Context, username string, upd UserUpdate) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET username=?, email=?, avatar=?, role_id=?, status=? WHERE username=?",
		upd.Username, strings.ToLower(strings.TrimSpace(upd.Email)), upd.Avatar, uint8(upd.Role), upd.Status, username)
	if err != nil {
		return duplicateKeyError(err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return err
}

// UpdatePassword replaces the password hash for the account with the given
// email address.
func (r *UserRepo) UpdatePassword(ctx context.Context, email, password string, cost int) error {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, "UPDATE users SET password_hash=? WHERE email=?", hash, email)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return err
}

// Delete removes a user record entirely.  Soft-disable is the normal path;
// this is the explicit admin delete.
func (r *UserRepo) Delete(ctx context.Context, username string) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM users WHERE username=?", username)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return err
}

// duplicateKeyError maps MySQL duplicate-key failures (error 1062) onto the
// sentinel for whichever unique index collided.
func duplicateKeyError(err error) error {
	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "1062") {
		return err
	}
	if strings.Contains(msg, "email") {
		return ErrEmailExists
	}
	return ErrUsernameExists
}
