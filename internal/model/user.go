package model

import "time"

// User account status values stored in `users.status`.  Disabled users keep
// their record (soft disable) but can no longer log in or refresh tokens.
const (
	StatusDisabled uint8 = 0
	StatusEnabled  uint8 = 1
)

// User represents an application user record as stored in the `users`
// table.  Each field corresponds to a column in the database.  The json
// tags are omitted here because these structs are primarily used
// internally by the repository layer; handlers define separate response
// types with appropriate JSON tags.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Username     – unique display name, also the key for real-time queues.
//  Email        – unique email address.
//  PasswordHash – bcrypt hashed password.
//  RoleID       – foreign key into the roles table (ordinal role tier).
//  Status       – StatusEnabled or StatusDisabled.
//  Avatar       – avatar URL, may be empty.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    // users.id
	Username     string    // users.username
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	RoleID       Role      // users.role_id (references roles.id)
	Status       uint8     // users.status
	Avatar       string    // users.avatar
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// Enabled reports whether the account may authenticate.
func (u User) Enabled() bool { return u.Status == StatusEnabled }
