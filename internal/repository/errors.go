// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. For
// example, ErrForbidden indicates that the current user is not
// authorized to perform an operation on a resource owned by someone
// else, while the *Exists values signal unique-key collisions that
// surface to the client as HTTP 409 with the specific collision reason.
package repository

import "errors"

// ErrNotFound is returned when the requested entity does not exist.
// Handlers should translate this into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation
// on a resource above their privilege tier. Handlers should translate
// this into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrUsernameExists signals a duplicate username on insert or update.
var ErrUsernameExists = errors.New("username already exists")

// ErrEmailExists signals a duplicate email on insert or update.
var ErrEmailExists = errors.New("email already exists")

// ErrTemplateExists signals a duplicate template name.
var ErrTemplateExists = errors.New("template already exists")
