// Package repository implements data access for users, user roles and
// refresh tokens over MySQL.  Sentinel errors defined here let handlers
// and services distinguish failure classes without inspecting driver
// errors.  Lookup methods report an absent row as (nil, nil) rather than
// an error; ErrNotFound is used narrowly by operations that must address
// an existing row.
package repository

import "errors"

// ErrEmailExists is returned when a create would violate the unique-email
// invariant among active users.  Handlers translate this into HTTP 409.
var ErrEmailExists = errors.New("email already exists")

// ErrNotFound is returned by update/delete operations addressing a row
// that does not exist (or was soft-deleted).
var ErrNotFound = errors.New("record not found")
