// Package repository implements MySQL persistence for users, refresh
// tokens, carts, wishlists, orders and the read-only product catalog.
// The sentinel values below let higher layers distinguish failure
// scenarios without inspecting driver errors.
package repository

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write collides with an existing row,
// e.g. re-keying a guest cart onto a user that already has one.
var ErrConflict = errors.New("conflict")

// ErrEmailExists is returned by UserRepo.Create on a duplicate address.
var ErrEmailExists = errors.New("email already exists")

// Refresh token failures.  None of them reveal to the client which case
// applied; they exist for logging and for reuse handling.
var (
	ErrRefreshNotFound = errors.New("refresh token not found")
	ErrRefreshExpired  = errors.New("refresh token expired")
	ErrRefreshRevoked  = errors.New("refresh token revoked")
	ErrRefreshReused   = errors.New("refresh token already rotated")
)

// ReuseError reports presentation of a refresh token that was already
// rotated.  It matches ErrRefreshReused with errors.Is.
type ReuseError struct {
	UserID    string
	RotatedAt time.Time
}

func (e *ReuseError) Error() string {
	return fmt.Sprintf("%s (user %s, rotated at %s)", ErrRefreshReused, e.UserID, e.RotatedAt.Format(time.RFC3339))
}

func (e *ReuseError) Is(target error) bool { return target == ErrRefreshReused }
