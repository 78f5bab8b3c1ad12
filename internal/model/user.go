package model

import (
    "strings"
    "time"
)

// Role names stored in users.role and carried in the access token's role
// claim.  Self-service registration always produces RoleCustomer.
const (
    RoleAdmin    = "admin"
    RoleCustomer = "customer"
)

// User represents an application user record as stored in the
// `users` table.  The json tags are omitted because handlers define
// their own response shapes.
//
// Fields:
//  ID           – opaque identifier ("usr_" + KSUID).
//  Email        – unique, lowercase and trimmed.
//  Name         – optional display name.
//  PasswordHash – bcrypt hashed password.
//  Role         – admin or customer.
//  IsActive     – whether the account may log in.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
    ID           string    // users.id
    Email        string    // users.email
    Name         string    // users.name
    PasswordHash string    // users.password_hash
    Role         string    // users.role
    IsActive     bool      // users.is_active
    CreatedAt    time.Time // users.created_at
    UpdatedAt    time.Time // users.updated_at
}

// NormalizeEmail lowercases and trims an address.  Every lookup and every
// guest-order association goes through it so that the same mailbox always
// maps to the same key.
func NormalizeEmail(email string) string {
    return strings.ToLower(strings.TrimSpace(email))
}
