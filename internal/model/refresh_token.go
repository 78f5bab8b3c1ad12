package model

import "time"

// RefreshToken models an entry in the `refresh_tokens` table.  The raw
// token is never stored; TokenHash is a keyed HMAC-SHA256 digest of it.
//
// A record is active while RevokedAt and ReplacedByHash are both nil and
// ExpiresAt lies in the future.  Rotation sets both RevokedAt and
// ReplacedByHash; explicit revocation sets RevokedAt only.  Both states
// are terminal.
type RefreshToken struct {
    ID             uint64     // refresh_tokens.id
    TokenHash      string     // refresh_tokens.token_hash
    UserID         string     // refresh_tokens.user_id
    IssuedAt       time.Time  // refresh_tokens.issued_at
    ExpiresAt      time.Time  // refresh_tokens.expires_at
    RevokedAt      *time.Time // refresh_tokens.revoked_at (nullable)
    ReplacedByHash *string    // refresh_tokens.replaced_by_hash (nullable)
    ClientMeta
}

// ClientMeta is the optional request metadata recorded with each refresh
// token so sessions can be listed and audited per device.
type ClientMeta struct {
    DeviceInfo string
    ClientIP   string
    UserAgent  string
}

// Active reports whether the record can still be exchanged at time now.
func (t RefreshToken) Active(now time.Time) bool {
    return t.RevokedAt == nil && t.ReplacedByHash == nil && now.Before(t.ExpiresAt)
}
