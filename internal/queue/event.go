// Package queue defines message payloads exchanged over the message broker.
package queue

// Security event types.
const (
    EventRefreshReuse         = "refresh_token.reuse_detected"
    EventReconciliationFailed = "reconciliation.failed"
)

// SecurityEvent is published when something happens that an operator may
// need to act on: a rotated refresh token was presented again, or guest
// data could not be folded into an account and needs offline repair.
type SecurityEvent struct {
    Type        string `json:"type"`
    UserID      string `json:"user_id,omitempty"`
    SessionID   string `json:"session_id,omitempty"`
    Operation   string `json:"operation,omitempty"`
    Error       string `json:"error,omitempty"`
    ClientIP    string `json:"client_ip,omitempty"`
    RequestID   string `json:"request_id,omitempty"`
    // WithinGrace marks a replayed refresh token seen shortly after its
    // rotation, where sessions are left intact.
    WithinGrace bool   `json:"within_grace,omitempty"`
    OccurredAt  string `json:"occurred_at"`
}
