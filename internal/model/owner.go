package model

import "fmt"

// OwnerKind discriminates the two kinds of cart/wishlist owner.
type OwnerKind string

const (
    OwnerUser  OwnerKind = "user"
    OwnerGuest OwnerKind = "guest"
)

// OwnerKey identifies who a cart or wishlist belongs to: either an
// authenticated user id or an anonymous guest session id, never both.
// The zero value owns nothing; build keys with UserOwner or GuestOwner.
type OwnerKey struct {
    kind OwnerKind
    id   string
}

// UserOwner keys a document by user id.
func UserOwner(userID string) OwnerKey { return OwnerKey{kind: OwnerUser, id: userID} }

// GuestOwner keys a document by guest session id.
func GuestOwner(sessionID string) OwnerKey { return OwnerKey{kind: OwnerGuest, id: sessionID} }

// OwnerFromParts rebuilds a key read back from storage.
func OwnerFromParts(kind, id string) (OwnerKey, error) {
    switch OwnerKind(kind) {
    case OwnerUser:
        return UserOwner(id), nil
    case OwnerGuest:
        return GuestOwner(id), nil
    }
    return OwnerKey{}, fmt.Errorf("unknown owner kind %q", kind)
}

func (k OwnerKey) Kind() OwnerKind { return k.kind }
func (k OwnerKey) ID() string      { return k.id }

// IsZero reports whether the key was never set.
func (k OwnerKey) IsZero() bool { return k.kind == "" || k.id == "" }

func (k OwnerKey) String() string { return string(k.kind) + ":" + k.id }
