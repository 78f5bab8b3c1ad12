package utils

import "golang.org/x/crypto/bcrypt"

// HashPassword returns bcrypt hash using the given cost.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), normalizeCost(cost))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword safely compares bcrypt hash and plain password.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// DecoyHash is compared against when the account does not exist, so an
// unknown email costs the same bcrypt work as a wrong password.  It must be
// built with the cost real passwords are hashed with.
type DecoyHash []byte

// NewDecoyHash hashes a throwaway secret at cost.
func NewDecoyHash(cost int) (DecoyHash, error) {
	secret, err := randomHex(16)
	if err != nil {
		return nil, err
	}
	b, err := bcrypt.GenerateFromPassword([]byte(secret), normalizeCost(cost))
	if err != nil {
		return nil, err
	}
	return DecoyHash(b), nil
}

// Burn performs a comparison that always fails.
func (d DecoyHash) Burn(plain string) {
	_ = bcrypt.CompareHashAndPassword(d, []byte(plain))
}

func normalizeCost(cost int) int {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return bcrypt.DefaultCost
	}
	return cost
}
