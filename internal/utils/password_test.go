package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerifyPassword(t *testing.T) {
	h, err := HashPassword("hunter22", bcrypt.MinCost)
	require.NoError(t, err)

	assert.True(t, VerifyPassword(h, "hunter22"))
	assert.False(t, VerifyPassword(h, "hunter23"))
	assert.False(t, VerifyPassword("not-a-hash", "hunter22"))
}

func TestHashPassword_OutOfRangeCostFallsBack(t *testing.T) {
	h, err := HashPassword("pw", 99)
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(h))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, cost)
}

func TestDecoyHash_MatchesPasswordCost(t *testing.T) {
	for _, cost := range []int{bcrypt.MinCost, bcrypt.MinCost + 1, 0} {
		hash, err := HashPassword("pw", cost)
		require.NoError(t, err)
		decoy, err := NewDecoyHash(cost)
		require.NoError(t, err)

		want, err := bcrypt.Cost([]byte(hash))
		require.NoError(t, err)
		got, err := bcrypt.Cost(decoy)
		require.NoError(t, err)
		assert.Equal(t, want, got, "cost=%d", cost)
	}
}

func TestDecoyHash_NeverMatches(t *testing.T) {
	decoy, err := NewDecoyHash(bcrypt.MinCost)
	require.NoError(t, err)
	assert.False(t, VerifyPassword(string(decoy), ""))
	assert.False(t, VerifyPassword(string(decoy), "not-a-real-password"))
	decoy.Burn("anything")
}
