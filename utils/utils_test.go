package utils

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	secret := []byte("secret")
	token, err := GenerateToken(secret, "u1", "alice", "admin", "s1", time.Now().Add(time.Hour))
	require.NoError(t, err)

	claims, err := ValidateToken(secret, token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.ID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, "s1", claims.SessionID)

	_, err = ValidateToken([]byte("other"), token)
	assert.Error(t, err)
}

func TestExpiredTokenIsRejected(t *testing.T) {
	secret := []byte("secret")
	token, err := GenerateToken(secret, "u1", "alice", "admin", "s1", time.Now().Add(-time.Minute))
	require.NoError(t, err)
	_, err = ValidateToken(secret, token)
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("secret123")
	require.NoError(t, err)
	assert.NotEqual(t, "secret123", hash)
	assert.NoError(t, VerifyPassword(hash, "secret123"))
	assert.Error(t, VerifyPassword(hash, "secret124"))
}

func TestMoney(t *testing.T) {
	assert.Equal(t, 0.3, SumMoney(decimal.NewFromFloat(0.1), decimal.NewFromFloat(0.2)))
	assert.Equal(t, 29.97, SumMoney(LineAmount(3, 9.99)))
	assert.Equal(t, 1.01, RoundMoney(1.005))
	assert.Equal(t, 0.0, SumMoney())
}

func TestSweepSchedulerRunsJob(t *testing.T) {
	runs := make(chan struct{}, 1)
	s, err := NewSweepScheduler(time.UTC, 10*time.Millisecond, func() {
		select {
		case runs <- struct{}{}:
		default:
		}
	})
	require.NoError(t, err)
	s.StartAsync()
	defer s.Stop()

	select {
	case <-runs:
	case <-time.After(2 * time.Second):
		t.Fatal("sweep job never ran")
	}
}
