package common

import (
	"testing"

	"github.com/stretchr/testify/require"

	"remithub/core/types"
)

func addr(fill byte) types.Address {
	var a types.Address
	for i := range a {
		a[i] = fill
	}
	return a
}

func TestGuard(t *testing.T) {
	require.NoError(t, Guard(nil, "escrow"))
	require.NoError(t, Guard(PauseSet{}, ""))
	require.NoError(t, Guard(PauseSet{"hub": true}, "escrow"))
	require.ErrorIs(t, Guard(PauseSet{"hub": true}, "hub"), ErrModulePaused)
}

func TestRateLimiterWindow(t *testing.T) {
	limiter := NewRateLimiter(RateLimitConfig{Enabled: true, MaxCount: 2, Interval: 60}, addr(0x01))
	caller := addr(0x02)

	require.True(t, limiter.Allow(caller, FunctionDeposit, 100))
	require.True(t, limiter.Allow(caller, FunctionDeposit, 110))
	require.False(t, limiter.Allow(caller, FunctionDeposit, 120))

	// Window rolls over.
	require.True(t, limiter.Allow(caller, FunctionDeposit, 160))

	// Separate function type has its own counter.
	require.True(t, limiter.Allow(caller, FunctionRelease, 120))
}

func TestRateLimiterExemptions(t *testing.T) {
	admin := addr(0x01)
	caller := addr(0x02)
	limiter := NewRateLimiter(RateLimitConfig{Enabled: true, MaxCount: 1, Interval: 60}, admin)

	// Admin is always exempt.
	for i := int64(0); i < 5; i++ {
		require.True(t, limiter.Allow(admin, FunctionRefund, i))
	}

	require.True(t, limiter.Allow(caller, FunctionRefund, 0))
	require.False(t, limiter.Allow(caller, FunctionRefund, 1))

	require.False(t, limiter.SetExempt(caller, caller, true))
	require.True(t, limiter.SetExempt(admin, caller, true))
	require.True(t, limiter.Allow(caller, FunctionRefund, 2))
}

func TestRateLimiterDisabled(t *testing.T) {
	limiter := NewRateLimiter(RateLimitConfig{}, addr(0x01))
	for i := int64(0); i < 10; i++ {
		require.True(t, limiter.Allow(addr(0x02), FunctionInvoice, i))
	}
}
