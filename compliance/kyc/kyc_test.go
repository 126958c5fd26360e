package kyc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"remithub/core/types"
)

func kycAddr(fill byte) types.Address {
	var addr types.Address
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func TestRegistryCheck(t *testing.T) {
	admin := kycAddr(0x01)
	sender := kycAddr(0x0A)
	recipient := kycAddr(0x0B)

	reg := NewRegistry(admin)
	reg.SetNowFunc(func() int64 { return 42 })

	result, err := reg.Check(sender, recipient)
	require.NoError(t, err)
	require.False(t, result.SenderVerified)
	require.False(t, result.RecipientVerified)

	require.NoError(t, reg.SetStatus(admin, sender, StatusVerified))
	require.NoError(t, reg.SetStatus(admin, recipient, StatusVerified))

	result, err = reg.Check(sender, recipient)
	require.NoError(t, err)
	require.True(t, result.SenderVerified)
	require.True(t, result.RecipientVerified)
	require.Equal(t, int64(42), result.Timestamp)

	require.NoError(t, reg.SetStatus(admin, recipient, StatusSuspended))
	result, err = reg.Check(sender, recipient)
	require.NoError(t, err)
	require.False(t, result.RecipientVerified)
}

func TestRegistryAdminOnly(t *testing.T) {
	admin := kycAddr(0x01)
	stranger := kycAddr(0x0C)

	reg := NewRegistry(admin)
	require.ErrorIs(t, reg.SetStatus(stranger, stranger, StatusVerified), ErrUnauthorized)
	require.Equal(t, StatusUnknown, reg.StatusOf(stranger))
}

func TestUnavailableChecker(t *testing.T) {
	_, err := UnavailableChecker{}.Check(kycAddr(0x0A), kycAddr(0x0B))
	require.ErrorIs(t, err, ErrOracleUnavailable)
}
