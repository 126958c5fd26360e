package storage

import (
	"math/big"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"remithub/core/types"
	"remithub/native/escrow"
	"remithub/native/fx"
	"remithub/native/hub"
)

func testAddr(fill byte) types.Address {
	var addr types.Address
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func TestEscrowRoundTrip(t *testing.T) {
	state := NewState(NewMemDB())

	_, ok := state.EscrowGet(1)
	require.False(t, ok)

	esc := &escrow.Escrow{
		ID:              1,
		Sender:          testAddr(0x0A),
		Recipient:       testAddr(0x0B),
		Amount:          big.NewInt(1_000),
		DepositedAmount: big.NewInt(400),
		ReleasedAmount:  big.NewInt(0),
		RefundedAmount:  big.NewInt(0),
		Asset:           escrow.Asset{Code: "USD"},
		Conditions: escrow.ReleaseConditions{
			ExpirationTimestamp: 5_000,
			Conditions: []escrow.Condition{
				{Type: escrow.ConditionOraclePrice, Required: true, ThresholdValue: big.NewInt(50)},
			},
		},
		Status:    escrow.StatusPending,
		CreatedAt: 1_000,
		Memo:      "rent",
	}
	require.NoError(t, state.EscrowPut(esc))

	loaded, ok := state.EscrowGet(1)
	require.True(t, ok)
	require.Equal(t, esc.Sender, loaded.Sender)
	require.Equal(t, int64(400), loaded.DepositedAmount.Int64())
	require.Equal(t, int64(50), loaded.Conditions.Conditions[0].ThresholdValue.Int64())
	require.Equal(t, "rent", loaded.Memo)
}

func TestCounters(t *testing.T) {
	state := NewState(NewMemDB())

	v, err := state.EscrowCounter()
	require.NoError(t, err)
	require.Equal(t, uint64(0), v)

	require.NoError(t, state.EscrowCounterPut(7))
	v, err = state.EscrowCounter()
	require.NoError(t, err)
	require.Equal(t, uint64(7), v)

	// Counters are independent per record class.
	v, err = state.InvoiceCounter()
	require.NoError(t, err)
	require.Equal(t, uint64(0), v)
}

func TestMultiPartyRoundTrip(t *testing.T) {
	state := NewState(NewMemDB())

	approver := testAddr(0x21)
	cfg := &escrow.MultiPartyConfig{
		EscrowID:             3,
		RequiredApprovals:    2,
		WhitelistedApprovers: []types.Address{approver, testAddr(0x22)},
		Approvals:            map[types.Address]bool{approver: true},
	}
	require.NoError(t, state.MultiPartyPut(cfg))

	loaded, ok := state.MultiPartyGet(3)
	require.True(t, ok)
	require.Equal(t, uint32(2), loaded.RequiredApprovals)
	require.True(t, loaded.Approvals[approver])
	require.Len(t, loaded.WhitelistedApprovers, 2)
}

func TestSupportedAssets(t *testing.T) {
	state := NewState(NewMemDB())

	ok, err := state.SupportedAsset("USD")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, state.SupportedAssetPut("USD", true))
	ok, err = state.SupportedAsset("USD")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, state.SupportedAssetPut("USD", false))
	ok, err = state.SupportedAsset("USD")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAccountRoundTrip(t *testing.T) {
	state := NewState(NewMemDB())
	addr := testAddr(0x0A)

	acc, err := state.GetAccount(addr)
	require.NoError(t, err)
	require.Equal(t, int64(0), acc.Balance("USD").Int64())

	acc.SetBalance("USD", big.NewInt(123))
	require.NoError(t, state.PutAccount(addr, acc))

	loaded, err := state.GetAccount(addr)
	require.NoError(t, err)
	require.Equal(t, int64(123), loaded.Balance("USD").Int64())
}

func TestInvoiceLink(t *testing.T) {
	state := NewState(NewMemDB())

	inv := &hub.Invoice{
		ID:        9,
		Sender:    testAddr(0x0A),
		Recipient: testAddr(0x0B),
		Amount:    big.NewInt(500),
		Fee:       big.NewInt(12),
		Total:     big.NewInt(512),
		EscrowID:  4,
		DueDate:   5_000,
	}
	require.NoError(t, state.InvoicePut(inv))
	require.NoError(t, state.InvoiceLinkPut(4, 9))

	id, ok := state.InvoiceLinkGet(4)
	require.True(t, ok)
	require.Equal(t, uint64(9), id)

	loaded, ok := state.InvoiceGet(9)
	require.True(t, ok)
	require.Equal(t, int64(512), loaded.Total.Int64())

	_, ok = state.InvoiceLinkGet(5)
	require.False(t, ok)
}

func TestCachedRateStore(t *testing.T) {
	state := NewState(NewMemDB())

	_, ok, err := state.CachedRateGet("USD", "EUR")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, state.CachedRatePut(&fx.CachedRate{
		Rate:        big.NewInt(920_000),
		Denominator: big.NewInt(1_000_000),
		Timestamp:   900,
		FromAsset:   "usd",
		ToAsset:     "eur",
	}))

	// Symbols normalize on both write and read.
	cached, ok, err := state.CachedRateGet("USD", "EUR")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(920_000), cached.Rate.Int64())
}

func TestResolverUsesPersistentCache(t *testing.T) {
	state := NewState(NewMemDB())
	source := fx.NewManualSource()
	require.NoError(t, source.SetRate("USD", "EUR", big.NewInt(920_000), big.NewInt(1_000_000), 900))

	resolver := fx.NewResolver(source, nil, state, 3_600)
	resolver.SetNowFunc(func() int64 { return 1_000 })

	// A fresh quote lands in the persistent cache.
	result, err := resolver.Convert(big.NewInt(1_000), "USD", "EUR")
	require.NoError(t, err)
	require.Equal(t, int64(920), result.ConvertedAmount.Int64())

	// With the oracle gone, conversion keeps working off the cache.
	source.Unset("USD", "EUR")
	result, err = resolver.Convert(big.NewInt(500), "USD", "EUR")
	require.NoError(t, err)
	require.Equal(t, int64(460), result.ConvertedAmount.Int64())
}

func TestShortAssetKeysStayIsolated(t *testing.T) {
	state := NewState(NewMemDB())

	// Short codes fit inside the rounded-up capacity of the shared prefix
	// slice, so the key builders must copy before appending. Concurrent
	// writers on distinct short keys must never observe each other's bytes.
	var wg sync.WaitGroup
	for _, key := range []string{"A", "B", "C", "XR"} {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				require.NoError(t, state.SupportedAssetPut(key, true))
				ok, err := state.SupportedAsset(key)
				require.NoError(t, err)
				require.True(t, ok)
			}
		}(key)
	}
	wg.Wait()

	for _, key := range []string{"A", "B", "C", "XR"} {
		ok, err := state.SupportedAsset(key)
		require.NoError(t, err)
		require.True(t, ok)
	}
	ok, err := state.SupportedAsset("D")
	require.NoError(t, err)
	require.False(t, ok)
}
