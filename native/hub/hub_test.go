package hub

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"remithub/compliance/aml"
	"remithub/core/types"
	"remithub/native/common"
	"remithub/native/escrow"
	"remithub/native/fees"
	"remithub/native/fx"
)

type mockState struct {
	invoices          map[uint64]*Invoice
	invoiceCounter    uint64
	invoiceByEscrow   map[uint64]uint64
	remittances       map[uint64]*Remittance
	remittanceCounter uint64
}

func newMockState() *mockState {
	return &mockState{
		invoices:        make(map[uint64]*Invoice),
		invoiceByEscrow: make(map[uint64]uint64),
		remittances:     make(map[uint64]*Remittance),
	}
}

func (m *mockState) InvoicePut(inv *Invoice) error {
	m.invoices[inv.ID] = inv.Clone()
	return nil
}

func (m *mockState) InvoiceGet(id uint64) (*Invoice, bool) {
	inv, ok := m.invoices[id]
	if !ok {
		return nil, false
	}
	return inv.Clone(), true
}

func (m *mockState) InvoiceCounter() (uint64, error) { return m.invoiceCounter, nil }

func (m *mockState) InvoiceCounterPut(v uint64) error {
	m.invoiceCounter = v
	return nil
}

func (m *mockState) InvoiceLinkPut(escrowID, invoiceID uint64) error {
	m.invoiceByEscrow[escrowID] = invoiceID
	return nil
}

func (m *mockState) InvoiceLinkGet(escrowID uint64) (uint64, bool) {
	id, ok := m.invoiceByEscrow[escrowID]
	return id, ok
}

func (m *mockState) RemittancePut(rem *Remittance) error {
	m.remittances[rem.ID] = rem.Clone()
	return nil
}

func (m *mockState) RemittanceGet(id uint64) (*Remittance, bool) {
	rem, ok := m.remittances[id]
	if !ok {
		return nil, false
	}
	return rem.Clone(), true
}

func (m *mockState) RemittanceCounter() (uint64, error) { return m.remittanceCounter, nil }

func (m *mockState) RemittanceCounterPut(v uint64) error {
	m.remittanceCounter = v
	return nil
}

func testAddr(fill byte) types.Address {
	var addr types.Address
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

var (
	admin     = testAddr(0x01)
	sender    = testAddr(0x0A)
	recipient = testAddr(0x0B)
	stranger  = testAddr(0x0C)
)

func newTestHub(state *mockState) *Hub {
	h := New()
	h.SetState(state)
	h.SetAdmin(admin)
	h.SetNowFunc(func() int64 { return 1_000 })
	return h
}

func newTestResolver(t *testing.T) *fx.Resolver {
	t.Helper()
	source := fx.NewManualSource()
	require.NoError(t, source.SetRate("USD", "EUR", big.NewInt(920_000), big.NewInt(1_000_000), 0))
	resolver := fx.NewResolver(source, nil, nil, 0)
	resolver.SetNowFunc(func() int64 { return 1_000 })
	return resolver
}

func TestGenerateInvoice(t *testing.T) {
	state := newMockState()
	h := newTestHub(state)
	h.SetResolver(newTestResolver(t))

	_, err := h.GenerateInvoice(sender, recipient, big.NewInt(0), "USD", "EUR", 5_000, 0, "")
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = h.GenerateInvoice(sender, sender, big.NewInt(1_000), "USD", "EUR", 5_000, 0, "")
	require.ErrorIs(t, err, ErrSameSenderRecipient)

	_, err = h.GenerateInvoice(sender, recipient, big.NewInt(1_000), "USD", "EUR", 1_000, 0, "")
	require.ErrorIs(t, err, ErrInvalidDueDate)

	inv, err := h.GenerateInvoice(sender, recipient, big.NewInt(1_000), "USD", "EUR", 5_000, 0, "shipment")
	require.NoError(t, err)
	require.Equal(t, uint64(1), inv.ID)
	require.Equal(t, int64(25), inv.Fee.Int64())
	require.Equal(t, int64(1_025), inv.Total.Int64())
	require.Equal(t, int64(920), inv.ConvertedAmount.Int64())
	require.Equal(t, InvoicePending, inv.Status)
}

func TestGenerateInvoiceOracleFallback(t *testing.T) {
	state := newMockState()
	h := newTestHub(state)
	// Resolver with an empty source: every conversion fails, billing
	// falls back to the raw amount.
	resolver := fx.NewResolver(fx.NewManualSource(), nil, nil, 0)
	h.SetResolver(resolver)

	inv, err := h.GenerateInvoice(sender, recipient, big.NewInt(1_000), "USD", "EUR", 5_000, 0, "")
	require.NoError(t, err)
	require.Equal(t, int64(1_000), inv.ConvertedAmount.Int64())
}

func TestInvoiceEscrowLink(t *testing.T) {
	state := newMockState()
	h := newTestHub(state)

	inv, err := h.GenerateInvoice(sender, recipient, big.NewInt(500), "USD", "USD", 5_000, 42, "")
	require.NoError(t, err)

	linked, ok := h.GetInvoiceByEscrow(42)
	require.True(t, ok)
	require.Equal(t, inv.ID, linked.ID)

	_, ok = h.GetInvoiceByEscrow(43)
	require.False(t, ok)
}

func TestInvoiceLifecycle(t *testing.T) {
	state := newMockState()
	h := newTestHub(state)

	inv, err := h.GenerateInvoice(sender, recipient, big.NewInt(500), "USD", "USD", 5_000, 0, "")
	require.NoError(t, err)

	_, err = h.MarkInvoicePaid(inv.ID, stranger)
	require.ErrorIs(t, err, ErrUnauthorizedCaller)

	_, err = h.MarkInvoiceOverdue(inv.ID)
	require.ErrorIs(t, err, ErrInvoiceNotOverdue)

	paid, err := h.MarkInvoicePaid(inv.ID, recipient)
	require.NoError(t, err)
	require.Equal(t, InvoicePaid, paid.Status)
	require.Equal(t, int64(1_000), paid.PaidAt)

	_, err = h.MarkInvoicePaid(inv.ID, recipient)
	require.ErrorIs(t, err, ErrInvoicePaid)

	_, err = h.CancelInvoice(inv.ID, sender)
	require.ErrorIs(t, err, ErrInvoicePaid)
}

func TestInvoiceOverdueAndCancel(t *testing.T) {
	state := newMockState()
	h := newTestHub(state)
	now := int64(1_000)
	h.SetNowFunc(func() int64 { return now })

	inv, err := h.GenerateInvoice(sender, recipient, big.NewInt(500), "USD", "USD", 2_000, 0, "")
	require.NoError(t, err)

	now = 2_001
	overdue, err := h.MarkInvoiceOverdue(inv.ID)
	require.NoError(t, err)
	require.Equal(t, InvoiceOverdue, overdue.Status)

	// Overdue invoices can still be settled.
	paid, err := h.MarkInvoicePaid(inv.ID, sender)
	require.NoError(t, err)
	require.Equal(t, InvoicePaid, paid.Status)

	inv2, err := h.GenerateInvoice(sender, recipient, big.NewInt(500), "USD", "USD", 5_000, 0, "")
	require.NoError(t, err)

	_, err = h.CancelInvoice(inv2.ID, recipient)
	require.ErrorIs(t, err, ErrUnauthorizedCaller)

	cancelled, err := h.CancelInvoice(inv2.ID, sender)
	require.NoError(t, err)
	require.Equal(t, InvoiceCancelled, cancelled.Status)
}

func TestUpdateInvoiceAmount(t *testing.T) {
	state := newMockState()
	h := newTestHub(state)
	h.SetResolver(newTestResolver(t))

	inv, err := h.GenerateInvoice(sender, recipient, big.NewInt(1_000), "USD", "EUR", 5_000, 0, "")
	require.NoError(t, err)

	_, err = h.UpdateInvoiceAmount(inv.ID, recipient, big.NewInt(2_000))
	require.ErrorIs(t, err, ErrUnauthorizedCaller)

	updated, err := h.UpdateInvoiceAmount(inv.ID, sender, big.NewInt(2_000))
	require.NoError(t, err)
	require.Equal(t, int64(50), updated.Fee.Int64())
	require.Equal(t, int64(2_050), updated.Total.Int64())
	require.Equal(t, int64(1_840), updated.ConvertedAmount.Int64())

	_, err = h.MarkInvoicePaid(inv.ID, sender)
	require.NoError(t, err)
	_, err = h.UpdateInvoiceAmount(inv.ID, sender, big.NewInt(100))
	require.ErrorIs(t, err, ErrInvoiceNotOpen)
}

func TestSendRemittance(t *testing.T) {
	state := newMockState()
	h := newTestHub(state)
	h.SetResolver(newTestResolver(t))

	_, err := h.SendRemittance(sender, recipient, big.NewInt(0), "USD", "EUR", "")
	require.ErrorIs(t, err, ErrInvalidAmount)

	rem, err := h.SendRemittance(sender, recipient, big.NewInt(1_000), "USD", "EUR", "family")
	require.NoError(t, err)
	require.Equal(t, uint64(1), rem.ID)
	require.Equal(t, RemittancePending, rem.Status)
	require.Equal(t, int64(920), rem.ConvertedAmount.Int64())
	require.False(t, rem.AmlFlagged)

	completed, err := h.CompleteRemittance(rem.ID, recipient)
	require.NoError(t, err)
	require.Equal(t, RemittanceCompleted, completed.Status)

	_, err = h.CompleteRemittance(rem.ID, recipient)
	require.ErrorIs(t, err, ErrRemittanceClosed)
}

func TestRemittanceFeeSchedule(t *testing.T) {
	state := newMockState()
	h := newTestHub(state)
	h.SetRemittanceFees(fees.Schedule{
		PlatformBps:    250,
		ForexBps:       100,
		ComplianceFlat: big.NewInt(10),
	})

	rem, err := h.SendRemittance(sender, recipient, big.NewInt(1_000), "USD", "EUR", "")
	require.NoError(t, err)
	require.Equal(t, int64(45), rem.Fee.Int64())
	require.Equal(t, int64(1_045), rem.Total.Int64())

	// The schedule rejects payments the fee would swallow.
	h.SetRemittanceFees(fees.Schedule{MinFee: big.NewInt(100)})
	_, err = h.SendRemittance(sender, recipient, big.NewInt(50), "USD", "EUR", "")
	require.ErrorIs(t, err, fees.ErrFeeExceedsAmount)
}

func TestAmlFlagAndClear(t *testing.T) {
	state := newMockState()
	h := newTestHub(state)
	table := aml.NewScoreTable(admin)
	require.NoError(t, table.SetScore(admin, sender, 80))
	h.SetScreener(table, 50)

	rem, err := h.SendRemittance(sender, recipient, big.NewInt(1_000), "USD", "USD", "")
	require.NoError(t, err)
	require.True(t, rem.AmlFlagged)
	require.Equal(t, RemittanceFlagged, rem.Status)
	require.Equal(t, uint32(80), rem.RiskScore)

	_, err = h.CompleteRemittance(rem.ID, recipient)
	require.ErrorIs(t, err, ErrAmlFlagged)

	_, err = h.ClearAmlFlag(rem.ID, sender)
	require.ErrorIs(t, err, ErrUnauthorizedCaller)

	cleared, err := h.ClearAmlFlag(rem.ID, admin)
	require.NoError(t, err)
	require.False(t, cleared.AmlFlagged)
	require.Equal(t, RemittancePending, cleared.Status)

	completed, err := h.CompleteRemittance(rem.ID, recipient)
	require.NoError(t, err)
	require.Equal(t, RemittanceCompleted, completed.Status)
}

func TestAmlScreenerUnavailable(t *testing.T) {
	state := newMockState()
	h := newTestHub(state)
	h.SetScreener(aml.UnavailableScreener{}, 50)

	_, err := h.SendRemittance(sender, recipient, big.NewInt(1_000), "USD", "USD", "")
	require.ErrorIs(t, err, aml.ErrOracleUnavailable)
}

func TestHubPauseGate(t *testing.T) {
	state := newMockState()
	h := newTestHub(state)
	h.SetPauses(common.PauseSet{PauseModule: true})

	_, err := h.GenerateInvoice(sender, recipient, big.NewInt(100), "USD", "USD", 5_000, 0, "")
	require.ErrorIs(t, err, common.ErrModulePaused)

	_, err = h.SendRemittance(sender, recipient, big.NewInt(100), "USD", "USD", "")
	require.ErrorIs(t, err, common.ErrModulePaused)
}

func TestHubRateLimit(t *testing.T) {
	state := newMockState()
	h := newTestHub(state)
	limiter := common.NewRateLimiter(common.RateLimitConfig{Enabled: true, MaxCount: 1, Interval: 3_600}, admin)
	h.SetRateLimiter(limiter)

	_, err := h.SendRemittance(sender, recipient, big.NewInt(100), "USD", "USD", "")
	require.NoError(t, err)

	_, err = h.SendRemittance(sender, recipient, big.NewInt(100), "USD", "USD", "")
	require.ErrorIs(t, err, ErrRateLimited)

	// Invoices count against a separate function window.
	_, err = h.GenerateInvoice(sender, recipient, big.NewInt(100), "USD", "USD", 5_000, 0, "")
	require.NoError(t, err)
}

type escrowMockState struct {
	escrows  map[uint64]*escrow.Escrow
	counter  uint64
	configs  map[uint64]*escrow.MultiPartyConfig
	assets   map[string]bool
	accounts map[types.Address]*types.Account
}

func newEscrowMockState() *escrowMockState {
	return &escrowMockState{
		escrows:  make(map[uint64]*escrow.Escrow),
		configs:  make(map[uint64]*escrow.MultiPartyConfig),
		assets:   map[string]bool{"USD": true},
		accounts: make(map[types.Address]*types.Account),
	}
}

func (m *escrowMockState) EscrowPut(e *escrow.Escrow) error {
	m.escrows[e.ID] = e.Clone()
	return nil
}

func (m *escrowMockState) EscrowGet(id uint64) (*escrow.Escrow, bool) {
	e, ok := m.escrows[id]
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

func (m *escrowMockState) EscrowCounter() (uint64, error) { return m.counter, nil }

func (m *escrowMockState) EscrowCounterPut(v uint64) error {
	m.counter = v
	return nil
}

func (m *escrowMockState) MultiPartyPut(cfg *escrow.MultiPartyConfig) error {
	m.configs[cfg.EscrowID] = cfg.Clone()
	return nil
}

func (m *escrowMockState) MultiPartyGet(id uint64) (*escrow.MultiPartyConfig, bool) {
	cfg, ok := m.configs[id]
	if !ok {
		return nil, false
	}
	return cfg.Clone(), true
}

func (m *escrowMockState) SupportedAsset(key string) (bool, error) { return m.assets[key], nil }

func (m *escrowMockState) SupportedAssetPut(key string, supported bool) error {
	m.assets[key] = supported
	return nil
}

func (m *escrowMockState) GetAccount(addr types.Address) (*types.Account, error) {
	acc, ok := m.accounts[addr]
	if !ok {
		return types.NewAccount(), nil
	}
	return acc.Clone(), nil
}

func (m *escrowMockState) PutAccount(addr types.Address, acc *types.Account) error {
	m.accounts[addr] = acc.Clone()
	return nil
}

func newBatchFixture(t *testing.T) (*Hub, *escrowMockState) {
	t.Helper()
	engineState := newEscrowMockState()
	engine := escrow.NewEngine()
	engine.SetState(engineState)
	engine.SetAdmin(admin)
	engine.SetCustody(testAddr(0x02))
	engine.SetNowFunc(func() int64 { return 1_000 })

	h := newTestHub(newMockState())
	h.SetEscrowEngine(engine)
	return h, engineState
}

func fundSender(state *escrowMockState, amount int64) {
	acc := types.NewAccount()
	acc.SetBalance("USD", big.NewInt(amount))
	state.accounts[sender] = acc
}

func TestBatchCreateEscrows(t *testing.T) {
	h, _ := newBatchFixture(t)
	usd := escrow.Asset{Code: "USD"}

	_, err := h.BatchCreateEscrows(sender, nil)
	require.ErrorIs(t, err, ErrEmptyBatch)

	oversized := make([]EscrowSpec, MaxBatchSize+1)
	for i := range oversized {
		oversized[i] = EscrowSpec{Recipient: recipient, Amount: big.NewInt(10), Asset: usd}
	}
	_, err = h.BatchCreateEscrows(sender, oversized)
	require.ErrorIs(t, err, ErrBatchTooLarge)

	// One malformed entry rejects the whole batch up front.
	_, err = h.BatchCreateEscrows(sender, []EscrowSpec{
		{Recipient: recipient, Amount: big.NewInt(10), Asset: usd},
		{Recipient: recipient, Amount: big.NewInt(0), Asset: usd},
	})
	require.ErrorIs(t, err, escrow.ErrInvalidAmount)

	created, err := h.BatchCreateEscrows(sender, []EscrowSpec{
		{Recipient: recipient, Amount: big.NewInt(100), Asset: usd},
		{Recipient: recipient, Amount: big.NewInt(200), Asset: usd, Memo: "second"},
	})
	require.NoError(t, err)
	require.Len(t, created, 2)
	require.Equal(t, uint64(1), created[0].ID)
	require.Equal(t, uint64(2), created[1].ID)
}

func TestBatchCreateEscrowsAllOrNothing(t *testing.T) {
	h, engineState := newBatchFixture(t)
	usd := escrow.Asset{Code: "USD"}

	// A deep creation failure on a later entry must leave no trace of the
	// earlier ones: no escrows and an untouched counter.
	created, err := h.BatchCreateEscrows(sender, []EscrowSpec{
		{Recipient: recipient, Amount: big.NewInt(100), Asset: usd},
		{Recipient: recipient, Amount: big.NewInt(200), Asset: escrow.Asset{Code: "XXX"}},
	})
	require.ErrorIs(t, err, escrow.ErrUnsupportedAsset)
	require.Nil(t, created)
	require.Empty(t, engineState.escrows)
	require.Equal(t, uint64(0), engineState.counter)

	// The same batch with the asset whitelisted goes through intact.
	require.NoError(t, engineState.SupportedAssetPut("XXX", true))
	created, err = h.BatchCreateEscrows(sender, []EscrowSpec{
		{Recipient: recipient, Amount: big.NewInt(100), Asset: usd},
		{Recipient: recipient, Amount: big.NewInt(200), Asset: escrow.Asset{Code: "XXX"}},
	})
	require.NoError(t, err)
	require.Len(t, created, 2)
	require.Equal(t, uint64(2), engineState.counter)
}

func TestBatchDepositAndRelease(t *testing.T) {
	h, engineState := newBatchFixture(t)
	usd := escrow.Asset{Code: "USD"}
	fundSender(engineState, 300)

	created, err := h.BatchCreateEscrows(sender, []EscrowSpec{
		{Recipient: recipient, Amount: big.NewInt(100), Asset: usd},
		{Recipient: recipient, Amount: big.NewInt(200), Asset: usd},
	})
	require.NoError(t, err)

	ids := []uint64{created[0].ID, created[1].ID}

	_, err = h.BatchDeposit(sender, ids, []*big.Int{big.NewInt(100)})
	require.ErrorIs(t, err, ErrBatchLengthMismatch)

	funded, err := h.BatchDeposit(sender, ids, []*big.Int{big.NewInt(100), big.NewInt(200)})
	require.NoError(t, err)
	require.Equal(t, escrow.StatusFunded, funded[0].Status)
	require.Equal(t, escrow.StatusFunded, funded[1].Status)

	released, err := h.BatchRelease(recipient, ids)
	require.NoError(t, err)
	require.Len(t, released, 2)
	require.Equal(t, escrow.StatusReleased, released[0].Status)
	require.Equal(t, escrow.StatusReleased, released[1].Status)
}
