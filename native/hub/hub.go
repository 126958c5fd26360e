package hub

import (
	"errors"
	"math/big"
	"time"

	"remithub/compliance/aml"
	"remithub/core/events"
	"remithub/core/types"
	"remithub/native/common"
	"remithub/native/escrow"
	"remithub/native/fees"
	"remithub/native/fx"
)

// PauseModule is the pause-registry key guarding hub mutations.
const PauseModule = "hub"

// InvoiceFeeBps is the platform fee charged on every generated invoice.
const InvoiceFeeBps = 250

// MaxBatchSize bounds the batch escrow operations.
const MaxBatchSize = 10

var errNilState = errors.New("hub: state not configured")

type hubState interface {
	InvoicePut(*Invoice) error
	InvoiceGet(id uint64) (*Invoice, bool)
	InvoiceCounter() (uint64, error)
	InvoiceCounterPut(uint64) error
	InvoiceLinkPut(escrowID, invoiceID uint64) error
	InvoiceLinkGet(escrowID uint64) (uint64, bool)
	RemittancePut(*Remittance) error
	RemittanceGet(id uint64) (*Remittance, bool)
	RemittanceCounter() (uint64, error)
	RemittanceCounterPut(uint64) error
}

// Hub is the invoice/remittance facade over the escrow engine and the
// conversion resolver. It owns no funds itself: value movement stays inside
// the escrow engine, the hub layers billing, screening and batch ergonomics
// on top.
type Hub struct {
	state    hubState
	escrows  *escrow.Engine
	resolver *fx.Resolver
	emitter  events.Emitter
	nowFn    func() int64

	admin         types.Address
	pauses        common.PauseView
	limiter       *common.RateLimiter
	screener      aml.Screener
	riskMax       uint32
	amlConfigured bool
	remitFees     fees.Schedule
	remitFeesSet  bool
}

// New constructs a hub with a no-op emitter and wall-clock time source.
func New() *Hub {
	return &Hub{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the hub.
func (h *Hub) SetState(state hubState) { h.state = state }

// SetEscrowEngine wires the escrow engine used by batch operations and
// invoice/escrow linking.
func (h *Hub) SetEscrowEngine(engine *escrow.Engine) { h.escrows = engine }

// SetResolver wires the conversion resolver used for invoice quoting,
// remittance quoting and direct conversion queries.
func (h *Hub) SetResolver(resolver *fx.Resolver) { h.resolver = resolver }

// SetEmitter configures the event emitter. Passing nil restores the no-op
// emitter.
func (h *Hub) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		h.emitter = events.NoopEmitter{}
		return
	}
	h.emitter = emitter
}

// SetNowFunc overrides the time source. Primarily intended for tests.
func (h *Hub) SetNowFunc(now func() int64) {
	if now == nil {
		h.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	h.nowFn = now
}

// SetAdmin configures the administrative address.
func (h *Hub) SetAdmin(addr types.Address) { h.admin = addr }

// SetPauses wires the pause registry consulted before every mutation.
func (h *Hub) SetPauses(p common.PauseView) { h.pauses = p }

// SetRateLimiter wires the per-caller rate limiter.
func (h *Hub) SetRateLimiter(l *common.RateLimiter) { h.limiter = l }

// SetRemittanceFees installs the fee schedule applied to outgoing
// remittances. Without one remittances carry a zero fee.
func (h *Hub) SetRemittanceFees(schedule fees.Schedule) {
	h.remitFees = schedule.Clone()
	h.remitFeesSet = true
}

// SetScreener wires AML screening with the given risk threshold. Scores
// strictly above the threshold flag the remittance. A nil screener disables
// screening.
func (h *Hub) SetScreener(screener aml.Screener, riskMax uint32) {
	h.screener = screener
	h.riskMax = riskMax
	h.amlConfigured = screener != nil
}

func (h *Hub) emit(evt events.Event) {
	if h.emitter == nil {
		return
	}
	h.emitter.Emit(evt)
}

func (h *Hub) now() int64 {
	if h.nowFn == nil {
		return time.Now().Unix()
	}
	return h.nowFn()
}

func (h *Hub) allow(caller types.Address, fn common.FunctionType) error {
	if h.limiter == nil {
		return nil
	}
	if !h.limiter.Allow(caller, fn, h.now()) {
		return ErrRateLimited
	}
	return nil
}

// ConvertCurrency quotes amount in the destination currency via the
// resolver's primary/secondary/cache chain. Unlike invoice generation there
// is no graceful fallback: resolver errors surface to the caller.
func (h *Hub) ConvertCurrency(amount *big.Int, from, to string) (fx.Result, error) {
	if h.resolver == nil {
		return fx.Result{}, fx.ErrNotConfigured
	}
	return h.resolver.Convert(amount, from, to)
}

// quote converts amount for billing purposes, falling back to the raw
// amount when the whole oracle chain is down. Billing must not block on a
// degraded oracle; the stored invoice records the fallback implicitly by
// carrying an unconverted amount.
func (h *Hub) quote(amount *big.Int, from, to string) *big.Int {
	if h.resolver == nil || fx.NormalizeSymbol(from) == fx.NormalizeSymbol(to) {
		return new(big.Int).Set(amount)
	}
	result, err := h.resolver.Convert(amount, from, to)
	if err != nil {
		return new(big.Int).Set(amount)
	}
	return result.ConvertedAmount
}
