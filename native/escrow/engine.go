package escrow

import (
	"errors"
	"math/big"
	"sync"
	"time"

	"remithub/compliance/kyc"
	"remithub/core/events"
	"remithub/core/types"
	"remithub/native/common"
	"remithub/native/fees"
)

// PauseModule is the pause-registry key guarding escrow mutations.
const PauseModule = "escrow"

var (
	errNilState = errors.New("escrow engine: state not configured")
	errNilFee   = errors.New("escrow engine: fee wallet not configured")
)

type engineState interface {
	EscrowPut(*Escrow) error
	EscrowGet(id uint64) (*Escrow, bool)
	EscrowCounter() (uint64, error)
	EscrowCounterPut(uint64) error
	MultiPartyPut(*MultiPartyConfig) error
	MultiPartyGet(id uint64) (*MultiPartyConfig, bool)
	SupportedAsset(key string) (bool, error)
	SupportedAssetPut(key string, supported bool) error
	GetAccount(addr types.Address) (*types.Account, error)
	PutAccount(addr types.Address, account *types.Account) error
}

// Engine wires the escrow state machine to external state, fee accounting,
// compliance checks and event emission. All mutating operations route value
// through a custody account so escrowed funds never sit on user balances.
type Engine struct {
	state   engineState
	emitter events.Emitter
	nowFn   func() int64

	admin     types.Address
	custody   types.Address
	feeWallet types.Address

	releaseFeeBps uint32
	refundFeeBps  uint32

	kycChecker kyc.Checker
	kycEnabled bool

	pauses  common.PauseView
	limiter *common.RateLimiter

	mu    sync.Mutex
	locks map[uint64]*sync.Mutex
}

// NewEngine creates an escrow engine with a no-op emitter and wall-clock time
// source. Collaborators are wired afterwards via the Set* methods.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
		locks:   make(map[uint64]*sync.Mutex),
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter. Passing nil restores the no-op
// emitter.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source. Primarily intended for tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetAdmin configures the administrative address permitted to manage assets,
// override compliance verdicts and force refunds.
func (e *Engine) SetAdmin(addr types.Address) { e.admin = addr }

// SetCustody configures the vault address holding deposited funds.
func (e *Engine) SetCustody(addr types.Address) { e.custody = addr }

// SetFeeWallet configures the address receiving processing fees.
func (e *Engine) SetFeeWallet(addr types.Address) { e.feeWallet = addr }

// SetFeeBps configures the basis-point fees charged on release and refund.
func (e *Engine) SetFeeBps(releaseBps, refundBps uint32) {
	e.releaseFeeBps = releaseBps
	e.refundFeeBps = refundBps
}

// SetKycChecker wires the compliance checker consulted at creation. A nil
// checker disables KYC gating.
func (e *Engine) SetKycChecker(checker kyc.Checker) {
	e.kycChecker = checker
	e.kycEnabled = checker != nil
}

// SetPauses wires the pause registry consulted before every mutation.
func (e *Engine) SetPauses(p common.PauseView) { e.pauses = p }

// SetRateLimiter wires the per-caller rate limiter. A nil limiter disables
// rate limiting.
func (e *Engine) SetRateLimiter(l *common.RateLimiter) { e.limiter = l }

func (e *Engine) emit(evt events.Event) {
	if e.emitter == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) now() int64 {
	if e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// lockFor returns the mutex serialising mutations of one escrow. Release and
// refund paths hold it for the whole transfer-then-persist sequence so
// concurrent calls cannot double-spend the escrowed balance.
func (e *Engine) lockFor(id uint64) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[id]
	if !ok {
		l = &sync.Mutex{}
		e.locks[id] = l
	}
	return l
}

func (e *Engine) allow(caller types.Address, fn common.FunctionType) error {
	if e.limiter == nil {
		return nil
	}
	if !e.limiter.Allow(caller, fn, e.now()) {
		return ErrRateLimited
	}
	return nil
}

// AddSupportedAsset whitelists an asset for new escrows. Admin only.
func (e *Engine) AddSupportedAsset(caller types.Address, asset Asset) error {
	if e.state == nil {
		return errNilState
	}
	if caller != e.admin {
		return ErrUnauthorizedCaller
	}
	return e.state.SupportedAssetPut(asset.Key(), true)
}

// RemoveSupportedAsset delists an asset. Existing escrows are unaffected.
func (e *Engine) RemoveSupportedAsset(caller types.Address, asset Asset) error {
	if e.state == nil {
		return errNilState
	}
	if caller != e.admin {
		return ErrUnauthorizedCaller
	}
	return e.state.SupportedAssetPut(asset.Key(), false)
}

// Get returns a copy of the stored escrow.
func (e *Engine) Get(id uint64) (*Escrow, bool) {
	if e.state == nil {
		return nil, false
	}
	esc, ok := e.state.EscrowGet(id)
	if !ok {
		return nil, false
	}
	return esc.Clone(), true
}

// ValidateCreate runs every creation check without persisting anything. Batch
// callers probe each entry with it so a bad entry rejects the whole batch
// before the first escrow is written.
func (e *Engine) ValidateCreate(sender, recipient types.Address, amount *big.Int, asset Asset) error {
	if e.state == nil {
		return errNilState
	}
	if err := common.Guard(e.pauses, PauseModule); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if sender == recipient {
		return ErrSameSenderRecipient
	}
	supported, err := e.state.SupportedAsset(asset.Key())
	if err != nil {
		return err
	}
	if !supported {
		return ErrUnsupportedAsset
	}
	if e.kycEnabled {
		result, err := e.kycChecker.Check(sender, recipient)
		if err != nil {
			return err
		}
		if !result.SenderVerified || !result.RecipientVerified {
			return ErrKYCFailed
		}
	}
	return nil
}

// Create registers a new escrow in Pending status. No funds move; the sender
// commits the target amount and funds it through Deposit.
func (e *Engine) Create(sender, recipient types.Address, amount *big.Int, asset Asset, expiration int64, memo string) (*Escrow, error) {
	if err := e.ValidateCreate(sender, recipient, amount, asset); err != nil {
		return nil, err
	}
	counter, err := e.state.EscrowCounter()
	if err != nil {
		return nil, err
	}
	if counter == ^uint64(0) {
		return nil, ErrCounterOverflow
	}
	id := counter + 1
	if err := e.state.EscrowCounterPut(id); err != nil {
		return nil, err
	}
	now := e.now()
	esc := &Escrow{
		ID:              id,
		Sender:          sender,
		Recipient:       recipient,
		Amount:          new(big.Int).Set(amount),
		DepositedAmount: big.NewInt(0),
		ReleasedAmount:  big.NewInt(0),
		RefundedAmount:  big.NewInt(0),
		Asset:           asset,
		Conditions: ReleaseConditions{
			ExpirationTimestamp: expiration,
			Operator:            OperatorAnd,
		},
		Status:       StatusPending,
		CreatedAt:    now,
		Memo:         memo,
		KycCompliant: e.kycEnabled,
	}
	if err := e.state.EscrowPut(esc); err != nil {
		return nil, err
	}
	e.emit(newCreatedEvent(esc))
	return esc.Clone(), nil
}

// Deposit moves funds from the sender into custody. Deposits may arrive in
// several instalments; the escrow becomes Funded once the committed amount is
// fully covered.
func (e *Engine) Deposit(id uint64, caller types.Address, amount *big.Int) (*Escrow, error) {
	if e.state == nil {
		return nil, errNilState
	}
	if err := common.Guard(e.pauses, PauseModule); err != nil {
		return nil, err
	}
	if err := e.allow(caller, common.FunctionDeposit); err != nil {
		return nil, err
	}
	lock := e.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	esc, ok := e.state.EscrowGet(id)
	if !ok {
		return nil, ErrNotFound
	}
	if caller != esc.Sender {
		return nil, ErrWrongSender
	}
	if esc.Status != StatusPending && esc.Status != StatusFunded {
		return nil, ErrNotPending
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	deposited := new(big.Int).Add(nonNil(esc.DepositedAmount), amount)
	if deposited.Cmp(esc.Amount) > 0 {
		return nil, ErrInsufficientAmount
	}
	if err := e.transfer(caller, e.custody, esc.Asset, amount); err != nil {
		return nil, err
	}
	esc.DepositedAmount = deposited
	esc.LastDepositAt = e.now()
	if deposited.Cmp(esc.Amount) == 0 {
		esc.Status = StatusFunded
	}
	if err := e.state.EscrowPut(esc); err != nil {
		return nil, err
	}
	e.emit(newDepositedEvent(esc, amount))
	return esc.Clone(), nil
}

// Approve marks a funded escrow ready for release. Any authenticated caller
// may approve; business-level authorization sits with the invoking layer.
func (e *Engine) Approve(id uint64, caller types.Address) (*Escrow, error) {
	if e.state == nil {
		return nil, errNilState
	}
	if err := common.Guard(e.pauses, PauseModule); err != nil {
		return nil, err
	}
	lock := e.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	esc, ok := e.state.EscrowGet(id)
	if !ok {
		return nil, ErrNotFound
	}
	if esc.Status != StatusFunded {
		return nil, ErrNotFunded
	}
	if expired, err := e.expireIfNeeded(esc); expired {
		return nil, err
	}
	esc.Status = StatusApproved
	if err := e.state.EscrowPut(esc); err != nil {
		return nil, err
	}
	e.emit(newApprovedEvent(esc, caller))
	return esc.Clone(), nil
}

// Release pays the remaining escrowed funds to the recipient, net of the
// release fee. Once a partial release has drawn on the escrow the full
// release path is closed; the balance drains through further partials.
func (e *Engine) Release(id uint64, caller types.Address) (*Escrow, error) {
	if e.state == nil {
		return nil, errNilState
	}
	if e.feeWallet.IsZero() && e.releaseFeeBps > 0 {
		return nil, errNilFee
	}
	if err := common.Guard(e.pauses, PauseModule); err != nil {
		return nil, err
	}
	if err := e.allow(caller, common.FunctionRelease); err != nil {
		return nil, err
	}
	lock := e.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	esc, ok := e.state.EscrowGet(id)
	if !ok {
		return nil, ErrNotFound
	}
	if esc.Status == StatusReleased {
		return nil, ErrAlreadyReleased
	}
	if esc.PartialReleased {
		return nil, ErrPartialFlowActive
	}
	if esc.Status != StatusApproved && esc.Status != StatusFunded {
		return nil, ErrNotApproved
	}
	if err := e.requireQuorum(esc); err != nil {
		return nil, err
	}
	if expired, err := e.expireIfNeeded(esc); expired {
		return nil, err
	}
	if caller != esc.Recipient && caller != esc.Sender && caller != e.admin {
		return nil, ErrUnauthorizedCaller
	}
	available := esc.Available()
	if nonNil(esc.DepositedAmount).Sign() <= 0 || available.Sign() <= 0 {
		return nil, ErrInsufficientFunds
	}
	fee, err := fees.BpsFee(available, e.releaseFeeBps)
	if err != nil {
		return nil, err
	}
	payout := new(big.Int).Sub(available, fee)
	if payout.Sign() <= 0 {
		return nil, ErrInsufficientAmount
	}
	if err := e.payOut(esc.Asset, esc.Recipient, payout, fee); err != nil {
		return nil, err
	}
	esc.ReleasedAmount = new(big.Int).Add(nonNil(esc.ReleasedAmount), available)
	esc.Status = StatusReleased
	esc.ReleasedAt = e.now()
	if err := e.state.EscrowPut(esc); err != nil {
		return nil, err
	}
	if err := e.finalizeMultiParty(esc); err != nil {
		return nil, err
	}
	e.emit(newReleasedEvent(esc, payout, fee, false))
	return esc.Clone(), nil
}

// EnablePartialRelease opts the escrow into incremental payouts. Only the
// sender may enable it, and only before any release has happened.
func (e *Engine) EnablePartialRelease(id uint64, caller types.Address) (*Escrow, error) {
	if e.state == nil {
		return nil, errNilState
	}
	if err := common.Guard(e.pauses, PauseModule); err != nil {
		return nil, err
	}
	lock := e.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	esc, ok := e.state.EscrowGet(id)
	if !ok {
		return nil, ErrNotFound
	}
	if caller != esc.Sender {
		return nil, ErrUnauthorizedCaller
	}
	if esc.Status == StatusReleased {
		return nil, ErrAlreadyReleased
	}
	if esc.Status == StatusRefunded {
		return nil, ErrAlreadyRefunded
	}
	// The flag is one-way; there is no disable path.
	esc.AllowPartialRelease = true
	if err := e.state.EscrowPut(esc); err != nil {
		return nil, err
	}
	return esc.Clone(), nil
}

// ReleasePartial pays part of the escrowed funds to the recipient. The
// escrow transitions to Released once cumulative releases drain the
// deposited amount.
func (e *Engine) ReleasePartial(id uint64, caller types.Address, amount *big.Int) (*Escrow, error) {
	if e.state == nil {
		return nil, errNilState
	}
	if e.feeWallet.IsZero() && e.releaseFeeBps > 0 {
		return nil, errNilFee
	}
	if err := common.Guard(e.pauses, PauseModule); err != nil {
		return nil, err
	}
	if err := e.allow(caller, common.FunctionRelease); err != nil {
		return nil, err
	}
	lock := e.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	esc, ok := e.state.EscrowGet(id)
	if !ok {
		return nil, ErrNotFound
	}
	if !esc.AllowPartialRelease {
		return nil, ErrPartialNotAllowed
	}
	if esc.Status != StatusApproved && esc.Status != StatusFunded && esc.Status != StatusReleased {
		return nil, ErrNotApproved
	}
	if err := e.requireQuorum(esc); err != nil {
		return nil, err
	}
	if expired, err := e.expireIfNeeded(esc); expired {
		return nil, err
	}
	if caller != esc.Recipient && caller != esc.Sender && caller != e.admin {
		return nil, ErrUnauthorizedCaller
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	available := esc.Available()
	if available.Sign() <= 0 {
		return nil, ErrNoFundsAvailable
	}
	if amount.Cmp(available) > 0 {
		return nil, ErrInsufficientFunds
	}
	fee, err := fees.BpsFee(amount, e.releaseFeeBps)
	if err != nil {
		return nil, err
	}
	payout := new(big.Int).Sub(amount, fee)
	if payout.Sign() <= 0 {
		return nil, ErrInsufficientAmount
	}
	if err := e.payOut(esc.Asset, esc.Recipient, payout, fee); err != nil {
		return nil, err
	}
	esc.ReleasedAmount = new(big.Int).Add(nonNil(esc.ReleasedAmount), amount)
	esc.PartialReleased = true
	if esc.Available().Sign() == 0 && esc.DepositedAmount.Cmp(esc.Amount) == 0 {
		esc.Status = StatusReleased
		esc.ReleasedAt = e.now()
	}
	if err := e.state.EscrowPut(esc); err != nil {
		return nil, err
	}
	if err := e.finalizeMultiParty(esc); err != nil {
		return nil, err
	}
	e.emit(newReleasedEvent(esc, payout, fee, true))
	return esc.Clone(), nil
}

// Refund returns the remaining escrowed funds to the sender, net of the
// refund fee. Expiration refunds require the deadline to have passed;
// requested refunds are available to the sender or the admin at any point
// before release.
func (e *Engine) Refund(id uint64, caller types.Address, reason RefundReason) (*Escrow, error) {
	return e.refund(id, caller, nil, reason)
}

// RefundPartial returns part of the escrowed funds to the sender. The escrow
// transitions to Refunded once no deposited funds remain outstanding.
func (e *Engine) RefundPartial(id uint64, caller types.Address, amount *big.Int, reason RefundReason) (*Escrow, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	return e.refund(id, caller, amount, reason)
}

func (e *Engine) refund(id uint64, caller types.Address, amount *big.Int, reason RefundReason) (*Escrow, error) {
	if e.state == nil {
		return nil, errNilState
	}
	if e.feeWallet.IsZero() && e.refundFeeBps > 0 {
		return nil, errNilFee
	}
	if err := common.Guard(e.pauses, PauseModule); err != nil {
		return nil, err
	}
	if err := e.allow(caller, common.FunctionRefund); err != nil {
		return nil, err
	}
	lock := e.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	esc, ok := e.state.EscrowGet(id)
	if !ok {
		return nil, ErrNotFound
	}
	if caller != esc.Sender && caller != e.admin {
		return nil, ErrUnauthorizedRefund
	}
	if esc.Status == StatusReleased {
		return nil, ErrAlreadyReleased
	}
	if esc.Status == StatusRefunded && amount == nil {
		return nil, ErrAlreadyRefunded
	}
	if err := e.requireQuorum(esc); err != nil {
		return nil, err
	}
	if reason == RefundExpiration {
		expiration := esc.Conditions.ExpirationTimestamp
		if expiration == 0 || e.now() <= expiration {
			return nil, ErrNotExpired
		}
	}
	available := esc.Available()
	if available.Sign() <= 0 {
		return nil, ErrNoFundsAvailable
	}
	refundAmount := available
	if amount != nil {
		if amount.Cmp(available) > 0 {
			return nil, ErrInsufficientFunds
		}
		refundAmount = new(big.Int).Set(amount)
	}
	fee, err := fees.BpsFee(refundAmount, e.refundFeeBps)
	if err != nil {
		return nil, err
	}
	payout := new(big.Int).Sub(refundAmount, fee)
	if payout.Sign() <= 0 {
		return nil, ErrInsufficientAmount
	}
	if err := e.payOut(esc.Asset, esc.Sender, payout, fee); err != nil {
		return nil, err
	}
	esc.RefundedAmount = new(big.Int).Add(nonNil(esc.RefundedAmount), refundAmount)
	if esc.Available().Sign() == 0 {
		esc.Status = StatusRefunded
		esc.RefundedAt = e.now()
	}
	if err := e.state.EscrowPut(esc); err != nil {
		return nil, err
	}
	if err := e.finalizeMultiParty(esc); err != nil {
		return nil, err
	}
	e.emit(newRefundedEvent(esc, payout, fee, reason))
	return esc.Clone(), nil
}

// expireIfNeeded performs the lazy expiration transition. When the deadline
// has passed the escrow is persisted as Expired and the triggering call
// fails with ErrExpired; the committed transition survives the failure.
func (e *Engine) expireIfNeeded(esc *Escrow) (bool, error) {
	expiration := esc.Conditions.ExpirationTimestamp
	if expiration == 0 || e.now() <= expiration {
		return false, nil
	}
	esc.Status = StatusExpired
	if err := e.state.EscrowPut(esc); err != nil {
		return true, err
	}
	e.emit(newExpiredEvent(esc))
	return true, ErrExpired
}

func (e *Engine) requireQuorum(esc *Escrow) error {
	if !esc.MultiPartyEnabled {
		return nil
	}
	cfg, ok := e.state.MultiPartyGet(esc.ID)
	if !ok {
		return ErrMultiPartyNotConfigured
	}
	if cfg.ApprovalCount() < cfg.RequiredApprovals {
		return ErrQuorumNotMet
	}
	return nil
}

func (e *Engine) finalizeMultiParty(esc *Escrow) error {
	if !esc.MultiPartyEnabled {
		return nil
	}
	cfg, ok := e.state.MultiPartyGet(esc.ID)
	if !ok || cfg.Finalized {
		return nil
	}
	cfg.Finalized = true
	return e.state.MultiPartyPut(cfg)
}

// payOut moves funds out of custody: the net amount to the beneficiary and
// the fee to the fee wallet.
func (e *Engine) payOut(asset Asset, to types.Address, payout, fee *big.Int) error {
	if err := e.transfer(e.custody, to, asset, payout); err != nil {
		return err
	}
	if fee != nil && fee.Sign() > 0 {
		if err := e.transfer(e.custody, e.feeWallet, asset, fee); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) transfer(from, to types.Address, asset Asset, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return nil
	}
	key := asset.Key()
	fromAcc, err := e.state.GetAccount(from)
	if err != nil {
		return err
	}
	fromAcc = types.EnsureAccount(fromAcc)
	balance := fromAcc.Balance(key)
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	toAcc, err := e.state.GetAccount(to)
	if err != nil {
		return err
	}
	toAcc = types.EnsureAccount(toAcc)
	fromAcc.SetBalance(key, new(big.Int).Sub(balance, amount))
	toAcc.SetBalance(key, new(big.Int).Add(toAcc.Balance(key), amount))
	if err := e.state.PutAccount(from, fromAcc); err != nil {
		return err
	}
	return e.state.PutAccount(to, toAcc)
}
