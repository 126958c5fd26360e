package hub

import (
	"math/big"

	"remithub/core/types"
	"remithub/native/common"
)

// SendRemittance registers a cross-border transfer. When a screener is
// configured the payment is scored up front; a risk score above the
// configured threshold flags the remittance, which blocks completion until
// an admin clears it.
func (h *Hub) SendRemittance(sender, recipient types.Address, amount *big.Int, fromAsset, toAsset string, memo string) (*Remittance, error) {
	if h.state == nil {
		return nil, errNilState
	}
	if err := common.Guard(h.pauses, PauseModule); err != nil {
		return nil, err
	}
	if err := h.allow(sender, common.FunctionRemittance); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if sender == recipient {
		return nil, ErrSameSenderRecipient
	}
	fee := big.NewInt(0)
	if h.remitFeesSet {
		breakdown, err := h.remitFees.Calculate(amount)
		if err != nil {
			return nil, err
		}
		fee = breakdown.TotalFee
	}
	var (
		riskScore uint32
		flagged   bool
	)
	if h.amlConfigured {
		score, err := h.screener.Screen(sender, recipient, amount)
		if err != nil {
			return nil, err
		}
		riskScore = score
		flagged = score > h.riskMax
	}
	counter, err := h.state.RemittanceCounter()
	if err != nil {
		return nil, err
	}
	if counter == ^uint64(0) {
		return nil, ErrCounterOverflow
	}
	id := counter + 1
	if err := h.state.RemittanceCounterPut(id); err != nil {
		return nil, err
	}
	rem := &Remittance{
		ID:              id,
		Sender:          sender,
		Recipient:       recipient,
		Amount:          new(big.Int).Set(amount),
		FromAsset:       fromAsset,
		ToAsset:         toAsset,
		ConvertedAmount: h.quote(amount, fromAsset, toAsset),
		Fee:             fee,
		Total:           new(big.Int).Add(amount, fee),
		Status:          RemittancePending,
		RiskScore:       riskScore,
		AmlFlagged:      flagged,
		CreatedAt:       h.now(),
		Memo:            memo,
	}
	if flagged {
		rem.Status = RemittanceFlagged
	}
	if err := h.state.RemittancePut(rem); err != nil {
		return nil, err
	}
	h.emit(newRemittanceEvent(EventTypeRemittanceSent, rem))
	return rem.Clone(), nil
}

// GetRemittance returns a copy of the stored remittance.
func (h *Hub) GetRemittance(id uint64) (*Remittance, bool) {
	if h.state == nil {
		return nil, false
	}
	rem, ok := h.state.RemittanceGet(id)
	if !ok {
		return nil, false
	}
	return rem.Clone(), true
}

// CompleteRemittance marks a pending remittance delivered. Either party or
// the admin may complete; flagged remittances stay blocked until cleared.
func (h *Hub) CompleteRemittance(id uint64, caller types.Address) (*Remittance, error) {
	if h.state == nil {
		return nil, errNilState
	}
	if err := common.Guard(h.pauses, PauseModule); err != nil {
		return nil, err
	}
	rem, ok := h.state.RemittanceGet(id)
	if !ok {
		return nil, ErrRemittanceNotFound
	}
	if caller != rem.Sender && caller != rem.Recipient && caller != h.admin {
		return nil, ErrUnauthorizedCaller
	}
	if rem.AmlFlagged {
		return nil, ErrAmlFlagged
	}
	if rem.Status != RemittancePending {
		return nil, ErrRemittanceClosed
	}
	rem.Status = RemittanceCompleted
	rem.CompletedAt = h.now()
	if err := h.state.RemittancePut(rem); err != nil {
		return nil, err
	}
	h.emit(newRemittanceEvent(EventTypeRemittanceCompleted, rem))
	return rem.Clone(), nil
}

// ClearAmlFlag lifts the screening hold and returns the remittance to
// Pending. Admin only.
func (h *Hub) ClearAmlFlag(id uint64, caller types.Address) (*Remittance, error) {
	if h.state == nil {
		return nil, errNilState
	}
	if caller != h.admin {
		return nil, ErrUnauthorizedCaller
	}
	rem, ok := h.state.RemittanceGet(id)
	if !ok {
		return nil, ErrRemittanceNotFound
	}
	if !rem.AmlFlagged {
		return nil, ErrNotFlagged
	}
	rem.AmlFlagged = false
	rem.Status = RemittancePending
	if err := h.state.RemittancePut(rem); err != nil {
		return nil, err
	}
	h.emit(newRemittanceEvent(EventTypeRemittanceCleared, rem))
	return rem.Clone(), nil
}
