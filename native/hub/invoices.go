package hub

import (
	"math/big"

	"remithub/core/types"
	"remithub/native/common"
	"remithub/native/fees"
)

// GenerateInvoice creates a billing record. The invoice carries the platform
// fee at InvoiceFeeBps, a destination-currency quote and, when escrowID is
// nonzero, a link to the escrow expected to settle it.
func (h *Hub) GenerateInvoice(sender, recipient types.Address, amount *big.Int, fromAsset, toAsset string, dueDate int64, escrowID uint64, memo string) (*Invoice, error) {
	if h.state == nil {
		return nil, errNilState
	}
	if err := common.Guard(h.pauses, PauseModule); err != nil {
		return nil, err
	}
	if err := h.allow(sender, common.FunctionInvoice); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if sender == recipient {
		return nil, ErrSameSenderRecipient
	}
	now := h.now()
	if dueDate <= now {
		return nil, ErrInvalidDueDate
	}
	fee, err := fees.BpsFee(amount, InvoiceFeeBps)
	if err != nil {
		return nil, err
	}
	counter, err := h.state.InvoiceCounter()
	if err != nil {
		return nil, err
	}
	if counter == ^uint64(0) {
		return nil, ErrCounterOverflow
	}
	id := counter + 1
	if err := h.state.InvoiceCounterPut(id); err != nil {
		return nil, err
	}
	inv := &Invoice{
		ID:              id,
		Sender:          sender,
		Recipient:       recipient,
		Amount:          new(big.Int).Set(amount),
		FromAsset:       fromAsset,
		ToAsset:         toAsset,
		ConvertedAmount: h.quote(amount, fromAsset, toAsset),
		Fee:             fee,
		Total:           new(big.Int).Add(amount, fee),
		EscrowID:        escrowID,
		DueDate:         dueDate,
		Status:          InvoicePending,
		CreatedAt:       now,
		Memo:            memo,
	}
	if err := h.state.InvoicePut(inv); err != nil {
		return nil, err
	}
	if escrowID != 0 {
		if err := h.state.InvoiceLinkPut(escrowID, id); err != nil {
			return nil, err
		}
	}
	h.emit(newInvoiceEvent(EventTypeInvoiceGenerated, inv))
	return inv.Clone(), nil
}

// GetInvoice returns a copy of the stored invoice.
func (h *Hub) GetInvoice(id uint64) (*Invoice, bool) {
	if h.state == nil {
		return nil, false
	}
	inv, ok := h.state.InvoiceGet(id)
	if !ok {
		return nil, false
	}
	return inv.Clone(), true
}

// GetInvoiceByEscrow resolves the invoice linked to an escrow.
func (h *Hub) GetInvoiceByEscrow(escrowID uint64) (*Invoice, bool) {
	if h.state == nil {
		return nil, false
	}
	id, ok := h.state.InvoiceLinkGet(escrowID)
	if !ok {
		return nil, false
	}
	return h.GetInvoice(id)
}

// MarkInvoicePaid settles an open or overdue invoice. Either party may mark
// it paid.
func (h *Hub) MarkInvoicePaid(id uint64, caller types.Address) (*Invoice, error) {
	if h.state == nil {
		return nil, errNilState
	}
	if err := common.Guard(h.pauses, PauseModule); err != nil {
		return nil, err
	}
	inv, ok := h.state.InvoiceGet(id)
	if !ok {
		return nil, ErrInvoiceNotFound
	}
	if caller != inv.Sender && caller != inv.Recipient {
		return nil, ErrUnauthorizedCaller
	}
	if inv.Status == InvoicePaid {
		return nil, ErrInvoicePaid
	}
	if inv.Status != InvoicePending && inv.Status != InvoiceOverdue {
		return nil, ErrInvoiceNotOpen
	}
	inv.Status = InvoicePaid
	inv.PaidAt = h.now()
	if err := h.state.InvoicePut(inv); err != nil {
		return nil, err
	}
	h.emit(newInvoiceEvent(EventTypeInvoicePaid, inv))
	return inv.Clone(), nil
}

// MarkInvoiceOverdue flips an open invoice past its due date to Overdue.
// Any caller may trigger the transition; it is a pure function of time.
func (h *Hub) MarkInvoiceOverdue(id uint64) (*Invoice, error) {
	if h.state == nil {
		return nil, errNilState
	}
	inv, ok := h.state.InvoiceGet(id)
	if !ok {
		return nil, ErrInvoiceNotFound
	}
	if inv.Status != InvoicePending {
		return nil, ErrInvoiceNotOpen
	}
	if h.now() <= inv.DueDate {
		return nil, ErrInvoiceNotOverdue
	}
	inv.Status = InvoiceOverdue
	if err := h.state.InvoicePut(inv); err != nil {
		return nil, err
	}
	h.emit(newInvoiceEvent(EventTypeInvoiceOverdue, inv))
	return inv.Clone(), nil
}

// CancelInvoice voids an unpaid invoice. Sender only.
func (h *Hub) CancelInvoice(id uint64, caller types.Address) (*Invoice, error) {
	if h.state == nil {
		return nil, errNilState
	}
	if err := common.Guard(h.pauses, PauseModule); err != nil {
		return nil, err
	}
	inv, ok := h.state.InvoiceGet(id)
	if !ok {
		return nil, ErrInvoiceNotFound
	}
	if caller != inv.Sender {
		return nil, ErrUnauthorizedCaller
	}
	if inv.Status == InvoicePaid {
		return nil, ErrInvoicePaid
	}
	inv.Status = InvoiceCancelled
	if err := h.state.InvoicePut(inv); err != nil {
		return nil, err
	}
	h.emit(newInvoiceEvent(EventTypeInvoiceCancelled, inv))
	return inv.Clone(), nil
}

// UpdateInvoiceAmount rebases an open invoice on a new amount, recomputing
// the fee, total and destination quote. Sender only, unpaid only.
func (h *Hub) UpdateInvoiceAmount(id uint64, caller types.Address, amount *big.Int) (*Invoice, error) {
	if h.state == nil {
		return nil, errNilState
	}
	if err := common.Guard(h.pauses, PauseModule); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	inv, ok := h.state.InvoiceGet(id)
	if !ok {
		return nil, ErrInvoiceNotFound
	}
	if caller != inv.Sender {
		return nil, ErrUnauthorizedCaller
	}
	if inv.Status != InvoicePending {
		return nil, ErrInvoiceNotOpen
	}
	fee, err := fees.BpsFee(amount, InvoiceFeeBps)
	if err != nil {
		return nil, err
	}
	inv.Amount = new(big.Int).Set(amount)
	inv.Fee = fee
	inv.Total = new(big.Int).Add(amount, fee)
	inv.ConvertedAmount = h.quote(amount, inv.FromAsset, inv.ToAsset)
	if err := h.state.InvoicePut(inv); err != nil {
		return nil, err
	}
	h.emit(newInvoiceEvent(EventTypeInvoiceUpdated, inv))
	return inv.Clone(), nil
}
