package hub

import (
	"math/big"

	"remithub/core/types"
	"remithub/native/escrow"
)

// EscrowSpec is one entry of a batch escrow creation.
type EscrowSpec struct {
	Recipient  types.Address
	Amount     *big.Int
	Asset      escrow.Asset
	Expiration int64
	Memo       string
}

// BatchCreateEscrows creates up to MaxBatchSize escrows for one sender.
// Creation is all-or-nothing: every entry runs through the engine's full
// creation checks before the first escrow is written, so a bad entry rejects
// the whole batch with nothing persisted.
func (h *Hub) BatchCreateEscrows(sender types.Address, specs []EscrowSpec) ([]*escrow.Escrow, error) {
	if h.escrows == nil {
		return nil, errNilState
	}
	if len(specs) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(specs) > MaxBatchSize {
		return nil, ErrBatchTooLarge
	}
	for _, spec := range specs {
		if err := h.escrows.ValidateCreate(sender, spec.Recipient, spec.Amount, spec.Asset); err != nil {
			return nil, err
		}
	}
	created := make([]*escrow.Escrow, 0, len(specs))
	for _, spec := range specs {
		esc, err := h.escrows.Create(sender, spec.Recipient, spec.Amount, spec.Asset, spec.Expiration, spec.Memo)
		if err != nil {
			return nil, err
		}
		created = append(created, esc)
	}
	return created, nil
}

// BatchDeposit funds up to MaxBatchSize escrows in one call. The deposit
// lists are positional: amounts[i] funds ids[i]. Processing stops on the
// first failing deposit; completed deposits stand.
func (h *Hub) BatchDeposit(caller types.Address, ids []uint64, amounts []*big.Int) ([]*escrow.Escrow, error) {
	if h.escrows == nil {
		return nil, errNilState
	}
	if len(ids) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(ids) > MaxBatchSize {
		return nil, ErrBatchTooLarge
	}
	if len(ids) != len(amounts) {
		return nil, ErrBatchLengthMismatch
	}
	updated := make([]*escrow.Escrow, 0, len(ids))
	for i, id := range ids {
		esc, err := h.escrows.Deposit(id, caller, amounts[i])
		if err != nil {
			return updated, err
		}
		updated = append(updated, esc)
	}
	return updated, nil
}

// BatchRelease releases up to MaxBatchSize escrows in one call. Processing
// stops on the first failing release; completed releases stand.
func (h *Hub) BatchRelease(caller types.Address, ids []uint64) ([]*escrow.Escrow, error) {
	if h.escrows == nil {
		return nil, errNilState
	}
	if len(ids) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(ids) > MaxBatchSize {
		return nil, ErrBatchTooLarge
	}
	released := make([]*escrow.Escrow, 0, len(ids))
	for _, id := range ids {
		esc, err := h.escrows.Release(id, caller)
		if err != nil {
			return released, err
		}
		released = append(released, esc)
	}
	return released, nil
}
