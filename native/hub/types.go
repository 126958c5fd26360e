package hub

import (
	"fmt"
	"math/big"

	"remithub/core/types"
)

// InvoiceStatus tracks the lifecycle of an invoice.
type InvoiceStatus uint8

const (
	InvoicePending InvoiceStatus = iota
	InvoicePaid
	InvoiceOverdue
	InvoiceCancelled
)

func (s InvoiceStatus) String() string {
	switch s {
	case InvoicePending:
		return "pending"
	case InvoicePaid:
		return "paid"
	case InvoiceOverdue:
		return "overdue"
	case InvoiceCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Invoice is a billed request for payment, optionally linked to the escrow
// that settles it. ConvertedAmount is quoted in the destination currency at
// generation time; when no oracle quote was obtainable it falls back to the
// raw amount so billing never blocks on a degraded oracle.
type Invoice struct {
	ID              uint64        `json:"id"`
	Sender          types.Address `json:"sender"`
	Recipient       types.Address `json:"recipient"`
	Amount          *big.Int      `json:"amount"`
	FromAsset       string        `json:"fromAsset"`
	ToAsset         string        `json:"toAsset"`
	ConvertedAmount *big.Int      `json:"convertedAmount"`
	Fee             *big.Int      `json:"fee"`
	Total           *big.Int      `json:"total"`
	EscrowID        uint64        `json:"escrowId,omitempty"`
	DueDate         int64         `json:"dueDate"`
	Status          InvoiceStatus `json:"status"`
	CreatedAt       int64         `json:"createdAt"`
	PaidAt          int64         `json:"paidAt,omitempty"`
	Memo            string        `json:"memo,omitempty"`
}

// Clone deep-copies the invoice.
func (i *Invoice) Clone() *Invoice {
	if i == nil {
		return nil
	}
	out := *i
	out.Amount = cloneBig(i.Amount)
	out.ConvertedAmount = cloneBig(i.ConvertedAmount)
	out.Fee = cloneBig(i.Fee)
	out.Total = cloneBig(i.Total)
	return &out
}

// RemittanceStatus tracks the lifecycle of a remittance.
type RemittanceStatus uint8

const (
	RemittancePending RemittanceStatus = iota
	RemittanceCompleted
	RemittanceFlagged
)

func (s RemittanceStatus) String() string {
	switch s {
	case RemittancePending:
		return "pending"
	case RemittanceCompleted:
		return "completed"
	case RemittanceFlagged:
		return "flagged"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Remittance is a cross-border transfer tracked by the hub. A remittance
// flagged at screening time cannot complete until an admin clears it.
type Remittance struct {
	ID              uint64           `json:"id"`
	Sender          types.Address    `json:"sender"`
	Recipient       types.Address    `json:"recipient"`
	Amount          *big.Int         `json:"amount"`
	FromAsset       string           `json:"fromAsset"`
	ToAsset         string           `json:"toAsset"`
	ConvertedAmount *big.Int         `json:"convertedAmount"`
	Fee             *big.Int         `json:"fee"`
	Total           *big.Int         `json:"total"`
	Status          RemittanceStatus `json:"status"`
	RiskScore       uint32           `json:"riskScore"`
	AmlFlagged      bool             `json:"amlFlagged"`
	CreatedAt       int64            `json:"createdAt"`
	CompletedAt     int64            `json:"completedAt,omitempty"`
	Memo            string           `json:"memo,omitempty"`
}

// Clone deep-copies the remittance.
func (r *Remittance) Clone() *Remittance {
	if r == nil {
		return nil
	}
	out := *r
	out.Amount = cloneBig(r.Amount)
	out.ConvertedAmount = cloneBig(r.ConvertedAmount)
	out.Fee = cloneBig(r.Fee)
	out.Total = cloneBig(r.Total)
	return &out
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
