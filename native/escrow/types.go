package escrow

import (
	"fmt"
	"math/big"
	"strings"

	"remithub/core/types"
)

// EscrowStatus tracks the lifecycle of a single escrow.
type EscrowStatus uint8

const (
	StatusPending EscrowStatus = iota
	StatusFunded
	StatusApproved
	StatusReleased
	StatusRefunded
	StatusExpired
)

func (s EscrowStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusFunded:
		return "funded"
	case StatusApproved:
		return "approved"
	case StatusReleased:
		return "released"
	case StatusRefunded:
		return "refunded"
	case StatusExpired:
		return "expired"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Asset identifies a currency by code and issuing authority. The zero
// issuer denotes the native settlement asset.
type Asset struct {
	Code   string `json:"code"`
	Issuer string `json:"issuer,omitempty"`
}

// Key renders the asset as a canonical storage key.
func (a Asset) Key() string {
	code := strings.ToUpper(strings.TrimSpace(a.Code))
	if a.Issuer == "" {
		return code
	}
	return code + ":" + strings.ToLower(strings.TrimSpace(a.Issuer))
}

// RefundReason distinguishes the two refund paths.
type RefundReason uint8

const (
	RefundRequested RefundReason = iota
	RefundExpiration
)

func (r RefundReason) String() string {
	if r == RefundExpiration {
		return "expiration"
	}
	return "requested"
}

// ConditionType enumerates the release predicates an escrow may carry.
type ConditionType uint8

const (
	ConditionTimestamp ConditionType = iota
	ConditionApproval
	ConditionOraclePrice
	ConditionMultiSignature
	ConditionKYCVerified
)

func (c ConditionType) String() string {
	switch c {
	case ConditionTimestamp:
		return "timestamp"
	case ConditionApproval:
		return "approval"
	case ConditionOraclePrice:
		return "oracle_price"
	case ConditionMultiSignature:
		return "multi_signature"
	case ConditionKYCVerified:
		return "kyc_verified"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ConditionOperator selects how individual conditions aggregate.
type ConditionOperator uint8

const (
	OperatorAnd ConditionOperator = iota
	OperatorOr
)

func (o ConditionOperator) String() string {
	if o == OperatorOr {
		return "or"
	}
	return "and"
}

// Condition is a single release predicate attached to an escrow.
type Condition struct {
	Type           ConditionType `json:"type"`
	Required       bool          `json:"required"`
	Verified       bool          `json:"verified"`
	ThresholdValue *big.Int      `json:"thresholdValue,omitempty"`
}

// Clone returns an independent copy of the condition.
func (c Condition) Clone() Condition {
	out := c
	if c.ThresholdValue != nil {
		out.ThresholdValue = new(big.Int).Set(c.ThresholdValue)
	}
	return out
}

// ReleaseConditions bundles everything that gates a release.
type ReleaseConditions struct {
	ExpirationTimestamp int64             `json:"expirationTimestamp"`
	Conditions          []Condition       `json:"conditions,omitempty"`
	Operator            ConditionOperator `json:"operator"`
	MinApprovals        uint32            `json:"minApprovals"`
	CurrentApprovals    uint32            `json:"currentApprovals"`
}

// Clone deep-copies the condition set.
func (r ReleaseConditions) Clone() ReleaseConditions {
	out := r
	if len(r.Conditions) > 0 {
		out.Conditions = make([]Condition, len(r.Conditions))
		for i, c := range r.Conditions {
			out.Conditions[i] = c.Clone()
		}
	}
	return out
}

// Escrow is the persisted record for one conditional hold.
type Escrow struct {
	ID                  uint64            `json:"id"`
	Sender              types.Address     `json:"sender"`
	Recipient           types.Address     `json:"recipient"`
	Amount              *big.Int          `json:"amount"`
	DepositedAmount     *big.Int          `json:"depositedAmount"`
	ReleasedAmount      *big.Int          `json:"releasedAmount"`
	RefundedAmount      *big.Int          `json:"refundedAmount"`
	Asset               Asset             `json:"asset"`
	Conditions          ReleaseConditions `json:"conditions"`
	Status              EscrowStatus      `json:"status"`
	CreatedAt           int64             `json:"createdAt"`
	LastDepositAt       int64             `json:"lastDepositAt,omitempty"`
	ReleasedAt          int64             `json:"releasedAt,omitempty"`
	RefundedAt          int64             `json:"refundedAt,omitempty"`
	Memo                string            `json:"memo,omitempty"`
	AllowPartialRelease bool              `json:"allowPartialRelease"`
	PartialReleased     bool              `json:"partialReleased"`
	MultiPartyEnabled   bool              `json:"multiPartyEnabled"`
	KycCompliant        bool              `json:"kycCompliant"`
}

// Clone deep-copies the escrow so callers cannot mutate stored state.
func (e *Escrow) Clone() *Escrow {
	if e == nil {
		return nil
	}
	out := *e
	out.Amount = cloneBig(e.Amount)
	out.DepositedAmount = cloneBig(e.DepositedAmount)
	out.ReleasedAmount = cloneBig(e.ReleasedAmount)
	out.RefundedAmount = cloneBig(e.RefundedAmount)
	out.Conditions = e.Conditions.Clone()
	return &out
}

// Available reports deposited funds not yet released or refunded.
func (e *Escrow) Available() *big.Int {
	avail := new(big.Int).Set(nonNil(e.DepositedAmount))
	avail.Sub(avail, nonNil(e.ReleasedAmount))
	avail.Sub(avail, nonNil(e.RefundedAmount))
	return avail
}

// MultiPartyConfig holds the quorum configuration for one escrow.
type MultiPartyConfig struct {
	EscrowID             uint64                 `json:"escrowId"`
	RequiredApprovals    uint32                 `json:"requiredApprovals"`
	ApprovalTimeout      int64                  `json:"approvalTimeout,omitempty"`
	WhitelistedApprovers []types.Address        `json:"whitelistedApprovers"`
	Approvals            map[types.Address]bool `json:"approvals"`
	Finalized            bool                   `json:"finalized"`
}

// Clone deep-copies the config.
func (m *MultiPartyConfig) Clone() *MultiPartyConfig {
	if m == nil {
		return nil
	}
	out := *m
	out.WhitelistedApprovers = append([]types.Address(nil), m.WhitelistedApprovers...)
	out.Approvals = make(map[types.Address]bool, len(m.Approvals))
	for addr, ok := range m.Approvals {
		out.Approvals[addr] = ok
	}
	return &out
}

// ApprovalCount returns the number of recorded approvals.
func (m *MultiPartyConfig) ApprovalCount() uint32 {
	count := uint32(0)
	for _, ok := range m.Approvals {
		if ok {
			count++
		}
	}
	return count
}

func (m *MultiPartyConfig) isWhitelisted(addr types.Address) bool {
	for _, a := range m.WhitelistedApprovers {
		if a == addr {
			return true
		}
	}
	return false
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}

func nonNil(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}
