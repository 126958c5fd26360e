package aml

import (
	"errors"
	"math/big"
	"sync"

	"remithub/core/types"
)

var (
	// ErrOracleUnavailable is returned when the screening backend cannot be
	// reached.
	ErrOracleUnavailable = errors.New("aml: oracle unavailable")
	// ErrUnauthorized is returned when a non-admin attempts to mutate the
	// score table.
	ErrUnauthorized = errors.New("aml: unauthorized")
)

// Status classifies a screening result relative to the configured risk
// threshold.
type Status uint8

const (
	StatusClear Status = iota
	StatusFlagged
	StatusReviewing
	StatusCleared
)

// Screening is the outcome of screening one payment.
type Screening struct {
	Sender    types.Address `json:"sender"`
	Recipient types.Address `json:"recipient"`
	Amount    *big.Int      `json:"amount"`
	RiskScore uint32        `json:"riskScore"`
	Status    Status        `json:"status"`
	Timestamp int64         `json:"timestamp"`
}

// Screener scores a payment for money-laundering risk. The hub consults it
// at remittance time and blocks completion of flagged transfers.
type Screener interface {
	Screen(sender, recipient types.Address, amount *big.Int) (uint32, error)
}

// ScoreTable is a static Screener maintained by an admin: the risk score of
// a payment is the higher of the two parties' recorded scores.
type ScoreTable struct {
	mu     sync.RWMutex
	admin  types.Address
	scores map[types.Address]uint32
}

// NewScoreTable constructs a score table administered by the supplied
// address.
func NewScoreTable(admin types.Address) *ScoreTable {
	return &ScoreTable{admin: admin, scores: make(map[types.Address]uint32)}
}

// SetScore records a risk score for the account. Admin only.
func (t *ScoreTable) SetScore(caller, account types.Address, score uint32) error {
	if caller != t.admin {
		return ErrUnauthorized
	}
	t.mu.Lock()
	t.scores[account] = score
	t.mu.Unlock()
	return nil
}

// Screen implements the Screener interface.
func (t *ScoreTable) Screen(sender, recipient types.Address, _ *big.Int) (uint32, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	senderScore := t.scores[sender]
	recipientScore := t.scores[recipient]
	if senderScore > recipientScore {
		return senderScore, nil
	}
	return recipientScore, nil
}

// UnavailableScreener always fails with ErrOracleUnavailable.
type UnavailableScreener struct{}

// Screen implements the Screener interface.
func (UnavailableScreener) Screen(types.Address, types.Address, *big.Int) (uint32, error) {
	return 0, ErrOracleUnavailable
}
