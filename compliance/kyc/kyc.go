package kyc

import (
	"errors"
	"sync"

	"remithub/core/types"
)

var (
	// ErrOracleUnavailable is returned when the verification backend cannot
	// be reached.
	ErrOracleUnavailable = errors.New("kyc: oracle unavailable")
	// ErrUnauthorized is returned when a non-admin attempts to mutate the
	// registry.
	ErrUnauthorized = errors.New("kyc: unauthorized")
)

// Status is the verification state held for an account.
type Status uint8

const (
	StatusUnknown Status = iota
	StatusPending
	StatusVerified
	StatusRejected
	StatusSuspended
)

// Result reports the verification verdict for both parties of a payment.
type Result struct {
	SenderVerified    bool
	RecipientVerified bool
	Timestamp         int64
}

// Checker is the verification collaborator consumed at escrow creation when
// KYC gating is enabled.
type Checker interface {
	Check(sender, recipient types.Address) (Result, error)
}

// Registry is a static lookup-table Checker maintained by an admin. It
// stands in for an external verification provider in tests and single-node
// deployments.
type Registry struct {
	mu       sync.RWMutex
	admin    types.Address
	statuses map[types.Address]Status
	nowFn    func() int64
}

// NewRegistry constructs a registry administered by the supplied address.
func NewRegistry(admin types.Address) *Registry {
	return &Registry{
		admin:    admin,
		statuses: make(map[types.Address]Status),
		nowFn:    func() int64 { return 0 },
	}
}

// SetNowFunc overrides the timestamp source used on results.
func (r *Registry) SetNowFunc(now func() int64) {
	if now != nil {
		r.nowFn = now
	}
}

// SetStatus records a verification status for the account. Admin only.
func (r *Registry) SetStatus(caller, account types.Address, status Status) error {
	if caller != r.admin {
		return ErrUnauthorized
	}
	r.mu.Lock()
	r.statuses[account] = status
	r.mu.Unlock()
	return nil
}

// StatusOf returns the stored status for an account, StatusUnknown when
// absent.
func (r *Registry) StatusOf(account types.Address) Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.statuses[account]
}

// Check implements the Checker interface.
func (r *Registry) Check(sender, recipient types.Address) (Result, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Result{
		SenderVerified:    r.statuses[sender] == StatusVerified,
		RecipientVerified: r.statuses[recipient] == StatusVerified,
		Timestamp:         r.nowFn(),
	}, nil
}

// UnavailableChecker always fails with ErrOracleUnavailable. Tests use it to
// exercise the unreachable-oracle path.
type UnavailableChecker struct{}

// Check implements the Checker interface.
func (UnavailableChecker) Check(types.Address, types.Address) (Result, error) {
	return Result{}, ErrOracleUnavailable
}
