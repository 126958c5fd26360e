package common

import (
	"sync"

	"remithub/core/types"
)

// FunctionType partitions rate-limit counters by the sensitive operation
// being invoked.
type FunctionType string

const (
	FunctionDeposit    FunctionType = "deposit"
	FunctionRelease    FunctionType = "release"
	FunctionRefund     FunctionType = "refund"
	FunctionRemittance FunctionType = "remittance"
	FunctionInvoice    FunctionType = "invoice"
)

// RateLimitConfig bounds calls per (caller, function) inside a sliding
// window of Interval seconds. A disabled config allows everything.
type RateLimitConfig struct {
	Enabled  bool
	MaxCount uint32
	Interval int64
}

type rateWindow struct {
	windowStart int64
	count       uint32
}

// RateLimiter is the allow/deny collaborator consulted before sensitive
// operations. The admin and explicitly exempted addresses always pass.
type RateLimiter struct {
	mu      sync.Mutex
	config  RateLimitConfig
	admin   types.Address
	exempt  map[types.Address]bool
	windows map[string]*rateWindow
}

// NewRateLimiter constructs a limiter with the supplied config and admin.
func NewRateLimiter(config RateLimitConfig, admin types.Address) *RateLimiter {
	return &RateLimiter{
		config:  config,
		admin:   admin,
		exempt:  make(map[types.Address]bool),
		windows: make(map[string]*rateWindow),
	}
}

// SetExempt adds or removes a caller from the exemption list. Admin only.
func (r *RateLimiter) SetExempt(caller, account types.Address, exempt bool) bool {
	if caller != r.admin {
		return false
	}
	r.mu.Lock()
	if exempt {
		r.exempt[account] = true
	} else {
		delete(r.exempt, account)
	}
	r.mu.Unlock()
	return true
}

// Allow reports whether the caller may invoke the function at the supplied
// time, counting the call when allowed. Windows reset once Interval seconds
// have elapsed since the window start.
func (r *RateLimiter) Allow(caller types.Address, fn FunctionType, now int64) bool {
	if r == nil || !r.config.Enabled || r.config.MaxCount == 0 {
		return true
	}
	if caller == r.admin {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.exempt[caller] {
		return true
	}
	key := caller.Hex() + "|" + string(fn)
	window, ok := r.windows[key]
	if !ok || now-window.windowStart >= r.config.Interval {
		r.windows[key] = &rateWindow{windowStart: now, count: 1}
		return true
	}
	if window.count >= r.config.MaxCount {
		return false
	}
	window.count++
	return true
}
