package escrow

import "remithub/core/types"

// SetupMultiParty configures quorum-gated release for an escrow. The sender
// or the admin may configure it once, before any release has happened.
func (e *Engine) SetupMultiParty(id uint64, caller types.Address, approvers []types.Address, required uint32, timeout int64) error {
	if e.state == nil {
		return errNilState
	}
	lock := e.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	esc, ok := e.state.EscrowGet(id)
	if !ok {
		return ErrNotFound
	}
	if caller != esc.Sender && caller != e.admin {
		return ErrUnauthorizedCaller
	}
	if esc.Status != StatusPending && esc.Status != StatusFunded {
		return ErrNotPending
	}
	if esc.MultiPartyEnabled {
		return ErrMultiPartyExists
	}
	unique := dedupeAddresses(approvers)
	if required == 0 || uint32(len(unique)) < required {
		return ErrInvalidApproverCount
	}
	cfg := &MultiPartyConfig{
		EscrowID:             id,
		RequiredApprovals:    required,
		ApprovalTimeout:      timeout,
		WhitelistedApprovers: unique,
		Approvals:            make(map[types.Address]bool, len(unique)),
	}
	if err := e.state.MultiPartyPut(cfg); err != nil {
		return err
	}
	esc.MultiPartyEnabled = true
	if err := e.state.EscrowPut(esc); err != nil {
		return err
	}
	e.emit(newMultiPartyConfiguredEvent(esc, cfg))
	return nil
}

// ApproveMultiParty records a quorum approval and reports whether the quorum
// is now met.
func (e *Engine) ApproveMultiParty(id uint64, approver types.Address) (bool, error) {
	if e.state == nil {
		return false, errNilState
	}
	lock := e.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	cfg, ok := e.state.MultiPartyGet(id)
	if !ok {
		return false, ErrMultiPartyNotConfigured
	}
	if cfg.Finalized {
		return false, ErrMultiPartyFinalized
	}
	if !cfg.isWhitelisted(approver) {
		return false, ErrApproverNotWhitelisted
	}
	if cfg.Approvals[approver] {
		return false, ErrAlreadyApproved
	}
	if cfg.ApprovalTimeout > 0 && e.now() > cfg.ApprovalTimeout {
		return false, ErrApprovalTimeout
	}
	cfg.Approvals[approver] = true
	if err := e.state.MultiPartyPut(cfg); err != nil {
		return false, err
	}
	quorumMet := cfg.ApprovalCount() >= cfg.RequiredApprovals
	e.emit(newMultiPartyApprovalEvent(id, approver, cfg.ApprovalCount(), quorumMet))
	return quorumMet, nil
}

// RevokeApproval withdraws a previously recorded quorum approval. The
// approver may re-approve afterwards while the config remains open.
func (e *Engine) RevokeApproval(id uint64, approver types.Address) error {
	if e.state == nil {
		return errNilState
	}
	lock := e.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	cfg, ok := e.state.MultiPartyGet(id)
	if !ok {
		return ErrMultiPartyNotConfigured
	}
	if cfg.Finalized {
		return ErrMultiPartyFinalized
	}
	if !cfg.Approvals[approver] {
		return ErrNoApproval
	}
	delete(cfg.Approvals, approver)
	return e.state.MultiPartyPut(cfg)
}

// AddApprover extends the whitelist. Sender or admin only.
func (e *Engine) AddApprover(id uint64, caller, approver types.Address) error {
	if e.state == nil {
		return errNilState
	}
	lock := e.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	esc, ok := e.state.EscrowGet(id)
	if !ok {
		return ErrNotFound
	}
	if caller != esc.Sender && caller != e.admin {
		return ErrUnauthorizedCaller
	}
	cfg, ok := e.state.MultiPartyGet(id)
	if !ok {
		return ErrMultiPartyNotConfigured
	}
	if cfg.Finalized {
		return ErrMultiPartyFinalized
	}
	if cfg.isWhitelisted(approver) {
		return ErrApproverExists
	}
	cfg.WhitelistedApprovers = append(cfg.WhitelistedApprovers, approver)
	return e.state.MultiPartyPut(cfg)
}

// RemoveApprover shrinks the whitelist. The whitelist may never drop below
// the required approval count, and any recorded approval from the removed
// approver is discarded.
func (e *Engine) RemoveApprover(id uint64, caller, approver types.Address) error {
	if e.state == nil {
		return errNilState
	}
	lock := e.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	esc, ok := e.state.EscrowGet(id)
	if !ok {
		return ErrNotFound
	}
	if caller != esc.Sender && caller != e.admin {
		return ErrUnauthorizedCaller
	}
	cfg, ok := e.state.MultiPartyGet(id)
	if !ok {
		return ErrMultiPartyNotConfigured
	}
	if cfg.Finalized {
		return ErrMultiPartyFinalized
	}
	if !cfg.isWhitelisted(approver) {
		return ErrApproverNotWhitelisted
	}
	if uint32(len(cfg.WhitelistedApprovers))-1 < cfg.RequiredApprovals {
		return ErrInvalidApproverCount
	}
	filtered := cfg.WhitelistedApprovers[:0]
	for _, a := range cfg.WhitelistedApprovers {
		if a != approver {
			filtered = append(filtered, a)
		}
	}
	cfg.WhitelistedApprovers = filtered
	delete(cfg.Approvals, approver)
	return e.state.MultiPartyPut(cfg)
}

// MultiPartyStatus returns a copy of the quorum configuration.
func (e *Engine) MultiPartyStatus(id uint64) (*MultiPartyConfig, bool) {
	if e.state == nil {
		return nil, false
	}
	cfg, ok := e.state.MultiPartyGet(id)
	if !ok {
		return nil, false
	}
	return cfg.Clone(), true
}

func dedupeAddresses(addrs []types.Address) []types.Address {
	seen := make(map[types.Address]struct{}, len(addrs))
	out := make([]types.Address, 0, len(addrs))
	for _, a := range addrs {
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}
