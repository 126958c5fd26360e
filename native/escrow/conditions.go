package escrow

import (
	"math/big"

	"remithub/core/types"
)

// VerificationResult is the outcome of one condition evaluation pass.
type VerificationResult struct {
	AllPassed        bool            `json:"allPassed"`
	FailedConditions []ConditionType `json:"failedConditions,omitempty"`
}

// AddCondition attaches a release predicate to the escrow. Only the sender
// may add conditions, and only while the escrow can still change shape.
func (e *Engine) AddCondition(id uint64, caller types.Address, condType ConditionType, required bool, threshold *big.Int) error {
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
	cond := Condition{Type: condType, Required: required}
	if threshold != nil {
		cond.ThresholdValue = new(big.Int).Set(threshold)
	}
	esc.Conditions.Conditions = append(esc.Conditions.Conditions, cond)
	return e.state.EscrowPut(esc)
}

// SetConditionOperator selects And/Or aggregation across the condition set.
func (e *Engine) SetConditionOperator(id uint64, caller types.Address, op ConditionOperator) error {
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
	esc.Conditions.Operator = op
	return e.state.EscrowPut(esc)
}

// SetMinApprovals configures the approval threshold consumed by Approval and
// MultiSignature conditions.
func (e *Engine) SetMinApprovals(id uint64, caller types.Address, min uint32) error {
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
	esc.Conditions.MinApprovals = min
	return e.state.EscrowPut(esc)
}

// AddApproval records one approval vote towards the condition threshold.
// Distinct from multi-party approvals, which gate release directly.
func (e *Engine) AddApproval(id uint64, approver types.Address) error {
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
	if approver != esc.Sender && approver != esc.Recipient && approver != e.admin {
		return ErrUnauthorizedCaller
	}
	esc.Conditions.CurrentApprovals++
	if err := e.state.EscrowPut(esc); err != nil {
		return err
	}
	e.emit(newConditionApprovalEvent(esc, approver))
	return nil
}

// AdminOverrideKYC marks the escrow compliant regardless of the checker
// verdict. Admin only.
func (e *Engine) AdminOverrideKYC(id uint64, caller types.Address) error {
	if e.state == nil {
		return errNilState
	}
	if caller != e.admin {
		return ErrUnauthorizedCaller
	}
	lock := e.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	esc, ok := e.state.EscrowGet(id)
	if !ok {
		return ErrNotFound
	}
	esc.KycCompliant = true
	return e.state.EscrowPut(esc)
}

// VerifyConditions recomputes every condition from current state, persists
// the per-condition verdicts and returns the aggregate. proofData backs
// OraclePrice conditions; it is compared against each condition's threshold.
func (e *Engine) VerifyConditions(id uint64, proofData *big.Int) (VerificationResult, error) {
	if e.state == nil {
		return VerificationResult{}, errNilState
	}
	lock := e.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	esc, ok := e.state.EscrowGet(id)
	if !ok {
		return VerificationResult{}, ErrNotFound
	}
	now := e.now()
	var (
		failed        []ConditionType
		requiredCount int
		passedCount   int
	)
	for i := range esc.Conditions.Conditions {
		cond := &esc.Conditions.Conditions[i]
		passed := e.evaluateCondition(esc, cond, proofData, now)
		cond.Verified = passed
		if passed {
			passedCount++
		}
		if cond.Required {
			requiredCount++
			if !passed {
				failed = append(failed, cond.Type)
			}
		}
	}
	var allPassed bool
	switch esc.Conditions.Operator {
	case OperatorOr:
		allPassed = passedCount > 0
	default:
		allPassed = len(failed) == 0 && (requiredCount == 0 || passedCount >= requiredCount)
	}
	if err := e.state.EscrowPut(esc); err != nil {
		return VerificationResult{}, err
	}
	result := VerificationResult{AllPassed: allPassed, FailedConditions: failed}
	e.emit(newConditionsVerifiedEvent(esc, result))
	return result, nil
}

func (e *Engine) evaluateCondition(esc *Escrow, cond *Condition, proofData *big.Int, now int64) bool {
	switch cond.Type {
	case ConditionTimestamp:
		return now >= esc.Conditions.ExpirationTimestamp
	case ConditionApproval, ConditionMultiSignature:
		return esc.Conditions.CurrentApprovals >= esc.Conditions.MinApprovals
	case ConditionOraclePrice:
		if proofData == nil || proofData.Sign() <= 0 {
			return false
		}
		if cond.ThresholdValue == nil {
			return true
		}
		return proofData.Cmp(cond.ThresholdValue) >= 0
	case ConditionKYCVerified:
		return esc.KycCompliant
	default:
		return false
	}
}
