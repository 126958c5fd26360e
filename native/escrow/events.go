package escrow

import (
	"math/big"
	"strconv"

	"remithub/core/types"
)

const (
	EventTypeEscrowCreated        = "escrow.created"
	EventTypeEscrowDeposited      = "escrow.deposited"
	EventTypeEscrowApproved       = "escrow.approved"
	EventTypeEscrowReleased       = "escrow.released"
	EventTypeEscrowRefunded       = "escrow.refunded"
	EventTypeEscrowExpired        = "escrow.expired"
	EventTypeConditionApproval    = "escrow.condition.approval"
	EventTypeConditionsVerified   = "escrow.condition.verified"
	EventTypeMultiPartyConfigured = "escrow.multiparty.configured"
	EventTypeMultiPartyApproval   = "escrow.multiparty.approval"
)

type escrowEvent struct {
	evt *types.Event
}

func (e escrowEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

// Event exposes the underlying attribute payload for transports.
func (e escrowEvent) Event() *types.Event { return e.evt }

func baseAttributes(esc *Escrow) map[string]string {
	attrs := make(map[string]string)
	if esc == nil {
		return attrs
	}
	attrs["id"] = strconv.FormatUint(esc.ID, 10)
	attrs["sender"] = esc.Sender.Hex()
	attrs["recipient"] = esc.Recipient.Hex()
	attrs["asset"] = esc.Asset.Key()
	attrs["status"] = esc.Status.String()
	return attrs
}

func newCreatedEvent(esc *Escrow) escrowEvent {
	attrs := baseAttributes(esc)
	if esc != nil {
		attrs["amount"] = nonNil(esc.Amount).String()
		attrs["createdAt"] = strconv.FormatInt(esc.CreatedAt, 10)
		if esc.Conditions.ExpirationTimestamp > 0 {
			attrs["expiresAt"] = strconv.FormatInt(esc.Conditions.ExpirationTimestamp, 10)
		}
	}
	return escrowEvent{evt: &types.Event{Type: EventTypeEscrowCreated, Attributes: attrs}}
}

func newDepositedEvent(esc *Escrow, amount *big.Int) escrowEvent {
	attrs := baseAttributes(esc)
	attrs["amount"] = nonNil(amount).String()
	if esc != nil {
		attrs["deposited"] = nonNil(esc.DepositedAmount).String()
	}
	return escrowEvent{evt: &types.Event{Type: EventTypeEscrowDeposited, Attributes: attrs}}
}

func newApprovedEvent(esc *Escrow, approver types.Address) escrowEvent {
	attrs := baseAttributes(esc)
	attrs["approver"] = approver.Hex()
	return escrowEvent{evt: &types.Event{Type: EventTypeEscrowApproved, Attributes: attrs}}
}

func newReleasedEvent(esc *Escrow, payout, fee *big.Int, partial bool) escrowEvent {
	attrs := baseAttributes(esc)
	attrs["payout"] = nonNil(payout).String()
	attrs["fee"] = nonNil(fee).String()
	attrs["partial"] = strconv.FormatBool(partial)
	if esc != nil {
		attrs["released"] = nonNil(esc.ReleasedAmount).String()
	}
	return escrowEvent{evt: &types.Event{Type: EventTypeEscrowReleased, Attributes: attrs}}
}

func newRefundedEvent(esc *Escrow, payout, fee *big.Int, reason RefundReason) escrowEvent {
	attrs := baseAttributes(esc)
	attrs["payout"] = nonNil(payout).String()
	attrs["fee"] = nonNil(fee).String()
	attrs["reason"] = reason.String()
	if esc != nil {
		attrs["refunded"] = nonNil(esc.RefundedAmount).String()
	}
	return escrowEvent{evt: &types.Event{Type: EventTypeEscrowRefunded, Attributes: attrs}}
}

func newExpiredEvent(esc *Escrow) escrowEvent {
	attrs := baseAttributes(esc)
	if esc != nil {
		attrs["expiresAt"] = strconv.FormatInt(esc.Conditions.ExpirationTimestamp, 10)
	}
	return escrowEvent{evt: &types.Event{Type: EventTypeEscrowExpired, Attributes: attrs}}
}

func newConditionApprovalEvent(esc *Escrow, approver types.Address) escrowEvent {
	attrs := baseAttributes(esc)
	attrs["approver"] = approver.Hex()
	if esc != nil {
		attrs["approvals"] = strconv.FormatUint(uint64(esc.Conditions.CurrentApprovals), 10)
	}
	return escrowEvent{evt: &types.Event{Type: EventTypeConditionApproval, Attributes: attrs}}
}

func newConditionsVerifiedEvent(esc *Escrow, result VerificationResult) escrowEvent {
	attrs := baseAttributes(esc)
	attrs["allPassed"] = strconv.FormatBool(result.AllPassed)
	attrs["failed"] = strconv.Itoa(len(result.FailedConditions))
	return escrowEvent{evt: &types.Event{Type: EventTypeConditionsVerified, Attributes: attrs}}
}

func newMultiPartyConfiguredEvent(esc *Escrow, cfg *MultiPartyConfig) escrowEvent {
	attrs := baseAttributes(esc)
	if cfg != nil {
		attrs["required"] = strconv.FormatUint(uint64(cfg.RequiredApprovals), 10)
		attrs["approvers"] = strconv.Itoa(len(cfg.WhitelistedApprovers))
		if cfg.ApprovalTimeout > 0 {
			attrs["timeout"] = strconv.FormatInt(cfg.ApprovalTimeout, 10)
		}
	}
	return escrowEvent{evt: &types.Event{Type: EventTypeMultiPartyConfigured, Attributes: attrs}}
}

func newMultiPartyApprovalEvent(id uint64, approver types.Address, approvals uint32, quorumMet bool) escrowEvent {
	attrs := map[string]string{
		"id":        strconv.FormatUint(id, 10),
		"approver":  approver.Hex(),
		"approvals": strconv.FormatUint(uint64(approvals), 10),
		"quorumMet": strconv.FormatBool(quorumMet),
	}
	return escrowEvent{evt: &types.Event{Type: EventTypeMultiPartyApproval, Attributes: attrs}}
}
