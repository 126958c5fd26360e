package hub

import (
	"strconv"

	"remithub/core/types"
)

const (
	EventTypeInvoiceGenerated    = "hub.invoice.generated"
	EventTypeInvoicePaid         = "hub.invoice.paid"
	EventTypeInvoiceOverdue      = "hub.invoice.overdue"
	EventTypeInvoiceCancelled    = "hub.invoice.cancelled"
	EventTypeInvoiceUpdated      = "hub.invoice.updated"
	EventTypeRemittanceSent      = "hub.remittance.sent"
	EventTypeRemittanceCompleted = "hub.remittance.completed"
	EventTypeRemittanceCleared   = "hub.remittance.cleared"
)

type hubEvent struct {
	evt *types.Event
}

func (e hubEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

// Event exposes the underlying attribute payload for transports.
func (e hubEvent) Event() *types.Event { return e.evt }

func newInvoiceEvent(eventType string, inv *Invoice) hubEvent {
	attrs := make(map[string]string)
	if inv != nil {
		attrs["id"] = strconv.FormatUint(inv.ID, 10)
		attrs["sender"] = inv.Sender.Hex()
		attrs["recipient"] = inv.Recipient.Hex()
		attrs["amount"] = inv.Amount.String()
		attrs["total"] = inv.Total.String()
		attrs["status"] = inv.Status.String()
		if inv.EscrowID != 0 {
			attrs["escrowId"] = strconv.FormatUint(inv.EscrowID, 10)
		}
	}
	return hubEvent{evt: &types.Event{Type: eventType, Attributes: attrs}}
}

func newRemittanceEvent(eventType string, rem *Remittance) hubEvent {
	attrs := make(map[string]string)
	if rem != nil {
		attrs["id"] = strconv.FormatUint(rem.ID, 10)
		attrs["sender"] = rem.Sender.Hex()
		attrs["recipient"] = rem.Recipient.Hex()
		attrs["amount"] = rem.Amount.String()
		attrs["status"] = rem.Status.String()
		attrs["riskScore"] = strconv.FormatUint(uint64(rem.RiskScore), 10)
		attrs["flagged"] = strconv.FormatBool(rem.AmlFlagged)
	}
	return hubEvent{evt: &types.Event{Type: eventType, Attributes: attrs}}
}
