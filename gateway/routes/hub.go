package routes

import (
	"math/big"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"remithub/core/types"
	"remithub/native/escrow"
	"remithub/native/hub"
)

// hubRoutes exposes invoices, remittances, batch escrow operations and
// currency conversion queries.
type hubRoutes struct {
	hub *hub.Hub
}

func newHubRoutes(h *hub.Hub) *hubRoutes {
	return &hubRoutes{hub: h}
}

func (hr *hubRoutes) mount(r chi.Router) {
	r.Post("/invoices", hr.generateInvoice)
	r.Get("/invoices/{id}", hr.getInvoice)
	r.Get("/invoices/by-escrow/{escrowId}", hr.getInvoiceByEscrow)
	r.Post("/invoices/{id}/pay", hr.markInvoicePaid)
	r.Post("/invoices/{id}/overdue", hr.markInvoiceOverdue)
	r.Post("/invoices/{id}/cancel", hr.cancelInvoice)
	r.Post("/invoices/{id}/amount", hr.updateInvoiceAmount)

	r.Post("/remittances", hr.sendRemittance)
	r.Get("/remittances/{id}", hr.getRemittance)
	r.Post("/remittances/{id}/complete", hr.completeRemittance)
	r.Post("/remittances/{id}/clear-flag", hr.clearAmlFlag)

	r.Post("/batch/escrows", hr.batchCreate)
	r.Post("/batch/deposits", hr.batchDeposit)
	r.Post("/batch/releases", hr.batchRelease)

	r.Get("/convert", hr.convert)
}

type invoiceRequest struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
	FromAsset string `json:"fromAsset"`
	ToAsset   string `json:"toAsset"`
	DueDate   int64  `json:"dueDate"`
	EscrowID  uint64 `json:"escrowId,omitempty"`
	Memo      string `json:"memo,omitempty"`
}

func (hr *hubRoutes) generateInvoice(w http.ResponseWriter, r *http.Request) {
	caller, err := callerAddress(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var req invoiceRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	recipient, err := types.ParseAddress(req.Recipient)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	start := time.Now()
	inv, err := hr.hub.GenerateInvoice(caller, recipient, amount, req.FromAsset, req.ToAsset, req.DueDate, req.EscrowID, req.Memo)
	observeEngine("hub", "invoice_generate", start, err)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

func (hr *hubRoutes) getInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	inv, ok := hr.hub.GetInvoice(id)
	if !ok {
		writeDomainError(w, hub.ErrInvoiceNotFound)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (hr *hubRoutes) getInvoiceByEscrow(w http.ResponseWriter, r *http.Request) {
	escrowID, err := pathID(r, "escrowId")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	inv, ok := hr.hub.GetInvoiceByEscrow(escrowID)
	if !ok {
		writeDomainError(w, hub.ErrInvoiceNotFound)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (hr *hubRoutes) markInvoicePaid(w http.ResponseWriter, r *http.Request) {
	hr.invoiceAction(w, r, "invoice_paid", hr.hub.MarkInvoicePaid)
}

func (hr *hubRoutes) cancelInvoice(w http.ResponseWriter, r *http.Request) {
	hr.invoiceAction(w, r, "invoice_cancel", hr.hub.CancelInvoice)
}

func (hr *hubRoutes) invoiceAction(w http.ResponseWriter, r *http.Request, op string, apply func(uint64, types.Address) (*hub.Invoice, error)) {
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	caller, err := callerAddress(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	start := time.Now()
	inv, err := apply(id, caller)
	observeEngine("hub", op, start, err)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (hr *hubRoutes) markInvoiceOverdue(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	inv, err := hr.hub.MarkInvoiceOverdue(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (hr *hubRoutes) updateInvoiceAmount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	caller, err := callerAddress(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var req amountRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	inv, err := hr.hub.UpdateInvoiceAmount(id, caller, amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

type remittanceRequest struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
	FromAsset string `json:"fromAsset"`
	ToAsset   string `json:"toAsset"`
	Memo      string `json:"memo,omitempty"`
}

func (hr *hubRoutes) sendRemittance(w http.ResponseWriter, r *http.Request) {
	caller, err := callerAddress(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var req remittanceRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	recipient, err := types.ParseAddress(req.Recipient)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	start := time.Now()
	rem, err := hr.hub.SendRemittance(caller, recipient, amount, req.FromAsset, req.ToAsset, req.Memo)
	observeEngine("hub", "remittance_send", start, err)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rem)
}

func (hr *hubRoutes) getRemittance(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	rem, ok := hr.hub.GetRemittance(id)
	if !ok {
		writeDomainError(w, hub.ErrRemittanceNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rem)
}

func (hr *hubRoutes) completeRemittance(w http.ResponseWriter, r *http.Request) {
	hr.remittanceAction(w, r, "remittance_complete", hr.hub.CompleteRemittance)
}

func (hr *hubRoutes) clearAmlFlag(w http.ResponseWriter, r *http.Request) {
	hr.remittanceAction(w, r, "remittance_clear_flag", hr.hub.ClearAmlFlag)
}

func (hr *hubRoutes) remittanceAction(w http.ResponseWriter, r *http.Request, op string, apply func(uint64, types.Address) (*hub.Remittance, error)) {
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	caller, err := callerAddress(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	start := time.Now()
	rem, err := apply(id, caller)
	observeEngine("hub", op, start, err)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rem)
}

type batchEscrowSpec struct {
	Recipient  string       `json:"recipient"`
	Amount     string       `json:"amount"`
	Asset      escrow.Asset `json:"asset"`
	Expiration int64        `json:"expiration,omitempty"`
	Memo       string       `json:"memo,omitempty"`
}

type batchCreateRequest struct {
	Escrows []batchEscrowSpec `json:"escrows"`
}

func (hr *hubRoutes) batchCreate(w http.ResponseWriter, r *http.Request) {
	caller, err := callerAddress(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var req batchCreateRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	specs := make([]hub.EscrowSpec, 0, len(req.Escrows))
	for _, raw := range req.Escrows {
		recipient, err := types.ParseAddress(raw.Recipient)
		if err != nil {
			writeBadRequest(w, err)
			return
		}
		amount, err := parseAmount(raw.Amount)
		if err != nil {
			writeBadRequest(w, err)
			return
		}
		specs = append(specs, hub.EscrowSpec{
			Recipient:  recipient,
			Amount:     amount,
			Asset:      raw.Asset,
			Expiration: raw.Expiration,
			Memo:       raw.Memo,
		})
	}
	start := time.Now()
	escrows, err := hr.hub.BatchCreateEscrows(caller, specs)
	observeEngine("hub", "batch_create", start, err)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, escrows)
}

type batchDepositRequest struct {
	IDs     []uint64 `json:"ids"`
	Amounts []string `json:"amounts"`
}

func (hr *hubRoutes) batchDeposit(w http.ResponseWriter, r *http.Request) {
	caller, err := callerAddress(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var req batchDepositRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	amounts := make([]*big.Int, 0, len(req.Amounts))
	for _, raw := range req.Amounts {
		amount, err := parseAmount(raw)
		if err != nil {
			writeBadRequest(w, err)
			return
		}
		amounts = append(amounts, amount)
	}
	start := time.Now()
	escrows, err := hr.hub.BatchDeposit(caller, req.IDs, amounts)
	observeEngine("hub", "batch_deposit", start, err)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, escrows)
}

type batchReleaseRequest struct {
	IDs []uint64 `json:"ids"`
}

func (hr *hubRoutes) batchRelease(w http.ResponseWriter, r *http.Request) {
	caller, err := callerAddress(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var req batchReleaseRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	start := time.Now()
	escrows, err := hr.hub.BatchRelease(caller, req.IDs)
	observeEngine("hub", "batch_release", start, err)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, escrows)
}

func (hr *hubRoutes) convert(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	amount, err := parseAmount(query.Get("amount"))
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	result, err := hr.hub.ConvertCurrency(amount, query.Get("from"), query.Get("to"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
