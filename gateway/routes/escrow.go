package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"remithub/core/types"
	"remithub/native/escrow"
)

// escrowRoutes exposes the escrow engine over HTTP. The caller identity is
// taken from the X-Caller-Address header on every mutation.
type escrowRoutes struct {
	engine *escrow.Engine
}

func newEscrowRoutes(engine *escrow.Engine) *escrowRoutes {
	return &escrowRoutes{engine: engine}
}

func (er *escrowRoutes) mount(r chi.Router) {
	r.Post("/", er.create)
	r.Post("/assets/add", er.addAsset)
	r.Post("/assets/remove", er.removeAsset)
	r.Get("/{id}", er.get)
	r.Post("/{id}/deposit", er.deposit)
	r.Post("/{id}/approve", er.approve)
	r.Post("/{id}/release", er.release)
	r.Post("/{id}/enable-partial", er.enablePartial)
	r.Post("/{id}/release-partial", er.releasePartial)
	r.Post("/{id}/refund", er.refund)
	r.Post("/{id}/refund-partial", er.refundPartial)

	r.Post("/{id}/conditions", er.addCondition)
	r.Post("/{id}/conditions/operator", er.setOperator)
	r.Post("/{id}/conditions/min-approvals", er.setMinApprovals)
	r.Post("/{id}/conditions/approve", er.addApproval)
	r.Post("/{id}/conditions/verify", er.verifyConditions)
	r.Post("/{id}/conditions/kyc-override", er.overrideKYC)

	r.Get("/{id}/multiparty", er.multiPartyStatus)
	r.Post("/{id}/multiparty", er.setupMultiParty)
	r.Post("/{id}/multiparty/approve", er.approveMultiParty)
	r.Post("/{id}/multiparty/revoke", er.revokeApproval)
	r.Post("/{id}/multiparty/approvers/add", er.addApprover)
	r.Post("/{id}/multiparty/approvers/remove", er.removeApprover)
}

type createEscrowRequest struct {
	Recipient  string       `json:"recipient"`
	Amount     string       `json:"amount"`
	Asset      escrow.Asset `json:"asset"`
	Expiration int64        `json:"expiration"`
	Memo       string       `json:"memo"`
}

func (er *escrowRoutes) create(w http.ResponseWriter, r *http.Request) {
	caller, err := callerAddress(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var req createEscrowRequest
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
	esc, err := er.engine.Create(caller, recipient, amount, req.Asset, req.Expiration, req.Memo)
	observeEngine("escrow", "create", start, err)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, esc)
}

func (er *escrowRoutes) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	esc, ok := er.engine.Get(id)
	if !ok {
		writeDomainError(w, escrow.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, esc)
}

type amountRequest struct {
	Amount string `json:"amount"`
}

func (er *escrowRoutes) deposit(w http.ResponseWriter, r *http.Request) {
	id, caller, ok := er.idAndCaller(w, r)
	if !ok {
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
	start := time.Now()
	esc, err := er.engine.Deposit(id, caller, amount)
	observeEngine("escrow", "deposit", start, err)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, esc)
}

func (er *escrowRoutes) approve(w http.ResponseWriter, r *http.Request) {
	id, caller, ok := er.idAndCaller(w, r)
	if !ok {
		return
	}
	start := time.Now()
	esc, err := er.engine.Approve(id, caller)
	observeEngine("escrow", "approve", start, err)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, esc)
}

func (er *escrowRoutes) release(w http.ResponseWriter, r *http.Request) {
	id, caller, ok := er.idAndCaller(w, r)
	if !ok {
		return
	}
	start := time.Now()
	esc, err := er.engine.Release(id, caller)
	observeEngine("escrow", "release", start, err)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, esc)
}

func (er *escrowRoutes) enablePartial(w http.ResponseWriter, r *http.Request) {
	id, caller, ok := er.idAndCaller(w, r)
	if !ok {
		return
	}
	start := time.Now()
	esc, err := er.engine.EnablePartialRelease(id, caller)
	observeEngine("escrow", "enable_partial", start, err)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, esc)
}

func (er *escrowRoutes) releasePartial(w http.ResponseWriter, r *http.Request) {
	id, caller, ok := er.idAndCaller(w, r)
	if !ok {
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
	start := time.Now()
	esc, err := er.engine.ReleasePartial(id, caller, amount)
	observeEngine("escrow", "release_partial", start, err)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, esc)
}

type refundRequest struct {
	Amount string `json:"amount,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func (er *escrowRoutes) refund(w http.ResponseWriter, r *http.Request) {
	id, caller, ok := er.idAndCaller(w, r)
	if !ok {
		return
	}
	var req refundRequest
	if r.ContentLength > 0 {
		if err := decodeRequest(r, &req); err != nil {
			writeBadRequest(w, err)
			return
		}
	}
	reason, err := parseRefundReason(req.Reason)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	start := time.Now()
	esc, err := er.engine.Refund(id, caller, reason)
	observeEngine("escrow", "refund", start, err)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, esc)
}

func (er *escrowRoutes) refundPartial(w http.ResponseWriter, r *http.Request) {
	id, caller, ok := er.idAndCaller(w, r)
	if !ok {
		return
	}
	var req refundRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	reason, err := parseRefundReason(req.Reason)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	start := time.Now()
	esc, err := er.engine.RefundPartial(id, caller, amount, reason)
	observeEngine("escrow", "refund_partial", start, err)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, esc)
}

type addConditionRequest struct {
	Type      string `json:"type"`
	Required  bool   `json:"required"`
	Threshold string `json:"threshold,omitempty"`
}

func (er *escrowRoutes) addCondition(w http.ResponseWriter, r *http.Request) {
	id, caller, ok := er.idAndCaller(w, r)
	if !ok {
		return
	}
	var req addConditionRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	condType, err := parseConditionType(req.Type)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	threshold, err := parseOptionalAmount(req.Threshold)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := er.engine.AddCondition(id, caller, condType, req.Required, threshold); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"id": id})
}

type operatorRequest struct {
	Operator string `json:"operator"`
}

func (er *escrowRoutes) setOperator(w http.ResponseWriter, r *http.Request) {
	id, caller, ok := er.idAndCaller(w, r)
	if !ok {
		return
	}
	var req operatorRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	op, err := parseOperator(req.Operator)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := er.engine.SetConditionOperator(id, caller, op); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"operator": op.String()})
}

type minApprovalsRequest struct {
	MinApprovals uint32 `json:"minApprovals"`
}

func (er *escrowRoutes) setMinApprovals(w http.ResponseWriter, r *http.Request) {
	id, caller, ok := er.idAndCaller(w, r)
	if !ok {
		return
	}
	var req minApprovalsRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := er.engine.SetMinApprovals(id, caller, req.MinApprovals); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint32{"minApprovals": req.MinApprovals})
}

func (er *escrowRoutes) addApproval(w http.ResponseWriter, r *http.Request) {
	id, caller, ok := er.idAndCaller(w, r)
	if !ok {
		return
	}
	if err := er.engine.AddApproval(id, caller); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"id": id})
}

type verifyRequest struct {
	Proof string `json:"proof,omitempty"`
}

func (er *escrowRoutes) verifyConditions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var req verifyRequest
	if r.ContentLength > 0 {
		if err := decodeRequest(r, &req); err != nil {
			writeBadRequest(w, err)
			return
		}
	}
	proof, err := parseOptionalAmount(req.Proof)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	result, err := er.engine.VerifyConditions(id, proof)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (er *escrowRoutes) overrideKYC(w http.ResponseWriter, r *http.Request) {
	id, caller, ok := er.idAndCaller(w, r)
	if !ok {
		return
	}
	if err := er.engine.AdminOverrideKYC(id, caller); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"id": id})
}

type setupMultiPartyRequest struct {
	Approvers       []string `json:"approvers"`
	Required        uint32   `json:"requiredApprovals"`
	ApprovalTimeout int64    `json:"approvalTimeout,omitempty"`
}

func (er *escrowRoutes) setupMultiParty(w http.ResponseWriter, r *http.Request) {
	id, caller, ok := er.idAndCaller(w, r)
	if !ok {
		return
	}
	var req setupMultiPartyRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	approvers := make([]types.Address, 0, len(req.Approvers))
	for _, raw := range req.Approvers {
		addr, err := types.ParseAddress(raw)
		if err != nil {
			writeBadRequest(w, err)
			return
		}
		approvers = append(approvers, addr)
	}
	if err := er.engine.SetupMultiParty(id, caller, approvers, req.Required, req.ApprovalTimeout); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"id": id})
}

func (er *escrowRoutes) approveMultiParty(w http.ResponseWriter, r *http.Request) {
	id, caller, ok := er.idAndCaller(w, r)
	if !ok {
		return
	}
	quorumMet, err := er.engine.ApproveMultiParty(id, caller)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"quorumMet": quorumMet})
}

func (er *escrowRoutes) revokeApproval(w http.ResponseWriter, r *http.Request) {
	id, caller, ok := er.idAndCaller(w, r)
	if !ok {
		return
	}
	if err := er.engine.RevokeApproval(id, caller); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"id": id})
}

type approverRequest struct {
	Approver string `json:"approver"`
}

func (er *escrowRoutes) addApprover(w http.ResponseWriter, r *http.Request) {
	er.mutateApprover(w, r, er.engine.AddApprover)
}

func (er *escrowRoutes) removeApprover(w http.ResponseWriter, r *http.Request) {
	er.mutateApprover(w, r, er.engine.RemoveApprover)
}

func (er *escrowRoutes) mutateApprover(w http.ResponseWriter, r *http.Request, apply func(uint64, types.Address, types.Address) error) {
	id, caller, ok := er.idAndCaller(w, r)
	if !ok {
		return
	}
	var req approverRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	approver, err := types.ParseAddress(req.Approver)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := apply(id, caller, approver); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"id": id})
}

func (er *escrowRoutes) multiPartyStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	cfg, ok := er.engine.MultiPartyStatus(id)
	if !ok {
		writeDomainError(w, escrow.ErrMultiPartyNotConfigured)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (er *escrowRoutes) addAsset(w http.ResponseWriter, r *http.Request) {
	er.mutateAsset(w, r, er.engine.AddSupportedAsset)
}

func (er *escrowRoutes) removeAsset(w http.ResponseWriter, r *http.Request) {
	er.mutateAsset(w, r, er.engine.RemoveSupportedAsset)
}

func (er *escrowRoutes) mutateAsset(w http.ResponseWriter, r *http.Request, apply func(types.Address, escrow.Asset) error) {
	caller, err := callerAddress(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var asset escrow.Asset
	if err := decodeRequest(r, &asset); err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := apply(caller, asset); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"asset": asset.Key()})
}

func (er *escrowRoutes) idAndCaller(w http.ResponseWriter, r *http.Request) (uint64, types.Address, bool) {
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, err)
		return 0, types.Address{}, false
	}
	caller, err := callerAddress(r)
	if err != nil {
		writeBadRequest(w, err)
		return 0, types.Address{}, false
	}
	return id, caller, true
}
