package routes

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"remithub/core/types"
	"remithub/native/common"
	"remithub/native/escrow"
	"remithub/native/fx"
	"remithub/native/hub"
	"remithub/observability"
)

const requestLimit = 1 << 20 // 1 MiB

// observeEngine feeds an operation outcome into the engine metrics registry.
func observeEngine(module, operation string, start time.Time, err error) {
	observability.Engine().Observe(module, operation, err, time.Since(start))
}

// CallerHeader identifies the authenticated account acting on a request.
// The gateway trusts an upstream auth layer to have populated it.
const CallerHeader = "X-Caller-Address"

func decodeRequest(r *http.Request, dst interface{}) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, requestLimit))
	if err != nil {
		return fmt.Errorf("read request: %w", err)
	}
	if len(data) == 0 {
		return errors.New("empty request body")
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

func callerAddress(r *http.Request) (types.Address, error) {
	raw := strings.TrimSpace(r.Header.Get(CallerHeader))
	if raw == "" {
		return types.Address{}, fmt.Errorf("missing %s header", CallerHeader)
	}
	return types.ParseAddress(raw)
}

func pathID(r *http.Request, param string) (uint64, error) {
	raw := chi.URLParam(r, param)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", param, raw)
	}
	return id, nil
}

func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, errors.New("missing amount")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount: %q", raw)
	}
	return amount, nil
}

func parseOptionalAmount(raw string) (*big.Int, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	return parseAmount(raw)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	data, err := json.Marshal(payload)
	if err != nil {
		writeInternalError(w, fmt.Errorf("marshal response: %w", err))
		return
	}
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeBadRequest(w http.ResponseWriter, err error) {
	writeJSONError(w, http.StatusBadRequest, err)
}

func writeInternalError(w http.ResponseWriter, err error) {
	writeJSONError(w, http.StatusInternalServerError, err)
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	message := strings.TrimSpace(err.Error())
	if message == "" {
		message = http.StatusText(status)
	}
	payload, marshalErr := json.Marshal(map[string]string{"error": message})
	if marshalErr != nil {
		payload = []byte(`{"error":"internal error"}`)
	}
	_, _ = w.Write(payload)
}

// writeDomainError maps engine and hub sentinels onto HTTP statuses so API
// consumers can branch on the code without string matching.
func writeDomainError(w http.ResponseWriter, err error) {
	writeJSONError(w, domainStatus(err), err)
}

func domainStatus(err error) int {
	switch {
	case errors.Is(err, escrow.ErrNotFound),
		errors.Is(err, hub.ErrInvoiceNotFound),
		errors.Is(err, hub.ErrRemittanceNotFound):
		return http.StatusNotFound
	case errors.Is(err, escrow.ErrUnauthorizedCaller),
		errors.Is(err, escrow.ErrUnauthorizedRefund),
		errors.Is(err, escrow.ErrWrongSender),
		errors.Is(err, escrow.ErrApproverNotWhitelisted),
		errors.Is(err, hub.ErrUnauthorizedCaller):
		return http.StatusForbidden
	case errors.Is(err, escrow.ErrRateLimited),
		errors.Is(err, hub.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, common.ErrModulePaused):
		return http.StatusServiceUnavailable
	case errors.Is(err, escrow.ErrNotPending),
		errors.Is(err, escrow.ErrNotFunded),
		errors.Is(err, escrow.ErrNotApproved),
		errors.Is(err, escrow.ErrAlreadyReleased),
		errors.Is(err, escrow.ErrAlreadyRefunded),
		errors.Is(err, escrow.ErrAlreadyApproved),
		errors.Is(err, escrow.ErrQuorumNotMet),
		errors.Is(err, escrow.ErrExpired),
		errors.Is(err, escrow.ErrNotExpired),
		errors.Is(err, escrow.ErrPartialNotAllowed),
		errors.Is(err, escrow.ErrPartialFlowActive),
		errors.Is(err, escrow.ErrMultiPartyExists),
		errors.Is(err, escrow.ErrMultiPartyNotConfigured),
		errors.Is(err, escrow.ErrMultiPartyFinalized),
		errors.Is(err, escrow.ErrApprovalTimeout),
		errors.Is(err, escrow.ErrApproverExists),
		errors.Is(err, escrow.ErrNoApproval),
		errors.Is(err, escrow.ErrKYCFailed),
		errors.Is(err, hub.ErrInvoicePaid),
		errors.Is(err, hub.ErrInvoiceNotOpen),
		errors.Is(err, hub.ErrInvoiceNotOverdue),
		errors.Is(err, hub.ErrRemittanceClosed),
		errors.Is(err, hub.ErrAmlFlagged),
		errors.Is(err, hub.ErrNotFlagged):
		return http.StatusConflict
	case errors.Is(err, escrow.ErrInvalidAmount),
		errors.Is(err, escrow.ErrSameSenderRecipient),
		errors.Is(err, escrow.ErrUnsupportedAsset),
		errors.Is(err, escrow.ErrInsufficientAmount),
		errors.Is(err, escrow.ErrInsufficientFunds),
		errors.Is(err, escrow.ErrNoFundsAvailable),
		errors.Is(err, escrow.ErrInsufficientBalance),
		errors.Is(err, escrow.ErrInvalidApproverCount),
		errors.Is(err, hub.ErrInvalidAmount),
		errors.Is(err, hub.ErrSameSenderRecipient),
		errors.Is(err, hub.ErrInvalidDueDate),
		errors.Is(err, hub.ErrBatchTooLarge),
		errors.Is(err, hub.ErrEmptyBatch),
		errors.Is(err, hub.ErrBatchLengthMismatch),
		errors.Is(err, fx.ErrNotConfigured),
		errors.Is(err, fx.ErrInvalidAmount),
		errors.Is(err, fx.ErrStaleRate),
		errors.Is(err, fx.ErrFallbackFailed):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func parseConditionType(raw string) (escrow.ConditionType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "timestamp":
		return escrow.ConditionTimestamp, nil
	case "approval":
		return escrow.ConditionApproval, nil
	case "oracle_price":
		return escrow.ConditionOraclePrice, nil
	case "multi_signature":
		return escrow.ConditionMultiSignature, nil
	case "kyc_verified":
		return escrow.ConditionKYCVerified, nil
	default:
		return 0, fmt.Errorf("unknown condition type: %q", raw)
	}
}

func parseOperator(raw string) (escrow.ConditionOperator, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "and":
		return escrow.OperatorAnd, nil
	case "or":
		return escrow.OperatorOr, nil
	default:
		return 0, fmt.Errorf("unknown condition operator: %q", raw)
	}
}

func parseRefundReason(raw string) (escrow.RefundReason, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "requested":
		return escrow.RefundRequested, nil
	case "expiration":
		return escrow.RefundExpiration, nil
	default:
		return 0, fmt.Errorf("unknown refund reason: %q", raw)
	}
}
