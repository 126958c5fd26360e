package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"remithub/core/types"
	"remithub/native/escrow"
	"remithub/native/fx"
	"remithub/native/hub"
	"remithub/storage"
)

func routerTestAddr(fill byte) types.Address {
	var addr types.Address
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

type routerFixture struct {
	handler   http.Handler
	state     *storage.State
	sender    types.Address
	recipient types.Address
	admin     types.Address
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()

	state := storage.NewState(storage.NewMemDB())
	admin := routerTestAddr(0x01)
	custody := routerTestAddr(0x02)
	feeWallet := routerTestAddr(0x03)
	sender := routerTestAddr(0x0A)
	recipient := routerTestAddr(0x0B)

	engine := escrow.NewEngine()
	engine.SetState(state)
	engine.SetAdmin(admin)
	engine.SetCustody(custody)
	engine.SetFeeWallet(feeWallet)
	engine.SetFeeBps(250, 100)
	engine.SetNowFunc(func() int64 { return 1000 })
	require.NoError(t, engine.AddSupportedAsset(admin, escrow.Asset{Code: "USD"}))

	source := fx.NewManualSource()
	require.NoError(t, source.SetRate("USD", "EUR", big.NewInt(920000), big.NewInt(1000000), 990))
	resolver := fx.NewResolver(source, nil, state, 3600)
	resolver.SetNowFunc(func() int64 { return 1000 })

	h := hub.New()
	h.SetState(state)
	h.SetEscrowEngine(engine)
	h.SetResolver(resolver)
	h.SetAdmin(admin)
	h.SetNowFunc(func() int64 { return 1000 })

	account := types.NewAccount()
	account.SetBalance("USD", big.NewInt(1_000_000))
	require.NoError(t, state.PutAccount(sender, account))

	handler, err := New(Config{Escrow: engine, Hub: h})
	require.NoError(t, err)

	return &routerFixture{
		handler:   handler,
		state:     state,
		sender:    sender,
		recipient: recipient,
		admin:     admin,
	}
}

func (f *routerFixture) do(t *testing.T, method, path string, caller types.Address, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if !caller.IsZero() {
		req.Header.Set(CallerHeader, caller.Hex())
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeEscrow(t *testing.T, rec *httptest.ResponseRecorder) *escrow.Escrow {
	t.Helper()
	var esc escrow.Escrow
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &esc))
	return &esc
}

func TestRouterEscrowLifecycle(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/escrow/", f.sender, map[string]interface{}{
		"recipient": f.recipient.Hex(),
		"amount":    "1000",
		"asset":     map[string]string{"code": "USD"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeEscrow(t, rec)
	require.Equal(t, uint64(1), created.ID)
	require.Equal(t, escrow.StatusPending, created.Status)

	rec = f.do(t, http.MethodPost, "/v1/escrow/1/deposit", f.sender, map[string]string{"amount": "1000"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, escrow.StatusFunded, decodeEscrow(t, rec).Status)

	rec = f.do(t, http.MethodPost, "/v1/escrow/1/approve", f.recipient, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/v1/escrow/1/release", f.recipient, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	released := decodeEscrow(t, rec)
	require.Equal(t, escrow.StatusReleased, released.Status)

	account, err := f.state.GetAccount(f.recipient)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(975), account.Balance("USD"))
}

func TestRouterErrorStatuses(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodGet, "/v1/escrow/99", types.Address{}, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/escrow/", types.Address{}, map[string]string{"recipient": f.recipient.Hex()})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/escrow/", f.sender, map[string]interface{}{
		"recipient": f.recipient.Hex(),
		"amount":    "1000",
		"asset":     map[string]string{"code": "USD"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	f.do(t, http.MethodPost, "/v1/escrow/1/deposit", f.sender, map[string]string{"amount": "1000"})

	stranger := routerTestAddr(0x0C)
	rec = f.do(t, http.MethodPost, "/v1/escrow/1/release", stranger, nil)
	require.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/v1/escrow/1/deposit", f.recipient, map[string]string{"amount": "1"})
	require.Equal(t, http.StatusForbidden, rec.Code)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.NotEmpty(t, payload["error"])
}

func TestRouterInvoiceAndConvert(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/hub/invoices", f.sender, map[string]interface{}{
		"recipient": f.recipient.Hex(),
		"amount":    "1000",
		"fromAsset": "USD",
		"toAsset":   "EUR",
		"dueDate":   2000,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var inv hub.Invoice
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &inv))
	require.Equal(t, big.NewInt(25), inv.Fee)
	require.Equal(t, big.NewInt(1025), inv.Total)
	require.Equal(t, big.NewInt(920), inv.ConvertedAmount)

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/v1/hub/invoices/%d", inv.ID), types.Address{}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/hub/convert?amount=500&from=USD&to=EUR", types.Address{}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result fx.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Equal(t, big.NewInt(460), result.ConvertedAmount)

	rec = f.do(t, http.MethodGet, "/v1/hub/convert?amount=500&from=USD&to=JPY", types.Address{}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouterMultiPartyFlow(t *testing.T) {
	f := newRouterFixture(t)
	approverA := routerTestAddr(0x21)
	approverB := routerTestAddr(0x22)

	rec := f.do(t, http.MethodPost, "/v1/escrow/", f.sender, map[string]interface{}{
		"recipient": f.recipient.Hex(),
		"amount":    "1000",
		"asset":     map[string]string{"code": "USD"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/escrow/1/multiparty", f.sender, map[string]interface{}{
		"approvers":         []string{approverA.Hex(), approverB.Hex()},
		"requiredApprovals": 2,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	f.do(t, http.MethodPost, "/v1/escrow/1/deposit", f.sender, map[string]string{"amount": "1000"})

	rec = f.do(t, http.MethodPost, "/v1/escrow/1/release", f.recipient, nil)
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/v1/escrow/1/multiparty/approve", approverA, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var first map[string]bool
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	require.False(t, first["quorumMet"])

	rec = f.do(t, http.MethodPost, "/v1/escrow/1/multiparty/approve", approverB, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var second map[string]bool
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	require.True(t, second["quorumMet"])

	rec = f.do(t, http.MethodPost, "/v1/escrow/1/release", f.recipient, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, escrow.StatusReleased, decodeEscrow(t, rec).Status)
}
