package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/crowdmind/crowdmind/clients"
	"github.com/crowdmind/crowdmind/config"
	"github.com/crowdmind/crowdmind/decision"
	"github.com/crowdmind/crowdmind/executor"
	"github.com/crowdmind/crowdmind/protocol"
	"github.com/crowdmind/crowdmind/store"
	"github.com/crowdmind/crowdmind/types"
)

type fixture struct {
	server *Server
	store  store.Store
	mock   *clients.MockClient
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	mock := clients.NewMockClient(types.ChainSolana)
	registry := clients.NewRegistry()
	require.NoError(t, registry.Add(types.ChainSolana, mock))

	cfg := config.Config{}
	cfg.HTTP.Port = 0
	cfg.X402.Domain = "http://localhost:8080"
	cfg.X402.PaymentTimeoutSeconds = 600
	cfg.Demo = true

	maker := decision.NewMaker()
	proto := protocol.NewHandler(cfg.X402, registry, nil, nil)
	exec := executor.New(st, registry, maker, cfg.Agent, nil, nil)

	return &fixture{
		server: New(cfg, st, registry, proto, exec, maker, nil),
		store:  st,
		mock:   mock,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (f *fixture) createProposal(t *testing.T) string {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/proposals", map[string]any{
		"title":        "Test donation",
		"description":  "A test",
		"actionType":   "DONATE",
		"actionParams": map[string]any{"chain": "SOLANA", "recipientAddress": "recipient-1"},
		"goalAmount":   "100",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created types.Proposal
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)
	return created.ID
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/healthz", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateProposalRejectsBadParams(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/proposals", map[string]any{
		"title":        "Broken",
		"actionType":   "DONATE",
		"actionParams": map[string]any{"chain": "SOLANA"}, // missing recipient
		"goalAmount":   "100",
	}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetProposalNotFound(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/proposals/missing", nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestContributeWithoutProofReturns402Challenge(t *testing.T) {
	f := newFixture(t)
	id := f.createProposal(t)

	rec := f.do(t, http.MethodPost, "/proposals/"+id+"/contribute", map[string]any{
		"chain":        "SOLANA",
		"amount":       "25",
		"payerAddress": "alice",
	}, nil)

	require.Equal(t, http.StatusPaymentRequired, rec.Code)
	require.Contains(t, rec.Header().Get("WWW-Authenticate"), `x402 realm="CrowdMind"`)

	var body struct {
		PaymentInstructions types.PaymentInstructions `json:"paymentInstructions"`
		VerificationURL     string                    `json:"verificationUrl"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, f.mock.GetWalletAddress(), body.PaymentInstructions.RecipientAddress)
	require.Equal(t, "USDC", body.PaymentInstructions.Currency)
	require.Equal(t, "http://localhost:8080/proposals/"+id+"/verify", body.VerificationURL)
}

func TestContributeWrongChainProofIsRejected(t *testing.T) {
	f := newFixture(t)
	id := f.createProposal(t)

	rec := f.do(t, http.MethodPost, "/proposals/"+id+"/contribute", map[string]any{
		"chain":        "SOLANA",
		"amount":       "25",
		"payerAddress": "alice",
	}, map[string]string{
		"Authorization": "x402 chain=BASE txHash=0xabc",
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "Invalid payment chain")
}

func TestContributeWithValidProof(t *testing.T) {
	f := newFixture(t)
	id := f.createProposal(t)
	f.mock.RegisterTransfer("sig-1", f.mock.GetWalletAddress(), decimal.NewFromInt(25))

	rec := f.do(t, http.MethodPost, "/proposals/"+id+"/contribute", map[string]any{
		"chain":        "SOLANA",
		"amount":       "25",
		"payerAddress": "alice",
	}, map[string]string{
		"Authorization": "x402 chain=SOLANA txHash=sig-1",
	})

	require.Equal(t, http.StatusOK, rec.Code)

	updated, err := f.store.FindProposal(id)
	require.NoError(t, err)
	require.True(t, updated.CurrentAmount.Equal(decimal.NewFromInt(25)))

	payment, err := f.store.FindPaymentByTxHash("sig-1")
	require.NoError(t, err)
	require.Equal(t, "alice", payment.PayerAddress)
	require.Equal(t, types.PaymentConfirmed, payment.Status)
}

func TestContributeReplayedProofDoesNotDoubleCredit(t *testing.T) {
	f := newFixture(t)
	id := f.createProposal(t)
	f.mock.RegisterTransfer("sig-1", f.mock.GetWalletAddress(), decimal.NewFromInt(25))

	body := map[string]any{"chain": "SOLANA", "amount": "25", "payerAddress": "alice"}
	headers := map[string]string{"Authorization": "x402 chain=SOLANA txHash=sig-1"}

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/proposals/"+id+"/contribute", body, headers).Code)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/proposals/"+id+"/contribute", body, headers).Code)

	updated, err := f.store.FindProposal(id)
	require.NoError(t, err)
	require.True(t, updated.CurrentAmount.Equal(decimal.NewFromInt(25)))
}

func TestContributeUnverifiableProofReturns402(t *testing.T) {
	f := newFixture(t)
	id := f.createProposal(t)

	rec := f.do(t, http.MethodPost, "/proposals/"+id+"/contribute", map[string]any{
		"chain":        "SOLANA",
		"amount":       "25",
		"payerAddress": "alice",
	}, map[string]string{
		"Authorization": "x402 chain=SOLANA txHash=unknown-sig",
	})

	require.Equal(t, http.StatusPaymentRequired, rec.Code)
	require.Contains(t, rec.Body.String(), "Transaction not found")
}

func TestVerifyEndpointCreditsProposal(t *testing.T) {
	f := newFixture(t)
	id := f.createProposal(t)
	f.mock.RegisterTransfer("sig-2", f.mock.GetWalletAddress(), decimal.NewFromInt(40))

	rec := f.do(t, http.MethodPost, "/proposals/"+id+"/verify", map[string]any{
		"chain":           "SOLANA",
		"transactionHash": "sig-2",
		"amount":          "40",
		"payerAddress":    "bob",
	}, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	updated, err := f.store.FindProposal(id)
	require.NoError(t, err)
	require.True(t, updated.CurrentAmount.Equal(decimal.NewFromInt(40)))
}

func TestFullFundingAndExecutionFlow(t *testing.T) {
	f := newFixture(t)
	id := f.createProposal(t)

	// Five distinct contributors fully fund the proposal.
	for i := 0; i < 5; i++ {
		sig := fmt.Sprintf("sig-%d", i)
		f.mock.RegisterTransfer(sig, f.mock.GetWalletAddress(), decimal.NewFromInt(20))
		rec := f.do(t, http.MethodPost, "/proposals/"+id+"/contribute", map[string]any{
			"chain":        "SOLANA",
			"amount":       "20",
			"payerAddress": fmt.Sprintf("payer-%d", i),
		}, map[string]string{
			"Authorization": "x402 chain=SOLANA txHash=" + sig,
		})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	proposal, err := f.store.FindProposal(id)
	require.NoError(t, err)
	require.Equal(t, types.StatusFunded, proposal.Status)

	rec := f.do(t, http.MethodGet, "/proposals/"+id+"/decision", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var d types.AgentDecision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	require.True(t, d.ShouldExecute)

	rec = f.do(t, http.MethodPost, "/proposals/"+id+"/execute", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var result types.ExecutionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.True(t, result.Success)

	proposal, err = f.store.FindProposal(id)
	require.NoError(t, err)
	require.Equal(t, types.StatusExecuted, proposal.Status)

	// Contributions after execution are refused.
	rec = f.do(t, http.MethodPost, "/proposals/"+id+"/contribute", map[string]any{
		"chain":        "SOLANA",
		"amount":       "20",
		"payerAddress": "late",
	}, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestExecuteUnreadyProposal(t *testing.T) {
	f := newFixture(t)
	id := f.createProposal(t)

	rec := f.do(t, http.MethodPost, "/proposals/"+id+"/execute", nil, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var result types.ExecutionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.False(t, result.Success)
	require.Contains(t, result.Error, "below goal")
}

func TestAgentStatus(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/agent/status", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Demo    bool                      `json:"demo"`
		Wallets map[string]map[string]any `json:"wallets"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body.Demo)
	require.Equal(t, f.mock.GetWalletAddress(), body.Wallets["SOLANA"]["address"])
}

func TestRecommendations(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/agent/recommendations", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "recommendations")
}
