package executor

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/crowdmind/crowdmind/clients"
	"github.com/crowdmind/crowdmind/config"
	"github.com/crowdmind/crowdmind/decision"
	"github.com/crowdmind/crowdmind/store"
	"github.com/crowdmind/crowdmind/types"
)

func fixedClock() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func testExecutor(t *testing.T) (*Executor, store.Store, *clients.MockClient) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	mock := clients.NewMockClient(types.ChainSolana)
	registry := clients.NewRegistry()
	require.NoError(t, registry.Add(types.ChainSolana, mock))

	maker := &decision.Maker{Now: fixedClock}
	e := New(st, registry, maker, config.AgentConfig{}, nil, nil)
	e.now = fixedClock
	return e, st, mock
}

func fundedDonateProposal(t *testing.T, st store.Store, goal int64) *types.Proposal {
	t.Helper()
	p := &types.Proposal{
		Title:         "Donate",
		ActionType:    types.ActionDonate,
		ActionParams:  `{"chain":"SOLANA","recipientAddress":"recipient-1","message":"thanks"}`,
		GoalAmount:    decimal.NewFromInt(goal),
		CurrentAmount: decimal.NewFromInt(goal),
		Status:        types.StatusFunded,
	}
	require.NoError(t, st.CreateProposal(p))
	return p
}

func TestCanExecute(t *testing.T) {
	e, st, _ := testExecutor(t)

	t.Run("missing proposal", func(t *testing.T) {
		got := e.CanExecute("missing")
		require.False(t, got.Ready)
		require.Equal(t, "Proposal not found", got.Reason)
	})

	t.Run("underfunded", func(t *testing.T) {
		p := fundedDonateProposal(t, st, 100)
		_, err := st.UpdateProposal(p.ID, func(p *types.Proposal) error {
			p.CurrentAmount = decimal.NewFromInt(40)
			p.Status = types.StatusActive
			return nil
		})
		require.NoError(t, err)

		got := e.CanExecute(p.ID)
		require.False(t, got.Ready)
		require.Equal(t, "Current funding 40 USDC is below goal 100 USDC", got.Reason)
	})

	t.Run("terminal status", func(t *testing.T) {
		p := fundedDonateProposal(t, st, 100)
		_, err := st.UpdateProposal(p.ID, func(p *types.Proposal) error {
			p.Status = types.StatusExecuted
			return nil
		})
		require.NoError(t, err)

		got := e.CanExecute(p.ID)
		require.False(t, got.Ready)
		require.Equal(t, "Proposal status is EXECUTED", got.Reason)
	})

	t.Run("past deadline", func(t *testing.T) {
		p := fundedDonateProposal(t, st, 100)
		deadline := fixedClock().Add(-time.Hour)
		_, err := st.UpdateProposal(p.ID, func(p *types.Proposal) error {
			p.Deadline = &deadline
			return nil
		})
		require.NoError(t, err)

		got := e.CanExecute(p.ID)
		require.False(t, got.Ready)
		require.Equal(t, "Deadline has passed", got.Reason)
	})

	t.Run("ready", func(t *testing.T) {
		p := fundedDonateProposal(t, st, 100)
		got := e.CanExecute(p.ID)
		require.True(t, got.Ready)
		require.Equal(t, "Proposal is ready for execution", got.Reason)
	})
}

func TestExecuteDonate(t *testing.T) {
	e, st, mock := testExecutor(t)
	p := fundedDonateProposal(t, st, 100)

	result := e.Execute(context.Background(), p.ID)

	require.True(t, result.Success)
	require.NotEmpty(t, result.TransactionHash)
	require.Equal(t, "recipient-1", result.Receipt["recipient"])
	require.Equal(t, "100", result.Receipt["amount"])

	// The payout must exist on the (mock) chain.
	verified, err := mock.VerifyTokenPayment(context.Background(), result.TransactionHash, decimal.NewFromInt(100), "recipient-1")
	require.NoError(t, err)
	require.True(t, verified)

	updated, err := st.FindProposal(p.ID)
	require.NoError(t, err)
	require.Equal(t, types.StatusExecuted, updated.Status)
	require.Equal(t, result.TransactionHash, updated.ExecutionTxHash)

	var receipt map[string]any
	require.NoError(t, json.Unmarshal([]byte(updated.ExecutionReceipt), &receipt))
	require.Equal(t, "thanks", receipt["message"])

	audit, err := st.ListTransactions(p.ID)
	require.NoError(t, err)
	require.Len(t, audit, 1)
	require.Equal(t, types.TxTypeExecution, audit[0].Type)
	require.Equal(t, mock.GetWalletAddress(), audit[0].FromAddress)
	require.Equal(t, "recipient-1", audit[0].ToAddress)
	require.True(t, audit[0].Amount.Equal(decimal.NewFromInt(100)))

	// The audit record carries the full execution result.
	require.NotEmpty(t, audit[0].Metadata)
	var recorded types.ExecutionResult
	require.NoError(t, json.Unmarshal([]byte(audit[0].Metadata), &recorded))
	require.True(t, recorded.Success)
	require.Equal(t, result.TransactionHash, recorded.TransactionHash)
}

func TestExecuteIsIdempotent(t *testing.T) {
	e, st, _ := testExecutor(t)
	p := fundedDonateProposal(t, st, 100)

	first := e.Execute(context.Background(), p.ID)
	require.True(t, first.Success)

	second := e.Execute(context.Background(), p.ID)
	require.False(t, second.Success)
	require.Equal(t, "Proposal status is EXECUTED", second.Error)

	audit, err := st.ListTransactions(p.ID)
	require.NoError(t, err)
	require.Len(t, audit, 1, "re-execution must not append a second audit record")
}

func TestExecuteUnimplementedActionFails(t *testing.T) {
	e, st, _ := testExecutor(t)
	p := &types.Proposal{
		Title:         "Buy",
		ActionType:    types.ActionBuyToken,
		ActionParams:  `{"chain":"SOLANA","tokenMint":"mint-1"}`,
		GoalAmount:    decimal.NewFromInt(50),
		CurrentAmount: decimal.NewFromInt(50),
		Status:        types.StatusFunded,
	}
	require.NoError(t, st.CreateProposal(p))

	result := e.Execute(context.Background(), p.ID)

	require.False(t, result.Success)
	require.Equal(t, "BUY_TOKEN execution not yet implemented", result.Error)

	updated, err := st.FindProposal(p.ID)
	require.NoError(t, err)
	require.Equal(t, types.StatusFailed, updated.Status)
}

func TestExecuteCustomActionIsUnsupported(t *testing.T) {
	e, st, _ := testExecutor(t)
	p := &types.Proposal{
		Title:         "Custom",
		ActionType:    types.ActionCustom,
		ActionParams:  `{"description":"do something bespoke"}`,
		GoalAmount:    decimal.NewFromInt(50),
		CurrentAmount: decimal.NewFromInt(50),
		Status:        types.StatusFunded,
	}
	require.NoError(t, st.CreateProposal(p))

	result := e.Execute(context.Background(), p.ID)

	require.False(t, result.Success)
	require.Equal(t, "Unsupported action type: CUSTOM", result.Error)

	updated, err := st.FindProposal(p.ID)
	require.NoError(t, err)
	require.Equal(t, types.StatusFailed, updated.Status)
}

func TestExecuteTransferFailureSettlesToFailed(t *testing.T) {
	e, st, _ := testExecutor(t)
	// Goal exceeds the mock wallet balance, so the transfer is refused.
	p := fundedDonateProposal(t, st, 5000)

	result := e.Execute(context.Background(), p.ID)

	require.False(t, result.Success)
	require.Contains(t, result.Error, "donation transfer failed")

	updated, err := st.FindProposal(p.ID)
	require.NoError(t, err)
	require.Equal(t, types.StatusFailed, updated.Status, "execution must never rest in EXECUTING")
}

func TestExecuteUnconfiguredChainFails(t *testing.T) {
	e, st, _ := testExecutor(t)
	p := &types.Proposal{
		Title:         "Donate on Base",
		ActionType:    types.ActionDonate,
		ActionParams:  `{"chain":"BASE","recipientAddress":"0xabc"}`,
		GoalAmount:    decimal.NewFromInt(10),
		CurrentAmount: decimal.NewFromInt(10),
		Status:        types.StatusFunded,
	}
	require.NoError(t, st.CreateProposal(p))

	result := e.Execute(context.Background(), p.ID)

	require.False(t, result.Success)
	updated, err := st.FindProposal(p.ID)
	require.NoError(t, err)
	require.Equal(t, types.StatusFailed, updated.Status)
}

func TestDecideUsesConfirmedPayments(t *testing.T) {
	e, st, _ := testExecutor(t)
	p := fundedDonateProposal(t, st, 100)

	// Contributions arrive from five distinct payers.
	p2, err := st.FindProposal(p.ID)
	require.NoError(t, err)
	_, err = st.UpdateProposal(p2.ID, func(p *types.Proposal) error {
		p.CurrentAmount = decimal.Zero
		p.Status = types.StatusActive
		return nil
	})
	require.NoError(t, err)
	for i, payer := range []string{"a", "b", "c", "d", "e"} {
		_, _, err := st.ApplyConfirmedPayment(&types.Payment{
			ProposalID:      p.ID,
			Chain:           types.ChainSolana,
			Amount:          decimal.NewFromInt(20),
			PayerAddress:    payer,
			TransactionHash: "tx-" + string(rune('a'+i)),
		})
		require.NoError(t, err)
	}

	got, err := e.Decide(p.ID)
	require.NoError(t, err)
	require.True(t, got.ShouldExecute)
	require.InDelta(t, 0.6, got.Confidence, 1e-9)
}
