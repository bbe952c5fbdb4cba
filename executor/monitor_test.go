package executor

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/crowdmind/crowdmind/clients"
	"github.com/crowdmind/crowdmind/config"
	"github.com/crowdmind/crowdmind/decision"
	"github.com/crowdmind/crowdmind/store"
	"github.com/crowdmind/crowdmind/types"
)

func monitorExecutor(t *testing.T, autoExecute bool) (*Executor, store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	registry := clients.NewRegistry()
	require.NoError(t, registry.Add(types.ChainSolana, clients.NewMockClient(types.ChainSolana)))

	maker := &decision.Maker{Now: fixedClock}
	e := New(st, registry, maker, config.AgentConfig{AutoExecute: autoExecute}, nil, nil)
	e.now = fixedClock
	return e, st
}

func TestSweepExecutesReadyProposal(t *testing.T) {
	e, st := monitorExecutor(t, true)

	// Fully funded by a single contributor: ready per the
	// readiness check even though the confidence score is low.
	p := fundedDonateProposal(t, st, 100)
	_, err := st.UpdateProposal(p.ID, func(p *types.Proposal) error {
		p.CurrentAmount = decimal.Zero
		p.Status = types.StatusActive
		return nil
	})
	require.NoError(t, err)
	_, _, err = st.ApplyConfirmedPayment(&types.Payment{
		ProposalID:      p.ID,
		Chain:           types.ChainSolana,
		Amount:          decimal.NewFromInt(100),
		PayerAddress:    "solo",
		TransactionHash: "tx-solo",
	})
	require.NoError(t, err)

	e.sweep(context.Background())

	updated, err := st.FindProposal(p.ID)
	require.NoError(t, err)
	require.Equal(t, types.StatusExecuted, updated.Status)
}

func TestSweepSkipsUnreadyProposal(t *testing.T) {
	e, st := monitorExecutor(t, true)

	p := fundedDonateProposal(t, st, 100)
	_, err := st.UpdateProposal(p.ID, func(p *types.Proposal) error {
		p.CurrentAmount = decimal.NewFromInt(10)
		p.Status = types.StatusActive
		return nil
	})
	require.NoError(t, err)

	e.sweep(context.Background())

	updated, err := st.FindProposal(p.ID)
	require.NoError(t, err)
	require.Equal(t, types.StatusActive, updated.Status)
}

func TestSweepObservesAutoExecuteToggle(t *testing.T) {
	e, st := monitorExecutor(t, false)

	p := fundedDonateProposal(t, st, 100)

	e.sweep(context.Background())

	updated, err := st.FindProposal(p.ID)
	require.NoError(t, err)
	require.Equal(t, types.StatusFunded, updated.Status)
}
