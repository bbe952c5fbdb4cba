package executor

import (
	"context"
	"time"

	"github.com/crowdmind/crowdmind/store"
	"github.com/crowdmind/crowdmind/types"
)

// Monitor periodically scans ACTIVE and FUNDED proposals and executes
// those the decision engine approves. It blocks until ctx is cancelled.
// When auto-execution is disabled it logs the decisions without acting.
func (e *Executor) Monitor(ctx context.Context) {
	interval := e.cfg.MonitorInterval
	if interval <= 0 {
		interval = time.Minute
	}

	e.log.Info("monitor started", map[string]any{
		"interval":     interval.String(),
		"auto_execute": e.cfg.AutoExecute,
	})

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			e.log.Info("monitor stopped", nil)
			return
		case <-ticker.C:
			e.sweep(ctx)
		}
	}
}

func (e *Executor) sweep(ctx context.Context) {
	proposals, err := e.store.ListProposals(store.ProposalFilter{
		Statuses: []types.ProposalStatus{types.StatusActive, types.StatusFunded},
	})
	if err != nil {
		e.log.Error("monitor sweep failed", map[string]any{"error": err.Error()})
		return
	}

	for _, proposal := range proposals {
		ready := e.CanExecute(proposal.ID)
		if !ready.Ready {
			continue
		}

		e.log.Info("proposal ready for execution", map[string]any{
			"proposal_id": proposal.ID,
			"reason":      ready.Reason,
		})
		if !e.cfg.AutoExecute {
			continue
		}

		result := e.Execute(ctx, proposal.ID)
		if !result.Success {
			e.log.Warn("auto-execution failed", map[string]any{"proposal_id": proposal.ID, "error": result.Error})
		}
	}
}
