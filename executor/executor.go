// Package executor drives proposal payouts: the readiness check, the
// exclusive execution state machine and the autonomous monitor loop.
package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/crowdmind/crowdmind/clients"
	"github.com/crowdmind/crowdmind/config"
	"github.com/crowdmind/crowdmind/decision"
	"github.com/crowdmind/crowdmind/logger"
	"github.com/crowdmind/crowdmind/metrics"
	"github.com/crowdmind/crowdmind/store"
	"github.com/crowdmind/crowdmind/types"
)

// Executor coordinates payout execution for funded proposals. At most
// one execution per proposal ever reaches an action handler; the
// conditional status transition in the store is the gate.
type Executor struct {
	store   store.Store
	clients *clients.Registry
	maker   *decision.Maker
	cfg     config.AgentConfig
	log     logger.Logger
	rec     metrics.Recorder

	// now is swappable in tests.
	now func() time.Time
}

// New builds an executor.
func New(st store.Store, registry *clients.Registry, maker *decision.Maker, cfg config.AgentConfig, log logger.Logger, rec metrics.Recorder) *Executor {
	if log == nil {
		log = logger.NoopLogger{}
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Executor{
		store:   st,
		clients: registry,
		maker:   maker,
		cfg:     cfg,
		log:     log,
		rec:     rec,
		now:     time.Now,
	}
}

// CanExecute checks execution preconditions without side effects.
func (e *Executor) CanExecute(id string) types.CanExecuteResult {
	proposal, err := e.store.FindProposal(id)
	if err != nil {
		return types.CanExecuteResult{Reason: "Proposal not found"}
	}
	if proposal.Status != types.StatusActive && proposal.Status != types.StatusFunded {
		return types.CanExecuteResult{Reason: fmt.Sprintf("Proposal status is %s", proposal.Status)}
	}
	if proposal.CurrentAmount.LessThan(proposal.GoalAmount) {
		return types.CanExecuteResult{Reason: fmt.Sprintf(
			"Current funding %s USDC is below goal %s USDC",
			proposal.CurrentAmount.String(), proposal.GoalAmount.String())}
	}
	if proposal.Expired(e.now()) {
		return types.CanExecuteResult{Reason: "Deadline has passed"}
	}
	return types.CanExecuteResult{Ready: true, Reason: "Proposal is ready for execution"}
}

// Decide runs the decision engine over the proposal's confirmed payments.
func (e *Executor) Decide(id string) (types.AgentDecision, error) {
	proposal, err := e.store.FindProposal(id)
	if err != nil {
		return types.AgentDecision{}, err
	}
	payments, err := e.store.ConfirmedPayments(id)
	if err != nil {
		return types.AgentDecision{}, err
	}
	return e.maker.Decide(proposal, payments), nil
}

// Execute performs the proposal's payout action. The proposal must be
// ready; concurrent calls race on the EXECUTING transition and exactly
// one wins. The proposal always lands in EXECUTED or FAILED.
func (e *Executor) Execute(ctx context.Context, id string) *types.ExecutionResult {
	started := e.now()

	if ready := e.CanExecute(id); !ready.Ready {
		return e.failure(ready.Reason)
	}

	err := e.store.TransitionStatus(id, []types.ProposalStatus{types.StatusActive, types.StatusFunded}, types.StatusExecuting)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return e.failure("Proposal is already being executed")
		}
		return e.failure(err.Error())
	}

	// From this point the proposal is EXECUTING and must not stay
	// there. The defer settles it to FAILED on any path that did not
	// record an outcome itself.
	var settled bool
	defer func() {
		if settled {
			return
		}
		if _, err := e.store.UpdateProposal(id, func(p *types.Proposal) error {
			if p.Status == types.StatusExecuting {
				p.Status = types.StatusFailed
			}
			return nil
		}); err != nil {
			e.log.Error("failed to settle interrupted execution", map[string]any{"proposal_id": id, "error": err.Error()})
		}
	}()

	proposal, err := e.store.FindProposal(id)
	if err != nil {
		return e.failure(err.Error())
	}

	result := e.runAction(ctx, proposal)

	final := types.StatusFailed
	if result.Success {
		final = types.StatusExecuted
	}
	receipt := ""
	if result.Receipt != nil {
		if data, err := json.Marshal(result.Receipt); err == nil {
			receipt = string(data)
		}
	}
	if _, err := e.store.UpdateProposal(id, func(p *types.Proposal) error {
		p.Status = final
		p.ExecutionTxHash = result.TransactionHash
		p.ExecutionReceipt = receipt
		return nil
	}); err != nil {
		e.log.Error("failed to persist execution outcome", map[string]any{"proposal_id": id, "error": err.Error()})
		return e.failure(err.Error())
	}
	settled = true

	if result.Success {
		e.recordExecution(proposal, result)
	}

	chainLabel := ""
	if params, err := types.ParseActionParams(proposal.ActionType, proposal.ActionParams); err == nil {
		chainLabel = params.Chain().String()
	}
	e.rec.IncCounter("execution_"+strings.ToLower(final.String()), map[string]string{"chain": chainLabel})
	e.rec.ObserveLatency("execute", e.now().Sub(started), map[string]string{"chain": chainLabel})
	e.log.Info("proposal execution finished", map[string]any{
		"proposal_id": id,
		"action":      proposal.ActionType.String(),
		"status":      final.String(),
		"tx_hash":     result.TransactionHash,
	})
	return result
}

func (e *Executor) runAction(ctx context.Context, proposal *types.Proposal) *types.ExecutionResult {
	params, err := types.ParseActionParams(proposal.ActionType, proposal.ActionParams)
	if err != nil {
		return e.failure(err.Error())
	}

	switch proposal.ActionType {
	case types.ActionDonate:
		return e.executeDonate(ctx, proposal, params.Donate)
	case types.ActionBuyToken, types.ActionMintNFT, types.ActionDeployToken,
		types.ActionFundCompute, types.ActionJupiterSwap:
		return e.failure(fmt.Sprintf("%s execution not yet implemented", proposal.ActionType))
	default:
		return e.failure(fmt.Sprintf("Unsupported action type: %s", proposal.ActionType))
	}
}

// executeDonate sends the full raised amount to the configured recipient.
func (e *Executor) executeDonate(ctx context.Context, proposal *types.Proposal, params *types.DonateParams) *types.ExecutionResult {
	client, err := e.clients.Get(params.Chain)
	if err != nil {
		return e.failure(err.Error())
	}

	txHash, err := client.SendToken(ctx, params.RecipientAddress, proposal.CurrentAmount)
	if err != nil {
		return e.failure(fmt.Sprintf("donation transfer failed: %v", err))
	}

	return &types.ExecutionResult{
		Success:         true,
		TransactionHash: txHash,
		Receipt: map[string]any{
			"recipient": params.RecipientAddress,
			"amount":    proposal.CurrentAmount.String(),
			"message":   params.Message,
		},
		Timestamp: e.now().UTC().Format(time.RFC3339),
	}
}

// recordExecution appends the audit record for a successful payout.
func (e *Executor) recordExecution(proposal *types.Proposal, result *types.ExecutionResult) {
	params, err := types.ParseActionParams(proposal.ActionType, proposal.ActionParams)
	if err != nil {
		return
	}
	chain := params.Chain()

	from := ""
	if client, err := e.clients.Get(chain); err == nil {
		from = client.GetWalletAddress()
	}
	to := ""
	if params.Donate != nil {
		to = params.Donate.RecipientAddress
	}

	metadata := ""
	if data, err := json.Marshal(result); err == nil {
		metadata = string(data)
	}

	tx := &types.Transaction{
		ProposalID:      proposal.ID,
		Type:            types.TxTypeExecution,
		Chain:           chain,
		TransactionHash: result.TransactionHash,
		FromAddress:     from,
		ToAddress:       to,
		Amount:          proposal.CurrentAmount,
		Status:          types.PaymentConfirmed,
		Metadata:        metadata,
	}
	if err := e.store.CreateTransaction(tx); err != nil {
		e.log.Error("failed to record execution transaction", map[string]any{"proposal_id": proposal.ID, "error": err.Error()})
	}
}

func (e *Executor) failure(reason string) *types.ExecutionResult {
	return &types.ExecutionResult{
		Success:   false,
		Error:     reason,
		Timestamp: e.now().UTC().Format(time.RFC3339),
	}
}
