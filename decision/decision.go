// Package decision implements the execution-readiness decision engine:
// a deterministic funding/deadline/diversity policy with confidence
// scoring. Decide is a pure function of its inputs and is safe to poll.
package decision

import (
	"fmt"
	"time"

	"github.com/crowdmind/crowdmind/types"
)

const (
	baseConfidence = 0.5

	// executeThreshold is the minimum confidence for approval.
	executeThreshold = 0.6

	// minContributors is the decentralization quorum: executions need
	// support from at least this many distinct payer addresses.
	minContributors = 3

	contributorBonusPerPayer = 0.02
	contributorBonusCap      = 0.2
	overfundedBonusHigh      = 0.2 // funding ratio > 1.5
	overfundedBonusLow       = 0.1 // funding ratio > 1.2
	riskyActionPenalty       = 0.1
)

// Maker evaluates proposals. The clock is injectable for tests; the
// zero value uses time.Now.
type Maker struct {
	Now func() time.Time
}

// NewMaker returns a Maker on the real clock.
func NewMaker() *Maker {
	return &Maker{Now: time.Now}
}

func (m *Maker) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// Decide evaluates whether a proposal should be executed, given its
// confirmed payments. Total: every input maps to exactly one decision,
// never an error.
func (m *Maker) Decide(proposal *types.Proposal, confirmedPayments []types.Payment) types.AgentDecision {
	if proposal == nil {
		return types.AgentDecision{
			ShouldExecute: false,
			Reason:        "Proposal not found",
			Confidence:    0,
		}
	}

	decision := types.AgentDecision{ProposalID: proposal.ID}

	fundingRatio := proposal.FundingRatio()
	if fundingRatio < 1.0 {
		decision.Reason = fmt.Sprintf("Funding at %.1f%% of goal", fundingRatio*100)
		return decision
	}

	if proposal.Expired(m.now()) {
		decision.Reason = "Deadline has passed"
		return decision
	}

	contributors := distinctPayers(confirmedPayments)
	if contributors < minContributors {
		decision.Reason = "Need at least 3 unique contributors for decentralization"
		decision.Confidence = 0.3
		return decision
	}

	confidence := confidenceScore(fundingRatio, contributors, proposal.ActionType)
	decision.Confidence = confidence
	decision.ShouldExecute = confidence >= executeThreshold
	if decision.ShouldExecute {
		decision.Reason = fmt.Sprintf("Ready to execute with %d contributors and %.1fx funding", contributors, fundingRatio)
	} else {
		decision.Reason = fmt.Sprintf("Confidence %.0f%% is below 60%% threshold", confidence*100)
	}
	return decision
}

// confidenceScore combines the contributor, over-funding and action-risk
// factors, clamped to [0, 1].
func confidenceScore(fundingRatio float64, contributors int, action types.ActionType) float64 {
	confidence := baseConfidence

	bonus := float64(contributors) * contributorBonusPerPayer
	if bonus > contributorBonusCap {
		bonus = contributorBonusCap
	}
	confidence += bonus

	switch {
	case fundingRatio > 1.5:
		confidence += overfundedBonusHigh
	case fundingRatio > 1.2:
		confidence += overfundedBonusLow
	}

	if action == types.ActionDeployToken || action == types.ActionCustom {
		confidence -= riskyActionPenalty
	}

	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}

func distinctPayers(payments []types.Payment) int {
	seen := make(map[string]struct{}, len(payments))
	for _, p := range payments {
		if p.Status != types.PaymentConfirmed {
			continue
		}
		seen[p.PayerAddress] = struct{}{}
	}
	return len(seen)
}
