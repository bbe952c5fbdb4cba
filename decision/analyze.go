package decision

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/crowdmind/crowdmind/types"
)

var highGoalThreshold = decimal.NewFromInt(10000)

// Analyze produces advisory viability text for a proposal. This is
// display material for operators, not execution policy.
func (m *Maker) Analyze(proposal *types.Proposal) types.Analysis {
	if proposal == nil {
		return types.Analysis{
			Viable:        false,
			Risks:         []string{"Proposal not found"},
			Opportunities: []string{},
		}
	}

	var risks, opportunities []string

	switch proposal.ActionType {
	case types.ActionBuyToken:
		risks = append(risks, "Market volatility", "Liquidity risks", "Smart contract vulnerabilities")
		opportunities = append(opportunities, "Potential price appreciation", "Community engagement")
	case types.ActionDonate:
		opportunities = append(opportunities, "Positive social impact", "Community goodwill")
		risks = append(risks, "Recipient verification needed")
	case types.ActionDeployToken:
		risks = append(risks, "Regulatory concerns", "Technical complexity", "Market saturation")
		opportunities = append(opportunities, "Token utility", "Community building")
	default:
		risks = append(risks, "Unknown action type risks")
	}

	if proposal.GoalAmount.GreaterThan(highGoalThreshold) {
		risks = append(risks, "High funding goal may be difficult to achieve")
	}

	if proposal.Deadline != nil {
		if proposal.Deadline.Sub(m.now()) < 7*24*time.Hour {
			risks = append(risks, "Short deadline may limit participation")
		}
	}

	return types.Analysis{
		Viable:        len(risks) <= len(opportunities),
		Risks:         risks,
		Opportunities: opportunities,
	}
}

// Recommendations lists suggested proposal ideas shown to operators.
func Recommendations() []string {
	return []string{
		"Buy BONK tokens - Popular meme coin with community support",
		"Donate to open-source projects - Support public goods",
		"Launch AI compute cluster - Fund distributed AI infrastructure",
		"Create NFT collection - Mint commemorative NFTs for supporters",
	}
}
