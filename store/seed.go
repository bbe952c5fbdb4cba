package store

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/crowdmind/crowdmind/types"
)

func days(n int) *time.Time {
	t := time.Now().UTC().Add(time.Duration(n) * 24 * time.Hour)
	return &t
}

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

// SeedProposals returns a set of sample proposals covering every action
// type, for demos and local development.
func SeedProposals() []*types.Proposal {
	return []*types.Proposal{
		{
			Title:       "Support Open-Source Backend Development",
			Description: "Fund the open-sourcing of backend infrastructure and developer tools that power decentralized applications.",
			ActionType:  types.ActionDonate,
			ActionParams: `{"chain":"SOLANA","recipientAddress":"7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU","message":"Open-source backend for everyone"}`,
			GoalAmount:    dec("500"),
			CurrentAmount: dec("375"),
			Status:        types.StatusActive,
			Deadline:      days(15),
		},
		{
			Title:       "Buy BONK Tokens for Community Treasury",
			Description: "Purchase BONK tokens to build a community-owned treasury used for governance, rewards and community initiatives.",
			ActionType:  types.ActionBuyToken,
			ActionParams: `{"chain":"SOLANA","tokenMint":"DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263","slippageBps":50}`,
			GoalAmount:    dec("250"),
			CurrentAmount: dec("180"),
			Status:        types.StatusActive,
			Deadline:      days(20),
		},
		{
			Title:       "Fund GPU Cluster for AI Research",
			Description: "Rent high-performance GPU compute time for running AI models and research.",
			ActionType:  types.ActionFundCompute,
			ActionParams: `{"provider":"vast.ai","amount":750,"duration":"3 months"}`,
			GoalAmount:    dec("750"),
			CurrentAmount: dec("520"),
			Status:        types.StatusActive,
			Deadline:      days(10),
		},
		{
			Title:       "Launch CrowdMind Genesis NFT",
			Description: "Mint a commemorative NFT collection for early supporters.",
			ActionType:  types.ActionMintNFT,
			ActionParams: `{"chain":"SOLANA","name":"CrowdMind Genesis","symbol":"CMIND","uri":"https://example.com/metadata.json"}`,
			GoalAmount:    dec("150"),
			CurrentAmount: dec("95"),
			Status:        types.StatusActive,
			Deadline:      days(25),
		},
		{
			Title:       "Deploy Community Governance Token",
			Description: "Launch a decentralized governance token; holders vote on future proposals and treasury management.",
			ActionType:  types.ActionDeployToken,
			ActionParams: `{"chain":"SOLANA","name":"CrowdMind Governance","symbol":"CMGOV","initialSupply":1000000}`,
			GoalAmount:    dec("600"),
			CurrentAmount: dec("125"),
			Status:        types.StatusActive,
			Deadline:      days(30),
		},
		{
			Title:       "Climate Action: Carbon Offset Fund",
			Description: "Support verified carbon offset projects: tree planting, renewable energy and carbon capture.",
			ActionType:  types.ActionDonate,
			ActionParams: `{"chain":"BASE","recipientAddress":"0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb4","message":"Climate action"}`,
			GoalAmount:    dec("400"),
			CurrentAmount: dec("410"),
			Status:        types.StatusFunded,
		},
	}
}

// Seed inserts the sample proposals into the store.
func Seed(s Store) error {
	for _, p := range SeedProposals() {
		if err := s.CreateProposal(p); err != nil {
			return err
		}
	}
	return nil
}
