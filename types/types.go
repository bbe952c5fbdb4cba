// Package types defines the domain model shared by all CrowdMind
// components: proposals, payments, audit transactions and the x402
// payment-instruction wire format.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// ChainType identifies a supported blockchain.
type ChainType string

const (
	ChainSolana ChainType = "SOLANA"
	ChainBase   ChainType = "BASE"
)

func (c ChainType) String() string { return string(c) }

// Valid reports whether the chain tag is one of the supported chains.
func (c ChainType) Valid() bool {
	return c == ChainSolana || c == ChainBase
}

// ProposalStatus is the proposal state machine position.
// Transitions only move forward: ACTIVE -> FUNDED -> EXECUTING -> EXECUTED | FAILED.
type ProposalStatus string

const (
	StatusActive    ProposalStatus = "ACTIVE"
	StatusFunded    ProposalStatus = "FUNDED"
	StatusExecuting ProposalStatus = "EXECUTING"
	StatusExecuted  ProposalStatus = "EXECUTED"
	StatusFailed    ProposalStatus = "FAILED"
)

func (s ProposalStatus) String() string { return string(s) }

// Terminal reports whether the status may never be left again.
func (s ProposalStatus) Terminal() bool {
	return s == StatusExecuted || s == StatusFailed
}

// PaymentStatus tracks an individual contribution.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentConfirmed PaymentStatus = "CONFIRMED"
	PaymentFailed    PaymentStatus = "FAILED"
)

// TransactionType classifies audit-trail records.
type TransactionType string

const (
	TxTypePayment   TransactionType = "PAYMENT"
	TxTypeExecution TransactionType = "EXECUTION"
	TxTypeRefund    TransactionType = "REFUND"
)

// TxStatus is the on-chain status of a transaction reference.
type TxStatus string

const (
	TxConfirmed TxStatus = "confirmed"
	TxFinalized TxStatus = "finalized"
	TxFailed    TxStatus = "failed"
	TxNotFound  TxStatus = "not_found"
)

// ActionType is the payout action a proposal funds.
type ActionType string

const (
	ActionBuyToken    ActionType = "BUY_TOKEN"
	ActionDonate      ActionType = "DONATE"
	ActionMintNFT     ActionType = "MINT_NFT"
	ActionDeployToken ActionType = "DEPLOY_TOKEN"
	ActionFundCompute ActionType = "FUND_COMPUTE"
	ActionJupiterSwap ActionType = "JUPITER_SWAP"
	ActionCustom      ActionType = "CUSTOM"
)

func (a ActionType) String() string { return string(a) }

// Valid reports whether the action tag is part of the closed enumeration.
func (a ActionType) Valid() bool {
	switch a {
	case ActionBuyToken, ActionDonate, ActionMintNFT, ActionDeployToken,
		ActionFundCompute, ActionJupiterSwap, ActionCustom:
		return true
	}
	return false
}

// Proposal is a fundable unit of work with a target payout action.
type Proposal struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	ActionType  ActionType `json:"actionType"`
	// ActionParams is the JSON-encoded variant record for ActionType.
	// Use ParseActionParams to decode and validate it.
	ActionParams     string          `json:"actionParams"`
	GoalAmount       decimal.Decimal `json:"goalAmount"`
	CurrentAmount    decimal.Decimal `json:"currentAmount"`
	Status           ProposalStatus  `json:"status"`
	Deadline         *time.Time      `json:"deadline,omitempty"`
	ExecutionTxHash  string          `json:"executionTxHash,omitempty"`
	ExecutionReceipt string          `json:"executionReceipt,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// FundingRatio returns currentAmount / goalAmount, or 0 for a zero goal.
func (p *Proposal) FundingRatio() float64 {
	if p.GoalAmount.IsZero() {
		return 0
	}
	return p.CurrentAmount.Div(p.GoalAmount).InexactFloat64()
}

// Expired reports whether the proposal deadline has passed at the given instant.
func (p *Proposal) Expired(now time.Time) bool {
	return p.Deadline != nil && now.After(*p.Deadline)
}

// Payment is a single contribution toward a proposal. Only CONFIRMED
// payments count toward the funding ratio and contributor diversity.
type Payment struct {
	ID              string          `json:"id"`
	ProposalID      string          `json:"proposalId"`
	Chain           ChainType       `json:"chain"`
	Amount          decimal.Decimal `json:"amount"`
	PayerAddress    string          `json:"payerAddress"`
	TransactionHash string          `json:"transactionHash"`
	Status          PaymentStatus   `json:"status"`
	VerifiedAt      *time.Time      `json:"verifiedAt,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// Transaction is an append-only audit record. Never mutated after creation.
type Transaction struct {
	ID              string          `json:"id"`
	ProposalID      string          `json:"proposalId,omitempty"`
	Type            TransactionType `json:"type"`
	Chain           ChainType       `json:"chain"`
	TransactionHash string          `json:"transactionHash"`
	FromAddress     string          `json:"fromAddress"`
	ToAddress       string          `json:"toAddress"`
	Amount          decimal.Decimal `json:"amount"`
	Status          PaymentStatus   `json:"status"`
	Metadata        string          `json:"metadata,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// AgentDecision is the decision engine output. Ephemeral, never persisted.
type AgentDecision struct {
	ProposalID    string  `json:"proposalId"`
	ShouldExecute bool    `json:"shouldExecute"`
	Reason        string  `json:"reason"`
	Confidence    float64 `json:"confidence"`
}

// ExecutionResult is the outcome of one payout attempt.
type ExecutionResult struct {
	Success         bool           `json:"success"`
	TransactionHash string         `json:"transactionHash,omitempty"`
	Error           string         `json:"error,omitempty"`
	Receipt         map[string]any `json:"receipt,omitempty"`
	Timestamp       string         `json:"timestamp"`
}

// PaymentRequired is the HTTP 402 response body of the x402 protocol.
type PaymentRequired struct {
	StatusCode          int                 `json:"statusCode"`
	Message             string              `json:"message"`
	PaymentInstructions PaymentInstructions `json:"paymentInstructions"`
	VerificationURL     string              `json:"verificationUrl"`
}

// PaymentInstructions carries what a payer needs to settle the call.
type PaymentInstructions struct {
	Chain            ChainType       `json:"chain"`
	RecipientAddress string          `json:"recipientAddress"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	Memo             string          `json:"memo,omitempty"`
	ExpiresAt        string          `json:"expiresAt"`
}

// PaymentProof is a parsed x402 payment proof from request headers.
// A zero value means no proof was supplied.
type PaymentProof struct {
	Chain           ChainType `json:"chain,omitempty"`
	TransactionHash string    `json:"transactionHash,omitempty"`
}

// Empty reports whether the proof is missing either field.
func (p PaymentProof) Empty() bool {
	return p.Chain == "" || p.TransactionHash == ""
}

// VerificationResult is the payment verifier outcome.
type VerificationResult struct {
	Verified     bool             `json:"verified"`
	ActualAmount *decimal.Decimal `json:"actualAmount,omitempty"`
	Error        string           `json:"error,omitempty"`
}

// CanExecuteResult is the readiness-check outcome. Carries no side effects.
type CanExecuteResult struct {
	Ready  bool   `json:"ready"`
	Reason string `json:"reason"`
}

// Analysis is advisory viability output for a proposal.
type Analysis struct {
	Viable        bool     `json:"viable"`
	Risks         []string `json:"risks"`
	Opportunities []string `json:"opportunities"`
}
