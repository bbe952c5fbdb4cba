package types

// Display helpers for statuses and tags shown to users.

var statusDisplay = map[ProposalStatus]string{
	StatusActive:    "Active",
	StatusFunded:    "Funded",
	StatusExecuting: "Executing",
	StatusExecuted:  "Executed",
	StatusFailed:    "Failed",
}

var actionDisplay = map[ActionType]string{
	ActionBuyToken:    "Buy Token",
	ActionDonate:      "Donate",
	ActionMintNFT:     "Mint NFT",
	ActionDeployToken: "Deploy Token",
	ActionFundCompute: "Fund Compute",
	ActionJupiterSwap: "Jupiter Swap",
	ActionCustom:      "Custom",
}

var chainDisplay = map[ChainType]string{
	ChainSolana: "Solana",
	ChainBase:   "Base",
}

var txTypeDisplay = map[TransactionType]string{
	TxTypePayment:   "Payment",
	TxTypeExecution: "Execution",
	TxTypeRefund:    "Refund",
}

// FormatStatus renders a proposal status for display.
func FormatStatus(s ProposalStatus) string {
	if d, ok := statusDisplay[s]; ok {
		return d
	}
	return string(s)
}

// FormatActionType renders an action type for display.
func FormatActionType(a ActionType) string {
	if d, ok := actionDisplay[a]; ok {
		return d
	}
	return string(a)
}

// FormatChain renders a chain tag for display.
func FormatChain(c ChainType) string {
	if d, ok := chainDisplay[c]; ok {
		return d
	}
	return string(c)
}

// FormatTransactionType renders a transaction type for display.
func FormatTransactionType(t TransactionType) string {
	if d, ok := txTypeDisplay[t]; ok {
		return d
	}
	return string(t)
}
