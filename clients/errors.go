package clients

const (
	// -----------------------------
	// CHAIN SELECTION
	// -----------------------------
	ErrUnsupportedChain = "unsupported_chain"
	ErrNoClientForChain = "no_client_configured_for_chain"

	// -----------------------------
	// TRANSACTION LOOKUP
	// -----------------------------
	ErrTxNotFound     = "transaction_not_found"
	ErrTxFailed       = "transaction_failed_on_chain"
	ErrTxLookupFailed = "transaction_lookup_failed"

	// -----------------------------
	// TRANSFER CHECKS
	// -----------------------------
	ErrRecipientMismatch = "transfer_recipient_mismatch"
	ErrAmountMismatch    = "transfer_amount_mismatch"
	ErrNoTransferFound   = "no_token_transfer_found"

	// -----------------------------
	// SENDING
	// -----------------------------
	ErrNoSignerConfigured = "no_signer_configured"
	ErrBroadcastFailed    = "broadcast_failed"

	// -----------------------------
	// UNEXPECTED
	// -----------------------------
	ErrUnexpectedVerifyError = "unexpected_verify_error"
)
