// Package protocol implements the x402 pay-per-call protocol: payment
// instruction challenges, proof parsing from request headers, and
// on-chain payment verification.
package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/crowdmind/crowdmind/clients"
	"github.com/crowdmind/crowdmind/config"
	"github.com/crowdmind/crowdmind/logger"
	"github.com/crowdmind/crowdmind/metrics"
	"github.com/crowdmind/crowdmind/types"
)

const (
	// proofHeader is the structured alternative to the Authorization
	// header for payment proofs.
	proofHeader = "X-Payment-Proof"

	authScheme = "x402 "

	currency = "USDC"

	// Realm announced in WWW-Authenticate challenges.
	Realm = "CrowdMind"
)

// Handler is the stateless x402 protocol handler. It carries only
// configuration; every call works from the request at hand.
type Handler struct {
	domain  string
	timeout time.Duration
	clients *clients.Registry
	log     logger.Logger
	rec     metrics.Recorder
}

// NewHandler builds a protocol handler from configuration.
func NewHandler(cfg config.X402Config, registry *clients.Registry, log logger.Logger, rec metrics.Recorder) *Handler {
	if log == nil {
		log = logger.NoopLogger{}
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Handler{
		domain:  cfg.Domain,
		timeout: cfg.Timeout(),
		clients: registry,
		log:     log,
		rec:     rec,
	}
}

// PaymentInstructions generates the 402 challenge for a proposal: the
// chain's current recipient address, the required amount, an advisory
// expiry and the verification URL.
func (h *Handler) PaymentInstructions(proposalID string, chain types.ChainType, amount decimal.Decimal, memo string) (*types.PaymentRequired, error) {
	client, err := h.clients.Get(chain)
	if err != nil {
		return nil, err
	}

	if memo == "" {
		memo = fmt.Sprintf("Payment for proposal %s", proposalID)
	}

	return &types.PaymentRequired{
		StatusCode: http.StatusPaymentRequired,
		Message:    "Payment Required",
		PaymentInstructions: types.PaymentInstructions{
			Chain:            chain,
			RecipientAddress: client.GetWalletAddress(),
			Amount:           amount,
			Currency:         currency,
			Memo:             memo,
			ExpiresAt:        time.Now().UTC().Add(h.timeout).Format(time.RFC3339),
		},
		VerificationURL: fmt.Sprintf("%s/proposals/%s/verify", h.domain, proposalID),
	}, nil
}

// ParsePaymentProof extracts (chain, txHash) from an Authorization
// header of the form "x402 chain=<C> txHash=<H>" or a JSON payment
// proof. Malformed input yields an empty proof, never an error: callers
// treat empty as "no proof supplied".
func (h *Handler) ParsePaymentProof(headers http.Header) types.PaymentProof {
	raw := headers.Get("Authorization")
	if raw == "" {
		raw = headers.Get(proofHeader)
	}
	if raw == "" {
		return types.PaymentProof{}
	}

	if strings.HasPrefix(raw, authScheme) {
		fields := map[string]string{}
		for _, part := range strings.Split(raw[len(authScheme):], " ") {
			key, value, ok := strings.Cut(part, "=")
			if ok && key != "" && value != "" {
				fields[key] = value
			}
		}
		return types.PaymentProof{
			Chain:           types.ChainType(fields["chain"]),
			TransactionHash: fields["txHash"],
		}
	}

	var parsed struct {
		Chain           types.ChainType `json:"chain"`
		TransactionHash string          `json:"transactionHash"`
		TxHash          string          `json:"txHash"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		h.log.Debug("unparseable payment proof header", map[string]any{"error": err.Error()})
		return types.PaymentProof{}
	}
	hash := parsed.TransactionHash
	if hash == "" {
		hash = parsed.TxHash
	}
	return types.PaymentProof{Chain: parsed.Chain, TransactionHash: hash}
}

// VerifyPayment checks that the referenced transaction is a confirmed
// on-chain USDC transfer of expectedAmount to recipient, within 1%
// tolerance. Negative outcomes are results, not errors.
func (h *Handler) VerifyPayment(ctx context.Context, chain types.ChainType, txHash string, expectedAmount decimal.Decimal, recipient string) types.VerificationResult {
	started := time.Now()
	defer func() {
		h.rec.ObserveLatency("verify_payment", time.Since(started), map[string]string{"chain": chain.String()})
	}()

	client, err := h.clients.Get(chain)
	if err != nil {
		return types.VerificationResult{Error: err.Error()}
	}

	status, err := client.GetTransactionStatus(ctx, txHash)
	if err != nil {
		return types.VerificationResult{Error: fmt.Sprintf("transaction status lookup failed: %v", err)}
	}
	switch status {
	case types.TxNotFound:
		return types.VerificationResult{Error: "Transaction not found"}
	case types.TxFailed:
		return types.VerificationResult{Error: "Transaction failed"}
	}

	if recipient == "" {
		recipient = client.GetWalletAddress()
	}

	verified, err := client.VerifyTokenPayment(ctx, txHash, expectedAmount, recipient)
	if err != nil {
		return types.VerificationResult{Error: fmt.Sprintf("verification error: %v", err)}
	}
	if !verified {
		h.rec.IncCounter("payment_verification_failed", map[string]string{"chain": chain.String()})
		return types.VerificationResult{Error: "Payment verification failed - amount or recipient mismatch"}
	}

	h.rec.IncCounter("payment_verified", map[string]string{"chain": chain.String()})
	return types.VerificationResult{Verified: true, ActualAmount: &expectedAmount}
}
