package protocol

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/crowdmind/crowdmind/types"
)

// Gate enforces x402 payment on a request. It returns the verified
// proof when the request may proceed; otherwise it writes the 402
// challenge (or a 400 for a wrong-chain proof) to the response and
// returns false. The caller must not write anything when ok is false.
func (h *Handler) Gate(c *gin.Context, proposalID string, chain types.ChainType, amount decimal.Decimal) (proof types.PaymentProof, ok bool) {
	proof = h.ParsePaymentProof(c.Request.Header)
	if proof.Empty() {
		h.challenge(c, proposalID, chain, amount, "")
		return types.PaymentProof{}, false
	}

	if proof.Chain != chain {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payment chain"})
		return types.PaymentProof{}, false
	}

	result := h.VerifyPayment(c.Request.Context(), proof.Chain, proof.TransactionHash, amount, "")
	if !result.Verified {
		h.log.Info("payment gate rejected proof", map[string]any{
			"proposal_id": proposalID,
			"tx_hash":     proof.TransactionHash,
			"reason":      result.Error,
		})
		h.challenge(c, proposalID, chain, amount, result.Error)
		return types.PaymentProof{}, false
	}

	return proof, true
}

func (h *Handler) challenge(c *gin.Context, proposalID string, chain types.ChainType, amount decimal.Decimal, detail string) {
	required, err := h.PaymentInstructions(proposalID, chain, amount, "")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Header("WWW-Authenticate", fmt.Sprintf("x402 realm=%q, currency=%q", Realm, currency))
	body := gin.H{
		"statusCode":          required.StatusCode,
		"message":             required.Message,
		"paymentInstructions": required.PaymentInstructions,
		"verificationUrl":     required.VerificationURL,
	}
	if detail != "" {
		body["error"] = detail
	}
	c.JSON(http.StatusPaymentRequired, body)
}
