// Package clients provides the per-chain wallet/transfer/query capability
// consumed by the payment verifier and the execution coordinator.
package clients

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/crowdmind/crowdmind/types"
)

// Client is the chain capability contract. One implementation exists per
// supported chain plus a deterministic mock for demo and tests.
type Client interface {
	// GetWalletAddress returns the agent wallet address on this chain.
	GetWalletAddress() string

	// GetBalance returns the native-currency balance of the agent wallet.
	GetBalance(ctx context.Context) (decimal.Decimal, error)

	// GetTokenBalance returns the USDC balance of the agent wallet
	// in human units (6-decimal USDC semantics).
	GetTokenBalance(ctx context.Context) (decimal.Decimal, error)

	// VerifyTokenPayment reports whether txRef contains a confirmed USDC
	// transfer of expectedAmount (1% relative tolerance) to recipient.
	VerifyTokenPayment(ctx context.Context, txRef string, expectedAmount decimal.Decimal, recipient string) (bool, error)

	// SendToken transfers amount USDC to recipient and returns the
	// transaction reference.
	SendToken(ctx context.Context, recipient string, amount decimal.Decimal) (string, error)

	// GetTransactionStatus resolves the on-chain status of txRef.
	// Unknown or unreachable transactions resolve to not_found.
	GetTransactionStatus(ctx context.Context, txRef string) (types.TxStatus, error)

	// GetChain returns the chain tag this client serves.
	GetChain() types.ChainType

	Close()
}

// AmountWithinTolerance reports whether actual is within 1% relative
// error of expected. Token amounts carry rounding from fixed-point
// conversion between human units and base units.
func AmountWithinTolerance(actual, expected decimal.Decimal) bool {
	if expected.IsZero() {
		return actual.IsZero()
	}
	diff := actual.Sub(expected).Abs()
	return diff.Div(expected).LessThan(decimal.NewFromFloat(0.01))
}
