package clients

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"

	"github.com/crowdmind/crowdmind/types"
)

// SolanaClient implements the chain capability for Solana using the
// agent wallet and the USDC SPL mint.
type SolanaClient struct {
	client   *rpc.Client
	wallet   solana.PrivateKey
	usdcMint solana.PublicKey
}

var _ Client = (*SolanaClient)(nil)

// SolanaConfig carries what the Solana client needs to connect and sign.
type SolanaConfig struct {
	RPCURL     string
	PrivateKey string // base58
	USDCMint   string
}

// NewSolanaClient creates a Solana client for the agent wallet.
func NewSolanaClient(cfg SolanaConfig) (*SolanaClient, error) {
	wallet, err := solana.PrivateKeyFromBase58(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("invalid Solana wallet private key: %w", err)
	}
	mint, err := solana.PublicKeyFromBase58(cfg.USDCMint)
	if err != nil {
		return nil, fmt.Errorf("invalid USDC mint address: %w", err)
	}
	return &SolanaClient{
		client:   rpc.New(cfg.RPCURL),
		wallet:   wallet,
		usdcMint: mint,
	}, nil
}

func (c *SolanaClient) GetWalletAddress() string {
	return c.wallet.PublicKey().String()
}

func (c *SolanaClient) GetBalance(ctx context.Context) (decimal.Decimal, error) {
	out, err := c.client.GetBalance(ctx, c.wallet.PublicKey(), rpc.CommitmentFinalized)
	if err != nil {
		return decimal.Zero, fmt.Errorf("balance query failed: %w", err)
	}
	return decimal.NewFromUint64(out.Value).Shift(-9), nil
}

func (c *SolanaClient) GetTokenBalance(ctx context.Context) (decimal.Decimal, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(c.wallet.PublicKey(), c.usdcMint)
	if err != nil {
		return decimal.Zero, err
	}
	out, err := c.client.GetTokenAccountBalance(ctx, ata, rpc.CommitmentFinalized)
	if err != nil {
		// A wallet with no USDC token account simply holds zero.
		return decimal.Zero, nil
	}
	raw, err := decimal.NewFromString(out.Value.Amount)
	if err != nil {
		return decimal.Zero, err
	}
	return raw.Shift(-int32(out.Value.Decimals)), nil
}

// VerifyTokenPayment inspects the transaction's token balance deltas for
// a USDC credit to recipient within 1% of expectedAmount.
func (c *SolanaClient) VerifyTokenPayment(ctx context.Context, txRef string, expectedAmount decimal.Decimal, recipient string) (bool, error) {
	sig, err := solana.SignatureFromBase58(txRef)
	if err != nil {
		return false, nil
	}
	recipientKey, err := solana.PublicKeyFromBase58(recipient)
	if err != nil {
		return false, nil
	}

	out, err := c.client.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: rpc.CommitmentConfirmed,
	})
	if err != nil || out == nil || out.Meta == nil {
		return false, nil
	}
	if out.Meta.Err != nil {
		return false, nil
	}

	pre := tokenAmountFor(out.Meta.PreTokenBalances, c.usdcMint, recipientKey)
	post := tokenAmountFor(out.Meta.PostTokenBalances, c.usdcMint, recipientKey)
	delta := post.Sub(pre)
	if !delta.IsPositive() {
		return false, nil
	}
	return AmountWithinTolerance(delta, expectedAmount), nil
}

func tokenAmountFor(balances []rpc.TokenBalance, mint, owner solana.PublicKey) decimal.Decimal {
	total := decimal.Zero
	for _, b := range balances {
		if b.Mint != mint || b.Owner == nil || !b.Owner.Equals(owner) {
			continue
		}
		if b.UiTokenAmount == nil {
			continue
		}
		raw, err := decimal.NewFromString(b.UiTokenAmount.Amount)
		if err != nil {
			continue
		}
		total = total.Add(raw.Shift(-int32(b.UiTokenAmount.Decimals)))
	}
	return total
}

// SendToken builds, signs and broadcasts an SPL transfer-checked of USDC
// from the agent wallet to the recipient's associated token account.
func (c *SolanaClient) SendToken(ctx context.Context, recipient string, amount decimal.Decimal) (string, error) {
	recipientKey, err := solana.PublicKeyFromBase58(recipient)
	if err != nil {
		return "", fmt.Errorf("invalid recipient address: %w", err)
	}

	owner := c.wallet.PublicKey()
	source, _, err := solana.FindAssociatedTokenAddress(owner, c.usdcMint)
	if err != nil {
		return "", err
	}
	dest, _, err := solana.FindAssociatedTokenAddress(recipientKey, c.usdcMint)
	if err != nil {
		return "", err
	}

	baseUnits := amount.Shift(usdcDecimals).BigInt().Uint64()
	inst := token.NewTransferCheckedInstruction(
		baseUnits, usdcDecimals, source, c.usdcMint, dest, owner, nil,
	).Build()

	blockhash, err := c.client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return "", fmt.Errorf("latest blockhash failed: %w", err)
	}

	tx, err := solana.NewTransaction(
		[]solana.Instruction{inst},
		blockhash.Value.Blockhash,
		solana.TransactionPayer(owner),
	)
	if err != nil {
		return "", fmt.Errorf("build tx failed: %w", err)
	}

	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(owner) {
			return &c.wallet
		}
		return nil
	}); err != nil {
		return "", fmt.Errorf("sign tx failed: %w", err)
	}

	sig, err := c.client.SendTransaction(ctx, tx)
	if err != nil {
		return "", fmt.Errorf("%s: %w", ErrBroadcastFailed, err)
	}
	return sig.String(), nil
}

func (c *SolanaClient) GetTransactionStatus(ctx context.Context, txRef string) (types.TxStatus, error) {
	sig, err := solana.SignatureFromBase58(txRef)
	if err != nil {
		return types.TxNotFound, nil
	}
	out, err := c.client.GetSignatureStatuses(ctx, true, sig)
	if err != nil || len(out.Value) == 0 || out.Value[0] == nil {
		return types.TxNotFound, nil
	}
	status := out.Value[0]
	if status.Err != nil {
		return types.TxFailed, nil
	}
	if status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
		return types.TxFinalized, nil
	}
	return types.TxConfirmed, nil
}

func (c *SolanaClient) GetChain() types.ChainType { return types.ChainSolana }

func (c *SolanaClient) Close() {}
