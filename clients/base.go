package clients

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	"github.com/crowdmind/crowdmind/types"
)

const erc20ABI = `[
	{"name":"transfer","type":"function","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"Transfer","type":"event","inputs":[{"name":"from","type":"address","indexed":true},{"name":"to","type":"address","indexed":true},{"name":"value","type":"uint256","indexed":false}]}
]`

// usdcDecimals is fixed across USDC deployments.
const usdcDecimals = 6

// finalizedConfirmations is the depth after which a Base transaction is
// reported finalized rather than confirmed.
const finalizedConfirmations = 10

var transferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

// BaseClient implements the chain capability for the Base network using
// the agent wallet and the USDC ERC-20 contract.
type BaseClient struct {
	eth      *ethclient.Client
	chainID  *big.Int
	signer   *ecdsa.PrivateKey
	wallet   common.Address
	usdcAddr common.Address
	tokenABI abi.ABI
}

var _ Client = (*BaseClient)(nil)

// BaseConfig carries what the Base client needs to connect and sign.
type BaseConfig struct {
	RPCURL      string
	PrivateKey  string // hex, no 0x prefix required
	USDCAddress string
}

// NewBaseClient connects to the Base RPC and prepares the agent wallet.
func NewBaseClient(ctx context.Context, cfg BaseConfig) (*BaseClient, error) {
	eth, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Base RPC: %w", err)
	}

	chainID, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("failed to query chain id: %w", err)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("invalid Base wallet private key: %w", err)
	}

	tokenABI, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}

	return &BaseClient{
		eth:      eth,
		chainID:  chainID,
		signer:   key,
		wallet:   crypto.PubkeyToAddress(key.PublicKey),
		usdcAddr: common.HexToAddress(cfg.USDCAddress),
		tokenABI: tokenABI,
	}, nil
}

func (c *BaseClient) GetWalletAddress() string { return c.wallet.Hex() }

func (c *BaseClient) GetBalance(ctx context.Context) (decimal.Decimal, error) {
	wei, err := c.eth.BalanceAt(ctx, c.wallet, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("balance query failed: %w", err)
	}
	return decimal.NewFromBigInt(wei, -18), nil
}

func (c *BaseClient) GetTokenBalance(ctx context.Context) (decimal.Decimal, error) {
	data, err := c.tokenABI.Pack("balanceOf", c.wallet)
	if err != nil {
		return decimal.Zero, err
	}
	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &c.usdcAddr, Data: data}, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("balanceOf call failed: %w", err)
	}
	raw := new(big.Int).SetBytes(out)
	return decimal.NewFromBigInt(raw, -usdcDecimals), nil
}

// VerifyTokenPayment scans the receipt's USDC Transfer logs for a
// transfer to recipient within 1% of expectedAmount.
func (c *BaseClient) VerifyTokenPayment(ctx context.Context, txRef string, expectedAmount decimal.Decimal, recipient string) (bool, error) {
	receipt, err := c.eth.TransactionReceipt(ctx, common.HexToHash(txRef))
	if err != nil {
		return false, nil
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return false, nil
	}

	want := common.HexToAddress(recipient)
	for _, log := range receipt.Logs {
		if log.Address != c.usdcAddr {
			continue
		}
		if len(log.Topics) != 3 || log.Topics[0] != transferTopic {
			continue
		}
		to := common.BytesToAddress(log.Topics[2].Bytes())
		if to != want {
			continue
		}
		amount := decimal.NewFromBigInt(new(big.Int).SetBytes(log.Data), -usdcDecimals)
		if AmountWithinTolerance(amount, expectedAmount) {
			return true, nil
		}
	}
	return false, nil
}

// SendToken builds, signs and broadcasts a USDC transfer from the agent
// wallet and returns the transaction hash without waiting for inclusion.
func (c *BaseClient) SendToken(ctx context.Context, recipient string, amount decimal.Decimal) (string, error) {
	if c.signer == nil {
		return "", types.NewAgentError(types.ErrConfigError, ErrNoSignerConfigured)
	}

	baseUnits := amount.Shift(usdcDecimals).BigInt()
	callData, err := c.tokenABI.Pack("transfer", common.HexToAddress(recipient), baseUnits)
	if err != nil {
		return "", fmt.Errorf("pack transfer call: %w", err)
	}

	gasLimit, err := c.eth.EstimateGas(ctx, ethereum.CallMsg{From: c.wallet, To: &c.usdcAddr, Data: callData})
	if err != nil {
		return "", fmt.Errorf("estimate gas failed: %w", err)
	}

	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("suggest gas price failed: %w", err)
	}

	nonce, err := c.eth.PendingNonceAt(ctx, c.wallet)
	if err != nil {
		return "", fmt.Errorf("pending nonce failed: %w", err)
	}

	tx := ethtypes.NewTransaction(nonce, c.usdcAddr, big.NewInt(0), gasLimit, gasPrice, callData)
	signed, err := ethtypes.SignTx(tx, ethtypes.LatestSignerForChainID(c.chainID), c.signer)
	if err != nil {
		return "", fmt.Errorf("sign tx failed: %w", err)
	}

	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("%s: %w", ErrBroadcastFailed, err)
	}
	return signed.Hash().Hex(), nil
}

func (c *BaseClient) GetTransactionStatus(ctx context.Context, txRef string) (types.TxStatus, error) {
	receipt, err := c.eth.TransactionReceipt(ctx, common.HexToHash(txRef))
	if err != nil {
		// ethereum.NotFound and transient RPC errors both resolve to
		// not_found; callers retry or reject, never block.
		return types.TxNotFound, nil
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return types.TxFailed, nil
	}

	head, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return types.TxConfirmed, nil
	}
	if head-receipt.BlockNumber.Uint64() >= finalizedConfirmations {
		return types.TxFinalized, nil
	}
	return types.TxConfirmed, nil
}

func (c *BaseClient) GetChain() types.ChainType { return types.ChainBase }

func (c *BaseClient) Close() { c.eth.Close() }
