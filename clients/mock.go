package clients

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/crowdmind/crowdmind/types"
)

var demoWallets = map[types.ChainType]string{
	types.ChainSolana: "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU",
	types.ChainBase:   "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb4",
}

var demoBalances = map[types.ChainType]struct{ native, usdc string }{
	types.ChainSolana: {"2.5", "1250.75"},
	types.ChainBase:   {"0.15", "890.50"},
}

type mockTransfer struct {
	recipient string
	amount    decimal.Decimal
	failed    bool
}

// MockClient simulates a chain without network access. It records every
// transfer it sends or registers; only recorded hashes verify. Satisfies
// the same capability contract as the real clients so tests and demo mode
// swap it in by construction, never by branches inside business logic.
type MockClient struct {
	chain  types.ChainType
	wallet string
	native decimal.Decimal
	usdc   decimal.Decimal
	mu     sync.Mutex
	ledger map[string]mockTransfer
}

var _ Client = (*MockClient)(nil)

// NewMockClient creates a simulation client for the given chain with the
// fixed demo wallet and balances.
func NewMockClient(chain types.ChainType) *MockClient {
	bal := demoBalances[chain]
	native, _ := decimal.NewFromString(bal.native)
	usdc, _ := decimal.NewFromString(bal.usdc)
	return &MockClient{
		chain:  chain,
		wallet: demoWallets[chain],
		native: native,
		usdc:   usdc,
		ledger: make(map[string]mockTransfer),
	}
}

func (m *MockClient) GetWalletAddress() string { return m.wallet }

func (m *MockClient) GetBalance(_ context.Context) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.native, nil
}

func (m *MockClient) GetTokenBalance(_ context.Context) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usdc, nil
}

func (m *MockClient) VerifyTokenPayment(_ context.Context, txRef string, expectedAmount decimal.Decimal, recipient string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.ledger[txRef]
	if !ok || t.failed {
		return false, nil
	}
	if t.recipient != recipient {
		return false, nil
	}
	return AmountWithinTolerance(t.amount, expectedAmount), nil
}

func (m *MockClient) SendToken(_ context.Context, recipient string, amount decimal.Decimal) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if amount.GreaterThan(m.usdc) {
		return "", types.NewAgentError(types.ErrExecutionFail,
			fmt.Sprintf("insufficient USDC balance: have %s, need %s", m.usdc, amount))
	}
	hash := m.newTxHash()
	m.ledger[hash] = mockTransfer{recipient: recipient, amount: amount}
	m.usdc = m.usdc.Sub(amount)
	return hash, nil
}

func (m *MockClient) GetTransactionStatus(_ context.Context, txRef string) (types.TxStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.ledger[txRef]
	if !ok {
		return types.TxNotFound, nil
	}
	if t.failed {
		return types.TxFailed, nil
	}
	return types.TxConfirmed, nil
}

func (m *MockClient) GetChain() types.ChainType { return m.chain }

func (m *MockClient) Close() {}

// RegisterTransfer seeds a confirmed inbound transfer so a caller can
// present its hash as a payment proof. Used by demo seeding and tests.
func (m *MockClient) RegisterTransfer(txRef, recipient string, amount decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ledger[txRef] = mockTransfer{recipient: recipient, amount: amount}
}

// RegisterFailedTransfer seeds a transfer whose on-chain status is failed.
func (m *MockClient) RegisterFailedTransfer(txRef string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ledger[txRef] = mockTransfer{failed: true}
}

// newTxHash generates a hash with the shape real explorers expect:
// base58 signatures for Solana, 0x-prefixed hex for EVM chains.
func (m *MockClient) newTxHash() string {
	if m.chain == types.ChainSolana {
		return randomBase58(88)
	}
	return "0x" + randomHex(64)
}

const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

func randomBase58(n int) string {
	buf := make([]byte, n)
	rand.Read(buf)
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = base58Alphabet[int(b)%len(base58Alphabet)]
	}
	return string(out)
}

func randomHex(n int) string {
	buf := make([]byte, (n+1)/2)
	rand.Read(buf)
	return fmt.Sprintf("%x", buf)[:n]
}
