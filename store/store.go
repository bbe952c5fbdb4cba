// Package store persists proposals, payments and the append-only audit
// trail in an embedded bbolt database. Components receive the Store
// interface so tests can substitute fakes.
package store

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/crowdmind/crowdmind/types"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when a conditional status transition
	// observes a status outside the allowed set.
	ErrConflict = errors.New("status transition conflict")
)

// ProposalFilter narrows ListProposals. Zero value matches everything.
type ProposalFilter struct {
	Statuses []types.ProposalStatus
}

func (f ProposalFilter) matches(p *types.Proposal) bool {
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if p.Status == s {
			return true
		}
	}
	return false
}

// Store is the persistence collaborator consumed by the core components.
type Store interface {
	CreateProposal(p *types.Proposal) error
	FindProposal(id string) (*types.Proposal, error)
	UpdateProposal(id string, mutate func(*types.Proposal) error) (*types.Proposal, error)
	// TransitionStatus atomically moves a proposal from one of the
	// allowed statuses to the target status. Returns ErrConflict when
	// the current status is outside the allowed set. This is the
	// mutual-exclusion gate for execution.
	TransitionStatus(id string, allowedFrom []types.ProposalStatus, to types.ProposalStatus) error
	ListProposals(filter ProposalFilter) ([]*types.Proposal, error)

	CreatePayment(p *types.Payment) error
	FindPaymentByTxHash(txHash string) (*types.Payment, error)
	ConfirmedPayments(proposalID string) ([]types.Payment, error)
	DistinctPayerCount(proposalID string) (int, error)
	// ApplyConfirmedPayment records a confirmed payment and credits the
	// proposal in one atomic step; duplicate transaction hashes are
	// ignored and return the payment already recorded.
	ApplyConfirmedPayment(p *types.Payment) (*types.Payment, *types.Proposal, error)

	CreateTransaction(t *types.Transaction) error
	ListTransactions(proposalID string) ([]types.Transaction, error)

	Close() error
}

var (
	bucketProposals    = []byte("proposals")
	bucketPayments     = []byte("payments")
	bucketPaymentsByTx = []byte("payments_by_txhash")
	bucketTransactions = []byte("transactions")
)

// BoltStore is the bbolt-backed Store implementation.
type BoltStore struct {
	db *bolt.DB
}

var _ Store = (*BoltStore)(nil)

// Open opens (or creates) the database at path.
func Open(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketProposals, bucketPayments, bucketPaymentsByTx, bucketTransactions} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init store: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error { return s.db.Close() }

func (s *BoltStore) CreateProposal(p *types.Proposal) error {
	if p.ID == "" {
		p.ID = newID()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if p.Status == "" {
		p.Status = types.StatusActive
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return putJSON(tx.Bucket(bucketProposals), p.ID, p)
	})
}

func (s *BoltStore) FindProposal(id string) (*types.Proposal, error) {
	var p types.Proposal
	err := s.db.View(func(tx *bolt.Tx) error {
		return getJSON(tx.Bucket(bucketProposals), id, &p)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *BoltStore) UpdateProposal(id string, mutate func(*types.Proposal) error) (*types.Proposal, error) {
	var p types.Proposal
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProposals)
		if err := getJSON(b, id, &p); err != nil {
			return err
		}
		if err := mutate(&p); err != nil {
			return err
		}
		p.UpdatedAt = time.Now().UTC()
		return putJSON(b, id, &p)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *BoltStore) TransitionStatus(id string, allowedFrom []types.ProposalStatus, to types.ProposalStatus) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProposals)
		var p types.Proposal
		if err := getJSON(b, id, &p); err != nil {
			return err
		}
		allowed := false
		for _, from := range allowedFrom {
			if p.Status == from {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Errorf("%w: proposal %s is %s", ErrConflict, id, p.Status)
		}
		p.Status = to
		p.UpdatedAt = time.Now().UTC()
		return putJSON(b, id, &p)
	})
}

func (s *BoltStore) ListProposals(filter ProposalFilter) ([]*types.Proposal, error) {
	var out []*types.Proposal
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketProposals).ForEach(func(_, v []byte) error {
			var p types.Proposal
			if err := json.Unmarshal(v, &p); err != nil {
				return err
			}
			if filter.matches(&p) {
				out = append(out, &p)
			}
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) CreatePayment(p *types.Payment) error {
	if p.ID == "" {
		p.ID = newID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := putJSON(tx.Bucket(bucketPayments), p.ID, p); err != nil {
			return err
		}
		return tx.Bucket(bucketPaymentsByTx).Put([]byte(p.TransactionHash), []byte(p.ID))
	})
}

func (s *BoltStore) FindPaymentByTxHash(txHash string) (*types.Payment, error) {
	var p types.Payment
	err := s.db.View(func(tx *bolt.Tx) error {
		id := tx.Bucket(bucketPaymentsByTx).Get([]byte(txHash))
		if id == nil {
			return ErrNotFound
		}
		return getJSON(tx.Bucket(bucketPayments), string(id), &p)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *BoltStore) ConfirmedPayments(proposalID string) ([]types.Payment, error) {
	var out []types.Payment
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPayments).ForEach(func(_, v []byte) error {
			var p types.Payment
			if err := json.Unmarshal(v, &p); err != nil {
				return err
			}
			if p.ProposalID == proposalID && p.Status == types.PaymentConfirmed {
				out = append(out, p)
			}
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) DistinctPayerCount(proposalID string) (int, error) {
	payments, err := s.ConfirmedPayments(proposalID)
	if err != nil {
		return 0, err
	}
	seen := make(map[string]struct{}, len(payments))
	for _, p := range payments {
		seen[p.PayerAddress] = struct{}{}
	}
	return len(seen), nil
}

func (s *BoltStore) ApplyConfirmedPayment(p *types.Payment) (*types.Payment, *types.Proposal, error) {
	var proposal types.Proposal
	var stored types.Payment
	err := s.db.Update(func(tx *bolt.Tx) error {
		// Idempotent by transaction hash: a replayed proof must not
		// double-credit the proposal.
		if id := tx.Bucket(bucketPaymentsByTx).Get([]byte(p.TransactionHash)); id != nil {
			if err := getJSON(tx.Bucket(bucketPayments), string(id), &stored); err != nil {
				return err
			}
			return getJSON(tx.Bucket(bucketProposals), stored.ProposalID, &proposal)
		}

		proposals := tx.Bucket(bucketProposals)
		if err := getJSON(proposals, p.ProposalID, &proposal); err != nil {
			return err
		}

		if p.ID == "" {
			p.ID = newID()
		}
		now := time.Now().UTC()
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		p.Status = types.PaymentConfirmed
		p.VerifiedAt = &now
		if err := putJSON(tx.Bucket(bucketPayments), p.ID, p); err != nil {
			return err
		}
		if err := tx.Bucket(bucketPaymentsByTx).Put([]byte(p.TransactionHash), []byte(p.ID)); err != nil {
			return err
		}
		stored = *p

		proposal.CurrentAmount = proposal.CurrentAmount.Add(p.Amount)
		if proposal.Status == types.StatusActive && proposal.CurrentAmount.GreaterThanOrEqual(proposal.GoalAmount) {
			proposal.Status = types.StatusFunded
		}
		proposal.UpdatedAt = now
		return putJSON(proposals, proposal.ID, &proposal)
	})
	if err != nil {
		return nil, nil, err
	}
	return &stored, &proposal, nil
}

func (s *BoltStore) CreateTransaction(t *types.Transaction) error {
	if t.ID == "" {
		t.ID = newID()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTransactions)
		// Append-only: refuse to overwrite an existing record.
		if b.Get([]byte(t.ID)) != nil {
			return fmt.Errorf("%w: transaction %s already recorded", ErrConflict, t.ID)
		}
		return putJSON(b, t.ID, t)
	})
}

func (s *BoltStore) ListTransactions(proposalID string) ([]types.Transaction, error) {
	var out []types.Transaction
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTransactions).ForEach(func(_, v []byte) error {
			var t types.Transaction
			if err := json.Unmarshal(v, &t); err != nil {
				return err
			}
			if proposalID == "" || t.ProposalID == proposalID {
				out = append(out, t)
			}
			return nil
		})
	})
	return out, err
}

func putJSON(b *bolt.Bucket, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put([]byte(key), data)
}

func getJSON(b *bolt.Bucket, key string, v any) error {
	data := b.Get([]byte(key))
	if data == nil {
		return ErrNotFound
	}
	return json.Unmarshal(data, v)
}

func newID() string {
	buf := make([]byte, 12)
	rand.Read(buf)
	return hex.EncodeToString(buf)
}
