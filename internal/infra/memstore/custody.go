package memstore

import (
	"context"
	"fmt"
	"sync"

	"custodian/internal/domain"
	"custodian/internal/usecase"
)

// ChainRepository keeps custody chains in memory. Entries only ever
// append; prior entries are never altered or removed.
type ChainRepository struct {
	mu     sync.RWMutex
	chains map[string]*domain.ChainOfCustody
}

func NewChainRepository() *ChainRepository {
	return &ChainRepository{chains: make(map[string]*domain.ChainOfCustody)}
}

// Create installs the chain together with its first entry under one lock
// hold. A chain is never observable without an entry.
func (r *ChainRepository) Create(ctx context.Context, chain domain.ChainOfCustody, first domain.CustodyEntry) (domain.CustodyEntry, error) {
	if first.CustodyID == "" {
		id, err := newUUID()
		if err != nil {
			return domain.CustodyEntry{}, err
		}
		first.CustodyID = id
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.chains[chain.EvidenceID]; exists {
		return domain.CustodyEntry{}, fmt.Errorf("chain for evidence %s already exists: %w", chain.EvidenceID, domain.ErrDuplicateKey)
	}
	first.Seq = 1
	stored := chain
	stored.Entries = []domain.CustodyEntry{first}
	stored.LastUpdated = first.Timestamp
	r.chains[chain.EvidenceID] = &stored
	return first, nil
}

func (r *ChainRepository) Append(ctx context.Context, entry domain.CustodyEntry) (domain.CustodyEntry, error) {
	if entry.CustodyID == "" {
		id, err := newUUID()
		if err != nil {
			return domain.CustodyEntry{}, err
		}
		entry.CustodyID = id
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	chain, ok := r.chains[entry.EvidenceID]
	if !ok {
		return domain.CustodyEntry{}, fmt.Errorf("chain for evidence %s: %w", entry.EvidenceID, domain.ErrNotFound)
	}
	entry.Seq = int64(len(chain.Entries)) + 1
	chain.Entries = append(chain.Entries, entry)
	chain.LastUpdated = entry.Timestamp
	return entry, nil
}

func (r *ChainRepository) Get(ctx context.Context, evidenceID string) (*domain.ChainOfCustody, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	chain, ok := r.chains[evidenceID]
	if !ok {
		return nil, fmt.Errorf("chain for evidence %s: %w", evidenceID, domain.ErrNotFound)
	}
	out := *chain
	out.Entries = make([]domain.CustodyEntry, len(chain.Entries))
	copy(out.Entries, chain.Entries)
	return &out, nil
}

var _ usecase.ChainRepository = (*ChainRepository)(nil)
