package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"custodian/internal/domain"
	"custodian/internal/usecase"
)

// EvidenceStore is the in-memory write-once store used in no-db mode and
// tests. Check-and-insert happens under one lock, so concurrent puts for
// the same id resolve to exactly one winner.
type EvidenceStore struct {
	mu       sync.RWMutex
	blobs    map[string]domain.EncryptedEvidence
	location string
	now      func() time.Time
}

func NewEvidenceStore(location string) *EvidenceStore {
	if location == "" {
		location = "memory"
	}
	return &EvidenceStore{
		blobs:    make(map[string]domain.EncryptedEvidence),
		location: location,
		now:      time.Now,
	}
}

func (s *EvidenceStore) Put(ctx context.Context, enc domain.EncryptedEvidence) (domain.StorageReceipt, error) {
	if enc.EvidenceID == "" {
		return domain.StorageReceipt{}, fmt.Errorf("evidence id is required: %w", domain.ErrValidation)
	}
	storageID, err := newUUID()
	if err != nil {
		return domain.StorageReceipt{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.blobs[enc.EvidenceID]; exists {
		return domain.StorageReceipt{}, fmt.Errorf("evidence %s already stored: %w", enc.EvidenceID, domain.ErrDuplicateKey)
	}
	stored := enc
	stored.Ciphertext = copyBytes(enc.Ciphertext)
	s.blobs[enc.EvidenceID] = stored

	return domain.StorageReceipt{
		EvidenceID:  enc.EvidenceID,
		StorageID:   storageID,
		StorageTime: s.now().UTC(),
		Location:    s.location,
		Digest:      enc.SealedDigest,
	}, nil
}

func (s *EvidenceStore) Get(ctx context.Context, evidenceID string) (*domain.EncryptedEvidence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	enc, ok := s.blobs[evidenceID]
	if !ok {
		return nil, fmt.Errorf("evidence %s: %w", evidenceID, domain.ErrNotFound)
	}
	out := enc
	out.Ciphertext = copyBytes(enc.Ciphertext)
	return &out, nil
}

func (s *EvidenceStore) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.blobs)), nil
}

// Tamper overwrites stored ciphertext in place. It exists for tamper
// detection tests only and is not part of the store contract.
func (s *EvidenceStore) Tamper(evidenceID string, ciphertext []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if enc, ok := s.blobs[evidenceID]; ok {
		enc.Ciphertext = copyBytes(ciphertext)
		s.blobs[evidenceID] = enc
	}
}

var _ usecase.EvidenceStore = (*EvidenceStore)(nil)
