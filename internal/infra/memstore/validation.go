package memstore

import (
	"context"
	"sync"
	"time"

	"custodian/internal/domain"
	"custodian/internal/usecase"
)

// ValidationRepository keeps the verifier's rolling history in memory.
type ValidationRepository struct {
	mu      sync.RWMutex
	records map[string][]domain.ValidationRecord
}

func NewValidationRepository() *ValidationRepository {
	return &ValidationRepository{records: make(map[string][]domain.ValidationRecord)}
}

func (r *ValidationRepository) Append(ctx context.Context, rec domain.ValidationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.EvidenceID] = append(r.records[rec.EvidenceID], rec)
	return nil
}

func (r *ValidationRepository) List(ctx context.Context, evidenceID string) ([]domain.ValidationRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	records := r.records[evidenceID]
	out := make([]domain.ValidationRecord, len(records))
	copy(out, records)
	return out, nil
}

func (r *ValidationRepository) Prune(ctx context.Context, evidenceID string, olderThan time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	records := r.records[evidenceID]
	kept := records[:0]
	for _, rec := range records {
		if !rec.Timestamp.Before(olderThan) {
			kept = append(kept, rec)
		}
	}
	r.records[evidenceID] = kept
	return nil
}

var _ usecase.ValidationRepository = (*ValidationRepository)(nil)
