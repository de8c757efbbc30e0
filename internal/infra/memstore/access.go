package memstore

import (
	"context"
	"fmt"
	"sync"

	"custodian/internal/domain"
	"custodian/internal/usecase"
)

// AccessRepository keeps access policies and per-evidence access logs in
// memory. Presence of a log entry slice (even empty) means the log was
// opened; a missing log is a policy violation on read.
type AccessRepository struct {
	mu       sync.RWMutex
	policies map[string]domain.AccessPolicy
	logs     map[string][]domain.AccessRecord
}

func NewAccessRepository() *AccessRepository {
	return &AccessRepository{
		policies: make(map[string]domain.AccessPolicy),
		logs:     make(map[string][]domain.AccessRecord),
	}
}

func (r *AccessRepository) CreatePolicy(ctx context.Context, policy domain.AccessPolicy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.policies[policy.EvidenceID]; exists {
		return fmt.Errorf("access policy for evidence %s already exists: %w", policy.EvidenceID, domain.ErrDuplicateKey)
	}
	stored := policy
	stored.AllowedRequesters = make([]string, len(policy.AllowedRequesters))
	copy(stored.AllowedRequesters, policy.AllowedRequesters)
	r.policies[policy.EvidenceID] = stored
	return nil
}

func (r *AccessRepository) GetPolicy(ctx context.Context, evidenceID string) (*domain.AccessPolicy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	policy, ok := r.policies[evidenceID]
	if !ok {
		return nil, nil
	}
	out := policy
	out.AllowedRequesters = make([]string, len(policy.AllowedRequesters))
	copy(out.AllowedRequesters, policy.AllowedRequesters)
	return &out, nil
}

func (r *AccessRepository) OpenLog(ctx context.Context, evidenceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.logs[evidenceID]; !exists {
		r.logs[evidenceID] = []domain.AccessRecord{}
	}
	return nil
}

func (r *AccessRepository) AppendRecord(ctx context.Context, rec domain.AccessRecord) (domain.AccessRecord, error) {
	if rec.AccessID == "" {
		id, err := newUUID()
		if err != nil {
			return domain.AccessRecord{}, err
		}
		rec.AccessID = id
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.logs[rec.EvidenceID]; !exists {
		return domain.AccessRecord{}, fmt.Errorf("no access log for evidence %s: %w", rec.EvidenceID, domain.ErrAccessDenied)
	}
	r.logs[rec.EvidenceID] = append(r.logs[rec.EvidenceID], rec)
	return rec, nil
}

func (r *AccessRepository) ListRecords(ctx context.Context, evidenceID string) ([]domain.AccessRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	records, ok := r.logs[evidenceID]
	if !ok {
		return nil, fmt.Errorf("no access log for evidence %s: %w", evidenceID, domain.ErrAccessDenied)
	}
	out := make([]domain.AccessRecord, len(records))
	copy(out, records)
	return out, nil
}

var _ usecase.AccessRepository = (*AccessRepository)(nil)
