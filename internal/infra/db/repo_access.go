package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"custodian/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AccessRepository struct {
	db *gorm.DB
}

func NewAccessRepository(db *gorm.DB) *AccessRepository {
	return &AccessRepository{db: db}
}

func (r *AccessRepository) CreatePolicy(ctx context.Context, policy domain.AccessPolicy) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model := AccessPolicyModel{
		EvidenceID:        policy.EvidenceID,
		AllowedRequesters: strings.Join(policy.AllowedRequesters, ","),
		Level:             string(policy.Level),
		RequiresApproval:  policy.RequiresApproval,
		AuditRequired:     policy.AuditRequired,
		CreatedAt:         policy.CreatedAt.UTC(),
	}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("access policy for evidence %s already exists: %w", policy.EvidenceID, domain.ErrDuplicateKey)
	}
	return nil
}

func (r *AccessRepository) GetPolicy(ctx context.Context, evidenceID string) (*domain.AccessPolicy, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model AccessPolicyModel
	err := r.db.WithContext(ctx).Where("evidence_id = ?", evidenceID).Take(&model).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var allowed []string
	if model.AllowedRequesters != "" {
		allowed = strings.Split(model.AllowedRequesters, ",")
	}
	return &domain.AccessPolicy{
		EvidenceID:        model.EvidenceID,
		AllowedRequesters: allowed,
		Level:             domain.AccessLevel(model.Level),
		RequiresApproval:  model.RequiresApproval,
		AuditRequired:     model.AuditRequired,
		CreatedAt:         model.CreatedAt.UTC(),
	}, nil
}

func (r *AccessRepository) OpenLog(ctx context.Context, evidenceID string) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model := AccessLogModel{
		EvidenceID: evidenceID,
		OpenedAt:   time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&model).Error
}

func (r *AccessRepository) AppendRecord(ctx context.Context, rec domain.AccessRecord) (domain.AccessRecord, error) {
	if r.db == nil {
		return domain.AccessRecord{}, errDBUnavailable
	}
	if rec.AccessID == "" {
		id, err := newUUID()
		if err != nil {
			return domain.AccessRecord{}, err
		}
		rec.AccessID = id
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var log AccessLogModel
		err := tx.Where("evidence_id = ?", rec.EvidenceID).Take(&log).Error
		if err == gorm.ErrRecordNotFound {
			return fmt.Errorf("no access log for evidence %s: %w", rec.EvidenceID, domain.ErrAccessDenied)
		}
		if err != nil {
			return err
		}
		model := AccessRecordModel{
			AccessID:      rec.AccessID,
			EvidenceID:    rec.EvidenceID,
			Requester:     rec.Requester,
			Timestamp:     rec.Timestamp.UTC(),
			Action:        string(rec.Action),
			Justification: rec.Justification,
			CreatedAt:     time.Now().UTC(),
		}
		return tx.Create(&model).Error
	})
	if err != nil {
		return domain.AccessRecord{}, err
	}
	return rec, nil
}

func (r *AccessRepository) ListRecords(ctx context.Context, evidenceID string) ([]domain.AccessRecord, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var log AccessLogModel
	err := r.db.WithContext(ctx).Where("evidence_id = ?", evidenceID).Take(&log).Error
	if err == gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("no access log for evidence %s: %w", evidenceID, domain.ErrAccessDenied)
	}
	if err != nil {
		return nil, err
	}
	var models []AccessRecordModel
	if err := r.db.WithContext(ctx).
		Where("evidence_id = ?", evidenceID).
		Order("timestamp ASC, access_id ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.AccessRecord, 0, len(models))
	for _, m := range models {
		out = append(out, domain.AccessRecord{
			AccessID:      m.AccessID,
			EvidenceID:    m.EvidenceID,
			Requester:     m.Requester,
			Timestamp:     m.Timestamp.UTC(),
			Action:        domain.AccessAction(m.Action),
			Justification: m.Justification,
		})
	}
	return out, nil
}
