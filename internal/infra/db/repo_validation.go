package db

import (
	"context"
	"time"

	"custodian/internal/domain"

	"gorm.io/gorm"
)

type ValidationRepository struct {
	db *gorm.DB
}

func NewValidationRepository(db *gorm.DB) *ValidationRepository {
	return &ValidationRepository{db: db}
}

func (r *ValidationRepository) Append(ctx context.Context, rec domain.ValidationRecord) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model := ValidationRecordModel{
		EvidenceID: rec.EvidenceID,
		Result:     string(rec.Result),
		Timestamp:  rec.Timestamp.UTC(),
		Notes:      rec.Notes,
		CreatedAt:  time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *ValidationRepository) List(ctx context.Context, evidenceID string) ([]domain.ValidationRecord, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []ValidationRecordModel
	if err := r.db.WithContext(ctx).
		Where("evidence_id = ?", evidenceID).
		Order("timestamp ASC, id ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.ValidationRecord, 0, len(models))
	for _, m := range models {
		out = append(out, domain.ValidationRecord{
			EvidenceID: m.EvidenceID,
			Result:     domain.ValidationResult(m.Result),
			Timestamp:  m.Timestamp.UTC(),
			Notes:      m.Notes,
		})
	}
	return out, nil
}

func (r *ValidationRepository) Prune(ctx context.Context, evidenceID string, olderThan time.Time) error {
	if r.db == nil {
		return errDBUnavailable
	}
	return r.db.WithContext(ctx).
		Where("evidence_id = ? AND timestamp < ?", evidenceID, olderThan.UTC()).
		Delete(&ValidationRecordModel{}).Error
}
