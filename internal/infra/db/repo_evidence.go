package db

import (
	"context"
	"fmt"
	"time"

	"custodian/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EvidenceRepository is the durable write-once store. Write-once is
// enforced by the primary key on evidence_id: the insert runs with
// ON CONFLICT DO NOTHING and zero affected rows means another writer won.
type EvidenceRepository struct {
	db       *gorm.DB
	location string
}

func NewEvidenceRepository(db *gorm.DB, location string) *EvidenceRepository {
	if location == "" {
		location = "postgres"
	}
	return &EvidenceRepository{db: db, location: location}
}

func (r *EvidenceRepository) Put(ctx context.Context, enc domain.EncryptedEvidence) (domain.StorageReceipt, error) {
	if r.db == nil {
		return domain.StorageReceipt{}, errDBUnavailable
	}
	if enc.EvidenceID == "" {
		return domain.StorageReceipt{}, fmt.Errorf("evidence id is required: %w", domain.ErrValidation)
	}
	storageID, err := newUUID()
	if err != nil {
		return domain.StorageReceipt{}, err
	}
	now := time.Now().UTC()
	model := EvidenceBlobModel{
		EvidenceID:              enc.EvidenceID,
		StorageID:               storageID,
		Ciphertext:              enc.Ciphertext,
		OriginalAlg:             enc.OriginalDigest.Alg,
		OriginalDigest:          enc.OriginalDigest.Value,
		OriginalSecondaryAlg:    enc.OriginalSecondaryDigest.Alg,
		OriginalSecondaryDigest: enc.OriginalSecondaryDigest.Value,
		SealedAlg:               enc.SealedDigest.Alg,
		SealedDigest:            enc.SealedDigest.Value,
		SealedSecondaryAlg:      enc.SealedSecondaryDigest.Alg,
		SealedSecondaryDigest:   enc.SealedSecondaryDigest.Value,
		Collector:               enc.Collector,
		CollectedAt:             enc.CollectedAt.UTC(),
		EncryptedAt:             enc.EncryptedAt.UTC(),
		Location:                r.location,
		StoredAt:                now,
	}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&model)
	if result.Error != nil {
		return domain.StorageReceipt{}, result.Error
	}
	if result.RowsAffected == 0 {
		return domain.StorageReceipt{}, fmt.Errorf("evidence %s already stored: %w", enc.EvidenceID, domain.ErrDuplicateKey)
	}
	return domain.StorageReceipt{
		EvidenceID:  enc.EvidenceID,
		StorageID:   storageID,
		StorageTime: now,
		Location:    r.location,
		Digest:      enc.SealedDigest,
	}, nil
}

func (r *EvidenceRepository) Get(ctx context.Context, evidenceID string) (*domain.EncryptedEvidence, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model EvidenceBlobModel
	err := r.db.WithContext(ctx).Where("evidence_id = ?", evidenceID).Take(&model).Error
	if err == gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("evidence %s: %w", evidenceID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &domain.EncryptedEvidence{
		EvidenceID:              model.EvidenceID,
		Ciphertext:              copyBytes(model.Ciphertext),
		OriginalDigest:          domain.Hash{Alg: model.OriginalAlg, Value: model.OriginalDigest},
		OriginalSecondaryDigest: domain.Hash{Alg: model.OriginalSecondaryAlg, Value: model.OriginalSecondaryDigest},
		SealedDigest:            domain.Hash{Alg: model.SealedAlg, Value: model.SealedDigest},
		SealedSecondaryDigest:   domain.Hash{Alg: model.SealedSecondaryAlg, Value: model.SealedSecondaryDigest},
		Collector:               model.Collector,
		CollectedAt:             model.CollectedAt.UTC(),
		EncryptedAt:             model.EncryptedAt.UTC(),
	}, nil
}

func (r *EvidenceRepository) Count(ctx context.Context) (int64, error) {
	if r.db == nil {
		return 0, errDBUnavailable
	}
	var count int64
	if err := r.db.WithContext(ctx).Model(&EvidenceBlobModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
