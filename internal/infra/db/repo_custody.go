package db

import (
	"context"
	"fmt"
	"time"

	"custodian/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChainRepository persists custody chains. Append assigns the next
// sequence number under a row lock on the chain, so concurrent appends
// for one evidence id serialize at the database.
type ChainRepository struct {
	db *gorm.DB
}

func NewChainRepository(db *gorm.DB) *ChainRepository {
	return &ChainRepository{db: db}
}

// Create inserts the chain row and the first entry in one transaction.
// Either both land or neither does; a failure partway leaves no empty
// chain row behind.
func (r *ChainRepository) Create(ctx context.Context, chain domain.ChainOfCustody, first domain.CustodyEntry) (domain.CustodyEntry, error) {
	if r.db == nil {
		return domain.CustodyEntry{}, errDBUnavailable
	}
	if first.CustodyID == "" {
		id, err := newUUID()
		if err != nil {
			return domain.CustodyEntry{}, err
		}
		first.CustodyID = id
	}
	first.Seq = 1
	first.Timestamp = first.Timestamp.UTC()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model := CustodyChainModel{
			EvidenceID:  chain.EvidenceID,
			Seq:         first.Seq,
			CreatedAt:   chain.CreatedAt.UTC(),
			LastUpdated: first.Timestamp,
		}
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&model)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("chain for evidence %s already exists: %w", chain.EvidenceID, domain.ErrDuplicateKey)
		}
		entryModel := CustodyEntryModel{
			CustodyID:  first.CustodyID,
			EvidenceID: first.EvidenceID,
			Seq:        first.Seq,
			Action:     string(first.Action),
			Actor:      first.Actor,
			Timestamp:  first.Timestamp,
			Location:   first.Location,
			Notes:      first.Notes,
			Signature:  first.Signature,
			CreatedAt:  time.Now().UTC(),
		}
		return tx.Create(&entryModel).Error
	})
	if err != nil {
		return domain.CustodyEntry{}, err
	}
	return first, nil
}

func (r *ChainRepository) Append(ctx context.Context, entry domain.CustodyEntry) (domain.CustodyEntry, error) {
	if r.db == nil {
		return domain.CustodyEntry{}, errDBUnavailable
	}
	if entry.CustodyID == "" {
		id, err := newUUID()
		if err != nil {
			return domain.CustodyEntry{}, err
		}
		entry.CustodyID = id
	}
	entry.Timestamp = entry.Timestamp.UTC()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var chain CustodyChainModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("evidence_id = ?", entry.EvidenceID).
			Take(&chain).Error
		if err == gorm.ErrRecordNotFound {
			return fmt.Errorf("chain for evidence %s: %w", entry.EvidenceID, domain.ErrNotFound)
		}
		if err != nil {
			return err
		}
		entry.Seq = chain.Seq + 1
		model := CustodyEntryModel{
			CustodyID:  entry.CustodyID,
			EvidenceID: entry.EvidenceID,
			Seq:        entry.Seq,
			Action:     string(entry.Action),
			Actor:      entry.Actor,
			Timestamp:  entry.Timestamp,
			Location:   entry.Location,
			Notes:      entry.Notes,
			Signature:  entry.Signature,
			CreatedAt:  time.Now().UTC(),
		}
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		return tx.Model(&CustodyChainModel{}).
			Where("evidence_id = ?", entry.EvidenceID).
			Updates(map[string]any{"seq": entry.Seq, "last_updated": entry.Timestamp}).Error
	})
	if err != nil {
		return domain.CustodyEntry{}, err
	}
	return entry, nil
}

func (r *ChainRepository) Get(ctx context.Context, evidenceID string) (*domain.ChainOfCustody, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var chain CustodyChainModel
	err := r.db.WithContext(ctx).Where("evidence_id = ?", evidenceID).Take(&chain).Error
	if err == gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("chain for evidence %s: %w", evidenceID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var models []CustodyEntryModel
	if err := r.db.WithContext(ctx).
		Where("evidence_id = ?", evidenceID).
		Order("seq ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	entries := make([]domain.CustodyEntry, 0, len(models))
	for _, m := range models {
		entries = append(entries, domain.CustodyEntry{
			CustodyID:  m.CustodyID,
			EvidenceID: m.EvidenceID,
			Seq:        m.Seq,
			Action:     domain.CustodyAction(m.Action),
			Actor:      m.Actor,
			Timestamp:  m.Timestamp.UTC(),
			Location:   m.Location,
			Notes:      m.Notes,
			Signature:  m.Signature,
		})
	}
	return &domain.ChainOfCustody{
		EvidenceID:  chain.EvidenceID,
		Entries:     entries,
		CreatedAt:   chain.CreatedAt.UTC(),
		LastUpdated: chain.LastUpdated.UTC(),
	}, nil
}
