package db

import "time"

// EvidenceBlobModel backs the write-once store. The primary key on
// evidence_id is what enforces exactly one write per id; the repository
// maps an insert conflict to the duplicate-key error. Each digest is
// stored under both the primary and the secondary algorithm.
type EvidenceBlobModel struct {
	EvidenceID              string    `gorm:"primaryKey"`
	StorageID               string    `gorm:"type:uuid;uniqueIndex;not null"`
	Ciphertext              []byte    `gorm:"type:bytea;not null"`
	OriginalAlg             string    `gorm:"not null"`
	OriginalDigest          string    `gorm:"not null"`
	OriginalSecondaryAlg    string
	OriginalSecondaryDigest string
	SealedAlg               string    `gorm:"not null"`
	SealedDigest            string    `gorm:"index;not null"`
	SealedSecondaryAlg      string
	SealedSecondaryDigest   string
	Collector               string    `gorm:"not null"`
	CollectedAt             time.Time `gorm:"not null"`
	EncryptedAt             time.Time `gorm:"not null"`
	Location                string    `gorm:"not null"`
	StoredAt                time.Time `gorm:"not null"`
}

func (EvidenceBlobModel) TableName() string {
	return "evidence_blobs"
}

type CustodyChainModel struct {
	EvidenceID  string    `gorm:"primaryKey"`
	Seq         int64     `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null"`
	LastUpdated time.Time `gorm:"not null"`
}

func (CustodyChainModel) TableName() string {
	return "custody_chains"
}

type CustodyEntryModel struct {
	CustodyID  string    `gorm:"type:uuid;primaryKey"`
	EvidenceID string    `gorm:"index:idx_custody_entries_seq,unique;not null"`
	Seq        int64     `gorm:"index:idx_custody_entries_seq,unique;not null"`
	Action     string    `gorm:"not null"`
	Actor      string    `gorm:"not null"`
	Timestamp  time.Time `gorm:"not null"`
	Location   string    `gorm:"not null"`
	Notes      string
	Signature  string    `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null"`
}

func (CustodyEntryModel) TableName() string {
	return "custody_entries"
}

type AccessPolicyModel struct {
	EvidenceID        string    `gorm:"primaryKey"`
	AllowedRequesters string    `gorm:"not null"`
	Level             string    `gorm:"not null"`
	RequiresApproval  bool      `gorm:"not null"`
	AuditRequired     bool      `gorm:"not null"`
	CreatedAt         time.Time `gorm:"not null"`
}

func (AccessPolicyModel) TableName() string {
	return "access_policies"
}

// AccessLogModel marks that a log was opened for an evidence id. Records
// hang off it; a missing row means reads fail as a policy violation.
type AccessLogModel struct {
	EvidenceID string    `gorm:"primaryKey"`
	OpenedAt   time.Time `gorm:"not null"`
}

func (AccessLogModel) TableName() string {
	return "access_logs"
}

type AccessRecordModel struct {
	AccessID      string    `gorm:"type:uuid;primaryKey"`
	EvidenceID    string    `gorm:"index;not null"`
	Requester     string    `gorm:"not null"`
	Timestamp     time.Time `gorm:"not null"`
	Action        string    `gorm:"not null"`
	Justification string
	CreatedAt     time.Time `gorm:"not null"`
}

func (AccessRecordModel) TableName() string {
	return "access_records"
}

type ValidationRecordModel struct {
	ID         int64     `gorm:"primaryKey"`
	EvidenceID string    `gorm:"index;not null"`
	Result     string    `gorm:"not null"`
	Timestamp  time.Time `gorm:"index;not null"`
	Notes      string
	CreatedAt  time.Time `gorm:"not null"`
}

func (ValidationRecordModel) TableName() string {
	return "validation_records"
}
