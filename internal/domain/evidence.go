package domain

import "time"

type Hash struct {
	Alg   string `json:"alg"`
	Value string `json:"value"`
}

// Evidence is the unit under custody: immutable content plus collection
// metadata. The service assigns EvidenceID at ingest; content and digest
// never change afterwards.
type Evidence struct {
	EvidenceID      string    `json:"evidence_id"`
	Content         []byte    `json:"content"`
	Digest          Hash      `json:"digest"`
	SecondaryDigest Hash      `json:"secondary_digest"`
	Collector       string    `json:"collector"`
	CollectedAt     time.Time `json:"collected_at"`
}

// EncryptedEvidence is the persisted form. OriginalDigest is the digest of
// the plaintext content recorded at collection time; SealedDigest is the
// digest of the ciphertext recorded at write time, which lets retrieval
// verify integrity before any decryption is attempted. The secondary
// digests are the same two values under the secondary algorithm, recorded
// at the same moments.
type EncryptedEvidence struct {
	EvidenceID              string    `json:"evidence_id"`
	Ciphertext              []byte    `json:"ciphertext"`
	OriginalDigest          Hash      `json:"original_digest"`
	OriginalSecondaryDigest Hash      `json:"original_secondary_digest"`
	SealedDigest            Hash      `json:"sealed_digest"`
	SealedSecondaryDigest   Hash      `json:"sealed_secondary_digest"`
	Collector               string    `json:"collector"`
	CollectedAt             time.Time `json:"collected_at"`
	EncryptedAt             time.Time `json:"encrypted_at"`
}

type StorageReceipt struct {
	EvidenceID  string    `json:"evidence_id"`
	StorageID   string    `json:"storage_id"`
	StorageTime time.Time `json:"storage_time"`
	Location    string    `json:"location"`
	Digest      Hash      `json:"digest"`
}

type EvidenceReceipt struct {
	EvidenceID string         `json:"evidence_id"`
	CustodyID  string         `json:"custody_id"`
	Storage    StorageReceipt `json:"storage_receipt"`
	IssuedAt   time.Time      `json:"issued_at"`
}
