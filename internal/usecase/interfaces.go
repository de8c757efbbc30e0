package usecase

import (
	"context"
	"time"

	"custodian/internal/domain"
)

type Clock func() time.Time

// EvidenceStore is the write-once content store. Put must be atomic with
// respect to concurrent callers: exactly one write per evidence id
// succeeds, later attempts fail with domain.ErrDuplicateKey. There is no
// update or delete in the contract.
type EvidenceStore interface {
	Put(ctx context.Context, enc domain.EncryptedEvidence) (domain.StorageReceipt, error)
	Get(ctx context.Context, evidenceID string) (*domain.EncryptedEvidence, error)
	Count(ctx context.Context) (int64, error)
}

// ChainRepository persists custody chains. Create writes the chain and
// its first entry as one unit: a chain row without at least one entry
// must never become observable. Append assigns the entry's sequence
// number and custody id and bumps the chain's last_updated; it never
// reorders or rewrites prior entries.
type ChainRepository interface {
	Create(ctx context.Context, chain domain.ChainOfCustody, first domain.CustodyEntry) (domain.CustodyEntry, error)
	Append(ctx context.Context, entry domain.CustodyEntry) (domain.CustodyEntry, error)
	Get(ctx context.Context, evidenceID string) (*domain.ChainOfCustody, error)
}

// AccessRepository persists access policies and the per-evidence
// append-only access log. ListRecords fails with domain.ErrAccessDenied
// when no log was ever opened for the evidence.
type AccessRepository interface {
	CreatePolicy(ctx context.Context, policy domain.AccessPolicy) error
	GetPolicy(ctx context.Context, evidenceID string) (*domain.AccessPolicy, error)
	OpenLog(ctx context.Context, evidenceID string) error
	AppendRecord(ctx context.Context, rec domain.AccessRecord) (domain.AccessRecord, error)
	ListRecords(ctx context.Context, evidenceID string) ([]domain.AccessRecord, error)
}

// ValidationRepository keeps the integrity verifier's rolling history.
type ValidationRepository interface {
	Append(ctx context.Context, rec domain.ValidationRecord) error
	List(ctx context.Context, evidenceID string) ([]domain.ValidationRecord, error)
	Prune(ctx context.Context, evidenceID string, olderThan time.Time) error
}

// Encryptor is the external encryption collaborator. The core never
// inspects key material.
type Encryptor interface {
	EncryptEvidence(ctx context.Context, ev domain.Evidence) (domain.EncryptedEvidence, error)
	DecryptEvidence(ctx context.Context, enc domain.EncryptedEvidence) (domain.Evidence, error)
}

// Approver is the external authorization collaborator consulted when a
// transfer requires dual authorization or an access policy requires
// approval.
type Approver interface {
	ApproveTransfer(ctx context.Context, evidenceID, from, to string) (bool, error)
	ApproveAccess(ctx context.Context, evidenceID, requester string) (bool, error)
}

// SignaturePayload is the canonical input for custody entry signatures.
type SignaturePayload struct {
	EvidenceID string
	Digest     domain.Hash
	Timestamp  time.Time
	Action     domain.CustodyAction
	Actor      string
}

// EntrySigner produces and checks keyed signatures over a canonical
// encoding of the payload. Verify must run in constant time.
type EntrySigner interface {
	Sign(payload SignaturePayload) (string, error)
	Verify(payload SignaturePayload, signature string) error
}

// IntegrityCache memoizes integrity reports for read-heavy callers.
type IntegrityCache interface {
	Get(ctx context.Context, key string) (*domain.IntegrityReport, bool, error)
	Put(ctx context.Context, key string, report domain.IntegrityReport, ttl time.Duration) error
}
