package usecase

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"custodian/internal/domain"
)

var requesterPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,255}$`)

// CustodyLedger owns the per-evidence append-only custody chains. All
// mutations for a single evidence id are serialized through a per-key
// lock; reads and writes for unrelated ids do not block each other.
type CustodyLedger struct {
	Chains   ChainRepository
	Access   AccessRepository
	Signer   EntrySigner
	Rules    domain.ValidationRuleSet
	Transfer domain.TransferProtocol
	Approver Approver
	Clock    Clock

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewCustodyLedger(chains ChainRepository, access AccessRepository, signer EntrySigner) *CustodyLedger {
	return &CustodyLedger{
		Chains:   chains,
		Access:   access,
		Signer:   signer,
		Rules:    domain.DefaultValidationRuleSet(),
		Transfer: domain.DefaultTransferProtocol(),
		locks:    make(map[string]*sync.Mutex),
	}
}

// CreateEntry opens the chain for newly collected evidence. The first
// entry's action is always collection and the paired access log is opened
// empty alongside it.
func (l *CustodyLedger) CreateEntry(ctx context.Context, ev domain.Evidence) (domain.CustodyEntry, error) {
	if ev.EvidenceID == "" {
		return domain.CustodyEntry{}, fmt.Errorf("evidence id is required: %w", domain.ErrValidation)
	}
	now := l.now()
	entry := domain.CustodyEntry{
		EvidenceID: ev.EvidenceID,
		Action:     domain.ActionCollection,
		Actor:      ev.Collector,
		Timestamp:  now,
		Location:   "intake",
	}
	signature, err := l.sign(ev.EvidenceID, ev.Digest, entry)
	if err != nil {
		return domain.CustodyEntry{}, err
	}
	entry.Signature = signature

	unlock := l.lock(ev.EvidenceID)
	defer unlock()

	chain := domain.ChainOfCustody{
		EvidenceID:  ev.EvidenceID,
		CreatedAt:   now,
		LastUpdated: now,
	}
	// The chain row and the collection entry land together, so no reader
	// can ever observe an empty chain.
	appended, err := l.Chains.Create(ctx, chain, entry)
	if err != nil {
		return domain.CustodyEntry{}, err
	}
	if err := l.Access.OpenLog(ctx, ev.EvidenceID); err != nil {
		return domain.CustodyEntry{}, err
	}
	return appended, nil
}

// AddEntry applies the validation rule set before appending. Rejections
// name the violated rule and leave the chain untouched.
func (l *CustodyLedger) AddEntry(ctx context.Context, entry domain.CustodyEntry) (domain.CustodyEntry, error) {
	if entry.EvidenceID == "" {
		return domain.CustodyEntry{}, fmt.Errorf("evidence id is required: %w", domain.ErrValidation)
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = l.now()
	}

	unlock := l.lock(entry.EvidenceID)
	defer unlock()

	chain, err := l.Chains.Get(ctx, entry.EvidenceID)
	if err != nil {
		return domain.CustodyEntry{}, err
	}
	if err := l.checkRules(*chain, entry); err != nil {
		return domain.CustodyEntry{}, err
	}
	return l.Chains.Append(ctx, entry)
}

// TransferEvidence constructs a transfer entry and runs the transfer
// protocol on top of the ordinary rule set. A timed-out transfer is
// retryable with fresh timestamps, never resubmitted as-is.
func (l *CustodyLedger) TransferEvidence(ctx context.Context, evidenceID, from, to, notes string) (domain.CustodyEntry, error) {
	if from == "" || to == "" {
		return domain.CustodyEntry{}, fmt.Errorf("evidence %s: transfer requires both custodians: %w", evidenceID, domain.ErrValidation)
	}
	now := l.now()

	unlock := l.lock(evidenceID)
	defer unlock()

	chain, err := l.Chains.Get(ctx, evidenceID)
	if err != nil {
		return domain.CustodyEntry{}, err
	}
	if l.Transfer.TransferTimeout > 0 && len(chain.Entries) > 0 {
		elapsed := now.Sub(chain.LastUpdated)
		if elapsed > l.Transfer.TransferTimeout {
			return domain.CustodyEntry{}, fmt.Errorf(
				"evidence %s: transfer timeout: %s elapsed since last entry, limit %s: %w",
				evidenceID, elapsed.Round(time.Second), l.Transfer.TransferTimeout, domain.ErrChainOfCustody)
		}
	}
	if l.Transfer.RequireDualAuthorization {
		if l.Approver == nil {
			return domain.CustodyEntry{}, fmt.Errorf(
				"evidence %s: dual authorization required but no approver configured: %w",
				evidenceID, domain.ErrChainOfCustody)
		}
		ok, err := l.Approver.ApproveTransfer(ctx, evidenceID, from, to)
		if err != nil {
			return domain.CustodyEntry{}, fmt.Errorf("evidence %s: dual authorization check: %w", evidenceID, err)
		}
		if !ok {
			return domain.CustodyEntry{}, fmt.Errorf(
				"evidence %s: dual authorization denied for %s -> %s: %w",
				evidenceID, from, to, domain.ErrChainOfCustody)
		}
	}

	entry := domain.CustodyEntry{
		EvidenceID: evidenceID,
		Action:     domain.ActionTransfer,
		Actor:      to,
		Timestamp:  now,
		Location:   "transfer",
		Notes:      fmt.Sprintf("from %s to %s: %s", from, to, notes),
	}
	signature, err := l.sign(evidenceID, domain.Hash{}, entry)
	if err != nil {
		return domain.CustodyEntry{}, err
	}
	entry.Signature = signature

	if err := l.checkRules(*chain, entry); err != nil {
		return domain.CustodyEntry{}, err
	}
	return l.Chains.Append(ctx, entry)
}

// RecordAccess validates the requester before appending to the access
// log. Invalid input fails with ErrValidation and performs no mutation.
func (l *CustodyLedger) RecordAccess(ctx context.Context, evidenceID, requester string, action domain.AccessAction, justification string) (domain.AccessRecord, error) {
	if !requesterPattern.MatchString(requester) {
		return domain.AccessRecord{}, fmt.Errorf(
			"evidence %s: requester must be 1-255 chars of [A-Za-z0-9._-]: %w",
			evidenceID, domain.ErrValidation)
	}
	rec := domain.AccessRecord{
		EvidenceID:    evidenceID,
		Requester:     requester,
		Timestamp:     l.now(),
		Action:        action,
		Justification: justification,
	}

	unlock := l.lock(evidenceID)
	defer unlock()
	return l.Access.AppendRecord(ctx, rec)
}

// GetChain returns a full copy of the chain, or ErrNotFound.
func (l *CustodyLedger) GetChain(ctx context.Context, evidenceID string) (domain.ChainOfCustody, error) {
	chain, err := l.Chains.Get(ctx, evidenceID)
	if err != nil {
		return domain.ChainOfCustody{}, err
	}
	out := *chain
	out.Entries = make([]domain.CustodyEntry, len(chain.Entries))
	copy(out.Entries, chain.Entries)
	return out, nil
}

// VerifyChain checks structural validity and flags oversized gaps between
// consecutive entries, one indexed issue string per offending pair.
func (l *CustodyLedger) VerifyChain(ctx context.Context, evidenceID string) (domain.ChainVerification, error) {
	chain, err := l.Chains.Get(ctx, evidenceID)
	if err != nil {
		return domain.ChainVerification{}, err
	}
	verification := domain.ChainVerification{
		EvidenceID: evidenceID,
		IsValid:    true,
	}
	if len(chain.Entries) == 0 {
		verification.IsValid = false
		verification.Issues = append(verification.Issues, "chain has no entries")
		return verification, nil
	}
	if chain.Entries[0].Action != domain.ActionCollection {
		verification.IsValid = false
		verification.Issues = append(verification.Issues,
			fmt.Sprintf("first entry action is %q, expected %q", chain.Entries[0].Action, domain.ActionCollection))
	}
	if l.Rules.MaxGap > 0 {
		for i := 1; i < len(chain.Entries); i++ {
			gap := chain.Entries[i].Timestamp.Sub(chain.Entries[i-1].Timestamp)
			if gap > l.Rules.MaxGap {
				verification.IsValid = false
				verification.Issues = append(verification.Issues,
					fmt.Sprintf("gap of %s between entries %d and %d exceeds limit %s",
						gap.Round(time.Second), i-1, i, l.Rules.MaxGap))
			}
		}
	}
	return verification, nil
}

func (l *CustodyLedger) checkRules(chain domain.ChainOfCustody, entry domain.CustodyEntry) error {
	if l.Rules.RequireTimestamps && len(chain.Entries) > 0 && entry.Timestamp.Before(chain.LastUpdated) {
		return fmt.Errorf(
			"evidence %s: entry timestamp %s precedes chain last update %s: %w",
			entry.EvidenceID, entry.Timestamp.Format(time.RFC3339), chain.LastUpdated.Format(time.RFC3339),
			domain.ErrChainOfCustody)
	}
	if l.Rules.RequireSignatures && entry.Signature == "" {
		return fmt.Errorf("evidence %s: entry signature is required: %w", entry.EvidenceID, domain.ErrChainOfCustody)
	}
	if !l.Rules.Allows(entry.Action) {
		return fmt.Errorf("evidence %s: action %q is not allowed: %w", entry.EvidenceID, entry.Action, domain.ErrChainOfCustody)
	}
	return nil
}

func (l *CustodyLedger) sign(evidenceID string, digest domain.Hash, entry domain.CustodyEntry) (string, error) {
	if l.Signer == nil {
		return "", fmt.Errorf("evidence %s: entry signer not configured: %w", evidenceID, domain.ErrChainOfCustody)
	}
	return l.Signer.Sign(SignaturePayload{
		EvidenceID: evidenceID,
		Digest:     digest,
		Timestamp:  entry.Timestamp,
		Action:     entry.Action,
		Actor:      entry.Actor,
	})
}

// lock serializes mutations per evidence id. Lock values are retained for
// the process lifetime; the key space is bounded by stored evidence.
func (l *CustodyLedger) lock(evidenceID string) func() {
	l.mu.Lock()
	keyLock, ok := l.locks[evidenceID]
	if !ok {
		keyLock = &sync.Mutex{}
		l.locks[evidenceID] = keyLock
	}
	l.mu.Unlock()
	keyLock.Lock()
	return keyLock.Unlock
}

func (l *CustodyLedger) now() time.Time {
	if l.Clock != nil {
		return l.Clock().UTC()
	}
	return time.Now().UTC()
}
