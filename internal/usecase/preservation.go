package usecase

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"custodian/internal/domain"
)

// PreservationService sequences the cross-component calls for store,
// retrieve, verify, and audit-report. It is the only component allowed to
// do so; the leaf components never call each other.
type PreservationService struct {
	Store     EvidenceStore
	Verifier  *IntegrityVerifier
	Ledger    *CustodyLedger
	Access    *AccessControl
	Encryptor Encryptor
	Cache     IntegrityCache
	CacheTTL  time.Duration
	Location  string
	Clock     Clock

	opsTotal  atomic.Int64
	opsFailed atomic.Int64
}

// StoreEvidence runs validate -> encrypt -> store -> open custody ->
// access policy, so a storage failure precedes any custody or log
// creation. A failure after the blob write surfaces the receipt in the
// error; the write-once store guarantees no second blob for the id.
func (s *PreservationService) StoreEvidence(ctx context.Context, ev domain.Evidence) (domain.EvidenceReceipt, error) {
	receipt, err := s.storeEvidence(ctx, ev)
	s.track(err)
	return receipt, err
}

func (s *PreservationService) storeEvidence(ctx context.Context, ev domain.Evidence) (domain.EvidenceReceipt, error) {
	if err := s.Verifier.ValidateEvidence(ctx, ev); err != nil {
		return domain.EvidenceReceipt{}, err
	}

	enc, err := s.Encryptor.EncryptEvidence(ctx, ev)
	if err != nil {
		return domain.EvidenceReceipt{}, fmt.Errorf("evidence %s: encrypt: %w", ev.EvidenceID, err)
	}
	// Hash the ciphertext before any per-key work so critical sections
	// stay short.
	sealed, err := s.Verifier.CalculateHash(enc.Ciphertext, s.Verifier.PrimaryAlg)
	if err != nil {
		return domain.EvidenceReceipt{}, err
	}
	enc.SealedDigest = domain.Hash{Alg: s.Verifier.PrimaryAlg, Value: sealed}
	if alg := s.Verifier.SecondaryAlg; alg != "" && alg != s.Verifier.PrimaryAlg {
		sealed2, err := s.Verifier.CalculateHash(enc.Ciphertext, alg)
		if err != nil {
			return domain.EvidenceReceipt{}, err
		}
		enc.SealedSecondaryDigest = domain.Hash{Alg: alg, Value: sealed2}
	}

	storageReceipt, err := s.Store.Put(ctx, enc)
	if err != nil {
		return domain.EvidenceReceipt{}, err
	}
	if storageReceipt.Location == "" {
		storageReceipt.Location = s.Location
	}

	first, err := s.Ledger.CreateEntry(ctx, ev)
	if err != nil {
		return domain.EvidenceReceipt{}, fmt.Errorf(
			"evidence %s stored as %s but custody chain not opened: %w",
			ev.EvidenceID, storageReceipt.StorageID, err)
	}
	if _, err := s.Access.CreateAccessRules(ctx, storageReceipt); err != nil {
		return domain.EvidenceReceipt{}, fmt.Errorf(
			"evidence %s stored as %s but access policy not created: %w",
			ev.EvidenceID, storageReceipt.StorageID, err)
	}

	return domain.EvidenceReceipt{
		EvidenceID: ev.EvidenceID,
		CustodyID:  first.CustodyID,
		Storage:    storageReceipt,
		IssuedAt:   s.now(),
	}, nil
}

// RetrieveEvidence fails closed: any integrity violation aborts before
// decryption, and the access log is only appended once verification and
// decryption have both succeeded.
func (s *PreservationService) RetrieveEvidence(ctx context.Context, evidenceID, requester string) (domain.Evidence, error) {
	ev, err := s.retrieveEvidence(ctx, evidenceID, requester)
	s.track(err)
	return ev, err
}

func (s *PreservationService) retrieveEvidence(ctx context.Context, evidenceID, requester string) (domain.Evidence, error) {
	if err := s.Access.VerifyAccess(ctx, evidenceID, requester); err != nil {
		return domain.Evidence{}, err
	}
	enc, err := s.Store.Get(ctx, evidenceID)
	if err != nil {
		return domain.Evidence{}, err
	}
	if err := s.verifySealed(ctx, *enc); err != nil {
		return domain.Evidence{}, err
	}
	ev, err := s.Encryptor.DecryptEvidence(ctx, *enc)
	if err != nil {
		return domain.Evidence{}, fmt.Errorf("evidence %s: decrypt: %w", evidenceID, err)
	}
	if err := s.Verifier.ValidateEvidence(ctx, ev); err != nil {
		return domain.Evidence{}, err
	}
	if _, err := s.Ledger.RecordAccess(ctx, evidenceID, requester, domain.AccessView, "evidence retrieval"); err != nil {
		return domain.Evidence{}, err
	}
	return ev, nil
}

// VerifyEvidenceIntegrity runs the integrity checks over the sealed form,
// without requiring decryption.
func (s *PreservationService) VerifyEvidenceIntegrity(ctx context.Context, evidenceID string) (domain.IntegrityReport, error) {
	report, err := s.verifyEvidenceIntegrity(ctx, evidenceID)
	s.track(err)
	return report, err
}

func (s *PreservationService) verifyEvidenceIntegrity(ctx context.Context, evidenceID string) (domain.IntegrityReport, error) {
	if s.Cache != nil && s.CacheTTL > 0 {
		if cached, ok, err := s.Cache.Get(ctx, evidenceID); err == nil && ok {
			return *cached, nil
		}
	}
	enc, err := s.Store.Get(ctx, evidenceID)
	if err != nil {
		return domain.IntegrityReport{}, err
	}
	report, err := s.Verifier.VerifyIntegrity(ctx, sealedView(*enc))
	if err != nil {
		return domain.IntegrityReport{}, err
	}
	if s.Cache != nil && s.CacheTTL > 0 && report.OverallValid {
		_ = s.Cache.Put(ctx, evidenceID, report, s.CacheTTL)
	}
	return report, nil
}

// GenerateAuditReport composes the chain, the latest integrity verdict,
// and the access log into one export record.
func (s *PreservationService) GenerateAuditReport(ctx context.Context, evidenceID string) (domain.AuditReport, error) {
	chain, err := s.Ledger.GetChain(ctx, evidenceID)
	if err != nil {
		return domain.AuditReport{}, err
	}
	report, err := s.verifyEvidenceIntegrity(ctx, evidenceID)
	if err != nil {
		return domain.AuditReport{}, err
	}
	accessLog, err := s.Access.GetAccessLog(ctx, evidenceID)
	if err != nil {
		return domain.AuditReport{}, err
	}
	return domain.AuditReport{
		EvidenceID:  evidenceID,
		Chain:       chain,
		Integrity:   &report,
		AccessLog:   accessLog,
		GeneratedAt: s.now(),
	}, nil
}

// SystemStatus aggregates the stored-evidence count and a reliability
// score derived from the outcomes of preservation operations since
// startup (1.0 when none have run).
func (s *PreservationService) SystemStatus(ctx context.Context) (domain.SystemStatus, error) {
	count, err := s.Store.Count(ctx)
	if err != nil {
		return domain.SystemStatus{}, err
	}
	total := s.opsTotal.Load()
	failed := s.opsFailed.Load()
	score := 1.0
	if total > 0 {
		score = float64(total-failed) / float64(total)
	}
	return domain.SystemStatus{
		EvidenceCount:    count,
		ReliabilityScore: score,
		GeneratedAt:      s.now(),
	}, nil
}

func (s *PreservationService) verifySealed(ctx context.Context, enc domain.EncryptedEvidence) error {
	if enc.SealedDigest.Value == "" {
		return fmt.Errorf("evidence %s: no sealed digest on record: %w", enc.EvidenceID, domain.ErrIntegrityViolation)
	}
	computed, err := s.Verifier.CalculateHash(enc.Ciphertext, enc.SealedDigest.Alg)
	if err != nil {
		return err
	}
	if computed != enc.SealedDigest.Value {
		return fmt.Errorf(
			"evidence %s: sealed %s digest mismatch: expected %s got %s: %w",
			enc.EvidenceID, enc.SealedDigest.Alg, enc.SealedDigest.Value, computed, domain.ErrIntegrityViolation)
	}
	return nil
}

func sealedView(enc domain.EncryptedEvidence) domain.Evidence {
	return domain.Evidence{
		EvidenceID:      enc.EvidenceID,
		Content:         enc.Ciphertext,
		Digest:          enc.SealedDigest,
		SecondaryDigest: enc.SealedSecondaryDigest,
		Collector:       enc.Collector,
		CollectedAt:     enc.CollectedAt,
	}
}

func (s *PreservationService) track(err error) {
	s.opsTotal.Add(1)
	if err != nil {
		s.opsFailed.Add(1)
	}
}

func (s *PreservationService) now() time.Time {
	if s.Clock != nil {
		return s.Clock().UTC()
	}
	return time.Now().UTC()
}
