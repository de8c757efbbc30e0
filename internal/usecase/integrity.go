package usecase

import (
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"log"
	"time"

	"custodian/internal/domain"
)

const (
	AlgSHA256 = "sha256"
	AlgSHA512 = "sha512"
)

type HashFunc func(input []byte) string

// IntegrityVerifier computes and compares content digests across pluggable
// algorithms, enforces size and age policy, and maintains the rolling
// validation history behind GetIntegrityStatus.
type IntegrityVerifier struct {
	Records ValidationRepository
	Clock   Clock

	PrimaryAlg   string
	SecondaryAlg string

	RequireMultipleHashes bool
	MaxContentBytes       int64
	MaxAge                time.Duration
	Retention             time.Duration

	algs map[string]HashFunc
}

type IntegrityVerifierConfig struct {
	Records               ValidationRepository
	Clock                 Clock
	RequireMultipleHashes bool
	MaxContentBytes       int64
	MaxAge                time.Duration
	Retention             time.Duration
}

func NewIntegrityVerifier(cfg IntegrityVerifierConfig) *IntegrityVerifier {
	v := &IntegrityVerifier{
		Records:               cfg.Records,
		Clock:                 cfg.Clock,
		PrimaryAlg:            AlgSHA256,
		SecondaryAlg:          AlgSHA512,
		RequireMultipleHashes: cfg.RequireMultipleHashes,
		MaxContentBytes:       cfg.MaxContentBytes,
		MaxAge:                cfg.MaxAge,
		Retention:             cfg.Retention,
		algs:                  make(map[string]HashFunc),
	}
	v.RegisterAlgorithm(AlgSHA256, func(input []byte) string {
		sum := sha256.Sum256(input)
		return hex.EncodeToString(sum[:])
	})
	v.RegisterAlgorithm(AlgSHA512, func(input []byte) string {
		sum := sha512.Sum512(input)
		return hex.EncodeToString(sum[:])
	})
	return v
}

// RegisterAlgorithm adds or replaces a digest algorithm without touching
// calling code.
func (v *IntegrityVerifier) RegisterAlgorithm(name string, fn HashFunc) {
	v.algs[name] = fn
}

func (v *IntegrityVerifier) CalculateHash(input []byte, alg string) (string, error) {
	fn, ok := v.algs[alg]
	if !ok {
		return "", fmt.Errorf("unknown hash algorithm %q: %w", alg, domain.ErrValidation)
	}
	return fn(input), nil
}

// NewEvidence assigns an evidence id and the collection-time digests to
// content handed over by a collector. Both the primary and the secondary
// digest are fixed here so later verification has an independent expected
// value for each.
func (v *IntegrityVerifier) NewEvidence(content []byte, collector string, collectedAt time.Time) (domain.Evidence, error) {
	id, err := newUUID()
	if err != nil {
		return domain.Evidence{}, err
	}
	digest, err := v.CalculateHash(content, v.PrimaryAlg)
	if err != nil {
		return domain.Evidence{}, err
	}
	ev := domain.Evidence{
		EvidenceID:  id,
		Content:     content,
		Digest:      domain.Hash{Alg: v.PrimaryAlg, Value: digest},
		Collector:   collector,
		CollectedAt: collectedAt.UTC(),
	}
	if v.SecondaryAlg != "" && v.SecondaryAlg != v.PrimaryAlg {
		secondary, err := v.CalculateHash(content, v.SecondaryAlg)
		if err != nil {
			return domain.Evidence{}, err
		}
		ev.SecondaryDigest = domain.Hash{Alg: v.SecondaryAlg, Value: secondary}
	}
	return ev, nil
}

// ValidateEvidence recomputes the primary digest and fails with
// ErrIntegrityViolation on mismatch. A Success record is appended to the
// history on the happy path.
func (v *IntegrityVerifier) ValidateEvidence(ctx context.Context, ev domain.Evidence) error {
	alg := ev.Digest.Alg
	if alg == "" {
		alg = v.PrimaryAlg
	}
	computed, err := v.CalculateHash(ev.Content, alg)
	if err != nil {
		return err
	}
	if computed != ev.Digest.Value {
		v.record(ctx, ev.EvidenceID, domain.ValidationFailed,
			fmt.Sprintf("%s digest mismatch: expected %s got %s", alg, ev.Digest.Value, computed))
		return fmt.Errorf("evidence %s: %s digest mismatch: %w", ev.EvidenceID, alg, domain.ErrIntegrityViolation)
	}
	v.record(ctx, ev.EvidenceID, domain.ValidationSuccess, fmt.Sprintf("%s digest verified", alg))
	return nil
}

// VerifyIntegrity runs the primary hash check, plus the secondary hash,
// size, and age checks when policy asks for them. OverallValid is the AND
// of every check actually run. One ValidationRecord summarizing the
// outcome is appended per call.
func (v *IntegrityVerifier) VerifyIntegrity(ctx context.Context, ev domain.Evidence) (domain.IntegrityReport, error) {
	now := v.now()
	report := domain.IntegrityReport{
		EvidenceID:   ev.EvidenceID,
		OverallValid: true,
		VerifiedAt:   now,
	}

	primary, err := v.verifyHash(ev, ev.Digest)
	if err != nil {
		return domain.IntegrityReport{}, err
	}
	report.Hashes = append(report.Hashes, primary)
	if !primary.Valid {
		report.OverallValid = false
	}

	if v.RequireMultipleHashes && v.SecondaryAlg != "" && v.SecondaryAlg != ev.Digest.Alg {
		// The expected secondary digest was fixed at collection or write
		// time. Evidence carrying none fails the check rather than passing
		// on a value computed moments ago.
		if ev.SecondaryDigest.Value == "" {
			report.Hashes = append(report.Hashes, domain.HashVerification{
				Alg:   v.SecondaryAlg,
				Valid: false,
			})
			report.OverallValid = false
		} else {
			secondary, err := v.verifyHash(ev, ev.SecondaryDigest)
			if err != nil {
				return domain.IntegrityReport{}, err
			}
			report.Hashes = append(report.Hashes, secondary)
			if !secondary.Valid {
				report.OverallValid = false
			}
		}
	}

	if v.MaxContentBytes > 0 {
		size := int64(len(ev.Content))
		check := domain.SizeVerification{
			SizeBytes: size,
			MaxBytes:  v.MaxContentBytes,
			Valid:     size <= v.MaxContentBytes,
		}
		report.Size = &check
		if !check.Valid {
			report.OverallValid = false
		}
	}

	if v.MaxAge > 0 && !ev.CollectedAt.IsZero() {
		age := now.Sub(ev.CollectedAt)
		check := domain.AgeVerification{
			Age:    age,
			MaxAge: v.MaxAge,
			Valid:  age <= v.MaxAge,
		}
		report.Age = &check
		if !check.Valid {
			report.OverallValid = false
		}
	}

	result := domain.ValidationSuccess
	notes := "integrity verified"
	if !report.OverallValid {
		result = domain.ValidationFailed
		notes = failureNotes(report)
	}
	v.record(ctx, ev.EvidenceID, result, notes)
	return report, nil
}

// GetIntegrityStatus derives the integrity score from the retained
// history. No history is neutral, not a failure: the score is 1.0.
func (v *IntegrityVerifier) GetIntegrityStatus(ctx context.Context, evidenceID string) (domain.IntegrityStatus, error) {
	records, err := v.Records.List(ctx, evidenceID)
	if err != nil {
		return domain.IntegrityStatus{}, err
	}
	status := domain.IntegrityStatus{
		EvidenceID: evidenceID,
		Score:      1.0,
	}
	successes := 0
	for i := range records {
		if records[i].Result == domain.ValidationSuccess {
			successes++
		}
	}
	status.TotalValidations = len(records)
	status.SuccessfulValidations = successes
	if len(records) > 0 {
		latest := records[len(records)-1]
		status.Latest = &latest
		status.Score = float64(successes) / float64(len(records))
	}
	return status, nil
}

func (v *IntegrityVerifier) verifyHash(ev domain.Evidence, expected domain.Hash) (domain.HashVerification, error) {
	alg := expected.Alg
	if alg == "" {
		alg = v.PrimaryAlg
	}
	computed, err := v.CalculateHash(ev.Content, alg)
	if err != nil {
		return domain.HashVerification{}, err
	}
	return domain.HashVerification{
		Alg:      alg,
		Expected: expected.Value,
		Computed: computed,
		Valid:    computed == expected.Value,
	}, nil
}

// record appends a validation record and prunes expired history. Both are
// best-effort: log maintenance never fails the calling operation.
func (v *IntegrityVerifier) record(ctx context.Context, evidenceID string, result domain.ValidationResult, notes string) {
	if v.Records == nil {
		return
	}
	rec := domain.ValidationRecord{
		EvidenceID: evidenceID,
		Result:     result,
		Timestamp:  v.now(),
		Notes:      notes,
	}
	if err := v.Records.Append(ctx, rec); err != nil {
		log.Printf("validation history append failed for %s: %v", evidenceID, err)
	}
	if v.Retention > 0 {
		cutoff := v.now().Add(-v.Retention)
		if err := v.Records.Prune(ctx, evidenceID, cutoff); err != nil {
			log.Printf("validation history prune failed for %s: %v", evidenceID, err)
		}
	}
}

func (v *IntegrityVerifier) now() time.Time {
	if v.Clock != nil {
		return v.Clock().UTC()
	}
	return time.Now().UTC()
}

func failureNotes(report domain.IntegrityReport) string {
	for _, h := range report.Hashes {
		if !h.Valid {
			if h.Expected == "" {
				return fmt.Sprintf("no recorded %s digest", h.Alg)
			}
			return fmt.Sprintf("%s digest mismatch: expected %s got %s", h.Alg, h.Expected, h.Computed)
		}
	}
	if report.Size != nil && !report.Size.Valid {
		return fmt.Sprintf("content size %d exceeds limit %d", report.Size.SizeBytes, report.Size.MaxBytes)
	}
	if report.Age != nil && !report.Age.Valid {
		return fmt.Sprintf("evidence age %s exceeds limit %s", report.Age.Age, report.Age.MaxAge)
	}
	return "integrity check failed"
}
