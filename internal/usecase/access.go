package usecase

import (
	"context"
	"fmt"
	"time"

	"custodian/internal/domain"
)

// AccessControl owns per-evidence access policies and their append-only
// access logs.
type AccessControl struct {
	Access            AccessRepository
	Approver          Approver
	DefaultRequesters []string
	RequireApproval   bool
	Clock             Clock
}

func NewAccessControl(access AccessRepository, defaultRequesters []string) *AccessControl {
	return &AccessControl{
		Access:            access,
		DefaultRequesters: defaultRequesters,
		RequireApproval:   true,
	}
}

// CreateAccessRules runs once per evidence, right after a successful
// store. The default policy is restrictive: narrow allow-list, approval
// and auditing both required.
func (a *AccessControl) CreateAccessRules(ctx context.Context, receipt domain.StorageReceipt) (domain.AccessPolicy, error) {
	if receipt.EvidenceID == "" {
		return domain.AccessPolicy{}, fmt.Errorf("storage receipt has no evidence id: %w", domain.ErrValidation)
	}
	allowed := make([]string, len(a.DefaultRequesters))
	copy(allowed, a.DefaultRequesters)
	policy := domain.AccessPolicy{
		EvidenceID:        receipt.EvidenceID,
		AllowedRequesters: allowed,
		Level:             domain.AccessLevelRestricted,
		RequiresApproval:  a.RequireApproval,
		AuditRequired:     true,
		CreatedAt:         a.now(),
	}
	if err := a.Access.CreatePolicy(ctx, policy); err != nil {
		return domain.AccessPolicy{}, err
	}
	if err := a.Access.OpenLog(ctx, receipt.EvidenceID); err != nil {
		return domain.AccessPolicy{}, err
	}
	return policy, nil
}

// VerifyAccess fails with ErrAccessDenied when no policy exists or the
// requester is absent from the allow-list. When the policy requires
// approval the external approver must confirm; with no approver wired the
// check fails closed.
func (a *AccessControl) VerifyAccess(ctx context.Context, evidenceID, requester string) error {
	policy, err := a.Access.GetPolicy(ctx, evidenceID)
	if err != nil {
		return err
	}
	if policy == nil {
		return fmt.Errorf("evidence %s: no access policy: %w", evidenceID, domain.ErrAccessDenied)
	}
	if !policy.AllowsRequester(requester) {
		return fmt.Errorf("evidence %s: requester %q is not on the allow-list: %w", evidenceID, requester, domain.ErrAccessDenied)
	}
	if policy.RequiresApproval {
		if a.Approver == nil {
			return fmt.Errorf("evidence %s: approval required but no approver configured: %w", evidenceID, domain.ErrAccessDenied)
		}
		ok, err := a.Approver.ApproveAccess(ctx, evidenceID, requester)
		if err != nil {
			return fmt.Errorf("evidence %s: approval check: %w", evidenceID, err)
		}
		if !ok {
			return fmt.Errorf("evidence %s: access approval denied for %q: %w", evidenceID, requester, domain.ErrAccessDenied)
		}
	}
	return nil
}

func (a *AccessControl) LogAccess(ctx context.Context, evidenceID, requester string, action domain.AccessAction) (domain.AccessRecord, error) {
	rec := domain.AccessRecord{
		EvidenceID: evidenceID,
		Requester:  requester,
		Timestamp:  a.now(),
		Action:     action,
	}
	return a.Access.AppendRecord(ctx, rec)
}

// GetAccessLog returns the log, or ErrAccessDenied when no log was ever
// opened. A missing log is a policy violation, not an empty result.
func (a *AccessControl) GetAccessLog(ctx context.Context, evidenceID string) ([]domain.AccessRecord, error) {
	return a.Access.ListRecords(ctx, evidenceID)
}

func (a *AccessControl) now() time.Time {
	if a.Clock != nil {
		return a.Clock().UTC()
	}
	return time.Now().UTC()
}
