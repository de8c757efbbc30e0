package domain

import "time"

type AccessAction string

const (
	AccessView   AccessAction = "view"
	AccessModify AccessAction = "modify"
	AccessCopy   AccessAction = "copy"
	AccessExport AccessAction = "export"
	AccessDelete AccessAction = "delete"
)

type AccessLevel string

const (
	AccessLevelRestricted AccessLevel = "restricted"
	AccessLevelStandard   AccessLevel = "standard"
)

// AccessRecord is one append-only entry in the per-evidence access log.
type AccessRecord struct {
	AccessID      string       `json:"access_id"`
	EvidenceID    string       `json:"evidence_id"`
	Requester     string       `json:"requester"`
	Timestamp     time.Time    `json:"timestamp"`
	Action        AccessAction `json:"action"`
	Justification string       `json:"justification,omitempty"`
}

// AccessPolicy governs who may retrieve evidence.
type AccessPolicy struct {
	EvidenceID        string      `json:"evidence_id"`
	AllowedRequesters []string    `json:"allowed_requesters"`
	Level             AccessLevel `json:"level"`
	RequiresApproval  bool        `json:"requires_approval"`
	AuditRequired     bool        `json:"audit_required"`
	CreatedAt         time.Time   `json:"created_at"`
}

func (p AccessPolicy) AllowsRequester(requester string) bool {
	for _, allowed := range p.AllowedRequesters {
		if allowed == requester {
			return true
		}
	}
	return false
}
