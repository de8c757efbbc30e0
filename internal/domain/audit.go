package domain

import "time"

// AuditReport is the structured export for one evidence item: the full
// custody chain, the latest integrity verdict, and the access log.
type AuditReport struct {
	EvidenceID  string           `json:"evidence_id"`
	Chain       ChainOfCustody   `json:"chain"`
	Integrity   *IntegrityReport `json:"integrity,omitempty"`
	AccessLog   []AccessRecord   `json:"access_log"`
	GeneratedAt time.Time        `json:"generated_at"`
}

type SystemStatus struct {
	EvidenceCount    int64     `json:"evidence_count"`
	ReliabilityScore float64   `json:"reliability_score"`
	GeneratedAt      time.Time `json:"generated_at"`
}
