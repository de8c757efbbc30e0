package domain

import "time"

type ValidationResult string

const (
	ValidationSuccess ValidationResult = "success"
	ValidationFailed  ValidationResult = "failed"
	ValidationWarning ValidationResult = "warning"
)

// ValidationRecord is one historical entry in the verifier's log. Records
// older than the configured retention window are pruned on each write.
type ValidationRecord struct {
	EvidenceID string           `json:"evidence_id"`
	Result     ValidationResult `json:"result"`
	Timestamp  time.Time        `json:"timestamp"`
	Notes      string           `json:"notes,omitempty"`
}

type HashVerification struct {
	Alg      string `json:"alg"`
	Expected string `json:"expected"`
	Computed string `json:"computed"`
	Valid    bool   `json:"valid"`
}

type SizeVerification struct {
	SizeBytes int64 `json:"size_bytes"`
	MaxBytes  int64 `json:"max_bytes"`
	Valid     bool  `json:"valid"`
}

type AgeVerification struct {
	Age    time.Duration `json:"age"`
	MaxAge time.Duration `json:"max_age"`
	Valid  bool          `json:"valid"`
}

// IntegrityReport aggregates the checks run for one evidence item.
// OverallValid is true only if every check actually run passed.
type IntegrityReport struct {
	EvidenceID   string             `json:"evidence_id"`
	Hashes       []HashVerification `json:"hashes"`
	Size         *SizeVerification  `json:"size,omitempty"`
	Age          *AgeVerification   `json:"age,omitempty"`
	OverallValid bool               `json:"overall_valid"`
	VerifiedAt   time.Time          `json:"verified_at"`
}

type IntegrityStatus struct {
	EvidenceID            string            `json:"evidence_id"`
	Latest                *ValidationRecord `json:"latest,omitempty"`
	TotalValidations      int               `json:"total_validations"`
	SuccessfulValidations int               `json:"successful_validations"`
	Score                 float64           `json:"score"`
}
