package domain

import "time"

type CustodyAction string

const (
	ActionCollection  CustodyAction = "collection"
	ActionTransfer    CustodyAction = "transfer"
	ActionAnalysis    CustodyAction = "analysis"
	ActionStorage     CustodyAction = "storage"
	ActionDestruction CustodyAction = "destruction"
	ActionReturn      CustodyAction = "return"
)

// CustodyEntry is one immutable, timestamped, signed record of an action
// taken on evidence.
type CustodyEntry struct {
	CustodyID  string        `json:"custody_id"`
	EvidenceID string        `json:"evidence_id"`
	Seq        int64         `json:"seq"`
	Action     CustodyAction `json:"action"`
	Actor      string        `json:"actor"`
	Timestamp  time.Time     `json:"timestamp"`
	Location   string        `json:"location"`
	Notes      string        `json:"notes,omitempty"`
	Signature  string        `json:"signature"`
}

// ChainOfCustody is the ordered, append-only entry sequence for one
// evidence item. Once created it is never empty and its first entry's
// action is always ActionCollection.
type ChainOfCustody struct {
	EvidenceID  string         `json:"evidence_id"`
	Entries     []CustodyEntry `json:"entries"`
	CreatedAt   time.Time      `json:"created_at"`
	LastUpdated time.Time      `json:"last_updated"`
}

type ChainVerification struct {
	EvidenceID string   `json:"evidence_id"`
	IsValid    bool     `json:"is_valid"`
	Issues     []string `json:"issues,omitempty"`
}

// ValidationRuleSet controls which custody entries may be appended.
type ValidationRuleSet struct {
	RequireTimestamps bool
	RequireSignatures bool
	MaxGap            time.Duration
	AllowedActions    []CustodyAction
}

func (r ValidationRuleSet) Allows(action CustodyAction) bool {
	for _, a := range r.AllowedActions {
		if a == action {
			return true
		}
	}
	return false
}

func DefaultValidationRuleSet() ValidationRuleSet {
	return ValidationRuleSet{
		RequireTimestamps: true,
		RequireSignatures: true,
		MaxGap:            24 * time.Hour,
		AllowedActions: []CustodyAction{
			ActionCollection,
			ActionTransfer,
			ActionAnalysis,
			ActionStorage,
			ActionDestruction,
			ActionReturn,
		},
	}
}

// TransferProtocol controls custodian-to-custodian handoffs.
type TransferProtocol struct {
	RequireDualAuthorization bool
	TransferTimeout          time.Duration
	RequireVerification      bool
}

func DefaultTransferProtocol() TransferProtocol {
	return TransferProtocol{
		RequireDualAuthorization: false,
		TransferTimeout:          72 * time.Hour,
		RequireVerification:      true,
	}
}
