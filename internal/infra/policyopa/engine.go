package policyopa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"custodian/internal/usecase"

	"github.com/open-policy-agent/opa/rego"
)

const defaultQuery = "data.custodian.approval.result"

// Engine is the rego-backed approval collaborator. The policy bundle
// decides transfer dual-authorization and retrieval approval; the result
// document is {"allow": bool, "deny": [{"code", "message"}]}.
type Engine struct {
	query    rego.PreparedEvalQuery
	bundleID string
}

type approvalInput struct {
	Kind       string `json:"kind"`
	EvidenceID string `json:"evidence_id"`
	Requester  string `json:"requester,omitempty"`
	From       string `json:"from,omitempty"`
	To         string `json:"to,omitempty"`
}

type approvalResult struct {
	Allow bool `json:"allow"`
	Deny  []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"deny"`
}

func NewEngineFromBundlePath(ctx context.Context, bundlePath, bundleID string) (*Engine, error) {
	if bundlePath == "" {
		return nil, errors.New("approval bundle path is required")
	}
	r := rego.New(
		rego.Query(defaultQuery),
		rego.StrictBuiltinErrors(true),
		rego.Load([]string{bundlePath}, nil),
	)
	prepared, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare approval policy: %w", err)
	}
	return &Engine{query: prepared, bundleID: bundleID}, nil
}

func (e *Engine) BundleID() string {
	return e.bundleID
}

func (e *Engine) ApproveTransfer(ctx context.Context, evidenceID, from, to string) (bool, error) {
	return e.evaluate(ctx, approvalInput{
		Kind:       "transfer",
		EvidenceID: evidenceID,
		From:       from,
		To:         to,
	})
}

func (e *Engine) ApproveAccess(ctx context.Context, evidenceID, requester string) (bool, error) {
	return e.evaluate(ctx, approvalInput{
		Kind:       "access",
		EvidenceID: evidenceID,
		Requester:  requester,
	})
}

func (e *Engine) evaluate(ctx context.Context, input approvalInput) (bool, error) {
	if e == nil {
		return false, errors.New("approval engine is nil")
	}
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, err
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return false, errors.New("empty approval result")
	}
	result, err := decodeResult(results[0].Expressions[0].Value)
	if err != nil {
		return false, err
	}
	if !result.Allow && len(result.Deny) > 0 {
		reasons := make([]string, 0, len(result.Deny))
		for _, d := range result.Deny {
			reasons = append(reasons, d.Code)
		}
		return false, fmt.Errorf("approval denied: %s", strings.Join(reasons, ", "))
	}
	return result.Allow, nil
}

func decodeResult(value any) (approvalResult, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return approvalResult{}, err
	}
	var result approvalResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return approvalResult{}, err
	}
	return result, nil
}

var _ usecase.Approver = (*Engine)(nil)
