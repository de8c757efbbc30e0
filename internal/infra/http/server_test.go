package http

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"custodian/internal/config"
	"custodian/internal/infra/crypto"
	"custodian/internal/infra/memstore"
	"custodian/internal/infra/sealbox"
	"custodian/internal/usecase"

	"github.com/gin-gonic/gin"
)

const testAdminKey = "test-admin-key"

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	signer, err := crypto.NewSigner(make([]byte, 32))
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	box, err := sealbox.New(make([]byte, 32))
	if err != nil {
		t.Fatalf("new sealbox: %v", err)
	}

	store := memstore.NewEvidenceStore("test")
	accessRepo := memstore.NewAccessRepository()
	verifier := usecase.NewIntegrityVerifier(usecase.IntegrityVerifierConfig{
		Records: memstore.NewValidationRepository(),
	})
	ledger := usecase.NewCustodyLedger(memstore.NewChainRepository(), accessRepo, signer)
	access := usecase.NewAccessControl(accessRepo, []string{"admin"})
	access.RequireApproval = false

	return NewServerWithDeps(config.Config{HTTPAddr: ":0"}, ServerDeps{
		Preservation: &usecase.PreservationService{
			Store:     store,
			Verifier:  verifier,
			Ledger:    ledger,
			Access:    access,
			Encryptor: box,
			Location:  "test",
		},
		Ledger:      ledger,
		Access:      access,
		Verifier:    verifier,
		Signer:      signer,
		AdminAPIKey: testAdminKey,
	})
}

func doRequest(s *Server, method, path string, body any, admin bool) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if admin {
		req.Header.Set("X-Admin-Key", testAdminKey)
	}
	w := httptest.NewRecorder()
	s.r.ServeHTTP(w, req)
	return w
}

func storeTestEvidence(t *testing.T, s *Server, content string) string {
	t.Helper()
	w := doRequest(s, http.MethodPost, "/v1/evidence", map[string]any{
		"content_base64": base64.StdEncoding.EncodeToString([]byte(content)),
		"collector":      "alice",
	}, true)
	if w.Code != http.StatusCreated {
		t.Fatalf("store evidence: status %d body %s", w.Code, w.Body.String())
	}
	var resp storeEvidenceResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode store response: %v", err)
	}
	if resp.EvidenceID == "" || resp.CustodyID == "" {
		t.Fatalf("incomplete receipt %+v", resp)
	}
	return resp.EvidenceID
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	w := doRequest(s, http.MethodGet, "/healthz", nil, false)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
}

func TestStoreEvidenceRequiresAdminKey(t *testing.T) {
	s := newTestServer(t)
	w := doRequest(s, http.MethodPost, "/v1/evidence", map[string]any{
		"content_base64": base64.StdEncoding.EncodeToString([]byte("hello")),
		"collector":      "alice",
	}, false)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status %d, want 403", w.Code)
	}
}

func TestStoreEvidenceRejectsBadBase64(t *testing.T) {
	s := newTestServer(t)
	w := doRequest(s, http.MethodPost, "/v1/evidence", map[string]any{
		"content_base64": "not-base64!!",
		"collector":      "alice",
	}, true)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", w.Code)
	}
}

func TestStoreAndRetrieveEvidence(t *testing.T) {
	s := newTestServer(t)
	evidenceID := storeTestEvidence(t, s, "hello")

	w := doRequest(s, http.MethodGet, "/v1/evidence/"+evidenceID+"?requester=admin", nil, false)
	if w.Code != http.StatusOK {
		t.Fatalf("retrieve: status %d body %s", w.Code, w.Body.String())
	}
	var resp retrieveEvidenceResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode retrieve response: %v", err)
	}
	content, err := base64.StdEncoding.DecodeString(resp.ContentBase64)
	if err != nil {
		t.Fatalf("decode content: %v", err)
	}
	if string(content) != "hello" {
		t.Fatalf("content mismatch: %q", content)
	}
}

func TestRetrieveEvidenceRequiresRequester(t *testing.T) {
	s := newTestServer(t)
	evidenceID := storeTestEvidence(t, s, "hello")

	w := doRequest(s, http.MethodGet, "/v1/evidence/"+evidenceID, nil, false)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", w.Code)
	}
}

func TestRetrieveEvidenceDenied(t *testing.T) {
	s := newTestServer(t)
	evidenceID := storeTestEvidence(t, s, "hello")

	w := doRequest(s, http.MethodGet, "/v1/evidence/"+evidenceID+"?requester=mallory", nil, false)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status %d, want 403", w.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if resp.Code != "access_denied" {
		t.Fatalf("error code %q, want access_denied", resp.Code)
	}
}

func TestTransferAndChain(t *testing.T) {
	s := newTestServer(t)
	evidenceID := storeTestEvidence(t, s, "hello")

	w := doRequest(s, http.MethodPost, "/v1/evidence/"+evidenceID+"/transfer", map[string]any{
		"from": "alice",
		"to":   "bob",
	}, true)
	if w.Code != http.StatusCreated {
		t.Fatalf("transfer: status %d body %s", w.Code, w.Body.String())
	}

	w = doRequest(s, http.MethodGet, "/v1/evidence/"+evidenceID+"/chain", nil, false)
	if w.Code != http.StatusOK {
		t.Fatalf("chain: status %d", w.Code)
	}
	var chain struct {
		Entries []struct {
			Action string `json:"action"`
			Seq    int64  `json:"seq"`
		} `json:"entries"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &chain); err != nil {
		t.Fatalf("decode chain: %v", err)
	}
	if len(chain.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(chain.Entries))
	}
	if chain.Entries[0].Action != "collection" || chain.Entries[1].Action != "transfer" {
		t.Fatalf("unexpected actions %+v", chain.Entries)
	}

	w = doRequest(s, http.MethodGet, "/v1/evidence/"+evidenceID+"/chain/verify", nil, false)
	if w.Code != http.StatusOK {
		t.Fatalf("chain verify: status %d", w.Code)
	}
	var verification struct {
		IsValid bool `json:"is_valid"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &verification); err != nil {
		t.Fatalf("decode verification: %v", err)
	}
	if !verification.IsValid {
		t.Fatalf("chain should be valid: %s", w.Body.String())
	}
}

func TestAddEntrySignsWhenMissing(t *testing.T) {
	s := newTestServer(t)
	evidenceID := storeTestEvidence(t, s, "hello")

	w := doRequest(s, http.MethodPost, "/v1/evidence/"+evidenceID+"/entries", map[string]any{
		"action":   "analysis",
		"actor":    "bob",
		"location": "lab",
	}, true)
	if w.Code != http.StatusCreated {
		t.Fatalf("add entry: status %d body %s", w.Code, w.Body.String())
	}
	var entry struct {
		Signature string `json:"signature"`
		Seq       int64  `json:"seq"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &entry); err != nil {
		t.Fatalf("decode entry: %v", err)
	}
	if entry.Signature == "" {
		t.Fatal("entry should be signed server-side")
	}
	if entry.Seq != 2 {
		t.Fatalf("entry seq %d, want 2", entry.Seq)
	}
}

func TestIntegrityAndAuditEndpoints(t *testing.T) {
	s := newTestServer(t)
	evidenceID := storeTestEvidence(t, s, "hello")

	w := doRequest(s, http.MethodGet, "/v1/evidence/"+evidenceID+"/integrity", nil, false)
	if w.Code != http.StatusOK {
		t.Fatalf("integrity: status %d body %s", w.Code, w.Body.String())
	}
	var report struct {
		OverallValid bool `json:"overall_valid"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if !report.OverallValid {
		t.Fatalf("expected valid report: %s", w.Body.String())
	}

	if w := doRequest(s, http.MethodGet, "/v1/evidence/"+evidenceID+"/audit", nil, false); w.Code != http.StatusForbidden {
		t.Fatalf("audit without admin key: status %d, want 403", w.Code)
	}
	w = doRequest(s, http.MethodGet, "/v1/evidence/"+evidenceID+"/audit", nil, true)
	if w.Code != http.StatusOK {
		t.Fatalf("audit: status %d body %s", w.Code, w.Body.String())
	}

	w = doRequest(s, http.MethodGet, "/v1/evidence/"+evidenceID+"/access-log", nil, true)
	if w.Code != http.StatusOK {
		t.Fatalf("access log: status %d body %s", w.Code, w.Body.String())
	}
}

func TestUnknownEvidenceReturns404(t *testing.T) {
	s := newTestServer(t)
	w := doRequest(s, http.MethodGet, "/v1/evidence/unknown/chain", nil, false)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status %d, want 404", w.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	s := newTestServer(t)
	storeTestEvidence(t, s, "hello")

	w := doRequest(s, http.MethodGet, "/v1/status", nil, false)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var status struct {
		EvidenceCount    int64   `json:"evidence_count"`
		ReliabilityScore float64 `json:"reliability_score"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.EvidenceCount != 1 {
		t.Fatalf("evidence count %d, want 1", status.EvidenceCount)
	}
	if status.ReliabilityScore != 1.0 {
		t.Fatalf("reliability %v, want 1.0", status.ReliabilityScore)
	}
}
