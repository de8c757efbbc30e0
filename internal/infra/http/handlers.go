package http

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"custodian/internal/domain"
	"custodian/internal/usecase"

	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type storeEvidenceRequest struct {
	ContentBase64 string     `json:"content_base64" binding:"required"`
	Collector     string     `json:"collector" binding:"required"`
	CollectedAt   *time.Time `json:"collected_at"`
}

type storeEvidenceResponse struct {
	EvidenceID string                `json:"evidence_id"`
	CustodyID  string                `json:"custody_id"`
	Storage    domain.StorageReceipt `json:"storage"`
	IssuedAt   time.Time             `json:"issued_at"`
}

type retrieveEvidenceResponse struct {
	EvidenceID    string      `json:"evidence_id"`
	ContentBase64 string      `json:"content_base64"`
	Digest        domain.Hash `json:"digest"`
	Collector     string      `json:"collector"`
	CollectedAt   time.Time   `json:"collected_at"`
}

type transferRequest struct {
	From  string `json:"from" binding:"required"`
	To    string `json:"to" binding:"required"`
	Notes string `json:"notes"`
}

type addEntryRequest struct {
	Action    string     `json:"action" binding:"required"`
	Actor     string     `json:"actor" binding:"required"`
	Location  string     `json:"location"`
	Notes     string     `json:"notes"`
	Timestamp *time.Time `json:"timestamp"`
	Signature string     `json:"signature"`
}

func (s *Server) handleStoreEvidence(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	if !s.enforceRateLimit(c, "store") {
		return
	}
	var req storeEvidenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	content, err := base64.StdEncoding.DecodeString(req.ContentBase64)
	if err != nil {
		writeErrorCode(c, http.StatusBadRequest, "invalid_request", "content_base64 is not valid base64")
		return
	}
	collectedAt := time.Now().UTC()
	if req.CollectedAt != nil {
		collectedAt = req.CollectedAt.UTC()
	}

	ev, err := s.verifier.NewEvidence(content, req.Collector, collectedAt)
	if err != nil {
		writeError(c, err)
		return
	}
	receipt, err := s.preservation.StoreEvidence(c.Request.Context(), ev)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, storeEvidenceResponse{
		EvidenceID: receipt.EvidenceID,
		CustodyID:  receipt.CustodyID,
		Storage:    receipt.Storage,
		IssuedAt:   receipt.IssuedAt,
	})
}

func (s *Server) handleRetrieveEvidence(c *gin.Context) {
	requester := c.Query("requester")
	if requester == "" {
		writeErrorCode(c, http.StatusBadRequest, "invalid_request", "requester query parameter is required")
		return
	}
	if !s.enforceRateLimit(c, "retrieve") {
		return
	}
	ev, err := s.preservation.RetrieveEvidence(c.Request.Context(), c.Param("evidence_id"), requester)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, retrieveEvidenceResponse{
		EvidenceID:    ev.EvidenceID,
		ContentBase64: base64.StdEncoding.EncodeToString(ev.Content),
		Digest:        ev.Digest,
		Collector:     ev.Collector,
		CollectedAt:   ev.CollectedAt,
	})
}

func (s *Server) handleTransfer(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	entry, err := s.ledger.TransferEvidence(c.Request.Context(), c.Param("evidence_id"), req.From, req.To, req.Notes)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (s *Server) handleAddEntry(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	var req addEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	timestamp := time.Now().UTC()
	if req.Timestamp != nil {
		timestamp = req.Timestamp.UTC()
	}
	entry := domain.CustodyEntry{
		EvidenceID: c.Param("evidence_id"),
		Action:     domain.CustodyAction(req.Action),
		Actor:      req.Actor,
		Timestamp:  timestamp,
		Location:   req.Location,
		Notes:      req.Notes,
		Signature:  req.Signature,
	}
	// Entries submitted without a signature are signed with the service
	// key; externally signed entries pass through untouched.
	if entry.Signature == "" && s.signer != nil {
		signature, err := s.signer.Sign(usecase.SignaturePayload{
			EvidenceID: entry.EvidenceID,
			Timestamp:  entry.Timestamp,
			Action:     entry.Action,
			Actor:      entry.Actor,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		entry.Signature = signature
	}
	appended, err := s.ledger.AddEntry(c.Request.Context(), entry)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, appended)
}

func (s *Server) handleGetChain(c *gin.Context) {
	chain, err := s.ledger.GetChain(c.Request.Context(), c.Param("evidence_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, chain)
}

func (s *Server) handleVerifyChain(c *gin.Context) {
	verification, err := s.ledger.VerifyChain(c.Request.Context(), c.Param("evidence_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, verification)
}

func (s *Server) handleVerifyIntegrity(c *gin.Context) {
	report, err := s.preservation.VerifyEvidenceIntegrity(c.Request.Context(), c.Param("evidence_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleAuditReport(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	report, err := s.preservation.GenerateAuditReport(c.Request.Context(), c.Param("evidence_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleAccessLog(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	records, err := s.access.GetAccessLog(c.Request.Context(), c.Param("evidence_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"evidence_id": c.Param("evidence_id"),
		"records":     records,
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	status, err := s.preservation.SystemStatus(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) handleNoRoute(c *gin.Context) {
	writeErrorCode(c, http.StatusNotFound, "not_found", fmt.Sprintf("no route for %s %s", c.Request.Method, c.Request.URL.Path))
}

func (s *Server) requireAdmin(c *gin.Context) bool {
	if s.adminAPIKey == "" {
		writeErrorCode(c, http.StatusForbidden, "admin_disabled", "admin API key is not configured")
		return false
	}
	provided := c.GetHeader("X-Admin-Key")
	if subtle.ConstantTimeCompare([]byte(provided), []byte(s.adminAPIKey)) != 1 {
		writeErrorCode(c, http.StatusForbidden, "forbidden", "invalid admin key")
		return false
	}
	return true
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeErrorCode(c, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrDuplicateKey):
		writeErrorCode(c, http.StatusConflict, "duplicate", err.Error())
	case errors.Is(err, domain.ErrValidation):
		writeErrorCode(c, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrAccessDenied):
		writeErrorCode(c, http.StatusForbidden, "access_denied", err.Error())
	case errors.Is(err, domain.ErrChainOfCustody):
		writeErrorCode(c, http.StatusUnprocessableEntity, "chain_of_custody", err.Error())
	case errors.Is(err, domain.ErrIntegrityViolation):
		writeErrorCode(c, http.StatusConflict, "integrity_violation", err.Error())
	default:
		writeErrorCode(c, http.StatusInternalServerError, "internal", err.Error())
	}
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, errorResponse{Code: code, Message: message})
}
