package http

import (
	"context"
	"log"
	"net/http"
	"time"

	"custodian/internal/config"
	"custodian/internal/domain"
	"custodian/internal/infra/cachemem"
	"custodian/internal/infra/crypto"
	"custodian/internal/infra/db"
	"custodian/internal/infra/memstore"
	"custodian/internal/infra/policyopa"
	"custodian/internal/infra/ratelimit"
	"custodian/internal/infra/sealbox"
	"custodian/internal/usecase"

	"github.com/gin-gonic/gin"
)

type Server struct {
	cfg   config.Config
	store *db.Store
	r     *gin.Engine

	preservation *usecase.PreservationService
	ledger       *usecase.CustodyLedger
	access       *usecase.AccessControl
	verifier     *usecase.IntegrityVerifier
	signer       usecase.EntrySigner

	adminAPIKey string

	rateLimiter       domain.RateLimiter
	rateLimitRequests int
	rateLimitWindow   time.Duration

	initErr error
}

func NewServer(cfg config.Config, store *db.Store) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{cfg: cfg, store: store, r: r}
	s.initDeps()
	s.routes()
	return s
}

type ServerDeps struct {
	Preservation *usecase.PreservationService
	Ledger       *usecase.CustodyLedger
	Access       *usecase.AccessControl
	Verifier     *usecase.IntegrityVerifier
	Signer       usecase.EntrySigner
	AdminAPIKey  string
	RateLimiter  domain.RateLimiter
}

func NewServerWithDeps(cfg config.Config, deps ServerDeps) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		cfg:          cfg,
		r:            r,
		preservation: deps.Preservation,
		ledger:       deps.Ledger,
		access:       deps.Access,
		verifier:     deps.Verifier,
		signer:       deps.Signer,
		adminAPIKey:  deps.AdminAPIKey,
	}
	s.initRateLimit(deps.RateLimiter)
	s.routes()
	return s
}

func (s *Server) initDeps() {
	s.adminAPIKey = s.cfg.AdminAPIKey

	signer, err := crypto.NewSignerFromConfig(s.cfg)
	if err != nil {
		s.initErr = err
		return
	}
	s.signer = signer

	encryptor, err := sealbox.NewFromConfig(s.cfg)
	if err != nil {
		s.initErr = err
		return
	}

	var (
		evidence   usecase.EvidenceStore
		chains     usecase.ChainRepository
		accessRepo usecase.AccessRepository
		validation usecase.ValidationRepository
	)
	if s.store != nil && s.store.DB != nil {
		evidence = db.NewEvidenceRepository(s.store.DB, s.cfg.StorageLocation)
		chains = db.NewChainRepository(s.store.DB)
		accessRepo = db.NewAccessRepository(s.store.DB)
		validation = db.NewValidationRepository(s.store.DB)
	} else {
		evidence = memstore.NewEvidenceStore(s.cfg.StorageLocation)
		chains = memstore.NewChainRepository()
		accessRepo = memstore.NewAccessRepository()
		validation = memstore.NewValidationRepository()
	}

	var approver usecase.Approver
	if s.cfg.ApprovalBundlePath != "" {
		engine, err := policyopa.NewEngineFromBundlePath(context.Background(), s.cfg.ApprovalBundlePath, s.cfg.ApprovalBundleID)
		if err != nil {
			s.initErr = err
			return
		}
		approver = engine
	}

	verifier := usecase.NewIntegrityVerifier(usecase.IntegrityVerifierConfig{
		Records:               validation,
		RequireMultipleHashes: s.cfg.RequireMultipleHash,
		MaxContentBytes:       s.cfg.MaxContentBytes,
		MaxAge:                s.cfg.MaxEvidenceAge(),
		Retention:             s.cfg.ValidationRetention(),
	})

	ledger := usecase.NewCustodyLedger(chains, accessRepo, signer)
	ledger.Rules.RequireTimestamps = s.cfg.RequireEntryTimes
	ledger.Rules.RequireSignatures = s.cfg.RequireEntrySigs
	ledger.Rules.MaxGap = s.cfg.MaxGap()
	ledger.Transfer.TransferTimeout = s.cfg.TransferTimeout()
	ledger.Transfer.RequireDualAuthorization = s.cfg.RequireDualAuth
	ledger.Approver = approver

	accessControl := usecase.NewAccessControl(accessRepo, s.cfg.DefaultRequesterList())
	accessControl.Approver = approver
	// With no approval policy configured, mandatory approval would deny
	// every retrieval; the allow-list remains the enforced gate.
	accessControl.RequireApproval = approver != nil

	s.verifier = verifier
	s.ledger = ledger
	s.access = accessControl
	s.preservation = &usecase.PreservationService{
		Store:     evidence,
		Verifier:  verifier,
		Ledger:    ledger,
		Access:    accessControl,
		Encryptor: encryptor,
		Cache:     cachemem.New(),
		CacheTTL:  s.cfg.IntegrityCacheTTL(),
		Location:  s.cfg.StorageLocation,
	}

	s.initRateLimit(nil)
}

func (s *Server) initRateLimit(override domain.RateLimiter) {
	if override != nil {
		s.rateLimiter = override
	}
	if s.rateLimiter == nil && s.cfg.RateLimitRequests > 0 {
		if s.cfg.RedisAddr != "" {
			if limiter, err := ratelimit.NewRedisLimiter(ratelimit.RedisLimiterConfig{
				Addr:     s.cfg.RedisAddr,
				Password: s.cfg.RedisPassword,
				DB:       s.cfg.RedisDB,
			}); err == nil {
				s.rateLimiter = limiter
			} else {
				log.Printf("redis rate limiter unavailable, falling back to memory: %v", err)
			}
		}
		if s.rateLimiter == nil {
			s.rateLimiter = ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{
				MaxKeys: s.cfg.RateLimitMaxKeys,
			})
		}
	}
	s.rateLimitRequests = s.cfg.RateLimitRequests
	if s.cfg.RateLimitWindowSeconds > 0 {
		s.rateLimitWindow = time.Duration(s.cfg.RateLimitWindowSeconds) * time.Second
	}
}

func (s *Server) routes() {
	s.r.GET("/healthz", func(c *gin.Context) {
		mode := "memory"
		if s.store != nil && s.store.DB != nil {
			mode = "db"
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "mode": mode})
	})

	v1 := s.r.Group("/v1")
	{
		v1.POST("/evidence", s.handleStoreEvidence)
		v1.GET("/evidence/:evidence_id", s.handleRetrieveEvidence)
		v1.POST("/evidence/:evidence_id/transfer", s.handleTransfer)
		v1.POST("/evidence/:evidence_id/entries", s.handleAddEntry)
		v1.GET("/evidence/:evidence_id/chain", s.handleGetChain)
		v1.GET("/evidence/:evidence_id/chain/verify", s.handleVerifyChain)
		v1.GET("/evidence/:evidence_id/integrity", s.handleVerifyIntegrity)
		v1.GET("/evidence/:evidence_id/audit", s.handleAuditReport)
		v1.GET("/evidence/:evidence_id/access-log", s.handleAccessLog)
		v1.GET("/status", s.handleStatus)
	}

	s.r.NoRoute(s.handleNoRoute)
}

func (s *Server) Run() error {
	if s.initErr != nil {
		return s.initErr
	}
	return s.r.Run(s.cfg.HTTPAddr)
}
