// Package http exposes the match integrity daemon's REST API: record,
// verify, anchor and batch operations plus the signer registry.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ocentra/matchproof/internal/config"
	"github.com/ocentra/matchproof/internal/domain"
	"github.com/ocentra/matchproof/internal/infra/anchor"
	"github.com/ocentra/matchproof/internal/infra/batch"
	"github.com/ocentra/matchproof/internal/infra/canonical"
	"github.com/ocentra/matchproof/internal/infra/db"
	"github.com/ocentra/matchproof/internal/infra/keys"
	"github.com/ocentra/matchproof/internal/infra/ledger/gateway"
	"github.com/ocentra/matchproof/internal/infra/merkle"
	"github.com/ocentra/matchproof/internal/infra/policy"
	"github.com/ocentra/matchproof/internal/infra/ratelimit"
	"github.com/ocentra/matchproof/internal/infra/rules"
	"github.com/ocentra/matchproof/internal/infra/store"
	"github.com/ocentra/matchproof/internal/usecase"
)

type Server struct {
	cfg   config.Config
	store *db.Store
	r     *gin.Engine
	log   *logrus.Logger

	recordUC *usecase.RecordMatch
	verifyUC *usecase.VerifyMatch

	objects domain.ObjectStore
	matches domain.MatchRepository
	batches domain.BatchRepository
	signers domain.SignerRepository
	anchors usecase.AnchorService
	queue   usecase.BatchQueue

	// batchManager is set only when initDeps built the manager, so the
	// daemon can drain it on shutdown.
	batchManager *batch.Manager

	rateLimiter       domain.RateLimiter
	rateLimitRequests int
	rateLimitWindow   time.Duration
	rateLimitClosed   bool

	initErr error
}

func NewServer(cfg config.Config, dbStore *db.Store, log *logrus.Logger) *Server {
	r := gin.New()
	r.Use(gin.Recovery())
	if log == nil {
		log = logrus.StandardLogger()
	}

	s := &Server{cfg: cfg, store: dbStore, r: r, log: log}
	s.initDeps()
	s.routes()
	return s
}

type ServerDeps struct {
	Record      *usecase.RecordMatch
	Verify      *usecase.VerifyMatch
	Objects     domain.ObjectStore
	Matches     domain.MatchRepository
	Batches     domain.BatchRepository
	Signers     domain.SignerRepository
	Anchors     usecase.AnchorService
	Queue       usecase.BatchQueue
	RateLimiter domain.RateLimiter
}

func NewServerWithDeps(cfg config.Config, deps ServerDeps) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		cfg:      cfg,
		r:        r,
		log:      logrus.StandardLogger(),
		recordUC: deps.Record,
		verifyUC: deps.Verify,
		objects:  deps.Objects,
		matches:  deps.Matches,
		batches:  deps.Batches,
		signers:  deps.Signers,
		anchors:  deps.Anchors,
		queue:    deps.Queue,
	}
	s.initRateLimit(deps.RateLimiter)
	s.routes()
	return s
}

func (s *Server) initDeps() {
	objects, err := buildObjectStore(s.cfg)
	if err != nil {
		s.initErr = err
		return
	}
	s.objects = objects

	if s.store != nil && s.store.DB != nil {
		s.matches = db.NewMatchRepository(s.store.DB)
		s.batches = db.NewBatchRepository(s.store.DB)
		s.signers = db.NewSignerRepository(s.store.DB)
	}

	var ledger domain.LedgerClient
	if s.cfg.GatewayURL != "" {
		client, err := gateway.NewClient(s.cfg.GatewayURL, nil)
		if err != nil {
			s.initErr = fmt.Errorf("gateway client: %w", err)
			return
		}
		ledger = client

		var attempts domain.AnchorAttemptRepository
		var receipts domain.AnchorReceiptRepository
		if s.store != nil && s.store.DB != nil {
			attempts = db.NewAnchorAttemptRepository(s.store.DB)
			receipts = db.NewAnchorReceiptRepository(s.store.DB)
		}
		handler, err := anchor.NewHandler(ledger, attempts, receipts, anchor.HandlerConfig{
			SignerKID:      s.cfg.SignerKID,
			Commitment:     domain.Commitment(s.cfg.Commitment),
			MaxAttempts:    s.cfg.AnchorMaxAttempts,
			BackoffBase:    time.Duration(s.cfg.AnchorBackoffBaseMS) * time.Millisecond,
			BackoffCap:     time.Duration(s.cfg.AnchorBackoffCapMS) * time.Millisecond,
			ConfirmTimeout: s.cfg.ConfirmTimeout(),
		}, s.log)
		if err != nil {
			s.initErr = fmt.Errorf("anchor handler: %w", err)
			return
		}
		s.anchors = anchor.NewService(handler, s.cfg.AnchorMaxPayloadBytes)
	}

	sink := &usecase.AnchorBatchSink{
		Batches: s.batches,
		Matches: s.matches,
		Anchors: s.anchors,
		Log:     s.log,
	}
	s.batchManager = batch.NewManager(objects, batch.Config{
		MaxSize: s.cfg.BatchMaxSize,
		MaxWait: s.cfg.BatchMaxWait(),
	}, sink.Handle, s.log)
	s.queue = s.batchManager

	var rulesEngine domain.RulesEngine
	if s.cfg.RulesEngineURL != "" {
		client, err := rules.NewClient(s.cfg.RulesEngineURL, nil)
		if err != nil {
			s.initErr = fmt.Errorf("rules client: %w", err)
			return
		}
		rulesEngine = client
	}

	var disputePolicy domain.DisputePolicy
	if s.cfg.PolicyBundlePath != "" {
		engine, err := policy.NewEngineFromBundlePath(context.Background(), s.cfg.PolicyBundlePath, s.cfg.PolicyBundleID)
		if err != nil {
			s.log.WithError(err).Warn("dispute policy bundle not loaded; decisions disabled")
		} else {
			disputePolicy = engine
		}
	}

	var receipts domain.AnchorReceiptRepository
	if s.store != nil && s.store.DB != nil {
		receipts = db.NewAnchorReceiptRepository(s.store.DB)
	}

	s.recordUC = &usecase.RecordMatch{
		Store:     objects,
		Matches:   s.matches,
		Canonical: &canonical.Service{},
		Anchors:   s.anchors,
		Batch:     s.queue,
	}
	s.verifyUC = &usecase.VerifyMatch{
		Store:      objects,
		Matches:    s.matches,
		Batches:    s.batches,
		Receipts:   receipts,
		Ledger:     ledger,
		Canonical:  &canonical.Service{},
		Signatures: &keys.Service{},
		Merkle:     &merkle.Service{},
		Rules:      rulesEngine,
		Policy:     disputePolicy,
	}

	s.initRateLimit(nil)
}

func buildObjectStore(cfg config.Config) (domain.ObjectStore, error) {
	switch cfg.StoreBackend {
	case "memory":
		return store.NewMemory(), nil
	case "bolt", "":
		return store.OpenBolt(cfg.BoltPath)
	case "r2":
		return store.NewR2(store.R2Config{
			Endpoint:      cfg.R2Endpoint,
			Bucket:        cfg.R2Bucket,
			Region:        cfg.R2Region,
			AccessKey:     cfg.R2AccessKey,
			SecretKey:     cfg.R2SecretKey,
			PublicBaseURL: cfg.R2PublicBaseURL,
		})
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func (s *Server) initRateLimit(override domain.RateLimiter) {
	if override != nil {
		s.rateLimiter = override
	}
	if s.rateLimiter == nil && s.cfg.RateLimitRequests > 0 {
		if s.cfg.RedisAddr != "" {
			if limiter, err := ratelimit.NewRedisLimiter(s.cfg.RedisAddr, s.cfg.RedisPassword, s.cfg.RedisDB, nil); err == nil {
				s.rateLimiter = limiter
			}
		}
		if s.rateLimiter == nil {
			s.rateLimiter = ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{
				MaxKeys: s.cfg.RateLimitMaxKeys,
			})
		}
	}
	s.rateLimitRequests = s.cfg.RateLimitRequests
	s.rateLimitWindow = s.cfg.RateLimitWindow()
	s.rateLimitClosed = s.cfg.RateLimitFailClosed
}

func (s *Server) routes() {
	s.r.GET("/healthz", func(c *gin.Context) {
		dbMode := "no-db"
		if s.store != nil && s.store.DB != nil {
			dbMode = "db"
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "mode": dbMode})
	})

	if s.cfg.PprofOn {
		pprof.Register(s.r)
	}

	v1 := s.r.Group("/v1")
	{
		v1.POST("/matches", s.handleRecordMatch)
		v1.GET("/matches/:match_id", s.handleGetMatch)
		v1.GET("/matches/:match_id/verification", s.handleVerifyStored)
		v1.POST("/matches/:match_id/anchor", s.handleAnchorMatch)
		v1.POST("/verify", s.handleVerify)

		v1.POST("/batches/flush", s.handleFlushBatch)
		v1.GET("/batches/:batch_id", s.handleGetBatch)

		v1.POST("/signers", s.handleRegisterSigner)
		v1.GET("/signers", s.handleListSigners)
		v1.DELETE("/signers/:public_key", s.handleRevokeSigner)
	}

	s.r.NoRoute(func(c *gin.Context) {
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "route not found")
	})
}

func (s *Server) Run() error {
	if s.initErr != nil {
		return s.initErr
	}
	return s.r.Run(s.cfg.HTTPAddr)
}

// Close drains the open batch so a clean shutdown does not strand
// pending match hashes.
func (s *Server) Close(ctx context.Context) error {
	if s.batchManager == nil {
		return nil
	}
	return s.batchManager.Close(ctx)
}
