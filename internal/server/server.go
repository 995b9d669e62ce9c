package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"vaultindex/internal/model"
	"vaultindex/internal/processor"
	"vaultindex/internal/proof"
	"vaultindex/internal/storage"
	"vaultindex/internal/vault"
)

// Pinger reports persistence reachability for health checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the thin HTTP surface over the pipeline: event ingest on the
// write side, roots and proofs on the read side.
type Server struct {
	processor *processor.Processor
	proofs    *proof.Service
	store     storage.Store
	pinger    Pinger
	registry  *prometheus.Registry
	logger    *zap.Logger
}

// New builds a Server. pinger and registry may be nil.
func New(proc *processor.Processor, proofs *proof.Service, store storage.Store, pinger Pinger, registry *prometheus.Registry, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		processor: proc,
		proofs:    proofs,
		store:     store,
		pinger:    pinger,
		registry:  registry,
		logger:    logger,
	}
}

// Router wires the HTTP routes.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.POST("/v1/events", s.handleEvent)
	router.POST("/v1/events/batch", s.handleBatch)
	router.GET("/v1/vaults/:chainID/:address/root", s.handleRoot)
	router.GET("/v1/vaults/:chainID/:address/proof/:index", s.handleProof)
	router.GET("/healthz", s.handleHealth)

	if s.registry != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
	}

	return router
}

func (s *Server) handleEvent(c *gin.Context) {
	var payload model.WebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body: " + err.Error()})
		return
	}

	result, err := s.processor.ProcessWebhookPayload(c.Request.Context(), payload)
	if err != nil {
		s.writeProcessingError(c, err)
		return
	}
	if !result.Success {
		c.JSON(http.StatusBadRequest, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleBatch(c *gin.Context) {
	var payloads []model.WebhookPayload
	if err := c.ShouldBindJSON(&payloads); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body: " + err.Error()})
		return
	}

	batch, err := s.processor.ProcessBatch(c.Request.Context(), payloads)
	if err != nil {
		if errors.Is(err, model.ErrBatchTooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
			return
		}
		s.writeProcessingError(c, err)
		return
	}
	c.JSON(http.StatusOK, batch)
}

func (s *Server) handleRoot(c *gin.Context) {
	vlt, ok := s.lookupVault(c)
	if !ok {
		return
	}
	root, err := s.proofs.Root(c.Request.Context(), vlt.ID)
	if err != nil {
		s.writeProcessingError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"vault_id":     vlt.ID,
		"chain_id":     vlt.ChainID,
		"address":      vlt.Address,
		"root":         root,
		"latest_block": vlt.LatestBlock,
	})
}

func (s *Server) handleProof(c *gin.Context) {
	vlt, ok := s.lookupVault(c)
	if !ok {
		return
	}
	index, err := strconv.ParseUint(c.Param("index"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid leaf index"})
		return
	}

	p, err := s.proofs.Proof(c.Request.Context(), vlt.ID, index)
	if err != nil {
		s.writeProcessingError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.pinger != nil {
		if err := s.pinger.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) lookupVault(c *gin.Context) (model.Vault, bool) {
	chainID, err := strconv.ParseUint(c.Param("chainID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chain id"})
		return model.Vault{}, false
	}
	address, err := vault.NormalizeAddress(c.Param("address"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return model.Vault{}, false
	}

	vlt, err := s.store.FindVault(c.Request.Context(), chainID, address)
	if err != nil {
		if errors.Is(err, model.ErrVaultNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "vault not found"})
			return model.Vault{}, false
		}
		s.writeProcessingError(c, err)
		return model.Vault{}, false
	}
	return vlt, true
}

// writeProcessingError maps the error taxonomy onto status codes: tree
// invariant violations are 422, persistence failures 503 (retryable), the
// rest 500.
func (s *Server) writeProcessingError(c *gin.Context, err error) {
	var updateErr *model.MerkleUpdateError
	var dbErr *model.DatabaseError

	switch {
	case errors.As(err, &updateErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.As(err, &dbErr):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		s.logger.Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
