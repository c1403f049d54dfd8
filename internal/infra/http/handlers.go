package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/ocentra/matchproof/internal/domain"
	"github.com/ocentra/matchproof/internal/infra/keys"
	"github.com/ocentra/matchproof/internal/usecase"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type verifyRequest struct {
	MatchID    string              `json:"match_id,omitempty"`
	Record     *domain.MatchRecord `json:"record,omitempty"`
	SkipReplay bool                `json:"skip_replay,omitempty"`
}

type matchResponse struct {
	MatchID     string `json:"match_id"`
	MatchHash   string `json:"match_hash"`
	GameName    string `json:"game_name"`
	HotURL      string `json:"hot_url,omitempty"`
	Status      string `json:"status"`
	BatchID     string `json:"batch_id,omitempty"`
	TxSignature string `json:"tx_signature,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}

type batchResponse struct {
	BatchID     string `json:"batch_id"`
	MerkleRoot  string `json:"merkle_root"`
	MatchCount  int    `json:"match_count"`
	TxSignature string `json:"tx_signature,omitempty"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at,omitempty"`
}

type signerRequest struct {
	PublicKey string `json:"public_key"`
	Label     string `json:"label,omitempty"`
	Role      string `json:"role,omitempty"`
}

type signerResponse struct {
	PublicKey string `json:"public_key"`
	Label     string `json:"label,omitempty"`
	Role      string `json:"role,omitempty"`
	Status    string `json:"status"`
	AddedAt   string `json:"added_at"`
}

func (s *Server) handleRecordMatch(c *gin.Context) {
	if !s.enforceRateLimit(c, routeMatchesRecord) {
		return
	}
	if s.recordUC == nil {
		writeErrorCode(c, http.StatusServiceUnavailable, "UNAVAILABLE", "recording is not configured")
		return
	}
	var rec domain.MatchRecord
	if err := c.ShouldBindJSON(&rec); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	mode := c.DefaultQuery("anchor", s.cfg.AnchorMode)
	receipt, err := s.recordUC.Execute(c.Request.Context(), usecase.RecordMatchRequest{
		Record:     rec,
		AnchorMode: mode,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

func (s *Server) handleGetMatch(c *gin.Context) {
	if s.matches == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	row, err := s.matches.Get(c.Request.Context(), c.Param("match_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, buildMatchResponse(*row))
}

func (s *Server) handleVerifyStored(c *gin.Context) {
	if !s.enforceRateLimit(c, routeMatchesVerify) {
		return
	}
	if s.verifyUC == nil {
		writeErrorCode(c, http.StatusServiceUnavailable, "UNAVAILABLE", "verification is not configured")
		return
	}
	result, err := s.verifyUC.Execute(c.Request.Context(), usecase.VerifyMatchRequest{
		MatchID:    c.Param("match_id"),
		SkipReplay: c.Query("skip_replay") == "true",
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleVerify(c *gin.Context) {
	if !s.enforceRateLimit(c, routeMatchesVerify) {
		return
	}
	if s.verifyUC == nil {
		writeErrorCode(c, http.StatusServiceUnavailable, "UNAVAILABLE", "verification is not configured")
		return
	}
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	matchID := req.MatchID
	if matchID == "" && req.Record != nil {
		matchID = req.Record.MatchID
	}
	if matchID == "" {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_RECORD", "match_id or record is required")
		return
	}
	result, err := s.verifyUC.Execute(c.Request.Context(), usecase.VerifyMatchRequest{
		MatchID:    matchID,
		Record:     req.Record,
		SkipReplay: req.SkipReplay,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// handleAnchorMatch anchors one already-recorded match directly, outside
// the batching path. Re-anchoring an anchored match is refused; the
// first anchor is the authoritative one.
func (s *Server) handleAnchorMatch(c *gin.Context) {
	if !s.enforceRateLimit(c, routeMatchesAnchor) {
		return
	}
	if s.matches == nil || s.anchors == nil {
		writeErrorCode(c, http.StatusServiceUnavailable, "UNAVAILABLE", "anchoring is not configured")
		return
	}
	matchID := c.Param("match_id")
	row, err := s.matches.Get(c.Request.Context(), matchID)
	if err != nil {
		writeError(c, err)
		return
	}
	if row.TxSignature != "" {
		writeErrorCode(c, http.StatusConflict, "ALREADY_ANCHORED", "match is already anchored")
		return
	}
	if row.BatchID != "" {
		writeErrorCode(c, http.StatusConflict, "ALREADY_BATCHED", "match is anchored through a batch")
		return
	}

	var signers []string
	if s.objects != nil {
		if data, err := s.objects.Get(c.Request.Context(), domain.MatchObjectKey(matchID)); err == nil {
			var rec domain.MatchRecord
			if err := json.Unmarshal(data, &rec); err == nil {
				signers = rec.SignerKeys()
			}
		}
	}

	receipt, err := s.anchors.AnchorMatch(c.Request.Context(), matchID, row.MatchHash, row.HotURL, signers)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := s.matches.SetAnchored(c.Request.Context(), matchID, receipt.TxSignature); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"match_id":     matchID,
		"tx_signature": receipt.TxSignature,
		"status":       domain.MatchStatusAnchored,
	})
}

func (s *Server) handleFlushBatch(c *gin.Context) {
	if !s.enforceRateLimit(c, routeBatchesFlush) {
		return
	}
	if s.queue == nil {
		writeErrorCode(c, http.StatusServiceUnavailable, "UNAVAILABLE", "batching is not configured")
		return
	}
	manifest, err := s.queue.Flush(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if manifest == nil {
		c.JSON(http.StatusOK, gin.H{"status": "empty"})
		return
	}
	c.JSON(http.StatusOK, manifest)
}

func (s *Server) handleGetBatch(c *gin.Context) {
	if s.batches == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	row, err := s.batches.Get(c.Request.Context(), c.Param("batch_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, batchResponse{
		BatchID:     row.BatchID,
		MerkleRoot:  row.MerkleRoot,
		MatchCount:  row.MatchCount,
		TxSignature: row.TxSignature,
		Status:      row.Status,
		CreatedAt:   row.CreatedAt,
	})
}

func (s *Server) handleRegisterSigner(c *gin.Context) {
	if s.signers == nil {
		writeErrorCode(c, http.StatusServiceUnavailable, "UNAVAILABLE", "signer registry is not configured")
		return
	}
	var req signerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	if _, err := keys.ParsePublicKeyHex(req.PublicKey); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "KEY_FORMAT", "invalid public key")
		return
	}
	role := req.Role
	if role == "" {
		role = domain.SignerRolePlayer
	}
	if role != domain.SignerRolePlayer && role != domain.SignerRoleServer {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_RECORD", "unsupported signer role")
		return
	}
	signer := domain.Signer{
		PublicKey: req.PublicKey,
		Label:     req.Label,
		Role:      role,
		Status:    domain.SignerStatusActive,
		AddedAt:   time.Now().UTC(),
	}
	if err := s.signers.Register(c.Request.Context(), signer); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleListSigners(c *gin.Context) {
	if s.signers == nil {
		writeErrorCode(c, http.StatusServiceUnavailable, "UNAVAILABLE", "signer registry is not configured")
		return
	}
	signers, err := s.signers.ListActive(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]signerResponse, 0, len(signers))
	for _, signer := range signers {
		out = append(out, signerResponse{
			PublicKey: signer.PublicKey,
			Label:     signer.Label,
			Role:      signer.Role,
			Status:    string(signer.Status),
			AddedAt:   signer.AddedAt.UTC().Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleRevokeSigner(c *gin.Context) {
	if s.signers == nil {
		writeErrorCode(c, http.StatusServiceUnavailable, "UNAVAILABLE", "signer registry is not configured")
		return
	}
	if err := s.signers.Revoke(c.Request.Context(), c.Param("public_key"), time.Now().UTC()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func buildMatchResponse(row domain.MatchIndex) matchResponse {
	return matchResponse{
		MatchID:     row.MatchID,
		MatchHash:   row.MatchHash,
		GameName:    row.GameName,
		HotURL:      row.HotURL,
		Status:      row.Status,
		BatchID:     row.BatchID,
		TxSignature: row.TxSignature,
		CreatedAt:   row.CreatedAt,
	}
}

func writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	var te *domain.TransportError
	switch {
	case errors.Is(err, domain.ErrInvalidRecord):
		status, code = http.StatusBadRequest, "INVALID_RECORD"
	case errors.Is(err, domain.ErrNotCanonicalizable):
		status, code = http.StatusBadRequest, "NOT_CANONICALIZABLE"
	case errors.Is(err, domain.ErrKeyFormat):
		status, code = http.StatusBadRequest, "KEY_FORMAT"
	case errors.Is(err, domain.ErrPayloadTooLarge):
		status, code = http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE"
	case errors.Is(err, domain.ErrBatchClosed):
		status, code = http.StatusConflict, "BATCH_CLOSED"
	case errors.Is(err, domain.ErrAnchorMissing):
		status, code = http.StatusNotFound, "ANCHOR_MISSING"
	case errors.Is(err, domain.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, gorm.ErrDuplicatedKey):
		status, code = http.StatusConflict, "ALREADY_EXISTS"
	case errors.As(err, &te):
		status = http.StatusBadGateway
		if te.Transient {
			status = http.StatusServiceUnavailable
		}
		if te.Code != "" {
			code = te.Code
		} else {
			code = "LEDGER_UNAVAILABLE"
		}
	}
	writeErrorCode(c, status, code, err.Error())
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorResponse{Code: code, Message: message})
}
