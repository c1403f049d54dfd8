package anchor

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ocentra/matchproof/internal/domain"
	"github.com/ocentra/matchproof/internal/infra/canonical"
)

// ProgressFunc observes stage transitions while a payload is anchored.
// attempt is 1-based; the signing and sending stages repeat on retries,
// building fires once with attempt 0.
type ProgressFunc func(stage domain.TxStage, attempt int)

type HandlerConfig struct {
	// SignerKID names the gateway-held key that signs transactions.
	SignerKID string
	// Commitment is the confirmation level to wait for.
	Commitment domain.Commitment
	// MaxAttempts bounds ledger submissions per payload.
	MaxAttempts int
	// BackoffBase and BackoffCap shape the retry delay, which doubles
	// per attempt until it reaches the cap.
	BackoffBase time.Duration
	BackoffCap  time.Duration
	// ConfirmTimeout bounds one confirmation wait.
	ConfirmTimeout time.Duration
}

const (
	defaultMaxAttempts    = 4
	defaultBackoffBase    = 500 * time.Millisecond
	defaultBackoffCap     = 8 * time.Second
	defaultConfirmTimeout = 30 * time.Second
)

const maxLedgerReceiptBytes = 256 * 1024

func (c HandlerConfig) withDefaults() HandlerConfig {
	if c.Commitment == "" {
		c.Commitment = domain.CommitmentConfirmed
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = defaultBackoffBase
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = defaultBackoffCap
	}
	if c.BackoffCap < c.BackoffBase {
		c.BackoffCap = c.BackoffBase
	}
	if c.ConfirmTimeout <= 0 {
		c.ConfirmTimeout = defaultConfirmTimeout
	}
	return c
}

// Handler drives one payload through the ledger: submit, confirm,
// persist the outcome. Submission errors classified transient are
// retried with doubling backoff; once a transaction is on the wire it
// is never resubmitted, because a duplicate anchor cannot be rolled
// back.
type Handler struct {
	ledger   domain.LedgerClient
	attempts domain.AnchorAttemptRepository
	receipts domain.AnchorReceiptRepository
	cfg      HandlerConfig
	log      *logrus.Logger

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

func NewHandler(ledger domain.LedgerClient, attempts domain.AnchorAttemptRepository, receipts domain.AnchorReceiptRepository, cfg HandlerConfig, log *logrus.Logger) (*Handler, error) {
	if ledger == nil {
		return nil, errors.New("ledger client is required")
	}
	if log == nil {
		log = logrus.New()
	}
	return &Handler{
		ledger:   ledger,
		attempts: attempts,
		receipts: receipts,
		cfg:      cfg.withDefaults(),
		log:      log,
		sleep:    sleepCtx,
		now:      time.Now,
	}, nil
}

// Anchor submits p and waits for confirmation at the configured
// commitment. The returned receipt reflects the terminal outcome even
// when err is non-nil. A confirmation timeout re-polls the anchor once
// before failing; the transaction may have landed while we waited.
func (h *Handler) Anchor(ctx context.Context, p Payload, progress ProgressFunc) (domain.AnchorReceipt, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if progress == nil {
		progress = func(domain.TxStage, int) {}
	}
	log := h.log.WithField("kind", p.Kind).WithField("ref", p.Ref)

	progress(domain.TxStageBuilding, 0)
	if fee, err := h.ledger.EstimateFee(ctx, p.CanonicalJSON); err != nil {
		log.WithError(err).Debug("fee estimate unavailable")
	} else {
		log.WithField("fee_lamports", fee).Debug("anchor fee estimated")
	}

	var (
		lastErr     error
		lastReceipt domain.AnchorReceipt
		lastAttempt int
	)
	for attempt := 1; attempt <= h.cfg.MaxAttempts; attempt++ {
		lastAttempt = attempt
		progress(domain.TxStageSigning, attempt)
		progress(domain.TxStageSending, attempt)

		txSignature, err := h.ledger.SubmitPayload(ctx, p.CanonicalJSON, h.cfg.SignerKID)
		if err != nil {
			lastErr = err
			receipt := h.failedReceipt(p, errorCode(ctx, err), "")
			lastReceipt = h.persistAttempt(ctx, receipt, attempt, domain.TxStageSending)
			if !domain.IsTransient(err) || attempt == h.cfg.MaxAttempts {
				break
			}
			wait := h.backoff(attempt)
			log.WithError(err).
				WithField("attempt", attempt).
				WithField("backoff", wait).
				Warn("anchor submit failed")
			if serr := h.sleep(ctx, wait); serr != nil {
				lastErr = serr
				break
			}
			continue
		}

		progress(domain.TxStageConfirming, attempt)
		rec, err := h.confirm(ctx, txSignature, p)
		if err != nil {
			lastErr = err
			receipt := h.failedReceipt(p, errorCode(ctx, err), txSignature)
			receipt = h.persistAttempt(ctx, receipt, attempt, domain.TxStageConfirming)
			progress(domain.TxStageFailed, attempt)
			return receipt, fmt.Errorf("confirm anchor %s: %w", txSignature, err)
		}

		receipt := h.anchoredReceipt(p, txSignature, rec)
		receipt = h.persistAttempt(ctx, receipt, attempt, domain.TxStageConfirmed)
		if receipt.Status == domain.AnchorStatusAnchored {
			receipt = h.persistReceipt(ctx, receipt)
		}
		if receipt.Status != domain.AnchorStatusAnchored {
			progress(domain.TxStageFailed, attempt)
			return receipt, fmt.Errorf("record anchor outcome for %s %s", p.Kind, p.Ref)
		}
		progress(domain.TxStageConfirmed, attempt)
		log.WithField("tx_signature", txSignature).
			WithField("slot", receipt.Slot).
			WithField("attempt", attempt).
			Info("anchor confirmed")
		return receipt, nil
	}

	progress(domain.TxStageFailed, lastAttempt)
	if lastReceipt.Ref == "" {
		lastReceipt = h.failedReceipt(p, errorCode(ctx, lastErr), "")
	}
	return lastReceipt, fmt.Errorf("anchor %s %s: %w", p.Kind, p.Ref, lastErr)
}

// confirm waits for the transaction and reads back the anchor record.
// A nil record with nil error means confirmed but not yet readable;
// callers treat the read-back as best effort.
func (h *Handler) confirm(ctx context.Context, txSignature string, p Payload) (*domain.AnchorRecord, error) {
	err := h.ledger.WaitForConfirmation(ctx, txSignature, h.cfg.Commitment, h.cfg.ConfirmTimeout)
	if err == nil {
		rec, recErr := h.ledger.GetAnchorByTransaction(ctx, txSignature)
		if recErr != nil {
			h.log.WithError(recErr).
				WithField("tx_signature", txSignature).
				Warn("confirmed anchor not readable yet")
			return nil, nil
		}
		return rec, nil
	}
	if !isConfirmTimeout(err) {
		return nil, err
	}
	// One re-poll before giving up. Finality can outlast the wait
	// window and the transaction may already be on the ledger.
	rec, recErr := h.ledger.GetAnchorByTransaction(ctx, txSignature)
	if recErr == nil && rec != nil && payloadMatches(rec, p) {
		return rec, nil
	}
	return nil, err
}

func isConfirmTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var te *domain.TransportError
	return errors.As(err, &te) && te.Code == domain.AnchorErrorTimeout
}

// payloadMatches compares the on-ledger payload against what we
// submitted, by canonical hash.
func payloadMatches(rec *domain.AnchorRecord, p Payload) bool {
	data, err := canonical.Bytes(rec.Payload)
	if err != nil {
		return false
	}
	return canonical.HashHex(data) == p.HashHex
}

func (h *Handler) backoff(attempt int) time.Duration {
	d := h.cfg.BackoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= h.cfg.BackoffCap {
			return h.cfg.BackoffCap
		}
	}
	return d
}

func (h *Handler) anchoredReceipt(p Payload, txSignature string, rec *domain.AnchorRecord) domain.AnchorReceipt {
	receipt := domain.AnchorReceipt{
		Ref:         p.Ref,
		Kind:        p.Kind,
		Status:      domain.AnchorStatusAnchored,
		PayloadHash: p.HashHex,
		TxSignature: txSignature,
		Commitment:  h.cfg.Commitment,
		CreatedAt:   h.now().UTC(),
	}
	if rec == nil {
		return receipt
	}
	receipt.Slot = rec.Slot
	if rec.Commitment != "" {
		receipt.Commitment = rec.Commitment
	}
	if data, err := json.Marshal(rec); err == nil {
		receiptJSON, truncated, size := truncateReceiptJSON(data)
		receipt.LedgerReceiptJSON = json.RawMessage(receiptJSON)
		receipt.LedgerReceiptTruncated = truncated
		receipt.LedgerReceiptSizeBytes = size
	}
	return receipt
}

func (h *Handler) failedReceipt(p Payload, code, txSignature string) domain.AnchorReceipt {
	return domain.AnchorReceipt{
		Ref:         p.Ref,
		Kind:        p.Kind,
		Status:      domain.AnchorStatusFailed,
		ErrorCode:   code,
		PayloadHash: p.HashHex,
		TxSignature: txSignature,
		Commitment:  h.cfg.Commitment,
		CreatedAt:   h.now().UTC(),
	}
}

func (h *Handler) persistAttempt(ctx context.Context, receipt domain.AnchorReceipt, attempt int, stage domain.TxStage) domain.AnchorReceipt {
	if h.attempts == nil {
		return receipt
	}
	row := domain.AnchorAttempt{
		Ref:         receipt.Ref,
		Kind:        receipt.Kind,
		Attempt:     attempt,
		Stage:       stage,
		Status:      receipt.Status,
		ErrorCode:   receipt.ErrorCode,
		PayloadHash: receipt.PayloadHash,
		CreatedAt:   h.now().UTC(),
	}
	if err := h.attempts.Append(ctx, row); err != nil {
		h.log.WithError(err).WithField("ref", receipt.Ref).Error("anchor attempt row lost")
		receipt.Status = domain.AnchorStatusFailed
		receipt.ErrorCode = domain.AnchorErrorPersistence
	}
	return receipt
}

func (h *Handler) persistReceipt(ctx context.Context, receipt domain.AnchorReceipt) domain.AnchorReceipt {
	if h.receipts == nil {
		return receipt
	}
	if err := h.receipts.Append(ctx, receipt); err != nil {
		h.log.WithError(err).WithField("ref", receipt.Ref).Error("anchor receipt lost")
		receipt.Status = domain.AnchorStatusFailed
		receipt.ErrorCode = domain.AnchorErrorPersistence
	}
	return receipt
}

func errorCode(ctx context.Context, err error) string {
	var te *domain.TransportError
	if errors.As(err, &te) && te.Code != "" {
		return te.Code
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.AnchorErrorTimeout
	}
	if domain.IsTransient(err) {
		return domain.AnchorErrorNetwork
	}
	return domain.AnchorErrorRejected
}

func truncateReceiptJSON(payload []byte) ([]byte, bool, int) {
	size := len(payload)
	if size == 0 {
		return nil, false, 0
	}
	if size <= maxLedgerReceiptBytes {
		return payload, false, size
	}
	prefix := payload[:maxLedgerReceiptBytes]
	truncated := map[string]any{
		"truncated":     true,
		"prefix_base64": base64.StdEncoding.EncodeToString(prefix),
	}
	encoded, err := json.Marshal(truncated)
	if err != nil {
		return nil, true, size
	}
	return encoded, true, size
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
