package domain

import (
	"context"
	"encoding/json"
	"time"
)

// AnchorPayload is the exact key set that lands on the ledger, one of
// two shapes. A match anchor carries match_id and sha256 plus optional
// hints; a batch anchor carries batch_id, merkle_root and the id span
// the ledger program records. Key presence distinguishes the shapes.
type AnchorPayload struct {
	MatchID string   `json:"match_id,omitempty"`
	SHA256  string   `json:"sha256,omitempty"`
	HotURL  string   `json:"hot_url,omitempty"`
	Signers []string `json:"signers,omitempty"`

	BatchID      string `json:"batch_id,omitempty"`
	MerkleRoot   string `json:"merkle_root,omitempty"`
	MatchCount   int    `json:"match_count,omitempty"`
	FirstMatchID string `json:"first_match_id,omitempty"`
	LastMatchID  string `json:"last_match_id,omitempty"`
}

func (p AnchorPayload) IsBatch() bool { return p.BatchID != "" }

// AnchorRecord is what the ledger reports back for a confirmed anchor,
// addressed by transaction signature.
type AnchorRecord struct {
	Payload     AnchorPayload `json:"payload"`
	TxSignature string        `json:"tx_signature"`
	Slot        uint64        `json:"slot,omitempty"`
	BlockTime   int64         `json:"block_time,omitempty"`
	Commitment  Commitment    `json:"commitment,omitempty"`
}

type Commitment string

const (
	CommitmentProcessed Commitment = "processed"
	CommitmentConfirmed Commitment = "confirmed"
	CommitmentFinalized Commitment = "finalized"
)

type TxStage string

const (
	TxStageBuilding   TxStage = "building"
	TxStageSigning    TxStage = "signing"
	TxStageSending    TxStage = "sending"
	TxStageConfirming TxStage = "confirming"
	TxStageConfirmed  TxStage = "confirmed"
	TxStageFailed     TxStage = "failed"
)

// LedgerClient is the narrow surface the anchoring layer needs from the
// ledger. Transaction construction, fees and signing live behind it;
// nothing in this repository serializes ledger transactions.
type LedgerClient interface {
	SubmitPayload(ctx context.Context, payload []byte, signerKID string) (string, error)
	GetAnchorByTransaction(ctx context.Context, txSignature string) (*AnchorRecord, error)
	WaitForConfirmation(ctx context.Context, txSignature string, commitment Commitment, timeout time.Duration) error
	EstimateFee(ctx context.Context, payload []byte) (uint64, error)
}

const (
	AnchorStatusAnchored = "anchored"
	AnchorStatusFailed   = "failed"
	AnchorStatusSkipped  = "skipped"
)

const (
	AnchorErrorNetwork     = "NETWORK"
	AnchorErrorRateLimit   = "RATE_LIMIT"
	AnchorErrorBadConfig   = "BAD_CONFIG"
	AnchorErrorRejected    = "REJECTED"
	AnchorErrorLedger5xx   = "LEDGER_5XX"
	AnchorErrorPersistence = "PERSISTENCE"
	AnchorErrorTimeout     = "TIMEOUT"
	AnchorErrorTooLarge    = "TOO_LARGE"
)

// AnchorAttempt is one ledger submission attempt, success or not.
// Attempts are append-only so the retry history survives.
type AnchorAttempt struct {
	Ref         string
	Kind        string
	Attempt     int
	Stage       TxStage
	Status      string
	ErrorCode   string
	PayloadHash string
	CreatedAt   time.Time
}

// AnchorReceipt is the durable outcome of a confirmed or failed anchor.
type AnchorReceipt struct {
	Ref         string
	Kind        string
	Status      string
	ErrorCode   string
	PayloadHash string
	TxSignature string
	Slot        uint64
	Commitment  Commitment

	LedgerReceiptJSON      json.RawMessage
	LedgerReceiptTruncated bool
	LedgerReceiptSizeBytes int

	CreatedAt time.Time
}

const (
	AnchorKindMatch = "match"
	AnchorKindBatch = "batch"
)

type AnchorAttemptRepository interface {
	Append(ctx context.Context, attempt AnchorAttempt) error
	ListByRef(ctx context.Context, ref string) ([]AnchorAttempt, error)
}

type AnchorReceiptRepository interface {
	Append(ctx context.Context, receipt AnchorReceipt) error
	GetByRef(ctx context.Context, ref string) (*AnchorReceipt, error)
}
