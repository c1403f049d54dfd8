// Package usecase holds the application operations over the integrity
// pipeline: recording a finished match and verifying a candidate record
// against its anchor. Collaborators arrive as narrow interfaces so the
// infra behind them stays swappable in tests.
package usecase

import (
	"context"

	"github.com/ocentra/matchproof/internal/domain"
)

// CanonicalService produces the byte forms hashing and signing consume.
type CanonicalService interface {
	RecordBytes(rec domain.MatchRecord) ([]byte, error)
	SigningBytes(rec domain.MatchRecord) ([]byte, error)
	HashHex(data []byte) string
}

// SignatureVerifier checks one embedded signature over signing bytes.
type SignatureVerifier interface {
	Verify(rec domain.SignatureRecord, canonicalBytes []byte) bool
}

// MerkleService proves membership of a manifest leaf under an anchored
// root.
type MerkleService interface {
	VerifyInclusion(leafHexes []string, leafIndex int, leafHex, rootHex string) (bool, error)
}

// AnchorService owns payload construction and the transaction handler's
// retry discipline. Callers never retry around it.
type AnchorService interface {
	AnchorMatch(ctx context.Context, matchID, matchHash, hotURL string, signers []string) (domain.AnchorReceipt, error)
	AnchorBatch(ctx context.Context, manifest domain.BatchManifest) (domain.AnchorReceipt, error)
}

// BatchQueue is the pending-batch side of the batch manager.
type BatchQueue interface {
	Add(ctx context.Context, matchID, matchHash string) error
	Flush(ctx context.Context) (*domain.BatchManifest, error)
}
