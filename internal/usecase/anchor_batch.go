package usecase

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ocentra/matchproof/internal/domain"
)

// AnchorBatchSink receives flushed batch manifests: it records the batch
// row, marks the member matches batched, and anchors the Merkle root.
// The manifest is already durable when Handle runs, so a failure here
// leaves a recorded-but-unanchored batch that an operator can re-anchor.
type AnchorBatchSink struct {
	Batches domain.BatchRepository
	Matches domain.MatchRepository
	Anchors AnchorService
	Log     *logrus.Logger
}

func (s *AnchorBatchSink) Handle(ctx context.Context, manifest domain.BatchManifest) error {
	log := s.logger().WithField("batch_id", manifest.BatchID)

	if s.Batches != nil {
		row := domain.BatchRow{
			BatchID:    manifest.BatchID,
			MerkleRoot: manifest.MerkleRoot,
			MatchCount: manifest.MatchCount,
			Status:     domain.MatchStatusRecorded,
			CreatedAt:  manifest.CreatedAt,
		}
		if err := s.Batches.Insert(ctx, row); err != nil {
			return fmt.Errorf("index batch %s: %w", manifest.BatchID, err)
		}
	}
	if s.Matches != nil {
		if err := s.Matches.SetBatched(ctx, manifest.MatchIDs, manifest.BatchID); err != nil {
			return fmt.Errorf("mark matches batched: %w", err)
		}
	}

	if s.Anchors == nil {
		log.Warn("no anchor service configured; batch left unanchored")
		return nil
	}
	receipt, err := s.Anchors.AnchorBatch(ctx, manifest)
	if err != nil {
		return fmt.Errorf("anchor batch %s: %w", manifest.BatchID, err)
	}
	if s.Batches != nil {
		if err := s.Batches.SetAnchored(ctx, manifest.BatchID, receipt.TxSignature); err != nil {
			return fmt.Errorf("mark batch anchored: %w", err)
		}
	}
	log.WithField("tx_signature", receipt.TxSignature).
		WithField("match_count", manifest.MatchCount).
		Info("batch anchored")
	return nil
}

func (s *AnchorBatchSink) logger() *logrus.Logger {
	if s.Log != nil {
		return s.Log
	}
	return logrus.StandardLogger()
}
