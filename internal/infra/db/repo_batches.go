package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/ocentra/matchproof/internal/domain"
)

type BatchRepository struct {
	db *gorm.DB
}

func NewBatchRepository(db *gorm.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

func (r *BatchRepository) Insert(ctx context.Context, row domain.BatchRow) error {
	if r.db == nil {
		return errDBUnavailable
	}
	if row.BatchID == "" {
		return errors.New("batch_id is required")
	}
	if row.MerkleRoot == "" {
		return errors.New("merkle_root is required")
	}
	if row.Status == "" {
		row.Status = domain.MatchStatusRecorded
	}
	model := BatchModel{
		BatchID:     row.BatchID,
		MerkleRoot:  row.MerkleRoot,
		MatchCount:  row.MatchCount,
		ManifestURL: row.ManifestURL,
		TxSignature: stringPtrIfNotEmpty(row.TxSignature),
		Status:      row.Status,
		CreatedAt:   time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *BatchRepository) Get(ctx context.Context, batchID string) (*domain.BatchRow, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model BatchModel
	err := r.db.WithContext(ctx).Where("batch_id = ?", batchID).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("batch %s: %w", batchID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	row := domain.BatchRow{
		BatchID:     model.BatchID,
		MerkleRoot:  model.MerkleRoot,
		MatchCount:  model.MatchCount,
		ManifestURL: model.ManifestURL,
		TxSignature: stringValue(model.TxSignature),
		Status:      model.Status,
		CreatedAt:   rfc3339(model.CreatedAt),
	}
	return &row, nil
}

func (r *BatchRepository) SetAnchored(ctx context.Context, batchID, txSignature string) error {
	if r.db == nil {
		return errDBUnavailable
	}
	if batchID == "" || txSignature == "" {
		return errors.New("batch_id and tx_signature are required")
	}
	return r.db.WithContext(ctx).
		Model(&BatchModel{}).
		Where("batch_id = ?", batchID).
		Updates(map[string]any{
			"status":       domain.MatchStatusAnchored,
			"tx_signature": txSignature,
		}).Error
}
