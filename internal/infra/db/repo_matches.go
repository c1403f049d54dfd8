package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/ocentra/matchproof/internal/domain"
)

type MatchRepository struct {
	db *gorm.DB
}

func NewMatchRepository(db *gorm.DB) *MatchRepository {
	return &MatchRepository{db: db}
}

func (r *MatchRepository) Insert(ctx context.Context, row domain.MatchIndex) error {
	if r.db == nil {
		return errDBUnavailable
	}
	if row.MatchID == "" {
		return errors.New("match_id is required")
	}
	if row.MatchHash == "" {
		return errors.New("match_hash is required")
	}
	if row.Status == "" {
		row.Status = domain.MatchStatusRecorded
	}
	model := MatchIndexModel{
		MatchID:     row.MatchID,
		MatchHash:   row.MatchHash,
		GameName:    row.GameName,
		HotURL:      row.HotURL,
		Status:      row.Status,
		BatchID:     stringPtrIfNotEmpty(row.BatchID),
		TxSignature: stringPtrIfNotEmpty(row.TxSignature),
		CreatedAt:   time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *MatchRepository) Get(ctx context.Context, matchID string) (*domain.MatchIndex, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model MatchIndexModel
	err := r.db.WithContext(ctx).Where("match_id = ?", matchID).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("match %s: %w", matchID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	row := matchIndexFromModel(model)
	return &row, nil
}

// SetBatched stamps the rows of a flushed batch in one statement.
func (r *MatchRepository) SetBatched(ctx context.Context, matchIDs []string, batchID string) error {
	if r.db == nil {
		return errDBUnavailable
	}
	if len(matchIDs) == 0 {
		return nil
	}
	if batchID == "" {
		return errors.New("batch_id is required")
	}
	return r.db.WithContext(ctx).
		Model(&MatchIndexModel{}).
		Where("match_id IN ?", matchIDs).
		Updates(map[string]any{
			"status":   domain.MatchStatusBatched,
			"batch_id": batchID,
		}).Error
}

func (r *MatchRepository) SetAnchored(ctx context.Context, matchID, txSignature string) error {
	if r.db == nil {
		return errDBUnavailable
	}
	if matchID == "" || txSignature == "" {
		return errors.New("match_id and tx_signature are required")
	}
	return r.db.WithContext(ctx).
		Model(&MatchIndexModel{}).
		Where("match_id = ?", matchID).
		Updates(map[string]any{
			"status":       domain.MatchStatusAnchored,
			"tx_signature": txSignature,
		}).Error
}

func (r *MatchRepository) ListByStatus(ctx context.Context, status string, limit int) ([]domain.MatchIndex, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	if limit <= 0 {
		limit = 100
	}
	var models []MatchIndexModel
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.MatchIndex, 0, len(models))
	for _, model := range models {
		out = append(out, matchIndexFromModel(model))
	}
	return out, nil
}

func matchIndexFromModel(model MatchIndexModel) domain.MatchIndex {
	return domain.MatchIndex{
		MatchID:     model.MatchID,
		MatchHash:   model.MatchHash,
		GameName:    model.GameName,
		HotURL:      model.HotURL,
		Status:      model.Status,
		BatchID:     stringValue(model.BatchID),
		TxSignature: stringValue(model.TxSignature),
		CreatedAt:   rfc3339(model.CreatedAt),
	}
}
