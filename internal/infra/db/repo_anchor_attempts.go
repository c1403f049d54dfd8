package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/ocentra/matchproof/internal/domain"
)

type AnchorAttemptRepository struct {
	db *gorm.DB
}

func NewAnchorAttemptRepository(db *gorm.DB) *AnchorAttemptRepository {
	return &AnchorAttemptRepository{db: db}
}

func (r *AnchorAttemptRepository) Append(ctx context.Context, attempt domain.AnchorAttempt) error {
	if r.db == nil {
		return errDBUnavailable
	}
	if attempt.Ref == "" {
		return errors.New("ref is required")
	}
	if attempt.Kind == "" {
		return errors.New("kind is required")
	}
	if attempt.Status == "" {
		return errors.New("status is required")
	}
	if attempt.PayloadHash == "" {
		return errors.New("payload_hash is required")
	}
	createdAt := attempt.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	model := AnchorAttemptModel{
		Ref:         attempt.Ref,
		Kind:        attempt.Kind,
		Attempt:     attempt.Attempt,
		Stage:       string(attempt.Stage),
		Status:      attempt.Status,
		ErrorCode:   stringPtrIfNotEmpty(attempt.ErrorCode),
		PayloadHash: attempt.PayloadHash,
		CreatedAt:   createdAt,
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *AnchorAttemptRepository) ListByRef(ctx context.Context, ref string) ([]domain.AnchorAttempt, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	if ref == "" {
		return nil, errors.New("ref is required")
	}
	var models []AnchorAttemptModel
	err := r.db.WithContext(ctx).
		Where("ref = ?", ref).
		Order("created_at ASC, id ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.AnchorAttempt, 0, len(models))
	for _, model := range models {
		out = append(out, domain.AnchorAttempt{
			Ref:         model.Ref,
			Kind:        model.Kind,
			Attempt:     model.Attempt,
			Stage:       domain.TxStage(model.Stage),
			Status:      model.Status,
			ErrorCode:   stringValue(model.ErrorCode),
			PayloadHash: model.PayloadHash,
			CreatedAt:   model.CreatedAt,
		})
	}
	return out, nil
}
