package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/ocentra/matchproof/internal/domain"
)

type SignerRepository struct {
	db *gorm.DB
}

func NewSignerRepository(db *gorm.DB) *SignerRepository {
	return &SignerRepository{db: db}
}

func (r *SignerRepository) Register(ctx context.Context, signer domain.Signer) error {
	if r.db == nil {
		return errDBUnavailable
	}
	if signer.PublicKey == "" {
		return errors.New("public_key is required")
	}
	if signer.Role != domain.SignerRolePlayer && signer.Role != domain.SignerRoleServer {
		return fmt.Errorf("unknown signer role %q", signer.Role)
	}
	status := signer.Status
	if status == "" {
		status = domain.SignerStatusActive
	}
	addedAt := signer.AddedAt
	if addedAt.IsZero() {
		addedAt = time.Now().UTC()
	}
	model := SignerModel{
		PublicKey: signer.PublicKey,
		Label:     signer.Label,
		Role:      signer.Role,
		Status:    string(status),
		AddedAt:   addedAt,
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *SignerRepository) Get(ctx context.Context, publicKey string) (*domain.Signer, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model SignerModel
	err := r.db.WithContext(ctx).Where("public_key = ?", publicKey).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("signer %s: %w", publicKey, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	signer := signerFromModel(model)
	return &signer, nil
}

func (r *SignerRepository) Revoke(ctx context.Context, publicKey string, at time.Time) error {
	if r.db == nil {
		return errDBUnavailable
	}
	if publicKey == "" {
		return errors.New("public_key is required")
	}
	revokedAt := at.UTC()
	return r.db.WithContext(ctx).
		Model(&SignerModel{}).
		Where("public_key = ?", publicKey).
		Updates(map[string]any{
			"status":     string(domain.SignerStatusRevoked),
			"revoked_at": revokedAt,
		}).Error
}

func (r *SignerRepository) ListActive(ctx context.Context) ([]domain.Signer, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []SignerModel
	err := r.db.WithContext(ctx).
		Where("status = ?", string(domain.SignerStatusActive)).
		Order("added_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.Signer, 0, len(models))
	for _, model := range models {
		out = append(out, signerFromModel(model))
	}
	return out, nil
}

func signerFromModel(model SignerModel) domain.Signer {
	return domain.Signer{
		PublicKey: model.PublicKey,
		Label:     model.Label,
		Role:      model.Role,
		Status:    domain.SignerStatus(model.Status),
		AddedAt:   model.AddedAt,
		RevokedAt: model.RevokedAt,
	}
}
