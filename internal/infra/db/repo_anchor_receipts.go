package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/ocentra/matchproof/internal/domain"
)

type AnchorReceiptRepository struct {
	db *gorm.DB
}

func NewAnchorReceiptRepository(db *gorm.DB) *AnchorReceiptRepository {
	return &AnchorReceiptRepository{db: db}
}

func (r *AnchorReceiptRepository) Append(ctx context.Context, receipt domain.AnchorReceipt) error {
	if r.db == nil {
		return errDBUnavailable
	}
	if receipt.Ref == "" {
		return errors.New("ref is required")
	}
	if receipt.Kind == "" {
		return errors.New("kind is required")
	}
	if receipt.Status == "" {
		return errors.New("status is required")
	}
	createdAt := receipt.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	model := AnchorReceiptModel{
		Ref:                    receipt.Ref,
		Kind:                   receipt.Kind,
		Status:                 receipt.Status,
		ErrorCode:              stringPtrIfNotEmpty(receipt.ErrorCode),
		PayloadHash:            receipt.PayloadHash,
		TxSignature:            receipt.TxSignature,
		Slot:                   receipt.Slot,
		Commitment:             string(receipt.Commitment),
		LedgerReceiptJSON:      copyBytes(receipt.LedgerReceiptJSON),
		LedgerReceiptTruncated: receipt.LedgerReceiptTruncated,
		LedgerReceiptSizeBytes: receipt.LedgerReceiptSizeBytes,
		CreatedAt:              createdAt,
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *AnchorReceiptRepository) GetByRef(ctx context.Context, ref string) (*domain.AnchorReceipt, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	if ref == "" {
		return nil, errors.New("ref is required")
	}
	var model AnchorReceiptModel
	err := r.db.WithContext(ctx).Where("ref = ?", ref).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("anchor receipt %s: %w", ref, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	receipt := domain.AnchorReceipt{
		Ref:                    model.Ref,
		Kind:                   model.Kind,
		Status:                 model.Status,
		ErrorCode:              stringValue(model.ErrorCode),
		PayloadHash:            model.PayloadHash,
		TxSignature:            model.TxSignature,
		Slot:                   model.Slot,
		Commitment:             domain.Commitment(model.Commitment),
		LedgerReceiptJSON:      json.RawMessage(copyBytes(model.LedgerReceiptJSON)),
		LedgerReceiptTruncated: model.LedgerReceiptTruncated,
		LedgerReceiptSizeBytes: model.LedgerReceiptSizeBytes,
		CreatedAt:              model.CreatedAt,
	}
	return &receipt, nil
}
