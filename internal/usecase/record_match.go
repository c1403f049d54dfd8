package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/ocentra/matchproof/internal/domain"
)

const (
	AnchorModeNone   = "none"
	AnchorModeSingle = "single"
	AnchorModeBatch  = "batch"
)

type RecordMatchRequest struct {
	Record domain.MatchRecord
	// AnchorMode is none, single or batch. Empty defaults to batch.
	AnchorMode string
}

type RecordReceipt struct {
	MatchID     string `json:"match_id"`
	MatchHash   string `json:"match_hash"`
	HotURL      string `json:"hot_url,omitempty"`
	Status      string `json:"status"`
	TxSignature string `json:"tx_signature,omitempty"`
}

// RecordMatch ingests one finished match: validates it, canonicalizes
// and hashes it, stores the full record in the object store, indexes
// it, and routes the hash to the configured anchoring path.
type RecordMatch struct {
	Store     domain.ObjectStore
	Matches   domain.MatchRepository
	Canonical CanonicalService
	Anchors   AnchorService
	Batch     BatchQueue
}

func (uc *RecordMatch) Execute(ctx context.Context, req RecordMatchRequest) (*RecordReceipt, error) {
	if uc.Store == nil || uc.Canonical == nil {
		return nil, errors.New("record match: object store and canonical service are required")
	}
	rec := req.Record
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	data, err := uc.Canonical.RecordBytes(rec)
	if err != nil {
		return nil, err
	}
	matchHash := uc.Canonical.HashHex(data)

	hotURL, err := uc.Store.Put(ctx, domain.MatchObjectKey(rec.MatchID), data)
	if err != nil {
		return nil, fmt.Errorf("store match record: %w", err)
	}

	receipt := &RecordReceipt{
		MatchID:   rec.MatchID,
		MatchHash: matchHash,
		HotURL:    hotURL,
		Status:    domain.MatchStatusRecorded,
	}

	if uc.Matches != nil {
		row := domain.MatchIndex{
			MatchID:   rec.MatchID,
			MatchHash: matchHash,
			GameName:  rec.Game.Name,
			HotURL:    hotURL,
			Status:    domain.MatchStatusRecorded,
		}
		if err := uc.Matches.Insert(ctx, row); err != nil {
			return nil, fmt.Errorf("index match record: %w", err)
		}
	}

	mode := req.AnchorMode
	if mode == "" {
		mode = AnchorModeBatch
	}
	switch mode {
	case AnchorModeNone:
		return receipt, nil
	case AnchorModeBatch:
		if uc.Batch == nil {
			return receipt, errors.New("record match: batch anchoring requested without a batch queue")
		}
		if err := uc.Batch.Add(ctx, rec.MatchID, matchHash); err != nil {
			return receipt, fmt.Errorf("queue match for batching: %w", err)
		}
		return receipt, nil
	case AnchorModeSingle:
		if uc.Anchors == nil {
			return receipt, errors.New("record match: single anchoring requested without an anchor service")
		}
		anchorReceipt, err := uc.Anchors.AnchorMatch(ctx, rec.MatchID, matchHash, hotURL, rec.SignerKeys())
		if err != nil {
			return receipt, err
		}
		receipt.Status = domain.MatchStatusAnchored
		receipt.TxSignature = anchorReceipt.TxSignature
		if uc.Matches != nil {
			if err := uc.Matches.SetAnchored(ctx, rec.MatchID, anchorReceipt.TxSignature); err != nil {
				return receipt, fmt.Errorf("mark match anchored: %w", err)
			}
		}
		return receipt, nil
	default:
		return receipt, fmt.Errorf("unknown anchor mode %q", mode)
	}
}
