package anchor

import (
	"context"

	"github.com/ocentra/matchproof/internal/domain"
)

// Service is the anchoring facade the usecases and the batch sink call:
// it builds the payload for one match or one batch and drives it
// through the handler.
type Service struct {
	handler  *Handler
	maxBytes int
}

func NewService(handler *Handler, maxBytes int) *Service {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxPayloadBytes
	}
	return &Service{handler: handler, maxBytes: maxBytes}
}

func (s *Service) AnchorMatch(ctx context.Context, matchID, matchHash, hotURL string, signers []string) (domain.AnchorReceipt, error) {
	payload, err := BuildMatchPayload(matchID, matchHash, hotURL, signers, s.maxBytes)
	if err != nil {
		return domain.AnchorReceipt{}, err
	}
	return s.handler.Anchor(ctx, payload, nil)
}

func (s *Service) AnchorBatch(ctx context.Context, manifest domain.BatchManifest) (domain.AnchorReceipt, error) {
	payload, err := BuildBatchPayload(manifest, s.maxBytes)
	if err != nil {
		return domain.AnchorReceipt{}, err
	}
	return s.handler.Anchor(ctx, payload, nil)
}
