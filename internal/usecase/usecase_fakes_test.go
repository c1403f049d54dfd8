package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ocentra/matchproof/internal/domain"
)

type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}

func (f *fakeStore) Put(_ context.Context, key string, data []byte) (string, error) {
	if f.putErr != nil {
		return "", f.putErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = append([]byte(nil), data...)
	return "https://hot.example/" + key, nil
}

func (f *fakeStore) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: object %s", domain.ErrNotFound, key)
	}
	return append([]byte(nil), data...), nil
}

type fakeMatches struct {
	rows map[string]*domain.MatchIndex
}

func newFakeMatches() *fakeMatches {
	return &fakeMatches{rows: make(map[string]*domain.MatchIndex)}
}

func (f *fakeMatches) Insert(_ context.Context, row domain.MatchIndex) error {
	if _, dup := f.rows[row.MatchID]; dup {
		return fmt.Errorf("duplicate match %s", row.MatchID)
	}
	copied := row
	f.rows[row.MatchID] = &copied
	return nil
}

func (f *fakeMatches) Get(_ context.Context, matchID string) (*domain.MatchIndex, error) {
	row, ok := f.rows[matchID]
	if !ok {
		return nil, fmt.Errorf("match %s: %w", matchID, domain.ErrNotFound)
	}
	copied := *row
	return &copied, nil
}

func (f *fakeMatches) SetBatched(_ context.Context, matchIDs []string, batchID string) error {
	for _, id := range matchIDs {
		if row, ok := f.rows[id]; ok {
			row.Status = domain.MatchStatusBatched
			row.BatchID = batchID
		}
	}
	return nil
}

func (f *fakeMatches) SetAnchored(_ context.Context, matchID, txSignature string) error {
	row, ok := f.rows[matchID]
	if !ok {
		return fmt.Errorf("match %s: %w", matchID, domain.ErrNotFound)
	}
	row.Status = domain.MatchStatusAnchored
	row.TxSignature = txSignature
	return nil
}

func (f *fakeMatches) ListByStatus(_ context.Context, status string, _ int) ([]domain.MatchIndex, error) {
	var out []domain.MatchIndex
	for _, row := range f.rows {
		if row.Status == status {
			out = append(out, *row)
		}
	}
	return out, nil
}

type fakeBatches struct {
	rows map[string]*domain.BatchRow
}

func newFakeBatches() *fakeBatches {
	return &fakeBatches{rows: make(map[string]*domain.BatchRow)}
}

func (f *fakeBatches) Insert(_ context.Context, row domain.BatchRow) error {
	copied := row
	f.rows[row.BatchID] = &copied
	return nil
}

func (f *fakeBatches) Get(_ context.Context, batchID string) (*domain.BatchRow, error) {
	row, ok := f.rows[batchID]
	if !ok {
		return nil, fmt.Errorf("batch %s: %w", batchID, domain.ErrNotFound)
	}
	copied := *row
	return &copied, nil
}

func (f *fakeBatches) SetAnchored(_ context.Context, batchID, txSignature string) error {
	row, ok := f.rows[batchID]
	if !ok {
		return fmt.Errorf("batch %s: %w", batchID, domain.ErrNotFound)
	}
	row.Status = domain.MatchStatusAnchored
	row.TxSignature = txSignature
	return nil
}

type fakeLedger struct {
	anchors map[string]*domain.AnchorRecord
	getErr  error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{anchors: make(map[string]*domain.AnchorRecord)}
}

func (f *fakeLedger) SubmitPayload(context.Context, []byte, string) (string, error) {
	return "", fmt.Errorf("not implemented")
}

func (f *fakeLedger) GetAnchorByTransaction(_ context.Context, txSignature string) (*domain.AnchorRecord, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	rec, ok := f.anchors[txSignature]
	if !ok {
		return nil, fmt.Errorf("anchor for %s: %w", txSignature, domain.ErrNotFound)
	}
	return rec, nil
}

func (f *fakeLedger) WaitForConfirmation(context.Context, string, domain.Commitment, time.Duration) error {
	return nil
}

func (f *fakeLedger) EstimateFee(context.Context, []byte) (uint64, error) {
	return 5000, nil
}

type fakeAnchors struct {
	matchCalls []string
	batchCalls []string
	receipt    domain.AnchorReceipt
	err        error
}

func (f *fakeAnchors) AnchorMatch(_ context.Context, matchID, _, _ string, _ []string) (domain.AnchorReceipt, error) {
	f.matchCalls = append(f.matchCalls, matchID)
	if f.err != nil {
		return domain.AnchorReceipt{}, f.err
	}
	return f.receipt, nil
}

func (f *fakeAnchors) AnchorBatch(_ context.Context, manifest domain.BatchManifest) (domain.AnchorReceipt, error) {
	f.batchCalls = append(f.batchCalls, manifest.BatchID)
	if f.err != nil {
		return domain.AnchorReceipt{}, f.err
	}
	return f.receipt, nil
}

type fakeBatchQueue struct {
	added [][2]string
	err   error
}

func (f *fakeBatchQueue) Add(_ context.Context, matchID, matchHash string) error {
	if f.err != nil {
		return f.err
	}
	f.added = append(f.added, [2]string{matchID, matchHash})
	return nil
}

func (f *fakeBatchQueue) Flush(context.Context) (*domain.BatchManifest, error) {
	return nil, nil
}

type fakeRules struct {
	state *domain.FinalState
	err   error
}

func (f *fakeRules) Replay(context.Context, domain.Game, uint64, []domain.MoveRecord) (*domain.FinalState, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.state, nil
}
