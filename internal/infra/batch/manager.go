// Package batch accumulates finished match hashes and turns them into
// anchored Merkle batches. One manager owns one open batch at a time;
// a batch moves collecting -> flushing -> closed and is never reopened.
package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ocentra/matchproof/internal/domain"
	"github.com/ocentra/matchproof/internal/infra/canonical"
	"github.com/ocentra/matchproof/internal/infra/merkle"
)

// Sink receives each flushed manifest, typically to anchor its root.
// Sink failures do not undo the flush; the manifest is already durable
// and anchoring has its own retry discipline.
type Sink func(ctx context.Context, manifest domain.BatchManifest) error

type Config struct {
	// MaxSize flushes the batch when this many entries are pending.
	MaxSize int
	// MaxWait flushes the batch this long after its first entry
	// arrived, so a quiet night still anchors the last stragglers.
	MaxWait time.Duration
}

type Manager struct {
	store domain.ObjectStore
	sink  Sink
	cfg   Config
	log   *logrus.Logger

	clock func() time.Time
	newID func() string

	mu            sync.Mutex
	pendingIDs    []string
	pendingHashes []string
	timer         *time.Timer
	closed        bool
}

func NewManager(store domain.ObjectStore, cfg Config, sink Sink, log *logrus.Logger) *Manager {
	if log == nil {
		log = logrus.New()
	}
	return &Manager{
		store: store,
		sink:  sink,
		cfg:   cfg,
		log:   log,
		clock: time.Now,
		newID: uuid.NewString,
	}
}

// Add queues one match hash for the next batch. Crossing the size
// ceiling triggers a flush on the caller's goroutine; the first entry
// arms the max-wait timer.
func (m *Manager) Add(ctx context.Context, matchID, matchHash string) error {
	if len(matchHash) != 2*merkle.HashSize {
		return fmt.Errorf("%w: match hash %q", domain.ErrInvalidRecord, matchHash)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return domain.ErrBatchClosed
	}
	m.pendingIDs = append(m.pendingIDs, matchID)
	m.pendingHashes = append(m.pendingHashes, matchHash)
	pending := len(m.pendingIDs)
	if pending == 1 && m.cfg.MaxWait > 0 {
		m.timer = time.AfterFunc(m.cfg.MaxWait, m.flushOnTimer)
	}
	m.mu.Unlock()

	if m.cfg.MaxSize > 0 && pending >= m.cfg.MaxSize {
		_, err := m.Flush(ctx)
		return err
	}
	return nil
}

func (m *Manager) flushOnTimer() {
	if _, err := m.Flush(context.Background()); err != nil {
		m.log.WithError(err).Error("timed batch flush failed")
	}
}

// Flush closes the current batch: it snapshots the pending entries
// under the lock, builds the tree and manifest outside it, persists the
// manifest, and hands it to the sink. An empty flush is a no-op
// returning (nil, nil). Entries added while a flush is in progress
// land in the next batch.
func (m *Manager) Flush(ctx context.Context) (*domain.BatchManifest, error) {
	m.mu.Lock()
	if len(m.pendingIDs) == 0 {
		m.mu.Unlock()
		return nil, nil
	}
	ids := m.pendingIDs
	hashes := m.pendingHashes
	m.pendingIDs = nil
	m.pendingHashes = nil
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	batchID := m.newID()
	createdAt := m.clock().UTC().Format(time.RFC3339)
	m.mu.Unlock()

	tree, err := merkle.Build(hashes)
	if err != nil {
		m.requeue(ids, hashes)
		return nil, fmt.Errorf("build batch tree: %w", err)
	}

	manifest := domain.BatchManifest{
		BatchID:      batchID,
		MatchIDs:     ids,
		MatchHashes:  hashes,
		MerkleRoot:   tree.RootHex(),
		MatchCount:   len(ids),
		FirstMatchID: ids[0],
		LastMatchID:  ids[len(ids)-1],
		CreatedAt:    createdAt,
	}

	data, err := canonical.Bytes(manifest)
	if err != nil {
		m.requeue(ids, hashes)
		return nil, fmt.Errorf("serialize manifest: %w", err)
	}
	if _, err := m.store.Put(ctx, domain.BatchObjectKey(batchID), data); err != nil {
		m.requeue(ids, hashes)
		return nil, fmt.Errorf("persist manifest: %w", err)
	}

	m.log.WithField("batch_id", batchID).
		WithField("match_count", manifest.MatchCount).
		WithField("merkle_root", manifest.MerkleRoot).
		Info("batch flushed")

	if m.sink != nil {
		if err := m.sink(ctx, manifest); err != nil {
			m.log.WithError(err).WithField("batch_id", batchID).Error("batch sink failed")
		}
	}
	return &manifest, nil
}

// requeue puts failed entries back in front of whatever arrived in the
// meantime, preserving original order.
func (m *Manager) requeue(ids, hashes []string) {
	m.mu.Lock()
	m.pendingIDs = append(ids, m.pendingIDs...)
	m.pendingHashes = append(hashes, m.pendingHashes...)
	if m.timer == nil && len(m.pendingIDs) > 0 && m.cfg.MaxWait > 0 && !m.closed {
		m.timer = time.AfterFunc(m.cfg.MaxWait, m.flushOnTimer)
	}
	m.mu.Unlock()
}

// PendingCount reports how many entries await the next flush.
func (m *Manager) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pendingIDs)
}

// Close flushes any remainder and refuses further adds.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.mu.Unlock()

	_, err := m.Flush(ctx)
	return err
}
