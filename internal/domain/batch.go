package domain

import "context"

type BatchState string

const (
	BatchCollecting BatchState = "collecting"
	BatchFlushing   BatchState = "flushing"
	BatchClosed     BatchState = "closed"
)

const MaxBatchIDLength = 50

// BatchManifest is the durable description of one flushed batch.
// MatchIDs and MatchHashes are parallel, in leaf order; the manifest is
// what a verifier replays to prove a match hash sits under MerkleRoot.
type BatchManifest struct {
	BatchID      string   `json:"batch_id"`
	MatchIDs     []string `json:"match_ids"`
	MatchHashes  []string `json:"match_hashes"`
	MerkleRoot   string   `json:"merkle_root"`
	MatchCount   int      `json:"match_count"`
	FirstMatchID string   `json:"first_match_id"`
	LastMatchID  string   `json:"last_match_id"`
	CreatedAt    string   `json:"created_at"`
}

// LeafIndex returns the position of matchID in the manifest, or -1.
func (m BatchManifest) LeafIndex(matchID string) int {
	for i, id := range m.MatchIDs {
		if id == matchID {
			return i
		}
	}
	return -1
}

type BatchRow struct {
	BatchID     string
	MerkleRoot  string
	MatchCount  int
	ManifestURL string
	TxSignature string
	Status      string
	CreatedAt   string
}

type BatchRepository interface {
	Insert(ctx context.Context, row BatchRow) error
	Get(ctx context.Context, batchID string) (*BatchRow, error)
	SetAnchored(ctx context.Context, batchID, txSignature string) error
}
