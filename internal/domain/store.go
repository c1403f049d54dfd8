package domain

import "context"

// ObjectStore holds full match records and batch manifests. Put returns
// the public URL of the stored object when the backend has one, or the
// key itself for local backends.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
}

func MatchObjectKey(matchID string) string { return "matches/" + matchID + ".json" }

func BatchObjectKey(batchID string) string { return "batches/" + batchID + ".json" }

const (
	MatchStatusRecorded = "recorded"
	MatchStatusBatched  = "batched"
	MatchStatusAnchored = "anchored"
)

// MatchIndex is the queryable row kept per recorded match; the record
// itself lives in the object store.
type MatchIndex struct {
	MatchID     string
	MatchHash   string
	GameName    string
	HotURL      string
	Status      string
	BatchID     string
	TxSignature string
	CreatedAt   string
}

type MatchRepository interface {
	Insert(ctx context.Context, row MatchIndex) error
	Get(ctx context.Context, matchID string) (*MatchIndex, error)
	SetBatched(ctx context.Context, matchIDs []string, batchID string) error
	SetAnchored(ctx context.Context, matchID, txSignature string) error
	ListByStatus(ctx context.Context, status string, limit int) ([]MatchIndex, error)
}
