// Package anchor owns everything between a finished hash and its
// confirmed ledger anchor: payload construction under the byte ceiling,
// and the transaction handler with its retry and confirmation
// discipline. Retry policy lives here and only here; callers must not
// wrap anchoring in their own retries.
package anchor

import (
	"fmt"

	"github.com/ocentra/matchproof/internal/domain"
	"github.com/ocentra/matchproof/internal/infra/canonical"
	"github.com/ocentra/matchproof/internal/infra/merkle"
)

// DefaultMaxPayloadBytes is the ledger memo budget for one anchor.
const DefaultMaxPayloadBytes = 566

// Payload is a ready-to-submit anchor: canonical bytes plus the
// identifiers persistence tracks it by.
type Payload struct {
	Kind          string
	Ref           string
	Fields        domain.AnchorPayload
	CanonicalJSON []byte
	HashHex       string
}

// BuildMatchPayload serializes a per-match anchor. When the result
// exceeds maxBytes the optional hints are dropped in order, hot_url
// first and then signers; a payload still over budget after that is
// rejected.
func BuildMatchPayload(matchID, matchHash, hotURL string, signers []string, maxBytes int) (Payload, error) {
	if len(matchID) != domain.MatchIDLength {
		return Payload{}, fmt.Errorf("%w: match_id %q", domain.ErrInvalidRecord, matchID)
	}
	if len(matchHash) != 2*merkle.HashSize {
		return Payload{}, fmt.Errorf("%w: match hash %q", domain.ErrInvalidRecord, matchHash)
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxPayloadBytes
	}

	fields := domain.AnchorPayload{
		MatchID: matchID,
		SHA256:  matchHash,
		HotURL:  hotURL,
		Signers: signers,
	}
	for {
		data, err := canonical.Bytes(fields)
		if err != nil {
			return Payload{}, err
		}
		if len(data) <= maxBytes {
			return Payload{
				Kind:          domain.AnchorKindMatch,
				Ref:           matchID,
				Fields:        fields,
				CanonicalJSON: data,
				HashHex:       canonical.HashHex(data),
			}, nil
		}
		switch {
		case fields.HotURL != "":
			fields.HotURL = ""
		case len(fields.Signers) > 0:
			fields.Signers = nil
		default:
			return Payload{}, fmt.Errorf("%w: %d bytes over %d byte ceiling", domain.ErrPayloadTooLarge, len(data), maxBytes)
		}
	}
}

// BuildBatchPayload serializes a per-batch anchor. Every field is
// required by the ledger program, so nothing can be shed under the
// ceiling.
func BuildBatchPayload(manifest domain.BatchManifest, maxBytes int) (Payload, error) {
	if manifest.BatchID == "" || len(manifest.BatchID) > domain.MaxBatchIDLength {
		return Payload{}, fmt.Errorf("%w: batch_id %q", domain.ErrInvalidRecord, manifest.BatchID)
	}
	if len(manifest.MerkleRoot) != 2*merkle.HashSize {
		return Payload{}, fmt.Errorf("%w: merkle root %q", domain.ErrInvalidRecord, manifest.MerkleRoot)
	}
	if manifest.MatchCount <= 0 {
		return Payload{}, fmt.Errorf("%w: empty batch", domain.ErrInvalidRecord)
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxPayloadBytes
	}

	fields := domain.AnchorPayload{
		BatchID:      manifest.BatchID,
		MerkleRoot:   manifest.MerkleRoot,
		MatchCount:   manifest.MatchCount,
		FirstMatchID: manifest.FirstMatchID,
		LastMatchID:  manifest.LastMatchID,
	}
	data, err := canonical.Bytes(fields)
	if err != nil {
		return Payload{}, err
	}
	if len(data) > maxBytes {
		return Payload{}, fmt.Errorf("%w: %d bytes over %d byte ceiling", domain.ErrPayloadTooLarge, len(data), maxBytes)
	}
	return Payload{
		Kind:          domain.AnchorKindBatch,
		Ref:           manifest.BatchID,
		Fields:        fields,
		CanonicalJSON: data,
		HashHex:       canonical.HashHex(data),
	}, nil
}
