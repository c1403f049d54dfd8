package record

import (
	"fmt"
	"strings"

	"github.com/ocentra/matchproof/internal/domain"
	"github.com/ocentra/matchproof/internal/infra/canonical"
	"github.com/ocentra/matchproof/internal/infra/keys"
	"github.com/ocentra/matchproof/internal/infra/merkle"
)

type VerifyOptions struct {
	// AnchoredHash, when set, is the sha256 hex the ledger holds for
	// this match. The computed hash must equal it.
	AnchoredHash string
	// Manifest and AnchoredRoot verify a batched match: the record's
	// hash must appear in the manifest and prove up to the root. An
	// empty AnchoredRoot falls back to the manifest's own root.
	Manifest     *domain.BatchManifest
	AnchoredRoot string
}

type VerifyResult struct {
	MatchHash       string
	SignaturesValid bool
	SignatureCount  int
	// HashMatchesAnchor is nil when no anchored hash was supplied.
	HashMatchesAnchor *bool
	// IncludedInBatch is nil when no manifest was supplied.
	IncludedInBatch *bool
}

// Verify checks a match record offline: structural validity, every
// embedded signature, and optionally the anchored hash or batch
// inclusion. Malformed input is an error; a well-formed record that
// fails a check comes back with the corresponding field false.
func Verify(rec domain.MatchRecord, opts VerifyOptions) (VerifyResult, error) {
	if err := rec.Validate(); err != nil {
		return VerifyResult{}, err
	}

	matchHash, err := Hash(rec)
	if err != nil {
		return VerifyResult{}, err
	}
	result := VerifyResult{
		MatchHash:      matchHash,
		SignatureCount: len(rec.Signatures),
	}

	signingBytes, err := canonical.SigningBytes(rec)
	if err != nil {
		return VerifyResult{}, err
	}
	result.SignaturesValid = true
	for _, sig := range rec.Signatures {
		ok, err := keys.VerifyRecord(sig, signingBytes)
		if err != nil {
			return VerifyResult{}, fmt.Errorf("signature by %s: %w", sig.PublicKey, err)
		}
		if !ok {
			result.SignaturesValid = false
		}
	}

	if opts.AnchoredHash != "" {
		match := strings.EqualFold(opts.AnchoredHash, matchHash)
		result.HashMatchesAnchor = &match
	}

	if opts.Manifest != nil {
		included, err := verifyBatchInclusion(*opts.Manifest, matchHash, rec.MatchID, opts.AnchoredRoot)
		if err != nil {
			return VerifyResult{}, err
		}
		result.IncludedInBatch = &included
	}

	return result, nil
}

func verifyBatchInclusion(manifest domain.BatchManifest, matchHash, matchID, anchoredRoot string) (bool, error) {
	leafIndex := manifest.LeafIndex(matchID)
	if leafIndex < 0 {
		return false, nil
	}
	if !strings.EqualFold(manifest.MatchHashes[leafIndex], matchHash) {
		return false, nil
	}
	root := anchoredRoot
	if root == "" {
		root = manifest.MerkleRoot
	}
	return (&merkle.Service{}).VerifyInclusion(manifest.MatchHashes, leafIndex, matchHash, root)
}
