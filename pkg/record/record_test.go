package record

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ocentra/matchproof/internal/domain"
	"github.com/ocentra/matchproof/internal/infra/merkle"
)

func buildTestRecord(t *testing.T) domain.MatchRecord {
	t.Helper()
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec, err := Build(BuildInput{
		MatchID:   uuid.NewString(),
		Game:      domain.Game{Name: "rummy", RulesetID: "rummy-500"},
		Seed:      7,
		StartedAt: started,
		EndedAt:   started.Add(20 * time.Minute),
		Players: []domain.Player{
			{ID: "alpha", Type: domain.PlayerTypeHuman},
			{ID: "beta", Type: domain.PlayerTypeHuman},
		},
		Moves: []domain.MoveRecord{
			{Index: 0, TS: "2026-03-01T12:00:03Z", PlayerID: "alpha", Action: "draw"},
			{Index: 1, TS: "2026-03-01T12:00:08Z", PlayerID: "beta", Action: "meld"},
		},
	})
	if err != nil {
		t.Fatalf("build record: %v", err)
	}
	return rec
}

func TestBuildRejectsInvalidInput(t *testing.T) {
	_, err := Build(BuildInput{
		MatchID: "short",
		Game:    domain.Game{Name: "rummy", RulesetID: "rummy-500"},
	})
	if err == nil {
		t.Fatal("short match id should be rejected")
	}
}

func TestSignAndVerifyRoundTrip(t *testing.T) {
	rec := buildTestRecord(t)
	pair, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	priv, err := ParsePrivateKeyHex(pair.PrivateKeyHex)
	if err != nil {
		t.Fatalf("parse private key: %v", err)
	}

	signed, err := Sign(rec, priv, time.Date(2026, 3, 1, 12, 21, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if len(signed.Signatures) != 1 {
		t.Fatalf("signatures = %d", len(signed.Signatures))
	}

	result, err := Verify(signed, VerifyOptions{})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !result.SignaturesValid || result.SignatureCount != 1 {
		t.Fatalf("result = %+v", result)
	}
	if len(result.MatchHash) != 64 {
		t.Fatalf("match hash = %q", result.MatchHash)
	}
}

func TestVerifyDetectsTamperedMove(t *testing.T) {
	rec := buildTestRecord(t)
	pair, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	priv, err := ParsePrivateKeyHex(pair.PrivateKeyHex)
	if err != nil {
		t.Fatalf("parse private key: %v", err)
	}
	signed, err := Sign(rec, priv, time.Now())
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	signed.Moves[1].Action = "discard"
	result, err := Verify(signed, VerifyOptions{})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if result.SignaturesValid {
		t.Fatal("tampered record must fail signature verification")
	}
}

func TestVerifyAgainstAnchoredHash(t *testing.T) {
	rec := buildTestRecord(t)
	hash, err := Hash(rec)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	result, err := Verify(rec, VerifyOptions{AnchoredHash: hash})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if result.HashMatchesAnchor == nil || !*result.HashMatchesAnchor {
		t.Fatalf("result = %+v", result)
	}

	other := buildTestRecord(t)
	otherHash, err := Hash(other)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	result, err = Verify(rec, VerifyOptions{AnchoredHash: otherHash})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if result.HashMatchesAnchor == nil || *result.HashMatchesAnchor {
		t.Fatal("foreign anchored hash must not match")
	}
}

func TestVerifyBatchInclusion(t *testing.T) {
	rec := buildTestRecord(t)
	hash, err := Hash(rec)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	other := buildTestRecord(t)
	otherHash, err := Hash(other)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	leaves := []string{hash, otherHash}
	tree, err := merkle.Build(leaves)
	if err != nil {
		t.Fatalf("build tree: %v", err)
	}
	manifest := domain.BatchManifest{
		BatchID:     "batch-offline",
		MatchIDs:    []string{rec.MatchID, other.MatchID},
		MatchHashes: leaves,
		MerkleRoot:  tree.RootHex(),
		MatchCount:  2,
	}

	result, err := Verify(rec, VerifyOptions{Manifest: &manifest})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if result.IncludedInBatch == nil || !*result.IncludedInBatch {
		t.Fatalf("result = %+v", result)
	}

	// A foreign root refuses the proof.
	foreign := domain.BatchManifest{
		BatchID:     manifest.BatchID,
		MatchIDs:    manifest.MatchIDs,
		MatchHashes: manifest.MatchHashes,
		MerkleRoot:  manifest.MerkleRoot,
		MatchCount:  2,
	}
	result, err = Verify(rec, VerifyOptions{Manifest: &foreign, AnchoredRoot: otherHash})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if result.IncludedInBatch == nil || *result.IncludedInBatch {
		t.Fatal("proof against a foreign root must fail")
	}

	// A record missing from the manifest is simply not included.
	third := buildTestRecord(t)
	result, err = Verify(third, VerifyOptions{Manifest: &manifest})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if result.IncludedInBatch == nil || *result.IncludedInBatch {
		t.Fatal("absent record must not be included")
	}
}
