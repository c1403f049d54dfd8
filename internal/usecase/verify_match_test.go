package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/ocentra/matchproof/internal/domain"
	"github.com/ocentra/matchproof/internal/infra/canonical"
	"github.com/ocentra/matchproof/internal/infra/keys"
	"github.com/ocentra/matchproof/internal/infra/merkle"
)

type fakePolicy struct {
	result domain.PolicyResult
	err    error
}

func (f *fakePolicy) Evaluate(context.Context, domain.PolicyInput) (domain.PolicyResult, error) {
	if f.err != nil {
		return domain.PolicyResult{}, f.err
	}
	return f.result, nil
}

func recordHashHex(t *testing.T, rec domain.MatchRecord) string {
	t.Helper()
	svc := &canonical.Service{}
	data, err := svc.RecordBytes(rec)
	if err != nil {
		t.Fatalf("canonicalize record: %v", err)
	}
	return svc.HashHex(data)
}

func newVerifyMatch() *VerifyMatch {
	return &VerifyMatch{
		Store:      newFakeStore(),
		Matches:    newFakeMatches(),
		Batches:    newFakeBatches(),
		Ledger:     newFakeLedger(),
		Canonical:  &canonical.Service{},
		Signatures: &keys.Service{},
		Merkle:     &merkle.Service{},
		Rules:      &fakeRules{state: &domain.FinalState{Phase: domain.PhaseEnded}},
	}
}

func TestVerifyMatchDirectAnchorPasses(t *testing.T) {
	rec := signedTestRecord(t)
	hash := recordHashHex(t, rec)

	uc := newVerifyMatch()
	matches := uc.Matches.(*fakeMatches)
	ledger := uc.Ledger.(*fakeLedger)
	matches.rows[rec.MatchID] = &domain.MatchIndex{
		MatchID:     rec.MatchID,
		MatchHash:   hash,
		Status:      domain.MatchStatusAnchored,
		TxSignature: "tx-direct-1",
	}
	ledger.anchors["tx-direct-1"] = &domain.AnchorRecord{
		Payload:     domain.AnchorPayload{MatchID: rec.MatchID, SHA256: hash},
		TxSignature: "tx-direct-1",
	}

	result, err := uc.Execute(context.Background(), VerifyMatchRequest{MatchID: rec.MatchID, Record: &rec})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !result.Valid {
		t.Fatalf("expected valid, errors: %v", result.Errors)
	}
	if result.HashCheck != domain.CheckPassed {
		t.Fatalf("hash check = %q", result.HashCheck)
	}
	if result.SignatureCheck != domain.CheckPassed {
		t.Fatalf("signature check = %q", result.SignatureCheck)
	}
	if result.ReplayCheck != domain.CheckPassed {
		t.Fatalf("replay check = %q", result.ReplayCheck)
	}
	if result.AnchoredHash != hash || result.TxSignature != "tx-direct-1" {
		t.Fatalf("result = %+v", result)
	}
}

func TestVerifyMatchDetectsTamperedRecord(t *testing.T) {
	rec := signedTestRecord(t)
	hash := recordHashHex(t, rec)

	uc := newVerifyMatch()
	matches := uc.Matches.(*fakeMatches)
	ledger := uc.Ledger.(*fakeLedger)
	matches.rows[rec.MatchID] = &domain.MatchIndex{
		MatchID:     rec.MatchID,
		MatchHash:   hash,
		Status:      domain.MatchStatusAnchored,
		TxSignature: "tx-direct-2",
	}
	ledger.anchors["tx-direct-2"] = &domain.AnchorRecord{
		Payload:     domain.AnchorPayload{MatchID: rec.MatchID, SHA256: hash},
		TxSignature: "tx-direct-2",
	}

	// Tamper with a move after signing and anchoring.
	rec.Moves[1].Action = "draw"

	result, err := uc.Execute(context.Background(), VerifyMatchRequest{MatchID: rec.MatchID, Record: &rec})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Valid {
		t.Fatal("tampered record must not verify")
	}
	if result.HashCheck != domain.CheckFailed {
		t.Fatalf("hash check = %q", result.HashCheck)
	}
	if result.SignatureCheck != domain.CheckFailed {
		t.Fatalf("signature check = %q", result.SignatureCheck)
	}
}

func TestVerifyMatchBatchedAnchorPasses(t *testing.T) {
	rec := testMatchRecord(t)
	hash := recordHashHex(t, rec)

	leaves := []string{hash}
	ids := []string{rec.MatchID}
	for i := 0; i < 2; i++ {
		other := testMatchRecord(t)
		other.Seed = uint64(100 + i)
		leaves = append(leaves, recordHashHex(t, other))
		ids = append(ids, other.MatchID)
	}
	tree, err := merkle.Build(leaves)
	if err != nil {
		t.Fatalf("build tree: %v", err)
	}
	manifest := domain.BatchManifest{
		BatchID:      "batch-0001",
		MatchIDs:     ids,
		MatchHashes:  leaves,
		MerkleRoot:   tree.RootHex(),
		MatchCount:   len(ids),
		FirstMatchID: ids[0],
		LastMatchID:  ids[len(ids)-1],
		CreatedAt:    "2026-03-01T13:00:00Z",
	}
	manifestBytes, err := json.Marshal(manifest)
	if err != nil {
		t.Fatalf("marshal manifest: %v", err)
	}

	uc := newVerifyMatch()
	store := uc.Store.(*fakeStore)
	matches := uc.Matches.(*fakeMatches)
	batches := uc.Batches.(*fakeBatches)
	ledger := uc.Ledger.(*fakeLedger)

	store.objects[domain.BatchObjectKey(manifest.BatchID)] = manifestBytes
	matches.rows[rec.MatchID] = &domain.MatchIndex{
		MatchID:   rec.MatchID,
		MatchHash: hash,
		Status:    domain.MatchStatusBatched,
		BatchID:   manifest.BatchID,
	}
	batches.rows[manifest.BatchID] = &domain.BatchRow{
		BatchID:     manifest.BatchID,
		MerkleRoot:  manifest.MerkleRoot,
		MatchCount:  manifest.MatchCount,
		TxSignature: "tx-batch-1",
		Status:      domain.MatchStatusAnchored,
	}
	ledger.anchors["tx-batch-1"] = &domain.AnchorRecord{
		Payload: domain.AnchorPayload{
			BatchID:      manifest.BatchID,
			MerkleRoot:   manifest.MerkleRoot,
			MatchCount:   manifest.MatchCount,
			FirstMatchID: manifest.FirstMatchID,
			LastMatchID:  manifest.LastMatchID,
		},
		TxSignature: "tx-batch-1",
	}

	result, err := uc.Execute(context.Background(), VerifyMatchRequest{MatchID: rec.MatchID, Record: &rec})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !result.Valid {
		t.Fatalf("expected valid, errors: %v", result.Errors)
	}
	if result.MerkleCheck != domain.CheckPassed {
		t.Fatalf("merkle check = %q", result.MerkleCheck)
	}
	if result.BatchID != manifest.BatchID || result.TxSignature != "tx-batch-1" {
		t.Fatalf("result = %+v", result)
	}
	if result.AnchoredHash != manifest.MerkleRoot {
		t.Fatalf("anchored hash = %q, want merkle root", result.AnchoredHash)
	}
}

func TestVerifyMatchBatchedTamperedManifestFails(t *testing.T) {
	rec := testMatchRecord(t)
	hash := recordHashHex(t, rec)

	other := testMatchRecord(t)
	otherHash := recordHashHex(t, other)

	// Manifest lists the match id but carries another record's hash.
	manifest := domain.BatchManifest{
		BatchID:     "batch-0002",
		MatchIDs:    []string{rec.MatchID, other.MatchID},
		MatchHashes: []string{otherHash, otherHash},
		MatchCount:  2,
	}
	tree, err := merkle.Build(manifest.MatchHashes)
	if err != nil {
		t.Fatalf("build tree: %v", err)
	}
	manifest.MerkleRoot = tree.RootHex()
	manifestBytes, err := json.Marshal(manifest)
	if err != nil {
		t.Fatalf("marshal manifest: %v", err)
	}

	uc := newVerifyMatch()
	uc.Store.(*fakeStore).objects[domain.BatchObjectKey(manifest.BatchID)] = manifestBytes
	uc.Matches.(*fakeMatches).rows[rec.MatchID] = &domain.MatchIndex{
		MatchID:   rec.MatchID,
		MatchHash: hash,
		Status:    domain.MatchStatusBatched,
		BatchID:   manifest.BatchID,
	}

	result, err := uc.Execute(context.Background(), VerifyMatchRequest{MatchID: rec.MatchID, Record: &rec})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Valid {
		t.Fatal("manifest leaf mismatch must not verify")
	}
	if result.MerkleCheck != domain.CheckFailed {
		t.Fatalf("merkle check = %q", result.MerkleCheck)
	}
}

func TestVerifyMatchUnanchoredBatchWarns(t *testing.T) {
	rec := testMatchRecord(t)
	hash := recordHashHex(t, rec)

	manifest := domain.BatchManifest{
		BatchID:     "batch-0003",
		MatchIDs:    []string{rec.MatchID},
		MatchHashes: []string{hash},
		MatchCount:  1,
	}
	tree, err := merkle.Build(manifest.MatchHashes)
	if err != nil {
		t.Fatalf("build tree: %v", err)
	}
	manifest.MerkleRoot = tree.RootHex()
	manifestBytes, err := json.Marshal(manifest)
	if err != nil {
		t.Fatalf("marshal manifest: %v", err)
	}

	uc := newVerifyMatch()
	uc.Store.(*fakeStore).objects[domain.BatchObjectKey(manifest.BatchID)] = manifestBytes
	uc.Matches.(*fakeMatches).rows[rec.MatchID] = &domain.MatchIndex{
		MatchID:   rec.MatchID,
		MatchHash: hash,
		Status:    domain.MatchStatusBatched,
		BatchID:   manifest.BatchID,
	}

	result, err := uc.Execute(context.Background(), VerifyMatchRequest{MatchID: rec.MatchID, Record: &rec})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !result.Valid {
		t.Fatalf("expected valid, errors: %v", result.Errors)
	}
	if result.MerkleCheck != domain.CheckPassed {
		t.Fatalf("merkle check = %q", result.MerkleCheck)
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected a warning about the missing batch anchor")
	}
}

func TestVerifyMatchUnsignedRecordWarns(t *testing.T) {
	rec := testMatchRecord(t)

	uc := newVerifyMatch()
	result, err := uc.Execute(context.Background(), VerifyMatchRequest{MatchID: rec.MatchID, Record: &rec})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.SignatureCheck != domain.CheckSkipped {
		t.Fatalf("signature check = %q", result.SignatureCheck)
	}
	if !result.Valid {
		t.Fatalf("unsigned record should be valid with warnings, errors: %v", result.Errors)
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected warnings for missing signatures and anchor")
	}
}

func TestVerifyMatchReplayOutcomes(t *testing.T) {
	rec := testMatchRecord(t)

	uc := newVerifyMatch()
	uc.Rules = &fakeRules{err: fmt.Errorf("%w: illegal claim at move 2", domain.ErrReplayRejected)}
	result, err := uc.Execute(context.Background(), VerifyMatchRequest{MatchID: rec.MatchID, Record: &rec})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.ReplayCheck != domain.CheckFailed || result.Valid {
		t.Fatalf("rejected replay: check=%q valid=%v", result.ReplayCheck, result.Valid)
	}

	uc.Rules = &fakeRules{err: fmt.Errorf("dial tcp: connection refused")}
	result, err = uc.Execute(context.Background(), VerifyMatchRequest{MatchID: rec.MatchID, Record: &rec})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.ReplayCheck != domain.CheckSkipped || !result.Valid {
		t.Fatalf("unreachable engine: check=%q valid=%v", result.ReplayCheck, result.Valid)
	}

	uc.Rules = &fakeRules{state: &domain.FinalState{Phase: "in_progress"}}
	result, err = uc.Execute(context.Background(), VerifyMatchRequest{MatchID: rec.MatchID, Record: &rec})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.ReplayCheck != domain.CheckFailed || result.Valid {
		t.Fatalf("unfinished replay: check=%q valid=%v", result.ReplayCheck, result.Valid)
	}

	result, err = uc.Execute(context.Background(), VerifyMatchRequest{MatchID: rec.MatchID, Record: &rec, SkipReplay: true})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.ReplayCheck != domain.CheckSkipped {
		t.Fatalf("skipped replay: check=%q", result.ReplayCheck)
	}
}

func TestVerifyMatchLoadsStoredRecord(t *testing.T) {
	rec := testMatchRecord(t)
	svc := &canonical.Service{}
	data, err := svc.RecordBytes(rec)
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}

	uc := newVerifyMatch()
	uc.Store.(*fakeStore).objects[domain.MatchObjectKey(rec.MatchID)] = data

	result, err := uc.Execute(context.Background(), VerifyMatchRequest{MatchID: rec.MatchID})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.ComputedHash != svc.HashHex(data) {
		t.Fatalf("computed hash %q differs from stored record hash", result.ComputedHash)
	}
	if !result.Valid {
		t.Fatalf("expected valid, errors: %v", result.Errors)
	}
}

func TestVerifyMatchMissingRecordFails(t *testing.T) {
	uc := newVerifyMatch()
	result, err := uc.Execute(context.Background(), VerifyMatchRequest{MatchID: "no-such-match"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Valid {
		t.Fatal("missing record must not verify")
	}
}

func TestVerifyMatchAttachesPolicyDecision(t *testing.T) {
	rec := testMatchRecord(t)

	uc := newVerifyMatch()
	uc.Policy = &fakePolicy{result: domain.PolicyResult{
		Decision: domain.DisputeFlag,
		Reasons:  []domain.PolicyReason{{Code: "no_anchor"}},
	}}

	result, err := uc.Execute(context.Background(), VerifyMatchRequest{MatchID: rec.MatchID, Record: &rec})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Decision != domain.DisputeFlag {
		t.Fatalf("decision = %q", result.Decision)
	}
	if !result.Valid {
		t.Fatal("advisory decision must not flip the verdict")
	}

	uc.Policy = &fakePolicy{err: fmt.Errorf("bundle not loaded")}
	result, err = uc.Execute(context.Background(), VerifyMatchRequest{MatchID: rec.MatchID, Record: &rec})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Decision != "" {
		t.Fatalf("decision should stay empty when the policy fails, got %q", result.Decision)
	}
}
