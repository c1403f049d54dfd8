package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ocentra/matchproof/internal/domain"
)

type VerifyMatchRequest struct {
	MatchID string
	// Record is the candidate record to verify. Nil loads the stored
	// record from the object store.
	Record *domain.MatchRecord
	// SkipReplay leaves the rules engine out even when configured.
	SkipReplay bool
}

// VerifyMatch reconciles a candidate match record against its on-chain
// anchor. Every sub-check that can run does run; failures accumulate as
// error strings and checks that cannot run become warnings, so one call
// yields the complete report rather than the first problem found.
type VerifyMatch struct {
	Store      domain.ObjectStore
	Matches    domain.MatchRepository
	Batches    domain.BatchRepository
	Receipts   domain.AnchorReceiptRepository
	Ledger     domain.LedgerClient
	Canonical  CanonicalService
	Signatures SignatureVerifier
	Merkle     MerkleService
	Rules      domain.RulesEngine
	Policy     domain.DisputePolicy
}

func (uc *VerifyMatch) Execute(ctx context.Context, req VerifyMatchRequest) (*domain.VerificationResult, error) {
	if uc.Canonical == nil {
		return nil, errors.New("verify match: canonical service is required")
	}
	result := &domain.VerificationResult{
		MatchID:        req.MatchID,
		HashCheck:      domain.CheckSkipped,
		MerkleCheck:    domain.CheckSkipped,
		SignatureCheck: domain.CheckSkipped,
		ReplayCheck:    domain.CheckSkipped,
	}

	rec, ok := uc.resolveRecord(ctx, req, result)
	if !ok {
		result.Finalize()
		return result, nil
	}

	if rec.MatchID != req.MatchID {
		result.AddError(fmt.Sprintf("record match_id %q does not match requested %q", rec.MatchID, req.MatchID))
	}
	if err := rec.Validate(); err != nil {
		result.AddError(fmt.Sprintf("record invalid: %v", err))
	}

	data, err := uc.Canonical.RecordBytes(*rec)
	if err != nil {
		result.AddError(fmt.Sprintf("record not canonicalizable: %v", err))
		result.Finalize()
		return result, nil
	}
	result.ComputedHash = uc.Canonical.HashHex(data)

	uc.checkAnchor(ctx, rec, result)
	uc.checkSignatures(*rec, result)
	uc.checkReplay(ctx, *rec, req.SkipReplay, result)

	result.Finalize()
	uc.attachDecision(ctx, rec, result)
	return result, nil
}

func (uc *VerifyMatch) resolveRecord(ctx context.Context, req VerifyMatchRequest, result *domain.VerificationResult) (*domain.MatchRecord, bool) {
	if req.Record != nil {
		return req.Record, true
	}
	if uc.Store == nil {
		result.AddError("no record supplied and no object store configured")
		return nil, false
	}
	data, err := uc.Store.Get(ctx, domain.MatchObjectKey(req.MatchID))
	if err != nil {
		result.AddError(fmt.Sprintf("stored record unavailable: %v", err))
		return nil, false
	}
	var rec domain.MatchRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		result.AddError(fmt.Sprintf("stored record undecodable: %v", err))
		return nil, false
	}
	return &rec, true
}

// checkAnchor resolves how the match was anchored (directly or through
// a batch) and compares the computed hash against the ledger.
func (uc *VerifyMatch) checkAnchor(ctx context.Context, rec *domain.MatchRecord, result *domain.VerificationResult) {
	var row *domain.MatchIndex
	if uc.Matches != nil {
		found, err := uc.Matches.Get(ctx, rec.MatchID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			result.AddWarning("match is not in the index")
		case err != nil:
			result.AddWarning(fmt.Sprintf("match index unavailable: %v", err))
		default:
			row = found
		}
	}

	if row != nil && row.BatchID != "" {
		uc.checkBatchAnchor(ctx, rec, row.BatchID, result)
		return
	}

	txSignature := ""
	if row != nil {
		txSignature = row.TxSignature
	}
	if txSignature == "" && uc.Receipts != nil {
		receipt, err := uc.Receipts.GetByRef(ctx, rec.MatchID)
		if err == nil && receipt.Status == domain.AnchorStatusAnchored {
			txSignature = receipt.TxSignature
		}
	}
	if txSignature == "" {
		result.AddWarning("match has no anchor yet; hash check skipped")
		return
	}
	result.TxSignature = txSignature

	if uc.Ledger == nil {
		result.AddWarning("no ledger client configured; hash check skipped")
		return
	}
	anchorRec, err := uc.Ledger.GetAnchorByTransaction(ctx, txSignature)
	if err != nil {
		result.HashCheck = domain.CheckFailed
		result.AddError(fmt.Sprintf("anchor %s not retrievable: %v", txSignature, err))
		return
	}
	payload := anchorRec.Payload
	if payload.MatchID != rec.MatchID {
		result.HashCheck = domain.CheckFailed
		result.AddError(fmt.Sprintf("anchor %s belongs to match %q, not %q", txSignature, payload.MatchID, rec.MatchID))
		return
	}
	result.AnchoredHash = payload.SHA256
	if hexEqual(payload.SHA256, result.ComputedHash) {
		result.HashCheck = domain.CheckPassed
		return
	}
	result.HashCheck = domain.CheckFailed
	result.AddError(fmt.Sprintf("computed hash %s differs from anchored hash %s", result.ComputedHash, payload.SHA256))
}

func (uc *VerifyMatch) checkBatchAnchor(ctx context.Context, rec *domain.MatchRecord, batchID string, result *domain.VerificationResult) {
	result.BatchID = batchID
	if uc.Store == nil {
		result.AddWarning("no object store configured; merkle check skipped")
		return
	}
	manifestBytes, err := uc.Store.Get(ctx, domain.BatchObjectKey(batchID))
	if err != nil {
		result.MerkleCheck = domain.CheckFailed
		result.AddError(fmt.Sprintf("batch manifest %s unavailable: %v", batchID, err))
		return
	}
	var manifest domain.BatchManifest
	if err := json.Unmarshal(manifestBytes, &manifest); err != nil {
		result.MerkleCheck = domain.CheckFailed
		result.AddError(fmt.Sprintf("batch manifest %s undecodable: %v", batchID, err))
		return
	}

	leafIndex := manifest.LeafIndex(rec.MatchID)
	if leafIndex < 0 {
		result.MerkleCheck = domain.CheckFailed
		result.AddError(fmt.Sprintf("match %s is not listed in batch manifest %s", rec.MatchID, batchID))
		return
	}
	if !hexEqual(manifest.MatchHashes[leafIndex], result.ComputedHash) {
		result.MerkleCheck = domain.CheckFailed
		result.AddError(fmt.Sprintf("computed hash %s differs from manifest leaf %s", result.ComputedHash, manifest.MatchHashes[leafIndex]))
		return
	}

	txSignature := uc.batchTxSignature(ctx, batchID)
	if txSignature == "" {
		result.AddWarning("batch has no anchor yet; merkle check ran against the manifest only")
		uc.verifyInclusion(manifest, leafIndex, result.ComputedHash, manifest.MerkleRoot, result)
		return
	}
	result.TxSignature = txSignature

	if uc.Ledger == nil {
		result.AddWarning("no ledger client configured; merkle check ran against the manifest only")
		uc.verifyInclusion(manifest, leafIndex, result.ComputedHash, manifest.MerkleRoot, result)
		return
	}
	anchorRec, err := uc.Ledger.GetAnchorByTransaction(ctx, txSignature)
	if err != nil {
		result.MerkleCheck = domain.CheckFailed
		result.AddError(fmt.Sprintf("batch anchor %s not retrievable: %v", txSignature, err))
		return
	}
	payload := anchorRec.Payload
	if payload.BatchID != batchID {
		result.MerkleCheck = domain.CheckFailed
		result.AddError(fmt.Sprintf("anchor %s belongs to batch %q, not %q", txSignature, payload.BatchID, batchID))
		return
	}
	if payload.MatchCount != manifest.MatchCount {
		result.AddError(fmt.Sprintf("anchored match_count %d differs from manifest count %d", payload.MatchCount, manifest.MatchCount))
	}
	result.AnchoredHash = payload.MerkleRoot
	uc.verifyInclusion(manifest, leafIndex, result.ComputedHash, payload.MerkleRoot, result)
}

func (uc *VerifyMatch) verifyInclusion(manifest domain.BatchManifest, leafIndex int, leafHex, rootHex string, result *domain.VerificationResult) {
	if uc.Merkle == nil {
		result.AddWarning("no merkle service configured; merkle check skipped")
		return
	}
	ok, err := uc.Merkle.VerifyInclusion(manifest.MatchHashes, leafIndex, leafHex, rootHex)
	if err != nil {
		result.MerkleCheck = domain.CheckFailed
		result.AddError(fmt.Sprintf("merkle proof malformed: %v", err))
		return
	}
	if !ok {
		result.MerkleCheck = domain.CheckFailed
		result.AddError(fmt.Sprintf("merkle inclusion proof does not reach root %s", rootHex))
		return
	}
	result.MerkleCheck = domain.CheckPassed
}

func (uc *VerifyMatch) batchTxSignature(ctx context.Context, batchID string) string {
	if uc.Batches != nil {
		row, err := uc.Batches.Get(ctx, batchID)
		if err == nil && row.TxSignature != "" {
			return row.TxSignature
		}
	}
	if uc.Receipts != nil {
		receipt, err := uc.Receipts.GetByRef(ctx, batchID)
		if err == nil && receipt.Status == domain.AnchorStatusAnchored {
			return receipt.TxSignature
		}
	}
	return ""
}

func (uc *VerifyMatch) checkSignatures(rec domain.MatchRecord, result *domain.VerificationResult) {
	if len(rec.Signatures) == 0 {
		result.AddWarning("record carries no signatures; signature check skipped")
		return
	}
	if uc.Signatures == nil {
		result.AddWarning("no signature verifier configured; signature check skipped")
		return
	}
	signingBytes, err := uc.Canonical.SigningBytes(rec)
	if err != nil {
		result.SignatureCheck = domain.CheckFailed
		result.AddError(fmt.Sprintf("signing bytes not derivable: %v", err))
		return
	}
	result.SignatureCheck = domain.CheckPassed
	for i, sig := range rec.Signatures {
		if !uc.Signatures.Verify(sig, signingBytes) {
			result.SignatureCheck = domain.CheckFailed
			result.AddError(fmt.Sprintf("signatures[%d] by %s failed verification", i, sig.PublicKey))
		}
	}
}

func (uc *VerifyMatch) checkReplay(ctx context.Context, rec domain.MatchRecord, skip bool, result *domain.VerificationResult) {
	if skip {
		return
	}
	if uc.Rules == nil {
		result.AddWarning("no rules engine configured; replay check skipped")
		return
	}
	state, err := uc.Rules.Replay(ctx, rec.Game, rec.Seed, rec.Moves)
	switch {
	case errors.Is(err, domain.ErrReplayRejected):
		result.ReplayCheck = domain.CheckFailed
		result.AddError(fmt.Sprintf("replay rejected the move log: %v", err))
	case err != nil:
		// The engine being unreachable is not evidence against the
		// record.
		result.AddWarning(fmt.Sprintf("replay unavailable: %v", err))
	case state.Phase != domain.PhaseEnded:
		result.ReplayCheck = domain.CheckFailed
		result.AddError(fmt.Sprintf("replay ended in phase %q, not %q", state.Phase, domain.PhaseEnded))
	default:
		result.ReplayCheck = domain.CheckPassed
	}
}

// attachDecision runs the advisory dispute policy over the finished
// result. It annotates, never mutates the verdict.
func (uc *VerifyMatch) attachDecision(ctx context.Context, rec *domain.MatchRecord, result *domain.VerificationResult) {
	if uc.Policy == nil {
		return
	}
	input := domain.PolicyInput{
		Result:   *result,
		GameName: rec.Game.Name,
		Signers:  rec.SignerKeys(),
	}
	policyResult, err := uc.Policy.Evaluate(ctx, input)
	if err != nil {
		result.AddWarning(fmt.Sprintf("dispute policy unavailable: %v", err))
		return
	}
	result.Decision = policyResult.Decision
}

func hexEqual(a, b string) bool {
	return strings.EqualFold(a, b)
}
