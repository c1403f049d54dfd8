package policy

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/ocentra/matchproof/internal/domain"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	path := filepath.Join("..", "..", "..", "policy", "bundles", "dispute_v1")
	engine, err := NewEngineFromBundlePath(context.Background(), path, "dispute_v1")
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine
}

func baseInput() domain.PolicyInput {
	return domain.PolicyInput{
		Result: domain.VerificationResult{
			MatchID:        "0bd5f5a2-9a71-4c6e-9e7b-3f1a2b9c4d01",
			ComputedHash:   strings.Repeat("ab", 32),
			AnchoredHash:   strings.Repeat("ab", 32),
			HashCheck:      domain.CheckPassed,
			MerkleCheck:    domain.CheckPassed,
			SignatureCheck: domain.CheckPassed,
			ReplayCheck:    domain.CheckPassed,
			Valid:          true,
		},
		GameName: "claim",
	}
}

func TestEngineDeterministic(t *testing.T) {
	engine := newEngine(t)
	input := baseInput()

	first, err := engine.Evaluate(context.Background(), input)
	if err != nil {
		t.Fatalf("evaluate first: %v", err)
	}
	second, err := engine.Evaluate(context.Background(), input)
	if err != nil {
		t.Fatalf("evaluate second: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatal("expected deterministic policy evaluation")
	}
	if first.Decision != domain.DisputeAccept {
		t.Fatalf("expected accept for clean result, got %s", first.Decision)
	}
	if len(first.Reasons) != 0 {
		t.Fatalf("expected no reasons, got %+v", first.Reasons)
	}
	if engine.BundleHash() == "" {
		t.Fatal("expected bundle hash to be set")
	}
}

func TestEngineDecisions(t *testing.T) {
	engine := newEngine(t)

	tests := []struct {
		name     string
		mutate   func(input *domain.PolicyInput)
		decision domain.DisputeDecision
		codes    []string
	}{
		{
			name: "hash mismatch rejects",
			mutate: func(input *domain.PolicyInput) {
				input.Result.HashCheck = domain.CheckFailed
			},
			decision: domain.DisputeReject,
			codes:    []string{"HASH_MISMATCH"},
		},
		{
			name: "bad signature rejects",
			mutate: func(input *domain.PolicyInput) {
				input.Result.SignatureCheck = domain.CheckFailed
			},
			decision: domain.DisputeReject,
			codes:    []string{"SIGNATURE_INVALID"},
		},
		{
			name: "bad proof rejects",
			mutate: func(input *domain.PolicyInput) {
				input.Result.MerkleCheck = domain.CheckFailed
			},
			decision: domain.DisputeReject,
			codes:    []string{"PROOF_INVALID"},
		},
		{
			name: "replay divergence flags",
			mutate: func(input *domain.PolicyInput) {
				input.Result.ReplayCheck = domain.CheckFailed
			},
			decision: domain.DisputeFlag,
			codes:    []string{"REPLAY_DIVERGENCE"},
		},
		{
			name: "warnings flag",
			mutate: func(input *domain.PolicyInput) {
				input.Result.ReplayCheck = domain.CheckSkipped
				input.Result.Warnings = []string{"replay skipped: engine unavailable"}
			},
			decision: domain.DisputeFlag,
			codes:    []string{"INCOMPLETE_EVIDENCE"},
		},
		{
			name: "multiple failures reject with sorted reasons",
			mutate: func(input *domain.PolicyInput) {
				input.Result.HashCheck = domain.CheckFailed
				input.Result.SignatureCheck = domain.CheckFailed
			},
			decision: domain.DisputeReject,
			codes:    []string{"HASH_MISMATCH", "SIGNATURE_INVALID"},
		},
		{
			name: "reject outranks flag",
			mutate: func(input *domain.PolicyInput) {
				input.Result.HashCheck = domain.CheckFailed
				input.Result.ReplayCheck = domain.CheckFailed
			},
			decision: domain.DisputeReject,
			codes:    []string{"HASH_MISMATCH"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := baseInput()
			tt.mutate(&input)
			out, err := engine.Evaluate(context.Background(), input)
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if out.Decision != tt.decision {
				t.Fatalf("expected %s, got %s (%+v)", tt.decision, out.Decision, out.Reasons)
			}
			got := make([]string, 0, len(out.Reasons))
			for _, reason := range out.Reasons {
				got = append(got, reason.Code)
			}
			if !reflect.DeepEqual(tt.codes, got) {
				t.Fatalf("expected codes %v, got %v", tt.codes, got)
			}
		})
	}
}

func TestEngineRejectsTimeBuiltin(t *testing.T) {
	rejectBuiltin(t, "time.now_ns()")
}

func TestEngineRejectsHttpSend(t *testing.T) {
	rejectBuiltin(t, "http.send({\"method\": \"get\", \"url\": \"https://example.com\"})")
}

func TestEngineRejectsRand(t *testing.T) {
	rejectBuiltin(t, "rand.intn(10)")
}

func rejectBuiltin(t *testing.T, expr string) {
	t.Helper()
	dir := t.TempDir()
	regoContent := `package matchproof.dispute
result := {"decision": "accept", "reasons": []} {
  ` + expr + `
}`
	if err := os.WriteFile(filepath.Join(dir, "dispute.rego"), []byte(regoContent), 0o644); err != nil {
		t.Fatalf("write rego: %v", err)
	}
	if _, err := NewEngineFromBundlePath(context.Background(), dir, "test"); err == nil {
		t.Fatal("expected builtin to be rejected")
	}
}

func TestEngineRejectsUnknownDecision(t *testing.T) {
	dir := t.TempDir()
	regoContent := `package matchproof.dispute
result := {"decision": "shrug", "reasons": []}`
	if err := os.WriteFile(filepath.Join(dir, "dispute.rego"), []byte(regoContent), 0o644); err != nil {
		t.Fatalf("write rego: %v", err)
	}
	engine, err := NewEngineFromBundlePath(context.Background(), dir, "test")
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if _, err := engine.Evaluate(context.Background(), baseInput()); err == nil {
		t.Fatal("expected unknown decision to error")
	}
}
