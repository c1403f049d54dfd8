package domain

type CheckStatus string

const (
	CheckPassed  CheckStatus = "passed"
	CheckFailed  CheckStatus = "failed"
	CheckSkipped CheckStatus = "skipped"
)

// VerificationResult accumulates every check outcome for one candidate
// record. Checks never abort the run: failures land in Errors, checks
// that could not execute land in Warnings, and Valid is true only when
// nothing failed.
type VerificationResult struct {
	MatchID      string `json:"match_id"`
	ComputedHash string `json:"computed_hash"`
	AnchoredHash string `json:"anchored_hash,omitempty"`
	TxSignature  string `json:"tx_signature,omitempty"`
	BatchID      string `json:"batch_id,omitempty"`

	HashCheck      CheckStatus `json:"hash_check"`
	MerkleCheck    CheckStatus `json:"merkle_check"`
	SignatureCheck CheckStatus `json:"signature_check"`
	ReplayCheck    CheckStatus `json:"replay_check"`

	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	Valid    bool     `json:"valid"`

	Decision DisputeDecision `json:"decision,omitempty"`
}

func (r *VerificationResult) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
}

func (r *VerificationResult) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// Finalize sets Valid from the accumulated outcomes.
func (r *VerificationResult) Finalize() {
	r.Valid = len(r.Errors) == 0
}
