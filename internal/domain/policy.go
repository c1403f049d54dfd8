package domain

import "context"

type DisputeDecision string

const (
	DisputeAccept DisputeDecision = "accept"
	DisputeFlag   DisputeDecision = "flag_dispute"
	DisputeReject DisputeDecision = "reject"
)

// PolicyInput is what the dispute policy sees: the finished
// verification outcome plus record context. The policy is advisory and
// never changes the verification verdict itself.
type PolicyInput struct {
	Result   VerificationResult `json:"result"`
	GameName string             `json:"game_name,omitempty"`
	Signers  []string           `json:"signers,omitempty"`
}

type PolicyReason struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

type PolicyResult struct {
	Decision DisputeDecision `json:"decision"`
	Reasons  []PolicyReason  `json:"reasons,omitempty"`
}

type DisputePolicy interface {
	Evaluate(ctx context.Context, input PolicyInput) (PolicyResult, error)
}
