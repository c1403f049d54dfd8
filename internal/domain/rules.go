package domain

import "context"

// FinalState is the rules engine's verdict after replaying a move log
// deterministically from the seed.
type FinalState struct {
	Phase   string         `json:"phase"`
	Winner  string         `json:"winner,omitempty"`
	Scores  map[string]int `json:"scores,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

const (
	PhaseDealing = "dealing"
	PhasePlaying = "playing"
	PhaseEnded   = "ended"
)

// RulesEngine replays a match. An illegal move sequence is reported as
// an error; the engine itself is external and reached over the network,
// so transport failures surface as TransportError.
type RulesEngine interface {
	Replay(ctx context.Context, game Game, seed uint64, moves []MoveRecord) (*FinalState, error)
}
