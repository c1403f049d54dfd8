package domain

import (
	"fmt"
	"time"
)

const (
	// SchemaVersion is the current match record schema. The on-chain
	// account reserves 10 bytes for it.
	SchemaVersion = "1.0.0"

	MatchIDLength    = 36
	MaxVersionLength = 10
	MaxGameNameLen   = 20
	MaxPlayerIDLen   = 64
	MaxHotURLLen     = 200
)

const (
	PlayerTypeHuman = "human"
	PlayerTypeAI    = "ai"
)

const SignatureAlgEd25519 = "ed25519"

// KnownGameNames mirrors the game discriminants the ledger program
// accepts.
var KnownGameNames = []string{
	"claim",
	"three_card_brag",
	"poker",
	"bridge",
	"rummy",
	"scrabble",
	"word_search",
	"crosswords",
}

type Game struct {
	Name      string `json:"name"`
	RulesetID string `json:"ruleset_id"`
}

type Player struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	PublicKey string `json:"public_key,omitempty"`
}

// MoveRecord is one entry in the ordered move log. Index is zero-based
// and must equal the entry's position; two records that differ only in
// move order are different matches.
type MoveRecord struct {
	Index    int            `json:"index"`
	TS       string         `json:"ts"`
	PlayerID string         `json:"player_id"`
	Action   string         `json:"action"`
	Payload  map[string]any `json:"payload,omitempty"`
}

type SignatureRecord struct {
	Sig       string `json:"sig"`
	PublicKey string `json:"public_key"`
	Alg       string `json:"alg"`
	TS        string `json:"ts"`
}

// MatchRecord is the unit of integrity: a finished match as the clients
// observed it. Timestamps are ISO-8601 UTC strings so the bytes the
// clients signed survive round trips unchanged.
type MatchRecord struct {
	Version    string            `json:"version"`
	MatchID    string            `json:"match_id"`
	Game       Game              `json:"game"`
	Seed       uint64            `json:"seed"`
	StartedAt  string            `json:"started_at"`
	EndedAt    string            `json:"ended_at"`
	Players    []Player          `json:"players"`
	Moves      []MoveRecord      `json:"moves"`
	Signatures []SignatureRecord `json:"signatures,omitempty"`
}

func knownGame(name string) bool {
	for _, g := range KnownGameNames {
		if g == name {
			return true
		}
	}
	return false
}

func validTimestamp(s string) bool {
	_, err := time.Parse(time.RFC3339, s)
	return err == nil
}

// Validate enforces the structural rules the ledger program enforces on
// its side, so malformed records fail before any bytes are hashed or
// anchored.
func (m MatchRecord) Validate() error {
	if m.Version == "" || len(m.Version) > MaxVersionLength {
		return fmt.Errorf("%w: version %q", ErrInvalidRecord, m.Version)
	}
	if len(m.MatchID) != MatchIDLength {
		return fmt.Errorf("%w: match_id must be %d chars, got %d", ErrInvalidRecord, MatchIDLength, len(m.MatchID))
	}
	if m.Game.Name == "" || len(m.Game.Name) > MaxGameNameLen {
		return fmt.Errorf("%w: game name %q", ErrInvalidRecord, m.Game.Name)
	}
	if !knownGame(m.Game.Name) {
		return fmt.Errorf("%w: unknown game %q", ErrInvalidRecord, m.Game.Name)
	}
	if m.Game.RulesetID == "" {
		return fmt.Errorf("%w: ruleset_id required", ErrInvalidRecord)
	}
	if !validTimestamp(m.StartedAt) {
		return fmt.Errorf("%w: started_at %q", ErrInvalidRecord, m.StartedAt)
	}
	if !validTimestamp(m.EndedAt) {
		return fmt.Errorf("%w: ended_at %q", ErrInvalidRecord, m.EndedAt)
	}
	if len(m.Players) == 0 {
		return fmt.Errorf("%w: players required", ErrInvalidRecord)
	}
	byID := make(map[string]struct{}, len(m.Players))
	for i, p := range m.Players {
		if p.ID == "" || len(p.ID) > MaxPlayerIDLen {
			return fmt.Errorf("%w: players[%d].id %q", ErrInvalidRecord, i, p.ID)
		}
		if p.Type != PlayerTypeHuman && p.Type != PlayerTypeAI {
			return fmt.Errorf("%w: players[%d].type %q", ErrInvalidRecord, i, p.Type)
		}
		if _, dup := byID[p.ID]; dup {
			return fmt.Errorf("%w: duplicate player %q", ErrInvalidRecord, p.ID)
		}
		byID[p.ID] = struct{}{}
	}
	for i, mv := range m.Moves {
		if mv.Index != i {
			return fmt.Errorf("%w: moves[%d].index = %d", ErrInvalidRecord, i, mv.Index)
		}
		if mv.Action == "" {
			return fmt.Errorf("%w: moves[%d].action required", ErrInvalidRecord, i)
		}
		if !validTimestamp(mv.TS) {
			return fmt.Errorf("%w: moves[%d].ts %q", ErrInvalidRecord, i, mv.TS)
		}
		if _, ok := byID[mv.PlayerID]; !ok {
			return fmt.Errorf("%w: moves[%d].player_id %q not in players", ErrInvalidRecord, i, mv.PlayerID)
		}
	}
	for i, sig := range m.Signatures {
		if sig.Alg != SignatureAlgEd25519 {
			return fmt.Errorf("%w: signatures[%d].alg %q", ErrInvalidRecord, i, sig.Alg)
		}
		if sig.Sig == "" || sig.PublicKey == "" {
			return fmt.Errorf("%w: signatures[%d] incomplete", ErrInvalidRecord, i)
		}
	}
	return nil
}

// SignerKeys returns the distinct signer public keys in record order.
func (m MatchRecord) SignerKeys() []string {
	seen := make(map[string]struct{}, len(m.Signatures))
	out := make([]string, 0, len(m.Signatures))
	for _, sig := range m.Signatures {
		if _, ok := seen[sig.PublicKey]; ok {
			continue
		}
		seen[sig.PublicKey] = struct{}{}
		out = append(out, sig.PublicKey)
	}
	return out
}
