// Package record is the offline toolkit for match records: build,
// canonicalize, hash, sign and verify a record without a running
// daemon. Game clients and tournament auditors embed it directly.
package record

import (
	"crypto/ed25519"
	"time"

	"github.com/ocentra/matchproof/internal/domain"
	"github.com/ocentra/matchproof/internal/infra/canonical"
	"github.com/ocentra/matchproof/internal/infra/keys"
)

type BuildInput struct {
	MatchID   string
	Game      domain.Game
	Seed      uint64
	StartedAt time.Time
	EndedAt   time.Time
	Players   []domain.Player
	Moves     []domain.MoveRecord
}

// Build assembles a validated match record from its parts. Timestamps
// are normalized to RFC3339 UTC so independently built records hash
// identically.
func Build(input BuildInput) (domain.MatchRecord, error) {
	rec := domain.MatchRecord{
		Version:   domain.SchemaVersion,
		MatchID:   input.MatchID,
		Game:      input.Game,
		Seed:      input.Seed,
		StartedAt: input.StartedAt.UTC().Format(time.RFC3339),
		EndedAt:   input.EndedAt.UTC().Format(time.RFC3339),
		Players:   input.Players,
		Moves:     input.Moves,
	}
	if err := rec.Validate(); err != nil {
		return domain.MatchRecord{}, err
	}
	return rec, nil
}

// Canonicalize returns the canonical byte form of the full record,
// signatures included. These are the bytes the match hash covers.
func Canonicalize(rec domain.MatchRecord) ([]byte, error) {
	return canonical.RecordBytes(rec)
}

// Hash returns the lowercase hex SHA-256 of the canonical record.
func Hash(rec domain.MatchRecord) (string, error) {
	return canonical.RecordHash(rec)
}

// Sign appends a signature over the record's signing bytes, which
// exclude the signatures array so co-signers all sign the same bytes.
func Sign(rec domain.MatchRecord, priv ed25519.PrivateKey, at time.Time) (domain.MatchRecord, error) {
	signingBytes, err := canonical.SigningBytes(rec)
	if err != nil {
		return domain.MatchRecord{}, err
	}
	rec.Signatures = append(rec.Signatures, keys.Sign(signingBytes, priv, at))
	return rec, nil
}

type KeyPair = keys.Pair

func GenerateKeyPair() (KeyPair, error) {
	return keys.Generate()
}

func ParsePrivateKeyHex(value string) (ed25519.PrivateKey, error) {
	return keys.ParsePrivateKeyHex(value)
}

func ParsePublicKeyHex(value string) (ed25519.PublicKey, error) {
	return keys.ParsePublicKeyHex(value)
}
