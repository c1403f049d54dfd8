package domain

import (
	"context"
	"time"
)

type SignerStatus string

const (
	SignerStatusActive  SignerStatus = "active"
	SignerStatusRevoked SignerStatus = "revoked"
)

// Signer is a registered signing identity: a player client or a game
// server whose signatures over match records we accept. PublicKey is
// the hex form of the raw Ed25519 public key.
type Signer struct {
	PublicKey string
	Label     string
	Role      string
	Status    SignerStatus
	AddedAt   time.Time
	RevokedAt *time.Time
}

const (
	SignerRolePlayer = "player"
	SignerRoleServer = "server"
)

type SignerRepository interface {
	Register(ctx context.Context, signer Signer) error
	Get(ctx context.Context, publicKey string) (*Signer, error)
	Revoke(ctx context.Context, publicKey string, at time.Time) error
	ListActive(ctx context.Context) ([]Signer, error)
}
