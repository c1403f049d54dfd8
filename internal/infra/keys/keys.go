// Package keys handles Ed25519 key material and match record
// signatures. Public keys travel as hex-encoded raw 32-byte values,
// private keys as hex-encoded PKCS#8 DER; raw 32-byte seeds and 64-byte
// expanded keys are accepted on import for operator convenience.
package keys

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/ocentra/matchproof/internal/domain"
)

type Pair struct {
	PublicKeyHex  string
	PrivateKeyHex string
}

func Generate() (Pair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return Pair{}, fmt.Errorf("generate ed25519 key: %w", err)
	}
	privHex, err := ExportPrivateKeyHex(priv)
	if err != nil {
		return Pair{}, err
	}
	return Pair{
		PublicKeyHex:  ExportPublicKeyHex(pub),
		PrivateKeyHex: privHex,
	}, nil
}

func ExportPublicKeyHex(key ed25519.PublicKey) string {
	return hex.EncodeToString(key)
}

func ExportPrivateKeyHex(key ed25519.PrivateKey) (string, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return "", fmt.Errorf("marshal pkcs8: %w", err)
	}
	return hex.EncodeToString(der), nil
}

func ParsePublicKeyHex(value string) (ed25519.PublicKey, error) {
	raw, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: public key hex: %v", domain.ErrKeyFormat, err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: public key length %d", domain.ErrKeyFormat, len(raw))
	}
	return append(ed25519.PublicKey(nil), raw...), nil
}

func ParsePrivateKeyHex(value string) (ed25519.PrivateKey, error) {
	raw, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: private key hex: %v", domain.ErrKeyFormat, err)
	}
	switch len(raw) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	case ed25519.PrivateKeySize:
		return append(ed25519.PrivateKey(nil), raw...), nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: private key: %v", domain.ErrKeyFormat, err)
	}
	key, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an ed25519 private key", domain.ErrKeyFormat)
	}
	return key, nil
}

// Sign signs canonical bytes and wraps the result as the record-level
// signature entry.
func Sign(canonicalBytes []byte, priv ed25519.PrivateKey, at time.Time) domain.SignatureRecord {
	sig := ed25519.Sign(priv, canonicalBytes)
	pub := priv.Public().(ed25519.PublicKey)
	return domain.SignatureRecord{
		Sig:       hex.EncodeToString(sig),
		PublicKey: ExportPublicKeyHex(pub),
		Alg:       domain.SignatureAlgEd25519,
		TS:        at.UTC().Format(time.RFC3339),
	}
}

// Verify reports whether rec is a valid signature over canonicalBytes.
// Malformed encodings and forged signatures both come back false; use
// VerifyRecord when the caller needs to tell them apart.
func Verify(rec domain.SignatureRecord, canonicalBytes []byte) bool {
	ok, err := VerifyRecord(rec, canonicalBytes)
	return err == nil && ok
}

// VerifyRecord separates malformed material (ErrKeyFormat) from a clean
// false verdict on a well-formed but wrong signature.
func VerifyRecord(rec domain.SignatureRecord, canonicalBytes []byte) (bool, error) {
	if rec.Alg != "" && rec.Alg != domain.SignatureAlgEd25519 {
		return false, fmt.Errorf("%w: unsupported alg %q", domain.ErrKeyFormat, rec.Alg)
	}
	pub, err := ParsePublicKeyHex(rec.PublicKey)
	if err != nil {
		return false, err
	}
	sig, err := hex.DecodeString(rec.Sig)
	if err != nil {
		return false, fmt.Errorf("%w: signature hex: %v", domain.ErrKeyFormat, err)
	}
	if len(sig) != ed25519.SignatureSize {
		return false, fmt.Errorf("%w: signature length %d", domain.ErrKeyFormat, len(sig))
	}
	return ed25519.Verify(pub, canonicalBytes, sig), nil
}
