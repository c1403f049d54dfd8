package keys

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ocentra/matchproof/internal/domain"
)

func TestGenerateRoundTrip(t *testing.T) {
	pair, err := Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	priv, err := ParsePrivateKeyHex(pair.PrivateKeyHex)
	if err != nil {
		t.Fatalf("parse private: %v", err)
	}
	pub, err := ParsePublicKeyHex(pair.PublicKeyHex)
	if err != nil {
		t.Fatalf("parse public: %v", err)
	}
	if !pub.Equal(priv.Public().(ed25519.PublicKey)) {
		t.Fatal("exported public key does not match private key")
	}
}

func TestParsePrivateKeyHex_SeedAndExpanded(t *testing.T) {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i)
	}
	fromSeed, err := ParsePrivateKeyHex(hex.EncodeToString(seed))
	if err != nil {
		t.Fatalf("parse seed: %v", err)
	}
	fromFull, err := ParsePrivateKeyHex(hex.EncodeToString(fromSeed))
	if err != nil {
		t.Fatalf("parse expanded: %v", err)
	}
	if !fromSeed.Equal(fromFull) {
		t.Fatal("seed and expanded forms disagree")
	}
}

func TestParseKeys_RejectMalformed(t *testing.T) {
	cases := []string{"", "zz", "abcd", hex.EncodeToString(make([]byte, 31))}
	for _, in := range cases {
		if _, err := ParsePublicKeyHex(in); !errors.Is(err, domain.ErrKeyFormat) {
			t.Fatalf("public %q: expected ErrKeyFormat, got %v", in, err)
		}
	}
	if _, err := ParsePrivateKeyHex("njet"); !errors.Is(err, domain.ErrKeyFormat) {
		t.Fatalf("expected ErrKeyFormat, got %v", err)
	}
	if _, err := ParsePrivateKeyHex(hex.EncodeToString(make([]byte, 33))); !errors.Is(err, domain.ErrKeyFormat) {
		t.Fatalf("expected ErrKeyFormat for junk DER, got %v", err)
	}
}

func TestSignVerify(t *testing.T) {
	pair, err := Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	priv, err := ParsePrivateKeyHex(pair.PrivateKeyHex)
	if err != nil {
		t.Fatalf("parse private: %v", err)
	}

	payload := []byte(`{"match_id":"m-1","moves":[]}`)
	rec := Sign(payload, priv, time.Date(2026, 3, 1, 18, 22, 45, 0, time.UTC))

	if rec.Alg != domain.SignatureAlgEd25519 {
		t.Fatalf("alg = %q", rec.Alg)
	}
	if rec.PublicKey != pair.PublicKeyHex {
		t.Fatal("signature record carries wrong public key")
	}
	if rec.TS != "2026-03-01T18:22:45Z" {
		t.Fatalf("ts = %q", rec.TS)
	}
	if !Verify(rec, payload) {
		t.Fatal("signature did not verify")
	}
}

func TestVerify_CorruptionFlipsVerdict(t *testing.T) {
	pair, _ := Generate()
	priv, err := ParsePrivateKeyHex(pair.PrivateKeyHex)
	if err != nil {
		t.Fatalf("parse private: %v", err)
	}
	payload := []byte(`{"match_id":"m-1"}`)
	rec := Sign(payload, priv, time.Now())

	tampered := append([]byte(nil), payload...)
	tampered[len(tampered)-2] ^= 0x01
	if Verify(rec, tampered) {
		t.Fatal("tampered payload verified")
	}

	mangled := rec
	raw, _ := hex.DecodeString(rec.Sig)
	raw[0] ^= 0x01
	mangled.Sig = hex.EncodeToString(raw)
	if Verify(mangled, payload) {
		t.Fatal("corrupted signature verified")
	}
}

func TestVerifyRecord_FormatErrorsAreTyped(t *testing.T) {
	rec := domain.SignatureRecord{Sig: "xx", PublicKey: "yy", Alg: "rsa"}
	if _, err := VerifyRecord(rec, []byte("data")); !errors.Is(err, domain.ErrKeyFormat) {
		t.Fatalf("expected ErrKeyFormat for alg, got %v", err)
	}

	pair, _ := Generate()
	rec = domain.SignatureRecord{
		Sig:       strings.Repeat("ab", 10),
		PublicKey: pair.PublicKeyHex,
		Alg:       domain.SignatureAlgEd25519,
	}
	if _, err := VerifyRecord(rec, []byte("data")); !errors.Is(err, domain.ErrKeyFormat) {
		t.Fatalf("expected ErrKeyFormat for short signature, got %v", err)
	}
}
