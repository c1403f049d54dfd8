package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ocentra/matchproof/internal/domain"
	"github.com/ocentra/matchproof/pkg/record"
)

func runKeygen(args []string) int {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var outPath string
	fs.StringVar(&outPath, "out", "", "output key pair path (default stdout)")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	pair, err := record.GenerateKeyPair()
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate key pair: %v\n", err)
		return 1
	}
	payload, err := json.MarshalIndent(map[string]string{
		"public_key":  pair.PublicKeyHex,
		"private_key": pair.PrivateKeyHex,
	}, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal key pair: %v\n", err)
		return 1
	}
	if err := writeOutput(outPath, payload); err != nil {
		fmt.Fprintf(os.Stderr, "write output: %v\n", err)
		return 1
	}
	return 0
}

func runCanonicalize(args []string) int {
	fs := flag.NewFlagSet("canonicalize", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var inPath string
	var outPath string
	var hashOnly bool
	fs.StringVar(&inPath, "in", "", "match record JSON path")
	fs.StringVar(&outPath, "out", "", "output path (default stdout)")
	fs.BoolVar(&hashOnly, "hash-only", false, "print only the match hash")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if inPath == "" {
		fmt.Fprintln(os.Stderr, "canonicalize requires --in")
		return 1
	}

	rec, ok := readRecord(inPath)
	if !ok {
		return 1
	}

	if hashOnly {
		hash, err := record.Hash(rec)
		if err != nil {
			fmt.Fprintf(os.Stderr, "hash record: %v\n", err)
			return 1
		}
		if err := writeOutput(outPath, []byte(hash)); err != nil {
			fmt.Fprintf(os.Stderr, "write output: %v\n", err)
			return 1
		}
		return 0
	}

	canonical, err := record.Canonicalize(rec)
	if err != nil {
		fmt.Fprintf(os.Stderr, "canonicalize record: %v\n", err)
		return 1
	}
	if err := writeOutput(outPath, canonical); err != nil {
		fmt.Fprintf(os.Stderr, "write output: %v\n", err)
		return 1
	}
	return 0
}

func runSign(args []string) int {
	fs := flag.NewFlagSet("sign", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var inPath string
	var outPath string
	var keyHex string
	fs.StringVar(&inPath, "in", "", "match record JSON path")
	fs.StringVar(&outPath, "out", "", "output record path (default stdout)")
	fs.StringVar(&keyHex, "key-hex", "", "ed25519 private key hex (seed, private key, or pkcs8)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if inPath == "" || keyHex == "" {
		fmt.Fprintln(os.Stderr, "sign requires --in and --key-hex")
		return 1
	}

	rec, ok := readRecord(inPath)
	if !ok {
		return 1
	}
	priv, err := record.ParsePrivateKeyHex(keyHex)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse private key: %v\n", err)
		return 1
	}

	signed, err := record.Sign(rec, priv, time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "sign record: %v\n", err)
		return 1
	}
	payload, err := json.MarshalIndent(signed, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal record: %v\n", err)
		return 1
	}
	if err := writeOutput(outPath, payload); err != nil {
		fmt.Fprintf(os.Stderr, "write output: %v\n", err)
		return 1
	}
	return 0
}

func runVerify(args []string) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var inPath string
	var anchoredHash string
	var manifestPath string
	var anchoredRoot string
	fs.StringVar(&inPath, "in", "", "match record JSON path")
	fs.StringVar(&anchoredHash, "anchored-hash", "", "anchored sha256 hex to compare against")
	fs.StringVar(&manifestPath, "manifest", "", "batch manifest JSON path")
	fs.StringVar(&anchoredRoot, "root", "", "anchored merkle root hex")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if inPath == "" {
		fmt.Fprintln(os.Stderr, "verify requires --in")
		return 1
	}

	rec, ok := readRecord(inPath)
	if !ok {
		return 1
	}

	opts := record.VerifyOptions{
		AnchoredHash: anchoredHash,
		AnchoredRoot: anchoredRoot,
	}
	if manifestPath != "" {
		manifestBytes, err := os.ReadFile(manifestPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read manifest: %v\n", err)
			return 1
		}
		var manifest domain.BatchManifest
		if err := json.Unmarshal(manifestBytes, &manifest); err != nil {
			fmt.Fprintf(os.Stderr, "decode manifest: %v\n", err)
			return 1
		}
		opts.Manifest = &manifest
	}

	result, err := record.Verify(rec, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "verify record: %v\n", err)
		return 1
	}
	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal result: %v\n", err)
		return 1
	}
	if err := writeOutput("", payload); err != nil {
		fmt.Fprintf(os.Stderr, "write output: %v\n", err)
		return 1
	}

	if !result.SignaturesValid {
		return 1
	}
	if result.HashMatchesAnchor != nil && !*result.HashMatchesAnchor {
		return 1
	}
	if result.IncludedInBatch != nil && !*result.IncludedInBatch {
		return 1
	}
	return 0
}

func readRecord(path string) (domain.MatchRecord, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read record: %v\n", err)
		return domain.MatchRecord{}, false
	}
	var rec domain.MatchRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		fmt.Fprintf(os.Stderr, "decode record: %v\n", err)
		return domain.MatchRecord{}, false
	}
	return rec, true
}
