package main

import (
	"fmt"
	"os"
	"path/filepath"
)

func run(args []string) int {
	if len(args) < 2 {
		usage(args)
		return 1
	}

	switch args[1] {
	case "keygen":
		return runKeygen(args[2:])
	case "canonicalize":
		return runCanonicalize(args[2:])
	case "sign":
		return runSign(args[2:])
	case "verify":
		return runVerify(args[2:])
	case "upload":
		return runUpload(args[2:])
	}

	usage(args)
	return 1
}

func usage(args []string) {
	name := "matchproof"
	if len(args) > 0 && args[0] != "" {
		name = filepath.Base(args[0])
	}
	fmt.Fprintf(os.Stderr, "usage:\n")
	fmt.Fprintf(os.Stderr, "  %s keygen [--out <file>]\n", name)
	fmt.Fprintf(os.Stderr, "  %s canonicalize --in <record.json> [--out <file>] [--hash-only]\n", name)
	fmt.Fprintf(os.Stderr, "  %s sign --in <record.json> --key-hex <hex> [--out <file>]\n", name)
	fmt.Fprintf(os.Stderr, "  %s verify --in <record.json> [--anchored-hash <hex>] [--manifest <file>] [--root <hex>]\n", name)
	fmt.Fprintf(os.Stderr, "  %s upload --in <record.json> --server <url> [--anchor none|single|batch]\n", name)
}
