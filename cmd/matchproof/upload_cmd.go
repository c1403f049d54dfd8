package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

func runUpload(args []string) int {
	fs := flag.NewFlagSet("upload", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var inPath string
	var serverURL string
	var anchorMode string
	fs.StringVar(&inPath, "in", "", "match record JSON path")
	fs.StringVar(&serverURL, "server", "", "daemon base URL")
	fs.StringVar(&anchorMode, "anchor", "", "anchor mode: none, single or batch (default server config)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if inPath == "" || serverURL == "" {
		fmt.Fprintln(os.Stderr, "upload requires --in and --server")
		return 1
	}
	switch anchorMode {
	case "", "none", "single", "batch":
	default:
		fmt.Fprintf(os.Stderr, "unknown anchor mode %q\n", anchorMode)
		return 1
	}

	rec, ok := readRecord(inPath)
	if !ok {
		return 1
	}
	body, err := json.Marshal(rec)
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal record: %v\n", err)
		return 1
	}

	endpoint := strings.TrimRight(serverURL, "/") + "/v1/matches"
	if anchorMode != "" {
		endpoint += "?anchor=" + url.QueryEscape(anchorMode)
	}
	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Post(endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "upload record: %v\n", err)
		return 1
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		fmt.Fprintf(os.Stderr, "read response: %v\n", err)
		return 1
	}
	if err := writeOutput("", payload); err != nil {
		fmt.Fprintf(os.Stderr, "write output: %v\n", err)
		return 1
	}
	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "daemon returned status %d\n", resp.StatusCode)
		return 1
	}
	return 0
}
