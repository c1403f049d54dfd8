// Package gateway talks to the anchor gateway, the service that owns
// the ledger keys and transaction format. This side only ships
// canonical payload bytes and waits for confirmations; it never
// serializes a ledger transaction.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ocentra/matchproof/internal/domain"
)

const confirmWaitGrace = 5 * time.Second

// Client implements domain.LedgerClient over the gateway REST API.
type Client struct {
	baseURL string
	httpDo  func(*http.Request) (*http.Response, error)
}

func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("gateway base url is required")
	}
	doer := http.DefaultClient.Do
	if httpClient != nil {
		doer = httpClient.Do
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpDo:  doer,
	}, nil
}

// WithHTTPDo swaps the transport, for tests.
func (c *Client) WithHTTPDo(do func(*http.Request) (*http.Response, error)) *Client {
	c.httpDo = do
	return c
}

type submitRequest struct {
	Payload   json.RawMessage `json:"payload"`
	SignerKID string          `json:"signer_kid"`
}

type submitResponse struct {
	TxSignature string `json:"tx_signature"`
}

type waitRequest struct {
	Commitment string `json:"commitment"`
	TimeoutMS  int64  `json:"timeout_ms"`
}

type waitResponse struct {
	TxSignature string `json:"tx_signature"`
	Slot        uint64 `json:"slot"`
	Commitment  string `json:"commitment"`
}

type feeRequest struct {
	Payload json.RawMessage `json:"payload"`
}

type feeResponse struct {
	Lamports uint64 `json:"lamports"`
}

// SubmitPayload posts canonical payload bytes for signing and
// broadcast, returning the transaction signature.
func (c *Client) SubmitPayload(ctx context.Context, payload []byte, signerKID string) (string, error) {
	if !json.Valid(payload) {
		return "", fmt.Errorf("%w: payload is not valid JSON", domain.ErrNotCanonicalizable)
	}
	body := submitRequest{Payload: json.RawMessage(payload), SignerKID: signerKID}
	var out submitResponse
	if err := c.post(ctx, "submit", "/v1/anchors", body, &out); err != nil {
		return "", err
	}
	if out.TxSignature == "" {
		return "", domain.NewPermanentError("submit", errors.New("gateway returned no transaction signature"))
	}
	return out.TxSignature, nil
}

// GetAnchorByTransaction reads a confirmed anchor back. A missing
// transaction reports domain.ErrNotFound rather than a transport
// failure.
func (c *Client) GetAnchorByTransaction(ctx context.Context, txSignature string) (*domain.AnchorRecord, error) {
	if txSignature == "" {
		return nil, fmt.Errorf("%w: empty transaction signature", domain.ErrInvalidRecord)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/anchors/tx/"+txSignature, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpDo(req)
	if err != nil {
		return nil, transportErr(ctx, "get anchor", err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportErr(ctx, "get anchor", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("anchor for %s: %w", txSignature, domain.ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusErr("get anchor", resp.StatusCode, respBody)
	}
	var rec domain.AnchorRecord
	if err := json.Unmarshal(respBody, &rec); err != nil {
		return nil, domain.NewPermanentError("get anchor", fmt.Errorf("decode anchor record: %w", err))
	}
	return &rec, nil
}

// WaitForConfirmation blocks until the gateway reports the transaction
// at the requested commitment or the timeout passes. The gateway holds
// the long poll; the request context gets the timeout plus a small
// grace so a hung gateway cannot pin the caller.
func (c *Client) WaitForConfirmation(ctx context.Context, txSignature string, commitment domain.Commitment, timeout time.Duration) error {
	if txSignature == "" {
		return fmt.Errorf("%w: empty transaction signature", domain.ErrInvalidRecord)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout+confirmWaitGrace)
	defer cancel()

	body := waitRequest{Commitment: string(commitment), TimeoutMS: timeout.Milliseconds()}
	var out waitResponse
	err := c.post(waitCtx, "confirm", "/v1/anchors/tx/"+txSignature+"/wait", body, &out)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return &domain.TransportError{
				Op:        "confirm",
				Code:      domain.AnchorErrorTimeout,
				Transient: true,
				Err:       fmt.Errorf("confirmation of %s timed out after %s", txSignature, timeout),
			}
		}
		return err
	}
	return nil
}

// EstimateFee asks the gateway to price an anchor of this payload.
func (c *Client) EstimateFee(ctx context.Context, payload []byte) (uint64, error) {
	if !json.Valid(payload) {
		return 0, fmt.Errorf("%w: payload is not valid JSON", domain.ErrNotCanonicalizable)
	}
	var out feeResponse
	if err := c.post(ctx, "estimate fee", "/v1/fees", feeRequest{Payload: json.RawMessage(payload)}, &out); err != nil {
		return 0, err
	}
	return out.Lamports, nil
}

func (c *Client) post(ctx context.Context, op, path string, in, out any) error {
	reqBody, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(reqBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpDo(req)
	if err != nil {
		return transportErr(ctx, op, err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportErr(ctx, op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusErr(op, resp.StatusCode, respBody)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return domain.NewPermanentError(op, fmt.Errorf("decode gateway response: %w", err))
	}
	return nil
}

func transportErr(ctx context.Context, op string, err error) error {
	code := domain.AnchorErrorNetwork
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		code = domain.AnchorErrorTimeout
	}
	return &domain.TransportError{Op: op, Code: code, Transient: true, Err: err}
}

func statusErr(op string, status int, body []byte) error {
	detail := strings.TrimSpace(string(body))
	if len(detail) > 512 {
		detail = detail[:512]
	}
	err := fmt.Errorf("gateway status %d: %s", status, detail)
	switch {
	case status == http.StatusTooManyRequests:
		return &domain.TransportError{Op: op, Code: domain.AnchorErrorRateLimit, Transient: true, Err: err}
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return &domain.TransportError{Op: op, Code: domain.AnchorErrorTimeout, Transient: true, Err: err}
	case status >= 500:
		return &domain.TransportError{Op: op, Code: domain.AnchorErrorLedger5xx, Transient: true, Err: err}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &domain.TransportError{Op: op, Code: domain.AnchorErrorBadConfig, Transient: false, Err: err}
	default:
		return &domain.TransportError{Op: op, Code: domain.AnchorErrorRejected, Transient: false, Err: err}
	}
}
