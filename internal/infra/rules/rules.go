// Package rules reaches the external rules engine that can replay a
// move log deterministically from its seed. The engine is the only
// component that knows game semantics; this client just ships the log
// and interprets the verdict.
package rules

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ocentra/matchproof/internal/domain"
)

type Client struct {
	baseURL string
	httpDo  func(*http.Request) (*http.Response, error)
}

func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("rules engine base url is required")
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

type replayRequest struct {
	Game  domain.Game         `json:"game"`
	Seed  uint64              `json:"seed"`
	Moves []domain.MoveRecord `json:"moves"`
}

type replayError struct {
	Error     string `json:"error"`
	MoveIndex *int   `json:"move_index,omitempty"`
}

// Replay posts the move log and returns the engine's final state. An
// engine verdict that the log is illegal comes back wrapping
// domain.ErrReplayRejected; transport trouble comes back as a
// TransportError so callers can tell "engine said no" from "engine
// unreachable".
func (c *Client) Replay(ctx context.Context, game domain.Game, seed uint64, moves []domain.MoveRecord) (*domain.FinalState, error) {
	reqBody, err := json.Marshal(replayRequest{Game: game, Seed: seed, Moves: moves})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/replay", bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpDo(req)
	if err != nil {
		code := domain.AnchorErrorNetwork
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			code = domain.AnchorErrorTimeout
		}
		return nil, &domain.TransportError{Op: "replay", Code: code, Transient: true, Err: err}
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.TransportError{Op: "replay", Code: domain.AnchorErrorNetwork, Transient: true, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnprocessableEntity:
		var verdict replayError
		if err := json.Unmarshal(respBody, &verdict); err != nil || verdict.Error == "" {
			return nil, fmt.Errorf("%w", domain.ErrReplayRejected)
		}
		if verdict.MoveIndex != nil {
			return nil, fmt.Errorf("%w: move %d: %s", domain.ErrReplayRejected, *verdict.MoveIndex, verdict.Error)
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrReplayRejected, verdict.Error)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &domain.TransportError{Op: "replay", Code: domain.AnchorErrorRateLimit, Transient: true, Err: statusDetail(resp.StatusCode, respBody)}
	case resp.StatusCode >= 500:
		return nil, &domain.TransportError{Op: "replay", Code: domain.AnchorErrorLedger5xx, Transient: true, Err: statusDetail(resp.StatusCode, respBody)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &domain.TransportError{Op: "replay", Code: domain.AnchorErrorRejected, Transient: false, Err: statusDetail(resp.StatusCode, respBody)}
	}

	var state domain.FinalState
	if err := json.Unmarshal(respBody, &state); err != nil {
		return nil, domain.NewPermanentError("replay", fmt.Errorf("decode final state: %w", err))
	}
	if state.Phase == "" {
		return nil, domain.NewPermanentError("replay", errors.New("engine returned no phase"))
	}
	return &state, nil
}

func statusDetail(status int, body []byte) error {
	detail := strings.TrimSpace(string(body))
	if len(detail) > 512 {
		detail = detail[:512]
	}
	return fmt.Errorf("rules engine status %d: %s", status, detail)
}
