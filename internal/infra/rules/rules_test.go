package rules

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/ocentra/matchproof/internal/domain"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
	}
}

func newTestClient(t *testing.T, rt roundTripperFunc) *Client {
	t.Helper()
	client, err := NewClient("https://rules.example", &http.Client{Transport: rt})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func testMoves() []domain.MoveRecord {
	return []domain.MoveRecord{
		{Index: 0, TS: "2026-02-03T10:00:01Z", PlayerID: "p1", Action: "draw"},
		{Index: 1, TS: "2026-02-03T10:00:05Z", PlayerID: "p2", Action: "play", Payload: map[string]any{"card": "QS"}},
	}
}

func TestReplayReturnsFinalState(t *testing.T) {
	var gotBody []byte
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/v1/replay" {
			t.Fatalf("unexpected path %s", req.URL.Path)
		}
		gotBody, _ = io.ReadAll(req.Body)
		return jsonResponse(http.StatusOK, `{
			"phase": "ended",
			"winner": "p2",
			"scores": {"p1": 12, "p2": 31}
		}`), nil
	})

	game := domain.Game{Name: "claim", RulesetID: "claim-v2"}
	state, err := client.Replay(context.Background(), game, 18446744073709551615, testMoves())
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if state.Phase != domain.PhaseEnded || state.Winner != "p2" {
		t.Fatalf("unexpected state: %+v", state)
	}
	if state.Scores["p2"] != 31 {
		t.Fatalf("unexpected scores: %+v", state.Scores)
	}

	// The seed must cross the wire with full 64-bit precision.
	if !strings.Contains(string(gotBody), `"seed":18446744073709551615`) {
		t.Fatalf("seed lost precision in request: %s", gotBody)
	}
	var decoded replayRequest
	if err := json.Unmarshal(gotBody, &decoded); err != nil {
		t.Fatalf("invalid replay request: %v", err)
	}
	if decoded.Game.Name != "claim" || len(decoded.Moves) != 2 {
		t.Fatalf("unexpected request: %+v", decoded)
	}
	if decoded.Moves[1].Payload["card"] != "QS" {
		t.Fatalf("move payload dropped: %+v", decoded.Moves[1])
	}
}

func TestReplayRejectsIllegalLog(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusUnprocessableEntity, `{"error":"card not in hand","move_index":3}`), nil
	})
	_, err := client.Replay(context.Background(), domain.Game{Name: "claim", RulesetID: "claim-v2"}, 7, testMoves())
	if !errors.Is(err, domain.ErrReplayRejected) {
		t.Fatalf("expected ErrReplayRejected, got %v", err)
	}
	if !strings.Contains(err.Error(), "move 3") {
		t.Fatalf("expected offending move index in error, got %v", err)
	}
	if domain.IsTransient(err) {
		t.Fatal("an illegal log must not be retried")
	}
}

func TestReplayClassifiesTransportFailures(t *testing.T) {
	t.Run("network", func(t *testing.T) {
		client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
			return nil, errors.New("dial failed")
		})
		_, err := client.Replay(context.Background(), domain.Game{Name: "claim"}, 7, nil)
		if !domain.IsTransient(err) {
			t.Fatalf("expected transient error, got %v", err)
		}
	})
	t.Run("server error", func(t *testing.T) {
		client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusBadGateway, `{"error":"upstream"}`), nil
		})
		_, err := client.Replay(context.Background(), domain.Game{Name: "claim"}, 7, nil)
		if !domain.IsTransient(err) {
			t.Fatalf("expected transient error, got %v", err)
		}
	})
	t.Run("bad request", func(t *testing.T) {
		client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusBadRequest, `{"error":"malformed"}`), nil
		})
		_, err := client.Replay(context.Background(), domain.Game{Name: "claim"}, 7, nil)
		if err == nil || domain.IsTransient(err) {
			t.Fatalf("expected permanent error, got %v", err)
		}
		if errors.Is(err, domain.ErrReplayRejected) {
			t.Fatal("malformed request is not a replay verdict")
		}
	})
}

func TestReplayRejectsEmptyPhase(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{}`), nil
	})
	if _, err := client.Replay(context.Background(), domain.Game{Name: "claim"}, 7, nil); err == nil {
		t.Fatal("expected error for missing phase")
	}
}
