package store

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/ocentra/matchproof/internal/domain"
)

func testR2(t *testing.T, doer func(*http.Request) (*http.Response, error)) *R2 {
	t.Helper()
	r2, err := NewR2(R2Config{
		Endpoint:      "https://acc.r2.cloudflarestorage.com",
		Bucket:        "match-archive",
		AccessKey:     "AKIDEXAMPLE",
		SecretKey:     "secret",
		PublicBaseURL: "https://hot.ocentra.games",
	})
	if err != nil {
		t.Fatalf("new r2: %v", err)
	}
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return r2.WithHTTPDo(doer).WithClock(func() time.Time { return fixed })
}

func respond(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

func TestR2Put_SignsAndReturnsPublicURL(t *testing.T) {
	var captured *http.Request
	var capturedBody []byte
	r2 := testR2(t, func(req *http.Request) (*http.Response, error) {
		captured = req
		capturedBody, _ = io.ReadAll(req.Body)
		return respond(http.StatusOK, ""), nil
	})

	url, err := r2.Put(context.Background(), "matches/m-1.json", []byte(`{"match_id":"m-1"}`))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if url != "https://hot.ocentra.games/matches/m-1.json" {
		t.Fatalf("url = %q", url)
	}
	if captured.Method != http.MethodPut {
		t.Fatalf("method = %s", captured.Method)
	}
	if captured.URL.Path != "/match-archive/matches/m-1.json" {
		t.Fatalf("path = %s", captured.URL.Path)
	}
	if string(capturedBody) != `{"match_id":"m-1"}` {
		t.Fatalf("body = %s", capturedBody)
	}
	if captured.Header.Get("X-Amz-Date") != "20260301T120000Z" {
		t.Fatalf("amz date = %q", captured.Header.Get("X-Amz-Date"))
	}
	if captured.Header.Get("X-Amz-Content-Sha256") == "" {
		t.Fatal("payload hash header missing")
	}

	auth := captured.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "AWS4-HMAC-SHA256 Credential=AKIDEXAMPLE/20260301/auto/s3/aws4_request") {
		t.Fatalf("authorization = %q", auth)
	}
	if !strings.Contains(auth, "SignedHeaders=") || !strings.Contains(auth, "Signature=") {
		t.Fatalf("authorization missing parts: %q", auth)
	}
	for _, h := range []string{"host", "x-amz-content-sha256", "x-amz-date"} {
		if !strings.Contains(auth, h) {
			t.Fatalf("authorization does not sign %s: %q", h, auth)
		}
	}
}

func TestR2Put_Deterministic(t *testing.T) {
	sigs := make([]string, 2)
	for i := range sigs {
		var auth string
		r2 := testR2(t, func(req *http.Request) (*http.Response, error) {
			auth = req.Header.Get("Authorization")
			return respond(http.StatusOK, ""), nil
		})
		if _, err := r2.Put(context.Background(), "k", []byte("v")); err != nil {
			t.Fatalf("put: %v", err)
		}
		sigs[i] = auth
	}
	if sigs[0] != sigs[1] {
		t.Fatalf("same request signed differently:\n%s\n%s", sigs[0], sigs[1])
	}
}

func TestR2Get_StatusHandling(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		r2 := testR2(t, func(req *http.Request) (*http.Response, error) {
			if req.Method != http.MethodGet {
				t.Fatalf("method = %s", req.Method)
			}
			return respond(http.StatusOK, `{"batch_id":"b-1"}`), nil
		})
		data, err := r2.Get(context.Background(), "batches/b-1.json")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if string(data) != `{"batch_id":"b-1"}` {
			t.Fatalf("data = %s", data)
		}
	})

	t.Run("not found", func(t *testing.T) {
		r2 := testR2(t, func(req *http.Request) (*http.Response, error) {
			return respond(http.StatusNotFound, "NoSuchKey"), nil
		})
		if _, err := r2.Get(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("server error", func(t *testing.T) {
		r2 := testR2(t, func(req *http.Request) (*http.Response, error) {
			return respond(http.StatusInternalServerError, "boom"), nil
		})
		if _, err := r2.Get(context.Background(), "k"); err == nil {
			t.Fatal("expected error for 500")
		}
	})

	t.Run("network failure", func(t *testing.T) {
		r2 := testR2(t, func(req *http.Request) (*http.Response, error) {
			return nil, errors.New("connection refused")
		})
		if _, err := r2.Get(context.Background(), "k"); err == nil {
			t.Fatal("expected error for network failure")
		}
	})
}

func TestEscapeKey(t *testing.T) {
	if got := escapeKey("matches/a b.json"); got != "matches/a%20b.json" {
		t.Fatalf("escaped = %q", got)
	}
	if got := escapeKey("plain/key.json"); got != "plain/key.json" {
		t.Fatalf("escaped = %q", got)
	}
}
