package store

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/ocentra/matchproof/internal/domain"
)

const s3Service = "s3"

type R2Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	// PublicBaseURL is the public bucket domain used to build hot
	// URLs. Empty means Put returns the object key.
	PublicBaseURL string
}

// R2 talks to an S3-compatible bucket (Cloudflare R2 in production)
// with SigV4 request signing. Only the two calls the pipeline needs are
// implemented.
type R2 struct {
	cfg    R2Config
	httpDo func(*http.Request) (*http.Response, error)
	clock  func() time.Time
}

func NewR2(cfg R2Config) (*R2, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, errors.New("r2 endpoint, bucket and credentials are required")
	}
	if cfg.Region == "" {
		cfg.Region = "auto"
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	client := &http.Client{Timeout: 30 * time.Second}
	return &R2{
		cfg:    cfg,
		httpDo: client.Do,
		clock:  time.Now,
	}, nil
}

func (r *R2) WithHTTPDo(doer func(*http.Request) (*http.Response, error)) *R2 {
	r.httpDo = doer
	return r
}

func (r *R2) WithClock(clock func() time.Time) *R2 {
	r.clock = clock
	return r
}

func (r *R2) Put(ctx context.Context, key string, data []byte) (string, error) {
	resp, body, err := r.do(ctx, http.MethodPut, key, data)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("r2 put %s: status %d: %s", key, resp.StatusCode, truncate(body))
	}
	if r.cfg.PublicBaseURL != "" {
		return r.cfg.PublicBaseURL + "/" + key, nil
	}
	return key, nil
}

func (r *R2) Get(ctx context.Context, key string) ([]byte, error) {
	resp, body, err := r.do(ctx, http.MethodGet, key, nil)
	if err != nil {
		return nil, err
	}
	switch resp.StatusCode {
	case http.StatusOK:
		return body, nil
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: object %s", domain.ErrNotFound, key)
	default:
		return nil, fmt.Errorf("r2 get %s: status %d: %s", key, resp.StatusCode, truncate(body))
	}
}

func (r *R2) do(ctx context.Context, method, key string, payload []byte) (*http.Response, []byte, error) {
	objectPath := "/" + r.cfg.Bucket + "/" + escapeKey(key)
	req, err := http.NewRequestWithContext(ctx, method, r.cfg.Endpoint+objectPath, bytes.NewReader(payload))
	if err != nil {
		return nil, nil, err
	}
	if method == http.MethodPut {
		req.Header.Set("Content-Type", "application/json")
	}

	now := r.clock().UTC()
	amzDate := now.Format("20060102T150405Z")
	req.Header.Set("X-Amz-Date", amzDate)
	payloadHash := sha256Hex(payload)
	req.Header.Set("X-Amz-Content-Sha256", payloadHash)

	if err := r.signRequest(req, objectPath, payloadHash, amzDate); err != nil {
		return nil, nil, err
	}

	resp, err := r.httpDo(req)
	if err != nil {
		return nil, nil, fmt.Errorf("r2 %s %s: %w", strings.ToLower(method), key, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}
	return resp, body, nil
}

func (r *R2) signRequest(req *http.Request, canonicalURI, payloadHash, amzDate string) error {
	parsed, err := url.Parse(req.URL.String())
	if err != nil {
		return err
	}
	if parsed.Host == "" {
		return errors.New("r2 host missing")
	}
	req.Header.Set("Host", parsed.Host)

	date := amzDate[:8]
	canonicalHeaders, signedHeaders := buildCanonicalHeaders(req.Header)
	canonicalRequest := strings.Join([]string{
		req.Method,
		canonicalURI,
		"",
		canonicalHeaders,
		signedHeaders,
		payloadHash,
	}, "\n")

	scope := date + "/" + r.cfg.Region + "/" + s3Service + "/aws4_request"
	stringToSign := strings.Join([]string{
		"AWS4-HMAC-SHA256",
		amzDate,
		scope,
		sha256Hex([]byte(canonicalRequest)),
	}, "\n")

	signingKey := deriveSigningKey(r.cfg.SecretKey, date, r.cfg.Region)
	signature := hmacHex(signingKey, []byte(stringToSign))
	req.Header.Set("Authorization", fmt.Sprintf(
		"AWS4-HMAC-SHA256 Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		r.cfg.AccessKey,
		scope,
		signedHeaders,
		signature,
	))
	return nil
}

// escapeKey URI-encodes each path segment while keeping the separators.
func escapeKey(key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

func buildCanonicalHeaders(headers http.Header) (string, string) {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, strings.ToLower(k))
	}
	sort.Strings(keys)
	var canonical strings.Builder
	for _, key := range keys {
		values := headers.Values(key)
		for i := range values {
			values[i] = strings.TrimSpace(values[i])
		}
		canonical.WriteString(key)
		canonical.WriteString(":")
		canonical.WriteString(strings.Join(values, ","))
		canonical.WriteString("\n")
	}
	return canonical.String(), strings.Join(keys, ";")
}

func deriveSigningKey(secret, date, region string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+secret), []byte(date))
	kRegion := hmacSHA256(kDate, []byte(region))
	kService := hmacSHA256(kRegion, []byte(s3Service))
	return hmacSHA256(kService, []byte("aws4_request"))
}

func hmacSHA256(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

func hmacHex(key, data []byte) string {
	return hex.EncodeToString(hmacSHA256(key, data))
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func truncate(body []byte) string {
	const max = 256
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
