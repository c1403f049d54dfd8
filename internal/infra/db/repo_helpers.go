package db

import (
	"errors"
	"time"
)

var errDBUnavailable = errors.New("db unavailable")

func stringPtrIfNotEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func copyBytes(in []byte) []byte {
	if in == nil {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}

func rfc3339(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
