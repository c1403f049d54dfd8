// Package canonical produces the byte-exact serialized form of match
// data. Two records with the same content always canonicalize to the
// same bytes regardless of platform, map iteration order, or the JSON
// source formatting, so hashes and signatures computed over the output
// are reproducible everywhere.
package canonical

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/ocentra/matchproof/internal/domain"
)

// Bytes canonicalizes any JSON-representable value. Maps, slices and
// scalars are walked directly; structs and everything else take a
// marshal round trip first so struct tags decide key names.
func Bytes(v any) ([]byte, error) {
	switch value := v.(type) {
	case nil, bool, string, json.Number, float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, map[string]any, []any:
		buf := &bytes.Buffer{}
		if err := writeCanonical(buf, value); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case json.RawMessage:
		return FromJSON([]byte(value))
	case []byte:
		return FromJSON(value)
	default:
		b, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrNotCanonicalizable, err)
		}
		return FromJSON(b)
	}
}

// FromJSON canonicalizes an encoded JSON document. Numbers are decoded
// as json.Number so 64-bit integers (seeds in particular) survive
// without float truncation.
func FromJSON(input []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(input))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", domain.ErrNotCanonicalizable, err)
	}
	if err := ensureEOF(dec); err != nil {
		return nil, err
	}

	buf := &bytes.Buffer{}
	if err := writeCanonical(buf, value); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func ensureEOF(dec *json.Decoder) error {
	var extra any
	if err := dec.Decode(&extra); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: invalid JSON: %v", domain.ErrNotCanonicalizable, err)
	}
	return fmt.Errorf("%w: trailing data", domain.ErrNotCanonicalizable)
}

func writeCanonical(buf *bytes.Buffer, value any) error {
	switch v := value.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if v {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case string:
		writeString(buf, v)
	case json.Number:
		num, err := canonicalizeNumberString(v.String())
		if err != nil {
			return err
		}
		buf.WriteString(num)
	case float64:
		num, err := canonicalizeFloat(v)
		if err != nil {
			return err
		}
		buf.WriteString(num)
	case float32:
		num, err := canonicalizeFloat(float64(v))
		if err != nil {
			return err
		}
		buf.WriteString(num)
	case int:
		buf.WriteString(strconv.FormatInt(int64(v), 10))
	case int8:
		buf.WriteString(strconv.FormatInt(int64(v), 10))
	case int16:
		buf.WriteString(strconv.FormatInt(int64(v), 10))
	case int32:
		buf.WriteString(strconv.FormatInt(int64(v), 10))
	case int64:
		buf.WriteString(strconv.FormatInt(v, 10))
	case uint:
		buf.WriteString(strconv.FormatUint(uint64(v), 10))
	case uint8:
		buf.WriteString(strconv.FormatUint(uint64(v), 10))
	case uint16:
		buf.WriteString(strconv.FormatUint(uint64(v), 10))
	case uint32:
		buf.WriteString(strconv.FormatUint(uint64(v), 10))
	case uint64:
		buf.WriteString(strconv.FormatUint(v, 10))
	case map[string]any:
		return writeObject(buf, v)
	case []any:
		return writeArray(buf, v)
	default:
		return fmt.Errorf("%w: unsupported type %T", domain.ErrNotCanonicalizable, value)
	}
	return nil
}

func writeObject(buf *bytes.Buffer, obj map[string]any) error {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeString(buf, k)
		buf.WriteByte(':')
		if err := writeCanonical(buf, obj[k]); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeArray(buf *bytes.Buffer, arr []any) error {
	buf.WriteByte('[')
	for i, item := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeCanonical(buf, item); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

// writeString escapes backslash, double quote, and the two control
// ranges U+0000..U+001F and U+007F..U+009F as \u00xx. Everything else,
// multibyte sequences included, passes through as raw UTF-8. No short
// escapes: a newline is \u000a on every platform.
func writeString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch {
		case r == '"' || r == '\\':
			buf.WriteByte('\\')
			buf.WriteRune(r)
		case r < 0x20 || (r >= 0x7f && r <= 0x9f):
			buf.WriteString(`\u00`)
			buf.WriteByte(hexLower[r>>4])
			buf.WriteByte(hexLower[r&0x0f])
		default:
			buf.WriteRune(r)
		}
	}
	buf.WriteByte('"')
}

var hexLower = []byte("0123456789abcdef")

// canonicalizeNumberString emits integral values exactly when they fit
// 64 bits; everything else gets IEEE-754 double shortest-round-trip
// formatting.
func canonicalizeNumberString(number string) (string, error) {
	if !strings.ContainsAny(number, ".eE") {
		if i, err := strconv.ParseInt(number, 10, 64); err == nil {
			return strconv.FormatInt(i, 10), nil
		}
		if u, err := strconv.ParseUint(number, 10, 64); err == nil {
			return strconv.FormatUint(u, 10), nil
		}
	}
	f, err := strconv.ParseFloat(number, 64)
	if err != nil {
		return "", fmt.Errorf("%w: invalid number %q", domain.ErrNotCanonicalizable, number)
	}
	return canonicalizeFloat(f)
}

// canonicalizeFloat renders f the way ECMAScript Number::toString does:
// shortest digits that round-trip, positional notation inside the
// exponent window, scientific outside it, and negative zero as 0.
func canonicalizeFloat(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("%w: non-finite number", domain.ErrNotCanonicalizable)
	}
	if f == 0 {
		return "0", nil
	}

	sign := ""
	if f < 0 {
		sign = "-"
		f = math.Abs(f)
	}

	mantissa, exp, err := splitScientific(f)
	if err != nil {
		return "", err
	}

	digits := strings.ReplaceAll(mantissa, ".", "")

	if exp <= -7 || exp >= 21 {
		suffix := "e" + strconv.Itoa(exp)
		if exp >= 0 {
			suffix = "e+" + strconv.Itoa(exp)
		}
		if len(digits) == 1 {
			return sign + digits + suffix, nil
		}
		return sign + digits[:1] + "." + digits[1:] + suffix, nil
	}

	point := exp + 1
	if point >= len(digits) {
		return sign + digits + strings.Repeat("0", point-len(digits)), nil
	}
	if point <= 0 {
		return sign + "0." + strings.Repeat("0", -point) + digits, nil
	}
	return sign + digits[:point] + "." + digits[point:], nil
}

func splitScientific(f float64) (string, int, error) {
	s := strconv.FormatFloat(f, 'e', -1, 64)
	parts := strings.SplitN(s, "e", 2)
	if len(parts) != 2 {
		return "", 0, fmt.Errorf("%w: float format %q", domain.ErrNotCanonicalizable, s)
	}
	exp, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, fmt.Errorf("%w: float exponent in %q", domain.ErrNotCanonicalizable, s)
	}
	return parts[0], exp, nil
}
