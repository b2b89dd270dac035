package auth

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// segmentParser only decodes segments, it is never used to verify a token.
var segmentParser = jwt.NewParser(jwt.WithPaddingAllowed())

// DecodeSubject reads the numeric "sub" claim from a bearer token's payload
// without verifying the signature or expiry. The result is an advisory hint.
//
// The token must have exactly three dot separated segments. Both the URL safe
// and standard base64 alphabets are accepted, with or without padding. A
// subject encoded as a JSON number or a numeric string is accepted when it is
// a finite integer. Any other input returns false; DecodeSubject never panics.
func DecodeSubject(token string) (int64, bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 || parts[1] == "" {
		return 0, false
	}

	// Accept the standard alphabet by mapping it onto the URL safe one.
	payload := strings.NewReplacer("+", "-", "/", "_").Replace(parts[1])

	data, err := segmentParser.DecodeSegment(payload)
	if err != nil {
		return 0, false
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var claims map[string]any
	if err := dec.Decode(&claims); err != nil {
		return 0, false
	}

	return coerceSubject(claims["sub"])
}

func coerceSubject(sub any) (int64, bool) {
	var raw string
	switch v := sub.(type) {
	case json.Number:
		raw = v.String()
	case string:
		raw = strings.TrimSpace(v)
	default:
		return 0, false
	}

	if raw == "" {
		return 0, false
	}

	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n, true
	}

	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}

	return int64(f), true
}
