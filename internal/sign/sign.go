// Package sign implements the callback signature scheme: HMAC-SHA256
// over the exact transmitted body bytes, hex encoded, carried in the
// X-Plugin-Signature header with a self-describing algorithm tag.
package sign

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Header carries the signature on callback deliveries.
const Header = "X-Plugin-Signature"

// Tag prefixes every signature so future algorithm migrations are
// detectable by the verifier.
const Tag = "sha256="

// Sign computes the tagged signature of payload under secret. It is a
// pure function: identical inputs always produce identical output.
func Sign(payload, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return Tag + hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether candidate is a valid signature of payload
// under secret. Malformed candidates return false, never an error. The
// digest comparison is constant-time.
func Verify(payload []byte, candidate string, secret []byte) bool {
	rest, ok := strings.CutPrefix(candidate, Tag)
	if !ok {
		return false
	}
	want, err := hex.DecodeString(rest)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), want)
}
