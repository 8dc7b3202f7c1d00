package webhook

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
)

const signaturePrefix = "sha1="

// ComputeSignature returns the X-Hub-Signature value for body:
// "sha1=" followed by the lowercase hex HMAC-SHA1 of body under key.
func ComputeSignature(key, body []byte) string {
	mac := hmac.New(sha1.New, key)
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature matches the HMAC of body.
//
// The whole header value is compared with hmac.Equal, which runs in constant
// time for equal-length inputs, so a wrong prefix, wrong length or bad hex
// simply fails. It never panics on malformed input.
func VerifySignature(signature string, key, body []byte) bool {
	expected := ComputeSignature(key, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}
