package util

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// HashBytes returns the hex SHA-256 of data.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ETag returns a strong entity tag for the JSON encoding of v. Map keys are
// encoded in sorted order, so equal documents share a tag.
func ETag(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return `"` + HashBytes(data)[:32] + `"`, nil
}
