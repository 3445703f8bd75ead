// Package util provides content hashing helpers.
package util

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

func ContentHash(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

// ETag hashes the JSON form of v into a quoted strong entity tag.
func ETag(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return `"` + ContentHash(b)[:16] + `"`, nil
}
