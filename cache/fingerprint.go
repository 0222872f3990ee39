package cache

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
)

// keyDelimiter joins key parts before hashing.
const keyDelimiter = "|"

// Fingerprint derives the fixed-length cache key for an ordered tuple of key parts.
// Each part is rendered with fmt.Sprint, so 123 and "123" produce the same key.
// The result is 32 lowercase hex characters and depends on the order of parts.
func Fingerprint(parts ...any) string {
	rendered := make([]string, len(parts))
	for i, p := range parts {
		rendered[i] = fmt.Sprint(p)
	}
	sum := md5.Sum([]byte(strings.Join(rendered, keyDelimiter)))
	return hex.EncodeToString(sum[:])
}
