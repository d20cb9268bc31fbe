package utils

import (
	"crypto/sha256"
	"fmt"
	"path/filepath"
	"strings"
)

// ContentHash identifies a version of a document's extracted text: the first
// 12 hex characters of its SHA-256 digest.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%x", sum)[:12]
}

// SanitizeDocumentKey lowercases a filename, drops its extension and replaces
// every character outside [a-z0-9_-] with an underscore.
func SanitizeDocumentKey(filename string) string {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	var b strings.Builder
	b.Grow(len(base))
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// ChunkID builds the deterministic search index id for a chunk. Ordinals are
// 1-based.
func ChunkID(filename, contentHash string, ordinal int) string {
	return fmt.Sprintf("%s_%s_%d", SanitizeDocumentKey(filename), contentHash, ordinal)
}
