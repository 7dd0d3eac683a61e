package util

import (
	"io"
	"strings"
	"unicode/utf8"
)

// ReadSnippet reads at most limit bytes from r and returns them as a string cut
// back to the last complete UTF-8 rune. The remainder of r is left unread.
func ReadSnippet(r io.Reader, limit int) string {
	if r == nil || limit <= 0 {
		return ""
	}
	buf, err := io.ReadAll(io.LimitReader(r, int64(limit)))
	if err != nil && len(buf) == 0 {
		return ""
	}
	return TruncateUTF8(string(buf), limit)
}

// TruncateUTF8 shortens s to at most limit bytes without splitting a rune.
func TruncateUTF8(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if len(s) > limit {
		s = s[:limit]
	}
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return strings.TrimSpace(s)
}
