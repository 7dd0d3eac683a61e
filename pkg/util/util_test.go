package util

import (
	"strings"
	"testing"
)

func TestHashEmailStable(t *testing.T) {
	a := HashEmail("  A@B.com ")
	b := HashEmail("a@b.com")
	if a != b {
		t.Fatalf("expected case/whitespace-insensitive hash, got %s vs %s", a, b)
	}
	if len(a) != 16 {
		t.Fatalf("expected 16 char fingerprint, got %d", len(a))
	}
	if HashEmail("") != "" {
		t.Fatalf("expected empty fingerprint for empty email")
	}
}

func TestReadSnippetBounded(t *testing.T) {
	got := ReadSnippet(strings.NewReader(strings.Repeat("x", 2048)), 512)
	if len(got) != 512 {
		t.Fatalf("expected 512 bytes, got %d", len(got))
	}
	if ReadSnippet(nil, 10) != "" {
		t.Fatalf("expected empty snippet for nil reader")
	}
}

func TestTruncateUTF8KeepsRunes(t *testing.T) {
	// "é" is two bytes; cutting at 2 would split the second rune.
	got := TruncateUTF8("aéé", 4)
	if got != "aé" {
		t.Fatalf("got %q, want %q", got, "aé")
	}
	if TruncateUTF8("short", 100) != "short" {
		t.Fatalf("short strings should pass through")
	}
}
