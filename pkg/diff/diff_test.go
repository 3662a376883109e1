package diff

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnifiedIdenticalContent(t *testing.T) {
	t.Parallel()
	require.Empty(t, Unified([]byte("a\nb\n"), []byte("a\nb\n"), "before", "after"))
}

func TestUnifiedLineChanges(t *testing.T) {
	t.Parallel()

	before := []byte("{\n  \"plugins\": [],\n  \"contexts\": []\n}\n")
	after := []byte("{\n  \"plugins\": [\"x\"],\n  \"contexts\": []\n}\n")

	got := Unified(before, after, "settings.json", "settings.json (new)")
	require.True(t, strings.HasPrefix(got, "--- settings.json\n+++ settings.json (new)\n@@ -1,4 +1,4 @@\n"), got)
	require.Contains(t, got, "-  \"plugins\": [],\n")
	require.Contains(t, got, "+  \"plugins\": [\"x\"],\n")
	require.Contains(t, got, "   \"contexts\": []\n")
	require.Contains(t, got, " {\n")
}

func TestUnifiedAppendOnly(t *testing.T) {
	t.Parallel()

	got := Unified([]byte("a\n"), []byte("a\nb\n"), "x", "y")
	require.Contains(t, got, " a\n+b\n")
	require.NotContains(t, got, "-a")
}

func TestUnifiedTruncatesLargeDiffs(t *testing.T) {
	t.Parallel()

	var before, after strings.Builder
	for i := 0; i < maxDiffLines; i++ {
		fmt.Fprintf(&before, "old %d\n", i)
		fmt.Fprintf(&after, "new %d\n", i)
	}

	got := Unified([]byte(before.String()), []byte(after.String()), "x", "y")
	require.True(t, strings.HasSuffix(got, truncateMessage+"\n"))
}
