package automaton

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompileMatchContent(t *testing.T) {
	a := CompileMatch("fq1: 2\n")
	dir := t.TempDir()
	path := filepath.Join(dir, "fq1")
	require.NoError(t, os.WriteFile(path, []byte("fq1: 2\n"), 0o644))

	ok, err := a.MatchContent(path, 0)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, os.WriteFile(path, []byte("FQ1: 2\n"), 0o644))
	ok, err = a.MatchContent(path, 0)
	require.NoError(t, err)
	require.False(t, ok, "match is case-sensitive")
}

func TestCompileRegexAnchoredFullString(t *testing.T) {
	a, err := CompileRegex("fq1: [0-9]+")
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "fq1")
	require.NoError(t, os.WriteFile(path, []byte("fq1: 2\n"), 0o644))

	ok, err := a.MatchContent(path, 0)
	require.NoError(t, err)
	// the pattern is anchored as ^(?:...)$, and regexp2's $ (.NET
	// semantics) also matches just before a final newline.
	require.True(t, ok)
}

func TestCompileRegexMatchesWholeContent(t *testing.T) {
	a, err := CompileRegex(`fq1: [0-9]+\n?`)
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "fq1")
	require.NoError(t, os.WriteFile(path, []byte("fq1: 2\n"), 0o644))

	ok, err := a.MatchContent(path, 0)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestMatchContentOversizeIsMiss(t *testing.T) {
	a := CompileMatch("x")
	dir := t.TempDir()
	path := filepath.Join(dir, "big")
	require.NoError(t, os.WriteFile(path, make([]byte, 10), 0o644))

	ok, err := a.MatchContent(path, 4)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMatchContentMissingFileIsMiss(t *testing.T) {
	a := CompileMatch("x")
	ok, err := a.MatchContent("/does/not/exist", 0)
	require.NoError(t, err)
	require.False(t, ok)
}
