// Package automaton implements the two dynamic content checks of
// spec.md §4.4 that need a real file read to evaluate: a fixed subset
// of .NET-flavoured regex, and case-sensitive literal equality against
// whole file content. Both are compiled once, offline, and only
// executed by the engine at scoring time.
//
// imatch has no automaton here: its value is known at compile time, so
// it is baked directly into the L1 commitment preimage (spec.md §4.4's
// "evaluated directly") rather than run as a comparator against live
// data, the way regex/match must be since they operate on file
// content the compiler never sees.
//
// The regex flavour is implemented with dlclark/regexp2, whose compiled
// semantics are .NET's — the direct resolution of spec.md §9's "exact
// regex flavour is implied to be .NET-like but is not formally
// specified" open question. Patterns go to regexp2 as written: any
// construct regexp2 accepts compiles, and only a pattern regexp2 rejects
// surfaces as a compile error (rubric-invalid).
package automaton

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dlclark/regexp2"
)

// MaxContentSize is the default cap on file content read for content
// checks (spec.md §4.4/§5). Files larger than this fail the check
// silently (read-fail, per spec.md §7).
const MaxContentSize = 16 * 1024 * 1024

// Kind discriminates the two automaton flavours.
type Kind uint8

const (
	KindRegex Kind = iota
	KindMatch
)

// Automaton is a compiled content check. Construction (CompileRegex) is
// the only place that can fail; MatchContent never returns a compile
// error.
type Automaton struct {
	kind    Kind
	literal string
	re      *regexp2.Regexp
}

// CompileRegex compiles pattern with regexp2's default (.NET) syntax,
// which covers anchors, character classes, the quantifiers *, +, ?,
// {m,n}, alternation, grouping, and inline case modifiers (?i)/(?-i).
// No narrower subset is enforced: other constructs regexp2 accepts
// compile too, and an error is returned only for patterns regexp2
// rejects. Matching is anchored full-string by default, matching
// spec.md §4.4; as in .NET, $ also matches just before a single
// trailing newline.
func CompileRegex(pattern string) (*Automaton, error) {
	anchored := anchorFullString(pattern)
	re, err := regexp2.Compile(anchored, regexp2.None)
	if err != nil {
		return nil, fmt.Errorf("automaton: invalid regex %q: %w", pattern, err)
	}
	return &Automaton{kind: KindRegex, re: re}, nil
}

// anchorFullString wraps pattern in ^(?:...)$ unless it is already
// anchored at both ends, so unqualified patterns match the whole
// string rather than a substring.
func anchorFullString(pattern string) string {
	hasStart := strings.HasPrefix(pattern, "^")
	hasEnd := strings.HasSuffix(pattern, "$") && !strings.HasSuffix(pattern, `\$`)
	if hasStart && hasEnd {
		return pattern
	}
	prefix, suffix := "", ""
	if !hasStart {
		prefix = "^(?:"
	}
	if !hasEnd {
		suffix = ")$"
		if prefix == "" {
			prefix = "(?:" // ^ already present; open the group suffix closes
		}
	} else if prefix != "" {
		suffix = ")" // close the group we opened, $ already present
	}
	if prefix == "" && suffix == "" {
		return pattern
	}
	return prefix + pattern + suffix
}

// CompileMatch builds a case-sensitive literal comparator.
func CompileMatch(literal string) *Automaton {
	return &Automaton{kind: KindMatch, literal: literal}
}

// MatchContent runs a regex or case-sensitive automaton against the
// full content of path, subject to maxSize (default MaxContentSize when
// 0). Per spec.md §4.4/§7, a file over the cap or unreadable is a
// silent miss (read-fail), not an error: the bool result is the only
// signal callers should act on.
func (a *Automaton) MatchContent(path string, maxSize int64) (bool, error) {
	if maxSize <= 0 {
		maxSize = MaxContentSize
	}
	f, err := os.Open(path)
	if err != nil {
		return false, nil // read-fail: treated as a miss
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.Size() > maxSize {
		return false, nil
	}

	data, err := io.ReadAll(io.LimitReader(f, maxSize+1))
	if err != nil || int64(len(data)) > maxSize {
		return false, nil
	}

	switch a.kind {
	case KindMatch:
		return string(data) == a.literal, nil
	case KindRegex:
		m, err := a.re.MatchString(string(data))
		if err != nil {
			return false, nil
		}
		return m, nil
	default:
		return false, errors.New("automaton: MatchContent called on an automaton of unknown kind")
	}
}

// Kind reports which of the two flavours a was compiled as.
func (a *Automaton) Kind() Kind { return a.kind }
