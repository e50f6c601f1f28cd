// Package zerr collects the sentinel error kinds of spec.md §7 so
// callers can classify failures with errors.Is instead of string
// matching. Only rubric-invalid and artifact-corrupt ever reach a user;
// the rest resolve silently to "no unlock" inside the scorer, per
// spec.md: "Runtime errors internal to scoring never propagate to the
// user."
package zerr

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrRubricInvalid marks a compile-time rubric problem: bad YAML
	// shape, unknown category, unknown check type, malformed regex, or
	// a duplicate title within a category. Fatal to the compiler.
	ErrRubricInvalid = errors.New("zeka: rubric invalid")

	// ErrArtifactCorrupt marks a structurally broken artifact: magic
	// mismatch, length inconsistency, or an out-of-range coefficient.
	// Fatal at engine startup.
	ErrArtifactCorrupt = errors.New("zeka: artifact corrupt")

	// ErrProviderUnavailable marks a provider's failure to attach to
	// its event source. Logged; the engine continues with whatever
	// providers did start.
	ErrProviderUnavailable = errors.New("zeka: provider unavailable")

	// ErrEventDrop marks a queue-overflow drop. Logged; the next
	// enumeration pass recovers.
	ErrEventDrop = errors.New("zeka: event queue overflow")

	// ErrCheckMiss marks a Lagrange lookup that decoded to a
	// non-descriptor value. Silent by design — this is how hiding
	// works — never logged at any level above debug.
	ErrCheckMiss = errors.New("zeka: check miss")

	// ErrAEADFail marks an authentication-tag mismatch during unwrap.
	// Indistinguishable in effect from ErrCheckMiss.
	ErrAEADFail = errors.New("zeka: aead authentication failed")

	// ErrReadFail marks a content check whose file was unreadable or
	// over the size cap. Treated as a miss.
	ErrReadFail = errors.New("zeka: read failed or file too large")
)

// RubricInvalidf wraps ErrRubricInvalid with file:line context, the
// form spec.md §7 requires the compiler to surface.
func RubricInvalidf(file string, line int, format string, args ...any) error {
	return &locatedError{file: file, line: line, msg: fmt.Sprintf(format, args...), sentinel: ErrRubricInvalid}
}

type locatedError struct {
	file     string
	line     int
	msg      string
	sentinel error
}

func (e *locatedError) Error() string {
	if e.file == "" {
		return e.msg
	}
	return e.file + ":" + strconv.Itoa(e.line) + ": " + e.msg
}

func (e *locatedError) Unwrap() error { return e.sentinel }
