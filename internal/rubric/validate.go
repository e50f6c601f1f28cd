package rubric

import (
	"fmt"

	"github.com/zekaeng/zeka/internal/artifact"
	"github.com/zekaeng/zeka/internal/zerr"
)

// Error is a rubric-invalid error (spec.md §7): "YAML shape, unknown
// category, unknown check type, malformed regex, duplicate title
// within category." zekac prints it prefixed with the rubric file name,
// with the line number where one is known, and a one-line explanation. Code selects the process exit status per
// spec.md §9's compiler contract: 0 unset/default means "YAML
// validation failure" (exit 2); CodeDuplicateOrMalformed means
// "duplicate or malformed check" (exit 3).
type Error struct {
	Msg  string
	Line int
	Code int
}

// CodeDuplicateOrMalformed marks a duplicate title within a category or
// a check whose compiled commitment collides with another check's, or
// whose regex pattern does not compile —
// spec.md §9's compiler exit code 3, distinct from exit 2's plain YAML
// validation failures.
const CodeDuplicateOrMalformed = 3

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("rubric-invalid: line %d: %s", e.Line, e.Msg)
	}
	return fmt.Sprintf("rubric-invalid: %s", e.Msg)
}

func (e *Error) Unwrap() error { return zerr.ErrRubricInvalid }

// validate checks category membership, check-type membership (already
// enforced during decode), and per-category title uniqueness.
func validate(r *Rubric) error {
	seenByCategory := make(map[string]map[string]bool)

	for _, c := range r.Checks {
		if _, ok := artifact.ParseCategory(c.Category); !ok {
			return &Error{Msg: fmt.Sprintf("check %q: unknown category %q", c.Title, c.Category)}
		}
		if seenByCategory[c.Category] == nil {
			seenByCategory[c.Category] = make(map[string]bool)
		}
		if seenByCategory[c.Category][c.Title] {
			return &Error{Msg: fmt.Sprintf("duplicate title %q within category %q", c.Title, c.Category), Code: CodeDuplicateOrMalformed}
		}
		seenByCategory[c.Category][c.Title] = true

		if err := validateCondition(c.Title, c.Pass); err != nil {
			return err
		}
	}
	return nil
}

func validateCondition(title string, c Condition) error {
	switch c.Kind {
	case ConditionLeaf:
		if !checkTypes[c.CheckType] {
			return &Error{Msg: fmt.Sprintf("check %q: unknown check type %q", title, c.CheckType)}
		}
		if len(c.Args) == 0 {
			return &Error{Msg: fmt.Sprintf("check %q: %s requires at least a path argument", title, c.CheckType)}
		}
		needsPattern := c.CheckType == "regex" || c.CheckType == "iregex" || c.CheckType == "match" || c.CheckType == "imatch"
		if needsPattern && len(c.Args) < 2 {
			return &Error{Msg: fmt.Sprintf("check %q: %s requires a path and a pattern/value", title, c.CheckType)}
		}
		return nil
	case ConditionAnd, ConditionOr:
		if len(c.Children) == 0 {
			return &Error{Msg: fmt.Sprintf("check %q: empty and/or condition", title)}
		}
		for _, child := range c.Children {
			if err := validateCondition(title, child); err != nil {
				return err
			}
		}
		return nil
	default:
		return &Error{Msg: fmt.Sprintf("check %q: malformed condition", title)}
	}
}
