// Package rubric decodes the YAML rubric DSL of spec.md §6 and compiles
// it into the Lagrange tables and side-tables of internal/artifact. It
// is the compiler's only input boundary: there is no other source of
// truth for what the artifact should contain.
package rubric

// Rubric is the fully decoded front matter plus check list of a YAML
// rubric document.
type Rubric struct {
	Title          string
	Seed           int64
	AEAD           string
	RemoteURL      string
	RemotePassword string
	IsLocal        bool

	Checks []Check
}

// Check is one scored entry: a title (used as the map key in the YAML
// document), a point value, a category, and a pass condition.
type Check struct {
	Title    string
	Points   float64
	Category string
	Pass     Condition
}

// ConditionKind discriminates the three condition shapes of spec.md §6.
type ConditionKind int

const (
	// ConditionLeaf is a single {check_type: [args...]} entry.
	ConditionLeaf ConditionKind = iota
	// ConditionAnd is a composite {and: [...]}.
	ConditionAnd
	// ConditionOr is a composite {or: [...]}.
	ConditionOr
)

// Condition is one node of a check's pass-condition tree. Leaf holds
// the check type and its arguments; And/Or hold child conditions. A
// bare YAML list of conditions decodes to an implicit ConditionAnd.
type Condition struct {
	Kind     ConditionKind
	CheckType string   // leaf only: regex, iregex, match, imatch, exists, absent
	Args     []string // leaf only
	Children []Condition
}

// checkTypes is the fixed set of leaf check types spec.md §6 allows.
var checkTypes = map[string]bool{
	"regex":  true,
	"iregex": true,
	"match":  true,
	"imatch": true,
	"exists": true,
	"absent": true,
}
