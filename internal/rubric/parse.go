package rubric

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// frontMatter mirrors the top document of spec.md §6: "title:", "seed:",
// "aead:", plus the reserved-and-ignored remote fields.
type frontMatter struct {
	Title          string `yaml:"title"`
	Seed           *int64 `yaml:"seed"`
	AEAD           string `yaml:"aead"`
	RemoteURL      string `yaml:"remote_url"`
	RemotePassword string `yaml:"remote_password"`
	IsLocal        bool   `yaml:"is_local"`
}

// Parse decodes a rubric document from r: a front-matter document,
// a `---` separator, then a sequence of check entries. YAML anchors
// and aliases are resolved natively by the decoder before this package
// ever sees the values (spec.md §6: "substitute textually prior to
// compilation").
func Parse(r io.Reader) (*Rubric, error) {
	dec := yaml.NewDecoder(r)

	var fm frontMatter
	if err := dec.Decode(&fm); err != nil && err != io.EOF {
		return nil, &Error{Msg: fmt.Sprintf("decoding front matter: %v", err)}
	}

	out := &Rubric{
		Title:          fm.Title,
		Seed:           0,
		AEAD:           fm.AEAD,
		RemoteURL:      fm.RemoteURL,
		RemotePassword: fm.RemotePassword,
		IsLocal:        fm.IsLocal,
	}
	if out.Title == "" {
		out.Title = "Training Round"
	}
	if fm.Seed != nil {
		out.Seed = *fm.Seed
	}

	var checkDocs []yaml.Node
	for {
		var doc yaml.Node
		if err := dec.Decode(&doc); err != nil {
			if err == io.EOF {
				break
			}
			return nil, &Error{Msg: fmt.Sprintf("decoding checks document: %v", err)}
		}
		checkDocs = append(checkDocs, doc)
	}

	for _, doc := range checkDocs {
		checks, err := decodeCheckSequence(&doc)
		if err != nil {
			return nil, err
		}
		out.Checks = append(out.Checks, checks...)
	}

	if err := validate(out); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeCheckSequence(doc *yaml.Node) ([]Check, error) {
	root := doc
	if root.Kind == yaml.DocumentNode && len(root.Content) == 1 {
		root = root.Content[0]
	}
	if root.Kind != yaml.SequenceNode {
		return nil, &Error{Msg: "checks document must be a YAML sequence", Line: root.Line}
	}

	var checks []Check
	for _, item := range root.Content {
		if item.Kind != yaml.MappingNode {
			return nil, &Error{Msg: "check entry must be a mapping", Line: item.Line}
		}
		c, err := decodeCheck(item)
		if err != nil {
			return nil, err
		}
		checks = append(checks, c)
	}
	return checks, nil
}

// decodeCheck reads one check entry mapping: a title key whose value is
// the point value itself (spec.md §6: "a key `<title>:` whose value is
// the point value"), plus sibling `category:` and `pass:` keys.
func decodeCheck(m *yaml.Node) (Check, error) {
	var c Check
	var passNode *yaml.Node
	haveTitle := false

	for i := 0; i+1 < len(m.Content); i += 2 {
		key := m.Content[i].Value
		val := m.Content[i+1]
		switch key {
		case "category":
			c.Category = val.Value
		case "pass":
			passNode = val
		default:
			if haveTitle {
				return c, &Error{Msg: fmt.Sprintf("check entry has more than one title-like key (%q and %q)", c.Title, key), Line: m.Line}
			}
			var points float64
			if err := val.Decode(&points); err != nil {
				return c, &Error{Msg: fmt.Sprintf("check %q: point value must be a number: %v", key, err), Line: m.Line}
			}
			c.Title = key
			c.Points = points
			haveTitle = true
		}
	}
	if !haveTitle {
		return c, &Error{Msg: "check entry missing a title key", Line: m.Line}
	}
	if passNode == nil {
		return c, &Error{Msg: fmt.Sprintf("check %q missing pass:", c.Title), Line: m.Line}
	}

	cond, err := decodeCondition(passNode)
	if err != nil {
		return c, err
	}
	c.Pass = cond
	return c, nil
}

// decodeCondition decodes one node of a pass-condition tree: a bare
// sequence is an implicit AND (spec.md §6); a mapping with a single
// "and"/"or" key is an explicit composite; any other single-key mapping
// is a leaf check.
func decodeCondition(n *yaml.Node) (Condition, error) {
	switch n.Kind {
	case yaml.SequenceNode:
		children := make([]Condition, 0, len(n.Content))
		for _, item := range n.Content {
			child, err := decodeCondition(item)
			if err != nil {
				return Condition{}, err
			}
			children = append(children, child)
		}
		return Condition{Kind: ConditionAnd, Children: children}, nil

	case yaml.MappingNode:
		if len(n.Content) != 2 {
			return Condition{}, &Error{Msg: "condition mapping must have exactly one key", Line: n.Line}
		}
		key := n.Content[0].Value
		val := n.Content[1]

		switch key {
		case "and", "or":
			if val.Kind != yaml.SequenceNode {
				return Condition{}, &Error{Msg: fmt.Sprintf("%q must be a list of conditions", key), Line: n.Line}
			}
			children := make([]Condition, 0, len(val.Content))
			for _, item := range val.Content {
				child, err := decodeCondition(item)
				if err != nil {
					return Condition{}, err
				}
				children = append(children, child)
			}
			kind := ConditionAnd
			if key == "or" {
				kind = ConditionOr
			}
			return Condition{Kind: kind, Children: children}, nil

		default:
			if !checkTypes[key] {
				return Condition{}, &Error{Msg: fmt.Sprintf("unknown check type %q", key), Line: n.Line}
			}
			var args []string
			if err := val.Decode(&args); err != nil {
				return Condition{}, &Error{Msg: fmt.Sprintf("%s: arguments must be a string list: %v", key, err), Line: n.Line}
			}
			return Condition{Kind: ConditionLeaf, CheckType: key, Args: args}, nil
		}

	default:
		return Condition{}, &Error{Msg: "condition must be a mapping or a list", Line: n.Line}
	}
}
