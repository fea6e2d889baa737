package xmlmap

import (
	"math"
	"strconv"
	"strings"
)

// TextKey holds element text in the badgerfish mapping; attributes use an "@" prefix.
const TextKey = "$"

// Badgerfish renders the tree as nested maps: {"root": {"@attr": v, "$": text, "child": ...}}.
// Sequences become lists and scalar text is typed with Value.
func (n *Node) Badgerfish() map[string]any {
	if n == nil {
		return map[string]any{}
	}

	return map[string]any{n.Name: n.mapping()}
}

func (n *Node) mapping() any {
	if n.Kind == Sequence {
		items := make([]any, 0, len(n.Items))
		for _, item := range n.Items {
			items = append(items, item.mapping())
		}

		return items
	}

	m := make(map[string]any, len(n.Attrs)+len(n.Children)+1)
	for _, a := range n.Attrs {
		m["@"+a.Name] = Value(a.Value)
	}

	if n.Text != "" {
		m[TextKey] = Value(n.Text)
	}

	for _, c := range n.Children {
		m[c.Name] = c.mapping()
	}

	return m
}

// Value infers a scalar type for s: int64, float64, bool, otherwise the string itself.
func Value(s string) any {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil && finite(f) && !strings.ContainsAny(s, "xXpP_") {
		return f
	}

	switch s {
	case "true":
		return true
	case "false":
		return false
	}

	return s
}

func finite(f float64) bool {
	return !math.IsInf(f, 0) && !math.IsNaN(f)
}
