// Package xmlmap parses XML into a tree of tagged nodes with badgerfish-style access.
//
// Repeated sibling elements collapse into a single Sequence node at the position
// of their first occurrence. Path lookups resolve a Sequence to its first element,
// so callers reading "one or many" fields get the first value without sniffing types.
package xmlmap

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var (
	// ErrNotFound is returned when a path does not resolve to a node.
	ErrNotFound = errors.New("xml element not found")
	// ErrInvalidValue is returned when element text cannot be converted to the requested type.
	ErrInvalidValue = errors.New("xml element has invalid value")
	// ErrEmptyDocument is returned when the input has no root element.
	ErrEmptyDocument = errors.New("xml document has no root element")
)

// Kind distinguishes single elements from collapsed runs of same-named siblings.
type Kind int

const (
	// Element is a single XML element.
	Element Kind = iota
	// Sequence holds two or more same-named sibling elements in document order.
	Sequence
)

type (
	// Node is an element or a sequence of same-named elements.
	Node struct {
		Kind     Kind
		Name     string
		Text     string
		Attrs    []Attr
		Children []*Node // Element only
		Items    []*Node // Sequence only
	}

	// Attr is an XML attribute, local name only.
	Attr struct {
		Name  string
		Value string
	}
)

// Parse reads an XML document and returns its root element.
func Parse(r io.Reader) (*Node, error) {
	dec := xml.NewDecoder(r)

	var (
		root  *Node
		stack []*Node
		text  []*strings.Builder
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("failed to parse xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			node := &Node{Kind: Element, Name: t.Name.Local}
			for _, a := range t.Attr {
				node.Attrs = append(node.Attrs, Attr{Name: a.Name.Local, Value: a.Value})
			}

			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("failed to parse xml: multiple root elements")
				}

				root = node
			} else {
				stack[len(stack)-1].appendChild(node)
			}

			stack = append(stack, node)
			text = append(text, &strings.Builder{})
		case xml.CharData:
			if len(text) > 0 {
				text[len(text)-1].Write(t)
			}
		case xml.EndElement:
			top := len(stack) - 1
			stack[top].Text = strings.TrimSpace(text[top].String())
			stack = stack[:top]
			text = text[:top]
		}
	}

	if root == nil {
		return nil, ErrEmptyDocument
	}

	return root, nil
}

// ParseBytes is Parse over a byte slice.
func ParseBytes(data []byte) (*Node, error) {
	return Parse(bytes.NewReader(data))
}

func (n *Node) appendChild(child *Node) {
	for i, existing := range n.Children {
		if existing.Name != child.Name {
			continue
		}

		if existing.Kind == Sequence {
			existing.Items = append(existing.Items, child)
		} else {
			n.Children[i] = &Node{Kind: Sequence, Name: child.Name, Items: []*Node{existing, child}}
		}

		return
	}

	n.Children = append(n.Children, child)
}

// First returns the node itself for an Element and the first item for a Sequence.
func (n *Node) First() *Node {
	if n == nil {
		return nil
	}

	if n.Kind == Sequence {
		if len(n.Items) == 0 {
			return nil
		}

		return n.Items[0]
	}

	return n
}

// All returns the items of a Sequence, or the node itself as a one-element slice.
func (n *Node) All() []*Node {
	switch {
	case n == nil:
		return nil
	case n.Kind == Sequence:
		return n.Items
	default:
		return []*Node{n}
	}
}

// Child returns the direct child named name, nil if absent.
// On a Sequence the lookup runs against its first element.
func (n *Node) Child(name string) *Node {
	el := n.First()
	if el == nil {
		return nil
	}

	for _, c := range el.Children {
		if c.Name == name {
			return c
		}
	}

	return nil
}

// Attr returns the value of attribute name on the (first) element.
func (n *Node) Attr(name string) (string, bool) {
	el := n.First()
	if el == nil {
		return "", false
	}

	for _, a := range el.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}

	return "", false
}

// Path walks children by name. The result may be a Sequence; use First to pick one element.
func (n *Node) Path(names ...string) *Node {
	cur := n
	for _, name := range names {
		cur = cur.Child(name)
		if cur == nil {
			return nil
		}
	}

	return cur
}

// String returns the text at path, resolving sequences to their first element.
func (n *Node) String(path ...string) (string, error) {
	node := n.Path(path...).First()
	if node == nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, strings.Join(path, "/"))
	}

	return node.Text, nil
}

// Int returns the text at path parsed as a base-10 integer.
func (n *Node) Int(path ...string) (int, error) {
	s, err := n.String(path...)
	if err != nil {
		return 0, err
	}

	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidValue, strings.Join(path, "/"), s)
	}

	return v, nil
}

// Float returns the text at path parsed as a float64.
func (n *Node) Float(path ...string) (float64, error) {
	s, err := n.String(path...)
	if err != nil {
		return 0, err
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidValue, strings.Join(path, "/"), s)
	}

	return v, nil
}
