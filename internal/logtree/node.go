// Package logtree turns raw CI log lines into grouped, ordered step logs and
// prunes noise from the aggregated folder -> file -> group tree.
package logtree

import (
	"bytes"
	"encoding/json"
)

// Kind identifies which variant a Node holds.
type Kind int

const (
	// KindNone is the zero Node. It marshals to JSON null.
	KindNone Kind = iota
	// KindLines is an ordered sequence of log lines.
	KindLines
	// KindBranch is an ordered mapping of names to child nodes.
	KindBranch
)

// Node is either an ordered list of lines or an ordered mapping of child nodes.
type Node struct {
	kind   Kind
	lines  []string
	branch *Branch
}

// Lines returns a lines node holding a copy of lines.
func Lines(lines ...string) Node {
	return Node{kind: KindLines, lines: append([]string{}, lines...)}
}

// BranchNode wraps b in a Node.
func BranchNode(b *Branch) Node {
	if b == nil {
		b = NewBranch()
	}
	return Node{kind: KindBranch, branch: b}
}

// Kind reports the variant held by n.
func (n Node) Kind() Kind {
	return n.kind
}

// Lines returns the lines of a lines node, or nil for any other kind.
func (n Node) Lines() []string {
	if n.kind != KindLines {
		return nil
	}
	return n.lines
}

// Branch returns the mapping of a branch node, or nil for any other kind.
func (n Node) Branch() *Branch {
	if n.kind != KindBranch {
		return nil
	}
	return n.branch
}

// IsEmpty reports whether n carries no content: the zero node, a lines node
// without lines, or a branch without keys.
func (n Node) IsEmpty() bool {
	switch n.kind {
	case KindLines:
		return len(n.lines) == 0
	case KindBranch:
		return n.branch.Len() == 0
	default:
		return true
	}
}

// Get walks a path of keys through nested branches.
func (n Node) Get(path ...string) (Node, bool) {
	cur := n
	for _, key := range path {
		b := cur.Branch()
		if b == nil {
			return Node{}, false
		}
		child, ok := b.Get(key)
		if !ok {
			return Node{}, false
		}
		cur = child
	}
	return cur, true
}

// MarshalJSON encodes lines as an array and branches as an object whose keys
// keep their insertion order.
func (n Node) MarshalJSON() ([]byte, error) {
	switch n.kind {
	case KindLines:
		if n.lines == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(n.lines)
	case KindBranch:
		return n.branch.MarshalJSON()
	default:
		return []byte("null"), nil
	}
}

// Branch is an insertion-ordered mapping from names to nodes.
type Branch struct {
	keys     []string
	children map[string]Node
}

// NewBranch returns an empty branch.
func NewBranch() *Branch {
	return &Branch{children: make(map[string]Node)}
}

// Set stores child under key. A new key is appended; an existing key keeps
// its position and has its value replaced.
func (b *Branch) Set(key string, child Node) {
	if _, ok := b.children[key]; !ok {
		b.keys = append(b.keys, key)
	}
	b.children[key] = child
}

// Get returns the child stored under key.
func (b *Branch) Get(key string) (Node, bool) {
	if b == nil {
		return Node{}, false
	}
	child, ok := b.children[key]
	return child, ok
}

// Keys returns the keys in order.
func (b *Branch) Keys() []string {
	if b == nil {
		return nil
	}
	return append([]string(nil), b.keys...)
}

// Len returns the number of keys.
func (b *Branch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.keys)
}

// SortByStep reorders the keys ascending by their step number.
func (b *Branch) SortByStep() {
	SortByStep(b.keys)
}

// MarshalJSON encodes the branch as a JSON object in key order.
func (b *Branch) MarshalJSON() ([]byte, error) {
	if b == nil {
		return []byte("{}"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range b.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := b.children[key].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
