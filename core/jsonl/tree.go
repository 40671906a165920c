package jsonl

import (
	"io"
)

// maxParseErrors bounds how many parse errors are kept for diagnostics.
const maxParseErrors = 20

// Node is one entity of the rebuilt hierarchy.
type Node struct {
	Record
	Children []*Node
}

// ChildrenOf returns the direct children of the given kind, in input order.
func (n *Node) ChildrenOf(kind Kind) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// Stats counts what happened to the input lines.
type Stats struct {
	Lines     int            `json:"lines"`
	Records   map[string]int `json:"records"`
	Malformed int            `json:"malformed"`
	Unknown   int            `json:"unknown"`
	Orphans   int            `json:"orphans"`
	Errors    []*ParseError  `json:"-"`
}

// Tree is the result of a build: products in first-seen order.
type Tree struct {
	Products []*Node
	Stats    Stats
}

// Builder accumulates records and links them into a tree.
type Builder struct {
	nodes    []*Node
	products map[string]*Node
	variants map[string]*Node
	items    map[string]*Node
	// owners maps inline inventory item ids to the variant carrying them.
	owners map[string]*Node
	stats  Stats
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		products: make(map[string]*Node),
		variants: make(map[string]*Node),
		items:    make(map[string]*Node),
		owners:   make(map[string]*Node),
		stats:    Stats{Records: make(map[string]int)},
	}
}

// AddLine decodes one line. A malformed line is counted and dropped.
func (b *Builder) AddLine(lineNo int, line []byte) {
	b.stats.Lines++
	rec, err := DecodeRecord(line)
	if err != nil {
		b.stats.Malformed++
		if len(b.stats.Errors) < maxParseErrors {
			b.stats.Errors = append(b.stats.Errors, &ParseError{Line: lineNo, Err: err})
		}
		return
	}
	b.Add(rec)
}

// Add registers a decoded record.
func (b *Builder) Add(rec Record) {
	if rec.Kind == KindUnknown {
		b.stats.Unknown++
		return
	}
	b.stats.Records[rec.Kind.String()]++

	n := &Node{Record: rec}
	b.nodes = append(b.nodes, n)
	switch rec.Kind {
	case KindProduct:
		b.products[rec.ID] = n
	case KindVariant:
		b.variants[rec.ID] = n
		if rec.InventoryItem != nil && rec.InventoryItem.ID != "" {
			b.owners[rec.InventoryItem.ID] = n
		}
	case KindInventoryItem:
		b.items[rec.ID] = n
	}
}

// Build links every registered record to its parent and returns the products.
// An inventory level whose inventory item has no line of its own is attached to the
// variant owning that item, or to the variant it references directly.
func (b *Builder) Build() *Tree {
	var products []*Node
	for _, n := range b.nodes {
		var parent *Node
		switch n.Kind {
		case KindProduct:
			products = append(products, n)
			continue
		case KindVariant:
			parent = b.products[n.ParentID]
		case KindInventoryItem:
			parent = b.variants[n.ParentID]
		case KindInventoryLevel:
			if item, ok := b.items[n.ParentID]; ok {
				parent = item
			} else if owner, ok := b.owners[n.ParentID]; ok {
				parent = owner
			} else {
				parent = b.variants[n.ParentID]
			}
		}
		if parent == nil {
			b.stats.Orphans++
			continue
		}
		parent.Children = append(parent.Children, n)
	}
	return &Tree{Products: products, Stats: b.stats}
}

// Decode reads a whole result artifact and builds the tree.
// It only fails if the reader fails.
func Decode(r io.Reader) (*Tree, error) {
	b := NewBuilder()
	err := Scan(r, func(lineNo int, line []byte) error {
		b.AddLine(lineNo, line)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return b.Build(), nil
}
