// Package model groups resolved entities and relationships into
// per-type buckets with an incrementally inferred column schema, the
// shape the bulk-import format wants: one table per node type, one
// table per relationship type.
package model

import (
	"sort"
	"strings"

	"github.com/bmeg/kgload/resolve"
)

// NodeRow is one entity prepared for tabular output.
type NodeRow struct {
	ID    string
	IRI   string
	Name  string
	Props map[string]interface{}
}

// EdgeRow is one relationship prepared for tabular output.
type EdgeRow struct {
	From  string
	To    string
	Props map[string]interface{}
}

// Bucket collects rows of a single node type or relationship type.
// Columns grow as new property keys appear; rows emitted before a
// column was discovered simply lack it. Earlier output is never
// amended.
type Bucket struct {
	Label   string
	Columns []string
	colSet  map[string]struct{}

	Nodes []NodeRow
	Edges []EdgeRow
}

func newBucket(label string) *Bucket {
	return &Bucket{
		Label:  label,
		colSet: make(map[string]struct{}),
	}
}

func (b *Bucket) addColumns(keys []string) {
	for _, k := range keys {
		if _, ok := b.colSet[k]; !ok {
			b.colSet[k] = struct{}{}
			b.Columns = append(b.Columns, k)
		}
	}
}

// Builder sorts entities and relationships into buckets, keyed by
// type label and relation name respectively, preserving first-seen
// ordering of buckets, rows and columns.
type Builder struct {
	nodes     map[string]*Bucket
	nodeOrder []string
	edges     map[string]*Bucket
	edgeOrder []string
}

func NewBuilder() *Builder {
	return &Builder{
		nodes: make(map[string]*Bucket),
		edges: make(map[string]*Bucket),
	}
}

// AddEntity places an entity into its type bucket.
func (b *Builder) AddEntity(e *resolve.Entity) {
	bucket, ok := b.nodes[e.Label]
	if !ok {
		bucket = newBucket(e.Label)
		b.nodes[e.Label] = bucket
		b.nodeOrder = append(b.nodeOrder, e.Label)
	}
	bucket.addColumns(e.PropertyKeys())
	bucket.Nodes = append(bucket.Nodes, NodeRow{
		ID:    e.ID,
		IRI:   e.IRI,
		Name:  displayName(e.IRI),
		Props: e.Properties,
	})
}

// AddRelationship places a relationship into its relation bucket.
func (b *Builder) AddRelationship(rel *resolve.Relationship) {
	bucket, ok := b.edges[rel.Label]
	if !ok {
		bucket = newBucket(rel.Label)
		b.edges[rel.Label] = bucket
		b.edgeOrder = append(b.edgeOrder, rel.Label)
	}
	// Relationship property maps carry no insertion order of their
	// own; sorting keeps the inferred columns identical across runs.
	keys := make([]string, 0, len(rel.Properties))
	for k := range rel.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	bucket.addColumns(keys)
	bucket.Edges = append(bucket.Edges, EdgeRow{
		From:  rel.FromID,
		To:    rel.ToID,
		Props: rel.Properties,
	})
}

// NodeBuckets returns node buckets in first-seen label order.
func (b *Builder) NodeBuckets() []*Bucket {
	out := make([]*Bucket, 0, len(b.nodeOrder))
	for _, label := range b.nodeOrder {
		out = append(out, b.nodes[label])
	}
	return out
}

// EdgeBuckets returns relationship buckets in first-seen label order.
func (b *Builder) EdgeBuckets() []*Bucket {
	out := make([]*Bucket, 0, len(b.edgeOrder))
	for _, label := range b.edgeOrder {
		out = append(out, b.edges[label])
	}
	return out
}

// displayName keeps the trailing IRI segment as a human-readable name
// column, the way the original export labeled rows.
func displayName(iri string) string {
	name := iri
	if i := strings.LastIndexByte(name, '#'); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	return name
}
