package model

import (
	"testing"

	"github.com/bmeg/kgload/rdf"
	"github.com/bmeg/kgload/resolve"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderNodeBuckets(t *testing.T) {
	r := resolve.NewResolver(nil)
	b := NewBuilder()

	p := r.Resolve("http://example.com/Product/widget")
	c := r.Resolve("http://example.com/Category/tools")
	p2 := r.Resolve("http://example.com/Product/gizmo")

	b.AddEntity(p)
	b.AddEntity(c)
	b.AddEntity(p2)

	buckets := b.NodeBuckets()
	require.Len(t, buckets, 2)
	assert.Equal(t, "Product", buckets[0].Label)
	assert.Equal(t, "Category", buckets[1].Label)
	assert.Len(t, buckets[0].Nodes, 2)
	assert.Len(t, buckets[1].Nodes, 1)

	row := buckets[0].Nodes[0]
	assert.Equal(t, p.ID, row.ID)
	assert.Equal(t, p.IRI, row.IRI)
	assert.Equal(t, "widget", row.Name)
}

func TestBuilderColumnGrowth(t *testing.T) {
	r := resolve.NewResolver(nil)
	b := NewBuilder()

	apply := func(subj, key, val string) *resolve.Entity {
		r.Apply(rdf.Statement{
			Subject:   subj,
			Predicate: "http://x/" + key,
			Object:    val,
			Kind:      rdf.ObjectLiteral,
		})
		return r.Resolve(subj)
	}

	a := apply("http://x/Product/a", "name", "a")
	b.AddEntity(a)
	assert.Equal(t, []string{"name"}, b.NodeBuckets()[0].Columns)

	// A later entity introduces a new key; the column is appended, not
	// reordered.
	bb := apply("http://x/Product/b", "name", "b")
	apply("http://x/Product/b", "color", "red")
	b.AddEntity(bb)
	assert.Equal(t, []string{"name", "color"}, b.NodeBuckets()[0].Columns)
}

func TestBuilderEdgeBuckets(t *testing.T) {
	b := NewBuilder()
	b.AddRelationship(&resolve.Relationship{
		FromID: "1", ToID: "2", Label: "HAS_BRAND",
		Properties: map[string]interface{}{},
	})
	b.AddRelationship(&resolve.Relationship{
		FromID: "1", ToID: "3", Label: "BELONGS_TO_CATEGORY",
		Properties: map[string]interface{}{},
	})
	b.AddRelationship(&resolve.Relationship{
		FromID: "2", ToID: "3", Label: "HAS_BRAND",
		Properties: map[string]interface{}{},
	})

	buckets := b.EdgeBuckets()
	require.Len(t, buckets, 2)
	assert.Equal(t, "HAS_BRAND", buckets[0].Label)
	assert.Len(t, buckets[0].Edges, 2)
	assert.Equal(t, "BELONGS_TO_CATEGORY", buckets[1].Label)
	assert.Equal(t, "1", buckets[0].Edges[0].From)
	assert.Equal(t, "2", buckets[0].Edges[0].To)
}

func TestBuilderEdgeColumnsSorted(t *testing.T) {
	for i := 0; i < 10; i++ {
		b := NewBuilder()
		b.AddRelationship(&resolve.Relationship{
			FromID: "1", ToID: "2", Label: "HAS_BRAND",
			Properties: map[string]interface{}{
				"weight": 1, "since": "2020", "active": true,
			},
		})
		assert.Equal(t, []string{"active", "since", "weight"}, b.EdgeBuckets()[0].Columns)
	}
}

func TestDisplayName(t *testing.T) {
	cases := map[string]string{
		"http://example.com/Product/widget":   "widget",
		"http://example.com/onto#Brand":       "Brand",
		"http://example.com/a#b/c":            "c",
		"plain":                               "plain",
		"http://example.com/Product/widget#v": "v",
	}
	for iri, want := range cases {
		assert.Equal(t, want, displayName(iri), iri)
	}
}
