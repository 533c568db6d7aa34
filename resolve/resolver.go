// Package resolve maintains the run-scoped mapping from external IRIs
// to stable node identities, assigns type labels and merges literal
// properties. One resolver is created per run and passed explicitly to
// every stage that needs it; it is the single writer of the mapping.
package resolve

import (
	"fmt"

	"github.com/bmeg/kgload/log"
	"github.com/bmeg/kgload/rdf"
	"github.com/mitchellh/hashstructure/v2"
	"github.com/spf13/cast"
)

// LabelUnknown marks an entity whose type has not been observed yet.
// Stub entities created for forward-referenced relationship endpoints
// start here and transition to a real label when a type assertion
// arrives.
const LabelUnknown = "unknown"

// Entity is a resolved node: an external IRI bound to a stable
// internal identity. Identity never changes once assigned; only the
// label (unknown -> typed) and properties are enriched.
type Entity struct {
	IRI        string
	ID         string
	Label      string
	Properties map[string]interface{}

	propOrder []string
}

// PropertyKeys returns property names in first-set order, so column
// inference downstream is reproducible.
func (e *Entity) PropertyKeys() []string {
	return e.propOrder
}

// Relationship links two resolved entities. Both endpoints exist as
// entities before the relationship is produced.
type Relationship struct {
	FromID     string
	ToID       string
	Label      string
	Properties map[string]interface{}
}

// Resolver deduplicates entities across all chunks and files of a run.
type Resolver struct {
	entities map[string]*Entity
	order    []string

	// classes maps a recognized class local name to the type label
	// assigned to instances of that class.
	classes map[string]string

	multiValue map[string]struct{}
	relNames   map[string]string

	dirty map[string]struct{}

	stubs        int64
	ignoredTypes int64
}

// seedClasses are the ontology classes the original e-commerce graph
// ships with, plus the schema-level classes the TBox layer emits.
var seedClasses = map[string]string{
	"Product":          "Product",
	"Category":         "Category",
	"Brand":            "Brand",
	"User":             "User",
	"Scene":            "Scene",
	"Crowd":            "Crowd",
	"Time":             "Time",
	"Theme":            "Theme",
	"Market":           "Market",
	"PlaceOfOrigin":    "PlaceOfOrigin",
	"Class":            "Class",
	"Concept":          "Concept",
	"Property":         "Property",
	"ObjectProperty":   "Property",
	"DatatypeProperty": "Property",
}

// relNameMapping carries the curated relation names of the original
// workflow; anything else falls back to the upper-snake local name.
var relNameMapping = map[string]string{
	"hasCategory":        "BELONGS_TO_CATEGORY",
	"hasBrand":           "HAS_BRAND",
	"belongsTo":          "BELONGS_TO",
	"appliesTo":          "APPLIES_TO",
	"suitable_for_crowd": "SUITABLE_FOR_CROWD",
	"suitable_for_scene": "SUITABLE_FOR_SCENE",
	"suitable_for_time":  "SUITABLE_FOR_TIME",
	"hasTheme":           "HAS_THEME",
	"inMarket":           "IN_MARKET",
	"subClassOf":         "SUBCLASS_OF",
	"broader":            "BROADER",
	"subPropertyOf":      "SUBPROPERTY_OF",
}

// NewResolver creates an empty run-scoped resolver. multiValueKeys
// name the property keys that accumulate values instead of
// overwriting.
func NewResolver(multiValueKeys []string) *Resolver {
	r := &Resolver{
		entities:   make(map[string]*Entity),
		classes:    make(map[string]string),
		multiValue: make(map[string]struct{}),
		relNames:   make(map[string]string),
		dirty:      make(map[string]struct{}),
	}
	for k, v := range seedClasses {
		r.classes[k] = v
	}
	for k, v := range relNameMapping {
		r.relNames[k] = v
	}
	for _, k := range multiValueKeys {
		r.multiValue[k] = struct{}{}
	}
	return r
}

// InternalID derives the stable node identity for an IRI. It depends
// on nothing but the IRI itself, so a rerun resolves relationships
// against nodes loaded by an earlier invocation.
func InternalID(iri string) string {
	h, err := hashstructure.Hash(iri, hashstructure.FormatV2, nil)
	if err != nil {
		// hashstructure cannot fail on a plain string; guard anyway.
		log.Errorf("hashing %q: %v", iri, err)
	}
	return fmt.Sprintf("%016x", h)
}

// AddClass registers a class local name so later type assertions and
// path heuristics recognize it.
func (r *Resolver) AddClass(name string) {
	if name == "" {
		return
	}
	if _, ok := r.classes[name]; !ok {
		r.classes[name] = name
	}
}

// Resolve returns the entity for an IRI, creating it on first sight.
// Resolving the same IRI twice in a run yields the same entity.
func (r *Resolver) Resolve(iri string) *Entity {
	if e, ok := r.entities[iri]; ok {
		return e
	}
	e := &Entity{
		IRI:        iri,
		ID:         InternalID(iri),
		Label:      r.labelFromPath(iri),
		Properties: make(map[string]interface{}),
	}
	r.entities[iri] = e
	r.order = append(r.order, iri)
	r.dirty[iri] = struct{}{}
	if e.Label == LabelUnknown {
		r.stubs++
	}
	return e
}

// labelFromPath scans the IRI path segments for a recognized class
// name, the fallback when no type assertion has been observed.
func (r *Resolver) labelFromPath(iri string) string {
	rest := iri
	for rest != "" {
		var seg string
		if i := indexAny(rest, "/#"); i >= 0 {
			seg, rest = rest[:i], rest[i+1:]
		} else {
			seg, rest = rest, ""
		}
		if label, ok := r.classes[seg]; ok {
			return label
		}
	}
	return LabelUnknown
}

func indexAny(s, chars string) int {
	for i := 0; i < len(s); i++ {
		for j := 0; j < len(chars); j++ {
			if s[i] == chars[j] {
				return i
			}
		}
	}
	return -1
}

// Apply folds one statement into the resolver state. A statement with
// an IRI or blank-node object yields a relationship whose endpoints
// are both resolved (the target becomes a stub if unseen); literal
// objects become properties; type assertions set the label.
func (r *Resolver) Apply(st rdf.Statement) *Relationship {
	subject := r.Resolve(st.Subject)
	pred := rdf.LocalName(st.Predicate)

	if pred == "type" && !st.IsLiteral() {
		r.applyType(subject, st.Object)
		return nil
	}

	if st.IsLiteral() {
		r.setProperty(subject, pred, coerce(st))
		return nil
	}

	target := r.Resolve(st.Object)
	return &Relationship{
		FromID:     subject.ID,
		ToID:       target.ID,
		Label:      r.relationName(pred),
		Properties: map[string]interface{}{},
	}
}

// applyType moves an entity from unknown to typed. A recognized class
// wins; an unrecognized one is counted and ignored, matching the
// original workflow. An already-typed entity keeps its first label so
// output is insensitive to statement order across chunks.
func (r *Resolver) applyType(e *Entity, classIRI string) {
	label, ok := r.classes[rdf.LocalName(classIRI)]
	if !ok {
		r.ignoredTypes++
		return
	}
	if e.Label == LabelUnknown {
		e.Label = label
		r.stubs--
		r.dirty[e.IRI] = struct{}{}
	}
	// An ontology class definition makes the defined class itself
	// recognizable, so instances typed against it later in the stream
	// get real labels.
	if label == "Class" {
		r.AddClass(rdf.LocalName(e.IRI))
	}
}

func (r *Resolver) setProperty(e *Entity, key string, value interface{}) {
	if _, multi := r.multiValue[key]; multi {
		prev, ok := e.Properties[key].([]interface{})
		if !ok {
			if existing, present := e.Properties[key]; present {
				prev = []interface{}{existing}
			}
			e.propOrder = appendKey(e.propOrder, key, e.Properties)
		}
		e.Properties[key] = append(prev, value)
	} else {
		e.propOrder = appendKey(e.propOrder, key, e.Properties)
		e.Properties[key] = value
	}
	r.dirty[e.IRI] = struct{}{}
}

func appendKey(order []string, key string, props map[string]interface{}) []string {
	if _, ok := props[key]; ok {
		return order
	}
	return append(order, key)
}

// relationName maps a predicate local name to the relationship label.
func (r *Resolver) relationName(pred string) string {
	if mapped, ok := r.relNames[pred]; ok {
		return mapped
	}
	return toUpperSnake(pred)
}

func toUpperSnake(name string) string {
	out := make([]byte, 0, len(name)+4)
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z':
			out = append(out, c-'a'+'A')
		case c >= 'A' && c <= 'Z':
			if i > 0 && name[i-1] >= 'a' && name[i-1] <= 'z' {
				out = append(out, '_')
			}
			out = append(out, c)
		case c >= '0' && c <= '9' || c == '_':
			out = append(out, c)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}

// coerce turns a literal into a typed property value using its xsd
// datatype tag; untypable values stay strings.
func coerce(st rdf.Statement) interface{} {
	switch rdf.LocalName(st.Datatype) {
	case "integer", "int", "long", "short", "byte",
		"nonNegativeInteger", "positiveInteger":
		if v, err := cast.ToInt64E(st.Object); err == nil {
			return v
		}
	case "decimal", "double", "float":
		if v, err := cast.ToFloat64E(st.Object); err == nil {
			return v
		}
	case "boolean":
		if v, err := cast.ToBoolE(st.Object); err == nil {
			return v
		}
	}
	return st.Object
}

// Entities returns every resolved entity in first-seen order. Called
// at end-of-run, after all chunks, so labels reflect type assertions
// from any chunk.
func (r *Resolver) Entities() []*Entity {
	out := make([]*Entity, 0, len(r.order))
	for _, iri := range r.order {
		out = append(out, r.entities[iri])
	}
	return out
}

// TakeDirty returns the entities created or enriched since the last
// call, in first-seen order, and clears the set. The loader uses this
// to upsert only what changed in a chunk.
func (r *Resolver) TakeDirty() []*Entity {
	if len(r.dirty) == 0 {
		return nil
	}
	out := make([]*Entity, 0, len(r.dirty))
	for _, iri := range r.order {
		if _, ok := r.dirty[iri]; ok {
			out = append(out, r.entities[iri])
		}
	}
	r.dirty = make(map[string]struct{})
	return out
}

// Count returns the number of distinct entities resolved so far.
func (r *Resolver) Count() int {
	return len(r.entities)
}

// StubCount returns how many entities are still unlabeled.
func (r *Resolver) StubCount() int64 {
	return r.stubs
}

// IgnoredTypeCount returns how many type assertions referenced an
// unrecognized class.
func (r *Resolver) IgnoredTypeCount() int64 {
	return r.ignoredTypes
}
