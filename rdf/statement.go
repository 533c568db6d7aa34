// Package rdf provides streaming statement extraction from triple
// sources: lazy line readers, per-statement parsing, sampling and
// chunked batching for bounded-memory processing.
package rdf

import (
	"strings"
	"sync/atomic"
)

// ObjectKind classifies the object term of a statement.
type ObjectKind int

const (
	// ObjectIRI marks an object that references another entity.
	ObjectIRI ObjectKind = iota
	// ObjectLiteral marks a literal value, optionally tagged with a
	// language or datatype.
	ObjectLiteral
	// ObjectBlank marks a blank node reference.
	ObjectBlank
)

func (k ObjectKind) String() string {
	switch k {
	case ObjectLiteral:
		return "literal"
	case ObjectBlank:
		return "blank"
	default:
		return "iri"
	}
}

// Statement is a single parsed (subject, predicate, object) record.
// Produced once per source line or document key, never mutated.
type Statement struct {
	Subject   string
	Predicate string
	Object    string
	Kind      ObjectKind
	Lang      string
	Datatype  string
}

// IsLiteral reports whether the object is a literal value.
func (s Statement) IsLiteral() bool {
	return s.Kind == ObjectLiteral
}

// LocalName returns the trailing segment of an IRI or prefixed name:
// everything after the last '#', '/' or ':'.
func LocalName(iri string) string {
	name := iri
	if i := strings.LastIndex(name, "#"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.LastIndex(name, ":"); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// Stats counts source reading outcomes. Safe for the reader goroutine
// and the consumer to share.
type Stats struct {
	Lines         int64
	Statements    int64
	ParseFailures int64
	LastOffset    int64
}

// AddLine records one raw line and its resume offset.
func (s *Stats) AddLine(offset int64) {
	atomic.AddInt64(&s.Lines, 1)
	atomic.StoreInt64(&s.LastOffset, offset)
}

// AddStatement records one successfully parsed statement.
func (s *Stats) AddStatement() {
	atomic.AddInt64(&s.Statements, 1)
}

// AddFailure records one malformed, skipped statement.
func (s *Stats) AddFailure() {
	atomic.AddInt64(&s.ParseFailures, 1)
}

// Snapshot returns a consistent copy of the counters.
func (s *Stats) Snapshot() Stats {
	return Stats{
		Lines:         atomic.LoadInt64(&s.Lines),
		Statements:    atomic.LoadInt64(&s.Statements),
		ParseFailures: atomic.LoadInt64(&s.ParseFailures),
		LastOffset:    atomic.LoadInt64(&s.LastOffset),
	}
}
