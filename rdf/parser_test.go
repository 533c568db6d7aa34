package rdf

import (
	"testing"
)

func TestParseLineIRIObject(t *testing.T) {
	st, err := ParseLine("<http://example.com/a> <http://example.com/hasCategory> <http://example.com/b> .")
	if err != nil {
		t.Fatal(err)
	}
	if st.Subject != "http://example.com/a" {
		t.Errorf("unexpected subject: %s", st.Subject)
	}
	if st.Predicate != "http://example.com/hasCategory" {
		t.Errorf("unexpected predicate: %s", st.Predicate)
	}
	if st.Object != "http://example.com/b" {
		t.Errorf("unexpected object: %s", st.Object)
	}
	if st.Kind != ObjectIRI {
		t.Errorf("expected IRI object, got %s", st.Kind)
	}
}

func TestParseLineLiteralObject(t *testing.T) {
	st, err := ParseLine(`<http://example.com/a> <http://example.com/name> "widget, deluxe"@en .`)
	if err != nil {
		t.Fatal(err)
	}
	if st.Kind != ObjectLiteral {
		t.Fatalf("expected literal object, got %s", st.Kind)
	}
	if st.Object != "widget, deluxe" {
		t.Errorf("unexpected literal value: %q", st.Object)
	}
	if st.Lang != "en" {
		t.Errorf("unexpected language tag: %q", st.Lang)
	}
}

func TestParseLineTypedLiteral(t *testing.T) {
	st, err := ParseLine(`<http://example.com/a> <http://example.com/price> "42"^^<http://www.w3.org/2001/XMLSchema#integer> .`)
	if err != nil {
		t.Fatal(err)
	}
	if st.Kind != ObjectLiteral {
		t.Fatalf("expected literal object, got %s", st.Kind)
	}
	if st.Object != "42" {
		t.Errorf("unexpected literal value: %q", st.Object)
	}
	if LocalName(st.Datatype) != "integer" {
		t.Errorf("unexpected datatype: %q", st.Datatype)
	}
}

func TestParseLineBlankObject(t *testing.T) {
	st, err := ParseLine("<http://example.com/a> <http://example.com/linked> _:b1 .")
	if err != nil {
		t.Fatal(err)
	}
	if st.Kind != ObjectBlank {
		t.Errorf("expected blank object, got %s", st.Kind)
	}
}

func TestParseLineReservedCharacters(t *testing.T) {
	// Reserved characters inside an IRI must survive unmodified: no
	// percent decoding, no truncation.
	iri := "http://example.com/item?q=a%20b&x=1#frag"
	st, err := ParseLine("<" + iri + "> <http://example.com/p> <http://example.com/o> .")
	if err != nil {
		t.Fatal(err)
	}
	if st.Subject != iri {
		t.Errorf("IRI was altered: %q", st.Subject)
	}
}

func TestParseLineMalformed(t *testing.T) {
	if _, err := ParseLine("not a valid statement"); err == nil {
		t.Error("expected a parse error")
	}
}

func TestParseLineSkips(t *testing.T) {
	for _, line := range []string{"", "   ", "# a comment"} {
		st, err := ParseLine(line)
		if err != nil {
			t.Errorf("line %q: unexpected error %v", line, err)
		}
		if st != nil {
			t.Errorf("line %q: expected no statement", line)
		}
	}
}

func TestLocalName(t *testing.T) {
	cases := map[string]string{
		"http://www.w3.org/1999/02/22-rdf-syntax-ns#type": "type",
		"http://example.com/ontology/hasCategory":         "hasCategory",
		"owl:Class": "Class",
		"plain":     "plain",
	}
	for in, want := range cases {
		if got := LocalName(in); got != want {
			t.Errorf("LocalName(%q) = %q, want %q", in, got, want)
		}
	}
}
