package rdf

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bmeg/kgload/log"
	"github.com/knakk/rdf"
)

// xsdString is the implicit datatype of plain literals; it carries no
// information and is dropped from parsed statements.
const xsdString = "http://www.w3.org/2001/XMLSchema#string"

// ParseLine parses one N-Triples line into a Statement. Blank lines
// and comments yield (nil, nil). A malformed subject, predicate or
// object is a local parse error: the caller skips and counts it.
func ParseLine(line string) (*Statement, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return nil, nil
	}

	dec := rdf.NewTripleDecoder(strings.NewReader(trimmed), rdf.NTriples)
	triple, err := dec.Decode()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("malformed statement: %v", err)
	}
	st := fromTriple(triple)
	return &st, nil
}

func fromTriple(t rdf.Triple) Statement {
	st := Statement{
		Subject:   t.Subj.String(),
		Predicate: t.Pred.String(),
		Object:    t.Obj.String(),
	}
	switch t.Obj.Type() {
	case rdf.TermLiteral:
		st.Kind = ObjectLiteral
		if lit, ok := t.Obj.(rdf.Literal); ok {
			st.Lang = lit.Lang()
			if dt := lit.DataType.String(); dt != xsdString {
				st.Datatype = dt
			}
		}
	case rdf.TermBlank:
		st.Kind = ObjectBlank
	default:
		st.Kind = ObjectIRI
	}
	return st
}

// streamTurtle decodes a Turtle document as one stream. Turtle
// statements depend on document-level prefix context, so a decode
// error here ends the stream for this source instead of skipping a
// line.
func streamTurtle(ctx context.Context, file string, stats *Stats) (<-chan Statement, error) {
	fh, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	var src io.Reader = fh
	if strings.HasSuffix(file, ".gz") {
		gz, err := gzip.NewReader(fh)
		if err != nil {
			fh.Close()
			return nil, err
		}
		src = gz
	}

	out := make(chan Statement, 100)
	go func() {
		defer fh.Close()
		defer close(out)
		dec := rdf.NewTripleDecoder(src, rdf.Turtle)
		for {
			triple, err := dec.Decode()
			if err == io.EOF {
				return
			}
			if err != nil {
				stats.AddFailure()
				log.WithFields(log.Fields{"error": err}).Errorf("Turtle decode ended early: %s", file)
				return
			}
			stats.AddStatement()
			select {
			case out <- fromTriple(triple):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
