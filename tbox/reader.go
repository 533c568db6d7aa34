// Package tbox reads the ontology layer: a JSON-LD document whose
// @graph array holds class, concept and property definitions. The
// document is walked one object at a time so arbitrarily large files
// never land in memory, and each object is flattened into the same
// statements the instance-layer pipeline consumes.
package tbox

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/bmeg/kgload/log"
	"github.com/bmeg/kgload/rdf"
)

const rdfType = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"

// StreamStatements lazily emits one statement per (id, key, value)
// found under the document's @graph array. Nested value arrays flatten
// into repeated statements with the same subject and predicate; keys
// of one object are emitted in sorted order so reruns yield the same
// statement sequence. Objects without an @id are counted as parse
// failures and skipped. Cancelling the context stops the reader.
func StreamStatements(ctx context.Context, file string, stats *rdf.Stats) (<-chan rdf.Statement, error) {
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

	dec := json.NewDecoder(src)
	if err := seekGraph(dec); err != nil {
		fh.Close()
		return nil, fmt.Errorf("locating @graph in %s: %w", file, err)
	}

	out := make(chan rdf.Statement, 100)
	go func() {
		defer fh.Close()
		defer close(out)
		for dec.More() {
			var item map[string]interface{}
			if err := dec.Decode(&item); err != nil {
				stats.AddFailure()
				log.WithFields(log.Fields{"error": err}).Errorf("Decoding @graph item: %s", file)
				return
			}
			if !emitItem(ctx, item, stats, out) {
				return
			}
		}
	}()
	return out, nil
}

// seekGraph advances the decoder past the opening of the top-level
// "@graph" array.
func seekGraph(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("document is not a JSON object")
	}
	depth := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case json.Delim:
			switch t {
			case '{', '[':
				depth++
			case '}', ']':
				if depth == 0 {
					return fmt.Errorf("no @graph array found")
				}
				depth--
			}
		case string:
			if depth == 0 && t == "@graph" {
				open, err := dec.Token()
				if err != nil {
					return err
				}
				if delim, ok := open.(json.Delim); !ok || delim != '[' {
					return fmt.Errorf("@graph is not an array")
				}
				return nil
			}
			// Skip this key's value entirely so container tokens
			// inside it do not confuse depth tracking.
			if depth == 0 {
				var skip interface{}
				if err := dec.Decode(&skip); err != nil {
					return err
				}
			}
		}
	}
}

// emitItem performs the depth-first flattening of one @graph object.
// Keys are sorted before emission: map iteration order would shuffle
// statements between runs and with them the inferred property columns.
// Returns false once the context is cancelled.
func emitItem(ctx context.Context, item map[string]interface{}, stats *rdf.Stats, out chan<- rdf.Statement) bool {
	id, _ := item["@id"].(string)
	if id == "" {
		stats.AddFailure()
		return true
	}

	send := func(st rdf.Statement) bool {
		stats.AddStatement()
		select {
		case out <- st:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for _, t := range stringList(item["@type"]) {
		ok := send(rdf.Statement{
			Subject:   id,
			Predicate: rdfType,
			Object:    t,
			Kind:      rdf.ObjectIRI,
		})
		if !ok {
			return false
		}
	}

	keys := make([]string, 0, len(item))
	for key := range item {
		if !strings.HasPrefix(key, "@") {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	for _, key := range keys {
		for _, st := range valueStatements(id, key, item[key]) {
			if !send(st) {
				return false
			}
		}
	}
	return true
}

// valueStatements classifies one key's value: {"@id": ...} is an IRI
// reference, {"@value": ...} a literal with optional language, strings
// and scalars are plain literals, arrays flatten recursively.
func valueStatements(subject, predicate string, value interface{}) []rdf.Statement {
	switch v := value.(type) {
	case []interface{}:
		out := []rdf.Statement{}
		for _, item := range v {
			out = append(out, valueStatements(subject, predicate, item)...)
		}
		return out
	case map[string]interface{}:
		if ref, ok := v["@id"].(string); ok {
			return []rdf.Statement{{
				Subject: subject, Predicate: predicate,
				Object: ref, Kind: rdf.ObjectIRI,
			}}
		}
		if val, ok := v["@value"]; ok {
			lang, _ := v["@language"].(string)
			datatype, _ := v["@type"].(string)
			return []rdf.Statement{{
				Subject: subject, Predicate: predicate,
				Object: fmt.Sprint(val), Kind: rdf.ObjectLiteral,
				Lang: lang, Datatype: datatype,
			}}
		}
		return nil
	case string:
		return []rdf.Statement{{
			Subject: subject, Predicate: predicate,
			Object: v, Kind: rdf.ObjectLiteral,
		}}
	case float64, bool:
		return []rdf.Statement{{
			Subject: subject, Predicate: predicate,
			Object: fmt.Sprint(v), Kind: rdf.ObjectLiteral,
		}}
	default:
		return nil
	}
}

func stringList(v interface{}) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []interface{}:
		out := []string{}
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
