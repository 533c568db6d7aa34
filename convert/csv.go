// Package convert serializes node and relationship buckets into the
// graph store's bulk-import CSV layout: one node file per type with an
// `id:ID ... :LABEL` header, one relationship file per relation with
// `:START_ID,:END_ID,:TYPE`. Files carry a per-run suffix so repeated
// invocations with the same output directory append new files instead
// of silently overwriting earlier runs.
package convert

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmeg/kgload/log"
	"github.com/bmeg/kgload/model"
	"github.com/segmentio/ksuid"
	"github.com/spf13/cast"
)

// listSep joins multi-valued properties inside one CSV field, matching
// the store's default array delimiter.
const listSep = ";"

type tableFile struct {
	path    string
	fh      *os.File
	w       *csv.Writer
	columns []string
}

// Converter owns the output files of one run. Relationship tables are
// appended chunk by chunk; node tables are written once from the
// end-of-run entity snapshot so late type assertions land in the rows.
type Converter struct {
	dir   string
	runID string

	nodeFiles map[string]*tableFile
	edgeFiles map[string]*tableFile

	nodeIDs map[string]struct{}
	refs    map[string]struct{}

	droppedColumns int64
}

// NewConverter prepares an output directory. With overwrite set,
// files get plain names and clobber previous runs; the default is a
// distinct per-run suffix.
func NewConverter(dir string, overwrite bool) (*Converter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	runID := ""
	if !overwrite {
		runID = ksuid.New().String()
	}
	return &Converter{
		dir:       dir,
		runID:     runID,
		nodeFiles: make(map[string]*tableFile),
		edgeFiles: make(map[string]*tableFile),
		nodeIDs:   make(map[string]struct{}),
		refs:      make(map[string]struct{}),
	}, nil
}

func (c *Converter) fileName(kind, label string) string {
	name := fmt.Sprintf("%s_%s.csv", kind, strings.ToLower(label))
	if c.runID != "" {
		name = fmt.Sprintf("%s_%s.%s.csv", kind, strings.ToLower(label), c.runID)
	}
	return filepath.Join(c.dir, name)
}

func (c *Converter) openTable(kind, label string, header []string) (*tableFile, error) {
	path := c.fileName(kind, label)
	fh, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	t := &tableFile{path: path, fh: fh, w: csv.NewWriter(fh)}
	if err := t.w.Write(header); err != nil {
		fh.Close()
		return nil, err
	}
	return t, nil
}

// WriteNodes writes node buckets. Intended to be called once at
// end-of-run; a second call for an already-opened type appends rows
// under the frozen column schema.
func (c *Converter) WriteNodes(buckets []*model.Bucket) error {
	for _, bucket := range buckets {
		t, ok := c.nodeFiles[bucket.Label]
		if !ok {
			header := append([]string{"id:ID", "uri", "name"}, bucket.Columns...)
			header = append(header, ":LABEL")
			var err error
			t, err = c.openTable("nodes", bucket.Label, header)
			if err != nil {
				return err
			}
			t.columns = bucket.Columns
			c.nodeFiles[bucket.Label] = t
		} else {
			c.countDropped(t.columns, bucket.Columns)
		}

		for _, row := range bucket.Nodes {
			record := make([]string, 0, len(t.columns)+4)
			record = append(record, row.ID, row.IRI, row.Name)
			for _, col := range t.columns {
				record = append(record, fieldValue(row.Props[col]))
			}
			record = append(record, bucket.Label)
			if err := t.w.Write(record); err != nil {
				return err
			}
			c.nodeIDs[row.ID] = struct{}{}
		}
		t.w.Flush()
		if err := t.w.Error(); err != nil {
			return err
		}
	}
	return nil
}

// WriteEdges appends relationship buckets for one chunk. The column
// schema of a relation file freezes when the file is created; property
// keys discovered in later chunks are dropped and counted.
func (c *Converter) WriteEdges(buckets []*model.Bucket) error {
	for _, bucket := range buckets {
		t, ok := c.edgeFiles[bucket.Label]
		if !ok {
			header := append([]string{":START_ID", ":END_ID", ":TYPE"}, bucket.Columns...)
			var err error
			t, err = c.openTable("rels", bucket.Label, header)
			if err != nil {
				return err
			}
			t.columns = bucket.Columns
			c.edgeFiles[bucket.Label] = t
		} else {
			c.countDropped(t.columns, bucket.Columns)
		}

		for _, row := range bucket.Edges {
			record := make([]string, 0, len(t.columns)+3)
			record = append(record, row.From, row.To, bucket.Label)
			for _, col := range t.columns {
				record = append(record, fieldValue(row.Props[col]))
			}
			if err := t.w.Write(record); err != nil {
				return err
			}
			c.refs[row.From] = struct{}{}
			c.refs[row.To] = struct{}{}
		}
		t.w.Flush()
		if err := t.w.Error(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Converter) countDropped(frozen, current []string) {
	known := make(map[string]struct{}, len(frozen))
	for _, col := range frozen {
		known[col] = struct{}{}
	}
	for _, col := range current {
		if _, ok := known[col]; !ok {
			c.droppedColumns++
			log.WithFields(log.Fields{"column": col}).Warning("Property column discovered after table schema froze; dropped")
		}
	}
}

// MissingEndpoints reports relationship endpoint ids that never
// appeared in a node table. Run after all writes: the opposite
// endpoint of a chunk's relationship may be emitted by a later chunk.
func (c *Converter) MissingEndpoints() []string {
	missing := []string{}
	for id := range c.refs {
		if _, ok := c.nodeIDs[id]; !ok {
			missing = append(missing, id)
		}
	}
	sort.Strings(missing)
	return missing
}

// DroppedColumns returns how many late-discovered property columns
// could not be added to frozen tables.
func (c *Converter) DroppedColumns() int64 {
	return c.droppedColumns
}

// Files lists the written node and relationship file paths.
func (c *Converter) Files() (nodes []string, rels []string) {
	for _, t := range c.nodeFiles {
		nodes = append(nodes, t.path)
	}
	for _, t := range c.edgeFiles {
		rels = append(rels, t.path)
	}
	sort.Strings(nodes)
	sort.Strings(rels)
	return nodes, rels
}

// Close flushes and closes every open table.
func (c *Converter) Close() error {
	var firstErr error
	closeAll := func(files map[string]*tableFile) {
		for _, t := range files {
			t.w.Flush()
			if err := t.w.Error(); err != nil && firstErr == nil {
				firstErr = err
			}
			if err := t.fh.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	closeAll(c.nodeFiles)
	closeAll(c.edgeFiles)
	return firstErr
}

// fieldValue renders a property value into one CSV field. Multi-value
// properties join with the store's array delimiter; encoding/csv does
// the quoting.
func fieldValue(v interface{}) string {
	if v == nil {
		return ""
	}
	if list, ok := v.([]interface{}); ok {
		parts := make([]string, 0, len(list))
		for _, item := range list {
			parts = append(parts, fieldValue(item))
		}
		return strings.Join(parts, listSep)
	}
	if s, err := cast.ToStringE(v); err == nil {
		return s
	}
	return fmt.Sprint(v)
}
