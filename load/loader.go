// Package load applies resolved graph records to a running Neo4j
// store. Node writes are merge-by-identity so reruns are idempotent;
// relationship writes are plain inserts. Failed batches are retried
// with bounded backoff and then recorded, never aborting the run.
package load

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bmeg/kgload/config"
	"github.com/bmeg/kgload/log"
	"github.com/bmeg/kgload/model"
	multierror "github.com/hashicorp/go-multierror"
	"github.com/mitchellh/hashstructure/v2"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// FailedBatch identifies a batch that exhausted its retries.
type FailedBatch struct {
	Chunk int
	Kind  string
	Label string
	Err   string
}

// Result accumulates load counts for a run.
type Result struct {
	NodesCreated  int64
	NodesMerged   int64
	RelsCreated   int64
	FailedBatches []FailedBatch
}

// writeCounts is what one store round trip reports back.
type writeCounts struct {
	nodesCreated int64
	relsCreated  int64
}

// Loader holds the store connection and the run's load manifest: each
// committed internal id mapped to a hash of the row it was committed
// with, so an entity reappearing in a later chunk is not re-sent
// unless its row changed.
type Loader struct {
	driver     neo4j.DriverWithContext
	database   string
	batchSize  int
	maxRetries int
	timeout    time.Duration
	backoff    time.Duration

	manifest map[string]uint64

	// exec performs one write query; swapped out by tests.
	exec func(ctx context.Context, query string, params map[string]any) (writeCounts, error)
}

// NewLoader connects to the store and verifies connectivity before
// any data is sent.
func NewLoader(ctx context.Context, conf config.Neo4jConfig, batchSize, maxRetries int) (*Loader, error) {
	driver, err := neo4j.NewDriverWithContext(conf.URI, neo4j.BasicAuth(conf.User, conf.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", conf.URI, err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("verifying connectivity to %s: %w", conf.URI, err)
	}
	l := &Loader{
		driver:     driver,
		database:   conf.Database,
		batchSize:  batchSize,
		maxRetries: maxRetries,
		timeout:    conf.TimeoutDuration(),
		backoff:    500 * time.Millisecond,
		manifest:   make(map[string]uint64),
	}
	l.exec = l.runWrite
	return l, nil
}

// Close releases the store connection.
func (l *Loader) Close(ctx context.Context) {
	if l.driver != nil {
		l.driver.Close(ctx)
	}
}

func (l *Loader) runWrite(ctx context.Context, query string, params map[string]any) (writeCounts, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	session := l.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: l.database})
	defer session.Close(ctx)

	counts, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return writeCounts{}, err
		}
		summary, err := res.Consume(ctx)
		if err != nil {
			return writeCounts{}, err
		}
		c := summary.Counters()
		return writeCounts{
			nodesCreated: int64(c.NodesCreated()),
			relsCreated:  int64(c.RelationshipsCreated()),
		}, nil
	})
	if err != nil {
		return writeCounts{}, err
	}
	return counts.(writeCounts), nil
}

// execRetry sends one batch with bounded retries and exponential
// backoff. Exhausting retries returns the last error; the caller
// records the failed batch and continues.
func (l *Loader) execRetry(ctx context.Context, query string, params map[string]any) (writeCounts, error) {
	var lastErr error
	for attempt := 0; attempt <= l.maxRetries; attempt++ {
		if attempt > 0 {
			wait := l.backoff * (1 << (attempt - 1))
			log.WithFields(log.Fields{"attempt": attempt, "wait": wait.String()}).Warning("Retrying store batch")
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return writeCounts{}, ctx.Err()
			}
		}
		counts, err := l.exec(ctx, query, params)
		if err == nil {
			return counts, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return writeCounts{}, ctx.Err()
		}
	}
	return writeCounts{}, lastErr
}

// sanitizeLabel restricts a label or relation name to characters safe
// to interpolate into Cypher; labels cannot be query parameters.
func sanitizeLabel(label string) string {
	out := make([]byte, 0, len(label))
	for i := 0; i < len(label); i++ {
		c := label[i]
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return "Unknown"
	}
	return string(out)
}

// LoadNodes merges node buckets into the store, batch by batch. A node
// already in the manifest whose row reappears unchanged counts as
// merged without another round trip; MERGE keyed on the internal id
// keeps reruns against a populated store idempotent.
func (l *Loader) LoadNodes(ctx context.Context, chunk int, buckets []*model.Bucket, result *Result) error {
	var runErr *multierror.Error
	for _, bucket := range buckets {
		label := sanitizeLabel(bucket.Label)
		query := fmt.Sprintf(
			"UNWIND $rows AS row MERGE (n:%s {id: row.id}) SET n.uri = row.uri, n.name = row.name SET n += row.props",
			label)

		rows := make([]map[string]any, 0, len(bucket.Nodes))
		hashes := make(map[string]uint64, len(bucket.Nodes))
		for _, n := range bucket.Nodes {
			row := map[string]any{
				"id":    n.ID,
				"uri":   n.IRI,
				"name":  n.Name,
				"props": flatProps(n.Props),
			}
			sum, err := hashstructure.Hash(row, hashstructure.FormatV2, nil)
			if err == nil {
				if prev, ok := l.manifest[n.ID]; ok && prev == sum {
					result.NodesMerged++
					continue
				}
				hashes[n.ID] = sum
			}
			rows = append(rows, row)
		}

		for start := 0; start < len(rows); start += l.batchSize {
			end := start + l.batchSize
			if end > len(rows) {
				end = len(rows)
			}
			batch := rows[start:end]
			counts, err := l.execRetry(ctx, query, map[string]any{"rows": batch})
			if err != nil {
				result.FailedBatches = append(result.FailedBatches, FailedBatch{
					Chunk: chunk, Kind: "nodes", Label: bucket.Label, Err: err.Error(),
				})
				runErr = multierror.Append(runErr, err)
				continue
			}
			result.NodesCreated += counts.nodesCreated
			result.NodesMerged += int64(len(batch)) - counts.nodesCreated
			for _, row := range batch {
				id := row["id"].(string)
				if sum, ok := hashes[id]; ok {
					l.manifest[id] = sum
				}
			}
		}
	}
	return runErr.ErrorOrNil()
}

// Committed reports whether a node id was already loaded in this run.
func (l *Loader) Committed(id string) bool {
	_, ok := l.manifest[id]
	return ok
}

// LoadEdges inserts relationship buckets. Inserts are not
// deduplicated: rerunning a load without clearing the store first
// doubles relationships.
func (l *Loader) LoadEdges(ctx context.Context, chunk int, buckets []*model.Bucket, result *Result) error {
	var runErr *multierror.Error
	for _, bucket := range buckets {
		relType := sanitizeLabel(bucket.Label)
		query := fmt.Sprintf(
			"UNWIND $rows AS row MATCH (a {id: row.from}) MATCH (b {id: row.to}) CREATE (a)-[r:%s]->(b) SET r += row.props",
			relType)

		rows := make([]map[string]any, 0, len(bucket.Edges))
		for _, e := range bucket.Edges {
			rows = append(rows, map[string]any{
				"from":  e.From,
				"to":    e.To,
				"props": flatProps(e.Props),
			})
		}

		for start := 0; start < len(rows); start += l.batchSize {
			end := start + l.batchSize
			if end > len(rows) {
				end = len(rows)
			}
			batch := rows[start:end]
			counts, err := l.execRetry(ctx, query, map[string]any{"rows": batch})
			if err != nil {
				result.FailedBatches = append(result.FailedBatches, FailedBatch{
					Chunk: chunk, Kind: "rels", Label: bucket.Label, Err: err.Error(),
				})
				runErr = multierror.Append(runErr, err)
				continue
			}
			result.RelsCreated += counts.relsCreated
		}
	}
	return runErr.ErrorOrNil()
}

// Truncate empties the target store. Used by the maintenance command
// before a clean run.
func (l *Loader) Truncate(ctx context.Context) error {
	_, err := l.execRetry(ctx, "MATCH (n) DETACH DELETE n", nil)
	return err
}

// Verify returns node counts keyed by label and relationship counts
// keyed by "REL_<type>".
func (l *Loader) Verify(ctx context.Context) (map[string]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	session := l.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: l.database})
	defer session.Close(ctx)

	stats := map[string]int64{}
	_, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, "MATCH (n) RETURN labels(n) AS labels, count(n) AS count", nil)
		if err != nil {
			return nil, err
		}
		for res.Next(ctx) {
			record := res.Record()
			labels, _ := record.Get("labels")
			count, _ := record.Get("count")
			name := "Unknown"
			if list, ok := labels.([]any); ok && len(list) > 0 {
				name = fmt.Sprint(list[0])
			}
			stats[name], _ = count.(int64)
		}
		if err := res.Err(); err != nil {
			return nil, err
		}

		res, err = tx.Run(ctx, "MATCH ()-[r]->() RETURN type(r) AS type, count(r) AS count", nil)
		if err != nil {
			return nil, err
		}
		for res.Next(ctx) {
			record := res.Record()
			relType, _ := record.Get("type")
			count, _ := record.Get("count")
			stats["REL_"+fmt.Sprint(relType)], _ = count.(int64)
		}
		return nil, res.Err()
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// flatProps renders property values into driver-friendly types;
// multi-value lists stay lists, everything else passes through.
func flatProps(props map[string]interface{}) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		key := strings.TrimSpace(k)
		if key == "" {
			continue
		}
		out[key] = v
	}
	return out
}
