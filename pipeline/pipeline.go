// Package pipeline wires the stages together: source reader ->
// statement parser -> sampler -> chunker -> entity resolver -> graph
// model builder -> format converter -> loader. Chunks are processed
// batch-sequentially: one chunk is fully resolved, converted and
// loaded before the next is pulled, so the resolver map has a single
// writer and peak memory stays bounded by the chunk size.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/bmeg/kgload/config"
	"github.com/bmeg/kgload/convert"
	"github.com/bmeg/kgload/load"
	"github.com/bmeg/kgload/log"
	"github.com/bmeg/kgload/model"
	"github.com/bmeg/kgload/rdf"
	"github.com/bmeg/kgload/resolve"
	"github.com/bmeg/kgload/tbox"
	"github.com/paulbellamy/ratecounter"
)

// Options selects the source and the output stages of a run.
type Options struct {
	Source string
	// TBox switches to the structured-document ontology reader.
	TBox bool
	// Offset resumes a line-oriented source from a byte checkpoint.
	Offset int64
	// Convert writes bulk-import CSV files to the output directory.
	Convert bool
	// Load applies records to the running store.
	Load bool
}

// Summary is the final report of a run.
type Summary struct {
	Lines         int64
	Parsed        int64
	ParseFailures int64
	Sampled       int64
	Chunks        int
	LastOffset    int64

	Entities      int64
	Stubs         int64
	Relationships int64
	IgnoredTypes  int64

	NodesCreated  int64
	NodesMerged   int64
	RelsCreated   int64
	FailedBatches []load.FailedBatch

	MissingEndpoints []string
	DroppedColumns   int64

	NodeFiles []string
	RelFiles  []string

	Cancelled bool
}

const progressEvery = 100000

// Run executes the full pipeline for one source file.
func Run(ctx context.Context, conf *config.Config, opts Options) (*Summary, error) {
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("configuration: %w", err)
	}

	resolver := resolve.NewResolver(conf.MultiValueKeys)
	stats := &rdf.Stats{}

	// The source context releases the reader goroutines (and the open
	// file) once sampling terminates the stream early or the run ends.
	srcCtx, stopSource := context.WithCancel(ctx)
	defer stopSource()

	stmts, err := openSource(srcCtx, conf, opts, stats)
	if err != nil {
		return nil, fmt.Errorf("reading source: %w", err)
	}

	chunks := sampleAndChunk(srcCtx, stopSource, conf, stmts)

	var converter *convert.Converter
	if opts.Convert {
		converter, err = convert.NewConverter(conf.OutputDir, conf.OverwriteOutput)
		if err != nil {
			return nil, fmt.Errorf("preparing output: %w", err)
		}
		defer converter.Close()
	}

	var loader *load.Loader
	result := &load.Result{}
	if opts.Load {
		loader, err = load.NewLoader(ctx, conf.Neo4j, conf.BatchSize, conf.MaxRetries)
		if err != nil {
			return nil, fmt.Errorf("connecting to store: %w", err)
		}
		defer loader.Close(context.Background())
	}

	summary := &Summary{}
	counter := ratecounter.NewRateCounter(10 * time.Second)
	chunkIndex := 0

	for chunk := range chunks {
		if ctx.Err() != nil {
			summary.Cancelled = true
			go func() {
				for range chunks {
				}
			}()
			break
		}
		chunkIndex++

		edges := model.NewBuilder()
		for _, st := range chunk {
			if rel := resolver.Apply(st); rel != nil {
				edges.AddRelationship(rel)
				summary.Relationships++
			}
			counter.Incr(1)
		}
		summary.Sampled += int64(len(chunk))
		if summary.Sampled%progressEvery < int64(len(chunk)) {
			log.WithFields(log.Fields{
				"statements": summary.Sampled,
				"entities":   resolver.Count(),
				"rate":       counter.Rate() / 10,
			}).Info("Processing")
		}

		edgeBuckets := edges.EdgeBuckets()
		if converter != nil {
			if err := converter.WriteEdges(edgeBuckets); err != nil {
				return nil, fmt.Errorf("writing relationship tables: %w", err)
			}
		}
		if loader != nil {
			dirty := model.NewBuilder()
			for _, e := range resolver.TakeDirty() {
				dirty.AddEntity(e)
			}
			if err := loader.LoadNodes(ctx, chunkIndex, dirty.NodeBuckets(), result); err != nil {
				log.WithFields(log.Fields{"chunk": chunkIndex, "error": err}).Error("Node batches failed")
			}
			if err := loader.LoadEdges(ctx, chunkIndex, edgeBuckets, result); err != nil {
				log.WithFields(log.Fields{"chunk": chunkIndex, "error": err}).Error("Relationship batches failed")
			}
		}
	}
	summary.Chunks = chunkIndex
	stopSource()

	// Node tables are written from the end-of-run snapshot so type
	// assertions observed in any chunk are reflected in the rows.
	if converter != nil {
		nodes := model.NewBuilder()
		for _, e := range resolver.Entities() {
			nodes.AddEntity(e)
		}
		if err := converter.WriteNodes(nodes.NodeBuckets()); err != nil {
			return nil, fmt.Errorf("writing node tables: %w", err)
		}
		summary.MissingEndpoints = converter.MissingEndpoints()
		summary.DroppedColumns = converter.DroppedColumns()
		summary.NodeFiles, summary.RelFiles = converter.Files()
	}

	snap := stats.Snapshot()
	summary.Lines = snap.Lines
	summary.Parsed = snap.Statements
	summary.ParseFailures = snap.ParseFailures
	summary.LastOffset = snap.LastOffset
	summary.Entities = int64(resolver.Count())
	summary.Stubs = resolver.StubCount()
	summary.IgnoredTypes = resolver.IgnoredTypeCount()
	summary.NodesCreated = result.NodesCreated
	summary.NodesMerged = result.NodesMerged
	summary.RelsCreated = result.RelsCreated
	summary.FailedBatches = result.FailedBatches

	return summary, nil
}

func openSource(ctx context.Context, conf *config.Config, opts Options, stats *rdf.Stats) (<-chan rdf.Statement, error) {
	if opts.TBox {
		return tbox.StreamStatements(ctx, opts.Source, stats)
	}
	return rdf.StreamStatements(ctx, opts.Source, opts.Offset, stats)
}

// sampleAndChunk applies the configured sampling policy and batches
// the survivors. The deterministic first-N policy streams; the seeded
// reservoir has to materialize its (bounded) sample first, after which
// the source is stopped immediately.
func sampleAndChunk(ctx context.Context, stop context.CancelFunc, conf *config.Config, stmts <-chan rdf.Statement) <-chan []rdf.Statement {
	if conf.RandomSample && conf.SampleSize > 0 {
		kept := rdf.SampleReservoir(stmts, conf.SampleSize, conf.Seed)
		stop()
		return rdf.ChunkSlice(kept, conf.ChunkSize)
	}
	sampler := rdf.NewSampler(conf.SampleSize)
	return rdf.Chunks(sampler.Sample(ctx, stmts), conf.ChunkSize)
}

// ExitError maps the summary onto the process exit policy: too many
// parse failures or any failed store batch makes the run fail.
func (s *Summary) ExitError(maxParseFailureRate float64) error {
	attempted := s.Parsed + s.ParseFailures
	if attempted > 0 {
		rate := float64(s.ParseFailures) / float64(attempted)
		if rate > maxParseFailureRate {
			return fmt.Errorf("%d of %d statements failed to parse (%.2f > %.2f)",
				s.ParseFailures, attempted, rate, maxParseFailureRate)
		}
	}
	if n := len(s.FailedBatches); n > 0 {
		return fmt.Errorf("%d store batches failed after retries", n)
	}
	return nil
}

// Log writes the final run report.
func (s *Summary) Log() {
	fields := log.Fields{
		"lines":         s.Lines,
		"parsed":        s.Parsed,
		"parseFailures": s.ParseFailures,
		"sampled":       s.Sampled,
		"chunks":        s.Chunks,
		"entities":      s.Entities,
		"relationships": s.Relationships,
	}
	if s.Stubs > 0 {
		fields["untyped"] = s.Stubs
	}
	// The resume checkpoint for a follow-up --offset run.
	if s.LastOffset > 0 {
		fields["lastOffset"] = s.LastOffset
	}
	if s.NodesCreated+s.NodesMerged+s.RelsCreated > 0 {
		fields["nodesCreated"] = s.NodesCreated
		fields["nodesMerged"] = s.NodesMerged
		fields["relsCreated"] = s.RelsCreated
	}
	if len(s.FailedBatches) > 0 {
		fields["failedBatches"] = len(s.FailedBatches)
		for _, fb := range s.FailedBatches {
			log.WithFields(log.Fields{
				"chunk": fb.Chunk, "kind": fb.Kind, "label": fb.Label, "error": fb.Err,
			}).Error("Failed batch")
		}
	}
	if len(s.MissingEndpoints) > 0 {
		fields["missingEndpoints"] = len(s.MissingEndpoints)
	}
	if s.DroppedColumns > 0 {
		fields["droppedColumns"] = s.DroppedColumns
	}
	if s.Cancelled {
		fields["cancelled"] = true
	}
	log.WithFields(fields).Info("Run complete")
}
