// Package abox processes instance-layer triple files: sample, chunk,
// resolve, and optionally convert to bulk-import CSV and load into the
// store.
package abox

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/bmeg/kgload/config"
	"github.com/bmeg/kgload/log"
	"github.com/bmeg/kgload/pipeline"
	"github.com/spf13/cobra"
)

var configFile string

var sampleSize int
var randomSample bool
var seed int64
var chunkSize int
var offset int64

var doConvert bool
var doLoad bool
var outputDir string
var overwrite bool

// Cmd is the declaration of the command line
var Cmd = &cobra.Command{
	Use:   "abox <file.nt[.gz] | file.ttl>",
	Short: "Process instance-layer triple files",
	Long: `Streams statements from a triple file, deduplicates entities and
relationships, and emits bulk-import CSV files and/or loads the records
into the graph store.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		summary, err := pipeline.Run(ctx, conf, pipeline.Options{
			Source:  args[0],
			Offset:  offset,
			Convert: doConvert,
			Load:    doLoad,
		})
		if err != nil {
			return err
		}
		summary.Log()
		return summary.ExitError(conf.MaxParseFailureRate)
	},
}

// loadConfig layers defaults, the config file, environment overrides
// and finally any flags the user set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	conf := config.DefaultConfig()
	if configFile != "" {
		if err := config.ParseConfigFile(configFile, conf); err != nil {
			return nil, err
		}
	}
	conf.LoadEnv()

	flags := cmd.Flags()
	if flags.Changed("sample") {
		conf.SampleSize = sampleSize
	}
	if flags.Changed("random-sample") {
		conf.RandomSample = randomSample
	}
	if flags.Changed("seed") {
		conf.Seed = seed
	}
	if flags.Changed("chunk-size") {
		conf.ChunkSize = chunkSize
	}
	if flags.Changed("output") {
		conf.OutputDir = outputDir
	}
	if flags.Changed("overwrite-output") {
		conf.OverwriteOutput = overwrite
	}

	log.ConfigureLogger(conf.Logger)
	return conf, nil
}

func init() {
	flags := Cmd.Flags()
	flags.StringVar(&configFile, "config", "", "config file")
	flags.IntVar(&sampleSize, "sample", 0, "cap on distinct subjects processed (0 = unlimited)")
	flags.BoolVar(&randomSample, "random-sample", false, "use seeded reservoir sampling instead of first-N")
	flags.Int64Var(&seed, "seed", 42, "reservoir sampling seed")
	flags.IntVar(&chunkSize, "chunk-size", 500, "statements per processing chunk")
	flags.Int64Var(&offset, "offset", 0, "byte offset to resume an uncompressed source from")
	flags.BoolVar(&doConvert, "convert", false, "write bulk-import CSV files")
	flags.BoolVar(&doLoad, "load", false, "load records into the graph store")
	flags.StringVar(&outputDir, "output", "samples", "directory for converted files")
	flags.BoolVar(&overwrite, "overwrite-output", false, "reuse plain output filenames across runs (clobbers earlier output)")
}
