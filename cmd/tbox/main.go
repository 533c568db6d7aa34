// Package tbox processes the ontology layer: a JSON-LD document whose
// @graph array defines classes, concepts and properties.
package tbox

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
var chunkSize int
var doConvert bool
var doLoad bool
var outputDir string
var overwrite bool

// Cmd is the declaration of the command line
var Cmd = &cobra.Command{
	Use:   "tbox <file.jsonld>",
	Short: "Process an ontology (TBox) document",
	Long: `Walks the @graph array of a JSON-LD ontology document, extracts class,
concept and property definitions plus their hierarchy relations, and
emits bulk-import CSV files and/or loads them into the graph store.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conf := config.DefaultConfig()
		if configFile != "" {
			if err := config.ParseConfigFile(configFile, conf); err != nil {
				return err
			}
		}
		conf.LoadEnv()

		flags := cmd.Flags()
		if flags.Changed("sample") {
			conf.SampleSize = sampleSize
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

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		summary, err := pipeline.Run(ctx, conf, pipeline.Options{
			Source:  args[0],
			TBox:    true,
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

func init() {
	flags := Cmd.Flags()
	flags.StringVar(&configFile, "config", "", "config file")
	flags.IntVar(&sampleSize, "sample", 0, "cap on distinct subjects processed (0 = unlimited)")
	flags.IntVar(&chunkSize, "chunk-size", 500, "statements per processing chunk")
	flags.BoolVar(&doConvert, "convert", false, "write bulk-import CSV files")
	flags.BoolVar(&doLoad, "load", false, "load records into the graph store")
	flags.StringVar(&outputDir, "output", "samples", "directory for converted files")
	flags.BoolVar(&overwrite, "overwrite-output", false, "reuse plain output filenames across runs (clobbers earlier output)")
}
