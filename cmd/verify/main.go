// Package verify prints store counts by node label and relationship
// type, for checking a load.
package verify

import (
	"context"
	"sort"

	"github.com/bmeg/kgload/config"
	"github.com/bmeg/kgload/load"
	"github.com/bmeg/kgload/log"
	"github.com/spf13/cobra"
)

var configFile string

// Cmd is the declaration of the command line
var Cmd = &cobra.Command{
	Use:   "verify",
	Short: "Print node and relationship counts from the store",
	Long:  ``,
	RunE: func(cmd *cobra.Command, args []string) error {
		conf := config.DefaultConfig()
		if configFile != "" {
			if err := config.ParseConfigFile(configFile, conf); err != nil {
				return err
			}
		}
		conf.LoadEnv()

		ctx := context.Background()
		loader, err := load.NewLoader(ctx, conf.Neo4j, conf.BatchSize, conf.MaxRetries)
		if err != nil {
			return err
		}
		defer loader.Close(ctx)

		stats, err := loader.Verify(ctx)
		if err != nil {
			return err
		}
		keys := make([]string, 0, len(stats))
		for k := range stats {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			log.WithFields(log.Fields{"count": stats[k]}).Info(k)
		}
		return nil
	},
}

func init() {
	flags := Cmd.Flags()
	flags.StringVar(&configFile, "config", "", "config file")
}
