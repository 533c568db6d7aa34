// Package drop empties the target store before a clean run.
package drop

import (
	"context"
	"fmt"

	"github.com/bmeg/kgload/config"
	"github.com/bmeg/kgload/load"
	"github.com/bmeg/kgload/log"
	"github.com/spf13/cobra"
)

var configFile string
var force bool

// Cmd is the declaration of the command line
var Cmd = &cobra.Command{
	Use:   "drop",
	Short: "Delete every node and relationship in the store",
	Long:  ``,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !force {
			return fmt.Errorf("refusing to truncate the store without --force")
		}
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

		if err := loader.Truncate(ctx); err != nil {
			return err
		}
		log.Infof("Store truncated: %s", conf.Neo4j.URI)
		return nil
	},
}

func init() {
	flags := Cmd.Flags()
	flags.StringVar(&configFile, "config", "", "config file")
	flags.BoolVar(&force, "force", false, "confirm deletion of all store data")
}
