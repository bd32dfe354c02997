package main

import (
	"github.com/spf13/cobra"

	"github.com/tickhouse/marketsim/config"
	"github.com/tickhouse/marketsim/logging"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		defer log.AtExit()

		if err := config.Write(rootArgs.configPath, config.NewDefaultConfig()); err != nil {
			log.Error("unable to write configuration", logging.Error(err))
			return err
		}
		log.Info("configuration written",
			logging.String("path", rootArgs.configPath),
		)
		return nil
	},
}
