package main

import (
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vantutran2k1/elements/pkg/logger"
)

func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("ELEMENTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "elementsctl",
		Short: "Inspect element queries and follow element changes",
		// Do not print usage on errors returned by subcommands.
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			slog.SetDefault(logger.New(logger.Config{Level: v.GetString("log.level"), Format: "text"}, cmd.ErrOrStderr()))
		},
	}

	root.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")
	_ = v.BindPFlag("log.level", root.PersistentFlags().Lookup("log-level"))

	root.AddCommand(newExplainCmd(v))
	root.AddCommand(newWatchCmd(v))
	root.AddCommand(newReceiveCmd(v))
	return root
}
