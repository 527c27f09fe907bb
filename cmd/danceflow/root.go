package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danceflow/danceflow/config"
)

// Set by the build with -ldflags "-X main.version=..."
var version = "dev"

var envFile string

var rootCmd = &cobra.Command{
	Use:           "danceflow",
	Short:         "Dance community API",
	Long:          "danceflow serves the events, locations, posts, tags and users of a dance community over a JSON API.",
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.LoadEnvFile(envFile)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "danceflow", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "additional env file to load before reading configuration")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(versionCmd)
}
