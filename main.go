// Command bo7-match-logger serves the BO7 match logging form over HTTP and
// gRPC and records finished matches.
//
// Usage:
//
//	bo7-match-logger                 # same as serve
//	bo7-match-logger serve
//	bo7-match-logger validate-env --env-file .env --ping
//	bo7-match-logger catalog --json
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var envFile string

	root := &cobra.Command{
		Use:          "bo7-match-logger",
		Short:        "BO7 match logger service",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), envFile)
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load when present")

	root.AddCommand(serveCmd(&envFile))
	root.AddCommand(validateCmd(&envFile))
	root.AddCommand(catalogCmd(&envFile))

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
