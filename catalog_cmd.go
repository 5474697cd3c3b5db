package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Billy-Davies-2/bo7-match-logger/internal/config"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/logger"
)

func catalogCmd(envFile *string) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Print the modes, maps and roster",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*envFile)
			if err != nil {
				return err
			}
			logger.InitWithLevel("error")

			cat, err := loadCatalog(cfg)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]interface{}{
					"modes":          cat.Modes(),
					"maps":           cat.Maps(),
					"roster":         cat.Roster(),
					"freeForAllCode": cat.FreeForAllCode(),
				})
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "MODES\t")
			for _, m := range cat.Modes() {
				fmt.Fprintf(tw, "  %s\t%s\n", m.Code, m.Label)
			}
			fmt.Fprintln(tw, "MAPS\t")
			for _, m := range cat.Maps() {
				fmt.Fprintf(tw, "  %s\t%s\n", m.Code, m.Label)
			}
			fmt.Fprintln(tw, "ROSTER\t")
			for _, p := range cat.Roster() {
				fmt.Fprintf(tw, "  %d\t%s\t%s\n", p.ID, p.Name, p.Gamertag)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
