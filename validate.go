package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/lib/pq"
	"github.com/spf13/cobra"

	"github.com/Billy-Davies-2/bo7-match-logger/internal/config"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/logger"
)

func validateCmd(envFile *string) *cobra.Command {
	var ping bool
	cmd := &cobra.Command{
		Use:   "validate-env",
		Short: "Check the configuration before starting the service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*envFile)
			if err != nil {
				return err
			}
			// keep connection logs out of the report
			logger.InitWithLevel("error")

			report := cfg.Validate()
			if ping && !report.HasErrors() {
				pingStoreInto(cmd.Context(), cfg, report)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "BO7 match logger - environment validation (%s)\n", cfg.Environment)
			report.Write(out)

			if report.HasErrors() {
				os.Exit(1)
			}
			if cfg.DryRun {
				fmt.Fprintln(out, "DRY_RUN is enabled - matches won't be saved to the database")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&ping, "ping", false, "open the configured store and check connectivity")
	return cmd
}

// pingStoreInto opens the store, pings it and records the outcome
func pingStoreInto(parent context.Context, cfg *config.Config, report *config.Report) {
	if parent == nil {
		parent = context.Background()
	}
	cat, err := loadCatalog(cfg)
	if err != nil {
		report.Add("CATALOG_FILE", config.LevelError, err.Error())
		return
	}

	store, err := openStore(cfg, cat)
	if err != nil {
		report.Add("Connection", config.LevelError, connectionMessage(cfg, err))
		return
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(parent, 10*time.Second)
	defer cancel()
	if err := store.Ping(ctx); err != nil {
		report.Add("Connection", config.LevelError, connectionMessage(cfg, err))
		return
	}
	if modes := cat.Modes(); len(modes) > 0 {
		if _, err := store.LookupModeID(ctx, modes[0].Label); err != nil {
			report.Add("Lookup tables", config.LevelWarning, "modes table not readable: "+shorten(err.Error()))
		}
	}
	report.Add("Connection", config.LevelOK, "connected successfully")
}

// connectionMessage explains the usual Postgres failures
func connectionMessage(cfg *config.Config, err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "28":
			return "Authentication failed: check the credentials in DATABASE_URL"
		case "42":
			return fmt.Sprintf("Table '%s' not found. Run the SQL schema first.", cfg.Table)
		}
	}
	return "Connection failed: " + shorten(err.Error())
}

func shorten(s string) string {
	if len(s) > 100 {
		return s[:100]
	}
	return s
}
