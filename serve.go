package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Billy-Davies-2/bo7-match-logger/internal/clickhouse"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/config"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/dal"
	grpcserver "github.com/Billy-Davies-2/bo7-match-logger/internal/grpc"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/handlers"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/logger"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/payload"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/rules"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/session"
)

func serveCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and gRPC servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *envFile)
		},
	}
}

func runServe(parent context.Context, envFile string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	logger.InitWithLevel(cfg.LogLevel)
	logger.Info("Starting BO7 match logger", "environment", cfg.Environment, "dry_run", cfg.DryRun)

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cleanup closer
	defer cleanup.run()

	if cfg.PersistsRawCodes() {
		return errors.New("RESOLVE_IDS=false is only supported with DRY_RUN=true")
	}

	cat, err := loadCatalog(cfg)
	if err != nil {
		return err
	}

	store, err := openStore(cfg, cat)
	if err != nil {
		return err
	}
	cleanup.add(func() { store.Close() })

	var resolver dal.IDLookup
	if cfg.ResolveIDs {
		resolver = store
	}
	var sink dal.MatchStore = store
	if cfg.DryRun {
		sink = dal.NewDryRunStore(cfg.Table)
		logger.Warn("DRY_RUN is enabled, matches will not be saved to the database")
	}

	bus, err := openBus(cfg, &cleanup)
	if err != nil {
		return err
	}

	recorder, err := openRecorder(cfg)
	if err != nil {
		return err
	}
	cleanup.add(func() { recorder.Close() })
	go clickhouse.NewMirror(recorder).Run(ctx, bus)

	labels := payload.Labels{Guild: cfg.GuildLabel, JSOC: cfg.JSOCLabel}
	engine := rules.NewEngine(cat, rules.Policy{ExactRosterSize: cfg.StrictRosterSize})
	sessions, err := session.NewController(session.Options{
		Engine:      engine,
		Builder:     payload.NewBuilder(cat, resolver),
		Store:       sink,
		Events:      bus,
		Labels:      labels,
		IdleTimeout: cfg.IdleTimeout,
	})
	if err != nil {
		return err
	}
	go sessions.Run(ctx, cfg.SweepInterval)

	lister, _ := store.(dal.MatchLister)

	// gRPC
	if cfg.GRPCToken == "" {
		logger.Warn("GRPC_TOKEN is not set, the gRPC port must not be reachable from untrusted networks")
	}
	grpcSrv, grpcHealth := grpcserver.NewGRPCServer(grpcserver.NewServer(sessions, lister, bus, labels),
		grpcserver.TokenAuth(cfg.GRPCToken)...)
	lis, err := net.Listen("tcp", cfg.GRPCAddr())
	if err != nil {
		return fmt.Errorf("failed to listen for gRPC on %s: %w", cfg.GRPCAddr(), err)
	}
	go func() {
		logger.Info("gRPC server starting", "address", cfg.GRPCAddr())
		if err := grpcSrv.Serve(lis); err != nil {
			logger.Error("Failed to serve gRPC", "error", err)
			stop()
		}
	}()

	// HTTP
	health := handlers.NewHealth().
		Add("database", true, store.Ping).
		Add("clickhouse", false, func(ctx context.Context) error {
			_, err := recorder.PlayerStats(ctx)
			return err
		})
	api := handlers.NewAPIHandlers(handlers.Deps{
		Sessions: sessions,
		Bus:      bus,
		Labels:   labels,
		Matches:  lister,
		Stats:    recorder,
	})
	router := handlers.NewRouter(api, newAuthProvider(cfg), health, handlers.RouterOptions{
		CORSAllowOrigins:  cfg.CORSAllowOrigins,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
	})

	srv := &http.Server{
		Addr:        cfg.HTTPAddr(),
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
	go func() {
		logger.Info("Server starting", "address", cfg.HTTPAddr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down...", "open_sessions", sessions.Len())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	grpcHealth.Shutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	grpcSrv.GracefulStop()

	logger.Info("Server stopped")
	return nil
}
