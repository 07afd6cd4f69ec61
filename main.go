package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/wfunc/buzzparty/broadcast"
	"github.com/wfunc/buzzparty/config"
	"github.com/wfunc/buzzparty/game"
	"github.com/wfunc/buzzparty/logger"
	"github.com/wfunc/buzzparty/monitor"
	"github.com/wfunc/buzzparty/persistence"
	"github.com/wfunc/buzzparty/question"
	"github.com/wfunc/buzzparty/room"
	"github.com/wfunc/buzzparty/router"
	"github.com/wfunc/buzzparty/rpc"
	"github.com/wfunc/buzzparty/server"
	"github.com/wfunc/buzzparty/services"
	"github.com/wfunc/buzzparty/session"
	"github.com/wfunc/buzzparty/timer"
)

const (
	archiveQueueSize = 128
	gaugeInterval    = 5 * time.Second
	shutdownTimeout  = 10 * time.Second
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := viper.New()
	var configDir string

	cmd := &cobra.Command{
		Use:           "buzzparty",
		Short:         "Real-time trivia party game coordinator",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(v, configDir)
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			return run(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configDir, "config", ".", "directory containing config.yaml")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("addr", ":3001", "HTTP listen address")
	flags.String("grpc-addr", ":3002", "gRPC health listen address")
	_ = v.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = v.BindPFlag("server.http_address", flags.Lookup("addr"))
	_ = v.BindPFlag("server.grpc_address", flags.Lookup("grpc-addr"))

	return cmd
}

func run(parent context.Context, cfg *config.Config) error {
	logger.Init(cfg.LogLevel)
	defer logger.Sync()

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	questions, err := loadQuestions(ctx, cfg)
	if err != nil {
		return err
	}
	logger.Log.Infof("Loaded %d questions from %s", questions.Len(), cfg.Questions.Source)

	var db persistence.Database
	if cfg.Database.Enabled {
		gdb, err := persistence.NewGormPostgreSQL(cfg.Database.Postgres.DSN())
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer gdb.Close()
		db = gdb
		logger.Log.Info("Database connection successful.")
	}
	records := services.NewRecordService(db, archiveQueueSize)
	archiveCtx, stopArchive := context.WithCancel(context.Background())
	records.Start(archiveCtx)

	timers := timer.NewTimerManager(timer.DefaultResolution)
	defer timers.Stop()

	mon := monitor.NewMonitor("buzzparty")
	registry := room.NewRegistry(nil)
	sessions := session.NewManager()
	hub := broadcast.NewHub(sessions)

	opts := []router.Option{router.WithMonitor(mon)}
	if records.Enabled() {
		opts = append(opts, router.WithArchiver(records))
	}
	rt := router.New(registry, hub, timers, questions, game.Settings{
		RoundLength:  cfg.Game.RoundLength,
		StartDelay:   cfg.Game.StartDelay,
		AdvanceDelay: cfg.Game.AdvanceDelay,
		BonusWindow:  cfg.Game.BonusWindow,
	}, opts...)

	gaugeTimer := timers.AddTimer(gaugeInterval, gaugeInterval, func() {
		mon.SetActiveRooms(registry.Count())
	})
	defer timers.RemoveTimer(gaugeTimer)

	grpcServer, err := rpc.NewServer(cfg.Server.GRPCAddress)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}
	gameServer := server.NewGameServer(server.Options{
		Addr:      cfg.Server.HTTPAddress,
		Heartbeat: cfg.Server.Heartbeat,
		Router:    rt,
		Sessions:  sessions,
		Hub:       hub,
		Monitor:   mon,
		Records:   records,
	})

	errCh := make(chan error, 2)
	go func() { errCh <- grpcServer.Start() }()
	go func() { errCh <- gameServer.Start() }()

	select {
	case <-ctx.Done():
		logger.Log.Info("Shutting down...")
	case err = <-errCh:
		if err != nil {
			logger.Log.Errorf("Server stopped: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := gameServer.Shutdown(shutdownCtx); serr != nil {
		logger.Log.Warnf("HTTP shutdown: %v", serr)
	}
	grpcServer.Stop()

	stopArchive()
	records.Wait()
	return err
}

func loadQuestions(ctx context.Context, cfg *config.Config) (*question.Catalog, error) {
	switch cfg.Questions.Source {
	case "", "builtin":
		return question.LoadBuiltin()
	case "postgres":
		db, err := question.OpenPostgres(ctx, cfg.Database.Postgres.DSN())
		if err != nil {
			return nil, fmt.Errorf("open question store: %w", err)
		}
		defer db.Close()
		return question.LoadPostgres(ctx, db)
	default:
		return nil, fmt.Errorf("unknown question source %q", cfg.Questions.Source)
	}
}
