package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/sadopc/itrack/internal/amqp"
	"github.com/sadopc/itrack/internal/category"
	"github.com/sadopc/itrack/internal/config"
	"github.com/sadopc/itrack/internal/goals"
	"github.com/sadopc/itrack/internal/identity"
	log "github.com/sadopc/itrack/internal/log"
	"github.com/sadopc/itrack/internal/store"
	"github.com/sadopc/itrack/internal/summary"
	"github.com/sadopc/itrack/internal/timer"
	"github.com/sadopc/itrack/internal/tui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	// The terminal belongs to the UI, so logs go to a file.
	logger, closer, err := log.OpenFile(cfg.LogFile, log.ParseLevel(cfg.LogLevel))
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer closer.Close()
	log.SetDefault(logger)

	ctx := log.WithContext(context.Background(), logger)

	var s *store.Store
	if cfg.Backend == "memory" {
		s, err = store.NewMemory()
	} else {
		s, err = store.New(cfg.DBPath)
	}
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer s.Close()
	logger.InfoContext(ctx, "Opened store", "backend", cfg.Backend, "path", cfg.DBPath)

	var backend store.Backend = s
	if cfg.ReplicationEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			return fmt.Errorf("connect to AMQP: %w", err)
		}
		defer client.Close()
		repl := store.NewReplicated(s, client, logger)
		defer repl.Close()
		backend = repl
		logger.InfoContext(ctx, "Replication enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	}

	me, err := identity.NewLocal(cfg.User).CurrentUser(ctx)
	if err != nil {
		return err
	}

	cats := category.NewService(backend, category.WithLogger(logger))
	if seeded, err := cats.EnsureDefaults(ctx, me.UserID); err != nil {
		return err
	} else if seeded {
		logger.InfoContext(ctx, "Seeded default categories", log.NewFields().WithUser(me.UserID).ToSlice()...)
	}

	timers := timer.NewManager(timer.Config{
		Backend:    backend,
		Categories: cats,
		Interval:   cfg.SnapshotInterval,
		Logger:     logger,
	})
	defer func() {
		if err := timers.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to flush timers", log.NewFields().WithError(err).ToSlice()...)
		}
	}()
	cats.OnDelete(timers.DropCategories)

	t, err := timers.Session(ctx, me.UserID)
	if err != nil {
		return err
	}

	app := tui.NewApp(tui.Deps{
		UserID:     me.UserID,
		Timer:      t,
		Categories: cats,
		Summary:    summary.NewService(backend, summary.WithLogger(logger)),
		Goals:      goals.NewService(backend, goals.WithLogger(logger)),
	})
	p := tea.NewProgram(app, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		return err
	}
	return nil
}
