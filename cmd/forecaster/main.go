package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ecoaire/crac-forecast/api"
	"github.com/ecoaire/crac-forecast/internal/cache"
	"github.com/ecoaire/crac-forecast/internal/detector"
	"github.com/ecoaire/crac-forecast/internal/events"
	"github.com/ecoaire/crac-forecast/internal/intervals"
	"github.com/ecoaire/crac-forecast/internal/logger"
	"github.com/ecoaire/crac-forecast/internal/risk"
	"github.com/ecoaire/crac-forecast/internal/scheduler"
	"github.com/ecoaire/crac-forecast/internal/source"
	"github.com/ecoaire/crac-forecast/internal/tenant"
	"github.com/ecoaire/crac-forecast/pkg/config"
	"github.com/ecoaire/crac-forecast/pkg/database"
)

const refreshTaskName = "data_refresh"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger.Setup(cfg.App.LogLevel, cfg.App.Mode)
	logger.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Mode)

	db, err := database.New(database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		Name:            cfg.Database.Name,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		MaxConnections:  cfg.Database.MaxConnections,
		SSLMode:         cfg.Database.SSLMode,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		PingTimeout:     cfg.Database.PingTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	logger.Info("Database connection established")

	alarms := source.NewResilientAlarmSource(source.ResilientConfig{
		Source:        source.NewPostgresAlarmSource(db),
		RetryAttempts: cfg.Source.RetryAttempts,
		RetryDelay:    cfg.Source.RetryDelay,
		MaxFailures:   cfg.Source.MaxFailures,
		Cooloff:       cfg.Source.BreakerCooloff,
	})
	maintenance := source.NewPostgresMaintenanceSource(db)

	bus := events.NewEventBus(cfg.Events.BufferSize)
	defer bus.Close()
	publisher := events.NewPublisher(bus)

	engine := risk.NewEngine(risk.NewKaplanMeierBackend())

	dataCache := cache.New(
		cache.Config{
			SeverityThreshold: cfg.Model.SeverityThreshold,
			ExcludeDevices:    cfg.Source.ExcludeDevices,
			SerialMapping:     cfg.Source.SerialMapping,
		},
		cache.Deps{
			Alarms:      alarms,
			Maintenance: maintenance,
			Detector: detector.New(detector.Config{
				Keywords:   cfg.Detector.Keywords,
				Exclusions: cfg.Detector.Exclusions,
			}),
			Builder:   intervals.New(),
			Engine:    engine,
			Matcher:   tenant.NewMatcher(cfg.Tenants.Aliases),
			Publisher: publisher,
		},
	)

	sched := scheduler.New(publisher, cfg.Scheduler.CancelWait)
	defer sched.StopAll()

	refreshTimeout := cfg.Cache.RefreshTimeout
	if refreshTimeout <= 0 {
		refreshTimeout = 5 * time.Minute
	}

	err = sched.Schedule(refreshTaskName, func(ctx context.Context) error {
		taskCtx, cancel := context.WithTimeout(ctx, refreshTimeout)
		defer cancel()
		return dataCache.Refresh(taskCtx)
	}, cfg.Cache.RefreshIntervalMinutes, cfg.Cache.RunImmediately)
	if err != nil {
		return fmt.Errorf("failed to schedule refresh: %w", err)
	}

	server := api.NewServer(cfg, api.Deps{
		Cache:     dataCache,
		Engine:    engine,
		Scheduler: sched,
		Alarms:    alarms,
		Bus:       bus,
	})

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		logger.Infof("API server listening on port %d", cfg.API.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdownChan:
		logger.Infof("Received signal %v, shutting down", sig)
	}

	shutdownTimeout := cfg.App.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	logger.Info("Server stopped gracefully")
	return nil
}
