package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"medpos/backend/internal/alert"
	"medpos/backend/internal/auth"
	"medpos/backend/internal/cache"
	"medpos/backend/internal/config"
	"medpos/backend/internal/httpapi"
	"medpos/backend/internal/inventory"
	"medpos/backend/internal/logger"
	"medpos/backend/internal/sales"
	"medpos/backend/internal/service"
	"medpos/backend/internal/store"
	"medpos/backend/internal/store/memory"
	pgstore "medpos/backend/internal/store/postgres"
	"medpos/backend/internal/watcher"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log)
	if err := validateSecurityConfig(cfg); err != nil {
		log.Error("invalid security configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)
	defer func() {
		for _, closeFn := range closers {
			if err := closeFn(); err != nil {
				log.Warn("close error", "error", err)
			}
		}
	}()

	if cfg.Database.URL != "" {
		if cfg.Database.AutoMigrate {
			if err := pgstore.Migrate(startCtx, cfg.Database.URL, log); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
		}
		pool, err := pgstore.NewPool(startCtx, cfg.Database)
		if err != nil {
			return fmt.Errorf("postgres unavailable and DATABASE_URL is set; refusing in-memory fallback: %w", err)
		}
		closers = append(closers, func() error {
			pool.Close()
			return nil
		})
		repo = pgstore.New(pool, log)
		log.Info("repository ready", "backend", "postgres")
	} else {
		repo = memory.NewSeeded()
		log.Info("repository ready", "backend", "memory")
	}

	notifiers := alert.Fanout{alert.NewLogNotifier(log)}
	reportCache := cache.ReportCache(cache.NoopReportCache{})
	if cfg.Redis.Addr != "" {
		client := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err := client.Ping(startCtx).Err(); err != nil {
			log.Warn("redis unavailable, continuing without cache and alert publishing", "error", err)
			_ = client.Close()
		} else {
			closers = append(closers, client.Close)
			reportCache = cache.NewRedisReportCache(client)
			notifiers = append(notifiers, alert.NewRedisNotifier(client, cfg.Redis.AlertChannel))
			log.Info("redis ready", "addr", cfg.Redis.Addr, "alert_channel", cfg.Redis.AlertChannel)
		}
	}

	directory := auth.NewDirectory(repo, log)
	created, err := directory.EnsureAdmin(startCtx, cfg.Auth.AdminUsername, cfg.Auth.AdminPassword)
	if err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	if created {
		log.Info("bootstrap admin account created", "user", cfg.Auth.AdminUsername)
	}

	inv := inventory.New(repo, repo, notifiers, log)
	aggregator := sales.NewAggregator(repo, log,
		sales.WithCache(reportCache, cfg.Redis.ReportTTL),
		sales.WithLocation(loc),
	)
	engine := service.New(repo, inv, auth.NewGate(directory, log), aggregator, log,
		service.WithLocation(loc),
		service.WithCheckoutThreshold(cfg.POS.CheckoutLowStockThreshold),
	)
	tokens, err := httpapi.NewAuthManager(cfg.Auth.Secret, cfg.Auth.AccessTokenTTL, directory)
	if err != nil {
		return err
	}
	api := httpapi.New(engine, tokens, cfg.HTTP.AllowedOrigin, log, httpapi.WithLocation(loc))

	stockWatcher := watcher.New(inv, cfg.POS.WatcherThreshold, cfg.POS.WatcherInterval, log)
	watcherDone := make(chan error, 1)
	go func() { watcherDone <- stockWatcher.Run(ctx) }()

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}
	serverErr := make(chan error, 1)
	go func() {
		log.Info("medpos backend listening", "addr", cfg.Address())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown error", "error", err)
	}
	if err := <-watcherDone; err != nil {
		log.Warn("watcher stopped with error", "error", err)
	}
	return nil
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.Auth.Secret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.Auth.AdminPassword == "" {
		// only needed to bootstrap the first admin; checked again then
		return nil
	}
	if err := validatePasswordStrength(cfg.Auth.AdminPassword); err != nil {
		return fmt.Errorf("ADMIN_PASSWORD is too weak: %w", err)
	}
	return nil
}

// validatePasswordStrength rejects passwords that are short, one repeated
// character, a run of consecutive characters, or on a known-weak list.
func validatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("at least 8 characters required")
	}
	known := map[string]bool{
		"password": true, "password1": true, "12345678": true, "123456789": true,
		"admin123": true, "administrator": true, "qwertyui": true, "qwerty123": true,
		"11111111": true, "iloveyou": true, "letmein1": true, "changeme": true,
	}
	if known[strings.ToLower(password)] {
		return fmt.Errorf("common password not allowed")
	}

	allSame := true
	for i := 1; i < len(password); i++ {
		if password[i] != password[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return fmt.Errorf("single repeated character not allowed")
	}

	// ascending or descending runs such as 12345678 or hgfedcba
	ascending, descending := true, true
	for i := 1; i < len(password); i++ {
		diff := int(password[i]) - int(password[i-1])
		if diff != 1 {
			ascending = false
		}
		if diff != -1 {
			descending = false
		}
	}
	if ascending || descending {
		return fmt.Errorf("sequential password not allowed")
	}
	return nil
}
