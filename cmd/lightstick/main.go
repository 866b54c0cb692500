package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sydlexius/lightstick/internal/api"
	"github.com/sydlexius/lightstick/internal/config"
	"github.com/sydlexius/lightstick/internal/database"
	"github.com/sydlexius/lightstick/internal/encryption"
	"github.com/sydlexius/lightstick/internal/imagemeta"
	"github.com/sydlexius/lightstick/internal/logging"
	"github.com/sydlexius/lightstick/internal/resolve"
	"github.com/sydlexius/lightstick/internal/source"
	"github.com/sydlexius/lightstick/internal/source/bing"
	"github.com/sydlexius/lightstick/internal/source/duckduckgo"
	"github.com/sydlexius/lightstick/internal/source/googlecse"
	"github.com/sydlexius/lightstick/internal/source/ogmeta"
	"github.com/sydlexius/lightstick/internal/source/render"
	"github.com/sydlexius/lightstick/internal/source/spotify"
	"github.com/sydlexius/lightstick/internal/version"
	"github.com/sydlexius/lightstick/internal/watcher"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "show-config":
			if err := showConfig(); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				os.Exit(1)
			}
			return
		}
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func configPath() string {
	if p := os.Getenv("LS_CONFIG_PATH"); p != "" {
		return p
	}
	return "/data/config.yaml"
}

func run() error {
	cfgPath := configPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logManager, logger := logging.NewManager(logging.Config{
		Level:    cfg.Logging.Level,
		Format:   cfg.Logging.Format,
		FilePath: cfg.Logging.FilePath,
	})
	defer logManager.Close() //nolint:errcheck
	slog.SetDefault(logger)

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("closing database", "error", err)
		}
	}()

	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("database ready", slog.String("path", cfg.Database.Path))

	encryptor, generatedKey, err := encryption.New(cfg.Encryption.Key)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}
	if generatedKey != "" {
		logger.Warn("no encryption key configured, generated an ephemeral key; stored credentials will not survive a restart")
	}

	credentials := source.NewCredentialsService(db, encryptor, map[string]string{
		source.CredSpotifyClientID:     cfg.Spotify.ClientID,
		source.CredSpotifyClientSecret: cfg.Spotify.ClientSecret,
		source.CredGoogleAPIKey:        cfg.Search.GoogleAPIKey,
		source.CredGoogleCX:            cfg.Search.GoogleCX,
		source.CredRenderToken:         cfg.Render.RemoteToken,
	})

	rateLimiters := source.NewRateLimiterMap()

	registry := source.NewRegistry()
	registry.Register(googlecse.New(credentials, rateLimiters, logger))
	registry.Register(duckduckgo.New(rateLimiters, logger))
	registry.Register(bing.New(rateLimiters, logger))

	spotifyClient := spotify.New(credentials, rateLimiters, logger)
	fetcher := ogmeta.New(rateLimiters, logger)

	var remote, local source.Renderer
	if cfg.Render.RemoteEndpoint != "" {
		remote = render.New(credentials, rateLimiters, logger,
			cfg.Render.RemoteEndpoint, source.CredRenderToken, cfg.Render.Timeout)
	}
	if cfg.Render.LocalEndpoint != "" {
		local = render.New(credentials, rateLimiters, logger,
			cfg.Render.LocalEndpoint, "", cfg.Render.Timeout)
	}

	opts := resolve.Options{MaxParallel: cfg.Resolver.MaxPageFetches}
	if cfg.Resolver.ProbeDims {
		opts.Prober = imagemeta.New()
	}
	resolver := resolve.New(spotifyClient, registry, fetcher, remote, local, logger, opts)

	router := api.NewRouter(api.RouterDeps{
		Resolver:    resolver,
		Credentials: credentials,
		Logger:      logger,
		Version:     version.Version,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Reload logging settings when the config file changes on disk.
	configWatcher := watcher.New(cfgPath, logger, func(updated *config.Config) {
		logManager.Reconfigure(logging.Config{
			Level:    updated.Logging.Level,
			Format:   updated.Logging.Format,
			FilePath: updated.Logging.FilePath,
		})
	})
	go func() {
		if err := configWatcher.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("config watcher stopped", "error", err)
		}
	}()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * cfg.Render.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting lightstick",
			slog.String("version", version.Version),
			slog.String("commit", version.Commit),
			slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// showConfig prints the effective configuration with secrets redacted.
func showConfig() error {
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	redacted := *cfg
	redacted.Encryption.Key = redact(cfg.Encryption.Key)
	redacted.Spotify.ClientSecret = redact(cfg.Spotify.ClientSecret)
	redacted.Search.GoogleAPIKey = redact(cfg.Search.GoogleAPIKey)
	redacted.Render.RemoteToken = redact(cfg.Render.RemoteToken)

	out, err := yaml.Marshal(&redacted)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	fmt.Print(string(out))
	return nil
}

func redact(v string) string {
	if v == "" {
		return ""
	}
	return "REDACTED"
}
