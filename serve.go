package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/finchinslc/openclaw-board/api"
	"github.com/finchinslc/openclaw-board/broadcast"
	"github.com/finchinslc/openclaw-board/storage"
	"github.com/finchinslc/openclaw-board/webhook"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), loadConfig())
		},
	}
}

func runServe(ctx context.Context, cfg config) error {
	logger := log.StandardLogger()

	store, err := storage.Open(storage.Config{DSN: cfg.databaseURL, Logger: logger, SlowThreshold: cfg.slowQuery})
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	var apiStore api.Store = store
	var deduper api.Deduper
	hub := broadcast.NewHub(logger)
	var bc broadcast.Broadcaster = hub
	if cfg.redisURL != "" {
		rc := redis.NewClient(redisOptions(cfg.redisURL))
		defer rc.Close()
		if cfg.cacheTTL > 0 {
			apiStore = storage.NewCache(store, rc, cfg.cacheTTL)
		}
		if cfg.idemTTL > 0 {
			deduper = api.NewRedisDeduper(rc, cfg.idemTTL)
		}
		relay := broadcast.NewRelay(rc, cfg.redisChannel, hub, logger)
		go relay.Run(ctx)
		bc = relay
	}
	if !broadcast.Set(bc) {
		logger.Warn("broadcaster already installed")
	}

	dispatcher := webhook.NewDispatcher(logger, webhook.WithTimeout(cfg.webhookTimeout))
	defer dispatcher.Wait()
	notifiers := webhook.Multi{dispatcher}

	var archiver api.Archiver
	if cfg.storageConn != "" {
		if cfg.eventsQueue != "" {
			queue, err := webhook.NewQueueSink(cfg.storageConn, cfg.eventsQueue, logger, cfg.webhookTimeout)
			if err != nil {
				return fmt.Errorf("event queue: %w", err)
			}
			defer queue.Wait()
			notifiers = append(notifiers, queue)
		}
		if cfg.archiveTable != "" {
			tableArchive, err := storage.NewTableArchive(cfg.storageConn, cfg.archiveTable)
			if err != nil {
				return fmt.Errorf("archive table: %w", err)
			}
			archiver = tableArchive
		}
	}

	auth, err := buildAuth(cfg)
	if err != nil {
		return err
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.corsOrigins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, api.HeaderActor, api.HeaderIdempotencyKey},
	}))
	e.Use(middleware.Decompress())
	e.Use(middleware.BodyLimit(cfg.bodyLimit))

	api.Register(e, api.Deps{
		Store:    apiStore,
		Notifier: notifiers,
		Archiver: archiver,
		Deduper:  deduper,
		Hub:      hub,
		Auth:     auth,
		Logger:   logger,
	})

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("port", cfg.port).Info("listening")
		if err := e.Start(":" + cfg.port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// buildAuth returns nil when no token verification is configured.
func buildAuth(cfg config) (api.Authenticator, error) {
	switch cfg.localAuthMode {
	case "":
	case "hs256":
		if cfg.localAuthSecret == "" {
			return nil, errors.New("LOCAL_AUTH_SHARED_SECRET must be set when LOCAL_AUTH_MODE=hs256")
		}
		return api.NewAuth(api.AuthConfig{
			Audience:     cfg.auth0Audience,
			SharedSecret: []byte(cfg.localAuthSecret),
		})
	default:
		return nil, fmt.Errorf("unsupported LOCAL_AUTH_MODE value %q", cfg.localAuthMode)
	}

	if cfg.auth0Domain == "" {
		log.Warn("AUTH0_DOMAIN not set, API is unauthenticated")
		return nil, nil
	}
	if cfg.auth0Audience == "" {
		return nil, errors.New("AUTH0_AUDIENCE must be set with AUTH0_DOMAIN")
	}
	jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", cfg.auth0Domain)
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{RefreshInterval: time.Hour})
	if err != nil {
		return nil, fmt.Errorf("jwks: %w", err)
	}
	return api.NewAuth(api.AuthConfig{
		JWKS:        jwks,
		Audience:    cfg.auth0Audience,
		Issuer:      "https://" + cfg.auth0Domain + "/",
		KeyCacheTTL: cfg.jwksCacheTTL,
	})
}
