package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	gzip "github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/zhifu/donation-dashboard/routes"
	"github.com/zhifu/donation-dashboard/services"
	"github.com/zhifu/donation-dashboard/utils"
)

func main() {
	cfg, err := utils.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := utils.NewLogger(cfg.App.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(ctx context.Context, cfg *utils.Config, log zerolog.Logger) error {
	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	opts := routes.Options{
		PublicURL: cfg.Dashboard.PublicURL,
		Logger:    log,
	}
	if cfg.Firebase.AuthEnabled {
		app, err := utils.InitFirebase(ctx, cfg.Firebase)
		if err != nil {
			return err
		}
		authClient, err := app.Auth(ctx)
		if err != nil {
			return errors.Wrap(err, "init firebase auth")
		}
		opts.Verifier = authClient
		log.Info().Str("project_id", cfg.Firebase.ProjectID).Msg("firebase auth enabled")
	}

	dashboard := services.NewDashboardService(store, services.DashboardOptions{
		Lookback:      cfg.Dashboard.Lookback,
		ActivityLimit: cfg.Dashboard.ActivityLimit,
		ItemsPerPage:  cfg.Dashboard.ItemsPerPage,
		FetchTimeout:  cfg.Dashboard.FetchTimeout,
	}, log)

	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	if err := router.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		return errors.Wrap(err, "set trusted proxies")
	}
	router.Use(gin.Recovery())
	router.Use(routes.RequestLogger(log))
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/ws"})))
	router.Use(routes.SecurityHeaders())

	apiRoutes := routes.NewAPIRoutes(dashboard, opts)
	defer apiRoutes.Close()
	apiRoutes.SetupRoutes(router)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Str("mode", gin.Mode()).Msg("server running")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// openStore connects the configured record store backend.
func openStore(ctx context.Context, cfg *utils.Config, log zerolog.Logger) (services.RecordStore, func(), error) {
	switch cfg.Store.Backend {
	case "firestore":
		client, err := utils.NewFirestoreClient(ctx, cfg.Firebase)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("project_id", cfg.Firebase.ProjectID).Msg("using firestore record store")
		return services.NewFirestoreStore(client), func() { client.Close() }, nil
	default:
		db, err := utils.InitDatabase(cfg.Database, cfg.App.Env, log)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("driver", cfg.Database.Driver).Msg("using sql record store")
		closeDB := func() {
			if sqlDB, err := db.DB(); err == nil {
				sqlDB.Close()
			}
		}
		return services.NewGormStore(db), closeDB, nil
	}
}
