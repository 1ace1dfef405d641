package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/tholdem/uniqn-sync/pkg/auth"
	firestoreRepo "github.com/tholdem/uniqn-sync/repos/firestore"
	resend "github.com/tholdem/uniqn-sync/repos/resend"
	"github.com/tholdem/uniqn-sync/services/sessions"
	"github.com/tholdem/uniqn-sync/services/unified"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	var listenOnHit bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), listenOnHit)
		},
	}
	cmd.Flags().BoolVar(&listenOnHit, "listen-on-hit", false, "Keep a live listener on collections served from cache")
	return cmd
}

func serve(ctx context.Context, listenOnHit bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stopSignals := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	cfg := app.cfg
	logger := app.logger

	credentialsOption := option.WithCredentialsJSON([]byte(cfg.Server.CredentialsJSON))

	firestoreClient, err := firestore.NewClient(ctx, cfg.Server.ProjectID, credentialsOption)
	if err != nil {
		return fmt.Errorf("failed to create Firestore client: %w", err)
	}
	defer firestoreClient.Close()

	firebaseApp, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.Server.ProjectID}, credentialsOption)
	if err != nil {
		return fmt.Errorf("error initializing app: %w", err)
	}
	authClient, err := firebaseApp.Auth(ctx)
	if err != nil {
		return fmt.Errorf("error getting Auth client: %w", err)
	}

	selector, err := app.newSelector()
	if err != nil {
		return err
	}

	listener := firestoreRepo.NewListener(firestoreClient, logger)
	writer := firestoreRepo.NewWorkLogWriter(firestoreClient, logger)
	unifiedService := unified.NewUnifiedService(app.newCache(), app.newTracker(), selector, listener, logger,
		unified.WithListenOnHit(listenOnHit))

	var alerter unified.Alerter
	if cfg.Server.ResendKey != "" && cfg.Monitor.AlertEmail != "" {
		alerter = resend.NewAlerter(cfg.Server.ResendKey, cfg.Server.AlertFrom, []string{cfg.Monitor.AlertEmail}, logger)
	}
	cleanup := unified.NewCleanupLoop(unifiedService, cfg.Cache.CleanupInterval, unified.Thresholds{
		MinRequests:     cfg.Monitor.MinRequests,
		MinHitRate:      cfg.Monitor.MinHitRate,
		MaxAvgQueryTime: cfg.Monitor.MaxAvgQueryTime,
	}, alerter, logger)
	stopCleanup := cleanup.Start(ctx)
	defer stopCleanup()

	sessionService := sessions.NewSessionService(unifiedService, writer, cfg.Cache.MemoSize, logger)
	defer sessionService.CloseAll()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.CORSHosts
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Access-Control-Allow-Origin"}

	if cfg.Server.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	if len(corsConfig.AllowOrigins) > 0 {
		router.Use(cors.New(corsConfig))
	}
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": sessionService.Count()})
	})

	dataRouter := router.Group("/data/v1")
	dataRouter.Use(auth.AuthMiddleware(authClient))

	sessions.NewHTTPHandler(sessions.HTTPOptions{
		Service: sessionService,
		Router:  dataRouter,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	// streams only end when their session closes
	sessionService.CloseAll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}
