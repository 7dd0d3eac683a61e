package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/weiwei-tsao/form-relay/apps/api/internal/business/relay"
	"github.com/weiwei-tsao/form-relay/apps/api/internal/platform/config"
	firestoreclient "github.com/weiwei-tsao/form-relay/apps/api/internal/platform/firestore"
	apirouter "github.com/weiwei-tsao/form-relay/apps/api/internal/platform/http"
	"github.com/weiwei-tsao/form-relay/apps/api/internal/platform/keap"
	"github.com/weiwei-tsao/form-relay/apps/api/internal/platform/logging"
	"github.com/weiwei-tsao/form-relay/apps/api/internal/platform/recaptcha"
	"github.com/weiwei-tsao/form-relay/apps/api/internal/repository"
	"github.com/weiwei-tsao/form-relay/apps/api/pkg/model"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load(".env.local", ".env")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	gin.SetMode(cfg.GinMode)

	routerOpts := apirouter.Options{
		AllowedOrigins:    cfg.Origins(),
		ExposeDiagnostics: cfg.ExposeDiagnostics,
		Logger:            logger,
	}
	var recorder relay.OutcomeRecorder

	if cfg.StatsEnabled() {
		firestoreClient, credsSource, err := firestoreclient.New(ctx, cfg)
		if err != nil {
			logger.Fatal("firestore init", zap.Error(err))
		}
		defer firestoreClient.Close()

		if err := firestoreclient.Ping(ctx, firestoreClient); err != nil {
			logger.Fatal("firestore ping", zap.Error(err))
		}
		logger.Info("connected to Firestore",
			zap.String("project", cfg.Firebase.ProjectID),
			zap.String("credentials", credsSource),
		)

		statsRepo := repository.NewStatsRepository(firestoreClient)
		recorder = statsRepo
		routerOpts.Stats = statsRepo
	}

	verifier := recaptcha.New(nil, recaptcha.Config{
		Secret:           cfg.Recaptcha.SecretKey,
		VerifyURL:        cfg.Recaptcha.VerifyURL,
		Timeout:          cfg.Recaptcha.Timeout,
		MinScore:         cfg.Recaptcha.MinScore,
		ExpectedHostname: cfg.Recaptcha.ExpectedHostname,
	})
	relayer := keap.New(nil, keap.Config{
		URL:     cfg.Relay.URL,
		Timeout: cfg.Relay.Timeout,
	})
	form := keap.Form{
		XID:     cfg.Relay.FormXID,
		Name:    cfg.Relay.FormName,
		Version: cfg.Relay.Version,
	}

	orchestrator := relay.NewOrchestrator(verifier, relayer, relay.Options{
		Policy: relay.Policy{
			Confirm:      cfg.Relay.Confirm,
			MaxHops:      cfg.Relay.MaxHops,
			AllowedHosts: cfg.Relay.AllowedHosts,
		},
		Fields: func(req model.SubmissionRequest) map[string]string {
			return keap.FormFields(form, req.Email)
		},
		Recorder: recorder,
		Logger:   logger,
	})

	router := apirouter.NewRouter(orchestrator, routerOpts)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()
	logger.Info("server listening",
		zap.String("port", cfg.Port),
		zap.String("relay_url", cfg.Relay.URL),
		zap.Bool("confirm_redirects", cfg.Relay.Confirm),
		zap.Int("max_hops", cfg.Relay.MaxHops),
	)

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("server exited")
}
