package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/suufi/mit-lobby7-verification/internal/application/reconcile"
	"github.com/suufi/mit-lobby7-verification/internal/application/roles"
	"github.com/suufi/mit-lobby7-verification/internal/audit"
	"github.com/suufi/mit-lobby7-verification/internal/config"
	"github.com/suufi/mit-lobby7-verification/internal/infrastructure/directory"
	"github.com/suufi/mit-lobby7-verification/internal/infrastructure/discord"
	"github.com/suufi/mit-lobby7-verification/internal/infrastructure/dynamo"
	jwtinfra "github.com/suufi/mit-lobby7-verification/internal/infrastructure/jwt"
	"github.com/suufi/mit-lobby7-verification/internal/infrastructure/mailer"
	"github.com/suufi/mit-lobby7-verification/internal/infrastructure/sns"
	"github.com/suufi/mit-lobby7-verification/internal/metrics"
	transporthttp "github.com/suufi/mit-lobby7-verification/internal/transport/http"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient := dynamo.NewClient(cfg)
	dynamo.Bootstrap(context.Background(), dynamoClient, cfg.DynamoTables)

	codeRepo := dynamo.NewCodeRepo(dynamoClient, cfg.DynamoTables.VerificationCodes)
	userRepo := dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.VerifiedUsers)
	settingsRepo := dynamo.NewSettingsRepo(dynamoClient, cfg.DynamoTables.GuildSettings)
	auditRepo := dynamo.NewAuditRepo(dynamoClient, cfg.DynamoTables.AuditEvents)

	// JWT provider is optional; auth is disabled if keys are missing.
	var jwtProvider *jwtinfra.Provider
	if p, err := jwtinfra.NewProvider(cfg); err == nil {
		jwtProvider = p
	} else {
		log.Printf("WARN: JWT provider not available, auth disabled: %v", err)
	}

	ml, err := mailer.New(cfg)
	if err != nil {
		log.Fatalf("mailer: %v", err)
	}

	discordClient := discord.NewClient(cfg)
	directoryClient := directory.NewClient(cfg)

	// SNS ops alerts, enabled only when a topic is configured.
	var alerts audit.AlertPublisher
	if cfg.SNSTopicARN != "" {
		if publisher, err := sns.NewPublisher(cfg); err == nil {
			alerts = publisher
		} else {
			log.Printf("WARN: SNS publisher not available: %v", err)
		}
	}

	notifier := audit.NewNotifier(auditRepo, discordClient, settingsRepo, alerts)
	m := metrics.New()

	deps := &transporthttp.Deps{
		CodeRepo:     codeRepo,
		UserRepo:     userRepo,
		SettingsRepo: settingsRepo,
		Directory:    directoryClient,
		Discord:      discordClient,
		Mailer:       ml,
		Notifier:     notifier,
		JWTProvider:  jwtProvider,
		Metrics:      m,
	}

	router := transporthttp.NewRouter(cfg, deps)

	// Periodic reconciliation sweep. Disabled unless both a guild and a
	// schedule are configured.
	var sweeper *cron.Cron
	if cfg.PrimaryGuildID != "" && cfg.ReconcileSchedule != "" {
		rolesSvc := roles.NewService(roles.Deps{
			Gateway:    discordClient,
			Directory:  directoryClient,
			Users:      userRepo,
			Settings:   settingsRepo,
			Audit:      notifier,
			Metrics:    m,
			AlumniRole: cfg.AlumniRoleName,
		})
		reconcileSvc := reconcile.NewService(reconcile.Deps{
			Users:     userRepo,
			Roles:     rolesSvc,
			Directory: directoryClient,
			Audit:     notifier,
			Metrics:   m,
		})

		sweeper = cron.New()
		_, err := sweeper.AddFunc(cfg.ReconcileSchedule, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()
			if _, err := reconcileSvc.Sweep(ctx, cfg.PrimaryGuildID); err != nil {
				log.Printf("WARN: reconciliation sweep failed: %v", err)
			}
		})
		if err != nil {
			log.Fatalf("invalid RECONCILE_SCHEDULE %q: %v", cfg.ReconcileSchedule, err)
		}
		sweeper.Start()
		log.Printf("Reconciliation sweep scheduled (%s) for guild %s", cfg.ReconcileSchedule, cfg.PrimaryGuildID)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s)", cfg.AppPort, cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	if sweeper != nil {
		sweeper.Stop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}
