package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"sacco/internal/config"
	"sacco/internal/db"
	"sacco/internal/handlers"
	"sacco/internal/logger"
	"sacco/internal/notify"
	"sacco/internal/services"
	"sacco/internal/store"
	"sacco/internal/websocket"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment variables")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := logger.InitLogger(cfg); err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = zap.L().Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		zap.L().Fatal("failed to connect database", zap.Error(err))
	}
	defer database.Close()

	if cfg.MigrateOnStart {
		if err := db.Migrate(database.DB, "up"); err != nil {
			zap.L().Fatal("failed to migrate database", zap.Error(err))
		}
	}

	events, err := ledgerEvents(ctx, cfg)
	if err != nil {
		zap.L().Fatal("failed to configure ledger events", zap.Error(err))
	}

	users := store.NewUserStore(database)
	accounts := store.NewAccountStore(database)
	ledgerEntries := store.NewLedgerStore(database)
	transactions := store.NewTransactionStore(database)
	loans := store.NewLoanStore(database)
	codes := store.NewVerificationCodeStore(database)
	announcements := store.NewAnnouncementStore(database)
	audit := store.NewAuditStore(database)
	txRunner := db.NewTxRunner(database)
	hub := websocket.NewHub(cfg.Origins()...)

	ledger := services.NewLedgerService(txRunner, accounts, ledgerEntries, loans, audit, hub, events)
	loanService := services.NewLoanService(txRunner, loans, accounts, audit, ledger)
	verification := services.NewVerificationService(txRunner, codes, notify.NewMailer(cfg), cfg.VerificationCodeTTL)

	handler := handlers.New(txRunner, cfg, users, accounts, transactions, announcements, audit, ledger, loanService, verification, hub)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		zap.L().Info("sacco API listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		zap.L().Info("shutting down")
		return server.Shutdown(shutdownCtx)
	})
	if err := group.Wait(); err != nil {
		zap.L().Error("server stopped with error", zap.Error(err))
	}
}

// ledgerEvents publishes to SQS when a queue is configured.
func ledgerEvents(ctx context.Context, cfg config.Config) (notify.Publisher, error) {
	if cfg.LedgerEventsQueueURL == "" {
		return notify.NopPublisher{}, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, err
	}
	zap.L().Info("publishing ledger events", zap.String("queue_url", cfg.LedgerEventsQueueURL))
	return notify.NewSQSPublisher(sqs.NewFromConfig(awsCfg), cfg.LedgerEventsQueueURL), nil
}
