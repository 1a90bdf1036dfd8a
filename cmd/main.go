package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/david-jerry/heroku-suibison/internal/adapters/sui"
	"github.com/david-jerry/heroku-suibison/internal/api/handlers"
	"github.com/david-jerry/heroku-suibison/internal/api/routes"
	accountsvc "github.com/david-jerry/heroku-suibison/internal/domain/services/account"
	"github.com/david-jerry/heroku-suibison/internal/domain/services/accrual"
	"github.com/david-jerry/heroku-suibison/internal/domain/services/matrixpool"
	"github.com/david-jerry/heroku-suibison/internal/domain/services/rank"
	"github.com/david-jerry/heroku-suibison/internal/domain/services/referral"
	"github.com/david-jerry/heroku-suibison/internal/domain/services/staking"
	"github.com/david-jerry/heroku-suibison/internal/domain/services/tokenmeter"
	"github.com/david-jerry/heroku-suibison/internal/domain/services/withdrawal"
	"github.com/david-jerry/heroku-suibison/internal/infrastructure/cache"
	"github.com/david-jerry/heroku-suibison/internal/infrastructure/config"
	"github.com/david-jerry/heroku-suibison/internal/infrastructure/database"
	"github.com/david-jerry/heroku-suibison/internal/infrastructure/rates"
	"github.com/david-jerry/heroku-suibison/internal/infrastructure/repositories"
	"github.com/david-jerry/heroku-suibison/internal/workers/dailyaccrual"
	"github.com/david-jerry/heroku-suibison/internal/workers/reconciliation"
	"github.com/david-jerry/heroku-suibison/pkg/graceful"
	"github.com/david-jerry/heroku-suibison/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}

	log := logger.New(cfg.LogLevel, cfg.Environment)
	defer log.Sync()

	log.Info("Starting sui-bison ledger service", "environment", cfg.Environment)

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", "error", err)
	}

	if err := database.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsPath); err != nil {
		log.Fatal("Failed to run migrations", "error", err)
	}

	redisClient, err := cache.NewRedisClient(&cfg.Redis, log.Zap())
	if err != nil {
		log.Fatal("Failed to connect to redis", "error", err)
	}

	// Repositories
	accountRepo := repositories.NewAccountRepository(db)
	walletRepo := repositories.NewWalletRepository(db)
	stakeRepo := repositories.NewStakeRepository(db)
	referralRepo := repositories.NewReferralRepository(db)
	poolRepo := repositories.NewPoolRepository(db)
	activityRepo := repositories.NewActivityRepository(db)
	meterRepo := repositories.NewTokenMeterRepository(db)
	txManager := database.NewTxManager(db)

	// Infrastructure adapters
	gateway := sui.NewClient(sui.Config{
		RPCURL:           cfg.Sui.RPCURL,
		WalletServiceURL: cfg.Sui.WalletServiceURL,
		GasBudget:        cfg.Sui.GasBudget,
		Timeout:          time.Duration(cfg.Sui.Timeout) * time.Second,
		MaxRetries:       cfg.Sui.MaxRetries,
	}, log.Zap())

	rateProvider := rates.NewProvider(cfg.Rates.QuoteURL, time.Duration(cfg.Rates.CacheTTL)*time.Second, redisClient, log.Zap())

	// Domain services
	referralSvc := referral.NewService(accountRepo, walletRepo, stakeRepo, referralRepo, activityRepo, txManager, log)
	accrualSvc := accrual.NewService(accountRepo, stakeRepo, walletRepo, activityRepo, txManager, log)
	rankSvc := rank.NewService(accountRepo, stakeRepo, walletRepo, activityRepo, rateProvider, txManager, log)
	poolSvc := matrixpool.NewService(poolRepo, walletRepo, activityRepo, txManager, cfg.Ledger.PoolPayoutLead(), log)
	meterSvc := tokenmeter.NewService(meterRepo, log)
	accountSvc := accountsvc.NewService(accountRepo, walletRepo, stakeRepo, referralRepo, poolRepo, activityRepo, referralSvc, txManager, log)

	stakingSvc := staking.NewService(
		accountRepo, walletRepo, stakeRepo, meterRepo, activityRepo,
		referralSvc, poolSvc, gateway, txManager,
		staking.Config{
			MinStakeAmount:    mustDecimal(cfg.Ledger.MinStakeAmount),
			DepositFeePercent: mustDecimal(cfg.Ledger.DepositFeePercent),
		}, log)

	withdrawalSvc := withdrawal.NewService(
		accountRepo, walletRepo, stakeRepo, meterRepo, activityRepo,
		referralSvc, poolSvc, gateway, txManager,
		mustDecimal(cfg.Ledger.MinWithdrawalAmount), log)

	// Workers
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reconcileWorker := reconciliation.NewWorker(rateProvider, referralSvc, stakingSvc, rankSvc, poolSvc, cfg.Workers.ReconcileEvery(), log)
	go reconcileWorker.Start(ctx)

	dailyWorker := dailyaccrual.NewWorker(poolSvc, accrualSvc, cfg.Workers.DailyCronSpec, log)
	if err := dailyWorker.Start(ctx); err != nil {
		log.Fatal("Failed to start daily accrual worker", "error", err)
	}

	// HTTP surface
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	userHandlers := handlers.NewUserHandlers(accountSvc, stakingSvc, withdrawalSvc, log)
	adminHandlers := handlers.NewAdminHandlers(accountSvc, meterSvc, poolSvc, log)
	routes.Setup(router, userHandlers, adminHandlers)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Info("HTTP server listening", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", "error", err)
		}
	}()

	shutdown := graceful.NewShutdownManager(server, db, log)
	shutdown.Register(reconcileWorker)
	shutdown.Register(dailyWorker)
	shutdown.WaitForShutdown()
	cancel()

	if err := redisClient.Close(); err != nil {
		log.Warn("Redis close error", "error", err)
	}
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(fmt.Sprintf("invalid decimal config value %q: %v", s, err))
	}
	return d
}
