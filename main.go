package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"pumprug/application"
	"pumprug/config"
	"pumprug/database"
	"pumprug/infrastructure"
	"pumprug/repository"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

func main() {
	// Check for migration subcommands
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := handleMigrationCommand(); err != nil {
			log.Fatalf("Migration error: %v", err)
		}
		return
	}

	// Check for market administration subcommands
	if len(os.Args) > 1 && os.Args[1] == "create-market" {
		if err := handleCreateMarket(); err != nil {
			log.Fatalf("Create market error: %v", err)
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, shutting down gracefully...")
		cancel()
	}()

	if err := run(ctx); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run(ctx context.Context) error {
	cfg := config.Get()

	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	// Infrastructure
	broadcastPublisher := infrastructure.NewRedisEventPublisher(rdb)
	crediter := infrastructure.NewPayoutCrediter(rdb)
	uowFactory := repository.NewUnitOfWorkFactory(db,
		func() application.TransactionalEventPublisher {
			return infrastructure.NewTransactionalPublisher(broadcastPublisher)
		},
		func() application.TransactionalBalanceCrediter {
			return infrastructure.NewTransactionalCrediter(crediter)
		},
	)
	scheduler := infrastructure.NewRedisScheduler(rdb)
	lockManager := infrastructure.NewLockManager(rdb)
	rateLimiter := infrastructure.NewRateLimiter(rdb)
	ledgerClient := infrastructure.NewLedgerClient(cfg.LedgerRPCURL)
	oracleClient := infrastructure.NewOracleClient(cfg.OracleBaseURL)

	// Application
	wagerFacade := application.NewWagerFacade(uowFactory, ledgerClient, rateLimiter)
	transitionWorker := application.NewTransitionWorker(uowFactory, scheduler, scheduler, oracleClient, lockManager)
	oraclePoller := application.NewOraclePoller(
		repository.NewMarketRepository(db),
		oracleClient,
		broadcastPublisher,
		lockManager,
		cfg.OraclePollInterval,
	)
	confirmationConsumer := infrastructure.NewConfirmationConsumer(rdb, wagerFacade)

	stopTransitions := transitionWorker.Start(ctx)
	defer stopTransitions()
	stopPoller := oraclePoller.Start(ctx)
	defer stopPoller()
	stopConsumer := confirmationConsumer.Start(ctx)
	defer stopConsumer()

	log.Info("pumprug engine started")
	<-ctx.Done()
	log.Info("pumprug engine stopped")
	return nil
}

func handleMigrationCommand() error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: pumprug migrate [up|down|status] [args...]")
	}

	command := os.Args[2]
	switch command {
	case "up":
		return database.MigrateUp()
	case "down":
		steps := "1"
		if len(os.Args) > 3 {
			steps = os.Args[3]
		}
		return database.MigrateDown(steps)
	case "status":
		return database.MigrateStatus()
	default:
		return fmt.Errorf("unknown migration command: %s", command)
	}
}

func handleCreateMarket() error {
	if len(os.Args) < 4 {
		return fmt.Errorf("usage: pumprug create-market <token-mint> <duration-minutes> [start-delay-minutes]")
	}

	tokenMint := os.Args[2]
	durationMinutes, err := strconv.Atoi(os.Args[3])
	if err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}
	startDelay := 0
	if len(os.Args) > 4 {
		startDelay, err = strconv.Atoi(os.Args[4])
		if err != nil {
			return fmt.Errorf("invalid start delay: %w", err)
		}
	}

	ctx := context.Background()
	cfg := config.Get()

	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer rdb.Close()

	crediter := infrastructure.NewPayoutCrediter(rdb)
	uowFactory := repository.NewUnitOfWorkFactory(db,
		func() application.TransactionalEventPublisher {
			return infrastructure.NewTransactionalPublisher(infrastructure.NewNoopEventPublisher())
		},
		func() application.TransactionalBalanceCrediter {
			return infrastructure.NewTransactionalCrediter(crediter)
		},
	)
	marketFacade := application.NewMarketFacade(
		uowFactory,
		infrastructure.NewOracleClient(cfg.OracleBaseURL),
		infrastructure.NewRedisScheduler(rdb),
	)

	market, err := marketFacade.CreateMarket(ctx, tokenMint, time.Now().Add(time.Duration(startDelay)*time.Minute), durationMinutes)
	if err != nil {
		return err
	}

	fmt.Printf("market %d created for %s, betting %s to %s\n",
		market.ID, market.TokenMint, market.StartsAt.Format(time.RFC3339), market.CutoffAt().Format(time.RFC3339))
	return nil
}
