package main

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"settlement-vault/config"
	"settlement-vault/internal/adapter/evm"
	httpHandler "settlement-vault/internal/adapter/http/handler"
	pgStorage "settlement-vault/internal/adapter/storage/postgres"
	redisStorage "settlement-vault/internal/adapter/storage/redis"
	"settlement-vault/internal/core/domain"
	"settlement-vault/internal/core/ports"
	"settlement-vault/internal/metrics"
	"settlement-vault/internal/service"
	"settlement-vault/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Settlement Vault")

	ctx := context.Background()

	vaultID, err := uuid.Parse(cfg.Vault.ID)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid vault ID in config")
	}
	if !common.IsHexAddress(cfg.Vault.Owner) {
		log.Fatal().Str("owner", cfg.Vault.Owner).Msg("Invalid vault owner address in config")
	}

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	vaultRepo := pgStorage.NewVaultRepo(pool)
	allowRepo := pgStorage.NewAllowlistRepo(pool)
	entryRepo := pgStorage.NewEntryRepo(pool)
	idempotencyRepo := pgStorage.NewIdempotencyRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	idempotencyCache := redisStorage.NewIdempotencyCache(rdb)

	// Seed the vault row on first boot. Capability holders and routing come in
	// later through the initialize endpoint.
	vault, err := bootstrapVault(ctx, vaultRepo, vaultID, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to bootstrap vault row")
	}

	// Initialize chain clients
	chainClient, err := evm.Dial(cfg.Chain.RPCURL, big.NewInt(cfg.Chain.ChainID), cfg.Chain.OperatorKey, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to chain RPC")
	}
	defer chainClient.Close()
	log.Info().Str("rpc", cfg.Chain.RPCURL).Msg("Chain RPC connected")

	assetClient, err := evm.NewAssetClient(chainClient)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build asset client")
	}
	// The router address comes from the stored vault row. Until the vault is
	// initialized it is the zero address and remote dispatch fails; restart
	// after first-time initialization picks up the configured router.
	relayClient, err := evm.NewRelayClient(chainClient, vault.Router, vault.LocalDomain)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build relay client")
	}

	// Initialize core services
	sigSvc := service.NewHMACSignatureService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	authSvc := service.NewSignatureAuthService(tokenSvc, log)

	var publisher ports.EventPublisher
	if cfg.Indexer.URL != "" {
		publisher = service.NewIndexerPublisher(
			cfg.Indexer.URL,
			cfg.Indexer.Secret,
			sigSvc,
			&http.Client{Timeout: 10 * time.Second},
			log,
		)
		log.Info().Str("url", cfg.Indexer.URL).Msg("Indexer event publishing enabled")
	}

	m := metrics.New()

	vaultSvc := service.NewVaultService(
		vaultRepo,
		allowRepo,
		entryRepo,
		idempotencyRepo,
		idempotencyCache,
		assetClient,
		relayClient,
		publisher,
		transactor,
		ports.FeePaymentMode(cfg.Relay.FeePaymentMode),
		m,
		log,
	)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:        authSvc,
		VaultSvc:       vaultSvc,
		TokenSvc:       tokenSvc,
		VaultID:        vaultID,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// bootstrapVault ensures the configured vault row exists, creating it with
// zero balances and the configured owner when missing.
func bootstrapVault(ctx context.Context, repo ports.VaultRepository, vaultID uuid.UUID, cfg *config.Config) (*domain.Vault, error) {
	existing, err := repo.GetByID(ctx, vaultID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := time.Now().UTC()
	vault := &domain.Vault{
		ID:               vaultID,
		Owner:            common.HexToAddress(cfg.Vault.Owner),
		LocalDomain:      domain.Selector(cfg.Vault.LocalDomain),
		PrincipalBalance: big.NewInt(0),
		FeeBalance:       big.NewInt(0),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := repo.Create(ctx, vault); err != nil {
		return nil, err
	}
	return vault, nil
}
