package handler

import (
	"settlement-vault/internal/adapter/http/middleware"
	"settlement-vault/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	VaultSvc       ports.VaultService
	TokenSvc       ports.TokenService
	VaultID        uuid.UUID
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep — verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes
	v1 := r.Group("/api/v1")

	// --- Public routes (no auth) ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	auth := v1.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
	}

	// --- Token-authenticated routes ---
	callerAuth := middleware.CallerAuth(deps.TokenSvc, deps.Logger)
	vaultHandler := NewVaultHandler(deps.VaultSvc, deps.VaultID)

	vault := v1.Group("/vault", callerAuth)
	{
		vault.GET("", vaultHandler.GetVault)
		vault.POST("/initialize", vaultHandler.Initialize)
		vault.POST("/deposit", vaultHandler.Deposit)
		vault.POST("/pay", vaultHandler.Pay)
		vault.POST("/withdraw", vaultHandler.Withdraw)
		vault.GET("/allowlist", vaultHandler.GetAllowlist)
		vault.POST("/allowlist", vaultHandler.SetAllowlisted)
		vault.POST("/pause", vaultHandler.Pause)
		vault.POST("/unpause", vaultHandler.Unpause)
		vault.POST("/transfer-ownership", vaultHandler.TransferOwnership)
		vault.GET("/entries", vaultHandler.ListEntries)
	}

	return r
}
