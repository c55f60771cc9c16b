package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/earnx/earnx/internal/infra/evm"
	"github.com/earnx/earnx/internal/infra/gateway/coingecko"
	infraRedis "github.com/earnx/earnx/internal/infra/redis"
	"github.com/earnx/earnx/internal/infra/verification"
	"github.com/earnx/earnx/internal/module/invest"
	"github.com/earnx/earnx/internal/module/invoices"
	"github.com/earnx/earnx/internal/module/market"
	"github.com/earnx/earnx/internal/module/opportunity"
	"github.com/earnx/earnx/internal/module/status"
	"github.com/earnx/earnx/internal/platform/contract"
	"github.com/earnx/earnx/internal/platform/scheduler"
	"github.com/earnx/earnx/internal/transport/httpapi"
	"github.com/earnx/earnx/internal/transport/httpapi/handler"
	"github.com/earnx/earnx/internal/transport/httpapi/middleware"
	"github.com/earnx/earnx/pkg/config"
	"github.com/earnx/earnx/pkg/logger"
)

func main() {
	// Create context that listens for termination signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewDefault(cfg.Env)
	log.Info("Starting EarnX API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"chain_id", cfg.ChainID,
	)

	// Chain and contract addresses
	chains, err := config.LoadChainsConfig(cfg.ChainConfigPath)
	if err != nil {
		log.Error("Failed to load chain config", "error", err)
		os.Exit(1)
	}
	chain, ok := chains.GetChain(cfg.ChainID)
	if !ok {
		log.Error("Chain not configured", "chain_id", cfg.ChainID, "supported", chains.GetChainIDs())
		os.Exit(1)
	}

	rpcURL := chain.RPCURL
	if cfg.RPCURL != "" {
		rpcURL = cfg.RPCURL
	}
	walletURL := cfg.WalletRPCURL
	if walletURL == "" {
		log.Warn("WALLET_RPC_URL not configured, signing against the node endpoint")
		walletURL = rpcURL
	}

	node := evm.NewClient(rpcURL, log)
	walletRPC := evm.NewClient(walletURL, log)

	if id, err := node.ChainID(ctx); err != nil {
		log.Warn("Chain RPC unreachable at startup", "url", rpcURL, "error", err)
	} else if id != chain.ChainID {
		log.Error("Chain RPC serves a different chain", "expected", chain.ChainID, "actual", id)
		os.Exit(1)
	}

	gateway := contract.NewGateway(node, walletRPC, chain.Contracts, contract.DefaultReceiptPolicy(), log)
	log.Info("Contract gateway initialized", "chain", chain.Name, "protocol", gateway.ProtocolAddress())

	// Redis view cache; reads fall through to chain when it is down
	redisClient, err := infraRedis.NewClient(cfg.RedisURL, cfg.RedisPassword)
	if err != nil {
		log.Error("Invalid Redis configuration", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	viewCache := infraRedis.NewCacheWithTTL(redisClient, cfg.ViewCacheTTL, log)
	if err := viewCache.Ping(ctx); err != nil {
		log.Warn("Redis unreachable, serving views uncached", "error", err)
	} else {
		log.Info("Redis connection established")
	}

	// Domain services
	aggregator := opportunity.NewAggregator(gateway, cfg.AggregateConcurrency, log)
	views := opportunity.NewCached(aggregator, viewCache, chain.ChainID, cfg.ViewCacheTTL, log)

	board := status.NewBoard(chain.TxURL, status.DefaultAutoDismiss, log)
	orchestrator := invest.NewOrchestrator(invest.DefaultConfig(), gateway, board, views, log)

	invoiceSvc := invoices.NewService(gateway, aggregator, board, views, log)
	if len(cfg.AdminAddresses) == 0 {
		log.Warn("ADMIN_ADDRESSES not configured, maintenance endpoints are closed")
	}

	coinGeckoClient := coingecko.NewClient(cfg.CoinGeckoAPIKey, log)
	marketSvc := market.NewService(gateway, coingecko.NewMarketPriceAdapter(coinGeckoClient), viewCache, chain.ChainID, log)

	// Background jobs
	sched := scheduler.New(log)
	if cfg.VerificationAPIURL != "" {
		verifier := verification.NewClient(cfg.VerificationAPIURL, cfg.VerificationAPIKey, log)
		if err := sched.Register(scheduler.KeepAliveJob(cfg.KeepAliveCron, verifier)); err != nil {
			log.Error("Failed to register keep-alive job", "error", err)
			os.Exit(1)
		}
	} else {
		log.Warn("VERIFICATION_API_URL not configured, keep-alive disabled")
	}
	if cfg.WarmUpCron != "" {
		if err := sched.Register(scheduler.WarmUpJob(cfg.WarmUpCron, views)); err != nil {
			log.Error("Failed to register warm-up job", "error", err)
			os.Exit(1)
		}
	}

	// HTTP handlers
	jwtSvc := middleware.NewJWTService(cfg.JWTSecret)

	sessionHandler := handler.NewSessionHandler(walletRPC, jwtSvc, log).WithNetwork(handler.NetworkInfo{
		ChainID:                chain.ChainID,
		ChainName:              chain.Name,
		ExplorerURL:            chain.ExplorerURL,
		ProtocolAddress:        gateway.ProtocolAddress(),
		WalletConnectProjectID: cfg.WalletConnectProjectID,
	})

	routerCfg := httpapi.Config{
		Logger:             log,
		AllowedOrigins:     cfg.AllowedOrigins,
		SessionHandler:     sessionHandler,
		OpportunityHandler: handler.NewOpportunityHandler(views),
		MarketHandler:      handler.NewMarketHandler(marketSvc),
		InvestmentHandler:  handler.NewInvestmentHandler(orchestrator, log),
		StatusHandler:      handler.NewStatusHandler(board),
		InvoiceHandler:     handler.NewInvoiceHandler(invoiceSvc, log),
		HealthHandler: handler.NewHealthHandler(map[string]handler.Pinger{
			"chain_rpc": node,
			"redis":     viewCache,
		}),
		JWTMiddleware:   middleware.JWTMiddleware(jwtSvc),
		AdminMiddleware: middleware.RequireAdmin(cfg.AdminAddresses),
	}
	r := httpapi.NewRouter(routerCfg)

	// faucet and supplier writes hold the response until the receipt arrives
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	sched.Start()

	// Start server in a goroutine
	go func() {
		log.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for termination signal
	<-ctx.Done()
	log.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", "error", err)
	}

	sched.Stop(shutdownCtx)

	// Flows already submitted to chain are allowed to finish reporting
	flowsDone := make(chan struct{})
	go func() {
		orchestrator.Wait()
		close(flowsDone)
	}()
	select {
	case <-flowsDone:
		log.Info("Investment flows drained")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timed out with investment flows still running")
	}

	log.Info("Server stopped gracefully")
}
