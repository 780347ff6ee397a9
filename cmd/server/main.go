package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Arrogantx/hyperian/internal/chain"
	"github.com/Arrogantx/hyperian/internal/config"
	"github.com/Arrogantx/hyperian/internal/handler"
	"github.com/Arrogantx/hyperian/internal/models"
	"github.com/Arrogantx/hyperian/internal/proxy"
	"github.com/Arrogantx/hyperian/internal/repository"
	"github.com/Arrogantx/hyperian/internal/scheduler"
	"github.com/Arrogantx/hyperian/internal/service"
	"github.com/Arrogantx/hyperian/pkg/logger"

	"github.com/joho/godotenv"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func main() {
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		configPath = ""
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output); err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}

	db, err := initDatabase(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database:", err)
	}
	defer closeDatabase(db)

	if err := db.AutoMigrate(&models.Wallet{}); err != nil {
		logger.Fatal("Failed to migrate database:", err)
	}

	rpcTimeout := time.Duration(cfg.Chain.RPCTimeout) * time.Second
	rpcClient := chain.NewClient(cfg.Chain.RPCURL, rpcTimeout)
	reader := chain.NewReader(rpcClient, cfg.Chain.Collections)
	cachedReader := chain.NewCachedReader(reader,
		cfg.Points.HoldingsCacheSize,
		time.Duration(cfg.Points.HoldingsCacheTTL)*time.Second)

	ledgerRepo := repository.NewLedgerRepository(db)

	engine, err := service.NewEngine(reader, ledgerRepo, cfg.Chain.Collections, &cfg.Points)
	if err != nil {
		logger.Fatal("Failed to build points engine:", err)
	}

	weeklyReset := scheduler.NewWeeklyResetScheduler(ledgerRepo, cfg.Points.WeeklyResetCron)
	if err := weeklyReset.Start(); err != nil {
		logger.Fatal("Failed to start scheduler:", err)
	}
	defer weeklyReset.Stop()

	router := setupHTTPRouter(cfg, engine, ledgerRepo, cachedReader)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("Server starting on port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error:", err)
	}

	logger.Info("Server stopped")
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN())
	default:
		dialector = mysql.Open(cfg.DSN())
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)

	return db, nil
}

func closeDatabase(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		logger.Error("Failed to get database instance:", err)
		return
	}
	sqlDB.Close()
}

func setupHTTPRouter(
	cfg *config.Config,
	engine *service.Engine,
	ledgerRepo *repository.LedgerRepository,
	cachedReader *chain.CachedReader,
) http.Handler {
	router := http.NewServeMux()

	claimHandler := handler.NewClaimHandler(engine)
	pointsHandler := handler.NewPointsHandler(engine, ledgerRepo)
	nftHandler := handler.NewNFTHandler(cachedReader)
	rpcProxy := proxy.NewForwarder(cfg.Chain.RPCURL, cfg.Proxy.AllowedMethods,
		time.Duration(cfg.Chain.RPCTimeout)*time.Second)

	router.HandleFunc("/api/claim", claimHandler.Claim)
	router.HandleFunc("/api/points/", pointsHandler.GetPoints)
	router.HandleFunc("/api/points/spend", pointsHandler.Spend)
	router.HandleFunc("/api/leaderboard", pointsHandler.Leaderboard)
	router.HandleFunc("/api/nfts/", nftHandler.GetNFTs)
	router.Handle("/api/rpc", rpcProxy)
	router.HandleFunc("/health", handler.HandleHealth)

	return handler.CORSMiddleware(router)
}
