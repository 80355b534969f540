package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"investfolio/internal/cache"
	"investfolio/internal/config"
	"investfolio/internal/consolidator"
	cronrunner "investfolio/internal/cron"
	"investfolio/internal/db"
	"investfolio/internal/handler"
	"investfolio/internal/logger"
	"investfolio/internal/marketdata"
	"investfolio/internal/marketdata/brapi"
	gormrepository "investfolio/internal/repository/gorm"
	"investfolio/internal/service"
	"investfolio/internal/tax"
)

func main() {
	cfgPath := os.Getenv("IF_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("IF_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.Ping(dbConn); err != nil {
		logger.Fatal("db ping failed", zap.Error(err))
	}
	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	store := gormrepository.New(dbConn.Gorm)

	var cacheStore cache.Store = cache.Noop{}
	if cfg.Redis.Enabled {
		cacheStore = cache.NewRedisStore(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	providerHTTP := &http.Client{Timeout: cfg.MarketData.Timeout}
	provider := brapi.NewClient(providerHTTP, cfg.MarketData.BaseURL, cfg.MarketData.Token)
	marketSvc := &marketdata.Service{
		Repo:         store,
		Provider:     provider,
		Logger:       logger,
		FXPair:       cfg.MarketData.FXPair,
		LookbackDays: cfg.MarketData.LookbackDays,
	}
	if err := marketSvc.EnsureDefaultIndexes(context.Background()); err != nil {
		logger.Warn("init default market indexes failed", zap.Error(err))
	}

	engine := &consolidator.Consolidator{
		Repo:              store,
		Market:            marketSvc,
		Logger:            logger,
		MaxParallelAssets: cfg.Consolidation.MaxParallelAssets,
		RecentWindow:      time.Duration(cfg.Consolidation.RecentWindowDays) * 24 * time.Hour,
	}

	positionSvc := &service.PositionService{
		Repo:   store,
		Cache:  cacheStore,
		Logger: logger,
		TTL:    cfg.Redis.TTL,
	}
	transactionSvc := &service.TransactionService{
		Repo:      store,
		Engine:    engine,
		Positions: positionSvc,
		FX:        marketSvc,
		Logger:    logger,
	}
	dividendSvc := &service.DividendService{
		Repo:      store,
		Engine:    engine,
		Positions: positionSvc,
		Logger:    logger,
	}
	eventSvc := &service.EventService{
		Repo:      store,
		Engine:    engine,
		Positions: positionSvc,
		Logger:    logger,
	}
	categorySvc := &service.CategoryService{Repo: store, Positions: positionSvc}
	taxSvc := &service.TaxService{Repo: store, Rules: taxRules(cfg.Tax)}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm}
	healthHandler.Register(router)
	positionHandler := &handler.PositionHandler{Positions: positionSvc}
	positionHandler.Register(router)
	transactionHandler := &handler.TransactionHandler{Transactions: transactionSvc}
	transactionHandler.Register(router)
	dividendHandler := &handler.DividendHandler{Dividends: dividendSvc}
	dividendHandler.Register(router)
	categoryHandler := &handler.CategoryHandler{Categories: categorySvc}
	categoryHandler.Register(router)
	eventHandler := &handler.EventHandler{Events: eventSvc}
	eventHandler.Register(router)
	taxHandler := &handler.TaxHandler{Tax: taxSvc}
	taxHandler.Register(router)
	consolidationHandler := &handler.ConsolidationHandler{Repo: store, Engine: engine, Market: marketSvc}
	consolidationHandler.Register(router)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Cron.Enabled {
		_, err := cronRunner.Add(cfg.Cron.ConsolidateAll, func(ctx context.Context) {
			if err := marketSvc.RefreshAll(ctx); err != nil {
				logger.Warn("cron market data refresh failed", zap.Error(err))
			}
			if err := engine.ConsolidateAll(ctx); err != nil {
				logger.Warn("cron consolidation failed", zap.Error(err))
				return
			}
			portfolios, err := store.ListPortfolios(ctx)
			if err != nil {
				logger.Warn("cron portfolio list failed", zap.Error(err))
				return
			}
			for _, p := range portfolios {
				positionSvc.WarmCaches(ctx, p.ID)
			}
			logger.Info("cron consolidation ok", zap.Int("portfolios", len(portfolios)))
		})
		if err != nil {
			logger.Warn("cron register consolidation failed", zap.Error(err))
		}
		cronRunner.Start()
		defer cronRunner.Stop()
	}

	errCh := make(chan error, 2)

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// taxRules applies per-class config overrides on top of the built-in rules.
func taxRules(cfg config.TaxConfig) map[tax.AssetClass]tax.ClassRule {
	rules := tax.DefaultRules()
	for name, rate := range cfg.Rates {
		class := tax.AssetClass(strings.ToLower(name))
		rule, ok := rules[class]
		if !ok {
			continue
		}
		rule.Rate = decimal.NewFromFloat(rate)
		rules[class] = rule
	}
	for name, exemption := range cfg.Exemptions {
		class := tax.AssetClass(strings.ToLower(name))
		rule, ok := rules[class]
		if !ok {
			continue
		}
		rule.Exemption = decimal.NewFromFloat(exemption)
		rules[class] = rule
	}
	return rules
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
