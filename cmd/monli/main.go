package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	accountcmd "github.com/monli/monli/internal/account/command"
	accounthandler "github.com/monli/monli/internal/account/handler"
	accountqry "github.com/monli/monli/internal/account/query"
	accountrepo "github.com/monli/monli/internal/account/repository"
	authcmd "github.com/monli/monli/internal/auth/command"
	authhandler "github.com/monli/monli/internal/auth/handler"
	authqry "github.com/monli/monli/internal/auth/query"
	authrepo "github.com/monli/monli/internal/auth/repository"
	budgetcmd "github.com/monli/monli/internal/budget/command"
	budgethandler "github.com/monli/monli/internal/budget/handler"
	budgetqry "github.com/monli/monli/internal/budget/query"
	categorycmd "github.com/monli/monli/internal/category/command"
	categoryhandler "github.com/monli/monli/internal/category/handler"
	categoryqry "github.com/monli/monli/internal/category/query"
	"github.com/monli/monli/internal/config"
	dashboardhandler "github.com/monli/monli/internal/dashboard/handler"
	dashboardqry "github.com/monli/monli/internal/dashboard/query"
	"github.com/monli/monli/internal/ledger"
	"github.com/monli/monli/internal/logger"
	"github.com/monli/monli/internal/ratelimit"
	reporthandler "github.com/monli/monli/internal/report/handler"
	reportqry "github.com/monli/monli/internal/report/query"
	reportrepo "github.com/monli/monli/internal/report/repository"
	"github.com/monli/monli/internal/storage"
	"github.com/monli/monli/internal/syncqueue"
	synchandler "github.com/monli/monli/internal/syncqueue/handler"
	txcmd "github.com/monli/monli/internal/transaction/command"
	txhandler "github.com/monli/monli/internal/transaction/handler"
	txqry "github.com/monli/monli/internal/transaction/query"
	txrepo "github.com/monli/monli/internal/transaction/repository"
	zakathandler "github.com/monli/monli/internal/zakat/handler"
	zakatqry "github.com/monli/monli/internal/zakat/query"
	"github.com/monli/monli/shared/events"
	"github.com/monli/monli/shared/middleware"
	"github.com/monli/monli/shared/models"
	redisClient "github.com/monli/monli/shared/redis"
)

const (
	syncMarkerTTL     = 72 * time.Hour
	memoryQueueSize   = 1024
	reportGroup       = "report-cache"
	shutdownTimeout   = 15 * time.Second
	readHeaderTimeout = 10 * time.Second
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	zapLogger, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	if err := run(cfg, zapLogger); err != nil {
		zapLogger.Fatal("Server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, zapLogger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database connection
	db, err := storage.Open(ctx, cfg.DatabaseURL, logger.Component(zapLogger, "storage"))
	if err != nil {
		return err
	}
	defer db.Close()

	if err := storage.RunMigrations(db); err != nil {
		return err
	}
	zapLogger.Info("Database migrations applied")

	// Redis connection
	redis, err := redisClient.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer redis.Close()

	publisher, consumer := newBroker(cfg, redis, zapLogger)
	defer publisher.Close()

	// Balances are always derived from the ledger; Redis only caches them
	balances := ledger.NewCachedAggregator(
		ledger.NewAggregator(ledger.NewPostgresStore(db)),
		ledger.NewRedisBalanceCache(redis.Client, cfg.BalanceCacheTTL),
		logger.Component(zapLogger, "ledger"),
	)

	// CQRS: command + query services per domain
	users := authrepo.NewUserRepository(db)
	authCommands := authcmd.NewAuthCommandService(users, publisher, logger.Component(zapLogger, "auth"))
	authQueries := authqry.NewAuthQueryService(users, []byte(cfg.JWTSecret), cfg.TokenTTL)

	accountCommands := accountcmd.NewAccountCommandService(db, balances, publisher, logger.Component(zapLogger, "account"))
	accountQueries := accountqry.NewAccountQueryService(db, balances)

	categoryCommands := categorycmd.NewCategoryCommandService(db)
	categoryQueries := categoryqry.NewCategoryQueryService(db)

	txCommands := txcmd.NewTransactionCommandService(
		txrepo.NewPostgresStore(db),
		balances,
		publisher,
		cfg.BlockNegativeTransfers,
		logger.Component(zapLogger, "transaction"),
	)
	txQueries := txqry.NewTransactionQueryService(db)

	budgetCommands := budgetcmd.NewBudgetCommandService(db)
	budgetQueries := budgetqry.NewBudgetQueryService(db)

	reports := reportrepo.NewReportRepository(db)
	reportQueries := reportqry.NewReportQueryService(
		reports,
		redisClient.NewViewCache[models.MonthSummary](redis.Client, cfg.ReportCacheTTL, logger.Component(zapLogger, "report-cache")),
		logger.Component(zapLogger, "report"),
	)

	dashboardQueries := dashboardqry.NewDashboardQueryService(
		accountrepo.NewAccountRepository(db),
		balances,
		reports,
		budgetQueries,
		txrepo.NewTransactionRepository(db),
	)

	zakatQueries := zakatqry.NewZakatQueryService(
		accountrepo.NewAccountRepository(db),
		balances,
		zakatqry.StaticPriceSource{Gold: cfg.GoldPricePerGram, Silver: cfg.SilverPricePerGram},
		cfg.BaseCurrency,
	)

	// Offline sync
	queue, err := newSyncQueue(cfg, zapLogger)
	if err != nil {
		return err
	}
	defer queue.Close()
	worker := syncqueue.NewWorker(
		queue,
		txCommands,
		redisClient.NewProcessedMarker(redis.Client, "mutation", syncMarkerTTL),
		logger.Component(zapLogger, "sync-worker"),
	)

	// Rate limiters: public auth routes per IP in process, the API per user
	// through Redis so replicas share buckets
	limitConfig := ratelimit.Config{
		RequestsPerMinute: cfg.RateLimitPerMinute,
		Burst:             cfg.RateLimitBurst,
	}
	authLimiter := ratelimit.NewMemoryLimiter(limitConfig)
	defer authLimiter.Stop()
	apiLimiter := ratelimit.NewRedisLimiter(redis.Client, "ratelimit:", limitConfig)

	router := newRouter(routerDeps{
		logger:      zapLogger,
		secret:      []byte(cfg.JWTSecret),
		authLimiter: authLimiter,
		apiLimiter:  apiLimiter,
		auth:        authhandler.NewAuthHandler(authCommands, authQueries),
		accounts:    accounthandler.NewAccountHandler(accountCommands, accountQueries),
		categories:  categoryhandler.NewCategoryHandler(categoryCommands, categoryQueries),
		txns:        txhandler.NewTransactionHandler(txCommands, txQueries),
		budgets:     budgethandler.NewBudgetHandler(budgetCommands, budgetQueries),
		reports:     reporthandler.NewReportHandler(reportQueries),
		dashboard:   dashboardhandler.NewDashboardHandler(dashboardQueries),
		zakat:       zakathandler.NewZakatHandler(zakatQueries),
		sync:        synchandler.NewSyncHandler(queue, logger.Component(zapLogger, "sync")),
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zapLogger.Info("Monli API starting", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return ignoreCanceled(worker.Run(gctx))
	})
	g.Go(func() error {
		return ignoreCanceled(consumer(reportQueries.HandleTransactionEvent).Start(gctx))
	})
	g.Go(func() error {
		<-gctx.Done()
		zapLogger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// newBroker picks the event transport. The returned factory builds the
// consumer that keeps the report cache fresh.
func newBroker(cfg *config.Config, redis *redisClient.Client, zapLogger *zap.Logger) (events.Publisher, func(events.Handler) events.Consumer) {
	subscriberConfig := func(handler events.Handler) events.SubscriberConfig {
		return events.SubscriberConfig{
			Group:    reportGroup,
			Consumer: cfg.ConsumerName,
			Stream:   events.TransactionEventsStream,
			Handler:  handler,
		}
	}
	eventsLogger := logger.Component(zapLogger, "events")

	if cfg.EventBroker == "kafka" {
		zapLogger.Info("Using Kafka event broker", zap.Strings("brokers", cfg.KafkaBrokers))
		return events.NewKafkaPublisher(cfg.KafkaBrokers, eventsLogger),
			func(handler events.Handler) events.Consumer {
				return events.NewKafkaSubscriber(cfg.KafkaBrokers, subscriberConfig(handler), eventsLogger)
			}
	}
	return events.NewRedisPublisher(redis.Client),
		func(handler events.Handler) events.Consumer {
			return events.NewRedisSubscriber(redis.Client, subscriberConfig(handler), eventsLogger)
		}
}

func newSyncQueue(cfg *config.Config, zapLogger *zap.Logger) (syncqueue.Queue, error) {
	queueLogger := logger.Component(zapLogger, "sync-queue")
	if cfg.AMQPURL == "" {
		zapLogger.Warn("AMQP_URL not set, offline mutations use an in-process queue")
		return syncqueue.NewMemoryQueue(memoryQueueSize, queueLogger), nil
	}
	queue, err := syncqueue.NewAMQPQueue(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, queueLogger)
	if err != nil {
		return nil, err
	}
	return queue, nil
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

type routerDeps struct {
	logger      *zap.Logger
	secret      []byte
	authLimiter middleware.Limiter
	apiLimiter  middleware.Limiter

	auth       *authhandler.AuthHandler
	accounts   *accounthandler.AccountHandler
	categories *categoryhandler.CategoryHandler
	txns       *txhandler.TransactionHandler
	budgets    *budgethandler.BudgetHandler
	reports    *reporthandler.ReportHandler
	dashboard  *dashboardhandler.DashboardHandler
	zakat      *zakathandler.ZakatHandler
	sync       *synchandler.SyncHandler
}

func newRouter(d routerDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(middleware.Recovery(d.logger))
	router.Use(middleware.LoggingMiddleware(d.logger))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "monli"})
	})

	// Auth routes (no authentication required)
	public := router.Group("/v1/auth", middleware.RateLimit(d.authLimiter, middleware.ClientIPKey, d.logger))
	{
		public.POST("/register", d.auth.Register)
		public.POST("/login", d.auth.Login)
		public.POST("/refresh", d.auth.RefreshToken)
	}

	v1 := router.Group("/v1",
		middleware.AuthMiddleware(d.secret),
		middleware.RateLimit(d.apiLimiter, middleware.UserKey, d.logger),
	)

	v1.GET("/users/me", d.auth.Me)

	accounts := v1.Group("/accounts")
	{
		accounts.POST("", d.accounts.CreateAccount)
		accounts.GET("", d.accounts.ListAccounts)
		accounts.GET("/:accountId", d.accounts.GetAccount)
		accounts.PATCH("/:accountId", d.accounts.UpdateAccount)
		accounts.DELETE("/:accountId", d.accounts.DeleteAccount)
	}

	categories := v1.Group("/categories")
	{
		categories.POST("", d.categories.CreateCategory)
		categories.GET("", d.categories.ListCategories)
		categories.GET("/:categoryId", d.categories.GetCategory)
		categories.PATCH("/:categoryId", d.categories.UpdateCategory)
		categories.DELETE("/:categoryId", d.categories.DeleteCategory)
	}

	txns := v1.Group("/transactions")
	{
		txns.POST("", d.txns.CreateTransaction)
		txns.GET("", d.txns.ListTransactions)
		txns.GET("/:transactionId", d.txns.GetTransaction)
		txns.PUT("/:transactionId", d.txns.UpdateTransaction)
		txns.DELETE("/:transactionId", d.txns.DeleteTransaction)
	}

	budgets := v1.Group("/budgets")
	{
		budgets.PUT("", d.budgets.SetBudget)
		budgets.GET("", d.budgets.ListBudgets)
		budgets.DELETE("/:budgetId", d.budgets.DeleteBudget)
	}

	v1.GET("/reports/monthly", d.reports.MonthlyReport)
	v1.GET("/reports/categories", d.reports.CategoryReport)
	v1.GET("/dashboard", d.dashboard.GetDashboard)
	v1.POST("/zakat/calculate", d.zakat.Calculate)
	v1.POST("/sync", d.sync.Sync)

	return router
}
