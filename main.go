package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ecommerce-backend/cache"
	"ecommerce-backend/config"
	"ecommerce-backend/consumers"
	"ecommerce-backend/controllers"
	"ecommerce-backend/database"
	"ecommerce-backend/invoice"
	"ecommerce-backend/logging"
	"ecommerce-backend/middlewares"
	"ecommerce-backend/notifications"
	"ecommerce-backend/rabbitmq"
	"ecommerce-backend/repositories"
	sagasqlite "ecommerce-backend/saga/sqlite"
	"ecommerce-backend/services"
	"ecommerce-backend/storage"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// 加载配置
	cfg := config.LoadConfig()
	logger := logging.Init(logging.ParseLevel(cfg.LogLevel))
	if err := cfg.Validate(); err != nil {
		fatal("Invalid configuration", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 初始化数据库
	db, err := database.Open(ctx, cfg)
	if err != nil {
		fatal("Database initialization failed", err)
	}
	defer db.Close()

	products := repositories.NewProductRepository(db)
	orders := repositories.NewOrderRepository(db)
	invoices := repositories.NewInvoiceRepository(db)
	users := repositories.NewUserRepository(db)

	sink, err := storage.NewLocalSink(cfg.UploadDir, cfg.UploadsURLPrefix, logger)
	if err != nil {
		fatal("Upload directory initialization failed", err)
	}
	invoiceService := invoice.NewService(orders, invoices, sink, invoice.NewRenderer(), logger)

	var notifier notifications.Notifier = notifications.NewLogNotifier(logger)
	if cfg.MailEnabled() {
		mailer, err := notifications.NewMailer(cfg, logger)
		if err != nil {
			fatal("Mailer initialization failed", err)
		}
		notifier = mailer
	}
	fanOut := notifications.NewFanOut(users, notifier, logger)

	sagaLog, err := sagasqlite.Open(cfg.SagaLogPath)
	if err != nil {
		fatal("Saga log initialization failed", err)
	}
	defer sagaLog.Close()

	if failed, err := sagaLog.ListFailed(ctx); err != nil {
		slog.Warn("failed to read saga log", "error", err)
	} else {
		for _, e := range failed {
			slog.Error("order left partially committed by an earlier run", "saga_id", e.SagaID,
				"order_id", e.OrderID, "step", e.CurrentStep, "errors", e.ErrorMessages)
		}
	}

	opts := []services.Option{services.WithSagaLog(sagaLog)}

	if cfg.CacheEnabled() {
		rdb := cache.NewClient(cfg.RedisAddr)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Warn("redis unavailable, order cache and idempotency disabled", "error", err)
		} else {
			opts = append(opts,
				services.WithCache(cache.NewOrderCache(rdb, cfg.OrderCacheTTL)),
				services.WithIdempotency(cache.NewIdempotencyStore(rdb, cfg.IdempotencyTTL)),
			)
		}
	}

	var rmq *rabbitmq.RabbitMQ
	if cfg.MessagingEnabled() {
		// 初始化RabbitMQ
		rmq, err = rabbitmq.NewRabbitMQ(cfg)
		if err != nil {
			fatal("RabbitMQ initialization failed", err)
		}
		defer rmq.Close()

		// 设置队列和交换机
		if err := rmq.SetupQueues(); err != nil {
			fatal("Failed to setup RabbitMQ queues", err)
		}
		opts = append(opts, services.WithEvents(rmq, cfg.PaymentCheckIn))
	}

	orderService := services.NewOrderService(products, orders, invoiceService, sink, fanOut, logger, opts...)

	if rmq != nil {
		// 启动消息消费者
		consumeCh, err := rmq.ConsumerChannel()
		if err != nil {
			fatal("Failed to open consumer channel", err)
		}
		if err := consumers.NewOrderConsumer(orderService, logger).Start(consumeCh, cfg); err != nil {
			fatal("Failed to start order consumer", err)
		}
	}

	// 创建Gin路由
	r := gin.New()
	r.Use(gin.Recovery())

	// 应用Prometheus中间件
	r.Use(middlewares.PrometheusMiddleware())

	// 暴露Prometheus指标端点
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 健康检查端点
	r.GET("/health", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.Static(cfg.UploadsURLPrefix, cfg.UploadDir)

	// 需要认证的路由组
	api := r.Group("/api")
	api.Use(middlewares.AuthMiddleware(cfg.JWTSecret))
	controllers.NewOrderController(orderService, sagaLog).Register(api)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("order service starting", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("Failed to start server", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}
