package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	rocketmq "github.com/apache/rocketmq-client-go/v2"
	"github.com/apache/rocketmq-client-go/v2/producer"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/techimanshu8/flipkart/pkg/api"
	"github.com/techimanshu8/flipkart/pkg/auth"
	"github.com/techimanshu8/flipkart/pkg/model"
	"github.com/techimanshu8/flipkart/pkg/repository"
	"github.com/techimanshu8/flipkart/pkg/service"
	"github.com/techimanshu8/flipkart/pkg/telemetry"
)

var log *logrus.Logger

func init() {
	log = logrus.New()
	log.Level = logrus.InfoLevel
	log.Formatter = &logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "severity",
			logrus.FieldKeyMsg:   "message",
		},
		TimestampFormat: time.RFC3339Nano,
	}
	log.Out = os.Stdout
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if os.Getenv("ENABLE_TRACING") == "1" {
		tp, err := telemetry.InitTracing(ctx, log)
		if err != nil {
			log.Warnf("warn: failed to start tracer: %+v", err)
		} else {
			defer func() {
				if err := tp.Shutdown(context.Background()); err != nil {
					log.Errorf("Error shutting down tracer provider: %v", err)
				}
			}()
		}

		mp, err := telemetry.InitMetrics(ctx, log)
		if err != nil {
			log.Warnf("warn: failed to start metric provider: %+v", err)
		} else {
			defer func() {
				if err := mp.Shutdown(context.Background()); err != nil {
					log.Errorf("Error shutting down metric provider: %v", err)
				}
			}()
		}
	}

	if os.Getenv("DISABLE_PROFILER") == "" {
		log.Info("Profiling enabled.")
		go telemetry.InitProfiling(log)
	} else {
		log.Info("Profiling disabled.")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET must be set")
	}

	db := initMySQL()
	rdb := initRedis()

	products := repository.NewProductRepo(db)
	if rdb != nil {
		products = repository.NewCachedProductRepo(products, rdb, log)
	}
	orders := repository.NewOrderRepo(db)
	users := repository.NewUserRepo(db)
	agents := repository.NewAgentRepo(db)

	var carts repository.CartRepo
	if rdb != nil {
		carts = repository.NewCartRedis(rdb)
	} else {
		log.Fatal("redis is required for the cart store")
	}

	notifier := initNotifier(rdb)

	inval, _ := products.(repository.ProductInvalidator)
	orderSvc := service.NewOrderService(orders, products, users, carts, inval, notifier, log)
	sellerSvc := service.NewSellerService(products, orders, agents, notifier, log)
	deliverySvc := service.NewDeliveryService(agents, orders, notifier, log)
	addressSvc := service.NewAddressService(users, log)
	cartSvc := service.NewCartService(carts, products, log)
	invoiceSvc := service.NewInvoiceService(orders, service.JSONInvoiceRenderer{}, log)
	userSvc := service.NewUserService(users, log)

	srv := api.NewServer(
		log,
		auth.NewTokenVerifier(jwtSecret),
		products,
		orderSvc,
		sellerSvc,
		deliverySvc,
		addressSvc,
		cartSvc,
		invoiceSvc,
		userSvc,
		api.NewLimiter(rdb, log),
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	httpSrv := &http.Server{
		Addr:              ":" + port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Infof("starting http server at :%s", port)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	<-sigCh
	log.Info("Gracefully shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("http server shutdown error: %v", err)
	}
	cancel()
}

func initMySQL() *gorm.DB {
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		dsn = "root:root_password@tcp(127.0.0.1:3307)/flipkart_db?parseTime=true"
		log.Info("Tried to connect to MySQL, but DB_DSN is not set. Using default address.")
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect to mysql: %v", err)
	}
	log.Info("connected to mysql")

	// 监控 sql 语句执行时间
	if err := db.Use(otelgorm.NewPlugin()); err != nil {
		log.Fatalf("failed to initialize otelgorm plugin: %v", err)
	}

	if err := db.AutoMigrate(
		&model.User{},
		&model.Address{},
		&model.Product{},
		&model.Order{},
		&model.OrderItem{},
		&model.DeliveryAttempt{},
		&model.StatusAudit{},
		&model.DeliveryAgent{},
		&model.AgentRating{},
	); err != nil {
		log.Fatalf("failed to migrate schema: %v", err)
	}

	return db
}

func initRedis() *redis.Client {
	var rdb *redis.Client

	sentinelAddrs := os.Getenv("REDIS_SENTINEL_ADDRS")
	if sentinelAddrs != "" {
		// [模式 A] 哨兵模式 (生产环境/K8s)
		log.Infof("Initializing Redis in Sentinel Mode. Sentinels: %s", sentinelAddrs)

		masterName := os.Getenv("REDIS_MASTER_NAME")
		if masterName == "" {
			masterName = "mymaster"
		}
		rdb = redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:    masterName,
			SentinelAddrs: strings.Split(sentinelAddrs, ","),
			DB:            0,
		})
	} else {
		// [模式 B] 单机模式 (本地开发/旧环境)
		redisAddr := os.Getenv("REDIS_ADDR")
		if redisAddr == "" {
			redisAddr = "localhost:6380"
		}
		log.Infof("Initializing Redis in Single Node Mode. Addr: %s", redisAddr)

		rdb = redis.NewClient(&redis.Options{
			Addr: redisAddr,
		})
	}

	if err := redisotel.InstrumentTracing(rdb); err != nil {
		log.Warnf("failed to instrument redis tracing: %v", err)
	}

	// 带重试的 Redis 连接
	maxRetries := 10
	for i := 0; i < maxRetries; i++ {
		pingCtx, cancelPing := context.WithTimeout(context.Background(), 3*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancelPing()

		if err == nil {
			log.Info("connected to redis")
			return rdb
		}

		if i == maxRetries-1 {
			log.Warnf("failed to connect to redis after %d retries: %v", maxRetries, err)
			return nil
		}

		backoff := time.Duration(1<<i) * time.Second
		if backoff > 30*time.Second {
			backoff = 30 * time.Second
		}
		log.Warnf("redis not ready, retry in %v... (%d/%d)", backoff, i+1, maxRetries)
		time.Sleep(backoff)
	}
	return rdb
}

func initNotifier(rdb *redis.Client) service.Notifier {
	rocketmqAddr := os.Getenv("MQ_NAMESERVER")
	if rocketmqAddr == "" {
		rocketmqAddr = "localhost:9876"
	}

	// RocketMQ Go 客户端不支持主机名，需要解析为 IP 地址
	resolvedAddr := resolveToIP(rocketmqAddr)
	log.Infof("RocketMQ NameServer: %s -> %s", rocketmqAddr, resolvedAddr)

	mqProducer, err := rocketmq.NewProducer(
		producer.WithNameServer([]string{resolvedAddr}),
		producer.WithGroupName("OrderEvents-Producer"),
		producer.WithRetry(3),
	)
	if err != nil {
		log.Warnf("Failed to create RocketMQ producer: %v (notifications disabled)", err)
		return service.NopNotifier{}
	}
	if err := mqProducer.Start(); err != nil {
		log.Warnf("Failed to start RocketMQ producer: %v (notifications disabled)", err)
		return service.NopNotifier{}
	}
	log.Info("RocketMQ producer started")

	// redis 可用时，发送失败的事件落兜底队列等待补发
	var backlog service.EventParker
	if rdb != nil {
		backlog = repository.NewEventBacklog(rdb, log)
	}
	return service.NewNotifier(mqProducer, backlog, log)
}

func resolveToIP(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	if ip := net.ParseIP(host); ip != nil {
		return addr
	}
	ips, err := net.LookupIP(host)
	if err != nil || len(ips) == 0 {
		return addr
	}
	for _, ip := range ips {
		if ip4 := ip.To4(); ip4 != nil {
			return net.JoinHostPort(ip4.String(), port)
		}
	}
	return net.JoinHostPort(ips[0].String(), port)
}
