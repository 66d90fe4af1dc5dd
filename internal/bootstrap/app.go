package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	httpHandler "github.com/swust-xl/CampusPartner-sub001/internal/handler/http"
	gormpersistence "github.com/swust-xl/CampusPartner-sub001/internal/infra/persistence/gorm"
	"github.com/swust-xl/CampusPartner-sub001/internal/infra/setup"
	redisstate "github.com/swust-xl/CampusPartner-sub001/internal/infra/state/redis"
	"github.com/swust-xl/CampusPartner-sub001/internal/middleware"
	"github.com/swust-xl/CampusPartner-sub001/internal/notify"
	"github.com/swust-xl/CampusPartner-sub001/internal/service"
	"github.com/swust-xl/CampusPartner-sub001/internal/worker"
)

// App 结构体包含应用的所有组件和配置
type App struct {
	Config      *Config
	Log         *logrus.Logger
	DB          *gorm.DB
	RedisClient *redis.Client
	AsynqClient *asynq.Client
	AsynqServer *worker.WorkerServer
	Scheduler   *worker.Scheduler
	HttpServer  *http.Server
	periodic    *asynq.Scheduler
}

// NewApp 创建并初始化应用的所有组件
func NewApp() (*App, error) {
	// 1. 加载配置
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return nil, err
	}

	// 2. 初始化 Logger
	log := newLogger(cfg)
	log.Info("Configuration loaded successfully")

	// 3. 初始化基础设施
	log.Info("Initializing infrastructure...")
	db, err := setup.InitDB(setup.DBOptions{
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		Name:     cfg.DBName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init DB: %w", err)
	}
	if err := setup.MigrateDB(db); err != nil {
		return nil, fmt.Errorf("failed to migrate DB: %w", err)
	}
	log.Info("Database migrated")

	redisClient, err := setup.InitRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("failed to init Redis: %w", err)
	}

	redisClientOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	asynqClient := asynq.NewClient(redisClientOpt)
	log.Info("Infrastructure initialized successfully")

	// 4. 初始化 Repositories
	roomCache := redisstate.NewRedisRoomCache(redisClient, cfg.KeyPrefix)
	sessionCache := redisstate.NewRedisSessionCache(redisClient, cfg.KeyPrefix)
	lock := redisstate.NewRedisLock(redisClient, cfg.KeyPrefix)
	roomStore := gormpersistence.NewGormRoomRepository(db)
	userDirectory := gormpersistence.NewGormUserRepository(db)
	log.Info("Repositories initialized")

	// 5. 初始化 Services
	roomService := service.NewRoomService(roomCache, roomStore, log)
	notifier := notify.NewAsynqNotifier(asynqClient, log)

	// 6. 周期任务与 Worker Server
	owner, err := instanceID()
	if err != nil {
		return nil, err
	}
	scheduler := worker.NewScheduler(lock, owner, log)
	capacitySweep := worker.NewCapacitySweep(roomCache, userDirectory, notifier, log)
	archivalSweep := worker.NewArchivalSweep(roomCache, roomStore, log)
	if err := scheduler.Register(capacitySweep.Task(cfg.CapacitySweep.Interval, cfg.CapacitySweep.MaxHold, cfg.CapacitySweep.MinHold)); err != nil {
		return nil, err
	}
	if err := scheduler.Register(archivalSweep.Task(cfg.ArchivalSweep.Interval, cfg.ArchivalSweep.MaxHold, cfg.ArchivalSweep.MinHold)); err != nil {
		return nil, err
	}
	notificationHandler := worker.NewNotificationHandler(notify.NewLogSender(log), log)
	workerServer := worker.NewWorkerServer(redisClientOpt, cfg.WorkerConcurrency, scheduler, notificationHandler, log)

	periodic := asynq.NewScheduler(redisClientOpt, &asynq.SchedulerOpts{
		Logger:   log.WithField("component", "asynq_scheduler"),
		Location: time.UTC,
		PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
			// 其他实例已在本周期入队同名任务
			if errors.Is(err, asynq.ErrDuplicateTask) {
				log.Debug("Periodic task already enqueued by another instance")
			} else if err != nil {
				log.WithError(err).Error("Failed to enqueue periodic task")
			}
		},
	})
	if err := scheduler.Attach(periodic); err != nil {
		return nil, err
	}
	log.WithField("owner", owner).Info("Worker server and scheduler initialized")

	// 7. 初始化 Gin Engine 和路由
	router := newRouter(cfg, log, redisClient, sessionCache, httpHandler.NewRoomHandler(roomService))

	httpServer := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		Config:      cfg,
		Log:         log,
		DB:          db,
		RedisClient: redisClient,
		AsynqClient: asynqClient,
		AsynqServer: workerServer,
		Scheduler:   scheduler,
		HttpServer:  httpServer,
		periodic:    periodic,
	}, nil
}

func newLogger(cfg *Config) *logrus.Logger {
	log := logrus.New()
	if cfg.AppEnv == "production" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, ForceColors: true})
	}
	logLevel, _ := logrus.ParseLevel(cfg.LogLevel) // 已在 LoadConfig 中校验
	log.SetLevel(logLevel)
	log.SetOutput(os.Stdout)
	// 组件中直接使用 logrus.WithFields 的日志与 App logger 保持一致
	logrus.SetFormatter(log.Formatter)
	logrus.SetLevel(logLevel)
	log.Infof("Logger initialized (Level: %s, Format: %T)", logLevel.String(), log.Formatter)
	return log
}

// instanceID 作为分布式锁的 owner，在集群内唯一
func instanceID() (string, error) {
	host, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("failed to read hostname: %w", err)
	}
	return host + "-" + uuid.NewString(), nil
}

func newRouter(cfg *Config, log *logrus.Logger, redisClient *redis.Client, sessions *redisstate.RedisSessionCache, rooms *httpHandler.RoomHandler) *gin.Engine {
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(log))
	router.Use(CORSMiddleware(cfg.CORSAllowedOrigin))

	router.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })

	api := router.Group("/api")
	api.Use(middleware.RateLimit(redisClient, cfg.KeyPrefix, cfg.RateLimitMax, cfg.RateLimitWindow))
	api.Use(middleware.Auth(cfg.JWTSecret, sessions, cfg.SessionTTL))
	rooms.Register(api)
	return router
}

// Start 启动应用的所有后台 Goroutine 和 HTTP 服务器
func (a *App) Start() {
	a.Log.Info("Starting application background routines...")
	go a.AsynqServer.Start()

	if err := a.periodic.Start(); err != nil {
		a.Log.Fatalf("Failed to start asynq scheduler: %v", err)
	}
	a.Log.Info("Asynq scheduler started")

	go func() {
		a.Log.Infof("HTTP server starting to listen on %s", a.HttpServer.Addr)
		if err := a.HttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Fatalf("Failed to start HTTP server: %v", err)
		}
		a.Log.Info("HTTP server stopped listening.")
	}()
}

// Shutdown 优雅地关闭应用
func (a *App) Shutdown() {
	a.Log.Info("Shutting down application...")

	// 1. 停止定时器，不再产生新的周期任务
	if a.periodic != nil {
		a.periodic.Shutdown()
		a.Log.Info("Asynq scheduler stopped.")
	}

	// 2. 优雅关闭 Worker Server (等待正在执行的任务)
	if a.AsynqServer != nil {
		a.AsynqServer.Shutdown()
	}

	// 3. 优雅关闭 HTTP 服务器
	a.Log.Info("Shutting down HTTP server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.HttpServer.Shutdown(ctx); err != nil {
		a.Log.Errorf("Error shutting down HTTP server: %v", err)
	} else {
		a.Log.Info("HTTP server shut down gracefully.")
	}

	// 4. 关闭 Asynq Client
	if a.AsynqClient != nil {
		if err := a.AsynqClient.Close(); err != nil {
			a.Log.Errorf("Error closing Asynq client: %v", err)
		}
	}

	// 5. 关闭 Redis 连接
	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Log.Errorf("Error closing Redis connection: %v", err)
		}
	}

	// 6. 关闭数据库连接池
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				a.Log.Errorf("Error closing database connection: %v", err)
			}
		}
	}

	a.Log.Info("Application shutdown complete.")
}
