package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"edulink_backend/internal/config"
	"edulink_backend/internal/controller"
	"edulink_backend/internal/gateway"
	"edulink_backend/internal/repository"
	"edulink_backend/internal/service"
	"edulink_backend/internal/util"
	"edulink_backend/pkg/database"
	"edulink_backend/pkg/logger"
	"edulink_backend/pkg/monitoring"
	"edulink_backend/pkg/security"
	"edulink_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	Gateway         gateway.Gateway
	services        *services
	configCallbacks []func(*config.Config)
}

type repositories struct {
	course  *repository.CourseRepository
	attempt *repository.AttemptRepository
}

type services struct {
	storage    *service.StorageService
	submission *service.SubmissionService
	quiz       *service.QuizService
	chatHub    *service.ChatHub
}

type controllers struct {
	chat       *controller.ChatController
	assignment *controller.AssignmentController
	quiz       *controller.QuizController
	course     *controller.CourseController
	health     *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

// ApplyConfig 热更新配置，逐一通知注册的回调。
// 端口、数据库连接等需要重启的项不在此处生效
func (a *App) ApplyConfig(cfg *config.Config) {
	a.Config = cfg
	for _, cb := range a.configCallbacks {
		cb(cfg)
	}
	logger.Log.Info("Configuration reloaded")
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		course:  repository.NewCourseRepository(db),
		attempt: repository.NewAttemptRepository(db),
	}
}

// initGateway 按配置选择远端文档库实现。
// memory 仅限单实例部署与本地开发，订阅只能看到本进程的写入
func initGateway(cfg *config.Config) gateway.Gateway {
	if cfg.Gateway.Type == util.GatewayMongo {
		mongoDB, err := database.InitMongo(&cfg.Mongo)
		if err != nil {
			logger.Log.Fatal("Failed to initialize mongodb", zap.Error(err))
		}
		return gateway.NewMongoGateway(mongoDB)
	}
	logger.Log.Warn("Using in-memory gateway, data will not survive restarts")
	return gateway.NewMemoryGateway()
}

func (a *App) initServices(repos *repositories, cfg *config.Config, gw gateway.Gateway, rdb *redis.Client) *services {
	s := &services{}

	s.storage = service.NewStorageService(cfg)
	s.submission = service.NewSubmissionService(gw, s.storage, repos.attempt)
	s.quiz = service.NewQuizService(gw)

	s.chatHub = service.NewChatHub(rdb, gw)
	go s.chatHub.Run()

	return s
}

func (a *App) initControllers(s *services, repos *repositories, gw gateway.Gateway, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		chat:       controller.NewChatController(s.chatHub, gw),
		assignment: controller.NewAssignmentController(s.submission, repos.attempt),
		quiz:       controller.NewQuizController(s.quiz),
		course:     controller.NewCourseController(repos.course),
		health:     controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	if window <= 0 {
		window = time.Minute
	}
	maxRequests := cfg.RateLimit.MaxRequests
	if maxRequests <= 0 {
		maxRequests = 120
	}
	router.Use(security.RateLimiter(maxRequests, window))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
		log.Fatalf("Failed to initialize redis: %v", err)
	}

	gw := initGateway(cfg)

	app := &App{
		Config:  cfg,
		DB:      db,
		Redis:   rdb,
		Gateway: gw,
	}

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, gw, rdb)
	app.services = services
	controllers := app.initControllers(services, repos, gw, db, rdb)

	// 监控初始化
	monitoring.Init()

	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		if _, err := tracing.InitTracer("edulink-backend", cfg.Tracing.CollectorEndpoint); err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
	}

	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == util.StorageLocal {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// 清理 WebSocket 连接和 Redis 在线状态
	if a.services != nil && a.services.chatHub != nil {
		a.services.chatHub.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
