package app

import (
	"context"
	"edupath_backend/internal/config"
	"edupath_backend/internal/controller"
	"edupath_backend/internal/repository"
	"edupath_backend/internal/service"
	"edupath_backend/pkg/configwatcher"
	"edupath_backend/pkg/database"
	"edupath_backend/pkg/logger"
	"edupath_backend/pkg/monitoring"
	"edupath_backend/pkg/security"
	"edupath_backend/pkg/tracing"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/robfig/cron/v3"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	cron            *cron.Cron
	tracer          *sdktrace.TracerProvider
	stopWatch       context.CancelFunc
	stopBackground  context.CancelFunc
	limiters        []*security.Limiter
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user         *repository.UserRepository
	quiz         *repository.QuizRepository
	attempt      *repository.AttemptRepository
	pathway      *repository.PathwayRepository
	assignment   *repository.AssignmentRepository
	wallet       *repository.WalletRepository
	badge        *repository.BadgeRepository
	notification *repository.NotificationRepository
}

type services struct {
	settings     *service.EngineSettings
	auth         *service.AuthService
	scoring      *service.ScoringEngine
	ledger       *service.LedgerService
	badge        *service.BadgeService
	notification *service.NotificationService
	storage      *service.StorageService
	archive      *service.ArchiveService
	rewarder     *service.CompletionRewarder
	tracker      *service.PathwayProgressTracker
	pipeline     *service.CompletionPipeline
	attempt      *service.AttemptService
	grading      *service.GradingService
}

type controllers struct {
	auth         *controller.AuthController
	attempt      *controller.AttemptController
	grading      *controller.GradingController
	reward       *controller.RewardController
	pathway      *controller.PathwayController
	notification *controller.NotificationController
	health       *controller.HealthController
}

// RegisterConfigCallback 配置热更新后依次回调
func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:         repository.NewUserRepository(db),
		quiz:         repository.NewQuizRepository(db),
		attempt:      repository.NewAttemptRepository(db),
		pathway:      repository.NewPathwayRepository(db),
		assignment:   repository.NewAssignmentRepository(db),
		wallet:       repository.NewWalletRepository(db),
		badge:        repository.NewBadgeRepository(db),
		notification: repository.NewNotificationRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, db *gorm.DB, rdb *redis.Client) *services {
	s := &services{}
	s.settings = service.NewEngineSettings(cfg)
	s.auth = service.NewAuthService(repos.user, cfg)
	s.scoring = service.NewScoringEngine()
	s.notification = service.NewNotificationService(repos.notification, rdb, cfg.Rewards.NotificationChannel)
	s.ledger = service.NewLedgerService(repos.wallet)
	s.badge = service.NewBadgeService(repos.badge, s.notification)
	s.storage = service.NewStorageService(cfg)
	s.archive = service.NewArchiveService(s.storage)

	s.rewarder = service.NewCompletionRewarder(repos.attempt, s.ledger, s.badge)
	s.tracker = service.NewPathwayProgressTracker(db, repos.pathway, s.ledger, s.badge, s.rewarder, s.notification)
	s.pipeline = service.NewCompletionPipeline(repos.attempt, repos.quiz, s.rewarder, s.tracker)

	s.attempt = service.NewAttemptService(db, repos.attempt, repos.quiz, repos.assignment, repos.pathway, s.scoring, s.pipeline, s.settings)
	s.grading = service.NewGradingService(db, repos.attempt, repos.quiz, s.scoring, s.pipeline, s.notification, s.archive, s.settings)

	a.RegisterConfigCallback(s.settings.Apply)
	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		auth:         controller.NewAuthController(s.auth),
		attempt:      controller.NewAttemptController(s.attempt),
		grading:      controller.NewGradingController(s.grading),
		reward:       controller.NewRewardController(s.ledger, s.badge, s.pipeline),
		pathway:      controller.NewPathwayController(s.tracker),
		notification: controller.NewNotificationController(s.notification),
		health:       controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS))
	router.Use(security.Secure(cfg.CORS))
	router.Use(a.newLimiter("ip", cfg.RateLimit.MaxRequests, cfg.RateLimit.WindowMinutes, security.ClientIPKey).Middleware())

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func (a *App) newLimiter(name string, maxRequests, windowMinutes int, key security.KeyFunc) *security.Limiter {
	l := security.NewLimiter(name, maxRequests, time.Duration(windowMinutes)*time.Minute, key)
	a.limiters = append(a.limiters, l)
	return l
}

// startBackgroundTasks 限流桶清理；定时对账：余额与流水之和不一致只记录告警
func (a *App) startBackgroundTasks(s *services) {
	ctx, cancel := context.WithCancel(context.Background())
	a.stopBackground = cancel
	for _, l := range a.limiters {
		go l.Run(ctx)
	}

	spec := a.Config.Rewards.ReconcileCron
	if spec == "" {
		return
	}
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		drifts, err := s.ledger.Reconcile(ctx)
		if err != nil {
			logger.Log.Error("wallet reconciliation failed", zap.Error(err))
			return
		}
		logger.Log.Info("wallet reconciliation finished", zap.Int("drifts", len(drifts)))
	})
	if err != nil {
		logger.Log.Error("invalid reconcile schedule", zap.String("spec", spec), zap.Error(err))
		return
	}
	c.Start()
	a.cron = c
}

func (a *App) watchConfig() {
	ctx, cancel := context.WithCancel(context.Background())
	a.stopWatch = cancel
	go func() {
		err := configwatcher.WatchConfig(ctx, filepath.Join("configs", "config.yaml"), func(cfg *config.Config) {
			logger.SetMode(cfg.Server.Mode)
			for _, cb := range a.configCallbacks {
				cb(cfg)
			}
		})
		if err != nil {
			logger.Log.Warn("config watcher stopped", zap.Error(err))
		}
	}()
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	app := &App{
		Config: cfg,
		DB:     db,
	}

	if cfg.ForceMigrate || cfg.Server.Mode != "release" {
		if err := database.Migrate(db); err != nil {
			logger.Log.Fatal("Failed to migrate database", zap.Error(err))
		}
	}
	if cfg.MigrateOnly {
		return app
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		// 通知仍会落库，只是不再发布到 Redis
		logger.Log.Warn("Redis unavailable, notification publishing disabled", zap.Error(err))
		rdb = nil
	}
	app.Redis = rdb

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, db, rdb)
	app.services = services
	controllers := app.initControllers(services, db, rdb)

	// 监控初始化
	monitoring.Init()

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery())
	app.Router = router

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("edupath-engine", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, cfg)

	app.startBackgroundTasks(services)
	app.watchConfig()

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("listen failed", zap.Error(err))
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	if a.stopWatch != nil {
		a.stopWatch()
	}
	if a.stopBackground != nil {
		a.stopBackground()
	}
	if a.cron != nil {
		<-a.cron.Stop().Done()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}

	logger.Log.Info("Server exiting")
}
