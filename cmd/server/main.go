package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"whisp/config"
	"whisp/internal/handler"
	"whisp/internal/model"
	"whisp/internal/repository"
	"whisp/internal/service"
	dbPkg "whisp/pkg/db"
	"whisp/pkg/events"
	"whisp/pkg/jwt"
	"whisp/pkg/logger"
	"whisp/pkg/mail"
	"whisp/pkg/metrics"
	"whisp/pkg/redis"
	"whisp/pkg/response"
	"whisp/pkg/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// 1. 加载配置
	cfg := config.LoadConfig()

	// 2. 初始化日志系统
	log := logger.InitLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	log.Info("=== Whisp 启动 ===")
	log.Info("服务器配置信息",
		zap.String("port", cfg.Server.Port),
		zap.String("database_driver", cfg.Database.Driver),
		zap.String("database_host", cfg.Database.Host),
		zap.String("database_name", cfg.Database.Database),
		zap.Bool("redis_enabled", cfg.Redis.Enabled),
		zap.Bool("mail_enabled", cfg.Mail.Enabled),
		zap.Duration("jwt_expire_time", cfg.JWT.ExpireTime),
		zap.String("log_level", cfg.Log.Level),
	)

	// 3. 初始化数据库连接
	if _, err := dbPkg.InitDB(cfg.Database); err != nil {
		log.Fatal("数据库连接失败", zap.Error(err))
	}
	defer func() {
		if err := dbPkg.CloseDB(); err != nil {
			log.Error("关闭数据库连接失败", zap.Error(err))
		}
	}()
	log.Info("数据库连接成功")

	if err := dbPkg.AutoMigrate(model.All()...); err != nil {
		log.Fatal("自动迁移失败", zap.Error(err))
	}
	log.Info("自动迁移完成")

	// 4. Redis 可选：未启用或连接失败时关闭令牌黑名单、离线通知、在线状态
	if cfg.Redis.Enabled {
		if err := redis.InitRedis(cfg.Redis); err != nil {
			log.Warn("Redis连接失败，相关功能已关闭", zap.Error(err))
		} else {
			log.Info("Redis连接成功")
		}
	}
	defer func() {
		if err := redis.Close(); err != nil {
			log.Error("关闭Redis连接失败", zap.Error(err))
		}
	}()

	// 5. 事件总线：通知推送与验证邮件
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := events.NewBus(events.NewZapLogger(log))
	wsManager := websocket.NewManager()
	mailer := mail.NewMailer(cfg.Mail, log)
	dispatcher := events.NewDispatcher(bus, wsManager, mailer, log)
	if err := dispatcher.Start(ctx); err != nil {
		log.Fatal("事件分发器启动失败", zap.Error(err))
	}

	// 6. 初始化业务服务
	store := repository.NewStore(dbPkg.GetDB())
	jwtSvc := jwt.NewJWTService(cfg.JWT)
	userSvc := service.NewUserService(store, jwtSvc, bus, cfg.Content)
	if redis.Enabled() {
		userSvc.WithRevoker(redis.TokenBlacklist{}).WithPresence(redis.Presence{})
	} else {
		// 单实例部署时直接以本地连接判断在线状态
		userSvc.WithPresence(wsManager)
	}
	relationSvc := service.NewRelationService(store, bus)
	feedSvc := service.NewFeedService(store, cfg.Feed)
	whisperSvc := service.NewWhisperService(store, bus, cfg.Content)
	messageSvc := service.NewMessageService(store, bus, cfg.Content)

	handlers := &handler.Handlers{
		User:    handler.NewUserHandler(userSvc, feedSvc),
		Friend:  handler.NewFriendHandler(relationSvc),
		Whisper: handler.NewWhisperHandler(whisperSvc, feedSvc),
		Message: handler.NewMessageHandler(messageSvc),
	}
	auth := jwtSvc.AuthMiddleware(userSvc.CheckToken)

	// 7. 设置Gin模式
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 8. 创建Gin路由
	router := gin.New()
	router.Use(corsMiddleware(cfg.CORS))
	router.Use(logger.RequestIDMiddleware())
	router.Use(logger.RequestLogger())
	router.Use(logger.ErrorLoggerMiddleware())
	router.Use(metrics.Middleware())

	setupBasicRoutes(router)
	handler.SetupRoutes(router, handlers, auth)

	// WebSocket 通知推送
	wsHandler := websocket.NewHandler(wsManager, jwtSvc, cfg.WebSocket, userSvc.CheckToken)
	router.GET("/ws", wsHandler.Serve)

	// 9. 创建HTTP服务器
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP服务器启动", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP服务器启动失败", zap.Error(err))
		}
	}()

	// 10. 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("正在关闭服务器...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP服务器关闭失败", zap.Error(err))
	}

	// 先停止事件消费，再关闭总线
	cancel()
	if err := bus.Close(); err != nil {
		log.Error("事件总线关闭失败", zap.Error(err))
	}
	dispatcher.Wait()

	log.Info("服务器已安全关闭")
}

// corsMiddleware 未配置允许的来源时放行所有来源
func corsMiddleware(cfg config.CORSConfig) gin.HandlerFunc {
	if len(cfg.AllowedOrigins) == 0 {
		corsCfg := cors.DefaultConfig()
		corsCfg.AllowAllOrigins = true
		corsCfg.AddAllowHeaders("Authorization")
		return cors.New(corsCfg)
	}
	corsCfg := cors.DefaultConfig()
	corsCfg.AllowOrigins = cfg.AllowedOrigins
	corsCfg.AllowCredentials = true
	corsCfg.AddAllowHeaders("Authorization")
	return cors.New(corsCfg)
}

// setupBasicRoutes 健康检查与监控
func setupBasicRoutes(router *gin.Engine) {
	router.GET("/health", func(c *gin.Context) {
		status := "ok"
		if err := dbPkg.HealthCheck(); err != nil {
			status = "db-down"
		}
		redisStatus := "disabled"
		if redis.Enabled() {
			redisStatus = "ok"
			if err := redis.HealthCheck(c.Request.Context()); err != nil {
				redisStatus = "down"
			}
		}
		response.Success(c, gin.H{
			"status": status,
			"redis":  redisStatus,
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	router.GET("/", func(c *gin.Context) {
		response.Success(c, gin.H{
			"message": "Whisp API",
			"version": "1.0.0",
		})
	})

	router.GET("/metrics", metrics.Handler())
}
