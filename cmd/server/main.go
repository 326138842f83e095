package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bitfantasy/nimo-trade/internal/config"
	"github.com/bitfantasy/nimo-trade/internal/database"
	"github.com/bitfantasy/nimo-trade/internal/export/handler"
	"github.com/bitfantasy/nimo-trade/internal/export/repository"
	"github.com/bitfantasy/nimo-trade/internal/export/service"
	"github.com/bitfantasy/nimo-trade/internal/metrics"
	"github.com/bitfantasy/nimo-trade/internal/middleware"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting nimo-trade service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	// 初始化数据库
	db, err := database.Open(cfg.Database, cfg.Server.Mode)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := database.Migrate(db, cfg.Database, zapLogger); err != nil {
		zapLogger.Fatal("Failed to migrate database", zap.Error(err))
	}

	// 初始化Redis
	rdb := initRedis(cfg.Redis)
	sessions, err := initSessionStore(cfg.Session, rdb)
	if err != nil {
		zapLogger.Fatal("Failed to init session store", zap.Error(err))
	}

	// 初始化依赖
	repos := repository.NewRepositories(db)
	services := service.NewServices(repos, service.Options{
		Profile:   cfg.Packing.Profile,
		Tolerance: cfg.Packing.Tolerance,
		Sessions:  sessions,
		Objects:   initObjectStore(cfg.MinIO, zapLogger),
		Bucket:    cfg.MinIO.Bucket,
		Logger:    zapLogger,
	})
	handlers := handler.NewHandlers(services)

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(metrics.GinMiddleware())
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	// 注册路由
	registerRoutes(router, handlers, db, rdb, cfg)

	// 创建HTTP服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 启动服务器
	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}
	if rdb != nil {
		rdb.Close()
	}

	zapLogger.Info("Server exited")
}

// initLogger json 格式用于生产，console 格式用于本地开发
func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zapCfg := zap.NewDevelopmentConfig()
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	}
	if cfg.Level != "" {
		lvl, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("log.level: %w", err)
		}
		zapCfg.Level = lvl
	}
	return zapCfg.Build(zap.Fields(zap.String("service", "nimo-trade")))
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	if cfg.Host == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func initSessionStore(cfg config.SessionConfig, rdb *redis.Client) (service.SessionStore, error) {
	if cfg.Store == "memory" {
		return service.NewMemorySessionStore(cfg.TTL), nil
	}
	if rdb == nil {
		return nil, fmt.Errorf("session store redis requires redis.host")
	}
	return service.NewRedisSessionStore(rdb, cfg.TTL), nil
}

// initObjectStore 未配置或不可用时不归档导出文件；存储桶不存在时创建
func initObjectStore(cfg config.MinIOConfig, log *zap.Logger) service.ObjectStore {
	if cfg.Endpoint == "" {
		return nil
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		log.Warn("MinIO unavailable, packing list archive disabled", zap.Error(err))
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err == nil && !exists {
		err = client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{})
	}
	if err != nil {
		log.Warn("MinIO bucket unavailable, packing list archive disabled",
			zap.String("bucket", cfg.Bucket), zap.Error(err))
		return nil
	}
	log.Info("Packing list archive enabled", zap.String("endpoint", cfg.Endpoint), zap.String("bucket", cfg.Bucket))
	return client
}

func registerRoutes(r *gin.Engine, h *handler.Handlers, db *gorm.DB, rdb *redis.Client, cfg *config.Config) {
	// 健康检查
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		checks := gin.H{"database": "ok"}
		status := http.StatusOK
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
			checks["database"] = "down"
			status = http.StatusServiceUnavailable
		}
		if rdb != nil {
			checks["redis"] = "ok"
			if err := rdb.Ping(ctx).Err(); err != nil {
				checks["redis"] = "down"
				status = http.StatusServiceUnavailable
			}
		}
		c.JSON(status, gin.H{"status": http.StatusText(status), "checks": checks})
	})

	// 版本信息
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1，全部需要认证
	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWTAuth(cfg.JWT.Secret, cfg.JWT.Issuer))
	h.RegisterRoutes(v1)
}
