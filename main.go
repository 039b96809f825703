package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dany616/bgenius-background-processor/config"
	"github.com/dany616/bgenius-background-processor/handler"
	"github.com/dany616/bgenius-background-processor/middleware"
	"github.com/dany616/bgenius-background-processor/service"
	"github.com/dany616/bgenius-background-processor/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	BuildID   = "unknown"
	GitCommit = "unknown"
	GitBranch = "unknown"
)

func main() {
	// 加载配置
	cfg := config.New()

	// 初始化日志
	if err := utils.InitLogger(cfg.Server.Mode, cfg.Server.LogLevel); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer utils.Sync()

	utils.Logger.Info("starting bgenius server",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
		zap.String("git_branch", GitBranch))

	// 结果图片存储
	store, err := service.NewImageStore(&cfg.Storage)
	if err != nil {
		utils.Logger.Fatal("failed to create image store", zap.Error(err))
	}
	cleanup, err := service.StartCleanup(store, cfg.Storage.CleanupSpec, cfg.Storage.TTL)
	if err != nil {
		utils.Logger.Fatal("failed to schedule cleanup", zap.Error(err))
	}
	defer cleanup.Stop()

	// 初始化Redis，不可用时退回进程内存储
	var cache service.ResultCache
	var jobStore service.JobStore
	redisService := service.NewRedisService(&cfg.Redis)
	ctx := context.Background()
	if err := redisService.Ping(ctx); err != nil {
		utils.Logger.Warn("redis connection failed, using in-memory store", zap.Error(err))
		memory := service.NewMemoryStore(cfg.Redis.TTL)
		if err := service.ScheduleSweep(cleanup, cfg.Storage.CleanupSpec, memory); err != nil {
			utils.Logger.Fatal("failed to schedule memory sweep", zap.Error(err))
		}
		cache, jobStore = memory, memory
	} else {
		utils.Logger.Info("redis connected successfully")
		cache, jobStore = redisService, redisService
	}
	defer redisService.Close()

	cutoutService := service.NewCutoutService(
		&cfg.Pipeline,
		store,
		cache,
		service.NewSegmenterClient(&cfg.Segmenter),
		service.NewDetectorClient(&cfg.Detector),
		service.NewRemoveBGClient(&cfg.RemoveBG),
	)
	processor := service.NewProcessor(cutoutService, service.NewBriaClient(&cfg.Bria), store)
	jobs := service.NewJobRunner(cutoutService, jobStore, cfg.Pipeline.JobTimeout)
	defer jobs.Close()

	// 初始化Handler
	cutoutHandler := handler.NewCutoutHandler(cfg, cutoutService, cache, store)
	generateHandler := handler.NewGenerateHandler(cfg, processor)
	jobHandler := handler.NewJobHandler(cfg, jobs)

	// 设置Gin模式
	gin.SetMode(cfg.Server.Mode)

	// 创建路由
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS())
	r.MaxMultipartMemory = cfg.Upload.MaxSize

	// 健康检查和版本信息
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"version": Version,
		})
	})

	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
			"build_id":   BuildID,
			"git_commit": GitCommit,
			"git_branch": GitBranch,
		})
	})

	// API路由
	api := r.Group("/api/v1")
	{
		api.POST("/remove", cutoutHandler.Remove)
		api.POST("/edges", cutoutHandler.Edges)
		api.POST("/generate", generateHandler.Generate)
		api.GET("/result/:key", cutoutHandler.GetResult)
		api.GET("/temp-images/:filename", cutoutHandler.TempImage)
		api.POST("/jobs", jobHandler.Create)
		api.GET("/jobs/:id", jobHandler.Get)
	}

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		utils.Logger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	utils.Logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.Logger.Error("server shutdown failed", zap.Error(err))
	}
}
