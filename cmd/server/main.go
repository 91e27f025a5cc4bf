package main

import (
	"context"
	_ "embed"
	"fmt"
	"net/http"
	"strings"
	"time"

	"povgallery/internal/api"
	"povgallery/internal/config"
	"povgallery/internal/gallery"
	"povgallery/internal/generator"
	"povgallery/internal/llm"
	"povgallery/internal/model"
	"povgallery/internal/service"
	"povgallery/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

//go:embed web/dist/index.html
var indexHTML string

func main() {
	// 初始化配置
	cfg, err := config.ParseConfig()
	if err != nil {
		logrus.WithError(err).Error("Failed to parse config")
		return
	}

	// 初始化logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	repo, err := model.InitRepository(&cfg)
	if err != nil {
		logrus.WithError(err).Error("failed to initialise repository")
		return
	}

	store, err := storage.NewStorage(cfg)
	if err != nil {
		logrus.WithError(err).Error("failed to initialise storage")
		return
	}

	// 内容源
	sceneSource, err := llm.NewSceneSource(cfg, "")
	if err != nil {
		logrus.WithError(err).Error("failed to initialise scene source")
		return
	}
	imageSource, err := llm.NewImageSource(cfg, "")
	if err != nil {
		logrus.WithError(err).Error("failed to initialise image source")
		return
	}

	// 集合状态：有数据库时启动即恢复已生成的记录
	collection := gallery.NewCollection()
	if repo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		scenes, err := repo.ListAllScenes(ctx)
		cancel()
		if err != nil {
			logrus.WithError(err).Warn("failed to load scenes from repository")
		} else if len(scenes) > 0 {
			collection.Hydrate(scenes)
			logrus.WithField("count", len(scenes)).Info("collection restored from repository")
		}
	}

	runner := generator.NewRunner(collection, sceneSource, repo)
	imageService := service.NewImageService(collection, repo, store, imageSource)

	httpHandler, err := api.NewHTTPHandler(cfg, repo, store, collection, runner, imageService)
	if err != nil {
		logrus.WithError(err).Error("failed to initialise http handler")
		return
	}

	// 设置Gin模式
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// 添加中间件
	r.Use(LoggingMiddleware())
	r.Use(CORSMiddleware())
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	apiGroup := r.Group("/api")

	authGroup := apiGroup.Group("/auth")
	authGroup.GET("/status", httpHandler.AuthStatus)
	authGroup.POST("/register", httpHandler.Register)
	authGroup.POST("/login", httpHandler.Login)
	authGroup.GET("/me", httpHandler.AuthMiddleware(), httpHandler.Me)

	generation := apiGroup.Group("/generation")
	generation.POST("/start", httpHandler.StartGeneration)
	generation.POST("/stop", httpHandler.StopGeneration)
	generation.GET("/stats", httpHandler.GenerationStats)
	generation.GET("/credentials", httpHandler.CredentialsStatus)
	generation.GET("/events", httpHandler.StreamGenerationEvents)

	scenes := apiGroup.Group("/scenes")
	scenes.GET("", httpHandler.ListScenes)
	scenes.GET("/export", httpHandler.ExportScenes)
	scenes.POST("/thumbnails", httpHandler.WarmThumbnails)
	scenes.POST("/:id/favorite", httpHandler.ToggleFavorite)
	scenes.POST("/:id/thumbnail", httpHandler.RequestThumbnail)
	scenes.POST("/:id/highres", httpHandler.RequestHighRes)
	scenes.DELETE("", httpHandler.AuthMiddleware(), httpHandler.RequireAdmin(), httpHandler.ResetScenes)

	if localProvider, ok := store.(storage.LocalBaseDirProvider); ok {
		publicPrefix := strings.TrimSpace(cfg.StoragePublicBaseURL)
		if publicPrefix == "" {
			publicPrefix = "/files"
		}
		if !strings.HasPrefix(publicPrefix, "http://") && !strings.HasPrefix(publicPrefix, "https://") {
			if !strings.HasPrefix(publicPrefix, "/") {
				publicPrefix = "/" + publicPrefix
			}
			r.Static(publicPrefix, localProvider.LocalBaseDir())
		}
	}

	//前端资源
	r.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(indexHTML))
	})

	serverHost := fmt.Sprintf("0.0.0.0:%s", cfg.HTTPPort)
	logger.WithField("host", serverHost).Info("服务器启动")
	// 创建HTTP服务器
	httpServer := &http.Server{
		Addr:         serverHost,
		Handler:      r,
		ReadTimeout:  900 * time.Second,
		WriteTimeout: 900 * time.Second,
		IdleTimeout:  1200 * time.Second,
	}
	err = httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		logger.WithError(err).Error("服务器启动失败")
	}
}

// CORSMiddleware CORS跨域中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		c.Header("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// LoggingMiddleware 日志记录中间件
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		// 处理请求
		c.Next()
		// 记录请求结束
		duration := time.Since(start)
		logrus.WithFields(logrus.Fields{
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    c.Writer.Status(),
			"duration":  duration.String(),
			"size":      c.Writer.Size(),
			"client_ip": c.ClientIP(),
		}).Info("http_request")
	}
}
