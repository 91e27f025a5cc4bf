package api

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"povgallery/internal/auth"
	"povgallery/internal/config"
	"povgallery/internal/entity"
	"povgallery/internal/gallery"
	"povgallery/internal/generator"
	"povgallery/internal/model"
	"povgallery/internal/service"
	"povgallery/internal/storage"
)

// HTTPHandler HTTP 请求处理器
type HTTPHandler struct {
	cfg               config.Config
	repo              model.Repository
	storage           storage.Storage
	storagePublicBase string
	authManager       *auth.Manager

	// 核心状态与服务层
	collection   *gallery.Collection
	runner       *generator.Runner
	imageService *service.ImageService

	// SSE 客户端管理
	sseClients map[string]chan sseMessage
	sseMu      sync.Mutex
}

// NewHTTPHandler 创建 HTTP 处理器实例
func NewHTTPHandler(cfg config.Config, repo model.Repository, store storage.Storage, collection *gallery.Collection, runner *generator.Runner, imageService *service.ImageService) (*HTTPHandler, error) {
	expiry := time.Duration(cfg.JWTExpirationMinutes) * time.Minute
	authManager, err := auth.NewManager(cfg.JWTSecret, cfg.JWTIssuer, expiry)
	if err != nil {
		return nil, err
	}

	handler := &HTTPHandler{
		cfg:               cfg,
		repo:              repo,
		storage:           store,
		storagePublicBase: normalisePublicBase(cfg.StoragePublicBaseURL),
		authManager:       authManager,
		collection:        collection,
		runner:            runner,
		imageService:      imageService,
		sseClients:        make(map[string]chan sseMessage),
	}

	// 生成循环与图片服务的事件统一经由 SSE 广播
	runner.SetNotifyFunc(handler.notifyGenerationEvent)
	imageService.SetNotifyFunc(handler.notifySceneEvent)

	return handler, nil
}

// normalisePublicBase 规范化公共 URL 基础路径
func normalisePublicBase(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		trimmed = "/files"
	}
	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		return strings.TrimRight(trimmed, "/")
	}
	if !strings.HasPrefix(trimmed, "/") {
		trimmed = "/" + trimmed
	}
	return strings.TrimRight(trimmed, "/")
}

// publicURL 把存储相对路径转换为前端可访问的 URL
func (h *HTTPHandler) publicURL(path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") || strings.HasPrefix(trimmed, "data:") {
		return trimmed
	}
	base := h.storagePublicBase
	if base == "" {
		base = "/files"
	}
	return fmt.Sprintf("%s/%s", strings.TrimRight(base, "/"), strings.TrimLeft(trimmed, "/"))
}

// notifyGenerationEvent 把生成循环进度推送给所有客户端
func (h *HTTPHandler) notifyGenerationEvent(event string, payload map[string]interface{}) {
	h.broadcastSSEMessage(sseMessage{event: event, data: payload})
}

// notifySceneEvent 把单条记录的图片状态变化推送给所有客户端
func (h *HTTPHandler) notifySceneEvent(event string, scene entity.Scene, errMsg string) {
	payload := map[string]interface{}{
		"scene": h.makeSceneView(scene),
	}
	if trimmed := strings.TrimSpace(errMsg); trimmed != "" {
		payload["error"] = trimmed
	}
	h.broadcastSSEMessage(sseMessage{event: event, data: payload})
}
