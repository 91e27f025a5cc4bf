package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"povgallery/internal/entity"
	"povgallery/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SceneListResponse 场景列表响应
type SceneListResponse struct {
	Scenes []entity.Scene `json:"scenes"`
	Meta   entity.Meta    `json:"meta"`
}

// WarmThumbnailsRequest 批量缩略图预热请求
type WarmThumbnailsRequest struct {
	IDs []uint `json:"ids"`
}

// ListScenes 按页返回场景记录，favorites=true 时只看收藏。
func (h *HTTPHandler) ListScenes(c *gin.Context) {
	query := entity.SceneQuery{Page: 1, PageSize: entity.PageSize}

	if raw := strings.TrimSpace(c.Query("page")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			BadRequest(c, ErrCodeInvalidRequest, "page must be a positive integer")
			return
		}
		query.Page = parsed
	}
	if raw := strings.TrimSpace(c.Query("favorites")); raw != "" {
		query.FavoritesOnly = raw == "true" || raw == "1"
	}

	scenes, meta := h.collection.Page(query)
	items := make([]entity.Scene, 0, len(scenes))
	for _, scene := range scenes {
		items = append(items, h.makeSceneView(scene))
	}

	c.JSON(http.StatusOK, SceneListResponse{Scenes: items, Meta: meta})
}

// ToggleFavorite 切换一条记录的收藏标记
func (h *HTTPHandler) ToggleFavorite(c *gin.Context) {
	id, ok := parseSceneID(c)
	if !ok {
		return
	}

	scene, found := h.collection.ToggleFavorite(id)
	if !found {
		NotFound(c, ErrCodeSceneNotFound, "scene not found")
		return
	}

	h.imageService.PersistFavorite(scene.ID, scene.IsFavorite)
	c.JSON(http.StatusOK, h.makeSceneView(scene))
}

// RequestThumbnail 为一条记录发起异步缩略图生成
func (h *HTTPHandler) RequestThumbnail(c *gin.Context) {
	id, ok := parseSceneID(c)
	if !ok {
		return
	}

	scene, err := h.imageService.RequestThumbnail(id)
	if err != nil {
		if errors.Is(err, service.ErrSceneNotFound) {
			NotFound(c, ErrCodeSceneNotFound, "scene not found")
			return
		}
		InternalError(c, "failed to request thumbnail")
		return
	}

	c.JSON(http.StatusAccepted, h.makeSceneView(scene))
}

// RequestHighRes 为一条记录发起异步高清图生成
func (h *HTTPHandler) RequestHighRes(c *gin.Context) {
	id, ok := parseSceneID(c)
	if !ok {
		return
	}

	scene, err := h.imageService.RequestHighRes(id)
	if err != nil {
		if errors.Is(err, service.ErrSceneNotFound) {
			NotFound(c, ErrCodeSceneNotFound, "scene not found")
			return
		}
		InternalError(c, "failed to request high-res image")
		return
	}

	c.JSON(http.StatusAccepted, h.makeSceneView(scene))
}

// WarmThumbnails 为一组记录批量预热缩略图
func (h *HTTPHandler) WarmThumbnails(c *gin.Context) {
	var req WarmThumbnailsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}
	if len(req.IDs) == 0 {
		MissingField(c, "ids")
		return
	}

	accepted := h.imageService.WarmThumbnails(req.IDs)
	c.JSON(http.StatusAccepted, gin.H{"accepted": accepted})
}

// ExportScenes 导出全部记录为纯文本附件
func (h *HTTPHandler) ExportScenes(c *gin.Context) {
	text := h.collection.ExportText()

	c.Header("Content-Disposition", `attachment; filename="pov-scene-list.txt"`)
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(text))
}

// ResetScenes 清空集合与数据库记录（管理员操作）
func (h *HTTPHandler) ResetScenes(c *gin.Context) {
	h.runner.Stop()
	h.collection.Hydrate(nil)

	if h.repo != nil {
		ctx := c.Request.Context()
		if err := h.repo.DeleteAllScenes(ctx); err != nil {
			logrus.WithError(err).Error("failed to clear scene records")
			InternalError(c, "failed to clear scene records")
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"cleared": true})
}

// makeSceneView 把内部记录转换为对外视图，存储相对路径转成公共 URL。
func (h *HTTPHandler) makeSceneView(scene entity.Scene) entity.Scene {
	scene.ThumbnailURL = h.publicURL(scene.ThumbnailURL)
	scene.HighResURL = h.publicURL(scene.HighResURL)
	return scene
}

func parseSceneID(c *gin.Context) (uint, bool) {
	raw := strings.TrimSpace(c.Param("id"))
	parsed, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || parsed == 0 {
		BadRequest(c, ErrCodeInvalidRequest, "invalid scene id")
		return 0, false
	}
	return uint(parsed), true
}
