package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"povgallery/internal/entity"
	"povgallery/internal/gallery"
	"povgallery/internal/llm"
	"povgallery/internal/model"
	"povgallery/internal/storage"
	"povgallery/internal/utils"

	"github.com/sirupsen/logrus"
)

// ErrSceneNotFound 表示请求的记录不在集合中。
var ErrSceneNotFound = errors.New("scene not found")

// 事件名（通过 SSE 推送给前端）
const (
	EventSceneUpdated     = "scene_updated"
	EventSceneImageFailed = "scene_image_failed"
)

// warmChunkSize 批量预热缩略图时每组并发的请求数，
// 组间串行以免一次打穿上游配额。
const warmChunkSize = 3

// ImageService 负责单条记录的缩略图与高清图生成编排：
// 置位 pending 状态、调用图片源、落存储、回写集合与数据库、推送事件。
type ImageService struct {
	collection *gallery.Collection
	repo       model.Repository
	storage    storage.Storage
	source     llm.ImageSource

	// notifyFunc 用于向所有 SSE 客户端广播记录变更（由调用方设置）
	notifyFunc func(event string, scene entity.Scene, errMsg string)
}

// NewImageService 创建图片服务实例
func NewImageService(collection *gallery.Collection, repo model.Repository, store storage.Storage, source llm.ImageSource) *ImageService {
	return &ImageService{
		collection: collection,
		repo:       repo,
		storage:    store,
		source:     source,
	}
}

// SetNotifyFunc 设置通知函数（用于 SSE 推送）
func (s *ImageService) SetNotifyFunc(fn func(event string, scene entity.Scene, errMsg string)) {
	s.notifyFunc = fn
}

// RequestThumbnail 为一条记录发起异步缩略图生成。
// 同类请求进行中时静默忽略，直接返回当前快照。
func (s *ImageService) RequestThumbnail(id uint) (entity.Scene, error) {
	return s.request(id, gallery.ImageKindThumbnail)
}

// RequestHighRes 为一条记录发起异步高清图生成。
func (s *ImageService) RequestHighRes(id uint) (entity.Scene, error) {
	return s.request(id, gallery.ImageKindHighRes)
}

func (s *ImageService) request(id uint, kind gallery.ImageKind) (entity.Scene, error) {
	scene, ok := s.collection.Get(id)
	if !ok {
		return entity.Scene{}, ErrSceneNotFound
	}

	pending, started := s.collection.BeginImage(id, kind)
	if !started {
		// 同类生成已在进行中，重复请求不再排队
		return scene, nil
	}

	go s.handleImage(pending, kind)
	return pending, nil
}

// WarmThumbnails 批量预热一组记录的缩略图。
// 已有缩略图或生成中的记录被跳过；组内并发、组间串行。
func (s *ImageService) WarmThumbnails(ids []uint) int {
	var accepted []entity.Scene
	for _, id := range ids {
		scene, ok := s.collection.Get(id)
		if !ok || scene.HasThumbnail() {
			continue
		}
		pending, started := s.collection.BeginImage(id, gallery.ImageKindThumbnail)
		if !started {
			continue
		}
		accepted = append(accepted, pending)
	}

	if len(accepted) == 0 {
		return 0
	}

	go func(scenes []entity.Scene) {
		for start := 0; start < len(scenes); start += warmChunkSize {
			end := start + warmChunkSize
			if end > len(scenes) {
				end = len(scenes)
			}

			var wg sync.WaitGroup
			for _, scene := range scenes[start:end] {
				wg.Add(1)
				go func(sc entity.Scene) {
					defer wg.Done()
					s.handleImage(sc, gallery.ImageKindThumbnail)
				}(scene)
			}
			wg.Wait()
		}
	}(accepted)

	return len(accepted)
}

// handleImage 处理单张图片生成的核心逻辑
func (s *ImageService) handleImage(scene entity.Scene, kind gallery.ImageKind) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	var prompt string
	switch kind {
	case gallery.ImageKindHighRes:
		prompt = llm.BuildHighResPrompt(scene.Description)
	default:
		prompt = llm.BuildThumbnailPrompt(scene.Description)
	}

	logrus.WithFields(logrus.Fields{
		"scene_id": scene.ID,
		"kind":     string(kind),
	}).Info("scene_image_generate_start")

	result, err := s.source.GenerateImage(ctx, prompt)
	if err != nil {
		errMsg := err.Error()
		if llm.IsPermissionDenied(err) {
			errMsg = "image source rejected the request: permission denied"
		}
		logrus.WithError(err).WithFields(logrus.Fields{
			"scene_id": scene.ID,
			"kind":     string(kind),
		}).Error("scene_image_generate_failed")

		if aborted, ok := s.collection.AbortImage(scene.ID, kind); ok {
			s.notify(EventSceneImageFailed, aborted, errMsg)
		}
		return
	}

	if result == nil {
		// 源没有图片部分时已有的真实 URL 保持原值，不降级为占位图
		if current, exists := s.collection.Get(scene.ID); exists && hasImageURL(current, kind) {
			if aborted, ok := s.collection.AbortImage(scene.ID, kind); ok {
				s.notify(EventSceneUpdated, aborted, "")
			}
			return
		}
	}

	url, saveErr := s.resolveImageURL(ctx, scene.ID, kind, result)
	if saveErr != nil {
		logrus.WithError(saveErr).WithFields(logrus.Fields{
			"scene_id": scene.ID,
			"kind":     string(kind),
		}).Error("scene_image_persist_failed")

		if aborted, ok := s.collection.AbortImage(scene.ID, kind); ok {
			s.notify(EventSceneImageFailed, aborted, saveErr.Error())
		}
		return
	}

	updated, ok := s.collection.FinishImage(scene.ID, kind, url)
	if !ok {
		return
	}

	s.persistImage(scene.ID, kind, url)
	s.notify(EventSceneUpdated, updated, "")
}

// resolveImageURL 把图片源结果转换为可直接引用的 URL。
// 源返回原始字节时优先写入存储，存储不可用则退化为 data URL；
// 源没有返回任何图片部分（且记录尚无该类 URL）时使用确定性的占位图。
func (s *ImageService) resolveImageURL(ctx context.Context, sceneID uint, kind gallery.ImageKind, result *llm.ImageResult) (string, error) {
	if result == nil {
		if kind == gallery.ImageKindHighRes {
			return llm.PlaceholderHighResURL(sceneID), nil
		}
		return llm.PlaceholderImageURL(sceneID), nil
	}

	if strings.TrimSpace(result.URL) != "" {
		return strings.TrimSpace(result.URL), nil
	}

	if len(result.Data) == 0 {
		return "", fmt.Errorf("image source returned an empty result")
	}

	if s.storage == nil {
		return utils.BuildDataURL(result.MimeType, result.Data), nil
	}

	saveCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	ext := utils.ExtensionFromMime(result.MimeType)
	relPath, err := s.storage.Save(saveCtx, result.Data, storage.SaveOptions{
		Category:  string(kind),
		Extension: ext,
		BaseName:  buildImageBaseName(sceneID, kind),
	})
	if err != nil {
		return "", fmt.Errorf("persist image: %w", err)
	}
	return relPath, nil
}

// persistImage 把图片 URL 回写数据库
func (s *ImageService) persistImage(sceneID uint, kind gallery.ImageKind, url string) {
	if s.repo == nil || sceneID == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var updates entity.SceneUpdates
	switch kind {
	case gallery.ImageKindHighRes:
		updates.HighResURL = &url
	default:
		updates.ThumbnailURL = &url
	}

	if err := s.repo.UpdateScene(ctx, sceneID, updates); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"scene_id": sceneID,
		}).Warn("failed to persist scene image")
	}
}

// PersistFavorite 把收藏状态回写数据库
func (s *ImageService) PersistFavorite(sceneID uint, isFavorite bool) {
	if s.repo == nil || sceneID == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	updates := entity.SceneUpdates{IsFavorite: &isFavorite}
	if err := s.repo.UpdateScene(ctx, sceneID, updates); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"scene_id": sceneID,
		}).Warn("failed to persist favorite flag")
	}
}

// notify 广播记录变更
func (s *ImageService) notify(event string, scene entity.Scene, errMsg string) {
	if s.notifyFunc != nil {
		s.notifyFunc(event, scene, errMsg)
	}
}

// buildImageBaseName 构建图片文件的基础名称
func buildImageBaseName(sceneID uint, kind gallery.ImageKind) string {
	suffix := time.Now().UTC().UnixNano()
	return fmt.Sprintf("scene_%d_%s_%d", sceneID, string(kind), suffix)
}

// hasImageURL 判断记录是否已存在指定类别的图片 URL
func hasImageURL(scene entity.Scene, kind gallery.ImageKind) bool {
	if kind == gallery.ImageKindHighRes {
		return scene.HasHighRes()
	}
	return scene.HasThumbnail()
}
