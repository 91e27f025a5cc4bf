package gallery

import (
	"fmt"
	"strings"
	"sync"

	"povgallery/internal/entity"
)

// ImageKind 区分记录上两类互相独立的图片请求
type ImageKind string

const (
	// ImageKindThumbnail 默认缩略图请求
	ImageKindThumbnail ImageKind = "thumbnail"
	// ImageKindHighRes 显式发起的高清图请求
	ImageKindHighRes ImageKind = "highres"
)

// Collection 维护有序的场景集合。
//
// 集合在生成期间只追加，单条记录的状态变更以整条替换的方式原子完成，
// 其余记录保持原样。读路径返回副本，调用方不会观察到中间状态。
type Collection struct {
	mu     sync.RWMutex
	scenes []entity.Scene
	index  map[uint]int
}

// NewCollection 创建空集合
func NewCollection() *Collection {
	return &Collection{
		index: make(map[uint]int),
	}
}

// Hydrate 用已持久化的记录整体替换集合内容（仅在启动时调用）。
// 瞬态生成标记不保留。
func (c *Collection) Hydrate(scenes []entity.Scene) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.scenes = make([]entity.Scene, 0, len(scenes))
	c.index = make(map[uint]int, len(scenes))
	for _, scene := range scenes {
		scene.IsGeneratingThumbnail = false
		scene.IsGeneratingHighRes = false
		c.index[scene.ID] = len(c.scenes)
		c.scenes = append(c.scenes, scene)
	}
}

// Len 返回集合当前长度
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.scenes)
}

// NextID 返回下一条记录应使用的 ID（1 起始、连续）
func (c *Collection) NextID() uint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return uint(len(c.scenes)) + 1
}

// Append 按接收顺序追加一批记录，返回追加后的集合长度。
// ID 已存在的记录会被跳过，保证 ID 唯一且不被重新分配。
func (c *Collection) Append(scenes []entity.Scene) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, scene := range scenes {
		if _, exists := c.index[scene.ID]; exists {
			continue
		}
		c.index[scene.ID] = len(c.scenes)
		c.scenes = append(c.scenes, scene)
	}
	return len(c.scenes)
}

// Get 按 ID 查找记录
func (c *Collection) Get(id uint) (entity.Scene, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	pos, ok := c.index[id]
	if !ok {
		return entity.Scene{}, false
	}
	return c.scenes[pos], true
}

// All 返回全部记录的副本，保持生成顺序
func (c *Collection) All() []entity.Scene {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]entity.Scene, len(c.scenes))
	copy(out, c.scenes)
	return out
}

// replace 以副本替换的方式更新单条记录
func (c *Collection) replace(id uint, mutate func(scene entity.Scene) entity.Scene) (entity.Scene, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pos, ok := c.index[id]
	if !ok {
		return entity.Scene{}, false
	}
	updated := mutate(c.scenes[pos])
	updated.ID = id
	c.scenes[pos] = updated
	return updated, true
}

// ToggleFavorite 翻转指定记录的收藏标记，其余记录不受影响
func (c *Collection) ToggleFavorite(id uint) (entity.Scene, bool) {
	return c.replace(id, func(scene entity.Scene) entity.Scene {
		scene.IsFavorite = !scene.IsFavorite
		return scene
	})
}

// BeginImage 尝试将记录的图片状态从 absent/present 置为 pending。
// 同类请求已在途时返回 false，调用方不得发起第二个请求。
func (c *Collection) BeginImage(id uint, kind ImageKind) (entity.Scene, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pos, ok := c.index[id]
	if !ok {
		return entity.Scene{}, false
	}

	scene := c.scenes[pos]
	switch kind {
	case ImageKindThumbnail:
		if scene.IsGeneratingThumbnail {
			return entity.Scene{}, false
		}
		scene.IsGeneratingThumbnail = true
	case ImageKindHighRes:
		if scene.IsGeneratingHighRes {
			return entity.Scene{}, false
		}
		scene.IsGeneratingHighRes = true
	default:
		return entity.Scene{}, false
	}

	c.scenes[pos] = scene
	return scene, true
}

// FinishImage 记录图片请求成功：写入 URL 并清除在途标记
func (c *Collection) FinishImage(id uint, kind ImageKind, url string) (entity.Scene, bool) {
	return c.replace(id, func(scene entity.Scene) entity.Scene {
		switch kind {
		case ImageKindThumbnail:
			scene.ThumbnailURL = url
			scene.IsGeneratingThumbnail = false
		case ImageKindHighRes:
			scene.HighResURL = url
			scene.IsGeneratingHighRes = false
		}
		return scene
	})
}

// AbortImage 记录图片请求结束但无结果（空响应或失败）：
// 仅清除在途标记，已有的 URL 不会被清空。
func (c *Collection) AbortImage(id uint, kind ImageKind) (entity.Scene, bool) {
	return c.replace(id, func(scene entity.Scene) entity.Scene {
		switch kind {
		case ImageKindThumbnail:
			scene.IsGeneratingThumbnail = false
		case ImageKindHighRes:
			scene.IsGeneratingHighRes = false
		}
		return scene
	})
}

// Page 计算过滤加分页后的视图切片。
//
// favorites 过滤保持原始顺序；页码从 1 起，页大小固定时
// 页数为 ceil(过滤后长度/页大小)，越界页码返回空切片。
func (c *Collection) Page(query entity.SceneQuery) ([]entity.Scene, entity.Meta) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	pageSize := query.PageSize
	if pageSize <= 0 {
		pageSize = entity.PageSize
	}
	page := query.Page
	if page <= 0 {
		page = 1
	}

	filtered := c.scenes
	if query.FavoritesOnly {
		filtered = make([]entity.Scene, 0)
		for _, scene := range c.scenes {
			if scene.IsFavorite {
				filtered = append(filtered, scene)
			}
		}
	}

	total := len(filtered)
	pageCount := (total + pageSize - 1) / pageSize

	meta := entity.Meta{
		Total:     int64(total),
		Page:      int64(page),
		PageSize:  int64(pageSize),
		PageCount: int64(pageCount),
	}

	start := (page - 1) * pageSize
	if start >= total {
		return []entity.Scene{}, meta
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	out := make([]entity.Scene, end-start)
	copy(out, filtered[start:end])
	return out, meta
}

// ExportText 渲染可下载的清单文本，每条记录一行。
func (c *Collection) ExportText() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	lines := make([]string, 0, len(c.scenes))
	for _, scene := range c.scenes {
		lines = append(lines, fmt.Sprintf("%d. [%s] %s", scene.ID, scene.Category, scene.Description))
	}
	return strings.Join(lines, "\n")
}
