package llm

import (
	"context"
	"errors"
)

// ErrMissingCredential 表示内容源缺少访问凭证，必须在任何网络调用之前失败。
// 调用方应提示用户补充凭证，而不是当作一次生成失败处理。
var ErrMissingCredential = errors.New("content source credential is not configured")

// ErrPermissionDenied 表示远端以权限不足拒绝了请求。
// 图片请求的调用方据此向用户展示与普通失败不同的提示。
var ErrPermissionDenied = errors.New("content source rejected the request: permission denied")

// IsPermissionDenied 判断错误链中是否包含权限拒绝
func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

// GenerateScenesRequest 一次批量场景请求。
//
// StartID 是本批第一条记录的 ID，返回的第 i 条记录获得 StartID+i。
// Categories 是本批倾向的目标分类子集，内容源尽力而为，不强制拒绝集外分类。
type GenerateScenesRequest struct {
	StartID    uint
	Count      int
	Categories []string
}

// SceneDraft 内容源产出的一条场景草稿，ID 由调用协议按位置分配。
type SceneDraft struct {
	ID          uint
	Description string
	Category    string
	Lighting    string
	Camera      string

	// ThumbnailURL 仅本地程序化后端填充（确定性占位图）
	ThumbnailURL string
}

// ImageResult 单张图片请求的结果。Data/MimeType 与 URL 二选一：
// 远端返回内嵌载荷时填充前者，返回可访问链接时填充后者。
type ImageResult struct {
	Data     []byte
	MimeType string
	URL      string
}

// SceneSource 批量产出场景记录的内容源。
type SceneSource interface {
	// Ready 检查凭证可用性；不可用时返回 ErrMissingCredential，
	// 任何网络请求都不得发起。
	Ready() error

	// GenerateScenes 产出至多 req.Count 条草稿。结构异常或空响应
	// 返回零条草稿而非编造记录；网络/协议错误以 error 抛出。
	GenerateScenes(ctx context.Context, req GenerateScenesRequest) ([]SceneDraft, error)
}

// ImageSource 针对单条记录的图片生成源。
// 返回 (nil, nil) 表示响应中没有图片部分，是合法的非错误结果。
type ImageSource interface {
	GenerateImage(ctx context.Context, prompt string) (*ImageResult, error)
}
