package llm

import (
	"fmt"
	"strings"

	"povgallery/internal/config"
)

// 内容源驱动名
const (
	SourceGemini     = "gemini"
	SourceLocal      = "local"
	SourceVolcengine = "volcengine"
)

// NewSceneSource 按驱动名实例化场景内容源
func NewSceneSource(cfg config.Config, source string) (SceneSource, error) {
	switch normalizeSource(source, cfg.GenerationSource) {
	case SourceGemini:
		return NewGeminiService(cfg.GeminiAPIKey, cfg.GeminiSceneModel, cfg.GeminiImageModel), nil
	case SourceLocal:
		return NewLocalService(), nil
	default:
		return nil, fmt.Errorf("unsupported scene source: %s", source)
	}
}

// NewImageSource 按驱动名实例化图片源。
// IMAGE_SOURCE 未配置时跟随场景源，保证纯本地部署不会意外走远程图片源。
func NewImageSource(cfg config.Config, source string) (ImageSource, error) {
	switch normalizeSource(source, cfg.ImageSource, cfg.GenerationSource) {
	case SourceGemini:
		return NewGeminiService(cfg.GeminiAPIKey, cfg.GeminiSceneModel, cfg.GeminiImageModel), nil
	case SourceVolcengine:
		return NewVolcengineService(cfg.VolcengineAPIKey, cfg.VolcengineImageModel), nil
	case SourceLocal:
		return NewLocalService(), nil
	default:
		return nil, fmt.Errorf("unsupported image source: %s", source)
	}
}

// normalizeSource 取第一个非空的驱动名，全部为空时回落到 gemini
func normalizeSource(source string, fallbacks ...string) string {
	for _, candidate := range append([]string{source}, fallbacks...) {
		if trimmed := strings.ToLower(strings.TrimSpace(candidate)); trimmed != "" {
			return trimmed
		}
	}
	return SourceGemini
}
