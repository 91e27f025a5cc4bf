package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"povgallery/internal/entity"

	"github.com/sirupsen/logrus"
)

const (
	geminiDefaultBaseURL    = "https://generativelanguage.googleapis.com"
	geminiDefaultSceneModel = "gemini-2.5-flash"
	geminiDefaultImageModel = "gemini-2.5-flash-image-preview"

	// sceneTemperature 固定高温采样以最大化批次内的多样性
	sceneTemperature = 1.0
)

// GeminiService 通过 Google 生成式接口产出场景批次与单张图片。
// 每次出站调用都新建 http.Client 并显式携带凭证，进程内不持有可变的共享客户端。
type GeminiService struct {
	apiKey     string
	sceneModel string
	imageModel string
	baseURL    string
}

// NewGeminiService 创建 Gemini 内容源。模型名为空时使用默认值。
func NewGeminiService(apiKey, sceneModel, imageModel string) *GeminiService {
	if strings.TrimSpace(sceneModel) == "" {
		sceneModel = geminiDefaultSceneModel
	}
	if strings.TrimSpace(imageModel) == "" {
		imageModel = geminiDefaultImageModel
	}
	return &GeminiService{
		apiKey:     strings.TrimSpace(apiKey),
		sceneModel: sceneModel,
		imageModel: imageModel,
		baseURL:    geminiDefaultBaseURL,
	}
}

// Ready 在任何网络调用之前校验凭证
func (g *GeminiService) Ready() error {
	if g == nil || g.apiKey == "" {
		return ErrMissingCredential
	}
	return nil
}

// Request payload pieces ----------------------------------------------------
type (
	geminiInlineData struct {
		MimeType string `json:"mimeType,omitempty"`
		Data     string `json:"data,omitempty"`
	}
	geminiPart struct {
		Text       string            `json:"text,omitempty"`
		InlineData *geminiInlineData `json:"inlineData,omitempty"`
	}
	geminiContent struct {
		Role  string       `json:"role,omitempty"`
		Parts []geminiPart `json:"parts"`
	}
	geminiGenerationConfig struct {
		Temperature      float32       `json:"temperature,omitempty"`
		MaxOutputTokens  int           `json:"maxOutputTokens,omitempty"`
		ResponseMimeType string        `json:"responseMimeType,omitempty"`
		ResponseSchema   *geminiSchema `json:"responseSchema,omitempty"`
	}
	geminiRequest struct {
		SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
		Contents          []geminiContent         `json:"contents"`
		GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
	}
)

// Response payload pieces ---------------------------------------------------
type (
	geminiCandidate struct {
		FinishReason string        `json:"finishReason,omitempty"`
		Content      geminiContent `json:"content"`
	}
	geminiResponse struct {
		Candidates []geminiCandidate `json:"candidates"`
	}
)

// sceneFields 结构化输出中单条场景的四个必填字段
type sceneFields struct {
	Description string `json:"description"`
	Category    string `json:"category"`
	Lighting    string `json:"lighting"`
	Camera      string `json:"camera"`
}

// GenerateScenes 请求一批结构化场景记录。
//
// 响应必须匹配固定的 responseSchema；合法 JSON 但为空或无法解析的文本
// 产出零条草稿而不是编造记录。ID 按位置分配：第 i 条获得 StartID+i。
func (g *GeminiService) GenerateScenes(ctx context.Context, req GenerateScenesRequest) ([]SceneDraft, error) {
	if err := g.Ready(); err != nil {
		return nil, err
	}
	if req.Count <= 0 {
		return nil, nil
	}

	logger := providerLogger(ctx, "gemini", g.sceneModel)
	logger.WithFields(logrus.Fields{
		"start_id":   req.StartID,
		"count":      req.Count,
		"categories": strings.Join(req.Categories, ","),
	}).Info("gemini_generate_scenes_start")

	payload := geminiRequest{
		SystemInstruction: &geminiContent{
			Parts: []geminiPart{{Text: scenePersona}},
		},
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: buildScenePrompt(req.Count, req.Categories)}}},
		},
		GenerationConfig: &geminiGenerationConfig{
			Temperature:      sceneTemperature,
			ResponseMimeType: "application/json",
			ResponseSchema:   sceneResponseSchema(),
		},
	}

	resp, err := g.generateContent(ctx, g.sceneModel, payload)
	if err != nil {
		return nil, err
	}

	raw := collectText(resp)
	if strings.TrimSpace(raw) == "" {
		logger.Warn("gemini_generate_scenes_empty_response")
		return nil, nil
	}

	var items []sceneFields
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		logger.WithError(err).WithField("body_preview", logSnippet(raw)).Warn("gemini_generate_scenes_unparseable")
		return nil, nil
	}

	if len(items) > req.Count {
		logger.WithFields(logrus.Fields{
			"requested": req.Count,
			"returned":  len(items),
		}).Warn("gemini_generate_scenes_overflow_truncated")
		items = items[:req.Count]
	}

	drafts := make([]SceneDraft, 0, len(items))
	for i, item := range items {
		category := strings.TrimSpace(item.Category)
		if category == "" {
			category = entity.CategoryFallback
		}
		drafts = append(drafts, SceneDraft{
			ID:          req.StartID + uint(i),
			Description: strings.TrimSpace(item.Description),
			Category:    category,
			Lighting:    strings.TrimSpace(item.Lighting),
			Camera:      strings.TrimSpace(item.Camera),
		})
	}

	logger.WithField("draft_count", len(drafts)).Info("gemini_generate_scenes_done")
	return drafts, nil
}

// GenerateImage 针对一段场景描述请求单张图片。
// 返回 (nil, nil) 表示响应没有图片部分，属于合法结果而非错误。
func (g *GeminiService) GenerateImage(ctx context.Context, prompt string) (*ImageResult, error) {
	if err := g.Ready(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("prompt is empty")
	}

	logger := providerLogger(ctx, "gemini", g.imageModel)
	logger.WithFields(logrus.Fields{
		"prompt_preview": logSnippet(prompt),
		"prompt_length":  len([]rune(prompt)),
	}).Info("gemini_generate_image_start")

	payload := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: prompt}}},
		},
		GenerationConfig: &geminiGenerationConfig{
			Temperature:     0.8,
			MaxOutputTokens: 2048,
		},
	}

	resp, err := g.generateContent(ctx, g.imageModel, payload)
	if err != nil {
		return nil, err
	}

	for _, cand := range resp.Candidates {
		for _, part := range cand.Content.Parts {
			if part.InlineData == nil || strings.TrimSpace(part.InlineData.Data) == "" {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(part.InlineData.Data))
			if err != nil {
				return nil, fmt.Errorf("gemini decode inline image: %w", err)
			}
			mimeType := strings.TrimSpace(part.InlineData.MimeType)
			if mimeType == "" {
				mimeType = "image/png"
			}
			logger.WithFields(logrus.Fields{
				"mime":       mimeType,
				"size_bytes": len(data),
			}).Info("gemini_generate_image_done")
			return &ImageResult{Data: data, MimeType: mimeType}, nil
		}
	}

	// 没有内嵌图片部分：合法结果，调用方据此回退
	logger.Info("gemini_generate_image_no_image_part")
	return nil, nil
}

// generateContent 对指定模型发起一次非流式 generateContent 调用。
// 凭证通过请求头携带，避免出现在 URL 与日志里。
func (g *GeminiService) generateContent(ctx context.Context, model string, payload geminiRequest) (*geminiResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("gemini marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", strings.TrimRight(g.baseURL, "/"), model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gemini create request: %w", err)
	}
	req.Header.Set("x-goog-api-key", g.apiKey)
	req.Header.Set("Content-Type", "application/json")

	httpCli := &http.Client{}
	resp, err := httpCli.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gemini read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyGeminiError(resp.StatusCode, respBody)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("gemini unmarshal response: %w", err)
	}
	return &parsed, nil
}

// classifyGeminiError 将 HTTP 错误映射为可区分的错误类型。
// 权限拒绝单独分类，调用方向用户展示不同的提示。
func classifyGeminiError(status int, body []byte) error {
	if status == http.StatusForbidden || bytes.Contains(body, []byte("PERMISSION_DENIED")) {
		return fmt.Errorf("gemini http %d: %w", status, ErrPermissionDenied)
	}
	return fmt.Errorf("gemini http %d: %s", status, logSnippet(string(body)))
}

// collectText 拼接响应候选里的全部文本部分
func collectText(resp *geminiResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		for _, part := range cand.Content.Parts {
			if part.Text == "" {
				continue
			}
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

var _ SceneSource = (*GeminiService)(nil)
var _ ImageSource = (*GeminiService)(nil)
