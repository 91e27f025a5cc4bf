package llm

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/volcengine/volcengine-go-sdk/service/arkruntime"
	volcModel "github.com/volcengine/volcengine-go-sdk/service/arkruntime/model"
	"github.com/volcengine/volcengine-go-sdk/volcengine"
)

const volcengineDefaultImageModel = "doubao-seedream-4-0-250828"

// VolcengineService 火山引擎图片后端（Doubao Seedream），仅实现单图请求。
// 客户端按调用新建，凭证始终来自当前配置。
type VolcengineService struct {
	apiKey string
	model  string
}

// NewVolcengineService 创建火山引擎图片源
func NewVolcengineService(apiKey, model string) *VolcengineService {
	if strings.TrimSpace(model) == "" {
		model = volcengineDefaultImageModel
	}
	return &VolcengineService{
		apiKey: strings.TrimSpace(apiKey),
		model:  model,
	}
}

// Ready 校验凭证可用性
func (v *VolcengineService) Ready() error {
	if v == nil || v.apiKey == "" {
		return ErrMissingCredential
	}
	return nil
}

// GenerateImage 流式请求一张图片，返回可下载的 URL。
// 流结束时没有任何图片事件返回 (nil, nil)。
func (v *VolcengineService) GenerateImage(ctx context.Context, prompt string) (*ImageResult, error) {
	if err := v.Ready(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("prompt is empty")
	}

	logger := providerLogger(ctx, "volcengine", v.model)
	logger.WithField("prompt_preview", logSnippet(prompt)).Info("volcengine_generate_image_start")

	client := arkruntime.NewClientWithApiKey(v.apiKey)

	var sequential volcModel.SequentialImageGeneration = "disabled"
	generateReq := volcModel.GenerateImagesRequest{
		Model:                     v.model,
		Prompt:                    prompt,
		Size:                      volcengine.String("2K"),
		ResponseFormat:            volcengine.String(volcModel.GenerateImagesResponseFormatURL),
		Watermark:                 volcengine.Bool(false),
		SequentialImageGeneration: &sequential,
	}

	stream, err := client.GenerateImagesStreaming(ctx, generateReq)
	if err != nil {
		return nil, fmt.Errorf("volcengine start stream: %w", err)
	}
	defer stream.Close()

	var imageURL string
	for {
		recv, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("volcengine stream recv: %w", err)
		}
		if recv.Error != nil && strings.TrimSpace(recv.Error.Message) != "" {
			logger.WithFields(logrus.Fields{
				"code":    recv.Error.Code,
				"message": recv.Error.Message,
			}).Error("volcengine_generate_image_error_event")
			if strings.EqualFold(recv.Error.Code, "AccessDenied") {
				return nil, fmt.Errorf("volcengine %s: %w", recv.Error.Code, ErrPermissionDenied)
			}
			return nil, fmt.Errorf("volcengine %s: %s", recv.Error.Code, recv.Error.Message)
		}
		if recv.Type == "image_generation.partial_succeeded" && recv.Url != nil {
			imageURL = *recv.Url
		}
	}

	if imageURL == "" {
		logger.Info("volcengine_generate_image_no_image")
		return nil, nil
	}

	logger.WithField("url", logSnippet(imageURL)).Info("volcengine_generate_image_done")
	return &ImageResult{URL: imageURL}, nil
}

var _ ImageSource = (*VolcengineService)(nil)
