package llm

import (
	"fmt"
	"strings"
)

// scenePersona 批量场景生成使用的系统人设指令
const scenePersona = "You are a cinematic concept director who writes vivid first-person " +
	"point-of-view scene ideas for short films. Every scene is experienced through the " +
	"viewer's own eyes."

// highResSuffix 追加到高清图请求提示词上的质量约束
const highResSuffix = ", ultra detailed, 4k, cinematic lighting, photorealistic, first-person POV"

// buildScenePrompt 组装一次批量请求的用户提示词：目标数量、分类倾向与长度约束。
func buildScenePrompt(count int, categories []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate %d unique first-person POV scene concepts.\n", count)
	if len(categories) > 0 {
		fmt.Fprintf(&b, "Bias the scenes toward these categories: %s.\n", strings.Join(categories, ", "))
	}
	b.WriteString("Each description must be a single sentence of roughly 10 to 20 words, ")
	b.WriteString("written from the viewer's perspective. ")
	b.WriteString("For each scene also provide a category label, a lighting descriptor, and a camera descriptor.")
	return b.String()
}

// BuildHighResPrompt 将场景描述扩展为高清图请求的提示词
func BuildHighResPrompt(description string) string {
	return strings.TrimSpace(description) + highResSuffix
}

// BuildThumbnailPrompt 缩略图请求使用场景描述本身
func BuildThumbnailPrompt(description string) string {
	return strings.TrimSpace(description)
}

// geminiSchema 结构化输出约束（Gemini responseSchema 的最小子集）
type geminiSchema struct {
	Type       string                   `json:"type"`
	Items      *geminiSchema            `json:"items,omitempty"`
	Properties map[string]*geminiSchema `json:"properties,omitempty"`
	Required   []string                 `json:"required,omitempty"`
}

// sceneResponseSchema 固定的机器可校验输出模式：
// 对象数组，四个字段均为必填字符串。
func sceneResponseSchema() *geminiSchema {
	return &geminiSchema{
		Type: "ARRAY",
		Items: &geminiSchema{
			Type: "OBJECT",
			Properties: map[string]*geminiSchema{
				"description": {Type: "STRING"},
				"category":    {Type: "STRING"},
				"lighting":    {Type: "STRING"},
				"camera":      {Type: "STRING"},
			},
			Required: []string{"description", "category", "lighting", "camera"},
		},
	}
}
