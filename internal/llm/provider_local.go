package llm

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"povgallery/internal/entity"
)

// 程序化合成使用的固定词表
var (
	localMoods = []string{
		"tense", "serene", "frantic", "melancholic", "euphoric",
		"ominous", "curious", "defiant", "weightless", "feverish",
	}
	localLocations = []string{
		"neon-lit alley", "derelict space station", "abandoned hospital corridor",
		"rain-slicked rooftop", "endless desert highway", "bioluminescent cave",
		"crowded night market", "frozen mountain pass", "sunken cathedral",
		"overgrown greenhouse", "retro arcade", "clockwork factory floor",
		"storm-battered lighthouse", "canopy rope bridge", "silent snowfield",
	}
	localActions = []string{
		"sprinting toward the light", "reaching for a stranger's hand",
		"backing away slowly", "climbing against the wind",
		"drifting with the current", "chasing a flickering signal",
		"hiding behind cover", "stepping through a doorway",
		"scanning the horizon", "falling through open air",
	}
	localStyles = []string{
		"anamorphic lens flares", "grainy 16mm film", "clean digital clarity",
		"washed-out pastel tones", "high-contrast chiaroscuro", "soft dreamlike haze",
	}
	localLighting = []string{
		"flickering neon glow", "harsh overhead fluorescents", "golden hour backlight",
		"cold moonlight", "strobing emergency lights", "warm candlelight",
	}
)

// localCameraLabel 本地后端的固定机位描述
const localCameraLabel = "Handheld first-person POV"

// localLocationCategory 地点到分类的固定映射，未命中回退 General
var localLocationCategory = map[string]string{
	"neon-lit alley":               "Neon",
	"derelict space station":       "Space",
	"abandoned hospital corridor":  "Horror",
	"rain-slicked rooftop":         "Rain",
	"endless desert highway":       "Desert",
	"bioluminescent cave":          "Fantasy",
	"crowded night market":         "Urban",
	"frozen mountain pass":         "Mountain",
	"sunken cathedral":             "Underwater",
	"overgrown greenhouse":         "Forest",
	"retro arcade":                 "Retro",
	"clockwork factory floor":      "Steampunk",
	"storm-battered lighthouse":    "Ocean",
	"canopy rope bridge":           "Jungle",
	"silent snowfield":             "Winter",
}

// LocalService 无网络的程序化内容源：从固定词表独立均匀采样合成记录。
// 永不失败、永不阻塞，凭证检查恒为通过。
type LocalService struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewLocalService 创建本地内容源
func NewLocalService() *LocalService {
	return NewLocalServiceWithSeed(time.Now().UnixNano())
}

// NewLocalServiceWithSeed 使用固定种子创建本地内容源，测试用
func NewLocalServiceWithSeed(seed int64) *LocalService {
	return &LocalService{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Ready 本地后端没有凭证要求
func (l *LocalService) Ready() error {
	return nil
}

// GenerateScenes 合成一批场景记录。逐条独立采样（跨条目允许重复），
// 分类来自地点查表，描述为模板化句子，占位图由 ID 确定性派生。
func (l *LocalService) GenerateScenes(ctx context.Context, req GenerateScenesRequest) ([]SceneDraft, error) {
	if req.Count <= 0 {
		return nil, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	drafts := make([]SceneDraft, 0, req.Count)
	for i := 0; i < req.Count; i++ {
		mood := localMoods[l.rng.Intn(len(localMoods))]
		location := localLocations[l.rng.Intn(len(localLocations))]
		action := localActions[l.rng.Intn(len(localActions))]
		style := localStyles[l.rng.Intn(len(localStyles))]

		category, ok := localLocationCategory[location]
		if !ok {
			category = entity.CategoryFallback
		}

		id := req.StartID + uint(i)
		drafts = append(drafts, SceneDraft{
			ID:           id,
			Description:  fmt.Sprintf("A %s moment in a %s, %s, rendered with %s", mood, location, action, style),
			Category:     category,
			Lighting:     localLighting[l.rng.Intn(len(localLighting))],
			Camera:       localCameraLabel,
			ThumbnailURL: PlaceholderImageURL(id),
		})
	}

	return drafts, nil
}

// GenerateImage 本地后端不生成真实图片，返回描述无关的占位引用也没有意义，
// 因此统一返回「无图片部分」。
func (l *LocalService) GenerateImage(ctx context.Context, prompt string) (*ImageResult, error) {
	return nil, nil
}

// PlaceholderImageURL 由记录 ID 确定性派生占位图引用，
// 相同 ID 恒定得到相同 URL，重渲染无需网络请求。
func PlaceholderImageURL(id uint) string {
	return fmt.Sprintf("https://picsum.photos/seed/pov-%d/512/288", id)
}

// PlaceholderHighResURL 是 PlaceholderImageURL 的大图版本，种子相同。
func PlaceholderHighResURL(id uint) string {
	return fmt.Sprintf("https://picsum.photos/seed/pov-%d/1920/1080", id)
}

var _ SceneSource = (*LocalService)(nil)
var _ ImageSource = (*LocalService)(nil)
