package entity

import "time"

// 批量生成循环的外部契约常量
const (
	// BatchSize 每个批次向内容源请求的场景数量
	BatchSize = 50
	// TotalGoal 集合的目标规模，达到后循环自动停止
	TotalGoal = 1000
	// PageSize 视图分页的固定页大小
	PageSize = 10
	// CategorySampleSize 每个批次随机抽取的目标分类数量
	CategorySampleSize = 5
)

// CategoryFallback 未映射场景使用的兜底分类
const CategoryFallback = "General"

// SceneCategories 固定的场景分类全集
var SceneCategories = []string{
	"Neon", "Cyberpunk", "Sci-Fi", "Horror", "Space",
	"Fantasy", "Noir", "Desert", "Ocean", "Forest",
	"Urban", "Rain", "Winter", "Jungle", "Mountain",
	"Retro", "Steampunk", "Post-Apocalyptic", "Underwater", "Aerial",
}

// Scene 一条生成的第一人称场景记录。
//
// ID 在一次生成运行中从 1 开始连续分配，永不重用。
// IsGeneratingThumbnail / IsGeneratingHighRes 是请求在途期间的瞬态标记，不落库。
type Scene struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	Description string `json:"description" gorm:"type:text"`
	Category    string `json:"category" gorm:"size:64;index"`
	Lighting    string `json:"lighting" gorm:"size:128"`
	Camera      string `json:"camera" gorm:"size:128"`

	ThumbnailURL string `json:"thumbnailUrl,omitempty" gorm:"type:text"`
	HighResURL   string `json:"highResUrl,omitempty" gorm:"type:text"`

	IsFavorite bool `json:"isFavorite" gorm:"index"`

	IsGeneratingThumbnail bool `json:"isGeneratingThumbnail" gorm:"-"`
	IsGeneratingHighRes   bool `json:"isGeneratingHighRes" gorm:"-"`

	CreatedAt time.Time `json:"createdAt"`
}

// TableName 指定 GORM 表名
func (Scene) TableName() string {
	return "scenes"
}

// HasThumbnail 判断记录是否已有真实或占位缩略图
func (s Scene) HasThumbnail() bool {
	return s.ThumbnailURL != ""
}

// HasHighRes 判断记录是否已有高清图
func (s Scene) HasHighRes() bool {
	return s.HighResURL != ""
}
