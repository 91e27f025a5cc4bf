package entity

// SceneQuery 场景列表查询参数
type SceneQuery struct {
	Page          int
	PageSize      int
	FavoritesOnly bool
}

// Meta 分页元信息
type Meta struct {
	Total     int64 `json:"total"`
	Page      int64 `json:"page"`
	PageSize  int64 `json:"page_size"`
	PageCount int64 `json:"page_count"`
}
