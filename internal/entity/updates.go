package entity

// SceneUpdates 描述对单条场景记录的部分更新，nil 字段表示不修改。
type SceneUpdates struct {
	ThumbnailURL *string
	HighResURL   *string
	IsFavorite   *bool
}

// IsEmpty 判断是否没有任何待更新字段
func (u SceneUpdates) IsEmpty() bool {
	return u.ThumbnailURL == nil && u.HighResURL == nil && u.IsFavorite == nil
}

// ToMap 转换为 GORM Updates 可用的列映射
func (u SceneUpdates) ToMap() map[string]interface{} {
	updates := make(map[string]interface{})
	if u.ThumbnailURL != nil {
		updates["thumbnail_url"] = *u.ThumbnailURL
	}
	if u.HighResURL != nil {
		updates["high_res_url"] = *u.HighResURL
	}
	if u.IsFavorite != nil {
		updates["is_favorite"] = *u.IsFavorite
	}
	return updates
}
