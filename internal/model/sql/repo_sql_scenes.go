package sql

import (
	"context"
	"fmt"

	"povgallery/internal/entity"
)

// CreateScenes persists a batch of scene records in one insert.
func (r *GormRepository) CreateScenes(ctx context.Context, scenes []entity.Scene) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if len(scenes) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(scenes, 100).Error
}

// UpdateScene applies partial updates to a scene record.
func (r *GormRepository) UpdateScene(ctx context.Context, id uint, updates entity.SceneUpdates) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if id == 0 {
		return fmt.Errorf("invalid scene id")
	}
	if updates.IsEmpty() {
		return nil
	}
	return r.db.WithContext(ctx).Model(&entity.Scene{}).Where("id = ?", id).Updates(updates.ToMap()).Error
}

// ListAllScenes loads every scene ordered by id, oldest first.
func (r *GormRepository) ListAllScenes(ctx context.Context) ([]entity.Scene, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	var scenes []entity.Scene
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&scenes).Error; err != nil {
		return nil, err
	}
	return scenes, nil
}

// CountScenes returns total scene count.
func (r *GormRepository) CountScenes(ctx context.Context) (int64, error) {
	if r == nil || r.db == nil {
		return 0, fmt.Errorf("repository not initialised")
	}
	var count int64
	if err := r.db.WithContext(ctx).Model(&entity.Scene{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// DeleteAllScenes removes every scene record.
func (r *GormRepository) DeleteAllScenes(ctx context.Context) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	return r.db.WithContext(ctx).Where("1 = 1").Delete(&entity.Scene{}).Error
}
