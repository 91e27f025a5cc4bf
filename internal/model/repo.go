package model

import (
	"context"

	"povgallery/internal/entity"
)

// Repository 定义数据库操作接口。
// 服务可以在没有数据库的情况下纯内存运行，调用方需容忍 nil 仓库。
type Repository interface {
	// 场景集合
	CreateScenes(ctx context.Context, scenes []entity.Scene) error
	UpdateScene(ctx context.Context, id uint, updates entity.SceneUpdates) error
	ListAllScenes(ctx context.Context) ([]entity.Scene, error)
	CountScenes(ctx context.Context) (int64, error)
	DeleteAllScenes(ctx context.Context) error

	// 用户管理
	CreateUser(ctx context.Context, user *entity.DbUser) error
	GetUserByEmail(ctx context.Context, email string) (*entity.DbUser, error)
	GetUserByID(ctx context.Context, id uint) (*entity.DbUser, error)
	CountUsers(ctx context.Context) (int64, error)
}
