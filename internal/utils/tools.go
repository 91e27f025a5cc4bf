package utils

import "github.com/google/uuid"

// GenerateUUID 生成随机 UUID 字符串
func GenerateUUID() string {
	return uuid.NewString()
}
