package utils

import (
	"github.com/segmentio/ksuid"
)

// GenerateID 生成按时间排序的唯一ID
func GenerateID() string {
	return ksuid.New().String()
}

// IsValidID 校验ID格式，防止路径穿越
func IsValidID(id string) bool {
	for _, r := range id {
		if !('0' <= r && r <= '9' || 'a' <= r && r <= 'z' || 'A' <= r && r <= 'Z') {
			return false
		}
	}
	_, err := ksuid.Parse(id)
	return err == nil
}
