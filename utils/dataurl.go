package utils

import (
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
)

var (
	ErrInvalidDataURL = errors.New("invalid base64 data url")

	dataURLPattern = regexp.MustCompile(`^data:([^;]+);base64,(.+)$`)
)

// BufferToDataURL 编码为 data:<mime>;base64,<data>
func BufferToDataURL(data []byte, mimeType string) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DataURLToBuffer 解析 data URL，返回数据和 MIME 类型
func DataURLToBuffer(s string) ([]byte, string, error) {
	matches := dataURLPattern.FindStringSubmatch(s)
	if matches == nil {
		return nil, "", ErrInvalidDataURL
	}

	data, err := base64.StdEncoding.DecodeString(matches[2])
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	return data, matches[1], nil
}
