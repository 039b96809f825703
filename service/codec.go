package service

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	"github.com/dany616/bgenius-background-processor/mask"
	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	_ "golang.org/x/image/webp"
)

// DecodeImage 解码上传的图片并按 EXIF 方向纠正，支持 png/jpeg/webp。
// maxPixels 大于 0 时先按文件头的尺寸拒绝过大的图片，不做完整解码
func DecodeImage(data []byte, maxPixels int) (image.Image, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image config: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, "", fmt.Errorf("empty %s image %dx%d", format, cfg.Width, cfg.Height)
	}
	if maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, "", fmt.Errorf("%w: %dx%d > %d", ErrImageTooLarge, cfg.Width, cfg.Height, maxPixels)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", fmt.Errorf("decode %s image: %w", format, err)
	}
	return img, format, nil
}

// Downscale 超过最大尺寸时等比缩小，返回是否缩放
func Downscale(img image.Image, maxWidth, maxHeight int) (image.Image, bool) {
	b := img.Bounds()
	if maxWidth <= 0 || maxHeight <= 0 || (b.Dx() <= maxWidth && b.Dy() <= maxHeight) {
		return img, false
	}
	return resize.Thumbnail(uint(maxWidth), uint(maxHeight), img, resize.Lanczos3), true
}

// NormalizeFormat 输出格式归一化。webp 没有编码器，回退为 png
func NormalizeFormat(format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "png", "webp":
		return "png", nil
	case "jpg", "jpeg":
		return "jpg", nil
	default:
		return "", fmt.Errorf("unsupported output format %q", format)
	}
}

// EncodeImage 编码为指定格式，返回数据与 MIME 类型
func EncodeImage(img image.Image, format string, quality int) ([]byte, string, error) {
	format, err := NormalizeFormat(format)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", mask.ErrEncodingFailure, err)
	}
	f, err := imaging.FormatFromExtension(format)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", mask.ErrEncodingFailure, err)
	}

	var opts []imaging.EncodeOption
	if f == imaging.JPEG {
		if quality <= 0 {
			quality = 90
		}
		opts = append(opts, imaging.JPEGQuality(quality))
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, f, opts...); err != nil {
		return nil, "", fmt.Errorf("%w: %v", mask.ErrEncodingFailure, err)
	}
	return buf.Bytes(), MimeType(format), nil
}

func MimeType(format string) string {
	switch format {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "webp":
		return "image/webp"
	default:
		return "image/png"
	}
}
