package biz

import (
	"fmt"
	"io"
	"mime"
	"strings"
)

// 上传策略默认值
const (
	DefaultAllowedType   = "application/pdf"
	DefaultMaxUploadSize = 10 << 20 // 10 MiB
)

// Upload 携带一次上传的文件流及其声明的元信息
type Upload struct {
	FileName    string
	ContentType string
	Size        int64
	Data        io.Reader
}

// UploadPolicy 上传校验策略：在任何字节落盘之前检查声明的类型与大小
type UploadPolicy struct {
	AllowedType string
	MaxSize     int64
}

// DefaultUploadPolicy 创建默认上传策略（仅 PDF，最大 10 MiB）
func DefaultUploadPolicy() UploadPolicy {
	return UploadPolicy{
		AllowedType: DefaultAllowedType,
		MaxSize:     DefaultMaxUploadSize,
	}
}

// Validate 校验声明的 Content-Type 与大小；不产生任何存储副作用
func (p UploadPolicy) Validate(contentType string, size int64) error {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}

	if mediaType != p.AllowedType {
		return fmt.Errorf("%w: got %q, want %q", ErrInvalidFileType, mediaType, p.AllowedType)
	}

	if size > p.MaxSize {
		return fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrFileTooLarge, size, p.MaxSize)
	}

	return nil
}
