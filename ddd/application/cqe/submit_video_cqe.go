package cqe

import (
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dustin/go-humanize"

	"deepfake-service/pkg/errno"
)

// SubmitVideoCqe 上传视频请求
type SubmitVideoCqe struct {
	Filename    string    // 客户端给出的原始文件名
	Size        int64     // 字节数，未知时为 -1
	ContentType string    // 客户端声明的类型，仅用于存储
	Content     io.Reader // 文件内容
}

// Validate 在创建任务之前完成全部校验
func (req *SubmitVideoCqe) Validate(maxSize int64, allowedExtensions []string) error {
	if req.Content == nil {
		return errno.ErrNoFileProvided
	}
	if strings.TrimSpace(req.Filename) == "" {
		return errno.ErrNoFileSelected
	}
	if !AllowedFile(req.Filename, allowedExtensions) {
		return errno.WithDetail(errno.ErrUnsupportedFormat,
			"File type not supported. Allowed types: %s", strings.Join(allowedExtensions, ", "))
	}
	if maxSize > 0 && req.Size > maxSize {
		return PayloadTooLarge(maxSize)
	}
	return nil
}

// PayloadTooLarge 带上限说明的 413 错误
func PayloadTooLarge(maxSize int64) error {
	return errno.WithDetail(errno.ErrPayloadTooLarge,
		"File too large. Maximum size is %s", humanize.IBytes(uint64(maxSize)))
}

// Extension 小写扩展名，不带点
func Extension(filename string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
}

// AllowedFile 扩展名是否在白名单中，大小写不敏感
func AllowedFile(filename string, allowedExtensions []string) bool {
	ext := Extension(filename)
	if ext == "" {
		return false
	}
	for _, allowed := range allowedExtensions {
		if strings.EqualFold(strings.TrimPrefix(allowed, "."), ext) {
			return true
		}
	}
	return false
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeFilename 去掉路径部分并把不安全字符替换为下划线
func SanitizeFilename(filename string) string {
	name := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, " ", "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	name = strings.TrimLeft(name, ".")
	if name == "" {
		return "video"
	}
	return name
}
