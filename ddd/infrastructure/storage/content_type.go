package storage

import (
	"path/filepath"
	"strings"
)

// ContentTypeFor 根据文件扩展名获取内容类型，未知扩展名按 mp4 处理
func ContentTypeFor(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".mp4":
		return "video/mp4"
	case ".avi":
		return "video/x-msvideo"
	case ".mov":
		return "video/quicktime"
	case ".mkv":
		return "video/x-matroska"
	case ".wmv":
		return "video/x-ms-wmv"
	case ".flv":
		return "video/x-flv"
	case ".webm":
		return "video/webm"
	default:
		return "video/mp4"
	}
}
