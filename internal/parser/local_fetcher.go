package parser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalFileFetcher 从本地目录读取文档，供命令行工具离线预览
type LocalFileFetcher struct {
	Root string
}

var _ DocumentFetcher = LocalFileFetcher{}

// FetchDocument location 是相对 Root 的路径，不允许跳出 Root
func (f LocalFileFetcher) FetchDocument(ctx context.Context, location string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	root, err := filepath.Abs(f.Root)
	if err != nil {
		return nil, err
	}
	full := filepath.Join(root, filepath.Clean("/"+location))
	if full != root && !strings.HasPrefix(full, root+string(filepath.Separator)) {
		return nil, fmt.Errorf("文档路径越界: %s", location)
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("读取本地文档失败: %w", err)
	}
	return data, nil
}
