package parser

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFileFetcher(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "a"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a", "cv.txt"), []byte("张三"), 0o644))

	f := LocalFileFetcher{Root: dir}

	data, err := f.FetchDocument(context.Background(), "a/cv.txt")
	require.NoError(t, err)
	assert.Equal(t, "张三", string(data))

	// .. 被限制在 Root 内
	_, err = f.FetchDocument(context.Background(), "../../etc/passwd")
	assert.Error(t, err)

	_, err = f.FetchDocument(context.Background(), "missing.pdf")
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.FetchDocument(ctx, "a/cv.txt")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResumeTextExtractorWithLocalFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cv.md"), []byte("# 李四\n\n\n\nGo 开发"), 0o644))

	r := NewResumeTextExtractor(LocalFileFetcher{Root: dir}, &fakePDFExtractor{})
	text, err := r.ExtractText(context.Background(), "cv.md")
	require.NoError(t, err)
	assert.Equal(t, "# 李四\n\nGo 开发", text)
}
