package parser

import (
	"context"
	"errors"
	"testing"

	"interview-coach/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	docs map[string][]byte
	err  error
}

func (f *fakeFetcher) FetchDocument(_ context.Context, location string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.docs[location]
	if !ok {
		return nil, errors.New("no such key")
	}
	return data, nil
}

type fakePDFExtractor struct {
	text  string
	err   error
	calls []string
}

func (f *fakePDFExtractor) ExtractTextFromBytes(_ context.Context, _ []byte, uri string) (string, map[string]interface{}, error) {
	f.calls = append(f.calls, uri)
	return f.text, nil, f.err
}

func TestResumeTextExtractor(t *testing.T) {
	fetcher := &fakeFetcher{docs: map[string][]byte{
		"resumes/a.pdf": []byte("%PDF"),
		"resumes/b.txt": []byte("  李四\r\n\r\n\r\n\r\n熟悉 Kafka   \r\n"),
		"resumes/c.md":  {0xff, 0xfe, 0xfd},
	}}

	t.Run("PDF交给提取器", func(t *testing.T) {
		pdf := &fakePDFExtractor{text: "王五\n\n\n\n后端工程师\f"}
		r := NewResumeTextExtractor(fetcher, pdf)

		text, err := r.ExtractText(context.Background(), "resumes/a.pdf")
		require.NoError(t, err)
		assert.Equal(t, "王五\n\n后端工程师", text)
		assert.Equal(t, []string{"resumes/a.pdf"}, pdf.calls)
	})

	t.Run("纯文本直接读取", func(t *testing.T) {
		pdf := &fakePDFExtractor{}
		r := NewResumeTextExtractor(fetcher, pdf)

		text, err := r.ExtractText(context.Background(), "resumes/b.txt")
		require.NoError(t, err)
		assert.Equal(t, "李四\n\n熟悉 Kafka", text)
		assert.Empty(t, pdf.calls)
	})

	t.Run("非UTF-8文本", func(t *testing.T) {
		r := NewResumeTextExtractor(fetcher, &fakePDFExtractor{})
		_, err := r.ExtractText(context.Background(), "resumes/c.md")
		assert.Error(t, err)
	})

	t.Run("下载失败", func(t *testing.T) {
		r := NewResumeTextExtractor(&fakeFetcher{err: errors.New("minio down")}, &fakePDFExtractor{})
		_, err := r.ExtractText(context.Background(), "resumes/a.pdf")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "minio down")
	})

	t.Run("未配置对象存储", func(t *testing.T) {
		r := NewResumeTextExtractor(nil, &fakePDFExtractor{})
		_, err := r.ExtractText(context.Background(), "resumes/a.pdf")
		assert.ErrorIs(t, err, ErrFetcherUnavailable)
	})

	t.Run("提取失败", func(t *testing.T) {
		pdf := &fakePDFExtractor{err: errors.New("corrupted")}
		r := NewResumeTextExtractor(fetcher, pdf)
		_, err := r.ExtractText(context.Background(), "resumes/a.pdf")
		assert.Error(t, err)
	})
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "", CleanText(" \n\t "))
	assert.Equal(t, "a\nb", CleanText("a \t\nb"))
	assert.Equal(t, "a\n\nb", CleanText("a\r\n\r\n\r\nb"))
}

func TestBuildPDFExtractor(t *testing.T) {
	ctx := context.Background()

	e, err := BuildPDFExtractor(ctx, &config.TikaConfig{Type: "tika", ServerURL: "http://tika:9998", Timeout: 10})
	require.NoError(t, err)
	tika, ok := e.(*TikaPDFExtractor)
	require.True(t, ok)
	assert.Equal(t, "http://tika:9998", tika.ServerURL)

	_, err = BuildPDFExtractor(ctx, &config.TikaConfig{Type: "tika"})
	assert.Error(t, err, "缺少地址")

	e, err = BuildPDFExtractor(ctx, &config.TikaConfig{Type: "eino"})
	require.NoError(t, err)
	_, ok = e.(*EinoPDFTextExtractor)
	assert.True(t, ok)

	_, err = BuildPDFExtractor(ctx, &config.TikaConfig{Type: "ocr"})
	assert.Error(t, err)
}
