package parser

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"interview-coach/internal/config"
	"interview-coach/internal/interview"
	"interview-coach/internal/logger"

	"github.com/rs/zerolog"
)

// DocumentFetcher 按文档位置读取原始字节
type DocumentFetcher interface {
	FetchDocument(ctx context.Context, location string) ([]byte, error)
}

// ErrFetcherUnavailable 对象存储未初始化
var ErrFetcherUnavailable = errors.New("简历文档存储不可用")

// ResumeTextExtractor 下载简历文档并提取纯文本，实现 interview.TextExtractor
type ResumeTextExtractor struct {
	fetcher   DocumentFetcher
	extractor PDFExtractor
	logger    zerolog.Logger
}

var _ interview.TextExtractor = (*ResumeTextExtractor)(nil)

// NewResumeTextExtractor 创建提取器
func NewResumeTextExtractor(fetcher DocumentFetcher, extractor PDFExtractor) *ResumeTextExtractor {
	return &ResumeTextExtractor{
		fetcher:   fetcher,
		extractor: extractor,
		logger:    logger.WithComponent("resume-extractor"),
	}
}

// ExtractText 纯文本类文档直接解码，其他格式交给 PDFExtractor
func (r *ResumeTextExtractor) ExtractText(ctx context.Context, documentLocation string) (string, error) {
	if r.fetcher == nil {
		return "", ErrFetcherUnavailable
	}
	start := time.Now()
	data, err := r.fetcher.FetchDocument(ctx, documentLocation)
	if err != nil {
		return "", fmt.Errorf("下载简历文档失败: %w", err)
	}

	var text string
	switch strings.ToLower(path.Ext(documentLocation)) {
	case ".txt", ".md":
		if !utf8.Valid(data) {
			return "", fmt.Errorf("简历文档 %s 不是有效的UTF-8文本", documentLocation)
		}
		text = string(data)
	default:
		text, _, err = r.extractor.ExtractTextFromBytes(ctx, data, documentLocation)
		if err != nil {
			return "", err
		}
	}

	text = CleanText(text)
	r.logger.Info().
		Str("location", documentLocation).
		Int("bytes", len(data)).
		Int("chars", utf8.RuneCountInString(text)).
		Dur("duration", time.Since(start)).
		Msg("简历文本提取完成")
	return text, nil
}

var (
	trailingSpaceRe = regexp.MustCompile(`[ \t\x{00A0}]+\n`)
	blankLinesRe    = regexp.MustCompile(`\n{3,}`)
)

// CleanText 统一换行、去掉行尾空白并压缩连续空行
func CleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.ReplaceAll(text, "\f", "\n")
	text = trailingSpaceRe.ReplaceAllString(text, "\n")
	text = blankLinesRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// BuildPDFExtractor 按配置选择 Tika 或进程内 eino 解析
func BuildPDFExtractor(ctx context.Context, cfg *config.TikaConfig) (PDFExtractor, error) {
	switch cfg.Type {
	case "", "tika":
		if cfg.ServerURL == "" {
			return nil, fmt.Errorf("tika.server_url 未配置")
		}
		opts := []TikaOption{WithMinimalMetadata(false)}
		if cfg.Timeout > 0 {
			opts = append(opts, WithTimeout(time.Duration(cfg.Timeout)*time.Second))
		}
		return NewTikaPDFExtractor(cfg.ServerURL, opts...), nil
	case "eino":
		return NewEinoPDFTextExtractor(ctx)
	default:
		return nil, fmt.Errorf("未知的提取器类型: %s", cfg.Type)
	}
}
