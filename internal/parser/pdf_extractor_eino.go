package parser

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"interview-coach/internal/logger"

	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	einoParser "github.com/cloudwego/eino/components/document/parser"
	"github.com/rs/zerolog"
)

// EinoPDFTextExtractor 进程内解析 PDF，不依赖 Tika 服务
type EinoPDFTextExtractor struct {
	parser *pdf.PDFParser
	logger zerolog.Logger
}

// EinoPDFOption 配置选项
type EinoPDFOption func(*EinoPDFTextExtractor)

// WithEinoLogger 自定义日志
func WithEinoLogger(l zerolog.Logger) EinoPDFOption {
	return func(e *EinoPDFTextExtractor) {
		e.logger = l
	}
}

var _ PDFExtractor = (*EinoPDFTextExtractor)(nil)

// NewEinoPDFTextExtractor 不按页分割，整份文档作为一个结果
func NewEinoPDFTextExtractor(ctx context.Context, options ...EinoPDFOption) (*EinoPDFTextExtractor, error) {
	p, err := pdf.NewPDFParser(ctx, &pdf.Config{ToPages: false})
	if err != nil {
		return nil, fmt.Errorf("创建Eino PDF解析器失败: %w", err)
	}
	e := &EinoPDFTextExtractor{
		parser: p,
		logger: logger.WithComponent("eino-pdf"),
	}
	for _, option := range options {
		option(e)
	}
	return e, nil
}

// ExtractTextFromBytes 只支持 PDF
func (e *EinoPDFTextExtractor) ExtractTextFromBytes(ctx context.Context, data []byte, uri string) (string, map[string]interface{}, error) {
	startTime := time.Now()
	docs, err := e.parser.Parse(ctx, bytes.NewReader(data), einoParser.WithURI(uri))
	if err != nil {
		return "", nil, fmt.Errorf("eino PDF解析失败 (%s): %w", uri, err)
	}
	if len(docs) == 0 {
		return "", nil, fmt.Errorf("eino PDF解析无结果 (%s)", uri)
	}

	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		parts = append(parts, doc.Content)
	}
	text := strings.Join(parts, "\n\n")

	metadata := make(map[string]interface{}, len(docs[0].MetaData)+3)
	for k, v := range docs[0].MetaData {
		metadata[k] = v
	}
	metadata["source_uri"] = uri
	metadata["document_count"] = len(docs)
	metadata["text_length"] = len(text)

	e.logger.Debug().
		Str("uri", uri).
		Int("chars", len(text)).
		Dur("duration", time.Since(startTime)).
		Msg("PDF文本提取完成")
	return text, metadata, nil
}
