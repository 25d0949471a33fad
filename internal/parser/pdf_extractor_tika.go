package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"interview-coach/internal/logger"

	"github.com/rs/zerolog"
)

// PDFExtractor 文档字节到纯文本
type PDFExtractor interface {
	// ExtractTextFromBytes 返回文本与解析元数据，uri 仅用于日志与类型推断
	ExtractTextFromBytes(ctx context.Context, data []byte, uri string) (string, map[string]interface{}, error)
}

// TikaPDFExtractor 基于 Apache Tika Server 的文本提取，支持 PDF/DOCX 等常见简历格式
type TikaPDFExtractor struct {
	// Tika服务器地址，例如 http://localhost:9998
	ServerURL string
	Client    *http.Client

	extractMinimalMetadata bool
	extractAnnotations     bool
	logger                 zerolog.Logger
}

// TikaOption 配置选项
type TikaOption func(*TikaPDFExtractor)

// WithMinimalMetadata 是否额外请求 /meta 获取关键元数据
func WithMinimalMetadata(extract bool) TikaOption {
	return func(e *TikaPDFExtractor) {
		e.extractMinimalMetadata = extract
	}
}

// WithAnnotations 是否提取PDF链接注释文本
func WithAnnotations(extract bool) TikaOption {
	return func(e *TikaPDFExtractor) {
		e.extractAnnotations = extract
	}
}

// WithTikaLogger 自定义日志
func WithTikaLogger(l zerolog.Logger) TikaOption {
	return func(e *TikaPDFExtractor) {
		e.logger = l
	}
}

// WithTimeout HTTP客户端超时
func WithTimeout(timeout time.Duration) TikaOption {
	return func(e *TikaPDFExtractor) {
		e.Client.Timeout = timeout
	}
}

var _ PDFExtractor = (*TikaPDFExtractor)(nil)

// NewTikaPDFExtractor 默认 60 秒超时，不请求元数据
func NewTikaPDFExtractor(serverURL string, options ...TikaOption) *TikaPDFExtractor {
	e := &TikaPDFExtractor{
		ServerURL:          strings.TrimRight(serverURL, "/"),
		Client:             &http.Client{Timeout: 60 * time.Second},
		extractAnnotations: true,
		logger:             logger.WithComponent("tika"),
	}
	for _, option := range options {
		option(e)
	}
	return e
}

// contentTypeFor 按扩展名给 Tika 提示类型，未知类型交给 Tika 自动识别
func contentTypeFor(uri string) string {
	switch strings.ToLower(path.Ext(uri)) {
	case ".pdf":
		return "application/pdf"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".doc":
		return "application/msword"
	default:
		return "application/octet-stream"
	}
}

func (e *TikaPDFExtractor) newRequest(ctx context.Context, endpoint string, data []byte, uri, accept string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, e.ServerURL+endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	req.Header.Set("Content-Type", contentTypeFor(uri))
	req.Header.Set("Accept", accept)
	if uri != "" {
		req.Header.Set("X-Tika-Resource-Name", path.Base(uri))
	}
	if !e.extractAnnotations {
		req.Header.Set("X-Tika-PDFExtractAnnotationText", "false")
	}
	return req, nil
}

// ExtractTextFromBytes PUT /tika 取纯文本
func (e *TikaPDFExtractor) ExtractTextFromBytes(ctx context.Context, data []byte, uri string) (string, map[string]interface{}, error) {
	startTime := time.Now()
	metadata := map[string]interface{}{
		"source_uri": uri,
	}

	req, err := e.newRequest(ctx, "/tika", data, uri, "text/plain")
	if err != nil {
		return "", metadata, err
	}
	resp, err := e.Client.Do(req)
	if err != nil {
		return "", metadata, fmt.Errorf("发送请求到Tika服务器失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", metadata, fmt.Errorf("tika服务器返回错误状态码: %d", resp.StatusCode)
	}
	textBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", metadata, fmt.Errorf("读取Tika响应失败: %w", err)
	}
	text := string(textBytes)

	metadata["text_length"] = len(text)
	metadata["processing_duration_ms"] = time.Since(startTime).Milliseconds()

	if e.extractMinimalMetadata {
		raw, err := e.extractMetadata(ctx, data, uri)
		if err != nil {
			e.logger.Warn().Err(err).Str("uri", uri).Msg("元数据提取失败，继续使用基本元数据")
		}
		for k, v := range raw {
			if isImportantMetadata(k) {
				metadata[k] = v
			}
		}
	}

	e.logger.Debug().
		Str("uri", uri).
		Int("chars", len(text)).
		Dur("duration", time.Since(startTime)).
		Msg("Tika文本提取完成")
	return text, metadata, nil
}

func isImportantMetadata(key string) bool {
	switch key {
	case "Content-Type", "xmpTPg:NPages", "language", "dc:title", "pdf:PDFVersion":
		return true
	}
	return false
}

func (e *TikaPDFExtractor) extractMetadata(ctx context.Context, data []byte, uri string) (map[string]interface{}, error) {
	req, err := e.newRequest(ctx, "/meta", data, uri, "application/json")
	if err != nil {
		return nil, err
	}
	resp, err := e.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("发送请求到Tika服务器失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tika服务器返回错误状态码: %d", resp.StatusCode)
	}
	var metadata map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&metadata); err != nil {
		return nil, fmt.Errorf("解析元数据JSON失败: %w", err)
	}
	return metadata, nil
}
