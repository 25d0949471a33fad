package interview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"interview-coach/internal/constants"
	"interview-coach/internal/logger"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// ResumeCacheKey 简历文本缓存键
func ResumeCacheKey(resumeID string) string {
	return fmt.Sprintf(constants.KeyResumeText, resumeID)
}

// ResumeTextResolver 按 cache-aside 解析简历文本。
// 缓存只用于加速：读失败当作未命中，写失败只记日志。
type ResumeTextResolver struct {
	resumes   ResumeStore
	cache     TextCache
	extractor TextExtractor
	ttl       time.Duration
	timeout   time.Duration
	flights   singleflight.Group
	recorder  Recorder
	logger    zerolog.Logger
}

// ResolverOption 配置选项
type ResolverOption func(*ResumeTextResolver)

// WithExtractionTimeout 设置单次提取的超时
func WithExtractionTimeout(d time.Duration) ResolverOption {
	return func(r *ResumeTextResolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithResolverRecorder 设置指标上报
func WithResolverRecorder(rec Recorder) ResolverOption {
	return func(r *ResumeTextResolver) {
		if rec != nil {
			r.recorder = rec
		}
	}
}

// WithResolverLogger 设置日志
func WithResolverLogger(l zerolog.Logger) ResolverOption {
	return func(r *ResumeTextResolver) {
		r.logger = l
	}
}

// NewResumeTextResolver cache 可以为 nil，此时每次都走提取
func NewResumeTextResolver(resumes ResumeStore, cache TextCache, extractor TextExtractor, opts ...ResolverOption) *ResumeTextResolver {
	r := &ResumeTextResolver{
		resumes:   resumes,
		cache:     cache,
		extractor: extractor,
		ttl:       constants.ResumeTextCacheTTL,
		timeout:   DefaultExtractionTimeout,
		recorder:  nopRecorder{},
		logger:    logger.WithComponent("resume_resolver"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve 按简历 id 解析文本，未命中时读取简历记录并提取
func (r *ResumeTextResolver) Resolve(ctx context.Context, resumeID string) (string, error) {
	return r.resolve(ctx, resumeID, nil)
}

// ResolveResume 已持有简历记录时使用，省去一次读取
func (r *ResumeTextResolver) ResolveResume(ctx context.Context, resume *Resume) (string, error) {
	if resume == nil {
		return "", newError("resolve_resume", "", ErrNotFound, nil)
	}
	return r.resolve(ctx, resume.ID, resume)
}

func (r *ResumeTextResolver) resolve(ctx context.Context, resumeID string, known *Resume) (string, error) {
	if strings.TrimSpace(resumeID) == "" {
		return "", newError("resolve_resume", "", ErrNotFound, nil)
	}
	key := ResumeCacheKey(resumeID)

	if text, ok := r.lookup(ctx, key); ok {
		r.recorder.ResumeTextResolved("cache")
		return text, nil
	}

	// 同一简历的并发未命中只触发一次提取
	v, err, _ := r.flights.Do(key, func() (interface{}, error) {
		resume := known
		if resume == nil {
			loaded, err := r.resumes.LoadResumeByID(ctx, resumeID)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					return "", newError("load_resume", "", ErrNotFound, err)
				}
				return "", collaboratorError("load_resume", "", ErrCollaborator, err)
			}
			resume = loaded
		}

		text, err := r.extract(ctx, resume)
		if err != nil {
			return "", err
		}

		if r.cache != nil {
			if err := r.cache.Set(ctx, key, text, r.ttl); err != nil {
				r.logger.Warn().Err(err).Str("key", key).Msg("写入简历文本缓存失败")
			}
		}
		return text, nil
	})
	if err != nil {
		r.recorder.CollaboratorFailed("extract_text", PublicKind(err))
		return "", err
	}
	r.recorder.ResumeTextResolved("extraction")
	return v.(string), nil
}

func (r *ResumeTextResolver) lookup(ctx context.Context, key string) (string, bool) {
	if r.cache == nil {
		return "", false
	}
	text, ok, err := r.cache.Get(ctx, key)
	if err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("读取简历文本缓存失败，按未命中处理")
		return "", false
	}
	return text, ok
}

func (r *ResumeTextResolver) extract(ctx context.Context, resume *Resume) (string, error) {
	extractCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	text, err := r.extractor.ExtractText(extractCtx, resume.DocumentLocation)
	if err != nil {
		if errors.Is(extractCtx.Err(), context.DeadlineExceeded) {
			return "", newError("extract_text", "", ErrCollaboratorTimeout, err)
		}
		return "", collaboratorError("extract_text", "", ErrExtraction, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", &Error{Op: "extract_text", BaseErr: ErrExtraction, Detail: "简历文本为空"}
	}
	return text, nil
}
