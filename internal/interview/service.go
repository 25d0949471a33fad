package interview

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"interview-coach/internal/logger"
	"interview-coach/internal/tracing"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Service 面试会话编排：创建、推进、终止判定与简历文本缓存预热
type Service struct {
	sessions  SessionStore
	resumes   ResumeStore
	resolver  *ResumeTextResolver
	generator TurnGenerator

	locker            SessionLocker
	recorder          Recorder
	logger            zerolog.Logger
	tracer            trace.Tracer
	now               func() time.Time
	newID             func() (string, error)
	generationTimeout time.Duration
}

// NewService 创建编排服务，所有外部依赖通过参数注入
func NewService(sessions SessionStore, resumes ResumeStore, resolver *ResumeTextResolver, generator TurnGenerator, opts ...Option) (*Service, error) {
	if sessions == nil || resumes == nil || resolver == nil || generator == nil {
		return nil, fmt.Errorf("创建面试服务失败: sessions/resumes/resolver/generator 均不能为空")
	}
	s := &Service{
		sessions:          sessions,
		resumes:           resumes,
		resolver:          resolver,
		generator:         generator,
		locker:            NewKeyedLocker(0),
		recorder:          nopRecorder{},
		logger:            logger.WithComponent("interview"),
		tracer:            otel.Tracer("interview-coach/interview"),
		now:               time.Now,
		newID:             newSessionID,
		generationTimeout: DefaultGenerationTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// StartSession 创建会话。简历引用不属于该用户时按无简历处理，不报错。
func (s *Service) StartSession(ctx context.Context, ownerID string, kind Kind, resumeRef string) (session *Session, err error) {
	ctx, span := s.tracer.Start(ctx, "Interview.StartSession", trace.WithAttributes(
		attribute.String("interview.kind", string(kind)),
		attribute.Bool("interview.resume_ref_given", resumeRef != ""),
	))
	defer func() {
		recordSpanError(span, err)
		span.End()
	}()

	if strings.TrimSpace(ownerID) == "" {
		return nil, &Error{Op: "start_session", BaseErr: ErrInvalidInput, Detail: "缺少用户标识"}
	}
	parsed, perr := ParseKind(string(kind))
	if perr != nil {
		return nil, &Error{Op: "start_session", BaseErr: ErrInvalidInput, Detail: "面试类型必须为 personal 或 technical"}
	}
	kind = parsed

	resume := s.pickResume(ctx, ownerID, resumeRef)
	if resume != nil {
		// 预热缓存，供第一轮对话使用
		if _, rerr := s.resolver.ResolveResume(ctx, resume); rerr != nil {
			s.logger.Warn().
				Err(CauseOf(rerr)).
				Str("owner_id", ownerID).
				Str("resume_id", resume.ID).
				Msg("简历文本解析失败，按无简历创建会话")
			resume = nil
		}
	}

	id, err := s.newID()
	if err != nil {
		return nil, newError("start_session", "", ErrCollaborator, fmt.Errorf("生成会话ID失败: %w", err))
	}

	now := s.now()
	session = &Session{
		ID:        id,
		OwnerID:   ownerID,
		Kind:      kind,
		Status:    StatusActive,
		CreatedAt: now,
		Version:   1,
		Messages: []Message{{
			Role:       RoleAssistant,
			Content:    OpeningMessage(kind, resume != nil),
			OccurredAt: now,
		}},
	}
	if resume != nil {
		session.ResumeRef = resume.ID
	}

	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, collaboratorError("create_session", id, ErrCollaborator, err)
	}

	span.SetAttributes(attribute.String("interview.session_id", id), attribute.Bool("interview.has_resume", resume != nil))
	s.recorder.SessionStarted(kind, resume != nil)
	s.logger.Info().
		Str("session_id", id).
		Str("owner_id", ownerID).
		Str("kind", string(kind)).
		Bool("has_resume", resume != nil).
		Msg("面试会话已创建")
	return session, nil
}

// pickResume 显式引用优先，未给出时取最近上传的简历
func (s *Service) pickResume(ctx context.Context, ownerID, resumeRef string) *Resume {
	var (
		resume *Resume
		err    error
	)
	if resumeRef != "" {
		resume, err = s.resumes.LoadResumeByID(ctx, resumeRef)
	} else {
		resume, err = s.resumes.LoadLatestResumeForOwner(ctx, ownerID)
	}
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn().Err(err).Str("owner_id", ownerID).Msg("读取简历记录失败，按无简历处理")
		}
		return nil
	}
	if resume == nil || resume.OwnerID != ownerID {
		if resume != nil {
			s.logger.Debug().Str("owner_id", ownerID).Str("resume_id", resume.ID).Msg("忽略不属于当前用户的简历")
		}
		return nil
	}
	return resume
}

// ContinueSession 追加用户回答并生成下一轮回复。
// 前置检查依次为 NotFound、AlreadyCompleted、InvalidInput；两轮都准备好后才持久化。
func (s *Service) ContinueSession(ctx context.Context, sessionID, ownerID, userMessageText string) (result *ContinueResult, err error) {
	ctx, span := s.tracer.Start(ctx, "Interview.ContinueSession", trace.WithAttributes(
		attribute.String("interview.session_id", sessionID),
	))
	defer func() {
		recordSpanError(span, err)
		span.End()
	}()
	started := s.now()

	unlock, err := s.locker.Lock(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionBusy) {
			return nil, newError("lock_session", sessionID, ErrSessionBusy, err)
		}
		return nil, collaboratorError("lock_session", sessionID, ErrCollaborator, err)
	}
	defer unlock()

	current, err := s.sessions.LoadSession(ctx, sessionID, ownerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, newError("load_session", sessionID, ErrNotFound, err)
		}
		return nil, collaboratorError("load_session", sessionID, ErrCollaborator, err)
	}
	if current.IsCompleted() {
		return nil, newError("continue_session", sessionID, ErrAlreadyCompleted, nil)
	}
	text := strings.TrimSpace(userMessageText)
	if text == "" {
		return nil, &Error{Op: "continue_session", SessionID: sessionID, BaseErr: ErrInvalidInput, Detail: "消息内容为空"}
	}

	next := current.Clone()
	next.Messages = append(next.Messages, Message{Role: RoleUser, Content: text, OccurredAt: s.now()})

	resumeText := s.resumeTextFor(ctx, next)
	userTurns := next.UserTurnCount()
	shouldEnd := ShouldEnd(next.Kind, userTurns)
	span.SetAttributes(attribute.Int("interview.user_turns", userTurns), attribute.Bool("interview.should_end", shouldEnd))

	turn, err := s.generate(ctx, next, resumeText, shouldEnd)
	if err != nil {
		s.recorder.CollaboratorFailed("generate_turn", PublicKind(err))
		return nil, err
	}

	now := s.now()
	next.Messages = append(next.Messages, Message{Role: RoleAssistant, Content: turn.ResponseText, OccurredAt: now})

	feedback := s.acceptFeedback(next.ID, turn.Feedback)
	if feedback != nil || shouldEnd {
		if feedback == nil {
			feedback = CompletionNote()
		}
		next.Status = StatusCompleted
		next.ClosedAt = &now
		next.Feedback = feedback
	}

	if err := s.sessions.SaveSession(ctx, next); err != nil {
		switch {
		case errors.Is(err, ErrVersionConflict):
			return nil, newError("save_session", sessionID, ErrSessionBusy, err)
		case errors.Is(err, ErrNotFound):
			return nil, newError("save_session", sessionID, ErrNotFound, err)
		default:
			return nil, collaboratorError("save_session", sessionID, ErrCollaborator, err)
		}
	}

	s.recorder.TurnCompleted(next.Kind, s.now().Sub(started))
	if next.IsCompleted() {
		s.recorder.SessionCompleted(next.Kind, userTurns)
		s.logger.Info().
			Str("session_id", sessionID).
			Int("user_turns", userTurns).
			Bool("assessment", next.Feedback.IsAssessment()).
			Msg("面试会话已结束")
	}
	return &ContinueResult{Session: next, IsComplete: next.IsCompleted()}, nil
}

// resumeTextFor 简历文本解析失败不阻塞对话，降级为无简历
func (s *Service) resumeTextFor(ctx context.Context, session *Session) string {
	if session.ResumeRef == "" {
		return NoResumeText
	}
	text, err := s.resolver.Resolve(ctx, session.ResumeRef)
	if err != nil {
		s.logger.Warn().
			Err(CauseOf(err)).
			Str("session_id", session.ID).
			Str("resume_id", session.ResumeRef).
			Str("kind", PublicKind(err)).
			Msg("简历文本不可用，本轮按无简历处理")
		return NoResumeText
	}
	return text
}

func (s *Service) generate(ctx context.Context, session *Session, resumeText string, shouldEnd bool) (*TurnResult, error) {
	genCtx, cancel := context.WithTimeout(ctx, s.generationTimeout)
	defer cancel()

	turn, err := s.generator.GenerateTurn(genCtx, TurnRequest{
		Kind:       session.Kind,
		Messages:   append([]Message(nil), session.Messages...),
		ResumeText: resumeText,
		ShouldEnd:  shouldEnd,
	})
	if err != nil {
		if errors.Is(genCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, newError("generate_turn", session.ID, ErrCollaboratorTimeout, err)
		}
		return nil, collaboratorError("generate_turn", session.ID, ErrCollaborator, err)
	}
	if turn == nil || strings.TrimSpace(turn.ResponseText) == "" {
		return nil, &Error{Op: "generate_turn", SessionID: session.ID, BaseErr: ErrCollaborator, Detail: "生成器返回空回复"}
	}
	return &TurnResult{ResponseText: strings.TrimSpace(turn.ResponseText), Feedback: turn.Feedback}, nil
}

// acceptFeedback 不合法的反馈替换为结束说明，生成器给出反馈即视为要求结束
func (s *Service) acceptFeedback(sessionID string, fb *Feedback) *Feedback {
	if fb == nil {
		return nil
	}
	if err := fb.Validate(); err != nil {
		s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("生成器返回的反馈不合法，已丢弃")
		return CompletionNote()
	}
	return fb.normalized()
}

// GetSession 读取单个会话
func (s *Service) GetSession(ctx context.Context, sessionID, ownerID string) (*Session, error) {
	session, err := s.sessions.LoadSession(ctx, sessionID, ownerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, newError("load_session", sessionID, ErrNotFound, err)
		}
		return nil, collaboratorError("load_session", sessionID, ErrCollaborator, err)
	}
	return session, nil
}

// ListSessionsForOwner 按创建时间倒序列出用户的会话
func (s *Service) ListSessionsForOwner(ctx context.Context, ownerID string) ([]*SessionSummary, error) {
	ctx, span := s.tracer.Start(ctx, "Interview.ListSessionsForOwner")
	defer span.End()

	sessions, err := s.sessions.ListSessionsByOwner(ctx, ownerID)
	if err != nil {
		err = collaboratorError("list_sessions", "", ErrCollaborator, err)
		recordSpanError(span, err)
		return nil, err
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})

	summaries := make([]*SessionSummary, 0, len(sessions))
	for _, session := range sessions {
		summaries = append(summaries, summarize(session))
	}
	span.SetAttributes(attribute.Int("interview.session_count", len(summaries)))
	return summaries, nil
}

func summarize(session *Session) *SessionSummary {
	summary := &SessionSummary{
		Session:      session,
		MessageCount: len(session.Messages),
	}
	if session.IsCompleted() && session.ClosedAt != nil {
		minutes := int(math.Round(session.ClosedAt.Sub(session.CreatedAt).Minutes()))
		summary.DurationMinutes = &minutes
	}
	return summary
}

func recordSpanError(span trace.Span, err error) {
	if err == nil {
		return
	}
	tracing.RecordError(span, err, tracing.ErrorTypeForKind(PublicKind(err)))
}
