package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"interview-coach/internal/constants"
	"interview-coach/internal/interview"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInterviewService struct {
	startErr    error
	continueErr error
	getErr      error
	listErr     error

	gotOwner   string
	gotKind    interview.Kind
	gotResume  string
	gotSession string
	gotMessage string

	sessions []*interview.SessionSummary
}

func (f *fakeInterviewService) StartSession(_ context.Context, ownerID string, kind interview.Kind, resumeRef string) (*interview.Session, error) {
	f.gotOwner, f.gotKind, f.gotResume = ownerID, kind, resumeRef
	if f.startErr != nil {
		return nil, f.startErr
	}
	return testSession(ownerID, kind), nil
}

func (f *fakeInterviewService) ContinueSession(_ context.Context, sessionID, ownerID, text string) (*interview.ContinueResult, error) {
	f.gotOwner, f.gotSession, f.gotMessage = ownerID, sessionID, text
	if f.continueErr != nil {
		return nil, f.continueErr
	}
	s := testSession(ownerID, interview.KindPersonal)
	s.ID = sessionID
	return &interview.ContinueResult{Session: s, IsComplete: false}, nil
}

func (f *fakeInterviewService) GetSession(_ context.Context, sessionID, ownerID string) (*interview.Session, error) {
	f.gotOwner, f.gotSession = ownerID, sessionID
	if f.getErr != nil {
		return nil, f.getErr
	}
	s := testSession(ownerID, interview.KindTechnical)
	s.ID = sessionID
	return s, nil
}

func (f *fakeInterviewService) ListSessionsForOwner(_ context.Context, ownerID string) ([]*interview.SessionSummary, error) {
	f.gotOwner = ownerID
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.sessions, nil
}

func testSession(owner string, kind interview.Kind) *interview.Session {
	return &interview.Session{
		ID:      "s-1",
		OwnerID: owner,
		Kind:    kind,
		Messages: []interview.Message{
			{Role: interview.RoleAssistant, Content: "请先做个自我介绍", OccurredAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		},
		Status:    interview.StatusActive,
		CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// newTestEngine owner 为空时不注入用户标识
func newTestEngine(svc InterviewService, owner string) *server.Hertz {
	h := server.New(server.WithHostPorts("127.0.0.1:0"))
	ih := NewInterviewHandler(svc)
	g := h.Group("/api/v1/interviews", func(ctx context.Context, c *app.RequestContext) {
		if owner != "" {
			c.Set(constants.OwnerIDContextKey, owner)
		}
		c.Next(ctx)
	})
	g.POST("", ih.HandleStartSession)
	g.GET("", ih.HandleListSessions)
	g.GET("/:id", ih.HandleGetSession)
	g.POST("/:id/messages", ih.HandleContinueSession)
	return h
}

func jsonBody(s string) *ut.Body {
	return &ut.Body{Body: strings.NewReader(s), Len: len(s)}
}

var jsonHeader = ut.Header{Key: "Content-Type", Value: "application/json"}

func decodeError(t *testing.T, body []byte) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp
}

func TestHandleStartSession(t *testing.T) {
	t.Run("创建成功返回201", func(t *testing.T) {
		svc := &fakeInterviewService{}
		h := newTestEngine(svc, "alice")

		w := ut.PerformRequest(h.Engine, http.MethodPost, "/api/v1/interviews",
			jsonBody(`{"kind":"technical","resume_id":"r-1"}`), jsonHeader)

		require.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "alice", svc.gotOwner)
		assert.Equal(t, interview.Kind("technical"), svc.gotKind)
		assert.Equal(t, "r-1", svc.gotResume)

		var s interview.Session
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &s))
		assert.Equal(t, "s-1", s.ID)
		assert.Equal(t, interview.StatusActive, s.Status)
		require.Len(t, s.Messages, 1)
	})

	t.Run("请求体不是JSON", func(t *testing.T) {
		h := newTestEngine(&fakeInterviewService{}, "alice")
		w := ut.PerformRequest(h.Engine, http.MethodPost, "/api/v1/interviews", jsonBody(`{`), jsonHeader)

		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invalid_input", decodeError(t, w.Body.Bytes()).Error)
	})

	t.Run("缺少用户标识", func(t *testing.T) {
		h := newTestEngine(&fakeInterviewService{}, "")
		w := ut.PerformRequest(h.Engine, http.MethodPost, "/api/v1/interviews",
			jsonBody(`{"kind":"technical"}`), jsonHeader)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("提取失败映射为502且不泄露原因", func(t *testing.T) {
		svc := &fakeInterviewService{
			startErr: &interview.Error{Op: "StartSession", BaseErr: interview.ErrExtraction, Detail: "tika: connection refused 10.0.0.3"},
		}
		h := newTestEngine(svc, "alice")
		w := ut.PerformRequest(h.Engine, http.MethodPost, "/api/v1/interviews",
			jsonBody(`{"kind":"technical"}`), jsonHeader)

		require.Equal(t, http.StatusBadGateway, w.Code)
		resp := decodeError(t, w.Body.Bytes())
		assert.Equal(t, "extraction_error", resp.Error)
		assert.NotContains(t, resp.Message, "10.0.0.3")
	})
}

func TestHandleContinueSession(t *testing.T) {
	t.Run("提交回答", func(t *testing.T) {
		svc := &fakeInterviewService{}
		h := newTestEngine(svc, "alice")

		w := ut.PerformRequest(h.Engine, http.MethodPost, "/api/v1/interviews/abc/messages",
			jsonBody(`{"message":"我做过三年后端"}`), jsonHeader)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "abc", svc.gotSession)
		assert.Equal(t, "我做过三年后端", svc.gotMessage)

		var result interview.ContinueResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		require.NotNil(t, result.Session)
		assert.Equal(t, "abc", result.Session.ID)
		assert.False(t, result.IsComplete)
	})

	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"会话不存在", interview.ErrNotFound, http.StatusNotFound, "not_found"},
		{"会话已结束", interview.ErrAlreadyCompleted, http.StatusConflict, "already_completed"},
		{"会话忙", interview.ErrSessionBusy, http.StatusConflict, "session_busy"},
		{"版本冲突按会话忙处理", interview.ErrVersionConflict, http.StatusConflict, "session_busy"},
		{"空回答", interview.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
		{"模型超时", interview.ErrCollaboratorTimeout, http.StatusGatewayTimeout, "collaborator_timeout"},
		{"模型失败", interview.ErrCollaborator, http.StatusBadGateway, "collaborator_error"},
		{"未知错误", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeInterviewService{continueErr: &interview.Error{Op: "ContinueSession", SessionID: "abc", BaseErr: tc.err}}
			h := newTestEngine(svc, "alice")

			w := ut.PerformRequest(h.Engine, http.MethodPost, "/api/v1/interviews/abc/messages",
				jsonBody(`{"message":"hi"}`), jsonHeader)

			assert.Equal(t, tc.status, w.Code)
			resp := decodeError(t, w.Body.Bytes())
			assert.Equal(t, tc.code, resp.Error)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestHandleGetSession(t *testing.T) {
	svc := &fakeInterviewService{}
	h := newTestEngine(svc, "bob")

	w := ut.PerformRequest(h.Engine, http.MethodGet, "/api/v1/interviews/xyz", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "bob", svc.gotOwner)
	assert.Equal(t, "xyz", svc.gotSession)

	svc.getErr = interview.ErrNotFound
	w = ut.PerformRequest(h.Engine, http.MethodGet, "/api/v1/interviews/xyz", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleListSessions(t *testing.T) {
	t.Run("无会话时返回空数组", func(t *testing.T) {
		h := newTestEngine(&fakeInterviewService{}, "bob")
		w := ut.PerformRequest(h.Engine, http.MethodGet, "/api/v1/interviews", nil)

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"sessions":[]}`, w.Body.String())
	})

	t.Run("返回摘要", func(t *testing.T) {
		minutes := 12
		svc := &fakeInterviewService{sessions: []*interview.SessionSummary{
			{Session: testSession("bob", interview.KindPersonal), MessageCount: 1, DurationMinutes: &minutes},
		}}
		h := newTestEngine(svc, "bob")
		w := ut.PerformRequest(h.Engine, http.MethodGet, "/api/v1/interviews", nil)

		require.Equal(t, http.StatusOK, w.Code)
		var body struct {
			Sessions []map[string]interface{} `json:"sessions"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.Len(t, body.Sessions, 1)
		assert.Equal(t, "s-1", body.Sessions[0]["id"])
		assert.EqualValues(t, 1, body.Sessions[0]["message_count"])
		assert.EqualValues(t, 12, body.Sessions[0]["duration_minutes"])
	})
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, statusFor("internal_error"))
	assert.Equal(t, http.StatusInternalServerError, statusFor(""))
}
