package storage

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"interview-coach/internal/constants"
	"interview-coach/internal/interview"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completedSession() *interview.Session {
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	closed := created.Add(20 * time.Minute)
	return &interview.Session{
		ID:        "0190c7a8-0000-7000-8000-000000000001",
		OwnerID:   "alice",
		Kind:      interview.KindTechnical,
		ResumeRef: "r-alice",
		Messages: []interview.Message{
			{Role: interview.RoleAssistant, Content: "你好", OccurredAt: created},
			{Role: interview.RoleUser, Content: "我做过分布式缓存", OccurredAt: created.Add(time.Minute)},
			{Role: interview.RoleAssistant, Content: "谢谢", OccurredAt: created.Add(2 * time.Minute)},
		},
		Status: interview.StatusCompleted,
		Feedback: &interview.Feedback{
			Rating:      7,
			Strengths:   []string{"表达清晰"},
			Suggestions: []string{"补充量化结果"},
		},
		ClosedAt:  &closed,
		CreatedAt: created,
		Version:   4,
	}
}

func TestSessionModelConversion(t *testing.T) {
	t.Run("完整会话往返", func(t *testing.T) {
		s := completedSession()
		row, err := sessionToModel(s)
		require.NoError(t, err)
		assert.Equal(t, "technical", row.Kind)
		assert.Equal(t, "completed", row.Status)
		assert.Equal(t, int64(4), row.Version)

		back, err := sessionFromModel(row)
		require.NoError(t, err)
		assert.Equal(t, s, back)
	})

	t.Run("进行中的会话没有反馈", func(t *testing.T) {
		s := completedSession()
		s.Status = interview.StatusActive
		s.Feedback = nil
		s.ClosedAt = nil

		row, err := sessionToModel(s)
		require.NoError(t, err)
		assert.Empty(t, row.Feedback)

		back, err := sessionFromModel(row)
		require.NoError(t, err)
		assert.Nil(t, back.Feedback)
		assert.Nil(t, back.ClosedAt)
	})

	t.Run("JSON null 视为无反馈", func(t *testing.T) {
		row, err := sessionToModel(completedSession())
		require.NoError(t, err)
		row.Feedback = []byte("null")
		back, err := sessionFromModel(row)
		require.NoError(t, err)
		assert.Nil(t, back.Feedback)
	})

	t.Run("损坏的消息列表", func(t *testing.T) {
		row, err := sessionToModel(completedSession())
		require.NoError(t, err)
		row.Messages = []byte("{broken")
		_, err = sessionFromModel(row)
		assert.Error(t, err)
	})
}

func TestCompletedOutboxMessage(t *testing.T) {
	s := completedSession()
	target := CompletionEventTarget{Exchange: "interview.events", RoutingKey: "interview.completed"}

	msg, err := completedOutboxMessage(s, target)
	require.NoError(t, err)
	assert.Equal(t, s.ID, msg.AggregateID)
	assert.Equal(t, constants.AggregateInterview, msg.AggregateType)
	assert.Equal(t, constants.EventInterviewCompleted, msg.EventType)
	assert.Equal(t, constants.OutboxStatusPending, msg.Status)
	assert.Equal(t, "interview.events", msg.TargetExchange)
	assert.Equal(t, "interview.completed", msg.TargetRoutingKey)

	var event CompletedEvent
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &event))
	assert.Equal(t, "alice", event.OwnerID)
	assert.Equal(t, "technical", event.Kind)
	assert.Equal(t, 1, event.UserTurns)
	assert.Equal(t, *s.ClosedAt, event.CompletedAt)
	require.NotNil(t, event.Feedback)
	assert.Equal(t, 7, event.Feedback.Rating)
}

func TestSplitLocation(t *testing.T) {
	tests := []struct {
		name       string
		location   string
		defBucket  string
		wantBucket string
		wantKey    string
		wantErr    bool
	}{
		{"bucket 与 key", "resumes/alice/cv.pdf", "", "resumes", "alice/cv.pdf", false},
		{"前导斜杠", "/resumes/cv.pdf", "", "resumes", "cv.pdf", false},
		{"仅 key 使用默认桶", "cv.pdf", "default", "default", "cv.pdf", false},
		{"仅 key 且无默认桶", "cv.pdf", "", "", "", true},
		{"空位置", "  ", "default", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, key, err := splitLocation(tt.location, tt.defBucket)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBucket, bucket)
			assert.Equal(t, tt.wantKey, key)
		})
	}
}

type fakeStringStore struct {
	values map[string]string
	ttls   map[string]time.Duration
	getErr error
}

func (f *fakeStringStore) Get(_ context.Context, key string) (string, error) {
	if f.getErr != nil {
		return "", f.getErr
	}
	v, ok := f.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (f *fakeStringStore) Set(_ context.Context, key string, value string, expiration time.Duration) error {
	f.values[key] = value
	f.ttls[key] = expiration
	return nil
}

func TestResumeTextCache(t *testing.T) {
	store := &fakeStringStore{values: map[string]string{}, ttls: map[string]time.Duration{}}
	cache := NewResumeTextCache(store)
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, "resume:r1")
	require.NoError(t, err, "redis.Nil 不是错误")
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, "resume:r1", "简历正文", constants.ResumeTextCacheTTL))
	assert.Equal(t, constants.ResumeTextCacheTTL, store.ttls["resume:r1"])

	text, ok, err := cache.Get(ctx, "resume:r1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "简历正文", text)

	store.getErr = errors.New("connection refused")
	_, ok, err = cache.Get(ctx, "resume:r1")
	assert.Error(t, err)
	assert.False(t, ok)
}

type fakeLockStore struct {
	mu        sync.Mutex
	held      map[string]string
	seq       int
	acquireN  int
	releaseOK bool
	released  []string
}

func newFakeLockStore() *fakeLockStore {
	return &fakeLockStore{held: map[string]string{}, releaseOK: true}
}

func (f *fakeLockStore) AcquireLock(_ context.Context, key string, _ time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acquireN++
	if _, ok := f.held[key]; ok {
		return "", nil
	}
	f.seq++
	token := string(rune('a' + f.seq))
	f.held[key] = token
	return token, nil
}

func (f *fakeLockStore) ReleaseLock(_ context.Context, key string, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, key)
	if !f.releaseOK || f.held[key] != token {
		return ErrLockNotHeld
	}
	delete(f.held, key)
	return nil
}

func TestRedisSessionLocker(t *testing.T) {
	t.Run("获取与释放", func(t *testing.T) {
		store := newFakeLockStore()
		locker := NewRedisSessionLocker(store, time.Minute, time.Second)

		unlock, err := locker.Lock(context.Background(), "s1")
		require.NoError(t, err)
		assert.Contains(t, store.held, SessionLockKey("s1"))

		unlock()
		assert.NotContains(t, store.held, SessionLockKey("s1"))
	})

	t.Run("等待超时返回 busy", func(t *testing.T) {
		store := newFakeLockStore()
		locker := NewRedisSessionLocker(store, time.Minute, 120*time.Millisecond)
		locker.retryInterval = 10 * time.Millisecond

		unlock, err := locker.Lock(context.Background(), "s1")
		require.NoError(t, err)
		defer unlock()

		_, err = locker.Lock(context.Background(), "s1")
		assert.ErrorIs(t, err, interview.ErrSessionBusy)
		assert.Greater(t, store.acquireN, 2, "等待期间应重试")
	})

	t.Run("等待期间锁被释放", func(t *testing.T) {
		store := newFakeLockStore()
		locker := NewRedisSessionLocker(store, time.Minute, time.Second)
		locker.retryInterval = 10 * time.Millisecond

		unlock, err := locker.Lock(context.Background(), "s1")
		require.NoError(t, err)
		go func() {
			time.Sleep(50 * time.Millisecond)
			unlock()
		}()

		unlock2, err := locker.Lock(context.Background(), "s1")
		require.NoError(t, err)
		unlock2()
	})

	t.Run("上下文取消", func(t *testing.T) {
		store := newFakeLockStore()
		locker := NewRedisSessionLocker(store, time.Minute, time.Minute)
		locker.retryInterval = 10 * time.Millisecond

		unlock, err := locker.Lock(context.Background(), "s1")
		require.NoError(t, err)
		defer unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()
		_, err = locker.Lock(ctx, "s1")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("锁已过期时释放不报错", func(t *testing.T) {
		store := newFakeLockStore()
		store.releaseOK = false
		locker := NewRedisSessionLocker(store, time.Minute, time.Second)

		unlock, err := locker.Lock(context.Background(), "s1")
		require.NoError(t, err)
		assert.NotPanics(t, unlock)
		assert.Equal(t, []string{SessionLockKey("s1")}, store.released)
	})
}

func TestSessionLockKey(t *testing.T) {
	assert.Equal(t, "app:interview:lock:abc", SessionLockKey("abc"))
}
