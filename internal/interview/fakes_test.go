package interview

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// memorySessionStore 内存会话存储，带版本校验
type memorySessionStore struct {
	mu        sync.Mutex
	sessions  map[string]*Session
	createErr error
	saveErr   error
	saves     int
}

func newMemorySessionStore() *memorySessionStore {
	return &memorySessionStore{sessions: make(map[string]*Session)}
}

func (m *memorySessionStore) CreateSession(ctx context.Context, session *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.sessions[session.ID] = session.Clone()
	return nil
}

func (m *memorySessionStore) LoadSession(ctx context.Context, sessionID, ownerID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok || s.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *memorySessionStore) SaveSession(ctx context.Context, session *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	current, ok := m.sessions[session.ID]
	if !ok {
		return ErrNotFound
	}
	if current.Version != session.Version {
		return ErrVersionConflict
	}
	session.Version++
	m.sessions[session.ID] = session.Clone()
	m.saves++
	return nil
}

func (m *memorySessionStore) ListSessionsByOwner(ctx context.Context, ownerID string) ([]*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Session
	for _, s := range m.sessions {
		if s.OwnerID == ownerID {
			out = append(out, s.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memorySessionStore) get(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id].Clone()
}

// memoryResumeStore 内存简历存储
type memoryResumeStore struct {
	resumes []*Resume
	err     error
}

func (m *memoryResumeStore) LoadResumeByID(ctx context.Context, resumeID string) (*Resume, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, r := range m.resumes {
		if r.ID == resumeID {
			c := *r
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memoryResumeStore) LoadLatestResumeForOwner(ctx context.Context, ownerID string) (*Resume, error) {
	if m.err != nil {
		return nil, m.err
	}
	var latest *Resume
	for _, r := range m.resumes {
		if r.OwnerID == ownerID && (latest == nil || r.UploadedAt.After(latest.UploadedAt)) {
			latest = r
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	c := *latest
	return &c, nil
}

// memoryCache 内存文本缓存
type memoryCache struct {
	mu     sync.Mutex
	items  map[string]string
	ttls   map[string]time.Duration
	getErr error
	setErr error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{items: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (m *memoryCache) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", false, m.getErr
	}
	v, ok := m.items[key]
	return v, ok, nil
}

func (m *memoryCache) Set(ctx context.Context, key string, text string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.items[key] = text
	m.ttls[key] = ttl
	return nil
}

// countingExtractor 记录调用次数的提取器
type countingExtractor struct {
	mu    sync.Mutex
	texts map[string]string
	err   error
	delay time.Duration
	calls int
}

func (c *countingExtractor) ExtractText(ctx context.Context, location string) (string, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if c.err != nil {
		return "", c.err
	}
	return c.texts[location], nil
}

func (c *countingExtractor) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// scriptedGenerator 按顺序返回预设结果，并记录收到的请求
type scriptedGenerator struct {
	mu       sync.Mutex
	results  []*TurnResult
	err      error
	block    bool
	requests []TurnRequest
}

func (g *scriptedGenerator) GenerateTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	idx := len(g.requests) - 1
	g.mu.Unlock()

	if g.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if g.err != nil {
		return nil, g.err
	}
	if idx < len(g.results) {
		return g.results[idx], nil
	}
	return &TurnResult{ResponseText: "Next question."}, nil
}

func (g *scriptedGenerator) lastRequest() TurnRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.requests[len(g.requests)-1]
}

func (g *scriptedGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

// recordingRecorder 统计上报次数
type recordingRecorder struct {
	mu        sync.Mutex
	started   int
	turns     int
	completed int
	sources   []string
	failures  []string
}

func (r *recordingRecorder) SessionStarted(Kind, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started++
}

func (r *recordingRecorder) TurnCompleted(Kind, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turns++
}

func (r *recordingRecorder) SessionCompleted(Kind, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed++
}

func (r *recordingRecorder) ResumeTextResolved(source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources = append(r.sources, source)
}

func (r *recordingRecorder) CollaboratorFailed(op string, kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, op+":"+kind)
}

var errBoom = errors.New("boom")
