package interview

import (
	"context"
	"sync"
	"time"
)

// KeyedLocker 进程内按会话 id 加锁，单实例部署或测试时使用
type KeyedLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
	wait  time.Duration
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

var _ SessionLocker = (*KeyedLocker)(nil)

// NewKeyedLocker wait 为获取锁的最长等待时间，<=0 表示只受 ctx 约束
func NewKeyedLocker(wait time.Duration) *KeyedLocker {
	return &KeyedLocker{
		locks: make(map[string]*keyLock),
		wait:  wait,
	}
}

// Lock 实现 SessionLocker
func (l *KeyedLocker) Lock(ctx context.Context, sessionID string) (func(), error) {
	l.mu.Lock()
	kl, ok := l.locks[sessionID]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		l.locks[sessionID] = kl
	}
	kl.refs++
	l.mu.Unlock()

	waitCtx := ctx
	if l.wait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	select {
	case kl.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-kl.ch
				l.release(sessionID, kl)
			})
		}, nil
	case <-waitCtx.Done():
		l.release(sessionID, kl)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, ErrSessionBusy
	}
}

func (l *KeyedLocker) release(sessionID string, kl *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, sessionID)
	}
}
