package interview

import (
	"context"
	"errors"
	"net"
	"time"
)

// 外部调用的默认超时
const (
	DefaultExtractionTimeout = 30 * time.Second
	DefaultGenerationTimeout = 60 * time.Second
)

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
