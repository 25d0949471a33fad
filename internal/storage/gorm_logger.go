package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	applog "interview-coach/internal/logger"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const slowQueryThreshold = 200 * time.Millisecond

// gormZerolog 把 GORM 的日志转到 zerolog，带上请求上下文里的日志字段
type gormZerolog struct {
	level gormlogger.LogLevel
	slow  time.Duration
}

var _ gormlogger.Interface = (*gormZerolog)(nil)

func newGormLogger(level gormlogger.LogLevel) *gormZerolog {
	return &gormZerolog{level: level, slow: slowQueryThreshold}
}

func (l *gormZerolog) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *gormZerolog) event(ctx context.Context, level zerolog.Level) *zerolog.Event {
	return applog.Ctx(ctx).WithLevel(level).Str("component", "gorm")
}

func (l *gormZerolog) Info(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Info {
		l.event(ctx, zerolog.InfoLevel).Msg(fmt.Sprintf(msg, args...))
	}
}

func (l *gormZerolog) Warn(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.event(ctx, zerolog.WarnLevel).Msg(fmt.Sprintf(msg, args...))
	}
}

func (l *gormZerolog) Error(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Error {
		l.event(ctx, zerolog.ErrorLevel).Msg(fmt.Sprintf(msg, args...))
	}
}

// Trace 记录出错的语句和慢查询；Info 级别时记录全部语句
func (l *gormZerolog) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= gormlogger.Error:
		sql, rows := fc()
		l.event(ctx, zerolog.ErrorLevel).Err(err).Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", sql).Msg("SQL执行失败")
	case elapsed > l.slow && l.level >= gormlogger.Warn:
		sql, rows := fc()
		l.event(ctx, zerolog.WarnLevel).Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", sql).Msg("慢查询")
	case l.level >= gormlogger.Info:
		sql, rows := fc()
		l.event(ctx, zerolog.DebugLevel).Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", sql).Msg("SQL")
	}
}
