// outbox_repair 把投递失败的 outbox 消息重新放回待投递队列
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"interview-coach/internal/config"
	"interview-coach/internal/logger"
	"interview-coach/internal/outbox"
	"interview-coach/internal/storage"

	"github.com/spf13/pflag"
)

func main() {
	var (
		configPath string
		limit      int
		dryRun     bool
	)
	pflag.StringVarP(&configPath, "config", "c", "internal/config/config.yaml", "配置文件路径")
	pflag.IntVarP(&limit, "limit", "n", 100, "本次最多处理的消息数，0 表示不限")
	pflag.BoolVar(&dryRun, "dry-run", false, "只列出失败消息，不做修改")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	closer, err := logger.Init(logger.Config{
		Level:  cfg.Logger.Level,
		Format: "pretty",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()
	log := logger.WithComponent("outbox_repair")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	mysql, err := storage.NewMySQL(&cfg.MySQL)
	if err != nil {
		log.Fatal().Err(err).Msg("连接MySQL失败")
	}
	defer mysql.Close()

	failed, err := outbox.ListFailed(ctx, mysql.DB(), limit)
	if err != nil {
		log.Fatal().Err(err).Msg("读取失败消息出错")
	}
	if len(failed) == 0 {
		log.Info().Msg("没有需要修复的消息")
		return
	}

	ids := make([]uint64, 0, len(failed))
	for _, m := range failed {
		log.Info().
			Uint64("id", m.ID).
			Str("aggregate_id", m.AggregateID).
			Str("event_type", m.EventType).
			Int("retry_count", m.RetryCount).
			Str("error", m.ErrorMessage).
			Msg("失败消息")
		ids = append(ids, m.ID)
	}

	if dryRun {
		log.Info().Int("count", len(ids)).Msg("dry-run 模式，未做修改")
		return
	}

	n, err := outbox.RequeueFailed(ctx, mysql.DB(), ids)
	if err != nil {
		log.Fatal().Err(err).Msg("重置失败消息出错")
	}
	log.Info().Int64("requeued", n).Msg("失败消息已重新进入待投递队列")
}
