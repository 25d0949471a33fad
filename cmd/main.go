package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"interview-coach/internal/agent"
	"interview-coach/internal/api/handler"
	"interview-coach/internal/api/router"
	"interview-coach/internal/config"
	"interview-coach/internal/constants"
	"interview-coach/internal/interview"
	"interview-coach/internal/logger"
	"interview-coach/internal/metrics"
	"interview-coach/internal/outbox"
	"interview-coach/internal/parser"
	"interview-coach/internal/storage"
	"interview-coach/internal/tracing"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"
)

var (
	version = "1.0.0" //nolint:gochecknoglobals
)

func main() {
	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "internal/config/config.yaml", "Path to config file")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logCloser, err := logger.Init(logger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
		FilePath:     cfg.Logger.FilePath,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()
	log := logger.WithComponent("main")
	log.Info().Str("config", configPath).Msg("配置加载成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.InitProvider(ctx, cfg.Tracing, constants.ServiceName, version)
	if err != nil {
		log.Fatal().Err(err).Msg("初始化链路追踪失败")
	}

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("初始化存储失败")
	}
	defer storageManager.Close()
	log.Info().Msg("存储服务初始化成功")

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.NewMetrics(constants.MetricsNamespace, registry)

	service, err := buildInterviewService(ctx, cfg, storageManager, appMetrics)
	if err != nil {
		log.Fatal().Err(err).Msg("初始化面试服务失败")
	}

	var relay *outbox.MessageRelay
	if storageManager.RabbitMQ != nil {
		relay = outbox.NewMessageRelay(storageManager.MySQL.DB(), storageManager.RabbitMQ,
			outbox.WithPollingInterval(config.GetDuration(cfg.Outbox.PollingInterval, 5*time.Second)),
			outbox.WithBatchSize(cfg.Outbox.BatchSize),
		)
		relay.Start()
		log.Info().Msg("消息中继服务已启动")
	} else {
		log.Warn().Msg("RabbitMQ 不可用，完成事件暂存在 outbox 表中")
	}

	tracer, tracerCfg := hertztracing.NewServerTracer()
	h := server.New(
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
		tracer,
	)
	h.Use(hertztracing.ServerMiddleware(tracerCfg))
	h.Use(func(c context.Context, ctx *app.RequestContext) {
		start := time.Now()
		ctx.Next(c)
		hlog.CtxInfof(c, "%s %s -> %d (%s)", string(ctx.Method()), string(ctx.Path()),
			ctx.Response.StatusCode(), time.Since(start))
	})

	healthChecks := map[string]router.Pinger{
		"mysql": storageManager.MySQL,
		"redis": storageManager.Redis,
	}
	if storageManager.MinIO != nil {
		healthChecks["minio"] = storageManager.MinIO
	}

	router.RegisterRoutes(h, handler.NewInterviewHandler(service), router.Options{
		APIKeys:        cfg.Auth.APIKeys,
		MetricsHandler: appMetrics.Handler(),
		HealthChecks:   healthChecks,
	})
	log.Info().Str("address", cfg.Server.Address).Msg("HTTP 服务器启动中")

	go func() {
		if err := h.Run(); err != nil {
			log.Fatal().Err(err).Msg("启动HTTP服务器失败")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("接收到终止信号，正在优雅退出...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP服务器关闭失败")
	}
	if relay != nil {
		relay.Stop()
		log.Info().Msg("消息中继服务已停止")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("关闭链路追踪失败")
	}
	log.Info().Msg("优雅退出完成")
}

// buildInterviewService 组装会话编排所需的各个协作者
func buildInterviewService(ctx context.Context, cfg *config.Config, st *storage.Storage, rec interview.Recorder) (*interview.Service, error) {
	repo := storage.NewInterviewRepository(st.MySQL.DB(), storage.CompletionEventTarget{
		Exchange:   cfg.RabbitMQ.InterviewEventsExchange,
		RoutingKey: cfg.RabbitMQ.CompletedRoutingKey,
	})

	pdf, err := parser.BuildPDFExtractor(ctx, &cfg.Tika)
	if err != nil {
		return nil, fmt.Errorf("创建文本提取器失败: %w", err)
	}
	var fetcher parser.DocumentFetcher
	if st.MinIO != nil {
		fetcher = st.MinIO
	}
	resolver := interview.NewResumeTextResolver(
		repo,
		storage.NewResumeTextCache(st.Redis),
		parser.NewResumeTextExtractor(fetcher, pdf),
		interview.WithExtractionTimeout(config.GetDuration(cfg.Interview.ExtractionTimeout, interview.DefaultExtractionTimeout)),
		interview.WithResolverRecorder(rec),
	)

	chatModel, err := agent.NewChatModel(&cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("创建对话模型失败: %w", err)
	}
	interviewer, err := agent.NewLLMInterviewer(chatModel)
	if err != nil {
		return nil, fmt.Errorf("创建面试官失败: %w", err)
	}

	locker := storage.NewRedisSessionLocker(st.Redis,
		config.GetDuration(cfg.Interview.LockTTL, 90*time.Second),
		config.GetDuration(cfg.Interview.LockWait, 5*time.Second),
	)

	return interview.NewService(repo, repo, resolver, interviewer,
		interview.WithSessionLocker(locker),
		interview.WithGenerationTimeout(config.GetDuration(cfg.Interview.GenerationTimeout, interview.DefaultGenerationTimeout)),
		interview.WithRecorder(rec),
	)
}
