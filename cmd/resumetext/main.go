// resumetext 离线预览简历文本提取结果，可选生成第一轮面试提问
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"interview-coach/internal/agent"
	"interview-coach/internal/config"
	"interview-coach/internal/interview"
	"interview-coach/internal/logger"
	"interview-coach/internal/parser"

	"github.com/spf13/pflag"
)

func main() {
	var (
		configPath string
		file       string
		engine     string
		maxLen     int
		firstTurn  string
	)
	pflag.StringVarP(&configPath, "config", "c", "internal/config/config.yaml", "配置文件路径")
	pflag.StringVarP(&file, "file", "f", "", "简历文件路径 (必填)")
	pflag.StringVar(&engine, "engine", "", "覆盖配置中的提取器类型: tika 或 eino")
	pflag.IntVar(&maxLen, "maxlen", 1000, "显示的最大字符数，-1 显示全部")
	pflag.StringVar(&firstTurn, "first-turn", "", "提取后按该面试类型生成第一轮提问: personal 或 technical")
	pflag.Parse()

	if file == "" {
		fmt.Fprintln(os.Stderr, "错误: 必须提供 --file")
		pflag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	closer, err := logger.Init(logger.Config{Level: cfg.Logger.Level, Format: "pretty"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()
	log := logger.WithComponent("resumetext")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	tikaCfg := cfg.Tika
	if engine != "" {
		tikaCfg.Type = engine
	}
	pdf, err := parser.BuildPDFExtractor(ctx, &tikaCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("创建文本提取器失败")
	}

	abs, err := filepath.Abs(file)
	if err != nil {
		log.Fatal().Err(err).Msg("解析文件路径失败")
	}
	extractor := parser.NewResumeTextExtractor(parser.LocalFileFetcher{Root: filepath.Dir(abs)}, pdf)

	start := time.Now()
	text, err := extractor.ExtractText(ctx, filepath.Base(abs))
	if err != nil {
		log.Fatal().Err(err).Str("file", abs).Msg("提取简历文本失败")
	}
	log.Info().Int("runes", len([]rune(text))).Dur("duration", time.Since(start)).Msg("提取完成")

	preview := []rune(text)
	if maxLen >= 0 && len(preview) > maxLen {
		fmt.Println(string(preview[:maxLen]))
		fmt.Printf("\n...(共 %d 字，已截断)\n", len(preview))
	} else {
		fmt.Println(text)
	}

	if firstTurn == "" {
		return
	}
	kind, err := interview.ParseKind(firstTurn)
	if err != nil {
		log.Fatal().Err(err).Msg("面试类型无效")
	}
	chatModel, err := agent.NewChatModel(&cfg.LLM)
	if err != nil {
		log.Fatal().Err(err).Msg("创建对话模型失败")
	}
	interviewer, err := agent.NewLLMInterviewer(chatModel)
	if err != nil {
		log.Fatal().Err(err).Msg("创建面试官失败")
	}
	turn, err := interviewer.GenerateTurn(ctx, interview.TurnRequest{Kind: kind, ResumeText: text})
	if err != nil {
		log.Fatal().Err(err).Msg("生成第一轮提问失败")
	}
	fmt.Printf("\n面试官: %s\n", turn.ResponseText)
}
