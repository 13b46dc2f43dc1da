package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"sse-perftool/bench/internal/config"
	"sse-perftool/bench/internal/exporter"
	"sse-perftool/bench/internal/logger"
	"sse-perftool/bench/internal/provider"
	"sse-perftool/bench/internal/reporter"
	"sse-perftool/bench/internal/tester"
)

func main() {
	app := &cli.App{
		Name:  "sse-bench",
		Usage: "SSE 流式输出性能测试工具（TTFT / TPOT / 吞吐量）",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "",
				Usage:   "配置文件路径（可选，命令行参数覆盖配置文件）",
			},
			&cli.StringFlag{
				Name:  "host",
				Usage: "服务器主机地址",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "服务器端口",
			},
			&cli.StringFlag{
				Name:  "path",
				Usage: "请求路径",
			},
			&cli.StringFlag{
				Name:  "api-key",
				Usage: "API 密钥（'app-xxx' 或 'Bearer app-xxx' 格式）",
			},
			&cli.StringFlag{
				Name:  "api-key-file",
				Usage: "API Key 参数化文件路径，每行一个 key，循环使用",
			},
			&cli.StringFlag{
				Name:  "query",
				Usage: "查询文本（使用参数化文件时此参数无效）",
			},
			&cli.StringFlag{
				Name:  "param-file",
				Usage: "参数化文件路径，每行一个查询文本，循环使用",
			},
			&cli.StringFlag{
				Name:  "conversation-id",
				Usage: "对话ID",
			},
			&cli.StringFlag{
				Name:  "user",
				Usage: "用户标识",
			},
			&cli.IntFlag{
				Name:    "threads",
				Aliases: []string{"t"},
				Usage:   "并发线程数",
			},
			&cli.IntFlag{
				Name:  "ramp-up",
				Usage: "压测线程递增时间（秒）",
			},
			&cli.IntFlag{
				Name:    "duration",
				Aliases: []string{"execution-time"},
				Usage:   "测试执行时间长度（秒），0 表示每个线程只执行一次",
			},
			&cli.IntFlag{
				Name:  "timeout",
				Usage: "请求超时时间（秒）",
			},
			&cli.StringFlag{
				Name:  "model-name",
				Usage: "模型名称（可选），会包含在报告文件名中",
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "静默模式，不输出实时统计和汇总",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "输出每个请求的调试日志",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "输出Excel报告路径（默认在导出目录下自动命名）",
			},
			&cli.StringSliceFlag{
				Name:    "export-formats",
				Aliases: []string{"e"},
				Value:   cli.NewStringSlice("html"),
				Usage:   "导出格式: csv, json, html（可多选，逗号分隔）",
			},
			&cli.StringFlag{
				Name:  "export-dir",
				Usage: "导出目录路径",
			},
		},
		Action: runBenchmark,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

// buildConfig merges the optional config file with CLI overrides.
func buildConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	if c.IsSet("host") {
		cfg.Target.Host = c.String("host")
	}
	if c.IsSet("port") {
		cfg.Target.Port = c.Int("port")
	}
	if c.IsSet("path") {
		cfg.Target.Path = c.String("path")
	}
	if c.IsSet("api-key") {
		cfg.Auth.APIKey = c.String("api-key")
	}
	if c.IsSet("api-key-file") {
		cfg.Auth.APIKeyFile = c.String("api-key-file")
	}
	if c.IsSet("query") {
		cfg.Request.Query = c.String("query")
	}
	if c.IsSet("param-file") {
		cfg.Request.ParamFile = c.String("param-file")
	}
	if c.IsSet("conversation-id") {
		cfg.Request.ConversationID = c.String("conversation-id")
	}
	if c.IsSet("user") {
		cfg.Request.User = c.String("user")
	}
	if c.IsSet("threads") {
		cfg.Load.Threads = c.Int("threads")
	}
	if c.IsSet("ramp-up") {
		cfg.Load.RampUpSec = c.Int("ramp-up")
	}
	if c.IsSet("duration") {
		cfg.Load.DurationSec = c.Int("duration")
	}
	if c.IsSet("timeout") {
		cfg.Request.Timeout = fmt.Sprintf("%ds", c.Int("timeout"))
	}
	if c.IsSet("model-name") {
		cfg.Output.ModelName = c.String("model-name")
	}
	if c.IsSet("export-dir") {
		cfg.Output.Dir = c.String("export-dir")
	}
	if c.IsSet("export-formats") {
		cfg.Output.Formats = c.StringSlice("export-formats")
	}
	if c.Bool("verbose") {
		cfg.Log.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runBenchmark(c *cli.Context) error {
	cfg, err := buildConfig(c)
	if err != nil {
		return err
	}
	quiet := c.Bool("quiet")

	log := logger.New(&cfg.Log)
	defer log.Sync()

	if cfg.Auth.APIKey == "" && cfg.Auth.APIKeyFile == "" {
		return fmt.Errorf("需要提供 --api-key 或 --api-key-file")
	}

	// Query provider: rotating file values, or the single default query.
	queries := provider.New(nil, cfg.Request.Query)
	if cfg.Request.ParamFile != "" {
		queries, err = provider.NewFromFile(cfg.Request.ParamFile, cfg.Request.Query)
		if err != nil {
			fmt.Printf("警告: %v，使用默认查询\n", err)
		} else if !quiet {
			fmt.Printf("已加载参数化文件: %s\n", cfg.Request.ParamFile)
			fmt.Printf("查询数量: %d\n\n", queries.Len())
		}
	}

	// API key provider is only used in file mode; otherwise the static
	// key from the config is used for every request.
	var apiKeys *provider.RoundRobin
	if cfg.Auth.APIKeyFile != "" {
		apiKeys, err = provider.NewFromFile(cfg.Auth.APIKeyFile, cfg.Auth.APIKey)
		if err != nil {
			fmt.Printf("警告: %v，回退到默认 key\n", err)
		}
	}

	client, err := tester.NewSSEClient(&tester.ClientConfig{
		Host:           cfg.Target.Host,
		Port:           cfg.Target.Port,
		Path:           cfg.Target.Path,
		TLS:            cfg.Target.TLS,
		APIKey:         cfg.Auth.APIKey,
		User:           cfg.Request.User,
		ConversationID: cfg.Request.ConversationID,
		FileURL:        cfg.Request.FileURL,
		Timeout:        cfg.RequestTimeout(),
		Socks5:         cfg.Proxy.Socks5,
		ProxyUsername:  cfg.Proxy.Username,
		ProxyPassword:  cfg.Proxy.Password,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n\n收到中断信号，正在停止测试...")
		cancel()
	}()

	if !quiet {
		printRunHeader(cfg)
	}

	runner := tester.NewRunner(tester.RunConfig{
		Threads:  cfg.Load.Threads,
		RampUp:   time.Duration(cfg.Load.RampUpSec) * time.Second,
		Duration: time.Duration(cfg.Load.DurationSec) * time.Second,
		Verbose:  !quiet,
	}, client, queries, apiKeys, cfg.Auth.APIKey, log)

	results := runner.Run(ctx)

	report := &tester.RunReport{
		Host:        cfg.Target.Host,
		Port:        cfg.Target.Port,
		ModelName:   cfg.Output.ModelName,
		ThreadCount: cfg.Load.Threads,
		DurationSec: cfg.Load.DurationSec,
		GeneratedAt: time.Now(),
		Results:     results,
		TimeSeries:  runner.Registry().TimeSeries(),
		Stats:       tester.Summarize(results),
	}

	if !quiet {
		printSummary(cfg, report)
	}

	if err := generateReports(c, cfg, report); err != nil {
		return err
	}

	for _, res := range results {
		if !res.Success() {
			return cli.Exit("", 1)
		}
	}
	return nil
}

func printRunHeader(cfg *config.Config) {
	fmt.Printf("开始测试，线程数: %d\n", cfg.Load.Threads)
	if cfg.Load.DurationSec > 0 {
		fmt.Printf("执行时间长度: %s\n", formatSeconds(cfg.Load.DurationSec))
	} else {
		fmt.Println("执行模式: 单次执行（每个线程执行一次后退出）")
	}
	if cfg.Load.RampUpSec > 0 {
		fmt.Printf("递增时间: %d秒\n", cfg.Load.RampUpSec)
	}
	fmt.Println(strings.Repeat("=", 60))
	fmt.Println()
}

// formatSeconds renders a duration like the original tool: 90 -> 1分30秒.
func formatSeconds(sec int) string {
	if sec < 60 {
		return fmt.Sprintf("%d秒", sec)
	}
	minutes := sec / 60
	seconds := sec % 60
	if seconds > 0 {
		return fmt.Sprintf("%d分%d秒", minutes, seconds)
	}
	return fmt.Sprintf("%d分钟", minutes)
}

func printSummary(cfg *config.Config, report *tester.RunReport) {
	line := strings.Repeat("=", 60)
	fmt.Println("\n" + line)
	fmt.Println("           测试完成 - 汇总统计")
	fmt.Println(line)

	total := len(report.Results)
	success := report.SuccessCount()
	totalChunks, totalTokens := 0, 0
	var totalTime, totalTTFB, totalTTFT float64
	for _, r := range report.Results {
		totalChunks += r.ChunkCount
		totalTokens += r.TokenCount
		totalTime += r.TotalResponseTime
		if r.Success() {
			totalTTFB += r.TTFB
			totalTTFT += r.TTFT
		}
	}

	fmt.Printf("配置线程数: %d\n", cfg.Load.Threads)
	fmt.Printf("请求次数: %d\n", total)
	if cfg.Load.DurationSec > 0 {
		fmt.Printf("配置执行时间: %d 秒\n", cfg.Load.DurationSec)
	}
	if total > 0 {
		fmt.Printf("实际执行时间: %.2f 秒\n", report.ActualDuration())
	}
	fmt.Printf("成功: %d\n", success)
	fmt.Printf("失败: %d\n", total-success)
	successRate := 0.0
	if total > 0 {
		successRate = float64(success) / float64(total) * 100.0
	}
	fmt.Printf("成功率: %.2f %%\n", successRate)
	fmt.Printf("总数据块数: %d\n", totalChunks)
	fmt.Printf("总Token数: %d\n", totalTokens)
	fmt.Printf("总响应时间: %.2f ms\n", totalTime)
	if success > 0 {
		fmt.Printf("平均响应时间: %.2f ms\n", totalTime/float64(success))
		fmt.Printf("平均TTFB: %.2f ms\n", totalTTFB/float64(success))
		fmt.Printf("平均TTFT: %.2f ms\n", totalTTFT/float64(success))
	}
	fmt.Println(line)
	fmt.Println()
}

func generateReports(c *cli.Context, cfg *config.Config, report *tester.RunReport) error {
	if err := os.MkdirAll(cfg.Output.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// Excel workbook.
	outputPath := c.String("output")
	if outputPath == "" {
		name := "sse_perf_" + report.GeneratedAt.Format("20060102_150405") + ".xlsx"
		if cfg.Output.ModelName != "" {
			name = fmt.Sprintf("sse_perf_%s_%s.xlsx", cfg.Output.ModelName, report.GeneratedAt.Format("20060102_150405"))
		}
		outputPath = filepath.Join(cfg.Output.Dir, name)
	}
	excelReporter := reporter.NewExcelReporter()
	if err := excelReporter.GenerateReport(report, outputPath); err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}
	fmt.Printf("✓ Excel 报告已生成: %s\n", outputPath)

	// Additional export formats.
	var formats []exporter.ExportFormat
	for _, format := range cfg.Output.Formats {
		switch strings.ToLower(strings.TrimSpace(format)) {
		case "csv":
			formats = append(formats, exporter.FormatCSV)
		case "json":
			formats = append(formats, exporter.FormatJSON)
		case "html":
			formats = append(formats, exporter.FormatHTML)
		}
	}
	if len(formats) > 0 {
		exp := exporter.NewExporter(cfg.Output.Dir)
		if err := exp.Export(report, formats); err != nil {
			fmt.Printf("⚠️  导出失败: %v\n", err)
		}
	}
	return nil
}
