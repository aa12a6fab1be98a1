package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/automaxprocs/maxprocs"

	"VeilStrike/internal/config"
	"VeilStrike/internal/model"
	"VeilStrike/internal/orchestrator"
	"VeilStrike/internal/utils"
	"VeilStrike/pkg/cli"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run 执行一次完整的命令行流程并返回退出码
func run(args []string, stdout, stderr io.Writer) int {
	// 解析命令行参数
	parser := cli.NewParser(stderr)
	if err := parser.Parse(args); err != nil {
		if errors.Is(err, cli.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "错误: %v\n\n", err)
		fmt.Fprintf(stderr, "使用方法: VeilStrike (--url <URL> | --ip <IP> | --repo <路径>) [选项]\n")
		fmt.Fprintf(stderr, "使用 --help 查看完整帮助信息\n")
		return 1
	}

	options := parser.Options
	if options.Verbose {
		utils.SetDebug(true)
	}
	logger := utils.NewLogger("main")

	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
		logger.Debug(format, args...)
	})); err != nil {
		logger.Warn("设置 GOMAXPROCS 失败: %v", err)
	}

	target, err := model.NewTarget(options.URL, options.IP, options.Repo)
	if err != nil {
		fmt.Fprintf(stderr, "错误: %v\n", err)
		return 1
	}

	cfg, err := config.Load(options.ConfigFile)
	if err != nil {
		logger.Error("加载配置失败: %v", err)
		return 1
	}
	if options.UDP {
		cfg.Ports.UDP = true
	}

	logger.Info("启动 VeilStrike 扫描器 v1.0")
	logger.Debug("DNS并发: %d, 端口并发: %d, 端口范围: %s, UDP: %v",
		cfg.DNS.Concurrency, cfg.Ports.Concurrency, cfg.Ports.Range, cfg.Ports.UDP)

	orch, err := orchestrator.New(cfg, orchestrator.Dependencies{})
	if err != nil {
		logger.Error("初始化失败: %v", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, runErr := orch.Run(ctx, target)
	if report != nil {
		formatter := cli.NewOutputFormatter(options.OutputFormat, stdout)
		if err := formatter.PrintReport(report, options.OutputFile); err != nil {
			logger.Error("输出结果失败: %v", err)
			return 1
		}
	}

	if runErr != nil {
		return 1
	}
	return 0
}
