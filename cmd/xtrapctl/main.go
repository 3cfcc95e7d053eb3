// xtrapctl 是 xtrap 多条件 trap 的演示与文件就绪监视工具。
//
// 用法:
//
//	xtrapctl [全局选项] <命令> [命令参数]
//
// 全局选项:
//
//	-c, --config      配置文件路径（yaml/json，可选）
//	    --log-level   日志级别 debug/info/warn/error（覆盖配置）
//	    --log-format  日志格式 text/json（覆盖配置）
//	    --log-file    日志文件路径，按大小轮转（覆盖配置）
//
// 命令:
//
//	demo              进程内演示 arm、fire、blocker 轮转与 close
//	watch <path...>   监视文件，写入后报告就绪并重新武装
//	help              显示帮助信息
//
// 退出码:
//
//	0: 成功（watch 收到 SIGINT/SIGTERM 正常退出也视为成功）
//	1: 运行失败
//	2: 参数错误
//
// 示例:
//
//	xtrapctl demo --max-blockers 1
//	xtrapctl demo --stats
//	xtrapctl -c xtrapctl.yaml watch /tmp/a.log /tmp/b.log
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
)

// 版本信息（可通过 -ldflags 注入，例如:
//
//	go build -ldflags "-X main.Version=1.0.0 -X main.GitCommit=$(git rev-parse --short HEAD) -X main.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
//
// ）。
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// usageError 表示参数错误，映射为退出码 2。
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func newUsageError(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

func main() {
	os.Exit(run(context.Background(), os.Args, os.Stdout, os.Stderr))
}

// createApp 创建 CLI 应用，命令输出写入 stdout。
func createApp(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "xtrapctl",
		Usage:     "xtrap 多条件 trap 演示与文件就绪监视",
		Version:   fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "配置文件路径（yaml/json）",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "日志级别 debug/info/warn/error",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "日志格式 text/json",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "日志文件路径（为空时输出到 stderr）",
			},
		},
		Commands: []*cli.Command{
			createDemoCommand(stdout),
			createWatchCommand(stdout),
		},
		DefaultCommand: "help",
		// 退出码统一由 run 映射，不让 urfave/cli 直接调用 os.Exit。
		ExitErrHandler: func(_ context.Context, _ *cli.Command, err error) {
			if _, ok := err.(cli.ExitCoder); ok {
				fmt.Fprintln(stderr, err)
			}
		},
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	app := createApp(stdout, stderr)
	if err := app.Run(ctx, args); err != nil {
		var usageErr *usageError
		if errors.As(err, &usageErr) {
			fmt.Fprintf(stderr, "参数错误: %v\n", usageErr)
			return 2
		}
		if isCLIUsageError(err) {
			fmt.Fprintf(stderr, "参数错误: %v\n", err)
			return 2
		}
		fmt.Fprintf(stderr, "错误: %v\n", err)
		return 1
	}
	return 0
}

// isCLIUsageError 识别 urfave/cli 在解析阶段产生的错误。
// 这些错误没有导出类型，只能按消息前缀判断。
func isCLIUsageError(err error) bool {
	msg := err.Error()
	for _, prefix := range []string{
		"flag provided but not defined",
		"invalid value",
		"No help topic for",
		"Required flag",
		"flag needs an argument",
	} {
		if strings.Contains(msg, prefix) {
			return true
		}
	}
	return false
}
