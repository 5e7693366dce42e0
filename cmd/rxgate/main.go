// rxgate 是处方订单网关服务。
//
// 用法:
//
//	rxgate [--config <path>]
//
// 配置文件为 YAML 或 JSON，缺省时使用内置默认值（本地开发）。
// 收到 SIGINT/SIGTERM 后停止接收新请求、排空在途请求并以 0 退出；
// 启动失败或服务异常退出返回 1。
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/omeyang/rxgate/internal/app"
	"github.com/omeyang/rxgate/pkg/lifecycle/xrun"
)

// 版本信息（通过 -ldflags 注入）。
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
)

func main() {
	os.Exit(run())
}

func createApp() *cli.Command {
	return &cli.Command{
		Name:    "rxgate",
		Usage:   "处方订单网关服务",
		Version: fmt.Sprintf("%s (commit: %s)", Version, GitCommit),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "配置文件路径（.yaml/.yml/.json）",
				Sources: cli.EnvVars("RXGATE_CONFIG"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return app.Run(ctx, cmd.String("config"))
		},
	}
}

func run() int {
	err := createApp().Run(context.Background(), os.Args)
	if err != nil {
		if code := xrun.ExitCode(err); code == 0 {
			return 0
		}
		fmt.Fprintln(os.Stderr, "rxgate:", err)
		return 1
	}
	return 0
}
