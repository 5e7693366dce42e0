// Package xrun 基于 errgroup 管理服务进程的并发运行与协调关闭。
//
// 典型用法：HTTP 服务器、压力采样器、缓存失效订阅等长活服务注册进
// 同一个 Group，任一服务出错或收到终止信号时全体收到取消；信号触发
// 的关闭先执行 shutdown 钩子（关闭准入），再排空在途请求。
//
//	err := xrun.Run(ctx, []xrun.Option{
//	    xrun.WithName("rxgate"),
//	    xrun.WithShutdownHook(admission.BeginShutdown),
//	},
//	    xrun.HTTPServer(server, 15*time.Second),
//	    admission.Run,
//	)
//	os.Exit(xrun.ExitCode(err))
package xrun
