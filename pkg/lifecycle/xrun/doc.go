// Package xrun 提供基于 errgroup 的进程生命周期管理。
//
// [Group] 并发运行多个服务，任一服务出错时取消其余服务；
// [Run] 额外监听 SIGHUP/SIGINT/SIGTERM/SIGQUIT，收到信号时返回 [*SignalError]：
//
//	err := xrun.Run(ctx, watchFiles, consumeEvents)
//	if errors.Is(err, xrun.ErrSignal) {
//	    // 正常退出
//	}
//
// [Ticker] 把周期任务包装为服务函数。
package xrun
