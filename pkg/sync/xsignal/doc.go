// Package xsignal 提供进程内的信号 handle 表，是 [xtrap.Watcher] 的参考实现。
//
// 每个 handle 带一组 32 位信号，调用方通过 Raise/Clear/Set 修改，
// CloseHandle 关闭后信号冻结，评估结果永久为 satisfied|closed。
//
// 条件语义：
//   - ConditionSatisfied：state&mask != 0
//   - ConditionUnsatisfied：state&mask != mask
//
// 观察是单次的：条件成立时从 handle 上摘下，通过 xpool 异步投递回调；
// 队列满时改由独立 goroutine 投递。回调返回之前 Cancel 报告 AlreadyFiring。
//
//	hub, _ := xsignal.New()
//	defer hub.Close()
//	h, _ := hub.Create(0)
//	trap, _ := xtrap.New(hub, handler)
//	_ = trap.AddTrigger(h, xsignal.Readable, xtrap.ConditionSatisfied, 1)
//	_, _ = trap.Arm()
//	_ = hub.Raise(h, xsignal.Readable) // handler 收到 context 1 的 fired 事件
package xsignal
