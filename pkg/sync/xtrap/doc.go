// Package xtrap 提供多条件事件陷阱（trap）。
//
// Trap 把任意数量的 (handle, 信号掩码, 条件) 组合汇聚到一个处理函数上，
// 底层依赖只能在一个 handle 上观察一个条件的单次观察能力（[Watcher]）。
//
// # 生命周期
//
//	Disarmed --Arm 成功--> Armed --任一 trigger 触发--> Disarmed
//	    \                    |
//	     +------Close--------+--> Closed（终态）
//
//   - AddTrigger：注册 trigger，不改变武装状态
//   - Arm：全有或全无。条件已成立的 trigger 作为 [Blocker] 返回，
//     本次调用安装的观察全部回滚
//   - 触发：处理函数收到 [EventFired]，其他 trigger 的观察保持安装
//   - RemoveTrigger：同步取消观察；与途中触发竞争时交付 [EventRemoved]
//   - Close：为每个剩余 trigger 交付一次 [EventRemoved]，幂等
//
// # 公平性
//
// Arm 从轮转游标开始扫描 registry，扫描结束后游标移动到最后检查的
// trigger 之后。配合 [WithMaxBlockers]，条件长期成立的多个 trigger
// 会被轮流报告，而不是总报告同一个。注册表的任何变更都会重置游标。
//
// # 通知保证
//
//   - 两次成功 Arm 之间，同一 trigger 最多收到一次 [EventFired]
//   - RemoveTrigger 与途中触发竞争时，处理函数恰好收到一次事件
//   - Close 之后才进入 Trap 的触发全部被丢弃
//   - 同一 context 的 [EventRemoved] 不会早于它正在交付的 [EventFired]；
//     RemoveTrigger 返回后旧注册不再产生事件（在处理函数内调用时除外）
//
// # 使用示例
//
//	hub, _ := xsignal.New()
//	defer hub.Close()
//	h := hub.Create(0)
//
//	trap, _ := xtrap.New(hub, func(ev xtrap.Event) {
//	    fmt.Println(ev.Context, ev.Kind)
//	})
//	defer trap.Close()
//
//	_ = trap.AddTrigger(h, xsignal.Readable, xtrap.ConditionSatisfied, 1)
//	if blockers, err := trap.Arm(); err == nil && len(blockers) == 0 {
//	    _ = hub.Raise(h, xsignal.Readable) // 异步交付 (1, fired)
//	}
package xtrap
