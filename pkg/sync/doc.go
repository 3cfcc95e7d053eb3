// Package sync 提供事件同步原语相关的子包。
//
// 子包列表：
//   - xtrap: 多条件 trap，用单一回调观察任意数量的 (handle, 条件) 组合
//   - xsignal: 信号位 handle 表，实现 xtrap.Watcher 的单条件单次观察
//
// 设计原则：
//   - 回调总在锁外执行，允许回调重入
//   - 观察结果异步交付，交付前可以可靠地取消
package sync
