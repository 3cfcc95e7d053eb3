// Package xpool 提供通用的泛型 worker pool。
//
// 特性：
//   - 可配置的 worker 数量（[1, 65536]）和队列大小（[1, 16777216]）
//   - New 之后自动启动，无需手动 Start
//   - Submit 永不阻塞，队列满时返回 ErrQueueFull
//   - Close 处理完队列中的任务后退出，Shutdown(ctx) 支持超时
//   - panic 恢复，日志默认只记录 task 类型，WithLogTaskValue 启用完整值输出
//
// xsignal 使用 Pool 异步投递 watch 通知。
//
// # 注意事项
//
//   - Close/Shutdown 不可在 handler 内调用，否则会死锁
//   - panic 的任务不会被重试
//   - Shutdown 超时返回后，可通过 Done() 等待残留 worker 最终完成
package xpool
