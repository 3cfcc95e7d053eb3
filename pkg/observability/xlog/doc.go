// Package xlog 基于 log/slog 的结构化日志库。
//
// # 创建 Logger
//
// 使用 Builder 模式（first-error-wins）：
//
//	logger, cleanup, err := xlog.New().
//	    SetLevel(xlog.LevelDebug).
//	    SetFormat("json").
//	    SetRotation("/var/log/xtrap/xtrap.log", xlog.WithMaxSize(50)).
//	    Build()
//	if err != nil {
//	    return err
//	}
//	defer cleanup()
//
// SetRotation 基于 lumberjack 实现按大小轮转，cleanup 负责关闭文件。
//
// # 全局 Logger
//
//   - [Default]: 获取全局 Logger（惰性初始化：stderr、Info 级别、text 格式）
//   - [SetDefault]: 替换全局 Logger（nil 会被忽略）
//   - [ResetDefault]: 重置为未初始化状态（仅用于测试）
//   - [Discard]: 丢弃全部输出，适用于测试
//
// # 级别
//
// LevelDebug(-4)、LevelInfo(0)、LevelWarn(4)、LevelError(8)。
// Level 实现 encoding.TextMarshaler/TextUnmarshaler，可以直接出现在配置结构体中。
// Build 返回的 Logger 支持 SetLevel 运行时调整，With 派生的 logger 共享级别。
//
// # 便捷属性
//
// 通用：[Err]、[Duration]、[Count]、[Component]、[Operation]、[Path]。
// trap 相关：[Trap]、[Context]、[Handle]、[Signals]。
package xlog
