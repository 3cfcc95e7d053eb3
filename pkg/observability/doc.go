// Package observability 提供可观测性相关的子包。
//
// 子包列表：
//   - xlog: 结构化日志，基于 log/slog 扩展，支持 lumberjack 文件轮转
//   - xmetrics: 统一可观测性接口（指标、追踪），默认 Noop，可接入 OpenTelemetry
//
// 设计原则：
//   - 遵循 OpenTelemetry 语义规范
//   - 库代码通过选项注入 Logger/Observer，不依赖全局状态
//   - 支持动态级别控制
package observability
