// Package xmetrics 提供统一的可观测性接口（metrics + tracing）。
//
// 业务代码只依赖 Observer/Span/Attr 接口；默认 [NoopObserver] 不做任何事，
// [NewOTelObserver] 提供基于 OpenTelemetry 的实现。
//
//	obs, _ := xmetrics.NewOTelObserver()
//	ctx, span := xmetrics.Start(ctx, obs, xmetrics.SpanOptions{
//		Component: "xtrap",
//		Operation: "arm",
//	})
//	defer span.End(xmetrics.Result{Err: err})
//
// # 指标命名
//
//   - xtrap.operation.total     计数器
//   - xtrap.operation.duration  直方图（秒）
//
// 指标属性只有 component / operation / status，保持低基数；
// SpanOptions.Attrs 与 Result.Attrs 只写入 trace。
package xmetrics
