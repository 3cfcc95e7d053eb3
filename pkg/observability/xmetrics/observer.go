package xmetrics

import (
	"context"
	"strconv"
)

// Kind 表示观测跨度类型。
//
// trap 的同步操作（add_trigger、remove_trigger、arm、close）都是 KindInternal；
// 观察回调驱动的 fire 同样在进程内完成，也记为 KindInternal。
// Producer/Consumer 留给跨 goroutine 投递通知的组件，例如 signal hub 的 worker。
type Kind int

const (
	// KindInternal 表示进程内操作。
	KindInternal Kind = iota
	// KindProducer 表示产生异步通知。
	KindProducer
	// KindConsumer 表示处理异步通知。
	KindConsumer
)

// String 返回 Kind 的可读名称。
func (k Kind) String() string {
	switch k {
	case KindInternal:
		return "Internal"
	case KindProducer:
		return "Producer"
	case KindConsumer:
		return "Consumer"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Status 是跨度结束时写入指标 status 属性的结果。
//
// 取值必须是固定的小集合，指标才能保持低基数。trap 使用的取值：
//
//	ok       操作完成；fire 表示 handler 收到了 fired 事件
//	error    操作返回错误（ErrClosed、ErrNotFound、watcher 失败等）
//	blocked  arm 因条件已成立的 trigger 而回滚，没有进入武装状态
//	stale    fire 回调晚于 remove、close 或重新武装到达，被丢弃
//
// blocked 与 stale 不是错误：它们是 trap 正常的竞争结果，单独计数便于
// 区分"频繁被阻塞的 Arm"和"真正失败的 Arm"。
type Status string

const (
	// StatusOK 表示成功。
	StatusOK Status = "ok"
	// StatusError 表示失败。
	StatusError Status = "error"
	// StatusBlocked 表示 Arm 被已成立的条件阻止。
	StatusBlocked Status = "blocked"
	// StatusStale 表示过期的触发回调被丢弃。
	StatusStale Status = "stale"
)

// Attr 表示观测属性。
type Attr struct {
	Key   string
	Value any
}

// SpanOptions 定义观测跨度的创建参数。
type SpanOptions struct {
	// Component 标识组件名称，如 "xtrap"。
	Component string
	// Operation 标识操作名称。trap 的操作为 add_trigger、remove_trigger、
	// arm、fire、close，与公开方法一一对应（fire 对应观察回调）。
	Operation string
	// Kind 标识跨度类型。
	Kind Kind
	// Attrs 附加属性，仅写入 trace。
	Attrs []Attr
}

// Result 表示观测跨度结束时的结果。
type Result struct {
	// Status 为空时根据 Err 推导。
	Status Status
	// Err 表示操作错误。
	Err error
	// Attrs 附加属性，仅写入 trace。
	Attrs []Attr
}

// Span 表示一次观测跨度。
type Span interface {
	// End 结束观测并记录结果。
	End(result Result)
}

// Observer 定义统一观测接口。
type Observer interface {
	// Start 开始一次观测跨度。
	Start(ctx context.Context, opts SpanOptions) (context.Context, Span)
}

// NoopObserver 是空实现。
type NoopObserver struct{}

// Start 返回 ctx 和空跨度。
func (NoopObserver) Start(ctx context.Context, _ SpanOptions) (context.Context, Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx, NoopSpan{}
}

// NoopSpan 是空跨度实现。
type NoopSpan struct{}

// End 不做任何处理。
func (NoopSpan) End(Result) {}

// Start 使用 observer 开始观测，保证返回非 nil 的 context 和 Span。
// nil observer、nil ctx、自定义 Observer 返回的 nil 值都会被兜底。
func Start(ctx context.Context, observer Observer, opts SpanOptions) (context.Context, Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	if observer == nil {
		return ctx, NoopSpan{}
	}
	retCtx, span := observer.Start(ctx, opts)
	if retCtx == nil {
		retCtx = ctx
	}
	if span == nil {
		span = NoopSpan{}
	}
	return retCtx, span
}
