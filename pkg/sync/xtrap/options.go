package xtrap

import (
	"github.com/google/uuid"

	"github.com/omeyang/xtrap/pkg/observability/xlog"
	"github.com/omeyang/xtrap/pkg/observability/xmetrics"
)

// Option 定义 Trap 可选配置。
type Option func(*options)

type options struct {
	logger      xlog.Logger
	observer    xmetrics.Observer
	maxBlockers int
	name        string
}

func defaultOptions() options {
	return options{
		logger:   xlog.Default(),
		observer: xmetrics.NoopObserver{},
	}
}

// WithLogger 设置日志记录器。默认使用 [xlog.Default]，nil 被忽略。
func WithLogger(logger xlog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithObserver 设置观测器。默认 [xmetrics.NoopObserver]，nil 被忽略。
func WithObserver(observer xmetrics.Observer) Option {
	return func(o *options) {
		if observer != nil {
			o.observer = observer
		}
	}
}

// WithMaxBlockers 限制单次 Arm 收集的 blocker 数量。
// 收集到 n 个后立即停止扫描；n <= 0 表示不限制（默认）。
//
// n == 1 时每次 Arm 只报告一个 blocker，配合轮转游标，
// 连续的 Arm 调用会依次报告不同的 blocker。
func WithMaxBlockers(n int) Option {
	if n < 0 {
		n = 0
	}
	return func(o *options) {
		o.maxBlockers = n
	}
}

// WithName 设置 Trap 名称，出现在日志和观测属性中。
// 默认为随机 UUID，空字符串被忽略。
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

func (o *options) complete() {
	if o.name == "" {
		o.name = uuid.NewString()
	}
}
