package xpool

import "github.com/omeyang/xtrap/pkg/observability/xlog"

// Option 定义 Pool 可选配置函数类型。
type Option func(*options)

type options struct {
	logger       xlog.Logger
	name         string
	logTaskValue bool
}

func defaultOptions() options {
	return options{
		logger: xlog.Default(),
	}
}

// WithLogger 设置日志记录器，nil 被忽略。
func WithLogger(logger xlog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithName 设置 pool 名称，用于在多实例场景下区分日志来源。
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithLogTaskValue 在 panic 日志中输出完整 task 值。默认只记录 task 类型。
func WithLogTaskValue() Option {
	return func(o *options) {
		o.logTaskValue = true
	}
}
