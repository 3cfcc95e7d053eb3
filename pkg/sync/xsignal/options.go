package xsignal

import "github.com/omeyang/xtrap/pkg/observability/xlog"

const (
	defaultWorkers   = 4
	defaultQueueSize = 256
)

// Option 配置 Hub。
type Option func(*options)

type options struct {
	workers   int
	queueSize int
	logger    xlog.Logger
}

func defaultOptions() options {
	return options{
		workers:   defaultWorkers,
		queueSize: defaultQueueSize,
		logger:    xlog.Default(),
	}
}

// WithWorkers 设置投递通知的 worker 数量，非正数被忽略。
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithQueueSize 设置投递队列容量，非正数被忽略。
// 队列满时通知改由独立 goroutine 投递，不会丢弃。
func WithQueueSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.queueSize = n
		}
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
