package xpool

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/omeyang/xtrap/pkg/observability/xlog"
)

const (
	maxWorkers   = 1 << 16
	maxQueueSize = 1 << 24
)

var _ io.Closer = (*Pool[struct{}])(nil)

// Pool 是泛型 worker pool，New 之后即开始处理任务。
type Pool[T any] struct {
	workers int
	handler func(T)
	queue   chan T
	opts    options
	logger  xlog.Logger

	mu      sync.RWMutex
	stopped bool

	wg       sync.WaitGroup
	done     chan struct{}
	stopOnce sync.Once
}

// New 创建并启动 worker pool。
//
// workers 取值 [1, 65536]，queueSize 取值 [1, 16777216]，handler 不能为 nil。
func New[T any](workers, queueSize int, handler func(T), opts ...Option) (*Pool[T], error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	if workers < 1 || workers > maxWorkers {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWorkers, workers)
	}
	if queueSize < 1 || queueSize > maxQueueSize {
		return nil, fmt.Errorf("%w: %d", ErrInvalidQueueSize, queueSize)
	}

	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	logger := o.logger
	if o.name != "" {
		logger = logger.With(xlog.Component(o.name))
	}

	p := &Pool[T]{
		workers: workers,
		handler: handler,
		queue:   make(chan T, queueSize),
		opts:    o,
		logger:  logger,
		done:    make(chan struct{}),
	}
	p.wg.Add(workers)
	for range workers {
		go p.worker()
	}
	go func() {
		p.wg.Wait()
		close(p.done)
	}()
	return p, nil
}

func (p *Pool[T]) worker() {
	defer p.wg.Done()
	for task := range p.queue {
		p.run(task)
	}
}

func (p *Pool[T]) run(task T) {
	defer func() {
		if r := recover(); r != nil {
			attrs := []slog.Attr{
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			}
			if p.opts.logTaskValue {
				attrs = append(attrs, slog.Any("task", task))
			} else {
				attrs = append(attrs, slog.String("task_type", fmt.Sprintf("%T", task)))
			}
			p.logger.Error(context.Background(), "xpool: worker panic recovered", attrs...)
		}
	}()
	p.handler(task)
}

// Submit 非阻塞提交任务。队列满返回 ErrQueueFull，关闭后返回 ErrPoolStopped。
func (p *Pool[T]) Submit(task T) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrPoolStopped
	}
	select {
	case p.queue <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close 拒绝新任务并等待队列中的任务全部处理完成。
// 不可在 handler 内调用。
func (p *Pool[T]) Close() error {
	return p.Shutdown(context.Background())
}

// Shutdown 与 Close 相同，但 ctx 到期后立即返回 ctx 错误，
// 残留 worker 继续在后台处理剩余任务，可通过 Done 等待。
func (p *Pool[T]) Shutdown(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		close(p.queue)
		p.mu.Unlock()
	})
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done 返回在全部 worker 退出后关闭的 channel。
func (p *Pool[T]) Done() <-chan struct{} {
	return p.done
}

// Workers 返回 worker 数量。
func (p *Pool[T]) Workers() int {
	return p.workers
}

// QueueSize 返回队列容量。
func (p *Pool[T]) QueueSize() int {
	return cap(p.queue)
}
