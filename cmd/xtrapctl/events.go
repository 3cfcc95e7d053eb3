package main

import (
	"context"
	"sync"

	"github.com/omeyang/xtrap/pkg/sync/xtrap"
)

// eventQueue 把 trap 事件从交付 goroutine 转交给消费循环。
// push 从不阻塞：Close 会在消费循环自身的 goroutine 上同步交付 Removed。
type eventQueue struct {
	mu    sync.Mutex
	items []xtrap.Event
	ready chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{ready: make(chan struct{}, 1)}
}

// push 实现 xtrap.Handler。
func (q *eventQueue) push(ev xtrap.Event) {
	q.mu.Lock()
	q.items = append(q.items, ev)
	q.mu.Unlock()
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// take 取走当前排队的全部事件。
func (q *eventQueue) take() []xtrap.Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	return out
}

// wait 阻塞到累计收到至少 n 个事件或 ctx 结束。
func (q *eventQueue) wait(ctx context.Context, n int) ([]xtrap.Event, error) {
	var got []xtrap.Event
	for {
		got = append(got, q.take()...)
		if len(got) >= n {
			return got, nil
		}
		select {
		case <-q.ready:
		case <-ctx.Done():
			return got, ctx.Err()
		}
	}
}
