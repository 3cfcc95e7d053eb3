package xsignal

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/omeyang/xtrap/pkg/observability/xlog"
	"github.com/omeyang/xtrap/pkg/sync/xtrap"
	"github.com/omeyang/xtrap/pkg/util/xpool"
)

var _ xtrap.Watcher = (*Hub)(nil)

type watchState uint8

const (
	watchArmed watchState = iota
	watchFiring
)

type watch struct {
	id     xtrap.WatchID
	handle xtrap.Handle
	mask   xtrap.Signals
	cond   xtrap.Condition
	onFire func(xtrap.Status)
	state  watchState
	status xtrap.Status
}

type entry struct {
	signals xtrap.Signals
	closed  bool
	watches map[xtrap.WatchID]*watch
}

// Hub 是进程内的 handle 表，每个 handle 带一组信号位，
// 并提供 [xtrap.Watcher] 要求的单条件单次观察。
//
// 通知通过 worker pool 异步投递，队列满时改由独立 goroutine 投递。
// 一个观察从开始触发到回调返回之间，Cancel 返回 [xtrap.CancelAlreadyFiring]。
type Hub struct {
	logger xlog.Logger
	pool   *xpool.Pool[*watch]

	mu         sync.Mutex
	handles    map[xtrap.Handle]*entry
	watches    map[xtrap.WatchID]*watch
	nextHandle xtrap.Handle
	nextWatch  xtrap.WatchID
	closed     bool

	overflow sync.WaitGroup
}

// New 创建 Hub。
func New(opts ...Option) (*Hub, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	h := &Hub{
		logger:  o.logger.With(xlog.Component("xsignal")),
		handles: make(map[xtrap.Handle]*entry),
		watches: make(map[xtrap.WatchID]*watch),
	}
	pool, err := xpool.New(o.workers, o.queueSize, h.deliver,
		xpool.WithName("xsignal"), xpool.WithLogger(o.logger))
	if err != nil {
		return nil, fmt.Errorf("xsignal: create pool: %w", err)
	}
	h.pool = pool
	return h, nil
}

// Create 创建一个初始信号为 initial 的 handle。
func (h *Hub) Create(initial xtrap.Signals) (xtrap.Handle, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0, ErrClosed
	}
	h.nextHandle++
	h.handles[h.nextHandle] = &entry{
		signals: initial,
		watches: make(map[xtrap.WatchID]*watch),
	}
	return h.nextHandle, nil
}

// Raise 置位 bits。
func (h *Hub) Raise(handle xtrap.Handle, bits xtrap.Signals) error {
	return h.update(handle, func(s xtrap.Signals) xtrap.Signals { return s | bits })
}

// Clear 清除 bits。
func (h *Hub) Clear(handle xtrap.Handle, bits xtrap.Signals) error {
	return h.update(handle, func(s xtrap.Signals) xtrap.Signals { return s &^ bits })
}

// Set 把信号整体替换为 signals。
func (h *Hub) Set(handle xtrap.Handle, signals xtrap.Signals) error {
	return h.update(handle, func(xtrap.Signals) xtrap.Signals { return signals })
}

// Signals 返回 handle 当前的信号位。已关闭的 handle 仍可查询。
func (h *Hub) Signals(handle xtrap.Handle) (xtrap.Signals, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, err := h.lookup(handle)
	if err != nil {
		return 0, err
	}
	return e.signals, nil
}

// CloseHandle 关闭 handle，其上的全部观察以 Closed 状态触发。
// 关闭后的 handle 保留在表中，评估结果永久为 satisfied|closed。
func (h *Hub) CloseHandle(handle xtrap.Handle) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, err := h.lookup(handle)
	if err != nil {
		return err
	}
	if e.closed {
		return ErrHandleClosed
	}
	e.closed = true
	h.notify(e)
	return nil
}

// Len 返回 handle 数量（含已关闭的）。
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handles)
}

// Close 关闭全部 handle，等待所有通知投递完成。幂等。
// 不可在观察回调内调用。
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	for _, e := range h.handles {
		if !e.closed {
			e.closed = true
			h.notify(e)
		}
	}
	h.mu.Unlock()

	err := h.pool.Close()
	h.overflow.Wait()
	return err
}

// Evaluate 实现 [xtrap.Watcher]。
func (h *Hub) Evaluate(handle xtrap.Handle, signals xtrap.Signals, cond xtrap.Condition) (xtrap.Status, error) {
	if err := validate(signals, cond); err != nil {
		return xtrap.Status{}, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	e, err := h.lookup(handle)
	if err != nil {
		return xtrap.Status{}, err
	}
	return evaluate(e.signals, e.closed, signals, cond), nil
}

// Watch 实现 [xtrap.Watcher]。条件已成立时返回零 WatchID。
func (h *Hub) Watch(handle xtrap.Handle, signals xtrap.Signals, cond xtrap.Condition, onFire func(xtrap.Status)) (xtrap.WatchID, xtrap.Status, error) {
	if err := validate(signals, cond); err != nil {
		return 0, xtrap.Status{}, err
	}
	if onFire == nil {
		return 0, xtrap.Status{}, ErrNilCallback
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0, xtrap.Status{}, ErrClosed
	}
	e, err := h.lookup(handle)
	if err != nil {
		return 0, xtrap.Status{}, err
	}
	st := evaluate(e.signals, e.closed, signals, cond)
	if st.Satisfied() {
		return 0, st, nil
	}
	h.nextWatch++
	w := &watch{
		id:     h.nextWatch,
		handle: handle,
		mask:   signals,
		cond:   cond,
		onFire: onFire,
	}
	e.watches[w.id] = w
	h.watches[w.id] = w
	return w.id, st, nil
}

// Cancel 实现 [xtrap.Watcher]。
func (h *Hub) Cancel(id xtrap.WatchID) xtrap.CancelOutcome {
	h.mu.Lock()
	defer h.mu.Unlock()
	w, ok := h.watches[id]
	if !ok {
		return xtrap.CancelNotFound
	}
	if w.state == watchFiring {
		return xtrap.CancelAlreadyFiring
	}
	delete(h.watches, id)
	if e, ok := h.handles[w.handle]; ok {
		delete(e.watches, id)
	}
	return xtrap.CancelCancelled
}

func (h *Hub) update(handle xtrap.Handle, fn func(xtrap.Signals) xtrap.Signals) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, err := h.lookup(handle)
	if err != nil {
		return err
	}
	if e.closed {
		return ErrHandleClosed
	}
	e.signals = fn(e.signals)
	h.notify(e)
	return nil
}

// lookup 调用方必须持有 h.mu。
func (h *Hub) lookup(handle xtrap.Handle) (*entry, error) {
	e, ok := h.handles[handle]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrInvalidHandle, handle)
	}
	return e, nil
}

// notify 触发 e 上所有条件成立的观察，调用方必须持有 h.mu。
// 触发中的观察离开 handle 的观察集，但保留在 h.watches 中直到投递完成。
func (h *Hub) notify(e *entry) {
	for id, w := range e.watches {
		st := evaluate(e.signals, e.closed, w.mask, w.cond)
		if !st.Satisfied() {
			continue
		}
		delete(e.watches, id)
		w.state = watchFiring
		w.status = st
		h.dispatch(w)
	}
}

func (h *Hub) dispatch(w *watch) {
	err := h.pool.Submit(w)
	if err == nil {
		return
	}
	h.logger.Debug(context.Background(), "delivery queue unavailable, using goroutine",
		xlog.Err(err), xlog.Handle(uint64(w.handle)))
	h.overflow.Go(func() { h.deliver(w) })
}

func (h *Hub) deliver(w *watch) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error(context.Background(), "watch callback panic recovered",
				slog.Any("panic", r),
				xlog.Handle(uint64(w.handle)),
				xlog.Signals(uint32(w.status.Signals)),
			)
		}
		h.mu.Lock()
		delete(h.watches, w.id)
		h.mu.Unlock()
	}()
	w.onFire(w.status)
}

func validate(signals xtrap.Signals, cond xtrap.Condition) error {
	if signals == 0 {
		return ErrInvalidSignals
	}
	if !cond.Valid() {
		return ErrInvalidCondition
	}
	return nil
}
