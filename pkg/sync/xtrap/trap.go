package xtrap

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/omeyang/xtrap/pkg/observability/xlog"
	"github.com/omeyang/xtrap/pkg/observability/xmetrics"
)

const component = "xtrap"

// Trap 通过一个处理函数观察任意数量的 (handle, 条件) 组合。
//
// 每个 trigger 在 Arm 时对应 [Watcher] 上的一个单次观察。
// Arm 是全有或全无的：只要有一个 trigger 的条件已经成立，
// 本次调用安装的观察全部回滚，并把成立的 trigger 作为 blocker 报告。
//
// 所有方法并发安全。处理函数总是在内部锁释放后调用。
//
// 同一 context 的 [EventRemoved] 总是最后一个事件：RemoveTrigger 和 Close
// 会等待该 trigger 正在进行的 [EventFired] 交付结束后才返回或发出 Removed。
// 在处理函数内部调用时不等待，改由交付方在处理函数返回后补发 Removed。
type Trap struct {
	watcher Watcher
	handler Handler
	opts    options
	logger  xlog.Logger

	mu       sync.Mutex
	idle     *sync.Cond // Fired 交付结束时广播，与 mu 配合
	triggers *registry
	armed    bool
	closed   bool
	// delivering 记录正在交付 Fired 的 goroutine 及其嵌套次数。
	delivering map[uint64]int
}

// New 创建 Trap。watcher 和 handler 不能为 nil。
func New(watcher Watcher, handler Handler, opts ...Option) (*Trap, error) {
	if watcher == nil {
		return nil, ErrNilWatcher
	}
	if handler == nil {
		return nil, ErrNilHandler
	}
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	o.complete()
	t := &Trap{
		watcher:    watcher,
		handler:    handler,
		opts:       o,
		logger:     o.logger.With(xlog.Trap(o.name)),
		triggers:   newRegistry(),
		delivering: make(map[uint64]int),
	}
	t.idle = sync.NewCond(&t.mu)
	return t, nil
}

// Name 返回 Trap 名称。
func (t *Trap) Name() string {
	return t.opts.name
}

// AddTrigger 注册一个 trigger。
//
// handle 的有效性通过 [Watcher.Evaluate] 校验，失败时返回包装后的 watcher 错误。
// AddTrigger 不改变武装状态：新 trigger 没有观察，需要再次 Arm 才会被覆盖。
func (t *Trap) AddTrigger(h Handle, signals Signals, cond Condition, triggerContext uint64) (err error) {
	_, span := t.start("add_trigger")
	defer func() { span.End(xmetrics.Result{Err: err}) }()

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}
	if signals == 0 {
		return ErrInvalidSignals
	}
	if !cond.Valid() {
		return ErrInvalidCondition
	}
	if _, ok := t.triggers.get(triggerContext); ok {
		return ErrDuplicateContext
	}
	if _, err := t.watcher.Evaluate(h, signals, cond); err != nil {
		return fmt.Errorf("xtrap: add trigger %d: %w", triggerContext, err)
	}
	return t.triggers.insert(&trigger{
		context:   triggerContext,
		handle:    h,
		signals:   signals,
		condition: cond,
	})
}

// RemoveTrigger 注销 trigger，并同步取消它的活跃观察。
//
// 若取消时观察已在触发途中，由 RemoveTrigger 负责通知：处理函数收到
// [EventRemoved]，途中的触发被丢弃。其余情况移除是静默的。
//
// 若该 trigger 的 [EventFired] 正在交付，RemoveTrigger 等待处理函数返回，
// 因此返回之后该 context 不会再收到旧注册的事件。在处理函数内部调用时不等待。
func (t *Trap) RemoveTrigger(triggerContext uint64) (err error) {
	ctx, span := t.start("remove_trigger")
	defer func() { span.End(xmetrics.Result{Err: err}) }()

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	tr, ok := t.triggers.remove(triggerContext)
	if !ok {
		t.mu.Unlock()
		return ErrNotFound
	}
	raced := t.disarm(tr)
	if tr.deliverer != 0 && !t.inHandler() {
		t.logger.Debug(ctx, "remove waits for in-flight delivery", xlog.Context(triggerContext))
		for tr.deliverer != 0 {
			t.idle.Wait()
		}
	}
	t.mu.Unlock()

	if raced {
		t.logger.Debug(ctx, "remove raced in-flight fire", xlog.Context(triggerContext))
		t.handler(Event{Context: triggerContext, Kind: EventRemoved})
	}
	return nil
}

// Arm 尝试为每个尚无观察的 trigger 安装观察。
//
// 返回值：
//   - (nil, nil)：武装成功
//   - (blockers, nil)：有 trigger 的条件已成立，本次安装的观察全部回滚；
//     调用方应处理这些条件后再次 Arm
//   - (nil, err)：Trap 已关闭或 watcher 报错，本次安装的观察同样回滚
//
// 已经持有观察的 trigger 不受影响。扫描从轮转游标开始，
// 连续的 Arm 调用会优先检查不同的 trigger。
func (t *Trap) Arm() (blockers []Blocker, err error) {
	ctx, span := t.start("arm")
	defer func() {
		res := xmetrics.Result{Err: err, Attrs: []xmetrics.Attr{xmetrics.Int("blockers", len(blockers))}}
		if err == nil && len(blockers) > 0 {
			res.Status = xmetrics.StatusBlocked
		}
		span.End(res)
	}()

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, ErrClosed
	}

	var installed []*trigger
	for tr := range t.triggers.cycle() {
		if tr.watch != 0 {
			continue
		}
		gen := tr.gen + 1
		id, st, werr := t.watcher.Watch(tr.handle, tr.signals, tr.condition, t.onFire(tr, gen))
		if werr != nil {
			err = fmt.Errorf("xtrap: arm trigger %d: %w", tr.context, werr)
			break
		}
		if id == 0 {
			blockers = append(blockers, Blocker{Context: tr.context, Status: st})
			if t.blockersFull(blockers) {
				break
			}
			continue
		}
		tr.watch, tr.gen = id, gen
		installed = append(installed, tr)
	}

	if err == nil && len(blockers) == 0 {
		t.armed = true
		t.logger.Debug(ctx, "trap armed", xlog.Count(int64(len(installed))))
		return nil, nil
	}

	blockers = t.rollback(installed, blockers)
	if err != nil {
		t.logger.Warn(ctx, "arm failed", xlog.Err(err))
		return nil, err
	}
	t.logger.Debug(ctx, "arm blocked", xlog.Count(int64(len(blockers))))
	return blockers, nil
}

// Status 立即评估 trigger 的条件。
func (t *Trap) Status(triggerContext uint64) (Status, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return Status{}, ErrClosed
	}
	tr, ok := t.triggers.get(triggerContext)
	if !ok {
		return Status{}, ErrNotFound
	}
	st, err := t.watcher.Evaluate(tr.handle, tr.signals, tr.condition)
	if err != nil {
		return Status{}, fmt.Errorf("xtrap: evaluate trigger %d: %w", triggerContext, err)
	}
	return st, nil
}

// Close 关闭 Trap：取消全部观察，并为每个 trigger 交付一次 [EventRemoved]。
// 幂等：后续调用返回 nil 且不产生事件。
//
// 正在交付 [EventFired] 的 trigger，其 Removed 在该次交付结束后发出。
// 从处理函数外调用时，Close 等待这些交付结束，返回时全部 Removed 已交付；
// 从处理函数内调用时不等待，其他 goroutine 上的交付结束后由交付方补发 Removed。
func (t *Trap) Close() error {
	ctx, span := t.start("close")
	defer span.End(xmetrics.Result{})

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.armed = false
	removed := t.triggers.drain()
	for _, tr := range removed {
		t.disarm(tr)
	}
	var self uint64
	if len(t.delivering) > 0 {
		self = goroutineID()
	}
	if t.delivering[self] == 0 {
		for anyDelivering(removed) {
			t.idle.Wait()
		}
	}
	emit := removed[:0:0]
	for _, tr := range removed {
		if tr.deliverer != 0 && tr.deliverer != self {
			tr.removedOwed = true
			continue
		}
		emit = append(emit, tr)
	}
	t.mu.Unlock()

	t.logger.Debug(ctx, "trap closed",
		xlog.Count(int64(len(removed))),
		slog.Int("deferred", len(removed)-len(emit)),
	)
	for _, tr := range emit {
		t.handler(Event{Context: tr.context, Kind: EventRemoved})
	}
	return nil
}

// Armed 报告 Trap 是否处于武装状态。任一 trigger 触发后变为 false。
func (t *Trap) Armed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.armed
}

// Closed 报告 Trap 是否已关闭。
func (t *Trap) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Len 返回已注册的 trigger 数量。
func (t *Trap) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.triggers.len()
}

// Contexts 按注册顺序返回全部 trigger context 的快照，仅用于调试。
func (t *Trap) Contexts() []uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.triggers.contexts()
}

// onFire 返回绑定到 tr 当前观察代数的触发回调。
func (t *Trap) onFire(tr *trigger, gen uint64) func(Status) {
	return func(st Status) {
		t.fire(tr, gen, st)
	}
}

// fire 处理 watcher 交付的触发。只做按 context 的点查，从不使用游标。
//
// 交付期间 tr.deliverer 记录当前 goroutine，RemoveTrigger 和 Close 据此
// 等待或把 Removed 交给本方补发。
func (t *Trap) fire(tr *trigger, gen uint64, st Status) {
	ctx, span := t.start("fire")

	t.mu.Lock()
	cur, ok := t.triggers.get(tr.context)
	if !ok || cur != tr || tr.watch == 0 || tr.gen != gen {
		t.mu.Unlock()
		t.logger.Debug(ctx, "stale fire dropped",
			xlog.Context(tr.context),
			xlog.Signals(uint32(st.Signals)),
		)
		span.End(xmetrics.Result{Status: xmetrics.StatusStale})
		return
	}
	tr.watch = 0
	t.armed = false
	gid := goroutineID()
	tr.deliverer = gid
	t.delivering[gid]++
	t.mu.Unlock()

	defer t.finishDelivery(tr, gid, span)
	t.handler(Event{Context: tr.context, Kind: EventFired, Status: st})
}

// finishDelivery 结束一次 Fired 交付，唤醒等待者，并补发被推迟的 Removed。
// 处理函数 panic 时同样执行。
func (t *Trap) finishDelivery(tr *trigger, gid uint64, span xmetrics.Span) {
	t.mu.Lock()
	tr.deliverer = 0
	if t.delivering[gid]--; t.delivering[gid] == 0 {
		delete(t.delivering, gid)
	}
	owed := tr.removedOwed
	tr.removedOwed = false
	t.idle.Broadcast()
	t.mu.Unlock()

	span.End(xmetrics.Result{})
	if owed {
		t.handler(Event{Context: tr.context, Kind: EventRemoved})
	}
}

// inHandler 报告当前 goroutine 是否正在执行本 Trap 的 Fired 处理函数。
// 调用方必须持有 t.mu。
func (t *Trap) inHandler() bool {
	if len(t.delivering) == 0 {
		return false
	}
	return t.delivering[goroutineID()] > 0
}

func anyDelivering(trs []*trigger) bool {
	for _, tr := range trs {
		if tr.deliverer != 0 {
			return true
		}
	}
	return false
}

// disarm 取消 tr 的活跃观察，调用方必须持有 t.mu。
// 返回 true 表示观察已在触发途中，通知责任转移给调用方。
func (t *Trap) disarm(tr *trigger) bool {
	if tr.watch == 0 {
		return false
	}
	outcome := t.watcher.Cancel(tr.watch)
	tr.watch = 0
	return outcome == CancelAlreadyFiring
}

// rollback 撤销本次 Arm 安装的观察。
// 回滚时已在触发途中的观察，其回调会因 watch 清零被丢弃，
// 这里重新评估并补报为 blocker。
func (t *Trap) rollback(installed []*trigger, blockers []Blocker) []Blocker {
	for _, tr := range installed {
		if !t.disarm(tr) || t.blockersFull(blockers) {
			continue
		}
		st, err := t.watcher.Evaluate(tr.handle, tr.signals, tr.condition)
		if err == nil && st.Satisfied() {
			blockers = append(blockers, Blocker{Context: tr.context, Status: st})
		}
	}
	return blockers
}

func (t *Trap) blockersFull(blockers []Blocker) bool {
	return t.opts.maxBlockers > 0 && len(blockers) >= t.opts.maxBlockers
}

func (t *Trap) start(operation string) (context.Context, xmetrics.Span) {
	return xmetrics.Start(context.Background(), t.opts.observer, xmetrics.SpanOptions{
		Component: component,
		Operation: operation,
		Kind:      xmetrics.KindInternal,
		Attrs:     []xmetrics.Attr{xmetrics.String("trap", t.opts.name)},
	})
}
