package xtrap

import (
	"errors"
	"sync"
)

var errFakeInvalidHandle = errors.New("fake: invalid handle")

type fakeWatch struct {
	id     WatchID
	handle Handle
	mask   Signals
	cond   Condition
	onFire func(Status)
	firing bool
}

// fakeWatcher 是确定性的 Watcher：信号变化不会自动触发观察，
// 测试通过 commit/deliver 精确控制触发时机。
type fakeWatcher struct {
	mu      sync.Mutex
	signals map[Handle]Signals
	closed  map[Handle]bool
	watches map[WatchID]*fakeWatch
	next    WatchID

	watchErr error
	cancels  []WatchID
}

func newFakeWatcher() *fakeWatcher {
	return &fakeWatcher{
		signals: make(map[Handle]Signals),
		closed:  make(map[Handle]bool),
		watches: make(map[WatchID]*fakeWatch),
	}
}

// set 创建或修改 handle 的信号，不触发任何观察。
func (f *fakeWatcher) set(h Handle, s Signals) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signals[h] = s
}

func (f *fakeWatcher) eval(h Handle, mask Signals, cond Condition) Status {
	st := Status{Signals: f.signals[h]}
	if f.closed[h] {
		st.Flags = FlagSatisfied | FlagClosed
		return st
	}
	var ok bool
	switch cond {
	case ConditionSatisfied:
		ok = st.Signals&mask != 0
	case ConditionUnsatisfied:
		ok = st.Signals&mask != mask
	}
	if ok {
		st.Flags = FlagSatisfied
	}
	return st
}

func (f *fakeWatcher) Evaluate(h Handle, signals Signals, cond Condition) (Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.signals[h]; !ok {
		return Status{}, errFakeInvalidHandle
	}
	return f.eval(h, signals, cond), nil
}

func (f *fakeWatcher) Watch(h Handle, signals Signals, cond Condition, onFire func(Status)) (WatchID, Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.watchErr != nil {
		return 0, Status{}, f.watchErr
	}
	if _, ok := f.signals[h]; !ok {
		return 0, Status{}, errFakeInvalidHandle
	}
	st := f.eval(h, signals, cond)
	if st.Satisfied() {
		return 0, st, nil
	}
	f.next++
	f.watches[f.next] = &fakeWatch{id: f.next, handle: h, mask: signals, cond: cond, onFire: onFire}
	return f.next, st, nil
}

func (f *fakeWatcher) Cancel(id WatchID) CancelOutcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels = append(f.cancels, id)
	w, ok := f.watches[id]
	if !ok {
		return CancelNotFound
	}
	if w.firing {
		return CancelAlreadyFiring
	}
	delete(f.watches, id)
	return CancelCancelled
}

// commit 把 handle 上条件成立的观察标记为触发中，返回待投递的回调。
// 投递之前 Cancel 返回 CancelAlreadyFiring。
func (f *fakeWatcher) commit(h Handle) []func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []func()
	for _, w := range f.watches {
		if w.handle != h || w.firing {
			continue
		}
		st := f.eval(h, w.mask, w.cond)
		if !st.Satisfied() {
			continue
		}
		w.firing = true
		out = append(out, func() {
			w.onFire(st)
			f.mu.Lock()
			delete(f.watches, w.id)
			f.mu.Unlock()
		})
	}
	return out
}

// fire 在调用方 goroutine 上同步触发 handle 上成立的观察。
func (f *fakeWatcher) fire(h Handle) int {
	deliveries := f.commit(h)
	for _, d := range deliveries {
		d()
	}
	return len(deliveries)
}

func (f *fakeWatcher) live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.watches)
}

func (f *fakeWatcher) hasWatch(id WatchID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.watches[id]
	return ok
}

// events 记录 handler 收到的事件
type events struct {
	mu  sync.Mutex
	got []Event
}

func (e *events) handle(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.got = append(e.got, ev)
}

func (e *events) list() []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Event(nil), e.got...)
}

func (e *events) count(ctx uint64, kind EventKind) int {
	n := 0
	for _, ev := range e.list() {
		if ev.Context == ctx && ev.Kind == kind {
			n++
		}
	}
	return n
}
