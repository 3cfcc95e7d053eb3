package xtrap

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xtrap/pkg/observability/xlog"
)

// gatedHandler 记录事件；Fired 交付在 release 关闭前阻塞，进入时通知 entered。
type gatedHandler struct {
	events
	gated   map[uint64]bool
	entered chan uint64
	release chan struct{}
}

func newGatedHandler(contexts ...uint64) *gatedHandler {
	g := &gatedHandler{
		gated:   make(map[uint64]bool),
		entered: make(chan uint64, 8),
		release: make(chan struct{}),
	}
	for _, c := range contexts {
		g.gated[c] = true
	}
	return g
}

func (g *gatedHandler) handle(ev Event) {
	g.events.handle(ev)
	if ev.Kind == EventFired && g.gated[ev.Context] {
		g.entered <- ev.Context
		<-g.release
	}
}

func armedGatedTrap(t *testing.T, g *gatedHandler, handles ...Handle) (*Trap, *fakeWatcher) {
	t.Helper()
	w := newFakeWatcher()
	trap, err := New(w, g.handle, WithLogger(xlog.Discard()))
	require.NoError(t, err)
	for _, h := range handles {
		w.set(h, 0)
		require.NoError(t, trap.AddTrigger(h, sigReadable, ConditionSatisfied, uint64(h)))
	}
	blockers, err := trap.Arm()
	require.NoError(t, err)
	require.Empty(t, blockers)
	return trap, w
}

func waitEntered(t *testing.T, g *gatedHandler, want uint64) {
	t.Helper()
	select {
	case got := <-g.entered:
		require.Equal(t, want, got)
	case <-time.After(5 * time.Second):
		t.Fatalf("handler for context %d never entered", want)
	}
}

func TestClose_WaitsForInFlightFired(t *testing.T) {
	g := newGatedHandler(1)
	trap, w := armedGatedTrap(t, g, 1)

	w.set(1, sigReadable)
	var wg sync.WaitGroup
	wg.Go(func() { w.fire(1) })
	waitEntered(t, g, 1)

	closed := make(chan struct{})
	wg.Go(func() {
		assert.NoError(t, trap.Close())
		close(closed)
	})

	select {
	case <-closed:
		t.Fatal("Close returned while Fired was still being delivered")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, 1, g.count(1, EventFired))
	assert.Zero(t, g.count(1, EventRemoved))

	close(g.release)
	wg.Wait()

	got := g.list()
	require.Len(t, got, 2)
	assert.Equal(t, EventFired, got[0].Kind)
	assert.Equal(t, Event{Context: 1, Kind: EventRemoved}, got[1])
}

func TestRemoveTrigger_WaitsForInFlightFired(t *testing.T) {
	g := newGatedHandler(1)
	trap, w := armedGatedTrap(t, g, 1)

	w.set(1, sigReadable)
	var wg sync.WaitGroup
	wg.Go(func() { w.fire(1) })
	waitEntered(t, g, 1)

	removed := make(chan struct{})
	wg.Go(func() {
		assert.NoError(t, trap.RemoveTrigger(1))
		close(removed)
	})

	select {
	case <-removed:
		t.Fatal("RemoveTrigger returned while Fired was still being delivered")
	case <-time.After(50 * time.Millisecond):
	}
	close(g.release)
	wg.Wait()

	// 同一 context 重新注册到一个未就绪的 handle：旧注册不能再产生事件。
	w.set(2, 0)
	require.NoError(t, trap.AddTrigger(2, sigReadable, ConditionSatisfied, 1))
	blockers, err := trap.Arm()
	require.NoError(t, err)
	assert.Empty(t, blockers)
	assert.Equal(t, 1, g.count(1, EventFired))
	assert.Zero(t, g.count(1, EventRemoved))

	require.NoError(t, trap.Close())
	assert.Equal(t, 1, g.count(1, EventRemoved))
}

func TestRemoveTrigger_FromOwnHandler(t *testing.T) {
	w := newFakeWatcher()
	w.set(1, 0)
	ev := &events{}

	var trap *Trap
	var removeErr error
	trap, err := New(w, func(e Event) {
		ev.handle(e)
		if e.Kind == EventFired {
			removeErr = trap.RemoveTrigger(e.Context)
		}
	}, WithLogger(xlog.Discard()))
	require.NoError(t, err)
	require.NoError(t, trap.AddTrigger(1, sigReadable, ConditionSatisfied, 1))
	_, err = trap.Arm()
	require.NoError(t, err)

	w.set(1, sigReadable)
	require.Equal(t, 1, w.fire(1))
	require.NoError(t, removeErr)
	assert.Equal(t, 0, trap.Len())
	got := ev.list()
	require.Len(t, got, 1)
	assert.Equal(t, EventFired, got[0].Kind)
}

func TestClose_FromOwnHandler(t *testing.T) {
	w := newFakeWatcher()
	w.set(1, 0)
	w.set(2, 0)
	ev := &events{}

	var trap *Trap
	var closeErr error
	trap, err := New(w, func(e Event) {
		ev.handle(e)
		if e.Kind == EventFired {
			closeErr = trap.Close()
		}
	}, WithLogger(xlog.Discard()))
	require.NoError(t, err)
	require.NoError(t, trap.AddTrigger(1, sigReadable, ConditionSatisfied, 1))
	require.NoError(t, trap.AddTrigger(2, sigReadable, ConditionSatisfied, 2))
	_, err = trap.Arm()
	require.NoError(t, err)

	w.set(1, sigReadable)
	require.Equal(t, 1, w.fire(1))
	require.NoError(t, closeErr)

	got := ev.list()
	require.Len(t, got, 3)
	assert.Equal(t, Event{Context: 1, Kind: EventFired, Status: got[0].Status}, got[0])
	assert.ElementsMatch(t, []Event{
		{Context: 1, Kind: EventRemoved},
		{Context: 2, Kind: EventRemoved},
	}, got[1:])
	assert.Equal(t, 0, w.live())
}

func TestClose_FromHandlerDefersRemovedOfOtherDelivery(t *testing.T) {
	g := newGatedHandler(2)
	w := newFakeWatcher()
	w.set(1, 0)
	w.set(2, 0)

	var trap *Trap
	var closeErr error
	trap, err := New(w, func(e Event) {
		g.handle(e)
		if e.Kind == EventFired && e.Context == 1 {
			closeErr = trap.Close()
		}
	}, WithLogger(xlog.Discard()))
	require.NoError(t, err)
	require.NoError(t, trap.AddTrigger(1, sigReadable, ConditionSatisfied, 1))
	require.NoError(t, trap.AddTrigger(2, sigReadable, ConditionSatisfied, 2))
	_, err = trap.Arm()
	require.NoError(t, err)

	// 两个 trigger 同时在交付途中：2 在另一个 goroutine 上阻塞，1 的处理函数关闭 trap。
	w.set(1, sigReadable)
	w.set(2, sigReadable)
	var wg sync.WaitGroup
	wg.Go(func() { w.fire(2) })
	waitEntered(t, g, 2)

	require.Equal(t, 1, w.fire(1))
	require.NoError(t, closeErr)
	assert.Equal(t, 1, g.count(1, EventRemoved))
	assert.Zero(t, g.count(2, EventRemoved), "Removed for a trigger must wait for its Fired delivery")

	close(g.release)
	wg.Wait()

	var fired2, removed2 = -1, -1
	for i, e := range g.list() {
		if e.Context != 2 {
			continue
		}
		switch e.Kind {
		case EventFired:
			fired2 = i
		case EventRemoved:
			removed2 = i
		}
	}
	require.GreaterOrEqual(t, fired2, 0)
	assert.Greater(t, removed2, fired2)
	assert.Equal(t, 1, g.count(2, EventRemoved))
}

func TestDelivery_HandlerPanicReleasesWaiters(t *testing.T) {
	w := newFakeWatcher()
	w.set(1, 0)
	ev := &events{}
	trap, err := New(w, func(e Event) {
		ev.handle(e)
		if e.Kind == EventFired {
			panic("handler failed")
		}
	}, WithLogger(xlog.Discard()))
	require.NoError(t, err)
	require.NoError(t, trap.AddTrigger(1, sigReadable, ConditionSatisfied, 1))
	_, err = trap.Arm()
	require.NoError(t, err)

	w.set(1, sigReadable)
	assert.Panics(t, func() { w.fire(1) })

	done := make(chan struct{})
	go func() {
		assert.NoError(t, trap.RemoveTrigger(1))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("RemoveTrigger blocked after a panicking delivery")
	}
}

func TestGoroutineID(t *testing.T) {
	self := goroutineID()
	assert.NotZero(t, self)
	assert.Equal(t, self, goroutineID())

	other := make(chan uint64)
	go func() { other <- goroutineID() }()
	id := <-other
	assert.NotZero(t, id)
	assert.NotEqual(t, self, id)
}
