package xtrap

import "iter"

// trigger 是 Trap 内部的一条观察记录。
// 除 context/handle/signals/condition 外的字段均受 Trap.mu 保护。
type trigger struct {
	context   uint64
	handle    Handle
	signals   Signals
	condition Condition

	// watch 非零表示存在活跃的观察，由 trigger 独占。
	watch WatchID
	// gen 每次安装观察时递增，用于识别过期的触发回调。
	gen uint64
	// deliverer 非零表示 Fired 正在交付，值为交付方 goroutine 的 ID。
	deliverer uint64
	// removedOwed 表示 Close 把该 trigger 的 Removed 交给交付方补发。
	removedOwed bool
}

// registry 按插入顺序保存 trigger，并维护轮转游标。
//
// 游标是位置而不是迭代器：任何插入或删除都会把它重置到起点，
// 因为元素位置可能已经移动。
type registry struct {
	entries []*trigger
	index   map[uint64]int
	cursor  int
}

func newRegistry() *registry {
	return &registry{index: make(map[uint64]int)}
}

func (r *registry) len() int {
	return len(r.entries)
}

func (r *registry) get(context uint64) (*trigger, bool) {
	i, ok := r.index[context]
	if !ok {
		return nil, false
	}
	return r.entries[i], true
}

func (r *registry) insert(t *trigger) error {
	if _, ok := r.index[t.context]; ok {
		return ErrDuplicateContext
	}
	r.index[t.context] = len(r.entries)
	r.entries = append(r.entries, t)
	r.cursor = 0
	return nil
}

func (r *registry) remove(context uint64) (*trigger, bool) {
	i, ok := r.index[context]
	if !ok {
		return nil, false
	}
	t := r.entries[i]
	copy(r.entries[i:], r.entries[i+1:])
	r.entries[len(r.entries)-1] = nil
	r.entries = r.entries[:len(r.entries)-1]
	delete(r.index, context)
	for j := i; j < len(r.entries); j++ {
		r.index[r.entries[j].context] = j
	}
	r.cursor = 0
	return t, true
}

// drain 清空 registry，按插入顺序返回全部 trigger。
func (r *registry) drain() []*trigger {
	out := r.entries
	r.entries = nil
	r.index = make(map[uint64]int)
	r.cursor = 0
	return out
}

// contexts 按插入顺序返回全部 context。
func (r *registry) contexts() []uint64 {
	out := make([]uint64, len(r.entries))
	for i, t := range r.entries {
		out[i] = t.context
	}
	return out
}

// cycle 从游标处开始环绕遍历，每个 trigger 恰好产出一次。
// 遍历结束（耗尽或提前 break）后，游标移动到最后产出元素的下一个位置，
// 下一次遍历因此会优先检查不同的 trigger。
//
// 遍历期间不得修改 registry。
func (r *registry) cycle() iter.Seq[*trigger] {
	return func(yield func(*trigger) bool) {
		n := len(r.entries)
		if n == 0 {
			return
		}
		start := r.cursor % n
		last := start
		defer func() { r.cursor = (last + 1) % n }()
		for k := range n {
			last = (start + k) % n
			if !yield(r.entries[last]) {
				return
			}
		}
	}
}
