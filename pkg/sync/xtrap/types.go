package xtrap

import (
	"strconv"
	"strings"
)

// Handle 是被观察对象的不透明引用。
// Trap 从不持有 Handle 的生命周期，只把它原样交给 [Watcher]。
type Handle uint64

// Signals 是 handle 信号状态的位集合。
// 各位的含义由 [Watcher] 实现定义，xtrap 不做解释。
type Signals uint32

// Condition 表示应用于信号掩码的谓词族。
type Condition uint8

const (
	// ConditionSatisfied 在掩码中任一信号被置位时成立。
	ConditionSatisfied Condition = iota
	// ConditionUnsatisfied 在掩码中任一信号被清除时成立。
	ConditionUnsatisfied
)

// Valid 报告 c 是否为已知条件。
func (c Condition) Valid() bool {
	return c == ConditionSatisfied || c == ConditionUnsatisfied
}

// String 返回条件的可读名称。
func (c Condition) String() string {
	switch c {
	case ConditionSatisfied:
		return "satisfied"
	case ConditionUnsatisfied:
		return "unsatisfied"
	default:
		return "Condition(" + strconv.Itoa(int(c)) + ")"
	}
}

// Flags 是条件评估结果的标志位。
type Flags uint32

const (
	// FlagSatisfied 表示条件当前成立。
	FlagSatisfied Flags = 1 << iota
	// FlagClosed 表示 handle 已关闭，条件永久成立。
	FlagClosed
)

// String 返回形如 "satisfied|closed" 的表示，零值返回 "none"。
func (f Flags) String() string {
	if f == 0 {
		return "none"
	}
	var parts []string
	if f&FlagSatisfied != 0 {
		parts = append(parts, "satisfied")
	}
	if f&FlagClosed != 0 {
		parts = append(parts, "closed")
	}
	if rest := f &^ (FlagSatisfied | FlagClosed); rest != 0 {
		parts = append(parts, "0x"+strconv.FormatUint(uint64(rest), 16))
	}
	return strings.Join(parts, "|")
}

// Status 是一次条件评估的快照。
type Status struct {
	// Flags 条件标志。
	Flags Flags
	// Signals 评估时 handle 的信号状态。
	Signals Signals
}

// Satisfied 报告条件是否成立。
func (s Status) Satisfied() bool {
	return s.Flags&FlagSatisfied != 0
}

// Closed 报告 handle 是否已关闭。
func (s Status) Closed() bool {
	return s.Flags&FlagClosed != 0
}

// EventKind 表示传递给 [Handler] 的事件类型。
type EventKind uint8

const (
	// EventFired 表示某个 trigger 的条件成立。
	EventFired EventKind = iota + 1
	// EventRemoved 表示 trigger 已从 Trap 移除，该 context 不会再有事件。
	// 它总在同一 trigger 正在交付的 EventFired 结束之后到达。
	EventRemoved
)

// String 返回事件类型名称。
func (k EventKind) String() string {
	switch k {
	case EventFired:
		return "fired"
	case EventRemoved:
		return "removed"
	default:
		return "EventKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Event 是 Trap 交付给处理函数的通知。
type Event struct {
	// Context 是调用方在 AddTrigger 时指定的标识。
	Context uint64
	// Kind 事件类型。
	Kind EventKind
	// Status 仅对 EventFired 有效，是触发时的评估结果。
	Status Status
}

// Handler 处理 Trap 事件。
// 调用时 Trap 内部锁已释放，处理函数可以回调 Trap 的任意方法。
type Handler func(Event)

// Blocker 描述 Arm 时已经成立、阻止武装的 trigger。
type Blocker struct {
	Context uint64
	Status  Status
}

// WatchID 标识一个由 [Watcher] 安装的单次观察。零值表示无观察。
type WatchID uint64

// CancelOutcome 是 [Watcher.Cancel] 的结果。
type CancelOutcome uint8

const (
	// CancelNotFound 表示观察不存在（从未安装、已取消或已交付完毕）。
	CancelNotFound CancelOutcome = iota
	// CancelCancelled 表示观察已被取消，之后不会再触发。
	CancelCancelled
	// CancelAlreadyFiring 表示观察已经开始触发，通知正在交付途中。
	CancelAlreadyFiring
)

// String 返回取消结果名称。
func (o CancelOutcome) String() string {
	switch o {
	case CancelNotFound:
		return "not_found"
	case CancelCancelled:
		return "cancelled"
	case CancelAlreadyFiring:
		return "already_firing"
	default:
		return "CancelOutcome(" + strconv.Itoa(int(o)) + ")"
	}
}

// Watcher 是单条件单次观察能力的提供方，Trap 构建于其上。
//
// 实现约束：
//   - 所有方法都可能在 Trap 持锁时被调用，实现不得在方法内同步调用 onFire
//   - onFire 最多调用一次，且必须在独立 goroutine 上异步执行
//   - Cancel 与"即将触发"必须原子地互斥：观察一旦开始触发，Cancel 返回
//     [CancelAlreadyFiring]，直到 onFire 返回为止
type Watcher interface {
	// Evaluate 立即评估条件，无副作用。
	Evaluate(h Handle, signals Signals, cond Condition) (Status, error)

	// Watch 原子地评估并安装观察。
	// 条件已成立时不安装任何观察，返回零 WatchID 和成立的 Status。
	Watch(h Handle, signals Signals, cond Condition, onFire func(Status)) (WatchID, Status, error)

	// Cancel 取消观察并报告结果。
	Cancel(id WatchID) CancelOutcome
}
