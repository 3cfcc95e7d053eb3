package xsignal

import (
	"strings"

	"github.com/omeyang/xtrap/pkg/sync/xtrap"
)

// 内置信号位。调用方也可以使用任意自定义位。
const (
	Readable xtrap.Signals = 1 << iota
	Writable
	PeerClosed
)

// Format 返回信号集合的可读表示，如 "readable|writable"。
func Format(s xtrap.Signals) string {
	if s == 0 {
		return "none"
	}
	var parts []string
	for _, n := range []struct {
		bit  xtrap.Signals
		name string
	}{
		{Readable, "readable"},
		{Writable, "writable"},
		{PeerClosed, "peer_closed"},
	} {
		if s&n.bit != 0 {
			parts = append(parts, n.name)
			s &^= n.bit
		}
	}
	if s != 0 {
		parts = append(parts, "other")
	}
	return strings.Join(parts, "|")
}

// evaluate 计算 state 下 (mask, cond) 的评估结果。
func evaluate(state xtrap.Signals, closed bool, mask xtrap.Signals, cond xtrap.Condition) xtrap.Status {
	st := xtrap.Status{Signals: state}
	if closed {
		st.Flags = xtrap.FlagSatisfied | xtrap.FlagClosed
		return st
	}
	var ok bool
	switch cond {
	case xtrap.ConditionSatisfied:
		ok = state&mask != 0
	case xtrap.ConditionUnsatisfied:
		ok = state&mask != mask
	}
	if ok {
		st.Flags = xtrap.FlagSatisfied
	}
	return st
}
