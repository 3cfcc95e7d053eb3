package xtrap

import "errors"

var (
	// ErrNilWatcher 表示 New 的 watcher 参数为 nil。
	ErrNilWatcher = errors.New("xtrap: nil watcher")

	// ErrNilHandler 表示 New 的 handler 参数为 nil。
	ErrNilHandler = errors.New("xtrap: nil handler")

	// ErrClosed 表示 Trap 已关闭。
	// Close 之后调用 AddTrigger/RemoveTrigger/Arm/Status 返回此错误。
	ErrClosed = errors.New("xtrap: trap closed")

	// ErrDuplicateContext 表示该 context 已注册。
	ErrDuplicateContext = errors.New("xtrap: duplicate trigger context")

	// ErrNotFound 表示该 context 未注册。
	ErrNotFound = errors.New("xtrap: trigger not found")

	// ErrInvalidSignals 表示信号掩码为空。
	ErrInvalidSignals = errors.New("xtrap: empty signal mask")

	// ErrInvalidCondition 表示未知的条件类型。
	ErrInvalidCondition = errors.New("xtrap: invalid condition")
)
