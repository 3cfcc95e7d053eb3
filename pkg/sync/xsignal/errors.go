package xsignal

import "errors"

var (
	// ErrClosed 表示 Hub 已关闭。
	ErrClosed = errors.New("xsignal: hub closed")
	// ErrInvalidHandle 表示 handle 不存在。
	ErrInvalidHandle = errors.New("xsignal: invalid handle")
	// ErrHandleClosed 表示 handle 已关闭，信号不可再修改。
	ErrHandleClosed = errors.New("xsignal: handle closed")
	// ErrInvalidSignals 表示观察掩码为空。
	ErrInvalidSignals = errors.New("xsignal: empty signal mask")
	// ErrInvalidCondition 表示未知的观察条件。
	ErrInvalidCondition = errors.New("xsignal: invalid condition")
	// ErrNilCallback 表示 Watch 的回调为 nil。
	ErrNilCallback = errors.New("xsignal: nil callback")
)
