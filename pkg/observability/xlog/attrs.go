package xlog

import (
	"log/slog"
	"strconv"
	"time"
)

// 常用属性 Key
const (
	KeyError     = "error"
	KeyDuration  = "duration"
	KeyCount     = "count"
	KeyComponent = "component"
	KeyOperation = "operation"
	KeyTrap      = "trap"
	KeyContext   = "trigger_context"
	KeyHandle    = "handle"
	KeySignals   = "signals"
	KeyPath      = "path"
)

// Err 创建错误属性，err 为 nil 时返回空属性（slog 会忽略）
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Duration 创建耗时属性，输出可读格式（如 "1.5s"）
func Duration(d time.Duration) slog.Attr {
	return slog.String(KeyDuration, d.String())
}

// Count 创建计数属性
func Count(n int64) slog.Attr {
	return slog.Int64(KeyCount, n)
}

// Component 创建组件名属性
func Component(name string) slog.Attr {
	return slog.String(KeyComponent, name)
}

// Operation 创建操作名属性
func Operation(name string) slog.Attr {
	return slog.String(KeyOperation, name)
}

// Trap 创建 trap 名称属性
func Trap(name string) slog.Attr {
	return slog.String(KeyTrap, name)
}

// Context 创建 trigger context 属性
func Context(id uint64) slog.Attr {
	return slog.Uint64(KeyContext, id)
}

// Handle 创建 handle 属性
func Handle(h uint64) slog.Attr {
	return slog.Uint64(KeyHandle, h)
}

// Signals 创建信号位属性，以十六进制输出（如 "0x3"）
func Signals(bits uint32) slog.Attr {
	return slog.String(KeySignals, "0x"+strconv.FormatUint(uint64(bits), 16))
}

// Path 创建文件路径属性
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}
