package xtrap

import "runtime"

// goroutineID 返回当前 goroutine 的 ID，仅用于识别处理函数内的重入调用。
// 栈信息首行格式为 "goroutine NNN [running]:"。
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		c := buf[i]
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + uint64(c-'0')
	}
	return id
}
