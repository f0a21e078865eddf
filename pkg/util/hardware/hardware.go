package hardware

import "runtime"

// GetCPUNum 返回当前进程可用的 CPU 核数，即 GOMAXPROCS。
// 在容器中配合 automaxprocs 使用时，该值反映 cgroup 的 CPU 配额。
func GetCPUNum() int {
	cur := runtime.GOMAXPROCS(0)
	if cur <= 0 {
		cur = runtime.NumCPU()
	}
	return cur
}
