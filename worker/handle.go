package worker

import "sync/atomic"

// Status 工作单元生命周期状态
type Status int32

const (
	StatusStarting Status = iota
	StatusRunning
	StatusStopped
)

func (s Status) String() string {
	switch s {
	case StatusStarting:
		return "starting"
	case StatusRunning:
		return "running"
	case StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Handle 工作单元句柄。状态由工作单元自己发布，
// 监督器只读，存活检测延迟上界为一个检查周期
type Handle struct {
	name    string
	state   atomic.Int32
	failure atomic.Value // string
}

func newHandle(name string) *Handle {
	h := &Handle{name: name}
	h.failure.Store("")
	return h
}

func (h *Handle) Name() string { return h.name }

// Alive 是否仍在运行（含启动中）
func (h *Handle) Alive() bool {
	return Status(h.state.Load()) != StatusStopped
}

func (h *Handle) Status() Status {
	return Status(h.state.Load())
}

// FailureReason 终止原因，正常停止时为空串
func (h *Handle) FailureReason() string {
	return h.failure.Load().(string)
}

func (h *Handle) markRunning() {
	h.state.Store(int32(StatusRunning))
}

func (h *Handle) markStopped(reason string) {
	h.failure.Store(reason)
	h.state.Store(int32(StatusStopped))
}
