package worker

// AuxWorker 将一个阻塞型函数（如通知通道监听器）包装为受监督的工作单元。
// 函数返回即视为该单元终止
type AuxWorker struct {
	run    func(stopCh <-chan struct{})
	handle *Handle
}

func NewAuxWorker(name string, run func(stopCh <-chan struct{})) *AuxWorker {
	return &AuxWorker{run: run, handle: newHandle(name)}
}

func (a *AuxWorker) Handle() *Handle { return a.handle }

func (a *AuxWorker) Run(stopCh <-chan struct{}) {
	a.handle.markRunning()
	a.run(stopCh)
	select {
	case <-stopCh:
		a.handle.markStopped("")
	default:
		a.handle.markStopped("意外退出")
	}
}
