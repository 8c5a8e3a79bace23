package notify

// TextNotifier 最小文本通知接口，组件依赖它而不是具体实现。
// 发送是尽力而为：失败由实现自行记录，调用方不因此出错
type TextNotifier interface {
	Send(text string, silent bool) error
}
