package worker

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"mailfx/notify"
)

// Runnable 可被监督的工作单元
type Runnable interface {
	Run(stopCh <-chan struct{})
	Handle() *Handle
}

// Supervisor 启动全部工作单元并按固定间隔做存活检查。
// 全有或全无模型：任何一个单元死亡，整个进程在一个检查周期内退出
type Supervisor struct {
	units    []Runnable
	notifier notify.TextNotifier
	interval time.Duration
	log      *zap.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewSupervisor(notifier notify.TextNotifier, interval time.Duration, log *zap.Logger) *Supervisor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Supervisor{
		notifier: notifier,
		interval: interval,
		log:      log,
		stopCh:   make(chan struct{}),
	}
}

// Add 注册工作单元，必须在 Run 之前调用
func (s *Supervisor) Add(unit Runnable) {
	s.units = append(s.units, unit)
}

// Handles 所有已注册单元的句柄（状态API只读使用）
func (s *Supervisor) Handles() []*Handle {
	handles := make([]*Handle, 0, len(s.units))
	for _, u := range s.units {
		handles = append(handles, u.Handle())
	}
	return handles
}

// Done 监督器停止信号
func (s *Supervisor) Done() <-chan struct{} { return s.stopCh }

// Stop 主动停止全部工作单元
func (s *Supervisor) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// Run 启动全部单元并阻塞做存活检查。检测到单元死亡时
// 上报第一个死亡的单元并停止其余单元，返回非nil错误
func (s *Supervisor) Run() error {
	// 期望存活数由静态配置决定，启动后不再变化
	expected := len(s.units)
	if expected == 0 {
		return fmt.Errorf("没有已注册的工作单元")
	}

	for _, u := range s.units {
		go u.Run(s.stopCh)
	}
	s.log.Info("监督器已启动", zap.Int("expected_workers", expected), zap.Duration("interval", s.interval))
	s.notifySilent(fmt.Sprintf("🟢 监督器已启动，共 %d 个工作单元", expected))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			s.log.Info("监督器收到停止信号")
			return nil

		case <-ticker.C:
			// 主动停止和ticker同时就绪时优先走停止路径，
			// 否则正常关停会被误判为worker死亡
			select {
			case <-s.stopCh:
				s.log.Info("监督器收到停止信号")
				return nil
			default:
			}

			live := 0
			for _, u := range s.units {
				if u.Handle().Alive() {
					live++
				}
			}
			if live >= expected {
				continue
			}

			// 线性扫描定位第一个死亡的单元
			dead := s.firstDead()
			reason := dead.FailureReason()
			if reason == "" {
				reason = "无失败原因记录"
			}
			s.log.Error("检测到工作单元死亡",
				zap.String("worker", dead.Name()),
				zap.String("reason", reason),
				zap.Int("live", live),
				zap.Int("expected", expected))
			if err := s.notifier.Send(fmt.Sprintf("🛑 工作单元 %s 已停止: %s，进程即将退出", dead.Name(), reason), false); err != nil {
				s.log.Warn("发送死亡通知失败", zap.Error(err))
			}

			s.Stop()
			return fmt.Errorf("工作单元 %s 已停止: %s", dead.Name(), reason)
		}
	}
}

func (s *Supervisor) firstDead() *Handle {
	for _, u := range s.units {
		if !u.Handle().Alive() {
			return u.Handle()
		}
	}
	// 检查周期内状态又变了，兜底返回第一个句柄
	return s.units[0].Handle()
}

func (s *Supervisor) notifySilent(text string) {
	if err := s.notifier.Send(text, true); err != nil {
		s.log.Warn("发送通知失败", zap.Error(err))
	}
}
