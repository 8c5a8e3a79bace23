package worker

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"mailfx/config"
	"mailfx/notify"
	"mailfx/signal"
	"mailfx/trader"
)

// AlertPoller 获取某策略当前的告警状态
type AlertPoller interface {
	Poll(strategyName string) (signal.AlertQueryResult, error)
}

// OrderPlacer 将告警映射为订单并提交
type OrderPlacer interface {
	Dispatch(alert *signal.StrategyAlert, figi string) trader.OrderOutcome
}

// InstrumentResolver 解析ticker对应的券商标的标识
type InstrumentResolver interface {
	ResolveInstrument(ticker string) (string, error)
}

// StrategyWorker 单策略工作单元：按固定节奏轮询邮箱，
// 出现告警时下单。轮询与下单在同一单元内严格串行
type StrategyWorker struct {
	cfg        config.StrategyConfig
	poller     AlertPoller
	dispatcher OrderPlacer
	resolver   InstrumentResolver
	notifier   notify.TextNotifier
	interval   time.Duration
	handle     *Handle
	log        *zap.Logger
}

func NewStrategyWorker(
	cfg config.StrategyConfig,
	poller AlertPoller,
	dispatcher OrderPlacer,
	resolver InstrumentResolver,
	notifier notify.TextNotifier,
	interval time.Duration,
	log *zap.Logger,
) *StrategyWorker {
	if log == nil {
		log = zap.NewNop()
	}
	return &StrategyWorker{
		cfg:        cfg,
		poller:     poller,
		dispatcher: dispatcher,
		resolver:   resolver,
		notifier:   notifier,
		interval:   interval,
		handle:     newHandle(cfg.Name),
		log:        log.With(zap.String("strategy", cfg.Name)),
	}
}

func (w *StrategyWorker) Handle() *Handle { return w.handle }

// Run 工作单元主循环。致命故障只终止自身并记录到句柄，
// 进程级处置由监督器决定
func (w *StrategyWorker) Run(stopCh <-chan struct{}) {
	// Starting: 标的标识只解析一次，整个生命周期缓存
	figi, err := w.resolver.ResolveInstrument(w.cfg.InstrumentTicker)
	if err != nil {
		reason := fmt.Sprintf("解析标的 %s 失败: %v", w.cfg.InstrumentTicker, err)
		w.log.Error("标的解析失败", zap.Error(err))
		w.notify(fmt.Sprintf("❌ 策略 %s 启动失败: %s", w.cfg.Name, reason), false)
		w.handle.markStopped(reason)
		return
	}

	w.log.Info("策略worker已启动", zap.String("figi", figi))
	w.notify(fmt.Sprintf("🚀 策略 %s 已启动 (标的 %s, FIGI %s)", w.cfg.Name, w.cfg.InstrumentTicker, figi), true)
	w.handle.markRunning()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			w.handle.markStopped("")
			return
		case <-ticker.C:
			if reason := w.cycle(figi); reason != "" {
				w.handle.markStopped(reason)
				return
			}
		}
	}
}

// cycle 单个轮询周期。返回非空串表示致命故障，worker随即终止
func (w *StrategyWorker) cycle(figi string) string {
	result, err := w.poller.Poll(w.cfg.Name)
	if err != nil {
		// 邮箱传输失败不致命，下个周期重新建连
		var te *signal.TransportError
		if errors.As(err, &te) {
			w.log.Warn("邮箱轮询失败，等待下个周期重连", zap.Error(err))
			w.notify(fmt.Sprintf("⚠️ 策略 %s 邮箱连接失败，下个周期重试: %v", w.cfg.Name, te.Err), true)
			return ""
		}
		// 解码失败说明上游告警格式变了，继续跑只会重复坏单
		w.log.Error("告警解码失败", zap.Error(err))
		w.notify(fmt.Sprintf("❌ 策略 %s 告警解码失败: %v", w.cfg.Name, err), false)
		return fmt.Sprintf("告警解码失败: %v", err)
	}

	switch result.Kind {
	case signal.NoAlert:
		return ""

	case signal.TooManyAlerts:
		w.log.Warn("多封未读告警，顺序不可信，本周期不下单")
		w.notify(fmt.Sprintf("⚠️ 策略 %s 告警序列完整性被破坏（多封未读告警），跳过本周期", w.cfg.Name), false)
		return ""

	case signal.AlertFound:
		alert := result.Alert
		w.log.Info("收到告警",
			zap.String("ticker", alert.Ticker),
			zap.String("action", string(alert.OrderAction)),
			zap.Int("quantity", alert.Quantity))

		outcome := w.dispatcher.Dispatch(alert, figi)
		if outcome.Kind == trader.OutcomePlaced {
			w.log.Info("下单成功", zap.String("order_id", outcome.OrderID), zap.String("status", outcome.Status))
			w.notify(fmt.Sprintf("✅ 策略 %s %s %s: %s", w.cfg.Name, alert.OrderAction, alert.Ticker, outcome.Describe()), false)
			return ""
		}

		w.log.Error("下单失败", zap.String("outcome", outcome.Describe()))
		w.notify(fmt.Sprintf("❌ 策略 %s 下单失败: %s", w.cfg.Name, outcome.Describe()), false)
		return outcome.Describe()
	}

	return ""
}

// notify 通知只是可观测性手段，失败不影响主流程
func (w *StrategyWorker) notify(text string, silent bool) {
	if err := w.notifier.Send(text, silent); err != nil {
		w.log.Warn("发送通知失败", zap.Error(err))
	}
}
