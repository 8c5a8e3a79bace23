package trader

import (
	"errors"
	"fmt"

	"mailfx/signal"
)

// OutcomeKind 单次下单的结果分类
type OutcomeKind int

const (
	// OutcomePlaced 券商已受理
	OutcomePlaced OutcomeKind = iota
	// OutcomeRejected 券商拒单
	OutcomeRejected
	// OutcomeTransportError 网络层失败，订单状态未知
	OutcomeTransportError
	// OutcomeProtocolError 券商按协议返回的业务错误
	OutcomeProtocolError
	// OutcomeUnexpected 无法归类的失败
	OutcomeUnexpected
)

// OrderOutcome 下单结果，按 Kind 取对应字段
type OrderOutcome struct {
	Kind OutcomeKind

	// OutcomePlaced
	OrderID      string
	Status       string
	ExecutedLots int

	// OutcomeRejected
	RejectReason string

	// OutcomeProtocolError
	Code    string
	Message string

	// OutcomeTransportError / OutcomeUnexpected
	Err error
}

// Describe 给通知和日志用的一句话描述
func (o OrderOutcome) Describe() string {
	switch o.Kind {
	case OutcomePlaced:
		return fmt.Sprintf("订单已受理 id=%s status=%s executed_lots=%d", o.OrderID, o.Status, o.ExecutedLots)
	case OutcomeRejected:
		return fmt.Sprintf("券商拒单: %s", o.RejectReason)
	case OutcomeTransportError:
		return fmt.Sprintf("下单网络失败: %v", o.Err)
	case OutcomeProtocolError:
		return fmt.Sprintf("券商协议错误 [%s]: %s", o.Code, o.Message)
	default:
		return fmt.Sprintf("下单出现未知错误: %v", o.Err)
	}
}

// OrderConfig 告警到订单的映射规则
type OrderConfig struct {
	// LotsPerUnit 每单位告警quantity对应的下单手数，必须显式可配，
	// 不允许退化为隐藏常量
	LotsPerUnit int
}

// Dispatcher 将告警映射为市价单并提交。每次调用恰好发起一次下单，
// 不重试、不去重（重复的相同告警会产生重复订单）
type Dispatcher struct {
	broker Broker
	cfg    OrderConfig
}

func NewDispatcher(broker Broker, cfg OrderConfig) *Dispatcher {
	if cfg.LotsPerUnit < 1 {
		cfg.LotsPerUnit = 1
	}
	return &Dispatcher{broker: broker, cfg: cfg}
}

// Dispatch 提交一笔市价单并分类结果
func (d *Dispatcher) Dispatch(alert *signal.StrategyAlert, figi string) OrderOutcome {
	operation := OperationBuy
	if alert.OrderAction == signal.OrderActionSell {
		operation = OperationSell
	}
	lots := alert.Quantity * d.cfg.LotsPerUnit

	placed, err := d.broker.PlaceMarketOrder(figi, operation, lots)
	if err != nil {
		var perr *ProtocolError
		switch {
		case errors.As(err, &perr):
			return OrderOutcome{Kind: OutcomeProtocolError, Code: perr.Code, Message: perr.Message, Err: perr}
		case errors.Is(err, ErrUnexpectedResponse):
			return OrderOutcome{Kind: OutcomeUnexpected, Err: err}
		default:
			return OrderOutcome{Kind: OutcomeTransportError, Err: err}
		}
	}

	if placed.RejectReason != "" || placed.Status == "Rejected" || placed.Status == "Decline" {
		reason := placed.RejectReason
		if reason == "" {
			reason = placed.Message
		}
		return OrderOutcome{Kind: OutcomeRejected, RejectReason: reason}
	}

	return OrderOutcome{
		Kind:         OutcomePlaced,
		OrderID:      placed.OrderID,
		Status:       placed.Status,
		ExecutedLots: placed.ExecutedLots,
	}
}
