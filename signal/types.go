package signal

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// OrderAction 告警中的买卖方向
type OrderAction string

const (
	OrderActionBuy  OrderAction = "buy"
	OrderActionSell OrderAction = "sell"
)

// StrategyAlert 从邮件解析出的策略告警，解码成功后不再修改
type StrategyAlert struct {
	Ticker         string          `json:"ticker" validate:"required"`
	OrderAction    OrderAction     `json:"order_action" validate:"required,oneof=buy sell"`
	Quantity       int             `json:"quantity" validate:"gte=0"`
	Price          decimal.Decimal `json:"price"`
	Position       int             `json:"position"`
	MarketPosition string          `json:"market_position" validate:"required"`
	Time           string          `json:"time" validate:"required"`
}

// AlertQueryKind 单次轮询的结果标签
type AlertQueryKind int

const (
	// NoAlert 没有匹配的未读告警邮件
	NoAlert AlertQueryKind = iota
	// TooManyAlerts 多封匹配的未读邮件，告警顺序已不可信
	TooManyAlerts
	// AlertFound 恰好一封，且解码成功
	AlertFound
)

func (k AlertQueryKind) String() string {
	switch k {
	case NoAlert:
		return "NoAlert"
	case TooManyAlerts:
		return "TooManyAlerts"
	case AlertFound:
		return "AlertFound"
	default:
		return fmt.Sprintf("AlertQueryKind(%d)", int(k))
	}
}

// AlertQueryResult 轮询结果。Alert 仅在 Kind == AlertFound 时非空
type AlertQueryResult struct {
	Kind  AlertQueryKind
	Alert *StrategyAlert
}

// ErrNoPayload 邮件正文中找不到 MESSAGE_START / MESSAGE_END 标记
var ErrNoPayload = errors.New("邮件正文缺少告警载荷标记")

// MalformedAlertError 载荷结构或字段类型不合法
type MalformedAlertError struct {
	Detail string
	Err    error
}

func (e *MalformedAlertError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("告警载荷格式错误: %s: %v", e.Detail, e.Err)
	}
	return fmt.Sprintf("告警载荷格式错误: %s", e.Detail)
}

func (e *MalformedAlertError) Unwrap() error { return e.Err }

// TransportError 邮箱连接或拉取失败，由下一个轮询周期自然重连恢复
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("邮箱传输失败: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
