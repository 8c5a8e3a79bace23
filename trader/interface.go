package trader

import "github.com/shopspring/decimal"

// Operation 券商侧的买卖方向
type Operation string

const (
	OperationBuy  Operation = "Buy"
	OperationSell Operation = "Sell"
)

// MoneyAmount 金额与币种
type MoneyAmount struct {
	Currency string          `json:"currency"`
	Value    decimal.Decimal `json:"value"`
}

// PlacedOrder 券商受理后的订单回执
type PlacedOrder struct {
	OrderID       string       `json:"orderId"`
	Operation     Operation    `json:"operation"`
	Status        string       `json:"status"`
	RejectReason  string       `json:"rejectReason"`
	Message       string       `json:"message"`
	RequestedLots int          `json:"requestedLots"`
	ExecutedLots  int          `json:"executedLots"`
	Commission    *MoneyAmount `json:"commission"`
}

// Broker 券商统一接口
type Broker interface {
	// ResolveInstrument 根据ticker查询券商侧的标的标识（FIGI）
	ResolveInstrument(ticker string) (string, error)

	// PlaceMarketOrder 下市价单。协议层错误返回 *ProtocolError，
	// 网络层错误返回普通error
	PlaceMarketOrder(figi string, operation Operation, lots int) (*PlacedOrder, error)
}
