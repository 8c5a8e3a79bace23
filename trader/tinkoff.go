package trader

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const defaultTinkoffBaseURL = "https://api-invest.tinkoff.ru/openapi"

// ErrInstrumentNotFound ticker在券商侧查不到对应标的
var ErrInstrumentNotFound = errors.New("未找到标的")

// ErrUnexpectedResponse 券商返回了无法按协议解析的内容
var ErrUnexpectedResponse = errors.New("券商返回了无法解析的响应")

// ProtocolError 券商按协议返回的业务错误
type ProtocolError struct {
	TrackingID string
	Code       string
	Message    string
	HTTPStatus int
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("券商协议错误 [%s]: %s (http=%d, tracking=%s)",
		e.Code, e.Message, e.HTTPStatus, e.TrackingID)
}

// Tinkoff Tinkoff OpenAPI 客户端
type Tinkoff struct {
	token   string
	baseURL string
	client  *http.Client
}

func NewTinkoff(token, baseURL string) *Tinkoff {
	if baseURL == "" {
		baseURL = defaultTinkoffBaseURL
	}
	return &Tinkoff{
		token:   token,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// 所有响应的统一信封
type baseResponse struct {
	TrackingID string          `json:"trackingId"`
	Status     string          `json:"status"`
	Payload    json.RawMessage `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

type marketInstrument struct {
	FIGI   string `json:"figi"`
	Ticker string `json:"ticker"`
	Lot    int    `json:"lot"`
	Name   string `json:"name"`
}

type marketInstrumentList struct {
	Total       int                `json:"total"`
	Instruments []marketInstrument `json:"instruments"`
}

type marketOrderRequest struct {
	Lots      int       `json:"lots"`
	Operation Operation `json:"operation"`
}

// ResolveInstrument 通过 /market/search/by-ticker 查FIGI，取第一个匹配标的
func (t *Tinkoff) ResolveInstrument(ticker string) (string, error) {
	params := url.Values{}
	params.Set("ticker", ticker)

	payload, err := t.request(http.MethodGet, "/market/search/by-ticker", params, nil)
	if err != nil {
		return "", err
	}

	var list marketInstrumentList
	if err := json.Unmarshal(payload, &list); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}
	if len(list.Instruments) == 0 {
		return "", fmt.Errorf("%w: %s", ErrInstrumentNotFound, ticker)
	}
	return list.Instruments[0].FIGI, nil
}

// PlaceMarketOrder 通过 /orders/market-order 下市价单
func (t *Tinkoff) PlaceMarketOrder(figi string, operation Operation, lots int) (*PlacedOrder, error) {
	params := url.Values{}
	params.Set("figi", figi)

	payload, err := t.request(http.MethodPost, "/orders/market-order", params,
		marketOrderRequest{Lots: lots, Operation: operation})
	if err != nil {
		return nil, err
	}

	var placed PlacedOrder
	if err := json.Unmarshal(payload, &placed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}
	return &placed, nil
}

// request 发送HTTP请求并拆信封。非2xx或 status=Error 解析为 *ProtocolError
func (t *Tinkoff) request(method, endpoint string, params url.Values, body interface{}) (json.RawMessage, error) {
	reqURL := t.baseURL + endpoint
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("序列化请求失败: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, reqURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("构建请求失败: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+t.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求券商失败: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}

	var envelope baseResponse
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("%w: http=%d body=%s", ErrUnexpectedResponse, resp.StatusCode, truncate(data, 256))
	}

	if resp.StatusCode/100 != 2 || envelope.Status == "Error" {
		perr := &ProtocolError{
			TrackingID: envelope.TrackingID,
			HTTPStatus: resp.StatusCode,
		}
		var ep errorPayload
		if err := json.Unmarshal(envelope.Payload, &ep); err == nil {
			perr.Code = ep.Code
			perr.Message = ep.Message
		}
		return nil, perr
	}

	return envelope.Payload, nil
}

func truncate(data []byte, n int) string {
	if len(data) <= n {
		return string(data)
	}
	return string(data[:n]) + "..."
}
