package worker

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailfx/config"
	"mailfx/signal"
	"mailfx/trader"
)

// fakePoller 按脚本依次返回结果，脚本耗尽后重复最后一项
type fakePoller struct {
	mu     sync.Mutex
	script []pollStep
	count  int
}

type pollStep struct {
	result signal.AlertQueryResult
	err    error
}

func (p *fakePoller) Poll(strategyName string) (signal.AlertQueryResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	step := p.script[len(p.script)-1]
	if p.count < len(p.script) {
		step = p.script[p.count]
	}
	p.count++
	return step.result, step.err
}

func (p *fakePoller) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

type fakeDispatcher struct {
	mu      sync.Mutex
	outcome trader.OrderOutcome
	count   int
}

func (d *fakeDispatcher) Dispatch(alert *signal.StrategyAlert, figi string) trader.OrderOutcome {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count++
	return d.outcome
}

func (d *fakeDispatcher) calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.count
}

type fakeResolver struct {
	figi string
	err  error
}

func (r *fakeResolver) ResolveInstrument(ticker string) (string, error) {
	return r.figi, r.err
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *fakeNotifier) Send(text string, silent bool) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, text)
	return nil
}

func (n *fakeNotifier) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

func (n *fakeNotifier) contains(substr string) bool {
	for _, m := range n.all() {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

func alertFound() signal.AlertQueryResult {
	return signal.AlertQueryResult{
		Kind: signal.AlertFound,
		Alert: &signal.StrategyAlert{
			Ticker:         "ENDP",
			OrderAction:    signal.OrderActionSell,
			Quantity:       3,
			MarketPosition: "flat",
			Time:           "2021-09-17T13:50:00Z",
		},
	}
}

func newTestWorker(poller *fakePoller, dispatcher *fakeDispatcher, resolver *fakeResolver, notifier *fakeNotifier) *StrategyWorker {
	return NewStrategyWorker(
		config.StrategyConfig{Name: "BTC_TEST_ALERT", InstrumentTicker: "ENDP"},
		poller, dispatcher, resolver, notifier,
		5*time.Millisecond, zap.NewNop(),
	)
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("等待超时: %s", msg)
}

func TestWorkerStopsAfterTransportOutcome(t *testing.T) {
	poller := &fakePoller{script: []pollStep{{result: alertFound()}}}
	dispatcher := &fakeDispatcher{outcome: trader.OrderOutcome{Kind: trader.OutcomeTransportError, Err: errors.New("connection reset")}}
	notifier := &fakeNotifier{}
	w := newTestWorker(poller, dispatcher, &fakeResolver{figi: "BBG000ENDP"}, notifier)

	stopCh := make(chan struct{})
	defer close(stopCh)
	done := make(chan struct{})
	go func() {
		w.Run(stopCh)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker未在期限内终止")
	}

	assert.False(t, w.Handle().Alive())
	assert.Contains(t, w.Handle().FailureReason(), "网络")
	assert.Equal(t, 1, dispatcher.calls(), "致命故障后不允许再下单")

	// 终止后不再有轮询
	polls := poller.calls()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, polls, poller.calls(), "终止后不允许继续轮询")

	assert.True(t, notifier.contains("下单失败"), "故障必须先通知再终止, 实际: %v", notifier.all())
}

func TestWorkerStopsAfterProtocolOutcome(t *testing.T) {
	poller := &fakePoller{script: []pollStep{{result: alertFound()}}}
	dispatcher := &fakeDispatcher{outcome: trader.OrderOutcome{Kind: trader.OutcomeProtocolError, Code: "INSTRUMENT_ERROR", Message: "Instrument not available"}}
	notifier := &fakeNotifier{}
	w := newTestWorker(poller, dispatcher, &fakeResolver{figi: "BBG000ENDP"}, notifier)

	stopCh := make(chan struct{})
	defer close(stopCh)
	go w.Run(stopCh)

	waitFor(t, func() bool { return !w.Handle().Alive() }, "worker应因协议错误终止")
	assert.Contains(t, w.Handle().FailureReason(), "INSTRUMENT_ERROR")
}

func TestWorkerContinuesAfterTooManyAlerts(t *testing.T) {
	poller := &fakePoller{script: []pollStep{
		{result: signal.AlertQueryResult{Kind: signal.TooManyAlerts}},
		{result: alertFound()},
		{result: signal.AlertQueryResult{Kind: signal.NoAlert}},
	}}
	dispatcher := &fakeDispatcher{outcome: trader.OrderOutcome{Kind: trader.OutcomePlaced, OrderID: "42", Status: "Fill"}}
	notifier := &fakeNotifier{}
	w := newTestWorker(poller, dispatcher, &fakeResolver{figi: "BBG000ENDP"}, notifier)

	stopCh := make(chan struct{})
	go w.Run(stopCh)

	// 完整性故障只上报，之后的告警仍然正常成交
	waitFor(t, func() bool { return dispatcher.calls() == 1 }, "完整性故障后应继续处理后续告警")
	assert.True(t, w.Handle().Alive())
	assert.True(t, notifier.contains("完整性"), "完整性故障必须上报, 实际: %v", notifier.all())

	close(stopCh)
	waitFor(t, func() bool { return !w.Handle().Alive() }, "stop后worker应退出")
	assert.Empty(t, w.Handle().FailureReason())
}

func TestWorkerSurvivesMailTransportFault(t *testing.T) {
	poller := &fakePoller{script: []pollStep{
		{err: &signal.TransportError{Err: errors.New("dial tcp: timeout")}},
	}}
	dispatcher := &fakeDispatcher{}
	notifier := &fakeNotifier{}
	w := newTestWorker(poller, dispatcher, &fakeResolver{figi: "BBG000ENDP"}, notifier)

	stopCh := make(chan struct{})
	go w.Run(stopCh)

	waitFor(t, func() bool { return poller.calls() >= 3 }, "邮箱故障后应继续轮询")
	assert.True(t, w.Handle().Alive(), "邮箱传输故障不应终止worker")
	assert.Equal(t, 0, dispatcher.calls())

	close(stopCh)
	waitFor(t, func() bool { return !w.Handle().Alive() }, "stop后worker应退出")
}

func TestWorkerStopsOnDecodeFault(t *testing.T) {
	poller := &fakePoller{script: []pollStep{
		{err: &signal.MalformedAlertError{Detail: "JSON解析失败"}},
	}}
	dispatcher := &fakeDispatcher{}
	notifier := &fakeNotifier{}
	w := newTestWorker(poller, dispatcher, &fakeResolver{figi: "BBG000ENDP"}, notifier)

	stopCh := make(chan struct{})
	defer close(stopCh)
	go w.Run(stopCh)

	waitFor(t, func() bool { return !w.Handle().Alive() }, "解码故障应终止worker")
	assert.Contains(t, w.Handle().FailureReason(), "解码")
	assert.Equal(t, 0, dispatcher.calls())
}

func TestWorkerStopsWhenInstrumentResolutionFails(t *testing.T) {
	poller := &fakePoller{script: []pollStep{{result: signal.AlertQueryResult{Kind: signal.NoAlert}}}}
	notifier := &fakeNotifier{}
	w := newTestWorker(poller, &fakeDispatcher{}, &fakeResolver{err: errors.New("instrument not found")}, notifier)

	stopCh := make(chan struct{})
	defer close(stopCh)
	done := make(chan struct{})
	go func() {
		w.Run(stopCh)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker未在期限内终止")
	}

	require.False(t, w.Handle().Alive())
	assert.Contains(t, w.Handle().FailureReason(), "ENDP")
	assert.Equal(t, 0, poller.calls(), "标的解析失败后不应进入轮询")
	assert.True(t, notifier.contains("启动失败"))
}

func TestWorkerResolvesInstrumentOnce(t *testing.T) {
	poller := &fakePoller{script: []pollStep{{result: signal.AlertQueryResult{Kind: signal.NoAlert}}}}
	resolver := &countingResolver{figi: "BBG000ENDP"}
	w := newTestWorker(poller, &fakeDispatcher{}, nil, &fakeNotifier{})
	w.resolver = resolver

	stopCh := make(chan struct{})
	go w.Run(stopCh)

	waitFor(t, func() bool { return poller.calls() >= 5 }, "应持续轮询")
	assert.Equal(t, 1, resolver.calls(), "标的标识只解析一次")

	close(stopCh)
	waitFor(t, func() bool { return !w.Handle().Alive() }, "stop后worker应退出")
}

type countingResolver struct {
	mu    sync.Mutex
	figi  string
	count int
}

func (r *countingResolver) ResolveInstrument(ticker string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++
	return r.figi, nil
}

func (r *countingResolver) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}
