package signal

// MailFetcher 拉取某策略的未读告警邮件正文
type MailFetcher interface {
	FetchUnread(strategyName string) ([]string, error)
}

// Poller 组合邮箱拉取与解码，给出当前告警状态
type Poller struct {
	source  MailFetcher
	decoder *Decoder
}

func NewPoller(source MailFetcher, decoder *Decoder) *Poller {
	return &Poller{source: source, decoder: decoder}
}

// Poll 单次轮询：
//   - 拉取失败包装为 *TransportError 上抛
//   - 0封 -> NoAlert；2封以上 -> TooManyAlerts（刻意不解码任何一封，
//     因为无法判断哪封才是权威的）
//   - 恰好1封 -> 解码，解码失败原样上抛（与 NoAlert 严格区分）
func (p *Poller) Poll(strategyName string) (AlertQueryResult, error) {
	bodies, err := p.source.FetchUnread(strategyName)
	if err != nil {
		return AlertQueryResult{}, &TransportError{Err: err}
	}

	switch {
	case len(bodies) == 0:
		return AlertQueryResult{Kind: NoAlert}, nil
	case len(bodies) > 1:
		return AlertQueryResult{Kind: TooManyAlerts}, nil
	}

	alert, err := p.decoder.Decode(bodies[0])
	if err != nil {
		return AlertQueryResult{}, err
	}
	return AlertQueryResult{Kind: AlertFound, Alert: alert}, nil
}
