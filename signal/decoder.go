package signal

import (
	"encoding/json"
	"strings"

	"github.com/go-playground/validator/v10"
)

// 告警发送方在正文中包裹载荷的标记
const (
	markerStart = "MESSAGE_START"
	markerEnd   = "MESSAGE_END"
)

// Decoder 将原始邮件正文解码为 StrategyAlert。纯函数，无副作用
type Decoder struct {
	validate *validator.Validate
}

func NewDecoder() *Decoder {
	return &Decoder{validate: validator.New()}
}

// Decode 解码流程：
//  1. 去掉 \r \n 以及 quoted-printable 换行续接符 "="
//  2. 截取 MESSAGE_START 与 MESSAGE_END 之间的载荷，标记缺失返回 ErrNoPayload
//  3. 还原HTML实体 &#34; -> " 后按JSON解析并校验字段
func (d *Decoder) Decode(raw string) (*StrategyAlert, error) {
	content := strings.NewReplacer("\r", "", "\n", "", "=", "").Replace(raw)

	start := strings.Index(content, markerStart)
	end := strings.Index(content, markerEnd)
	if start < 0 || end < 0 || end < start+len(markerStart) {
		return nil, ErrNoPayload
	}
	payload := content[start+len(markerStart) : end]
	payload = strings.ReplaceAll(payload, "&#34;", `"`)

	var alert StrategyAlert
	if err := json.Unmarshal([]byte(payload), &alert); err != nil {
		return nil, &MalformedAlertError{Detail: "JSON解析失败", Err: err}
	}
	if err := d.validate.Struct(&alert); err != nil {
		return nil, &MalformedAlertError{Detail: "字段校验失败", Err: err}
	}
	return &alert, nil
}
