package mail

import (
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	// 注册常见字符集，否则部分邮件正文无法解码
	_ "github.com/emersion/go-message/charset"
	gomail "github.com/emersion/go-message/mail"
	"go.uber.org/zap"
)

// Config 邮箱连接配置
type Config struct {
	Server   string // 含端口，如 imap.gmail.com:993
	Address  string
	Password string
	Sender   string // 告警邮件的发件人过滤条件
}

// Source 基于IMAP的告警邮件源。每次调用独立建连，
// 连接失败由下一个轮询周期自然重连
type Source struct {
	cfg Config
	log *zap.Logger
}

func NewSource(cfg Config, log *zap.Logger) *Source {
	if log == nil {
		log = zap.NewNop()
	}
	return &Source{cfg: cfg, log: log}
}

// FetchUnread 搜索主题为 "Alert: {strategyName}" 的未读告警邮件并返回正文。
// 取回的邮件会被显式标记已读，保证同一封告警不会在下个周期重复出现
func (s *Source) FetchUnread(strategyName string) ([]string, error) {
	c, err := client.DialTLS(s.cfg.Server, nil)
	if err != nil {
		return nil, fmt.Errorf("连接IMAP失败: %w", err)
	}
	defer c.Logout()

	if err := c.Login(s.cfg.Address, s.cfg.Password); err != nil {
		return nil, fmt.Errorf("登录失败: %w", err)
	}

	if _, err := c.Select("INBOX", false); err != nil {
		return nil, fmt.Errorf("选择收件箱失败: %w", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	criteria.Header.Add("From", s.cfg.Sender)
	criteria.Header.Add("Subject", "Alert: "+strategyName)

	ids, err := c.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("搜索邮件失败: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	section := &imap.BodySectionName{}
	items := []imap.FetchItem{section.FetchItem()}

	messages := make(chan *imap.Message, len(ids))
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqset, items, messages)
	}()

	var bodies []string
	for msg := range messages {
		r := msg.GetBody(section)
		if r == nil {
			continue
		}
		body, err := readBody(r)
		if err != nil {
			s.log.Warn("解析邮件正文失败", zap.String("strategy", strategyName), zap.Error(err))
			continue
		}
		bodies = append(bodies, body)
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("获取邮件失败: %w", err)
	}

	// 标记已读
	op := imap.FormatFlagsOp(imap.AddFlags, true)
	flags := []interface{}{imap.SeenFlag}
	if err := c.Store(seqset, op, flags, nil); err != nil {
		s.log.Warn("标记已读失败", zap.String("strategy", strategyName), zap.Error(err))
	}

	return bodies, nil
}

// readBody 提取正文文本，优先 text/plain，没有时退回HTML
func readBody(r io.Reader) (string, error) {
	mr, err := gomail.CreateReader(r)
	if err != nil {
		return "", fmt.Errorf("解析邮件结构失败: %w", err)
	}

	body := ""
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		} else if err != nil {
			return "", fmt.Errorf("读取邮件部分失败: %w", err)
		}

		if _, ok := p.Header.(*gomail.InlineHeader); !ok {
			continue
		}
		b, err := io.ReadAll(p.Body)
		if err != nil {
			return "", fmt.Errorf("读取正文失败: %w", err)
		}
		contentType := p.Header.Get("Content-Type")
		if strings.Contains(contentType, "text/plain") {
			body = string(b)
		} else if strings.Contains(contentType, "text/html") && body == "" {
			body = string(b)
		}
	}
	return body, nil
}
