package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Telegram 通过Telegram机器人向管理员推送消息，
// 并监听入站消息做最基本的应答
type Telegram struct {
	bot     *tgbotapi.BotAPI
	adminID int64
	log     *zap.Logger
}

func NewTelegram(token string, adminID int64, log *zap.Logger) (*Telegram, error) {
	if log == nil {
		log = zap.NewNop()
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("创建Telegram机器人失败: %w", err)
	}
	log.Info("Telegram机器人已连接", zap.String("username", bot.Self.UserName))
	return &Telegram{bot: bot, adminID: adminID, log: log}, nil
}

// Send 给管理员发消息。silent=true 不触发客户端提醒
func (t *Telegram) Send(text string, silent bool) error {
	msg := tgbotapi.NewMessage(t.adminID, text)
	msg.DisableNotification = silent
	if _, err := t.bot.Send(msg); err != nil {
		t.log.Warn("发送Telegram消息失败", zap.Error(err))
		return err
	}
	return nil
}

// Listen 监听入站消息直到 stopCh 关闭。管理员收到确认应答，
// 其他人一律拒绝。作为辅助工作单元由监督器托管
func (t *Telegram) Listen(stopCh <-chan struct{}) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := t.bot.GetUpdatesChan(u)

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil {
				continue
			}
			reply := "Access denied"
			if update.Message.Chat.ID == t.adminID {
				reply = "okey-dokey"
			}
			if _, err := t.bot.Send(tgbotapi.NewMessage(update.Message.Chat.ID, reply)); err != nil {
				t.log.Warn("应答Telegram消息失败", zap.Error(err))
			}
		case <-stopCh:
			t.bot.StopReceivingUpdates()
			return
		}
	}
}
