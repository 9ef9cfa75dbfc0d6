package notify

import (
	"errors"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// TelegramMirror forwards every alert to an operator chat. Send-only:
// no poller is started.
type TelegramMirror struct {
	bot  *tele.Bot
	chat tele.Recipient
}

func NewTelegramMirror(token string, chatID int64) (*TelegramMirror, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	bot, err := tele.NewBot(tele.Settings{Token: token})
	if err != nil {
		return nil, fmt.Errorf("notify: telegram mirror: %w", err)
	}
	return &TelegramMirror{bot: bot, chat: tele.ChatID(chatID)}, nil
}

func (m *TelegramMirror) Mirror(title, body string) error {
	_, err := m.bot.Send(m.chat, fmt.Sprintf("%s\n%s", title, body))
	return err
}
