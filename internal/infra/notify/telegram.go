package notify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/gauravv01/subshare-sub000/internal/domain/model"
	"github.com/gauravv01/subshare-sub000/internal/infra/i18n"
)

// opsEvents are the events worth a chat message to operators.
var opsEvents = map[model.EventType]bool{
	model.EventPaymentFailed:   true,
	model.EventRefundCompleted: true,
	model.EventPayoutRecorded:  true,
}

// MessageSender is the subset of tgbotapi.BotAPI used here.
type MessageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier posts ledger events to operator chats.
type TelegramNotifier struct {
	bot     MessageSender
	chatIDs []int64
	tr      *i18n.Translator
}

func NewTelegramNotifier(token string, chatIDs []int64, tr *i18n.Translator) (*TelegramNotifier, error) {
	if token == "" {
		return nil, errors.New("telegram token empty")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return NewTelegramNotifierWithSender(bot, chatIDs, tr), nil
}

// NewTelegramNotifierWithSender uses the embedded English catalog when tr is nil.
func NewTelegramNotifierWithSender(bot MessageSender, chatIDs []int64, tr *i18n.Translator) *TelegramNotifier {
	if tr == nil {
		tr = i18n.MustDefault()
	}
	return &TelegramNotifier{bot: bot, chatIDs: chatIDs, tr: tr}
}

func (n *TelegramNotifier) Name() string { return "telegram" }

func (n *TelegramNotifier) Send(ctx context.Context, ev model.Event) error {
	if !opsEvents[ev.Type] {
		return nil
	}
	text := n.format(ev)
	var errs []error
	for _, id := range n.chatIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(id, text)
		if _, err := n.bot.Send(msg); err != nil {
			errs = append(errs, fmt.Errorf("chat %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func (n *TelegramNotifier) format(ev model.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n%s: %s", n.tr.T("event."+string(ev.Type)), n.tr.T("label.subscription"), ev.SubscriptionID)
	if ev.TransactionID != "" {
		fmt.Fprintf(&b, "\n%s: %s", n.tr.T("label.transaction"), ev.TransactionID)
	}
	if ev.UserID != "" {
		fmt.Fprintf(&b, "\n%s: %s", n.tr.T("label.user"), ev.UserID)
	}
	keys := make([]string, 0, len(ev.Attributes))
	for k := range ev.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "\n%s: %s", k, ev.Attributes[k])
	}
	return b.String()
}
