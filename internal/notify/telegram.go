// Package notify содержит доставку уведомлений пользователям и оператору
// через Telegram.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"github.com/mmeshcher/airtime-desk/internal/service"
)

// Уникальные идентификаторы callback-кнопок решения оператора.
// Обработчики этих кнопок регистрирует пакет bot.
const (
	CallbackApprove = "approve"
	CallbackReject  = "reject"
)

// TelegramNotifier реализует service.Notifier поверх telebot.
// Доставка best-effort: сбой после повторов логируется и не возвращается
// вызывающему.
type TelegramNotifier struct {
	bot        *tele.Bot
	operatorID int64
	logger     *zap.Logger
}

// NewTelegramNotifier создаёт нотификатор, пишущий оператору operatorID.
func NewTelegramNotifier(bot *tele.Bot, operatorID int64, logger *zap.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		bot:        bot,
		operatorID: operatorID,
		logger:     logger,
	}
}

// NotifyUser отправляет пользователю текстовое сообщение.
func (n *TelegramNotifier) NotifyUser(ctx context.Context, userID int64, text string) {
	n.send(ctx, tele.ChatID(userID), text)
}

// NotifyOperator отправляет сообщение оператору. Если передан prompt,
// к сообщению прикрепляются inline-кнопки подтверждения и отклонения,
// несущие идентификатор заказа.
func (n *TelegramNotifier) NotifyOperator(ctx context.Context, text string, prompt *service.DecisionPrompt) {
	var opts []interface{}
	if prompt != nil {
		markup := &tele.ReplyMarkup{}
		markup.Inline(markup.Row(
			markup.Data("✅ Approve", CallbackApprove, prompt.TransactionID),
			markup.Data("❌ Reject", CallbackReject, prompt.TransactionID),
		))
		opts = append(opts, markup)
	}

	n.send(ctx, tele.ChatID(n.operatorID), text, opts...)
}

func (n *TelegramNotifier) send(ctx context.Context, to tele.Recipient, text string, opts ...interface{}) {
	backoff := retry.WithMaxRetries(3, retry.NewFibonacci(500*time.Millisecond))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if _, err := n.bot.Send(to, text, opts...); err != nil {
			return retry.RetryableError(fmt.Errorf("send to %s: %w", to.Recipient(), err))
		}
		return nil
	})
	if err != nil {
		n.logger.Error("notification delivery failed",
			zap.String("recipient", to.Recipient()),
			zap.Error(err),
		)
	}
}
