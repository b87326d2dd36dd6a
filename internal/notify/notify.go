// Package notify tells store staff about new orders over Telegram.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/Simplici0/forma/internal/checkout"
)

// Sender is the part of the Telegram bot API used here.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts order summaries to a staff chat.
type Telegram struct {
	sender     Sender
	chatID     int64
	log        *zap.Logger
	newBackOff func() backoff.BackOff
}

// NewTelegram connects to the bot API with token.
func NewTelegram(token string, chatID int64, log *zap.Logger) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connect telegram bot: %w", err)
	}
	log.Info("telegram notifier ready", zap.String("bot", bot.Self.UserName), zap.Int64("chat_id", chatID))
	return NewTelegramWithSender(bot, chatID, log), nil
}

// NewTelegramWithSender builds a notifier around an existing sender.
func NewTelegramWithSender(sender Sender, chatID int64, log *zap.Logger) *Telegram {
	return &Telegram{
		sender: sender,
		chatID: chatID,
		log:    log,
		newBackOff: func() backoff.BackOff {
			policy := backoff.NewExponentialBackOff()
			policy.MaxElapsedTime = 30 * time.Second
			return policy
		},
	}
}

// OrderPlaced sends the order summary, retrying transient failures.
func (t *Telegram) OrderPlaced(ctx context.Context, order checkout.Order) error {
	msg := tgbotapi.NewMessage(t.chatID, FormatOrder(order))

	policy := backoff.WithContext(backoff.WithMaxRetries(t.newBackOff(), 3), ctx)
	err := backoff.RetryNotify(
		func() error {
			_, err := t.sender.Send(msg)
			return err
		},
		policy,
		func(err error, next time.Duration) {
			t.log.Warn("telegram send failed, retrying",
				zap.String("order_id", order.ID),
				zap.Error(err),
				zap.Duration("next_attempt_in", next))
		},
	)
	if err != nil {
		return fmt.Errorf("send order %s to telegram: %w", order.ID, err)
	}
	return nil
}

// FormatOrder renders the plain-text staff message for an order.
func FormatOrder(order checkout.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "New order %s\n", order.ID)
	fmt.Fprintf(&b, "Customer: %s, %s\n", order.ContactName, order.ContactPhone)
	switch order.DeliveryType {
	case checkout.HomeDelivery:
		fmt.Fprintf(&b, "Home delivery to: %s\n", order.Address)
	case checkout.StorePickup:
		b.WriteString("Store pickup\n")
	}
	b.WriteString("\n")
	for i, item := range order.Items {
		fmt.Fprintf(&b, "%d. %s / %s GSM x%d @ %.2f\n", i+1, item.Size, item.MaterialKey, item.Quantity, item.UnitPrice)
	}
	fmt.Fprintf(&b, "\nSubtotal: %.2f\n", order.Subtotal)
	if order.DeliveryCharge > 0 {
		fmt.Fprintf(&b, "Delivery: %.2f\n", order.DeliveryCharge)
	}
	fmt.Fprintf(&b, "Total: %.2f", order.Total)
	return b.String()
}

// Nop drops notifications. It is used when Telegram is not configured.
type Nop struct{}

func (Nop) OrderPlaced(context.Context, checkout.Order) error { return nil }
