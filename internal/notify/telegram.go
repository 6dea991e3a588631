// Package notify sends short admin notifications over Telegram. The
// notifier is optional: without a token every method is a logged no-op, so
// callers never need to branch.
package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"lista-precios/internal/pricing"
)

type Notifier struct {
	bot      *tgbotapi.BotAPI
	adminIDs []int64
	logger   *zap.Logger
}

func New(token string, adminIDs []int64, logger *zap.Logger) (*Notifier, error) {
	if token == "" || len(adminIDs) == 0 {
		logger.Info("Telegram notifications disabled - no token or admin IDs configured")
		return &Notifier{logger: logger}, nil
	}

	botAPI, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}

	logger.Info("Telegram notifier authorized",
		zap.String("username", botAPI.Self.UserName))

	return &Notifier{
		bot:      botAPI,
		adminIDs: adminIDs,
		logger:   logger,
	}, nil
}

// ImportCompleted announces a finished catalog import.
func (n *Notifier) ImportCompleted(count int, total int) {
	n.broadcast(fmt.Sprintf(
		"📦 Importación completada: %d productos nuevos (%d en catálogo).",
		count, total,
	))
}

// RateRefreshed announces a new official dollar rate.
func (n *Notifier) RateRefreshed(venta float64) {
	n.broadcast(fmt.Sprintf(
		"💵 Cotización actualizada: $%s.",
		pricing.FormatNumber(venta),
	))
}

// RateFetchFailed announces that the rate could not be refreshed and the
// previous value stays in effect.
func (n *Notifier) RateFetchFailed(err error) {
	n.broadcast(fmt.Sprintf(
		"⚠️ No se pudo actualizar la cotización (%v). Se mantiene la última conocida.",
		err,
	))
}

func (n *Notifier) broadcast(text string) {
	if n.bot == nil {
		return
	}
	for _, adminID := range n.adminIDs {
		if adminID == 0 {
			continue
		}
		msg := tgbotapi.NewMessage(adminID, text)
		if _, err := n.bot.Send(msg); err != nil {
			n.logger.Error("Failed to send admin notification",
				zap.Int64("chat_id", adminID),
				zap.Error(err))
		}
	}
}
