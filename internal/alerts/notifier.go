// Package alerts delivers sync failure digests to an external channel.
// A failed organization never aborts a sync run, so the digest is the
// only place those failures surface outside the logs.
package alerts

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/quotadb/quotadb/internal/config"
	"github.com/quotadb/quotadb/internal/logging"
)

// Notifier receives a digest after a sync run that had failures.
type Notifier interface {
	Notify(subject, body string) error
}

// TelegramNotifier sends digests to a Telegram chat, at most one per
// configured interval so a flapping remote API cannot flood the chat.
type TelegramNotifier struct {
	bot         *tgbotapi.BotAPI
	chatID      int64
	minInterval time.Duration
	logger      *logging.Logger

	mu       sync.Mutex
	lastSent time.Time
}

// NewTelegramNotifier creates a notifier from config. Returns nil
// without error when the channel is disabled.
func NewTelegramNotifier(cfg config.TelegramConfig, logger *logging.Logger) (*TelegramNotifier, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	bot, err := tgbotapi.NewBotAPI(strings.TrimSpace(cfg.Token))
	if err != nil {
		return nil, err
	}
	minInterval := cfg.MinInterval
	if minInterval <= 0 {
		minInterval = 15 * time.Minute
	}
	return &TelegramNotifier{
		bot:         bot,
		chatID:      cfg.ChatID,
		minInterval: minInterval,
		logger:      logger,
	}, nil
}

// Notify sends one digest message, or drops it when one was sent within
// the throttle interval.
func (n *TelegramNotifier) Notify(subject, body string) error {
	n.mu.Lock()
	if time.Since(n.lastSent) < n.minInterval {
		n.mu.Unlock()
		n.logger.Debug("alert digest throttled", "subject", subject)
		return nil
	}
	n.lastSent = time.Now()
	n.mu.Unlock()

	msg := tgbotapi.NewMessage(n.chatID, fmt.Sprintf("*%s*\n%s", subject, body))
	msg.ParseMode = "Markdown"
	if _, err := n.bot.Send(msg); err != nil {
		n.logger.Error("failed to send alert digest", "error", err.Error())
		return err
	}
	return nil
}
