package telegram

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mtzanidakis/swarmlink/internal/config"
	"github.com/mtzanidakis/swarmlink/internal/orchestrator"
	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"
)

// StatusSource exposes the orchestrator state reported by bot commands.
type StatusSource interface {
	Latest() *orchestrator.Snapshot
	Stats() orchestrator.Stats
	Busy() bool
}

type Bot struct {
	bot    *telego.Bot
	status StatusSource
	cfg    config.TelegramConfig
}

func NewBot(cfg config.TelegramConfig, status StatusSource) (*Bot, error) {
	bot, err := telego.NewBot(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	return &Bot{
		bot:    bot,
		status: status,
		cfg:    cfg,
	}, nil
}

// Start answers /status and /matrix from the configured chat until ctx is
// done.
func (b *Bot) Start(ctx context.Context) error {
	updates, err := b.bot.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return fmt.Errorf("start long polling: %w", err)
	}

	handler, err := th.NewBotHandler(b.bot, updates)
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	handler.HandleMessage(func(hctx *th.Context, message telego.Message) error {
		b.handleCommand(ctx, message, "status")
		return nil
	}, th.CommandEqual("status"))

	handler.HandleMessage(func(hctx *th.Context, message telego.Message) error {
		b.handleCommand(ctx, message, "matrix")
		return nil
	}, th.CommandEqual("matrix"))

	go handler.Start()

	<-ctx.Done()
	_ = handler.Stop()
	return nil
}

func (b *Bot) handleCommand(ctx context.Context, msg telego.Message, command string) {
	chatID := msg.Chat.ID
	if chatID != b.cfg.ChatID {
		slog.Warn("unauthorized telegram chat", "chat_id", chatID)
		return
	}

	var text string
	switch command {
	case "status":
		text = formatStatus(b.status.Latest(), b.status.Stats(), b.status.Busy())
	case "matrix":
		text = formatMatrix(b.status.Latest())
	}

	if err := b.SendMessage(ctx, chatID, text); err != nil {
		slog.Error("failed to send telegram reply", "chat", chatID, "error", err)
	}
}

func (b *Bot) SendMessage(ctx context.Context, chatID int64, text string) error {
	chunks := chunkMessage(text, 4096)
	for _, chunk := range chunks {
		msg := tu.Message(tu.ID(chatID), chunk)
		_, err := b.bot.SendMessage(ctx, msg)
		if err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}
	return nil
}

// Notify sends text to the configured chat.
func (b *Bot) Notify(ctx context.Context, text string) error {
	return b.SendMessage(ctx, b.cfg.ChatID, text)
}
