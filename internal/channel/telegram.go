package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"gmatbot/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram implements domain.Messenger for the Telegram Bot API, whose
// getUpdates offset/timeout semantics match the generic poll contract
// directly (offset = highest update_id seen + 1).
type Telegram struct {
	bot    *tgbotapi.BotAPI
	logger *slog.Logger
}

type TelegramConfig struct {
	Token  string
	Logger *slog.Logger
}

func NewTelegram(cfg TelegramConfig) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", classifyTelegramErr(err))
	}
	cfg.Logger.Info("telegram bot connected",
		"username", bot.Self.UserName,
		"id", bot.Self.ID,
	)
	return &Telegram{bot: bot, logger: cfg.Logger}, nil
}

func (t *Telegram) Name() string { return "telegram" }

// Poll fetches updates past offset. Updates that carry no chat message
// (edits, channel posts) are still returned with an empty ChatID so the
// caller can advance its cursor past them.
func (t *Telegram) Poll(ctx context.Context, offset int64, timeout time.Duration) ([]domain.InboundMessage, error) {
	u := tgbotapi.NewUpdate(int(offset))
	u.Timeout = int(timeout.Seconds())

	updates, err := t.bot.GetUpdates(u)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("telegram getUpdates: %w", classifyTelegramErr(err))
	}

	msgs := make([]domain.InboundMessage, 0, len(updates))
	for _, upd := range updates {
		msg := domain.InboundMessage{Seq: int64(upd.UpdateID)}
		if upd.Message != nil && upd.Message.Chat != nil {
			msg.ChatID = strconv.FormatInt(upd.Message.Chat.ID, 10)
			msg.Text = upd.Message.Text
			msg.Timestamp = time.Unix(int64(upd.Message.Date), 0)
			if upd.Message.From != nil {
				msg.SenderID = strconv.FormatInt(upd.Message.From.ID, 10)
			}
		}
		msgs = append(msgs, msg)
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].Seq < msgs[j].Seq })
	return msgs, nil
}

func (t *Telegram) ReplyText(ctx context.Context, chatID, text string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat ID %q: %w", chatID, domain.ErrProtocol)
	}
	if _, err := t.bot.Send(tgbotapi.NewMessage(id, text)); err != nil {
		return fmt.Errorf("telegram sendMessage: %w", classifyTelegramErr(err))
	}
	return nil
}

func (t *Telegram) ReplyPhoto(ctx context.Context, chatID, photoURL, caption string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat ID %q: %w", chatID, domain.ErrProtocol)
	}
	photo := tgbotapi.NewPhoto(id, tgbotapi.FileURL(photoURL))
	photo.Caption = caption
	if _, err := t.bot.Send(photo); err != nil {
		return fmt.Errorf("telegram sendPhoto: %w", classifyTelegramErr(err))
	}
	return nil
}

// classifyTelegramErr maps tgbotapi errors onto the domain taxonomy.
func classifyTelegramErr(err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		if mapped := classifyStatus(apiErr.Code); mapped != nil {
			return fmt.Errorf("%s: %w", apiErr.Message, mapped)
		}
		return fmt.Errorf("%s: %w", apiErr.Message, domain.ErrProtocol)
	}
	// Anything else is a transport-level failure (DNS, TLS, timeouts).
	return fmt.Errorf("%v: %w", err, domain.ErrTransient)
}
