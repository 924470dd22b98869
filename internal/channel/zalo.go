package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"gmatbot/internal/domain"
)

// extra client-side slack on top of the server-side long-poll wait
const zaloPollSlack = 10 * time.Second

// Zalo implements domain.Messenger against the Zalo Bot API. The wire
// format mirrors Telegram's (getUpdates/sendMessage/sendPhoto) but uses
// string identifiers and wraps each message in an event envelope.
type Zalo struct {
	token   string
	apiBase string
	client  *http.Client
	logger  *slog.Logger
}

type ZaloConfig struct {
	Token   string
	APIBase string // default https://bot-api.zapps.vn
	Logger  *slog.Logger
}

func NewZalo(cfg ZaloConfig) *Zalo {
	if cfg.APIBase == "" {
		cfg.APIBase = "https://bot-api.zapps.vn"
	}
	return &Zalo{
		token:   cfg.Token,
		apiBase: cfg.APIBase,
		// No client-level timeout: getUpdates legitimately blocks for the
		// long-poll wait. Per-call deadlines come from the context.
		client: &http.Client{},
		logger: cfg.Logger,
	}
}

func (z *Zalo) Name() string { return "zalo" }

// --- wire types ---

type zaloResponse struct {
	OK          bool            `json:"ok"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
	Result      json.RawMessage `json:"result"`
}

type zaloUpdate struct {
	EventName string       `json:"event_name"`
	Message   *zaloMessage `json:"message"`
}

type zaloMessage struct {
	MessageID string     `json:"message_id"`
	Date      int64      `json:"date"`
	Text      string     `json:"text"`
	Sender    zaloSender `json:"sender"`
	Chat      zaloChat   `json:"chat"`
}

type zaloSender struct {
	ID    string `json:"id"`
	IsBot bool   `json:"is_bot"`
}

type zaloChat struct {
	ID       string `json:"id"`
	ChatType string `json:"chat_type"`
}

// Poll long-polls getUpdates for messages with sequence number >= offset.
func (z *Zalo) Poll(ctx context.Context, offset int64, timeout time.Duration) ([]domain.InboundMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout+zaloPollSlack)
	defer cancel()

	payload := map[string]any{
		"timeout": int(timeout.Seconds()),
	}
	if offset > 0 {
		payload["offset"] = offset
	}

	result, err := z.call(ctx, "getUpdates", payload)
	if err != nil {
		return nil, err
	}

	updates, err := decodeZaloUpdates(result)
	if err != nil {
		return nil, err
	}

	var msgs []domain.InboundMessage
	for _, u := range updates {
		if u.Message == nil {
			continue
		}
		seq, err := strconv.ParseInt(u.Message.MessageID, 10, 64)
		if err != nil {
			z.logger.Warn("skipping update with non-numeric message_id",
				"message_id", u.Message.MessageID, "event", u.EventName)
			continue
		}
		msgs = append(msgs, domain.InboundMessage{
			ChatID:    u.Message.Chat.ID,
			SenderID:  u.Message.Sender.ID,
			Seq:       seq,
			Text:      u.Message.Text,
			Timestamp: time.Unix(u.Message.Date, 0),
		})
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].Seq < msgs[j].Seq })
	return msgs, nil
}

// decodeZaloUpdates accepts the three result shapes the API is known to
// return: an array of updates, a single update object, or an empty value.
func decodeZaloUpdates(raw json.RawMessage) ([]zaloUpdate, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var many []zaloUpdate
	if err := json.Unmarshal(raw, &many); err == nil {
		return many, nil
	}

	var one zaloUpdate
	if err := json.Unmarshal(raw, &one); err == nil {
		if one.Message == nil && one.EventName == "" {
			// Empty object or unknown shape; nothing to deliver.
			return nil, nil
		}
		return []zaloUpdate{one}, nil
	}

	var anything any
	if err := json.Unmarshal(raw, &anything); err != nil {
		return nil, fmt.Errorf("zalo getUpdates result: %w", domain.ErrProtocol)
	}
	return nil, nil
}

func (z *Zalo) ReplyText(ctx context.Context, chatID, text string) error {
	_, err := z.call(ctx, "sendMessage", map[string]any{
		"chat_id": chatID,
		"text":    text,
	})
	return err
}

func (z *Zalo) ReplyPhoto(ctx context.Context, chatID, photoURL, caption string) error {
	_, err := z.call(ctx, "sendPhoto", map[string]any{
		"chat_id":   chatID,
		"photo_url": photoURL,
		"caption":   caption,
	})
	return err
}

// call POSTs one Bot API method and returns the raw result, classifying
// failures into the domain error taxonomy.
func (z *Zalo) call(ctx context.Context, method string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", z.apiBase, z.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := z.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("zalo %s: %v: %w", method, err, domain.ErrTransient)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("zalo %s: read body: %v: %w", method, err, domain.ErrTransient)
	}

	if err := classifyStatus(resp.StatusCode); err != nil {
		z.logger.Warn("zalo api error", "method", method, "status", resp.StatusCode)
		return nil, fmt.Errorf("zalo %s: HTTP %d: %w", method, resp.StatusCode, err)
	}

	var parsed zaloResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("zalo %s: parse response: %w", method, domain.ErrProtocol)
	}
	if !parsed.OK {
		if err := classifyStatus(parsed.ErrorCode); err != nil {
			return nil, fmt.Errorf("zalo %s: %s: %w", method, parsed.Description, err)
		}
		return nil, fmt.Errorf("zalo %s: %s: %w", method, parsed.Description, domain.ErrProtocol)
	}

	return parsed.Result, nil
}

// classifyStatus maps an HTTP-style status code onto the error taxonomy.
// Returns nil for success codes.
func classifyStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return domain.ErrAuth
	case code == http.StatusTooManyRequests || code >= 500:
		return domain.ErrTransient
	default:
		return domain.ErrProtocol
	}
}
