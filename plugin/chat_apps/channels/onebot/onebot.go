// Package onebot implements the OneBot v11 HTTP channel used by QQ bot
// implementations such as NapCat and Lagrange.
package onebot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/hrygo/chatdigest/plugin/chat_apps"
	"github.com/hrygo/chatdigest/plugin/chat_apps/channels"
	"github.com/hrygo/chatdigest/plugin/chat_apps/transcript"
)

const (
	DefaultTimeout = 30 * time.Second

	actionGroupHistory = "get_group_msg_history"
	actionForward      = "get_forward_msg"
	actionSendGroup    = "send_group_msg"
	actionSendPrivate  = "send_private_msg"
)

// Config holds configuration for the OneBot channel.
type Config struct {
	BaseURL     string        // OneBot HTTP API address, e.g. http://127.0.0.1:3000
	AccessToken string        // Sent as a bearer token on API calls
	Secret      string        // HMAC secret for verifying reverse-HTTP events
	Timeout     time.Duration // Per-call timeout
	UserAgent   string
}

// Channel implements ChatChannel for a OneBot v11 HTTP endpoint.
// It also serves as the history and forward fetcher for transcripts.
type Channel struct {
	http   *resty.Client
	config *Config
}

// NewChannel creates a new OneBot channel.
func NewChannel(config *Config) (*Channel, error) {
	if strings.TrimSpace(config.BaseURL) == "" {
		return nil, fmt.Errorf("onebot: base URL is required")
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(config.BaseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if config.AccessToken != "" {
		client.SetAuthToken(config.AccessToken)
	}
	if config.UserAgent != "" {
		client.SetHeader("User-Agent", config.UserAgent)
	}

	return &Channel{http: client, config: config}, nil
}

// Name returns the platform name.
func (c *Channel) Name() chat_apps.Platform {
	return chat_apps.PlatformOneBot
}

// FetchGroupHistory returns up to count recent messages of a group.
func (c *Channel) FetchGroupHistory(ctx context.Context, groupID string, count int, reverse bool) ([]transcript.RawMessage, error) {
	params := map[string]any{
		"group_id":     numericOrString(groupID),
		"message_seq":  "0",
		"count":        count,
		"reverseOrder": reverse,
	}

	var data messagesData
	if err := c.call(ctx, actionGroupHistory, params, &data); err != nil {
		return nil, err
	}

	slog.Debug("onebot: history fetched", "group_id", groupID, "requested", count, "received", len(data.Messages))
	return toRawMessages(data.Messages), nil
}

// FetchForward expands a merged forward bundle.
func (c *Channel) FetchForward(ctx context.Context, forwardID string) ([]transcript.RawMessage, error) {
	params := map[string]any{
		"message_id": forwardID,
		"id":         forwardID,
	}

	var data messagesData
	if err := c.call(ctx, actionForward, params, &data); err != nil {
		return nil, err
	}

	slog.Debug("onebot: forward fetched", "forward_id", forwardID, "received", len(data.Messages))
	return toRawMessages(data.Messages), nil
}

// SendMessage sends a text or image message to a group or user.
func (c *Channel) SendMessage(ctx context.Context, msg *chat_apps.OutgoingMessage) error {
	slog.Debug("onebot: sending message",
		"chat_id", msg.PlatformChatID,
		"kind", msg.Kind,
		"type", msg.Type,
	)

	var seg outSegment
	switch msg.Type {
	case chat_apps.MessageTypeImage:
		seg = outSegment{Type: "image", Data: map[string]string{"file": msg.Content}}
	default:
		seg = outSegment{Type: "text", Data: map[string]string{"text": msg.Content}}
	}

	action := actionSendGroup
	params := map[string]any{"message": []outSegment{seg}}
	if msg.Kind == chat_apps.ChatKindPrivate {
		action = actionSendPrivate
		params["user_id"] = numericOrString(msg.PlatformChatID)
	} else {
		params["group_id"] = numericOrString(msg.PlatformChatID)
	}

	return c.call(ctx, action, params, nil)
}

// Close closes the channel.
func (c *Channel) Close() error {
	return nil
}

// call invokes a OneBot action and decodes the data field into out.
func (c *Channel) call(ctx context.Context, action string, params any, out any) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(params).
		Post("/" + action)
	if err != nil {
		slog.Error("onebot: request failed", "action", action, "error", err)
		return channels.ErrAPIFailed.Wrap(fmt.Errorf("%s: %w", action, err))
	}

	if resp.IsError() {
		slog.Error("onebot: non-2xx response", "action", action, "status", resp.StatusCode())
		return channels.ErrAPIFailed.Wrap(fmt.Errorf("%s: status %d", action, resp.StatusCode()))
	}

	var envelope apiResponse
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		return channels.ErrInvalidPayload.Wrap(fmt.Errorf("%s: %w", action, err))
	}
	if envelope.Status == "failed" || envelope.Retcode != 0 {
		reason := envelope.Wording
		if reason == "" {
			reason = envelope.Message
		}
		return channels.ErrAPIFailed.Wrap(fmt.Errorf("%s: retcode %d: %s", action, envelope.Retcode, reason))
	}

	if out == nil || len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return channels.ErrInvalidPayload.Wrap(fmt.Errorf("%s data: %w", action, err))
	}
	return nil
}

func toRawMessages(wire []wireMessage) []transcript.RawMessage {
	msgs := make([]transcript.RawMessage, 0, len(wire))
	for _, w := range wire {
		msgs = append(msgs, w.toRaw())
	}
	return msgs
}

var (
	_ channels.ChatChannel      = (*Channel)(nil)
	_ transcript.HistoryFetcher = (*Channel)(nil)
	_ transcript.ForwardFetcher = (*Channel)(nil)
)
