package onebot

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/hrygo/chatdigest/plugin/chat_apps"
	"github.com/hrygo/chatdigest/plugin/chat_apps/channels"
	"github.com/hrygo/chatdigest/plugin/chat_apps/transcript"
)

// SignatureHeader carries "sha1=<hex hmac>" of the request body.
const SignatureHeader = "X-Signature"

type wireEvent struct {
	PostType    string          `json:"post_type"`
	MessageType string          `json:"message_type"`
	MessageID   flexID          `json:"message_id"`
	GroupID     flexID          `json:"group_id"`
	UserID      flexID          `json:"user_id"`
	SelfID      flexID          `json:"self_id"`
	Time        int64           `json:"time"`
	RawMessage  string          `json:"raw_message"`
	Message     json.RawMessage `json:"message"`
	Sender      wireSender      `json:"sender"`
}

// ValidateWebhook verifies the HMAC-SHA1 signature when a secret is configured.
func (c *Channel) ValidateWebhook(_ context.Context, headers map[string]string, body []byte) error {
	if c.config.Secret == "" {
		return nil
	}

	sig := headerValue(headers, SignatureHeader)
	if !strings.HasPrefix(sig, "sha1=") {
		slog.Warn("onebot: missing event signature")
		return channels.ErrInvalidSignature
	}

	if !hmac.Equal([]byte(sig), []byte(Sign(c.config.Secret, body))) {
		slog.Warn("onebot: event signature mismatch")
		return channels.ErrInvalidSignature
	}
	return nil
}

// ParseMessage parses a reverse-HTTP event into an IncomingMessage.
// Events other than group or private messages return ErrIgnoredEvent.
func (c *Channel) ParseMessage(_ context.Context, payload []byte) (*chat_apps.IncomingMessage, error) {
	var ev wireEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		slog.Warn("onebot: failed to parse event payload", "error", err)
		return nil, channels.ErrInvalidPayload.Wrap(err)
	}

	if ev.PostType != "message" {
		return nil, channels.ErrIgnoredEvent
	}

	msg := &chat_apps.IncomingMessage{
		Platform:       chat_apps.PlatformOneBot,
		PlatformUserID: string(ev.UserID),
		MessageID:      string(ev.MessageID),
		Content:        eventText(ev),
		Timestamp:      time.Unix(ev.Time, 0),
		Metadata:       make(map[string]string),
	}

	switch ev.MessageType {
	case "group":
		msg.Kind = chat_apps.ChatKindGroup
		msg.PlatformChatID = string(ev.GroupID)
	case "private":
		msg.Kind = chat_apps.ChatKindPrivate
		msg.PlatformChatID = string(ev.UserID)
	default:
		return nil, channels.ErrIgnoredEvent
	}

	msg.Metadata["self_id"] = string(ev.SelfID)
	msg.Metadata["nickname"] = ev.Sender.Nickname
	if ev.Sender.Card != "" {
		msg.Metadata["card"] = ev.Sender.Card
	}

	return msg, nil
}

// eventText prefers raw_message and falls back to the text segments.
func eventText(ev wireEvent) string {
	if ev.RawMessage != "" {
		return strings.TrimSpace(ev.RawMessage)
	}
	var b strings.Builder
	for _, seg := range decodeSegments(ev.Message) {
		if t, ok := seg.(transcript.Text); ok {
			b.WriteString(t.Text)
		}
	}
	return strings.TrimSpace(b.String())
}

func headerValue(headers map[string]string, key string) string {
	if v, ok := headers[key]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

// Sign computes the signature header value for body. Used by tests and
// by tooling that replays events.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write(body)
	return "sha1=" + hex.EncodeToString(mac.Sum(nil))
}
