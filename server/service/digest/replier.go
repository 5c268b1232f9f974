package digest

import (
	"context"

	"github.com/hrygo/chatdigest/plugin/chat_apps"
	"github.com/hrygo/chatdigest/plugin/chat_apps/channels"
)

// Replier delivers digest output back to the chat.
type Replier interface {
	SendGroupText(ctx context.Context, groupID, text string) error
	SendGroupImage(ctx context.Context, groupID, url string) error
	SendPrivateText(ctx context.Context, userID, text string) error
}

// ChannelReplier sends replies through the channel registered for a platform.
type ChannelReplier struct {
	router   *channels.ChannelRouter
	platform chat_apps.Platform
}

// NewChannelReplier creates a Replier backed by router.
func NewChannelReplier(router *channels.ChannelRouter, platform chat_apps.Platform) *ChannelReplier {
	return &ChannelReplier{router: router, platform: platform}
}

func (r *ChannelReplier) SendGroupText(ctx context.Context, groupID, text string) error {
	return r.send(ctx, chat_apps.ChatKindGroup, groupID, chat_apps.MessageTypeText, text)
}

func (r *ChannelReplier) SendGroupImage(ctx context.Context, groupID, url string) error {
	return r.send(ctx, chat_apps.ChatKindGroup, groupID, chat_apps.MessageTypeImage, url)
}

func (r *ChannelReplier) SendPrivateText(ctx context.Context, userID, text string) error {
	return r.send(ctx, chat_apps.ChatKindPrivate, userID, chat_apps.MessageTypeText, text)
}

func (r *ChannelReplier) send(ctx context.Context, kind chat_apps.ChatKind, chatID string, typ chat_apps.MessageType, content string) error {
	return r.router.SendResponse(ctx, r.platform, &chat_apps.OutgoingMessage{
		Kind:           kind,
		PlatformChatID: chatID,
		Type:           typ,
		Content:        content,
	})
}

var _ Replier = (*ChannelReplier)(nil)
