// Package channels provides the ChatChannel interface for chat platform integrations.
package channels

import (
	"context"
	"io"
	"sync"

	"github.com/hrygo/chatdigest/plugin/chat_apps"
)

// ChatChannel defines the interface for chat platform integrations.
type ChatChannel interface {
	// Name returns the platform name.
	Name() chat_apps.Platform

	// ValidateWebhook verifies the incoming event request.
	// Returns an error if the request signature is invalid.
	ValidateWebhook(ctx context.Context, headers map[string]string, body []byte) error

	// ParseMessage parses the incoming event payload into an IncomingMessage.
	// Returns ErrIgnoredEvent for events that are not chat messages.
	ParseMessage(ctx context.Context, payload []byte) (*chat_apps.IncomingMessage, error)

	// SendMessage sends a single message to the chat platform.
	SendMessage(ctx context.Context, msg *chat_apps.OutgoingMessage) error

	// Close releases resources.
	Close() error
}

// ChannelRouter routes incoming events to the channel registered for a platform.
// Concurrent-safe for Register and GetChannel operations.
type ChannelRouter struct {
	mu       sync.RWMutex
	registry map[chat_apps.Platform]ChatChannel
}

// NewChannelRouter creates a new channel router.
func NewChannelRouter() *ChannelRouter {
	return &ChannelRouter{
		registry: make(map[chat_apps.Platform]ChatChannel),
	}
}

// Register registers a chat channel for a platform.
func (r *ChannelRouter) Register(channel ChatChannel) {
	r.mu.Lock()
	r.registry[channel.Name()] = channel
	r.mu.Unlock()
}

// GetChannel returns the channel for a platform, or nil if not registered.
func (r *ChannelRouter) GetChannel(platform chat_apps.Platform) ChatChannel {
	r.mu.RLock()
	ch := r.registry[platform]
	r.mu.RUnlock()
	return ch
}

// HandleWebhook validates and parses an incoming event request.
func (r *ChannelRouter) HandleWebhook(ctx context.Context, platform chat_apps.Platform, headers map[string]string, body []byte) (*chat_apps.IncomingMessage, error) {
	channel := r.GetChannel(platform)
	if channel == nil {
		return nil, ErrNoChannelForPlatform
	}

	if err := channel.ValidateWebhook(ctx, headers, body); err != nil {
		return nil, err
	}

	return channel.ParseMessage(ctx, body)
}

// SendResponse sends a single response message to a chat platform.
func (r *ChannelRouter) SendResponse(ctx context.Context, platform chat_apps.Platform, msg *chat_apps.OutgoingMessage) error {
	channel := r.GetChannel(platform)
	if channel == nil {
		return ErrNoChannelForPlatform
	}

	return channel.SendMessage(ctx, msg)
}

// Errors
var (
	ErrNoChannelForPlatform = &ChannelError{Code: "NO_CHANNEL", Message: "no channel registered for platform"}
	ErrInvalidSignature     = &ChannelError{Code: "INVALID_SIGNATURE", Message: "webhook signature validation failed"}
	ErrInvalidPayload       = &ChannelError{Code: "INVALID_PAYLOAD", Message: "could not parse webhook payload"}
	ErrIgnoredEvent         = &ChannelError{Code: "IGNORED_EVENT", Message: "event is not a chat message"}
	ErrAPIFailed            = &ChannelError{Code: "API_FAILED", Message: "platform API call failed"}
)

// ChannelError represents an error in channel operations.
type ChannelError struct {
	Code    string
	Message string
	Err     error
}

func (e *ChannelError) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Code + ": " + e.Message
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}

// Is matches channel errors by code so wrapped copies compare equal to the sentinels.
func (e *ChannelError) Is(target error) bool {
	t, ok := target.(*ChannelError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Wrap returns a copy of the sentinel carrying the underlying cause.
func (e *ChannelError) Wrap(err error) *ChannelError {
	return &ChannelError{Code: e.Code, Message: e.Message, Err: err}
}

// IsRetryable returns true if the error is transient and the operation can be retried.
func (e *ChannelError) IsRetryable() bool {
	switch e.Code {
	case "NO_CHANNEL", "INVALID_SIGNATURE", "INVALID_PAYLOAD", "IGNORED_EVENT":
		return false
	default:
		return true
	}
}

var _ io.Closer = (*ChannelRouter)(nil)

// Close closes all registered channels.
func (r *ChannelRouter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for _, channel := range r.registry {
		if err := channel.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
