// Package chat_apps provides chat platform integration for chatdigest.
// Supported platforms: OneBot v11 compatible QQ bots (NapCat, Lagrange, go-cqhttp).
package chat_apps

import "time"

// MessageType represents the type of an outgoing message.
type MessageType int

const (
	MessageTypeText MessageType = iota
	MessageTypeImage
)

// String returns the string representation of MessageType.
func (m MessageType) String() string {
	switch m {
	case MessageTypeText:
		return "text"
	case MessageTypeImage:
		return "image"
	default:
		return "unknown"
	}
}

// Platform represents a supported chat platform.
type Platform string

const (
	PlatformOneBot Platform = "onebot"
)

// IsValid checks if the platform is valid.
func (p Platform) IsValid() bool {
	switch p {
	case PlatformOneBot:
		return true
	default:
		return false
	}
}

// ChatKind distinguishes group conversations from private ones.
type ChatKind string

const (
	ChatKindGroup   ChatKind = "group"
	ChatKindPrivate ChatKind = "private"
)

// IncomingMessage represents a message event from a chat platform.
type IncomingMessage struct {
	Platform       Platform          // Source platform
	Kind           ChatKind          // group or private
	PlatformUserID string            // Sender ID
	PlatformChatID string            // Group ID for group messages, user ID otherwise
	MessageID      string            // Platform message ID
	Content        string            // Plain text content (raw_message)
	Metadata       map[string]string // Additional platform-specific metadata
	Timestamp      time.Time         // Message timestamp
}

// IsGroup reports whether the message was sent in a group chat.
func (m *IncomingMessage) IsGroup() bool {
	return m.Kind == ChatKindGroup && m.PlatformChatID != ""
}

// OutgoingMessage represents a message to send to a chat platform.
type OutgoingMessage struct {
	Kind           ChatKind    // group or private
	PlatformChatID string      // Destination group or user ID
	Type           MessageType // Message type
	Content        string      // Text content, or image URL for MessageTypeImage
}
