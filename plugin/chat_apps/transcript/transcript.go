package transcript

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
)

const (
	// ForwardWindow is how many recent messages are scanned for a forward bundle.
	ForwardWindow = 10
	// UnknownNickname is shown for senders whose nickname is absent or empty.
	UnknownNickname = "未知用户"

	lineTimeLayout = "2006-01-02 15:04:05"
)

// HistoryFetcher reads recent group messages from the platform.
type HistoryFetcher interface {
	FetchGroupHistory(ctx context.Context, groupID string, count int, reverse bool) ([]RawMessage, error)
}

// Line is one normalized transcript entry.
type Line struct {
	Time     time.Time
	Nickname string
	Text     string
}

// String formats the line as "[time]「nickname」: text".
func (l Line) String() string {
	return fmt.Sprintf("[%s]「%s」: %s", l.Time.Format(lineTimeLayout), l.Nickname, l.Text)
}

// Transcript is an ordered list of lines in fetch order.
type Transcript struct {
	Lines []Line
}

// Empty reports whether the transcript has no lines.
func (t *Transcript) Empty() bool {
	return t == nil || len(t.Lines) == 0
}

// Text joins the lines with newlines, preserving order.
func (t *Transcript) Text() string {
	if t.Empty() {
		return ""
	}
	return strings.Join(lo.Map(t.Lines, func(l Line, _ int) string {
		return l.String()
	}), "\n")
}

// Builder assembles transcripts from platform history.
type Builder struct {
	history  HistoryFetcher
	resolver *ForwardResolver
	location *time.Location
}

// NewBuilder creates a transcript builder. A nil location means local time.
func NewBuilder(history HistoryFetcher, forward ForwardFetcher, loc *time.Location) *Builder {
	if loc == nil {
		loc = time.Local
	}
	return &Builder{
		history:  history,
		resolver: NewForwardResolver(forward, loc),
		location: loc,
	}
}

// BuildFromForward reads the last ForwardWindow messages and returns the
// content of the first forward bundle among them. Top-level messages are
// not part of the result.
func (b *Builder) BuildFromForward(ctx context.Context, groupID string) (*Transcript, error) {
	msgs, err := b.history.FetchGroupHistory(ctx, groupID, ForwardWindow, true)
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}

	lines, err := b.resolver.Resolve(ctx, msgs)
	if err != nil {
		return nil, err
	}
	return &Transcript{Lines: lines}, nil
}

// BuildDirect reads count messages and normalizes each of them. Forward
// references are never expanded here.
func (b *Builder) BuildDirect(ctx context.Context, groupID string, count int) (*Transcript, error) {
	msgs, err := b.history.FetchGroupHistory(ctx, groupID, count, true)
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	return &Transcript{Lines: normalize(msgs, b.location)}, nil
}

func displayName(s Sender) string {
	if s.Nickname == "" {
		return UnknownNickname
	}
	return s.Nickname
}
