package transcript

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ForwardFetcher expands a forward reference into the messages it bundles.
type ForwardFetcher interface {
	FetchForward(ctx context.Context, forwardID string) ([]RawMessage, error)
}

// FirstForward returns the ID of the first forward reference in the batch.
// Scanning stops at the first hit; later forwards are ignored.
func FirstForward(msgs []RawMessage) (string, bool) {
	for _, msg := range msgs {
		for _, seg := range msg.Segments {
			if ref, ok := seg.(ForwardRef); ok {
				return ref.ID, true
			}
		}
	}
	return "", false
}

// ForwardResolver resolves at most one forward bundle per call.
type ForwardResolver struct {
	fetcher  ForwardFetcher
	location *time.Location
}

// NewForwardResolver creates a resolver that renders times in loc.
func NewForwardResolver(fetcher ForwardFetcher, loc *time.Location) *ForwardResolver {
	if loc == nil {
		loc = time.Local
	}
	return &ForwardResolver{fetcher: fetcher, location: loc}
}

// Resolve finds the first forward reference in msgs, fetches its bundle and
// normalizes the bundled messages in bundle order. No forward yields an
// empty result and no fetch.
func (r *ForwardResolver) Resolve(ctx context.Context, msgs []RawMessage) ([]Line, error) {
	forwardID, ok := FirstForward(msgs)
	if !ok {
		slog.Debug("transcript: no forward found", "messages", len(msgs))
		return nil, nil
	}

	bundle, err := r.fetcher.FetchForward(ctx, forwardID)
	if err != nil {
		return nil, fmt.Errorf("fetch forward %s: %w", forwardID, err)
	}

	slog.Debug("transcript: forward resolved", "forward_id", forwardID, "bundled", len(bundle))
	return normalize(bundle, r.location), nil
}

// normalize converts messages to lines, skipping those with no text.
func normalize(msgs []RawMessage, loc *time.Location) []Line {
	lines := make([]Line, 0, len(msgs))
	for _, msg := range msgs {
		text := Extract(msg)
		if text == "" {
			continue
		}
		lines = append(lines, Line{
			Time:     msg.Timestamp(loc),
			Nickname: displayName(msg.Sender),
			Text:     text,
		})
	}
	return lines
}
