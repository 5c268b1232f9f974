package transcript

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	// FacePlaceholder replaces emoji and sticker segments.
	FacePlaceholder = "[表情]"
	// SharePrefix marks the description of a share card.
	SharePrefix = "[分享内容]"
)

// Extract normalizes the segments of one message into a single line of text.
// Each segment contributes its text followed by one space; the result is trimmed.
// It never fails: malformed share cards simply contribute nothing.
func Extract(msg RawMessage) string {
	var b strings.Builder
	for _, seg := range msg.Segments {
		b.WriteString(contribution(seg))
	}
	return strings.TrimSpace(b.String())
}

func contribution(seg Segment) string {
	switch s := seg.(type) {
	case Text:
		return strings.TrimSpace(s.Text) + " "
	case Face:
		return FacePlaceholder + " "
	case JSONCard:
		desc, ok := shareDescription(s.Payload)
		if !ok {
			return ""
		}
		return SharePrefix + desc + " "
	case ForwardRef:
		// resolved separately by ForwardResolver
		return ""
	case Unsupported, nil:
		return ""
	default:
		panic(fmt.Sprintf("transcript: unhandled segment %T", seg))
	}
}

// shareDescription reads meta.news.desc from a share card payload.
func shareDescription(payload string) (string, bool) {
	var root map[string]any
	if err := json.Unmarshal([]byte(payload), &root); err != nil {
		return "", false
	}
	meta, ok := root["meta"].(map[string]any)
	if !ok {
		return "", false
	}
	news, ok := meta["news"].(map[string]any)
	if !ok {
		return "", false
	}
	desc, ok := news["desc"]
	if !ok || desc == nil {
		return "", false
	}
	if s, ok := desc.(string); ok {
		return s, true
	}
	return fmt.Sprint(desc), true
}
