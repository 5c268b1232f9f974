package onebot

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/hrygo/chatdigest/plugin/chat_apps/transcript"
)

// flexID accepts IDs encoded either as JSON numbers or strings.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

// apiResponse is the OneBot v11 action response envelope.
type apiResponse struct {
	Status  string          `json:"status"`
	Retcode int             `json:"retcode"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Wording string          `json:"wording"`
}

type wireSender struct {
	UserID   flexID `json:"user_id"`
	Nickname string `json:"nickname"`
	Card     string `json:"card"`
}

type wireSegment struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// wireMessage is a history or forward entry. Forward entries from some
// implementations carry their segments under "content" instead of "message".
type wireMessage struct {
	MessageID flexID          `json:"message_id"`
	Time      int64           `json:"time"`
	Sender    wireSender      `json:"sender"`
	Message   json.RawMessage `json:"message"`
	Content   json.RawMessage `json:"content"`
}

type messagesData struct {
	Messages []wireMessage `json:"messages"`
}

// outSegment is a segment in an outgoing message.
type outSegment struct {
	Type string            `json:"type"`
	Data map[string]string `json:"data"`
}

func (m wireMessage) toRaw() transcript.RawMessage {
	segs := decodeSegments(m.Message)
	if len(segs) == 0 {
		segs = decodeSegments(m.Content)
	}
	return transcript.RawMessage{
		Sender: transcript.Sender{
			ID:       string(m.Sender.UserID),
			Nickname: m.Sender.Nickname,
		},
		Time:     m.Time,
		Segments: segs,
	}
}

// decodeSegments accepts either a segment array or a CQ-code-free plain string.
func decodeSegments(raw json.RawMessage) []transcript.Segment {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
		return []transcript.Segment{transcript.Text{Text: s}}
	}

	var wire []wireSegment
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil
	}
	segs := make([]transcript.Segment, 0, len(wire))
	for _, w := range wire {
		segs = append(segs, decodeSegment(w))
	}
	return segs
}

func decodeSegment(w wireSegment) transcript.Segment {
	var data map[string]json.RawMessage
	_ = json.Unmarshal(w.Data, &data)

	switch w.Type {
	case "text":
		return transcript.Text{Text: stringField(data, "text")}
	case "face":
		return transcript.Face{ID: stringField(data, "id")}
	case "json":
		return transcript.JSONCard{Payload: stringField(data, "data")}
	case "forward":
		return transcript.ForwardRef{ID: stringField(data, "id")}
	default:
		return transcript.Unsupported{Kind: w.Type}
	}
}

// stringField returns a data field as a string. Non-string values are
// returned in their JSON form, which keeps numeric IDs and inline JSON cards.
func stringField(data map[string]json.RawMessage, key string) string {
	raw, ok := data[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

// numericOrString sends numeric IDs as JSON numbers, as most implementations expect.
func numericOrString(id string) any {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return n
	}
	return id
}
