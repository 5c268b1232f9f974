package transcript

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract_TextOnly(t *testing.T) {
	tests := []struct {
		name     string
		segments []Segment
		want     string
	}{
		{"single", []Segment{Text{Text: "hi"}}, "hi"},
		{"trims each run", []Segment{Text{Text: "  hello "}, Text{Text: "\tworld\n"}}, "hello world"},
		{"blank runs keep a separator", []Segment{Text{Text: "a"}, Text{Text: "   "}, Text{Text: "b"}}, "a  b"},
		{"only whitespace", []Segment{Text{Text: "   "}}, ""},
		{"no segments", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(RawMessage{Segments: tt.segments}))
		})
	}
}

func TestExtract_Face(t *testing.T) {
	msg := RawMessage{Segments: []Segment{Text{Text: "lol"}, Face{ID: "178"}}}
	assert.Equal(t, "lol [表情]", Extract(msg))
}

func TestContribution_JSONCard(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{"news desc", `{"meta":{"news":{"desc":"Hello"}}}`, "[分享内容]Hello "},
		{"empty meta", `{"meta":{}}`, ""},
		{"no meta", `{"app":"com.tencent.miniapp"}`, ""},
		{"meta not an object", `{"meta":"x"}`, ""},
		{"malformed", `{"meta":`, ""},
		{"top-level array", `[1,2]`, ""},
		{"null desc", `{"meta":{"news":{"desc":null}}}`, ""},
		{"numeric desc", `{"meta":{"news":{"desc":42}}}`, "[分享内容]42 "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, contribution(JSONCard{Payload: tt.payload}))
		})
	}
}

func TestExtract_SilentSegments(t *testing.T) {
	msg := RawMessage{Segments: []Segment{
		ForwardRef{ID: "f1"},
		Unsupported{Kind: "image"},
		JSONCard{Payload: "not json"},
	}}
	assert.Empty(t, Extract(msg))
}

func TestExtract_Mixed(t *testing.T) {
	msg := RawMessage{Segments: []Segment{
		Text{Text: "look "},
		JSONCard{Payload: `{"meta":{"news":{"desc":"新闻"}}}`},
		Face{},
		Unsupported{Kind: "at"},
	}}
	assert.Equal(t, "look [分享内容]新闻 [表情]", Extract(msg))
}

func TestExtract_NilSegment(t *testing.T) {
	msg := RawMessage{Segments: []Segment{Text{Text: "before"}, nil, Text{Text: "after"}}}
	assert.NotPanics(t, func() {
		assert.Equal(t, "before after", Extract(msg))
	})
}
