// Package transcript turns raw chat history into the plain-text transcript
// handed to the summarization model.
package transcript

import "time"

// Segment is one typed content unit inside a chat message.
// The set of implementations is closed: Text, Face, JSONCard, ForwardRef
// and Unsupported. Every switch over a Segment must handle all of them.
type Segment interface {
	isSegment()
}

// Text is a plain text run.
type Text struct {
	Text string
}

// Face is an emoji or sticker marker. The ID is informational only.
type Face struct {
	ID string
}

// JSONCard is a share card carrying an embedded JSON document.
type JSONCard struct {
	Payload string
}

// ForwardRef points at a merged forward bundle that has to be fetched separately.
type ForwardRef struct {
	ID string
}

// Unsupported is any segment kind the transcript does not render (image, at, reply, ...).
type Unsupported struct {
	Kind string
}

func (Text) isSegment()        {}
func (Face) isSegment()        {}
func (JSONCard) isSegment()    {}
func (ForwardRef) isSegment()  {}
func (Unsupported) isSegment() {}

// Sender identifies the author of a message.
type Sender struct {
	ID       string
	Nickname string
}

// RawMessage is one message as returned by the platform.
type RawMessage struct {
	Sender   Sender
	Time     int64 // unix seconds
	Segments []Segment
}

// Timestamp returns the message time in the given location.
func (m RawMessage) Timestamp(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Unix(m.Time, 0).In(loc)
}
