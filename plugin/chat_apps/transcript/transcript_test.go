package transcript

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlatform struct {
	history      []RawMessage
	historyErr   error
	bundles      map[string][]RawMessage
	forwardCalls []string
	lastCount    int
	lastReverse  bool
}

func (f *fakePlatform) FetchGroupHistory(_ context.Context, _ string, count int, reverse bool) ([]RawMessage, error) {
	f.lastCount = count
	f.lastReverse = reverse
	return f.history, f.historyErr
}

func (f *fakePlatform) FetchForward(_ context.Context, id string) ([]RawMessage, error) {
	f.forwardCalls = append(f.forwardCalls, id)
	bundle, ok := f.bundles[id]
	if !ok {
		return nil, errors.New("forward not found")
	}
	return bundle, nil
}

func msg(nick string, ts int64, segs ...Segment) RawMessage {
	return RawMessage{Sender: Sender{ID: nick, Nickname: nick}, Time: ts, Segments: segs}
}

func TestForwardResolver_NoForward(t *testing.T) {
	fake := &fakePlatform{}
	r := NewForwardResolver(fake, time.UTC)

	lines, err := r.Resolve(context.Background(), []RawMessage{
		msg("A", 1, Text{Text: "hi"}),
		msg("B", 2, Face{}),
	})

	require.NoError(t, err)
	assert.Empty(t, lines)
	assert.Empty(t, fake.forwardCalls, "no fetch expected without a forward")
}

func TestForwardResolver_FirstForwardWins(t *testing.T) {
	fake := &fakePlatform{bundles: map[string][]RawMessage{
		"first":  {msg("X", 100, Text{Text: "inner"})},
		"second": {msg("Y", 200, Text{Text: "other"})},
	}}
	r := NewForwardResolver(fake, time.UTC)

	lines, err := r.Resolve(context.Background(), []RawMessage{
		msg("A", 1, Text{Text: "see"}, ForwardRef{ID: "first"}, ForwardRef{ID: "inline-later"}),
		msg("B", 2, ForwardRef{ID: "second"}),
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"first"}, fake.forwardCalls)
	require.Len(t, lines, 1)
	assert.Equal(t, "X", lines[0].Nickname)
	assert.Equal(t, "inner", lines[0].Text)
	assert.Equal(t, time.Unix(100, 0).UTC(), lines[0].Time)
}

func TestForwardResolver_FetchError(t *testing.T) {
	fake := &fakePlatform{bundles: map[string][]RawMessage{}}
	r := NewForwardResolver(fake, time.UTC)

	_, err := r.Resolve(context.Background(), []RawMessage{msg("A", 1, ForwardRef{ID: "gone"})})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gone")
}

func TestBuilder_BuildFromForward(t *testing.T) {
	fake := &fakePlatform{
		history: []RawMessage{
			msg("top", 5, Text{Text: "top-level text is ignored"}),
			msg("A", 6, ForwardRef{ID: "fw"}),
		},
		bundles: map[string][]RawMessage{
			"fw": {
				msg("C", 10, Text{Text: "one"}),
				msg("D", 11, Unsupported{Kind: "image"}),
				{Time: 12, Segments: []Segment{Text{Text: "two"}}},
			},
		},
	}
	b := NewBuilder(fake, fake, time.UTC)

	tr, err := b.BuildFromForward(context.Background(), "123")
	require.NoError(t, err)

	assert.Equal(t, ForwardWindow, fake.lastCount)
	assert.True(t, fake.lastReverse)
	assert.Equal(t,
		"[1970-01-01 00:00:10]「C」: one\n[1970-01-01 00:00:12]「未知用户」: two",
		tr.Text())
}

func TestBuilder_BuildFromForward_NothingFound(t *testing.T) {
	fake := &fakePlatform{history: []RawMessage{msg("A", 1, Text{Text: "hi"})}}
	b := NewBuilder(fake, fake, time.UTC)

	tr, err := b.BuildFromForward(context.Background(), "123")
	require.NoError(t, err)
	assert.True(t, tr.Empty())
	assert.Empty(t, tr.Text())
}

func TestBuilder_BuildDirect(t *testing.T) {
	fake := &fakePlatform{history: []RawMessage{
		msg("A", 1, Text{Text: "hi"}),
		msg("skip", 2, Text{Text: "   "}, Unsupported{Kind: "image"}),
		msg("B", 3, Text{Text: "bye"}, ForwardRef{ID: "never"}),
	}}
	b := NewBuilder(fake, fake, time.UTC)

	tr, err := b.BuildDirect(context.Background(), "123", 3)
	require.NoError(t, err)

	assert.Equal(t, 3, fake.lastCount)
	assert.Empty(t, fake.forwardCalls)
	require.Len(t, tr.Lines, 2)
	assert.Equal(t, "[1970-01-01 00:00:01]「A」: hi\n[1970-01-01 00:00:03]「B」: bye", tr.Text())
}

func TestBuilder_HistoryError(t *testing.T) {
	fake := &fakePlatform{historyErr: errors.New("boom")}
	b := NewBuilder(fake, fake, time.UTC)

	_, err := b.BuildDirect(context.Background(), "123", 5)
	require.Error(t, err)
	_, err = b.BuildFromForward(context.Background(), "123")
	require.Error(t, err)
}

func TestLine_StringUsesLocation(t *testing.T) {
	loc := time.FixedZone("CST", 8*3600)
	line := Line{Time: RawMessage{Time: 0}.Timestamp(loc), Nickname: "A", Text: "hi"}
	assert.Equal(t, "[1970-01-01 08:00:00]「A」: hi", line.String())
}
