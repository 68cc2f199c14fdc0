package telegram

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"gplanner/pkg/logx"
)

type fakeAPI struct {
	sent    []string
	failOn  map[int]error // chunk index -> error
	lastTo  tele.Recipient
	callIdx int
}

func (f *fakeAPI) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	idx := f.callIdx
	f.callIdx++
	f.lastTo = to
	if err, ok := f.failOn[idx]; ok {
		return nil, err
	}
	f.sent = append(f.sent, what.(string))
	return &tele.Message{}, nil
}

func newTestSender(fake *fakeAPI) *Sender {
	return newWithAPI(Config{Token: "t", ChatID: 42, RatePerSec: 1000}, fake, logx.Nop())
}

func TestSendSingleChunk(t *testing.T) {
	t.Parallel()
	fake := &fakeAPI{}
	s := newTestSender(fake)

	ok := s.Send(context.Background(), "daily plan ready")
	require.True(t, ok)
	require.Len(t, fake.sent, 1)
	assert.Equal(t, "daily plan ready", fake.sent[0])
	assert.Equal(t, tele.ChatID(42).Recipient(), fake.lastTo.Recipient())
}

func TestSendChunksLongMessageInOrder(t *testing.T) {
	t.Parallel()
	fake := &fakeAPI{}
	s := newTestSender(fake)

	text := strings.TrimRight(strings.Repeat("item ", 1800), " ")
	ok := s.Send(context.Background(), text)
	require.True(t, ok)
	require.Len(t, fake.sent, 3)
	assert.Equal(t, text, strings.Join(fake.sent, " "))
}

func TestSendFailedChunkDoesNotStopTheRest(t *testing.T) {
	t.Parallel()
	fake := &fakeAPI{failOn: map[int]error{1: errors.New("bot api: 502")}}
	s := newTestSender(fake)

	text := strings.TrimRight(strings.Repeat("item ", 1800), " ")
	ok := s.Send(context.Background(), text)
	assert.False(t, ok, "any failed chunk fails the whole send")
	assert.Len(t, fake.sent, 2, "remaining chunks are still attempted")
	assert.Equal(t, 3, fake.callIdx)
}

func TestSendEmptyTextSucceedsWithoutCalls(t *testing.T) {
	t.Parallel()
	fake := &fakeAPI{}
	s := newTestSender(fake)

	assert.True(t, s.Send(context.Background(), ""))
	assert.Zero(t, fake.callIdx)
}

func TestSendAbortsOnCancelledContext(t *testing.T) {
	t.Parallel()
	fake := &fakeAPI{}
	s := newTestSender(fake)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, s.Send(ctx, "hello"))
	assert.Zero(t, fake.callIdx)
}

func TestNewValidatesConfig(t *testing.T) {
	t.Parallel()
	if _, err := New(Config{Token: "", ChatID: 1}, logx.Nop()); err == nil {
		t.Fatal("expected error for empty token")
	}
	if _, err := New(Config{Token: "x", ChatID: 0}, logx.Nop()); err == nil {
		t.Fatal("expected error for zero chat id")
	}
}
