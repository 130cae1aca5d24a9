package broadcast

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeAudience struct {
	ids []int64
	err error
}

func (f fakeAudience) All(_ context.Context) ([]int64, error) {
	return f.ids, f.err
}

type fakeSender struct {
	sent    []int64
	failFor map[int64]bool
}

func (f *fakeSender) Send(to telebot.Recipient, _ interface{}, _ ...interface{}) (*telebot.Message, error) {
	user, ok := to.(*telebot.User)
	if !ok {
		return nil, errors.New("unexpected recipient type")
	}
	if f.failFor[user.ID] {
		return nil, errors.New("bot was blocked by the user")
	}
	f.sent = append(f.sent, user.ID)
	return &telebot.Message{}, nil
}

func TestNewTask(t *testing.T) {
	task, err := NewTask("hello")
	require.NoError(t, err)
	assert.Equal(t, TaskTypeBroadcast, task.Type())
	assert.JSONEq(t, `{"text":"hello"}`, string(task.Payload()))
}

func TestHandler_DeliversToEveryUser(t *testing.T) {
	sender := &fakeSender{}
	h := NewHandler(fakeAudience{ids: []int64{1, 2, 3}}, sender, testLogger())

	task, err := NewTask("hello")
	require.NoError(t, err)

	require.NoError(t, h.ProcessTask(context.Background(), task))
	assert.Equal(t, []int64{1, 2, 3}, sender.sent)
}

func TestHandler_SkipsIndividualFailures(t *testing.T) {
	sender := &fakeSender{failFor: map[int64]bool{2: true}}
	h := NewHandler(fakeAudience{ids: []int64{1, 2, 3}}, sender, testLogger())

	task, err := NewTask("hello")
	require.NoError(t, err)

	require.NoError(t, h.ProcessTask(context.Background(), task),
		"a blocked user must not fail the whole broadcast")
	assert.Equal(t, []int64{1, 3}, sender.sent)
}

func TestHandler_LedgerFailureFailsTask(t *testing.T) {
	h := NewHandler(fakeAudience{err: errors.New("db down")}, &fakeSender{}, testLogger())

	task, err := NewTask("hello")
	require.NoError(t, err)

	assert.Error(t, h.ProcessTask(context.Background(), task))
}

func TestHandler_MalformedPayload(t *testing.T) {
	h := NewHandler(fakeAudience{}, &fakeSender{}, testLogger())

	task := asynq.NewTask(TaskTypeBroadcast, []byte("{not json"))
	assert.Error(t, h.ProcessTask(context.Background(), task))
}
