package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tgolabs/chatkit/internal/domain"
	"github.com/tgolabs/chatkit/internal/transport"
)

func TestSendTextHappyPath(t *testing.T) {
	env := newEngineEnv(t, Options{})
	initEngine(t, env)

	require.NoError(t, env.engine.SendText(context.Background(), "hello"))

	msgs := env.engine.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.RoleUser, msgs[0].Role)
	assert.Equal(t, "hello", msgs[0].Payload.Content)
	assert.Equal(t, domain.StatusNone, msgs[0].Status)
	assert.Equal(t, domain.ReasonSuccess, msgs[0].ReasonCode)

	sent := env.tr.sentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, msgs[0].ClientMsgNo, sent[0].opts.ClientMsgNo)

	require.Len(t, env.platform.completions, 1)
	comp := env.platform.completions[0]
	assert.Equal(t, "hello", comp.Message)
	assert.Equal(t, "visitor-1-vtr", comp.FromUID)
	assert.False(t, comp.Stream, "the reply streams over the transport, not this call")
	assert.True(t, comp.WukongIMOnly)
	assert.False(t, comp.ForwardUserMessageToWukongIM)
}

func TestSendTextBlankIsNoop(t *testing.T) {
	env := newEngineEnv(t, Options{})
	initEngine(t, env)

	require.NoError(t, env.engine.SendText(context.Background(), "   "))
	assert.Empty(t, env.engine.Messages())
	assert.Empty(t, env.tr.sentMessages())
}

func TestSendTextFailedDeliverySkipsCompletion(t *testing.T) {
	env := newEngineEnv(t, Options{})
	initEngine(t, env)
	env.tr.sendResult = transport.SendResult{ReasonCode: domain.ReasonUnknown}

	require.NoError(t, env.engine.SendText(context.Background(), "hello"))

	msgs := env.engine.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.ReasonUnknown, msgs[0].ReasonCode)
	assert.Equal(t, 0, env.platform.completionCount(), "no AI run for an undelivered message")
}

func TestSendTextTransportNotReady(t *testing.T) {
	env := newEngineEnv(t, Options{NetworkTimeout: 200 * time.Millisecond})
	initEngine(t, env)
	env.tr.mu.Lock()
	env.tr.ready = false
	env.tr.mu.Unlock()

	err := env.engine.SendText(context.Background(), "hello")
	require.ErrorIs(t, err, domain.ErrNotReady)

	msgs := env.engine.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.ReasonUnknown, msgs[0].ReasonCode)
	assert.NotEmpty(t, msgs[0].ErrorMessage)
}

func TestSendTextCompletionFailureMarksMessage(t *testing.T) {
	env := newEngineEnv(t, Options{})
	initEngine(t, env)
	env.platform.completeErr = assert.AnError

	err := env.engine.SendText(context.Background(), "hello")
	require.Error(t, err)

	msgs := env.engine.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.ReasonUnknown, msgs[0].ReasonCode)
}

func TestSendTextCancelsActiveStream(t *testing.T) {
	env := newEngineEnv(t, Options{})
	initEngine(t, env)

	env.tr.emitCustom(transport.CustomEvent{Type: transport.EventStreamStart, ID: "no-live"})
	require.True(t, env.engine.Streaming())

	require.NoError(t, env.engine.SendText(context.Background(), "next question"))

	assert.False(t, env.engine.Streaming())
	assert.Equal(t, []string{"no-live"}, env.platform.canceled())
}

func TestRetryMessageReusesClientMsgNo(t *testing.T) {
	env := newEngineEnv(t, Options{})
	initEngine(t, env)
	env.tr.sendResult = transport.SendResult{ReasonCode: domain.ReasonUnknown}

	require.NoError(t, env.engine.SendText(context.Background(), "hello"))
	first := env.engine.Messages()[0]

	env.tr.sendResult = transport.SendResult{ReasonCode: domain.ReasonSuccess}
	require.NoError(t, env.engine.RetryMessage(context.Background(), first.ID))

	msgs := env.engine.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.ReasonSuccess, msgs[0].ReasonCode)

	sent := env.tr.sentMessages()
	require.Len(t, sent, 2)
	assert.Equal(t, first.ClientMsgNo, sent[1].opts.ClientMsgNo, "retry keeps the original correlation id")
}

func TestRetryMessageIgnoresAgentMessages(t *testing.T) {
	env := newEngineEnv(t, Options{})
	initEngine(t, env)
	env.engine.EnsureWelcomeMessage("hi")

	require.NoError(t, env.engine.RetryMessage(context.Background(), welcomeMessageID))
	assert.Empty(t, env.tr.sentMessages())
}
