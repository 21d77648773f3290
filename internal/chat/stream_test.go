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

func TestStreamChunksAccumulateInOrder(t *testing.T) {
	env := newEngineEnv(t, Options{})
	initEngine(t, env)

	env.tr.emitCustom(transport.CustomEvent{Type: transport.EventStreamStart, ID: "no-1"})
	env.tr.emitCustom(transport.CustomEvent{Type: transport.EventStreamContent, ID: "no-1", Data: "He"})
	env.tr.emitCustom(transport.CustomEvent{Type: transport.EventStreamContent, ID: "no-1", Data: "llo"})

	msgs := env.engine.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "stream-no-1", msgs[0].ID)
	assert.Equal(t, "Hello", msgs[0].StreamData)
	assert.True(t, env.engine.Streaming())
}

func TestStreamChunkBeforeStartSynthesizesPlaceholder(t *testing.T) {
	env := newEngineEnv(t, Options{})
	initEngine(t, env)

	// No start marker: the first chunk must still render.
	env.tr.emitCustom(transport.CustomEvent{Type: transport.EventStreamContent, ID: "no-2", Data: "He"})
	env.tr.emitCustom(transport.CustomEvent{Type: transport.EventStreamContent, ID: "no-2", Data: "llo"})

	msgs := env.engine.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "stream-no-2", msgs[0].ID)
	assert.Equal(t, domain.RoleAgent, msgs[0].Role)
	assert.Equal(t, "Hello", msgs[0].StreamData)
	assert.True(t, env.engine.Streaming())
}

func TestStreamEndFinalizesMessage(t *testing.T) {
	env := newEngineEnv(t, Options{})
	initEngine(t, env)

	env.tr.emitCustom(transport.CustomEvent{Type: transport.EventStreamStart, ID: "no-3"})
	env.tr.emitCustom(transport.CustomEvent{Type: transport.EventStreamContent, ID: "no-3", Data: "answer"})
	env.tr.emitCustom(transport.CustomEvent{Type: transport.EventStreamEnd, ID: "no-3"})

	msgs := env.engine.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "answer", msgs[0].Payload.Content)
	assert.Empty(t, msgs[0].StreamData)
	assert.False(t, env.engine.Streaming())
}

func TestStreamEndCarriesError(t *testing.T) {
	env := newEngineEnv(t, Options{})
	initEngine(t, env)

	env.tr.emitCustom(transport.CustomEvent{Type: transport.EventStreamStart, ID: "no-4"})
	env.tr.emitCustom(transport.CustomEvent{Type: transport.EventStreamContent, ID: "no-4", Data: "partial"})
	env.tr.emitCustom(transport.CustomEvent{Type: transport.EventStreamEnd, ID: "no-4", Data: "model overloaded"})

	msgs := env.engine.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "partial", msgs[0].Payload.Content)
	assert.Equal(t, "model overloaded", msgs[0].ErrorMessage)
}

func TestStreamTimeoutRevertsToIdle(t *testing.T) {
	env := newEngineEnv(t, Options{StreamTimeout: 30 * time.Millisecond})
	initEngine(t, env)

	env.tr.emitCustom(transport.CustomEvent{Type: transport.EventStreamStart, ID: "no-5"})
	env.tr.emitCustom(transport.CustomEvent{Type: transport.EventStreamContent, ID: "no-5", Data: "stuck"})
	require.True(t, env.engine.Streaming())

	require.Eventually(t, func() bool {
		return !env.engine.Streaming()
	}, time.Second, 5*time.Millisecond)

	// Buffered text survives; a late transport echo can still settle it.
	msgs := env.engine.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "stuck", msgs[0].StreamData)
}

func TestStreamNewStartSupersedesActive(t *testing.T) {
	env := newEngineEnv(t, Options{})
	initEngine(t, env)

	env.tr.emitCustom(transport.CustomEvent{Type: transport.EventStreamStart, ID: "old"})
	env.tr.emitCustom(transport.CustomEvent{Type: transport.EventStreamStart, ID: "new"})

	assert.True(t, env.engine.Streaming())
	assert.Equal(t, "new", env.engine.StreamingClientMsgNo())

	// The superseded stream's end marker must not end the new one.
	env.tr.emitCustom(transport.CustomEvent{Type: transport.EventStreamEnd, ID: "old"})
	assert.True(t, env.engine.Streaming())
}

func TestCancelStreamingNotifiesPlatformAndResets(t *testing.T) {
	env := newEngineEnv(t, Options{})
	initEngine(t, env)

	env.tr.emitCustom(transport.CustomEvent{Type: transport.EventStreamStart, ID: "no-6"})
	env.engine.CancelStreaming(context.Background(), "user_cancel")

	assert.False(t, env.engine.Streaming())
	assert.Equal(t, []string{"no-6"}, env.platform.canceled())
}

func TestCancelStreamingIdleIsNoop(t *testing.T) {
	env := newEngineEnv(t, Options{})
	initEngine(t, env)

	env.engine.CancelStreaming(context.Background(), "user_cancel")
	assert.Empty(t, env.platform.canceled())
}
