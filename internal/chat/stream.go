package chat

import (
	"context"
	"time"

	"github.com/tgolabs/chatkit/internal/domain"
)

// streamState tracks the single active streamed reply. At most one stream is
// live at a time; a new start supersedes whatever was in flight.
type streamState struct {
	streaming   bool
	canceling   bool
	clientMsgNo string
	timer       *time.Timer
}

func (s *streamState) stopLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.streaming = false
	s.canceling = false
	s.clientMsgNo = ""
}

// Streaming reports whether a reply is currently streaming in.
func (e *Engine) Streaming() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stream.streaming
}

// StreamingClientMsgNo returns the correlation id of the active stream.
func (e *Engine) StreamingClientMsgNo() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stream.clientMsgNo
}

// markStreamingStart enters the streaming state for clientMsgNo and arms the
// stall timer. Starting over a live stream supersedes it.
func (e *Engine) markStreamingStart(clientMsgNo string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stream.stopLocked()
	e.stream.streaming = true
	e.stream.clientMsgNo = clientMsgNo
	e.stream.timer = time.AfterFunc(e.opts.StreamTimeout, func() {
		e.streamTimeout(clientMsgNo)
	})
}

// markStreamingEnd leaves the streaming state if clientMsgNo is the active
// stream. The buffered message text stays as-is.
func (e *Engine) markStreamingEnd(clientMsgNo string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stream.clientMsgNo != clientMsgNo {
		return
	}
	e.stream.stopLocked()
}

// streamTimeout fires when no end marker arrived in time. It only clears the
// flag for the stream that armed it; buffered text is preserved so a late
// transport echo can still settle the message.
func (e *Engine) streamTimeout(clientMsgNo string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.stream.streaming || e.stream.clientMsgNo != clientMsgNo {
		return
	}
	e.stream.stopLocked()
	e.log.Warn().Str("clientMsgNo", clientMsgNo).Msg("stream timed out")
}

// appendStreamData accumulates one chunk into the streamed message. A chunk
// arriving before the start marker synthesizes the placeholder and enters
// the streaming state, so a lost start frame degrades gracefully.
func (e *Engine) appendStreamData(clientMsgNo, data string) {
	if clientMsgNo == "" || data == "" {
		return
	}

	updated := e.store.UpdateByClientMsgNo(clientMsgNo, func(m *domain.ChatMessage) {
		m.StreamData += data
	})
	if !updated {
		e.store.Append(domain.ChatMessage{
			ID:          "stream-" + clientMsgNo,
			Role:        domain.RoleAgent,
			Payload:     domain.TextPayload(""),
			Time:        time.Now(),
			ClientMsgNo: clientMsgNo,
			StreamData:  data,
		})
	}

	e.mu.Lock()
	live := e.stream.streaming && e.stream.clientMsgNo == clientMsgNo
	e.mu.Unlock()
	if !live {
		e.markStreamingStart(clientMsgNo)
	}
}

// finalizeStreamMessage settles the streamed message: the accumulated text
// becomes the payload, the buffer clears, and any AI-side error is attached.
func (e *Engine) finalizeStreamMessage(clientMsgNo, errorMessage string) {
	e.store.UpdateByClientMsgNo(clientMsgNo, func(m *domain.ChatMessage) {
		if m.StreamData != "" {
			m.Payload = domain.TextPayload(m.StreamData)
		}
		m.StreamData = ""
		m.ErrorMessage = errorMessage
	})
	e.markStreamingEnd(clientMsgNo)
}

// CancelStreaming asks the platform to stop the active AI run and exits the
// streaming state unconditionally. Reentrant calls while a cancel is in
// flight are ignored.
func (e *Engine) CancelStreaming(ctx context.Context, reason string) {
	e.mu.Lock()
	if !e.stream.streaming || e.stream.canceling {
		e.mu.Unlock()
		return
	}
	e.stream.canceling = true
	clientMsgNo := e.stream.clientMsgNo
	e.mu.Unlock()

	if clientMsgNo != "" {
		rctx, cancel := e.netCtx(ctx)
		err := e.platform.CancelRunByClient(rctx, clientMsgNo, reason)
		cancel()
		if err != nil {
			// Local state still resets; the stall timer covers a run the
			// platform failed to stop.
			e.log.Warn().Err(err).Str("clientMsgNo", clientMsgNo).Msg("cancel run failed")
		}
	}

	e.mu.Lock()
	e.stream.stopLocked()
	e.mu.Unlock()
}
