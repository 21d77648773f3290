package chat

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tgolabs/chatkit/internal/api"
	"github.com/tgolabs/chatkit/internal/domain"
	"github.com/tgolabs/chatkit/internal/transport"
)

// readyPollInterval paces the bounded wait for the transport to come up
// before a send fails.
const readyPollInterval = 120 * time.Millisecond

// SendText sends a visitor text message: an optimistic entry appears
// immediately, the transport delivers it, then the AI completion is
// triggered. Sending while a reply is streaming cancels the stream first.
func (e *Engine) SendText(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	uid, channelID, channelType, err := e.sessionInfo()
	if err != nil {
		return err
	}

	clientMsgNo := uuid.New().String()
	id := "u-" + strconv.FormatInt(time.Now().UnixNano(), 36)
	e.store.Append(domain.ChatMessage{
		ID:          id,
		Role:        domain.RoleUser,
		Payload:     domain.TextPayload(text),
		Time:        time.Now(),
		ClientMsgNo: clientMsgNo,
		FromUID:     uid,
		ChannelID:   channelID,
		ChannelType: channelType,
		Status:      domain.StatusSending,
	})

	if e.Streaming() {
		e.CancelStreaming(ctx, "superseded_by_new_message")
	}

	if err := e.waitReady(ctx); err != nil {
		e.settleSend(id, domain.ReasonUnknown, err)
		return err
	}

	sctx, cancel := e.netCtx(ctx)
	result, err := e.tr.Send(sctx, domain.TextPayload(text), transport.SendOptions{ClientMsgNo: clientMsgNo})
	cancel()
	if err != nil {
		e.settleSend(id, domain.ReasonUnknown, err)
		return err
	}
	if result.ReasonCode != domain.ReasonSuccess {
		e.settleSend(id, result.ReasonCode, nil)
		return nil
	}

	// Delivery succeeded; now ask the AI to process it. The reply arrives
	// over the transport as a stream, not in this response, so the HTTP
	// call itself must not stream.
	cctx, cancel := e.netCtx(ctx)
	err = e.platform.Completion(cctx, api.CompletionRequest{
		APIKey:                       e.opts.PlatformAPIKey,
		Message:                      text,
		FromUID:                      uid,
		ChannelID:                    channelID,
		ChannelType:                  channelType,
		WukongIMOnly:                 true,
		ForwardUserMessageToWukongIM: false,
		Stream:                       false,
	})
	cancel()
	if err != nil {
		e.settleSend(id, domain.ReasonUnknown, err)
		return err
	}

	e.settleSend(id, domain.ReasonSuccess, nil)
	e.recordActivity(api.ActivityMessageSent, "Message sent", "")
	return nil
}

// RetryMessage re-sends a previously failed visitor message over the
// transport, reusing its correlation id.
func (e *Engine) RetryMessage(ctx context.Context, messageID string) error {
	msg, ok := e.store.Get(messageID)
	if !ok || msg.Role != domain.RoleUser {
		return nil
	}
	if msg.Status == domain.StatusUploading {
		return e.RetryUpload(ctx, messageID)
	}

	e.store.Update(messageID, func(m *domain.ChatMessage) {
		m.Status = domain.StatusSending
		m.ReasonCode = domain.ReasonUnknown
		m.ErrorMessage = ""
	})

	if err := e.waitReady(ctx); err != nil {
		e.settleSend(messageID, domain.ReasonUnknown, err)
		return err
	}

	sctx, cancel := e.netCtx(ctx)
	result, err := e.tr.Send(sctx, msg.Payload, transport.SendOptions{ClientMsgNo: msg.ClientMsgNo})
	cancel()
	if err != nil {
		e.settleSend(messageID, domain.ReasonUnknown, err)
		return err
	}
	e.settleSend(messageID, result.ReasonCode, nil)
	return nil
}

// settleSend moves an optimistic entry out of the sending state.
func (e *Engine) settleSend(id string, reason domain.ReasonCode, err error) {
	e.store.Update(id, func(m *domain.ChatMessage) {
		m.Status = domain.StatusNone
		m.ReasonCode = reason
		if err != nil {
			m.ErrorMessage = err.Error()
		}
	})
	if err != nil {
		e.recordErr(err)
	}
}

// waitReady blocks until the transport accepts sends, bounded by the
// network timeout. Polling keeps the send path free of transport internals.
func (e *Engine) waitReady(ctx context.Context) error {
	if e.tr.IsReady() {
		return nil
	}
	deadline := time.Now().Add(e.opts.NetworkTimeout)
	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if e.tr.IsReady() {
				return nil
			}
			if time.Now().After(deadline) {
				return domain.ErrNotReady
			}
		}
	}
}
