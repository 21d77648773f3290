package chat

import (
	"strconv"
	"time"

	"github.com/tgolabs/chatkit/internal/domain"
	"github.com/tgolabs/chatkit/internal/transport"
)

// handleInboundMessage folds one live transport message into the canonical
// list. Self echoes are discarded (the optimistic entry already represents
// them); a message correlating to a streamed placeholder replaces it in
// place rather than appending a duplicate.
func (e *Engine) handleInboundMessage(m transport.Message) {
	e.mu.Lock()
	myUID := e.myUID
	e.mu.Unlock()

	if m.FromUID == "" || m.FromUID == myUID {
		return
	}
	go e.fetchStaffInfo(m.FromUID)

	id := strconv.FormatInt(m.MessageID, 10)
	if m.MessageID == 0 {
		id = m.ClientMsgNo
	}
	if id == "" {
		return
	}
	if e.store.ContainsID(id) {
		return
	}

	msg := domain.ChatMessage{
		ID:          id,
		Role:        domain.RoleAgent,
		Payload:     domain.DecodePayload(m.Payload),
		Time:        time.Unix(m.Timestamp, 0),
		MessageSeq:  m.MessageSeq,
		ClientMsgNo: m.ClientMsgNo,
		FromUID:     m.FromUID,
		ChannelID:   m.ChannelID,
		ChannelType: m.ChannelType,
	}

	e.incrementUnread()

	// The authoritative echo of a streamed reply lands on the placeholder:
	// update in place, never append a second copy.
	if m.ClientMsgNo != "" {
		replaced := e.store.UpdateByClientMsgNo(m.ClientMsgNo, func(existing *domain.ChatMessage) {
			existing.ID = msg.ID
			existing.Payload = msg.Payload
			existing.Time = msg.Time
			existing.MessageSeq = msg.MessageSeq
			existing.FromUID = msg.FromUID
			existing.ChannelID = msg.ChannelID
			existing.ChannelType = msg.ChannelType
			existing.StreamData = ""
		})
		if replaced {
			return
		}
	}

	e.store.Append(msg)
}

// handleCustomEvent routes the out-of-band stream markers.
func (e *Engine) handleCustomEvent(ev transport.CustomEvent) {
	switch ev.Type {
	case transport.EventStreamStart:
		if ev.ID == "" {
			return
		}
		e.incrementUnread()
		e.markStreamingStart(ev.ID)
	case transport.EventStreamContent:
		e.appendStreamData(ev.ID, ev.Data)
	case transport.EventStreamEnd:
		if ev.ID == "" {
			return
		}
		e.finalizeStreamMessage(ev.ID, ev.Data)
	}
}
