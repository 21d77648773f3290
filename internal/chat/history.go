package chat

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/tgolabs/chatkit/internal/api"
	"github.com/tgolabs/chatkit/internal/domain"
)

// LoadInitialHistory fetches the newest page of the conversation and seeds
// the pagination cursor.
func (e *Engine) LoadInitialHistory(ctx context.Context) error {
	return e.loadHistory(ctx, true)
}

// LoadMoreHistory fetches the page older than the current cursor. It is a
// no-op when no older messages remain or a load is already running.
func (e *Engine) LoadMoreHistory(ctx context.Context) error {
	e.mu.Lock()
	hasMore := e.hasMore
	e.mu.Unlock()
	if !hasMore {
		return nil
	}
	return e.loadHistory(ctx, false)
}

// HasMoreHistory reports whether older pages remain.
func (e *Engine) HasMoreHistory() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hasMore
}

// loadHistory runs one sync round trip. Concurrent calls collapse: the busy
// flag serializes pagination so a slow page can't be fetched twice.
func (e *Engine) loadHistory(ctx context.Context, initial bool) error {
	e.mu.Lock()
	if e.historyBusy {
		e.mu.Unlock()
		return nil
	}
	e.historyBusy = true
	earliest := e.earliestSeq
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.historyBusy = false
		e.mu.Unlock()
	}()

	_, channelID, channelType, err := e.sessionInfo()
	if err != nil {
		return err
	}

	req := api.SyncMessagesRequest{
		PlatformAPIKey: e.opts.PlatformAPIKey,
		ChannelID:      channelID,
		ChannelType:    channelType,
		Limit:          e.opts.HistoryPageSize,
	}
	if initial {
		// start=end=0 with pull-up asks for the newest page.
		req.PullMode = api.PullModeUp
	} else {
		req.StartMessageSeq = earliest
		req.PullMode = api.PullModeDown
	}

	rctx, cancel := e.netCtx(ctx)
	defer cancel()
	res, err := e.platform.SyncMessages(rctx, req)
	if err != nil {
		e.recordErr(err)
		return err
	}

	e.mergeHistory(res)
	return nil
}

// mergeHistory folds one sync page into the canonical list: sort ascending,
// drop records already present (by seq first, id otherwise), prepend, and
// advance the cursor.
func (e *Engine) mergeHistory(res *api.SyncMessagesResponse) {
	e.mu.Lock()
	myUID := e.myUID
	earliest := e.earliestSeq
	e.mu.Unlock()

	batch := make([]domain.ChatMessage, 0, len(res.Messages))
	for _, hm := range res.Messages {
		batch = append(batch, historyToChat(hm, myUID))
	}
	sort.SliceStable(batch, func(i, j int) bool {
		return batch[i].MessageSeq < batch[j].MessageSeq
	})

	knownSeqs, knownIDs := e.store.Keys()
	fresh := make([]domain.ChatMessage, 0, len(batch))
	for _, m := range batch {
		if m.HasSeq() {
			if knownSeqs[m.MessageSeq] {
				continue
			}
			knownSeqs[m.MessageSeq] = true
		} else if knownIDs[m.ID] {
			continue
		}
		knownIDs[m.ID] = true
		fresh = append(fresh, m)
		if m.Role == domain.RoleAgent && m.FromUID != "" {
			go e.fetchStaffInfo(m.FromUID)
		}
	}

	e.store.Prepend(fresh)

	// The cursor is the smallest seq seen so far; seq-less entries never
	// move it.
	next := earliest
	for _, m := range fresh {
		if !m.HasSeq() {
			continue
		}
		if next == 0 || m.MessageSeq < next {
			next = m.MessageSeq
		}
	}

	e.mu.Lock()
	e.earliestSeq = next
	e.hasMore = res.More == 1
	e.mu.Unlock()

	e.log.Debug().Int("batch", len(batch)).Int("merged", len(fresh)).
		Int64("earliestSeq", next).Bool("hasMore", res.More == 1).
		Msg("history page merged")
}

// historyToChat maps one sync record to the canonical shape. A finished
// stream renders its buffered text in place of the raw payload, so a reply
// that streamed live looks identical after a reload.
func historyToChat(hm api.HistoryMessage, myUID string) domain.ChatMessage {
	var payload domain.MessagePayload
	if hm.CompletedStream() {
		payload = domain.TextPayload(hm.StreamData)
	} else {
		payload = domain.DecodePayload(hm.Payload)
	}

	id := hm.MessageIDStr
	if id == "" && hm.MessageID != 0 {
		id = strconv.FormatInt(hm.MessageID, 10)
	}
	if id == "" {
		id = hm.ClientMsgNo
	}
	if id == "" {
		id = "h-" + strconv.FormatInt(hm.MessageSeq, 10)
	}

	role := domain.RoleAgent
	if hm.FromUID == myUID {
		role = domain.RoleUser
	}

	return domain.ChatMessage{
		ID:           id,
		Role:         role,
		Payload:      payload,
		Time:         time.Unix(hm.Timestamp, 0),
		MessageSeq:   hm.MessageSeq,
		ClientMsgNo:  hm.ClientMsgNo,
		FromUID:      hm.FromUID,
		ChannelID:    hm.ChannelID,
		ChannelType:  hm.ChannelType,
		ErrorMessage: hm.Error,
	}
}
