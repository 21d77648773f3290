package chat

import (
	"sync"

	"github.com/tgolabs/chatkit/internal/domain"
)

// MessageStore is the single ordered, deduplicated message list: the system
// of record for the UI. Every mutation computes its result from a snapshot
// and replaces the whole list, so concurrent writers (history merge, live
// ingest, upload settlement) can never interleave a torn update.
type MessageStore struct {
	mu       sync.RWMutex
	messages []domain.ChatMessage
}

// NewMessageStore creates an empty store.
func NewMessageStore() *MessageStore {
	return &MessageStore{}
}

// Snapshot returns a copy of the current list.
func (s *MessageStore) Snapshot() []domain.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of stored messages.
func (s *MessageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Append adds messages at the tail (live arrival order).
func (s *MessageStore) Append(msgs ...domain.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]domain.ChatMessage, 0, len(s.messages)+len(msgs))
	next = append(next, s.messages...)
	next = append(next, msgs...)
	s.messages = next
}

// Prepend inserts messages at the head (history direction).
func (s *MessageStore) Prepend(msgs []domain.ChatMessage) {
	if len(msgs) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]domain.ChatMessage, 0, len(s.messages)+len(msgs))
	next = append(next, msgs...)
	next = append(next, s.messages...)
	s.messages = next
}

// Update applies fn to the message with the given id. Returns false when no
// such message exists.
func (s *MessageStore) Update(id string, fn func(*domain.ChatMessage)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLocked(func(m domain.ChatMessage) bool { return m.ID == id }, fn)
}

// UpdateByClientMsgNo applies fn to the message matching the correlation id.
func (s *MessageStore) UpdateByClientMsgNo(clientMsgNo string, fn func(*domain.ChatMessage)) bool {
	if clientMsgNo == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLocked(func(m domain.ChatMessage) bool { return m.ClientMsgNo == clientMsgNo }, fn)
}

// updateLocked rebuilds the list with fn applied to the first match.
func (s *MessageStore) updateLocked(match func(domain.ChatMessage) bool, fn func(*domain.ChatMessage)) bool {
	for i := range s.messages {
		if match(s.messages[i]) {
			next := make([]domain.ChatMessage, len(s.messages))
			copy(next, s.messages)
			fn(&next[i])
			s.messages = next
			return true
		}
	}
	return false
}

// Remove drops the message with the given id.
func (s *MessageStore) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]domain.ChatMessage, 0, len(s.messages))
	for _, m := range s.messages {
		if m.ID != id {
			next = append(next, m)
		}
	}
	s.messages = next
}

// Get returns the message with the given id.
func (s *MessageStore) Get(id string) (domain.ChatMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.messages {
		if m.ID == id {
			return m, true
		}
	}
	return domain.ChatMessage{}, false
}

// GetByClientMsgNo returns the message matching the correlation id.
func (s *MessageStore) GetByClientMsgNo(clientMsgNo string) (domain.ChatMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if clientMsgNo == "" {
		return domain.ChatMessage{}, false
	}
	for _, m := range s.messages {
		if m.ClientMsgNo == clientMsgNo {
			return m, true
		}
	}
	return domain.ChatMessage{}, false
}

// ContainsID reports whether a message with the id exists.
func (s *MessageStore) ContainsID(id string) bool {
	_, ok := s.Get(id)
	return ok
}

// Keys returns the dedup indexes for a merge: the set of known sequence
// numbers and the set of known ids.
func (s *MessageStore) Keys() (seqs map[int64]bool, ids map[string]bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seqs = make(map[int64]bool, len(s.messages))
	ids = make(map[string]bool, len(s.messages))
	for _, m := range s.messages {
		if m.HasSeq() {
			seqs[m.MessageSeq] = true
		}
		ids[m.ID] = true
	}
	return seqs, ids
}
