package chat

import (
	"context"

	"github.com/tgolabs/chatkit/internal/domain"
)

// fetchStaffInfo resolves display info for a staff uid, once. Cached hits
// and in-flight lookups return immediately; callers run this on its own
// goroutine since display info is never on the message path.
func (e *Engine) fetchStaffInfo(uid string) {
	if uid == "" {
		return
	}
	e.mu.Lock()
	if _, ok := e.staff[uid]; ok || e.staffInflight[uid] {
		e.mu.Unlock()
		return
	}
	e.staffInflight[uid] = true
	e.mu.Unlock()

	ctx, cancel := e.netCtx(context.Background())
	defer cancel()
	info, err := e.platform.ChannelInfo(ctx, uid, domain.ChannelTypePerson)

	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.staffInflight, uid)
	if err != nil {
		// Not cached; the next message from this uid retries the lookup.
		e.log.Debug().Err(err).Str("uid", uid).Msg("staff info lookup failed")
		return
	}

	name := info.Name
	if name == "" {
		name = info.Extra.Name
	}
	if name == "" {
		name = info.Extra.Nickname
	}
	if name == "" {
		name = uid
	}
	avatar := info.Avatar
	if avatar == "" {
		avatar = info.Extra.AvatarURL
	}
	e.staff[uid] = domain.StaffInfo{Name: name, Avatar: avatar}
}
