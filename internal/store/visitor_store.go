package store

import (
	"time"

	"github.com/tgolabs/chatkit/internal/domain"
)

// VisitorStore caches registered visitor sessions keyed by
// (apiBase, platformApiKey). Cached rows are immutable until expiry.
type VisitorStore struct {
	db *DB
}

// NewVisitorStore creates a visitor cache using the given database.
func NewVisitorStore(db *DB) *VisitorStore {
	return &VisitorStore{db: db}
}

// Get returns the cached session for the key pair, or nil when absent or
// expired. Expired rows are removed on read.
func (s *VisitorStore) Get(apiBase, platformAPIKey string) *domain.VisitorSession {
	var sess domain.VisitorSession
	var createdAt, updatedAt, expiresAt string

	err := s.db.sql.QueryRow(
		`SELECT api_base, platform_api_key, visitor_id, platform_open_id, channel_id,
		        channel_type, im_token, project_id, platform_id, created_at, updated_at, expires_at
		 FROM visitor_sessions WHERE api_base = ? AND platform_api_key = ?`,
		apiBase, platformAPIKey,
	).Scan(
		&sess.APIBase, &sess.PlatformAPIKey, &sess.VisitorID, &sess.PlatformOpenID,
		&sess.ChannelID, &sess.ChannelType, &sess.IMToken, &sess.ProjectID,
		&sess.PlatformID, &createdAt, &updatedAt, &expiresAt,
	)
	if err != nil {
		return nil
	}

	sess.CreatedAt = parseTime(createdAt)
	sess.UpdatedAt = parseTime(updatedAt)
	sess.ExpiresAt = parseTime(expiresAt)

	if sess.Expired(time.Now()) {
		_ = s.Delete(apiBase, platformAPIKey)
		return nil
	}
	return &sess
}

// Put stores (or replaces) a cached session.
func (s *VisitorStore) Put(sess domain.VisitorSession) error {
	_, err := s.db.sql.Exec(
		`INSERT INTO visitor_sessions
		   (api_base, platform_api_key, visitor_id, platform_open_id, channel_id,
		    channel_type, im_token, project_id, platform_id, created_at, updated_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(api_base, platform_api_key) DO UPDATE SET
		   visitor_id = excluded.visitor_id,
		   platform_open_id = excluded.platform_open_id,
		   channel_id = excluded.channel_id,
		   channel_type = excluded.channel_type,
		   im_token = excluded.im_token,
		   project_id = excluded.project_id,
		   platform_id = excluded.platform_id,
		   created_at = excluded.created_at,
		   updated_at = excluded.updated_at,
		   expires_at = excluded.expires_at`,
		sess.APIBase, sess.PlatformAPIKey, sess.VisitorID, sess.PlatformOpenID,
		sess.ChannelID, sess.ChannelType, sess.IMToken, sess.ProjectID, sess.PlatformID,
		formatTime(sess.CreatedAt), formatTime(sess.UpdatedAt), formatTime(sess.ExpiresAt),
	)
	if err != nil {
		s.db.log.Error().Err(err).Str("visitor", sess.VisitorID).Msg("failed to cache visitor session")
	}
	return err
}

// Delete removes a cached session.
func (s *VisitorStore) Delete(apiBase, platformAPIKey string) error {
	_, err := s.db.sql.Exec(
		`DELETE FROM visitor_sessions WHERE api_base = ? AND platform_api_key = ?`,
		apiBase, platformAPIKey,
	)
	return err
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339, s)
	return t
}
