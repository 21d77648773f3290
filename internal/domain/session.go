package domain

import "time"

// VisitorSession is the registered identity for one visitor against one
// platform. Immutable once cached until expiry.
type VisitorSession struct {
	APIBase        string    `json:"apiBase"`
	PlatformAPIKey string    `json:"platform_api_key"`
	VisitorID      string    `json:"visitor_id"`
	PlatformOpenID string    `json:"platform_open_id,omitempty"`
	ChannelID      string    `json:"channel_id"`
	ChannelType    int       `json:"channel_type,omitempty"`
	IMToken        string    `json:"im_token,omitempty"`
	ProjectID      string    `json:"project_id,omitempty"`
	PlatformID     string    `json:"platform_id,omitempty"`
	CreatedAt      time.Time `json:"created_at,omitempty"`
	UpdatedAt      time.Time `json:"updated_at,omitempty"`
	// ExpiresAt bounds cache validity; zero means no expiry.
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the cached session has passed its expiry.
func (s VisitorSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// UID returns the visitor's transport uid. The messaging backend requires
// visitor uids to carry a "-vtr" suffix.
func (s VisitorSession) UID() string {
	const suffix = "-vtr"
	if len(s.VisitorID) >= len(suffix) && s.VisitorID[len(s.VisitorID)-len(suffix):] == suffix {
		return s.VisitorID
	}
	return s.VisitorID + suffix
}
