// Package visitor obtains and caches visitor sessions against the platform.
package visitor

import (
	"context"
	"time"

	"github.com/tgolabs/chatkit/internal/api"
	"github.com/tgolabs/chatkit/internal/domain"
	"github.com/tgolabs/chatkit/internal/logging"
)

// Cache is the read-through store for registered sessions.
type Cache interface {
	Get(apiBase, platformAPIKey string) *domain.VisitorSession
	Put(sess domain.VisitorSession) error
}

// ClientContext is best-effort context about the hosting surface, sent with
// first-time registration.
type ClientContext struct {
	UserAgent string
	Referrer  string
	PageURL   string
	Timezone  string
}

// Provider registers a visitor once per (apiBase, platformApiKey) and reuses
// the cached credentials thereafter.
type Provider struct {
	client *api.Client
	cache  Cache
	cctx   ClientContext
	ttl    time.Duration // cache validity; zero means no expiry
	log    *logging.Logger
}

// NewProvider creates a session identity provider.
func NewProvider(client *api.Client, cache Cache, cctx ClientContext, ttl time.Duration, log *logging.Logger) *Provider {
	return &Provider{
		client: client,
		cache:  cache,
		cctx:   cctx,
		ttl:    ttl,
		log:    log.Sub("visitor"),
	}
}

// EnsureSession returns the cached visitor session for the key pair,
// registering a new visitor when none is cached. A missing im_token in the
// registration response is logged but not fatal here; connecting the
// transport will fail later with a distinguishable error.
func (p *Provider) EnsureSession(ctx context.Context, apiBase, platformAPIKey string) (*domain.VisitorSession, error) {
	if platformAPIKey == "" {
		return nil, &domain.ConfigError{Message: "missing platform API key"}
	}

	if cached := p.cache.Get(apiBase, platformAPIKey); cached != nil {
		p.log.Debug().Str("visitor", cached.VisitorID).Msg("visitor session cache hit")
		return cached, nil
	}

	req := api.RegisterVisitorRequest{
		PlatformAPIKey: platformAPIKey,
		SystemInfo:     CollectSystemInfo(p.cctx),
		Timezone:       p.cctx.Timezone,
	}
	res, err := p.client.RegisterVisitor(ctx, req)
	if err != nil {
		return nil, err
	}

	sess := domain.VisitorSession{
		APIBase:        apiBase,
		PlatformAPIKey: platformAPIKey,
		VisitorID:      res.ID,
		PlatformOpenID: res.PlatformOpenID,
		ChannelID:      res.ChannelID,
		ChannelType:    res.ChannelType,
		IMToken:        res.IMToken,
		ProjectID:      res.ProjectID,
		PlatformID:     res.PlatformID,
		CreatedAt:      parseTimestamp(res.CreatedAt),
		UpdatedAt:      parseTimestamp(res.UpdatedAt),
	}
	if p.ttl > 0 {
		sess.ExpiresAt = time.Now().Add(p.ttl)
	}

	if err := p.cache.Put(sess); err != nil {
		// A failed cache write costs one extra registration next time.
		p.log.Warn().Err(err).Msg("failed to cache visitor session")
	}

	p.log.Info().
		Str("visitor", sess.VisitorID).
		Str("channel", sess.ChannelID).
		Bool("hasToken", sess.IMToken != "").
		Msg("visitor registered")

	return &sess, nil
}

func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}
