package visitor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tgolabs/chatkit/internal/api"
	"github.com/tgolabs/chatkit/internal/domain"
	"github.com/tgolabs/chatkit/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.New(nil, "silent")
}

type mapCache struct {
	mu    sync.Mutex
	items map[string]domain.VisitorSession
	fail  bool
}

func newMapCache() *mapCache {
	return &mapCache{items: map[string]domain.VisitorSession{}}
}

func (c *mapCache) Get(apiBase, platformAPIKey string) *domain.VisitorSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.items[apiBase+"|"+platformAPIKey]; ok {
		return &s
	}
	return nil
}

func (c *mapCache) Put(sess domain.VisitorSession) error {
	if c.fail {
		return assert.AnError
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[sess.APIBase+"|"+sess.PlatformAPIKey] = sess
	return nil
}

func registrationServer(t *testing.T, registered *int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/visitors/register", r.URL.Path)
		*registered++
		json.NewEncoder(w).Encode(api.RegisterVisitorResponse{
			ID:        "v-1",
			ChannelID: "ch-1",
			IMToken:   "tok",
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEnsureSessionRegistersOnce(t *testing.T) {
	var registered int
	srv := registrationServer(t, &registered)

	client := api.NewClient(srv.URL, "pk-1", time.Second, testLogger())
	p := NewProvider(client, newMapCache(), ClientContext{}, 0, testLogger())

	sess, err := p.EnsureSession(context.Background(), srv.URL, "pk-1")
	require.NoError(t, err)
	assert.Equal(t, "v-1", sess.VisitorID)
	assert.Equal(t, "v-1-vtr", sess.UID())
	assert.Equal(t, "tok", sess.IMToken)

	// Second call is a cache hit.
	again, err := p.EnsureSession(context.Background(), srv.URL, "pk-1")
	require.NoError(t, err)
	assert.Equal(t, sess.VisitorID, again.VisitorID)
	assert.Equal(t, 1, registered)
}

func TestEnsureSessionRequiresAPIKey(t *testing.T) {
	client := api.NewClient("https://api.test", "", time.Second, testLogger())
	p := NewProvider(client, newMapCache(), ClientContext{}, 0, testLogger())

	_, err := p.EnsureSession(context.Background(), "https://api.test", "")
	require.Error(t, err)
	var cfgErr *domain.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestEnsureSessionCacheWriteFailureIsNotFatal(t *testing.T) {
	var registered int
	srv := registrationServer(t, &registered)

	client := api.NewClient(srv.URL, "pk-1", time.Second, testLogger())
	cache := newMapCache()
	cache.fail = true
	p := NewProvider(client, cache, ClientContext{}, 0, testLogger())

	sess, err := p.EnsureSession(context.Background(), srv.URL, "pk-1")
	require.NoError(t, err)
	assert.Equal(t, "v-1", sess.VisitorID)

	// Without a cache the next call registers again.
	_, err = p.EnsureSession(context.Background(), srv.URL, "pk-1")
	require.NoError(t, err)
	assert.Equal(t, 2, registered)
}

func TestEnsureSessionAppliesTTL(t *testing.T) {
	var registered int
	srv := registrationServer(t, &registered)

	client := api.NewClient(srv.URL, "pk-1", time.Second, testLogger())
	cache := newMapCache()
	p := NewProvider(client, cache, ClientContext{}, time.Hour, testLogger())

	sess, err := p.EnsureSession(context.Background(), srv.URL, "pk-1")
	require.NoError(t, err)
	assert.False(t, sess.ExpiresAt.IsZero())
	assert.WithinDuration(t, time.Now().Add(time.Hour), sess.ExpiresAt, time.Minute)
}

func TestEnsureSessionRegistrationFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	client := api.NewClient(srv.URL, "pk-1", time.Second, testLogger())
	p := NewProvider(client, newMapCache(), ClientContext{}, 0, testLogger())

	_, err := p.EnsureSession(context.Background(), srv.URL, "pk-1")
	require.Error(t, err)
	var remote *domain.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "register", remote.Op)
}
