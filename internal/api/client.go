// Package api is the REST client for the messaging platform endpoints.
// Every call applies the configured network timeout (10 seconds unless
// overridden) and never retries; callers own retry policy.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tgolabs/chatkit/internal/domain"
	"github.com/tgolabs/chatkit/internal/logging"
)

const headerAPIKey = "X-Platform-API-Key"

// Client talks to the platform REST API under a single base URL.
type Client struct {
	base    string
	apiKey  string
	httpc   *http.Client
	timeout time.Duration
	log     *logging.Logger
}

// NewClient creates a platform client. A zero timeout defaults to 10s.
func NewClient(apiBase, platformAPIKey string, timeout time.Duration, log *logging.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		base:    strings.TrimRight(apiBase, "/"),
		apiKey:  platformAPIKey,
		httpc:   &http.Client{},
		timeout: timeout,
		log:     log.Sub("api"),
	}
}

// Base returns the trimmed API base URL.
func (c *Client) Base() string { return c.base }

// FileURL derives the download URL for an uploaded chat file, carrying the
// platform key as a query parameter so plain media elements can fetch it.
func (c *Client) FileURL(fileID string) string {
	u := c.base + "/v1/chat/files/" + url.PathEscape(fileID)
	if c.apiKey != "" {
		u += "?platform_api_key=" + url.QueryEscape(c.apiKey)
	}
	return u
}

// RegisterVisitor creates a visitor session. The response must include id
// and channel_id; a missing im_token is logged but deliberately not fatal so
// identity and transport failures stay distinguishable.
func (c *Client) RegisterVisitor(ctx context.Context, req RegisterVisitorRequest) (*RegisterVisitorResponse, error) {
	if req.PlatformAPIKey == "" {
		req.PlatformAPIKey = c.apiKey
	}
	var out RegisterVisitorResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/visitors/register", req, &out); err != nil {
		return nil, domain.RegistrationError(err)
	}
	if out.ID == "" || out.ChannelID == "" {
		return nil, domain.RegistrationError(fmt.Errorf("invalid register response: missing id/channel_id"))
	}
	if out.IMToken == "" {
		c.log.Warn().Str("visitor", out.ID).Msg("im_token missing from registration response; IM connect will fail")
	}
	return &out, nil
}

// SyncMessages fetches one history page by sequence cursor.
func (c *Client) SyncMessages(ctx context.Context, req SyncMessagesRequest) (*SyncMessagesResponse, error) {
	if req.PlatformAPIKey == "" {
		req.PlatformAPIKey = c.apiKey
	}
	var out SyncMessagesResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/visitors/messages/sync", req, &out); err != nil {
		return nil, domain.SyncError(err)
	}
	if out.Messages == nil {
		return nil, domain.SyncError(fmt.Errorf("invalid sync response: missing messages"))
	}
	return &out, nil
}

// ChannelInfo looks up channel/staff metadata.
func (c *Client) ChannelInfo(ctx context.Context, channelID string, channelType int) (*ChannelInfo, error) {
	q := url.Values{}
	q.Set("channel_id", channelID)
	q.Set("channel_type", strconv.Itoa(channelType))
	q.Set("platform_api_key", c.apiKey)

	var out ChannelInfo
	if err := c.doJSON(ctx, http.MethodGet, "/v1/channels/info?"+q.Encode(), nil, &out); err != nil {
		return nil, fmt.Errorf("channel info: %w", err)
	}
	return &out, nil
}

// Completion triggers AI processing of a just-sent text message. The AI
// reply streams back over the transport, so the HTTP body is discarded.
func (c *Client) Completion(ctx context.Context, req CompletionRequest) error {
	if req.APIKey == "" {
		req.APIKey = c.apiKey
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/chat/completion", req, nil); err != nil {
		return fmt.Errorf("completion: %w", err)
	}
	return nil
}

// CancelRunByClient requests best-effort cancellation of an AI run keyed by
// its client message number.
func (c *Client) CancelRunByClient(ctx context.Context, clientMsgNo, reason string) error {
	if reason == "" {
		reason = "user_cancel"
	}
	req := CancelRunRequest{PlatformAPIKey: c.apiKey, ClientMsgNo: clientMsgNo, Reason: reason}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/ai/runs/cancel-by-client", req, nil); err != nil {
		return fmt.Errorf("cancel run: %w", err)
	}
	return nil
}

// Route resolves the dynamic transport endpoint for a uid.
func (c *Client) Route(ctx context.Context, uid string) (*RouteResponse, error) {
	q := url.Values{}
	q.Set("uid", uid)

	var out RouteResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/wukongim/route?"+q.Encode(), nil, &out); err != nil {
		return nil, domain.RouteResolutionError(err)
	}
	return &out, nil
}

// CreateActivity records a visitor activity. Fire-and-forget semantics are
// the caller's concern; this is a plain bounded call.
func (c *Client) CreateActivity(ctx context.Context, req ActivityRequest) error {
	if req.PlatformAPIKey == "" {
		req.PlatformAPIKey = c.apiKey
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/visitors/activities", req, nil); err != nil {
		return fmt.Errorf("activity: %w", err)
	}
	return nil
}

// doJSON performs one bounded JSON round-trip. A nil out discards the body.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set(headerAPIKey, c.apiKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
