// Package chat implements the conversation engine: visitor identity, the
// live transport binding, history synchronization, the streaming reply
// assembler, and the attachment upload pipeline, all feeding one canonical
// message list.
package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tgolabs/chatkit/internal/api"
	"github.com/tgolabs/chatkit/internal/domain"
	"github.com/tgolabs/chatkit/internal/logging"
	"github.com/tgolabs/chatkit/internal/transport"
	"github.com/tgolabs/chatkit/internal/upload"
)

// Platform is the REST surface the engine depends on.
type Platform interface {
	SyncMessages(ctx context.Context, req api.SyncMessagesRequest) (*api.SyncMessagesResponse, error)
	ChannelInfo(ctx context.Context, channelID string, channelType int) (*api.ChannelInfo, error)
	Completion(ctx context.Context, req api.CompletionRequest) error
	CancelRunByClient(ctx context.Context, clientMsgNo, reason string) error
	FileURL(fileID string) string
}

// Identity provides the visitor session, registering on first use.
type Identity interface {
	EnsureSession(ctx context.Context, apiBase, platformAPIKey string) (*domain.VisitorSession, error)
}

// Transport is the live messaging connection the engine binds to.
type Transport interface {
	Init(ctx context.Context, opts transport.InitOptions) error
	Connect(ctx context.Context) error
	IsReady() bool
	Send(ctx context.Context, payload domain.MessagePayload, opts transport.SendOptions) (transport.SendResult, error)
	OnMessage(fn func(transport.Message)) func()
	OnStatus(fn func(transport.Status)) func()
	OnCustom(fn func(transport.CustomEvent)) func()
	Close()
}

// FileTransfer uploads attachments.
type FileTransfer interface {
	Upload(ctx context.Context, channelID string, channelType int, f upload.File, onProgress upload.Progress) (*upload.Response, error)
}

// ActivitySink records visitor telemetry. Implementations must be
// fire-and-forget; the engine never checks for errors.
type ActivitySink interface {
	Record(visitorID, activityType, title, description string, actx *api.ActivityContext)
}

// Options tunes engine behavior.
type Options struct {
	APIBase        string
	PlatformAPIKey string

	HistoryPageSize int           // messages per history page
	StreamTimeout   time.Duration // auto-exit for a stalled stream
	NetworkTimeout  time.Duration // bound for individual remote calls
	WelcomeMessage  string        // optional synthetic greeting
	PreferSecure    bool          // prefer TLS transport routes
}

func (o *Options) applyDefaults() {
	if o.HistoryPageSize <= 0 {
		o.HistoryPageSize = 20
	}
	if o.StreamTimeout <= 0 {
		o.StreamTimeout = 60 * time.Second
	}
	if o.NetworkTimeout <= 0 {
		o.NetworkTimeout = 10 * time.Second
	}
}

// Engine drives one visitor conversation. All exported methods are safe for
// concurrent use.
type Engine struct {
	opts     Options
	platform Platform
	identity Identity
	tr       Transport
	uploads  FileTransfer
	activity ActivitySink
	log      *logging.Logger

	store *MessageStore

	mu          sync.Mutex
	session     *domain.VisitorSession
	myUID       string
	channelID   string
	channelType int
	online      bool
	ready       bool
	lastErr     error

	historyBusy bool
	hasMore     bool
	earliestSeq int64 // 0 means no cursor yet

	stream streamState

	unread int

	staff         map[string]domain.StaffInfo
	staffInflight map[string]bool

	uploadFiles   map[string]upload.File        // message id -> file kept for retry
	uploadCancels map[string]context.CancelFunc // message id -> in-flight cancel

	offMessage func()
	offStatus  func()
	offCustom  func()
}

// NewEngine wires an engine from its collaborators.
func NewEngine(opts Options, platform Platform, identity Identity, tr Transport, uploads FileTransfer, activity ActivitySink, log *logging.Logger) *Engine {
	opts.applyDefaults()
	return &Engine{
		opts:          opts,
		platform:      platform,
		identity:      identity,
		tr:            tr,
		uploads:       uploads,
		activity:      activity,
		log:           log.Sub("chat"),
		store:         NewMessageStore(),
		staff:         map[string]domain.StaffInfo{},
		staffInflight: map[string]bool{},
		uploadFiles:   map[string]upload.File{},
		uploadCancels: map[string]context.CancelFunc{},
	}
}

// Init brings the conversation up: resolves the visitor session, binds the
// transport, connects, and loads the first history page. Safe to call again
// after a failure; a successful init is idempotent.
func (e *Engine) Init(ctx context.Context) error {
	e.mu.Lock()
	if e.ready {
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	sess, err := e.identity.EnsureSession(ctx, e.opts.APIBase, e.opts.PlatformAPIKey)
	if err != nil {
		e.recordErr(err)
		return err
	}
	if sess.IMToken == "" {
		err := &domain.ConfigError{Message: "missing im_token"}
		e.recordErr(err)
		return err
	}

	channelType := sess.ChannelType
	if channelType == 0 {
		channelType = domain.ChannelTypeService
	}

	e.mu.Lock()
	e.session = sess
	e.myUID = sess.UID()
	e.channelID = sess.ChannelID
	e.channelType = channelType
	e.mu.Unlock()

	if err := e.tr.Init(ctx, transport.InitOptions{
		UID:          sess.UID(),
		Token:        sess.IMToken,
		Target:       sess.ChannelID,
		ChannelType:  domain.ChannelTypeService,
		PreferSecure: e.opts.PreferSecure,
	}); err != nil {
		e.recordErr(err)
		return err
	}

	e.bindTransport()

	if err := e.tr.Connect(ctx); err != nil {
		e.recordErr(err)
		return err
	}

	if err := e.LoadInitialHistory(ctx); err != nil {
		// A failed first page leaves an empty but functional conversation.
		e.log.Warn().Err(err).Msg("initial history load failed")
	}
	if e.opts.WelcomeMessage != "" {
		e.EnsureWelcomeMessage(e.opts.WelcomeMessage)
	}

	e.mu.Lock()
	e.ready = true
	e.lastErr = nil
	e.mu.Unlock()

	e.recordActivity(api.ActivitySessionStart, "Session started", "")
	e.log.Info().Str("uid", sess.UID()).Str("channel", sess.ChannelID).Msg("engine initialized")
	return nil
}

// bindTransport replaces any prior subscriptions so re-init never delivers
// events twice.
func (e *Engine) bindTransport() {
	e.mu.Lock()
	offMessage, offStatus, offCustom := e.offMessage, e.offStatus, e.offCustom
	e.mu.Unlock()
	if offMessage != nil {
		offMessage()
	}
	if offStatus != nil {
		offStatus()
	}
	if offCustom != nil {
		offCustom()
	}

	onMessage := e.tr.OnMessage(e.handleInboundMessage)
	onStatus := e.tr.OnStatus(func(s transport.Status) {
		e.mu.Lock()
		e.online = s == transport.StatusConnected
		e.mu.Unlock()
	})
	onCustom := e.tr.OnCustom(e.handleCustomEvent)

	e.mu.Lock()
	e.offMessage, e.offStatus, e.offCustom = onMessage, onStatus, onCustom
	e.mu.Unlock()
}

// Close tears down the engine: cancels in-flight uploads, stops the stream
// timer, and releases the transport.
func (e *Engine) Close() {
	e.mu.Lock()
	for id, cancel := range e.uploadCancels {
		cancel()
		delete(e.uploadCancels, id)
	}
	e.stream.stopLocked()
	offMessage, offStatus, offCustom := e.offMessage, e.offStatus, e.offCustom
	e.offMessage, e.offStatus, e.offCustom = nil, nil, nil
	e.ready = false
	e.online = false
	e.mu.Unlock()

	if offMessage != nil {
		offMessage()
	}
	if offStatus != nil {
		offStatus()
	}
	if offCustom != nil {
		offCustom()
	}
	e.tr.Close()
}

// Messages returns a copy of the canonical message list.
func (e *Engine) Messages() []domain.ChatMessage {
	return e.store.Snapshot()
}

// Online reports whether the transport is connected.
func (e *Engine) Online() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.online
}

// Err returns the last recorded engine-level error.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// UnreadCount returns the number of unseen inbound messages.
func (e *Engine) UnreadCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.unread
}

// ClearUnread resets the unread counter, typically when the conversation
// becomes visible.
func (e *Engine) ClearUnread() {
	e.mu.Lock()
	e.unread = 0
	e.mu.Unlock()
}

func (e *Engine) incrementUnread() {
	e.mu.Lock()
	e.unread++
	e.mu.Unlock()
}

// welcomeMessageID is fixed so the greeting never duplicates across reloads.
const welcomeMessageID = "welcome"

// EnsureWelcomeMessage prepends the synthetic greeting once; repeat calls
// refresh the existing entry's text in place.
func (e *Engine) EnsureWelcomeMessage(text string) {
	if text == "" {
		return
	}
	if e.store.ContainsID(welcomeMessageID) {
		e.store.Update(welcomeMessageID, func(m *domain.ChatMessage) {
			m.Payload = domain.TextPayload(text)
		})
		return
	}
	e.store.Prepend([]domain.ChatMessage{{
		ID:      welcomeMessageID,
		Role:    domain.RoleAgent,
		Payload: domain.TextPayload(text),
		Time:    time.Now(),
	}})
}

// RemoveMessage drops a message from the list, e.g. a failed optimistic
// entry the visitor dismissed.
func (e *Engine) RemoveMessage(id string) {
	e.mu.Lock()
	if cancel, ok := e.uploadCancels[id]; ok {
		cancel()
		delete(e.uploadCancels, id)
	}
	delete(e.uploadFiles, id)
	e.mu.Unlock()
	e.store.Remove(id)
}

// StaffInfo returns the cached display info for a staff uid.
func (e *Engine) StaffInfo(uid string) (domain.StaffInfo, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	info, ok := e.staff[uid]
	return info, ok
}

func (e *Engine) recordErr(err error) {
	e.mu.Lock()
	e.lastErr = err
	e.mu.Unlock()
}

// recordActivity posts telemetry when a sink and a session are present.
func (e *Engine) recordActivity(activityType, title, description string) {
	if e.activity == nil {
		return
	}
	e.mu.Lock()
	sess := e.session
	e.mu.Unlock()
	if sess == nil {
		return
	}
	e.activity.Record(sess.VisitorID, activityType, title, description, &api.ActivityContext{
		ChannelID: sess.ChannelID,
	})
}

// netCtx derives a context bounded by the standard network timeout.
func (e *Engine) netCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.opts.NetworkTimeout)
}

// sessionInfo returns the identity fields needed by remote calls.
func (e *Engine) sessionInfo() (uid, channelID string, channelType int, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return "", "", 0, fmt.Errorf("chat: %w", domain.ErrNotReady)
	}
	return e.myUID, e.channelID, e.channelType, nil
}
