package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tgolabs/chatkit/internal/api"
	"github.com/tgolabs/chatkit/internal/domain"
	"github.com/tgolabs/chatkit/internal/logging"
	"github.com/tgolabs/chatkit/internal/transport"
	"github.com/tgolabs/chatkit/internal/upload"
)

func testLogger() *logging.Logger {
	return logging.New(nil, "silent")
}

type sentRecord struct {
	payload domain.MessagePayload
	opts    transport.SendOptions
}

type fakeTransport struct {
	mu         sync.Mutex
	ready      bool
	initOpts   transport.InitOptions
	initErr    error
	connectErr error
	sent       []sentRecord
	sendResult transport.SendResult
	sendErr    error

	msgFns    []func(transport.Message)
	statusFns []func(transport.Status)
	customFns []func(transport.CustomEvent)
}

func (t *fakeTransport) Init(_ context.Context, opts transport.InitOptions) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.initOpts = opts
	return t.initErr
}

func (t *fakeTransport) Connect(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.connectErr != nil {
		return t.connectErr
	}
	t.ready = true
	return nil
}

func (t *fakeTransport) IsReady() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ready
}

func (t *fakeTransport) Send(_ context.Context, payload domain.MessagePayload, opts transport.SendOptions) (transport.SendResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, sentRecord{payload: payload, opts: opts})
	if t.sendErr != nil {
		return transport.SendResult{}, t.sendErr
	}
	res := t.sendResult
	if res.ClientMsgNo == "" {
		res.ClientMsgNo = opts.ClientMsgNo
	}
	return res, nil
}

func (t *fakeTransport) OnMessage(fn func(transport.Message)) func() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.msgFns = append(t.msgFns, fn)
	return func() {}
}

func (t *fakeTransport) OnStatus(fn func(transport.Status)) func() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.statusFns = append(t.statusFns, fn)
	return func() {}
}

func (t *fakeTransport) OnCustom(fn func(transport.CustomEvent)) func() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.customFns = append(t.customFns, fn)
	return func() {}
}

func (t *fakeTransport) Close() {}

func (t *fakeTransport) sentMessages() []sentRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]sentRecord, len(t.sent))
	copy(out, t.sent)
	return out
}

func (t *fakeTransport) deliver(m transport.Message) {
	t.mu.Lock()
	fns := append([]func(transport.Message){}, t.msgFns...)
	t.mu.Unlock()
	for _, fn := range fns {
		fn(m)
	}
}

func (t *fakeTransport) emitCustom(ev transport.CustomEvent) {
	t.mu.Lock()
	fns := append([]func(transport.CustomEvent){}, t.customFns...)
	t.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (t *fakeTransport) emitStatus(s transport.Status) {
	t.mu.Lock()
	fns := append([]func(transport.Status){}, t.statusFns...)
	t.mu.Unlock()
	for _, fn := range fns {
		fn(s)
	}
}

type fakePlatform struct {
	mu           sync.Mutex
	syncReqs     []api.SyncMessagesRequest
	syncPages    []*api.SyncMessagesResponse
	syncErr      error
	completions  []api.CompletionRequest
	completeErr  error
	cancels      []string
	channelInfo  *api.ChannelInfo
	channelCalls int
}

func (p *fakePlatform) SyncMessages(_ context.Context, req api.SyncMessagesRequest) (*api.SyncMessagesResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.syncReqs = append(p.syncReqs, req)
	if p.syncErr != nil {
		return nil, p.syncErr
	}
	if len(p.syncPages) == 0 {
		return &api.SyncMessagesResponse{Messages: []api.HistoryMessage{}}, nil
	}
	page := p.syncPages[0]
	p.syncPages = p.syncPages[1:]
	return page, nil
}

func (p *fakePlatform) ChannelInfo(_ context.Context, channelID string, _ int) (*api.ChannelInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.channelCalls++
	if p.channelInfo != nil {
		return p.channelInfo, nil
	}
	return &api.ChannelInfo{ChannelID: channelID}, nil
}

func (p *fakePlatform) Completion(_ context.Context, req api.CompletionRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completions = append(p.completions, req)
	return p.completeErr
}

func (p *fakePlatform) CancelRunByClient(_ context.Context, clientMsgNo, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancels = append(p.cancels, clientMsgNo)
	return nil
}

func (p *fakePlatform) FileURL(fileID string) string {
	return "https://api.test/v1/chat/file/" + fileID
}

func (p *fakePlatform) completionCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.completions)
}

func (p *fakePlatform) canceled() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string{}, p.cancels...)
}

type fakeIdentity struct {
	session *domain.VisitorSession
	err     error
}

func (i *fakeIdentity) EnsureSession(context.Context, string, string) (*domain.VisitorSession, error) {
	if i.err != nil {
		return nil, i.err
	}
	return i.session, nil
}

type fakeUploads struct {
	mu       sync.Mutex
	response *upload.Response
	err      error
	block    chan struct{} // when set, Upload waits for close or ctx
	calls    int
}

func (u *fakeUploads) Upload(ctx context.Context, _ string, _ int, f upload.File, onProgress upload.Progress) (*upload.Response, error) {
	u.mu.Lock()
	u.calls++
	block := u.block
	u.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if onProgress != nil {
		half := int64(len(f.Content)) / 2
		onProgress(50, half, int64(len(f.Content)))
		onProgress(100, int64(len(f.Content)), int64(len(f.Content)))
	}
	if u.err != nil {
		return nil, u.err
	}
	if u.response != nil {
		return u.response, nil
	}
	return &upload.Response{FileID: "file-1", FileName: f.Name, FileSize: int64(len(f.Content))}, nil
}

func (u *fakeUploads) callCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls
}

type fakeActivity struct {
	mu       sync.Mutex
	types    []string
	contexts []*api.ActivityContext
}

func (a *fakeActivity) Record(_, activityType, _, _ string, actx *api.ActivityContext) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.types = append(a.types, activityType)
	a.contexts = append(a.contexts, actx)
}

func testSession() *domain.VisitorSession {
	return &domain.VisitorSession{
		APIBase:        "https://api.test",
		PlatformAPIKey: "pk-test",
		VisitorID:      "visitor-1",
		ChannelID:      "ch-1",
		ChannelType:    domain.ChannelTypeService,
		IMToken:        "tok-1",
	}
}

type engineEnv struct {
	engine   *Engine
	tr       *fakeTransport
	platform *fakePlatform
	identity *fakeIdentity
	uploads  *fakeUploads
	activity *fakeActivity
}

func newEngineEnv(t *testing.T, opts Options) *engineEnv {
	t.Helper()
	if opts.APIBase == "" {
		opts.APIBase = "https://api.test"
	}
	if opts.PlatformAPIKey == "" {
		opts.PlatformAPIKey = "pk-test"
	}
	env := &engineEnv{
		tr:       &fakeTransport{sendResult: transport.SendResult{ReasonCode: domain.ReasonSuccess}},
		platform: &fakePlatform{},
		identity: &fakeIdentity{session: testSession()},
		uploads:  &fakeUploads{},
		activity: &fakeActivity{},
	}
	env.engine = NewEngine(opts, env.platform, env.identity, env.tr, env.uploads, env.activity, testLogger())
	return env
}

func initEngine(t *testing.T, env *engineEnv) {
	t.Helper()
	require.NoError(t, env.engine.Init(context.Background()))
}

func TestInitWiresSessionAndTransport(t *testing.T) {
	env := newEngineEnv(t, Options{})
	initEngine(t, env)

	assert.Equal(t, "visitor-1-vtr", env.tr.initOpts.UID)
	assert.Equal(t, "tok-1", env.tr.initOpts.Token)
	assert.Equal(t, "ch-1", env.tr.initOpts.Target)
	assert.Equal(t, domain.ChannelTypeService, env.tr.initOpts.ChannelType)
	assert.True(t, env.tr.IsReady())

	// The first history page was requested with the initial cursor shape.
	require.Len(t, env.platform.syncReqs, 1)
	req := env.platform.syncReqs[0]
	assert.Equal(t, int64(0), req.StartMessageSeq)
	assert.Equal(t, int64(0), req.EndMessageSeq)
	assert.Equal(t, api.PullModeUp, req.PullMode)
}

func TestInitFailsWithoutIMToken(t *testing.T) {
	env := newEngineEnv(t, Options{})
	sess := testSession()
	sess.IMToken = ""
	env.identity.session = sess

	err := env.engine.Init(context.Background())
	require.Error(t, err)
	var cfgErr *domain.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Message, "im_token")
	assert.False(t, env.tr.IsReady())
}

func TestInitIsIdempotentOnceReady(t *testing.T) {
	env := newEngineEnv(t, Options{})
	initEngine(t, env)
	require.NoError(t, env.engine.Init(context.Background()))

	// Second init must not re-sync history or re-register listeners.
	assert.Len(t, env.platform.syncReqs, 1)
	assert.Len(t, env.tr.msgFns, 1)
}

func TestWelcomeMessageAppearsOnce(t *testing.T) {
	env := newEngineEnv(t, Options{WelcomeMessage: "Hi there!"})
	initEngine(t, env)

	env.engine.EnsureWelcomeMessage("Hi there!")
	msgs := env.engine.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, welcomeMessageID, msgs[0].ID)
	assert.Equal(t, domain.RoleAgent, msgs[0].Role)
	assert.Equal(t, "Hi there!", msgs[0].Payload.Content)
}

func TestWelcomeMessageTextRefreshesInPlace(t *testing.T) {
	env := newEngineEnv(t, Options{WelcomeMessage: "Hi there!"})
	initEngine(t, env)

	env.engine.EnsureWelcomeMessage("Welcome back!")
	msgs := env.engine.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, welcomeMessageID, msgs[0].ID)
	assert.Equal(t, "Welcome back!", msgs[0].Payload.Content)
}

func TestActivityContextCarriesChannel(t *testing.T) {
	env := newEngineEnv(t, Options{})
	initEngine(t, env)

	env.activity.mu.Lock()
	defer env.activity.mu.Unlock()
	require.NotEmpty(t, env.activity.types)
	assert.Equal(t, api.ActivitySessionStart, env.activity.types[0])
	require.NotNil(t, env.activity.contexts[0])
	assert.Equal(t, "ch-1", env.activity.contexts[0].ChannelID)
}

func TestOnlineTracksTransportStatus(t *testing.T) {
	env := newEngineEnv(t, Options{})
	initEngine(t, env)

	env.tr.emitStatus(transport.StatusConnected)
	assert.True(t, env.engine.Online())
	env.tr.emitStatus(transport.StatusDisconnected)
	assert.False(t, env.engine.Online())
}

func TestUnreadCounter(t *testing.T) {
	env := newEngineEnv(t, Options{})
	initEngine(t, env)

	env.tr.deliver(transport.Message{MessageID: 101, FromUID: "staff-1", Timestamp: time.Now().Unix()})
	env.tr.deliver(transport.Message{MessageID: 102, FromUID: "staff-1", Timestamp: time.Now().Unix()})
	assert.Equal(t, 2, env.engine.UnreadCount())

	env.engine.ClearUnread()
	assert.Equal(t, 0, env.engine.UnreadCount())
}

func TestRemoveMessageDropsEntry(t *testing.T) {
	env := newEngineEnv(t, Options{})
	initEngine(t, env)
	env.engine.EnsureWelcomeMessage("hello")

	env.engine.RemoveMessage(welcomeMessageID)
	assert.Empty(t, env.engine.Messages())
}
