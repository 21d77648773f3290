// Package transport owns the live connection to the messaging backend: it
// resolves the dynamic endpoint, speaks the websocket frame protocol, and
// fans events out to subscribers.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/tgolabs/chatkit/internal/api"
	"github.com/tgolabs/chatkit/internal/domain"
	"github.com/tgolabs/chatkit/internal/logging"
)

// RouteResolver resolves the websocket endpoint for a uid.
type RouteResolver interface {
	Route(ctx context.Context, uid string) (*api.RouteResponse, error)
}

// InitOptions configures one transport session.
type InitOptions struct {
	UID   string
	Token string
	// Target is the default send destination (peer uid or group id).
	Target      string
	ChannelType int // defaults to the service channel type
	// PreferSecure selects TLS route fields when generic ones are absent.
	PreferSecure bool
}

// Client is the single live transport owned by a chat engine. It is not a
// process-wide singleton; create one per session and tear it down with Close.
type Client struct {
	routes RouteResolver
	log    *logging.Logger

	mu         sync.Mutex
	status     Status
	opts       InitOptions
	wsAddr     string
	conn       *websocket.Conn
	generation int // invalidates stale read pumps across re-init

	nextID          int
	msgListeners    map[int]func(Message)
	statusListeners map[int]func(Status)
	customListeners map[int]func(CustomEvent)

	acks map[string]chan SendResult
}

// New creates an unconnected transport client.
func New(routes RouteResolver, log *logging.Logger) *Client {
	return &Client{
		routes:          routes,
		log:             log.Sub("transport"),
		status:          StatusUninitialized,
		msgListeners:    map[int]func(Message){},
		statusListeners: map[int]func(Status){},
		customListeners: map[int]func(CustomEvent){},
		acks:            map[string]chan SendResult{},
	}
}

// Status returns the current connection state.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// IsReady reports whether the transport can accept sends.
func (c *Client) IsReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Init resolves the transport endpoint and prepares the client. Re-init
// tears down any previous connection first so event delivery is never
// duplicated across sessions.
func (c *Client) Init(ctx context.Context, opts InitOptions) error {
	if opts.UID == "" {
		return &domain.ConfigError{Message: "missing transport uid"}
	}
	if opts.Token == "" {
		return &domain.ConfigError{Message: "missing im_token"}
	}
	if opts.ChannelType == 0 {
		opts.ChannelType = domain.ChannelTypeService
	}

	c.setStatus(StatusInitializing, -1)

	route, err := c.routes.Route(ctx, opts.UID)
	if err != nil {
		c.setStatus(StatusError, -1)
		return err
	}
	addr, err := ResolveWSAddr(route, opts.PreferSecure)
	if err != nil {
		c.setStatus(StatusError, -1)
		return err
	}

	c.mu.Lock()
	c.teardownLocked()
	c.opts = opts
	c.wsAddr = addr
	c.mu.Unlock()

	c.log.Info().Str("addr", addr).Str("uid", opts.UID).Msg("transport initialized")
	c.setStatus(StatusReady, -1)
	return nil
}

// Connect dials the resolved endpoint and starts the read pump. The
// Connected status arrives via the backend's connect acknowledgement.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	addr := c.wsAddr
	opts := c.opts
	c.mu.Unlock()

	if addr == "" {
		return domain.ErrNotReady
	}

	c.setStatus(StatusConnecting, -1)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, addr, nil)
	if err != nil {
		c.setStatus(StatusError, -1)
		return fmt.Errorf("transport dial: %w", err)
	}

	if err := conn.WriteJSON(frame{Cmd: "auth", UID: opts.UID, Token: opts.Token}); err != nil {
		conn.Close()
		c.setStatus(StatusError, -1)
		return fmt.Errorf("transport auth: %w", err)
	}

	c.mu.Lock()
	c.teardownLocked()
	c.conn = conn
	c.generation++
	gen := c.generation
	c.mu.Unlock()

	go c.readPump(conn, gen)
	return nil
}

// Disconnect closes the connection. The client stays initialized and can
// Connect again.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.teardownLocked()
	c.mu.Unlock()
	c.setStatus(StatusDisconnected, -1)
}

// Close tears the transport down and drops all subscriptions.
func (c *Client) Close() {
	c.mu.Lock()
	c.teardownLocked()
	c.msgListeners = map[int]func(Message){}
	c.statusListeners = map[int]func(Status){}
	c.customListeners = map[int]func(CustomEvent){}
	c.status = StatusUninitialized
	c.mu.Unlock()
}

// teardownLocked closes the current connection and invalidates its pump.
func (c *Client) teardownLocked() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.generation++
	for no, ch := range c.acks {
		close(ch)
		delete(c.acks, no)
	}
}

// Send delivers a payload to the target and waits for the transport's
// acknowledgement. It is the only write path into the transport.
func (c *Client) Send(ctx context.Context, payload domain.MessagePayload, opts SendOptions) (SendResult, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return SendResult{}, fmt.Errorf("encoding payload: %w", err)
	}

	clientMsgNo := opts.ClientMsgNo
	if clientMsgNo == "" {
		clientMsgNo = uuid.New().String()
	}

	c.mu.Lock()
	if c.conn == nil {
		c.mu.Unlock()
		return SendResult{}, domain.ErrNotReady
	}
	ack := make(chan SendResult, 1)
	c.acks[clientMsgNo] = ack
	err = c.conn.WriteJSON(frame{
		Cmd:         "send",
		To:          c.opts.Target,
		ChannelType: c.opts.ChannelType,
		ClientMsgNo: clientMsgNo,
		Payload:     data,
		Header:      opts.Header,
	})
	if err != nil {
		delete(c.acks, clientMsgNo)
		c.mu.Unlock()
		return SendResult{}, fmt.Errorf("transport write: %w", err)
	}
	c.mu.Unlock()

	select {
	case res, ok := <-ack:
		if !ok {
			return SendResult{ClientMsgNo: clientMsgNo, ReasonCode: domain.ReasonUnknown}, domain.ErrNotReady
		}
		return res, nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.acks, clientMsgNo)
		c.mu.Unlock()
		return SendResult{ClientMsgNo: clientMsgNo, ReasonCode: domain.ReasonUnknown}, ctx.Err()
	}
}

// OnMessage subscribes to inbound messages. Returns an unsubscribe func.
func (c *Client) OnMessage(fn func(Message)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.msgListeners[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.msgListeners, id)
	}
}

// OnStatus subscribes to connection state changes.
func (c *Client) OnStatus(fn func(Status)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.statusListeners[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.statusListeners, id)
	}
}

// OnCustom subscribes to out-of-band custom events.
func (c *Client) OnCustom(fn func(CustomEvent)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.customListeners[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.customListeners, id)
	}
}

// readPump consumes frames until the connection dies. A stale pump (one
// outlived by re-init) exits without touching shared state.
func (c *Client) readPump(conn *websocket.Conn, gen int) {
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			c.mu.Lock()
			stale := gen != c.generation
			if !stale && c.conn == conn {
				c.conn = nil
			}
			c.mu.Unlock()
			if !stale {
				c.log.Warn().Err(err).Msg("transport read closed")
				c.setStatus(StatusDisconnected, gen)
			}
			return
		}

		switch f.Event {
		case "connect":
			c.setStatus(StatusConnected, gen)
		case "disconnect":
			c.setStatus(StatusDisconnected, gen)
		case "error":
			c.log.Error().Str("detail", f.Message).Msg("transport error event")
			c.setStatus(StatusError, gen)
		case "sendack":
			c.resolveAck(f)
		case "message":
			c.emitMessage(Message{
				MessageID:   f.MessageID,
				MessageSeq:  f.MessageSeq,
				ClientMsgNo: f.ClientMsgNo,
				FromUID:     f.FromUID,
				ChannelID:   f.ChannelID,
				ChannelType: f.ChannelType,
				Timestamp:   f.Timestamp,
				Payload:     f.Payload,
			})
		case "custom":
			c.emitCustom(CustomEvent{Type: f.Type, ID: f.ID, Data: f.Data})
		default:
			c.log.Debug().Str("event", f.Event).Msg("ignoring unknown frame")
		}
	}
}

func (c *Client) resolveAck(f frame) {
	c.mu.Lock()
	ch, ok := c.acks[f.ClientMsgNo]
	if ok {
		delete(c.acks, f.ClientMsgNo)
	}
	c.mu.Unlock()
	if ok {
		ch <- SendResult{ClientMsgNo: f.ClientMsgNo, ReasonCode: domain.ReasonCode(f.ReasonCode)}
	}
}

// setStatus records and emits a state change. gen below zero means "current
// connection regardless of generation".
func (c *Client) setStatus(s Status, gen int) {
	c.mu.Lock()
	if gen >= 0 && gen != c.generation {
		c.mu.Unlock()
		return
	}
	c.status = s
	listeners := make([]func(Status), 0, len(c.statusListeners))
	for _, fn := range c.statusListeners {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()

	for _, fn := range listeners {
		c.callStatusListener(fn, s)
	}
}

func (c *Client) emitMessage(m Message) {
	c.mu.Lock()
	listeners := make([]func(Message), 0, len(c.msgListeners))
	for _, fn := range c.msgListeners {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()

	for _, fn := range listeners {
		c.callMessageListener(fn, m)
	}
}

func (c *Client) emitCustom(ev CustomEvent) {
	c.mu.Lock()
	listeners := make([]func(CustomEvent), 0, len(c.customListeners))
	for _, fn := range c.customListeners {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()

	for _, fn := range listeners {
		c.callCustomListener(fn, ev)
	}
}

// One faulty subscriber must not break delivery to the others; panics are
// contained per listener and reported through the logger.

func (c *Client) callStatusListener(fn func(Status), s Status) {
	defer c.recoverListener("status")
	fn(s)
}

func (c *Client) callMessageListener(fn func(Message), m Message) {
	defer c.recoverListener("message")
	fn(m)
}

func (c *Client) callCustomListener(fn func(CustomEvent), ev CustomEvent) {
	defer c.recoverListener("custom")
	fn(ev)
}

func (c *Client) recoverListener(kind string) {
	if r := recover(); r != nil {
		c.log.Swallowed(kind+" listener", fmt.Errorf("%v", r))
	}
}
