// Package client is the participant side of the replication transport.
//
// A Client keeps one engine per registered container, dials the hub,
// announces itself with connect and fetches every container. A single reader goroutine
// applies inbound actions; local mutations go through Mutate. Both take the
// same mutex, so each container has one dispatch path. Lost connections are
// redialled with exponential backoff and every container is fetched again.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"

	"github.com/roach88/starcore/internal/container"
	"github.com/roach88/starcore/internal/engine"
	"github.com/roach88/starcore/internal/schema"
	"github.com/roach88/starcore/internal/wire"
)

const writeWait = 10 * time.Second

// ErrNotConnected is returned when a command is sent without a live session.
var ErrNotConnected = errors.New("not connected")

// Client replicates the registered containers with a hub.
type Client struct {
	url        string
	schemas    *schema.Registry
	clientType wire.ClientType
	logger     *slog.Logger
	dialer     *websocket.Dialer
	initial    time.Duration
	maxBackoff time.Duration

	mu       sync.Mutex
	types    []string
	engines  map[string]*engine.Engine
	ws       *websocket.Conn
	commands []func(wire.Command)
}

// Option configures a Client.
type Option func(*Client)

// WithClientType sets the kind announced on connect. Defaults to desktop.
func WithClientType(ct wire.ClientType) Option {
	return func(c *Client) {
		c.clientType = ct
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithSchemas sets the container registry. It must hold the same shared
// types as the hub's. Defaults to the built-in containers.
func WithSchemas(r *schema.Registry) Option {
	return func(c *Client) {
		c.schemas = r
	}
}

// WithBackoff bounds the reconnect delay.
func WithBackoff(initial, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.initial = initial
		c.maxBackoff = maxDelay
	}
}

// New prepares a client for the hub at url (ws:// or wss://).
func New(url string, opts ...Option) (*Client, error) {
	c := &Client{
		url:        url,
		clientType: wire.ClientDesktop,
		logger:     slog.Default(),
		dialer:     websocket.DefaultDialer,
		initial:    500 * time.Millisecond,
		maxBackoff: 30 * time.Second,
		engines:    make(map[string]*engine.Engine),
	}
	for _, opt := range opts {
		opt(c)
	}
	if _, err := wire.ParseClientType(string(c.clientType)); err != nil {
		return nil, err
	}
	c.logger = c.logger.With("hub", url)

	if c.schemas == nil {
		c.schemas = schema.Builtin()
	}
	c.types = c.schemas.Types()
	for _, typ := range c.types {
		layout, _ := c.schemas.Lookup(typ)
		eng := engine.New(container.New(layout), engine.WithLogger(c.logger))
		eng.OnAction(c.forward(eng))
		c.engines[typ] = eng
	}
	return c, nil
}

// Run keeps a session open until ctx is cancelled, redialling with
// exponential backoff after every failure.
func (c *Client) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initial
	b.MaxInterval = c.maxBackoff

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		established, err := c.session(ctx)
		if ctx.Err() != nil {
			return struct{}{}, backoff.Permanent(ctx.Err())
		}
		if established {
			b.Reset()
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, wait time.Duration) {
			c.logger.Warn("connection lost, retrying", "error", err, "wait", wait)
		}),
	)
	return err
}

// session dials once and reads until the socket fails. It reports whether
// the handshake succeeded.
func (c *Client) session(ctx context.Context) (bool, error) {
	ws, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			ws.Close()
		case <-stop:
		}
	}()

	if err := c.attach(ws); err != nil {
		ws.Close()
		return false, err
	}
	defer c.detach(ws)
	c.logger.Info("connected", "client_type", c.clientType)

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return true, fmt.Errorf("read: %w", err)
		}
		msg, err := wire.Decode(data)
		if err != nil {
			c.logger.Warn("invalid frame dropped", "error", err)
			continue
		}
		c.dispatch(msg)
	}
}

// attach installs ws, announces the client and fetches every container.
func (c *Client) attach(ws *websocket.Conn) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ws = ws
	if err := c.writeLocked(wire.CommandMessage(wire.Command{Name: wire.CmdConnect, ClientType: c.clientType})); err != nil {
		c.ws = nil
		return err
	}
	for _, typ := range c.types {
		c.engines[typ].Fetch()
	}
	return nil
}

func (c *Client) detach(ws *websocket.Conn) {
	c.mu.Lock()
	if c.ws == ws {
		c.ws = nil
	}
	c.mu.Unlock()
	ws.Close()
}

func (c *Client) dispatch(msg wire.Message) {
	switch msg.Type {
	case wire.TypeAction:
		eng, ok := c.engines[msg.Container]
		if !ok {
			c.logger.Warn("frame for unknown container", "container", msg.Container)
			return
		}
		c.mu.Lock()
		eng.HandleEnvelope(*msg.Envelope)
		c.mu.Unlock()

	case wire.TypeCommand:
		c.mu.Lock()
		hooks := append([]func(wire.Command){}, c.commands...)
		c.mu.Unlock()
		c.logger.Debug("command received", "name", msg.Command.Name)
		for _, fn := range hooks {
			fn(*msg.Command)
		}
	}
}

// forward sends an engine's outbound actions. Called with mu held.
func (c *Client) forward(eng *engine.Engine) func(engine.Outbound) {
	return func(o engine.Outbound) {
		env, err := eng.Encode(o.Action)
		if err != nil {
			c.logger.Error("encode outbound action", "container", o.Container, "error", err)
			return
		}
		if err := c.writeLocked(wire.ActionMessage(o.Container, o.Seq, env)); err != nil {
			c.logger.Debug("outbound action dropped", "container", o.Container, "error", err)
		}
	}
}

func (c *Client) writeLocked(m wire.Message) error {
	if c.ws == nil {
		return ErrNotConnected
	}
	data, err := wire.Encode(m)
	if err != nil {
		return err
	}
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Mutate runs fn against a container with inbound dispatch held off. The
// changes fn makes are sent to the hub as they happen.
func (c *Client) Mutate(containerType string, fn func(*container.Container) error) error {
	eng, ok := c.engines[containerType]
	if !ok {
		return fmt.Errorf("unknown container %q", containerType)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return fn(eng.Container())
}

// View runs fn against a container with inbound dispatch held off. fn must
// not mutate.
func (c *Client) View(containerType string, fn func(*container.Container)) error {
	return c.Mutate(containerType, func(ct *container.Container) error {
		fn(ct)
		return nil
	})
}

// Digest hashes a container's current snapshot.
func (c *Client) Digest(containerType string) (string, error) {
	eng, ok := c.engines[containerType]
	if !ok {
		return "", fmt.Errorf("unknown container %q", containerType)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return eng.Digest()
}

// OnUpdated registers fn for the updated signal of every container. fn runs
// on the reader goroutine with the client mutex held.
func (c *Client) OnUpdated(fn func(engine.Updated)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, eng := range c.engines {
		eng.OnUpdated(fn)
	}
}

// OnCommand registers fn for server commands (notification, pong).
func (c *Client) OnCommand(fn func(wire.Command)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commands = append(c.commands, fn)
}

// Open asks the hub to open an instance of module.
func (c *Client) Open(module string) error {
	return c.command(wire.Command{Name: wire.CmdOpen, Module: module})
}

// Close asks the hub to close an open instance.
func (c *Client) Close(instanceID string) error {
	return c.command(wire.Command{Name: wire.CmdClose, InstanceID: instanceID})
}

// Ping asks the hub to echo message in a pong.
func (c *Client) Ping(message string) error {
	return c.command(wire.Command{Name: wire.CmdPing, Message: message})
}

func (c *Client) command(cmd wire.Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeLocked(wire.CommandMessage(cmd))
}
