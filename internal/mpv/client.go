// Package mpv talks to a running mpv over its JSON IPC socket and exposes
// it as an engine host.
package mpv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dexterlb/mpvipc"

	"danmakuflow/internal/engine"
)

const (
	requestTimeout = 2 * time.Second
	// maxQueued bounds events held for a consumer that is not reading.
	maxQueued = 1024

	// pauseObserver is the observe_property id for the pause property.
	pauseObserver = 1
	overlayID     = 0
)

// ErrClosed is returned once the connection to mpv is gone.
var ErrClosed = errors.New("mpv: connection closed")

// CommandError is an IPC reply whose error field is not "success".
type CommandError struct {
	Command string
	Reason  string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("mpv: %s: %s", e.Command, e.Reason)
}

// Client is one IPC connection. It implements engine.Host, engine.Events
// and engine.ConfigReader.
type Client struct {
	conn     *mpvipc.Connection
	log      *slog.Logger
	name     string
	optsPath string

	events    chan engine.Event
	quit      chan struct{}
	dead      chan struct{}
	forwarded chan struct{}
	closeOnce sync.Once
}

// Option configures a Client.
type Option func(*Client)

// WithLogger replaces the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithScriptName sets the name whose script-opts file ReadConfig loads.
func WithScriptName(name string) Option {
	return func(c *Client) { c.name = name }
}

// WithOptionsFile makes ReadConfig read path instead of asking mpv where
// the script-opts directory is.
func WithOptionsFile(path string) Option {
	return func(c *Client) { c.optsPath = path }
}

// Dial connects to the socket and subscribes to pause changes.
func Dial(ctx context.Context, socket string, opts ...Option) (*Client, error) {
	conn := mpvipc.NewConnection(socket)
	if err := conn.Open(); err != nil {
		return nil, fmt.Errorf("mpv: open %s: %w", socket, err)
	}
	c := newClient(conn, opts...)
	if _, err := c.Command(ctx, "observe_property", pauseObserver, "pause"); err != nil {
		c.Close()
		return nil, err
	}
	c.log.Info("connected", "socket", socket)
	return c, nil
}

func newClient(conn *mpvipc.Connection, opts ...Option) *Client {
	c := &Client{
		conn:      conn,
		log:       slog.Default(),
		name:      "danmaku",
		events:    make(chan engine.Event),
		quit:      make(chan struct{}),
		dead:      make(chan struct{}),
		forwarded: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With("component", "mpv")

	in, stop := conn.NewEventListener()
	go c.watch()
	go c.forward(in, stop)
	return c
}

// Close drops the connection and waits for event forwarding to stop.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.quit)
		if !c.conn.IsClosed() {
			err = c.conn.Close()
		}
		<-c.forwarded
	})
	return err
}

func (c *Client) watch() {
	c.conn.WaitUntilClosed()
	close(c.dead)
	c.log.Info("connection closed")
}

// forward moves events from the IPC reader to WaitEvent. It never blocks
// the reader: events wait in a local queue, where a property change that
// is already queued absorbs later ones for the same property.
func (c *Client) forward(in <-chan *mpvipc.Event, stop chan<- struct{}) {
	defer close(c.forwarded)
	defer close(stop)

	var queue []engine.Event
	for {
		var out chan<- engine.Event
		var next engine.Event
		if len(queue) > 0 {
			out, next = c.events, queue[0]
		}
		select {
		case e, ok := <-in:
			if !ok {
				in = nil
				continue
			}
			if ev, ok := translate(e); ok {
				queue = c.enqueue(queue, ev)
			}
		case out <- next:
			queue = queue[1:]
		case <-c.quit:
			return
		case <-c.dead:
			return
		}
	}
}

func (c *Client) enqueue(queue []engine.Event, ev engine.Event) []engine.Event {
	if ev.Kind == engine.EventPropertyChange {
		for _, q := range queue {
			if q.Kind == ev.Kind && q.Name == ev.Name {
				return queue
			}
		}
	}
	if len(queue) >= maxQueued {
		c.log.Warn("event queue full, dropping event", "kind", ev.Kind)
		return queue
	}
	return append(queue, ev)
}

func translate(e *mpvipc.Event) (engine.Event, bool) {
	if e == nil {
		return engine.Event{}, false
	}
	switch e.Name {
	case "shutdown":
		return engine.Event{Kind: engine.EventShutdown}, true
	case "file-loaded":
		return engine.Event{Kind: engine.EventFileLoaded}, true
	case "seek":
		return engine.Event{Kind: engine.EventSeek}, true
	case "client-message":
		return engine.Event{Kind: engine.EventClientMessage, Args: stringArgs(e.ExtraData["args"])}, true
	case "property-change":
		name, _ := e.ExtraData["name"].(string)
		return engine.Event{Kind: engine.EventPropertyChange, Name: name}, true
	}
	return engine.Event{}, false
}

func stringArgs(v any) []string {
	list, _ := v.([]any)
	args := make([]string, 0, len(list))
	for _, a := range list {
		if s, ok := a.(string); ok {
			args = append(args, s)
			continue
		}
		args = append(args, fmt.Sprint(a))
	}
	return args
}

// Command runs one positional IPC command and returns its data field.
func (c *Client) Command(ctx context.Context, args ...any) (any, error) {
	if c.conn.IsClosed() {
		return nil, ErrClosed
	}
	name := ""
	if len(args) > 0 {
		name = fmt.Sprint(args[0])
	}

	type result struct {
		data any
		err  error
	}
	done := make(chan result, 1)
	go func() {
		data, err := c.conn.Call(args...)
		done <- result{data, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			if c.conn.IsClosed() {
				return nil, ErrClosed
			}
			return nil, &CommandError{Command: name, Reason: r.err.Error()}
		}
		return r.data, nil
	case <-c.dead:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// WaitEvent returns the next event, an EventNone once timeout elapses, or
// an EventShutdown after the connection is lost.
func (c *Client) WaitEvent(ctx context.Context, timeout time.Duration) (engine.Event, error) {
	select {
	case ev := <-c.events:
		return ev, nil
	default:
	}

	var expired <-chan time.Time
	if timeout >= 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}
	select {
	case ev := <-c.events:
		return ev, nil
	case <-c.dead:
		return engine.Event{Kind: engine.EventShutdown}, nil
	case <-expired:
		return engine.Event{Kind: engine.EventNone}, nil
	case <-ctx.Done():
		return engine.Event{}, ctx.Err()
	}
}
