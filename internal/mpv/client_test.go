package mpv

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"danmakuflow/internal/engine"
)

// fakeMPV answers IPC requests on a unix socket.
type fakeMPV struct {
	ln       net.Listener
	h        handler
	accepted chan struct{}

	wmu  sync.Mutex
	conn net.Conn

	mu       sync.Mutex
	commands [][]any
}

type handler func(args []any) (data any, errStr string)

func succeed([]any) (any, string) { return nil, "" }

func startFake(t *testing.T, h handler, opts ...Option) (*Client, *fakeMPV) {
	t.Helper()
	sock := filepath.Join(t.TempDir(), "mpv.sock")
	ln, err := net.Listen("unix", sock)
	if err != nil {
		t.Fatal(err)
	}
	f := &fakeMPV{ln: ln, h: h, accepted: make(chan struct{})}
	go f.accept()

	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	c, err := Dial(context.Background(), sock, opts...)
	if err != nil {
		ln.Close()
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() {
		c.Close()
		ln.Close()
		f.hangUp()
	})
	return c, f
}

func (f *fakeMPV) accept() {
	conn, err := f.ln.Accept()
	if err != nil {
		return
	}
	f.wmu.Lock()
	f.conn = conn
	f.wmu.Unlock()
	close(f.accepted)
	f.serve(conn)
}

func (f *fakeMPV) serve(conn net.Conn) {
	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		var req struct {
			Command   []any           `json:"command"`
			RequestID json.RawMessage `json:"request_id"`
		}
		if err := json.Unmarshal(sc.Bytes(), &req); err != nil {
			continue
		}
		var data any
		errStr := ""
		if len(req.Command) == 0 || req.Command[0] != "observe_property" {
			f.mu.Lock()
			f.commands = append(f.commands, req.Command)
			f.mu.Unlock()
			data, errStr = f.h(req.Command)
		}
		if errStr == "" {
			errStr = "success"
		}
		f.send(map[string]any{"request_id": req.RequestID, "error": errStr, "data": data})
	}
}

func (f *fakeMPV) send(v any) {
	<-f.accepted
	b, _ := json.Marshal(v)
	f.wmu.Lock()
	defer f.wmu.Unlock()
	f.conn.Write(append(b, '\n'))
}

func (f *fakeMPV) hangUp() {
	f.wmu.Lock()
	defer f.wmu.Unlock()
	if f.conn != nil {
		f.conn.Close()
	}
}

func (f *fakeMPV) last() []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.commands) == 0 {
		return nil
	}
	return f.commands[len(f.commands)-1]
}

func properties(props map[string]any) handler {
	return func(args []any) (any, string) {
		if len(args) < 2 || args[0] != "get_property" {
			return nil, ""
		}
		name, _ := args[1].(string)
		v, ok := props[name]
		if !ok {
			return nil, "property unavailable"
		}
		return v, ""
	}
}

func TestProperties(t *testing.T) {
	c, _ := startFake(t, properties(map[string]any{
		"time-pos":    12.5,
		"media-title": "Show 3",
		"pause":       true,
		"path":        nil,
	}))

	if v, ok := c.Number("time-pos"); !ok || v != 12.5 {
		t.Errorf("Number(time-pos) = %v, %v", v, ok)
	}
	if v, ok := c.String("media-title"); !ok || v != "Show 3" {
		t.Errorf("String(media-title) = %q, %v", v, ok)
	}
	if v, ok := c.Bool("pause"); !ok || !v {
		t.Errorf("Bool(pause) = %v, %v", v, ok)
	}
	if _, ok := c.Number("osd-width"); ok {
		t.Error("unavailable property reported ok")
	}
	if _, ok := c.String("path"); ok {
		t.Error("null property reported ok")
	}
	if _, ok := c.Number("media-title"); ok {
		t.Error("string property read as a number")
	}
}

func TestCommandError(t *testing.T) {
	c, _ := startFake(t, func([]any) (any, string) { return nil, "invalid parameter" })

	_, err := c.Command(context.Background(), "frobnicate")
	var cerr *CommandError
	if !errors.As(err, &cerr) || cerr.Command != "frobnicate" || !strings.Contains(cerr.Reason, "invalid parameter") {
		t.Fatalf("error = %v", err)
	}
}

func TestCommandHonorsContext(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	c, _ := startFake(t, func([]any) (any, string) {
		<-block
		return nil, ""
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.Command(ctx, "get_property", "pause"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want deadline exceeded", err)
	}
}

func TestPushOverlay(t *testing.T) {
	c, f := startFake(t, succeed)

	c.PushOverlay(`{\pos(1,2)}hi`, 1920, 1080)

	got := f.last()
	want := []any{"osd-overlay", float64(0), "ass-events", `{\pos(1,2)}hi`, float64(1920), float64(1080)}
	if len(got) != len(want) {
		t.Fatalf("command = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("arg %d = %v, want %v", i, got[i], want[i])
		}
	}

	c.ClearOverlay()
	got = f.last()
	if len(got) != 4 || got[0] != "osd-overlay" || got[2] != "none" || got[3] != "" {
		t.Errorf("clear command = %v", got)
	}
}

func TestShowMessage(t *testing.T) {
	c, f := startFake(t, succeed)

	c.ShowMessage("Danmaku: on")

	args := f.last()
	if len(args) != 2 || args[0] != "show-text" || args[1] != "Danmaku: on" {
		t.Fatalf("command = %v", args)
	}
}

func TestWaitEvent(t *testing.T) {
	c, f := startFake(t, succeed)
	ctx := context.Background()

	tests := []struct {
		send map[string]any
		want engine.Event
	}{
		{
			map[string]any{"event": "client-message", "args": []string{"danmaku-delay", "1.5"}},
			engine.Event{Kind: engine.EventClientMessage, Args: []string{"danmaku-delay", "1.5"}},
		},
		{map[string]any{"event": "seek"}, engine.Event{Kind: engine.EventSeek}},
		{
			map[string]any{"event": "property-change", "id": 1, "name": "pause", "data": false},
			engine.Event{Kind: engine.EventPropertyChange, Name: "pause"},
		},
		{map[string]any{"event": "file-loaded"}, engine.Event{Kind: engine.EventFileLoaded}},
	}
	f.send(map[string]any{"event": "audio-reconfig"})
	for _, tt := range tests {
		f.send(tt.send)
		ev, err := c.WaitEvent(ctx, time.Second)
		if err != nil {
			t.Fatal(err)
		}
		if ev.Kind != tt.want.Kind || ev.Name != tt.want.Name || len(ev.Args) != len(tt.want.Args) {
			t.Fatalf("event = %+v, want %+v", ev, tt.want)
		}
		for i := range tt.want.Args {
			if ev.Args[i] != tt.want.Args[i] {
				t.Fatalf("args = %q, want %q", ev.Args, tt.want.Args)
			}
		}
	}
}

func TestUnreadEventsDoNotStallCommands(t *testing.T) {
	c, f := startFake(t, properties(map[string]any{"time-pos": 3.0}))

	for i := 0; i < 500; i++ {
		f.send(map[string]any{"event": "property-change", "id": 1, "name": "pause", "data": i%2 == 0})
	}
	f.send(map[string]any{"event": "client-message", "args": []string{"danmaku-toggle"}})

	start := time.Now()
	if v, ok := c.Number("time-pos"); !ok || v != 3 {
		t.Fatalf("Number(time-pos) = %v, %v", v, ok)
	}
	if d := time.Since(start); d > requestTimeout/2 {
		t.Fatalf("property read took %v with events pending", d)
	}

	pauses, messages := 0, 0
	deadline := time.Now().Add(2 * time.Second)
	for messages == 0 && time.Now().Before(deadline) {
		ev, err := c.WaitEvent(context.Background(), 100*time.Millisecond)
		if err != nil {
			t.Fatal(err)
		}
		switch ev.Kind {
		case engine.EventPropertyChange:
			pauses++
		case engine.EventClientMessage:
			messages++
		}
	}
	if messages != 1 {
		t.Fatal("client message lost behind property changes")
	}
	if pauses == 0 || pauses >= 500 {
		t.Fatalf("got %d pause changes, want them coalesced", pauses)
	}
}

func TestWaitEventTimeout(t *testing.T) {
	c, _ := startFake(t, succeed)

	ev, err := c.WaitEvent(context.Background(), 10*time.Millisecond)
	if err != nil || ev.Kind != engine.EventNone {
		t.Fatalf("WaitEvent() = %+v, %v", ev, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.WaitEvent(ctx, -1); !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

func TestConnectionLoss(t *testing.T) {
	c, f := startFake(t, succeed)

	f.hangUp()

	ev, err := c.WaitEvent(context.Background(), 2*time.Second)
	if err != nil || ev.Kind != engine.EventShutdown {
		t.Fatalf("WaitEvent() = %+v, %v", ev, err)
	}
	if _, err := c.Command(context.Background(), "get_property", "pause"); !errors.Is(err, ErrClosed) {
		t.Fatalf("Command() error = %v, want ErrClosed", err)
	}
	if _, ok := c.Number("time-pos"); ok {
		t.Fatal("property read succeeded after disconnect")
	}
}

func TestReadConfigExpandsScriptOptsPath(t *testing.T) {
	dir := t.TempDir()
	opts := filepath.Join(dir, "danmaku.conf")
	if err := os.WriteFile(opts, []byte("# comment\nfont_size=30\nno_overlap=no\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, _ := startFake(t, func(args []any) (any, string) {
		if len(args) == 2 && args[0] == "expand-path" && args[1] == "~~/script-opts/danmaku.conf" {
			return opts, ""
		}
		return nil, "invalid parameter"
	})

	m, err := c.ReadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if m["font_size"] != "30" || m["no_overlap"] != "no" || len(m) != 2 {
		t.Fatalf("ReadConfig() = %v", m)
	}
}

func TestReadFileSkipsExpansionForPlainPaths(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	if err := os.WriteFile(path, []byte("[]"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, f := startFake(t, succeed)

	b, err := c.ReadFile(path)
	if err != nil || string(b) != "[]" {
		t.Fatalf("ReadFile() = %q, %v", b, err)
	}
	if cmd := f.last(); cmd != nil {
		t.Fatalf("sent %v for a plain path", cmd)
	}
}
