package engine

import (
	"context"
	"sync"
	"time"

	"danmakuflow/internal/danmaku"
	"danmakuflow/internal/dandanplay"
)

// fakeHost records everything the engine asks the player to do.
type fakeHost struct {
	mu       sync.Mutex
	numbers  map[string]float64
	strings  map[string]string
	bools    map[string]bool
	messages []string
	overlays []string
	clears   int
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		numbers: map[string]float64{
			"time-pos":   0,
			"speed":      1,
			"osd-width":  1280,
			"osd-height": 720,
		},
		strings: map[string]string{},
		bools:   map[string]bool{"pause": false},
	}
}

func (h *fakeHost) Number(name string) (float64, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.numbers[name]
	return v, ok
}

func (h *fakeHost) String(name string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.strings[name]
	return v, ok
}

func (h *fakeHost) Bool(name string) (bool, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.bools[name]
	return v, ok
}

func (h *fakeHost) PushOverlay(text string, width, height int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.overlays = append(h.overlays, text)
}

func (h *fakeHost) ClearOverlay() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clears++
}

func (h *fakeHost) ShowMessage(text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, text)
}

func (h *fakeHost) set(name string, v any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch v := v.(type) {
	case float64:
		h.numbers[name] = v
	case string:
		h.strings[name] = v
	case bool:
		h.bools[name] = v
	}
}

func (h *fakeHost) Messages() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.messages...)
}

func (h *fakeHost) Overlays() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.overlays...)
}

// fakeBackend serves a fixed result, optionally holding each call until
// release is closed or the context ends.
type fakeBackend struct {
	raws     []danmaku.RawComment
	matchErr error
	release  chan struct{}

	mu       sync.Mutex
	matched  []string
	searched []dandanplay.Query
}

func (b *fakeBackend) wait(ctx context.Context) error {
	if b.release == nil {
		return nil
	}
	select {
	case <-b.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *fakeBackend) MatchFile(ctx context.Context, path string) (dandanplay.TrackID, error) {
	b.mu.Lock()
	b.matched = append(b.matched, path)
	b.mu.Unlock()
	if err := b.wait(ctx); err != nil {
		return 0, err
	}
	if b.matchErr != nil {
		return 0, b.matchErr
	}
	return 1, nil
}

func (b *fakeBackend) Comments(ctx context.Context, id dandanplay.TrackID) ([]danmaku.RawComment, error) {
	return b.raws, nil
}

func (b *fakeBackend) Search(ctx context.Context, q dandanplay.Query) (dandanplay.PlayID, error) {
	b.mu.Lock()
	b.searched = append(b.searched, q)
	b.mu.Unlock()
	if err := b.wait(ctx); err != nil {
		return "", err
	}
	if b.matchErr != nil {
		return "", b.matchErr
	}
	return "https://example.com/ep", nil
}

func (b *fakeBackend) ExternalComments(ctx context.Context, id dandanplay.PlayID) ([]danmaku.RawComment, error) {
	return b.raws, nil
}

// fakeEvents feeds queued events and reports timeouts when empty.
type fakeEvents struct {
	ch       chan Event
	mu       sync.Mutex
	timeouts []time.Duration
}

func newFakeEvents(evs ...Event) *fakeEvents {
	ch := make(chan Event, len(evs)+1)
	for _, ev := range evs {
		ch <- ev
	}
	return &fakeEvents{ch: ch}
}

func (f *fakeEvents) WaitEvent(ctx context.Context, timeout time.Duration) (Event, error) {
	f.mu.Lock()
	f.timeouts = append(f.timeouts, timeout)
	f.mu.Unlock()
	select {
	case ev := <-f.ch:
		return ev, nil
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}
