// Package engine owns the comment set of the playing media and drives the
// lane scheduler against the player clock.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"strings"
	"sync"

	"danmakuflow/internal/config"
	"danmakuflow/internal/danmaku"
	"danmakuflow/internal/lane"
)

// Media identifies what the player has loaded.
type Media struct {
	Path  string
	Title string
}

// Frame is one overlay update.
type Frame struct {
	Width, Height int
	Alpha         uint8
	Placements    []lane.Placement
	Text          string
}

// Status is a snapshot for the control API.
type Status struct {
	Enabled     bool    `json:"enabled"`
	Loaded      bool    `json:"loaded"`
	Fetching    bool    `json:"fetching"`
	Comments    int     `json:"comments"`
	Blocked     int     `json:"blocked"`
	Delay       float64 `json:"delay"`
	ScrollSpeed float64 `json:"scrollSpeed"`
	Override    string  `json:"sourceOverride,omitempty"`
	Media       string  `json:"media,omitempty"`
}

// Engine is the single owner of danmaku state for one player.
type Engine struct {
	host    Host
	backend Backend
	log     *slog.Logger
	sched   *lane.Scheduler

	ctx  context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	// mu guards everything below. Critical sections never wait on the
	// network or on the host.
	mu        sync.Mutex
	enabled   bool
	opts      config.Options
	filter    *danmaku.Filter
	comments  []danmaku.Comment // nil until a fetch completes
	from      int
	delay     float64
	media     Media
	cancel    context.CancelFunc
	gen       uint64
	observers []FrameObserver
}

// Option configures an Engine.
type Option func(*Engine)

// WithRandSource seeds the scheduler's step draws.
func WithRandSource(src rand.Source) Option {
	return func(e *Engine) { e.sched = lane.New(src) }
}

// WithLogger replaces the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// New returns a disabled engine with default options.
func New(host Host, backend Backend, opts ...Option) *Engine {
	ctx, stop := context.WithCancel(context.Background())
	e := &Engine{
		host:    host,
		backend: backend,
		log:     slog.Default(),
		ctx:     ctx,
		stop:    stop,
		opts:    config.DefaultOptions(),
		filter:  &danmaku.Filter{Sources: danmaku.SourceSet{}},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.sched == nil {
		e.sched = lane.New(nil)
	}
	e.log = e.log.With("component", "engine")
	return e
}

// Configure applies the player's option map. A broken filter rule file is
// reported to the user; the remaining options still take effect.
func (e *Engine) Configure(m map[string]string, read config.FileReader) {
	opts, filter, err := config.ParseOptions(m, read)
	if err != nil {
		e.fail("options", err)
	}
	e.mu.Lock()
	e.opts = opts
	e.filter = filter
	e.mu.Unlock()
	e.log.Info("options applied",
		"font_size", opts.FontSize,
		"no_overlap", opts.NoOverlap,
		"keywords", len(filter.Keywords),
		"sources", filter.Sources.String(),
	)
}

// AddObserver registers a frame mirror.
func (e *Engine) AddObserver(o FrameObserver) {
	e.mu.Lock()
	e.observers = append(e.observers, o)
	e.mu.Unlock()
}

// Enabled reports whether comments are being shown.
func (e *Engine) Enabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enabled
}

// Enable starts showing comments and fetches them for the current media.
func (e *Engine) Enable() {
	media := e.currentMedia()
	e.mu.Lock()
	if e.enabled {
		e.mu.Unlock()
		return
	}
	e.enabled = true
	if media != (Media{}) {
		e.media = media
	}
	e.mu.Unlock()

	e.host.ShowMessage("Danmaku: on")

	e.mu.Lock()
	if e.enabled && e.cancel == nil && e.comments == nil {
		e.startFetchLocked()
	}
	e.mu.Unlock()
}

// Disable hides the overlay, abandons any fetch and drops the comment set.
func (e *Engine) Disable() {
	e.mu.Lock()
	if !e.enabled {
		e.mu.Unlock()
		return
	}
	e.enabled = false
	e.cancelFetchLocked()
	e.comments = nil
	e.from = 0
	e.mu.Unlock()

	e.clearOverlay()
	e.host.ShowMessage("Danmaku: off")
}

// Toggle flips between Enable and Disable.
func (e *Engine) Toggle() {
	if e.Enabled() {
		e.Disable()
	} else {
		e.Enable()
	}
}

// OnMediaLoaded replaces the comment set for new media. The delay resets.
func (e *Engine) OnMediaLoaded(m Media) {
	e.mu.Lock()
	e.cancelFetchLocked()
	e.comments = nil
	e.from = 0
	e.delay = 0
	e.media = m
	enabled := e.enabled
	if enabled {
		e.startFetchLocked()
	}
	e.mu.Unlock()

	if enabled {
		e.clearOverlay()
	}
}

// Reload drops the comment set and fetches it again. Unlike a media
// change the delay is kept.
func (e *Engine) Reload() {
	e.mu.Lock()
	e.cancelFetchLocked()
	e.comments = nil
	e.from = 0
	enabled := e.enabled
	if enabled {
		e.startFetchLocked()
	}
	e.mu.Unlock()

	if enabled {
		e.clearOverlay()
	}
}

// OnSeek invalidates every lane assignment, skipped comments included.
func (e *Engine) OnSeek() {
	e.mu.Lock()
	e.resetLocked()
	e.mu.Unlock()
}

// OnDelayAdjust shifts all comments by the given number of seconds.
func (e *Engine) OnDelayAdjust(arg string) error {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return e.fail("danmaku-delay", fmt.Errorf("%w: required argument seconds not set", danmaku.ErrArgument))
	}
	seconds, err := strconv.ParseFloat(arg, 64)
	if err != nil {
		return e.fail("danmaku-delay", fmt.Errorf("%w: invalid time %q", danmaku.ErrArgument, arg))
	}

	e.mu.Lock()
	e.delay += seconds
	delay := e.delay
	e.resetLocked()
	e.mu.Unlock()

	e.host.ShowMessage(fmt.Sprintf("Danmaku delay: %.2f ms", delay*1000))
	return nil
}

// OnSpeedAdjust sets the scroll speed factor relative to the nominal
// crossing time.
func (e *Engine) OnSpeedAdjust(arg string) error {
	arg = strings.TrimSpace(arg)
	speed, err := strconv.ParseFloat(arg, 64)
	if err != nil || speed <= 0 {
		return e.fail("danmaku-speed", fmt.Errorf("%w: invalid speed %q", danmaku.ErrArgument, arg))
	}

	e.mu.Lock()
	e.opts.Speed = speed
	e.resetLocked()
	e.mu.Unlock()

	e.host.ShowMessage(fmt.Sprintf("Danmaku speed: %.2fx", speed))
	return nil
}

// OnFilterSourceOverride replaces the source block list at runtime. An
// empty list restores the configured one.
func (e *Engine) OnFilterSourceOverride(csv string) {
	csv = strings.TrimSpace(csv)
	e.mu.Lock()
	if csv == "" {
		e.filter.SetOverride(nil)
	} else {
		e.filter.SetOverride(danmaku.ParseSourceSet(csv))
	}
	e.filter.Apply(e.comments)
	e.from = 0
	desc := "default"
	if set, ok := e.filter.Override(); ok {
		desc = set.String()
		if desc == "" {
			desc = "none"
		}
	}
	e.mu.Unlock()

	e.host.ShowMessage("Danmaku source filter: " + desc)
}

// Tick advances the scheduler to pos and returns the overlay text.
func (e *Engine) Tick(pos, speed, osdWidth, osdHeight float64) string {
	return e.frame(pos, speed, osdWidth, osdHeight).Text
}

func (e *Engine) frame(pos, speed, osdWidth, osdHeight float64) Frame {
	width, height := lane.Viewport(osdWidth, osdHeight)

	e.mu.Lock()
	defer e.mu.Unlock()
	f := Frame{Width: int(width), Height: int(height), Alpha: e.opts.Transparency}
	if !e.enabled || e.comments == nil {
		return f
	}
	p := lane.Params{
		Pos:           pos,
		Speed:         speed,
		Delay:         e.delay,
		Width:         width,
		Height:        height,
		FontSize:      e.opts.FontSize,
		Spacing:       e.opts.Spacing(),
		ReservedSpace: e.opts.ReservedSpace,
		NoOverlap:     e.opts.NoOverlap,
		ScrollSpeed:   e.opts.Speed,
	}
	f.Placements, e.from = e.sched.Schedule(e.comments, e.from, p)
	f.Text = lane.Join(f.Placements, f.Alpha)
	return f
}

// render reads the player clock and pushes one frame.
func (e *Engine) render() {
	pos, ok1 := e.host.Number("time-pos")
	speed, ok2 := e.host.Number("speed")
	w, ok3 := e.host.Number("osd-width")
	h, ok4 := e.host.Number("osd-height")
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return
	}

	f := e.frame(pos, speed, w, h)
	if f.Text == "" {
		e.clearOverlay()
		return
	}
	e.host.PushOverlay(f.Text, f.Width, f.Height)
	for _, o := range e.snapshotObservers() {
		o.OnFrame(f)
	}
}

func (e *Engine) clearOverlay() {
	e.host.ClearOverlay()
	for _, o := range e.snapshotObservers() {
		o.OnClear()
	}
}

func (e *Engine) snapshotObservers() []FrameObserver {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]FrameObserver(nil), e.observers...)
}

// Status returns a snapshot of the engine state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := Status{
		Enabled:     e.enabled,
		Loaded:      e.comments != nil,
		Fetching:    e.cancel != nil,
		Comments:    len(e.comments),
		Delay:       e.delay,
		ScrollSpeed: e.opts.Speed,
		Media:       e.media.Title,
	}
	if st.Media == "" {
		st.Media = e.media.Path
	}
	for _, c := range e.comments {
		if c.Blocked {
			st.Blocked++
		}
	}
	if set, ok := e.filter.Override(); ok {
		st.Override = set.String()
	}
	return st
}

// Close abandons any fetch in flight and waits for it to return.
func (e *Engine) Close() {
	e.mu.Lock()
	e.cancelFetchLocked()
	e.mu.Unlock()
	e.stop()
	e.wg.Wait()
}

func (e *Engine) resetLocked() {
	danmaku.ResetAll(e.comments)
	e.from = 0
}

func (e *Engine) currentMedia() Media {
	var m Media
	m.Path, _ = e.host.String("path")
	m.Title, _ = e.host.String("media-title")
	return m
}

// fail reports a non-fatal error once to the user and once to the log.
func (e *Engine) fail(op string, err error) error {
	e.log.Error(op+" failed", "error", err)
	e.host.ShowMessage("Danmaku: " + userMessage(err))
	return err
}

func userMessage(err error) string {
	for _, known := range []error{
		danmaku.ErrNoMatch,
		danmaku.ErrAmbiguousMatch,
		danmaku.ErrEpisodeOutOfRange,
		danmaku.ErrNoLinksAvailable,
		danmaku.ErrVipSiteNotFound,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return err.Error()
}
