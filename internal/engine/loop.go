package engine

import (
	"context"
	"strings"
	"time"

	"danmakuflow/internal/lane"
)

// Client messages understood by the engine, sent with mpv's script-message.
const (
	MsgToggle       = "toggle-danmaku"
	MsgDelay        = "danmaku-delay"
	MsgFilterSource = "danmaku-filter-source"
	MsgSpeed        = "danmaku-speed"
)

// Run is the control loop. It blocks on the next player event, waking
// every tick only while comments are shown and playback is running, and
// returns when the player shuts down or ctx is done.
func (e *Engine) Run(ctx context.Context, events Events) error {
	defer e.Close()
	for {
		ev, err := events.WaitEvent(ctx, e.waitTimeout())
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		switch ev.Kind {
		case EventShutdown:
			e.log.Info("player shut down")
			return nil
		case EventFileLoaded:
			m := e.currentMedia()
			e.log.Info("media loaded", "path", m.Path, "title", m.Title)
			e.OnMediaLoaded(m)
		case EventSeek:
			if e.Enabled() {
				e.OnSeek()
			}
		case EventClientMessage:
			e.HandleMessage(ev.Args)
		}

		if e.Enabled() {
			e.render()
		}
	}
}

func (e *Engine) waitTimeout() time.Duration {
	if !e.Enabled() {
		return -1
	}
	if paused, ok := e.host.Bool("pause"); ok && !paused {
		return lane.Interval
	}
	return -1
}

// HandleMessage dispatches a client message. Unknown messages are ignored
// since other scripts share the channel.
func (e *Engine) HandleMessage(args []string) {
	if len(args) == 0 {
		return
	}
	rest := strings.Join(args[1:], " ")
	switch args[0] {
	case MsgToggle:
		e.Toggle()
	case MsgDelay:
		_ = e.OnDelayAdjust(rest)
	case MsgFilterSource:
		e.OnFilterSourceOverride(rest)
	case MsgSpeed:
		_ = e.OnSpeedAdjust(rest)
	}
}
