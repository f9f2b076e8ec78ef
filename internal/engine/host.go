package engine

import (
	"context"
	"time"
)

// Properties reads player state. Each call reports false when the property
// is unavailable.
type Properties interface {
	Number(name string) (float64, bool)
	String(name string) (string, bool)
	Bool(name string) (bool, bool)
}

// Overlay replaces the comment layer drawn over the current frame.
type Overlay interface {
	PushOverlay(text string, width, height int)
	ClearOverlay()
}

// Messenger shows a transient message to the user.
type Messenger interface {
	ShowMessage(text string)
}

// ConfigReader returns the static key-value options.
type ConfigReader interface {
	ReadConfig() (map[string]string, error)
}

// Host is everything the engine needs from the player.
type Host interface {
	Properties
	Overlay
	Messenger
}

// EventKind identifies a player event.
type EventKind int

const (
	EventNone EventKind = iota // wait timed out
	EventShutdown
	EventFileLoaded
	EventSeek
	EventClientMessage
	EventPropertyChange
)

// Event is one player notification.
type Event struct {
	Kind EventKind
	Args []string // client message arguments
	Name string   // changed property
}

// Events delivers player events. A negative timeout waits until an event
// arrives or ctx is done.
type Events interface {
	WaitEvent(ctx context.Context, timeout time.Duration) (Event, error)
}

// FrameObserver receives every frame the engine pushes, for mirroring.
type FrameObserver interface {
	OnFrame(f Frame)
	OnClear()
}
