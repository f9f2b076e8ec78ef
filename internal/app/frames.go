package app

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"danmakuflow/internal/engine"
)

type frameItem struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Color string  `json:"color"`
	Size  float64 `json:"size"`
	Text  string  `json:"text"`
}

type frameMessage struct {
	Type    string      `json:"type"`
	Width   int         `json:"width"`
	Height  int         `json:"height"`
	Opacity float64     `json:"opacity"`
	Items   []frameItem `json:"items"`
}

func encodeFrame(f engine.Frame) ([]byte, error) {
	msg := frameMessage{
		Type:    "frame",
		Width:   f.Width,
		Height:  f.Height,
		Opacity: 1 - float64(f.Alpha)/255,
		Items:   make([]frameItem, len(f.Placements)),
	}
	for i, p := range f.Placements {
		msg.Items[i] = frameItem{
			X:     p.X,
			Y:     p.Y,
			Color: fmt.Sprintf("#%02x%02x%02x", p.Color.R, p.Color.G, p.Color.B),
			Size:  p.FontSize,
			Text:  strings.ReplaceAll(p.Text, `\N`, " "),
		}
	}
	return json.Marshal(msg)
}

// OnFrame mirrors a frame to the overlay viewers, at most once per frame
// interval.
func (s *Server) OnFrame(f engine.Frame) {
	now := time.Now()
	s.mu.Lock()
	if now.Sub(s.lastFrame) < s.frameEvery {
		s.mu.Unlock()
		return
	}
	s.lastFrame = now
	s.mu.Unlock()

	b, err := encodeFrame(f)
	if err != nil {
		s.log.Error("encode frame", "error", err)
		return
	}
	if !s.hub.Broadcast(b) {
		s.log.Debug("viewer queue full, frame dropped")
	}
}

func (s *Server) OnClear() {
	s.mu.Lock()
	s.lastFrame = time.Time{}
	s.mu.Unlock()
	s.hub.Broadcast([]byte(`{"type":"clear"}`))
}
