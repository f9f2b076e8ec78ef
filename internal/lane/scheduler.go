// Package lane places scrolling comments into horizontal lanes so that
// comments sharing a lane never catch up with each other.
//
// Positions are in overlay pixels; a step is the fraction of the overlay
// width a comment travels per tick. Lane state is never carried between
// ticks: every call refolds the comments already due, and scheduled
// comments contribute their live position exactly as new ones do.
package lane

import (
	"math"
	"math/rand"
	"time"

	"danmakuflow/internal/danmaku"
)

const (
	// Interval is the tick length the step unit is defined against.
	Interval = 5 * time.Millisecond
	// Duration is the nominal time a comment takes to cross the screen at
	// minimum speed.
	Duration = 12 * time.Second

	// MinStep crosses the screen in exactly Duration.
	MinStep = float64(Interval) / float64(Duration)
	// MaxStep is the fastest a comment may scroll.
	MaxStep = 1.3 * MinStep

	baseWidth  = 1920.0
	baseHeight = 1080.0
)

// Params describes one tick.
type Params struct {
	Pos           float64 // playback position, seconds
	Speed         float64 // playback speed
	Delay         float64 // seconds added to every comment time
	Width, Height float64
	FontSize      float64
	Spacing       float64
	ReservedSpace float64 // fraction of Height kept free at the bottom
	NoOverlap     bool
	// ScrollSpeed scales both step bounds; zero means 1.
	ScrollSpeed float64
}

// Lane is the bookkeeping for one row during a single tick.
type Lane struct {
	End  float64 // right edge of the occupant that bounds admission
	Step float64 // that occupant's step
}

// Viewport fits the 1920x1080 overlay resolution to the host's aspect
// ratio, shrinking whichever side is too long.
func Viewport(osdWidth, osdHeight float64) (width, height float64) {
	width, height = baseWidth, baseHeight
	if osdWidth <= 0 || osdHeight <= 0 {
		return width, height
	}
	ratio := osdWidth / osdHeight
	if ratio > width/height {
		height = width / ratio
	} else if ratio < width/height {
		width = height * ratio
	}
	return width, height
}

// LaneCount is the number of rows that fit above the reserved area.
func LaneCount(p Params) int {
	n := int(p.Height * (1 - p.ReservedSpace) / (p.FontSize + p.Spacing))
	return max(n, 1)
}

// Scheduler assigns lanes and steps. Step rates are drawn from its random
// source; seed it for reproducible placements.
type Scheduler struct {
	rng *rand.Rand
}

// New returns a Scheduler drawing from src, or from a time-seeded source
// when src is nil.
func New(src rand.Source) *Scheduler {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &Scheduler{rng: rand.New(src)}
}

func (p Params) bounds() (minStep, maxStep float64) {
	scale := p.ScrollSpeed
	if scale <= 0 {
		scale = 1
	}
	return MinStep * scale, MaxStep * scale
}

// Schedule runs one tick over comments, which must be sorted by time.
// It starts at index from; every comment before from must be culled or
// skipped. It returns the visible placements and the index to pass as from
// on the next tick.
func (s *Scheduler) Schedule(comments []danmaku.Comment, from int, p Params) ([]Placement, int) {
	minStep, maxStep := p.bounds()
	lanes := make([]Lane, LaneCount(p))
	for i := range lanes {
		lanes[i] = Lane{End: 0, Step: minStep}
	}
	lineHeight := p.FontSize + p.Spacing
	interval := Interval.Seconds()

	var placements []Placement
	next := from
	settled := true
	for i := from; i < len(comments); i++ {
		c := &comments[i]
		due := c.Time + p.Delay
		if due > p.Pos {
			break
		}
		if c.Blocked || c.State.Kind == danmaku.KindSkipped {
			if settled {
				next = i + 1
			}
			continue
		}

		if c.State.Kind == danmaku.KindUnscheduled {
			ticks := (p.Pos - due) / interval
			c.State = s.admit(lanes, ticks, p, minStep, maxStep)
			if c.State.Kind == danmaku.KindSkipped {
				if settled {
					next = i + 1
				}
				continue
			}
		}

		st := c.State
		extent := float64(c.Width)*p.FontSize + p.Spacing
		if st.X+extent <= 0 {
			if settled {
				next = i + 1
			}
			continue
		}
		settled = false

		placements = append(placements, Placement{
			X:        st.X,
			Y:        float64(st.Lane) * lineHeight,
			Color:    c.Color,
			FontSize: p.FontSize,
			Text:     c.Text,
		})

		st = st.Advance(p.Width * st.Step * p.Speed)
		c.State = st
		if st.Lane < len(lanes) {
			l := &lanes[st.Lane]
			newEnd := st.X + extent
			if newEnd/st.Step > l.End/l.Step {
				*l = Lane{End: newEnd, Step: st.Step}
			}
		}
	}
	return placements, next
}

// admit picks a lane and step for a comment that became due ticks ago.
func (s *Scheduler) admit(lanes []Lane, ticks float64, p Params, minStep, maxStep float64) danmaku.ScrollState {
	start := p.Width - p.Width*ticks*minStep
	for i, l := range lanes {
		if l.End >= start {
			continue
		}
		ceiling := Ceiling(l, ticks, p.Width, maxStep)
		step := minStep
		if ceiling > minStep {
			step = minStep + s.rng.Float64()*(ceiling-minStep)
		}
		return danmaku.Scheduled(p.Width-p.Width*ticks*step, i, step)
	}

	if p.NoOverlap {
		return danmaku.Skipped()
	}
	best := 0
	for i := range lanes {
		if lanes[i].End < lanes[best].End {
			best = i
		}
	}
	return danmaku.Scheduled(start, best, minStep)
}

// Ceiling is the fastest step a comment due ticks ago may take in lane l
// without its leading edge reaching the occupant's trailing edge before
// both leave the screen.
func Ceiling(l Lane, ticks, width, maxStep float64) float64 {
	if l.End == 0 {
		return maxStep
	}
	return math.Min(maxStep, 1/(ticks+l.End/(width*l.Step)))
}
