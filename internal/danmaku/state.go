package danmaku

// ScrollKind tags the variant held by a ScrollState.
type ScrollKind uint8

const (
	KindUnscheduled ScrollKind = iota
	KindScheduled
	KindSkipped
)

// ScrollState is the per-comment scheduling state. X, Lane and Step are
// only meaningful when Kind is KindScheduled. The zero value is Unscheduled.
type ScrollState struct {
	Kind ScrollKind
	X    float64
	Lane int
	Step float64
}

func Unscheduled() ScrollState { return ScrollState{} }

func Skipped() ScrollState { return ScrollState{Kind: KindSkipped} }

// Scheduled places a comment at x in lane, moving step screen widths per tick.
func Scheduled(x float64, lane int, step float64) ScrollState {
	return ScrollState{Kind: KindScheduled, X: x, Lane: lane, Step: step}
}

// Advance moves a scheduled comment dx to the left. Other variants are
// returned unchanged.
func (s ScrollState) Advance(dx float64) ScrollState {
	if s.Kind != KindScheduled {
		return s
	}
	return Scheduled(s.X-dx, s.Lane, s.Step)
}

func (s ScrollState) String() string {
	switch s.Kind {
	case KindScheduled:
		return "scheduled"
	case KindSkipped:
		return "skipped"
	default:
		return "unscheduled"
	}
}
