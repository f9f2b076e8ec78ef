package lane

import (
	"fmt"
	"strconv"
	"strings"

	"danmakuflow/internal/danmaku"
)

// Placement is one comment visible on the current tick.
type Placement struct {
	X, Y     float64
	Color    danmaku.Color
	FontSize float64
	Text     string
}

// ASS renders the placement as an ASS event line. alpha is the ASS
// transparency, 0 opaque to 255 invisible.
func (p Placement) ASS(alpha uint8) string {
	return fmt.Sprintf(`{\pos(%s,%s)\c&H%02x%02x%02x&\alpha&H%02x\fs%s\bord1.5\shad0\b1\q2}%s`,
		num(p.X), num(p.Y),
		p.Color.B, p.Color.G, p.Color.R,
		alpha, num(p.FontSize), p.Text)
}

// Join renders every placement into one overlay update.
func Join(placements []Placement, alpha uint8) string {
	lines := make([]string, len(placements))
	for i, p := range placements {
		lines[i] = p.ASS(alpha)
	}
	return strings.Join(lines, "\n")
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
