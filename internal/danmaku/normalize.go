package danmaku

import (
	"sort"
	"strconv"
	"strings"

	"github.com/rivo/uniseg"
)

// RawComment is a comment record as returned by a comment backend.
type RawComment struct {
	Time    float64
	Color   string
	Message string
	User    string
}

// Normalize turns raw records into comments sorted by time. Comments that
// hit a keyword are dropped; Blocked is computed from the source filter.
func Normalize(raws []RawComment, f *Filter) []Comment {
	comments := make([]Comment, 0, len(raws))
	for _, raw := range raws {
		if f.Excluded(raw.Message) {
			continue
		}
		src := ClassifySource(raw.User)
		comments = append(comments, Comment{
			Time:    raw.Time,
			Text:    EscapeText(raw.Message),
			Width:   uniseg.GraphemeClusterCount(raw.Message),
			Color:   ParseColor(raw.Color),
			Source:  src,
			Blocked: f.Blocked(src),
		})
	}
	sort.SliceStable(comments, func(i, j int) bool {
		return comments[i].Time < comments[j].Time
	})
	return comments
}

// EscapeText keeps the overlay line format single-line safe.
func EscapeText(s string) string {
	return strings.ReplaceAll(s, "\n", `\N`)
}

// ClassifySource infers the origin site from a comment's user field.
// Digits only means a native dandanplay user; "[site]name" names a relayed
// site.
func ClassifySource(user string) Source {
	if isDigits(user) {
		return Dandan
	}
	rest, ok := strings.CutPrefix(user, "[")
	if !ok {
		return Unknown
	}
	name, _, ok := strings.Cut(rest, "]")
	if !ok {
		return Unknown
	}
	return ParseSource(name)
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// ParseColor decodes a packed decimal RGB value or a hex string such as
// "#FF8800". Anything it cannot read is black.
func ParseColor(s string) Color {
	s = strings.TrimSpace(s)
	if s == "" {
		return Color{}
	}
	if isDigits(s) {
		c, err := strconv.ParseUint(s, 10, 32)
		if err != nil || c > 0xFFFFFF {
			return Color{}
		}
		return Color{R: uint8(c / 65536), G: uint8(c / 256 % 256), B: uint8(c % 256)}
	}

	hex := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(hex) == 7 && !isHexDigit(hex[0]) {
		hex = hex[1:]
	}
	if len(hex) != 6 {
		return Color{}
	}
	c, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Color{}
	}
	return Color{R: uint8(c >> 16), G: uint8(c >> 8), B: uint8(c)}
}

func isHexDigit(b byte) bool {
	return ('0' <= b && b <= '9') || ('a' <= b && b <= 'f') || ('A' <= b && b <= 'F')
}
