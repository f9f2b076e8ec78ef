package danmaku

import (
	"sort"
	"strings"
)

// Source is the site a comment was originally posted on.
type Source uint8

const (
	Unknown Source = iota
	Bilibili
	Gamer
	AcFun
	Tencent
	IQIYI
	D
	Dandan
)

var sourceNames = map[string]Source{
	"bilibili": Bilibili,
	"gamer":    Gamer,
	"acfun":    AcFun,
	"qq":       Tencent,
	"iqiyi":    IQIYI,
	"d":        D,
	"dandan":   Dandan,
}

// ParseSource looks a site name up case-insensitively. Unrecognised names
// map to Unknown.
func ParseSource(name string) Source {
	if s, ok := sourceNames[strings.ToLower(strings.TrimSpace(name))]; ok {
		return s
	}
	return Unknown
}

func (s Source) String() string {
	switch s {
	case Bilibili:
		return "bilibili"
	case Gamer:
		return "gamer"
	case AcFun:
		return "acfun"
	case Tencent:
		return "qq"
	case IQIYI:
		return "iqiyi"
	case D:
		return "d"
	case Dandan:
		return "dandan"
	default:
		return "unknown"
	}
}

// SourceSet is a set of sources.
type SourceSet map[Source]struct{}

// ParseSourceSet reads a comma separated list of site names. Unknown names
// are dropped.
func ParseSourceSet(csv string) SourceSet {
	set := SourceSet{}
	for _, part := range strings.Split(csv, ",") {
		if s := ParseSource(part); s != Unknown {
			set[s] = struct{}{}
		}
	}
	return set
}

func (s SourceSet) Contains(src Source) bool {
	_, ok := s[src]
	return ok
}

func (s SourceSet) String() string {
	names := make([]string, 0, len(s))
	for src := range s {
		names = append(names, src.String())
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

// Color is an RGB triple.
type Color struct {
	R, G, B uint8
}

// Comment is one ingested remark. Time, Text, Width, Color and Source are
// fixed after normalization; Blocked and State change at runtime.
type Comment struct {
	Time    float64
	Text    string
	Width   int
	Color   Color
	Source  Source
	Blocked bool
	State   ScrollState
}

// ResetAll returns every comment to Unscheduled.
func ResetAll(comments []Comment) {
	for i := range comments {
		comments[i].State = Unscheduled()
	}
}
