package dandanplay

import (
	"regexp"
	"strconv"
	"strings"
)

// Query is a parsed "title season-episode" string.
type Query struct {
	Title   string
	Season  int // 0 when not given
	Episode int
}

var titlePatterns = []struct {
	re                   *regexp.Regexp
	seasonIdx, episodeIdx int
}{
	// "Title S2E5", "Title Season 2 Episode 5"
	{regexp.MustCompile(`^(.+?)[\s\-/_]+[Ss](?:eason)?\s*(\d+)[\s\-/_.]*[Ee](?:[Pp](?:isode)?)?\s*(\d+)$`), 2, 3},
	// "标题 第2季 第5集"
	{regexp.MustCompile(`^(.+?)[\s\-/_]*第\s*(\d+)\s*[季部][\s\-/_]*第?\s*(\d+)\s*[集话話期]?$`), 2, 3},
	// "Title 2-5", "Title-2x5", "Title/2.5"
	{regexp.MustCompile(`^(.+?)[\s\-/_]+(\d+)\s*[\-/x.]\s*(\d+)$`), 2, 3},
	// "Title EP05", "Title E5"
	{regexp.MustCompile(`^(.+?)[\s\-/_]+[Ee](?:[Pp](?:isode)?)?\.?\s*(\d+)$`), 0, 2},
	// "标题第5集"
	{regexp.MustCompile(`^(.+?)[\s\-/_]*第\s*(\d+)\s*[集话話期]$`), 0, 2},
	// "Title 5", "Title-5"
	{regexp.MustCompile(`^(.+?)[\s\-/_]+(\d+)$`), 0, 2},
}

// ParseTitle splits a free-form media title into title, season and
// episode. The episode defaults to 1.
func ParseTitle(s string) Query {
	s = strings.TrimSpace(s)
	for _, p := range titlePatterns {
		m := p.re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		title := strings.TrimSpace(m[1])
		if title == "" {
			continue
		}
		q := Query{Title: title, Episode: atoi(m[p.episodeIdx])}
		if p.seasonIdx > 0 {
			q.Season = atoi(m[p.seasonIdx])
		}
		return q
	}
	return Query{Title: s, Episode: 1}
}

// Keyword is the search term sent to the index.
func (q Query) Keyword() string {
	if q.Season > 1 {
		return q.Title + " 第" + strconv.Itoa(q.Season) + "季"
	}
	return q.Title
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
