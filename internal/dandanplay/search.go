package dandanplay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"danmakuflow/internal/danmaku"
)

// PlayID is a video page URL whose comments the API can relay.
type PlayID string

// RowKind tags the shape of a search result row.
type RowKind int

const (
	RowUnsupported RowKind = iota
	RowSeries
	RowMovie
	RowShow
)

// ProviderPriority orders video sites when a row offers several.
var ProviderPriority = []string{"qq", "qiyi", "youku", "imgo", "bilibili1", "pptv", "sohu", "leshi", "m1905", "xigua"}

// Link is one episode link. The index returns either a bare URL or an
// object; a bare URL decodes with an empty Num.
type Link struct {
	URL string `json:"url"`
	Num string `json:"playlink_num"`
}

func (l *Link) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		*l = Link{}
		return json.Unmarshal(b, &l.URL)
	}
	type plain Link
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*l = Link(p)
	return nil
}

// Row is one search result, decoded according to its category.
type Row struct {
	Kind  RowKind
	Title string

	// RowSeries
	Episodes []Link
	// RowMovie and RowShow
	Links map[string]string
	// RowShow
	EntityID string
	Totals   map[string]int
}

type rowHeader struct {
	CatID json.RawMessage `json:"cat_id"`
}

type seriesRow struct {
	Title           string `json:"titleTxt"`
	SeriesPlaylinks []Link `json:"seriesPlaylinks"`
}

type movieRow struct {
	Title     string            `json:"titleTxt"`
	Playlinks map[string]string `json:"playlinks"`
}

type showRow struct {
	Title        string            `json:"titleTxt"`
	EntityID     string            `json:"en_id"`
	Playlinks    map[string]string `json:"playlinks"`
	EpisodeTotal map[string]int    `json:"episode_total"`
}

// category reads cat_id, which the index sends as a string or a number.
func (h rowHeader) category() string {
	var cat string
	if err := json.Unmarshal(h.CatID, &cat); err == nil {
		return cat
	}
	var n json.Number
	if err := json.Unmarshal(h.CatID, &n); err == nil {
		return n.String()
	}
	return ""
}

// UnmarshalJSON reads cat_id first and decodes only the fields its category
// carries. Any other row stays RowUnsupported whatever its payload looks like.
func (r *Row) UnmarshalJSON(b []byte) error {
	*r = Row{}
	var h rowHeader
	if err := json.Unmarshal(b, &h); err != nil {
		return nil
	}
	switch h.category() {
	case "2", "4":
		var v seriesRow
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*r = Row{Kind: RowSeries, Title: v.Title, Episodes: v.SeriesPlaylinks}
	case "1":
		var v movieRow
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*r = Row{Kind: RowMovie, Title: v.Title, Links: v.Playlinks}
	case "3":
		var v showRow
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*r = Row{Kind: RowShow, Title: v.Title, Links: v.Playlinks, EntityID: v.EntityID, Totals: v.EpisodeTotal}
	}
	return nil
}

type searchResponse struct {
	Data struct {
		LongData struct {
			Rows []Row `json:"rows"`
		} `json:"longData"`
	} `json:"data"`
}

type showEpisodesResponse struct {
	Data struct {
		List []Link `json:"list"`
	} `json:"data"`
}

// Search resolves a parsed title to a play page using the first result row
// of a supported kind.
func (c *Client) Search(ctx context.Context, q Query) (PlayID, error) {
	var resp searchResponse
	u := c.searchURL + "/index?" + url.Values{"kw": {q.Keyword()}}.Encode()
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return "", fmt.Errorf("search %q: %w", q.Title, err)
	}
	for _, row := range resp.Data.LongData.Rows {
		if row.Kind == RowUnsupported {
			continue
		}
		return c.resolveRow(ctx, row, q.Episode)
	}
	return "", danmaku.ErrNoMatch
}

func (c *Client) resolveRow(ctx context.Context, row Row, episode int) (PlayID, error) {
	switch row.Kind {
	case RowSeries:
		if episode < 1 || episode > len(row.Episodes) {
			return "", fmt.Errorf("%w: %d of %d", danmaku.ErrEpisodeOutOfRange, episode, len(row.Episodes))
		}
		return PlayID(row.Episodes[episode-1].URL), nil

	case RowMovie:
		for _, site := range ProviderPriority {
			if link := row.Links[site]; link != "" {
				return PlayID(link), nil
			}
		}
		return "", danmaku.ErrNoLinksAvailable

	case RowShow:
		for _, site := range ProviderPriority {
			total, ok := row.Totals[site]
			if !ok || total <= 0 {
				continue
			}
			if episode < 1 || episode > total {
				return "", fmt.Errorf("%w: %d of %d", danmaku.ErrEpisodeOutOfRange, episode, total)
			}
			return c.showEpisode(ctx, row.EntityID, site, total-episode)
		}
		return "", danmaku.ErrVipSiteNotFound
	}
	return "", danmaku.ErrNoMatch
}

// showEpisode pages through a show's episode list, newest first.
func (c *Client) showEpisode(ctx context.Context, entityID, site string, offset int) (PlayID, error) {
	v := url.Values{
		"entid":  {entityID},
		"site":   {site},
		"offset": {strconv.Itoa(offset)},
		"count":  {"1"},
	}
	var resp showEpisodesResponse
	if err := c.getJSON(ctx, c.searchURL+"/episodeszongyi?"+v.Encode(), &resp); err != nil {
		return "", fmt.Errorf("show episodes: %w", err)
	}
	if len(resp.Data.List) == 0 || resp.Data.List[0].URL == "" {
		return "", danmaku.ErrEpisodeOutOfRange
	}
	return PlayID(resp.Data.List[0].URL), nil
}
