package dandanplay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"danmakuflow/internal/danmaku"
)

func TestParseTitle(t *testing.T) {
	tests := []struct {
		in   string
		want Query
	}{
		{"Frieren", Query{Title: "Frieren", Episode: 1}},
		{"Frieren 5", Query{Title: "Frieren", Episode: 5}},
		{"Frieren-12", Query{Title: "Frieren", Episode: 12}},
		{"Frieren/3", Query{Title: "Frieren", Episode: 3}},
		{"Frieren 2-5", Query{Title: "Frieren", Season: 2, Episode: 5}},
		{"Spy-Family 2x7", Query{Title: "Spy-Family", Season: 2, Episode: 7}},
		{"Frieren S2E5", Query{Title: "Frieren", Season: 2, Episode: 5}},
		{"Frieren Season 2 Episode 5", Query{Title: "Frieren", Season: 2, Episode: 5}},
		{"Frieren EP05", Query{Title: "Frieren", Episode: 5}},
		{"Orange 5", Query{Title: "Orange", Episode: 5}},
		{"葬送的芙莉莲第5集", Query{Title: "葬送的芙莉莲", Episode: 5}},
		{"葬送的芙莉莲 第2季 第5集", Query{Title: "葬送的芙莉莲", Season: 2, Episode: 5}},
		{"  Frieren  ", Query{Title: "Frieren", Episode: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseTitle(tt.in); got != tt.want {
				t.Errorf("ParseTitle(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestQueryKeyword(t *testing.T) {
	if got := (Query{Title: "A", Season: 1}).Keyword(); got != "A" {
		t.Errorf("season 1 keyword = %q", got)
	}
	if got := (Query{Title: "A", Season: 3}).Keyword(); got != "A 第3季" {
		t.Errorf("season 3 keyword = %q", got)
	}
}

func TestLinkDecodesBareString(t *testing.T) {
	var links []Link
	in := `["https://a/1", {"url":"https://a/2","playlink_num":"2"}]`
	if err := json.Unmarshal([]byte(in), &links); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := []Link{{URL: "https://a/1"}, {URL: "https://a/2", Num: "2"}}
	if len(links) != 2 || links[0] != want[0] || links[1] != want[1] {
		t.Errorf("links = %+v, want %+v", links, want)
	}
}

func TestRowDecodesByCategory(t *testing.T) {
	in := `[
		{"cat_id":"2","titleTxt":"S","seriesPlaylinks":["u1","u2"]},
		{"cat_id":1,"titleTxt":"M","playlinks":{"youku":"y"}},
		{"cat_id":"3","titleTxt":"V","en_id":"e1","episode_total":{"qq":10}},
		{"cat_id":"7","titleTxt":"X"},
		{"titleTxt":"none"},
		{"cat_id":"7","titleTxt":["x"],"playlinks":["a","b"],"episode_total":"n/a"},
		"not an object"
	]`
	var rows []Row
	if err := json.Unmarshal([]byte(in), &rows); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	kinds := []RowKind{RowSeries, RowMovie, RowShow, RowUnsupported, RowUnsupported, RowUnsupported, RowUnsupported}
	if len(rows) != len(kinds) {
		t.Fatalf("decoded %d rows, want %d", len(rows), len(kinds))
	}
	for i, k := range kinds {
		if rows[i].Kind != k {
			t.Errorf("row %d kind = %v, want %v", i, rows[i].Kind, k)
		}
	}
	if len(rows[0].Episodes) != 2 || rows[1].Links["youku"] != "y" || rows[2].Totals["qq"] != 10 {
		t.Errorf("rows decoded wrong: %+v", rows)
	}
}

func searchResult(rows string) string {
	return `{"data":{"longData":{"rows":` + rows + `}}}`
}

func TestSearch(t *testing.T) {
	tests := []struct {
		name    string
		rows    string
		query   Query
		want    PlayID
		wantErr error
	}{
		{
			name:  "series episode",
			rows:  `[{"cat_id":"4","seriesPlaylinks":["https://e/1",{"url":"https://e/2"},"https://e/3"]}]`,
			query: Query{Title: "x", Episode: 2},
			want:  "https://e/2",
		},
		{
			name:    "series out of range",
			rows:    `[{"cat_id":"2","seriesPlaylinks":["https://e/1"]}]`,
			query:   Query{Title: "x", Episode: 2},
			wantErr: danmaku.ErrEpisodeOutOfRange,
		},
		{
			name:  "movie provider priority",
			rows:  `[{"cat_id":"1","playlinks":{"imgo":"https://m/imgo","qiyi":"https://m/qiyi"}}]`,
			query: Query{Title: "x", Episode: 1},
			want:  "https://m/qiyi",
		},
		{
			name:    "movie without links",
			rows:    `[{"cat_id":"1","playlinks":{"unknownsite":"https://m/u"}}]`,
			query:   Query{Title: "x", Episode: 1},
			wantErr: danmaku.ErrNoLinksAvailable,
		},
		{
			name:    "show without totals",
			rows:    `[{"cat_id":"3","en_id":"e","episode_total":{}}]`,
			query:   Query{Title: "x", Episode: 1},
			wantErr: danmaku.ErrVipSiteNotFound,
		},
		{
			name:    "show episode beyond total",
			rows:    `[{"cat_id":"3","en_id":"e","episode_total":{"youku":4}}]`,
			query:   Query{Title: "x", Episode: 5},
			wantErr: danmaku.ErrEpisodeOutOfRange,
		},
		{
			name:  "skips unsupported rows",
			rows:  `[{"cat_id":"9"},{"cat_id":"2","seriesPlaylinks":["https://e/1"]}]`,
			query: Query{Title: "x", Episode: 1},
			want:  "https://e/1",
		},
		{
			name:  "skips unsupported rows of another shape",
			rows:  `[{"cat_id":"7","playlinks":["a","b"]},{"cat_id":"2","seriesPlaylinks":["https://e/1"]}]`,
			query: Query{Title: "x", Episode: 1},
			want:  "https://e/1",
		},
		{
			name:    "no rows",
			rows:    `[]`,
			query:   Query{Title: "x", Episode: 1},
			wantErr: danmaku.ErrNoMatch,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := fakeAPI(t, map[string]func(http.ResponseWriter, *http.Request){
				"/index": body(searchResult(tt.rows)),
			})
			c := NewClient(WithSearchURL(srv.URL))

			got, err := c.Search(context.Background(), tt.query)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("PlayID = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSearchShowUsesOffset(t *testing.T) {
	srv := fakeAPI(t, map[string]func(http.ResponseWriter, *http.Request){
		"/index": func(w http.ResponseWriter, r *http.Request) {
			if kw := r.URL.Query().Get("kw"); kw != "Variety 第2季" {
				t.Errorf("kw = %q", kw)
			}
			body(searchResult(`[{"cat_id":"3","en_id":"ent9","episode_total":{"youku":20,"qq":30}}]`))(w, r)
		},
		"/episodeszongyi": func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if q.Get("entid") != "ent9" || q.Get("site") != "qq" || q.Get("offset") != "27" {
				t.Errorf("query = %v, want entid=ent9 site=qq offset=27", q)
			}
			body(`{"data":{"list":[{"url":"https://v/ep3"}]}}`)(w, r)
		},
	})
	c := NewClient(WithSearchURL(srv.URL))

	got, err := c.Search(context.Background(), Query{Title: "Variety", Season: 2, Episode: 3})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got != "https://v/ep3" {
		t.Errorf("PlayID = %q", got)
	}
}
