package config

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"danmakuflow/internal/danmaku"
)

// Options are the rendering options read from the player's script-opts
// file.
type Options struct {
	FontSize      float64
	Transparency  uint8
	ReservedSpace float64
	Speed         float64
	NoOverlap     bool
}

// DefaultOptions matches an empty options file.
func DefaultOptions() Options {
	return Options{
		FontSize:     40,
		Transparency: 0x30,
		Speed:        1,
		NoOverlap:    true,
	}
}

// Spacing is the gap between lanes and after each comment.
func (o Options) Spacing() float64 {
	return o.FontSize / 10
}

// ReadScriptOpts reads a key=value options file. Lines starting with '#'
// are comments. A missing file is an empty map.
func ReadScriptOpts(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read options: %w", err)
	}
	defer f.Close()

	opts := map[string]string{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.HasPrefix(line, "#") {
			continue
		}
		if k, v, ok := strings.Cut(line, "="); ok {
			opts[k] = v
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read options: %w", err)
	}
	return opts, nil
}

// FileReader loads the file a filter option refers to.
type FileReader func(path string) ([]byte, error)

// ParseOptions builds options and the comment filter from the options map.
// Values that fail validation keep their defaults. A broken filter_bilibili
// file is reported as ErrConfigParse; everything else still applies.
func ParseOptions(m map[string]string, read FileReader) (Options, *danmaku.Filter, error) {
	opts := DefaultOptions()
	filter := &danmaku.Filter{Sources: danmaku.SourceSet{}}
	if read == nil {
		read = os.ReadFile
	}

	if f, err := strconv.ParseFloat(m["font_size"], 64); err == nil && f > 0 {
		opts.FontSize = f
	}
	if t, err := strconv.ParseUint(m["transparency"], 10, 8); err == nil {
		opts.Transparency = uint8(t)
	}
	if r, err := strconv.ParseFloat(m["reserved_space"], 64); err == nil && r >= 0 && r < 1 {
		opts.ReservedSpace = r
	}
	if s, err := strconv.ParseFloat(m["speed"], 64); err == nil && s > 0 {
		opts.Speed = s
	}
	switch m["no_overlap"] {
	case "yes":
		opts.NoOverlap = true
	case "no":
		opts.NoOverlap = false
	}

	if v := m["filter"]; v != "" {
		filter.Keywords = append(filter.Keywords, strings.Split(v, ",")...)
	}
	if v := m["filter_source"]; v != "" {
		filter.Sources = danmaku.ParseSourceSet(v)
	}

	var err error
	if path := m["filter_bilibili"]; path != "" {
		var kws []string
		kws, err = bilibiliKeywords(path, read)
		filter.Keywords = append(filter.Keywords, kws...)
	}
	return opts, filter, err
}

type bilibiliRule struct {
	Type   int    `json:"type"`
	Filter string `json:"filter"`
	Opened bool   `json:"opened"`
}

// bilibiliKeywords reads a block-list exported from bilibili and keeps the
// enabled plain-text rules.
func bilibiliKeywords(path string, read FileReader) ([]string, error) {
	data, err := read(path)
	if err != nil {
		return nil, fmt.Errorf("%w: filter_bilibili: %v", danmaku.ErrConfigParse, err)
	}
	var rules []bilibiliRule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("%w: filter_bilibili: %v", danmaku.ErrConfigParse, err)
	}
	var kws []string
	for _, r := range rules {
		if r.Type == 0 && r.Opened && r.Filter != "" {
			kws = append(kws, r.Filter)
		}
	}
	return kws, nil
}
