package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"danmakuflow/internal/danmaku"
	"danmakuflow/internal/dandanplay"
)

// Backend matches media to comment tracks and downloads them.
// *dandanplay.Client implements it.
type Backend interface {
	MatchFile(ctx context.Context, path string) (dandanplay.TrackID, error)
	Comments(ctx context.Context, id dandanplay.TrackID) ([]danmaku.RawComment, error)
	Search(ctx context.Context, q dandanplay.Query) (dandanplay.PlayID, error)
	ExternalComments(ctx context.Context, id dandanplay.PlayID) ([]danmaku.RawComment, error)
}

var errNoMedia = errors.New("nothing is playing")

// fetchRaw picks the fingerprint strategy for local files and the search
// strategy for everything else.
func fetchRaw(ctx context.Context, b Backend, m Media) ([]danmaku.RawComment, error) {
	if isLocalFile(m.Path) {
		id, err := b.MatchFile(ctx, m.Path)
		if err != nil {
			return nil, err
		}
		return b.Comments(ctx, id)
	}

	title := m.Title
	if title == "" {
		title = filepath.Base(m.Path)
	}
	if title == "" || title == "." {
		return nil, errNoMedia
	}
	q := dandanplay.ParseTitle(title)
	id, err := b.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	return b.ExternalComments(ctx, id)
}

func isLocalFile(path string) bool {
	if path == "" {
		return false
	}
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}

// startFetchLocked cancels any fetch in flight and starts a new one for the
// current media. Callers hold e.mu.
func (e *Engine) startFetchLocked() {
	e.cancelFetchLocked()
	ctx, cancel := context.WithCancel(e.ctx)
	e.cancel = cancel
	e.gen++
	gen := e.gen
	media := e.media
	keywords := &danmaku.Filter{Keywords: e.filter.Keywords}
	log := e.log.With("fetch", uuid.NewString())

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		log.Info("fetching comments", "path", media.Path, "title", media.Title)
		raws, err := fetchRaw(ctx, e.backend, media)
		var comments []danmaku.Comment
		if err == nil {
			comments = danmaku.Normalize(raws, keywords)
		}
		e.finishFetch(ctx, gen, comments, err, log)
	}()
}

func (e *Engine) cancelFetchLocked() {
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}

// finishFetch hands a completed fetch over to the shared set. Results of a
// superseded or cancelled fetch are dropped without a trace.
func (e *Engine) finishFetch(ctx context.Context, gen uint64, comments []danmaku.Comment, err error, log *slog.Logger) {
	e.mu.Lock()
	if gen != e.gen || ctx.Err() != nil {
		e.mu.Unlock()
		return
	}
	e.cancelFetchLocked()
	enabled := e.enabled
	if err != nil {
		e.mu.Unlock()
		log.Error("fetch failed", "error", err)
		if enabled {
			e.host.ShowMessage("Danmaku: " + userMessage(err))
		}
		return
	}

	e.filter.Apply(comments)
	e.comments = comments
	e.from = 0
	n := len(comments)
	e.mu.Unlock()

	log.Info("comments loaded", "count", n)
	if !enabled {
		return
	}
	if paused, ok := e.host.Bool("pause"); ok && paused {
		e.render()
	}
	e.host.ShowMessage(loadedMessage(n))
}

func loadedMessage(n int) string {
	if n == 1 {
		return "Loaded 1 danmaku comment"
	}
	return fmt.Sprintf("Loaded %d danmaku comments", n)
}
