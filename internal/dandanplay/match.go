package dandanplay

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"danmakuflow/internal/danmaku"
)

// hashPrefix is how much of the file the match API fingerprints.
const hashPrefix = 16 << 20

// TrackID identifies an episode's comment track.
type TrackID int64

type matchRequest struct {
	FileName string `json:"fileName"`
	FileHash string `json:"fileHash"`
}

type matchResponse struct {
	IsMatched bool `json:"isMatched"`
	Matches   []struct {
		EpisodeID    int64  `json:"episodeId"`
		AnimeTitle   string `json:"animeTitle"`
		EpisodeTitle string `json:"episodeTitle"`
	} `json:"matches"`
}

// FileHash returns the hex MD5 of the first 16 MiB of the file.
func FileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, io.LimitReader(f, hashPrefix)); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// MatchFile resolves a local file to a comment track by content hash and
// file name. It never guesses between several candidates.
func (c *Client) MatchFile(ctx context.Context, path string) (TrackID, error) {
	hash, err := FileHash(path)
	if err != nil {
		return 0, fmt.Errorf("hash %s: %w", filepath.Base(path), err)
	}

	var resp matchResponse
	req := matchRequest{FileName: filepath.Base(path), FileHash: hash}
	if err := c.postJSON(ctx, c.baseURL+"/api/v2/match", req, &resp); err != nil {
		return 0, fmt.Errorf("match: %w", err)
	}
	switch {
	case len(resp.Matches) > 1:
		return 0, danmaku.ErrAmbiguousMatch
	case !resp.IsMatched || len(resp.Matches) == 0:
		return 0, danmaku.ErrNoMatch
	}
	return TrackID(resp.Matches[0].EpisodeID), nil
}
