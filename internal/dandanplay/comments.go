package dandanplay

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"danmakuflow/internal/danmaku"
)

type commentResponse struct {
	Count    int `json:"count"`
	Comments []struct {
		CID int64  `json:"cid"`
		P   string `json:"p"`
		M   string `json:"m"`
	} `json:"comments"`
}

// Comments downloads the comment track of an episode, including comments
// relayed from other sites.
func (c *Client) Comments(ctx context.Context, id TrackID) ([]danmaku.RawComment, error) {
	u := fmt.Sprintf("%s/api/v2/comment/%d?withRelated=true", c.baseURL, id)
	return c.fetchComments(ctx, u)
}

// ExternalComments downloads the comments of a third-party video page.
func (c *Client) ExternalComments(ctx context.Context, id PlayID) ([]danmaku.RawComment, error) {
	u := c.baseURL + "/api/v2/extcomment?" + url.Values{"url": {string(id)}}.Encode()
	return c.fetchComments(ctx, u)
}

func (c *Client) fetchComments(ctx context.Context, u string) ([]danmaku.RawComment, error) {
	var resp commentResponse
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return nil, fmt.Errorf("comments: %w", err)
	}
	raws := make([]danmaku.RawComment, 0, len(resp.Comments))
	for _, cm := range resp.Comments {
		raw, err := parseP(cm.P)
		if err != nil {
			return nil, fmt.Errorf("comment %d: %w", cm.CID, err)
		}
		raw.Message = cm.M
		raws = append(raws, raw)
	}
	return raws, nil
}

// parseP decodes the "time,mode,color,user" attribute string.
func parseP(p string) (danmaku.RawComment, error) {
	parts := strings.SplitN(p, ",", 4)
	if len(parts) < 4 {
		return danmaku.RawComment{}, fmt.Errorf("%w: attributes %q", danmaku.ErrResponseParse, p)
	}
	t, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return danmaku.RawComment{}, fmt.Errorf("%w: time %q", danmaku.ErrResponseParse, parts[0])
	}
	return danmaku.RawComment{Time: t, Color: parts[2], User: parts[3]}, nil
}
