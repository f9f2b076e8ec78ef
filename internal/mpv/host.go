package mpv

import (
	"context"
	"fmt"
	"os"
	"strings"

	"danmakuflow/internal/config"
	"danmakuflow/internal/engine"
)

var (
	_ engine.Host         = (*Client)(nil)
	_ engine.Events       = (*Client)(nil)
	_ engine.ConfigReader = (*Client)(nil)
)

// property reads name; an error or a null value counts as unavailable.
func (c *Client) property(name string) (any, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	data, err := c.Command(ctx, "get_property", name)
	if err != nil {
		c.log.Debug("get_property failed", "name", name, "error", err)
		return nil, false
	}
	return data, data != nil
}

func (c *Client) Number(name string) (float64, bool) {
	v, _ := c.property(name)
	f, ok := v.(float64)
	return f, ok
}

func (c *Client) String(name string) (string, bool) {
	v, _ := c.property(name)
	s, ok := v.(string)
	return s, ok
}

func (c *Client) Bool(name string) (bool, bool) {
	v, _ := c.property(name)
	b, ok := v.(bool)
	return b, ok
}

// PushOverlay replaces the comment layer with ASS event lines laid out on a
// width x height canvas.
func (c *Client) PushOverlay(text string, width, height int) {
	c.run("osd-overlay", overlayID, "ass-events", text, width, height)
}

func (c *Client) ClearOverlay() {
	c.run("osd-overlay", overlayID, "none", "")
}

func (c *Client) ShowMessage(text string) {
	c.run("show-text", text)
}

// run issues a command whose reply only matters for the log.
func (c *Client) run(args ...any) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	if _, err := c.Command(ctx, args...); err != nil {
		c.log.Warn("command failed", "error", err)
	}
}

// ExpandPath resolves mpv path prefixes such as "~~/".
func (c *Client) ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	data, err := c.Command(ctx, "expand-path", path)
	if err != nil {
		return "", err
	}
	out, ok := data.(string)
	if !ok {
		return "", &CommandError{Command: "expand-path", Reason: fmt.Sprintf("unexpected reply %T", data)}
	}
	return out, nil
}

// ReadConfig loads the script-opts file for this client's script name.
func (c *Client) ReadConfig() (map[string]string, error) {
	path := c.optsPath
	if path == "" {
		path = "~~/script-opts/" + c.name + ".conf"
	}
	path, err := c.ExpandPath(path)
	if err != nil {
		return nil, err
	}
	c.log.Debug("reading options", "path", path)
	return config.ReadScriptOpts(path)
}

// ReadFile reads a file named by an option value, expanding mpv path
// prefixes first.
func (c *Client) ReadFile(path string) ([]byte, error) {
	path, err := c.ExpandPath(path)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}
