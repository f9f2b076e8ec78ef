package danmaku

import "errors"

// Failures surfaced while loading comments or handling runtime commands.
// None of them is fatal: callers show one message, log, and carry on.
var (
	ErrNoMatch           = errors.New("no matching episode")
	ErrAmbiguousMatch    = errors.New("multiple matching episodes")
	ErrEpisodeOutOfRange = errors.New("episode out of range")
	ErrNoLinksAvailable  = errors.New("no play links available")
	ErrVipSiteNotFound   = errors.New("no site with a known episode count")
	ErrNetwork           = errors.New("network error")
	ErrResponseParse     = errors.New("unexpected response")
	ErrConfigParse       = errors.New("invalid filter rules")
	ErrArgument          = errors.New("invalid argument")
)
