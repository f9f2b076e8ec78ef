package danmaku

import "strings"

// Filter decides which comments are dropped at ingestion and which are
// hidden at runtime. It is not safe for concurrent use; the engine guards it
// together with the comment set.
type Filter struct {
	// Keywords permanently drop any comment whose message contains one of them.
	Keywords []string
	// Sources hides comments from these sites unless an override is active.
	Sources SourceSet

	override *SourceSet
}

// Excluded reports whether a message contains a blocked keyword.
func (f *Filter) Excluded(message string) bool {
	for _, kw := range f.Keywords {
		if kw != "" && strings.Contains(message, kw) {
			return true
		}
	}
	return false
}

// Blocked reports whether comments from src are currently hidden.
func (f *Filter) Blocked(src Source) bool {
	if f.override != nil {
		return f.override.Contains(src)
	}
	return f.Sources.Contains(src)
}

// SetOverride replaces the static source set. A nil set reverts to it.
func (f *Filter) SetOverride(set SourceSet) {
	if set == nil {
		f.override = nil
		return
	}
	f.override = &set
}

// Override returns the active override and whether one is set.
func (f *Filter) Override() (SourceSet, bool) {
	if f.override == nil {
		return nil, false
	}
	return *f.override, true
}

// Apply recomputes Blocked on every comment and resets their scroll state,
// since a different visible set invalidates earlier lane assignments.
func (f *Filter) Apply(comments []Comment) {
	for i := range comments {
		comments[i].Blocked = f.Blocked(comments[i].Source)
		comments[i].State = Unscheduled()
	}
}
