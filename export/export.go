// Package export resolves each source's traces into exportable
// {role, content} lines via pluggable external resolvers, applies the
// drop/truncate policy for missing text, drops empty sources, and purges
// dangling neighbor references from the final document.
package export

import (
	"github.com/kqwyf/dialogtrace/model"
)

// TextResolver looks up the display text for a content or role-name hash.
// Implementations typically wrap a game's text-map asset.
type TextResolver interface {
	Resolve(hash string) (text string, ok bool)
}

// PlaceholderResolver substitutes in-text placeholders (e.g. the active
// player's nickname) after a TextResolver has produced raw text.
type PlaceholderResolver interface {
	Substitute(text string) string
}

// TextNormalizer rewrites resolved text (quote/newline/pronoun/ruby/gender
// forms and the like) before it is exported. The façade only ever calls it
// through this seam; leaving it nil exports resolved text unmodified.
type TextNormalizer interface {
	Normalize(text string) string
}

// ReleaseFilter reports whether content in the given release state should
// be included in the export.
type ReleaseFilter interface {
	Allowed(model.ReleaseState) bool
}

// Line is one exported utterance.
type Line struct {
	Role    int    `json:"role"`
	Content string `json:"content"`
}

// Exporter assembles the final export document from a Database.
type Exporter struct {
	Text        TextResolver
	Placeholder PlaceholderResolver
	Normalize   TextNormalizer
	Release     ReleaseFilter
	Policy      model.ExportPolicy
}

// Export walks every source's traces, resolving each dialog into a Line,
// and returns the final document plus the set of source names that were
// dropped entirely (because every one of their traces ended up empty)
// so callers can log diagnostics.
func (e *Exporter) Export(db *model.Database) (map[string][][]Line, []string) {
	doc := make(map[string][][]Line)
	var dropped []string

	for _, name := range db.SortedSourceNames() {
		src := db.Sources[name]
		var traces [][]Line
		for _, trace := range src.Traces {
			line, ok := e.resolveTrace(db, trace)
			if ok && len(line) > 0 {
				traces = append(traces, line)
			}
		}
		if len(traces) == 0 {
			dropped = append(dropped, name)
			continue
		}
		doc[name] = traces
	}

	purgeDanglingNeighbors(db, dropped)
	return doc, dropped
}

func (e *Exporter) resolveTrace(db *model.Database, trace []int) ([]Line, bool) {
	var lines []Line
	for _, did := range trace {
		d, ok := db.Dialogs[did]
		if !ok {
			continue
		}
		if e.Release != nil && !e.Release.Allowed(d.Release) {
			if e.Policy == model.ExportDropMissing {
				return nil, false
			}
			break
		}
		text, ok := e.Text.Resolve(d.ContentHash)
		if !ok {
			if e.Policy == model.ExportDropMissing {
				return nil, false
			}
			break // truncate: keep what we resolved so far
		}
		if e.Placeholder != nil {
			text = e.Placeholder.Substitute(text)
		}
		if e.Normalize != nil {
			text = e.Normalize.Normalize(text)
		}
		lines = append(lines, Line{Role: d.Role, Content: text})
	}
	return lines, true
}

// purgeDanglingNeighbors drops names in dropped from every surviving
// source's neighbor lists, so the exported document never references a
// source it does not contain.
func purgeDanglingNeighbors(db *model.Database, dropped []string) {
	if len(dropped) == 0 {
		return
	}
	droppedSet := make(map[string]bool, len(dropped))
	for _, name := range dropped {
		droppedSet[name] = true
	}

	for _, name := range db.SortedSourceNames() {
		if droppedSet[name] {
			delete(db.Sources, name)
			continue
		}
		src := db.Sources[name]
		src.NextSources = purgeList(src.NextSources, droppedSet)
		src.PrevSources = purgeList(src.PrevSources, droppedSet)
		src.NextSourcesOptional = purgeList(src.NextSourcesOptional, droppedSet)
		src.PrevSourcesOptional = purgeList(src.PrevSourcesOptional, droppedSet)
	}
}

func purgeList(list []string, dropped map[string]bool) []string {
	kept := list[:0:0]
	for _, name := range list {
		if !dropped[name] {
			kept = append(kept, name)
		}
	}
	return kept
}
