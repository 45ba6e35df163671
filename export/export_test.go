package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kqwyf/dialogtrace/model"
)

type mapResolver map[string]string

func (m mapResolver) Resolve(hash string) (string, bool) {
	v, ok := m[hash]
	return v, ok
}

type allowAllReleases struct{}

func (allowAllReleases) Allowed(model.ReleaseState) bool { return true }

func TestExport_ResolvesTrace(t *testing.T) {
	db := model.NewDatabase()
	db.Dialogs[1] = &model.Dialog{ID: 1, Role: 0, ContentHash: "h1"}
	db.Dialogs[2] = &model.Dialog{ID: 2, Role: 5, ContentHash: "h2"}
	db.Sources["s"] = &model.Source{Name: "s", Traces: [][]int{{1, 2}}}

	e := &Exporter{
		Text:    mapResolver{"h1": "Hello", "h2": "World"},
		Release: allowAllReleases{},
		Policy:  model.ExportDropMissing,
	}
	doc, dropped := e.Export(db)
	require.Empty(t, dropped)
	require.Contains(t, doc, "s")
	assert.Equal(t, []Line{{Role: 0, Content: "Hello"}, {Role: 5, Content: "World"}}, doc["s"][0])
}

func TestExport_DropPolicyDropsTraceOnMissingText(t *testing.T) {
	db := model.NewDatabase()
	db.Dialogs[1] = &model.Dialog{ID: 1, ContentHash: "h1"}
	db.Dialogs[2] = &model.Dialog{ID: 2, ContentHash: "missing"}
	db.Sources["s"] = &model.Source{Name: "s", Traces: [][]int{{1, 2}}}

	e := &Exporter{
		Text:    mapResolver{"h1": "Hello"},
		Release: allowAllReleases{},
		Policy:  model.ExportDropMissing,
	}
	doc, dropped := e.Export(db)
	assert.Equal(t, []string{"s"}, dropped)
	assert.NotContains(t, doc, "s")
}

func TestExport_TruncatePolicyKeepsPartialTrace(t *testing.T) {
	db := model.NewDatabase()
	db.Dialogs[1] = &model.Dialog{ID: 1, ContentHash: "h1"}
	db.Dialogs[2] = &model.Dialog{ID: 2, ContentHash: "missing"}
	db.Sources["s"] = &model.Source{Name: "s", Traces: [][]int{{1, 2}}}

	e := &Exporter{
		Text:    mapResolver{"h1": "Hello"},
		Release: allowAllReleases{},
		Policy:  model.ExportTruncateMissing,
	}
	doc, dropped := e.Export(db)
	require.Empty(t, dropped)
	require.Len(t, doc["s"][0], 1)
	assert.Equal(t, "Hello", doc["s"][0][0].Content)
}

func TestExport_PurgesDanglingNeighborsAfterDrop(t *testing.T) {
	db := model.NewDatabase()
	db.Dialogs[1] = &model.Dialog{ID: 1, ContentHash: "missing"}
	db.Sources["empty"] = &model.Source{Name: "empty", Traces: [][]int{{1}}}
	db.Sources["survivor"] = &model.Source{
		Name: "survivor", NextSources: []string{"empty"}, Traces: nil,
	}
	db.Dialogs[2] = &model.Dialog{ID: 2, ContentHash: "h2"}
	db.Sources["survivor"].Traces = [][]int{{2}}

	e := &Exporter{
		Text:    mapResolver{"h2": "Hi"},
		Release: allowAllReleases{},
		Policy:  model.ExportDropMissing,
	}
	_, dropped := e.Export(db)
	assert.Contains(t, dropped, "empty")
	assert.NotContains(t, db.Sources["survivor"].NextSources, "empty")
}

type curlyQuoteNormalizer struct{}

func (curlyQuoteNormalizer) Normalize(s string) string {
	s = strings.ReplaceAll(s, "“", `"`)
	s = strings.ReplaceAll(s, "”", `"`)
	return s
}

func TestExport_AppliesTextNormalizerWhenSupplied(t *testing.T) {
	db := model.NewDatabase()
	db.Dialogs[1] = &model.Dialog{ID: 1, ContentHash: "h1"}
	db.Sources["s"] = &model.Source{Name: "s", Traces: [][]int{{1}}}

	e := &Exporter{
		Text:      mapResolver{"h1": "He said “hi”"},
		Release:   allowAllReleases{},
		Policy:    model.ExportDropMissing,
		Normalize: curlyQuoteNormalizer{},
	}
	doc, _ := e.Export(db)
	assert.Equal(t, `He said "hi"`, doc["s"][0][0].Content)
}

func TestExport_LeavesTextUnchangedWithoutNormalizer(t *testing.T) {
	db := model.NewDatabase()
	db.Dialogs[1] = &model.Dialog{ID: 1, ContentHash: "h1"}
	db.Sources["s"] = &model.Source{Name: "s", Traces: [][]int{{1}}}

	e := &Exporter{
		Text:    mapResolver{"h1": "He said “hi”"},
		Release: allowAllReleases{},
		Policy:  model.ExportDropMissing,
	}
	doc, _ := e.Export(db)
	assert.Equal(t, "He said “hi”", doc["s"][0][0].Content)
}
