package questdag

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kqwyf/dialogtrace/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func quest(id int, next ...int) *model.Quest {
	return &model.Quest{ID: id, SuggestedNext: next}
}

func TestBuild_NoCycleRemoval_BothDirections(t *testing.T) {
	db := model.NewDatabase()
	db.Quests[1] = quest(1, 2)
	db.Quests[2] = quest(2)

	Build(db, false, discardLogger())

	assert.Equal(t, []int{2}, db.Quests[1].NextQuests)
	assert.Equal(t, []int{1}, db.Quests[2].PrevQuests)
}

func TestBuild_RemovesSimpleCycle(t *testing.T) {
	db := model.NewDatabase()
	db.Quests[1] = quest(1, 2)
	db.Quests[2] = quest(2, 3)
	db.Quests[3] = quest(3, 1)

	Build(db, true, discardLogger())

	// Exactly one edge must have been removed to break the 1->2->3->1 cycle.
	total := 0
	for _, id := range db.SortedQuestIDs() {
		total += len(db.Quests[id].NextQuests)
	}
	assert.Equal(t, 2, total)
	assertAcyclic(t, db)
}

func TestBuild_DeterministicAcrossRuns(t *testing.T) {
	build := func() map[int][]int {
		db := model.NewDatabase()
		db.Quests[1] = quest(1, 2)
		db.Quests[2] = quest(2, 3)
		db.Quests[3] = quest(3, 1, 4)
		db.Quests[4] = quest(4, 2)
		Build(db, true, discardLogger())
		out := make(map[int][]int)
		for _, id := range db.SortedQuestIDs() {
			out[id] = db.Quests[id].NextQuests
		}
		return out
	}

	first := build()
	second := build()
	assert.Equal(t, first, second)
}

func TestBuild_UnrelatedComponentsUntouched(t *testing.T) {
	db := model.NewDatabase()
	db.Quests[1] = quest(1, 2)
	db.Quests[2] = quest(2, 1) // a 2-cycle component
	db.Quests[10] = quest(10, 11)
	db.Quests[11] = quest(11)

	Build(db, true, discardLogger())

	assert.Equal(t, []int{11}, db.Quests[10].NextQuests)
	assertAcyclic(t, db)
}

func assertAcyclic(t *testing.T, db *model.Database) {
	t.Helper()
	color := make(map[int]int) // 0=white,1=gray,2=black
	var dfs func(int) bool
	dfs = func(n int) bool {
		color[n] = 1
		for _, next := range db.Quests[n].NextQuests {
			if color[next] == 1 {
				return true
			}
			if color[next] == 0 && dfs(next) {
				return true
			}
		}
		color[n] = 2
		return false
	}
	for _, id := range db.SortedQuestIDs() {
		if color[id] == 0 {
			assert.False(t, dfs(id), "cycle detected reachable from quest %d", id)
		}
	}
}
