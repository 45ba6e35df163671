package clean

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kqwyf/dialogtrace/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPruneDanglingDialogRefs(t *testing.T) {
	db := model.NewDatabase()
	db.Dialogs[1] = &model.Dialog{ID: 1, NextDialogs: []int{2, 99}}
	db.Dialogs[2] = &model.Dialog{ID: 2}

	dropped := pruneDanglingDialogRefs(db)
	assert.Equal(t, 1, dropped)
	assert.Equal(t, []int{2}, db.Dialogs[1].NextDialogs)
}

func TestDropBrokenTalks(t *testing.T) {
	db := model.NewDatabase()
	// talk 1: init dialog 10 -> 11 (11 missing) => broken, drops 10 too
	// (visited only by the broken talk).
	db.Talks[1] = &model.Talk{ID: 1, InitDialog: 10, QuestID: -1, SubQuestID: -1}
	db.Dialogs[10] = &model.Dialog{ID: 10, NextDialogs: []int{11}}

	// talk 2: init dialog 20 -> 21, both present, intact.
	db.Talks[2] = &model.Talk{ID: 2, InitDialog: 20, QuestID: -1, SubQuestID: -1}
	db.Dialogs[20] = &model.Dialog{ID: 20, NextDialogs: []int{21}}
	db.Dialogs[21] = &model.Dialog{ID: 21}

	dropped := dropBrokenTalks(db, discardLogger())
	assert.Equal(t, 1, dropped)

	_, talk1Exists := db.Talks[1]
	assert.False(t, talk1Exists)
	_, dialog10Exists := db.Dialogs[10]
	assert.False(t, dialog10Exists)

	_, talk2Exists := db.Talks[2]
	assert.True(t, talk2Exists)
}

func TestDropBrokenTalks_SharedDialogSurvives(t *testing.T) {
	db := model.NewDatabase()
	// Both talks reach dialog 10; talk 1 also reaches a missing dialog and
	// is broken, but dialog 10 must survive because talk 2, which is not
	// broken, also visits it.
	db.Talks[1] = &model.Talk{ID: 1, InitDialog: 5, QuestID: -1, SubQuestID: -1}
	db.Talks[2] = &model.Talk{ID: 2, InitDialog: 10, QuestID: -1, SubQuestID: -1}
	db.Dialogs[5] = &model.Dialog{ID: 5, NextDialogs: []int{10, 99}}
	db.Dialogs[10] = &model.Dialog{ID: 10}

	dropBrokenTalks(db, discardLogger())

	_, ok := db.Dialogs[10]
	assert.True(t, ok)
}

func TestPruneDanglingBeginConditions(t *testing.T) {
	db := model.NewDatabase()
	db.SubQuests[1] = &model.SubQuest{ID: 1}
	db.Talks[1] = &model.Talk{
		ID: 1,
		BeginConditions: []model.BeginCondition{
			{SubQuestID: 1, State: model.StateFinished},
			{SubQuestID: 2, State: model.StateFinished},
		},
	}
	dropped := pruneDanglingBeginConditions(db)
	assert.Equal(t, 1, dropped)
	require.Len(t, db.Talks[1].BeginConditions, 1)
	assert.Equal(t, 1, db.Talks[1].BeginConditions[0].SubQuestID)
}

func TestPruneDanglingSuggestedNext(t *testing.T) {
	db := model.NewDatabase()
	db.Quests[1] = &model.Quest{ID: 1, SuggestedNext: []int{2, 99}}
	db.Quests[2] = &model.Quest{ID: 2}
	dropped := pruneDanglingSuggestedNext(db)
	assert.Equal(t, 1, dropped)
	assert.Equal(t, []int{2}, db.Quests[1].SuggestedNext)
}

func TestInferPlayerRoles(t *testing.T) {
	db := model.NewDatabase()
	db.Dialogs[1] = &model.Dialog{ID: 1, NextDialogs: []int{2, 3}}
	db.Dialogs[2] = &model.Dialog{ID: 2, Role: model.RolePlayer}
	db.Dialogs[3] = &model.Dialog{ID: 3, Role: 42} // untagged, not -1

	inferred := inferPlayerRoles(db)
	assert.Equal(t, 1, inferred)
	assert.Equal(t, model.RolePlayer, db.Dialogs[3].Role)
}

func TestInferPlayerRoles_SkippedWhenUnknownPresent(t *testing.T) {
	db := model.NewDatabase()
	db.Dialogs[1] = &model.Dialog{ID: 1, NextDialogs: []int{2, 3}}
	db.Dialogs[2] = &model.Dialog{ID: 2, Role: model.RolePlayer}
	db.Dialogs[3] = &model.Dialog{ID: 3, Role: model.RoleUnknown}

	inferred := inferPlayerRoles(db)
	assert.Equal(t, 0, inferred)
	assert.Equal(t, model.RoleUnknown, db.Dialogs[3].Role)
}

func TestRemoveSelfLoops(t *testing.T) {
	db := model.NewDatabase()
	db.Dialogs[1] = &model.Dialog{ID: 1, NextDialogs: []int{1, 2}}
	db.Dialogs[2] = &model.Dialog{ID: 2}

	removed := removeSelfLoops(db)
	assert.Equal(t, 1, removed)
	assert.Equal(t, []int{2}, db.Dialogs[1].NextDialogs)
}

func TestPruneUnreleased(t *testing.T) {
	db := model.NewDatabase()
	db.Dialogs[1] = &model.Dialog{ID: 1, Release: model.Released}
	db.Dialogs[2] = &model.Dialog{ID: 2, Release: model.Unreleased}
	db.Talks[10] = &model.Talk{ID: 10, Release: model.Released, NextTalks: []int{20}}
	db.Talks[20] = &model.Talk{ID: 20, Release: model.Unreleased, QuestID: -1, SubQuestID: -1}

	removed := pruneUnreleased(db, false, discardLogger())
	assert.Equal(t, 2, removed) // one dialog, one talk
	_, dialogStillThere := db.Dialogs[2]
	assert.False(t, dialogStillThere)
	_, talkStillThere := db.Talks[20]
	assert.False(t, talkStillThere)
	assert.Empty(t, db.Talks[10].NextTalks)
}

func TestPruneUnreleased_IncludeUnreleasedIsNoop(t *testing.T) {
	db := model.NewDatabase()
	db.Dialogs[1] = &model.Dialog{ID: 1, Release: model.Unreleased}

	removed := pruneUnreleased(db, true, discardLogger())
	assert.Equal(t, 0, removed)
	_, stillThere := db.Dialogs[1]
	assert.True(t, stillThere)
}

func TestClean_EndToEndReport(t *testing.T) {
	db := model.NewDatabase()
	db.Dialogs[1] = &model.Dialog{ID: 1, NextDialogs: []int{1, 2, 99}}
	db.Dialogs[2] = &model.Dialog{ID: 2}

	r := Clean(db, false, discardLogger())
	assert.Equal(t, 1, r.DroppedDialogs) // ref to missing dialog 99
	assert.Equal(t, 1, r.RemovedSelfLoops)
}
