package source

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

func TestAttribute_Direct(t *testing.T) {
	db := model.NewDatabase()
	db.Talks[1] = &model.Talk{ID: 1}
	db.Quests[10] = &model.Quest{ID: 10, TalkIDs: []int{1}}

	Attribute(db, discardLogger())
	assert.Equal(t, 10, db.Talks[1].QuestID)
}

func TestAttribute_DirectConflictUnassignsAndReports(t *testing.T) {
	db := model.NewDatabase()
	db.Talks[1] = &model.Talk{ID: 1}
	db.Quests[10] = &model.Quest{ID: 10, TalkIDs: []int{1}}
	db.Quests[11] = &model.Quest{ID: 11, TalkIDs: []int{1}}

	ambiguous := Attribute(db, discardLogger())
	assert.True(t, ambiguous[1])
	assert.Equal(t, -1, db.Talks[1].QuestID)
}

func TestAttribute_IndirectViaSubquestTerminator(t *testing.T) {
	db := model.NewDatabase()
	db.Talks[1] = &model.Talk{ID: 1}
	db.SubQuests[100] = &model.SubQuest{ID: 100, QuestID: 10, Order: 0, TerminatingTalkIDs: []int{1}}

	Attribute(db, discardLogger())
	assert.Equal(t, 10, db.Talks[1].QuestID)
	assert.Equal(t, 100, db.Talks[1].SubQuestID)
}

func TestAttribute_SmallestOrderWins(t *testing.T) {
	db := model.NewDatabase()
	db.Talks[1] = &model.Talk{ID: 1}
	db.SubQuests[100] = &model.SubQuest{ID: 100, QuestID: 10, Order: 1, TerminatingTalkIDs: []int{1}}
	db.SubQuests[101] = &model.SubQuest{ID: 101, QuestID: 10, Order: 0, TerminatingTalkIDs: []int{1}}

	Attribute(db, discardLogger())
	assert.Equal(t, 101, db.Talks[1].SubQuestID)
}

func TestAttribute_AmbiguousAcrossQuests(t *testing.T) {
	db := model.NewDatabase()
	db.Talks[1] = &model.Talk{ID: 1}
	db.SubQuests[100] = &model.SubQuest{ID: 100, QuestID: 10, Order: 0, TerminatingTalkIDs: []int{1}}
	db.SubQuests[200] = &model.SubQuest{ID: 200, QuestID: 20, Order: 0, TerminatingTalkIDs: []int{1}}

	ambiguous := Attribute(db, discardLogger())
	assert.True(t, ambiguous[1])
	assert.Equal(t, -1, db.Talks[1].QuestID)
	assert.Equal(t, -1, db.Talks[1].SubQuestID)
}

func TestPartition_SubquestSource(t *testing.T) {
	db := model.NewDatabase()
	db.Talks[1] = &model.Talk{ID: 1, QuestID: 10, SubQuestID: 100, InitDialog: model.NoDialog}
	db.SubQuests[100] = &model.SubQuest{ID: 100, QuestID: 10, Order: 3}

	Partition(db, discardLogger())

	_, ok := db.Sources["subquest_10_100_0"]
	assert.True(t, ok)
	assert.Equal(t, 3, db.Sources["subquest_10_100_0"].Order)
}

func TestPartition_QuestSourceWhenMultipleSubquests(t *testing.T) {
	db := model.NewDatabase()
	db.Talks[1] = &model.Talk{ID: 1, QuestID: 10, SubQuestID: 100, NextTalks: []int{2}, InitDialog: model.NoDialog}
	db.Talks[2] = &model.Talk{ID: 2, QuestID: 10, SubQuestID: 101, PrevTalks: []int{1}, InitDialog: model.NoDialog}
	db.SubQuests[100] = &model.SubQuest{ID: 100, QuestID: 10, Order: 0}
	db.SubQuests[101] = &model.SubQuest{ID: 101, QuestID: 10, Order: 1}

	Partition(db, discardLogger())

	_, ok := db.Sources["quest_10_0"]
	assert.True(t, ok)
}

func TestPartition_TalkSourceFallback(t *testing.T) {
	db := model.NewDatabase()
	db.Talks[5] = &model.Talk{ID: 5, QuestID: -1, SubQuestID: -1, InitDialog: model.NoDialog}

	Partition(db, discardLogger())

	_, ok := db.Sources["talk_5"]
	assert.True(t, ok)
}

func TestPartition_LeftoverDialogsGetDialogSource(t *testing.T) {
	db := model.NewDatabase()
	db.Dialogs[50] = &model.Dialog{ID: 50, NextDialogs: []int{51}}
	db.Dialogs[51] = &model.Dialog{ID: 51}

	Partition(db, discardLogger())

	src, ok := db.Sources["dialog_50"]
	require.True(t, ok)
	assert.Equal(t, []int{50, 51}, src.DialogIDs)
	assert.Equal(t, model.NoOrder, src.Order)
}

func TestPartition_TalkDialogsNotDuplicatedAsLeftover(t *testing.T) {
	db := model.NewDatabase()
	db.Talks[1] = &model.Talk{ID: 1, QuestID: -1, SubQuestID: -1, InitDialog: 1}
	db.Dialogs[1] = &model.Dialog{ID: 1}

	Partition(db, discardLogger())

	_, ok := db.Sources["dialog_1"]
	assert.False(t, ok)
}
