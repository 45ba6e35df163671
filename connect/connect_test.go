package connect

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kqwyf/dialogtrace/model"
)

func TestConnect_MandatoryChainWithinQuest(t *testing.T) {
	db := model.NewDatabase()
	db.Quests[1] = &model.Quest{ID: 1}
	db.Sources["a"] = &model.Source{Name: "a", QuestID: 1, Order: 0}
	db.Sources["b"] = &model.Source{Name: "b", QuestID: 1, Order: 1}

	Connect(db)

	assert.Equal(t, []string{"b"}, db.Sources["a"].NextSources)
	assert.Equal(t, []string{"a"}, db.Sources["b"].PrevSources)
}

func TestConnect_AcrossQuests(t *testing.T) {
	db := model.NewDatabase()
	db.Quests[1] = &model.Quest{ID: 1, NextQuests: []int{2}}
	db.Quests[2] = &model.Quest{ID: 2}
	db.Sources["q1_last"] = &model.Source{Name: "q1_last", QuestID: 1, Order: 0}
	db.Sources["q2_first"] = &model.Source{Name: "q2_first", QuestID: 2, Order: 0}

	Connect(db)

	assert.Contains(t, db.Sources["q1_last"].NextSources, "q2_first")
	assert.Contains(t, db.Sources["q2_first"].PrevSources, "q1_last")
}

func TestConnect_NoConditionsAttachesAsPredecessorOfEarliest(t *testing.T) {
	db := model.NewDatabase()
	db.Quests[1] = &model.Quest{ID: 1}
	db.Sources["ordered0"] = &model.Source{Name: "ordered0", QuestID: 1, Order: 0}
	db.Sources["ordered1"] = &model.Source{Name: "ordered1", QuestID: 1, Order: 1}
	db.Sources["unordered"] = &model.Source{Name: "unordered", QuestID: 1, Order: model.NoOrder}

	Connect(db)

	assert.Contains(t, db.Sources["unordered"].NextSourcesOptional, "ordered0")
	assert.Contains(t, db.Sources["ordered0"].PrevSourcesOptional, "unordered")
}

func TestConnect_FinishedConditionAttachesAsSuccessor(t *testing.T) {
	db := model.NewDatabase()
	db.Quests[1] = &model.Quest{ID: 1}
	db.SubQuests[5] = &model.SubQuest{ID: 5, QuestID: 1, Order: 0}
	db.Talks[1] = &model.Talk{
		ID: 1,
		BeginConditions: []model.BeginCondition{
			{SubQuestID: 5, State: model.StateFinished},
		},
	}
	db.Sources["ordered0"] = &model.Source{Name: "ordered0", QuestID: 1, Order: 0}
	db.Sources["unordered"] = &model.Source{
		Name: "unordered", QuestID: 1, Order: model.NoOrder, TalkIDs: []int{1},
	}

	Connect(db)

	assert.Contains(t, db.Sources["unordered"].PrevSourcesOptional, "ordered0")
	assert.Contains(t, db.Sources["ordered0"].NextSourcesOptional, "unordered")
}

func TestConnect_ConditionRangeUsesSubquestOrderNotID(t *testing.T) {
	// The subquest's id (500) is far beyond every group order; only its
	// order (2) places the source correctly, after the order-1 group.
	db := model.NewDatabase()
	db.Quests[1] = &model.Quest{ID: 1}
	db.SubQuests[500] = &model.SubQuest{ID: 500, QuestID: 1, Order: 2}
	db.Talks[1] = &model.Talk{
		ID: 1,
		BeginConditions: []model.BeginCondition{
			{SubQuestID: 500, State: model.StateFinished},
		},
	}
	db.Sources["ordered1"] = &model.Source{Name: "ordered1", QuestID: 1, Order: 1}
	db.Sources["ordered5"] = &model.Source{Name: "ordered5", QuestID: 1, Order: 5}
	db.Sources["unordered"] = &model.Source{
		Name: "unordered", QuestID: 1, Order: model.NoOrder, TalkIDs: []int{1},
	}

	Connect(db)

	assert.Contains(t, db.Sources["ordered1"].NextSourcesOptional, "unordered")
	assert.NotContains(t, db.Sources["ordered5"].NextSourcesOptional, "unordered")
}

func TestConnect_InProgressConditionAttachesAsPredecessor(t *testing.T) {
	db := model.NewDatabase()
	db.Quests[1] = &model.Quest{ID: 1}
	db.SubQuests[5] = &model.SubQuest{ID: 5, QuestID: 1, Order: 5}
	db.Talks[1] = &model.Talk{
		ID: 1,
		BeginConditions: []model.BeginCondition{
			{SubQuestID: 5, State: model.StateInProgress},
		},
	}
	db.Sources["ordered10"] = &model.Source{Name: "ordered10", QuestID: 1, Order: 10}
	db.Sources["unordered"] = &model.Source{
		Name: "unordered", QuestID: 1, Order: model.NoOrder, TalkIDs: []int{1},
	}

	Connect(db)

	assert.Contains(t, db.Sources["unordered"].NextSourcesOptional, "ordered10")
}
