// Package source assigns talks to quests/subquests, groups talks into
// weakly connected components over the next-talk graph, names each
// component as a Source, and finally partitions any dialogs left unclaimed
// by a talk into their own dialog-only sources.
package source

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/kqwyf/dialogtrace/model"
)

// Attribute assigns QuestID/SubQuestID to every talk in db: directly when
// a quest's talk list names the talk, indirectly through subquest
// terminators otherwise. It returns the set of talk ids whose attribution
// was ambiguous for diagnostics; those talks are left unassigned. A talk
// claimed directly by two quests is an input bug: it is reported and
// unassigned, never fatal.
func Attribute(db *model.Database, log *slog.Logger) (ambiguous map[int]bool) {
	ambiguous = make(map[int]bool)

	for _, id := range db.SortedTalkIDs() {
		db.Talks[id].QuestID = -1
		db.Talks[id].SubQuestID = -1
	}

	// Direct: a talk listed in a quest's TalkIDs is assigned to that quest.
	claimedByQuest := make(map[int]int) // talkID -> questID
	for _, qid := range db.SortedQuestIDs() {
		q := db.Quests[qid]
		for _, tid := range q.TalkIDs {
			if other, claimed := claimedByQuest[tid]; claimed && other != qid {
				log.Warn("source: talk claimed by two quests, leaving unassigned",
					"talk_id", tid, "quest_a", other, "quest_b", qid)
				ambiguous[tid] = true
				continue
			}
			claimedByQuest[tid] = qid
		}
	}
	for tid, qid := range claimedByQuest {
		if ambiguous[tid] {
			continue
		}
		if t, ok := db.Talks[tid]; ok {
			t.QuestID = qid
		}
	}

	// Indirect: subquest terminators, processed in (quest id, order,
	// subquest id) order so "smallest order wins" ties resolve
	// deterministically.
	subquestIDs := make([]int, 0, len(db.SubQuests))
	for id := range db.SubQuests {
		subquestIDs = append(subquestIDs, id)
	}
	sort.Slice(subquestIDs, func(i, j int) bool {
		a, b := db.SubQuests[subquestIDs[i]], db.SubQuests[subquestIDs[j]]
		if a.QuestID != b.QuestID {
			return a.QuestID < b.QuestID
		}
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return a.ID < b.ID
	})

	assignedSubquest := make(map[int]int) // talkID -> subquestID currently held

	for _, sqid := range subquestIDs {
		sq := db.SubQuests[sqid]
		for _, tid := range sq.TerminatingTalkIDs {
			if tid == model.AnyTalk || ambiguous[tid] {
				continue
			}
			t, ok := db.Talks[tid]
			if !ok {
				continue
			}
			if q, direct := claimedByQuest[tid]; direct && q != sq.QuestID {
				continue // belongs to a different quest directly
			}
			if curSQ, already := assignedSubquest[tid]; already {
				curQuest := db.SubQuests[curSQ].QuestID
				if curQuest != sq.QuestID {
					ambiguous[tid] = true
					delete(assignedSubquest, tid)
					t.QuestID = -1
					t.SubQuestID = -1
					continue
				}
				// Same quest, keep the smaller-order subquest already held
				// (subquestIDs is sorted by order, so the first write wins).
				continue
			}
			assignedSubquest[tid] = sqid
			t.QuestID = sq.QuestID
			t.SubQuestID = sqid
		}
	}

	if len(ambiguous) > 0 {
		log.Warn("source: ambiguous talk attribution", "count", len(ambiguous))
	}
	return ambiguous
}

// Partition builds weakly connected components over the talk graph, names
// each one from the quests/subquests its talks attribute to, then
// partitions leftover dialogs (not claimed by any talk source) the same
// way over the plain dialog graph. It first rebuilds every talk's
// PrevTalks from the NextTalks lists.
func Partition(db *model.Database, log *slog.Logger) {
	for _, id := range db.SortedTalkIDs() {
		db.Talks[id].PrevTalks = nil
	}
	for _, id := range db.SortedTalkIDs() {
		for _, next := range db.Talks[id].NextTalks {
			if nt, ok := db.Talks[next]; ok {
				nt.PrevTalks = append(nt.PrevTalks, id)
			}
		}
	}

	talkComponents := weakTalkComponents(db)
	counters := make(map[string]int)

	claimedDialogs := make(map[int]bool)

	for _, comp := range talkComponents {
		talkIDs := sortedKeys(comp)

		quests := make(map[int]bool)
		subquests := make(map[int]bool)
		for _, tid := range talkIDs {
			t := db.Talks[tid]
			if t.QuestID != -1 {
				quests[t.QuestID] = true
			}
			if t.SubQuestID != -1 {
				subquests[t.SubQuestID] = true
			}
		}

		name, order, qid, sqid := nameComponent(db, talkIDs, quests, subquests, counters)

		src := &model.Source{
			Name: name, Order: order, QuestID: qid, SubQuestID: sqid,
			TalkIDs: talkIDs,
		}
		db.Sources[name] = src

		for _, tid := range talkIDs {
			for _, did := range talkDialogIDs(db, tid) {
				claimedDialogs[did] = true
			}
		}
	}

	leftover := make(map[int]bool)
	for _, did := range db.SortedDialogIDs() {
		if !claimedDialogs[did] {
			leftover[did] = true
		}
	}
	dialogComponents := weakDialogComponents(db, leftover)
	for _, comp := range dialogComponents {
		dialogIDs := sortedKeys(comp)
		minID := dialogIDs[0]
		name := fmt.Sprintf("dialog_%d", minID)
		db.Sources[name] = &model.Source{
			Name: name, Order: model.NoOrder, QuestID: -1, SubQuestID: -1,
			DialogIDs: dialogIDs,
		}
	}

	log.Info("source partitioner finished",
		"talk_sources", len(talkComponents), "dialog_sources", len(dialogComponents))
}

// nameComponent derives a source name from the component's attribution:
// one subquest -> subquest_<quest>_<subquest>_<k>, one quest ->
// quest_<quest>_<k>, anything else -> talk_<min-talk-id>.
func nameComponent(db *model.Database, talkIDs []int, quests, subquests map[int]bool, counters map[string]int) (name string, order, questID, subquestID int) {
	switch {
	case len(subquests) == 1:
		sqid := firstKey(subquests)
		sq := db.SubQuests[sqid]
		key := fmt.Sprintf("subquest_%d_%d", sq.QuestID, sqid)
		k := counters[key]
		counters[key] = k + 1
		return fmt.Sprintf("%s_%d", key, k), sq.Order, sq.QuestID, sqid

	case len(quests) == 1:
		qid := firstKey(quests)
		minOrder := model.NoOrder
		for sqid := range subquests {
			if db.SubQuests[sqid] == nil {
				continue
			}
			o := db.SubQuests[sqid].Order
			if minOrder == model.NoOrder || o < minOrder {
				minOrder = o
			}
		}
		key := fmt.Sprintf("quest_%d", qid)
		k := counters[key]
		counters[key] = k + 1
		return fmt.Sprintf("%s_%d", key, k), minOrder, qid, -1

	default:
		return fmt.Sprintf("talk_%d", talkIDs[0]), model.NoOrder, -1, -1
	}
}

func talkDialogIDs(db *model.Database, talkID int) []int {
	t, ok := db.Talks[talkID]
	if !ok || t.InitDialog == model.NoDialog {
		return nil
	}
	visited := make(map[int]bool)
	stack := []int{t.InitDialog}
	for len(stack) > 0 {
		n := len(stack) - 1
		cur := stack[n]
		stack = stack[:n]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		d, ok := db.Dialogs[cur]
		if !ok {
			continue
		}
		for _, next := range d.NextDialogs {
			if !visited[next] {
				stack = append(stack, next)
			}
		}
	}
	out := sortedKeys(visited)
	return out
}

func weakTalkComponents(db *model.Database) []map[int]bool {
	adj := make(map[int]map[int]bool)
	addNode := func(n int) {
		if adj[n] == nil {
			adj[n] = make(map[int]bool)
		}
	}
	for _, id := range db.SortedTalkIDs() {
		addNode(id)
	}
	for _, id := range db.SortedTalkIDs() {
		t := db.Talks[id]
		for _, next := range t.NextTalks {
			if _, ok := db.Talks[next]; !ok {
				continue
			}
			addNode(next)
			adj[id][next] = true
			adj[next][id] = true
		}
	}
	return connectedComponents(adj, db.SortedTalkIDs())
}

func weakDialogComponents(db *model.Database, restrict map[int]bool) []map[int]bool {
	adj := make(map[int]map[int]bool)
	var nodes []int
	for _, id := range db.SortedDialogIDs() {
		if !restrict[id] {
			continue
		}
		nodes = append(nodes, id)
		if adj[id] == nil {
			adj[id] = make(map[int]bool)
		}
	}
	for _, id := range nodes {
		d := db.Dialogs[id]
		for _, next := range d.NextDialogs {
			if !restrict[next] {
				continue
			}
			if adj[next] == nil {
				adj[next] = make(map[int]bool)
			}
			adj[id][next] = true
			adj[next][id] = true
		}
	}
	return connectedComponents(adj, nodes)
}

func connectedComponents(adj map[int]map[int]bool, nodes []int) []map[int]bool {
	visited := make(map[int]bool)
	var components []map[int]bool
	for _, start := range nodes {
		if visited[start] {
			continue
		}
		comp := make(map[int]bool)
		queue := []int{start}
		visited[start] = true
		for len(queue) > 0 {
			n := queue[0]
			queue = queue[1:]
			comp[n] = true
			neighbors := sortedKeys(adj[n])
			for _, m := range neighbors {
				if !visited[m] {
					visited[m] = true
					queue = append(queue, m)
				}
			}
		}
		components = append(components, comp)
	}
	return components
}

func sortedKeys(m map[int]bool) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

func firstKey(m map[int]bool) int {
	keys := sortedKeys(m)
	return keys[0]
}
