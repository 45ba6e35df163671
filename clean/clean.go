// Package clean runs after all records are merged, pruning dangling
// references, dropping talks whose
// dialog subtree is broken, inferring player roles on under-tagged choice
// fans, and removing self-loops.
package clean

import (
	"log/slog"

	"github.com/kqwyf/dialogtrace/model"
)

// Report summarizes what the cleaner dropped, for pipeline diagnostics.
type Report struct {
	PrunedUnreleased       int
	DroppedTalks           int
	DroppedDialogs         int
	DroppedBeginConditions int
	DroppedSuggestedNext   int
	InferredRoleDialogs    int
	RemovedSelfLoops       int
}

// Clean mutates db in place: released/unreleased filtering first (unless
// includeUnreleased), then dangling-reference pruning, broken-talk
// removal, begin-condition and suggested-next pruning, role inference,
// and self-loop removal, returning a Report of what was removed.
func Clean(db *model.Database, includeUnreleased bool, log *slog.Logger) Report {
	var r Report

	r.PrunedUnreleased += pruneUnreleased(db, includeUnreleased, log)
	r.DroppedDialogs += pruneDanglingDialogRefs(db)
	r.DroppedTalks += dropBrokenTalks(db, log)
	r.DroppedBeginConditions += pruneDanglingBeginConditions(db)
	r.DroppedSuggestedNext += pruneDanglingSuggestedNext(db)
	r.InferredRoleDialogs += inferPlayerRoles(db)
	r.RemovedSelfLoops += removeSelfLoops(db)

	log.Info("graph cleaner finished",
		"pruned_unreleased", r.PrunedUnreleased,
		"dropped_talks", r.DroppedTalks,
		"dropped_dialogs", r.DroppedDialogs,
		"dropped_begin_conditions", r.DroppedBeginConditions,
		"dropped_suggested_next", r.DroppedSuggestedNext,
		"inferred_role_dialogs", r.InferredRoleDialogs,
		"removed_self_loops", r.RemovedSelfLoops,
	)
	return r
}

// pruneUnreleased drops Unreleased-flagged talks and dialogs before the
// regular cleaning steps run, so the dangling-reference and broken-talk
// passes below cascade the removal naturally.
func pruneUnreleased(db *model.Database, includeUnreleased bool, log *slog.Logger) int {
	if includeUnreleased {
		return 0
	}

	removed := 0
	for _, id := range db.SortedDialogIDs() {
		if db.Dialogs[id].Release == model.Unreleased {
			delete(db.Dialogs, id)
			removed++
		}
	}

	removedTalks := make(map[int]bool)
	for _, id := range db.SortedTalkIDs() {
		t := db.Talks[id]
		if t.Release != model.Unreleased {
			continue
		}
		removedTalks[id] = true
		removed++
		delete(db.Talks, id)
		if sq, ok := db.SubQuests[t.SubQuestID]; ok {
			sq.TerminatingTalkIDs = removeInt(sq.TerminatingTalkIDs, id)
		}
		if q, ok := db.Quests[t.QuestID]; ok {
			q.TalkIDs = removeInt(q.TalkIDs, id)
		}
	}
	if len(removedTalks) > 0 {
		for _, id := range db.SortedTalkIDs() {
			t := db.Talks[id]
			t.NextTalks = removeAllBroken(t.NextTalks, removedTalks)
			t.PrevTalks = removeAllBroken(t.PrevTalks, removedTalks)
		}
	}

	if removed > 0 {
		log.Info("pruned unreleased content", "count", removed)
	}
	return removed
}

// pruneDanglingDialogRefs drops next-dialog ids not present in db.Dialogs.
func pruneDanglingDialogRefs(db *model.Database) int {
	dropped := 0
	for _, id := range db.SortedDialogIDs() {
		d := db.Dialogs[id]
		kept := d.NextDialogs[:0:0]
		for _, next := range d.NextDialogs {
			if _, ok := db.Dialogs[next]; ok {
				kept = append(kept, next)
			} else {
				dropped++
			}
		}
		d.NextDialogs = kept
	}
	return dropped
}

// dropBrokenTalks walks each talk's dialog subtree: DFS from its initial
// dialog over next_dialogs. If the walk reaches a missing dialog id, the
// talk is broken. Drop the talk and every dialog visited during that walk
// that appears only in broken talks, and propagate the drop everywhere a
// talk id is referenced.
func dropBrokenTalks(db *model.Database, log *slog.Logger) int {
	talkIDs := db.SortedTalkIDs()
	broken := make(map[int]bool)
	visitedByBrokenTalk := make(map[int]map[int]bool)

	for _, id := range talkIDs {
		t := db.Talks[id]
		if t.InitDialog == model.NoDialog {
			continue
		}
		visited, ok := walkBroken(db, t.InitDialog)
		if !ok {
			broken[id] = true
			visitedByBrokenTalk[id] = visited
		}
	}
	if len(broken) == 0 {
		return 0
	}

	// A dialog visited only by broken talks is dropped; a dialog also
	// reachable from a surviving talk is kept.
	survivorVisited := make(map[int]bool)
	for _, id := range talkIDs {
		if broken[id] {
			continue
		}
		t := db.Talks[id]
		if t.InitDialog == model.NoDialog {
			continue
		}
		if visited, ok := walkBroken(db, t.InitDialog); ok {
			for v := range visited {
				survivorVisited[v] = true
			}
		}
	}

	dropDialogs := make(map[int]bool)
	for _, visited := range visitedByBrokenTalk {
		for v := range visited {
			if !survivorVisited[v] {
				dropDialogs[v] = true
			}
		}
	}
	for v := range dropDialogs {
		delete(db.Dialogs, v)
	}

	for id := range broken {
		t := db.Talks[id]
		log.Debug("dropping broken talk", "talk_id", id, "provenance", t.Provenance)
		delete(db.Talks, id)
		if sq, ok := db.SubQuests[t.SubQuestID]; ok {
			sq.TerminatingTalkIDs = removeInt(sq.TerminatingTalkIDs, id)
		}
		if q, ok := db.Quests[t.QuestID]; ok {
			q.TalkIDs = removeInt(q.TalkIDs, id)
		}
	}

	for _, id := range db.SortedTalkIDs() {
		t := db.Talks[id]
		t.NextTalks = removeAllBroken(t.NextTalks, broken)
		t.PrevTalks = removeAllBroken(t.PrevTalks, broken)
	}

	return len(broken)
}

// walkBroken DFS-walks the dialog chain from start over next_dialogs. It
// returns the set of visited dialog ids and whether every visited id
// resolved (false means the talk is broken).
func walkBroken(db *model.Database, start int) (map[int]bool, bool) {
	visited := make(map[int]bool)
	stack := []int{start}
	ok := true
	for len(stack) > 0 {
		n := len(stack) - 1
		cur := stack[n]
		stack = stack[:n]
		if visited[cur] {
			continue
		}
		d, present := db.Dialogs[cur]
		if !present {
			ok = false
			continue
		}
		visited[cur] = true
		for _, next := range d.NextDialogs {
			if !visited[next] {
				stack = append(stack, next)
			}
		}
	}
	return visited, ok
}

func removeAllBroken(ids []int, broken map[int]bool) []int {
	kept := ids[:0:0]
	for _, id := range ids {
		if !broken[id] {
			kept = append(kept, id)
		}
	}
	return kept
}

func removeInt(ids []int, victim int) []int {
	kept := ids[:0:0]
	for _, id := range ids {
		if id != victim {
			kept = append(kept, id)
		}
	}
	return kept
}

// pruneDanglingBeginConditions drops begin-condition atoms referencing
// subquests that no longer exist.
func pruneDanglingBeginConditions(db *model.Database) int {
	dropped := 0
	for _, id := range db.SortedTalkIDs() {
		t := db.Talks[id]
		kept := t.BeginConditions[:0:0]
		for _, cond := range t.BeginConditions {
			if _, ok := db.SubQuests[cond.SubQuestID]; ok {
				kept = append(kept, cond)
			} else {
				dropped++
			}
		}
		t.BeginConditions = kept
	}
	return dropped
}

// pruneDanglingSuggestedNext drops suggested-next ids referencing quests
// that no longer exist.
func pruneDanglingSuggestedNext(db *model.Database) int {
	dropped := 0
	for _, id := range db.SortedQuestIDs() {
		q := db.Quests[id]
		kept := q.SuggestedNext[:0:0]
		for _, next := range q.SuggestedNext {
			if _, ok := db.Quests[next]; ok {
				kept = append(kept, next)
			} else {
				dropped++
			}
		}
		q.SuggestedNext = kept
	}
	return dropped
}

// inferPlayerRoles repairs under-tagged choice fans: for each dialog whose
// next-dialog set
// contains at least one role-0 successor and no role -1 successor, force
// every successor's role to 0.
func inferPlayerRoles(db *model.Database) int {
	inferred := 0
	for _, id := range db.SortedDialogIDs() {
		d := db.Dialogs[id]
		if len(d.NextDialogs) == 0 {
			continue
		}
		hasPlayer, hasUnknown := false, false
		for _, next := range d.NextDialogs {
			nd := db.Dialogs[next]
			switch nd.Role {
			case model.RolePlayer:
				hasPlayer = true
			case model.RoleUnknown:
				hasUnknown = true
			}
		}
		if hasPlayer && !hasUnknown {
			for _, next := range d.NextDialogs {
				nd := db.Dialogs[next]
				if nd.Role != model.RolePlayer {
					nd.Role = model.RolePlayer
					inferred++
				}
			}
		}
	}
	return inferred
}

// removeSelfLoops drops every dialog's edge to itself.
func removeSelfLoops(db *model.Database) int {
	removed := 0
	for _, id := range db.SortedDialogIDs() {
		d := db.Dialogs[id]
		kept := d.NextDialogs[:0:0]
		for _, next := range d.NextDialogs {
			if next == id {
				removed++
				continue
			}
			kept = append(kept, next)
		}
		d.NextDialogs = kept
	}
	return removed
}
