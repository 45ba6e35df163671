// Package connect wires mandatory prev/next edges between consecutive
// ordered source groups within a quest and across quests via next_quests,
// and attaches unordered sources as optional predecessors/successors using
// begin-condition interval arithmetic.
package connect

import (
	"math"
	"sort"

	"github.com/kqwyf/dialogtrace/model"
)

// interval is a half-open-at-infinity range [lo, hi] over subquest order
// values. Atoms map to: in-progress -> [s, s]; finished/failed -> (s, +inf),
// represented as [s+0.5, +inf) since subquest orders are integers.
type interval struct{ lo, hi float64 }

func isEmpty(iv interval) bool { return iv.lo > iv.hi }

// Connect wires every source in db, mutating each Source's
// Prev/NextSources(Optional) fields in place.
func Connect(db *model.Database) {
	byQuest := make(map[int][]*model.Source)
	for _, name := range db.SortedSourceNames() {
		src := db.Sources[name]
		if src.QuestID == -1 {
			continue
		}
		byQuest[src.QuestID] = append(byQuest[src.QuestID], src)
	}

	for _, qid := range sortedQuestKeys(byQuest) {
		sources := byQuest[qid]
		connectWithinQuest(db, sources)
	}

	for _, qid := range sortedQuestKeys(byQuest) {
		q := db.Quests[qid]
		lastGroup := lastOrderedGroup(byQuest[qid])
		if len(lastGroup) == 0 {
			continue
		}
		for _, nextQID := range q.NextQuests {
			firstGroup := firstOrderedGroup(byQuest[nextQID])
			wireMandatory(lastGroup, firstGroup)
		}
	}
}

func sortedQuestKeys(m map[int][]*model.Source) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func connectWithinQuest(db *model.Database, sources []*model.Source) {
	ordered := make(map[int][]*model.Source)
	var unordered []*model.Source
	for _, s := range sources {
		if s.Order == model.NoOrder {
			unordered = append(unordered, s)
		} else {
			ordered[s.Order] = append(ordered[s.Order], s)
		}
	}

	groupOrders := make([]int, 0, len(ordered))
	for o := range ordered {
		groupOrders = append(groupOrders, o)
	}
	sort.Ints(groupOrders)

	for i := 0; i+1 < len(groupOrders); i++ {
		wireMandatory(ordered[groupOrders[i]], ordered[groupOrders[i+1]])
	}

	for _, s := range unordered {
		attachUnordered(db, s, ordered, groupOrders)
	}
}

func wireMandatory(from, to []*model.Source) {
	for _, a := range from {
		for _, b := range to {
			a.NextSources = appendUnique(a.NextSources, b.Name)
			b.PrevSources = appendUnique(b.PrevSources, a.Name)
		}
	}
}

func lastOrderedGroup(sources []*model.Source) []*model.Source {
	maxOrder, found := model.NoOrder, false
	for _, s := range sources {
		if s.Order != model.NoOrder && (!found || s.Order > maxOrder) {
			maxOrder, found = s.Order, true
		}
	}
	if !found {
		return nil
	}
	var out []*model.Source
	for _, s := range sources {
		if s.Order == maxOrder {
			out = append(out, s)
		}
	}
	return out
}

func firstOrderedGroup(sources []*model.Source) []*model.Source {
	minOrder, found := model.NoOrder, false
	for _, s := range sources {
		if s.Order != model.NoOrder && (!found || s.Order < minOrder) {
			minOrder, found = s.Order, true
		}
	}
	if !found {
		return nil
	}
	var out []*model.Source
	for _, s := range sources {
		if s.Order == minOrder {
			out = append(out, s)
		}
	}
	return out
}

// attachUnordered computes s's begin-condition interval from the talks it
// contains and attaches it as an optional predecessor/successor of the
// nearest ordered group.
func attachUnordered(db *model.Database, s *model.Source, ordered map[int][]*model.Source, groupOrders []int) {
	if len(groupOrders) == 0 {
		return
	}

	ivs, hasConditions := sourceIntervals(db, s)
	if !hasConditions {
		k := groupOrders[0]
		attachOptionalPredecessor(s, ordered[k])
		return
	}
	if len(ivs) == 0 {
		k := groupOrders[len(groupOrders)-1]
		attachOptionalSuccessor(s, ordered[k])
		return
	}

	start := math.Inf(1)
	for _, iv := range ivs {
		if iv.lo < start {
			start = iv.lo
		}
	}

	// Find the largest ordered group whose order comes strictly before
	// start; s becomes that group's optional successor (the condition is
	// satisfiable only once that group is done). If start precedes every
	// ordered group, s instead attaches as optional predecessor of the
	// earliest one.
	lower := -1
	for _, k := range groupOrders {
		if float64(k) < start {
			lower = k
		} else {
			break
		}
	}
	if lower == -1 {
		attachOptionalPredecessor(s, ordered[groupOrders[0]])
		return
	}
	attachOptionalSuccessor(s, ordered[lower])
}

func attachOptionalPredecessor(s *model.Source, group []*model.Source) {
	for _, g := range group {
		s.NextSourcesOptional = appendUnique(s.NextSourcesOptional, g.Name)
		g.PrevSourcesOptional = appendUnique(g.PrevSourcesOptional, s.Name)
	}
}

func attachOptionalSuccessor(s *model.Source, group []*model.Source) {
	for _, g := range group {
		s.PrevSourcesOptional = appendUnique(s.PrevSourcesOptional, g.Name)
		g.NextSourcesOptional = appendUnique(g.NextSourcesOptional, s.Name)
	}
}

// sourceIntervals computes s's combined begin-condition range: each talk's
// atoms combine by its own BeginCondComb (AND = intersect, OR = union),
// then talk ranges intersect across the source (all must be satisfiable
// simultaneously). The second return value is false if no talk in s
// carries any begin condition at all.
func sourceIntervals(db *model.Database, s *model.Source) ([]interval, bool) {
	var combined []interval
	first := true
	any := false

	for _, tid := range s.TalkIDs {
		t, ok := db.Talks[tid]
		if !ok || len(t.BeginConditions) == 0 {
			continue
		}
		any = true
		talkRange := talkInterval(db, t)
		if first {
			combined = talkRange
			first = false
		} else {
			combined = intersectLists(combined, talkRange)
		}
	}
	if !any {
		return nil, false
	}
	return combined, true
}

// talkInterval maps each begin-condition atom to a range over subquest
// order values (the axis ordered groups live on): in-progress pins the
// range to the named subquest's order; finished/failed opens it just after.
func talkInterval(db *model.Database, t *model.Talk) []interval {
	var atoms []interval
	for _, c := range t.BeginConditions {
		sq, ok := db.SubQuests[c.SubQuestID]
		if !ok {
			continue
		}
		o := float64(sq.Order)
		if c.State == model.StateInProgress {
			atoms = append(atoms, interval{o, o})
		} else {
			atoms = append(atoms, interval{o + 0.5, math.Inf(1)})
		}
	}
	if t.BeginCondComb == model.CombOR {
		return unionIntervals(atoms)
	}
	return intersectAll(atoms)
}

func intersectAll(atoms []interval) []interval {
	if len(atoms) == 0 {
		return nil
	}
	acc := atoms[0]
	for _, a := range atoms[1:] {
		acc = intersectPair(acc, a)
		if isEmpty(acc) {
			return nil
		}
	}
	return []interval{acc}
}

func intersectPair(a, b interval) interval {
	lo := math.Max(a.lo, b.lo)
	hi := math.Min(a.hi, b.hi)
	return interval{lo, hi}
}

func intersectLists(a, b []interval) []interval {
	var out []interval
	for _, ai := range a {
		for _, bi := range b {
			iv := intersectPair(ai, bi)
			if !isEmpty(iv) {
				out = append(out, iv)
			}
		}
	}
	return unionIntervals(out)
}

func unionIntervals(ivs []interval) []interval {
	if len(ivs) == 0 {
		return nil
	}
	sorted := append([]interval{}, ivs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].lo < sorted[j].lo })
	merged := []interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &merged[len(merged)-1]
		if iv.lo <= last.hi {
			if iv.hi > last.hi {
				last.hi = iv.hi
			}
		} else {
			merged = append(merged, iv)
		}
	}
	return merged
}

func appendUnique(list []string, name string) []string {
	for _, existing := range list {
		if existing == name {
			return list
		}
	}
	return append(list, name)
}
