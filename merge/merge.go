// Package merge accepts a stream of model.Talk and model.Dialog records
// tagged with provenance and a trusted flag, deduplicates them, merges
// compatible duplicates, and rejects conflicting ones. Role and talk-id
// mismatches during a Dialog update are non-conflicts: the newer reading
// wins. List fields keep their authored order as first seen — next-dialog
// order carries meaning downstream (player-fan linearization keeps the
// first-listed option first) — so equality treats them as sets and only a
// conflicting union is canonicalized by sort.
package merge

import (
	"fmt"
	"sort"

	"github.com/kqwyf/dialogtrace/model"
)

// Merger accumulates Talk and Dialog records, applying the
// dedup/merge/reject rules below.
type Merger struct {
	talks   map[int]*model.Talk
	dialogs map[int]*model.Dialog
}

// New returns an empty Merger.
func New() *Merger {
	return &Merger{
		talks:   make(map[int]*model.Talk),
		dialogs: make(map[int]*model.Dialog),
	}
}

// AddTalk merges t into the accumulated set. It returns ErrMergeConflict
// (wrapped with the talk id) if two trusted records disagree on a
// non-mergeable field.
func (m *Merger) AddTalk(t model.Talk) error {
	incumbent, ok := m.talks[t.ID]
	if !ok {
		cp := t
		m.talks[t.ID] = &cp
		return nil
	}

	if talksEqual(incumbent, &t) {
		return nil // idempotent, no-op
	}

	switch {
	case incumbent.Trusted && t.Trusted:
		return fmt.Errorf("merge: talk %d: %w (incumbent provenance %q, newcomer provenance %q)",
			t.ID, ErrMergeConflict, incumbent.Provenance, t.Provenance)
	case !incumbent.Trusted && t.Trusted:
		cp := t
		m.talks[t.ID] = &cp
	default:
		// Incumbent is trusted (or neither is, arbitrarily keep incumbent):
		// untrusted newcomer yields.
	}
	return nil
}

// AddDialog merges d into the accumulated set, attempting an in-place
// update when two trusted records disagree.
func (m *Merger) AddDialog(d model.Dialog) error {
	incumbent, ok := m.dialogs[d.ID]
	if !ok {
		cp := d
		m.dialogs[d.ID] = &cp
		return nil
	}

	if dialogsEqual(incumbent, &d) {
		return nil // idempotent, no-op
	}

	if !incumbent.Trusted || !d.Trusted {
		if !incumbent.Trusted && d.Trusted {
			cp := d
			m.dialogs[d.ID] = &cp
		}
		// Otherwise incumbent (trusted, or arbitrarily kept) wins.
		return nil
	}

	// Both trusted and unequal: attempt in-place update.
	if err := updateDialog(incumbent, &d); err != nil {
		return fmt.Errorf("merge: dialog %d: %w (incumbent provenance %q, newcomer provenance %q)",
			d.ID, ErrMergeConflict, incumbent.Provenance, d.Provenance)
	}
	return nil
}

// updateDialog applies the in-place update rule to incumbent using fields
// from newcomer. It fails iff the role-name hash conflicts; the role-name
// check runs first, so a failed update leaves incumbent unmodified (the
// run aborts on failure anyway — see AddDialog).
func updateDialog(incumbent, newcomer *model.Dialog) error {
	if newcomer.RoleNameHash != "" {
		if incumbent.RoleNameHash != "" && incumbent.RoleNameHash != newcomer.RoleNameHash {
			return ErrRoleNameConflict
		}
		incumbent.RoleNameHash = newcomer.RoleNameHash
	}

	// Role and talk-id mismatches are non-conflicts: the newer reading
	// wins, so overwrite when valid, never compare for disagreement.
	if newcomer.Role != model.RoleUnknown {
		incumbent.Role = newcomer.Role
	}
	if newcomer.TalkID != model.NoDialog {
		incumbent.TalkID = newcomer.TalkID
	}

	merged := append(append([]int{}, incumbent.NextDialogs...), newcomer.NextDialogs...)
	incumbent.NextDialogs = dedupSorted(merged)

	return nil
}

func dedupSorted(ids []int) []int {
	sort.Ints(ids)
	out := ids[:0]
	var last int
	first := true
	for _, id := range ids {
		if first || id != last {
			out = append(out, id)
			last = id
			first = false
		}
	}
	return out
}

func talksEqual(a, b *model.Talk) bool {
	if a.ID != b.ID || a.InitDialog != b.InitDialog || a.BeginCondComb != b.BeginCondComb {
		return false
	}
	if !intsEqualUnordered(a.NPCIDs, b.NPCIDs) || !intsEqualUnordered(a.NextTalks, b.NextTalks) {
		return false
	}
	if len(a.BeginConditions) != len(b.BeginConditions) {
		return false
	}
	ac := append([]model.BeginCondition{}, a.BeginConditions...)
	bc := append([]model.BeginCondition{}, b.BeginConditions...)
	sortConditions(ac)
	sortConditions(bc)
	for i := range ac {
		if ac[i] != bc[i] {
			return false
		}
	}
	return true
}

func sortConditions(c []model.BeginCondition) {
	sort.Slice(c, func(i, j int) bool {
		if c[i].SubQuestID != c[j].SubQuestID {
			return c[i].SubQuestID < c[j].SubQuestID
		}
		return c[i].State < c[j].State
	})
}

func dialogsEqual(a, b *model.Dialog) bool {
	return a.ID == b.ID && a.Role == b.Role && a.ContentHash == b.ContentHash &&
		a.RoleNameHash == b.RoleNameHash && intsEqualUnordered(a.NextDialogs, b.NextDialogs)
}

// intsEqualUnordered compares two id lists as sets, leaving both inputs
// untouched: stored records keep their authored element order.
func intsEqualUnordered(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]int{}, a...)
	bs := append([]int{}, b...)
	sort.Ints(as)
	sort.Ints(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

// Talks returns the merged talk set.
func (m *Merger) Talks() map[int]*model.Talk { return m.talks }

// Dialogs returns the merged dialog set.
func (m *Merger) Dialogs() map[int]*model.Dialog { return m.dialogs }
