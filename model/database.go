package model

import "sort"

// Database is the single process-local arena holding every record of a
// pipeline run. Components reference records by id; Database is the only
// place pointers live, so phases can read the previous phase's output and
// write disjoint new fields without any locking: phases run strictly
// sequentially, and the only state handed to concurrent workers is a
// cloned per-source graph.
type Database struct {
	Talks         map[int]*Talk
	Dialogs       map[int]*Dialog
	SubQuests     map[int]*SubQuest
	Quests        map[int]*Quest
	Chapters      map[int]*Chapter
	Avatars       map[int]*Avatar
	Items         map[int]*Item
	Weapons       map[int]*Weapon
	ReliquarySets map[int]*ReliquarySet

	// Sources is populated by source.Partition and mutated in place by
	// every later phase.
	Sources map[string]*Source
}

// NewDatabase returns an empty, ready-to-populate Database.
func NewDatabase() *Database {
	return &Database{
		Talks:         make(map[int]*Talk),
		Dialogs:       make(map[int]*Dialog),
		SubQuests:     make(map[int]*SubQuest),
		Quests:        make(map[int]*Quest),
		Chapters:      make(map[int]*Chapter),
		Avatars:       make(map[int]*Avatar),
		Items:         make(map[int]*Item),
		Weapons:       make(map[int]*Weapon),
		ReliquarySets: make(map[int]*ReliquarySet),
		Sources:       make(map[string]*Source),
	}
}

// SortedTalkIDs returns the talk ids in ascending order. Several phases
// need deterministic iteration order over the map.
func (d *Database) SortedTalkIDs() []int {
	ids := make([]int, 0, len(d.Talks))
	for id := range d.Talks {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// SortedDialogIDs returns the dialog ids in ascending order.
func (d *Database) SortedDialogIDs() []int {
	ids := make([]int, 0, len(d.Dialogs))
	for id := range d.Dialogs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// SortedQuestIDs returns the quest ids in ascending order.
func (d *Database) SortedQuestIDs() []int {
	ids := make([]int, 0, len(d.Quests))
	for id := range d.Quests {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// SortedSourceNames returns the source names in lexicographic order.
func (d *Database) SortedSourceNames() []string {
	names := make([]string, 0, len(d.Sources))
	for name := range d.Sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
