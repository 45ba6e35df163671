// Package model defines the dialog-corpus data model: the in-memory records
// produced, merged, cleaned, partitioned, and exported by the reconstruction
// pipeline. Records reference each other by integer id, never by pointer,
// so the whole corpus can be held as flat maps keyed by id (an arena +
// index pattern) with no ownership cycles to reason about.
package model

// Role tag values recognized on a Dialog. Positive values are NPC ids.
const (
	RolePlayer   = 0
	RoleNarrator = -2
	RoleMate     = -3
	RoleUnknown  = -1
)

// NoDialog is the sentinel for "no initial dialog specified" on a Talk.
const NoDialog = -1

// NoOrder is the sentinel for "no order assigned" on a Source or SubQuest.
const NoOrder = -1

// AnyTalk is the sentinel subquest-terminator meaning "any talk completes
// this subquest".
const AnyTalk = -1

// BeginCondComb is the logical combinator over a Talk's begin conditions.
type BeginCondComb int

const (
	CombAND BeginCondComb = iota
	CombOR
)

// SubquestState is the state atom in a begin-condition pair.
type SubquestState int

const (
	StateInProgress SubquestState = iota
	StateFinished
	StateFailed
)

// ReleaseState marks whether a record belongs to released or unreleased
// (beta/cut) content. Unreleased records are pruned during cleaning unless
// the run is configured to keep them.
type ReleaseState int

const (
	Released ReleaseState = iota
	Unreleased
)

// ExportPolicy controls the exporter façade's behavior when a trace
// references text that the external text-map resolver cannot supply.
type ExportPolicy int

const (
	// ExportDropMissing drops a trace entirely if any line's text is absent.
	ExportDropMissing ExportPolicy = iota
	// ExportTruncateMissing truncates a trace at the first missing line.
	ExportTruncateMissing
)

// BeginCondition is one atom of a Talk's begin-condition list: the talk may
// fire when subquest SubQuestID is in state State.
type BeginCondition struct {
	SubQuestID int
	State      SubquestState
}

// Talk is a group of dialogs with entry, exit, and chaining rules.
type Talk struct {
	ID              int
	NPCIDs          []int
	InitDialog      int // NoDialog if unspecified
	NextTalks       []int
	PrevTalks       []int // derived from NextTalks by source.Partition
	BeginCondComb   BeginCondComb
	BeginConditions []BeginCondition
	Trusted         bool
	Provenance      string
	Release         ReleaseState

	// QuestID/SubQuestID are -1 until assigned by package source's
	// attribution pass. Ambiguous attribution leaves both at -1.
	QuestID    int
	SubQuestID int
}

// Dialog is a single line of speech with a role, text, and successors
// representing branching.
type Dialog struct {
	ID            int
	TalkID        int // sentinel NoDialog if no owning talk is known
	Role          int
	ContentHash   string
	RoleNameHash  string
	NextDialogs   []int
	Trusted       bool
	Provenance    string
	Release       ReleaseState
}

// SubQuest is a named step within a Quest.
type SubQuest struct {
	ID                 int
	QuestID            int
	Order              int // NoOrder if unspecified
	DescriptionHash    string
	StepDescHash       string
	TerminatingTalkIDs []int // AnyTalk (-1) means "any talk completes this subquest"
}

// QuestType enumerates the recognized quest categories.
type QuestType int

const (
	QuestArchon QuestType = iota
	QuestEvent
	QuestIntrust
	QuestLegend
	QuestWorld
)

// Quest groups subquests and talks under a title, wired into a DAG by
// package questdag.
type Quest struct {
	ID             int
	Type           QuestType
	TitleHash      string
	DescHash       string
	SuggestedNext  []int
	ChapterID      int
	SubQuestIDs    []int // ordered
	TalkIDs        []int

	// Populated by questdag.Build.
	NextQuests []int
	PrevQuests []int
}

// Chapter, Avatar, Item, Weapon, and ReliquarySet are metadata containers
// consumed only by external per-entity exporters; the core never mutates
// them. They are retained here only so ingestion can hand the whole asset
// dump through one data model.
type Chapter struct {
	ID        int
	TitleHash string
}

type Avatar struct {
	ID       int
	NameHash string
}

type Item struct {
	ID       int
	NameHash string
}

type Weapon struct {
	ID       int
	NameHash string
}

type ReliquarySet struct {
	ID       int
	NameHash string
}

// Source is a connected group of dialogs/talks treated as one narrative
// scene: produced by package source, filled in by package dialoggraph,
// covered by traces in package flow, and wired to neighbors by package
// connect.
type Source struct {
	Name  string
	Order int // NoOrder if unordered within its quest

	QuestID    int // -1 if none
	SubQuestID int // -1 if none

	// TalkIDs is nil when the source was formed directly from dialogs
	// (a "dialog_<id>" source with no owning talks).
	TalkIDs []int

	// DialogIDs is populated once the dialog graph is inlined by package
	// dialoggraph.
	DialogIDs []int

	// Traces is populated by package flow. Each trace is a sequence of
	// dialog ids.
	Traces [][]int

	PrevSources          []string
	NextSources          []string
	PrevSourcesOptional  []string
	NextSourcesOptional  []string
}
