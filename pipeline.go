package dialogtrace

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/tiendc/go-deepcopy"
	"golang.org/x/sync/errgroup"

	"github.com/kqwyf/dialogtrace/clean"
	"github.com/kqwyf/dialogtrace/connect"
	"github.com/kqwyf/dialogtrace/dialoggraph"
	"github.com/kqwyf/dialogtrace/export"
	"github.com/kqwyf/dialogtrace/flow"
	"github.com/kqwyf/dialogtrace/merge"
	"github.com/kqwyf/dialogtrace/model"
	"github.com/kqwyf/dialogtrace/questdag"
	"github.com/kqwyf/dialogtrace/report"
	"github.com/kqwyf/dialogtrace/source"
	"github.com/kqwyf/dialogtrace/startend"
	"github.com/kqwyf/dialogtrace/store"
)

// Input is everything the core needs from the external ingestion layer;
// raw file enumeration and obfuscated-field remapping happen before this
// point, typically via package ingest.
// Talks and Dialogs go through the record merger. Quests and
// SubQuests are wired in place (cleaning prunes their reference lists, the
// quest DAG builder fills NextQuests/PrevQuests); the remaining metadata
// containers are threaded through untouched for external per-entity
// exporters.
type Input struct {
	Talks   []model.Talk
	Dialogs []model.Dialog

	Quests        map[int]*model.Quest
	SubQuests     map[int]*model.SubQuest
	Chapters      map[int]*model.Chapter
	Avatars       map[int]*model.Avatar
	Items         map[int]*model.Item
	Weapons       map[int]*model.Weapon
	ReliquarySets map[int]*model.ReliquarySet
}

// Diagnostics summarizes counts gathered across one Run, so a caller
// never has to re-derive per-phase drop counts from the final Database.
type Diagnostics struct {
	RunID string

	DroppedTalks           int
	DroppedDialogs         int
	DroppedBeginConditions int
	DroppedSuggestedNext   int
	InferredRoleDialogs    int
	RemovedSelfLoops       int
	AmbiguousAttributions  int
	DegenerateSources      int

	SourceCount          int
	TraceCount           int
	DroppedExportSources []string
}

// Result is the final product of a pipeline Run: the exported document
// plus the reconstructed Database for callers that want to inspect
// sources/traces directly (e.g. package report), and the Diagnostics
// gathered along the way.
type Result struct {
	Document    map[string][][]export.Line
	Database    *model.Database
	Diagnostics Diagnostics
}

// Run executes the full reconstruction pipeline over in, in strict phase
// order: ingestion -> cleaning -> quest DAG -> source partitioning ->
// per-source graph -> trace covering -> source connection -> export. On a
// merge conflict (fatal) Run returns a non-nil error wrapping
// ErrMergeConflict. Records without a recognizable id never reach Run:
// package ingest rejects them while parsing. Every other error kind is
// handled locally and only counted into the returned Diagnostics.
func Run(ctx context.Context, cfg Config, in Input, exporter *export.Exporter, log *slog.Logger) (Result, error) {
	if log == nil {
		log = slog.Default()
	}
	runID := uuid.NewString()
	log = log.With("run_id", runID)

	var st *store.Store
	if cfg.resolveDBPath() != "" {
		s, err := store.New(cfg.resolveDBPath())
		if err != nil {
			log.Warn("opening diagnostics store failed, continuing without it", "error", err)
		} else {
			st = s
			defer st.Close()
			if err := st.CreateRun(ctx, runID); err != nil {
				log.Warn("recording run start failed", "error", err)
			}
		}
	}

	diag := Diagnostics{RunID: runID}

	db, err := runPhases(ctx, cfg, in, log, st, runID, &diag)
	if err != nil {
		if st != nil {
			_ = st.FinishRun(ctx, runID, "failed", err.Error())
		}
		return Result{}, err
	}

	doc, dropped := exporter.Export(db)
	diag.DroppedExportSources = dropped
	diag.SourceCount = len(db.Sources)
	for _, src := range db.Sources {
		diag.TraceCount += len(src.Traces)
	}

	if st != nil {
		if err := st.SaveSources(ctx, runID, db); err != nil {
			log.Warn("saving source snapshot failed", "error", err)
		}
		for _, name := range db.SortedSourceNames() {
			if err := st.SaveTraces(ctx, runID, name, db.Sources[name].Traces); err != nil {
				log.Warn("saving trace snapshot failed", "source", name, "error", err)
			}
		}
		if err := st.FinishRun(ctx, runID, "ok", ""); err != nil {
			log.Warn("recording run finish failed", "error", err)
		}
	}

	log.Info("pipeline finished",
		"source_count", diag.SourceCount,
		"trace_count", diag.TraceCount,
		"dropped_export_sources", len(diag.DroppedExportSources),
	)

	return Result{Document: doc, Database: db, Diagnostics: diag}, nil
}

func runPhases(ctx context.Context, cfg Config, in Input, log *slog.Logger, st *store.Store, runID string, diag *Diagnostics) (*model.Database, error) {
	db := model.NewDatabase()
	for id, q := range in.Quests {
		db.Quests[id] = q
	}
	for id, sq := range in.SubQuests {
		db.SubQuests[id] = sq
	}
	for id, c := range in.Chapters {
		db.Chapters[id] = c
	}
	for id, a := range in.Avatars {
		db.Avatars[id] = a
	}
	for id, it := range in.Items {
		db.Items[id] = it
	}
	for id, w := range in.Weapons {
		db.Weapons[id] = w
	}
	for id, rs := range in.ReliquarySets {
		db.ReliquarySets[id] = rs
	}

	// Merge talk/dialog records.
	m := merge.New()
	for _, t := range in.Talks {
		if err := m.AddTalk(t); err != nil {
			return nil, fmt.Errorf("pipeline: %w: %v", ErrMergeConflict, err)
		}
	}
	for _, d := range in.Dialogs {
		if err := m.AddDialog(d); err != nil {
			return nil, fmt.Errorf("pipeline: %w: %v", ErrMergeConflict, err)
		}
	}
	db.Talks = m.Talks()
	db.Dialogs = m.Dialogs()
	logPhase(ctx, st, runID, "merge", "info", "merged records", map[string]any{
		"talks": len(db.Talks), "dialogs": len(db.Dialogs),
	})

	// Clean the merged graph.
	cleanReport := clean.Clean(db, cfg.IncludeUnreleased, log)
	diag.DroppedTalks = cleanReport.DroppedTalks
	diag.DroppedDialogs = cleanReport.DroppedDialogs
	diag.DroppedBeginConditions = cleanReport.DroppedBeginConditions
	diag.DroppedSuggestedNext = cleanReport.DroppedSuggestedNext
	diag.InferredRoleDialogs = cleanReport.InferredRoleDialogs
	diag.RemovedSelfLoops = cleanReport.RemovedSelfLoops
	logPhase(ctx, st, runID, "clean", "info", "cleaned graph", map[string]any{
		"dropped_talks": cleanReport.DroppedTalks, "dropped_dialogs": cleanReport.DroppedDialogs,
	})

	// Build the quest DAG.
	questdag.Build(db, cfg.RemoveQuestCycles, log)
	logPhase(ctx, st, runID, "questdag", "info", "built quest DAG", map[string]any{
		"remove_cycles": cfg.RemoveQuestCycles,
	})

	// Attribute talks and partition into sources.
	ambiguous := source.Attribute(db, log)
	diag.AmbiguousAttributions = len(ambiguous)
	source.Partition(db, log)
	logPhase(ctx, st, runID, "source", "info", "partitioned sources", map[string]any{
		"source_count": len(db.Sources), "ambiguous_talks": len(ambiguous),
	})

	// Per-source phases: assemble the dialog graph, choose start/end sets,
	// then cover with a minimum set of walks. Assembly and start/end
	// selection touch the shared Database (assembly writes each source's
	// DialogIDs) so they run sequentially; covering only needs the
	// already-built per-source graph
	// and may run in parallel across sources.
	names := db.SortedSourceNames()
	type job struct {
		src          *model.Source
		g            *dialoggraph.Graph
		starts, ends []int
	}
	jobs := make([]*job, 0, len(names))
	for _, name := range names {
		src := db.Sources[name]
		g := dialoggraph.Assemble(db, src)
		if len(g.Nodes) == 0 {
			diag.DegenerateSources++
			continue
		}
		res := startend.Choose(g, startend.PreferredStarts(db, src.TalkIDs))
		if len(res.Start) == 0 || len(res.End) == 0 {
			diag.DegenerateSources++
			continue
		}
		jobs = append(jobs, &job{src: src, g: g, starts: res.Start, ends: res.End})
	}

	grp, _ := errgroup.WithContext(ctx)
	if cfg.TraceConcurrency > 0 {
		grp.SetLimit(cfg.TraceConcurrency)
	} else {
		grp.SetLimit(1)
	}
	for _, j := range jobs {
		j := j
		grp.Go(func() error {
			// Clone the per-source graph before handing it to a worker so
			// concurrent covering never shares mutable state, even though
			// flow.Cover itself only reads its input.
			var clone dialoggraph.Graph
			if err := deepcopy.Copy(&clone, j.g); err != nil {
				return fmt.Errorf("pipeline: cloning source %q graph: %w", j.src.Name, err)
			}
			j.src.Traces = flow.Cover(&clone, j.starts, j.ends)
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, fmt.Errorf("pipeline: trace covering: %w", err)
	}
	logPhase(ctx, st, runID, "flow", "info", "covered sources", map[string]any{
		"covered": len(jobs), "degenerate": diag.DegenerateSources,
	})

	// Connect sources within and across quests.
	connect.Connect(db)
	logPhase(ctx, st, runID, "connect", "info", "connected sources", nil)

	if cfg.CoverageReportPath != "" {
		starts := make(map[string][]int, len(jobs))
		ends := make(map[string][]int, len(jobs))
		for _, j := range jobs {
			starts[j.src.Name] = j.starts
			ends[j.src.Name] = j.ends
		}
		rows := report.BuildRows(db, starts, ends)
		if err := report.Write(cfg.CoverageReportPath, rows); err != nil {
			log.Warn("writing coverage report failed", "error", err)
		}
	}

	return db, nil
}

func logPhase(ctx context.Context, st *store.Store, runID, phase, level, message string, fields map[string]any) {
	if st == nil {
		return
	}
	if err := st.LogPhase(ctx, runID, phase, level, message, fields); err != nil {
		slog.Default().Warn("logging phase to store failed", "phase", phase, "error", err)
	}
}
