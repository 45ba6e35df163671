// Command dialogtrace is a thin wrapper around the dialogtrace library's
// Config and Run entry point. Raw asset-file enumeration stays external:
// this binary accepts one already-assembled bundle file naming each
// talk/dialog record's raw JSON plus its provenance and trust flag (see
// bundle and item below), resolves each through package ingest's alias
// table, and hands the result to Run.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	dialogtrace "github.com/kqwyf/dialogtrace"
	"github.com/kqwyf/dialogtrace/export"
	"github.com/kqwyf/dialogtrace/ingest"
	"github.com/kqwyf/dialogtrace/model"
)

// item is one raw Talk or Dialog record exactly as read from a game asset
// shard, tagged with its provenance and trust flag.
type item struct {
	JSON       string `json:"json"`
	Provenance string `json:"provenance"`
	Trusted    bool   `json:"trusted"`
}

// bundle is the on-disk shape this CLI accepts: raw talk/dialog records
// (resolved through package ingest's alias table below) plus the metadata
// tables handed through to the pipeline.
type bundle struct {
	Talks   []item `json:"talks"`
	Dialogs []item `json:"dialogs"`

	Quests        map[int]*model.Quest        `json:"quests"`
	SubQuests     map[int]*model.SubQuest     `json:"subquests"`
	Chapters      map[int]*model.Chapter      `json:"chapters"`
	Avatars       map[int]*model.Avatar       `json:"avatars"`
	Items         map[int]*model.Item         `json:"items"`
	Weapons       map[int]*model.Weapon       `json:"weapons"`
	ReliquarySets map[int]*model.ReliquarySet `json:"reliquary_sets"`
}

func main() {
	inputPath := flag.String("input", "", "Path to a normalized talk/dialog bundle (JSON)")
	textMapPath := flag.String("textmap", "", "Path to a flat hash->text JSON map; a trace with an omitted hash is dropped or truncated per the config's export policy")
	outputPath := flag.String("output", "", "Path to write the exported document (JSON); defaults to stdout")
	configPath := flag.String("config", "", "Path to a Config override file (JSON)")
	includeUnreleased := flag.Bool("include-unreleased", false, "Include Unreleased-flagged content in the export")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if *inputPath == "" {
		slog.Error("missing required -input flag")
		os.Exit(1)
	}

	cfg := dialogtrace.DefaultConfig()
	if *configPath != "" {
		f, err := os.Open(*configPath)
		if err != nil {
			slog.Error("opening config", "error", err)
			os.Exit(1)
		}
		err = json.NewDecoder(f).Decode(&cfg)
		f.Close()
		if err != nil {
			slog.Error("parsing config", "error", err)
			os.Exit(1)
		}
	}
	if v := os.Getenv("DIALOGTRACE_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("DIALOGTRACE_REPORT_PATH"); v != "" {
		cfg.CoverageReportPath = v
	}
	cfg.IncludeUnreleased = *includeUnreleased

	aliases := ingest.DefaultAliasTable()
	if cfg.AliasTable != nil {
		aliases = aliases.Merge(ingest.AliasTable(cfg.AliasTable))
	}

	in, err := loadBundle(*inputPath, aliases)
	if err != nil {
		slog.Error("loading input bundle", "error", err)
		os.Exit(1)
	}

	textMap, err := loadTextMap(*textMapPath)
	if err != nil {
		slog.Error("loading text map", "error", err)
		os.Exit(1)
	}

	exporter := &export.Exporter{
		Text:    flatTextResolver(textMap),
		Release: releaseFilter(cfg.IncludeUnreleased),
		Policy:  cfg.ExportPolicy,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := dialogtrace.Run(ctx, cfg, in, exporter, slog.Default())
	if err != nil {
		slog.Error("run failed", "error", err)
		os.Exit(1)
	}

	slog.Info("run complete",
		"run_id", result.Diagnostics.RunID,
		"sources", result.Diagnostics.SourceCount,
		"traces", result.Diagnostics.TraceCount,
	)

	out := os.Stdout
	if *outputPath != "" {
		f, err := os.Create(*outputPath)
		if err != nil {
			slog.Error("creating output file", "error", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result.Document); err != nil {
		slog.Error("encoding output", "error", err)
		os.Exit(1)
	}
}

func loadBundle(path string, aliases ingest.AliasTable) (dialogtrace.Input, error) {
	f, err := os.Open(path)
	if err != nil {
		return dialogtrace.Input{}, err
	}
	defer f.Close()

	var b bundle
	if err := json.NewDecoder(f).Decode(&b); err != nil {
		return dialogtrace.Input{}, err
	}

	talks := make([]model.Talk, 0, len(b.Talks))
	for _, raw := range b.Talks {
		t, err := ingest.ParseTalk(raw.JSON, aliases, raw.Provenance, raw.Trusted)
		if err != nil {
			return dialogtrace.Input{}, fmt.Errorf("parsing talk (provenance %q): %w", raw.Provenance, err)
		}
		talks = append(talks, t)
	}

	dialogs := make([]model.Dialog, 0, len(b.Dialogs))
	for _, raw := range b.Dialogs {
		d, err := ingest.ParseDialog(raw.JSON, aliases, raw.Provenance, raw.Trusted)
		if err != nil {
			return dialogtrace.Input{}, fmt.Errorf("parsing dialog (provenance %q): %w", raw.Provenance, err)
		}
		dialogs = append(dialogs, d)
	}

	return dialogtrace.Input{
		Talks:         talks,
		Dialogs:       dialogs,
		Quests:        b.Quests,
		SubQuests:     b.SubQuests,
		Chapters:      b.Chapters,
		Avatars:       b.Avatars,
		Items:         b.Items,
		Weapons:       b.Weapons,
		ReliquarySets: b.ReliquarySets,
	}, nil
}

func loadTextMap(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var m map[string]string
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return nil, err
	}
	return m, nil
}

// flatTextResolver looks hashes up directly in a flat map, the simplest
// possible TextResolver; a real text-map/placeholder substitution pipeline
// plugs in through the same interface.
type flatTextResolver map[string]string

func (m flatTextResolver) Resolve(hash string) (string, bool) {
	text, ok := m[hash]
	return text, ok
}

// releaseFilter lets Unreleased content through only when includeUnreleased
// is set.
type releaseFilter bool

func (f releaseFilter) Allowed(state model.ReleaseState) bool {
	if state == model.Released {
		return true
	}
	return bool(f)
}
