package dialogtrace

import (
	"os"
	"path/filepath"

	"github.com/kqwyf/dialogtrace/model"
)

// Config holds all configuration for a reconstruction run.
type Config struct {
	// DBPath is the full path to the diagnostics/snapshot SQLite database.
	// If empty, defaults to ~/.dialogtrace/<DBName>.db
	DBPath string `json:"db_path" yaml:"db_path"`

	// DBName is the name for the database (used when DBPath is empty).
	// Defaults to "dialogtrace". The file will be <DBName>.db inside the
	// storage directory (~/.dialogtrace/ or working dir).
	DBName string `json:"db_name" yaml:"db_name"`

	// StorageDir controls where the database is created when DBPath is
	// not explicitly set. Options: "home" (default) uses ~/.dialogtrace/,
	// "local" uses the current working directory.
	StorageDir string `json:"storage_dir" yaml:"storage_dir"`

	// RemoveQuestCycles enables deterministic cycle removal in the quest
	// DAG builder. Default true; without it the quest graph may keep
	// directed cycles.
	RemoveQuestCycles bool `json:"remove_quest_cycles" yaml:"remove_quest_cycles"`

	// TraceConcurrency bounds how many sources' trace-covering runs run in
	// parallel. Zero means sequential.
	TraceConcurrency int `json:"trace_concurrency" yaml:"trace_concurrency"`

	// ExportPolicy controls the exporter's behavior when a required text
	// is absent from the external text map.
	ExportPolicy model.ExportPolicy `json:"export_policy" yaml:"export_policy"`

	// IncludeUnreleased controls whether Unreleased-flagged talks/dialogs
	// survive cleaning and export. Default false.
	IncludeUnreleased bool `json:"include_unreleased" yaml:"include_unreleased"`

	// AliasTable is the ordered list of obfuscated-field candidates tried
	// when resolving a raw input item's fields. Nil means
	// ingest.DefaultAliasTable().
	AliasTable map[string][]string `json:"alias_table,omitempty" yaml:"alias_table,omitempty"`

	// CoverageReportPath, if set, writes a per-source coverage spreadsheet
	// after a run completes (package report).
	CoverageReportPath string `json:"coverage_report_path,omitempty" yaml:"coverage_report_path,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
// The diagnostics snapshot is stored in ~/.dialogtrace/dialogtrace.db by
// default.
func DefaultConfig() Config {
	return Config{
		DBName:            "dialogtrace",
		StorageDir:        "home",
		RemoveQuestCycles: true,
		TraceConcurrency:  8,
		ExportPolicy:      model.ExportDropMissing,
	}
}

// resolveDBPath computes the final diagnostics database path from config
// fields.
func (c *Config) resolveDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}

	name := c.DBName
	if name == "" {
		name = "dialogtrace"
	}

	switch c.StorageDir {
	case "local", "cwd":
		return name + ".db"
	default: // "home" or empty
		home, err := os.UserHomeDir()
		if err != nil {
			return name + ".db" // fallback to cwd
		}
		dir := filepath.Join(home, ".dialogtrace")
		return filepath.Join(dir, name+".db")
	}
}
