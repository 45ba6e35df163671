package store

// schemaSQL returns the DDL for a fresh dialogtrace database.
const schemaSQL = `
-- Pipeline run registry. Each invocation gets a UUID run id so snapshots
-- and audit entries from concurrent or historical runs never collide in
-- the same database file.
CREATE TABLE IF NOT EXISTS runs (
    id           TEXT PRIMARY KEY,
    started_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    finished_at  DATETIME,
    status       TEXT NOT NULL DEFAULT 'running',
    source_count INTEGER NOT NULL DEFAULT 0,
    trace_count  INTEGER NOT NULL DEFAULT 0,
    error        TEXT
);

-- Snapshot of every assembled source at the end of a run, post-connect.
-- Neighbor lists and id lists are write-once per run and always read back
-- whole, so they're kept as JSON arrays rather than junction tables.
CREATE TABLE IF NOT EXISTS sources (
    run_id                TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    name                  TEXT NOT NULL,
    quest_id              INTEGER NOT NULL,
    subquest_id           INTEGER NOT NULL,
    order_num             INTEGER NOT NULL,
    talk_ids              TEXT NOT NULL DEFAULT '[]',
    dialog_ids            TEXT NOT NULL DEFAULT '[]',
    next_sources          TEXT NOT NULL DEFAULT '[]',
    prev_sources          TEXT NOT NULL DEFAULT '[]',
    next_sources_optional TEXT NOT NULL DEFAULT '[]',
    prev_sources_optional TEXT NOT NULL DEFAULT '[]',
    PRIMARY KEY (run_id, name)
);

-- One row per covering trace, in discovery order so a source's trace
-- ordering survives a round trip.
CREATE TABLE IF NOT EXISTS traces (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id      TEXT NOT NULL,
    source_name TEXT NOT NULL,
    seq         INTEGER NOT NULL,
    dialog_ids  TEXT NOT NULL,
    FOREIGN KEY (run_id, source_name) REFERENCES sources(run_id, name) ON DELETE CASCADE
);

-- Per-phase audit trail. detail is a freeform JSON blob: every pipeline
-- phase reports a differently-shaped diagnostics value (merge's record
-- counts, clean's drop counts, questdag's cycle-removal flag, source's
-- source and ambiguous-talk counts, flow's covered/degenerate counts), so
-- one narrow detail column
-- replaces what would otherwise be a wide, mostly-null table.
CREATE TABLE IF NOT EXISTS run_log (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    phase      TEXT NOT NULL,
    level      TEXT NOT NULL DEFAULT 'info',
    message    TEXT NOT NULL,
    detail     TEXT NOT NULL DEFAULT '{}',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_sources_run ON sources(run_id);
CREATE INDEX IF NOT EXISTS idx_sources_quest ON sources(run_id, quest_id);
CREATE INDEX IF NOT EXISTS idx_traces_run_source ON traces(run_id, source_name);
CREATE INDEX IF NOT EXISTS idx_run_log_run_phase ON run_log(run_id, phase);
`
