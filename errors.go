package dialogtrace

import "errors"

// Error kinds reported by the pipeline. Wrap with
// fmt.Errorf("...: %w", ErrX) to attach the offending record id and
// provenance.
var (
	// ErrMergeConflict is returned when two trusted records with the same
	// id disagree on non-mergeable fields. Fatal: the run aborts.
	ErrMergeConflict = errors.New("dialogtrace: merge conflict between trusted records")

	// ErrInconsistentInput names the condition where a record has neither
	// an id nor any recognized obfuscated alias. Run never returns it:
	// package ingest rejects such a record with ingest.ErrNoID before Run
	// is called, and cmd/dialogtrace exits nonzero on that error.
	ErrInconsistentInput = errors.New("dialogtrace: record has no recognizable id field")

	// ErrMissingReference names the condition where a referenced dialog,
	// talk, subquest, or quest id does not exist. Handled locally by
	// package clean (the reference is pruned and counted in its Report);
	// never returned.
	ErrMissingReference = errors.New("dialogtrace: referenced record does not exist")

	// ErrAmbiguousAttribution names the condition where a talk appears to
	// belong to multiple quests. Handled locally by package source (the
	// talk is left unassigned and counted in Diagnostics); never fatal.
	ErrAmbiguousAttribution = errors.New("dialogtrace: talk attributed to multiple quests")

	// ErrUnsatisfiableConstraint names the condition where a
	// begin-condition range is empty during source connection. Never
	// returned: package connect falls back to attaching the source at the
	// quest's tail.
	ErrUnsatisfiableConstraint = errors.New("dialogtrace: begin-condition range is empty")

	// ErrGraphDegenerate names the condition where a source has no
	// in-degree-0 nodes and ancestor/descendant expansion cannot seed from
	// an empty set. Never returned: package startend's expansion loop
	// handles it.
	ErrGraphDegenerate = errors.New("dialogtrace: source graph has no natural start or end nodes")
)
