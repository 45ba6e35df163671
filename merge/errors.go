package merge

import "errors"

// ErrMergeConflict is returned when two trusted records with the same id
// disagree on a non-mergeable field. The pipeline orchestrator wraps this
// into dialogtrace.ErrMergeConflict at the phase boundary.
var ErrMergeConflict = errors.New("merge: trusted records disagree")

// ErrRoleNameConflict is the specific disagreement that fails a Dialog
// in-place update: the newcomer carries a valid role-name hash and the
// incumbent already holds a different valid one.
var ErrRoleNameConflict = errors.New("merge: incumbent and newcomer role-name hashes disagree")
