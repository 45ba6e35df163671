package ingest

import "errors"

// ErrNoID is returned when a raw record has no field matching any alias of
// its id. Fatal in the pipeline: such a record signals an unknown format.
var ErrNoID = errors.New("ingest: record has no recognizable id field")
