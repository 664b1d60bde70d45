package repo

import "errors"

// Error classes surfaced by the accessor. Tool handlers report these back to
// the model as structured failures instead of aborting the run.
var (
	ErrUnsafePath  = errors.New("unsafe repository path")
	ErrIsDirectory = errors.New("path is a directory")
	ErrNotText     = errors.New("file is not UTF-8 text")
	ErrNotFound    = errors.New("path not found")
)
