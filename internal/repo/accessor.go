package repo

import "context"

// DiffFile describes one changed file in a base...head comparison.
type DiffFile struct {
	Path      string `json:"filename"`
	Status    string `json:"status"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
}

// Comparison is the result of diffing the working branch against its base.
type Comparison struct {
	TotalFiles int        `json:"total_files"`
	AheadBy    int        `json:"ahead_by"`
	Files      []DiffFile `json:"files"`
}

// ChangeRequest identifies an opened pull request.
type ChangeRequest struct {
	URL    string `json:"url"`
	Number int    `json:"number"`
}

// Accessor is the hosting-API surface the integration pipeline depends on.
// One accessor is owned by exactly one run; implementations are not safe for
// concurrent use across runs.
type Accessor interface {
	// DefaultBranch returns the repository's default branch name.
	DefaultBranch(ctx context.Context) (string, error)

	// CreateWorkingBranch creates a new branch at the head of base.
	CreateWorkingBranch(ctx context.Context, base, name string) error

	// Tree returns the flat list of tracked file paths at the branch head.
	// Results are cached per head SHA.
	Tree(ctx context.Context, branch string) ([]string, error)

	// ReadFile returns up to maxChars characters of a UTF-8 file. It reports
	// whether the content was truncated. Directory targets return
	// ErrIsDirectory, binary content returns ErrNotText.
	ReadFile(ctx context.Context, branch, path string, maxChars int) (content string, truncated bool, err error)

	// CommitFiles writes all given files as a single commit on branch and
	// returns the new commit SHA. An empty file set performs no mutation.
	CommitFiles(ctx context.Context, branch, message string, files map[string]string) (string, error)

	// Diff compares base...head.
	Diff(ctx context.Context, base, head string) (*Comparison, error)

	// OpenChangeRequest opens a pull request from head into base.
	OpenChangeRequest(ctx context.Context, head, base, title, body string) (*ChangeRequest, error)

	// InvalidateTree drops the cached tree listing.
	InvalidateTree()
}
