package repo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"unicode/utf8"

	"github.com/google/go-github/v58/github"
)

// GitHub implements Accessor against the GitHub REST API. All writes go
// through CommitFiles, which is the run's sole mutation path.
type GitHub struct {
	client *github.Client
	owner  string
	repo   string
	tree   TreeCache
}

// NewGitHub creates an accessor for owner/repo authenticated with token.
func NewGitHub(token, owner, repo string) *GitHub {
	return &GitHub{
		client: github.NewClient(nil).WithAuthToken(token),
		owner:  owner,
		repo:   repo,
	}
}

func (g *GitHub) DefaultBranch(ctx context.Context) (string, error) {
	r, _, err := g.client.Repositories.Get(ctx, g.owner, g.repo)
	if err != nil {
		return "", fmt.Errorf("get repository %s/%s: %w", g.owner, g.repo, err)
	}
	return r.GetDefaultBranch(), nil
}

// headSHA returns the commit SHA at the tip of branch.
func (g *GitHub) headSHA(ctx context.Context, branch string) (string, error) {
	ref, _, err := g.client.Git.GetRef(ctx, g.owner, g.repo, "heads/"+branch)
	if err != nil {
		return "", fmt.Errorf("get ref heads/%s: %w", branch, err)
	}
	return ref.GetObject().GetSHA(), nil
}

func (g *GitHub) CreateWorkingBranch(ctx context.Context, base, name string) error {
	sha, err := g.headSHA(ctx, base)
	if err != nil {
		return err
	}
	_, _, err = g.client.Git.CreateRef(ctx, g.owner, g.repo, &github.Reference{
		Ref:    github.String("refs/heads/" + name),
		Object: &github.GitObject{SHA: github.String(sha)},
	})
	if err != nil {
		return fmt.Errorf("create branch %s: %w", name, err)
	}
	return nil
}

func (g *GitHub) Tree(ctx context.Context, branch string) ([]string, error) {
	sha, err := g.headSHA(ctx, branch)
	if err != nil {
		return nil, err
	}
	if paths, ok := g.tree.Get(sha); ok {
		return paths, nil
	}

	tree, _, err := g.client.Git.GetTree(ctx, g.owner, g.repo, sha, true)
	if err != nil {
		return nil, fmt.Errorf("get tree %s: %w", sha, err)
	}
	var paths []string
	for _, entry := range tree.Entries {
		if entry.GetType() == "blob" {
			paths = append(paths, entry.GetPath())
		}
	}
	g.tree.Put(sha, paths)
	return paths, nil
}

func (g *GitHub) InvalidateTree() {
	g.tree.Invalidate()
}

func (g *GitHub) ReadFile(ctx context.Context, branch, path string, maxChars int) (string, bool, error) {
	if err := ValidatePath(path); err != nil {
		return "", false, err
	}

	file, dir, resp, err := g.client.Repositories.GetContents(ctx, g.owner, g.repo, path,
		&github.RepositoryContentGetOptions{Ref: branch})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return "", false, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return "", false, fmt.Errorf("get contents %s: %w", path, err)
	}
	if dir != nil {
		return "", false, fmt.Errorf("%w: %s", ErrIsDirectory, path)
	}

	content, err := file.GetContent()
	if err != nil {
		return "", false, fmt.Errorf("decode %s: %w", path, err)
	}
	if !utf8.ValidString(content) {
		return "", false, fmt.Errorf("%w: %s", ErrNotText, path)
	}

	return Truncate(content, maxChars)
}

// Truncate cuts s to at most maxChars runes and reports whether anything was
// dropped. maxChars <= 0 means no limit.
func Truncate(s string, maxChars int) (string, bool, error) {
	if maxChars <= 0 {
		return s, false, nil
	}
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s, false, nil
	}
	return string(runes[:maxChars]), true, nil
}

// CommitFiles is the batch commit engine: one blob per file, one tree layered
// on the branch's current tree, one commit, one ref move. Either every file
// lands in the same commit or none do. An empty set is a no-op.
func (g *GitHub) CommitFiles(ctx context.Context, branch, message string, files map[string]string) (string, error) {
	if len(files) == 0 {
		return "", nil
	}

	baseSHA, err := g.headSHA(ctx, branch)
	if err != nil {
		return "", err
	}
	baseCommit, _, err := g.client.Git.GetCommit(ctx, g.owner, g.repo, baseSHA)
	if err != nil {
		return "", fmt.Errorf("get commit %s: %w", baseSHA, err)
	}
	baseTreeSHA := baseCommit.GetTree().GetSHA()

	paths := make([]string, 0, len(files))
	for path := range files {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	entries := make([]*github.TreeEntry, 0, len(paths))
	for _, path := range paths {
		blob, _, err := g.client.Git.CreateBlob(ctx, g.owner, g.repo, &github.Blob{
			Content:  github.String(files[path]),
			Encoding: github.String("utf-8"),
		})
		if err != nil {
			return "", fmt.Errorf("create blob for %s: %w", path, err)
		}
		entries = append(entries, &github.TreeEntry{
			Path: github.String(path),
			Mode: github.String("100644"),
			Type: github.String("blob"),
			SHA:  github.String(blob.GetSHA()),
		})
	}

	newTree, _, err := g.client.Git.CreateTree(ctx, g.owner, g.repo, baseTreeSHA, entries)
	if err != nil {
		return "", fmt.Errorf("create tree: %w", err)
	}

	newCommit, _, err := g.client.Git.CreateCommit(ctx, g.owner, g.repo, &github.Commit{
		Message: github.String(message),
		Tree:    &github.Tree{SHA: newTree.SHA},
		Parents: []*github.Commit{{SHA: github.String(baseSHA)}},
	}, nil)
	if err != nil {
		return "", fmt.Errorf("create commit: %w", err)
	}

	_, _, err = g.client.Git.UpdateRef(ctx, g.owner, g.repo, &github.Reference{
		Ref:    github.String("refs/heads/" + branch),
		Object: &github.GitObject{SHA: newCommit.SHA},
	}, false)
	if err != nil {
		return "", fmt.Errorf("update ref heads/%s: %w", branch, err)
	}

	g.tree.Invalidate()
	return newCommit.GetSHA(), nil
}

func (g *GitHub) Diff(ctx context.Context, base, head string) (*Comparison, error) {
	comp, _, err := g.client.Repositories.CompareCommits(ctx, g.owner, g.repo, base, head, nil)
	if err != nil {
		return nil, fmt.Errorf("compare %s...%s: %w", base, head, err)
	}

	files := make([]DiffFile, 0, len(comp.Files))
	for _, f := range comp.Files {
		files = append(files, DiffFile{
			Path:      f.GetFilename(),
			Status:    f.GetStatus(),
			Additions: f.GetAdditions(),
			Deletions: f.GetDeletions(),
		})
	}
	return &Comparison{
		TotalFiles: len(files),
		AheadBy:    comp.GetAheadBy(),
		Files:      files,
	}, nil
}

func (g *GitHub) OpenChangeRequest(ctx context.Context, head, base, title, body string) (*ChangeRequest, error) {
	pr, _, err := g.client.PullRequests.Create(ctx, g.owner, g.repo, &github.NewPullRequest{
		Title: github.String(title),
		Body:  github.String(body),
		Head:  github.String(head),
		Base:  github.String(base),
	})
	if err != nil {
		var ghErr *github.ErrorResponse
		if errors.As(err, &ghErr) {
			return nil, fmt.Errorf("create pull request: %s", ghErr.Message)
		}
		return nil, fmt.Errorf("create pull request: %w", err)
	}
	return &ChangeRequest{URL: pr.GetHTMLURL(), Number: pr.GetNumber()}, nil
}
