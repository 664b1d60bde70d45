package detect

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/varyops/vary/internal/repo"
)

// fakeAccessor serves an in-memory file set for detector tests.
type fakeAccessor struct {
	files map[string]string
	tree  []string
}

func (f *fakeAccessor) DefaultBranch(context.Context) (string, error) { return "main", nil }

func (f *fakeAccessor) CreateWorkingBranch(context.Context, string, string) error { return nil }

func (f *fakeAccessor) Tree(context.Context, string) ([]string, error) { return f.tree, nil }

func (f *fakeAccessor) ReadFile(_ context.Context, _ string, path string, maxChars int) (string, bool, error) {
	content, ok := f.files[path]
	if !ok {
		return "", false, fmt.Errorf("%w: %s", repo.ErrNotFound, path)
	}
	return repo.Truncate(content, maxChars)
}

func (f *fakeAccessor) CommitFiles(context.Context, string, string, map[string]string) (string, error) {
	return "", nil
}

func (f *fakeAccessor) Diff(context.Context, string, string) (*repo.Comparison, error) {
	return &repo.Comparison{}, nil
}

func (f *fakeAccessor) OpenChangeRequest(context.Context, string, string, string, string) (*repo.ChangeRequest, error) {
	return nil, nil
}

func (f *fakeAccessor) InvalidateTree() {}

func TestClassifyFramework(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		tree     []string
		want     Framework
	}{
		{
			name:     "next with app dir",
			manifest: `{"dependencies":{"next":"14.0.0","react":"18.0.0"}}`,
			tree:     []string{"app/layout.tsx", "app/page.tsx", "package.json"},
			want:     FrameworkNextApp,
		},
		{
			name:     "next without app dir",
			manifest: `{"dependencies":{"next":"13.0.0"}}`,
			tree:     []string{"pages/_app.tsx", "pages/index.tsx"},
			want:     FrameworkNextPages,
		},
		{
			name:     "react router",
			manifest: `{"dependencies":{"react":"18.0.0","react-router-dom":"6.0.0"}}`,
			want:     FrameworkReactRouter,
		},
		{
			name:     "vue",
			manifest: `{"dependencies":{"vue":"3.4.0"}}`,
			want:     FrameworkVue,
		},
		{
			name:     "plain react via devDependencies",
			manifest: `{"dependencies":{"react":"18.0.0"},"devDependencies":{"vite":"5.0.0"}}`,
			want:     FrameworkReact,
		},
		{
			name:     "no known deps",
			manifest: `{"dependencies":{"express":"4.0.0"}}`,
			want:     FrameworkUnknownJS,
		},
		{
			name:     "unparseable manifest",
			manifest: `not json at all`,
			want:     FrameworkUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyFramework(tt.manifest, tt.tree))
		})
	}
}

func TestDetectFramework_MissingManifest(t *testing.T) {
	acc := &fakeAccessor{files: map[string]string{}}
	got := DetectFramework(context.Background(), acc, "main")
	assert.Equal(t, FrameworkUnknown, got)
}

func TestDetectFramework_ReadsManifestAndTree(t *testing.T) {
	acc := &fakeAccessor{
		files: map[string]string{
			"package.json": `{"dependencies":{"next":"14.0.0"}}`,
		},
		tree: []string{"app/layout.tsx"},
	}
	got := DetectFramework(context.Background(), acc, "main")
	assert.Equal(t, FrameworkNextApp, got)
}
