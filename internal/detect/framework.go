package detect

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/varyops/vary/internal/repo"
)

// Framework is the detected web framework family.
type Framework string

const (
	FrameworkNextApp     Framework = "Next.js App Router"
	FrameworkNextPages   Framework = "Next.js Pages Router"
	FrameworkReactRouter Framework = "React + React Router"
	FrameworkVue         Framework = "Vue"
	FrameworkReact       Framework = "React (Vite/CRA)"
	FrameworkUnknownJS   Framework = "Unknown JS framework"
	FrameworkUnknown     Framework = "Unknown"
)

// manifestMaxChars bounds the package.json read.
const manifestMaxChars = 16000

// Framework detection reads one manifest file; best effort, never an error.
func DetectFramework(ctx context.Context, acc repo.Accessor, branch string) Framework {
	manifest, _, err := acc.ReadFile(ctx, branch, "package.json", manifestMaxChars)
	if err != nil {
		return FrameworkUnknown
	}
	tree, err := acc.Tree(ctx, branch)
	if err != nil {
		tree = nil
	}
	return ClassifyFramework(manifest, tree)
}

// ClassifyFramework classifies by dependency names in the manifest and
// directory conventions in the tree. Pure string/set inspection.
func ClassifyFramework(manifest string, tree []string) Framework {
	var pkg struct {
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal([]byte(manifest), &pkg); err != nil {
		return FrameworkUnknown
	}

	deps := make(map[string]bool, len(pkg.Dependencies)+len(pkg.DevDependencies))
	for name := range pkg.Dependencies {
		deps[name] = true
	}
	for name := range pkg.DevDependencies {
		deps[name] = true
	}

	switch {
	case deps["next"]:
		for _, p := range tree {
			if strings.HasPrefix(p, "app/") {
				return FrameworkNextApp
			}
		}
		return FrameworkNextPages
	case deps["react-router-dom"] || deps["react-router"]:
		return FrameworkReactRouter
	case deps["vue"]:
		return FrameworkVue
	case deps["react"]:
		return FrameworkReact
	default:
		return FrameworkUnknownJS
	}
}
