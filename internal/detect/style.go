package detect

import (
	"fmt"
	"strings"
)

// Style captures surface conventions inferred from a sample of repository
// files. It is advisory context for the model, not an enforced grammar.
type Style struct {
	Indent          string // "2 spaces", "4 spaces", or "tabs"
	Quotes          string // "single" or "double"
	Semicolons      bool
	Styling         string // "utility classes", "CSS modules", "inline styles", "plain CSS"
	ImportAlias     bool   // "@/..." import paths in use
	DefaultExports  bool   // default exports outnumber named ones
	TypeScript      bool
	ClientDirective bool // "use client" boundary markers present
}

// InferStyle computes conventions from already-fetched file contents, keyed
// by path. Purely heuristic ratio and substring counts; no parsing.
func InferStyle(files map[string]string) Style {
	var (
		tabLines, twoSpaceLines, fourSpaceLines int
		singleQuotes, doubleQuotes              int
		semiLines, codeLines                    int
		moduleCSS, inlineStyle, classAttr       int
		defaultExports, namedExports            int
		s                                       Style
	)

	for path, content := range files {
		if strings.HasSuffix(path, ".ts") || strings.HasSuffix(path, ".tsx") {
			s.TypeScript = true
		}
		if strings.Contains(content, `"use client"`) || strings.Contains(content, `'use client'`) {
			s.ClientDirective = true
		}
		if strings.Contains(content, `from "@/`) || strings.Contains(content, `from '@/`) {
			s.ImportAlias = true
		}

		moduleCSS += strings.Count(content, ".module.css")
		inlineStyle += strings.Count(content, "style={{")
		classAttr += strings.Count(content, "className=")
		singleQuotes += strings.Count(content, "'")
		doubleQuotes += strings.Count(content, `"`)
		defaultExports += strings.Count(content, "export default")
		namedExports += strings.Count(content, "export const") + strings.Count(content, "export function")

		for _, line := range strings.Split(content, "\n") {
			switch {
			case strings.HasPrefix(line, "\t"):
				tabLines++
			case strings.HasPrefix(line, "    "):
				fourSpaceLines++
			case strings.HasPrefix(line, "  "):
				twoSpaceLines++
			}
			trimmed := strings.TrimSpace(line)
			if trimmed == "" || strings.HasPrefix(trimmed, "//") {
				continue
			}
			codeLines++
			if strings.HasSuffix(trimmed, ";") {
				semiLines++
			}
		}
	}

	switch {
	case tabLines > twoSpaceLines && tabLines > fourSpaceLines:
		s.Indent = "tabs"
	case fourSpaceLines > twoSpaceLines:
		s.Indent = "4 spaces"
	default:
		s.Indent = "2 spaces"
	}

	if singleQuotes > doubleQuotes {
		s.Quotes = "single"
	} else {
		s.Quotes = "double"
	}

	// A third of code lines ending in ";" is enough to call it a convention.
	s.Semicolons = codeLines > 0 && semiLines*3 >= codeLines

	switch {
	case moduleCSS > 0:
		s.Styling = "CSS modules"
	case inlineStyle > classAttr:
		s.Styling = "inline styles"
	case classAttr > 0:
		s.Styling = "utility classes"
	default:
		s.Styling = "plain CSS"
	}

	s.DefaultExports = defaultExports > namedExports
	return s
}

// Bullets renders the fixed-order constraint list injected verbatim into the
// task prompt.
func (s Style) Bullets() string {
	semi := "omit semicolons"
	if s.Semicolons {
		semi = "end statements with semicolons"
	}
	alias := "use relative import paths"
	if s.ImportAlias {
		alias = `use "@/" import alias paths`
	}
	exports := "prefer named exports"
	if s.DefaultExports {
		exports = "prefer default exports"
	}
	lang := "plain JavaScript (no type annotations)"
	if s.TypeScript {
		lang = "TypeScript with type annotations"
	}
	client := "no client/server boundary markers"
	if s.ClientDirective {
		client = `mark client components with "use client"`
	}

	return fmt.Sprintf(`- Indentation: %s
- Quotes: %s
- Statement endings: %s
- Styling: %s
- Imports: %s
- Exports: %s
- Language: %s
- Boundaries: %s`,
		s.Indent, s.Quotes, semi, s.Styling, alias, exports, lang, client)
}
