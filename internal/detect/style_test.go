package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInferStyle_TypeScriptUtilityTwoSpace(t *testing.T) {
	files := map[string]string{
		"app/page.tsx": `"use client"
import { Hero } from "@/components/hero"

export function Page() {
  return (
    <div className="flex flex-col gap-4">
      <Hero title="Welcome" />
    </div>
  )
}
`,
	}

	s := InferStyle(files)
	assert.True(t, s.TypeScript)
	assert.True(t, s.ClientDirective)
	assert.True(t, s.ImportAlias)
	assert.Equal(t, "2 spaces", s.Indent)
	assert.Equal(t, "double", s.Quotes)
	assert.False(t, s.Semicolons)
	assert.Equal(t, "utility classes", s.Styling)
	assert.False(t, s.DefaultExports)
}

func TestInferStyle_JavaScriptInlineDefaultExport(t *testing.T) {
	files := map[string]string{
		"src/App.jsx": `import React from 'react';

export default function App() {
    const box = { padding: 8 };
    return <div style={{ margin: 4 }}><span style={{ color: 'red' }}>hi</span></div>;
}
`,
	}

	s := InferStyle(files)
	assert.False(t, s.TypeScript)
	assert.Equal(t, "4 spaces", s.Indent)
	assert.Equal(t, "single", s.Quotes)
	assert.True(t, s.Semicolons)
	assert.Equal(t, "inline styles", s.Styling)
	assert.True(t, s.DefaultExports)
	assert.False(t, s.ImportAlias)
}

func TestInferStyle_CSSModulesWins(t *testing.T) {
	files := map[string]string{
		"src/Card.tsx": `import styles from "./Card.module.css";

export const Card = () => <div className={styles.card} />;
`,
	}

	s := InferStyle(files)
	assert.Equal(t, "CSS modules", s.Styling)
}

func TestInferStyle_Empty(t *testing.T) {
	s := InferStyle(nil)
	assert.Equal(t, "2 spaces", s.Indent)
	assert.Equal(t, "plain CSS", s.Styling)
	assert.False(t, s.Semicolons)
}

func TestStyleBullets_FixedOrder(t *testing.T) {
	s := Style{
		Indent:          "2 spaces",
		Quotes:          "single",
		Semicolons:      true,
		Styling:         "utility classes",
		ImportAlias:     true,
		TypeScript:      true,
		ClientDirective: true,
	}

	bullets := s.Bullets()
	lines := []string{
		"- Indentation: 2 spaces",
		"- Quotes: single",
		"- Statement endings: end statements with semicolons",
		"- Styling: utility classes",
		`- Imports: use "@/" import alias paths`,
		"- Exports: prefer named exports",
		"- Language: TypeScript with type annotations",
		`- Boundaries: mark client components with "use client"`,
	}
	prev := -1
	for _, line := range lines {
		idx := indexOf(t, bullets, line)
		assert.Greater(t, idx, prev, "bullet order must be fixed: %s", line)
		prev = idx
	}
}

func indexOf(t *testing.T, haystack, needle string) int {
	t.Helper()
	idx := len(haystack)
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	assert.Fail(t, "missing bullet", needle)
	return idx
}
