package optimizer

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/traylinx/claudecoder/internal/tokenizer"
)

func estimate(path, content string) tokenizer.FileEstimate {
	return tokenizer.NewTokenEstimator("", tokenizer.MethodSimple).EstimateFile(path, content)
}

func TestCreateSimpleSummary_JavaScript(t *testing.T) {
	content := strings.Join([]string{
		"import React from 'react';",
		"const fs = require('fs');",
		"",
		"function render() {",
		"  return 1;",
		"}",
		"const handler = (e) => e.preventDefault();",
		"async function load() {}",
		"export default render;",
		"module.exports = { load };",
	}, "\n")
	got := CreateSimpleSummary(estimate("src/app.js", content))

	want := strings.Join([]string{
		"# src/app.js (52 tokens → summary)",
		"\n## Imports:",
		"import React from 'react';",
		"\n## Functions:",
		"function render() {",
		"const handler = (e) => e.preventDefault();",
		"async function load() {}",
		"\n## Exports:",
		"export default render;",
		"module.exports = { load };",
	}, "\n")
	assert.Equal(t, want, got)
}

func TestCreateSimpleSummary_CapsSections(t *testing.T) {
	var lines []string
	for i := 0; i < 15; i++ {
		lines = append(lines, fmt.Sprintf("import m%d from './m%d';", i, i))
	}
	got := CreateSimpleSummary(estimate("index.ts", strings.Join(lines, "\n")))

	assert.Contains(t, got, "import m9 from './m9';")
	assert.NotContains(t, got, "import m10 ")
	assert.NotContains(t, got, "## Functions:")
}

func TestCreateSimpleSummary_Documentation(t *testing.T) {
	got := CreateSimpleSummary(estimate("README.md", "# Title\ntext\n## Install\nmore\n  ### Nested"))
	assert.Equal(t, "# README.md (11 tokens → summary)\n\n## Structure:\n# Title\n## Install\n  ### Nested", got)
}

func TestCreateSimpleSummary_Preview(t *testing.T) {
	var lines []string
	for i := 0; i < 25; i++ {
		lines = append(lines, fmt.Sprintf("row %d", i))
	}
	got := CreateSimpleSummary(estimate("data.csv", strings.Join(lines, "\n")))

	assert.Contains(t, got, "\n## Content Preview:\nrow 0\n")
	assert.Contains(t, got, "row 19\n...[truncated]")
	assert.NotContains(t, got, "row 20")

	short := CreateSimpleSummary(estimate("config.yml", "a: 1\nb: 2"))
	assert.True(t, strings.HasSuffix(short, "## Content Preview:\na: 1\nb: 2"))
	assert.NotContains(t, short, "truncated")
}
