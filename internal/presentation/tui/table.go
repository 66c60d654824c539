package tui

import (
	"fmt"
	"strings"

	"github.com/aretw0/stagehand/pkg/domain"
	"github.com/charmbracelet/glamour"
)

// ScenesMarkdown formats entries as a Markdown table. current is marked in the first column.
func ScenesMarkdown(entries []domain.SceneEntry, current string) string {
	var b strings.Builder
	b.WriteString("| | Scene | Units | Parameters | Retained |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for _, e := range entries {
		marker := ""
		if e.Identifier == current {
			marker = "*"
		}
		paramType := e.ParameterType
		if paramType == "" {
			paramType = "none"
		}
		if e.ParameterAllowNull {
			paramType += " (optional)"
		}
		retained := ""
		if e.RetainAlways {
			retained = "yes"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
			marker, escape(e.Identifier), escape(strings.Join(e.Units, ", ")), escape(paramType), retained)
	}
	return b.String()
}

// NewRenderer returns a function that renders Markdown for the terminal.
// Plain output returns the Markdown unchanged.
func NewRenderer(styled bool) func(string) (string, error) {
	if !styled {
		return func(md string) (string, error) { return md, nil }
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle())
	if err != nil {
		return func(md string) (string, error) { return md, nil }
	}
	return r.Render
}

func escape(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
