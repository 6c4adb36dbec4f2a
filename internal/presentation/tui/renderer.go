package tui

import (
	"fmt"
	"strings"

	"github.com/aretw0/meshwork/pkg/domain"
	"github.com/charmbracelet/glamour"
)

// NewRenderer returns a function that renders markdown using glamour.
// Styled output is used only when styled is true; otherwise the markdown is
// returned as is, which keeps piped output greppable.
func NewRenderer(styled bool) func(string) (string, error) {
	if !styled {
		return func(markdown string) (string, error) {
			return markdown, nil
		}
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Automatically detect light/dark background
	)
	if err != nil {
		return func(markdown string) (string, error) {
			return "", fmt.Errorf("markdown renderer: %w", err)
		}
	}
	return r.Render
}

// RoutesMarkdown renders the route table as a markdown table.
func RoutesMarkdown(routes []domain.Route) string {
	var sb strings.Builder
	sb.WriteString("# Gateway routes\n\n")
	if len(routes) == 0 {
		sb.WriteString("_No routes configured._\n")
		return sb.String()
	}
	sb.WriteString("| Method | Path | Action |\n")
	sb.WriteString("|---|---|---|\n")
	for _, r := range routes {
		fmt.Fprintf(&sb, "| %s | `%s` | `%s` |\n", r.Method, r.Path, r.Target())
	}
	return sb.String()
}

// ServicesMarkdown renders directory records as a markdown table.
func ServicesMarkdown(records []domain.ServiceRecord) string {
	var sb strings.Builder
	sb.WriteString("# Services\n\n")
	sb.WriteString("| Service | Node | Readiness | Depends on | Actions |\n")
	sb.WriteString("|---|---|---|---|---|\n")
	for _, rec := range records {
		deps := "-"
		if len(rec.Dependencies) > 0 {
			deps = strings.Join(rec.Dependencies, ", ")
		}
		fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s |\n", rec.Name, rec.NodeID, rec.Readiness, deps, strings.Join(rec.Actions, ", "))
	}
	return sb.String()
}
