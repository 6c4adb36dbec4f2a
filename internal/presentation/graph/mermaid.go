package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/meshwork/pkg/domain"
)

// GenerateMermaid produces a Mermaid flowchart of the mesh from directory records.
// Each hosting node is a subgraph. Shapes:
// - Leaf service (no dependencies): ([Stadium])
// - Dependent service: [Rectangle]
// - Dependency that is not registered: {{Hexagon}} reached by a dotted edge
// Services are styled by readiness (pending, ready, failed).
func GenerateMermaid(records []domain.ServiceRecord) string {
	records = append([]domain.ServiceRecord(nil), records...)
	sort.Slice(records, func(i, j int) bool {
		if records[i].NodeID != records[j].NodeID {
			return records[i].NodeID < records[j].NodeID
		}
		return records[i].Name < records[j].Name
	})

	known := make(map[string]bool, len(records))
	for _, rec := range records {
		known[rec.Name] = true
	}

	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for i := 0; i < len(records); {
		nodeID := records[i].NodeID
		fmt.Fprintf(&sb, "    subgraph %s[\"%s\"]\n", sanitizeMermaidID("node_"+nodeID), nodeID)
		for ; i < len(records) && records[i].NodeID == nodeID; i++ {
			rec := records[i]
			opener, closer := "[", "]"
			if len(rec.Dependencies) == 0 {
				opener, closer = "([", "])"
			}
			fmt.Fprintf(&sb, "        %s%s\"%s\"%s\n", sanitizeMermaidID(rec.Name), opener, rec.Name, closer)
		}
		sb.WriteString("    end\n")
	}

	missing := map[string]bool{}
	for _, rec := range records {
		deps := append([]string(nil), rec.Dependencies...)
		sort.Strings(deps)
		for _, dep := range deps {
			arrow := "-->"
			if !known[dep] {
				arrow = "-.->"
				if !missing[dep] {
					missing[dep] = true
					fmt.Fprintf(&sb, "    %s{{\"%s (missing)\"}}\n", sanitizeMermaidID(dep), dep)
				}
			}
			fmt.Fprintf(&sb, "    %s %s %s\n", sanitizeMermaidID(rec.Name), arrow, sanitizeMermaidID(dep))
		}
	}

	if len(records) > 0 {
		sb.WriteString("\n    %% Readiness Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef pending fill:#eeeeee,stroke:#9e9e9e,stroke-dasharray:4,color:#000;\n")
		sb.WriteString("    classDef ready fill:#e8f5e9,stroke:#2e7d32,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef failed fill:#ffebee,stroke:#c62828,stroke-width:2px,color:#000;\n")
		for _, rec := range records {
			fmt.Fprintf(&sb, "    class %s %s;\n", sanitizeMermaidID(rec.Name), rec.Readiness)
		}
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
