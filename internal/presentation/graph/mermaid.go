package graph

import (
	"fmt"
	"strings"

	workflow "github.com/aretw0/teller/pkg/graph"
)

// GraphOverlay contains run data to highlight on the diagram.
type GraphOverlay struct {
	VisitedNodes []string
	CurrentNode  string
}

const (
	startID = "__start__"
	endID   = "__end__"
)

// GenerateMermaid renders g as a Mermaid flowchart.
// The entry point and the End sentinel are drawn as circles. Conditional
// branches are dotted and labelled with the selector label.
func GenerateMermaid(g *workflow.Graph, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	fmt.Fprintf(&sb, "    %s((\"start\"))\n", startID)
	for _, name := range g.Nodes() {
		fmt.Fprintf(&sb, "    %s[\"%s\"]\n", sanitizeMermaidID(name), name)
	}
	fmt.Fprintf(&sb, "    %s((\"end\"))\n", endID)

	fmt.Fprintf(&sb, "    %s --> %s\n", startID, sanitizeMermaidID(g.Entry()))
	for _, e := range g.Describe() {
		from, to := sanitizeMermaidID(e.From), sanitizeMermaidID(e.To)
		if !e.Conditional {
			fmt.Fprintf(&sb, "    %s --> %s\n", from, to)
			continue
		}
		label := strings.ReplaceAll(e.Label, "\"", "'")
		fmt.Fprintf(&sb, "    %s -. \"%s\" .-> %s\n", from, label, to)
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Black text keeps the highlight readable on light and dark themes.
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.VisitedNodes {
			safeID := sanitizeMermaidID(id)
			if safeID != "" && !seen[safeID] {
				seen[safeID] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
			}
		}
		if overlay.CurrentNode != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.CurrentNode))
		}
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	if id == workflow.End {
		return endID
	}
	return strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", " ", "_").Replace(id)
}
