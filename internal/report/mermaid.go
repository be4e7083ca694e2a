package report

import (
	"fmt"
	"strings"

	"github.com/user/netreport/internal/model"
)

// GenerateMermaidDiagram creates a Mermaid flowchart for a traceroute.
func GenerateMermaidDiagram(trace *model.TracerouteResult) string {
	names := make(map[string]string, len(trace.Names))
	for _, n := range trace.Names {
		names[n.Address] = n.Name
	}

	var sb strings.Builder

	sb.WriteString("```mermaid\n")
	sb.WriteString("flowchart LR\n")
	sb.WriteString("    style Source fill:#90EE90\n")
	sb.WriteString("    style Target fill:#87CEEB\n")
	sb.WriteString("\n")

	sb.WriteString("    Source[Your Network]\n")

	prevNode := "Source"
	for i, hop := range trace.Hops {
		nodeID := fmt.Sprintf("H%d", i+1)

		if !hop.Responding {
			fmt.Fprintf(&sb, "    %s[Hop %d\\n* * *]:::lost\n", nodeID, hop.Position)
		} else {
			addr := hop.Address
			name := hop.Hostname
			if name == "" {
				name = names[hop.Address]
			}
			if name != "" && name != hop.Address {
				addr = fmt.Sprintf("%s\\n%s", shortenHostname(name), hop.Address)
			}
			fmt.Fprintf(&sb, "    %s[Hop %d\\n%s\\n%.1fms]\n", nodeID, hop.Position, addr, hop.AverageRTT)
		}

		fmt.Fprintf(&sb, "    %s --> %s\n", prevNode, nodeID)
		prevNode = nodeID
	}

	target := trace.Summary.Target
	if trace.Summary.Destination != "" {
		target = fmt.Sprintf("%s\\n%s", target, trace.Summary.Destination)
	}
	fmt.Fprintf(&sb, "    Target[%s]\n", target)
	fmt.Fprintf(&sb, "    %s --> Target\n", prevNode)

	sb.WriteString("\n")
	sb.WriteString("    classDef lost fill:#FFB6C1,stroke:#FF0000\n")
	sb.WriteString("```\n")

	return sb.String()
}

// GenerateTraceComparison creates a Mermaid diagram comparing two paths.
func GenerateTraceComparison(oldHops, newHops []model.TracerouteHop) string {
	var sb strings.Builder

	sb.WriteString("```mermaid\n")
	sb.WriteString("flowchart TB\n")
	sb.WriteString("    subgraph Before\n")
	sb.WriteString("    direction LR\n")

	prevNode := "OldSrc"
	sb.WriteString("    OldSrc((Start))\n")
	for i, hop := range oldHops {
		nodeID := fmt.Sprintf("O%d", i+1)
		if !hop.Responding {
			fmt.Fprintf(&sb, "    %s[*]\n", nodeID)
		} else {
			fmt.Fprintf(&sb, "    %s[%s]\n", nodeID, hop.Address)
		}
		fmt.Fprintf(&sb, "    %s --> %s\n", prevNode, nodeID)
		prevNode = nodeID
	}
	sb.WriteString("    end\n\n")

	sb.WriteString("    subgraph After\n")
	sb.WriteString("    direction LR\n")

	prevNode = "NewSrc"
	sb.WriteString("    NewSrc((Start))\n")
	for i, hop := range newHops {
		nodeID := fmt.Sprintf("N%d", i+1)

		switch {
		case !hop.Responding:
			fmt.Fprintf(&sb, "    %s[*]\n", nodeID)
		case !containsHop(oldHops, hop.Address):
			fmt.Fprintf(&sb, "    %s[%s]:::new\n", nodeID, hop.Address)
		default:
			fmt.Fprintf(&sb, "    %s[%s]\n", nodeID, hop.Address)
		}
		fmt.Fprintf(&sb, "    %s --> %s\n", prevNode, nodeID)
		prevNode = nodeID
	}
	sb.WriteString("    end\n\n")

	sb.WriteString("    classDef new fill:#90EE90,stroke:#228B22\n")
	sb.WriteString("```\n")

	return sb.String()
}

func shortenHostname(hostname string) string {
	if len(hostname) > 20 {
		parts := strings.Split(hostname, ".")
		if len(parts) > 2 {
			return parts[0] + "..."
		}
		return hostname[:17] + "..."
	}
	return hostname
}

func containsHop(hops []model.TracerouteHop, addr string) bool {
	for _, hop := range hops {
		if hop.Responding && hop.Address == addr {
			return true
		}
	}
	return false
}
