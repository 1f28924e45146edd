package a11y

import (
	"strings"

	"a11y-agent/internal/domain/entity"
)

// axNode is the flat form of an accessibility node as returned by
// Accessibility.getFullAXTree, with values already decoded.
type axNode struct {
	nodeID      string
	role        string
	name        string
	description string
	value       string
	url         string
	backendID   int
	parentID    string
	childIDs    []string
}

// backendMaps are keyed by encoded id and live for one extraction pass.
type backendMaps struct {
	tags   map[entity.EncodedID]string
	xpaths map[entity.EncodedID]string
}

func newBackendMaps() *backendMaps {
	return &backendMaps{
		tags:   make(map[entity.EncodedID]string),
		xpaths: make(map[entity.EncodedID]string),
	}
}

func isStructural(role string) bool {
	return role == "generic" || role == "none"
}

func isUninteresting(role string) bool {
	return isStructural(role) || role == "InlineTextBox"
}

// buildTree turns the flat node list of one frame into the cleaned
// hierarchy and its text outline.
func buildTree(nodes []*axNode, ordinal int, maps *backendMaps) *entity.TreeResult {
	if maps == nil {
		maps = newBackendMaps()
	}

	backendCount := make(map[int]int, len(nodes))
	for _, n := range nodes {
		if n.backendID > 0 {
			backendCount[n.backendID]++
		}
	}

	urls := make(map[entity.EncodedID]string)
	byID := make(map[string]*entity.AccessibilityNode, len(nodes))
	kept := make([]*axNode, 0, len(nodes))

	for _, n := range nodes {
		if strings.HasPrefix(n.nodeID, "-") {
			continue
		}
		keep := strings.TrimSpace(n.name) != "" || len(n.childIDs) > 0 || !isUninteresting(n.role)
		if !keep {
			continue
		}

		node := &entity.AccessibilityNode{
			NodeID:      n.nodeID,
			Role:        n.role,
			Name:        n.name,
			Description: n.description,
			Value:       n.value,
			BackendID:   n.backendID,
		}
		if n.backendID > 0 {
			node.EncodedID = entity.NewEncodedID(ordinal, n.backendID)
			if n.url != "" && backendCount[n.backendID] == 1 {
				urls[node.EncodedID] = n.url
			}
		}

		byID[n.nodeID] = node
		kept = append(kept, n)
	}

	var roots []*entity.AccessibilityNode
	for _, n := range kept {
		node := byID[n.nodeID]
		if parent, ok := byID[n.parentID]; ok && n.parentID != "" {
			parent.Children = append(parent.Children, node)
			continue
		}
		roots = append(roots, node)
	}

	cleaned := make([]*entity.AccessibilityNode, 0, len(roots))
	for _, root := range roots {
		if c := cleanStructuralNodes(root, maps.tags); c != nil {
			cleaned = append(cleaned, c)
		}
	}

	var b strings.Builder
	summaries := make(map[entity.EncodedID]entity.NodeSummary)
	for _, root := range cleaned {
		formatTree(&b, root, 0, summaries)
	}

	return &entity.TreeResult{
		Tree:       cleaned,
		Simplified: strings.TrimRight(b.String(), "\n"),
		XPaths:     maps.xpaths,
		URLs:       urls,
		Nodes:      summaries,
	}
}

// cleanStructuralNodes runs the post-order cleanup with an explicit stack.
// It returns nil when the whole subtree is structural noise.
func cleanStructuralNodes(root *entity.AccessibilityNode, tags map[entity.EncodedID]string) *entity.AccessibilityNode {
	type item struct {
		node     *entity.AccessibilityNode
		expanded bool
	}

	result := make(map[*entity.AccessibilityNode]*entity.AccessibilityNode)
	stack := []item{{node: root}}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !top.expanded {
			stack = append(stack, item{node: top.node, expanded: true})
			for i := len(top.node.Children) - 1; i >= 0; i-- {
				stack = append(stack, item{node: top.node.Children[i]})
			}
			continue
		}

		result[top.node] = cleanNode(top.node, result, tags)
	}

	return result[root]
}

func cleanNode(n *entity.AccessibilityNode, done map[*entity.AccessibilityNode]*entity.AccessibilityNode, tags map[entity.EncodedID]string) *entity.AccessibilityNode {
	if len(n.Children) == 0 {
		if isStructural(n.Role) {
			return nil
		}
		renameSelect(n, tags)
		return n
	}

	children := make([]*entity.AccessibilityNode, 0, len(n.Children))
	for _, c := range n.Children {
		if r := done[c]; r != nil {
			children = append(children, r)
		}
	}
	children = removeRedundantStaticText(n, children)

	if isStructural(n.Role) {
		switch len(children) {
		case 0:
			return nil
		case 1:
			return children[0]
		}
		if tag := tags[n.EncodedID]; tag != "" {
			n.Role = tag
		}
	}

	renameSelect(n, tags)
	n.Children = children
	return n
}

func renameSelect(n *entity.AccessibilityNode, tags map[entity.EncodedID]string) {
	if n.Role == "combobox" && tags[n.EncodedID] == "select" {
		n.Role = "select"
	}
}

// removeRedundantStaticText drops StaticText children when together they
// only repeat the parent's accessible name.
func removeRedundantStaticText(parent *entity.AccessibilityNode, children []*entity.AccessibilityNode) []*entity.AccessibilityNode {
	if parent.Name == "" {
		return children
	}

	var combined strings.Builder
	for _, c := range children {
		if c.Role == "StaticText" && c.Name != "" {
			combined.WriteString(c.Name)
		}
	}
	if NormalizeSpaces(combined.String()) != NormalizeSpaces(parent.Name) {
		return children
	}

	out := children[:0:0]
	for _, c := range children {
		if c.Role != "StaticText" {
			out = append(out, c)
		}
	}
	return out
}

// formatTree writes "[id] role: name" lines, two spaces per level.
func formatTree(b *strings.Builder, root *entity.AccessibilityNode, level int, summaries map[entity.EncodedID]entity.NodeSummary) {
	type item struct {
		node  *entity.AccessibilityNode
		level int
	}

	stack := []item{{node: root, level: level}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := top.node

		b.WriteString(strings.Repeat("  ", top.level))
		b.WriteString("[")
		b.WriteString(n.Label())
		b.WriteString("] ")
		b.WriteString(n.Role)
		name := CleanText(n.Name)
		if name != "" {
			b.WriteString(": ")
			b.WriteString(name)
		}
		b.WriteString("\n")

		if n.EncodedID != "" {
			summaries[n.EncodedID] = entity.NodeSummary{Role: n.Role, Name: name}
		}

		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, item{node: n.Children[i], level: top.level + 1})
		}
	}
}
