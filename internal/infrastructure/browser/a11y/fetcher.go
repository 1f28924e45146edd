package a11y

import (
	"fmt"

	"a11y-agent/internal/domain/entity"

	"github.com/go-rod/rod/lib/proto"
)

// fetchTree extracts the cleaned accessibility tree of one frame. A
// non-empty selector scopes the result to that element's subtree.
func fetchTree(sess frameSession, selector string, ordinals *OrdinalRegistry, tags *tagCache, worlds *worldCache) (*entity.TreeResult, error) {
	defer enableDomains(sess.client)()

	maps, err := buildBackendIDMaps(sess, ordinals, tags)
	if err != nil {
		return nil, err
	}

	req := proto.AccessibilityGetFullAXTree{}
	if sess.viaHost() {
		req.FrameID = sess.frameID
	}
	res, err := req.Call(sess.client)
	if err != nil {
		return nil, fmt.Errorf("get accessibility tree: %w", err)
	}
	nodes := convertAXNodes(res.Nodes)

	execCtx, ctxErr := worlds.contextFor(sess)
	if ctxErr == nil {
		decorateScrollable(nodes, scrollableBackendIDs(sess, execCtx))
	}

	if selector != "" {
		if ctxErr != nil {
			return nil, ctxErr
		}
		id, err := resolveXPathBackendID(sess, execCtx, selector)
		if err != nil {
			return nil, err
		}
		if id == 0 {
			return nil, &ElementNotFoundError{XPath: selector}
		}
		nodes = subtreeOf(nodes, id)
	}

	return buildTree(nodes, sess.ordinal, maps), nil
}

func convertAXNodes(raw []*proto.AccessibilityAXNode) []*axNode {
	nodes := make([]*axNode, 0, len(raw))
	for _, r := range raw {
		if r == nil {
			continue
		}
		n := &axNode{
			nodeID:      string(r.NodeID),
			role:        axValueString(r.Role),
			name:        axValueString(r.Name),
			description: axValueString(r.Description),
			value:       axValueString(r.Value),
			backendID:   int(r.BackendDOMNodeID),
			parentID:    string(r.ParentID),
		}
		for _, id := range r.ChildIDs {
			n.childIDs = append(n.childIDs, string(id))
		}
		for _, p := range r.Properties {
			if p != nil && string(p.Name) == "url" {
				n.url = axValueString(p.Value)
			}
		}
		nodes = append(nodes, n)
	}
	return nodes
}

func axValueString(v *proto.AccessibilityAXValue) string {
	if v == nil || v.Value.Nil() {
		return ""
	}
	if s, ok := v.Value.Val().(string); ok {
		return s
	}
	return v.Value.JSON("", "")
}

func decorateScrollable(nodes []*axNode, scrollable map[int]bool) {
	if len(scrollable) == 0 {
		return
	}
	for _, n := range nodes {
		if !scrollable[n.backendID] {
			continue
		}
		if n.role == "" || isStructural(n.role) {
			n.role = "scrollable"
		} else {
			n.role = "scrollable, " + n.role
		}
	}
}

// subtreeOf keeps the node with the given backend id and its descendants,
// in their original order.
func subtreeOf(nodes []*axNode, backendID int) []*axNode {
	byID := make(map[string]*axNode, len(nodes))
	var target *axNode
	for _, n := range nodes {
		byID[n.nodeID] = n
		if target == nil && n.backendID == backendID {
			target = n
		}
	}
	if target == nil {
		return nil
	}

	keep := map[string]bool{target.nodeID: true}
	queue := []*axNode{target}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, id := range n.childIDs {
			child, ok := byID[id]
			if !ok || keep[id] {
				continue
			}
			keep[id] = true
			queue = append(queue, child)
		}
	}

	out := make([]*axNode, 0, len(keep))
	for _, n := range nodes {
		if keep[n.nodeID] {
			out = append(out, n)
		}
	}
	return out
}
