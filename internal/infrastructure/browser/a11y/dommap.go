package a11y

import (
	"fmt"
	"strconv"
	"strings"

	"a11y-agent/internal/domain/entity"

	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"
)

const (
	nodeTypeElement = 1
	nodeTypeText    = 3
	nodeTypeComment = 8
)

// buildBackendIDMaps walks the DOM of the session's frame and records the
// lowercase tag and the document-relative XPath of every node that has a
// backend id. Same-process iframes met on the way get a fresh path prefix
// and their own ordinal.
func buildBackendIDMaps(sess frameSession, ordinals *OrdinalRegistry, tags *tagCache) (*backendMaps, error) {
	doc, err := proto.DOMGetDocument{Depth: gson.Int(-1), Pierce: true}.Call(sess.client)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	if doc.Root == nil {
		return nil, fmt.Errorf("get document: empty root")
	}

	root := doc.Root
	if sess.viaHost() {
		owner, err := proto.DOMGetFrameOwner{FrameID: sess.frameID}.Call(sess.client)
		if err != nil {
			return nil, fmt.Errorf("get frame owner %s: %w", sess.frameID, err)
		}
		iframe := findNodeByBackendID(root, owner.BackendNodeID)
		if iframe == nil || iframe.ContentDocument == nil {
			return nil, fmt.Errorf("%w: %s", ErrContentFrameNotFound, sess.frameID)
		}
		root = iframe.ContentDocument
	}

	maps := newBackendMaps()
	walkDOM(root, sess.ordinal, maps, ordinals, tags)
	return maps, nil
}

func walkDOM(root *proto.DOMNode, ordinal int, maps *backendMaps, ordinals *OrdinalRegistry, tags *tagCache) {
	type item struct {
		node    *proto.DOMNode
		path    string
		ordinal int
	}

	stack := []item{{node: root, ordinal: ordinal}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := it.node

		if n.BackendNodeID > 0 {
			enc := entity.NewEncodedID(it.ordinal, int(n.BackendNodeID))
			maps.tags[enc] = tags.lower(n.NodeName)
			xp := it.path
			if xp == "" {
				xp = "/"
			}
			maps.xpaths[enc] = xp
		}

		if n.ContentDocument != nil && n.FrameID != "" {
			if ord, err := ordinals.Ordinal(n.FrameID); err == nil {
				stack = append(stack, item{node: n.ContentDocument, ordinal: ord})
			}
		}

		// shadow content keeps the host path; XPath cannot address it
		for i := len(n.ShadowRoots) - 1; i >= 0; i-- {
			stack = append(stack, item{node: n.ShadowRoots[i], path: it.path, ordinal: it.ordinal})
		}

		counters := make(map[string]int, len(n.Children))
		steps := make([]string, len(n.Children))
		for i, c := range n.Children {
			steps[i] = xpathStep(c, counters, tags)
		}
		for i := len(n.Children) - 1; i >= 0; i-- {
			if steps[i] == "" {
				continue
			}
			stack = append(stack, item{node: n.Children[i], path: it.path + "/" + steps[i], ordinal: it.ordinal})
		}
	}
}

// xpathStep returns the location step of c among its siblings, or "" for
// node types XPath does not address (doctype and the like).
func xpathStep(c *proto.DOMNode, counters map[string]int, tags *tagCache) string {
	switch c.NodeType {
	case nodeTypeElement:
		tag := tags.lower(c.NodeName)
		key := "1:" + tag
		counters[key]++
		idx := strconv.Itoa(counters[key])
		if isForeignElement(c.NodeName) {
			return "*[name()='" + c.NodeName + "'][" + idx + "]"
		}
		return tag + "[" + idx + "]"
	case nodeTypeText:
		counters["3"]++
		return "text()[" + strconv.Itoa(counters["3"]) + "]"
	case nodeTypeComment:
		counters["8"]++
		return "comment()[" + strconv.Itoa(counters["8"]) + "]"
	}
	return ""
}

// isForeignElement reports elements outside the HTML namespace (svg, math),
// whose nodeName keeps its original case in HTML documents.
func isForeignElement(nodeName string) bool {
	return strings.ContainsRune(nodeName, ':') || nodeName != strings.ToUpper(nodeName)
}

func findNodeByBackendID(root *proto.DOMNode, id proto.DOMBackendNodeID) *proto.DOMNode {
	stack := []*proto.DOMNode{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == nil {
			continue
		}
		if n.BackendNodeID == id {
			return n
		}
		stack = append(stack, n.Children...)
		stack = append(stack, n.ShadowRoots...)
		if n.ContentDocument != nil {
			stack = append(stack, n.ContentDocument)
		}
	}
	return nil
}
