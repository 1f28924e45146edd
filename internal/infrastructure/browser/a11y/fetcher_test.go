package a11y

import (
	"strings"
	"testing"

	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// framePage wires a fake CDP session serving one small document:
//
//	/html[1]/body[1]/div[1]       backend 4, scrollable list
//	/html[1]/body[1]/div[1]/a[1]  backend 5
//	/html[1]/body[1]/button[1]    backend 6
type framePage struct {
	cdp        *fakeCDP
	scrollable []string
	xpaths     map[string]int
}

func newFramePage() *framePage {
	fp := &framePage{
		cdp:        newFakeCDP(),
		scrollable: []string{"/html[1]/body[1]/div[1]"},
		xpaths: map[string]int{
			"/html[1]/body[1]/div[1]":    4,
			"/html[1]/body[1]/button[1]": 6,
		},
	}

	fp.cdp.reply("DOM.getDocument", proto.DOMGetDocumentResult{
		Root: document(1,
			elem(2, "HTML",
				elem(3, "BODY",
					elem(4, "DIV", elem(5, "A")),
					elem(6, "BUTTON"),
				),
			),
		),
	})

	fp.cdp.reply("Accessibility.getFullAXTree", proto.AccessibilityGetFullAXTreeResult{
		Nodes: []*proto.AccessibilityAXNode{
			rawAXNode(axSpec{id: "1", role: "RootWebArea", name: "Shop", backend: 1, children: []string{"4", "6"}}),
			rawAXNode(axSpec{id: "4", role: "list", backend: 4, parent: "1", children: []string{"5"}}),
			rawAXNode(axSpec{id: "5", role: "link", name: "Item", backend: 5, parent: "4", url: "https://shop.test/item"}),
			rawAXNode(axSpec{id: "6", role: "button", name: "Buy", backend: 6, parent: "1"}),
		},
	})

	var handles []int
	fp.cdp.on("Runtime.evaluate", func(params map[string]any) (any, error) {
		expr, _ := params["expression"].(string)
		if strings.Contains(expr, "getScrollableElementXpaths") {
			return map[string]any{"result": map[string]any{"type": "object", "value": fp.scrollable}}, nil
		}
		for xp, backend := range fp.xpaths {
			if strings.Contains(expr, jsString(xp)) {
				handles = append(handles, backend)
				return map[string]any{"result": map[string]any{"type": "object", "objectId": objectID(len(handles) - 1)}}, nil
			}
		}
		return map[string]any{"result": map[string]any{"type": "object", "subtype": "null"}}, nil
	})

	fp.cdp.on("DOM.describeNode", func(params map[string]any) (any, error) {
		id, _ := params["objectId"].(string)
		for i, backend := range handles {
			if objectID(i) == id {
				return proto.DOMDescribeNodeResult{Node: &proto.DOMNode{BackendNodeID: proto.DOMBackendNodeID(backend)}}, nil
			}
		}
		return proto.DOMDescribeNodeResult{}, nil
	})

	fp.cdp.reply("Page.createIsolatedWorld", proto.PageCreateIsolatedWorldResult{ExecutionContextID: 77})
	return fp
}

func TestFetchTree_MainFrame(t *testing.T) {
	fp := newFramePage()

	res, err := fetchTree(frameSession{client: fp.cdp}, "", NewOrdinalRegistry(), newTagCache(), newWorldCache())
	require.NoError(t, err)

	assert.Equal(t,
		"[0-1] RootWebArea: Shop\n  [0-4] scrollable, list\n    [0-5] link: Item\n  [0-6] button: Buy",
		res.Simplified)
	assert.Equal(t, "/html[1]/body[1]/button[1]", res.XPaths["0-6"])
	assert.Equal(t, "https://shop.test/item", res.URLs["0-5"])

	params, ok := fp.cdp.lastParams("Accessibility.getFullAXTree")
	require.True(t, ok)
	assert.NotContains(t, params, "frameId")
	assert.NotContains(t, fp.cdp.methods(), "Page.createIsolatedWorld")
}

func TestFetchTree_EnablesAndDisablesDomains(t *testing.T) {
	fp := newFramePage()

	_, err := fetchTree(frameSession{client: fp.cdp}, "", NewOrdinalRegistry(), newTagCache(), newWorldCache())
	require.NoError(t, err)

	methods := fp.cdp.methods()
	require.GreaterOrEqual(t, len(methods), 4)
	assert.Equal(t, []string{"DOM.enable", "Accessibility.enable"}, methods[:2])
	assert.Equal(t, []string{"Accessibility.disable", "DOM.disable"}, methods[len(methods)-2:])
}

func TestFetchTree_ViaHostPassesFrameID(t *testing.T) {
	fp := newFramePage()
	inner := document(20, elem(21, "HTML", elem(22, "BODY")))
	fp.cdp.reply("DOM.getDocument", proto.DOMGetDocumentResult{
		Root: document(1, elem(2, "HTML", elem(3, "BODY", iframeNode(9, "F-CHILD", inner)))),
	})
	fp.cdp.reply("DOM.getFrameOwner", proto.DOMGetFrameOwnerResult{BackendNodeID: 9})
	fp.scrollable = nil

	ordinals := NewOrdinalRegistry()
	ord, _ := ordinals.Ordinal("F-CHILD")

	res, err := fetchTree(frameSession{client: fp.cdp, frameID: "F-CHILD", ordinal: ord}, "", ordinals, newTagCache(), newWorldCache())
	require.NoError(t, err)

	params, _ := fp.cdp.lastParams("Accessibility.getFullAXTree")
	assert.Equal(t, "F-CHILD", params["frameId"])

	evalParams, _ := fp.cdp.lastParams("Runtime.evaluate")
	assert.EqualValues(t, 77, evalParams["contextId"])

	assert.True(t, strings.HasPrefix(res.Simplified, "[1-1] RootWebArea: Shop"))
	assert.Equal(t, "/html[1]/body[1]", res.XPaths["1-22"])
}

func TestFetchTree_SelectorScopesSubtree(t *testing.T) {
	fp := newFramePage()
	fp.scrollable = nil

	res, err := fetchTree(frameSession{client: fp.cdp}, "/html[1]/body[1]/div[1]", NewOrdinalRegistry(), newTagCache(), newWorldCache())
	require.NoError(t, err)

	assert.Equal(t, "[0-4] list\n  [0-5] link: Item", res.Simplified)
	assert.Contains(t, fp.cdp.methods(), "Runtime.releaseObject")
}

func TestFetchTree_SelectorWithoutMatch(t *testing.T) {
	fp := newFramePage()

	_, err := fetchTree(frameSession{client: fp.cdp}, "/html[1]/body[1]/form[1]", NewOrdinalRegistry(), newTagCache(), newWorldCache())

	var notFound *ElementNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "/html[1]/body[1]/form[1]", notFound.XPath)
}

func TestDecorateScrollable(t *testing.T) {
	nodes := flat(
		axSpec{id: "1", role: "generic", backend: 1},
		axSpec{id: "2", role: "list", backend: 2},
		axSpec{id: "3", role: "button", backend: 3},
	)

	decorateScrollable(nodes, map[int]bool{1: true, 2: true})

	assert.Equal(t, "scrollable", nodes[0].role)
	assert.Equal(t, "scrollable, list", nodes[1].role)
	assert.Equal(t, "button", nodes[2].role)
}

func TestSubtreeOf(t *testing.T) {
	nodes := flat(
		axSpec{id: "1", role: "RootWebArea", backend: 1, children: []string{"2", "4"}},
		axSpec{id: "2", role: "list", backend: 2, parent: "1", children: []string{"3"}},
		axSpec{id: "3", role: "listitem", backend: 3, parent: "2"},
		axSpec{id: "4", role: "button", backend: 4, parent: "1"},
	)

	got := subtreeOf(nodes, 2)

	ids := make([]string, 0, len(got))
	for _, n := range got {
		ids = append(ids, n.nodeID)
	}
	assert.Equal(t, []string{"2", "3"}, ids)
	assert.Nil(t, subtreeOf(nodes, 99))
}

func TestAXValueString(t *testing.T) {
	assert.Equal(t, "", axValueString(nil))
	assert.Equal(t, "hello", axValueString(axValue("hello")))
}
