package a11y

import (
	"strconv"
	"strings"
	"testing"

	"a11y-agent/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapsWithTags(tags map[entity.EncodedID]string) *backendMaps {
	m := newBackendMaps()
	for k, v := range tags {
		m.tags[k] = v
	}
	return m
}

func TestBuildTree_CollapsesSingleChildWrapper(t *testing.T) {
	nodes := flat(
		axSpec{id: "1", role: "RootWebArea", name: "Page", backend: 1, children: []string{"2"}},
		axSpec{id: "2", role: "generic", backend: 2, parent: "1", children: []string{"3"}},
		axSpec{id: "3", role: "button", name: "Save", backend: 3, parent: "2"},
	)

	res := buildTree(nodes, 0, nil)

	require.Len(t, res.Tree, 1)
	root := res.Tree[0]
	require.Len(t, root.Children, 1)
	assert.Equal(t, "button", root.Children[0].Role)
	assert.Equal(t, "[0-1] RootWebArea: Page\n  [0-3] button: Save", res.Simplified)
	assert.NotContains(t, res.Simplified, "generic")
}

func TestBuildTree_DropsEmptyWrappers(t *testing.T) {
	nodes := flat(
		axSpec{id: "1", role: "RootWebArea", name: "Page", backend: 1, children: []string{"2", "4"}},
		axSpec{id: "2", role: "generic", backend: 2, parent: "1", children: []string{"3"}},
		axSpec{id: "3", role: "none", backend: 3, parent: "2", children: []string{"99"}},
		axSpec{id: "4", role: "link", name: "Home", backend: 4, parent: "1"},
	)

	res := buildTree(nodes, 0, nil)

	assert.Equal(t, "[0-1] RootWebArea: Page\n  [0-4] link: Home", res.Simplified)
}

func TestBuildTree_ReplacesWrapperRoleWithTag(t *testing.T) {
	nodes := flat(
		axSpec{id: "1", role: "generic", backend: 10, children: []string{"2", "3"}},
		axSpec{id: "2", role: "button", name: "A", backend: 11, parent: "1"},
		axSpec{id: "3", role: "button", name: "B", backend: 12, parent: "1"},
	)
	maps := mapsWithTags(map[entity.EncodedID]string{"2-10": "section"})

	res := buildTree(nodes, 2, maps)

	require.Len(t, res.Tree, 1)
	assert.Equal(t, "section", res.Tree[0].Role)
	assert.Equal(t, "[2-10] section\n  [2-11] button: A\n  [2-12] button: B", res.Simplified)
}

func TestBuildTree_KeepsGenericRoleWithoutTag(t *testing.T) {
	nodes := flat(
		axSpec{id: "1", role: "generic", backend: 10, children: []string{"2", "3"}},
		axSpec{id: "2", role: "button", name: "A", backend: 11, parent: "1"},
		axSpec{id: "3", role: "button", name: "B", backend: 12, parent: "1"},
	)

	res := buildTree(nodes, 0, nil)

	assert.Equal(t, "generic", res.Tree[0].Role)
}

func TestBuildTree_RemovesRedundantStaticText(t *testing.T) {
	nodes := flat(
		axSpec{id: "1", role: "link", name: "Read  the docs", backend: 1, children: []string{"2", "3"}},
		axSpec{id: "2", role: "StaticText", name: "Read ", backend: 2, parent: "1"},
		axSpec{id: "3", role: "StaticText", name: "the docs", backend: 3, parent: "1"},
	)

	res := buildTree(nodes, 0, nil)

	require.Len(t, res.Tree, 1)
	assert.Empty(t, res.Tree[0].Children)
	assert.Equal(t, "[0-1] link: Read  the docs", res.Simplified)
}

func TestBuildTree_KeepsStaticTextThatAddsInformation(t *testing.T) {
	nodes := flat(
		axSpec{id: "1", role: "heading", name: "Title", backend: 1, children: []string{"2", "3"}},
		axSpec{id: "2", role: "StaticText", name: "Title", backend: 2, parent: "1"},
		axSpec{id: "3", role: "StaticText", name: "Subtitle", backend: 3, parent: "1"},
	)

	res := buildTree(nodes, 0, nil)

	require.Len(t, res.Tree[0].Children, 2)
}

func TestBuildTree_FilterPass(t *testing.T) {
	nodes := flat(
		axSpec{id: "1", role: "RootWebArea", name: "Page", backend: 1, children: []string{"2", "3", "-5", "4"}},
		axSpec{id: "2", role: "InlineTextBox", backend: 2, parent: "1"},
		axSpec{id: "3", role: "generic", backend: 3, parent: "1"},
		axSpec{id: "-5", role: "button", name: "Ghost", backend: 5, parent: "1"},
		axSpec{id: "4", role: "textbox", backend: 4, parent: "1"},
	)

	res := buildTree(nodes, 0, nil)

	assert.Equal(t, "[0-1] RootWebArea: Page\n  [0-4] textbox", res.Simplified)
}

func TestBuildTree_RenamesSelectCombobox(t *testing.T) {
	nodes := flat(
		axSpec{id: "1", role: "combobox", name: "Color", backend: 7, children: []string{"2"}},
		axSpec{id: "2", role: "MenuListPopup", backend: 8, parent: "1", children: []string{"3"}},
		axSpec{id: "3", role: "option", name: "Green", backend: 9, parent: "2"},
	)
	maps := mapsWithTags(map[entity.EncodedID]string{"0-7": "select"})

	res := buildTree(nodes, 0, maps)

	assert.Equal(t, "select", res.Tree[0].Role)
}

func TestBuildTree_URLMap(t *testing.T) {
	nodes := flat(
		axSpec{id: "1", role: "RootWebArea", name: "Page", backend: 1, children: []string{"2", "3", "4"}},
		axSpec{id: "2", role: "link", name: "Docs", backend: 20, parent: "1", url: "https://example.test/docs"},
		axSpec{id: "3", role: "link", name: "Dup A", backend: 30, parent: "1", url: "https://example.test/a"},
		axSpec{id: "4", role: "link", name: "Dup B", backend: 30, parent: "1", url: "https://example.test/b"},
	)

	res := buildTree(nodes, 1, nil)

	assert.Equal(t, map[entity.EncodedID]string{"1-20": "https://example.test/docs"}, res.URLs)
}

func TestBuildTree_SerializationCleansNames(t *testing.T) {
	nodes := flat(
		axSpec{id: "1", role: "button", name: "\u00a0Save\u00a0now ", backend: 1},
	)

	res := buildTree(nodes, 0, nil)

	assert.Equal(t, "[0-1] button: Save now", res.Simplified)
	assert.Equal(t, entity.NodeSummary{Role: "button", Name: "Save now"}, res.Nodes["0-1"])
}

func TestBuildTree_NodeWithoutBackendUsesNodeID(t *testing.T) {
	nodes := flat(
		axSpec{id: "42", role: "paragraph", name: "Hi"},
	)

	res := buildTree(nodes, 0, nil)

	assert.Equal(t, "[42] paragraph: Hi", res.Simplified)
}

func TestBuildTree_PreservesDocumentOrder(t *testing.T) {
	nodes := flat(
		axSpec{id: "1", role: "list", backend: 1, children: []string{"2", "3", "4"}},
		axSpec{id: "2", role: "listitem", name: "c", backend: 4, parent: "1"},
		axSpec{id: "3", role: "listitem", name: "a", backend: 2, parent: "1"},
		axSpec{id: "4", role: "listitem", name: "b", backend: 3, parent: "1"},
	)

	res := buildTree(nodes, 0, nil)

	lines := strings.Split(res.Simplified, "\n")
	assert.Equal(t, []string{
		"[0-1] list",
		"  [0-4] listitem: c",
		"  [0-2] listitem: a",
		"  [0-3] listitem: b",
	}, lines)
}

func TestBuildTree_DeepNestingDoesNotOverflow(t *testing.T) {
	const depth = 20000
	specs := make([]axSpec, 0, depth+1)
	for i := 1; i <= depth; i++ {
		s := axSpec{id: strconv.Itoa(i), role: "generic", backend: i, children: []string{strconv.Itoa(i + 1)}}
		if i > 1 {
			s.parent = strconv.Itoa(i - 1)
		}
		specs = append(specs, s)
	}
	specs = append(specs, axSpec{id: strconv.Itoa(depth + 1), role: "button", name: "Deep", backend: depth + 1, parent: strconv.Itoa(depth)})

	res := buildTree(flat(specs...), 0, nil)

	assert.Equal(t, "[0-20001] button: Deep", res.Simplified)
}

func TestBuildTree_XPathsPassThrough(t *testing.T) {
	maps := newBackendMaps()
	maps.xpaths["0-1"] = "/html[1]"

	res := buildTree(nil, 0, maps)

	assert.Equal(t, "/html[1]", res.XPaths["0-1"])
	assert.Empty(t, res.Simplified)
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "Hello", "Hello"},
		{"private use glyph", "\ue001Menu", "Menu"},
		{"nbsp run", "a\u00a0\u00a0b", "a b"},
		{"narrow nbsp", "10\u202fkm", "10 km"},
		{"figure space and bom", "\ufeff1\u20072", "1 2"},
		{"space then nbsp", "a \u00a0b", "a b"},
		{"plain double space kept", "a  b", "a  b"},
		{"trims", "  padded  ", "padded"},
		{"only glyphs", "\ue000\uf8ff", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanText(tt.input))
		})
	}
}

func TestNormalizeSpaces(t *testing.T) {
	assert.Equal(t, "a b c", NormalizeSpaces("  a\n\tb   c "))
	assert.Equal(t, "", NormalizeSpaces(" \n "))
}
