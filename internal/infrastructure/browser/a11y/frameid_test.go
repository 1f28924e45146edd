package a11y

import (
	"testing"

	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
)

func frameTree(id, url string, children ...*proto.PageFrameTree) *proto.PageFrameTree {
	return &proto.PageFrameTree{
		Frame:       &proto.PageFrame{ID: proto.PageFrameID(id), URL: url},
		ChildFrames: children,
	}
}

func TestFindFrameAtDepth(t *testing.T) {
	tree := frameTree("main", "https://main.test",
		frameTree("A", "https://a.test",
			frameTree("A1", "https://shared.test"),
		),
		frameTree("B", "https://shared.test",
			frameTree("B1", "https://b1.test"),
		),
	)

	tests := []struct {
		name  string
		depth int
		hint  proto.PageFrameID
		url   string
		want  proto.PageFrameID
	}{
		{"hint wins over url", 1, "B", "https://a.test", "B"},
		{"url fallback", 1, "", "https://a.test", "A"},
		{"first url match at depth", 1, "", "https://shared.test", "B"},
		{"depth two", 2, "", "https://shared.test", "A1"},
		{"hint at wrong depth ignored", 2, "B", "https://b1.test", "B1"},
		{"no match", 1, "", "https://none.test", ""},
		{"no url and no hint", 1, "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, findFrameAtDepth(tree, tt.depth, tt.hint, tt.url))
		})
	}
}

func TestHostOf(t *testing.T) {
	main := &Frame{}
	child := &Frame{parent: main}
	oopif := &Frame{parent: child, oopif: true}
	nested := &Frame{parent: oopif}
	deep := &Frame{parent: nested}

	tests := []struct {
		name      string
		frame     *Frame
		wantHost  *Frame
		wantDepth int
	}{
		{"child of main", child, main, 1},
		{"oopif hosted by main", oopif, main, 2},
		{"child of oopif", nested, oopif, 1},
		{"grandchild of oopif", deep, oopif, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, depth := hostOf(tt.frame)
			assert.Same(t, tt.wantHost, host)
			assert.Equal(t, tt.wantDepth, depth)
		})
	}
}

func TestFrame_SameAs(t *testing.T) {
	main := &Frame{}
	otherMain := &Frame{}
	a := &Frame{parent: main, id: "A"}
	a2 := &Frame{parent: otherMain, id: "A"}
	b := &Frame{parent: main, id: "B"}

	assert.True(t, main.sameAs(otherMain))
	assert.True(t, a.sameAs(a2))
	assert.False(t, a.sameAs(b))
	assert.False(t, a.sameAs(main))
	assert.False(t, a.sameAs(nil))
}
