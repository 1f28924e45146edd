package a11y

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/go-rod/rod/lib/proto"
)

// fakeCDP answers protocol calls from per-method handlers and records
// every call with its raw params.
type fakeCDP struct {
	mu       sync.Mutex
	handlers map[string]func(params map[string]any) (any, error)
	calls    []fakeCall
}

type fakeCall struct {
	method string
	params map[string]any
}

var _ proto.Client = (*fakeCDP)(nil)

func newFakeCDP() *fakeCDP {
	return &fakeCDP{handlers: make(map[string]func(map[string]any) (any, error))}
}

func (f *fakeCDP) on(method string, h func(params map[string]any) (any, error)) *fakeCDP {
	f.handlers[method] = h
	return f
}

func (f *fakeCDP) reply(method string, res any) *fakeCDP {
	return f.on(method, func(map[string]any) (any, error) { return res, nil })
}

func (f *fakeCDP) Call(_ context.Context, _, method string, params interface{}) ([]byte, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	decoded := map[string]any{}
	_ = json.Unmarshal(raw, &decoded)

	f.mu.Lock()
	f.calls = append(f.calls, fakeCall{method: method, params: decoded})
	h, ok := f.handlers[method]
	f.mu.Unlock()

	if !ok {
		return []byte("{}"), nil
	}
	res, err := h(decoded)
	if err != nil {
		return nil, err
	}
	return json.Marshal(res)
}

func (f *fakeCDP) methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.method)
	}
	return out
}

func (f *fakeCDP) lastParams(method string) (map[string]any, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i].method == method {
			return f.calls[i].params, true
		}
	}
	return nil, false
}

// DOM fixtures

func elem(backend int, name string, children ...*proto.DOMNode) *proto.DOMNode {
	return &proto.DOMNode{
		NodeType:      nodeTypeElement,
		NodeName:      name,
		BackendNodeID: proto.DOMBackendNodeID(backend),
		Children:      children,
	}
}

func text(backend int, value string) *proto.DOMNode {
	return &proto.DOMNode{
		NodeType:      nodeTypeText,
		NodeName:      "#text",
		NodeValue:     value,
		BackendNodeID: proto.DOMBackendNodeID(backend),
	}
}

func comment(backend int) *proto.DOMNode {
	return &proto.DOMNode{
		NodeType:      nodeTypeComment,
		NodeName:      "#comment",
		BackendNodeID: proto.DOMBackendNodeID(backend),
	}
}

func document(backend int, children ...*proto.DOMNode) *proto.DOMNode {
	return &proto.DOMNode{
		NodeType:      9,
		NodeName:      "#document",
		BackendNodeID: proto.DOMBackendNodeID(backend),
		Children:      children,
	}
}

func iframeNode(backend int, frameID string, content *proto.DOMNode) *proto.DOMNode {
	n := elem(backend, "IFRAME")
	n.FrameID = proto.PageFrameID(frameID)
	n.ContentDocument = content
	return n
}

// Accessibility fixtures

func axValue(v string) *proto.AccessibilityAXValue {
	raw, _ := json.Marshal(map[string]any{"type": "string", "value": v})
	out := &proto.AccessibilityAXValue{}
	_ = json.Unmarshal(raw, out)
	return out
}

type axSpec struct {
	id       string
	role     string
	name     string
	backend  int
	parent   string
	children []string
	url      string
}

func rawAXNode(s axSpec) *proto.AccessibilityAXNode {
	n := &proto.AccessibilityAXNode{
		NodeID:           proto.AccessibilityAXNodeID(s.id),
		Role:             axValue(s.role),
		BackendDOMNodeID: proto.DOMBackendNodeID(s.backend),
		ParentID:         proto.AccessibilityAXNodeID(s.parent),
	}
	if s.name != "" {
		n.Name = axValue(s.name)
	}
	for _, c := range s.children {
		n.ChildIDs = append(n.ChildIDs, proto.AccessibilityAXNodeID(c))
	}
	if s.url != "" {
		n.Properties = append(n.Properties, &proto.AccessibilityAXProperty{
			Name:  "url",
			Value: axValue(s.url),
		})
	}
	return n
}

func flat(specs ...axSpec) []*axNode {
	raw := make([]*proto.AccessibilityAXNode, 0, len(specs))
	for _, s := range specs {
		raw = append(raw, rawAXNode(s))
	}
	return convertAXNodes(raw)
}

func objectID(i int) string {
	return fmt.Sprintf("obj-%d", i)
}
