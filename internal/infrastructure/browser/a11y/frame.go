package a11y

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Frame is an observed document: the main one or the content of an
// <iframe>. Frames are owned by the browser; this only keeps handles.
type Frame struct {
	parent *Frame
	owner  *rod.Element
	doc    *rod.Page

	// id is the frame id reported on the owner element.
	id             proto.PageFrameID
	url            string
	oopif          bool
	ownerBackendID int

	rootXPath string
	prefix    *string
}

func (f *Frame) IsMain() bool       { return f.parent == nil }
func (f *Frame) Parent() *Frame     { return f.parent }
func (f *Frame) URL() string        { return f.url }
func (f *Frame) OutOfProcess() bool { return f.oopif }

func (f *Frame) sameAs(o *Frame) bool {
	if f == nil || o == nil {
		return false
	}
	if f.IsMain() || o.IsMain() {
		return f.IsMain() && o.IsMain()
	}
	if f.id != "" && o.id != "" {
		return f.id == o.id
	}
	return f.owner != nil && o.owner != nil && f.ownerBackendID == o.ownerBackendID && f.parent.sameAs(o.parent)
}

// frameFromOwner describes an <iframe> element and builds the child frame.
// A content document visible from the parent means the frame shares its
// renderer; otherwise it is out of process.
func (p *Page) frameFromOwner(parent *Frame, owner *rod.Element) (*Frame, error) {
	node, err := owner.Describe(1, true)
	if err != nil {
		return nil, &FrameResolutionError{Err: fmt.Errorf("describe iframe: %w", err)}
	}

	f := &Frame{
		parent:         parent,
		owner:          owner,
		id:             node.FrameID,
		ownerBackendID: int(node.BackendNodeID),
	}

	if node.ContentDocument != nil {
		f.url = node.ContentDocument.DocumentURL
		doc, err := owner.Frame()
		if err != nil {
			return nil, &FrameResolutionError{URL: f.url, Err: err}
		}
		f.doc = doc
		return f, nil
	}

	f.oopif = true
	if src, err := owner.Property("src"); err == nil {
		f.url = src.Str()
	}
	return f, nil
}

// document returns the rod page that evaluates inside f, attaching a
// dedicated session for out-of-process frames.
func (p *Page) document(ctx context.Context, f *Frame) (*rod.Page, error) {
	if f.doc != nil {
		return f.doc.Context(ctx), nil
	}
	s, err := p.attach(ctx, f)
	if err != nil {
		return nil, err
	}
	f.doc = s
	return s.Context(ctx), nil
}

// frameOwnersJS lists <iframe> and <frame> elements in document order,
// including those inside open shadow roots.
const frameOwnersJS = `() => {
	const found = [];
	const visit = (root) => {
		for (const el of root.querySelectorAll('*')) {
			if (el.localName === 'iframe' || el.localName === 'frame') found.push(el);
			if (el.shadowRoot) visit(el.shadowRoot);
		}
	};
	visit(document);
	return found;
}`

func (p *Page) childFrames(ctx context.Context, f *Frame) ([]*Frame, error) {
	doc, err := p.document(ctx, f)
	if err != nil {
		return nil, err
	}
	owners, err := doc.ElementsByJS(rod.Eval(frameOwnersJS))
	if err != nil {
		return nil, fmt.Errorf("list iframes: %w", err)
	}

	children := make([]*Frame, 0, len(owners))
	for _, owner := range owners {
		child, err := p.frameFromOwner(f, owner)
		if err != nil {
			p.logger.Warn("Skipping iframe", "parent_url", f.url, "error", err)
			continue
		}
		children = append(children, child)
	}
	return children, nil
}

// frameRootXPath is the path of the owner <iframe> in its parent document.
func (p *Page) frameRootXPath(ctx context.Context, f *Frame) (string, error) {
	if f.IsMain() {
		return "", nil
	}
	if f.rootXPath != "" {
		return f.rootXPath, nil
	}
	res, err := f.owner.Context(ctx).Eval(`function () { return (` + xpathOfJS + `)(this) }`)
	if err != nil {
		return "", fmt.Errorf("iframe xpath: %w", err)
	}
	f.rootXPath = res.Value.Str()
	return f.rootXPath, nil
}

// framePrefix is the absolute path from the main document to the owner of
// f, i.e. the chain of root XPaths of f and its ancestors.
func (p *Page) framePrefix(ctx context.Context, f *Frame) (string, error) {
	if f.IsMain() {
		return "", nil
	}
	if f.prefix != nil {
		return *f.prefix, nil
	}

	var chain []*Frame
	for cur := f; !cur.IsMain() && cur.prefix == nil; cur = cur.parent {
		chain = append(chain, cur)
	}
	prefix := ""
	if top := chain[len(chain)-1].parent; top.prefix != nil {
		prefix = *top.prefix
	}
	for i := len(chain) - 1; i >= 0; i-- {
		own, err := p.frameRootXPath(ctx, chain[i])
		if err != nil {
			return "", err
		}
		prefix += own
		cached := prefix
		chain[i].prefix = &cached
	}
	return prefix, nil
}
