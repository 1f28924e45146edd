package a11y

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// FrameID returns the protocol frame id of f, or "" for the main frame.
func (p *Page) FrameID(ctx context.Context, f *Frame) (proto.PageFrameID, error) {
	p.op.Lock()
	defer p.op.Unlock()

	if p.isClosed() {
		return "", ErrPageClosed
	}
	sess, err := p.sessionFor(ctx, f)
	if err != nil {
		return "", err
	}
	if f.IsMain() {
		return "", nil
	}
	if sess.viaHost() {
		return sess.frameID, nil
	}
	return p.ownTreeRoot(sess.client, f)
}

// sessionFor decides how f is reached over CDP and assigns its ordinal.
//
// Same-process frames are looked up at their depth in the frame tree of
// the nearest ancestor that owns a session; out-of-process frames (and
// frames the lookup misses) get a dedicated session whose own frame tree
// root is the frame.
func (p *Page) sessionFor(ctx context.Context, f *Frame) (frameSession, error) {
	if f.IsMain() {
		return frameSession{client: p.page.Context(ctx)}, nil
	}

	if !f.oopif {
		host, depth := hostOf(f)
		hostDoc, err := p.document(ctx, host)
		if err != nil {
			return frameSession{}, err
		}
		tree, err := proto.PageGetFrameTree{}.Call(hostDoc)
		if err == nil {
			if id := findFrameAtDepth(tree.FrameTree, depth, f.id, f.url); id != "" {
				ord, err := p.ordinals.Ordinal(id)
				if err != nil {
					return frameSession{}, err
				}
				return frameSession{client: hostDoc, frameID: id, ordinal: ord}, nil
			}
		}
	}

	s, err := p.attach(ctx, f)
	if err != nil {
		return frameSession{}, err
	}
	id, err := p.ownTreeRoot(s, f)
	if err != nil {
		return frameSession{}, err
	}
	ord, err := p.ordinals.Ordinal(id)
	if err != nil {
		return frameSession{}, err
	}
	return frameSession{client: s.Context(ctx), ordinal: ord, oopif: true}, nil
}

// hostOf returns the nearest ancestor with its own session and the depth
// of f below it.
func hostOf(f *Frame) (*Frame, int) {
	depth := 0
	cur := f
	for {
		depth++
		cur = cur.parent
		if cur.IsMain() || cur.oopif {
			return cur, depth
		}
	}
}

// findFrameAtDepth prefers the frame whose id matches hint and otherwise
// takes the first one at depth whose URL matches.
func findFrameAtDepth(root *proto.PageFrameTree, depth int, hint proto.PageFrameID, url string) proto.PageFrameID {
	type item struct {
		tree  *proto.PageFrameTree
		depth int
	}

	var byURL proto.PageFrameID
	stack := []item{{tree: root}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if it.tree == nil || it.tree.Frame == nil {
			continue
		}
		if it.depth == depth {
			if hint != "" && it.tree.Frame.ID == hint {
				return hint
			}
			if byURL == "" && url != "" && it.tree.Frame.URL == url {
				byURL = it.tree.Frame.ID
			}
			continue
		}
		for i := len(it.tree.ChildFrames) - 1; i >= 0; i-- {
			stack = append(stack, item{tree: it.tree.ChildFrames[i], depth: it.depth + 1})
		}
	}
	return byURL
}

// attach opens (or reuses) a flattened session on the frame's target.
func (p *Page) attach(ctx context.Context, f *Frame) (*rod.Page, error) {
	if p.isClosed() {
		return nil, ErrPageClosed
	}
	if f.id == "" {
		return nil, &FrameResolutionError{URL: f.url, Err: fmt.Errorf("iframe has no frame id")}
	}
	if s, ok := p.cachedSession(f.id); ok {
		return s, nil
	}

	res, err := proto.TargetAttachToTarget{
		TargetID: proto.TargetTargetID(f.id),
		Flatten:  true,
	}.Call(p.browser.Context(ctx))
	if err != nil {
		return nil, &FrameResolutionError{URL: f.url, Err: err}
	}

	s := p.browser.PageFromSession(res.SessionID)
	p.storeSession(f.id, s)
	p.logger.Debug("Attached frame session", "frame_url", f.url, "session", res.SessionID)
	return s, nil
}

func (p *Page) ownTreeRoot(c proto.Client, f *Frame) (proto.PageFrameID, error) {
	tree, err := proto.PageGetFrameTree{}.Call(c)
	if err != nil {
		return "", &FrameResolutionError{URL: f.url, Err: err}
	}
	if tree.FrameTree == nil || tree.FrameTree.Frame == nil {
		return "", &FrameResolutionError{URL: f.url, Err: fmt.Errorf("empty frame tree")}
	}
	return tree.FrameTree.Frame.ID, nil
}
