package a11y

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"a11y-agent/internal/application/port/output"
	"a11y-agent/internal/domain/entity"
)

var leadingID = regexp.MustCompile(`^\s*\[([^\]]+)]`)

// frameWalker lists the child frames of a frame and extracts one frame.
// *Page is the browser-backed implementation.
type frameWalker interface {
	childFrames(ctx context.Context, f *Frame) ([]*Frame, error)
	snapshotFrame(ctx context.Context, f *Frame, selector string) (*entity.FrameSnapshot, error)
}

// TreeWithFrames extracts every frame of the page and splices the iframe
// trees into their parents. With a focus XPath only the frames on its
// chain are extracted and the innermost one is scoped to the remaining
// path. A frame that fails is logged and left out.
func (p *Page) TreeWithFrames(ctx context.Context, focusXPath string) (*entity.CombinedTree, error) {
	p.op.Lock()
	defer p.op.Unlock()

	if p.isClosed() {
		return nil, ErrPageClosed
	}

	main := p.mainFrame(ctx)

	var chain *FrameChain
	if focus := normalizeXPath(focusXPath); focus != "" {
		c, err := resolveFrameChain(ctx, &rodScope{p: p, frame: main}, focus)
		if err != nil {
			return nil, err
		}
		chain = c
	}

	snapshots, err := collectSnapshots(ctx, p, main, chain, p.logger)
	if err != nil {
		return nil, err
	}

	combined := stitchSnapshots(snapshots)
	p.logger.Debug("Combined tree built",
		"frames", len(snapshots),
		"xpaths", len(combined.XPaths),
		"ordinals", p.ordinals.Len())
	return combined, nil
}

// collectSnapshots walks the frames below main in document order and
// extracts those in scope. A nil chain means every frame. A chain that
// stays in the main document keeps only the main frame.
func collectSnapshots(ctx context.Context, w frameWalker, main *Frame, chain *FrameChain, logger output.LoggerPort) ([]*entity.FrameSnapshot, error) {
	mainOnly := chain != nil && len(chain.Frames) == 0

	inScope := func(f *Frame) bool {
		if chain == nil {
			return true
		}
		if mainOnly {
			return f.IsMain()
		}
		for _, c := range chain.Frames {
			if c.sameAs(f) {
				return true
			}
		}
		return false
	}
	isTarget := func(f *Frame) bool {
		if chain == nil {
			return false
		}
		if last := chain.Last(); last != nil {
			return last.sameAs(f)
		}
		return f.IsMain()
	}

	var snapshots []*entity.FrameSnapshot

	stack := []*Frame{main}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !mainOnly {
			children, err := w.childFrames(ctx, f)
			if err != nil {
				logger.Warn("Failed to list child frames", "frame_url", f.url, "error", err)
			}
			for i := len(children) - 1; i >= 0; i-- {
				stack = append(stack, children[i])
			}
		}

		if !inScope(f) {
			continue
		}

		selector := ""
		if isTarget(f) {
			selector = chain.Rest
		}

		snap, err := w.snapshotFrame(ctx, f, selector)
		if err != nil {
			if len(snapshots) == 0 {
				return nil, fmt.Errorf("extract root frame: %w", err)
			}
			logger.Warn("Frame extraction failed", "frame_url", f.url, "error", err)
			continue
		}
		snapshots = append(snapshots, snap)
	}

	if len(snapshots) == 0 {
		return nil, fmt.Errorf("no frame could be extracted")
	}
	return snapshots, nil
}

// Tree extracts a single frame without splicing; f == nil means the main
// frame.
func (p *Page) Tree(ctx context.Context, selector string, f *Frame) (*entity.TreeResult, error) {
	p.op.Lock()
	defer p.op.Unlock()

	if p.isClosed() {
		return nil, ErrPageClosed
	}
	if f == nil {
		f = p.mainFrame(ctx)
	}
	sess, err := p.sessionFor(ctx, f)
	if err != nil {
		return nil, err
	}
	return fetchTree(sess, normalizeXPath(selector), p.ordinals, p.tags, p.worlds)
}

func (p *Page) snapshotFrame(ctx context.Context, f *Frame, selector string) (*entity.FrameSnapshot, error) {
	sess, err := p.sessionFor(ctx, f)
	if err != nil {
		return nil, err
	}
	tree, err := fetchTree(sess, selector, p.ordinals, p.tags, p.worlds)
	if err != nil {
		return nil, err
	}

	snap := &entity.FrameSnapshot{
		Ordinal:  sess.ordinal,
		FrameURL: f.url,
		Tree:     tree.Simplified,
		XPaths:   tree.XPaths,
		URLs:     tree.URLs,
		Nodes:    tree.Nodes,
	}
	if f.IsMain() {
		return snap, nil
	}

	if snap.FrameXPath, err = p.frameRootXPath(ctx, f); err != nil {
		return nil, err
	}
	if snap.Prefix, err = p.framePrefix(ctx, f); err != nil {
		return nil, err
	}
	snap.OwnerBackendID = f.ownerBackendID
	if snap.ParentOrdinal, err = p.frameOrdinal(ctx, f.parent); err != nil {
		return nil, err
	}
	return snap, nil
}

func (p *Page) frameOrdinal(ctx context.Context, f *Frame) (int, error) {
	if f.IsMain() {
		return 0, nil
	}
	sess, err := p.sessionFor(ctx, f)
	if err != nil {
		return 0, err
	}
	return sess.ordinal, nil
}

// stitchSnapshots merges per-frame results. The first snapshot is the
// root the others are spliced into.
func stitchSnapshots(snapshots []*entity.FrameSnapshot) *entity.CombinedTree {
	combined := &entity.CombinedTree{
		XPaths: make(map[entity.EncodedID]string),
		URLs:   make(map[entity.EncodedID]string),
		Nodes:  make(map[entity.EncodedID]entity.NodeSummary),
	}
	if len(snapshots) == 0 {
		return combined
	}

	byIframe := make(map[entity.EncodedID]string)
	for _, s := range snapshots {
		for id, xp := range s.XPaths {
			if id.Ordinal() != s.Ordinal {
				continue
			}
			if _, seen := combined.XPaths[id]; seen {
				continue
			}
			combined.XPaths[id] = joinXPath(s.Prefix, xp)
		}
		for id, u := range s.URLs {
			if _, seen := combined.URLs[id]; !seen {
				combined.URLs[id] = u
			}
		}
		for id, n := range s.Nodes {
			if _, seen := combined.Nodes[id]; !seen {
				combined.Nodes[id] = n
			}
		}
		if !s.IsMain() {
			byIframe[entity.NewEncodedID(s.ParentOrdinal, s.OwnerBackendID)] = s.Tree
		}
	}

	combined.Tree = injectSubtrees(snapshots[0].Tree, byIframe)
	return combined
}

func joinXPath(prefix, local string) string {
	switch {
	case prefix == "":
		return local
	case local == "" || local == "/":
		return prefix
	}
	return prefix + local
}

// injectSubtrees walks the outline line by line and, below every line whose
// id owns a frame, splices that frame's outline one level deeper. Spliced
// text is scanned the same way, so nested frames land in place too.
func injectSubtrees(tree string, byIframe map[entity.EncodedID]string) string {
	type item struct {
		lines  []string
		next   int
		indent string
	}

	var out []string
	visited := make(map[entity.EncodedID]bool)
	stack := []*item{{lines: splitLines(tree)}}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if top.next >= len(top.lines) {
			stack = stack[:len(stack)-1]
			continue
		}
		line := top.lines[top.next]
		top.next++
		out = append(out, top.indent+line)

		m := leadingID.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		id := entity.EncodedID(m[1])
		sub, ok := byIframe[id]
		if !ok || visited[id] {
			continue
		}
		visited[id] = true

		lead := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		stack = append(stack, &item{lines: splitLines(sub), indent: top.indent + lead + "  "})
	}

	return strings.Join(out, "\n")
}

func splitLines(s string) []string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
