package a11y

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"a11y-agent/internal/domain/entity"
)

var iframeStep = regexp.MustCompile(`(?i)^i?frame(\[[^\]]+])?$`)

// FrameChain is the list of iframes an absolute XPath crosses plus the
// part of the path left to evaluate inside the last one.
type FrameChain struct {
	Frames []*Frame
	Rest   string
}

// Last returns the innermost frame of the chain, or nil for the main document.
func (c *FrameChain) Last() *Frame {
	if len(c.Frames) == 0 {
		return nil
	}
	return c.Frames[len(c.Frames)-1]
}

// frameScope is one document an XPath is evaluated in.
type frameScope interface {
	hasXPath(ctx context.Context, xpath string) (bool, error)
	descend(ctx context.Context, ownerXPath string) (frameScope, *Frame, error)
}

// ResolveFrameChain splits an absolute XPath at the iframe boundaries it
// crosses, starting from the main document.
func (p *Page) ResolveFrameChain(ctx context.Context, xpath string) (*FrameChain, error) {
	p.op.Lock()
	defer p.op.Unlock()

	if p.isClosed() {
		return nil, ErrPageClosed
	}
	return resolveFrameChain(ctx, &rodScope{p: p, frame: p.mainFrame(ctx)}, xpath)
}

func resolveFrameChain(ctx context.Context, scope frameScope, xpath string) (*FrameChain, error) {
	path := normalizeXPath(xpath)
	if path == "" {
		return nil, &XPathResolutionError{XPath: xpath}
	}

	steps := strings.Split(strings.TrimPrefix(path, "/"), "/")
	chain := &FrameChain{}

	for {
		rest := "/" + strings.Join(steps, "/")
		if ok, err := scope.hasXPath(ctx, rest); err == nil && ok {
			chain.Rest = rest
			return chain, nil
		}

		i := indexOfIframeStep(steps)
		if i < 0 {
			return nil, &XPathResolutionError{XPath: xpath}
		}

		owner := "/" + strings.Join(steps[:i+1], "/")
		next, frame, err := scope.descend(ctx, owner)
		if err != nil {
			return nil, fmt.Errorf("descend into %s: %w", owner, err)
		}
		chain.Frames = append(chain.Frames, frame)
		scope = next
		steps = steps[i+1:]

		if len(steps) == 0 {
			return chain, nil
		}
	}
}

func indexOfIframeStep(steps []string) int {
	for i, s := range steps {
		if iframeStep.MatchString(s) {
			return i
		}
	}
	return -1
}

// normalizeXPath strips the "xpath=" selector prefix and makes the path
// absolute.
func normalizeXPath(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, entity.XPathPrefix)
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if !strings.HasPrefix(s, "/") {
		s = "/" + s
	}
	return s
}

type rodScope struct {
	p     *Page
	frame *Frame
}

func (s *rodScope) hasXPath(ctx context.Context, xpath string) (bool, error) {
	doc, err := s.p.document(ctx, s.frame)
	if err != nil {
		return false, err
	}
	has, _, err := doc.HasX(xpath)
	return has, err
}

func (s *rodScope) descend(ctx context.Context, ownerXPath string) (frameScope, *Frame, error) {
	doc, err := s.p.document(ctx, s.frame)
	if err != nil {
		return nil, nil, err
	}
	owner, err := doc.Timeout(s.p.cfg.ActionTimeout).ElementX(ownerXPath)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrContentFrameNotFound, ownerXPath)
	}
	child, err := s.p.frameFromOwner(s.frame, owner)
	if err != nil {
		return nil, nil, err
	}
	if _, err := s.p.document(ctx, child); err != nil {
		return nil, nil, err
	}
	return &rodScope{p: s.p, frame: child}, child, nil
}
