package a11y

import (
	"context"
	"sync"
	"time"

	"a11y-agent/internal/application/port/output"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

type Config struct {
	// ActionTimeout bounds element lookups before an action.
	ActionTimeout time.Duration
	KeyDelayMin   time.Duration
	KeyDelayMax   time.Duration
	// NewTabWait is how long a click waits for a popup to appear.
	NewTabWait        time.Duration
	NetworkIdleCap    time.Duration
	NetworkIdleWindow time.Duration
}

func DefaultConfig() Config {
	return Config{
		ActionTimeout:     10 * time.Second,
		KeyDelayMin:       25 * time.Millisecond,
		KeyDelayMax:       75 * time.Millisecond,
		NewTabWait:        1500 * time.Millisecond,
		NetworkIdleCap:    5 * time.Second,
		NetworkIdleWindow: 500 * time.Millisecond,
	}
}

// Page is the per-page extraction context. It owns the frame ordinals, the
// tag cache and the dedicated OOPIF sessions for as long as the page lives.
type Page struct {
	page    *rod.Page
	browser *rod.Browser
	cfg     Config
	logger  output.LoggerPort

	ordinals *OrdinalRegistry
	tags     *tagCache
	worlds   *worldCache

	// op serializes extraction passes and actions on this page.
	op sync.Mutex

	mu       sync.Mutex
	sessions map[proto.PageFrameID]*rod.Page
	closed   bool
}

func NewPage(page *rod.Page, logger output.LoggerPort, cfg Config) *Page {
	if cfg.ActionTimeout <= 0 {
		cfg.ActionTimeout = DefaultConfig().ActionTimeout
	}
	browser := page.Browser()
	_ = proto.TargetSetDiscoverTargets{Discover: true}.Call(browser)

	return &Page{
		page:     page,
		browser:  browser,
		cfg:      cfg,
		logger:   logger.WithField("component", "a11y"),
		ordinals: NewOrdinalRegistry(),
		tags:     newTagCache(),
		worlds:   newWorldCache(),
		sessions: make(map[proto.PageFrameID]*rod.Page),
	}
}

func (p *Page) Ordinals() *OrdinalRegistry {
	return p.ordinals
}

// Close detaches every dedicated frame session and forgets the frame
// ordinals. The underlying rod page stays open.
func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	for id, s := range p.sessions {
		_ = proto.TargetDetachFromTarget{SessionID: s.SessionID}.Call(p.browser)
		delete(p.sessions, id)
	}
	p.ordinals.Reset()
	p.worlds.reset()
	return nil
}

func (p *Page) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Page) mainFrame(ctx context.Context) *Frame {
	f := &Frame{doc: p.page.Context(ctx)}
	if info, err := p.page.Context(ctx).Info(); err == nil {
		f.url = info.URL
	}
	return f
}

func (p *Page) cachedSession(id proto.PageFrameID) (*rod.Page, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sessions[id]
	return s, ok
}

func (p *Page) storeSession(id proto.PageFrameID, s *rod.Page) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions[id] = s
}
