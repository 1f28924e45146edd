package a11y

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"a11y-agent/internal/domain/entity"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
)

// specialMethod enumerates the actions handled outside the capability table.
type specialMethod int

const (
	methodGeneric specialMethod = iota
	methodScrollIntoView
	methodFill
	methodPress
)

func specialMethodOf(method string) specialMethod {
	switch method {
	case "scrollIntoView":
		return methodScrollIntoView
	case "fill", "type":
		return methodFill
	case "press":
		return methodPress
	}
	return methodGeneric
}

type actionTarget struct {
	page  *Page
	doc   *rod.Page
	el    *rod.Element
	xpath string
}

type elementCapability func(ctx context.Context, t *actionTarget, args []string) error

var elementCapabilities = map[string]elementCapability{
	"click": func(ctx context.Context, t *actionTarget, args []string) error {
		return t.el.Click(proto.InputMouseButtonLeft, 1)
	},
	"dblclick": func(ctx context.Context, t *actionTarget, args []string) error {
		return t.el.Click(proto.InputMouseButtonLeft, 2)
	},
	"hover": func(ctx context.Context, t *actionTarget, args []string) error {
		return t.el.Hover()
	},
	"focus": func(ctx context.Context, t *actionTarget, args []string) error {
		return t.el.Focus()
	},
	"blur": func(ctx context.Context, t *actionTarget, args []string) error {
		return t.el.Blur()
	},
	"check":        setChecked(true),
	"uncheck":      setChecked(false),
	"selectOption": selectOption,
}

// SupportedMethods lists every method PerformAction accepts.
func SupportedMethods() []string {
	methods := []string{"scrollIntoView", "fill", "type", "press"}
	for name := range elementCapabilities {
		methods = append(methods, name)
	}
	return methods
}

func isSupported(method string) bool {
	if specialMethodOf(method) != methodGeneric {
		return true
	}
	_, ok := elementCapabilities[method]
	return ok
}

// PerformAction resolves the absolute XPath of the action across frames and
// runs the method on the element it designates.
func (p *Page) PerformAction(ctx context.Context, action entity.Action) error {
	p.op.Lock()
	defer p.op.Unlock()

	if p.isClosed() {
		return ErrPageClosed
	}
	if !isSupported(action.Method) {
		return &UnsupportedMethodError{Method: action.Method}
	}

	xpath := normalizeXPath(action.Selector)
	if xpath == "" {
		return &ElementNotFoundError{XPath: action.Selector}
	}

	target, err := p.locate(ctx, xpath)
	if err != nil {
		return err
	}

	p.logger.Debug("Performing action", "method", action.Method, "xpath", xpath, "args", action.Arguments)

	switch specialMethodOf(action.Method) {
	case methodScrollIntoView:
		p.scrollIntoView(target)
		return nil
	case methodFill:
		return wrapAction(action.Method, xpath, p.fill(ctx, target, firstArg(action.Arguments)))
	case methodPress:
		return wrapAction(action.Method, xpath, p.press(firstArg(action.Arguments)))
	}

	capability := elementCapabilities[action.Method]
	if action.Method != "click" {
		return wrapAction(action.Method, xpath, capability(ctx, target, action.Arguments))
	}

	waitIdle, cancelIdle := p.networkIdleWaiter(ctx)
	defer cancelIdle()
	newTab, stop := p.watchNewTab(ctx)
	defer stop()
	if err := capability(ctx, target, action.Arguments); err != nil {
		return wrapAction(action.Method, xpath, err)
	}
	if err := p.followNewTab(ctx, newTab); err != nil {
		return err
	}
	waitIdle()
	return nil
}

func (p *Page) locate(ctx context.Context, xpath string) (*actionTarget, error) {
	chain, err := resolveFrameChain(ctx, &rodScope{p: p, frame: p.mainFrame(ctx)}, xpath)
	if err != nil {
		return nil, &ElementNotFoundError{XPath: xpath, Err: err}
	}
	if chain.Rest == "" {
		return nil, &ElementNotFoundError{XPath: xpath}
	}

	doc := p.page.Context(ctx)
	if last := chain.Last(); last != nil {
		if doc, err = p.document(ctx, last); err != nil {
			return nil, &ElementNotFoundError{XPath: xpath, Err: err}
		}
	}

	el, err := doc.Timeout(p.cfg.ActionTimeout).ElementX(chain.Rest)
	if err != nil {
		return nil, &ElementNotFoundError{XPath: xpath, Err: err}
	}
	return &actionTarget{page: p, doc: doc, el: el.Context(ctx), xpath: xpath}, nil
}

func wrapAction(method, xpath string, err error) error {
	if err == nil {
		return nil
	}
	return &ActionError{Method: method, XPath: xpath, Err: err}
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func (p *Page) scrollIntoView(t *actionTarget) {
	_, err := t.el.Eval(`function () { this.scrollIntoView({ behavior: 'smooth', block: 'center', inline: 'center' }) }`)
	if err != nil {
		p.logger.Warn("scrollIntoView failed", "xpath", t.xpath, "error", err)
	}
}

const clearFieldJS = `function () {
	if (this.isContentEditable) {
		this.textContent = '';
	} else if ('value' in this) {
		this.value = '';
	}
	this.dispatchEvent(new Event('input', { bubbles: true }));
}`

// fill clears the field, focuses it with a click and types text one key
// at a time.
func (p *Page) fill(ctx context.Context, t *actionTarget, text string) error {
	if _, err := t.el.Eval(clearFieldJS); err != nil {
		return fmt.Errorf("clear field: %w", err)
	}
	if err := t.el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("focus field: %w", err)
	}

	kb := p.page.Keyboard
	for i, r := range text {
		if i > 0 {
			if err := sleepCtx(ctx, p.keyDelay()); err != nil {
				return err
			}
		}
		var err error
		if r >= 0x20 && r <= 0x7E {
			err = kb.Type(input.Key(r))
		} else {
			err = p.page.InsertText(string(r))
		}
		if err != nil {
			return fmt.Errorf("type %q: %w", r, err)
		}
	}
	return nil
}

func (p *Page) keyDelay() time.Duration {
	lo, hi := p.cfg.KeyDelayMin, p.cfg.KeyDelayMax
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo)
}

var namedKeys = map[string]input.Key{
	"enter":      input.Enter,
	"return":     input.Enter,
	"tab":        input.Tab,
	"escape":     input.Escape,
	"esc":        input.Escape,
	"backspace":  input.Backspace,
	"delete":     input.Delete,
	"space":      input.Space,
	"arrowup":    input.ArrowUp,
	"arrowdown":  input.ArrowDown,
	"arrowleft":  input.ArrowLeft,
	"arrowright": input.ArrowRight,
	"home":       input.Home,
	"end":        input.End,
	"pageup":     input.PageUp,
	"pagedown":   input.PageDown,
}

func keyFor(name string) (input.Key, error) {
	if k, ok := namedKeys[strings.ToLower(strings.TrimSpace(name))]; ok {
		return k, nil
	}
	if r := []rune(name); len(r) == 1 && r[0] >= 0x20 && r[0] <= 0x7E {
		return input.Key(r[0]), nil
	}
	return 0, fmt.Errorf("unknown key %q", name)
}

func (p *Page) press(name string) error {
	key, err := keyFor(name)
	if err != nil {
		return err
	}
	return p.page.Keyboard.Type(key)
}

func setChecked(want bool) elementCapability {
	return func(ctx context.Context, t *actionTarget, args []string) error {
		prop, err := t.el.Property("checked")
		if err != nil {
			return err
		}
		if prop.Bool() == want {
			return nil
		}
		return t.el.Click(proto.InputMouseButtonLeft, 1)
	}
}

const selectByValueJS = `function (wanted) {
	const norm = (s) => (s || '').trim().toLowerCase();
	for (const opt of this.options || []) {
		if (norm(opt.value) === norm(wanted) || norm(opt.textContent) === norm(wanted)) {
			this.value = opt.value;
			this.dispatchEvent(new Event('input', { bubbles: true }));
			this.dispatchEvent(new Event('change', { bubbles: true }));
			return true;
		}
	}
	return false;
}`

func selectOption(ctx context.Context, t *actionTarget, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("selectOption needs an option")
	}
	if err := t.el.Select(args, true, rod.SelectorTypeText); err == nil {
		return nil
	}
	res, err := t.el.Eval(selectByValueJS, args[0])
	if err != nil {
		return err
	}
	if !res.Value.Bool() {
		return fmt.Errorf("no option matches %q", args[0])
	}
	return nil
}

// watchNewTab reports the first page target opened by this page.
func (p *Page) watchNewTab(ctx context.Context) (<-chan *proto.TargetTargetInfo, func()) {
	found := make(chan *proto.TargetTargetInfo, 1)
	watchCtx, cancel := context.WithCancel(ctx)

	wait := p.browser.Context(watchCtx).EachEvent(func(e *proto.TargetTargetCreated) bool {
		info := e.TargetInfo
		if info == nil || string(info.Type) != "page" || info.OpenerID != p.page.TargetID {
			return false
		}
		select {
		case found <- info:
		default:
		}
		return true
	})
	go wait()

	return found, cancel
}

// followNewTab closes a popup opened by the click, if any, and loads its
// URL in the current page instead.
func (p *Page) followNewTab(ctx context.Context, newTab <-chan *proto.TargetTargetInfo) error {
	var info *proto.TargetTargetInfo
	select {
	case info = <-newTab:
	case <-time.After(p.cfg.NewTabWait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}

	url := info.URL
	if popup, err := p.browser.PageFromTarget(info.TargetID); err == nil {
		if url == "" || url == "about:blank" {
			_ = popup.Timeout(p.cfg.NetworkIdleCap).WaitLoad()
			if pi, err := popup.Info(); err == nil {
				url = pi.URL
			}
		}
		_ = popup.Close()
	}
	if url == "" || url == "about:blank" {
		return nil
	}

	p.logger.Info("Click opened a new tab, following it in the current page", "url", url)

	if err := p.page.Context(ctx).Navigate(url); err != nil {
		return fmt.Errorf("navigate to new tab url: %w", err)
	}
	return nil
}

// networkIdleWaiter starts tracking requests now. wait blocks until none
// has been in flight for NetworkIdleWindow, giving up once NetworkIdleCap
// has passed since the call. cancel releases the tracker.
func (p *Page) networkIdleWaiter(ctx context.Context) (wait func(), cancel func()) {
	if p.cfg.NetworkIdleCap <= 0 {
		return func() {}, func() {}
	}
	page := p.page.Context(ctx).Timeout(p.cfg.NetworkIdleCap)
	return page.WaitRequestIdle(p.cfg.NetworkIdleWindow, nil, nil, nil), func() { page.CancelTimeout() }
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
