package rod

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"net/url"
	"strings"
	"sync"
	"time"

	"a11y-agent/internal/application/port/output"
	"a11y-agent/internal/domain/entity"
	"a11y-agent/internal/infrastructure/browser/a11y"

	"github.com/disintegration/imaging"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"
)

var (
	_ output.BrowserPort       = (*BrowserAdapter)(nil)
	_ output.AccessibilityPort = (*BrowserAdapter)(nil)
)

var (
	ErrInvalidURL    = errors.New("invalid url")
	ErrBrowserClosed = errors.New("browser is closed")
)

const (
	defaultSlowMotion = 0
	defaultTimeout    = 30 * time.Second
	maxScreenshotW    = 1024
)

type BrowserConfig struct {
	Headless   bool
	SlowMotion time.Duration
	Timeout    time.Duration
	NoSandbox  bool
	DevTools   bool
	// DisableSecurityFeatures turns off site isolation, which keeps every
	// iframe in process. Off by default so OOPIFs stay reachable as such.
	DisableSecurityFeatures bool
	Stealth                 bool
	Bin                     string
	A11y                    a11y.Config
}

func DefaultConfig() BrowserConfig {
	return BrowserConfig{
		Headless:   false,
		SlowMotion: defaultSlowMotion,
		Timeout:    defaultTimeout,
		Stealth:    true,
		A11y:       a11y.DefaultConfig(),
	}
}

// BrowserAdapter drives one Chromium tab and exposes its stitched
// accessibility tree.
type BrowserAdapter struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	page     *rod.Page
	a11y     *a11y.Page
	logger   output.LoggerPort

	mu      sync.Mutex
	timeout time.Duration
	closed  bool
}

func NewBrowserAdapter(ctx context.Context, cfg BrowserConfig, logger output.LoggerPort) (*BrowserAdapter, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	l := launcher.New().
		Headless(cfg.Headless).
		Devtools(cfg.DevTools).
		NoSandbox(cfg.NoSandbox).
		Delete("use-mock-keychain")
	if cfg.Bin != "" {
		l = l.Bin(cfg.Bin)
	}
	if cfg.DisableSecurityFeatures {
		l = l.Set("disable-web-security").
			Set("disable-site-isolation-trials").
			Set("allow-running-insecure-content")
	}

	controlURL, err := l.Context(ctx).Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).SlowMotion(cfg.SlowMotion)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	var page *rod.Page
	if cfg.Stealth {
		page, err = stealth.Page(browser)
	} else {
		page, err = browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	}
	if err != nil {
		_ = browser.Close()
		l.Kill()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	logger.Info("Browser launched", "headless", cfg.Headless, "stealth", cfg.Stealth)

	return &BrowserAdapter{
		browser:  browser,
		launcher: l,
		page:     page,
		a11y:     a11y.NewPage(page, logger, cfg.A11y),
		logger:   logger,
		timeout:  cfg.Timeout,
	}, nil
}

func validateURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	switch u.Scheme {
	case "http", "https", "file":
		return nil
	case "about":
		if u.Opaque == "blank" {
			return nil
		}
	}
	return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
}

func (b *BrowserAdapter) Navigate(ctx context.Context, rawURL string) error {
	if err := validateURL(rawURL); err != nil {
		return err
	}
	if !b.IsReady() {
		return ErrBrowserClosed
	}

	page := b.page.Context(ctx).Timeout(b.GetTimeout())
	if err := page.Navigate(rawURL); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("wait load: %w", err)
	}
	page.WaitRequestIdle(500*time.Millisecond, nil, nil, nil)()

	b.logger.Info("Navigated", "url", rawURL)
	return nil
}

var scrollScripts = map[string]string{
	"down":   `() => window.scrollBy(0, window.innerHeight * 0.8)`,
	"up":     `() => window.scrollBy(0, -window.innerHeight * 0.8)`,
	"top":    `() => window.scrollTo(0, 0)`,
	"bottom": `() => window.scrollTo(0, document.body.scrollHeight)`,
}

func (b *BrowserAdapter) Scroll(ctx context.Context, direction string) error {
	direction = strings.ToLower(strings.TrimSpace(direction))
	script, ok := scrollScripts[direction]
	if !ok {
		return fmt.Errorf("unknown scroll direction: %s", direction)
	}
	if !b.IsReady() {
		return ErrBrowserClosed
	}
	if _, err := b.page.Context(ctx).Eval(script); err != nil {
		return fmt.Errorf("scroll %s: %w", direction, err)
	}
	return nil
}

func (b *BrowserAdapter) GetPageContent(ctx context.Context) (*entity.PageContent, error) {
	if !b.IsReady() {
		return nil, ErrBrowserClosed
	}
	page := b.page.Context(ctx).Timeout(b.GetTimeout())

	info, err := page.Info()
	if err != nil {
		return nil, fmt.Errorf("page info: %w", err)
	}
	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("failed to get HTML: %w", err)
	}

	return &entity.PageContent{
		URL:   info.URL,
		Title: info.Title,
		HTML:  html,
	}, nil
}

func (b *BrowserAdapter) Screenshot(ctx context.Context) (*entity.Screenshot, error) {
	if !b.IsReady() {
		return nil, ErrBrowserClosed
	}
	imgBytes, err := b.page.Context(ctx).Screenshot(true, &proto.PageCaptureScreenshot{
		Format:  proto.PageCaptureScreenshotFormatJpeg,
		Quality: gson.Int(80),
	})
	if err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}

	img, _, err := image.Decode(bytes.NewReader(imgBytes))
	if err != nil {
		return nil, fmt.Errorf("image decode failed: %w", err)
	}

	if img.Bounds().Dx() > maxScreenshotW {
		img = imaging.Resize(img, maxScreenshotW, 0, imaging.Lanczos)
	}

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: 75}); err != nil {
		return nil, fmt.Errorf("jpeg encode failed: %w", err)
	}

	return &entity.Screenshot{
		Data:   buf.Bytes(),
		Format: "jpeg",
		Width:  img.Bounds().Dx(),
		Height: img.Bounds().Dy(),
	}, nil
}

// CombinedTree returns the accessibility tree of every frame of the page,
// stitched into one outline.
func (b *BrowserAdapter) CombinedTree(ctx context.Context, focusXPath string) (*entity.CombinedTree, error) {
	if !b.IsReady() {
		return nil, ErrBrowserClosed
	}
	return b.a11y.TreeWithFrames(ctx, focusXPath)
}

func (b *BrowserAdapter) PerformAction(ctx context.Context, action entity.Action) error {
	if !b.IsReady() {
		return ErrBrowserClosed
	}
	return b.a11y.PerformAction(ctx, action)
}

func (b *BrowserAdapter) CurrentURL() string {
	if !b.IsReady() {
		return ""
	}
	info, err := b.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (b *BrowserAdapter) IsReady() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.closed && b.page != nil
}

func (b *BrowserAdapter) SetTimeout(d time.Duration) {
	if d <= 0 {
		d = defaultTimeout
	}
	b.mu.Lock()
	b.timeout = d
	b.mu.Unlock()
}

func (b *BrowserAdapter) GetTimeout() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.timeout
}

func (b *BrowserAdapter) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	if b.a11y != nil {
		_ = b.a11y.Close()
	}
	if b.browser != nil {
		_ = b.browser.Close()
	}
	if b.launcher != nil {
		b.launcher.Kill()
		b.launcher.Cleanup()
	}
}
