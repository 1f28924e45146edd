package rod

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"a11y-agent/internal/domain/entity"
	"a11y-agent/internal/infrastructure/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, pages map[string]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestAdapter(t *testing.T) *BrowserAdapter {
	t.Helper()
	if testing.Short() {
		t.Skip("needs a browser")
	}
	cfg := DefaultConfig()
	cfg.Headless = true
	cfg.A11y.KeyDelayMin, cfg.A11y.KeyDelayMax = 0, 0

	adapter, err := NewBrowserAdapter(context.Background(), cfg, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(adapter.Close)
	return adapter
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Headless)
	assert.Equal(t, time.Duration(defaultSlowMotion), cfg.SlowMotion)
	assert.Equal(t, defaultTimeout, cfg.Timeout)
	assert.False(t, cfg.NoSandbox, "Should be secure by default")
	assert.False(t, cfg.DevTools)
	assert.False(t, cfg.DisableSecurityFeatures, "Should be secure by default")
	assert.True(t, cfg.Stealth)
	assert.Positive(t, cfg.A11y.ActionTimeout)
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"http", "http://example.com", false},
		{"https", "https://example.com/path?q=1", false},
		{"file", "file:///tmp/page.html", false},
		{"blank", "about:blank", false},
		{"Empty URL", "", true},
		{"Invalid scheme", "ftp://example.com", true},
		{"JavaScript URL", "javascript:alert(1)", true},
		{"other about page", "about:config", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateURL(tt.url)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidURL)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestBrowserAdapter_Navigate(t *testing.T) {
	server := serve(t, map[string]string{"/": BasicHTML})
	adapter := newTestAdapter(t)
	ctx := context.Background()

	require.NoError(t, adapter.Navigate(ctx, server.URL))
	assert.Equal(t, server.URL+"/", adapter.CurrentURL())

	content, err := adapter.GetPageContent(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Test Page", content.Title)
	assert.Contains(t, content.HTML, "Hello World")
}

func TestBrowserAdapter_Navigate_InvalidURL(t *testing.T) {
	adapter := newTestAdapter(t)

	err := adapter.Navigate(context.Background(), "javascript:alert(1)")
	assert.ErrorIs(t, err, ErrInvalidURL)
}

func TestBrowserAdapter_CombinedTreeAndAction(t *testing.T) {
	server := serve(t, map[string]string{"/": FormHTML, "/frame": FrameHTML})
	adapter := newTestAdapter(t)
	ctx := context.Background()

	require.NoError(t, adapter.Navigate(ctx, server.URL))

	tree, err := adapter.CombinedTree(ctx, "")
	require.NoError(t, err)
	assert.Contains(t, tree.Tree, "textbox: Username")
	assert.Contains(t, tree.Tree, "button: Inner Button")

	var inner entity.EncodedID
	for id, n := range tree.Nodes {
		if n.Name == "Inner Button" {
			inner = id
		}
	}
	require.NotEmpty(t, inner)
	assert.Equal(t, 1, inner.Ordinal())
	assert.True(t, strings.HasPrefix(tree.XPaths[inner], "/html[1]/body[1]/iframe[1]/"))

	err = adapter.PerformAction(ctx, entity.Action{Method: "click", Selector: entity.XPathPrefix + tree.XPaths[inner]})
	require.NoError(t, err)

	after, err := adapter.CombinedTree(ctx, "")
	require.NoError(t, err)
	assert.Contains(t, after.Tree, "Clicked!")
}

func TestBrowserAdapter_Scroll(t *testing.T) {
	server := serve(t, map[string]string{"/": ScrollableHTML})
	adapter := newTestAdapter(t)
	ctx := context.Background()
	require.NoError(t, adapter.Navigate(ctx, server.URL))

	for _, dir := range []string{"down", "up", "bottom", "top", " Down "} {
		assert.NoError(t, adapter.Scroll(ctx, dir), dir)
	}
	assert.Error(t, adapter.Scroll(ctx, "sideways"))
}

func TestBrowserAdapter_Screenshot(t *testing.T) {
	server := serve(t, map[string]string{"/": BasicHTML})
	adapter := newTestAdapter(t)
	ctx := context.Background()
	require.NoError(t, adapter.Navigate(ctx, server.URL))

	shot, err := adapter.Screenshot(ctx)
	require.NoError(t, err)

	assert.Equal(t, "jpeg", shot.Format)
	assert.NotEmpty(t, shot.Data)
	assert.LessOrEqual(t, shot.Width, maxScreenshotW)
	assert.Positive(t, shot.Height)
}

func TestBrowserAdapter_Timeout(t *testing.T) {
	adapter := newTestAdapter(t)

	adapter.SetTimeout(5 * time.Second)
	assert.Equal(t, 5*time.Second, adapter.GetTimeout())

	adapter.SetTimeout(0)
	assert.Equal(t, defaultTimeout, adapter.GetTimeout())
}

func TestBrowserAdapter_ClosedState(t *testing.T) {
	adapter := newTestAdapter(t)
	ctx := context.Background()

	assert.True(t, adapter.IsReady())
	adapter.Close()
	adapter.Close()

	assert.False(t, adapter.IsReady())
	assert.Empty(t, adapter.CurrentURL())
	assert.ErrorIs(t, adapter.Navigate(ctx, "https://example.com"), ErrBrowserClosed)
	_, err := adapter.CombinedTree(ctx, "")
	assert.ErrorIs(t, err, ErrBrowserClosed)
	assert.ErrorIs(t, adapter.PerformAction(ctx, entity.Action{Method: "click", Selector: "/html"}), ErrBrowserClosed)
}
