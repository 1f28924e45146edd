package output

import (
	"context"

	"a11y-agent/internal/domain/entity"
)

type BrowserPort interface {
	Navigate(ctx context.Context, url string) error
	Scroll(ctx context.Context, direction string) error

	GetPageContent(ctx context.Context) (*entity.PageContent, error)
	Screenshot(ctx context.Context) (*entity.Screenshot, error)

	CurrentURL() string
	Close()
}

// AccessibilityPort exposes the stitched accessibility tree of the current
// page and acts on elements by absolute XPath.
type AccessibilityPort interface {
	CombinedTree(ctx context.Context, focusXPath string) (*entity.CombinedTree, error)
	PerformAction(ctx context.Context, action entity.Action) error
}

type ContentExtractorPort interface {
	Extract(ctx context.Context, html, pageURL string) (*entity.ReadableText, error)
}
