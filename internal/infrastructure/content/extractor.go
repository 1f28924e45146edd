package content

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"a11y-agent/internal/application/port/output"
	"a11y-agent/internal/domain/entity"

	"github.com/go-shiori/go-readability"
)

var _ output.ContentExtractorPort = (*Extractor)(nil)

const defaultMaxText = 20_000

// Extractor pulls the readable article text out of a page, falling back to
// the plain visible text when readability finds nothing.
type Extractor struct {
	logger  output.LoggerPort
	maxText int
}

func NewExtractor(logger output.LoggerPort, maxText int) *Extractor {
	if maxText <= 0 {
		maxText = defaultMaxText
	}
	return &Extractor{logger: logger, maxText: maxText}
}

func (e *Extractor) Extract(ctx context.Context, rawHTML, pageURL string) (*entity.ReadableText, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(rawHTML) == "" {
		return nil, fmt.Errorf("empty document")
	}

	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), parsedURL)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		return &entity.ReadableText{
			Title:   article.Title,
			Text:    truncate(strings.TrimSpace(article.TextContent), e.maxText),
			Excerpt: article.Excerpt,
		}, nil
	}
	if err != nil {
		e.logger.Warn("Readability failed, using visible text", "url", pageURL, "error", err)
	}

	return &entity.ReadableText{
		Text: VisibleText(rawHTML, e.maxText),
	}, nil
}
