package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	inputpkg "a11y-agent/internal/application/port/input"
	"a11y-agent/internal/application/port/output"
	"a11y-agent/internal/domain/entity"

	"github.com/google/uuid"
)

var (
	_ output.ToolPort = (*NavigateTool)(nil)
	_ output.ToolPort = (*ObserveTool)(nil)
	_ output.ToolPort = (*ActTool)(nil)
	_ output.ToolPort = (*PerformTool)(nil)
	_ output.ToolPort = (*TreeTool)(nil)
	_ output.ToolPort = (*ExtractTool)(nil)
	_ output.ToolPort = (*ScrollTool)(nil)
	_ output.ToolPort = (*ScreenshotTool)(nil)
)

// ElementPerformer runs a method on an element id of a known tree.
type ElementPerformer interface {
	PerformByID(ctx context.Context, tree *entity.CombinedTree, id entity.EncodedID, method string, args []string) error
}

// TreeCache holds the last tree shown to the model so ids it read can be
// acted on without rebuilding the tree.
type TreeCache struct {
	mu   sync.Mutex
	tree *entity.CombinedTree
}

func (c *TreeCache) Store(tree *entity.CombinedTree) {
	c.mu.Lock()
	c.tree = tree
	c.mu.Unlock()
}

func (c *TreeCache) Load() *entity.CombinedTree {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tree
}

func (c *TreeCache) Reset() {
	c.Store(nil)
}

func decodeArgs(args string, v any) error {
	if strings.TrimSpace(args) == "" {
		args = "{}"
	}
	if err := json.Unmarshal([]byte(args), v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

type NavigateTool struct {
	browser output.BrowserPort
	cache   *TreeCache
	logger  output.LoggerPort
}

func NewNavigateTool(browser output.BrowserPort, cache *TreeCache, logger output.LoggerPort) *NavigateTool {
	return &NavigateTool{browser: browser, cache: cache, logger: logger}
}

func (t *NavigateTool) Name() entity.ToolName { return entity.ToolBrowserNavigate }
func (t *NavigateTool) Description() string   { return "Navigates the browser to a URL" }
func (t *NavigateTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"url": map[string]interface{}{
				"type":        "string",
				"description": "URL to navigate to",
			},
		},
		"required": []string{"url"},
	}
}

func (t *NavigateTool) Execute(ctx context.Context, args string) (string, error) {
	var input struct {
		URL string `json:"url"`
	}
	if err := decodeArgs(args, &input); err != nil {
		return "", err
	}
	if err := t.browser.Navigate(ctx, input.URL); err != nil {
		return "", err
	}
	t.cache.Reset()
	return fmt.Sprintf("Navigated to %s", t.browser.CurrentURL()), nil
}

type ObserveTool struct {
	observer inputpkg.Observer
	logger   output.LoggerPort
}

func NewObserveTool(observer inputpkg.Observer, logger output.LoggerPort) *ObserveTool {
	return &ObserveTool{observer: observer, logger: logger}
}

func (t *ObserveTool) Name() entity.ToolName { return entity.ToolBrowserObserve }
func (t *ObserveTool) Description() string {
	return "Finds elements matching a plain-language instruction, including elements inside iframes. Returns element ids, selectors and, when requested, a suggested method"
}
func (t *ObserveTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"instruction": map[string]interface{}{
				"type":        "string",
				"description": "What to look for, e.g. 'the search box'",
			},
			"focus_xpath": map[string]interface{}{
				"type":        "string",
				"description": "Optional absolute XPath that limits the search to a subtree",
			},
			"return_action": map[string]interface{}{
				"type":        "boolean",
				"description": "Also suggest a method and arguments for each element",
			},
		},
		"required": []string{"instruction"},
	}
}

func (t *ObserveTool) Execute(ctx context.Context, args string) (string, error) {
	var input struct {
		Instruction  string `json:"instruction"`
		FocusXPath   string `json:"focus_xpath"`
		ReturnAction bool   `json:"return_action"`
	}
	if err := decodeArgs(args, &input); err != nil {
		return "", err
	}
	elements, err := t.observer.Observe(ctx, inputpkg.ObserveRequest{
		Instruction:  input.Instruction,
		FocusXPath:   input.FocusXPath,
		ReturnAction: input.ReturnAction,
	})
	if err != nil {
		return "", err
	}
	if len(elements) == 0 {
		return "No matching elements", nil
	}
	data, err := json.MarshalIndent(elements, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

type ActTool struct {
	actor  inputpkg.Actor
	cache  *TreeCache
	logger output.LoggerPort
}

func NewActTool(actor inputpkg.Actor, cache *TreeCache, logger output.LoggerPort) *ActTool {
	return &ActTool{actor: actor, cache: cache, logger: logger}
}

func (t *ActTool) Name() entity.ToolName { return entity.ToolBrowserAct }
func (t *ActTool) Description() string {
	return "Performs one plain-language action on the page, e.g. 'click the login button' or 'type hello into the search box'"
}
func (t *ActTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"instruction": map[string]interface{}{
				"type":        "string",
				"description": "The action to perform",
			},
			"focus_xpath": map[string]interface{}{
				"type":        "string",
				"description": "Optional absolute XPath that limits the search to a subtree",
			},
		},
		"required": []string{"instruction"},
	}
}

func (t *ActTool) Execute(ctx context.Context, args string) (string, error) {
	var input struct {
		Instruction string `json:"instruction"`
		FocusXPath  string `json:"focus_xpath"`
	}
	if err := decodeArgs(args, &input); err != nil {
		return "", err
	}
	res, err := t.actor.Act(ctx, inputpkg.ActRequest{
		Instruction: input.Instruction,
		FocusXPath:  input.FocusXPath,
	})
	if err != nil {
		return "", err
	}
	if !res.Success {
		return "Action failed: " + res.Message, nil
	}
	t.cache.Reset()
	return res.Message, nil
}

type PerformTool struct {
	performer ElementPerformer
	page      output.AccessibilityPort
	cache     *TreeCache
	logger    output.LoggerPort
}

func NewPerformTool(performer ElementPerformer, page output.AccessibilityPort, cache *TreeCache, logger output.LoggerPort) *PerformTool {
	return &PerformTool{performer: performer, page: page, cache: cache, logger: logger}
}

func (t *PerformTool) Name() entity.ToolName { return entity.ToolBrowserPerform }
func (t *PerformTool) Description() string {
	return "Runs a method (click, fill, type, press, selectOption, scrollIntoView...) on an element id taken from get_tree or observe"
}
func (t *PerformTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"element_id": map[string]interface{}{
				"type":        "string",
				"description": "Element id such as 0-12",
			},
			"method": map[string]interface{}{
				"type":        "string",
				"description": "Method to run",
			},
			"arguments": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "string"},
				"description": "Method arguments, e.g. the text for fill",
			},
		},
		"required": []string{"element_id", "method"},
	}
}

func (t *PerformTool) Execute(ctx context.Context, args string) (string, error) {
	var input struct {
		ElementID string   `json:"element_id"`
		Method    string   `json:"method"`
		Arguments []string `json:"arguments"`
	}
	if err := decodeArgs(args, &input); err != nil {
		return "", err
	}
	id := entity.EncodedID(strings.Trim(strings.TrimSpace(input.ElementID), "[]"))

	tree := t.cache.Load()
	if _, ok := tree.XPath(id); !ok {
		fresh, err := t.page.CombinedTree(ctx, "")
		if err != nil {
			return "", err
		}
		tree = fresh
	}

	if err := t.performer.PerformByID(ctx, tree, id, input.Method, input.Arguments); err != nil {
		return "", err
	}
	t.cache.Reset()
	return fmt.Sprintf("%s performed on %s", input.Method, id), nil
}

type TreeTool struct {
	page   output.AccessibilityPort
	cache  *TreeCache
	logger output.LoggerPort
}

func NewTreeTool(page output.AccessibilityPort, cache *TreeCache, logger output.LoggerPort) *TreeTool {
	return &TreeTool{page: page, cache: cache, logger: logger}
}

func (t *TreeTool) Name() entity.ToolName { return entity.ToolBrowserTree }
func (t *TreeTool) Description() string {
	return "Returns the accessibility tree of the page and all its iframes as '[id] role: name' lines"
}
func (t *TreeTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"focus_xpath": map[string]interface{}{
				"type":        "string",
				"description": "Optional absolute XPath; only that subtree is returned",
			},
		},
		"required": []string{},
	}
}

func (t *TreeTool) Execute(ctx context.Context, args string) (string, error) {
	var input struct {
		FocusXPath string `json:"focus_xpath"`
	}
	if err := decodeArgs(args, &input); err != nil {
		return "", err
	}
	tree, err := t.page.CombinedTree(ctx, input.FocusXPath)
	if err != nil {
		return "", err
	}
	t.cache.Store(tree)
	if tree.Tree == "" {
		return "The accessibility tree is empty", nil
	}
	return tree.Tree, nil
}

type ExtractTool struct {
	browser   output.BrowserPort
	extractor output.ContentExtractorPort
	logger    output.LoggerPort
}

func NewExtractTool(browser output.BrowserPort, extractor output.ContentExtractorPort, logger output.LoggerPort) *ExtractTool {
	return &ExtractTool{browser: browser, extractor: extractor, logger: logger}
}

func (t *ExtractTool) Name() entity.ToolName { return entity.ToolBrowserExtract }
func (t *ExtractTool) Description() string   { return "Extracts the readable text of the current page" }
func (t *ExtractTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
		"required":   []string{},
	}
}

func (t *ExtractTool) Execute(ctx context.Context, args string) (string, error) {
	content, err := t.browser.GetPageContent(ctx)
	if err != nil {
		return "", err
	}
	text, err := t.extractor.Extract(ctx, content.HTML, content.URL)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	title := text.Title
	if title == "" {
		title = content.Title
	}
	if title != "" {
		fmt.Fprintf(&b, "# %s\n\n", title)
	}
	if text.Excerpt != "" && !strings.HasPrefix(text.Text, text.Excerpt) {
		fmt.Fprintf(&b, "> %s\n\n", text.Excerpt)
	}
	b.WriteString(text.Text)
	return b.String(), nil
}

type ScrollTool struct {
	browser output.BrowserPort
	cache   *TreeCache
	logger  output.LoggerPort
}

func NewScrollTool(browser output.BrowserPort, cache *TreeCache, logger output.LoggerPort) *ScrollTool {
	return &ScrollTool{browser: browser, cache: cache, logger: logger}
}

func (t *ScrollTool) Name() entity.ToolName { return entity.ToolBrowserScroll }
func (t *ScrollTool) Description() string   { return "Scrolls the page in a direction" }
func (t *ScrollTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"direction": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"up", "down", "top", "bottom"},
				"description": "Scroll direction",
			},
		},
		"required": []string{"direction"},
	}
}

func (t *ScrollTool) Execute(ctx context.Context, args string) (string, error) {
	var input struct {
		Direction string `json:"direction"`
	}
	if err := decodeArgs(args, &input); err != nil {
		return "", err
	}
	if err := t.browser.Scroll(ctx, input.Direction); err != nil {
		return "", err
	}
	t.cache.Reset()
	return fmt.Sprintf("Scrolled %s", input.Direction), nil
}

// ScreenshotTool saves a JPEG of the viewport and reports where it went.
type ScreenshotTool struct {
	browser output.BrowserPort
	dir     string
	logger  output.LoggerPort
}

func NewScreenshotTool(browser output.BrowserPort, dir string, logger output.LoggerPort) *ScreenshotTool {
	if dir == "" {
		dir = os.TempDir()
	}
	return &ScreenshotTool{browser: browser, dir: dir, logger: logger}
}

func (t *ScreenshotTool) Name() entity.ToolName { return entity.ToolBrowserScreenshot }
func (t *ScreenshotTool) Description() string   { return "Takes a screenshot of the page and saves it to disk" }
func (t *ScreenshotTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
		"required":   []string{},
	}
}

func (t *ScreenshotTool) Execute(ctx context.Context, args string) (string, error) {
	shot, err := t.browser.Screenshot(ctx)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(t.dir, 0755); err != nil {
		return "", fmt.Errorf("create screenshot dir: %w", err)
	}
	path := filepath.Join(t.dir, fmt.Sprintf("screenshot_%s.%s", uuid.NewString(), shot.Format))
	if err := os.WriteFile(path, shot.Data, 0644); err != nil {
		return "", fmt.Errorf("save screenshot: %w", err)
	}
	t.logger.Info("Screenshot saved", "path", path)
	return fmt.Sprintf("Screenshot saved to %s (%dx%d %s)", path, shot.Width, shot.Height, shot.Format), nil
}
