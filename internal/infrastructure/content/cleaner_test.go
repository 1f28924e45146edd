package content

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanHTML(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		contains    []string
		notContains []string
	}{
		{
			name:        "removes script and style",
			input:       `<body><div id="main">Hello</div><script>alert("hi")</script><style>.x {}</style></body>`,
			contains:    []string{`id="main"`, "Hello"},
			notContains: []string{"<script", "<style"},
		},
		{
			name:        "removes comments",
			input:       `<body><!-- secret comment --><div>Text</div></body>`,
			contains:    []string{"Text"},
			notContains: []string{"secret comment"},
		},
		{
			name:        "filters attributes",
			input:       `<body><a href="https://example.com" class="link" id="x" data-x="1" onclick="go()" style="color:red" aria-label="Go">Go</a></body>`,
			contains:    []string{`href="https://example.com"`, `class="link"`, `id="x"`, `aria-label="Go"`},
			notContains: []string{"data-x", "onclick", "style="},
		},
		{
			name:        "removes nested iframes",
			input:       `<body><section><iframe src="/x"></iframe><p>kept</p></section></body>`,
			contains:    []string{"<p>kept</p>"},
			notContains: []string{"iframe"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := CleanHTML(tt.input, nil)
			for _, s := range tt.contains {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.notContains {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestCleanHTML_Truncates(t *testing.T) {
	input := "<body><p>" + strings.Repeat("x", 500) + "</p></body>"

	out := CleanHTML(input, &CleanConfig{MaxOutputSize: 100})

	assert.True(t, strings.HasSuffix(out, truncatedMarker))
	assert.Len(t, out, 100+len(truncatedMarker))
}

func TestVisibleText(t *testing.T) {
	input := `<html><head><title>T</title><script>var x = 1;</script></head><body>
<h1>Heading</h1>
<p>First   paragraph
 spans lines.</p>
<ul><li>one</li><li>two</li></ul>
<div>inline <b>bold</b> text</div>
</body></html>`

	got := VisibleText(input, 0)

	assert.Equal(t, "Heading\nFirst paragraph spans lines.\none\ntwo\ninline bold text", got)
}
