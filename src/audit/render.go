package audit

import (
	"bytes"
	"fmt"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
)

var htmlPolicy = bluemonday.UGCPolicy()

// RenderMarkdown converts model output to HTML that is safe to inject in the page.
func RenderMarkdown(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return string(htmlPolicy.SanitizeBytes(buf.Bytes())), nil
}
