package exporters

import (
	"fmt"
	"html"
	"strings"
)

// renderHTML wraps markdown content in a minimal styled HTML document.
// The corpus has no Go markdown-rendering library (the Python original
// used the `markdown` package, which has no Go ecosystem equivalent in
// the example pack), so this is a deliberate best-effort line-based
// conversion rather than a full CommonMark implementation: headings,
// bullet lines and paragraphs, matching what the original's fallback
// path does when its own markdown renderer is unavailable.
func renderHTML(title, content string) string {
	var body strings.Builder
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		switch {
		case strings.HasPrefix(trimmed, "### "):
			fmt.Fprintf(&body, "<h3>%s</h3>\n", html.EscapeString(trimmed[4:]))
		case strings.HasPrefix(trimmed, "## "):
			fmt.Fprintf(&body, "<h2>%s</h2>\n", html.EscapeString(trimmed[3:]))
		case strings.HasPrefix(trimmed, "# "):
			fmt.Fprintf(&body, "<h1>%s</h1>\n", html.EscapeString(trimmed[2:]))
		case strings.HasPrefix(trimmed, "- "), strings.HasPrefix(trimmed, "* "):
			fmt.Fprintf(&body, "<li>%s</li>\n", html.EscapeString(trimmed[2:]))
		default:
			fmt.Fprintf(&body, "<p>%s</p>\n", html.EscapeString(trimmed))
		}
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 800px; margin: 40px auto; padding: 0 20px; line-height: 1.6; }
h1, h2, h3 { color: #222; }
</style>
</head>
<body>
<h1>%s</h1>
%s</body>
</html>`, html.EscapeString(title), html.EscapeString(title), body.String())
}

// notionBlock is a minimal Notion API block object.
type notionBlock struct {
	Object    string         `json:"object"`
	Type      string         `json:"type"`
	Heading1  *notionRichText `json:"heading_1,omitempty"`
	Heading2  *notionRichText `json:"heading_2,omitempty"`
	Heading3  *notionRichText `json:"heading_3,omitempty"`
	Paragraph *notionRichText `json:"paragraph,omitempty"`
	Bulleted  *notionRichText `json:"bulleted_list_item,omitempty"`
}

type notionRichText struct {
	RichText []notionText `json:"rich_text"`
}

type notionText struct {
	Type string           `json:"type"`
	Text notionTextContent `json:"text"`
}

type notionTextContent struct {
	Content string `json:"content"`
}

// markdownToNotionBlocks converts markdown content to Notion block
// objects, mirroring notion.py's _markdown_to_notion_blocks: one block
// per non-empty line, with heading/bullet detection.
func markdownToNotionBlocks(content string) []notionBlock {
	var blocks []notionBlock
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimRight(line, " \t")
		stripped := strings.TrimSpace(trimmed)
		if stripped == "" {
			continue
		}

		rt := func(text string) *notionRichText {
			return &notionRichText{RichText: []notionText{{Type: "text", Text: notionTextContent{Content: text}}}}
		}

		switch {
		case strings.HasPrefix(stripped, "### "):
			blocks = append(blocks, notionBlock{Object: "block", Type: "heading_3", Heading3: rt(stripped[4:])})
		case strings.HasPrefix(stripped, "## "):
			blocks = append(blocks, notionBlock{Object: "block", Type: "heading_2", Heading2: rt(stripped[3:])})
		case strings.HasPrefix(stripped, "# "):
			blocks = append(blocks, notionBlock{Object: "block", Type: "heading_1", Heading1: rt(stripped[2:])})
		case strings.HasPrefix(stripped, "- "), strings.HasPrefix(stripped, "* "):
			blocks = append(blocks, notionBlock{Object: "block", Type: "bulleted_list_item", Bulleted: rt(stripped[2:])})
		default:
			blocks = append(blocks, notionBlock{Object: "block", Type: "paragraph", Paragraph: rt(stripped)})
		}
	}
	return blocks
}
