package source

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/cloudmeru/tinkywiki-mcp/identity"
	"github.com/cloudmeru/tinkywiki-mcp/wiki"
)

// skippedElements never contribute text to a parsed page.
var skippedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"svg":      true,
	"nav":      true,
	"footer":   true,
}

// blockElements terminate a text run with a newline.
var blockElements = map[string]bool{
	"p": true, "div": true, "li": true, "ul": true, "ol": true,
	"pre": true, "blockquote": true, "table": true, "tr": true,
	"section": true, "article": true, "br": true,
}

// parsePage converts an HTML document into a structured wiki page.
// Headings h1-h6 delimit sections; text before the first heading becomes
// an introduction section when non-empty.
func parsePage(ref identity.RepoRef, pageURL, sourceName string, body []byte) (*wiki.Page, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	p := &pageBuilder{}
	p.walk(doc)
	p.flush()

	title := strings.TrimSpace(p.title)
	if title == "" {
		title = ref.String()
	}

	page := &wiki.Page{
		Repo:     ref.String(),
		URL:      pageURL,
		Title:    title,
		Sections: p.sections,
		TOC:      p.toc,
		RawText:  strings.TrimSpace(p.raw.String()),
		Source:   sourceName,
	}
	return page, nil
}

type pageBuilder struct {
	title    string
	sections []wiki.Section
	toc      []wiki.TOCEntry
	raw      strings.Builder

	current *wiki.Section
	buf     strings.Builder
}

func (p *pageBuilder) walk(n *html.Node) {
	if n.Type == html.ElementNode {
		if skippedElements[n.Data] {
			return
		}
		if n.Data == "title" && p.title == "" {
			p.title = textContent(n)
			return
		}
		if level := headingLevel(n.Data); level > 0 {
			p.flush()
			title := strings.TrimSpace(textContent(n))
			if title != "" {
				if p.title == "" && level == 1 {
					p.title = title
				}
				p.current = &wiki.Section{Title: title, Level: level}
				p.toc = append(p.toc, wiki.TOCEntry{Title: title, Level: level})
			}
			return
		}
	}

	if n.Type == html.TextNode {
		text := n.Data
		if strings.TrimSpace(text) != "" {
			p.buf.WriteString(text)
			p.raw.WriteString(text)
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		p.walk(c)
	}

	if n.Type == html.ElementNode && blockElements[n.Data] {
		p.buf.WriteString("\n")
		p.raw.WriteString("\n")
	}
}

// flush closes the current text run into a section. Text collected
// before any heading becomes an introduction section.
func (p *pageBuilder) flush() {
	content := strings.TrimSpace(collapseBlankLines(p.buf.String()))
	p.buf.Reset()

	if p.current != nil {
		p.current.Content = content
		p.sections = append(p.sections, *p.current)
		p.current = nil
		return
	}
	if content != "" {
		p.sections = append(p.sections, wiki.Section{Title: "Introduction", Level: 1, Content: content})
		p.toc = append(p.toc, wiki.TOCEntry{Title: "Introduction", Level: 1})
	}
}

func headingLevel(tag string) int {
	if len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6' {
		return int(tag[1] - '0')
	}
	return 0
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n)
	return sb.String()
}

type anchor struct {
	href string
	text string
}

// extractLinks returns every anchor in the document with its href and
// flattened text content.
func extractLinks(body []byte) []anchor {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	var links []anchor
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key == "href" && attr.Val != "" {
					links = append(links, anchor{href: attr.Val, text: strings.TrimSpace(textContent(n))})
					break
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(doc)
	return links
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, trimmed)
	}
	return strings.Join(out, "\n")
}
