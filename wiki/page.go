// Package wiki defines the parsed documentation page model shared by all
// source adapters, plus the renderers that turn a page into tool output.
package wiki

import (
	"strings"

	"github.com/cloudmeru/tinkywiki-mcp/internal/dsa"
)

// Section is a single titled block of page content.
type Section struct {
	Title   string `json:"title"`
	Level   int    `json:"level"` // 1=h1, 2=h2, ...
	Content string `json:"content,omitempty"`
}

// TOCEntry is one row of a page's table of contents.
type TOCEntry struct {
	Title string `json:"title"`
	Level int    `json:"level"`
}

// Page is a parsed documentation page, regardless of which upstream
// produced it.
type Page struct {
	Repo     string // canonical owner/name
	URL      string
	Title    string
	Sections []Section
	TOC      []TOCEntry
	RawText  string
	Source   string // stamped by the orchestrator
}

// Empty reports whether the page carries no usable content.
func (p *Page) Empty() bool {
	return p == nil || (len(p.Sections) == 0 && strings.TrimSpace(p.RawText) == "")
}

// SectionByTitle finds a section by partial title. Exact matches win
// (case-insensitive), then title-prefix matches via the radix index, then
// a substring scan, matching the lookup order users expect when they
// abbreviate a title from read_structure.
func (p *Page) SectionByTitle(title string) (Section, bool) {
	needle := strings.ToLower(strings.TrimSpace(title))
	if needle == "" {
		return Section{}, false
	}

	idx := dsa.NewIndex[int]()
	for i, s := range p.Sections {
		key := strings.ToLower(strings.TrimSpace(s.Title))
		if _, taken := idx.Lookup(key); !taken {
			idx.Insert(key, i)
		}
	}

	if i, ok := idx.Lookup(needle); ok {
		return p.Sections[i], true
	}
	if i, ok := idx.FirstWithPrefix(needle); ok {
		return p.Sections[i], true
	}
	for _, s := range p.Sections {
		if strings.Contains(strings.ToLower(s.Title), needle) {
			return s, true
		}
	}
	return Section{}, false
}

// SectionTitles returns the titles of up to max sections, for error
// messages that list what is available.
func (p *Page) SectionTitles(max int) []string {
	titles := make([]string, 0, len(p.Sections))
	for _, s := range p.Sections {
		if len(titles) >= max {
			break
		}
		titles = append(titles, s.Title)
	}
	return titles
}
