package wiki

import (
	"encoding/json"
	"fmt"
	"strings"
)

// headingPrefix returns the markdown heading marker for a section level,
// shifted one level down so the page title keeps "#" to itself.
func headingPrefix(level int) string {
	n := level + 1
	if n > 6 {
		n = 6
	}
	return strings.Repeat("#", n)
}

// TopicList renders section titles with short content previews. Far more
// token-efficient than the full page, typically 5-10% of its size.
func TopicList(p *Page, previewChars int) string {
	parts := []string{fmt.Sprintf("# %s\n", p.Title)}

	for _, s := range p.Sections {
		parts = append(parts, fmt.Sprintf("\n%s %s", headingPrefix(s.Level), s.Title))
		if s.Content == "" {
			continue
		}
		preview := strings.TrimRight(firstRunes(s.Content, previewChars), " \t\n")
		if len(s.Content) > len(preview) {
			// Break at the last space for readability when it keeps most
			// of the preview budget.
			if sp := strings.LastIndex(preview, " "); sp > previewChars*6/10 {
				preview = preview[:sp]
			}
			preview += "…"
		}
		parts = append(parts, preview)
	}

	return strings.TrimSpace(strings.Join(parts, "\n"))
}

// structure is the JSON shape returned by read_structure.
type structure struct {
	Repo         string     `json:"repo"`
	Title        string     `json:"title"`
	Source       string     `json:"source"`
	Sections     []TOCEntry `json:"sections"`
	SectionCount int        `json:"section_count"`
}

// Structure renders the table of contents as indented JSON.
func Structure(p *Page) string {
	entries := make([]TOCEntry, 0, len(p.Sections))
	for _, s := range p.Sections {
		entries = append(entries, TOCEntry{Title: s.Title, Level: s.Level})
	}
	if len(entries) == 0 {
		entries = append(entries, p.TOC...)
	}

	data, err := json.MarshalIndent(structure{
		Repo:         p.Repo,
		Title:        p.Title,
		Source:       p.Source,
		Sections:     entries,
		SectionCount: len(entries),
	}, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// SectionContent renders a single section as markdown.
func SectionContent(s Section) string {
	if s.Content == "" {
		return fmt.Sprintf("%s %s", headingPrefix(s.Level), s.Title)
	}
	return fmt.Sprintf("%s %s\n\n%s", headingPrefix(s.Level), s.Title, s.Content)
}

// Paginated renders a window of the page's sections as markdown, with a
// continuation hint when more sections remain.
func Paginated(p *Page, offset, limit int) string {
	total := len(p.Sections)
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	window := p.Sections[offset:end]

	parts := []string{fmt.Sprintf("# %s\n", p.Title)}
	for _, s := range window {
		parts = append(parts, fmt.Sprintf("\n%s %s\n", headingPrefix(s.Level), s.Title))
		if s.Content != "" {
			parts = append(parts, s.Content)
		}
	}

	if end < total {
		parts = append(parts, fmt.Sprintf(
			"\n\n---\n*Showing sections %d–%d of %d. Call again with `offset=%d` to continue.*",
			offset+1, end, total, end))
	}

	return strings.TrimSpace(strings.Join(parts, "\n"))
}

// Truncate cuts data near maxChars at a line or word boundary, appending a
// truncation marker. Returns the text and whether it was cut. A maxChars
// of 0 disables truncation.
func Truncate(data string, maxChars int) (string, bool) {
	if maxChars == 0 || len(data) <= maxChars {
		return data, false
	}

	cut := firstRunes(data, maxChars)
	// Prefer the last newline, then the last space, when either keeps at
	// least 80% of the budget.
	if nl := strings.LastIndex(cut, "\n"); nl > maxChars*8/10 {
		cut = cut[:nl]
	} else if sp := strings.LastIndex(cut, " "); sp > maxChars*8/10 {
		cut = cut[:sp]
	}

	return strings.TrimRight(cut, " \t\n") + "\n\n... [truncated]", true
}

func firstRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	// Back off to a rune boundary.
	for n > 0 && s[n]&0xC0 == 0x80 {
		n--
	}
	return s[:n]
}
