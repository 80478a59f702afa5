package fallback

import (
	"fmt"
	"strings"

	"github.com/cloudmeru/tinkywiki-mcp/source"
)

var displayNames = map[string]string{
	source.NameTinkyWiki: "TinkyWiki",
	source.NameDeepWiki:  "DeepWiki",
	source.NameGitHub:    "GitHub",
}

func displayName(name string) string {
	if d, ok := displayNames[name]; ok {
		return d
	}
	return name
}

// Banner renders the provenance blockquote prepended to every response,
// naming the serving source and any earlier tiers that lacked content.
func Banner(src string, missing []string) string {
	if len(missing) == 0 {
		return fmt.Sprintf("> **Source:** %s", displayName(src))
	}
	shown := make([]string, 0, len(missing))
	for _, m := range missing {
		shown = append(shown, displayName(m))
	}
	return fmt.Sprintf("> **Source:** %s (%s not indexed)", displayName(src), strings.Join(shown, ", "))
}

// Banner renders the provenance blockquote for this page.
func (r PageResult) Banner() string { return Banner(r.Source, r.Missing) }

// Banner renders the provenance blockquote for this answer.
func (r SearchResult) Banner() string { return Banner(r.Source, r.Missing) }
