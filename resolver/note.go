package resolver

import (
	"fmt"
	"strings"

	"github.com/cloudmeru/tinkywiki-mcp/source"
)

// maxOtherCandidates bounds the alternatives listed in a resolution note.
const maxOtherCandidates = 3

// Note renders the provenance blockquote for a keyword resolution, so
// the caller can see which repository was chosen and what else matched.
// Direct resolutions need no note and return "".
func Note(res Result) string {
	if res.Method == MethodDirect || res.Keyword == "" {
		return ""
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "> **Resolved:** keyword %q → **%s**", res.Keyword, res.Ref)
	if stars := starsOf(res); stars > 0 {
		fmt.Fprintf(&sb, " (%s★)", source.FormatStars(stars))
	}

	others := make([]string, 0, maxOtherCandidates)
	for _, c := range res.Candidates {
		if c.Ref.Equal(res.Ref) {
			continue
		}
		others = append(others, fmt.Sprintf("%s (%s★)", c.Ref, source.FormatStars(c.Stars)))
		if len(others) == maxOtherCandidates {
			break
		}
	}
	if len(others) > 0 {
		sb.WriteString("\n> Other candidates: ")
		sb.WriteString(strings.Join(others, ", "))
	}
	return sb.String()
}

func starsOf(res Result) int {
	for _, c := range res.Candidates {
		if c.Ref.Equal(res.Ref) {
			return c.Stars
		}
	}
	return 0
}
