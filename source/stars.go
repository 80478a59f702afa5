package source

import (
	"strconv"
	"strings"
)

// ParseStars converts a human star count such as "209.9k", "1.2m" or
// "4,521" into an integer. Unparseable input yields zero.
func ParseStars(s string) int {
	s = strings.TrimSpace(strings.Trim(s, "★ "))
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0
	}

	multiplier := 1.0
	switch s[len(s)-1] {
	case 'k', 'K':
		multiplier = 1_000
		s = s[:len(s)-1]
	case 'm', 'M':
		multiplier = 1_000_000
		s = s[:len(s)-1]
	}

	n, err := strconv.ParseFloat(s, 64)
	if err != nil || n < 0 {
		return 0
	}
	return int(n * multiplier)
}

// FormatStars renders a star count with thousands separators,
// e.g. 209900 becomes "209,900".
func FormatStars(n int) string {
	s := strconv.Itoa(n)
	if n < 0 {
		return s
	}
	var sb strings.Builder
	for i, digit := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			sb.WriteByte(',')
		}
		sb.WriteRune(digit)
	}
	return sb.String()
}
