package source

import "testing"

func TestParseStars(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"209.9k", 209900},
		{"1.2m", 1200000},
		{"4,521", 4521},
		{"★ 68.2k", 68200},
		{"12", 12},
		{"", 0},
		{"abc", 0},
		{"-5", 0},
	}
	for _, tt := range tests {
		if got := ParseStars(tt.in); got != tt.want {
			t.Errorf("ParseStars(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestFormatStars(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{209900, "209,900"},
		{68200, "68,200"},
		{999, "999"},
		{1000, "1,000"},
		{0, "0"},
		{1234567, "1,234,567"},
	}
	for _, tt := range tests {
		if got := FormatStars(tt.in); got != tt.want {
			t.Errorf("FormatStars(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
