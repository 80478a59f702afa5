package identity

import "testing"

func TestClassify(t *testing.T) {
	cases := []struct {
		raw  string
		want Kind
	}{
		{"https://github.com/microsoft/vscode", KindURL},
		{"http://gitlab.com/owner/repo", KindURL},
		{"https://github.com/microsoft/vscode/tree/main", KindURL},
		{"microsoft/vscode", KindOwnerName},
		{"owner.dot/repo-name", KindOwnerName},
		{"vue", KindKeyword},
		{"socket.io", KindKeyword},
		{"repo-name", KindKeyword},
		{"", KindInvalid},
		{"   ", KindInvalid},
		{"https://example.com/owner/repo", KindInvalid},
		{"a/b/c", KindInvalid},
		{"!!bad", KindInvalid},
	}
	for _, tc := range cases {
		if got := Classify(tc.raw); got != tc.want {
			t.Errorf("Classify(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}

func TestParseOwnerName(t *testing.T) {
	ref, ok := Parse("microsoft/vscode")
	if !ok {
		t.Fatal("Parse failed")
	}
	if ref.Owner != "microsoft" || ref.Name != "vscode" || ref.Host != DefaultHost {
		t.Errorf("unexpected ref: %+v", ref)
	}
	if ref.String() != "microsoft/vscode" {
		t.Errorf("unexpected canonical form: %q", ref.String())
	}
	if ref.URL() != "https://github.com/microsoft/vscode" {
		t.Errorf("unexpected URL: %q", ref.URL())
	}
}

func TestParseURL(t *testing.T) {
	ref, ok := Parse("https://github.com/facebook/react/tree/main/packages")
	if !ok {
		t.Fatal("Parse failed")
	}
	if ref.Owner != "facebook" || ref.Name != "react" || ref.Host != "github.com" {
		t.Errorf("unexpected ref: %+v", ref)
	}
}

func TestParseKeywordFails(t *testing.T) {
	if _, ok := Parse("vue"); ok {
		t.Error("Parse should not accept a bare keyword")
	}
}

func TestEqualCaseInsensitive(t *testing.T) {
	a := RepoRef{Host: "GitHub.com", Owner: "Microsoft", Name: "VSCode"}
	b := RepoRef{Host: "github.com", Owner: "microsoft", Name: "vscode"}
	if !a.Equal(b) {
		t.Error("expected case-insensitive equality")
	}
	c := NewRef("microsoft", "vscode")
	if !b.Equal(c) {
		t.Error("empty host should default to github.com for equality")
	}
	d := NewRef("microsoft", "typescript")
	if a.Equal(d) {
		t.Error("different repos reported equal")
	}
}

func TestContentHashDeterministic(t *testing.T) {
	h1 := ContentHash("some wiki content")
	h2 := ContentHash("some wiki content")
	if h1 != h2 {
		t.Errorf("hash not deterministic: %q vs %q", h1, h2)
	}
	if len(h1) != 16 {
		t.Errorf("expected 16-char hash, got %d", len(h1))
	}
	if h1 == ContentHash("other content") {
		t.Error("different content produced identical hash")
	}
}

func TestIdempotencyKey(t *testing.T) {
	ref := NewRef("pallets", "flask")
	k1 := IdempotencyKey(ref, "read_contents", "Quickstart", "abcd1234")
	k2 := IdempotencyKey(ref, "read_contents", "Quickstart", "abcd1234")
	if k1 != k2 {
		t.Error("idempotency key not deterministic")
	}
	if k1 == IdempotencyKey(ref, "list_topics", "Quickstart", "abcd1234") {
		t.Error("operation should distinguish idempotency keys")
	}
	if k1 == IdempotencyKey(ref, "read_contents", "Deployment", "abcd1234") {
		t.Error("section should distinguish idempotency keys")
	}
	if k1 == IdempotencyKey(ref, "read_contents", "Quickstart", "ffff0000") {
		t.Error("content hash should distinguish idempotency keys")
	}
}
