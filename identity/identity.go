// Package identity defines repository identities and the classification of
// raw user-supplied references.
//
// Information Hiding:
// - Reference-format regexes hidden behind Classify/Parse
// - Hash construction details hidden behind ContentHash/IdempotencyKey
package identity

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultHost is assumed when a reference carries no host of its own.
const DefaultHost = "github.com"

// RepoRef is a concrete repository identity. Immutable once constructed;
// two refs are equal iff host, owner, and name match case-insensitively.
type RepoRef struct {
	Host  string
	Owner string
	Name  string
}

// NewRef builds a RepoRef on the default host.
func NewRef(owner, name string) RepoRef {
	return RepoRef{Host: DefaultHost, Owner: owner, Name: name}
}

// String returns the canonical owner/name form.
func (r RepoRef) String() string {
	return r.Owner + "/" + r.Name
}

// URL returns the full repository URL.
func (r RepoRef) URL() string {
	host := r.Host
	if host == "" {
		host = DefaultHost
	}
	return fmt.Sprintf("https://%s/%s/%s", host, r.Owner, r.Name)
}

// Equal reports whether two identities refer to the same repository.
func (r RepoRef) Equal(other RepoRef) bool {
	return strings.EqualFold(hostOrDefault(r.Host), hostOrDefault(other.Host)) &&
		strings.EqualFold(r.Owner, other.Owner) &&
		strings.EqualFold(r.Name, other.Name)
}

func (r RepoRef) IsZero() bool {
	return r.Owner == "" && r.Name == ""
}

func hostOrDefault(host string) string {
	if host == "" {
		return DefaultHost
	}
	return host
}

// Kind classifies a raw reference string.
type Kind int

const (
	KindInvalid Kind = iota
	KindURL          // https://github.com/owner/name
	KindOwnerName    // owner/name
	KindKeyword      // bare product keyword, e.g. "vue"
)

var (
	urlPattern       = regexp.MustCompile(`^https?://(github\.com|gitlab\.com|bitbucket\.org)/[\w.\-]+/[\w.\-]+(/.*)?$`)
	ownerNamePattern = regexp.MustCompile(`^[\w.\-]+/[\w.\-]+$`)
	keywordPattern   = regexp.MustCompile(`^[\w][\w.\-]*$`)
)

// Classify determines how a raw reference should be handled. Evaluated once
// at the facade boundary; adapters only ever see concrete RepoRefs.
func Classify(raw string) Kind {
	v := strings.TrimSpace(raw)
	switch {
	case v == "":
		return KindInvalid
	case strings.HasPrefix(v, "http://"), strings.HasPrefix(v, "https://"):
		if urlPattern.MatchString(v) {
			return KindURL
		}
		return KindInvalid
	case ownerNamePattern.MatchString(v):
		return KindOwnerName
	case keywordPattern.MatchString(v):
		return KindKeyword
	}
	return KindInvalid
}

// Parse converts a fully-qualified reference (URL or owner/name) to a
// RepoRef. It does not resolve keywords; Classify first.
func Parse(raw string) (RepoRef, bool) {
	v := strings.TrimSpace(raw)
	switch Classify(v) {
	case KindOwnerName:
		parts := strings.SplitN(v, "/", 2)
		return RepoRef{Host: DefaultHost, Owner: parts[0], Name: parts[1]}, true
	case KindURL:
		v = strings.TrimPrefix(v, "https://")
		v = strings.TrimPrefix(v, "http://")
		parts := strings.Split(strings.Trim(v, "/"), "/")
		if len(parts) < 3 {
			return RepoRef{}, false
		}
		return RepoRef{Host: parts[0], Owner: parts[1], Name: parts[2]}, true
	}
	return RepoRef{}, false
}
