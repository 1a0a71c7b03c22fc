package service

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultDeniedTables is the default denylist.
var DefaultDeniedTables = []string{"users"}

// Denylist rejects queries that mention a protected identifier as a
// whole word, ignoring case the way a JavaScript /i regexp without the
// u flag does.
//
// Matching is textual: quoting or comments inside the name get past it,
// and "_" counts as a word character, so "users_archive" is allowed.
// Letters fold to their upper case unless that would turn a non-ASCII
// letter into an ASCII one, so "ä" matches "Ä" while "ſ" (U+017F) and
// the Kelvin sign do not match "s" or "k".
type Denylist struct {
	words   []string
	pattern *regexp.Regexp
}

// NewDenylist builds a denylist for words. Blank words are ignored;
// an empty list blocks nothing.
func NewDenylist(words []string) *Denylist {
	d := &Denylist{}
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		d.words = append(d.words, w)
		quoted = append(quoted, regexp.QuoteMeta(foldCase(w)))
	}
	if len(quoted) > 0 {
		d.pattern = regexp.MustCompile(`(^|\W)(` + strings.Join(quoted, "|") + `)(\W|$)`)
	}
	return d
}

// Blocks reports whether query mentions a denied word.
func (d *Denylist) Blocks(query string) bool {
	if d == nil || d.pattern == nil {
		return false
	}
	return d.pattern.MatchString(foldCase(query))
}

func foldCase(s string) string {
	return strings.Map(func(r rune) rune {
		u := unicode.ToUpper(r)
		if r >= utf8.RuneSelf && u < utf8.RuneSelf {
			return r
		}
		return u
	}, s)
}
