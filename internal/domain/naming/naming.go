// Package naming derives display names from participant emails.
package naming

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DisplayName turns "john.doe@x.com" into "Doe John": the local part is split
// on dots, each segment gets an upper-cased first letter, and the segments are
// joined in reverse order. Strings without "@" are treated as all local part.
func DisplayName(email string) string {
	local, _, _ := strings.Cut(email, "@")
	segments := strings.Split(local, ".")

	out := make([]string, len(segments))
	for i, seg := range segments {
		out[len(segments)-1-i] = capitalize(seg)
	}
	return strings.Join(out, " ")
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
