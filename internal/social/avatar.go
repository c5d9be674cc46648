package social

import (
	"fmt"
	"hash/fnv"
	"html"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"
)

// AvatarURL is the default profile image of a new account: an initials avatar
// served by the local HTTP surface.
func AvatarURL(publicURL, name string) string {
	return strings.TrimRight(publicURL, "/") + "/avatars/initials?name=" + url.QueryEscape(name)
}

// Initials returns up to two upper-case initials of name.
func Initials(name string) string {
	var out []rune
	for _, word := range strings.Fields(name) {
		r, _ := utf8.DecodeRuneInString(word)
		if r == utf8.RuneError {
			continue
		}
		out = append(out, unicode.ToUpper(r))
		if len(out) == 2 {
			break
		}
	}
	return string(out)
}

var avatarPalette = []string{"#877EFF", "#FF5A5A", "#FFB620", "#2D8CF0", "#19BE6B", "#E46CBB"}

// InitialsSVG renders the initials avatar. The background color is stable per name.
func InitialsSVG(name string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	color := avatarPalette[h.Sum32()%uint32(len(avatarPalette))]

	return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="128" height="128" viewBox="0 0 128 128">`+
		`<rect width="128" height="128" fill="%s"/>`+
		`<text x="50%%" y="50%%" dy=".35em" text-anchor="middle" font-family="sans-serif" font-size="52" fill="#FFFFFF">%s</text>`+
		`</svg>`, color, html.EscapeString(Initials(name)))
}
