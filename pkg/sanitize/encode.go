package sanitize

import "strings"

// EncodeType names the context a string is embedded in. There is no
// automatic detection.
type EncodeType string

const (
	EncodeHTML       EncodeType = "html"
	EncodeAttribute  EncodeType = "attribute"
	EncodeJavaScript EncodeType = "javascript"
	EncodeURL        EncodeType = "url"
)

var (
	htmlEncoder = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&#039;",
	)
	attributeEncoder = strings.NewReplacer(
		`"`, "&quot;",
		"'", "&#39;",
	)
	javascriptEncoder = strings.NewReplacer(
		`\`, `\\`,
		`"`, `\"`,
		"'", `\'`,
		"\n", `\n`,
		"\r", `\r`,
	)
)

// EncodeOutput encodes text for the given context. Unknown types encode as HTML.
func EncodeOutput(text string, typ EncodeType) string {
	if text == "" {
		return ""
	}
	switch typ {
	case EncodeAttribute:
		return attributeEncoder.Replace(text)
	case EncodeJavaScript:
		return javascriptEncoder.Replace(text)
	case EncodeURL:
		return encodeURIComponent(text)
	default:
		return htmlEncoder.Replace(text)
	}
}

// encodeURIComponent percent-encodes every byte outside A-Z a-z 0-9 - _ . ! ~ * ' ( ).
// url.QueryEscape and url.PathEscape each use a different reserved set.
func encodeURIComponent(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s) * 3)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if uriUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func uriUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return true
	}
	return false
}
