package sanitize

import (
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Level selects how aggressively markup is removed.
type Level string

const (
	// LevelStrict leaves plain text only.
	LevelStrict Level = "strict"
	// LevelModerate keeps the allow-listed formatting tags.
	LevelModerate Level = "moderate"
	// LevelPermissive is accepted for compatibility and behaves as LevelModerate.
	LevelPermissive Level = "permissive"
)

func ParseLevel(s string) (Level, error) {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case LevelStrict:
		return LevelStrict, nil
	case LevelModerate, "":
		return LevelModerate, nil
	case LevelPermissive:
		return LevelPermissive, nil
	default:
		return "", fmt.Errorf("unknown xss level %q", s)
	}
}

// allowListPolicy permits basic formatting, links and images. URLs are limited to
// http, https, mailto and relative references, so javascript:, data: and vbscript:
// values are dropped along with the attribute.
func allowListPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(
		"p", "br", "strong", "em", "u",
		"h1", "h2", "h3", "h4", "h5", "h6",
		"ul", "ol", "li",
		"table", "thead", "tbody", "tr", "th", "td",
	)
	p.AllowAttrs("href", "title").OnElements("a")
	p.AllowAttrs("src", "alt").OnElements("img")
	p.AllowStandardURLs()
	return p
}

// XSSSanitizer applies the allow-list policy to every string leaf of a Value.
// It is safe for concurrent use.
type XSSSanitizer struct {
	allow  *bluemonday.Policy
	strict *bluemonday.Policy
	skip   map[string]struct{}
}

// NewXSSSanitizer builds a sanitizer. Values under any of skipFields are left
// as-is, which is how password fields avoid HTML escaping.
func NewXSSSanitizer(skipFields ...string) *XSSSanitizer {
	skip := make(map[string]struct{}, len(skipFields))
	for _, f := range skipFields {
		f = strings.TrimSpace(f)
		if f != "" {
			skip[f] = struct{}{}
		}
	}
	return &XSSSanitizer{
		allow:  allowListPolicy(),
		strict: bluemonday.StrictPolicy(),
		skip:   skip,
	}
}

var defaultXSS = NewXSSSanitizer()

// SanitizeXSS sanitizes input with no skipped fields.
func SanitizeXSS(input Value, level Level) Value {
	return defaultXSS.Sanitize(input, level)
}

// SanitizeString strips disallowed markup from in. Text with no '<' cannot hold
// a tag and is returned as-is, so "Tom & Jerry" and "O'Brien" are not turned
// into HTML entities. Strings that do carry markup come back as HTML, escaped.
func (s *XSSSanitizer) SanitizeString(in string, level Level) string {
	if !strings.ContainsRune(in, '<') {
		return in
	}
	out := s.allow.Sanitize(in)
	if level == LevelStrict {
		out = s.strict.Sanitize(out)
	}
	return out
}

// Sanitize returns a structural copy of input. Nil and non-string scalars pass
// through unchanged.
func (s *XSSSanitizer) Sanitize(input Value, level Level) Value {
	if input == nil {
		return nil
	}
	out, _ := input.Accept(&xssVisitor{s: s, level: level})
	return out
}

type xssVisitor struct {
	s     *XSSSanitizer
	level Level
}

func (v *xssVisitor) VisitNull() (Value, error)           { return Null{}, nil }
func (v *xssVisitor) VisitBool(b Bool) (Value, error)     { return b, nil }
func (v *xssVisitor) VisitNumber(n Number) (Value, error) { return n, nil }

func (v *xssVisitor) VisitString(str String) (Value, error) {
	return String(v.s.SanitizeString(string(str), v.level)), nil
}

func (v *xssVisitor) VisitArray(a Array) (Value, error) {
	out := make(Array, 0, len(a))
	for _, item := range a {
		if item == nil {
			out = append(out, Null{})
			continue
		}
		clean, _ := item.Accept(v)
		out = append(out, clean)
	}
	return out, nil
}

func (v *xssVisitor) VisitObject(o *Object) (Value, error) {
	out := NewObject()
	for _, key := range o.keys {
		item := o.values[key]
		if _, skip := v.s.skip[key]; skip || item == nil {
			out.Set(key, item)
			continue
		}
		clean, _ := item.Accept(v)
		out.Set(key, clean)
	}
	return out, nil
}
