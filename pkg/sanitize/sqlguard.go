package sanitize

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrSuspiciousInput is wrapped by every InjectionError.
var ErrSuspiciousInput = errors.New("suspicious input detected")

// InjectionError names the field that tripped the guard. Pattern is meant for
// server-side logs only.
type InjectionError struct {
	Field   string
	Pattern string
}

func (e *InjectionError) Error() string {
	if e.Field == "" {
		return "suspicious input detected"
	}
	return fmt.Sprintf("suspicious input detected in field %q", e.Field)
}

func (e *InjectionError) Unwrap() error { return ErrSuspiciousInput }

type patternClass struct {
	name string
	re   *regexp.Regexp
}

// The command-token class anchors xp_/sp_ on a leading word boundary so that
// xp_cmdshell matches while exp_date does not. The shell names keep only a
// trailing boundary, so any word ending in "sh" ("finish", "rebash") matches.
var injectionPatterns = []patternClass{
	{"sql_keyword", regexp.MustCompile(`(?i)\b(UNION|SELECT|INSERT|UPDATE|DELETE|DROP|CREATE|ALTER|EXEC|EXECUTE|SCRIPT|JAVASCRIPT|ONERROR|ONCLICK)\b`)},
	{"sql_metachar", regexp.MustCompile(`(--|/\*|\*/|;|'|")`)},
	{"command_token", regexp.MustCompile(`(?i)(\b(xp|sp)_|(cmd\.exe|powershell|bash|sh)\b)`)},
	{"markup_marker", regexp.MustCompile(`(?i)(<script|<iframe|<img|<svg|javascript:|data:|vbscript:)`)},
	{"shell_metachar", regexp.MustCompile("(\\||&|`|\\$\\()")},
}

// MatchInjectionPattern returns the name of the first pattern class s matches.
func MatchInjectionPattern(s string) (string, bool) {
	lowered := strings.ToLower(s)
	for _, p := range injectionPatterns {
		if p.re.MatchString(lowered) {
			return p.name, true
		}
	}
	return "", false
}

type SQLGuardConfig struct {
	// ExemptFields lists object keys whose values skip pattern checks and pass
	// through Sanitize untouched. Keys themselves are still checked.
	ExemptFields []string
}

// SQLGuard is a defense-in-depth pattern filter over request values. It does not
// replace parameterized queries.
type SQLGuard struct {
	exempt map[string]struct{}
}

func NewSQLGuard(cfg SQLGuardConfig) *SQLGuard {
	exempt := make(map[string]struct{}, len(cfg.ExemptFields))
	for _, f := range cfg.ExemptFields {
		f = strings.TrimSpace(f)
		if f != "" {
			exempt[f] = struct{}{}
		}
	}
	return &SQLGuard{exempt: exempt}
}

var defaultGuard = NewSQLGuard(SQLGuardConfig{})

// ValidateForInjection reports whether input is free of injection patterns, using
// a guard with no exemptions.
func ValidateForInjection(input Value, field string) bool {
	return defaultGuard.Validate(input, field)
}

// SanitizeForSQL validates input recursively with a guard that has no exemptions.
func SanitizeForSQL(input Value) (Value, error) {
	return defaultGuard.Sanitize(input)
}

// Validate reports whether input is free of injection patterns. Nil and Null are
// valid; containers are checked recursively.
func (g *SQLGuard) Validate(input Value, field string) bool {
	return g.Check(input, field) == nil
}

// Check is Validate returning the offending field and pattern class.
func (g *SQLGuard) Check(input Value, field string) error {
	if input == nil {
		return nil
	}
	_, err := input.Accept(&sqlVisitor{guard: g, path: field, leaf: field, checkOnly: true})
	return err
}

// Sanitize checks every object key and leaf of input and returns a copy whose
// strings are trimmed with NUL, LF and CR escaped. The first violation aborts
// with an *InjectionError.
func (g *SQLGuard) Sanitize(input Value) (Value, error) {
	if input == nil {
		return Null{}, nil
	}
	return input.Accept(&sqlVisitor{guard: g})
}

func (g *SQLGuard) isExempt(leaf string) bool {
	_, ok := g.exempt[leaf]
	return ok
}

var sqlEscaper = strings.NewReplacer("\x00", `\0`, "\n", `\n`, "\r", `\r`)

type sqlVisitor struct {
	guard     *SQLGuard
	path      string
	leaf      string
	checkOnly bool
}

func (v *sqlVisitor) child(path, leaf string) *sqlVisitor {
	return &sqlVisitor{guard: v.guard, path: path, leaf: leaf, checkOnly: v.checkOnly}
}

func (v *sqlVisitor) scalar(text string) error {
	if name, bad := MatchInjectionPattern(text); bad {
		return &InjectionError{Field: v.path, Pattern: name}
	}
	return nil
}

func (v *sqlVisitor) VisitNull() (Value, error) { return Null{}, nil }

func (v *sqlVisitor) VisitBool(b Bool) (Value, error) {
	if b {
		return b, v.scalar("true")
	}
	return b, v.scalar("false")
}

func (v *sqlVisitor) VisitNumber(n Number) (Value, error) {
	if err := v.scalar(string(n)); err != nil {
		return nil, err
	}
	return n, nil
}

func (v *sqlVisitor) VisitString(s String) (Value, error) {
	if err := v.scalar(string(s)); err != nil {
		return nil, err
	}
	if v.checkOnly {
		return s, nil
	}
	return String(sqlEscaper.Replace(strings.TrimSpace(string(s)))), nil
}

func (v *sqlVisitor) VisitArray(a Array) (Value, error) {
	out := make(Array, 0, len(a))
	for i, item := range a {
		if item == nil {
			item = Null{}
		}
		clean, err := item.Accept(v.child(fmt.Sprintf("%s[%d]", v.path, i), v.leaf))
		if err != nil {
			return nil, err
		}
		out = append(out, clean)
	}
	return out, nil
}

func (v *sqlVisitor) VisitObject(o *Object) (Value, error) {
	out := NewObject()
	for _, key := range o.keys {
		path := key
		if v.path != "" {
			path = v.path + "." + key
		}
		if name, bad := MatchInjectionPattern(key); bad {
			return nil, &InjectionError{Field: "key:" + path, Pattern: name}
		}

		item := o.values[key]
		if item == nil {
			item = Null{}
		}
		if v.guard.isExempt(key) {
			out.Set(key, item)
			continue
		}
		clean, err := item.Accept(v.child(path, key))
		if err != nil {
			return nil, err
		}
		out.Set(key, clean)
	}
	return out, nil
}
