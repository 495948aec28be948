// Package rules evaluates per-device include, exclude, and rename rules
// against raw interface names. Precedence is fixed: exclude beats include
// beats the vendor-candidate baseline. Rename is a fold over the ordered
// rule list, each rule substituting at most once into the output of the
// previous rule.
package rules

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/OtisPresley/snmp-switch-manager/pkg/models"
)

// compiled is one rule reduced to a regex plus a substitution template.
type compiled struct {
	re       *regexp.Regexp
	template string
}

// Set is one compiled visibility rule pair plus a rename chain. Compile
// once per device and reuse across polls; rules only change on config
// writes.
type Set struct {
	include []compiled
	exclude []compiled
	rename  []compiled
}

// NewSet compiles three ordered rule lists. A malformed pattern disables
// that single rule (logged), never the rest of the list.
func NewSet(logger *zap.Logger, include, exclude, rename []models.Rule) *Set {
	return &Set{
		include: compileAll(logger, include, false),
		exclude: compileAll(logger, exclude, false),
		rename:  compileAll(logger, rename, true),
	}
}

// NewSetFromRules splits a mixed ordered rule list by type and compiles it.
func NewSetFromRules(logger *zap.Logger, list []models.Rule) *Set {
	var include, exclude, rename []models.Rule
	for _, r := range list {
		switch r.Type {
		case models.RuleInclude:
			include = append(include, r)
		case models.RuleExclude:
			exclude = append(exclude, r)
		case models.RuleRename:
			rename = append(rename, r)
		}
	}
	return NewSet(logger, include, exclude, rename)
}

// HasInclude reports whether any include rule compiled.
func (s *Set) HasInclude() bool { return len(s.include) > 0 }

// Visible decides whether an interface belongs in the desired set.
// candidate is the vendor-classifier baseline verdict.
func (s *Set) Visible(rawName string, candidate bool) bool {
	for _, c := range s.exclude {
		if c.re.MatchString(rawName) {
			return false
		}
	}
	for _, c := range s.include {
		if c.re.MatchString(rawName) {
			return true
		}
	}
	return candidate
}

// Rename applies every matching rename rule in declared order. Each rule
// substitutes its first match in the output of the previous rule, so
// chains compose. Replacements keep their literal whitespace.
func (s *Set) Rename(name string) string {
	out := name
	for _, c := range s.rename {
		loc := c.re.FindStringSubmatchIndex(out)
		if loc == nil {
			continue
		}
		var buf []byte
		buf = append(buf, out[:loc[0]]...)
		buf = c.re.ExpandString(buf, c.template, out, loc)
		buf = append(buf, out[loc[1]:]...)
		out = string(buf)
	}
	return out
}

func compileAll(logger *zap.Logger, list []models.Rule, rename bool) []compiled {
	var out []compiled
	for _, r := range list {
		c, err := compileRule(r, rename)
		if err != nil {
			if logger != nil {
				logger.Warn("skipping malformed rule",
					zap.String("type", string(r.Type)),
					zap.String("pattern", r.Pattern),
					zap.Error(err))
			}
			continue
		}
		out = append(out, c)
	}
	return out
}

// compileRule projects a match kind onto an anchored case-insensitive
// regex. For rename rules the template substitutes the matched text:
// starts_with and contains replace the match, ends_with keeps the matched
// suffix and appends the replacement after it.
func compileRule(r models.Rule, rename bool) (compiled, error) {
	pattern := strings.TrimSpace(r.Pattern)

	var expr, template string
	switch r.Match {
	case models.MatchStartsWith:
		expr = "(?i)^" + regexp.QuoteMeta(pattern)
		template = literal(r.Replacement)
	case models.MatchContains:
		expr = "(?i)" + regexp.QuoteMeta(pattern)
		template = literal(r.Replacement)
	case models.MatchEndsWith:
		expr = "(?i)(" + regexp.QuoteMeta(pattern) + ")$"
		template = "${1}" + literal(r.Replacement)
	case models.MatchRegex:
		expr = "(?i)" + pattern
		template = r.Replacement
	default:
		expr = "(?i)" + regexp.QuoteMeta(pattern)
		template = literal(r.Replacement)
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		return compiled{}, err
	}
	if !rename {
		template = ""
	}
	return compiled{re: re, template: template}, nil
}

// literal escapes a replacement so $ stays a dollar sign in non-regex
// rules.
func literal(s string) string {
	return strings.ReplaceAll(s, "$", "$$")
}
