package models

// RuleType distinguishes the three rule behaviors.
type RuleType string

const (
	RuleInclude RuleType = "include"
	RuleExclude RuleType = "exclude"
	RuleRename  RuleType = "rename"
)

// MatchKind selects how a rule's pattern is applied to the raw interface
// name. The three string kinds are convenience projections onto anchored
// regexes; they must behave identically to their regex equivalents.
type MatchKind string

const (
	MatchStartsWith MatchKind = "starts_with"
	MatchContains   MatchKind = "contains"
	MatchEndsWith   MatchKind = "ends_with"
	MatchRegex      MatchKind = "regex"
)

// Rule is one entry in an ordered rule list. Replacement is only meaningful
// for rename rules; for regex rename rules it may reference capture groups.
// Literal leading/trailing whitespace in Replacement is significant.
type Rule struct {
	Type        RuleType
	Match       MatchKind
	Pattern     string
	Replacement string
}

// RuleSet holds the per-device rule lists. The interface lists and the
// bandwidth lists are fully independent: interface include rules never leak
// interfaces into bandwidth selection.
type RuleSet struct {
	InterfaceInclude []Rule
	InterfaceExclude []Rule
	InterfaceRename  []Rule
	BandwidthInclude []Rule
	BandwidthExclude []Rule
}
