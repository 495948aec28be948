package rules

import (
	"testing"

	"go.uber.org/zap"

	"github.com/OtisPresley/snmp-switch-manager/pkg/models"
)

func rule(t models.RuleType, m models.MatchKind, pattern, replacement string) models.Rule {
	return models.Rule{Type: t, Match: m, Pattern: pattern, Replacement: replacement}
}

func TestVisible_ExcludeDominates(t *testing.T) {
	s := NewSet(zap.NewNop(),
		[]models.Rule{rule(models.RuleInclude, models.MatchStartsWith, "Vlan10", "")},
		[]models.Rule{rule(models.RuleExclude, models.MatchContains, "Vl", "")},
		nil)

	// Exclude wins even against a matching include rule and a candidate
	// baseline.
	if s.Visible("Vlan10", true) {
		t.Error("Vlan10 must be excluded: exclude dominates include")
	}
}

func TestVisible_IncludeRevivesNonCandidate(t *testing.T) {
	s := NewSet(zap.NewNop(),
		[]models.Rule{rule(models.RuleInclude, models.MatchStartsWith, "Po", "")},
		nil, nil)

	if !s.Visible("Po1", false) {
		t.Error("include rule should add a non-candidate to the desired set")
	}
	if s.Visible("Gi1/0/1", false) {
		t.Error("non-candidate without an include match stays out")
	}
	if !s.Visible("Gi1/0/1", true) {
		t.Error("candidate baseline should hold when no rule matches")
	}
}

func TestVisible_CaseInsensitive(t *testing.T) {
	s := NewSet(zap.NewNop(), nil,
		[]models.Rule{rule(models.RuleExclude, models.MatchEndsWith, "/48", "")},
		nil)
	if s.Visible("gi1/0/48", true) {
		t.Error("ends_with should match")
	}
	if !s.Visible("gi1/0/48x", true) {
		t.Error("ends_with must anchor at the end")
	}

	s = NewSet(zap.NewNop(), nil,
		[]models.Rule{rule(models.RuleExclude, models.MatchStartsWith, "VLAN", "")},
		nil)
	if s.Visible("vlan20", true) {
		t.Error("matching is case-insensitive")
	}
}

func TestRename_ChainScenario(t *testing.T) {
	s := NewSet(zap.NewNop(), nil, nil, []models.Rule{
		rule(models.RuleRename, models.MatchStartsWith, "Gi", "GigE "),
		rule(models.RuleRename, models.MatchEndsWith, "1", "-A"),
	})

	if got := s.Rename("Gi1/0/1"); got != "GigE 1/0/1-A" {
		t.Errorf("rename = %q, want %q", got, "GigE 1/0/1-A")
	}
}

func TestRename_RegexCaptureGroups(t *testing.T) {
	s := NewSet(zap.NewNop(), nil, nil, []models.Rule{
		rule(models.RuleRename, models.MatchRegex, `^GigabitEthernet(\d+)/(\d+)/(\d+)$`, "Gi$1/$2/$3"),
	})
	if got := s.Rename("GigabitEthernet1/0/24"); got != "Gi1/0/24" {
		t.Errorf("rename = %q, want Gi1/0/24", got)
	}
}

func TestRename_FirstMatchOnlyPerRule(t *testing.T) {
	s := NewSet(zap.NewNop(), nil, nil, []models.Rule{
		rule(models.RuleRename, models.MatchContains, "0", "X"),
	})
	if got := s.Rename("10/20"); got != "1X/20" {
		t.Errorf("rename = %q, want one substitution", got)
	}
}

func TestRename_NonMatchingRuleSkipped(t *testing.T) {
	s := NewSet(zap.NewNop(), nil, nil, []models.Rule{
		rule(models.RuleRename, models.MatchStartsWith, "Te", "TenGig "),
		rule(models.RuleRename, models.MatchContains, "1/0/", "1:0:"),
	})
	if got := s.Rename("Gi1/0/5"); got != "Gi1:0:5" {
		t.Errorf("rename = %q, want Gi1:0:5", got)
	}
}

func TestRename_PreservesReplacementWhitespace(t *testing.T) {
	s := NewSet(zap.NewNop(), nil, nil, []models.Rule{
		rule(models.RuleRename, models.MatchStartsWith, "Gi", " Gig "),
	})
	if got := s.Rename("Gi1"); got != " Gig 1" {
		t.Errorf("rename = %q, want leading space kept", got)
	}
}

func TestRename_LiteralDollarInReplacement(t *testing.T) {
	s := NewSet(zap.NewNop(), nil, nil, []models.Rule{
		rule(models.RuleRename, models.MatchContains, "uplink", "$core"),
	})
	if got := s.Rename("uplink-1"); got != "$core-1" {
		t.Errorf("rename = %q, want $core-1", got)
	}
}

func TestRename_Deterministic(t *testing.T) {
	s := NewSet(zap.NewNop(), nil, nil, []models.Rule{
		rule(models.RuleRename, models.MatchContains, "a", "b"),
		rule(models.RuleRename, models.MatchContains, "b", "c"),
	})
	first := s.Rename("aaa")
	for i := 0; i < 10; i++ {
		if got := s.Rename("aaa"); got != first {
			t.Fatalf("rename not deterministic: %q vs %q", got, first)
		}
	}
}

func TestMalformedRegexSkipped(t *testing.T) {
	s := NewSet(zap.NewNop(),
		nil,
		[]models.Rule{
			rule(models.RuleExclude, models.MatchRegex, "([", ""),
			rule(models.RuleExclude, models.MatchContains, "Vl", ""),
		},
		[]models.Rule{
			rule(models.RuleRename, models.MatchRegex, "(", "x"),
			rule(models.RuleRename, models.MatchStartsWith, "Gi", "GigE "),
		})

	// The malformed exclude is skipped; the valid one still applies.
	if s.Visible("Vlan1", true) {
		t.Error("valid exclude after a malformed rule must still apply")
	}
	if got := s.Rename("Gi1"); got != "GigE 1" {
		t.Errorf("rename = %q, valid rule after malformed must apply", got)
	}
}

func TestNewSetFromRules_SplitsByType(t *testing.T) {
	s := NewSetFromRules(zap.NewNop(), []models.Rule{
		rule(models.RuleExclude, models.MatchContains, "stack", ""),
		rule(models.RuleInclude, models.MatchStartsWith, "Po", ""),
		rule(models.RuleRename, models.MatchStartsWith, "Po", "LAG "),
	})
	if s.Visible("stack-port 1", true) {
		t.Error("exclude not applied")
	}
	if !s.Visible("Po1", false) {
		t.Error("include not applied")
	}
	if got := s.Rename("Po1"); got != "LAG 1" {
		t.Errorf("rename = %q", got)
	}
	if !s.HasInclude() {
		t.Error("HasInclude should report the include rule")
	}
}
