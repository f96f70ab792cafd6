package compatibility

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRules(t *testing.T) {
	rules := DefaultRules()

	rule, ok := rules.Lookup(Ref{Package: "io/ioutil", Name: "ReadFile"})
	require.True(t, ok)
	assert.True(t, rule.CanRewrite())
	assert.Equal(t, Ref{Package: "os", Name: "ReadFile"}, rule.To)

	rule, ok = rules.Lookup(Ref{Package: "io/ioutil", Name: "ReadDir"})
	require.True(t, ok)
	assert.False(t, rule.CanRewrite())

	rule, ok = rules.Lookup(Ref{Package: LegacySDKPath, Name: "GameLoop"})
	require.True(t, ok)
	assert.Equal(t, KindRemoved, rule.Kind)

	_, ok = rules.Lookup(Ref{Package: "os", Name: "ReadFile"})
	assert.False(t, ok)

	assert.True(t, rules.CoversPackage(LegacySDKPath))
	assert.False(t, rules.CoversPackage("fmt"))
}

func TestRuleSet_AddReplaces(t *testing.T) {
	rules := NewRuleSet(Rule{From: Ref{Package: "a", Name: "X"}, Kind: KindRemoved})
	rules.Add(relocated("a", "X", "b", "X"))

	assert.Equal(t, 1, rules.Len())
	rule, _ := rules.Lookup(Ref{Package: "a", Name: "X"})
	assert.Equal(t, KindRelocated, rule.Kind)
	assert.Len(t, rules.Rules(), 1)
}

func TestForRule(t *testing.T) {
	rewrite := ForRule(relocated("io/ioutil", "ReadAll", "io", "ReadAll"), "main.go:3:2")
	assert.Equal(t, LevelInfo, rewrite.Level)
	assert.True(t, rewrite.Rewritten)
	assert.Contains(t, rewrite.Message, "rewrote io/ioutil.ReadAll to io.ReadAll")

	broken := ForRule(Rule{From: Ref{Package: "x", Name: "Y"}, Kind: KindChanged, Suggestion: "use Z"}, "main.go:9:1")
	assert.Equal(t, LevelError, broken.Level)
	assert.Equal(t, "[ERROR] main.go:9:1: x.Y is changed with no safe rewrite (use Z)", broken.String())
}

func TestSummarize(t *testing.T) {
	findings := []Finding{
		NewFindingBuilder("relocated").WithLevel(LevelInfo).Rewritten().Build(),
		NewFindingBuilder("removed").WithLevel(LevelError).Build(),
		NewFindingBuilder("paranoid").WithLevel(LevelWarning).Build(),
	}

	summary := Summarize(findings)
	assert.Equal(t, Summary{Total: 3, Errors: 1, Warnings: 1, Infos: 1, Rewritten: 1}, summary)
}
