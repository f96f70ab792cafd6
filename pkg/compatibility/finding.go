package compatibility

import "fmt"

// FindingLevel indicates the severity
type FindingLevel int

const (
	LevelInfo FindingLevel = iota
	LevelWarning
	LevelError
)

func (l FindingLevel) String() string {
	return []string{"INFO", "WARNING", "ERROR"}[l]
}

// Finding records one matched rule in plugin code.
type Finding struct {
	Rule       string
	Level      FindingLevel
	Location   string // file:line:column
	Message    string
	Suggestion string
	Rewritten  bool
}

func (f Finding) String() string {
	s := fmt.Sprintf("[%s] %s: %s", f.Level, f.Location, f.Message)
	if f.Suggestion != "" {
		s += " (" + f.Suggestion + ")"
	}
	return s
}

// FindingBuilder helps construct findings fluently
type FindingBuilder struct {
	finding Finding
}

// NewFindingBuilder creates a new finding builder
func NewFindingBuilder(rule string) *FindingBuilder {
	return &FindingBuilder{
		finding: Finding{
			Rule: rule,
		},
	}
}

func (b *FindingBuilder) WithLevel(level FindingLevel) *FindingBuilder {
	b.finding.Level = level
	return b
}

func (b *FindingBuilder) WithLocation(location string) *FindingBuilder {
	b.finding.Location = location
	return b
}

func (b *FindingBuilder) WithMessage(message string) *FindingBuilder {
	b.finding.Message = message
	return b
}

func (b *FindingBuilder) WithSuggestion(suggestion string) *FindingBuilder {
	b.finding.Suggestion = suggestion
	return b
}

func (b *FindingBuilder) Rewritten() *FindingBuilder {
	b.finding.Rewritten = true
	return b
}

func (b *FindingBuilder) Build() Finding {
	return b.finding
}

// ForRule builds the finding for a rule match at location.
func ForRule(rule Rule, location string) Finding {
	b := NewFindingBuilder(rule.Kind.String()).
		WithLocation(location).
		WithSuggestion(rule.Suggestion)

	if rule.CanRewrite() {
		return b.WithLevel(LevelInfo).
			WithMessage(fmt.Sprintf("rewrote %s to %s", rule.From, rule.To)).
			Rewritten().
			Build()
	}
	return b.WithLevel(LevelError).
		WithMessage(fmt.Sprintf("%s is %s with no safe rewrite", rule.From, rule.Kind)).
		Build()
}

// Summary provides an overview of findings
type Summary struct {
	Total     int
	Errors    int
	Warnings  int
	Infos     int
	Rewritten int
}

// Summarize counts findings by level.
func Summarize(findings []Finding) Summary {
	s := Summary{Total: len(findings)}
	for _, f := range findings {
		switch f.Level {
		case LevelError:
			s.Errors++
		case LevelWarning:
			s.Warnings++
		default:
			s.Infos++
		}
		if f.Rewritten {
			s.Rewritten++
		}
	}
	return s
}
