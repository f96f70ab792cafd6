package assembly

import (
	"fmt"

	"github.com/platinummonkey/modhost/pkg/plugins"
)

// User-facing phrases for load failures.
const (
	PhraseLoadFailed       = "its code couldn't be loaded."
	PhraseNeeds64Bit       = "it needs to be updated for 64-bit mode."
	PhraseNoEntryType      = "its code has no entry type."
	PhraseMultipleEntries  = "its code contains multiple entry types."
	PhraseBadEntryPoint    = "its EntryPoint couldn't be resolved."
	PhraseUnresolvedImport = "its code references packages the host doesn't provide."
)

// LoadError is returned by the loader. Reason is LoadFailed or Incompatible.
type LoadError struct {
	Reason plugins.FailReason
	Phrase string
	Detail string
}

func (e *LoadError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %s", e.Reason, e.Phrase)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Reason, e.Phrase, e.Detail)
}

// Failure converts the error into a pipeline stage failure.
func (e *LoadError) Failure() *plugins.Failure {
	return &plugins.Failure{Reason: e.Reason, Phrase: e.Phrase, Detail: e.Detail}
}

func loadFailed(phrase, detail string, args ...any) *LoadError {
	if len(args) > 0 {
		detail = fmt.Sprintf(detail, args...)
	}
	return &LoadError{Reason: plugins.ReasonLoadFailed, Phrase: phrase, Detail: detail}
}
