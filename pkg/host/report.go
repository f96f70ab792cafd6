package host

import (
	"sort"

	"github.com/platinummonkey/modhost/pkg/plugins"
)

// UpdateInfo is a newer version suggested by the update server.
type UpdateInfo struct {
	Version string `json:"version"`
	URL     string `json:"url,omitempty"`
}

// UpdateLookup returns the cached update suggestion for a mod id, if any.
type UpdateLookup func(id string) *UpdateInfo

// ReportEntry is the host-facing outcome for one candidate. ErrorPhrase is
// safe to show users; ErrorDetail is meant for developers.
type ReportEntry struct {
	ID          string      `json:"id"`
	DisplayName string      `json:"displayName"`
	Version     string      `json:"version,omitempty"`
	Status      string      `json:"status"`
	FailReason  string      `json:"failReason,omitempty"`
	ErrorPhrase string      `json:"errorPhrase,omitempty"`
	ErrorDetail string      `json:"errorDetail,omitempty"`
	Warnings    []string    `json:"warnings,omitempty"`
	Degraded    bool        `json:"degraded,omitempty"`
	ContentPack bool        `json:"contentPack,omitempty"`
	HasAPI      bool        `json:"hasApi,omitempty"`
	Update      *UpdateInfo `json:"update,omitempty"`
}

// Report lists every candidate sorted by display name, plus the resolved
// load order.
type Report struct {
	RunID   string        `json:"runId"`
	Phase   string        `json:"phase"`
	Entries []ReportEntry `json:"mods"`
	Order   []string      `json:"order"`
}

// Summary counts entries by outcome.
type Summary struct {
	Loaded   int
	Failed   int
	Degraded int
	Warnings int
}

// BuildReport snapshots the core's candidates. updates may be nil.
func BuildReport(c *Core, updates UpdateLookup) *Report {
	registry := c.Registry()
	candidates := registry.Candidates()
	plugins.SortByDisplayName(candidates)

	report := &Report{
		RunID:   c.RunID(),
		Phase:   registry.Phase().String(),
		Entries: make([]ReportEntry, 0, len(candidates)),
	}
	for _, meta := range candidates {
		report.Entries = append(report.Entries, NewReportEntry(meta, updates))
	}
	for _, meta := range c.Order() {
		report.Order = append(report.Order, meta.ID())
	}
	return report
}

// NewReportEntry describes one candidate.
func NewReportEntry(meta *plugins.Metadata, updates UpdateLookup) ReportEntry {
	entry := ReportEntry{
		ID:          meta.ID(),
		DisplayName: meta.DisplayName,
		Status:      string(meta.Status),
		FailReason:  string(meta.FailReason),
		ErrorPhrase: meta.Error,
		ErrorDetail: meta.ErrorDetail,
		Degraded:    meta.Degraded,
		ContentPack: meta.IsContentPack(),
		HasAPI:      meta.API != nil,
	}
	if meta.Manifest != nil {
		entry.Version = meta.Manifest.Version
	}
	for _, w := range meta.Warnings() {
		entry.Warnings = append(entry.Warnings, string(w))
	}
	if updates != nil && entry.ID != "" {
		entry.Update = updates(entry.ID)
	}
	return entry
}

// Find returns the entry for id, ignoring case.
func (r *Report) Find(id string) (ReportEntry, bool) {
	for _, entry := range r.Entries {
		if plugins.SameID(entry.ID, id) {
			return entry, true
		}
	}
	return ReportEntry{}, false
}

// Summarize counts the report's entries.
func (r *Report) Summarize() Summary {
	var s Summary
	for _, entry := range r.Entries {
		switch {
		case entry.Status == string(plugins.StatusFailed):
			s.Failed++
		case entry.Degraded:
			s.Degraded++
			s.Loaded++
		case entry.Status == string(plugins.StatusLoaded):
			s.Loaded++
		}
		if len(entry.Warnings) > 0 {
			s.Warnings++
		}
	}
	return s
}

// WithoutDetails returns a copy with developer-facing details removed.
func (r *Report) WithoutDetails() *Report {
	copied := *r
	copied.Entries = make([]ReportEntry, len(r.Entries))
	for i, entry := range r.Entries {
		entry.ErrorDetail = ""
		copied.Entries[i] = entry
	}
	return &copied
}

func sortResults(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		return plugins.LessByDisplayName(results[i].Metadata, results[j].Metadata)
	})
}
