package host

import (
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/modhost/pkg/plugins"
)

func TestNewReportEntry(t *testing.T) {
	meta := plugins.NewMetadata(&plugins.Manifest{UniqueID: "alice.Farming", Name: "Farming", Version: "1.4.0"}, "/mods/farming")
	meta.SetFailed(plugins.ReasonIncompatible, "it's no longer compatible.", "uses io/ioutil.ReadDir")
	meta.SetWarning(plugins.WarningNoUpdateKeys)

	entry := NewReportEntry(meta, func(id string) *UpdateInfo {
		return &UpdateInfo{Version: "1.5.0", URL: "https://example.com/" + id}
	})

	assert.Equal(t, "alice.Farming", entry.ID)
	assert.Equal(t, "failed", entry.Status)
	assert.Equal(t, "incompatible", entry.FailReason)
	assert.Equal(t, []string{"no_update_keys"}, entry.Warnings)
	require.NotNil(t, entry.Update)
	assert.Equal(t, "1.5.0", entry.Update.Version)

	data, err := sonic.Marshal(entry)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"displayName":"Farming"`)
	assert.Contains(t, string(data), `"errorDetail":"uses io/ioutil.ReadDir"`)
	assert.NotContains(t, string(data), `"degraded"`)
}

func TestReport_WithoutDetails(t *testing.T) {
	report := &Report{Entries: []ReportEntry{
		{ID: "a", ErrorPhrase: "phrase", ErrorDetail: "detail"},
	}}

	stripped := report.WithoutDetails()
	assert.Empty(t, stripped.Entries[0].ErrorDetail)
	assert.Equal(t, "phrase", stripped.Entries[0].ErrorPhrase)
	assert.Equal(t, "detail", report.Entries[0].ErrorDetail)
}

func TestReport_Summarize(t *testing.T) {
	report := &Report{Entries: []ReportEntry{
		{ID: "a", Status: "loaded"},
		{ID: "b", Status: "loaded", Degraded: true, Warnings: []string{"rewritten"}},
		{ID: "c", Status: "failed"},
		{ID: "d", Status: "failed", Warnings: []string{"no_update_keys"}},
	}}

	assert.Equal(t, Summary{Loaded: 2, Failed: 2, Degraded: 1, Warnings: 2}, report.Summarize())

	_, ok := report.Find("B")
	assert.True(t, ok)
	_, ok = report.Find("z")
	assert.False(t, ok)
}
