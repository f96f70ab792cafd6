package plugins

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadata_StatusIsTerminal(t *testing.T) {
	meta := NewMetadata(&Manifest{UniqueID: "a", Name: "A", Version: "1.0.0"}, "/mods/a")
	assert.Equal(t, StatusPending, meta.Status)

	meta.SetFailed(ReasonMissingDependencies, "first", "")
	meta.SetFailed(ReasonLoadFailed, "second", "")
	assert.Equal(t, ReasonMissingDependencies, meta.FailReason)
	assert.Equal(t, "first", meta.Error)

	assert.Error(t, meta.SetLoaded("a"))
}

func TestMetadata_DisplayNameFallbacks(t *testing.T) {
	assert.Equal(t, "Named", NewMetadata(&Manifest{UniqueID: "id", Name: "Named"}, "/mods/x").DisplayName)
	assert.Equal(t, "id", NewMetadata(&Manifest{UniqueID: "id"}, "/mods/x").DisplayName)
	assert.Equal(t, "x", NewMetadata(nil, "/mods/x").DisplayName)
}

func TestMetadata_Degraded(t *testing.T) {
	meta := NewMetadata(&Manifest{UniqueID: "a", Name: "A", Version: "1.0.0"}, "/mods/a")
	require.NoError(t, meta.SetLoaded("a"))
	meta.API = struct{}{}

	meta.SetDegraded("crashed", "boom")

	assert.Equal(t, StatusLoaded, meta.Status)
	assert.True(t, meta.Degraded)
	assert.Nil(t, meta.API)
	assert.Equal(t, ReasonLoadFailed, meta.FailReason)
}

func TestMetadata_Warnings(t *testing.T) {
	meta := NewMetadata(&Manifest{UniqueID: "a"}, "/mods/a")
	meta.SetWarning(WarningUsesUnsafe)
	meta.SetWarning(WarningAccessesShell)
	meta.SetWarning(WarningUsesUnsafe)

	assert.Equal(t, []Warning{WarningAccessesShell, WarningUsesUnsafe}, meta.Warnings())
}

func TestDataRecord_AppliesTo(t *testing.T) {
	var nilRecord *DataRecord
	assert.False(t, nilRecord.AppliesTo("1.0.0"))
	assert.True(t, (&DataRecord{}).AppliesTo("9.9.9"))
	assert.True(t, (&DataRecord{UpperVersion: "1.2.0"}).AppliesTo("1.2.0"))
	assert.False(t, (&DataRecord{UpperVersion: "1.2.0"}).AppliesTo("1.2.1"))
}

func TestSortByDisplayName(t *testing.T) {
	b := NewMetadata(&Manifest{UniqueID: "b", Name: "beta"}, "")
	a := NewMetadata(&Manifest{UniqueID: "a", Name: "Alpha"}, "")
	c := NewMetadata(&Manifest{UniqueID: "c", Name: "ALPHA"}, "")

	list := []*Metadata{b, c, a}
	SortByDisplayName(list)

	assert.Equal(t, []*Metadata{a, c, b}, list)
}
