package plugins

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadedMetadata(t *testing.T, id string, contentPackFor string) *Metadata {
	t.Helper()
	manifest := &Manifest{UniqueID: id, Name: id, Version: "1.0.0"}
	if contentPackFor != "" {
		manifest.ContentPackFor = &ContentPackFor{UniqueID: contentPackFor}
	}
	meta := NewMetadata(manifest, "/mods/"+id)
	require.NoError(t, meta.SetLoaded(id))
	return meta
}

func TestRegistry_PhasesAdvanceOnce(t *testing.T) {
	registry := NewRegistry()

	var seen []Phase
	registry.OnPhase(func(p Phase) { seen = append(seen, p) })

	registry.BeginLoading()
	registry.MarkAllLoaded()
	registry.BeginInitializing()
	registry.MarkAllInitialized()

	assert.Equal(t, []Phase{PhaseLoading, PhaseAllLoaded, PhaseInitializing, PhaseAllInitialized}, seen)
	assert.True(t, registry.AreAllLoaded())
	assert.True(t, registry.AreAllInitialized())

	assert.Panics(t, func() { registry.MarkAllLoaded() }, "latches never flip twice")
	assert.Panics(t, func() { registry.MarkAllInitialized() })
	assert.Equal(t, PhaseAllInitialized, registry.Phase())
}

func TestRegistry_SkippingPhasePanics(t *testing.T) {
	registry := NewRegistry()

	defer func() {
		r := recover()
		require.NotNil(t, r)
		violation, ok := r.(*PhaseViolation)
		require.True(t, ok)
		assert.Equal(t, PhaseDiscovering, violation.Current)
		assert.Contains(t, violation.Error(), "AllLoaded")
	}()

	registry.MarkAllLoaded()
}

func TestRegistry_GetAllBeforeAllLoadedPanics(t *testing.T) {
	registry := NewRegistry()
	registry.BeginLoading()

	assert.Panics(t, func() { registry.GetAll(true) })
	assert.Panics(t, func() { registry.ContentPacksFor("alice.Farming") })
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	registry := NewRegistry()
	registry.BeginLoading()

	mod := loadedMetadata(t, "alice.Farming", "")
	pack := loadedMetadata(t, "alice.FarmingPack", "alice.farming")
	require.NoError(t, registry.Register(mod))
	require.NoError(t, registry.Register(pack))

	got, ok := registry.Get("ALICE.FARMING")
	require.True(t, ok)
	assert.Same(t, mod, got)

	assert.Error(t, registry.Register(mod), "duplicate registration")

	registry.MarkAllLoaded()
	assert.Len(t, registry.GetAll(false), 1)
	assert.Len(t, registry.GetAll(true), 2)
	assert.Equal(t, []*Metadata{pack}, registry.ContentPacksFor("alice.Farming"))
}

func TestRegistry_RegisterRequiresLoadedStatus(t *testing.T) {
	registry := NewRegistry()
	registry.BeginLoading()

	pending := NewMetadata(&Manifest{UniqueID: "a", Name: "a", Version: "1.0.0"}, "/mods/a")
	assert.Error(t, registry.Register(pending))
	assert.Error(t, registry.Register(nil))
}

func TestRegistry_RegisterAfterAllLoadedPanics(t *testing.T) {
	registry := NewRegistry()
	registry.BeginLoading()
	registry.MarkAllLoaded()

	assert.Panics(t, func() { _ = registry.Register(loadedMetadata(t, "late", "")) })
}

func TestRegistry_APIGating(t *testing.T) {
	registry := NewRegistry()
	registry.BeginLoading()
	require.NoError(t, registry.Register(loadedMetadata(t, "alice.Farming", "")))
	registry.MarkAllLoaded()

	assert.Panics(t, func() { _ = registry.SetAPI("alice.Farming", "api") }, "publishing only while initializing")

	registry.BeginInitializing()
	require.NoError(t, registry.SetAPI("alice.Farming", "api"))
	assert.Error(t, registry.SetAPI("missing", "api"))
	assert.Panics(t, func() { registry.API("alice.Farming") })

	registry.MarkAllInitialized()
	assert.Equal(t, "api", registry.API("alice.farming"))
	assert.Nil(t, registry.API("missing"))
}

func TestRegistry_Candidates(t *testing.T) {
	registry := NewRegistry()
	failed := NewMetadata(&Manifest{UniqueID: "broken"}, "/mods/broken")
	failed.SetFailed(ReasonInvalidManifest, "bad", "")
	registry.AddCandidates(failed)

	assert.Equal(t, []*Metadata{failed}, registry.Candidates())
	found, ok := registry.FindCandidate("BROKEN")
	require.True(t, ok)
	assert.Same(t, failed, found)

	registry.BeginLoading()
	assert.Panics(t, func() { registry.AddCandidates(failed) })
}

func TestRegistry_ConcurrentReads(t *testing.T) {
	registry := NewRegistry()
	registry.BeginLoading()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, registry.Register(loadedMetadata(t, id, "")))
	}
	registry.MarkAllLoaded()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Len(t, registry.GetAll(true), 3)
			_, ok := registry.Get("b")
			assert.True(t, ok)
		}()
	}
	wg.Wait()
	assert.Equal(t, 3, registry.Count())
}
