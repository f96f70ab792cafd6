package host

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/modhost/pkg/compatibility"
	"github.com/platinummonkey/modhost/pkg/plugins"
)

func TestDataHelper(t *testing.T) {
	d := &dataHelper{dir: t.TempDir()}

	type settings struct {
		Difficulty string `json:"difficulty"`
		Seeds      int    `json:"seeds"`
	}
	require.NoError(t, d.WriteJSON("config/settings.json", settings{Difficulty: "hard", Seeds: 3}))
	assert.True(t, d.has("config/settings.json"))
	assert.False(t, d.has("config"))

	var got settings
	require.NoError(t, d.ReadJSON("config/settings.json", &got))
	assert.Equal(t, settings{Difficulty: "hard", Seeds: 3}, got)

	assert.Error(t, d.ReadJSON("missing.json", &got))
}

func TestDataHelper_RejectsEscapingPaths(t *testing.T) {
	d := &dataHelper{dir: t.TempDir()}

	for _, path := range []string{"../secrets.json", "/etc/passwd", "a/../../b.json", ""} {
		assert.ErrorIs(t, d.WriteJSON(path, map[string]int{}), ErrPathEscapes, path)
		assert.ErrorIs(t, d.ReadJSON(path, &struct{}{}), ErrPathEscapes, path)
		assert.False(t, d.has(path))
	}
}

func TestDataHelper_BadJSON(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0644))

	d := &dataHelper{dir: dir}
	var v map[string]any
	err := d.ReadJSON("broken.json", &v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse broken.json")
}

func TestBuiltins_Has(t *testing.T) {
	var none Builtins
	assert.False(t, none.Has("console"))

	b := Builtins{"console": nil}
	assert.True(t, b.Has("console"))
}

func TestPublishable(t *testing.T) {
	assert.True(t, publishable(&FarmAPI{}))
	assert.True(t, publishable(FarmAPI{}))
	assert.False(t, publishable(hiddenAPI{}))
	assert.False(t, publishable(&hiddenAPI{}))
	assert.False(t, publishable(struct{ Plant func() }{}))
	assert.False(t, publishable(map[string]int{}))
}

func TestIsNil(t *testing.T) {
	var typed *FarmAPI
	assert.True(t, isNil(nil))
	assert.True(t, isNil(typed))
	assert.False(t, isNil(&FarmAPI{}))
	assert.False(t, isNil(hiddenAPI{}))
}

func TestWithoutRewrites(t *testing.T) {
	rules := withoutRewrites(compatibility.DefaultRules())
	for _, rule := range rules.Rules() {
		assert.False(t, rule.CanRewrite(), rule.From.String())
	}
	assert.Positive(t, rules.Len())
}

func TestMetadataChannelUsedByMonitor(t *testing.T) {
	core, hook := newTestCore(t, Options{})
	meta := plugins.NewMetadata(&plugins.Manifest{UniqueID: "test.Farming", Name: "Farming", Version: "1.0.0"}, t.TempDir())
	require.NoError(t, meta.SetLoaded(meta.DisplayName))

	h := newModHelper(core, meta)
	h.Monitor().Warnf("low on %s", "seeds")

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "low on seeds", hook.LastEntry().Message)
	assert.Equal(t, "Farming", hook.LastEntry().Data["mod"])
	assert.Equal(t, "test.Farming", h.ModID())
	assert.Equal(t, "Farming", h.Manifest().Name)
}
