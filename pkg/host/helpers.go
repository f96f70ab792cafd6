package host

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/modhost/pkg/plugins"
	"github.com/platinummonkey/modhost/pkg/sdk"
)

// ErrPathEscapes is returned for data paths leaving the mod folder.
var ErrPathEscapes = errors.New("path must stay inside the mod folder")

// modHelper is the sdk.Helper handed to one mod. Every handle it returns is
// scoped to that mod.
type modHelper struct {
	meta     *plugins.Metadata
	monitor  *monitor
	data     *dataHelper
	packs    *contentPackHelper
	registry *modRegistry
}

var _ sdk.Helper = (*modHelper)(nil)

func newModHelper(c *Core, meta *plugins.Metadata) *modHelper {
	return &modHelper{
		meta:     meta,
		monitor:  &monitor{entry: c.logger.WithField("mod", meta.Channel)},
		data:     &dataHelper{dir: meta.Dir},
		packs:    &contentPackHelper{core: c, owner: meta},
		registry: &modRegistry{core: c, caller: meta},
	}
}

func (h *modHelper) ModID() string                       { return h.meta.ID() }
func (h *modHelper) Dir() string                         { return h.meta.Dir }
func (h *modHelper) Manifest() sdk.ModInfo               { return h.meta.Manifest.Info() }
func (h *modHelper) Monitor() sdk.Monitor                { return h.monitor }
func (h *modHelper) Data() sdk.DataHelper                { return h.data }
func (h *modHelper) ContentPacks() sdk.ContentPackHelper { return h.packs }
func (h *modHelper) Registry() sdk.ModRegistry           { return h.registry }

// monitor writes to the mod's log channel.
type monitor struct {
	entry *logrus.Entry
}

func (m *monitor) Debug(msg string)                  { m.entry.Debug(msg) }
func (m *monitor) Info(msg string)                   { m.entry.Info(msg) }
func (m *monitor) Warn(msg string)                   { m.entry.Warn(msg) }
func (m *monitor) Error(msg string)                  { m.entry.Error(msg) }
func (m *monitor) Debugf(format string, args ...any) { m.entry.Debugf(format, args...) }
func (m *monitor) Infof(format string, args ...any)  { m.entry.Infof(format, args...) }
func (m *monitor) Warnf(format string, args ...any)  { m.entry.Warnf(format, args...) }
func (m *monitor) Errorf(format string, args ...any) { m.entry.Errorf(format, args...) }

// dataHelper reads and writes JSON relative to one directory.
type dataHelper struct {
	dir string
}

func (d *dataHelper) resolve(path string) (string, error) {
	rel := filepath.FromSlash(path)
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: %s", ErrPathEscapes, path)
	}
	return filepath.Join(d.dir, rel), nil
}

func (d *dataHelper) ReadJSON(path string, v any) error {
	full, err := d.resolve(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := sonic.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func (d *dataHelper) WriteJSON(path string, v any) error {
	full, err := d.resolve(path)
	if err != nil {
		return err
	}
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(full, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func (d *dataHelper) has(path string) bool {
	full, err := d.resolve(path)
	if err != nil {
		return false
	}
	info, err := os.Stat(full)
	return err == nil && !info.IsDir()
}

// contentPack is a loaded data-only plugin.
type contentPack struct {
	info sdk.ModInfo
	data *dataHelper
}

var _ sdk.ContentPack = (*contentPack)(nil)

func newContentPack(info sdk.ModInfo, dir string) *contentPack {
	return &contentPack{info: info, data: &dataHelper{dir: dir}}
}

func (p *contentPack) Manifest() sdk.ModInfo             { return p.info }
func (p *contentPack) Dir() string                       { return p.data.dir }
func (p *contentPack) HasFile(path string) bool          { return p.data.has(path) }
func (p *contentPack) ReadJSON(path string, v any) error { return p.data.ReadJSON(path, v) }

// contentPackHelper gives a mod its content packs.
type contentPackHelper struct {
	core  *Core
	owner *plugins.Metadata
}

func (h *contentPackHelper) Owned() ([]sdk.ContentPack, error) {
	if !h.core.registry.AreAllLoaded() {
		return nil, sdk.ErrNotReady
	}

	var packs []sdk.ContentPack
	for _, meta := range h.core.registry.ContentPacksFor(h.owner.ID()) {
		if meta.ContentPack != nil {
			packs = append(packs, meta.ContentPack)
		}
	}

	h.core.mu.Lock()
	packs = append(packs, h.owner.FakeContentPacks...)
	h.core.mu.Unlock()
	return packs, nil
}

// CreateTemporary creates a content pack owned by this mod. It is released
// when the mod is disposed.
func (h *contentPackHelper) CreateTemporary(dir string, info sdk.ModInfo) (sdk.ContentPack, error) {
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(h.owner.Dir, filepath.FromSlash(dir))
	}
	stat, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("content pack directory: %w", err)
	}
	if !stat.IsDir() {
		return nil, fmt.Errorf("content pack path %s is not a directory", dir)
	}

	if strings.TrimSpace(info.UniqueID) == "" {
		return nil, errors.New("content pack needs a unique ID")
	}
	if _, taken := h.core.registry.FindCandidate(info.UniqueID); taken {
		return nil, fmt.Errorf("content pack ID %s is already used by a mod", info.UniqueID)
	}
	if info.Name == "" {
		info.Name = info.UniqueID
	}
	if info.Version == "" {
		info.Version = "1.0.0"
	}
	info.ContentPackFor = h.owner.ID()

	h.core.mu.Lock()
	defer h.core.mu.Unlock()
	for _, existing := range h.owner.FakeContentPacks {
		if plugins.SameID(existing.Manifest().UniqueID, info.UniqueID) {
			return nil, fmt.Errorf("content pack ID %s is already used by a mod", info.UniqueID)
		}
	}

	pack := newContentPack(info, dir)
	h.owner.FakeContentPacks = append(h.owner.FakeContentPacks, pack)
	return pack, nil
}

// modRegistry is the plugin-facing view of the registry. It returns
// sdk.ErrNotReady where the registry itself would panic.
type modRegistry struct {
	core   *Core
	caller *plugins.Metadata
}

func (r *modRegistry) Get(id string) (sdk.ModInfo, bool) {
	meta, ok := r.core.registry.Get(id)
	if !ok {
		return sdk.ModInfo{}, false
	}
	return meta.Manifest.Info(), true
}

func (r *modRegistry) GetAll() ([]sdk.ModInfo, error) {
	if !r.core.registry.AreAllLoaded() {
		return nil, sdk.ErrNotReady
	}
	all := r.core.registry.GetAll(true)
	infos := make([]sdk.ModInfo, 0, len(all))
	for _, meta := range all {
		infos = append(infos, meta.Manifest.Info())
	}
	return infos, nil
}

func (r *modRegistry) IsLoaded(id string) bool {
	_, ok := r.core.registry.Get(id)
	return ok
}

// GetAPI returns the mod's published API, or nil when it publishes none.
func (r *modRegistry) GetAPI(id string) (any, error) {
	if !r.core.registry.AreAllInitialized() {
		return nil, sdk.ErrAPINotReady
	}
	if _, ok := r.core.registry.Get(id); !ok {
		return nil, fmt.Errorf("%w: %s", sdk.ErrModNotLoaded, id)
	}
	r.core.logger.WithField("mod", r.caller.DisplayName).Debugf("Accessed API of %s.", id)
	return r.core.registry.API(id), nil
}

func (r *modRegistry) BindAPI(id string, shape any) error {
	api, err := r.GetAPI(id)
	if err != nil {
		return err
	}
	if api == nil {
		return fmt.Errorf("%w: %s", sdk.ErrNoAPI, id)
	}
	return r.core.proxies.Bind(api, shape)
}
