package sdk

import (
	"errors"
	"fmt"
)

// ErrNotReady is returned by helper calls made before the host reached the
// load phase they depend on (for example reading content packs during load).
var ErrNotReady = errors.New("modhost: not available in the current load phase")

// ErrAPINotReady is returned when a mod asks for another mod's API before
// every mod finished its Entry call. It wraps ErrNotReady.
var ErrAPINotReady = fmt.Errorf("%w (mod APIs are published once all mods are initialized)", ErrNotReady)

// ErrModNotLoaded is returned when a mod asks for a mod that isn't loaded.
var ErrModNotLoaded = errors.New("modhost: mod isn't loaded")

// ErrNoAPI is returned by BindAPI when the mod publishes no API.
var ErrNoAPI = errors.New("modhost: mod doesn't provide an API")

// Mod is the entry trait a code plugin implements. The host calls Entry once,
// after every plugin in the population has been loaded.
type Mod interface {
	Entry(helper Helper) error
}

// APIProvider is implemented by mods that publish an API to other mods.
type APIProvider interface {
	API() any
}

// Disposer is implemented by mods that need to release resources on shutdown.
type Disposer interface {
	Dispose() error
}

// ModInfo is the read-only view of a manifest handed to plugins.
type ModInfo struct {
	UniqueID       string
	Name           string
	Version        string
	Author         string
	Description    string
	ContentPackFor string
	Dependencies   []string
}

// IsContentPack reports whether the described mod is a data-only content pack.
func (m ModInfo) IsContentPack() bool {
	return m.ContentPackFor != ""
}

// Helper is the capability handle a mod receives in Entry. Every handle it
// exposes is scoped to the owning mod.
type Helper interface {
	ModID() string
	Dir() string
	Manifest() ModInfo
	Monitor() Monitor
	Data() DataHelper
	ContentPacks() ContentPackHelper
	Registry() ModRegistry
}

// Monitor writes to the mod's own log channel.
type Monitor interface {
	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// DataHelper reads and writes JSON files inside the mod directory.
type DataHelper interface {
	ReadJSON(path string, v any) error
	WriteJSON(path string, v any) error
}

// ContentPack is a loaded data-only plugin.
type ContentPack interface {
	Manifest() ModInfo
	Dir() string
	HasFile(path string) bool
	ReadJSON(path string, v any) error
}

// ContentPackHelper gives a mod access to the content packs made for it.
type ContentPackHelper interface {
	// Owned returns the content packs targeting this mod, including temporary
	// packs it created. Returns ErrNotReady while mods are still loading.
	Owned() ([]ContentPack, error)

	// CreateTemporary creates a content pack owned by this mod from a
	// directory that has no manifest of its own.
	CreateTemporary(dir string, info ModInfo) (ContentPack, error)
}

// ModRegistry lets a mod inspect the loaded population and reach other mods'
// APIs without sharing their types.
type ModRegistry interface {
	Get(id string) (ModInfo, bool)
	GetAll() ([]ModInfo, error)
	IsLoaded(id string) bool
	GetAPI(id string) (any, error)

	// BindAPI fills shape, a pointer to a struct of func fields, with adapters
	// forwarding to the methods of the same name on the mod's API.
	BindAPI(id string, shape any) error
}
