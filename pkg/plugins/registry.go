package plugins

import (
	"fmt"
	"sync"
)

// Phase is the population-level load state. It only moves forward.
type Phase int

const (
	PhaseDiscovering Phase = iota
	PhaseLoading
	PhaseAllLoaded
	PhaseInitializing
	PhaseAllInitialized
)

func (p Phase) String() string {
	return []string{"Discovering", "Loading", "AllLoaded", "Initializing", "AllInitialized"}[p]
}

// PhaseViolation is the panic value raised when the registry is used out of
// order. It signals a bug in the caller, not a plugin failure.
type PhaseViolation struct {
	Op       string
	Current  Phase
	Required Phase
}

func (e *PhaseViolation) Error() string {
	return fmt.Sprintf("plugins: %s requires phase %s or later, registry is in %s", e.Op, e.Required, e.Current)
}

// Registry is the authoritative table of candidate and loaded plugins.
//
// The load pipeline is the only writer. The mutex lets background readers
// (update checks, the status API) look at it safely.
type Registry struct {
	mu         sync.RWMutex
	phase      Phase
	candidates []*Metadata
	loaded     map[string]*Metadata
	order      []*Metadata
	observers  []func(Phase)
}

// NewRegistry creates an empty registry in the Discovering phase.
func NewRegistry() *Registry {
	return &Registry{
		loaded: make(map[string]*Metadata),
	}
}

// OnPhase registers fn to be called after each phase transition.
func (r *Registry) OnPhase(fn func(Phase)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, fn)
}

// Phase returns the current population phase.
func (r *Registry) Phase() Phase {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.phase
}

// AreAllLoaded reports whether the AllLoaded latch has flipped.
func (r *Registry) AreAllLoaded() bool {
	return r.Phase() >= PhaseAllLoaded
}

// AreAllInitialized reports whether the AllInitialized latch has flipped.
func (r *Registry) AreAllInitialized() bool {
	return r.Phase() >= PhaseAllInitialized
}

// AddCandidates records discovered candidates for reporting.
func (r *Registry) AddCandidates(candidates ...*Metadata) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.require("AddCandidates", PhaseDiscovering, PhaseDiscovering)
	r.candidates = append(r.candidates, candidates...)
}

// BeginLoading moves from Discovering to Loading.
func (r *Registry) BeginLoading() { r.advance(PhaseDiscovering, PhaseLoading) }

// MarkAllLoaded flips the AllLoaded latch.
func (r *Registry) MarkAllLoaded() { r.advance(PhaseLoading, PhaseAllLoaded) }

// BeginInitializing moves from AllLoaded to Initializing.
func (r *Registry) BeginInitializing() { r.advance(PhaseAllLoaded, PhaseInitializing) }

// MarkAllInitialized flips the AllInitialized latch.
func (r *Registry) MarkAllInitialized() { r.advance(PhaseInitializing, PhaseAllInitialized) }

func (r *Registry) advance(from, to Phase) {
	r.mu.Lock()
	if r.phase != from {
		current := r.phase
		r.mu.Unlock()
		panic(&PhaseViolation{Op: "transition to " + to.String(), Current: current, Required: from})
	}
	r.phase = to
	observers := append([]func(Phase){}, r.observers...)
	r.mu.Unlock()

	for _, fn := range observers {
		fn(to)
	}
}

// require panics unless min <= phase <= max. Callers hold the lock.
func (r *Registry) require(op string, min, max Phase) {
	if r.phase < min || r.phase > max {
		required := min
		if r.phase > max {
			required = max
		}
		panic(&PhaseViolation{Op: op, Current: r.phase, Required: required})
	}
}

// Register adds a loaded plugin. Only valid while loading.
func (r *Registry) Register(meta *Metadata) error {
	if meta == nil || meta.Manifest == nil {
		return fmt.Errorf("cannot register plugin without manifest")
	}
	if meta.Status != StatusLoaded {
		return fmt.Errorf("cannot register %s with status %s", meta.DisplayName, meta.Status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.require("Register", PhaseLoading, PhaseLoading)

	key := NormalizeID(meta.Manifest.UniqueID)
	if _, exists := r.loaded[key]; exists {
		return fmt.Errorf("plugin already registered: %s", meta.Manifest.UniqueID)
	}

	r.loaded[key] = meta
	r.order = append(r.order, meta)
	return nil
}

// Get returns a loaded plugin by id (case-insensitive).
func (r *Registry) Get(id string) (*Metadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	meta, ok := r.loaded[NormalizeID(id)]
	return meta, ok
}

// GetAll returns loaded plugins in load order. Content packs are included when
// includeDataOnly is set. Panics before AllLoaded.
func (r *Registry) GetAll(includeDataOnly bool) []*Metadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	r.require("GetAll", PhaseAllLoaded, PhaseAllInitialized)

	result := make([]*Metadata, 0, len(r.order))
	for _, meta := range r.order {
		if meta.IsContentPack() && !includeDataOnly {
			continue
		}
		result = append(result, meta)
	}
	return result
}

// ContentPacksFor returns loaded content packs targeting parentID. Panics before AllLoaded.
func (r *Registry) ContentPacksFor(parentID string) []*Metadata {
	var result []*Metadata
	for _, meta := range r.GetAll(true) {
		if meta.IsContentPack() && SameID(meta.Manifest.ContentPackFor.UniqueID, parentID) {
			result = append(result, meta)
		}
	}
	return result
}

// SetAPI publishes a mod's API. Only valid while initializing.
func (r *Registry) SetAPI(id string, api any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.require("SetAPI", PhaseInitializing, PhaseInitializing)

	meta, ok := r.loaded[NormalizeID(id)]
	if !ok {
		return fmt.Errorf("plugin not found: %s", id)
	}
	meta.API = api
	return nil
}

// API returns a mod's published API, or nil. Panics before AllInitialized.
func (r *Registry) API(id string) any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	r.require("API", PhaseAllInitialized, PhaseAllInitialized)

	meta, ok := r.loaded[NormalizeID(id)]
	if !ok {
		return nil
	}
	return meta.API
}

// Candidates returns every discovered candidate, failed ones included.
func (r *Registry) Candidates() []*Metadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Metadata(nil), r.candidates...)
}

// FindCandidate returns the candidate with the given id, whatever its status.
func (r *Registry) FindCandidate(id string) (*Metadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, meta := range r.candidates {
		if meta.HasID(id) {
			return meta, true
		}
	}
	return nil, false
}

// Count returns the number of loaded plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.loaded)
}
