package host

import (
	"context"
	"errors"
	"fmt"
	"go/token"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/modhost/pkg/assembly"
	"github.com/platinummonkey/modhost/pkg/compatibility"
	"github.com/platinummonkey/modhost/pkg/dependencies"
	"github.com/platinummonkey/modhost/pkg/engine"
	"github.com/platinummonkey/modhost/pkg/observability"
	"github.com/platinummonkey/modhost/pkg/plugins"
	"github.com/platinummonkey/modhost/pkg/proxy"
	"github.com/platinummonkey/modhost/pkg/sdk"
)

// Core owns one plugin population and drives it through the load pipeline.
//
// The pipeline runs on the calling goroutine. Plugin code may call back
// into its helpers from other goroutines once loading is done, so shared
// state is guarded.
type Core struct {
	opts         Options
	logger       *logrus.Logger
	registry     *plugins.Registry
	loader       CodeLoader
	instantiator Instantiator
	proxies      *proxy.Factory
	tracer       trace.Tracer
	runID        string

	mu      sync.Mutex // guards results, order and fake content packs
	results map[*plugins.Metadata]Result
	order   []*plugins.Metadata
	started bool

	closeOnce sync.Once
}

// New creates a core with an empty registry.
func New(opts Options, logger *logrus.Logger) (*Core, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if opts.APIVersion == "" {
		opts.APIVersion = plugins.CurrentAPIVersion
	}

	c := &Core{
		opts:     opts,
		logger:   logger,
		registry: plugins.NewRegistry(),
		tracer:   observability.Tracer(),
		runID:    uuid.NewString(),
		results:  make(map[*plugins.Metadata]Result),
	}

	c.proxies = opts.Proxy
	if c.proxies == nil {
		f, err := proxy.NewFactory(proxy.DefaultCacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create proxy factory: %w", err)
		}
		c.proxies = f
	}

	c.loader = opts.Loader
	if c.loader == nil {
		rules := compatibility.DefaultRules()
		if opts.DisableRewrites {
			rules = withoutRewrites(rules)
		}
		c.loader = assembly.NewLoader(assembly.Options{
			Rules:     rules,
			Available: engine.HasPackage,
			Paranoid:  opts.ParanoidWarnings,
		}, logger)
	}

	c.instantiator = opts.Instantiator
	if c.instantiator == nil {
		c.instantiator = engine.New(logger)
	}

	if m := opts.Metrics; m != nil {
		c.registry.OnPhase(func(p plugins.Phase) { m.SetPhase(int(p)) })
		c.proxies.SetObserver(m.RecordProxyCall)
	}

	return c, nil
}

// withoutRewrites keeps only the rules that fail a load.
func withoutRewrites(rules *compatibility.RuleSet) *compatibility.RuleSet {
	kept := compatibility.NewRuleSet()
	for _, rule := range rules.Rules() {
		if !rule.CanRewrite() {
			kept.Add(rule)
		}
	}
	return kept
}

// Registry returns the plugin registry.
func (c *Core) Registry() *plugins.Registry {
	return c.registry
}

// RunID identifies this pipeline run in logs and reports.
func (c *Core) RunID() string {
	return c.runID
}

// Order returns the resolved load order.
func (c *Core) Order() []*plugins.Metadata {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*plugins.Metadata(nil), c.order...)
}

// Results returns the last stage result of every candidate, sorted by display name.
func (c *Core) Results() []Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	results := make([]Result, 0, len(c.results))
	for _, r := range c.results {
		results = append(results, r)
	}
	sortResults(results)
	return results
}

func (c *Core) record(meta *plugins.Metadata, stage Stage, err error) Result {
	r := Result{Metadata: meta, Stage: stage, Err: err}
	c.mu.Lock()
	c.results[meta] = r
	c.mu.Unlock()
	return r
}

// Run discovers plugins under the configured directories and loads them.
func (c *Core) Run(ctx context.Context) (*Report, error) {
	ctx, span := c.tracer.Start(ctx, "modhost.discover")
	candidates := plugins.NewDiscoverer(c.opts.Dirs, c.logger).Discover()
	span.SetAttributes(attribute.Int("modhost.candidates", len(candidates)))
	span.End()

	return c.Load(ctx, candidates)
}

// Load runs the pipeline over already discovered candidates. It can only run
// once per core.
func (c *Core) Load(ctx context.Context, candidates []*plugins.Metadata) (*Report, error) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return nil, errors.New("host: load pipeline already ran")
	}
	c.started = true
	c.mu.Unlock()

	start := time.Now()
	log := c.logger.WithField("run_id", c.runID)
	log.Infof("Loading mods from %d candidate folder(s)...", len(candidates))

	for _, meta := range candidates {
		if meta.Status == plugins.StatusFailed {
			c.record(meta, StageDiscover, failureOf(meta))
		}
	}
	if c.opts.Metrics != nil {
		c.opts.Metrics.RecordDiscovered(len(candidates))
	}
	c.registry.AddCandidates(candidates...)
	c.registry.BeginLoading()

	c.validate(ctx, candidates)
	order := c.resolve(ctx, candidates)

	for _, meta := range order {
		c.loadOne(ctx, meta)
	}
	c.registry.MarkAllLoaded()

	c.registry.BeginInitializing()
	if !c.opts.DryRun {
		c.initialize(ctx)
	}
	c.registry.MarkAllInitialized()

	for _, meta := range candidates {
		if meta.Status == plugins.StatusLoaded && !meta.Degraded {
			c.record(meta, StageReady, nil)
		}
		if c.opts.Metrics != nil {
			c.opts.Metrics.RecordLoadResult(string(meta.Status), string(meta.FailReason))
		}
	}

	loaded := c.registry.Count()
	log.Infof("Loaded %d of %d mods in %s.", loaded, len(candidates), time.Since(start).Round(time.Millisecond))
	return BuildReport(c, nil), nil
}

func (c *Core) validate(ctx context.Context, candidates []*plugins.Metadata) {
	_, span := c.tracer.Start(ctx, "modhost.validate")
	defer span.End()

	opts := plugins.ValidatorOptions{
		APIVersion:           c.opts.APIVersion,
		HostVersion:          c.opts.HostVersion,
		SuppressUpdateChecks: c.opts.SuppressUpdateChecks,
		HasBuiltin:           c.opts.Builtins.Has,
	}
	if c.opts.DataRecords != nil {
		opts.DataRecord = c.opts.DataRecords.Lookup
	}

	for _, result := range plugins.NewValidator(opts, c.logger).Validate(candidates) {
		if result.Err != nil {
			c.recordOnce(result.Metadata, StageValidate, result.Err)
		}
	}
}

func (c *Core) resolve(ctx context.Context, candidates []*plugins.Metadata) []*plugins.Metadata {
	_, span := c.tracer.Start(ctx, "modhost.resolve")
	defer span.End()

	order := dependencies.NewResolver(c.logger).Resolve(candidates)
	for _, meta := range candidates {
		if meta.Status == plugins.StatusFailed {
			c.recordOnce(meta, StageResolve, failureOf(meta))
		}
	}

	c.mu.Lock()
	c.order = order
	c.mu.Unlock()
	span.SetAttributes(attribute.Int("modhost.resolved", len(order)))
	return order
}

// recordOnce keeps the first failing stage of a plugin.
func (c *Core) recordOnce(meta *plugins.Metadata, stage Stage, err error) {
	c.mu.Lock()
	_, seen := c.results[meta]
	c.mu.Unlock()
	if !seen {
		c.record(meta, stage, err)
	}
}

func failureOf(meta *plugins.Metadata) *plugins.Failure {
	return &plugins.Failure{Reason: meta.FailReason, Phrase: meta.Error, Detail: meta.ErrorDetail}
}

// loadOne loads, instantiates and registers one resolved plugin. Failures
// are recorded on the plugin and never stop the caller's loop.
func (c *Core) loadOne(ctx context.Context, meta *plugins.Metadata) Result {
	start := time.Now()
	ctx, span := c.tracer.Start(ctx, "modhost.load", trace.WithAttributes(
		attribute.String("modhost.mod.id", meta.ID()),
		attribute.String("modhost.mod.name", meta.DisplayName),
	))
	defer span.End()
	if c.opts.Metrics != nil {
		defer func() { c.opts.Metrics.RecordLoadDuration(time.Since(start)) }()
	}

	result := c.load(meta)
	if result.Err != nil {
		span.SetStatus(codes.Error, meta.Error)
		observability.WithTraceContext(ctx, observability.ModLogger(c.logger, meta.DisplayName)).Debugf("Skipped: %s", meta.Error)
	}
	return result
}

func (c *Core) load(meta *plugins.Metadata) Result {
	fail := func(stage Stage, f *plugins.Failure) Result {
		meta.Fail(f)
		return c.record(meta, stage, f)
	}

	for _, dep := range meta.Manifest.RequiredDependencies() {
		if dm, ok := c.registry.Get(dep.UniqueID); ok && dm.Status == plugins.StatusLoaded {
			continue
		}
		name := dep.UniqueID
		if candidate, ok := c.registry.FindCandidate(dep.UniqueID); ok {
			name = candidate.DisplayName
		}
		return fail(StageLoad, &plugins.Failure{
			Reason: plugins.ReasonMissingDependencies,
			Phrase: fmt.Sprintf(phraseDependencyLost, name),
		})
	}

	if meta.IsContentPack() {
		meta.ContentPack = newContentPack(meta.Manifest.Info(), meta.Dir)
	} else {
		mod, stage, f := c.createMod(meta)
		if f != nil {
			return fail(stage, f)
		}
		meta.Mod = mod
	}

	if err := meta.SetLoaded(meta.DisplayName); err != nil {
		return fail(StageRegister, &plugins.Failure{Reason: plugins.ReasonLoadFailed, Phrase: phraseInternalFailure, Detail: err.Error()})
	}
	if err := c.registry.Register(meta); err != nil {
		// the plugin is already marked loaded; keep it out of the population
		meta.Status = plugins.StatusFailed
		meta.FailReason = plugins.ReasonLoadFailed
		meta.Error = phraseInternalFailure
		meta.ErrorDetail = err.Error()
		return c.record(meta, StageRegister, failureOf(meta))
	}

	log := c.logger.WithField("mod", meta.DisplayName)
	if meta.IsContentPack() {
		log.Infof("Loaded content pack %s %s for %s.", meta.DisplayName, meta.Manifest.Version, meta.Manifest.ContentPackFor.UniqueID)
	} else {
		log.Infof("Loaded %s %s.", meta.DisplayName, meta.Manifest.Version)
	}
	return c.record(meta, StageRegister, nil)
}

// createMod loads and instantiates a code plugin. In a dry run the code is
// loaded but nothing is instantiated.
func (c *Core) createMod(meta *plugins.Metadata) (mod sdk.Mod, stage Stage, f *plugins.Failure) {
	stage = StageLoad
	defer func() {
		if r := recover(); r != nil {
			err := observability.MustRecover(r)
			mod, stage = nil, StageInstantiate
			f = &plugins.Failure{Reason: plugins.ReasonLoadFailed, Phrase: engine.PhraseNotInstantiated, Detail: err.Error()}
		}
	}()

	entry := meta.Manifest.EntryPoint
	if name, ok := strings.CutPrefix(entry, plugins.BuiltinPrefix); ok {
		factory := c.opts.Builtins[name]
		if factory == nil {
			return nil, stage, &plugins.Failure{Reason: plugins.ReasonInvalidManifest, Phrase: fmt.Sprintf("its EntryPoint '%s' doesn't match a built-in mod.", entry)}
		}
		if c.opts.DryRun {
			return nil, stage, nil
		}
		if mod = factory(); mod == nil {
			return nil, StageInstantiate, &plugins.Failure{Reason: plugins.ReasonLoadFailed, Phrase: PhraseBuiltinCrashed, Detail: "factory returned nil"}
		}
		return mod, StageInstantiate, nil
	}

	assumeCompatible := meta.DataRecord != nil &&
		meta.DataRecord.Status == plugins.RecordAssumeCompatible &&
		meta.DataRecord.AppliesTo(meta.Manifest.Version)

	code, err := c.loader.Load(meta, assumeCompatible)
	if err != nil {
		return nil, stage, asFailure(err, assembly.PhraseLoadFailed)
	}
	for _, w := range code.Warnings {
		meta.SetWarning(w)
	}
	if c.opts.DryRun {
		return nil, stage, nil
	}

	stage = StageInstantiate
	mod, err = c.instantiator.Instantiate(meta, code)
	if err != nil {
		return nil, stage, asFailure(err, engine.PhraseNotInstantiated)
	}
	if mod == nil {
		return nil, stage, &plugins.Failure{Reason: plugins.ReasonLoadFailed, Phrase: engine.PhraseNotInstantiated, Detail: "no instance created"}
	}
	return mod, stage, nil
}

func asFailure(err error, phrase string) *plugins.Failure {
	var loadErr *assembly.LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Failure()
	}
	var f *plugins.Failure
	if errors.As(err, &f) {
		return f
	}
	return &plugins.Failure{Reason: plugins.ReasonLoadFailed, Phrase: phrase, Detail: err.Error()}
}

// initialize calls every mod's Entry, then collects the published APIs.
func (c *Core) initialize(ctx context.Context) {
	ctx, span := c.tracer.Start(ctx, "modhost.initialize")
	defer span.End()

	mods := c.registry.GetAll(false)
	for _, meta := range mods {
		if meta.Mod == nil {
			continue
		}
		c.enter(ctx, meta)
	}

	for _, meta := range mods {
		if meta.Mod == nil || meta.Degraded {
			continue
		}
		c.publishAPI(meta)
	}
}

func (c *Core) enter(ctx context.Context, meta *plugins.Metadata) {
	ctx, span := c.tracer.Start(ctx, "modhost.entry", trace.WithAttributes(attribute.String("modhost.mod.id", meta.ID())))
	defer span.End()

	helper := newModHelper(c, meta)
	helper.monitor.entry = observability.WithTraceContext(ctx, helper.monitor.entry)
	if err := callEntry(meta.Mod, helper); err != nil {
		helper.monitor.entry.WithError(err).Error(PhraseEntryCrashed)
		meta.SetDegraded(PhraseEntryCrashed, err.Error())
		c.record(meta, StageEntry, err)
		span.SetStatus(codes.Error, err.Error())
	}
}

func callEntry(mod sdk.Mod, helper sdk.Helper) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = observability.MustRecover(r)
		}
	}()
	return mod.Entry(helper)
}

func callAPI(provider sdk.APIProvider) (api any, err error) {
	defer func() {
		if r := recover(); r != nil {
			api = nil
			err = observability.MustRecover(r)
		}
	}()
	return provider.API(), nil
}

func (c *Core) publishAPI(meta *plugins.Metadata) {
	provider, ok := meta.Mod.(sdk.APIProvider)
	if !ok {
		return
	}
	log := c.logger.WithField("mod", meta.DisplayName)

	api, err := callAPI(provider)
	if err != nil {
		log.WithError(err).Error(PhraseAPIFailed)
		meta.SetDegraded(PhraseAPIFailed, err.Error())
		c.record(meta, StageAPI, err)
		return
	}
	if isNil(api) {
		return
	}
	if !publishable(api) {
		log.Warnf(warnNonPublicAPI, meta.DisplayName)
		return
	}

	if err := c.registry.SetAPI(meta.ID(), api); err != nil {
		log.WithError(err).Warn("Couldn't publish API.")
		return
	}
	log.Debugf("Published API %T.", api)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// publishable reports whether other mods can see the API's type: it must
// be a named exported type, or a pointer to one.
func publishable(api any) bool {
	t := reflect.TypeOf(api)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name() != "" && token.IsExported(t.Name())
}

// Close disposes every loaded mod in reverse load order and drops the
// content packs they created. Errors and panics are logged, not returned.
func (c *Core) Close() error {
	c.closeOnce.Do(func() {
		if !c.registry.AreAllLoaded() {
			return
		}
		mods := c.registry.GetAll(true)
		for i := len(mods) - 1; i >= 0; i-- {
			c.dispose(mods[i])
		}
	})
	return nil
}

func (c *Core) dispose(meta *plugins.Metadata) {
	log := observability.ModLogger(c.logger, meta.DisplayName)
	release := func() {
		c.mu.Lock()
		n := meta.ReleaseFakeContentPacks()
		c.mu.Unlock()
		if n > 0 {
			log.Debugf("Released %d temporary content pack(s).", n)
		}
	}
	defer observability.RecoverPanicWithCallback(log, "mod dispose", release)

	if disposer, ok := meta.Mod.(sdk.Disposer); ok {
		if err := disposer.Dispose(); err != nil {
			log.WithError(err).Warn("Mod failed to dispose.")
		}
	}
	release()
}
