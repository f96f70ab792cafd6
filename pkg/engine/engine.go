package engine

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/platinummonkey/modhost/pkg/assembly"
	"github.com/platinummonkey/modhost/pkg/plugins"
	"github.com/platinummonkey/modhost/pkg/sdk"
)

// PhraseNotInstantiated is reported when the entry type can't be created.
const PhraseNotInstantiated = "its entry class couldn't be instantiated."

const (
	instanceVar = "modhostEntryInstance"
	apiVar      = "modhostAPIValue"
)

// Engine runs loaded plugin code in a Go interpreter, one per plugin.
type Engine struct {
	logger *logrus.Logger
}

// New creates an engine.
func New(logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{logger: logger}
}

// Instantiate evaluates the plugin's files and creates its entry type. The
// returned mod forwards Entry, API and Dispose into the interpreter.
func (e *Engine) Instantiate(meta *plugins.Metadata, code *assembly.LoadedCode) (sdk.Mod, error) {
	inst, err := e.instantiate(meta.DisplayName, code)
	if err != nil {
		return nil, err
	}
	return inst, nil
}

func (e *Engine) instantiate(name string, code *assembly.LoadedCode) (*Instance, error) {
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("failed to load standard library symbols: %w", err)
	}
	if err := i.Use(Exports); err != nil {
		return nil, fmt.Errorf("failed to load sdk symbols: %w", err)
	}

	src, err := code.Source()
	if err == nil {
		_, err = i.Eval(string(src))
	}
	if err != nil {
		return nil, &assembly.LoadError{
			Reason: plugins.ReasonLoadFailed,
			Phrase: assembly.PhraseLoadFailed,
			Detail: fmt.Sprintf("%s: %v", strings.Join(fileNames(code), ", "), err),
		}
	}

	inst := &Instance{interp: i, code: code}
	if _, err := i.Eval(fmt.Sprintf("var %s = &%s{}", instanceVar, code.EntryType)); err != nil {
		return nil, notInstantiated(err)
	}

	v, err := i.Eval(instanceVar + ".Entry")
	if err != nil {
		return nil, notInstantiated(err)
	}
	if inst.entry, err = entryFunc(v); err != nil {
		return nil, notInstantiated(err)
	}

	if code.HasDispose {
		v, err := i.Eval(instanceVar + ".Dispose")
		if err != nil {
			return nil, notInstantiated(err)
		}
		if inst.dispose, err = disposeFunc(v); err != nil {
			return nil, notInstantiated(err)
		}
	}

	e.logger.WithField("mod", name).Debugf("Instantiated %s from %d file(s).", code.EntryType, len(code.Files))
	return inst, nil
}

func fileNames(code *assembly.LoadedCode) []string {
	names := make([]string, 0, len(code.Files))
	for _, file := range code.Files {
		names = append(names, file.Name)
	}
	return names
}

func notInstantiated(err error) *assembly.LoadError {
	return &assembly.LoadError{
		Reason: plugins.ReasonLoadFailed,
		Phrase: PhraseNotInstantiated,
		Detail: err.Error(),
	}
}

var (
	helperType = reflect.TypeOf((*sdk.Helper)(nil)).Elem()
	errorType  = reflect.TypeOf((*error)(nil)).Elem()
)

func entryFunc(v reflect.Value) (func(sdk.Helper) error, error) {
	if fn, ok := v.Interface().(func(sdk.Helper) error); ok {
		return fn, nil
	}
	t := v.Type()
	if t.Kind() != reflect.Func || t.NumIn() != 1 || !helperType.AssignableTo(t.In(0)) ||
		t.NumOut() != 1 || !t.Out(0).Implements(errorType) {
		return nil, fmt.Errorf("Entry has type %s", t)
	}
	return func(h sdk.Helper) error {
		out := v.Call([]reflect.Value{reflect.ValueOf(&h).Elem()})
		err, _ := out[0].Interface().(error)
		return err
	}, nil
}

func disposeFunc(v reflect.Value) (func() error, error) {
	if fn, ok := v.Interface().(func() error); ok {
		return fn, nil
	}
	t := v.Type()
	if t.Kind() != reflect.Func || t.NumIn() != 0 || t.NumOut() != 1 || !t.Out(0).Implements(errorType) {
		return nil, fmt.Errorf("Dispose has type %s", t)
	}
	return func() error {
		err, _ := v.Call(nil)[0].Interface().(error)
		return err
	}, nil
}

// Instance is an interpreted plugin. It implements sdk.Mod, sdk.APIProvider
// and sdk.Disposer.
type Instance struct {
	mu      sync.Mutex
	interp  *interp.Interpreter
	code    *assembly.LoadedCode
	entry   func(sdk.Helper) error
	dispose func() error
}

// Entry calls the plugin's Entry method.
func (in *Instance) Entry(helper sdk.Helper) error {
	return in.entry(helper)
}

// API calls the plugin's API method. It returns nil when the entry type has
// none, and panics when the call fails inside the interpreter.
func (in *Instance) API() any {
	switch {
	case in.code.APIUnpublishable != "":
		return unpublishable{typeName: in.code.APIUnpublishable}
	case in.code.APIType == "":
		return nil
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	if _, err := in.interp.Eval(fmt.Sprintf("var %s = %s.API()", apiVar, instanceVar)); err != nil {
		panic(fmt.Errorf("API() failed: %w", err))
	}
	// comparing a struct value with nil doesn't compile, which is fine here
	if v, err := in.interp.Eval(apiVar + " == nil"); err == nil && v.Kind() == reflect.Bool && v.Bool() {
		return nil
	}

	members := make(map[string]bool, len(in.code.APIMembers))
	for _, name := range in.code.APIMembers {
		members[name] = true
	}
	return &RemoteAPI{instance: in, typeName: in.code.APIType, members: members}
}

// Dispose calls the plugin's Dispose method, if it has one.
func (in *Instance) Dispose() error {
	if in.dispose == nil {
		return nil
	}
	return in.dispose()
}

// RemoteAPI is an API value living inside the interpreter. Its methods are
// resolved by name on each call.
type RemoteAPI struct {
	instance *Instance
	typeName string
	members  map[string]bool
}

// TypeName returns the declared API type.
func (a *RemoteAPI) TypeName() string {
	return a.typeName
}

// Members returns the exported method names of the API type.
func (a *RemoteAPI) Members() []string {
	names := make([]string, 0, len(a.members))
	for name := range a.members {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Member implements proxy.MemberSource.
func (a *RemoteAPI) Member(name string) (reflect.Value, bool) {
	if !a.members[name] {
		return reflect.Value{}, false
	}
	a.instance.mu.Lock()
	defer a.instance.mu.Unlock()
	v, err := a.instance.interp.Eval(apiVar + "." + name)
	if err != nil || v.Kind() != reflect.Func {
		return reflect.Value{}, false
	}
	return v, true
}

// unpublishable stands in for an API whose type other mods can't see.
type unpublishable struct {
	typeName string
}
