package proxy

import (
	"errors"
	"fmt"
	"reflect"
	"runtime/debug"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// TagName is the struct tag that overrides the member a func field binds to.
// A value of "-" leaves the field untouched.
const TagName = "modhost"

// Call outcomes reported to a CallObserver.
const (
	ResultOK             = "ok"
	ResultMemberNotFound = "member_not_found"
	ResultMarshalError   = "marshal_error"
	ResultPanic          = "panic"
)

// DefaultCacheSize bounds the number of cached plans and converters.
const DefaultCacheSize = 512

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// MemberSource resolves members of targets whose methods aren't visible to
// reflection, such as values living inside the plugin interpreter. Members
// are looked up on every call.
type MemberSource interface {
	Member(name string) (reflect.Value, bool)
}

// CallObserver is notified of the outcome of every bound call.
type CallObserver func(result string)

type planKey struct {
	target, shape reflect.Type
}

// member is the resolved binding for one shape field.
type member struct {
	field  int
	name   string
	fnType reflect.Type
	// method is the target method index, or -1 when the target has none
	method  int
	adapter converter
	err     error
}

type plan struct {
	members []member
}

// Factory binds caller-declared shapes to target values. It is safe for
// concurrent use.
type Factory struct {
	plans      *lru.Cache[planKey, *plan]
	converters *lru.Cache[convKey, converter]

	mu       sync.RWMutex
	observer CallObserver
}

// NewFactory creates a factory caching up to size plans and converters.
func NewFactory(size int) (*Factory, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	plans, err := lru.New[planKey, *plan](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create plan cache: %w", err)
	}
	converters, err := lru.New[convKey, converter](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create converter cache: %w", err)
	}
	return &Factory{plans: plans, converters: converters}, nil
}

// SetObserver registers fn to receive call outcomes.
func (f *Factory) SetObserver(fn CallObserver) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observer = fn
}

func (f *Factory) observe(result string) {
	f.mu.RLock()
	fn := f.observer
	f.mu.RUnlock()
	if fn != nil {
		fn(result)
	}
}

// Bind fills every exported func field of shape with an adapter that calls
// the member of the same name on target. Missing members and incompatible
// signatures surface when the field is called, not here.
//
// A call that fails returns the error as its last result when the field's
// last result is an error, and panics with it otherwise.
func (f *Factory) Bind(target any, shape any) error {
	sv := reflect.ValueOf(shape)
	if !sv.IsValid() || sv.Kind() != reflect.Pointer || sv.IsNil() || sv.Elem().Kind() != reflect.Struct {
		return ErrInvalidShape
	}
	shapeValue := sv.Elem()
	shapeType := shapeValue.Type()

	tv := reflect.ValueOf(target)
	source, dynamic := target.(MemberSource)

	var p *plan
	if !dynamic {
		var err error
		if p, err = f.planFor(tv, shapeType); err != nil {
			return err
		}
	} else {
		var err error
		if p, err = shapeMembers(shapeType); err != nil {
			return err
		}
	}

	targetName := "<nil>"
	if tv.IsValid() {
		targetName = tv.Type().String()
	}

	for _, m := range p.members {
		var forward func(args []reflect.Value) []reflect.Value
		if dynamic {
			forward = func(args []reflect.Value) []reflect.Value {
				method, ok := source.Member(m.name)
				if !ok {
					return f.fail(m, &MemberNotFoundError{Member: m.name, TargetType: targetName})
				}
				adapter, err := f.converter(method.Type(), m.fnType)
				if err != nil {
					return f.fail(m, withMember(err, m.name))
				}
				return f.invoke(m, adapter, method, args)
			}
		} else {
			forward = func(args []reflect.Value) []reflect.Value {
				if m.method < 0 {
					return f.fail(m, &MemberNotFoundError{Member: m.name, TargetType: targetName})
				}
				if m.err != nil {
					return f.fail(m, m.err)
				}
				return f.invoke(m, m.adapter, tv.Method(m.method), args)
			}
		}
		shapeValue.Field(m.field).Set(reflect.MakeFunc(m.fnType, forward))
	}
	return nil
}

// shapeMembers reads the func fields of a shape type.
func shapeMembers(shapeType reflect.Type) (*plan, error) {
	p := &plan{}
	for i := 0; i < shapeType.NumField(); i++ {
		field := shapeType.Field(i)
		if !field.IsExported() {
			continue
		}
		name := field.Name
		if tag, ok := field.Tag.Lookup(TagName); ok {
			if tag == "-" {
				continue
			}
			if tag != "" {
				name = tag
			}
		}
		if field.Type.Kind() != reflect.Func {
			return nil, fmt.Errorf("%w: field %s is %s", ErrInvalidShape, field.Name, field.Type)
		}
		p.members = append(p.members, member{field: i, name: name, fnType: field.Type, method: -1})
	}
	return p, nil
}

// planFor resolves and caches the bindings for a static target type.
func (f *Factory) planFor(target reflect.Value, shapeType reflect.Type) (*plan, error) {
	var targetType reflect.Type
	if target.IsValid() {
		targetType = target.Type()
	}
	key := planKey{target: targetType, shape: shapeType}
	if p, ok := f.plans.Get(key); ok {
		return p, nil
	}

	p, err := shapeMembers(shapeType)
	if err != nil {
		return nil, err
	}
	if targetType != nil {
		for i := range p.members {
			m := &p.members[i]
			method, ok := targetType.MethodByName(m.name)
			if !ok {
				continue
			}
			m.method = method.Index
			// method.Type includes the receiver; the bound method value doesn't
			bound := target.Method(method.Index).Type()
			m.adapter, m.err = f.converter(bound, m.fnType)
			m.err = withMember(m.err, m.name)
		}
	}

	f.plans.Add(key, p)
	return p, nil
}

func withMember(err error, name string) error {
	var marshalErr *MarshalError
	if errors.As(err, &marshalErr) && marshalErr.Member == "" {
		copied := *marshalErr
		copied.Member = name
		return &copied
	}
	return err
}

// invoke calls the target through its adapter.
func (f *Factory) invoke(m member, adapter converter, method reflect.Value, args []reflect.Value) []reflect.Value {
	results, err := call(m, adapter, method, args)
	if err != nil {
		return f.fail(m, err)
	}
	f.observe(ResultOK)
	return results
}

// call turns panics raised by the target, or by marshaling inside nested
// callbacks, into errors.
func call(m member, adapter converter, method reflect.Value, args []reflect.Value) (results []reflect.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			results = nil
			switch v := r.(type) {
			case *MarshalError:
				err = withMember(v, m.name)
			case *MemberNotFoundError:
				err = v
			default:
				err = &PanicError{Member: m.name, Value: r, Stack: debug.Stack()}
			}
		}
	}()

	fn, err := adapter(method)
	if err != nil {
		return nil, withMember(err, m.name)
	}
	if m.fnType.IsVariadic() {
		return fn.CallSlice(args), nil
	}
	return fn.Call(args), nil
}

// fail reports err through the field's error result, or panics when it has none.
func (f *Factory) fail(m member, err error) []reflect.Value {
	var (
		notFound *MemberNotFoundError
		marshal  *MarshalError
	)
	switch {
	case errors.As(err, &notFound):
		f.observe(ResultMemberNotFound)
	case errors.As(err, &marshal):
		f.observe(ResultMarshalError)
	default:
		f.observe(ResultPanic)
	}

	n := m.fnType.NumOut()
	if n == 0 || m.fnType.Out(n-1) != errorType {
		panic(err)
	}
	results := make([]reflect.Value, n)
	for i := 0; i < n-1; i++ {
		results[i] = reflect.Zero(m.fnType.Out(i))
	}
	results[n-1] = reflect.ValueOf(&err).Elem()
	return results
}
