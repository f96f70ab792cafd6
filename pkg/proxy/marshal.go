package proxy

import (
	"fmt"
	"reflect"
)

// converter turns a value of one type into a value of exactly another type.
type converter func(reflect.Value) (reflect.Value, error)

type convKey struct {
	from, to reflect.Type
}

func identity(v reflect.Value) (reflect.Value, error) { return v, nil }

// converter returns a cached converter between two types.
func (f *Factory) converter(from, to reflect.Type) (converter, error) {
	key := convKey{from: from, to: to}
	if c, ok := f.converters.Get(key); ok {
		return c, nil
	}
	c, err := f.build(from, to, make(map[convKey]*converter))
	if err != nil {
		return nil, err
	}
	f.converters.Add(key, c)
	return c, nil
}

// build compiles a converter. pending breaks cycles for recursive types.
func (f *Factory) build(from, to reflect.Type, pending map[convKey]*converter) (converter, error) {
	key := convKey{from: from, to: to}
	if c, ok := f.converters.Get(key); ok {
		return c, nil
	}
	if slot, ok := pending[key]; ok {
		return func(v reflect.Value) (reflect.Value, error) { return (*slot)(v) }, nil
	}
	slot := new(converter)
	pending[key] = slot

	c, err := f.compile(from, to, pending)
	if err != nil {
		return nil, err
	}
	*slot = c
	return c, nil
}

func (f *Factory) compile(from, to reflect.Type, pending map[convKey]*converter) (converter, error) {
	if from == to {
		return identity, nil
	}
	if from.AssignableTo(to) {
		return func(v reflect.Value) (reflect.Value, error) {
			out := reflect.New(to).Elem()
			out.Set(v)
			return out, nil
		}, nil
	}

	if from.Kind() == reflect.Interface {
		return f.fromInterface(from, to), nil
	}

	switch to.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		if from.Kind() != to.Kind() {
			break
		}
		return func(v reflect.Value) (reflect.Value, error) { return v.Convert(to), nil }, nil

	case reflect.Pointer:
		if from.Kind() != reflect.Pointer {
			break
		}
		elem, err := f.build(from.Elem(), to.Elem(), pending)
		if err != nil {
			return nil, err
		}
		return func(v reflect.Value) (reflect.Value, error) {
			if v.IsNil() {
				return reflect.Zero(to), nil
			}
			e, err := elem(v.Elem())
			if err != nil {
				return reflect.Value{}, err
			}
			out := reflect.New(to.Elem())
			out.Elem().Set(e)
			return out, nil
		}, nil

	case reflect.Slice:
		if from.Kind() != reflect.Slice {
			break
		}
		elem, err := f.build(from.Elem(), to.Elem(), pending)
		if err != nil {
			return nil, err
		}
		return func(v reflect.Value) (reflect.Value, error) {
			if v.IsNil() {
				return reflect.Zero(to), nil
			}
			out := reflect.MakeSlice(to, v.Len(), v.Len())
			for i := 0; i < v.Len(); i++ {
				e, err := elem(v.Index(i))
				if err != nil {
					return reflect.Value{}, err
				}
				out.Index(i).Set(e)
			}
			return out, nil
		}, nil

	case reflect.Array:
		if from.Kind() != reflect.Array || from.Len() != to.Len() {
			break
		}
		elem, err := f.build(from.Elem(), to.Elem(), pending)
		if err != nil {
			return nil, err
		}
		return func(v reflect.Value) (reflect.Value, error) {
			out := reflect.New(to).Elem()
			for i := 0; i < v.Len(); i++ {
				e, err := elem(v.Index(i))
				if err != nil {
					return reflect.Value{}, err
				}
				out.Index(i).Set(e)
			}
			return out, nil
		}, nil

	case reflect.Map:
		if from.Kind() != reflect.Map {
			break
		}
		keyConv, err := f.build(from.Key(), to.Key(), pending)
		if err != nil {
			return nil, err
		}
		elem, err := f.build(from.Elem(), to.Elem(), pending)
		if err != nil {
			return nil, err
		}
		return func(v reflect.Value) (reflect.Value, error) {
			if v.IsNil() {
				return reflect.Zero(to), nil
			}
			out := reflect.MakeMapWithSize(to, v.Len())
			iter := v.MapRange()
			for iter.Next() {
				k, err := keyConv(iter.Key())
				if err != nil {
					return reflect.Value{}, err
				}
				e, err := elem(iter.Value())
				if err != nil {
					return reflect.Value{}, err
				}
				out.SetMapIndex(k, e)
			}
			return out, nil
		}, nil

	case reflect.Struct:
		if from.Kind() != reflect.Struct {
			break
		}
		return f.structConverter(from, to, pending)

	case reflect.Func:
		if from.Kind() != reflect.Func {
			break
		}
		return f.funcConverter(from, to, pending)
	}

	return nil, &MarshalError{From: from, To: to, Reason: "incompatible shapes"}
}

// fromInterface converts using the dynamic type held by the interface.
func (f *Factory) fromInterface(from, to reflect.Type) converter {
	return func(v reflect.Value) (reflect.Value, error) {
		if v.IsNil() {
			return reflect.Zero(to), nil
		}
		inner := v.Elem()
		c, err := f.converter(inner.Type(), to)
		if err != nil {
			return reflect.Value{}, err
		}
		return c(inner)
	}
}

type fieldConv struct {
	from, to int
	conv     converter
}

// structConverter matches exported fields by name. Destination fields with no
// source are left at their zero value.
func (f *Factory) structConverter(from, to reflect.Type, pending map[convKey]*converter) (converter, error) {
	var fields []fieldConv
	for i := 0; i < to.NumField(); i++ {
		dst := to.Field(i)
		if !dst.IsExported() {
			continue
		}
		src, ok := from.FieldByName(dst.Name)
		if !ok || !src.IsExported() || len(src.Index) != 1 {
			continue
		}
		c, err := f.build(src.Type, dst.Type, pending)
		if err != nil {
			return nil, &MarshalError{From: from, To: to, Reason: fmt.Sprintf("field %s: %v", dst.Name, err)}
		}
		fields = append(fields, fieldConv{from: src.Index[0], to: i, conv: c})
	}

	return func(v reflect.Value) (reflect.Value, error) {
		out := reflect.New(to).Elem()
		for _, fc := range fields {
			e, err := fc.conv(v.Field(fc.from))
			if err != nil {
				return reflect.Value{}, err
			}
			out.Field(fc.to).Set(e)
		}
		return out, nil
	}, nil
}

// funcConverter wraps a func so it can be called with the caller's types.
// Arguments flow from the wrapper's signature into fn's, results flow back.
func (f *Factory) funcConverter(from, to reflect.Type, pending map[convKey]*converter) (converter, error) {
	if from.NumIn() != to.NumIn() || from.NumOut() != to.NumOut() || from.IsVariadic() != to.IsVariadic() {
		return nil, &MarshalError{From: from, To: to, Reason: "signatures differ in arity"}
	}

	args := make([]converter, to.NumIn())
	for i := range args {
		c, err := f.build(to.In(i), from.In(i), pending)
		if err != nil {
			return nil, &MarshalError{From: from, To: to, Reason: fmt.Sprintf("argument %d: %v", i, err)}
		}
		args[i] = c
	}
	results := make([]converter, to.NumOut())
	for i := range results {
		c, err := f.build(from.Out(i), to.Out(i), pending)
		if err != nil {
			return nil, &MarshalError{From: from, To: to, Reason: fmt.Sprintf("result %d: %v", i, err)}
		}
		results[i] = c
	}

	variadic := from.IsVariadic()
	return func(fn reflect.Value) (reflect.Value, error) {
		if fn.IsNil() {
			return reflect.Zero(to), nil
		}
		return reflect.MakeFunc(to, func(in []reflect.Value) []reflect.Value {
			converted := make([]reflect.Value, len(in))
			for i, arg := range in {
				c, err := args[i](arg)
				if err != nil {
					panic(err)
				}
				converted[i] = c
			}

			var out []reflect.Value
			if variadic {
				out = fn.CallSlice(converted)
			} else {
				out = fn.Call(converted)
			}

			for i, r := range out {
				c, err := results[i](r)
				if err != nil {
					panic(err)
				}
				out[i] = c
			}
			return out
		}), nil
	}, nil
}
