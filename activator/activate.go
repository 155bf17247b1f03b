package activator

import (
	"fmt"
	"math"
	"reflect"
	"runtime"

	"github.com/mitchellh/mapstructure"

	"github.com/isdmx/modhost/fault"
)

// Activate constructs typeName from reg using the first constructor overload
// that accepts args.
func Activate(reg *Registry, typeName string, args []any) (any, error) {
	ctors, ok := reg.constructors(typeName)
	if !ok {
		return nil, &ActivationError{Module: reg.module, Type: typeName, Err: ErrTypeNotFound}
	}

	fn, in, ok := resolve(ctors, nil, args)
	if !ok {
		return nil, &ActivationError{
			Module: reg.module,
			Type:   typeName,
			Err:    fmt.Errorf("%w: %d argument(s)", ErrNoMatchingConstructor, len(args)),
		}
	}

	out, err := invoke(fn, in, reg.module+"."+typeName)
	if err != nil {
		return nil, err
	}
	return out[0].Interface(), nil
}

// Invoke calls the exported method of obj with args. A trailing error result
// is reported as an InvocationError and stripped from the returned values.
func Invoke(obj any, method string, args []any) ([]any, error) {
	if obj == nil {
		return nil, &ActivationError{Type: method, Err: ErrMethodNotFound}
	}

	t := reflect.TypeOf(obj)
	target := fmt.Sprintf("%s.%s", t, method)

	m, ok := t.MethodByName(method)
	if !ok {
		return nil, &ActivationError{Type: target, Err: ErrMethodNotFound}
	}

	fn, in, ok := resolve([]reflect.Value{m.Func}, []reflect.Value{reflect.ValueOf(obj)}, args)
	if !ok {
		return nil, &ActivationError{
			Type: target,
			Err:  fmt.Errorf("%w: %d argument(s)", ErrNoMatchingMethod, len(args)),
		}
	}

	out, err := invoke(fn, in, target)
	if err != nil {
		return nil, err
	}

	results := make([]any, len(out))
	for i, v := range out {
		results[i] = v.Interface()
	}
	return results, nil
}

// invoke calls fn, converting a returned error or a panic into an
// InvocationError.
func invoke(fn reflect.Value, in []reflect.Value, target string) (out []reflect.Value, err error) {
	defer func() {
		if v := recover(); v != nil {
			out = nil
			err = &InvocationError{Target: target, Origin: funcOrigin(fn), Cause: fault.Recovered(v)}
		}
	}()

	if fn.Type().IsVariadic() {
		out = fn.CallSlice(in)
	} else {
		out = fn.Call(in)
	}

	t := fn.Type()
	if n := t.NumOut(); n > 0 && t.Out(n-1) == errorType {
		if callErr, _ := out[n-1].Interface().(error); callErr != nil {
			return nil, &InvocationError{Target: target, Origin: funcOrigin(fn), Cause: callErr}
		}
		out = out[:n-1]
	}
	return out, nil
}

// resolve picks the first function whose parameters accept prefix followed
// by args. Exact matches win over converted ones.
func resolve(fns, prefix []reflect.Value, args []any) (reflect.Value, []reflect.Value, bool) {
	for _, convert := range []bool{false, true} {
		for _, fn := range fns {
			bound, ok := bindArgs(fn.Type(), len(prefix), args, convert)
			if !ok {
				continue
			}
			in := make([]reflect.Value, 0, len(prefix)+len(bound))
			in = append(in, prefix...)
			in = append(in, bound...)
			return fn, in, true
		}
	}
	return reflect.Value{}, nil, false
}

// bindArgs converts args to t's parameters after the first offset. The
// variadic tail of t is bound as a single slice, nil when args has no
// elements for it, ready for reflect.Value.CallSlice.
func bindArgs(t reflect.Type, offset int, args []any, convert bool) ([]reflect.Value, bool) {
	params := t.NumIn() - offset
	fixed := params
	if t.IsVariadic() {
		fixed--
		if len(args) < fixed {
			return nil, false
		}
	} else if len(args) != params {
		return nil, false
	}

	in := make([]reflect.Value, 0, params)
	for i, arg := range args[:fixed] {
		v, ok := bindArg(arg, t.In(offset+i), convert)
		if !ok {
			return nil, false
		}
		in = append(in, v)
	}

	if !t.IsVariadic() {
		return in, true
	}

	st := t.In(t.NumIn() - 1)
	rest := args[fixed:]
	if len(rest) == 0 {
		return append(in, reflect.Zero(st)), true
	}

	tail := reflect.MakeSlice(st, len(rest), len(rest))
	for i, arg := range rest {
		v, ok := bindArg(arg, st.Elem(), convert)
		if !ok {
			return nil, false
		}
		tail.Index(i).Set(v)
	}
	return append(in, tail), true
}

func bindArg(arg any, pt reflect.Type, convert bool) (reflect.Value, bool) {
	if arg == nil {
		if nillable(pt.Kind()) {
			return reflect.Zero(pt), true
		}
		return reflect.Value{}, false
	}

	v := reflect.ValueOf(arg)
	if v.Type().AssignableTo(pt) {
		return v, true
	}
	if !convert || !lossless(v, pt) {
		return reflect.Value{}, false
	}

	out := reflect.New(pt)
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      out.Interface(),
		TagName:     "json",
		ErrorUnused: true,
	})
	if err != nil {
		return reflect.Value{}, false
	}
	if err := dec.Decode(arg); err != nil {
		return reflect.Value{}, false
	}
	return out.Elem(), true
}

// lossless rejects fractional numbers bound to integer parameters and
// integers that overflow the parameter type.
func lossless(v reflect.Value, pt reflect.Type) bool {
	target := reflect.New(pt).Elem()

	switch {
	case isFloat(v.Kind()):
		if isInt(pt.Kind()) || isUint(pt.Kind()) {
			f := v.Float()
			return f == math.Trunc(f)
		}
	case isInt(v.Kind()):
		i := v.Int()
		switch {
		case isInt(pt.Kind()):
			return !target.OverflowInt(i)
		case isUint(pt.Kind()):
			return i >= 0 && !target.OverflowUint(uint64(i))
		}
	case isUint(v.Kind()):
		u := v.Uint()
		switch {
		case isInt(pt.Kind()):
			return u <= math.MaxInt64 && !target.OverflowInt(int64(u))
		case isUint(pt.Kind()):
			return !target.OverflowUint(u)
		}
	}
	return true
}

func isInt(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

func isUint(k reflect.Kind) bool {
	switch k {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

func isFloat(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}

func nillable(k reflect.Kind) bool {
	switch k {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
		return true
	}
	return false
}

func funcOrigin(fn reflect.Value) string {
	f := runtime.FuncForPC(fn.Pointer())
	if f == nil {
		return ""
	}
	file, line := f.FileLine(f.Entry())
	return fmt.Sprintf("%s:%d", file, line)
}
