package usecases

import (
	"fmt"
	"reflect"

	"github.com/recipeflow/recipeflow/internal/core/run"
	"github.com/recipeflow/recipeflow/internal/core/step"
)

// evalPredicate tests a predicate against the current bindings. exists and
// truthy tolerate a missing binding; comparison operators require one.
func evalPredicate(p *step.Predicate, scope *run.Scope) (bool, error) {
	v, ok := scope.Lookup(p.Var)
	switch p.Op {
	case step.OpExists:
		return ok, nil
	case step.OpTruthy:
		return ok && truthy(v), nil
	}
	if !ok {
		return false, fmt.Errorf("predicate var %q: %w", p.Var, run.ErrUnknownBinding)
	}
	switch p.Op {
	case step.OpEq:
		return looseEqual(v, p.Value), nil
	case step.OpNe:
		return !looseEqual(v, p.Value), nil
	case step.OpGt, step.OpLt, step.OpGte, step.OpLte:
		a, aok := toFloat(v)
		b, bok := toFloat(p.Value)
		if !aok || !bok {
			return false, fmt.Errorf("predicate %s on %q: operands are not numeric", p.Op, p.Var)
		}
		switch p.Op {
		case step.OpGt:
			return a > b, nil
		case step.OpLt:
			return a < b, nil
		case step.OpGte:
			return a >= b, nil
		default:
			return a <= b, nil
		}
	default:
		return false, fmt.Errorf("predicate op %q: %w", p.Op, run.ErrEngineFault)
	}
}

// truthy follows the usual dynamic-value convention: false, zero, empty
// string and empty collections are falsy.
func truthy(v interface{}) bool {
	if v == nil {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t != ""
	}
	if f, ok := toFloat(v); ok {
		return f != 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	case reflect.Ptr, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}

// looseEqual compares numerics by value regardless of Go type, so a YAML
// int binding matches a float predicate value; everything else falls back
// to deep equality.
func looseEqual(a, b interface{}) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return reflect.DeepEqual(a, b)
}

// toFloat coerces the numeric types that reach bindings from YAML, JSON
// and msgpack decoding.
func toFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int8:
		return float64(t), true
	case int16:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint8:
		return float64(t), true
	case uint16:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	default:
		return 0, false
	}
}

// toFloatMap coerces a factor map out of a capability output field.
func toFloatMap(v interface{}) map[string]float64 {
	switch t := v.(type) {
	case map[string]float64:
		return t
	case map[string]interface{}:
		out := make(map[string]float64, len(t))
		for k, raw := range t {
			f, ok := toFloat(raw)
			if !ok {
				return nil
			}
			out[k] = f
		}
		return out
	default:
		return nil
	}
}

// asList coerces a foreach source binding into a slice of items.
func asList(v interface{}) ([]interface{}, error) {
	if v == nil {
		return nil, run.ErrSourceNotList
	}
	if items, ok := v.([]interface{}); ok {
		return items, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, run.ErrSourceNotList
	}
	out := make([]interface{}, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}
