package docstore

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// Op is a query comparison operator.
type Op string

const (
	OpEq  Op = "=="
	OpNe  Op = "!="
	OpLt  Op = "<"
	OpLte Op = "<="
	OpGt  Op = ">"
	OpGte Op = ">="
	// OpIn matches when the field equals any element of a []string value.
	OpIn Op = "in"
)

// Predicate filters a query on one field. A document lacking the field, or
// holding a value of another type, never matches.
type Predicate struct {
	Field string
	Op    Op
	Value any
}

// Where builds a predicate.
func Where(field string, op Op, value any) Predicate {
	return Predicate{Field: field, Op: op, Value: value}
}

// Validate normalizes the predicate value and rejects unsupported shapes.
func (p Predicate) Validate() (Predicate, error) {
	if p.Field == "" {
		return p, fmt.Errorf("predicate field is required")
	}
	switch p.Op {
	case OpIn:
		vals, ok := p.Value.([]string)
		if !ok {
			return p, fmt.Errorf("predicate %s in: value must be []string, got %T", p.Field, p.Value)
		}
		p.Value = append([]string(nil), vals...)
		return p, nil
	case OpEq, OpNe, OpLt, OpLte, OpGt, OpGte:
	default:
		return p, fmt.Errorf("predicate %s: unsupported operator %q", p.Field, p.Op)
	}
	v, err := NormalizeValue(p.Value)
	if err != nil {
		return p, fmt.Errorf("predicate %s: %w", p.Field, err)
	}
	if v == nil {
		return p, fmt.Errorf("predicate %s: nil value is not comparable", p.Field)
	}
	if _, isBool := v.(bool); isBool && p.Op != OpEq && p.Op != OpNe {
		return p, fmt.Errorf("predicate %s: bool supports only == and !=", p.Field)
	}
	p.Value = v
	return p, nil
}

// ValidatePredicates validates every predicate in order.
func ValidatePredicates(preds []Predicate) ([]Predicate, error) {
	out := make([]Predicate, len(preds))
	for i, p := range preds {
		v, err := p.Validate()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Matches reports whether fields satisfy every predicate. Predicates must
// already be validated.
func Matches(fields Fields, preds []Predicate) bool {
	for _, p := range preds {
		if !p.matches(fields) {
			return false
		}
	}
	return true
}

func (p Predicate) matches(fields Fields) bool {
	got, ok := fields[p.Field]
	if !ok || got == nil {
		return false
	}
	if p.Op == OpIn {
		s, isString := got.(string)
		if !isString {
			return false
		}
		for _, candidate := range p.Value.([]string) {
			if s == candidate {
				return true
			}
		}
		return false
	}
	cmp, ok := Compare(got, p.Value)
	if !ok {
		return false
	}
	switch p.Op {
	case OpEq:
		return cmp == 0
	case OpNe:
		return cmp != 0
	case OpLt:
		return cmp < 0
	case OpLte:
		return cmp <= 0
	case OpGt:
		return cmp > 0
	case OpGte:
		return cmp >= 0
	}
	return false
}

// Compare orders two normalized values of the same type. ok is false when the
// types differ or are not comparable.
func Compare(a, b any) (cmp int, ok bool) {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case int64:
		bv, ok := b.(int64)
		if !ok {
			return 0, false
		}
		return cmpOrdered(av, bv), true
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return 0, false
		}
		return cmpOrdered(av, bv), true
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return av.Compare(bv), true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		if av == bv {
			return 0, true
		}
		if !av {
			return -1, true
		}
		return 1, true
	}
	return 0, false
}

func cmpOrdered[T int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// NormalizeValue maps Go values onto the supported field types.
func NormalizeValue(v any) (any, error) {
	switch tv := v.(type) {
	case nil:
		return nil, nil
	case string, bool, int64, float64:
		return tv, nil
	case int:
		return int64(tv), nil
	case int32:
		return int64(tv), nil
	case float32:
		return float64(tv), nil
	case time.Time:
		return tv.UTC(), nil
	case *time.Time:
		if tv == nil {
			return nil, nil
		}
		return tv.UTC(), nil
	case fmt.Stringer:
		return tv.String(), nil
	}
	// Named types such as status enums.
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String(), nil
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	}
	return nil, fmt.Errorf("unsupported field type %T", v)
}

// NormalizeFields normalizes every value of f into a new map.
func NormalizeFields(f Fields) (Fields, error) {
	out := make(Fields, len(f))
	for k, v := range f {
		if k == "" {
			return nil, fmt.Errorf("empty field name")
		}
		nv, err := NormalizeValue(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		out[k] = nv
	}
	return out, nil
}

// Merge applies update onto base and returns the result.
func Merge(base, update Fields) Fields {
	out := base.Clone()
	for k, v := range update {
		out[k] = v
	}
	return out
}
