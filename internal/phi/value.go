package phi

import (
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Kind enumerates the closed set of structured value shapes the redaction
// engine understands.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindIdentifier
	KindMap
	KindSequence
)

// Value is a structured log/context value. Converting arbitrary Go values
// into this closed variant set happens once, at the boundary (FromAny), so
// the structure redactor is a single recursive match instead of scattered
// runtime type inspection. Values are never mutated after construction.
type Value struct {
	kind Kind
	b    bool
	num  float64
	str  string
	id   uuid.UUID
	m    map[string]Value
	seq  []Value
}

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

// Identifier returns the identifier payload; only meaningful for
// KindIdentifier.
func (v Value) Identifier() uuid.UUID { return v.id }

// FromAny converts an arbitrary Go value into a Value. Unrecognized types
// are stringified; the conversion never fails.
func FromAny(v any) Value {
	switch val := v.(type) {
	case nil:
		return Value{kind: KindNull}
	case bool:
		return Value{kind: KindBool, b: val}
	case string:
		return Value{kind: KindString, str: val}
	case uuid.UUID:
		return Value{kind: KindIdentifier, id: val}
	case int:
		return Value{kind: KindNumber, num: float64(val)}
	case int8:
		return Value{kind: KindNumber, num: float64(val)}
	case int16:
		return Value{kind: KindNumber, num: float64(val)}
	case int32:
		return Value{kind: KindNumber, num: float64(val)}
	case int64:
		return Value{kind: KindNumber, num: float64(val)}
	case uint:
		return Value{kind: KindNumber, num: float64(val)}
	case uint8:
		return Value{kind: KindNumber, num: float64(val)}
	case uint16:
		return Value{kind: KindNumber, num: float64(val)}
	case uint32:
		return Value{kind: KindNumber, num: float64(val)}
	case uint64:
		return Value{kind: KindNumber, num: float64(val)}
	case float32:
		return Value{kind: KindNumber, num: float64(val)}
	case float64:
		return Value{kind: KindNumber, num: val}
	case time.Time:
		return Value{kind: KindString, str: val.Format(time.RFC3339)}
	case map[string]any:
		m := make(map[string]Value, len(val))
		for k, item := range val {
			m[k] = FromAny(item)
		}
		return Value{kind: KindMap, m: m}
	case map[string]string:
		m := make(map[string]Value, len(val))
		for k, item := range val {
			m[k] = Value{kind: KindString, str: item}
		}
		return Value{kind: KindMap, m: m}
	case []any:
		seq := make([]Value, len(val))
		for i, item := range val {
			seq[i] = FromAny(item)
		}
		return Value{kind: KindSequence, seq: seq}
	case []string:
		seq := make([]Value, len(val))
		for i, item := range val {
			seq[i] = Value{kind: KindString, str: item}
		}
		return Value{kind: KindSequence, seq: seq}
	case []byte:
		return Value{kind: KindString, str: string(val)}
	case error:
		return Value{kind: KindString, str: val.Error()}
	case fmt.Stringer:
		return Value{kind: KindString, str: val.String()}
	default:
		return fromReflect(val)
	}
}

// fromReflect catches typed containers the switch above does not enumerate
// (map[string]int, []map[string]any, [2]float64). A string-keyed map or a
// slice must convert to its structured variant: stringifying it would carry
// PHI-keyed values past the structure redactor. Everything else is
// stringified.
func fromReflect(v any) Value {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			m := make(map[string]Value, rv.Len())
			iter := rv.MapRange()
			for iter.Next() {
				m[iter.Key().String()] = FromAny(iter.Value().Interface())
			}
			return Value{kind: KindMap, m: m}
		}
	case reflect.Slice, reflect.Array:
		seq := make([]Value, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			seq[i] = FromAny(rv.Index(i).Interface())
		}
		return Value{kind: KindSequence, seq: seq}
	}
	return Value{kind: KindString, str: fmt.Sprint(v)}
}

// Any converts a Value back to its plain Go form (map[string]any, []any,
// scalars). Identifiers come back as their canonical string.
func (v Value) Any() any {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindNumber:
		return v.num
	case KindString:
		return v.str
	case KindIdentifier:
		return v.id.String()
	case KindMap:
		m := make(map[string]any, len(v.m))
		for k, item := range v.m {
			m[k] = item.Any()
		}
		return m
	case KindSequence:
		seq := make([]any, len(v.seq))
		for i, item := range v.seq {
			seq[i] = item.Any()
		}
		return seq
	default:
		return nil
	}
}

// String renders a scalar Value for key=value output. Maps and sequences are
// rendered by the safe logger via JSON instead.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindString:
		return v.str
	case KindIdentifier:
		return v.id.String()
	default:
		return fmt.Sprint(v.Any())
	}
}
