package metrics

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// circularSentinel replaces a value already seen on the current path so a
// self-referential query body cannot recurse forever.
const circularSentinel = `"[Circular]"`

// StableSerialize renders a value as JSON with every object's keys in sorted
// order, recursively. Arrays keep their order. Two logically identical bodies
// whose maps iterate differently produce the same string, which makes the
// output usable as a cache key.
func StableSerialize(v interface{}) string {
	var sb strings.Builder
	writeStable(&sb, reflect.ValueOf(v), make(map[uintptr]bool))
	return sb.String()
}

func writeStable(sb *strings.Builder, rv reflect.Value, seen map[uintptr]bool) {
	if !rv.IsValid() {
		sb.WriteString("null")
		return
	}

	switch rv.Kind() {
	case reflect.Interface, reflect.Ptr:
		if rv.IsNil() {
			sb.WriteString("null")
			return
		}
		if rv.Kind() == reflect.Ptr {
			addr := rv.Pointer()
			if seen[addr] {
				sb.WriteString(circularSentinel)
				return
			}
			seen[addr] = true
			defer delete(seen, addr)
		}
		writeStable(sb, rv.Elem(), seen)

	case reflect.Map:
		addr := rv.Pointer()
		if seen[addr] {
			sb.WriteString(circularSentinel)
			return
		}
		seen[addr] = true
		defer delete(seen, addr)

		keys := make([]string, 0, rv.Len())
		byKey := make(map[string]reflect.Value, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k := fmt.Sprintf("%v", iter.Key().Interface())
			keys = append(keys, k)
			byKey[k] = iter.Value()
		}
		sort.Strings(keys)

		sb.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				sb.WriteByte(',')
			}
			kj, _ := json.Marshal(k)
			sb.Write(kj)
			sb.WriteByte(':')
			writeStable(sb, byKey[k], seen)
		}
		sb.WriteByte('}')

	case reflect.Slice:
		if rv.IsNil() {
			sb.WriteString("null")
			return
		}
		addr := rv.Pointer()
		if seen[addr] {
			sb.WriteString(circularSentinel)
			return
		}
		seen[addr] = true
		defer delete(seen, addr)
		writeStableArray(sb, rv, seen)

	case reflect.Array:
		writeStableArray(sb, rv, seen)

	case reflect.Struct:
		// Round-trip through encoding/json so tags and omitempty apply, then
		// re-sort the resulting map.
		raw, err := json.Marshal(rv.Interface())
		if err != nil {
			sb.WriteString("null")
			return
		}
		var decoded interface{}
		if err := json.Unmarshal(raw, &decoded); err != nil {
			sb.Write(raw)
			return
		}
		writeStable(sb, reflect.ValueOf(decoded), seen)

	default:
		raw, err := json.Marshal(rv.Interface())
		if err != nil {
			sb.WriteString("null")
			return
		}
		sb.Write(raw)
	}
}

func writeStableArray(sb *strings.Builder, rv reflect.Value, seen map[uintptr]bool) {
	sb.WriteByte('[')
	for i := 0; i < rv.Len(); i++ {
		if i > 0 {
			sb.WriteByte(',')
		}
		writeStable(sb, rv.Index(i), seen)
	}
	sb.WriteByte(']')
}
