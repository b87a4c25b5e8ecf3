package abi

import (
	"crypto/sha256"
	"fmt"
	"reflect"
	"strings"
	"sync"
)

var layoutToken = sync.OnceValue(func() [32]byte {
	return sha256.Sum256([]byte(LayoutDescriptor()))
})

// LayoutToken is a digest of the canonical layout of every type that crosses the
// boundary. Two builds agree on it only when they agree on every type's field order,
// field names, wire names and scalar widths.
func LayoutToken() [32]byte {
	return layoutToken()
}

// LayoutDescriptor renders the canonical layout description the token is computed
// from.
func LayoutDescriptor() string {
	var b strings.Builder
	for _, v := range exposedTypes {
		t := reflect.TypeOf(v)
		fmt.Fprintf(&b, "%s = ", t.Name())
		describeStruct(&b, t)
		b.WriteByte('\n')
	}
	return b.String()
}

func describeStruct(b *strings.Builder, t reflect.Type) {
	b.WriteString("struct{")
	for i := range t.NumField() {
		f := t.Field(i)
		if i > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(b, "%s %q ", f.Name, f.Tag.Get("json"))
		describeType(b, f.Type)
	}
	b.WriteString("}")
}

func describeType(b *strings.Builder, t reflect.Type) {
	switch t.Kind() {
	case reflect.Bool, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Float32, reflect.Float64:
		fmt.Fprintf(b, "%s(%d)", t.Kind(), t.Size())
	case reflect.String:
		if t.Name() != "" && t.Name() != "string" {
			fmt.Fprintf(b, "%s:", t.Name())
		}
		b.WriteString("string")
	case reflect.Slice:
		if t.Name() != "" {
			fmt.Fprintf(b, "%s:", t.Name())
		}
		b.WriteString("[]")
		describeType(b, t.Elem())
	case reflect.Array:
		fmt.Fprintf(b, "[%d]", t.Len())
		describeType(b, t.Elem())
	case reflect.Pointer:
		b.WriteString("*")
		describeType(b, t.Elem())
	case reflect.Struct:
		// Named structs are described at top level; reference them by name.
		b.WriteString(t.Name())
	default:
		fmt.Fprintf(b, "<%s>", t.Kind())
	}
}
