package command

import (
	"fmt"
	"reflect"
	"strings"
)

const bindingsHeader = `// This file was generated by arca-bindgen from the core command
// schema. Do not edit by hand; regenerate after changing the schema.

`

// Bindings renders the client-visible TypeScript declaration of the
// command union. Output is deterministic: variants appear in published
// order and fields in struct order, so regeneration is diff-stable.
func Bindings() string {
	var b strings.Builder
	b.WriteString(bindingsHeader)
	b.WriteString("export type ClientCommand =\n")
	for i, s := range specs {
		b.WriteString(fmt.Sprintf("  | { key: %q, params: %s }", s.Key, tsShape(s.NewParams())))
		if i == len(specs)-1 {
			b.WriteString(";")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// tsShape renders the params struct as a TypeScript object type.
func tsShape(proto any) string {
	t := reflect.TypeOf(proto)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	var fields []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := jsonName(f)
		if name == "" {
			continue
		}
		fields = append(fields, fmt.Sprintf("%s: %s", name, tsType(f.Type)))
	}
	if len(fields) == 0 {
		return "{}"
	}
	return "{ " + strings.Join(fields, ", ") + " }"
}

func jsonName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if tag == "-" {
		return ""
	}
	if idx := strings.Index(tag, ","); idx >= 0 {
		tag = tag[:idx]
	}
	if tag == "" {
		return f.Name
	}
	return tag
}

func tsType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Pointer:
		return tsType(t.Elem()) + " | null"
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return "number"
	default:
		return "unknown"
	}
}
