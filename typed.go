// SPDX-License-Identifier: Apache-2.0

package inventory

import (
	"encoding"
	"fmt"
	"reflect"
	"strings"

	"github.com/goccy/go-yaml"
)

// TagKind identifies which inv struct tag directive had an error.
type TagKind int

const (
	// UnknownTag indicates an unknown or unsupported inv tag directive.
	UnknownTag TagKind = iota
	// LeafTag indicates an error with inv:"leaf" directive.
	LeafTag
	// FieldTag indicates an error with inv:"field=..." directive or the
	// segment a field name produces.
	FieldTag
)

func (k TagKind) String() string {
	switch k {
	case UnknownTag:
		return "unknown"
	case LeafTag:
		return "leaf"
	case FieldTag:
		return "field"
	default:
		return fmt.Sprintf("TagKind(%d)", k)
	}
}

// InvalidTagError is returned when an inv struct tag contains an invalid directive or value.
type InvalidTagError struct {
	// Kind indicates which inv tag directive had the error.
	Kind TagKind
	// FieldName is the struct field name where the error occurred.
	FieldName string
	// Value is the invalid value (e.g., the rejected segment).
	Value string
	// Message provides details about what went wrong.
	Message string
}

func (e *InvalidTagError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("field %s: invalid %s tag: %s (value: %q)",
			e.FieldName, e.Kind.String(), e.Message, e.Value)
	}
	return fmt.Sprintf("field %s: invalid %s tag: %s",
		e.FieldName, e.Kind.String(), e.Message)
}

func (e *InvalidTagError) Is(target error) bool {
	return target == ErrInvalidTag
}

// Layout maps the fields of struct type T onto inventory paths.
//
// Every exported field becomes one path segment below the layout's prefix.
// Struct fields are descended into, so each of their fields gets its own item;
// every other field is written whole as the value of its item.
//
// Struct tag format:
//   - inv:"leaf" - write a struct field whole instead of descending into it
//   - inv:"field=name" - overrides field name detection
//   - inv:"-" - skip the field
//
// Field names are detected from yaml, json, and toml struct tags, in that
// order, falling back to the lower-cased Go name. Each name must be a legal
// path segment. Leaf values are encoded with github.com/goccy/go-yaml, so
// their own fields follow yaml and json tags.
//
// Example:
//
//	type Player struct {
//		Gold  int            `yaml:"gold"`
//		Stats Stats          `yaml:"stats"`
//		Bag   map[string]int `yaml:"bag"`
//		Pos   Vec            `yaml:"pos" inv:"leaf"`
//	}
//
//	layout, _ := NewLayout[Player]()
//	patch, _ := layout.Patch("/player", p) // /player/gold, /player/stats/hp, /player/bag, /player/pos
type Layout[T any] struct {
	fields []*fieldLayout
}

type fieldLayout struct {
	// goName is the struct field name, for errors.
	goName string
	// segment is the path segment of the field.
	segment string
	index   []int
	// children is nil for leaves.
	children []*fieldLayout
}

var textMarshalerType = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()

// NewLayout creates a [Layout] from type T's struct tags.
//
// Returns an error if T is not a struct or if struct tags contain invalid
// directives or produce illegal or duplicate segments.
func NewLayout[T any]() (*Layout[T], error) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: layout type must be a struct, got %s", ErrInvalidArgument, t)
	}
	fields, err := buildLayout(t, map[reflect.Type]bool{})
	if err != nil {
		return nil, err
	}
	return &Layout[T]{fields: fields}, nil
}

// buildLayout recursively builds the field layouts of a struct type.
// Types already being built are treated as leaves, which ends recursion on
// self-referencing types.
func buildLayout(t reflect.Type, building map[reflect.Type]bool) ([]*fieldLayout, error) {
	building[t] = true
	defer delete(building, t)

	var fields []*fieldLayout
	seen := make(map[string]string)
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		tag := field.Tag.Get("inv")
		if tag == "-" {
			continue
		}
		leaf, err := parseInvTag(tag, field.Name)
		if err != nil {
			return nil, err
		}

		segment, err := getFieldName(field)
		if err != nil {
			return nil, err
		}
		if !IsLegalSegment(segment, false) {
			return nil, &InvalidTagError{
				Kind:      FieldTag,
				FieldName: field.Name,
				Value:     segment,
				Message:   "not a legal path segment",
			}
		}
		if other, dup := seen[segment]; dup {
			return nil, &InvalidTagError{
				Kind:      FieldTag,
				FieldName: field.Name,
				Value:     segment,
				Message:   fmt.Sprintf("segment already used by field %s", other),
			}
		}
		seen[segment] = field.Name

		layout := &fieldLayout{goName: field.Name, segment: segment, index: field.Index}

		fieldType := field.Type
		if fieldType.Kind() == reflect.Ptr {
			fieldType = fieldType.Elem()
		}
		if !leaf && descendable(fieldType) && !building[fieldType] {
			children, err := buildLayout(fieldType, building)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", field.Name, err)
			}
			layout.children = children
			if layout.children == nil {
				layout.children = []*fieldLayout{}
			}
		}

		fields = append(fields, layout)
	}
	return fields, nil
}

// descendable reports whether a struct type is split into items. Structs
// with a text form, such as time.Time, are written whole.
func descendable(t reflect.Type) bool {
	if t.Kind() != reflect.Struct {
		return false
	}
	return !t.Implements(textMarshalerType) && !reflect.PointerTo(t).Implements(textMarshalerType)
}

// getFieldName extracts the path segment from struct tags.
// Priority: inv:field override > yaml > json > toml > lower-cased field name.
func getFieldName(field reflect.StructField) (string, error) {
	if invTag := field.Tag.Get("inv"); invTag != "" {
		fieldName, err := extractFieldDirective(invTag, field.Name)
		if err != nil {
			return "", err
		}
		if fieldName != "" {
			return fieldName, nil
		}
	}

	for _, tagName := range []string{"yaml", "json", "toml"} {
		if tag := field.Tag.Get(tagName); tag != "" && tag != "-" {
			// Handle "name,omitempty,inline" format - take first part
			if idx := strings.Index(tag, ","); idx != -1 {
				tag = tag[:idx]
			}
			if tag != "" {
				return tag, nil
			}
		}
	}

	return strings.ToLower(field.Name), nil
}

// extractFieldDirective extracts the field=name directive from an inv tag.
func extractFieldDirective(invTag, goName string) (string, error) {
	for _, part := range strings.Split(invTag, ",") {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, "field=") {
			fieldName := strings.TrimPrefix(part, "field=")
			if fieldName == "" {
				return "", &InvalidTagError{
					Kind:      FieldTag,
					FieldName: goName,
					Value:     part,
					Message:   "field name cannot be empty",
				}
			}
			return fieldName, nil
		}
	}
	return "", nil
}

// parseInvTag parses the inv struct tag and reports whether the field is a leaf.
func parseInvTag(tag, goName string) (bool, error) {
	if tag == "" {
		return false, nil
	}
	leaf := false
	for _, part := range strings.Split(tag, ",") {
		part = strings.TrimSpace(part)
		switch {
		case part == "leaf":
			if leaf {
				return false, &InvalidTagError{
					Kind:      LeafTag,
					FieldName: goName,
					Message:   "leaf given more than once",
				}
			}
			leaf = true
		case strings.HasPrefix(part, "field="):
			// handled in getFieldName
		default:
			return false, &InvalidTagError{
				Kind:      UnknownTag,
				FieldName: goName,
				Value:     part,
				Message:   "unknown inv tag directive",
			}
		}
	}
	return leaf, nil
}

// Patch flattens v into a patch below prefix. Nil pointers write nothing.
func (l *Layout[T]) Patch(prefix string, v T) (Patch, error) {
	if err := ValidatePath(prefix); err != nil {
		return nil, err
	}
	base := strings.TrimSuffix(prefix, Separator)

	patch := Patch{}
	if err := flattenFields(patch, base, reflect.ValueOf(v), l.fields); err != nil {
		return nil, err
	}
	return patch, nil
}

func flattenFields(patch Patch, base string, rv reflect.Value, fields []*fieldLayout) error {
	for _, f := range fields {
		fv := rv.FieldByIndex(f.index)
		if fv.Kind() == reflect.Ptr {
			if fv.IsNil() {
				continue
			}
			fv = fv.Elem()
		}
		path := base + Separator + f.segment

		if f.children != nil {
			if err := flattenFields(patch, path, fv, f.children); err != nil {
				return err
			}
			continue
		}

		value, err := encodeLeaf(fv.Interface())
		if err != nil {
			return fmt.Errorf("field %s: %w", f.goName, err)
		}
		patch[path] = value
	}
	return nil
}

func encodeLeaf(x any) (Value, error) {
	data, err := yaml.Marshal(x)
	if err != nil {
		return Value{}, &MarshalError{Err: err, DocIndex: -1}
	}
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Value{}, &MarshalError{Err: err, DocIndex: -1}
	}
	return FromAny(raw)
}

// Decode reads the subtree at prefix into a T.
//
// Document keys without a matching field are ignored, and fields without a
// matching key keep their zero value.
func (l *Layout[T]) Decode(inv *Inventory, prefix string) (T, error) {
	var out T
	item, err := inv.FindItem(prefix)
	if err != nil {
		return out, err
	}
	doc, err := item.ConstructDocument()
	if err != nil {
		return out, err
	}
	if err := decodeFields(reflect.ValueOf(&out).Elem(), doc, l.fields); err != nil {
		return out, fmt.Errorf("decode %s: %w", prefix, err)
	}
	return out, nil
}

func decodeFields(rv reflect.Value, doc Value, fields []*fieldLayout) error {
	for _, f := range fields {
		sub, ok := doc.Get(f.segment)
		if !ok || sub.IsNull() {
			continue
		}
		fv := rv.FieldByIndex(f.index)
		if fv.Kind() == reflect.Ptr {
			if fv.IsNil() {
				fv.Set(reflect.New(fv.Type().Elem()))
			}
			fv = fv.Elem()
		}

		if f.children != nil {
			if !IsObject(sub) {
				return fmt.Errorf("field %s: %w: got %s", f.goName, ErrNotObject, sub.Kind())
			}
			if err := decodeFields(fv, sub, f.children); err != nil {
				return err
			}
			continue
		}

		// JSON text is valid YAML, and goccy honors the same tags used to encode.
		data, err := sub.MarshalJSON()
		if err != nil {
			return fmt.Errorf("field %s: %w", f.goName, err)
		}
		if err := yaml.Unmarshal(data, fv.Addr().Interface()); err != nil {
			return fmt.Errorf("field %s: %w: %w", f.goName, ErrMarshal, err)
		}
	}
	return nil
}
