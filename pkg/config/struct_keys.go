package config

import (
	"reflect"
	"strings"
)

const sep = "."

// GetStructKeys returns all keys in a nested struct, taking the name from the tag name or the
// field name.  It handles an additional suffix squashValue like mapstructure does: if present
// on an embedded struct, name components for that embedded struct should not be included.  It
// does not handle maps, does chase pointers, but does not check for loops in nesting.
func GetStructKeys(typ reflect.Type, tag, squashValue string) []string {
	return appendStructKeys(typ, tag, ","+squashValue, nil, nil)
}

func appendStructKeys(typ reflect.Type, tag, squashValue string, prefix []string, keys []string) []string {
	// finite loop: Go types are well-founded.
	for ; typ.Kind() == reflect.Ptr; typ = typ.Elem() {
	}

	if typ.Kind() != reflect.Struct {
		return append(keys, strings.Join(prefix, sep))
	}

	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		name, squash := fieldName(field, tag, squashValue)
		key := make([]string, len(prefix))
		copy(key, prefix)
		if !squash {
			key = append(key, name)
		}
		keys = appendStructKeys(field.Type, tag, squashValue, key, keys)
	}
	return keys
}

// ValidateMissingRequiredKeys returns the keys of fields tagged `validate:"required"` that hold
// their zero value.  Keys are named like GetStructKeys names them.
func ValidateMissingRequiredKeys(value interface{}, tag, squashValue string) []string {
	return appendMissingRequiredKeys(reflect.ValueOf(value), tag, ","+squashValue, nil, nil)
}

func appendMissingRequiredKeys(value reflect.Value, tag, squashValue string, prefix []string, missing []string) []string {
	for value.Kind() == reflect.Ptr {
		if value.IsNil() {
			return missing
		}
		value = value.Elem()
	}
	if value.Kind() != reflect.Struct {
		return missing
	}

	typ := value.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		name, squash := fieldName(field, tag, squashValue)
		key := make([]string, len(prefix))
		copy(key, prefix)
		if !squash {
			key = append(key, name)
		}
		fieldValue := value.Field(i)
		if field.Tag.Get("validate") == "required" && fieldValue.IsZero() {
			missing = append(missing, strings.Join(key, sep))
			continue
		}
		missing = appendMissingRequiredKeys(fieldValue, tag, squashValue, key, missing)
	}
	return missing
}

func fieldName(field reflect.StructField, tag, squashValue string) (string, bool) {
	name, ok := field.Tag.Lookup(tag)
	if !ok {
		return field.Name, false
	}
	if strings.HasSuffix(name, squashValue) {
		return strings.TrimSuffix(name, squashValue), true
	}
	return name, false
}
