package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// Strings is a list of strings that can be configured either as a YAML list or as one
// comma-separated value (handy in environment variables).  Entries are trimmed and empty
// entries are dropped.
type Strings []string

var (
	stringsType      = reflect.TypeOf(Strings{})
	secureStringType = reflect.TypeOf(SecureString(""))
	stringType       = reflect.TypeOf("")

	ErrMustBeString = errors.New("must be a string")
)

// DecodeStrings is a mapstructure.HookFuncType that decodes a string or a list into Strings.
func DecodeStrings(fromValue reflect.Value, toValue reflect.Value) (interface{}, error) {
	if toValue.Type() != stringsType {
		return fromValue.Interface(), nil
	}
	var parts []string
	switch v := fromValue.Interface().(type) {
	case string:
		parts = strings.Split(v, ",")
	case []string:
		parts = v
	case []interface{}:
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w, list holds a %T", ErrMustBeString, item)
			}
			parts = append(parts, s)
		}
	default:
		return fromValue.Interface(), nil
	}
	out := make(Strings, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

// SecureString holds a secret.  It prints elided, so a Config can be logged as is.
type SecureString string

func (SecureString) String() string {
	return "[SECRET]"
}

// SecureValue returns the actual secret.
func (s SecureString) SecureValue() string {
	return string(s)
}

func (s SecureString) MarshalText() ([]byte, error) {
	if s == "" {
		return []byte(""), nil
	}
	return []byte("[SECRET]"), nil
}

// DecodeSecureString is a mapstructure.HookFuncType that refuses to build a SecureString from
// anything but a string: YAML would otherwise read an all-digit key as a number and lose its
// leading zeros.
func DecodeSecureString(fromValue reflect.Value, toValue reflect.Value) (interface{}, error) {
	if toValue.Type() != secureStringType {
		return fromValue.Interface(), nil
	}
	if fromValue.Type() != stringType {
		return nil, fmt.Errorf("%w, not a %s", ErrMustBeString, fromValue.Type())
	}
	return SecureString(fromValue.String()), nil
}
