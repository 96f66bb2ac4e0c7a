package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/turtacn/marketguard/pkg/constants"
)

// digestBytes keeps 128 bits of the SHA-256 sum.
const digestBytes = 16

// NamedArgs carries keyword-style arguments. Key order never affects the
// derived key.
type NamedArgs map[string]any

// KeyDerivationError reports an argument that cannot be canonically encoded.
type KeyDerivationError struct {
	Index int
	Type  string
	Err   error
}

func (e *KeyDerivationError) Error() string {
	return fmt.Sprintf("cache key: argument %d (%s) is not serialisable: %v", e.Index, e.Type, e.Err)
}

func (e *KeyDerivationError) Unwrap() error { return e.Err }

// DeriveKey builds the storage key for one invocation of name with args.
// Equal inputs always give equal keys, across processes and restarts.
func DeriveKey(prefix, name string, args ...any) (string, error) {
	parts := make([]string, 0, len(args)+2)
	if prefix != "" {
		parts = append(parts, prefix)
	}
	if name != "" {
		parts = append(parts, name)
	}
	for i, arg := range args {
		s, err := normalize(arg)
		if err != nil {
			return "", &KeyDerivationError{Index: i, Type: fmt.Sprintf("%T", arg), Err: err}
		}
		if s != "" {
			parts = append(parts, s)
		}
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, constants.KeySeparator)))
	digest := hex.EncodeToString(sum[:digestBytes])

	segments := []string{constants.CacheKeyPrefix}
	if prefix != "" {
		segments = append(segments, prefix)
	}
	return strings.Join(append(segments, digest), constants.KeySeparator), nil
}

// PrefixPattern is the glob matching every key stored under prefix.
func PrefixPattern(prefix string) string {
	return constants.CacheKeyPrefix + constants.KeySeparator + prefix + constants.KeySeparator + "*"
}

// maxDepth bounds recursion through nested and self-referencing values.
const maxDepth = 32

var jsonMarshalerType = reflect.TypeOf((*json.Marshaler)(nil)).Elem()

// normalize turns a composite value into canonical JSON and anything else
// into its fmt.Sprint form. Struct fields are read by reflection, unexported
// ones included, so values that differ only in hidden state never share a key.
func normalize(arg any) (string, error) {
	if arg == nil {
		return fmt.Sprint(arg), nil
	}

	v := reflect.ValueOf(arg)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return fmt.Sprint(nil), nil
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		tree, err := canonical(v, 0)
		if err != nil {
			return "", err
		}
		b, err := json.Marshal(tree)
		if err != nil {
			return "", err
		}
		return string(b), nil
	case reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return "", fmt.Errorf("unsupported kind %s", v.Kind())
	default:
		return fmt.Sprint(v.Interface()), nil
	}
}

// canonical converts v into plain values encoding/json can marshal. Maps
// become map[string]any, whose keys encoding/json sorts at every level.
func canonical(v reflect.Value, depth int) (any, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("value nested deeper than %d levels", maxDepth)
	}
	if !v.IsValid() {
		return nil, nil
	}
	if v.CanInterface() && v.Type().Implements(jsonMarshalerType) {
		if (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) && v.IsNil() {
			return nil, nil
		}
		b, err := json.Marshal(v.Interface())
		if err != nil {
			return nil, err
		}
		return json.RawMessage(b), nil
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return nil, nil
		}
		return canonical(v.Elem(), depth+1)
	case reflect.Bool:
		return v.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint(), nil
	case reflect.Float32, reflect.Float64:
		return v.Float(), nil
	case reflect.Complex64, reflect.Complex128:
		return fmt.Sprint(v.Complex()), nil
	case reflect.String:
		return v.String(), nil
	case reflect.Slice:
		if v.IsNil() {
			return nil, nil
		}
		fallthrough
	case reflect.Array:
		out := make([]any, v.Len())
		for i := range out {
			e, err := canonical(v.Index(i), depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = e
		}
		return out, nil
	case reflect.Map:
		if v.IsNil() {
			return nil, nil
		}
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			k, err := mapKey(iter.Key(), depth+1)
			if err != nil {
				return nil, err
			}
			e, err := canonical(iter.Value(), depth+1)
			if err != nil {
				return nil, err
			}
			out[k] = e
		}
		return out, nil
	case reflect.Struct:
		t := v.Type()
		out := make(map[string]any, t.NumField())
		for i := 0; i < t.NumField(); i++ {
			e, err := canonical(v.Field(i), depth+1)
			if err != nil {
				return nil, err
			}
			out[t.Field(i).Name] = e
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported kind %s", v.Kind())
	}
}

func mapKey(k reflect.Value, depth int) (string, error) {
	if k.Kind() == reflect.String {
		return k.String(), nil
	}
	c, err := canonical(k, depth)
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
