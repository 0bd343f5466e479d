package crypto

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	ErrFloatNotAllowed = errors.New("float values are not allowed")
	ErrNonStringMapKey = errors.New("map keys must be strings")
	ErrUnsupportedType = errors.New("unsupported type for canonicalization")
	ErrKeyCollision    = errors.New("normalized map key collision")
)

// Canonicalize encodes v as canonical JSON: object keys sorted after NFC
// normalization, strings NFC-normalized, null object members dropped and
// integers only. Record IDs and receipt digests are computed over this form,
// which is why confidences travel as integer thousandths.
func Canonicalize(v any) ([]byte, error) {
	var enc canonicalEncoder
	if err := enc.encode(v); err != nil {
		return nil, err
	}
	return enc.buf.Bytes(), nil
}

type canonicalEncoder struct {
	buf bytes.Buffer
}

func (e *canonicalEncoder) encode(v any) error {
	if n, ok := v.(json.Number); ok {
		return e.number(n)
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Interface || rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			e.buf.WriteString("null")
			return nil
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Invalid:
		e.buf.WriteString("null")
	case reflect.String:
		return e.str(rv.String())
	case reflect.Bool:
		e.buf.WriteString(strconv.FormatBool(rv.Bool()))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		e.buf.WriteString(strconv.FormatInt(rv.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		e.buf.WriteString(strconv.FormatUint(rv.Uint(), 10))
	case reflect.Float32, reflect.Float64:
		return ErrFloatNotAllowed
	case reflect.Map:
		return e.object(rv)
	case reflect.Slice, reflect.Array:
		return e.array(rv)
	default:
		return ErrUnsupportedType
	}
	return nil
}

func (e *canonicalEncoder) str(s string) error {
	encoded, err := json.Marshal(norm.NFC.String(s))
	if err != nil {
		return err
	}
	e.buf.Write(encoded)
	return nil
}

func (e *canonicalEncoder) number(n json.Number) error {
	s := n.String()
	if strings.ContainsAny(s, ".eE") {
		return ErrFloatNotAllowed
	}
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return ErrFloatNotAllowed
	}
	e.buf.WriteString(strconv.FormatInt(i, 10))
	return nil
}

type member struct {
	key   string
	value any
}

func (e *canonicalEncoder) object(rv reflect.Value) error {
	if rv.Type().Key().Kind() != reflect.String {
		return ErrNonStringMapKey
	}

	members := make([]member, 0, rv.Len())
	seen := make(map[string]struct{}, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		key := norm.NFC.String(iter.Key().String())
		if _, dup := seen[key]; dup {
			return ErrKeyCollision
		}
		seen[key] = struct{}{}

		value := iter.Value().Interface()
		if isNil(value) {
			continue
		}
		members = append(members, member{key: key, value: value})
	}
	sort.Slice(members, func(i, j int) bool { return members[i].key < members[j].key })

	e.buf.WriteByte('{')
	for i, m := range members {
		if i > 0 {
			e.buf.WriteByte(',')
		}
		if err := e.str(m.key); err != nil {
			return err
		}
		e.buf.WriteByte(':')
		if err := e.encode(m.value); err != nil {
			return err
		}
	}
	e.buf.WriteByte('}')
	return nil
}

func (e *canonicalEncoder) array(rv reflect.Value) error {
	if rv.Kind() == reflect.Slice && rv.IsNil() {
		e.buf.WriteString("null")
		return nil
	}
	e.buf.WriteByte('[')
	for i := 0; i < rv.Len(); i++ {
		if i > 0 {
			e.buf.WriteByte(',')
		}
		if err := e.encode(rv.Index(i).Interface()); err != nil {
			return err
		}
	}
	e.buf.WriteByte(']')
	return nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice:
		return rv.IsNil()
	}
	return false
}
