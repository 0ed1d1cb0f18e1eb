package caching

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// KeySeparator delimits the segments of a default-layout cache key.
const KeySeparator = "::"

var placeholderPattern = regexp.MustCompile(`\{([a-zA-Z]+)\}`)

// KeyManager derives deterministic cache keys from a descriptor, the request
// context, and an optional template. The same inputs always yield the same
// key; descriptors that differ in tenant, user, locale, method, or payload
// yield different keys unless a template explicitly collapses those fields.
type KeyManager struct{}

// NewKeyManager creates a KeyManager.
func NewKeyManager() *KeyManager {
	return &KeyManager{}
}

// CreateKey builds the cache key for a descriptor. With an empty template the
// key is the KeySeparator join of tenant, user, locale, target, method, path,
// event, and the content hash; absent fields become empty segments, never an
// error. Path and event occupy separate segments so a call addressed to a
// path never shares a key with one addressed to an equally named event. With
// a template, placeholders are substituted from the same field set and
// unknown placeholders resolve to an empty string.
func (m *KeyManager) CreateKey(d Descriptor, rc RequestContext, template string) string {
	fields := m.keyFields(d, rc)

	if template != "" {
		return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
			name := match[1 : len(match)-1]
			return fields[name]
		})
	}

	segments := []string{
		fields["tenant"],
		fields["user"],
		fields["locale"],
		fields["target"],
		fields["method"],
		fields["path"],
		fields["event"],
		fields["hash"],
	}
	return strings.Join(segments, KeySeparator)
}

// ContentHash digests the variable payload of a descriptor. The canonical
// form is the payload's JSON encoding, which orders map keys, so two payloads
// that differ only in map insertion order hash identically. Payloads that
// cannot be marshaled fall back to a deterministic reflective rendering.
func (m *KeyManager) ContentHash(d Descriptor) string {
	return hashValue(d.payload())
}

// keyFields collects every placeholder value available to templates and to
// the default key layout.
func (m *KeyManager) keyFields(d Descriptor, rc RequestContext) map[string]string {
	fields := map[string]string{
		"tenant": rc.Tenant,
		"user":   rc.User,
		"locale": rc.Locale,
		"target": d.Target(),
		"hash":   m.ContentHash(d),
	}

	switch v := d.(type) {
	case ServiceCall:
		fields["method"] = v.Method
		fields["path"] = v.Path
		fields["event"] = v.Event
	case Query:
		fields["method"] = string(v.Kind)
		fields["path"] = ""
		fields["event"] = ""
	case Invocation:
		fields["method"] = ""
		fields["path"] = ""
		fields["event"] = ""
	}

	return fields
}

func hashValue(v any) string {
	return strconv.FormatUint(xxhash.Sum64(canonicalBytes(v)), 16)
}

// canonicalBytes produces the stable serialization the content hash is
// computed over. JSON is the pinned canonical form; values JSON cannot
// represent (functions, channels) go through renderValue instead.
func canonicalBytes(v any) []byte {
	if v == nil {
		return []byte("null")
	}
	if data, err := json.Marshal(v); err == nil {
		return data
	}
	return []byte(renderValue(reflect.ValueOf(v)))
}

// renderValue walks a value reflectively and renders it deterministically:
// map keys are sorted, only exported struct fields participate, and
// functions and channels render by identity. Identity-rendered values are
// stable within a single process only.
func renderValue(rv reflect.Value) string {
	if !rv.IsValid() {
		return "nil"
	}

	switch rv.Kind() {
	case reflect.Func:
		if rv.IsNil() {
			return "nil"
		}
		return fmt.Sprintf("fn@%x", rv.Pointer())
	case reflect.Chan:
		if rv.IsNil() {
			return "nil"
		}
		return fmt.Sprintf("chan@%x", rv.Pointer())
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return "nil"
		}
		return renderValue(rv.Elem())
	case reflect.Slice:
		if rv.IsNil() {
			return "nil"
		}
		return renderSequence(rv)
	case reflect.Array:
		return renderSequence(rv)
	case reflect.Map:
		if rv.IsNil() {
			return "nil"
		}
		return renderMap(rv)
	case reflect.Struct:
		return renderStruct(rv)
	default:
		return fmt.Sprintf("%v", rv.Interface())
	}
}

func renderSequence(rv reflect.Value) string {
	parts := make([]string, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		parts[i] = renderValue(rv.Index(i))
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func renderMap(rv reflect.Value) string {
	pairs := make([]string, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		pairs = append(pairs, renderValue(iter.Key())+"="+renderValue(iter.Value()))
	}
	sort.Strings(pairs)
	return "{" + strings.Join(pairs, ",") + "}"
}

func renderStruct(rv reflect.Value) string {
	rt := rv.Type()
	parts := make([]string, 0, rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		parts = append(parts, field.Name+":"+renderValue(rv.Field(i)))
	}
	return "{" + strings.Join(parts, ",") + "}"
}
