package caching

import (
	"context"
	"fmt"
	"reflect"
	"strings"
)

// TagSpec ranges over the three ways callers classify a cached result:
// literal tags, a tag function, or data paths evaluated against the response
// value. A nil spec resolves to no tags.
type TagSpec interface {
	isTagSpec()
}

// TagList is a literal tag list. The placeholders {tenant}, {user}, and
// {locale} expand from the request context; empty results are dropped.
type TagList []string

func (TagList) isTagSpec() {}

// TagFunc computes tags from the response value and the request context.
type TagFunc func(value any, rc RequestContext) []string

func (TagFunc) isTagSpec() {}

// TagPaths is a set of dot-separated field paths evaluated against the
// response value. Each resolved leaf emits "path:value"; a path traversing a
// slice fans out one tag per element. Paths into missing fields are skipped
// silently.
type TagPaths []string

func (TagPaths) isTagSpec() {}

// TagResolver turns a TagSpec into the tag set stored with a cache entry.
// Resolution never fails: malformed specs, missing fields, and panicking tag
// functions all degrade to fewer tags, never an error.
type TagResolver struct{}

// NewTagResolver creates a TagResolver.
func NewTagResolver() *TagResolver {
	return &TagResolver{}
}

// Resolve computes the deduplicated tag set for a response value. Order of
// first occurrence is preserved.
func (r *TagResolver) Resolve(spec TagSpec, value any, rc RequestContext) []string {
	var tags []string

	switch s := spec.(type) {
	case nil:
		return nil
	case TagList:
		tags = r.expandLiterals(s, rc)
	case TagFunc:
		tags = r.callFunc(s, value, rc)
	case TagPaths:
		tags = r.evalPaths(s, value)
	default:
		return nil
	}

	return dedupe(tags)
}

func (r *TagResolver) expandLiterals(list TagList, rc RequestContext) []string {
	replacer := strings.NewReplacer(
		"{tenant}", rc.Tenant,
		"{user}", rc.User,
		"{locale}", rc.Locale,
	)

	tags := make([]string, 0, len(list))
	for _, raw := range list {
		tag := replacer.Replace(raw)
		if tag == "" {
			continue
		}
		tags = append(tags, tag)
	}
	return tags
}

// callFunc invokes a user-supplied tag function. A panicking function
// contributes no tags.
func (r *TagResolver) callFunc(fn TagFunc, value any, rc RequestContext) (tags []string) {
	if fn == nil {
		return nil
	}
	defer func() {
		if recover() != nil {
			tags = nil
		}
	}()
	return fn(value, rc)
}

func (r *TagResolver) evalPaths(paths TagPaths, value any) []string {
	var tags []string
	for _, path := range paths {
		if path == "" {
			continue
		}
		for _, leaf := range walkPath(reflect.ValueOf(value), strings.Split(path, ".")) {
			tags = append(tags, path+":"+leaf)
		}
	}
	return tags
}

// walkPath descends value along the path segments, fanning out over slices
// and arrays, and returns the rendered scalar leaves. Anything unresolvable
// yields nothing.
func walkPath(rv reflect.Value, segments []string) []string {
	if !rv.IsValid() {
		return nil
	}

	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return walkPath(rv.Elem(), segments)
	case reflect.Slice, reflect.Array:
		var leaves []string
		for i := 0; i < rv.Len(); i++ {
			leaves = append(leaves, walkPath(rv.Index(i), segments)...)
		}
		return leaves
	}

	if len(segments) == 0 {
		return renderLeaf(rv)
	}

	head, rest := segments[0], segments[1:]

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil
		}
		next := rv.MapIndex(reflect.ValueOf(head))
		if !next.IsValid() {
			return nil
		}
		return walkPath(next, rest)
	case reflect.Struct:
		next := rv.FieldByName(head)
		if !next.IsValid() || !next.CanInterface() {
			return nil
		}
		return walkPath(next, rest)
	default:
		return nil
	}
}

// renderLeaf renders a scalar leaf value. Composite leaves produce no tag:
// a tag must name one value, not a structure.
func renderLeaf(rv reflect.Value) []string {
	switch rv.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64,
		reflect.String:
		return []string{fmt.Sprintf("%v", rv.Interface())}
	default:
		return nil
	}
}

type contextTagsKey struct{}

// WithTags returns a context carrying extra invalidation tags. The coordinator
// merges them with the per-call TagSpec when a miss is written back, so code
// far from the call site can classify entries it influences.
func WithTags(ctx context.Context, tags ...string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(tags) == 0 {
		return ctx
	}
	return context.WithValue(ctx, contextTagsKey{}, MergeTags(TagsFromContext(ctx), tags))
}

// TagsFromContext returns the tags attached with WithTags, or nil.
func TagsFromContext(ctx context.Context) []string {
	if ctx == nil {
		return nil
	}
	tags, _ := ctx.Value(contextTagsKey{}).([]string)
	return tags
}

// MergeTags combines tag sets into one deduplicated set, preserving first
// occurrence. The inputs are never mutated.
func MergeTags(sets ...[]string) []string {
	var total int
	for _, set := range sets {
		total += len(set)
	}
	if total == 0 {
		return nil
	}
	out := make([]string, 0, total)
	for _, set := range sets {
		out = append(out, set...)
	}
	return dedupe(out)
}

// dedupe removes duplicate tags preserving first occurrence.
func dedupe(tags []string) []string {
	if len(tags) < 2 {
		return tags
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
