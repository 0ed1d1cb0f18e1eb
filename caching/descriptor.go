package caching

import "strings"

// RequestContext carries the ambient identity of a single call. The
// coordinator never reads tenant, user, or locale from process-wide state;
// callers pass them explicitly so the same request is reproducible anywhere.
type RequestContext struct {
	Tenant string
	User   string
	Locale string
}

// DescriptorKind names one of the three request shapes the coordinator
// understands.
type DescriptorKind string

const (
	KindServiceCall DescriptorKind = "service-call"
	KindQuery       DescriptorKind = "query"
	KindInvocation  DescriptorKind = "invocation"
)

// Descriptor is the sealed union over the three request shapes. Dispatch is
// done by type switch; external packages cannot add variants.
type Descriptor interface {
	// Target returns the logical name the request is addressed to: a service
	// name, an entity name, or an invocation name.
	Target() string

	// Mutating reports whether the request carries write intent. Mutating
	// requests bypass the cache entirely.
	Mutating() bool

	// payload returns the variable part of the request that feeds the
	// content hash. Context fields and the target never appear here.
	payload() any

	sealed()
}

// ServiceCall describes a plain service request: an HTTP-style method and
// path, or an emitted event, plus its parameters and body.
type ServiceCall struct {
	Service string
	Method  string
	Path    string
	Event   string
	Params  map[string]any
	Data    any
}

// Query describes a structured data query against a single entity.
type Query struct {
	Kind    QueryKind
	Entity  string
	Columns []string
	Where   map[string]any
	OrderBy []string
	Limit   int
	Offset  int

	// Values carries column assignments for insert and update kinds. It is
	// ignored for selects.
	Values map[string]any
}

// QueryKind is the statement kind of a Query.
type QueryKind string

const (
	QuerySelect QueryKind = "SELECT"
	QueryInsert QueryKind = "INSERT"
	QueryUpdate QueryKind = "UPDATE"
	QueryDelete QueryKind = "DELETE"
)

// Invocation describes an arbitrary wrapped call identified by a stable name
// and its arguments. Invocations are always treated as reads; callers decide
// what to wrap.
type Invocation struct {
	Name string
	Args []any
}

// Target implements Descriptor.
func (c ServiceCall) Target() string { return c.Service }

// Mutating reports write intent for a service call: a write verb or a write
// event. Method comparison is case-insensitive.
func (c ServiceCall) Mutating() bool {
	switch strings.ToUpper(c.Method) {
	case "POST", "PUT", "PATCH", "DELETE":
		return true
	}
	switch strings.ToUpper(c.Event) {
	case "CREATE", "UPDATE", "DELETE", "UPSERT":
		return true
	}
	return false
}

func (c ServiceCall) payload() any {
	return map[string]any{"params": c.Params, "data": c.Data}
}

func (c ServiceCall) sealed() {}

// Target implements Descriptor.
func (q Query) Target() string { return q.Entity }

// Mutating reports write intent for a query: every kind except SELECT.
func (q Query) Mutating() bool {
	return q.Kind != "" && q.Kind != QuerySelect
}

func (q Query) payload() any {
	return map[string]any{
		"columns": q.Columns,
		"where":   q.Where,
		"orderBy": q.OrderBy,
		"limit":   q.Limit,
		"offset":  q.Offset,
		"values":  q.Values,
	}
}

func (q Query) sealed() {}

// Target implements Descriptor.
func (i Invocation) Target() string { return i.Name }

// Mutating always reports false for invocations.
func (i Invocation) Mutating() bool { return false }

func (i Invocation) payload() any { return i.Args }

func (i Invocation) sealed() {}

// KindOf returns the DescriptorKind for d.
func KindOf(d Descriptor) DescriptorKind {
	switch d.(type) {
	case ServiceCall:
		return KindServiceCall
	case Query:
		return KindQuery
	case Invocation:
		return KindInvocation
	default:
		return ""
	}
}
