package readthrough

import (
	"context"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/uxkjaer/cds-caching/caching"
)

// ServiceOrigin is the collaborator a ServiceCall is forwarded to when the
// cache cannot answer.
type ServiceOrigin interface {
	Send(ctx context.Context, call caching.ServiceCall) (any, error)
}

// ServiceOriginFunc adapts a function to the ServiceOrigin interface.
type ServiceOriginFunc func(ctx context.Context, call caching.ServiceCall) (any, error)

// Send implements ServiceOrigin.
func (f ServiceOriginFunc) Send(ctx context.Context, call caching.ServiceCall) (any, error) {
	return f(ctx, call)
}

// QueryRunner executes a Query against the real data source.
type QueryRunner interface {
	Run(ctx context.Context, q caching.Query) (any, error)
}

// QueryRunnerFunc adapts a function to the QueryRunner interface.
type QueryRunnerFunc func(ctx context.Context, q caching.Query) (any, error)

// Run implements QueryRunner.
func (f QueryRunnerFunc) Run(ctx context.Context, q caching.Query) (any, error) {
	return f(ctx, q)
}

// FetchFunc is the origin shape for wrapped invocations.
type FetchFunc func(ctx context.Context) (any, error)

// Fetch is the type-safe form of Coordinator.Wrap. It runs the invocation
// through the cache and converts the envelope value to T.
func Fetch[T any](ctx context.Context, c *Coordinator, rc caching.RequestContext, inv caching.Invocation, fn func(context.Context) (T, error), opts *caching.Options) (T, Result, error) {
	res, err := c.Wrap(ctx, rc, inv, func(ctx context.Context) (any, error) {
		return fn(ctx)
	}, opts)
	if err != nil {
		var zero T
		return zero, res, err
	}

	value, err := ValueAs[T](res)
	return value, res, err
}

// ValueAs converts an envelope value to T. Values served by a remote store
// arrive as decoded maps rather than their original concrete types; those
// are recovered through a msgpack round trip. Conversion failures return
// ErrInvalidResultType.
func ValueAs[T any](res Result) (T, error) {
	if value, ok := res.Value.(T); ok {
		return value, nil
	}

	var out T
	data, err := msgpack.Marshal(res.Value)
	if err != nil {
		return out, fmt.Errorf("%w: cannot convert %T", caching.ErrInvalidResultType, res.Value)
	}
	if err := msgpack.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("%w: cannot convert %T", caching.ErrInvalidResultType, res.Value)
	}
	return out, nil
}
