// Package bunrunner adapts a bun database handle to the readthrough
// QueryRunner interface, so structured queries can be cached without every
// caller hand-writing SQL.
package bunrunner

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/uxkjaer/cds-caching/caching"
	"github.com/uxkjaer/cds-caching/readthrough"
)

// Runner executes structured queries against a bun.IDB. Selects scan into
// []map[string]any so cached results stay serializable across remote
// backends; writes return the number of affected rows as int64.
type Runner struct {
	db     bun.IDB
	logger *zap.Logger
}

var _ readthrough.QueryRunner = (*Runner)(nil)

// New creates a Runner over db. A nil logger disables logging. Both *bun.DB
// and bun.Tx satisfy bun.IDB, so a Runner can be scoped to a transaction.
func New(db bun.IDB, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		db:     db,
		logger: logger.With(zap.String("component", "bun-runner")),
	}
}

// Run implements readthrough.QueryRunner. An empty Kind is treated as a
// select, matching caching.Query semantics.
func (r *Runner) Run(ctx context.Context, q caching.Query) (any, error) {
	if q.Entity == "" {
		return nil, fmt.Errorf("bunrunner: query has no entity")
	}

	switch q.Kind {
	case caching.QuerySelect, "":
		return r.selectRows(ctx, q)
	case caching.QueryInsert:
		return r.insert(ctx, q)
	case caching.QueryUpdate:
		return r.update(ctx, q)
	case caching.QueryDelete:
		return r.delete(ctx, q)
	default:
		return nil, fmt.Errorf("bunrunner: unsupported query kind %q", q.Kind)
	}
}

func (r *Runner) selectRows(ctx context.Context, q caching.Query) (any, error) {
	sel := r.db.NewSelect().Table(q.Entity)
	if len(q.Columns) > 0 {
		sel = sel.Column(q.Columns...)
	}
	for _, col := range sortedColumns(q.Where) {
		sel = sel.Where("? = ?", bun.Ident(col), q.Where[col])
	}
	for _, order := range q.OrderBy {
		sel = sel.Order(order)
	}
	if q.Limit > 0 {
		sel = sel.Limit(q.Limit)
	}
	if q.Offset > 0 {
		sel = sel.Offset(q.Offset)
	}

	rows := make([]map[string]any, 0)
	if err := sel.Scan(ctx, &rows); err != nil {
		return nil, fmt.Errorf("select %s: %w", q.Entity, err)
	}
	r.logger.Debug("query executed",
		zap.String("kind", "SELECT"),
		zap.String("entity", q.Entity),
		zap.Int("rows", len(rows)))
	return rows, nil
}

func (r *Runner) insert(ctx context.Context, q caching.Query) (any, error) {
	if len(q.Values) == 0 {
		return nil, fmt.Errorf("insert %s: no values", q.Entity)
	}
	values := q.Values
	res, err := r.db.NewInsert().
		Model(&values).
		TableExpr("?", bun.Ident(q.Entity)).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", q.Entity, err)
	}
	return r.affected(res, "INSERT", q.Entity)
}

func (r *Runner) update(ctx context.Context, q caching.Query) (any, error) {
	if len(q.Values) == 0 {
		return nil, fmt.Errorf("update %s: no values", q.Entity)
	}
	values := q.Values
	upd := r.db.NewUpdate().
		Model(&values).
		TableExpr("?", bun.Ident(q.Entity))
	if len(q.Where) == 0 {
		// bun refuses unbounded updates unless the caller spells it out.
		upd = upd.Where("1 = 1")
	}
	for _, col := range sortedColumns(q.Where) {
		upd = upd.Where("? = ?", bun.Ident(col), q.Where[col])
	}
	res, err := upd.Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", q.Entity, err)
	}
	return r.affected(res, "UPDATE", q.Entity)
}

func (r *Runner) delete(ctx context.Context, q caching.Query) (any, error) {
	del := r.db.NewDelete().TableExpr("?", bun.Ident(q.Entity))
	if len(q.Where) == 0 {
		// Same escape hatch bun documents for unbounded deletes.
		del = del.Where("1 = 1")
	}
	for _, col := range sortedColumns(q.Where) {
		del = del.Where("? = ?", bun.Ident(col), q.Where[col])
	}
	res, err := del.Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("delete %s: %w", q.Entity, err)
	}
	return r.affected(res, "DELETE", q.Entity)
}

func (r *Runner) affected(res sql.Result, kind, entity string) (any, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("%s %s: rows affected: %w", kind, entity, err)
	}
	r.logger.Debug("query executed",
		zap.String("kind", kind),
		zap.String("entity", entity),
		zap.Int64("rows", n))
	return n, nil
}

// sortedColumns keeps the generated SQL deterministic regardless of map
// iteration order.
func sortedColumns(where map[string]any) []string {
	cols := make([]string, 0, len(where))
	for col := range where {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}
