// Package postgres is a reference module exposing parameterized queries
// against PostgreSQL via pgx, grounded in the teacher's module/database.go
// query/execute shape. A request is
// {"sql": "...", "args": [...], "exec": bool}; "exec": true runs a
// statement that returns a row count instead of a result set.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ruleflow/phlow/protocol"
	"github.com/ruleflow/phlow/value"
)

// Config holds connection settings for the module.
type Config struct {
	DSN string
}

func configFromWith(setup protocol.ModuleSetup) Config {
	cfg := Config{}
	if setup.HasWith {
		if v, ok := setup.With.Get("dsn"); ok && v.IsString() {
			cfg.DSN = v.String()
		}
	}
	return cfg
}

// Pool is the subset of pgxpool.Pool the module needs.
type Pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

// Factory registers the module's inbound channel and services query/exec
// requests against pool until the channel closes.
func Factory(pool Pool) func(ctx context.Context, setup protocol.ModuleSetup) {
	return func(ctx context.Context, setup protocol.ModuleSetup) {
		defer pool.Close()
		inbound := make(chan protocol.ModulePackage)
		setup.SetupReply <- inbound

		for {
			select {
			case pkg, ok := <-inbound:
				if !ok {
					return
				}
				out := handle(ctx, pool, pkg.Input)
				select {
				case pkg.Reply <- out:
				default:
					go func(p protocol.ModulePackage, v value.Value) { p.Reply <- v }(pkg, out)
				}
			case <-ctx.Done():
				return
			}
		}
	}
}

// NewPool opens a pgxpool.Pool from cfg.
func NewPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	return pool, nil
}

func handle(ctx context.Context, pool Pool, input value.Value) value.Value {
	sqlVal, ok := input.Get("sql")
	if !ok || !sqlVal.IsString() {
		return failure("missing field 'sql'")
	}
	args := sqlArgs(input)

	exec := false
	if v, ok := input.Get("exec"); ok && v.IsBool() {
		exec = v.Bool()
	}

	if exec {
		tag, err := pool.Exec(ctx, sqlVal.String(), args...)
		if err != nil {
			return failure(err.Error())
		}
		return value.NewObject().Set("rows_affected", value.Int(tag.RowsAffected()))
	}

	rows, err := pool.Query(ctx, sqlVal.String(), args...)
	if err != nil {
		return failure(err.Error())
	}
	defer rows.Close()

	var out []value.Value
	fields := rows.FieldDescriptions()
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return failure(err.Error())
		}
		row := value.NewObject()
		for i, v := range vals {
			row = row.Set(string(fields[i].Name), value.FromAny(v))
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return failure(err.Error())
	}
	return value.NewObject().Set("rows", value.Array(out...)).Set("count", value.Int(int64(len(out))))
}

func sqlArgs(input value.Value) []any {
	v, ok := input.Get("args")
	if !ok {
		return nil
	}
	items := v.Array()
	args := make([]any, len(items))
	for i, it := range items {
		args[i] = value.ToAny(it)
	}
	return args
}

func failure(msg string) value.Value {
	return value.NewObject().Set("is_error", value.Bool(true)).Set("message", value.String(msg))
}
