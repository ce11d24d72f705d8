// Package dialect defines the SQL execution collaborator used by the save
// engine, and the dialect names it adapts statement text to.
//
// # Supported Dialects
//
//   - Postgres: numbered placeholders ($1, $2), RETURNING for generated keys
//   - MySQL: ? placeholders, backtick quoting, LastInsertId for generated keys
//   - SQLite: ? placeholders, LastInsertId for generated keys
//
// # Driver Interface
//
//	type Driver interface {
//	    Exec(ctx context.Context, query string, args, v any) error
//	    Query(ctx context.Context, query string, args, v any) error
//	    Tx(ctx context.Context) (Tx, error)
//	    Close() error
//	    Dialect() string
//	}
//
// A single save call issues every statement through one ExecQuerier, one at
// a time. Passing a Tx makes the whole save atomic; passing a Driver does not.
//
// # Sub-packages
//
//   - dialect/sql: database/sql backed driver, statement builder, stats and debug wrappers
//   - dialect/sql/sqlgraph: constraint violation classification
package dialect
