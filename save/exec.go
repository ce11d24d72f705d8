package save

import (
	"context"
	"fmt"

	"github.com/syssam/cascade"
	"github.com/syssam/cascade/dialect"
	"github.com/syssam/cascade/dialect/sql"
)

// exec runs the statements in order, one call per parameter row, and writes
// database-generated ids back into the drafts.
func (s *saver) exec(ctx context.Context, stmts []*Statement) error {
	for _, st := range stmts {
		if err := s.execStatement(ctx, st); err != nil {
			return err
		}
	}
	return nil
}

func (s *saver) execStatement(ctx context.Context, st *Statement) error {
	run, release, err := s.runner(ctx, st)
	if err != nil {
		return &cascade.StatementError{Table: st.Table(), Kind: st.Kind.String(), SQL: st.SQL, Err: err}
	}
	defer release()
	var affected int64
	for i, row := range st.Rows {
		if err := ctx.Err(); err != nil {
			return cascade.NewMutationError(st.Type.Name, st.Kind.String(), err)
		}
		n, err := s.execRow(ctx, run, st, i, row)
		if err != nil {
			return &cascade.StatementError{
				Table: st.Table(),
				Kind:  st.Kind.String(),
				Row:   i,
				SQL:   st.SQL,
				Err:   err,
			}
		}
		affected += n
	}
	_, prepared := run.(*sql.Stmt)
	s.logger.DebugContext(ctx, "cascade: "+st.Kind.String(),
		"table", st.Table(), "sql", st.SQL, "batch", len(st.Rows), "affected", affected, "prepared", prepared)
	s.res.record(Executed{
		Table:    st.Table(),
		SQL:      st.SQL,
		Args:     st.Rows,
		Kind:     st.Kind.String(),
		Batch:    len(st.Rows),
		Affected: affected,
		Prepared: prepared,
	})
	return nil
}

// rowRunner executes the parameter rows of one statement.
type rowRunner interface {
	Exec(ctx context.Context, args []any, v any) error
	Query(ctx context.Context, args []any, v any) error
}

// connRunner sends every row to the connection with the statement text.
type connRunner struct {
	conn  dialect.ExecQuerier
	query string
}

func (r connRunner) Exec(ctx context.Context, args []any, v any) error {
	return r.conn.Exec(ctx, r.query, args, v)
}

func (r connRunner) Query(ctx context.Context, args []any, v any) error {
	return r.conn.Query(ctx, r.query, args, v)
}

// runner returns the row executor of st and its release func.
func (s *saver) runner(ctx context.Context, st *Statement) (rowRunner, func(), error) {
	if s.prepare && len(st.Rows) > 1 {
		if p, ok := s.conn.(sql.Preparer); ok {
			stmt, err := p.Prepare(ctx, st.SQL)
			if err != nil {
				return nil, nil, err
			}
			return stmt, func() {
				if err := stmt.Close(); err != nil {
					s.logger.WarnContext(ctx, "cascade: closing prepared statement", "sql", st.SQL, "err", err)
				}
			}, nil
		}
	}
	return connRunner{conn: s.conn, query: st.SQL}, func() {}, nil
}

// execRow executes one parameter row and returns the affected row count.
func (s *saver) execRow(ctx context.Context, run rowRunner, st *Statement, i int, row []any) (int64, error) {
	if st.Generated && s.Dialect() == dialect.Postgres {
		var rows sql.Rows
		if err := run.Query(ctx, row, &rows); err != nil {
			return 0, err
		}
		maps, err := sql.ScanMaps(rows)
		if err != nil {
			return 0, err
		}
		if len(maps) != 1 {
			return 0, fmt.Errorf("insert returned %d rows", len(maps))
		}
		id, _ := column(maps[0], st.Type.IDs()[0].Column())
		return 1, s.setID(st, i, id)
	}
	var res sql.Result
	if err := run.Exec(ctx, row, &res); err != nil {
		return 0, err
	}
	if res == nil {
		return 0, nil
	}
	var n int64
	if affected, err := res.RowsAffected(); err == nil {
		n = affected
	}
	if !st.Generated {
		return n, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return n, fmt.Errorf("read generated id: %w", err)
	}
	return n, s.setID(st, i, id)
}

func (s *saver) setID(st *Statement, i int, id any) error {
	if id == nil {
		return fmt.Errorf("no generated id for row %d", i)
	}
	return st.Actions[i].Draft.SetProp(st.Type.IDs()[0], id)
}
