// Package sql provides the SQL statement builders and the database/sql
// driver wrappers used by the save engine.
//
// # Builder Types
//
//   - Builder: low-level SQL string builder with identifier quoting
//   - Selector: SELECT builder with predicates
//   - InsertBuilder: INSERT builder with RETURNING support
//   - UpdateBuilder: UPDATE builder with SET and WHERE clauses
//
// # Dialect Support
//
// Identifier quoting and placeholders follow the dialect:
//
//	import "github.com/syssam/cascade/dialect"
//
//	// SELECT "id", "name" FROM "ROLE" WHERE "name" = $1
//	sql.Dialect(dialect.Postgres).Select("id", "name").From("ROLE").Where(sql.EQ("name", "admin"))
//
//	// INSERT INTO `ROLE`(`id`, `name`) VALUES (?, ?)
//	sql.Dialect(dialect.MySQL).Insert("ROLE").Columns("id", "name").Values(1, "admin")
//
// # Predicates
//
//	sql.EQ("name", "john")                       // name = ?
//	sql.NEQ("deleted", true)                     // deleted <> ?
//	sql.IsNull("deleted_at")                     // deleted_at IS NULL
//	sql.In("name", "p1", "p2")                   // name IN (?, ?)
//	sql.InTuples([]string{"a", "b"}, t1, t2)     // (a, b) IN ((?, ?), (?, ?))
//	sql.And(p1, p2)                              // p1 AND p2
//
// # Drivers
//
// Open wraps a database/sql connection pool. NewDebugDriver logs every
// statement and NewStatsDriver collects per-statement timings:
//
//	stats, qs, err := sql.OpenWithStats(dialect.SQLite, "file:app.db?_pragma=foreign_keys(1)",
//	    sql.WithSlowThreshold(100*time.Millisecond), sql.WithSlowQueryLog(logger))
//	drv := sql.NewDebugDriver(stats, sql.DebugWithLogger(logger))
//	res, err := save.New(drv.Dialect()).Save(ctx, drv, root)
//	fmt.Println(qs.Stats())
//
// Driver and Tx implement Preparer; save.WithPreparedBatches uses it to run
// the rows of one batch through a single prepared Stmt.
package sql
