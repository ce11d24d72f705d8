package save_test

import (
	"context"
	stdsql "database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/syssam/cascade/contrib/mixin"
	"github.com/syssam/cascade/dialect"
	"github.com/syssam/cascade/dialect/sql"
	"github.com/syssam/cascade/entity"
	"github.com/syssam/cascade/idgen"
	"github.com/syssam/cascade/intercept"
	"github.com/syssam/cascade/save"
)

const sqliteSchema = `
CREATE TABLE ROLE (
	ID INTEGER PRIMARY KEY,
	NAME TEXT NOT NULL,
	DELETED BOOLEAN NOT NULL,
	CREATED_TIME DATETIME,
	MODIFIED_TIME DATETIME
);
CREATE TABLE PERMISSION (
	ID INTEGER PRIMARY KEY,
	NAME TEXT NOT NULL UNIQUE,
	DELETED BOOLEAN NOT NULL,
	CREATED_TIME DATETIME,
	MODIFIED_TIME DATETIME,
	ROLE_ID INTEGER REFERENCES ROLE(ID)
);`

func openSQLite(t *testing.T) *sql.Driver {
	t.Helper()
	db, err := stdsql.Open(dialect.SQLite, "file:"+t.Name()+"?mode=memory&_pragma=foreign_keys(1)&_time_format=sqlite")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec(sqliteSchema)
	require.NoError(t, err)
	return sql.OpenDB(dialect.SQLite, db)
}

func TestSQLite_SaveTwice(t *testing.T) {
	g := namedGraph(t)
	drv := openSQLite(t)
	ctx := context.Background()
	now := time.Date(2022, 10, 3, 0, 0, 0, 0, time.UTC)
	reg := mixin.Register(intercept.NewRegistry(), func() time.Time { return now })
	c := save.New(dialect.SQLite,
		save.WithIDGenerator("Role", idgen.NewSequence(101, 201)),
		save.WithIDGenerator("Permission", idgen.NewSequence(101, 102, 201, 202)),
		save.WithInterceptors(reg),
	)

	role := entity.New(g.MustType("Role")).
		Set("name", "role").
		Add("permissions",
			entity.New(g.MustType("Permission")).Set("name", "permission-1"),
			entity.New(g.MustType("Permission")).Set("name", "permission-2"),
		)
	res, err := c.Save(ctx, drv, role)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"ROLE": 1, "PERMISSION": 2}, res.AffectedRows())

	var count int
	require.NoError(t, drv.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM PERMISSION WHERE ROLE_ID = 101").Scan(&count))
	assert.Equal(t, 2, count)

	// Saving the saved tree again resolves every node to its row and finds
	// nothing to change.
	res, err = c.Save(ctx, drv, role)
	require.NoError(t, err)
	for _, st := range res.Statements() {
		assert.Equal(t, "select", st.Kind, st.SQL)
	}
	assert.Zero(t, res.TotalAffectedRows())

	// A changed field is written as an update of that column only.
	now = now.Add(time.Hour)
	role.Set("name", "admin").Unset(mixin.ModifiedTimeField)
	res, err = c.Save(ctx, drv, role)
	require.NoError(t, err)
	var updates []save.Executed
	for _, st := range res.Statements() {
		if st.Kind == "update" {
			updates = append(updates, st)
		}
	}
	require.Len(t, updates, 1)
	assert.Equal(t, `UPDATE "ROLE" SET "NAME" = ?, "MODIFIED_TIME" = ? WHERE "ID" = ?`, updates[0].SQL)

	var name string
	require.NoError(t, drv.DB().QueryRowContext(ctx, "SELECT NAME FROM ROLE WHERE ID = 101").Scan(&name))
	assert.Equal(t, "admin", name)
}

func TestSQLite_UniqueViolation(t *testing.T) {
	g := namedGraph(t)
	drv := openSQLite(t)
	ctx := context.Background()
	c := save.New(dialect.SQLite,
		save.WithIDGenerator("Permission", idgen.NewSequence(1, 2)),
		save.WithMode(save.InsertOnly),
	)
	for i, want := range []bool{false, true} {
		p := entity.New(g.MustType("Permission")).
			Set("name", "dup").
			Set("deleted", false)
		_, err := c.Save(ctx, drv, p)
		if !want {
			require.NoError(t, err, i)
			continue
		}
		require.Error(t, err)
		assert.Contains(t, err.Error(), "PERMISSION")
	}
}

func TestSQLite_KeyLookupIgnoresDeletedRows(t *testing.T) {
	g := namedGraph(t)
	drv := openSQLite(t)
	ctx := context.Background()
	_, err := drv.DB().ExecContext(ctx, "INSERT INTO ROLE(ID, NAME, DELETED) VALUES (1, 'role', 1)")
	require.NoError(t, err)

	c := save.New(dialect.SQLite,
		save.WithIDGenerator("Role", idgen.NewSequence(2)),
		save.WithInterceptors(mixin.Register(intercept.NewRegistry(), time.Now)),
	)
	role := entity.New(g.MustType("Role")).Set("name", "role")
	_, err = c.Save(ctx, drv, role)
	require.NoError(t, err)
	id, _ := role.Get("id")
	assert.Equal(t, int64(2), id)
}

func TestSQLite_PreparedBatchInTx(t *testing.T) {
	g := namedGraph(t)
	drv := openSQLite(t)
	ctx := context.Background()
	c := save.New(dialect.SQLite,
		save.WithIDGenerator("Role", idgen.NewSequence(1)),
		save.WithIDGenerator("Permission", idgen.NewSequence(1, 2, 3)),
		save.WithInterceptors(mixin.Register(intercept.NewRegistry(), time.Now)),
		save.WithPreparedBatches(),
	)
	role := entity.New(g.MustType("Role")).
		Set("name", "role").
		Add("permissions",
			entity.New(g.MustType("Permission")).Set("name", "p1"),
			entity.New(g.MustType("Permission")).Set("name", "p2"),
			entity.New(g.MustType("Permission")).Set("name", "p3"),
		)
	tx, err := drv.Tx(ctx)
	require.NoError(t, err)
	res, err := c.Save(ctx, tx, role)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	var prepared []save.Executed
	for _, st := range res.Statements() {
		if st.Prepared {
			prepared = append(prepared, st)
		}
	}
	require.Len(t, prepared, 1)
	assert.Equal(t, 3, prepared[0].Batch)
	assert.Equal(t, int64(3), prepared[0].Affected)

	var count int
	require.NoError(t, drv.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM PERMISSION WHERE ROLE_ID = 1").Scan(&count))
	assert.Equal(t, 3, count)
}
