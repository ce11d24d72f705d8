package save_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/cascade/dialect"
	"github.com/syssam/cascade/dialect/sql"
	"github.com/syssam/cascade/save"
)

func TestBatch(t *testing.T) {
	g := nodeGraph(t)
	node := g.MustType("Node")
	insert := func(cols []string, vs ...any) *save.Action {
		return &save.Action{Type: node, Kind: save.Insert, Columns: cols, Values: vs}
	}
	update := func(cols []string, id any, vs ...any) *save.Action {
		return &save.Action{Type: node, Kind: save.Update, Columns: cols, Values: vs, Where: []string{"id"}, Keys: []any{id}}
	}
	actions := []*save.Action{
		insert([]string{"id", "name"}, 1, "a"),
		insert([]string{"id", "name"}, 2, "b"),
		{Type: node, Kind: save.Noop},
		insert([]string{"id", "name"}, 3, "c"),
		insert([]string{"id", "name", "next_id"}, 4, "d", 1),
		update([]string{"name"}, 1, "x"),
		update([]string{"name"}, 2, "y"),
		insert([]string{"id", "name"}, 5, "e"),
	}
	stmts := save.Batch(sql.Dialect(dialect.SQLite), actions)
	require.Len(t, stmts, 4)

	assert.Equal(t, `INSERT INTO "node"("id", "name") VALUES (?, ?)`, stmts[0].SQL)
	assert.Equal(t, [][]any{{1, "a"}, {2, "b"}, {3, "c"}}, stmts[0].Rows)
	assert.Equal(t, `INSERT INTO "node"("id", "name", "next_id") VALUES (?, ?, ?)`, stmts[1].SQL)
	assert.Equal(t, `UPDATE "node" SET "name" = ? WHERE "id" = ?`, stmts[2].SQL)
	assert.Equal(t, [][]any{{"x", 1}, {"y", 2}}, stmts[2].Rows)
	assert.Equal(t, save.Update, stmts[2].Kind)
	assert.Len(t, stmts[2].Actions, 2)
	assert.Equal(t, "node", stmts[3].Table())
	assert.Len(t, stmts[3].Rows, 1)
}

func TestBatch_Postgres(t *testing.T) {
	g := nodeGraph(t)
	node := g.MustType("Node")
	stmts := save.Batch(sql.Dialect(dialect.Postgres), []*save.Action{
		{Type: node, Kind: save.Insert, Columns: []string{"name"}, Values: []any{"a"}, Generated: true},
		{Type: node, Kind: save.Insert, Columns: []string{"name"}, Values: []any{"b"}},
		{Type: node, Kind: save.Update, Columns: []string{"name", "next_id"}, Values: []any{"c", 1}, Where: []string{"id"}, Keys: []any{3}},
	})
	require.Len(t, stmts, 3)
	assert.Equal(t, `INSERT INTO "node"("name") VALUES ($1) RETURNING "id"`, stmts[0].SQL)
	assert.True(t, stmts[0].Generated)
	assert.Equal(t, `INSERT INTO "node"("name") VALUES ($1)`, stmts[1].SQL)
	assert.Equal(t, `UPDATE "node" SET "name" = $1, "next_id" = $2 WHERE "id" = $3`, stmts[2].SQL)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "noop", save.Noop.String())
	assert.Equal(t, "insert", save.Insert.String())
	assert.Equal(t, "update", save.Update.String())
	assert.Equal(t, "upsert", save.Upsert.String())
	assert.Equal(t, "insert-only", save.InsertOnly.String())
	assert.Equal(t, "update-only", save.UpdateOnly.String())
}
