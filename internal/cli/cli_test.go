package cli

import (
	"bytes"
	stdsql "database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/cascade"
	"github.com/syssam/cascade/dialect/sql/sqlgraph"
	"github.com/syssam/cascade/idgen"
	"github.com/syssam/cascade/privacy"
	"github.com/syssam/cascade/save"
)

const testSchema = `
types:
  - name: Role
    table: ROLE
    id: [{name: id, column: ID, kind: int}]
    fields:
      - {name: name, column: NAME, kind: string}
    assocs:
      - {name: permissions, rel: one-to-many, target: Permission, mappedBy: role}
    key: [name]
  - name: Permission
    table: PERMISSION
    id: [{name: id, column: ID, kind: int}]
    fields: [{name: name, column: NAME, kind: string}]
    assocs:
      - {name: role, rel: many-to-one, target: Role, column: ROLE_ID}
    key: [name]
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParseGenerator(t *testing.T) {
	name, g, err := parseGenerator("Role=sequence:101, 102,abc")
	require.NoError(t, err)
	assert.Equal(t, "Role", name)
	seq, ok := g.(*idgen.Sequence)
	require.True(t, ok)
	assert.Equal(t, 3, seq.Remaining())

	for arg, want := range map[string]idgen.Strategy{
		"A=database": idgen.StrategyDatabase,
		"A=uuid":     idgen.StrategyPrepared,
		"A=computed": idgen.StrategyComputed,
	} {
		_, g, err := parseGenerator(arg)
		require.NoError(t, err, arg)
		assert.Equal(t, want, g.Strategy(), arg)
	}

	for _, arg := range []string{"Role", "=database", "Role=random"} {
		_, _, err := parseGenerator(arg)
		assert.Error(t, err, arg)
	}
}

func TestParseMode(t *testing.T) {
	m, err := parseMode("update-only")
	require.NoError(t, err)
	assert.Equal(t, save.UpdateOnly, m)
	_, err = parseMode("merge")
	assert.Error(t, err)
}

func TestSchemaCmd(t *testing.T) {
	color.NoColor = true
	cmd := SchemaCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{writeFile(t, "schema.yaml", testSchema)})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "Role (ROLE)")
	assert.Contains(t, out.String(), "many-to-one Role")
	assert.Contains(t, out.String(), "key: name")
}

func TestSaveCmd(t *testing.T) {
	color.NoColor = true
	schemaPath := writeFile(t, "schema.yaml", testSchema)
	dsn := "file:" + filepath.Join(t.TempDir(), "cascade.db")
	db, err := stdsql.Open("sqlite", dsn)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE ROLE (ID INTEGER PRIMARY KEY, NAME TEXT);
CREATE TABLE PERMISSION (ID INTEGER PRIMARY KEY, NAME TEXT, ROLE_ID INTEGER REFERENCES ROLE(ID));`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	run := func(args ...string) (string, string, error) {
		cmd := SaveCmd()
		var out, errOut bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(&errOut)
		cmd.SetIn(strings.NewReader(`{"name":"role","permissions":[{"name":"p1"},{"name":"p2"}]}`))
		cmd.SetArgs(append([]string{"--dsn", dsn, "--schema", schemaPath, "--type", "Role", "--mixins=false",
			"--id", "Role=sequence:101", "--id", "Permission=sequence:101,102"}, args...))
		err := cmd.Execute()
		return out.String(), errOut.String(), err
	}

	out, _, err := run("--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "dry run")
	assert.Contains(t, out, "commits=0 rollbacks=1")

	out, errOut, err := run("-v")
	require.NoError(t, err)
	assert.Contains(t, out, `INSERT INTO "PERMISSION"("ID", "NAME", "ROLE_ID") VALUES (?, ?, ?)`)
	assert.Contains(t, out, `"role":{"id":101}`)
	assert.Contains(t, out, "batch=2")
	assert.Contains(t, out, "execs=3")
	assert.Contains(t, out, "commits=1 rollbacks=0")
	assert.Contains(t, errOut, "begin transaction")
	assert.Contains(t, errOut, `msg="tx exec"`)
	assert.Contains(t, errOut, "commit transaction")

	// The second run finds every row by its key.
	out, errOut, err = run("--mode", "update-only")
	require.NoError(t, err)
	assert.NotContains(t, out, "INSERT")
	assert.NotContains(t, errOut, "begin transaction")

	_, _, err = run("--mode", "insert-only")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unique violation")

	_, _, err = run("--deny", "update")
	require.Error(t, err)
	assert.ErrorIs(t, err, privacy.Deny)

	_, _, err = run("--deny", "delete")
	assert.Error(t, err)

	_, _, err = run("--mode", "merge")
	assert.Error(t, err)
}

func TestViolationClass(t *testing.T) {
	assert.Equal(t, "unique", violationClass(&cascade.StatementError{Err: errors.New("UNIQUE constraint failed: ROLE.ID")}))
	assert.Equal(t, "foreign key", violationClass(&cascade.StatementError{Err: errors.New("FOREIGN KEY constraint failed")}))
	assert.Equal(t, "check", violationClass(&cascade.StatementError{Err: errors.New("CHECK constraint failed: age")}))
	assert.Equal(t, "constraint", violationClass(sqlgraph.NewConstraintError("new drafts share unique key")))
	assert.Empty(t, violationClass(errors.New("boom")))
}

func TestDenyRule(t *testing.T) {
	_, err := denyRule([]string{"insert", "update"})
	require.NoError(t, err)
	_, err = denyRule([]string{"upsert"})
	assert.Error(t, err)
}
