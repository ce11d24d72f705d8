package schema_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/cascade"
	"github.com/syssam/cascade/schema"
)

type softDelete struct{}

func (softDelete) MixinName() string { return "soft_delete" }

func (softDelete) Fields() []schema.FieldDescriptor {
	return []schema.FieldDescriptor{schema.Bool("deleted")}
}

func (softDelete) LogicalDeleted() *schema.LogicalDeleted {
	return &schema.LogicalDeleted{Field: "deleted"}
}

func TestCompile(t *testing.T) {
	g, err := schema.Compile(
		schema.Define("BookAuthor").
			ID(schema.Int("id")).
			Fields(schema.String("fullName")).
			Assocs(schema.OneToMany("books", "Book").MappedBy("author")).
			Mixin(softDelete{}),
		schema.Define("Book").
			Table("BOOKS").
			ID(schema.Int("id").StorageKey("BOOK_ID")).
			Fields(schema.String("title"), schema.Time("published")).
			Assocs(schema.ManyToOne("author", "BookAuthor")).
			Key("title", "author"),
	)
	require.NoError(t, err)
	require.Len(t, g.Types(), 2)

	author := g.MustType("BookAuthor")
	assert.Equal(t, "book_author", author.Table)
	assert.True(t, author.HasMixin("soft_delete"))
	names := make([]string, 0, len(author.Properties()))
	for _, p := range author.Properties() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"id", "fullName", "deleted", "books"}, names)
	p, ok := author.Property("fullName")
	require.True(t, ok)
	assert.Equal(t, "full_name", p.Column())
	deleted, ok := author.DeletedProperty()
	require.True(t, ok)
	assert.Equal(t, "deleted", deleted.Name)
	assert.Equal(t, true, author.Deleted.Value)
	books, _ := author.Property("books")
	assert.True(t, books.Inverse())
	assert.Empty(t, books.Column())

	book, ok := g.Type("Book")
	require.True(t, ok)
	assert.Equal(t, "BOOKS", book.Table)
	assert.Equal(t, "BOOK_ID", book.IDs()[0].Column())
	assert.False(t, book.CompositeID())
	ref, _ := book.Property("author")
	assert.True(t, ref.Reference())
	assert.Equal(t, "author_id", ref.Column())
	assert.Same(t, author, ref.Assoc.Target)
	assert.Same(t, ref.Assoc, books.Assoc.Inverse)
	require.Len(t, book.Key(), 2)
	assert.Equal(t, "author", book.Key()[1].Name)
	_, ok = book.DeletedProperty()
	assert.False(t, ok)
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name string
		defs []*schema.Def
		want string
	}{
		{
			name: "NoID",
			defs: []*schema.Def{schema.Define("A")},
			want: "no id field",
		},
		{
			name: "Duplicate",
			defs: []*schema.Def{
				schema.Define("A").ID(schema.Int("id")),
				schema.Define("A").ID(schema.Int("id")),
			},
			want: "duplicate type",
		},
		{
			name: "UnknownTarget",
			defs: []*schema.Def{
				schema.Define("A").ID(schema.Int("id")).Assocs(schema.ManyToOne("b", "B")),
			},
			want: "unknown type",
		},
		{
			name: "MissingMappedBy",
			defs: []*schema.Def{
				schema.Define("A").ID(schema.Int("id")).Assocs(schema.OneToMany("bs", "B")),
				schema.Define("B").ID(schema.Int("id")),
			},
			want: "must be mapped by",
		},
		{
			name: "BadMappedBy",
			defs: []*schema.Def{
				schema.Define("A").ID(schema.Int("id")).Assocs(schema.OneToMany("bs", "B").MappedBy("a")),
				schema.Define("B").ID(schema.Int("id")).Fields(schema.Int("a")),
			},
			want: "not an owning association",
		},
		{
			name: "UnknownKey",
			defs: []*schema.Def{
				schema.Define("A").ID(schema.Int("id")).Key("name"),
			},
			want: "unknown property",
		},
		{
			name: "CompositeTarget",
			defs: []*schema.Def{
				schema.Define("A").ID(schema.Int("id")).Assocs(schema.ManyToOne("b", "B")),
				schema.Define("B").ID(schema.Int("x"), schema.Int("y")),
			},
			want: "composite id",
		},
		{
			name: "DeletedNotField",
			defs: []*schema.Def{
				schema.Define("A").ID(schema.Int("id")).LogicalDeleted("gone", nil),
			},
			want: "logical-delete field",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := schema.Compile(tt.defs...)
			require.Error(t, err)
			assert.True(t, cascade.IsConfigurationError(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestKind_Convert(t *testing.T) {
	ts := time.Date(2022, 10, 3, 0, 10, 0, 0, time.UTC)
	tests := []struct {
		kind schema.Kind
		in   any
		want any
	}{
		{schema.KindInt, 101, int64(101)},
		{schema.KindInt, int32(7), int64(7)},
		{schema.KindInt, float64(3), int64(3)},
		{schema.KindInt, "42", int64(42)},
		{schema.KindFloat, 2, float64(2)},
		{schema.KindBool, int64(0), false},
		{schema.KindBool, "true", true},
		{schema.KindString, []byte("x"), "x"},
		{schema.KindTime, "2022-10-03T00:10:00Z", ts},
		{schema.KindTime, "2022-10-03 00:10:00+00:00", ts},
		{schema.KindBytes, "ab", []byte("ab")},
		{schema.KindAny, struct{}{}, struct{}{}},
		{schema.KindString, nil, nil},
	}
	for _, tt := range tests {
		got, err := tt.kind.Convert(tt.in)
		require.NoError(t, err, "%s %v", tt.kind, tt.in)
		if want, ok := tt.want.(time.Time); ok {
			assert.True(t, want.Equal(got.(time.Time)))
			continue
		}
		assert.Equal(t, tt.want, got)
	}
	_, err := schema.KindInt.Convert(1.5)
	assert.Error(t, err)
	_, err = schema.KindBool.Convert(struct{}{})
	assert.Error(t, err)
}

func TestParseKind(t *testing.T) {
	k, err := schema.ParseKind("time")
	require.NoError(t, err)
	assert.Equal(t, schema.KindTime, k)
	assert.Equal(t, "time", k.String())
	_, err = schema.ParseKind("decimal")
	assert.Error(t, err)
}

func TestParseRel(t *testing.T) {
	for _, s := range []string{"many-to-one", "m2o"} {
		r, err := schema.ParseRel(s)
		require.NoError(t, err)
		assert.Equal(t, schema.M2O, r)
	}
	r, err := schema.ParseRel("o2o")
	require.NoError(t, err)
	assert.Equal(t, "one-to-one", r.String())
	_, err = schema.ParseRel("many-to-many")
	assert.Error(t, err)
}

const rolesYAML = `
types:
  - name: Role
    table: ROLE
    id: [{name: id, column: ID, kind: int}]
    fields:
      - {name: name, column: NAME, kind: string}
      - {name: deleted, column: DELETED, kind: bool}
    assocs:
      - {name: permissions, rel: one-to-many, target: Permission, mappedBy: role}
    key: [name]
    logicalDeleted: {field: deleted}
  - name: Permission
    table: PERMISSION
    id: [{name: id, column: ID, kind: int}]
    fields: [{name: name, column: NAME, kind: string}]
    assocs:
      - {name: role, rel: m2o, target: Role, column: ROLE_ID}
    key: [name]
`

func TestLoadYAML(t *testing.T) {
	g, err := schema.LoadYAML(strings.NewReader(rolesYAML))
	require.NoError(t, err)
	role := g.MustType("Role")
	assert.Equal(t, "ROLE", role.Table)
	require.NotNil(t, role.Deleted)
	assert.Equal(t, true, role.Deleted.Value)
	assert.Equal(t, "NAME", role.Key()[0].Column())
	ref, ok := g.MustType("Permission").Property("role")
	require.True(t, ok)
	assert.Equal(t, "ROLE_ID", ref.Column())
	assert.Same(t, role, ref.Assoc.Target)

	_, err = schema.LoadYAML(strings.NewReader("types: [{name: A, id: [{name: id, kind: money}]}]"))
	assert.Error(t, err)
	_, err = schema.LoadYAML(strings.NewReader("types: ["))
	assert.Error(t, err)
}

func TestGraph_MustTypePanics(t *testing.T) {
	g, err := schema.Compile()
	require.NoError(t, err)
	assert.Panics(t, func() { g.MustType("Missing") })
}
