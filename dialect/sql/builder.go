package sql

import (
	"strconv"
	"strings"

	"github.com/syssam/cascade/dialect"
)

// Querier wraps the basic Query method that is implemented
// by the different builders in this file.
type Querier interface {
	// Query returns the query representation of the element
	// and its arguments (if any).
	Query() (string, []any)
}

// Builder is the base query builder for the sql dsl. It tracks the dialect
// for identifier quoting and placeholder numbering.
type Builder struct {
	sb      strings.Builder
	args    []any
	dialect string
}

// Ident appends the given string as a quoted identifier.
func (b *Builder) Ident(s string) *Builder {
	b.sb.WriteString(b.Quote(s))
	return b
}

// IdentComma appends the identifiers separated by a comma.
func (b *Builder) IdentComma(s ...string) *Builder {
	for i := range s {
		if i > 0 {
			b.sb.WriteString(", ")
		}
		b.Ident(s[i])
	}
	return b
}

// Quote quotes the identifier using the dialect quoting rules. Identifiers
// that are already quoted, or contain a qualifier dot, are returned as is.
func (b *Builder) Quote(ident string) string {
	if ident == "" || strings.ContainsAny(ident, "`\"(") {
		return ident
	}
	if strings.Contains(ident, ".") {
		parts := strings.Split(ident, ".")
		for i := range parts {
			parts[i] = b.Quote(parts[i])
		}
		return strings.Join(parts, ".")
	}
	if b.dialect == dialect.MySQL {
		return "`" + ident + "`"
	}
	return strconv.Quote(ident)
}

// WriteString appends raw SQL text.
func (b *Builder) WriteString(s string) *Builder {
	b.sb.WriteString(s)
	return b
}

// Arg appends a placeholder for the given argument.
func (b *Builder) Arg(a any) *Builder {
	b.args = append(b.args, a)
	if b.dialect == dialect.Postgres {
		b.sb.WriteString("$" + strconv.Itoa(len(b.args)))
	} else {
		b.sb.WriteString("?")
	}
	return b
}

// Args appends a comma separated list of placeholders.
func (b *Builder) Args(a ...any) *Builder {
	for i := range a {
		if i > 0 {
			b.sb.WriteString(", ")
		}
		b.Arg(a[i])
	}
	return b
}

// String returns the accumulated string.
func (b *Builder) String() string {
	return b.sb.String()
}

// Query implements the Querier interface.
func (b *Builder) Query() (string, []any) {
	return b.String(), b.args
}

// DialectBuilder prefixes all root builders with the same dialect.
type DialectBuilder struct {
	dialect string
}

// Dialect creates a new DialectBuilder with the given dialect name.
func Dialect(name string) *DialectBuilder {
	return &DialectBuilder{dialect: name}
}

// Name returns the dialect name.
func (d *DialectBuilder) Name() string {
	return d.dialect
}

// Select returns a Selector for the given columns.
func (d *DialectBuilder) Select(columns ...string) *Selector {
	return &Selector{dialect: d.dialect, columns: columns}
}

// Insert returns an InsertBuilder for the given table.
func (d *DialectBuilder) Insert(table string) *InsertBuilder {
	return &InsertBuilder{dialect: d.dialect, table: table}
}

// Update returns an UpdateBuilder for the given table.
func (d *DialectBuilder) Update(table string) *UpdateBuilder {
	return &UpdateBuilder{dialect: d.dialect, table: table}
}

// Predicate writes a boolean SQL expression into a Builder.
type Predicate func(*Builder)

// EQ returns a "column = value" predicate.
func EQ(column string, v any) Predicate {
	return func(b *Builder) {
		b.Ident(column).WriteString(" = ").Arg(v)
	}
}

// NEQ returns a "column <> value" predicate.
func NEQ(column string, v any) Predicate {
	return func(b *Builder) {
		b.Ident(column).WriteString(" <> ").Arg(v)
	}
}

// IsNull returns a "column IS NULL" predicate.
func IsNull(column string) Predicate {
	return func(b *Builder) {
		b.Ident(column).WriteString(" IS NULL")
	}
}

// In returns a "column IN (...)" predicate. A single value is written as EQ.
func In(column string, vs ...any) Predicate {
	if len(vs) == 1 {
		return EQ(column, vs[0])
	}
	return func(b *Builder) {
		b.Ident(column).WriteString(" IN (").Args(vs...).WriteString(")")
	}
}

// InTuples returns a "(c1, c2) IN ((?, ?), ...)" predicate. A single tuple
// is written as a conjunction of EQ predicates.
func InTuples(columns []string, tuples ...[]any) Predicate {
	if len(columns) == 1 {
		vs := make([]any, len(tuples))
		for i := range tuples {
			vs[i] = tuples[i][0]
		}
		return In(columns[0], vs...)
	}
	if len(tuples) == 1 {
		ps := make([]Predicate, len(columns))
		for i, c := range columns {
			ps[i] = EQ(c, tuples[0][i])
		}
		return And(ps...)
	}
	return func(b *Builder) {
		b.WriteString("(").IdentComma(columns...).WriteString(") IN (")
		for i, t := range tuples {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString("(").Args(t...).WriteString(")")
		}
		b.WriteString(")")
	}
}

// And joins the predicates with AND.
func And(ps ...Predicate) Predicate {
	return func(b *Builder) {
		for i, p := range ps {
			if i > 0 {
				b.WriteString(" AND ")
			}
			p(b)
		}
	}
}

// Selector is a builder for the SELECT statement.
type Selector struct {
	dialect string
	columns []string
	table   string
	where   []Predicate
}

// From sets the source table.
func (s *Selector) From(table string) *Selector {
	s.table = table
	return s
}

// Where appends predicates joined with AND.
func (s *Selector) Where(ps ...Predicate) *Selector {
	s.where = append(s.where, ps...)
	return s
}

// Query returns the statement text and its arguments.
func (s *Selector) Query() (string, []any) {
	b := &Builder{dialect: s.dialect}
	b.WriteString("SELECT ").IdentComma(s.columns...).WriteString(" FROM ").Ident(s.table)
	if len(s.where) > 0 {
		b.WriteString(" WHERE ")
		And(s.where...)(b)
	}
	return b.Query()
}

// InsertBuilder is a builder for a single-row INSERT statement.
type InsertBuilder struct {
	dialect   string
	table     string
	columns   []string
	values    []any
	returning []string
}

// Columns sets the inserted columns.
func (i *InsertBuilder) Columns(columns ...string) *InsertBuilder {
	i.columns = append(i.columns, columns...)
	return i
}

// Values sets the row values, in column order.
func (i *InsertBuilder) Values(values ...any) *InsertBuilder {
	i.values = values
	return i
}

// Returning adds a RETURNING clause. It is ignored by dialects
// that do not support it.
func (i *InsertBuilder) Returning(columns ...string) *InsertBuilder {
	i.returning = columns
	return i
}

// Query returns the statement text and its arguments.
func (i *InsertBuilder) Query() (string, []any) {
	b := &Builder{dialect: i.dialect}
	b.WriteString("INSERT INTO ").Ident(i.table)
	if len(i.columns) == 0 {
		b.WriteString(" DEFAULT VALUES")
	} else {
		values := i.values
		if values == nil {
			values = make([]any, len(i.columns))
		}
		b.WriteString("(").IdentComma(i.columns...).WriteString(") VALUES (").Args(values...).WriteString(")")
	}
	if len(i.returning) > 0 && i.dialect == dialect.Postgres {
		b.WriteString(" RETURNING ").IdentComma(i.returning...)
	}
	return b.Query()
}

// UpdateBuilder is a builder for the UPDATE statement.
type UpdateBuilder struct {
	dialect string
	table   string
	columns []string
	values  []any
	where   []Predicate
}

// Set sets a column to the given value.
func (u *UpdateBuilder) Set(column string, v any) *UpdateBuilder {
	u.columns = append(u.columns, column)
	u.values = append(u.values, v)
	return u
}

// Where appends predicates joined with AND.
func (u *UpdateBuilder) Where(ps ...Predicate) *UpdateBuilder {
	u.where = append(u.where, ps...)
	return u
}

// Query returns the statement text and its arguments.
func (u *UpdateBuilder) Query() (string, []any) {
	b := &Builder{dialect: u.dialect}
	b.WriteString("UPDATE ").Ident(u.table).WriteString(" SET ")
	for i, c := range u.columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.Ident(c).WriteString(" = ").Arg(u.values[i])
	}
	if len(u.where) > 0 {
		b.WriteString(" WHERE ")
		And(u.where...)(b)
	}
	return b.Query()
}
