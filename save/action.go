package save

import (
	"strings"

	"github.com/syssam/cascade/dialect/sql"
	"github.com/syssam/cascade/entity"
	"github.com/syssam/cascade/schema"
)

// Kind is the kind of a save action.
type Kind uint8

// Action kinds.
const (
	Noop Kind = iota
	Insert
	Update
)

// String returns the action kind name.
func (k Kind) String() string {
	switch k {
	case Insert:
		return "insert"
	case Update:
		return "update"
	default:
		return "noop"
	}
}

// Action is one resolved unit of work. Columns and Values are copied from
// the draft when the action is emitted; the draft is only written back to
// with generated ids.
type Action struct {
	Type      *schema.Type
	Kind      Kind
	Draft     *entity.Draft
	Columns   []string // inserted or updated columns, in property order
	Values    []any
	Where     []string // id columns of an update
	Keys      []any
	Generated bool // the id is generated by the database
}

// signature is the grouping key of the batcher: table, kind, column set and
// where shape.
func (a *Action) signature() string {
	var sb strings.Builder
	sb.WriteString(a.Type.Table)
	sb.WriteByte('|')
	sb.WriteString(a.Kind.String())
	sb.WriteByte('|')
	sb.WriteString(strings.Join(a.Columns, ","))
	sb.WriteByte('|')
	sb.WriteString(strings.Join(a.Where, ","))
	if a.Generated {
		sb.WriteString("|generated")
	}
	return sb.String()
}

// row returns the positional parameters of the action.
func (a *Action) row() []any {
	row := make([]any, 0, len(a.Values)+len(a.Keys))
	row = append(row, a.Values...)
	return append(row, a.Keys...)
}

// Statement is one batched SQL statement: the same text executed once per
// parameter row, in order.
type Statement struct {
	Type      *schema.Type
	Kind      Kind
	SQL       string
	Rows      [][]any
	Actions   []*Action
	Generated bool
}

// Table returns the target table.
func (s *Statement) Table() string { return s.Type.Table }

// Batch groups contiguous actions sharing table, kind, column set and where
// shape into statements. Noop actions are dropped. Order is preserved.
func Batch(b *sql.DialectBuilder, actions []*Action) []*Statement {
	var (
		stmts []*Statement
		last  string
	)
	for _, a := range actions {
		if a.Kind == Noop {
			continue
		}
		sig := a.signature()
		if len(stmts) > 0 && sig == last {
			st := stmts[len(stmts)-1]
			st.Rows = append(st.Rows, a.row())
			st.Actions = append(st.Actions, a)
			continue
		}
		stmts = append(stmts, &Statement{
			Type:      a.Type,
			Kind:      a.Kind,
			SQL:       statementText(b, a),
			Rows:      [][]any{a.row()},
			Actions:   []*Action{a},
			Generated: a.Generated,
		})
		last = sig
	}
	return stmts
}

func statementText(b *sql.DialectBuilder, a *Action) string {
	var q sql.Querier
	switch a.Kind {
	case Insert:
		ins := b.Insert(a.Type.Table).Columns(a.Columns...)
		if a.Generated {
			ins.Returning(idColumns(a.Type)...)
		}
		q = ins
	case Update:
		upd := b.Update(a.Type.Table)
		for _, c := range a.Columns {
			upd.Set(c, nil)
		}
		for _, c := range a.Where {
			upd.Where(sql.EQ(c, nil))
		}
		q = upd
	}
	text, _ := q.Query()
	return text
}

func idColumns(t *schema.Type) []string {
	cols := make([]string, len(t.IDs()))
	for i, p := range t.IDs() {
		cols[i] = p.Column()
	}
	return cols
}
