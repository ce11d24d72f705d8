package save

import (
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/syssam/cascade"
	"github.com/syssam/cascade/entity"
)

// Reason labels why a SELECT was issued.
type Reason string

// Query reasons.
const (
	// ReasonKey is a lookup by unique key.
	ReasonKey Reason = "key"
	// ReasonInterceptor is a lookup whose result feeds interceptors.
	ReasonInterceptor Reason = "interceptor"
	// ReasonID is a lookup by id.
	ReasonID Reason = "id"
)

// Executed records one statement sent to the database. Batch is the number
// of parameter rows; queries always have a batch of one.
type Executed struct {
	Table    string
	SQL      string
	Args     [][]any
	Kind     string // "select", "insert" or "update"
	Reason   Reason // only set for selects
	Batch    int
	Affected int64
	Prepared bool // rows ran through one prepared statement
}

// Result is the outcome of a successful save.
type Result struct {
	original   *entity.Draft
	modified   *entity.Draft
	statements []Executed
	violations []*cascade.InterceptorViolation
	affected   map[string]int64
}

// Snapshot returns the before and after views of the tree.
func (r *Result) Snapshot() *Snapshot {
	return &Snapshot{Original: r.original, Modified: r.modified}
}

// Statements returns the statements in execution order.
func (r *Result) Statements() []Executed { return r.statements }

// Violations returns the interceptor violations observed during the save.
func (r *Result) Violations() []*cascade.InterceptorViolation { return r.violations }

// AffectedRows returns the number of rows inserted or updated per table.
func (r *Result) AffectedRows() map[string]int64 { return r.affected }

// TotalAffectedRows returns the number of rows inserted or updated.
func (r *Result) TotalAffectedRows() int64 {
	var n int64
	for _, v := range r.affected {
		n += v
	}
	return n
}

func (r *Result) record(e Executed) {
	r.statements = append(r.statements, e)
	if e.Kind == "select" {
		return
	}
	if r.affected == nil {
		r.affected = make(map[string]int64)
	}
	r.affected[e.Table] += e.Affected
}

// Snapshot holds frozen copies of the tree: as submitted and as saved.
// Neither is touched by later changes to the caller's draft.
type Snapshot struct {
	Original *entity.Draft
	Modified *entity.Draft
}

// OriginalJSON returns the JSON form of the tree as submitted.
func (s *Snapshot) OriginalJSON() (string, error) {
	return marshal(s.Original)
}

// ModifiedJSON returns the JSON form of the tree after the save, carrying
// allocated ids and interceptor values.
func (s *Snapshot) ModifiedJSON() (string, error) {
	return marshal(s.Modified)
}

// MarshalMsgpack encodes both views as a two-key map.
func (s *Snapshot) MarshalMsgpack() ([]byte, error) {
	return msgpack.Marshal(map[string]any{
		"original": s.Original.ToMap(),
		"modified": s.Modified.ToMap(),
	})
}

func marshal(d *entity.Draft) (string, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
