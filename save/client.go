// Package save persists draft trees: it decides per node whether to insert,
// update or do nothing, runs the registered interceptors, allocates ids and
// flushes the resulting statements in batches, parents before children.
//
//	c := save.New(dialect.SQLite,
//	    save.WithIDGenerator("Role", idgen.NewSequence(100, 101)),
//	    save.WithInterceptors(reg),
//	)
//	res, err := c.Save(ctx, drv, role)
//	if err != nil {
//	    return err
//	}
//	modified, _ := res.Snapshot().ModifiedJSON()
//	fmt.Println(modified)
//
// Access policies from the privacy package run as interceptors:
//
//	reg := intercept.NewRegistry().
//	    Register("Role", privacy.Interceptor(privacy.DenyOperationRule(privacy.OpUpdate)))
//	_, err := save.New(dialect.SQLite, save.WithInterceptors(reg)).Save(ctx, drv, role)
//	if errors.Is(err, privacy.Deny) {
//	    // an existing role was about to be updated
//	}
package save

import (
	"context"
	"log/slog"

	"github.com/syssam/cascade"
	"github.com/syssam/cascade/dialect"
	"github.com/syssam/cascade/dialect/sql"
	"github.com/syssam/cascade/entity"
	"github.com/syssam/cascade/idgen"
	"github.com/syssam/cascade/intercept"
)

// Mode restricts the actions the engine may take.
type Mode uint8

// Save modes.
const (
	// Upsert inserts new rows and updates existing ones.
	Upsert Mode = iota
	// InsertOnly skips existence resolution and always inserts.
	InsertOnly
	// UpdateOnly never inserts. Unmatched nodes become no-ops.
	UpdateOnly
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case InsertOnly:
		return "insert-only"
	case UpdateOnly:
		return "update-only"
	default:
		return "upsert"
	}
}

// DefaultMaxDepth bounds the association depth of one save call.
const DefaultMaxDepth = 64

type config struct {
	generators   map[string]idgen.Generator
	interceptors *intercept.Registry
	logger       *slog.Logger
	mode         Mode
	maxDepth     int
	prepare      bool
}

// Option configures a Client.
type Option func(*config)

// WithIDGenerator registers the id generator of the named entity type.
func WithIDGenerator(typeName string, g idgen.Generator) Option {
	return func(c *config) {
		c.generators[typeName] = g
	}
}

// WithInterceptors sets the interceptor registry.
func WithInterceptors(r *intercept.Registry) Option {
	return func(c *config) {
		c.interceptors = r
	}
}

// WithLogger sets the logger used for statements and interceptor violations.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithMode sets the save mode.
func WithMode(m Mode) Option {
	return func(c *config) {
		c.mode = m
	}
}

// WithMaxDepth bounds the association depth. Deeper trees fail with a
// configuration error.
func WithMaxDepth(n int) Option {
	return func(c *config) {
		c.maxDepth = n
	}
}

// WithPreparedBatches prepares every statement of more than one row once
// and runs its rows through the prepared handle. Connections that cannot
// prepare statements get one Exec per row.
func WithPreparedBatches() Option {
	return func(c *config) {
		c.prepare = true
	}
}

// Client saves draft trees. It is safe for concurrent use; every Save call
// owns its own state.
type Client struct {
	config
	builder *sql.DialectBuilder
}

// New returns a client generating SQL for the given dialect.
func New(dialectName string, opts ...Option) *Client {
	c := config{
		generators: make(map[string]idgen.Generator),
		logger:     slog.Default(),
		maxDepth:   DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return &Client{config: c, builder: sql.Dialect(dialectName)}
}

// Dialect returns the SQL dialect of the client.
func (c *Client) Dialect() string { return c.builder.Name() }

// Save persists the draft tree rooted at root through conn. Transaction
// boundaries belong to the caller: on error, statements already executed
// are not undone.
//
// The root draft is mutated in place with allocated ids, generated ids and
// interceptor values. The returned result carries a snapshot of the tree
// before and after the save.
func (c *Client) Save(ctx context.Context, conn dialect.ExecQuerier, root *entity.Draft) (*Result, error) {
	if root == nil {
		return nil, cascade.NewConfigurationError("", "nil root draft")
	}
	if err := c.check(root); err != nil {
		return nil, err
	}
	s := &saver{
		Client: c,
		conn:   conn,
		res:    &Result{original: root.Clone()},
		active: make(map[*entity.Draft]bool),
		done:   make(map[*entity.Draft]bool),
		chains: make(map[string]intercept.Chain),
	}
	if err := s.saveGroup(ctx, root.Type(), []*entity.Draft{root}, nil, 0); err != nil {
		return nil, err
	}
	s.res.modified = root.Clone()
	return s.res, nil
}

// MustSave is like Save but panics on error.
func (c *Client) MustSave(ctx context.Context, conn dialect.ExecQuerier, root *entity.Draft) *Result {
	res, err := c.Save(ctx, conn, root)
	if err != nil {
		panic(err)
	}
	return res
}
