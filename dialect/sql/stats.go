package sql

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/syssam/cascade/dialect"
)

// QueryStats counts the statements and transactions sent through a
// StatsDriver. It is safe for concurrent use.
type QueryStats struct {
	queries   atomic.Int64
	execs     atomic.Int64
	errors    atomic.Int64
	slow      atomic.Int64
	commits   atomic.Int64
	rollbacks atomic.Int64
	elapsed   atomic.Int64 // nanoseconds
}

// Stats returns a snapshot of the counters.
func (s *QueryStats) Stats() StatsSnapshot {
	return StatsSnapshot{
		Queries:   s.queries.Load(),
		Execs:     s.execs.Load(),
		Errors:    s.errors.Load(),
		Slow:      s.slow.Load(),
		Commits:   s.commits.Load(),
		Rollbacks: s.rollbacks.Load(),
		Elapsed:   time.Duration(s.elapsed.Load()),
	}
}

// Reset sets every counter to zero.
func (s *QueryStats) Reset() {
	for _, c := range []*atomic.Int64{&s.queries, &s.execs, &s.errors, &s.slow, &s.commits, &s.rollbacks, &s.elapsed} {
		c.Store(0)
	}
}

// StatsSnapshot is a point-in-time copy of QueryStats.
type StatsSnapshot struct {
	Queries   int64
	Execs     int64
	Errors    int64
	Slow      int64
	Commits   int64
	Rollbacks int64
	Elapsed   time.Duration
}

// Avg returns the mean statement duration.
func (s StatsSnapshot) Avg() time.Duration {
	n := s.Queries + s.Execs
	if n == 0 {
		return 0
	}
	return s.Elapsed / time.Duration(n)
}

// String returns a one-line summary.
func (s StatsSnapshot) String() string {
	return fmt.Sprintf("queries=%d execs=%d errors=%d slow=%d commits=%d rollbacks=%d elapsed=%s avg=%s",
		s.Queries, s.Execs, s.Errors, s.Slow, s.Commits, s.Rollbacks, s.Elapsed, s.Avg())
}

// SlowQueryHook is called for every statement slower than the threshold.
type SlowQueryHook func(ctx context.Context, query string, args []any, elapsed time.Duration)

// StatsDriver wraps a dialect.Driver and counts what goes through it.
type StatsDriver struct {
	dialect.Driver
	stats     *QueryStats
	threshold atomic.Int64
	hook      SlowQueryHook
}

// StatsOption configures a StatsDriver.
type StatsOption func(*StatsDriver)

// WithSlowThreshold sets the slow statement threshold. Default is 100ms.
func WithSlowThreshold(d time.Duration) StatsOption {
	return func(s *StatsDriver) {
		s.threshold.Store(int64(d))
	}
}

// WithSlowQueryHook sets the hook called for slow statements.
func WithSlowQueryHook(hook SlowQueryHook) StatsOption {
	return func(s *StatsDriver) {
		s.hook = hook
	}
}

// WithSlowQueryLog logs slow statements at WARN. A nil logger means
// slog.Default().
func WithSlowQueryLog(l *slog.Logger) StatsOption {
	if l == nil {
		l = slog.Default()
	}
	return WithSlowQueryHook(func(ctx context.Context, query string, args []any, elapsed time.Duration) {
		l.WarnContext(ctx, "slow statement", "elapsed", elapsed, "sql", query, "args", args)
	})
}

// NewStatsDriver wraps drv with statistics collection.
//
//	drv, _ := sql.Open(dialect.SQLite, dsn)
//	stats := sql.NewStatsDriver(drv, sql.WithSlowThreshold(200*time.Millisecond))
//	res, err := save.New(stats.Dialect()).Save(ctx, stats, root)
//	fmt.Println(stats.QueryStats().Stats())
func NewStatsDriver(drv dialect.Driver, opts ...StatsOption) *StatsDriver {
	s := &StatsDriver{Driver: drv, stats: &QueryStats{}}
	s.threshold.Store(int64(100 * time.Millisecond))
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// QueryStats returns the live counters.
func (d *StatsDriver) QueryStats() *QueryStats { return d.stats }

// SlowThreshold returns the slow statement threshold.
func (d *StatsDriver) SlowThreshold() time.Duration {
	return time.Duration(d.threshold.Load())
}

// SetSlowThreshold changes the slow statement threshold.
func (d *StatsDriver) SetSlowThreshold(t time.Duration) {
	d.threshold.Store(int64(t))
}

// Query implements dialect.ExecQuerier.
func (d *StatsDriver) Query(ctx context.Context, query string, args, v any) error {
	return d.observe(ctx, &d.stats.queries, query, args, func() error {
		return d.Driver.Query(ctx, query, args, v)
	})
}

// Exec implements dialect.ExecQuerier.
func (d *StatsDriver) Exec(ctx context.Context, query string, args, v any) error {
	return d.observe(ctx, &d.stats.execs, query, args, func() error {
		return d.Driver.Exec(ctx, query, args, v)
	})
}

// Tx starts a transaction whose statements are counted too.
func (d *StatsDriver) Tx(ctx context.Context) (dialect.Tx, error) {
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return &statsTx{Tx: tx, drv: d}, nil
}

func (d *StatsDriver) observe(ctx context.Context, counter *atomic.Int64, query string, args any, run func() error) error {
	start := time.Now()
	err := run()
	elapsed := time.Since(start)
	counter.Add(1)
	d.stats.elapsed.Add(int64(elapsed))
	if err != nil {
		d.stats.errors.Add(1)
	}
	if elapsed > d.SlowThreshold() {
		d.stats.slow.Add(1)
		if d.hook != nil {
			argv, _ := args.([]any)
			d.hook(ctx, query, argv, elapsed)
		}
	}
	return err
}

type statsTx struct {
	dialect.Tx
	drv *StatsDriver
}

func (tx *statsTx) Query(ctx context.Context, query string, args, v any) error {
	return tx.drv.observe(ctx, &tx.drv.stats.queries, query, args, func() error {
		return tx.Tx.Query(ctx, query, args, v)
	})
}

func (tx *statsTx) Exec(ctx context.Context, query string, args, v any) error {
	return tx.drv.observe(ctx, &tx.drv.stats.execs, query, args, func() error {
		return tx.Tx.Exec(ctx, query, args, v)
	})
}

func (tx *statsTx) Commit() error {
	err := tx.Tx.Commit()
	if err == nil {
		tx.drv.stats.commits.Add(1)
	}
	return err
}

func (tx *statsTx) Rollback() error {
	err := tx.Tx.Rollback()
	if err == nil {
		tx.drv.stats.rollbacks.Add(1)
	}
	return err
}

// DebugDriver wraps a dialect.Driver and logs every statement and
// transaction boundary at DEBUG.
type DebugDriver struct {
	dialect.Driver
	logger *slog.Logger
}

// DebugOption configures a DebugDriver.
type DebugOption func(*DebugDriver)

// DebugWithLogger sets the logger. Default is slog.Default().
func DebugWithLogger(l *slog.Logger) DebugOption {
	return func(d *DebugDriver) {
		d.logger = l
	}
}

// NewDebugDriver wraps drv with debug logging. It stacks with
// NewStatsDriver in either order.
func NewDebugDriver(drv dialect.Driver, opts ...DebugOption) *DebugDriver {
	d := &DebugDriver{Driver: drv, logger: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Query implements dialect.ExecQuerier.
func (d *DebugDriver) Query(ctx context.Context, query string, args, v any) error {
	return logStatement(ctx, d.logger, "query", query, args, d.Driver.Query(ctx, query, args, v))
}

// Exec implements dialect.ExecQuerier.
func (d *DebugDriver) Exec(ctx context.Context, query string, args, v any) error {
	return logStatement(ctx, d.logger, "exec", query, args, d.Driver.Exec(ctx, query, args, v))
}

// Tx starts a transaction with debug logging.
func (d *DebugDriver) Tx(ctx context.Context) (dialect.Tx, error) {
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		d.logger.DebugContext(ctx, "begin transaction", "err", err)
		return nil, err
	}
	d.logger.DebugContext(ctx, "begin transaction")
	return &debugTx{Tx: tx, ctx: ctx, logger: d.logger}, nil
}

type debugTx struct {
	dialect.Tx
	ctx    context.Context
	logger *slog.Logger
}

func (tx *debugTx) Query(ctx context.Context, query string, args, v any) error {
	return logStatement(ctx, tx.logger, "tx query", query, args, tx.Tx.Query(ctx, query, args, v))
}

func (tx *debugTx) Exec(ctx context.Context, query string, args, v any) error {
	return logStatement(ctx, tx.logger, "tx exec", query, args, tx.Tx.Exec(ctx, query, args, v))
}

func (tx *debugTx) Commit() error {
	err := tx.Tx.Commit()
	tx.logger.DebugContext(tx.ctx, "commit transaction", "err", err)
	return err
}

func (tx *debugTx) Rollback() error {
	err := tx.Tx.Rollback()
	tx.logger.DebugContext(tx.ctx, "rollback transaction", "err", err)
	return err
}

func logStatement(ctx context.Context, l *slog.Logger, msg, query string, args any, err error) error {
	if err != nil {
		l.DebugContext(ctx, msg, "sql", query, "args", args, "err", err)
		return err
	}
	l.DebugContext(ctx, msg, "sql", query, "args", args)
	return nil
}

var (
	_ dialect.Driver = (*StatsDriver)(nil)
	_ dialect.Tx     = (*statsTx)(nil)
	_ dialect.Driver = (*DebugDriver)(nil)
	_ dialect.Tx     = (*debugTx)(nil)
)

// OpenWithStats opens a database and wraps it with statistics collection.
// The returned QueryStats is the driver's live counter set.
func OpenWithStats(driverName, source string, opts ...StatsOption) (*StatsDriver, *QueryStats, error) {
	drv, err := Open(driverName, source)
	if err != nil {
		return nil, nil, err
	}
	stats := NewStatsDriver(drv, opts...)
	return stats, stats.QueryStats(), nil
}
