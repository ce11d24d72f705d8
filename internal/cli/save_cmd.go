package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	// Database drivers selectable with --driver.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/syssam/cascade"
	"github.com/syssam/cascade/contrib/mixin"
	"github.com/syssam/cascade/dialect"
	"github.com/syssam/cascade/dialect/sql"
	"github.com/syssam/cascade/entity"
	"github.com/syssam/cascade/idgen"
	"github.com/syssam/cascade/intercept"
	"github.com/syssam/cascade/privacy"
	"github.com/syssam/cascade/save"
	"github.com/syssam/cascade/schema"
)

// SaveCmd returns the save command.
func SaveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Save a JSON entity tree",
		Long: `Save a JSON entity tree into the database, in one transaction.

Usage:
  cascade save --schema roles.yaml --type Role --input role.json
  cascade save --driver postgres --dsn "postgres://..." --schema roles.yaml \
      --type Role --id Role=database --id Permission=sequence:101,102 < role.json
  cascade save --schema roles.yaml --type Role --dry-run < role.json
  cascade save --schema roles.yaml --type Role --deny update < role.json

Id generators (--id Type=strategy):
  database              read back from the INSERT
  uuid                  random UUID strings
  computed              the id is part of the input
  sequence:1,2,3        pre-supplied ids, handed out in order`,
		RunE: runSave,
	}

	cmd.Flags().String("driver", "sqlite", "Database driver: sqlite, postgres or mysql")
	cmd.Flags().String("dsn", "file:cascade.db?_pragma=foreign_keys(1)", "Data source name")
	cmd.Flags().String("schema", "", "YAML schema file (required)")
	cmd.Flags().String("type", "", "Entity type of the root (required)")
	cmd.Flags().String("input", "-", "JSON input file, - for stdin")
	cmd.Flags().String("mode", "upsert", "Save mode: upsert, insert-only or update-only")
	cmd.Flags().StringArray("id", nil, "Id generator per type, Type=strategy (repeatable)")
	cmd.Flags().Bool("mixins", true, "Register the soft-delete, time and tenant interceptors")
	cmd.Flags().String("tenant", "", "Tenant id filled into new rows of tenant types")
	cmd.Flags().StringArray("deny", nil, "Reject an operation (insert or update) on every type (repeatable)")
	cmd.Flags().Bool("dry-run", false, "Roll the transaction back after saving")
	cmd.Flags().Duration("slow", 100*time.Millisecond, "Slow statement threshold")
	cmd.Flags().BoolP("verbose", "v", false, "Log every statement")
	_ = cmd.MarkFlagRequired("schema")
	_ = cmd.MarkFlagRequired("type")

	return cmd
}

func runSave(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	driverName, _ := cmd.Flags().GetString("driver")
	dsn, _ := cmd.Flags().GetString("dsn")
	schemaPath, _ := cmd.Flags().GetString("schema")
	typeName, _ := cmd.Flags().GetString("type")
	input, _ := cmd.Flags().GetString("input")
	modeName, _ := cmd.Flags().GetString("mode")
	ids, _ := cmd.Flags().GetStringArray("id")
	mixins, _ := cmd.Flags().GetBool("mixins")
	tenant, _ := cmd.Flags().GetString("tenant")
	deny, _ := cmd.Flags().GetStringArray("deny")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	slow, _ := cmd.Flags().GetDuration("slow")
	verbose, _ := cmd.Flags().GetBool("verbose")

	g, err := loadSchema(schemaPath)
	if err != nil {
		return err
	}
	t, ok := g.Type(typeName)
	if !ok {
		return fmt.Errorf("unknown type %q", typeName)
	}
	root, err := readTree(cmd.InOrStdin(), input, t)
	if err != nil {
		return err
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	opts := []save.Option{save.WithLogger(logger)}
	mode, err := parseMode(modeName)
	if err != nil {
		return err
	}
	opts = append(opts, save.WithMode(mode))
	for _, arg := range ids {
		name, gen, err := parseGenerator(arg)
		if err != nil {
			return err
		}
		opts = append(opts, save.WithIDGenerator(name, gen))
	}
	reg := intercept.NewRegistry()
	if mixins {
		mixin.Register(reg, time.Now)
	}
	if len(deny) > 0 {
		rule, err := denyRule(deny)
		if err != nil {
			return err
		}
		for _, t := range g.Types() {
			reg.Register(t.Name, privacy.Interceptor(rule))
		}
	}
	opts = append(opts, save.WithInterceptors(reg))
	if tenant != "" {
		ctx = mixin.WithTenant(ctx, tenant)
	}

	stats, qs, err := sql.OpenWithStats(driverName, dsn, sql.WithSlowThreshold(slow), sql.WithSlowQueryLog(logger))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer stats.Close()
	var drv dialect.Driver = stats
	if verbose {
		drv = sql.NewDebugDriver(stats, sql.DebugWithLogger(logger))
	}

	tx, err := drv.Tx(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	res, err := save.New(drv.Dialect(), opts...).Save(ctx, tx, root)
	if err != nil {
		if class := violationClass(err); class != "" {
			err = fmt.Errorf("%s violation: %w", class, err)
		}
		if rerr := tx.Rollback(); rerr != nil {
			err = fmt.Errorf("%w: rolling back transaction: %v", err, rerr)
		}
		return err
	}
	if dryRun {
		err = tx.Rollback()
	} else {
		err = tx.Commit()
	}
	if err != nil {
		return fmt.Errorf("end transaction: %w", err)
	}

	w := cmd.OutOrStdout()
	if err := printResult(w, res); err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%s\n", qs.Stats())
	if dryRun {
		fmt.Fprintln(w, "dry run: transaction rolled back")
	}
	return nil
}

func readTree(stdin io.Reader, input string, t *schema.Type) (*entity.Draft, error) {
	r := stdin
	if input != "-" {
		f, err := os.Open(input)
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}
	var m map[string]any
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode input: %w", err)
	}
	return entity.FromMap(t, m)
}

// violationClass names the constraint err violated, if any.
func violationClass(err error) string {
	switch {
	case cascade.IsUniqueViolation(err):
		return "unique"
	case cascade.IsForeignKeyViolation(err):
		return "foreign key"
	case cascade.IsCheckViolation(err):
		return "check"
	case cascade.IsConstraintViolation(err):
		return "constraint"
	default:
		return ""
	}
}

// denyRule builds the rule rejecting the named operations.
func denyRule(names []string) (privacy.Rule, error) {
	var op privacy.Op
	for _, name := range names {
		switch name {
		case "insert":
			op |= privacy.OpInsert
		case "update":
			op |= privacy.OpUpdate
		default:
			return nil, fmt.Errorf("unknown operation %q: want insert or update", name)
		}
	}
	return privacy.DenyOperationRule(op), nil
}

func parseMode(s string) (save.Mode, error) {
	for _, m := range []save.Mode{save.Upsert, save.InsertOnly, save.UpdateOnly} {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown save mode %q", s)
}

// parseGenerator parses a Type=strategy flag value.
func parseGenerator(arg string) (string, idgen.Generator, error) {
	name, strategy, ok := strings.Cut(arg, "=")
	if !ok || name == "" {
		return "", nil, fmt.Errorf("invalid id generator %q: want Type=strategy", arg)
	}
	switch {
	case strategy == "database":
		return name, idgen.Database(), nil
	case strategy == "uuid":
		return name, idgen.UUID(), nil
	case strategy == "computed":
		return name, idgen.Computed(), nil
	case strings.HasPrefix(strategy, "sequence:"):
		var ids []any
		for _, s := range strings.Split(strings.TrimPrefix(strategy, "sequence:"), ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				ids = append(ids, n)
			} else {
				ids = append(ids, s)
			}
		}
		return name, idgen.NewSequence(ids...), nil
	default:
		return "", nil, fmt.Errorf("unknown id strategy %q", strategy)
	}
}
