package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/syssam/cascade/save"
)

func kindLabel(kind string) string {
	switch kind {
	case "select":
		return color.New(color.FgBlue).Sprint("SELECT")
	case "insert":
		return color.New(color.FgGreen).Sprint("INSERT")
	case "update":
		return color.New(color.FgYellow).Sprint("UPDATE")
	default:
		return kind
	}
}

// printResult writes the executed statements, the interceptor violations and
// the modified tree.
func printResult(w io.Writer, res *save.Result) error {
	faint := color.New(color.Faint)
	for i, st := range res.Statements() {
		detail := fmt.Sprintf("batch=%d", st.Batch)
		if st.Reason != "" {
			detail += " reason=" + string(st.Reason)
		} else {
			detail += fmt.Sprintf(" affected=%d", st.Affected)
		}
		fmt.Fprintf(w, "%2d %s %s\n   %s\n", i+1, kindLabel(st.Kind), faint.Sprint(detail), st.SQL)
	}
	for _, v := range res.Violations() {
		fmt.Fprintf(w, "%s %s\n", color.New(color.FgRed).Sprint("VIOLATION"), v)
	}
	modified, err := res.Snapshot().ModifiedJSON()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%s\n", modified)
	return nil
}
