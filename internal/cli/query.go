package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	hermes "github.com/sbowman/hermes-reconnect"
)

var queryCmd = &cobra.Command{
	Use:   "query SQL [ARGS...]",
	Short: "Run a query and print the rows",
	Long: `Run a query and print the rows as a table.  Additional arguments are passed as the
query parameters $1, $2 and so on, e.g.

  hermes query 'SELECT id, email FROM users WHERE id = $1' 42`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

var execCmd = &cobra.Command{
	Use:   "exec SQL [ARGS...]",
	Short: "Run a statement and print the number of rows affected",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runExec,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(execCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	s, err := open(ctx, cmd, nil)
	if err != nil {
		return err
	}
	defer s.close(ctx)

	rs, err := s.conn.Select(ctx, args[0], queryArgs(args[1:])...)
	if err != nil {
		return err
	}

	return printResultSet(cmd.OutOrStdout(), rs)
}

func runExec(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	s, err := open(ctx, cmd, nil)
	if err != nil {
		return err
	}
	defer s.close(ctx)

	tag, err := s.conn.Exec(ctx, args[0], queryArgs(args[1:])...)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s (%d rows)\n", tag.String(), tag.RowsAffected())

	return nil
}

// printResultSet writes the rows as tab-aligned columns under a header.
func printResultSet(out io.Writer, rs *hermes.ResultSet) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	fmt.Fprintln(w, strings.Join(rs.Columns, "\t"))

	for _, values := range rs.Rows {
		cells := make([]string, len(values))
		for i, v := range values {
			if v == nil {
				cells[i] = "NULL"
				continue
			}
			cells[i] = fmt.Sprint(v)
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}

	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "(%d rows)\n", len(rs.Rows))

	return nil
}
