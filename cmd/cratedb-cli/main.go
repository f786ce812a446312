// Command cratedb-cli is a thin example program exercising the
// cratedb client's execute, insert, and streamQuery operations. It is
// not part of the library's core surface.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/proddata/go-cratedb"
)

var (
	flagHost     string
	flagPort     int
	flagUser     string
	flagPassword string
	flagSSL      bool
)

func newClient() (*cratedb.Client, error) {
	cfg := cratedb.DefaultConfig()
	cfg.Host = flagHost
	cfg.Port = flagPort
	cfg.User = flagUser
	cfg.Password = flagPassword
	cfg.SSL = flagSSL
	return cratedb.NewClient(cfg)
}

func main() {
	root := &cobra.Command{
		Use:   "cratedb-cli",
		Short: "Exercise the go-cratedb client against a running CrateDB node",
	}
	root.PersistentFlags().StringVar(&flagHost, "host", "localhost", "CrateDB host")
	root.PersistentFlags().IntVar(&flagPort, "port", 4200, "CrateDB HTTP port")
	root.PersistentFlags().StringVar(&flagUser, "user", "crate", "username")
	root.PersistentFlags().StringVar(&flagPassword, "password", "", "password")
	root.PersistentFlags().BoolVar(&flagSSL, "ssl", false, "use HTTPS")

	root.AddCommand(newExecCmd())
	root.AddCommand(newInsertCmd())
	root.AddCommand(newStreamCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newExecCmd() *cobra.Command {
	var argsJSON string
	cmd := &cobra.Command{
		Use:   "exec <sql>",
		Short: "Execute one statement and print the response as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			var stmtArgs []any
			if argsJSON != "" {
				if err := json.Unmarshal([]byte(argsJSON), &stmtArgs); err != nil {
					return fmt.Errorf("invalid --args JSON: %w", err)
				}
			}
			resp, err := client.Execute(context.Background(), args[0], stmtArgs)
			if err != nil {
				return err
			}
			return printJSON(resp)
		},
	}
	cmd.Flags().StringVar(&argsJSON, "args", "", `positional args as a JSON array, e.g. '["a", 1]'`)
	return cmd
}

func newInsertCmd() *cobra.Command {
	var rowJSON string
	var pkCols []string
	cmd := &cobra.Command{
		Use:   "insert <table>",
		Short: "Insert one row, upserting on the given primary key columns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			var fields map[string]any
			if err := json.Unmarshal([]byte(rowJSON), &fields); err != nil {
				return fmt.Errorf("invalid --row JSON: %w", err)
			}
			row := cratedb.NewRow()
			for _, k := range sortedFieldNames(fields) {
				row.Set(k, fields[k])
			}
			resp, err := client.Insert(context.Background(), args[0], row, pkCols)
			if err != nil {
				return err
			}
			return printJSON(resp)
		},
	}
	cmd.Flags().StringVar(&rowJSON, "row", "{}", "row to insert, as a JSON object")
	cmd.Flags().StringSliceVar(&pkCols, "pk", nil, "primary key column names")
	return cmd
}

func newStreamCmd() *cobra.Command {
	var batchSize int
	cmd := &cobra.Command{
		Use:   "stream <sql>",
		Short: "Stream a query's rows through a server-side cursor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			ctx := context.Background()
			rows, errc := client.StreamQuery(ctx, args[0], batchSize)
			enc := json.NewEncoder(os.Stdout)
			for row := range rows {
				if err := enc.Encode(row); err != nil {
					return err
				}
			}
			return <-errc
		},
	}
	cmd.Flags().IntVar(&batchSize, "batch-size", 100, "rows fetched per round-trip")
	return cmd
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func sortedFieldNames(m map[string]any) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && names[j-1] > names[j]; j-- {
			names[j-1], names[j] = names[j], names[j-1]
		}
	}
	return names
}
