package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tessera-db/tessera/cmd/dump"
	"github.com/tessera-db/tessera/cmd/load"
	"github.com/tessera-db/tessera/cmd/perf"
	"github.com/tessera-db/tessera/cmd/repl"
	"github.com/tessera-db/tessera/cmd/serve"
	"github.com/tessera-db/tessera/cmd/util"
)

const (
	Version = "1.0.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "tessera",
		Short: "semi-structured key-ordered database",
		Long: fmt.Sprintf(`Tessera (v%s)

A semi-structured database storing timestamped (table, key, column)
records in a single ordered keyspace, with transactions, range queries,
resumable backups and a replication stream.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of Tessera",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Tessera v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(dump.DumpCmd)
	RootCmd.AddCommand(load.LoadCmd)
	RootCmd.AddCommand(repl.ReplCmd)
	RootCmd.AddCommand(perf.PerfCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "binary", util.WrapString("serializer to use (json, gob, binary)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "tcp", util.WrapString("transport to use (tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
// Exit codes: 0 on success, 1 for usage errors, 2 for runtime failures.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		var rtErr *util.RuntimeError
		if errors.As(err, &rtErr) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
