package repl

import (
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/tessera-db/tessera/cmd/util"
	"github.com/tessera-db/tessera/rpc/client"
	"github.com/tessera-db/tessera/rpc/common"
)

var (
	// ReplCmd is an interactive shell against a running server
	ReplCmd = &cobra.Command{
		Use:   "repl",
		Short: "Interactive shell for a Tessera server",
		Long:  `Start an interactive shell connected to a Tessera server. Type "help" inside the shell for the available commands.`,
		RunE:  run,
	}
)

func init() {
	cobra.OnInitialize(util.InitClientConfig)
	util.SetupRPCClientFlags(ReplCmd)
}

const helpText = `commands:
  tables                          list tables
  keyspaces                       list keyspaces
  get TABLE KEY [COLUMN]          read one column or the whole row
  put TABLE KEY COLUMN VALUE      write one column
  del TABLE KEY COLUMN...         delete columns
  delkey TABLE KEY                delete a whole key
  exists TABLE KEY                check whether a key exists
  count TABLE [FIRST [UPTO]]      count keys in a range
  slice TABLE [FIRST [UPTO]]      scan rows in a range
  begin [rr]                      start a transaction (rr = repeatable read)
  commit                          commit the innermost transaction
  abort                           abort the innermost transaction
  watch                           block until the next commit on the keyspace
  help                            show this help
  exit                            leave the shell`

// session holds the shell's connection and its open transaction stack.
type session struct {
	client client.IKeyspaceClient
	txns   []client.ITxnClient
}

// ops returns the operation target: the innermost transaction, or the
// autocommit client when none is open.
func (s *session) ops() client.IRowOps {
	if n := len(s.txns); n > 0 {
		return s.txns[n-1]
	}
	return s.client
}

func run(cmd *cobra.Command, _ []string) error {
	c, err := util.NewClient(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	sess := &session{client: c}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "tessera> ",
		HistoryFile:     "/tmp/tessera-repl.history",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return util.Runtime(err)
	}
	defer rl.Close()

	fmt.Printf("connected, keyspace %q (type \"help\" for commands)\n", util.GetKeyspace())

	for {
		// The prompt shows the transaction nesting depth.
		if n := len(sess.txns); n > 0 {
			rl.SetPrompt(fmt.Sprintf("tessera(txn:%d)> ", n))
		} else {
			rl.SetPrompt("tessera> ")
		}

		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return util.Runtime(err)
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "exit" || fields[0] == "quit" {
			break
		}
		if err := sess.dispatch(fields[0], fields[1:]); err != nil {
			fmt.Printf("error: %s\n", err)
		}
	}

	// Leftover transactions are aborted server-side when the connection
	// closes; abort explicitly anyway so the shell exits cleanly.
	for i := len(sess.txns) - 1; i >= 0; i-- {
		sess.txns[i].Abort()
	}
	return nil
}

func (s *session) dispatch(command string, args []string) error {
	switch command {
	case "help":
		fmt.Println(helpText)
		return nil

	case "tables":
		tables, err := s.ops().ListTables()
		if err != nil {
			return err
		}
		for _, t := range tables {
			fmt.Printf("%s\n", t)
		}
		fmt.Printf("(%d tables)\n", len(tables))
		return nil

	case "keyspaces":
		names, err := s.client.ListKeyspaces()
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return nil

	case "get":
		switch len(args) {
		case 3:
			col, found, err := s.ops().GetColumn([]byte(args[0]), []byte(args[1]), []byte(args[2]))
			if err != nil {
				return err
			}
			if !found {
				fmt.Println("(not found)")
				return nil
			}
			printColumn(col)
			return nil
		case 2:
			cols, err := s.ops().GetColumns([]byte(args[0]), []byte(args[1]), 0)
			if err != nil {
				return err
			}
			if len(cols) == 0 {
				fmt.Println("(not found)")
				return nil
			}
			for _, col := range cols {
				printColumn(col)
			}
			return nil
		default:
			return fmt.Errorf("usage: get TABLE KEY [COLUMN]")
		}

	case "put":
		if len(args) != 4 {
			return fmt.Errorf("usage: put TABLE KEY COLUMN VALUE")
		}
		return s.ops().PutColumns([]byte(args[0]), []byte(args[1]), []common.ColumnData{
			{Name: []byte(args[2]), Value: []byte(args[3]), Timestamp: -1},
		})

	case "del":
		if len(args) < 3 {
			return fmt.Errorf("usage: del TABLE KEY COLUMN...")
		}
		names := make([][]byte, 0, len(args)-2)
		for _, n := range args[2:] {
			names = append(names, []byte(n))
		}
		return s.ops().DeleteColumns([]byte(args[0]), []byte(args[1]), names)

	case "delkey":
		if len(args) != 2 {
			return fmt.Errorf("usage: delkey TABLE KEY")
		}
		return s.ops().DeleteKey([]byte(args[0]), []byte(args[1]))

	case "exists":
		if len(args) != 2 {
			return fmt.Errorf("usage: exists TABLE KEY")
		}
		found, err := s.ops().Exists([]byte(args[0]), []byte(args[1]))
		if err != nil {
			return err
		}
		fmt.Printf("%t\n", found)
		return nil

	case "count":
		if len(args) < 1 || len(args) > 3 {
			return fmt.Errorf("usage: count TABLE [FIRST [UPTO]]")
		}
		n, err := s.ops().CountKeys([]byte(args[0]), keyRange(args[1:]))
		if err != nil {
			return err
		}
		fmt.Println(n)
		return nil

	case "slice":
		if len(args) < 1 || len(args) > 3 {
			return fmt.Errorf("usage: slice TABLE [FIRST [UPTO]]")
		}
		_, rows, err := s.ops().GetSlice([]byte(args[0]), client.SliceQuery{
			Keys:     keyRange(args[1:]),
			ColKind:  common.ColAll,
			MaxKeys:  100,
			DecodeTs: true,
		})
		if err != nil {
			return err
		}
		for _, row := range rows {
			fmt.Printf("%s:\n", row.Key)
			for _, col := range row.Columns {
				fmt.Printf("  ")
				printColumn(col)
			}
		}
		fmt.Printf("(%d keys)\n", len(rows))
		return nil

	case "begin":
		isolation := client.IsolationReadCommitted
		if len(args) == 1 && args[0] == "rr" {
			isolation = client.IsolationRepeatableRead
		}
		var txn client.ITxnClient
		var err error
		if n := len(s.txns); n > 0 {
			txn, err = s.txns[n-1].Nest()
		} else {
			txn, err = s.client.Begin(isolation)
		}
		if err != nil {
			return err
		}
		s.txns = append(s.txns, txn)
		return nil

	case "commit":
		if len(s.txns) == 0 {
			return fmt.Errorf("no open transaction")
		}
		txn := s.txns[len(s.txns)-1]
		s.txns = s.txns[:len(s.txns)-1]
		return txn.Commit()

	case "abort":
		if len(s.txns) == 0 {
			return fmt.Errorf("no open transaction")
		}
		txn := s.txns[len(s.txns)-1]
		s.txns = s.txns[:len(s.txns)-1]
		return txn.Abort()

	case "watch":
		fmt.Println("waiting for the next commit...")
		if err := s.client.AwaitCommit(); err != nil {
			return err
		}
		fmt.Println("commit observed")
		return nil

	default:
		return fmt.Errorf("unknown command %q (try \"help\")", command)
	}
}

// keyRange parses the optional FIRST and UPTO arguments of count and slice.
func keyRange(args []string) client.KeySelector {
	var sel client.KeySelector
	if len(args) > 0 {
		sel.First = []byte(args[0])
	}
	if len(args) > 1 {
		sel.UpTo = []byte(args[1])
	}
	return sel
}

func printColumn(col common.ColumnData) {
	if col.Timestamp > 0 {
		fmt.Printf("%s = %s (ts %d)\n", col.Name, col.Value, col.Timestamp)
	} else {
		fmt.Printf("%s = %s\n", col.Name, col.Value)
	}
}
