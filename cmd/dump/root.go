package dump

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tessera-db/tessera/cmd/util"
	"github.com/tessera-db/tessera/rpc/client"
)

var (
	// DumpCmd streams a keyspace into a local backup file
	DumpCmd = &cobra.Command{
		Use:   "dump [file]",
		Short: "Dump a keyspace to a backup file",
		Long:  `Dump streams the content of a keyspace into a local file. The stream is resumable: if a dump is interrupted, the position is saved next to the output file and a rerun with --resume continues where the previous attempt stopped.`,
		Args:  cobra.ExactArgs(1),
		RunE:  run,
	}
)

func init() {
	cobra.OnInitialize(util.InitClientConfig)
	util.SetupRPCClientFlags(DumpCmd)

	key := "resume"
	DumpCmd.Flags().Bool(key, false, util.WrapString("Resume an interrupted dump using the saved cursor file"))
}

// cursorPath is where the resume position of an interrupted dump lives.
func cursorPath(file string) string {
	return file + ".cursor"
}

func run(cmd *cobra.Command, args []string) error {
	file := args[0]

	c, err := util.NewClient(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	// Load the resume cursor, if any.
	var cursor []byte
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if viper.GetBool("resume") {
		cursor, err = os.ReadFile(cursorPath(file))
		if err != nil {
			return util.Runtime(fmt.Errorf("no resumable dump: %w", err))
		}
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}

	out, err := os.OpenFile(file, flags, 0o644)
	if err != nil {
		return util.Runtime(err)
	}
	defer out.Close()
	w := bufio.NewWriter(out)

	// A repeatable-read transaction keeps the dump consistent across
	// chunks. A resumed dump observes a newer snapshot; see the Load
	// documentation for the consistency caveat.
	txn, err := c.Begin(client.IsolationRepeatableRead)
	if err != nil {
		return util.Runtime(err)
	}
	defer txn.Abort()

	chunks := 0
	var bytes uint64
	for {
		chunk, next, err := txn.Dump(cursor)
		if err != nil {
			return util.Runtime(saveCursor(file, cursor, err))
		}
		if len(chunk) > 0 {
			if err := writeChunk(w, chunk); err != nil {
				return util.Runtime(saveCursor(file, cursor, err))
			}
			chunks++
			bytes += uint64(len(chunk))
		}
		if next == nil {
			break
		}
		cursor = next
	}

	if err := w.Flush(); err != nil {
		return util.Runtime(saveCursor(file, cursor, err))
	}
	os.Remove(cursorPath(file))

	fmt.Printf("dumped %d chunks (%d bytes) to %s\n", chunks, bytes, file)
	return nil
}

// writeChunk frames one chunk as u32 length plus payload.
func writeChunk(w *bufio.Writer, chunk []byte) error {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(chunk)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(chunk)
	return err
}

// saveCursor persists the resume position next to the output file.
func saveCursor(file string, cursor []byte, cause error) error {
	if len(cursor) == 0 {
		return cause
	}
	if err := os.WriteFile(cursorPath(file), cursor, 0o644); err != nil {
		return fmt.Errorf("%w (saving resume cursor also failed: %v)", cause, err)
	}
	return fmt.Errorf("%w (resume with --resume)", cause)
}
