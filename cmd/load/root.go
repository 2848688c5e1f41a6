package load

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tessera-db/tessera/cmd/util"
	"github.com/tessera-db/tessera/rpc/client"
)

var (
	// LoadCmd restores a backup file into a keyspace
	LoadCmd = &cobra.Command{
		Use:   "load [file]",
		Short: "Load a backup file into a keyspace",
		Long:  `Load reads a backup file produced by dump and writes its records into the target keyspace. All chunks are applied in one transaction, so a failed load leaves the keyspace untouched. The result only matches the source byte for byte if the dump itself was taken from a single consistent snapshot.`,
		Args:  cobra.ExactArgs(1),
		RunE:  run,
	}
)

func init() {
	cobra.OnInitialize(util.InitClientConfig)
	util.SetupRPCClientFlags(LoadCmd)
}

func run(cmd *cobra.Command, args []string) error {
	file := args[0]

	c, err := util.NewClient(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	in, err := os.Open(file)
	if err != nil {
		return util.Runtime(err)
	}
	defer in.Close()
	r := bufio.NewReader(in)

	txn, err := c.Begin(client.IsolationReadCommitted)
	if err != nil {
		return util.Runtime(err)
	}
	defer txn.Abort()

	chunks := 0
	var bytes uint64
	for {
		chunk, err := readChunk(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			return util.Runtime(fmt.Errorf("chunk %d: %w", chunks, err))
		}
		if err := txn.Load(chunk); err != nil {
			return util.Runtime(fmt.Errorf("chunk %d: %w", chunks, err))
		}
		chunks++
		bytes += uint64(len(chunk))
	}

	if err := txn.Commit(); err != nil {
		return util.Runtime(err)
	}

	fmt.Printf("loaded %d chunks (%d bytes) from %s\n", chunks, bytes, file)
	return nil
}

// readChunk reads one u32-length-framed chunk. io.EOF at a chunk boundary
// signals the end of the stream.
func readChunk(r *bufio.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("truncated chunk header")
		}
		return nil, err
	}
	// Chunks normally stay under backup.MaxChunk, but a single oversized
	// record may exceed it.
	size := binary.LittleEndian.Uint32(lenBuf[:])
	if size > 64<<20 {
		return nil, fmt.Errorf("chunk of %d bytes exceeds limit", size)
	}
	chunk := make([]byte, size)
	if _, err := io.ReadFull(r, chunk); err != nil {
		return nil, fmt.Errorf("truncated chunk: %w", err)
	}
	return chunk, nil
}
