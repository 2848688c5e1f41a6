package dataplane

import (
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"
	"net"

	"github.com/tessera-db/tessera/lib/replication"
	"github.com/tessera-db/tessera/rpc/common"
)

var Logger = common.GetLogger("transport")

// --------------------------------------------------------------------------
// Server
// --------------------------------------------------------------------------

// Server accepts data-plane connections and serves dump files and update
// streams.
type Server struct {
	hub   *replication.Hub
	dumps *DumpRegistry
}

func NewServer(hub *replication.Hub, dumps *DumpRegistry) *Server {
	return &Server{hub: hub, dumps: dumps}
}

// Listen serves connections on endpoint until the context is cancelled.
func (s *Server) Listen(ctx context.Context, endpoint string) error {
	ln, err := net.Listen("tcp", endpoint)
	if err != nil {
		return err
	}
	Logger.Infof("data plane listening on %s", endpoint)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go s.handleConnection(ctx, conn)
	}
}

// handleConnection performs the handshake and dispatches the connection's
// single operation.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	// Handshake: the client speaks first, we answer with our own tuple
	// either way so the client can report the mismatch too.
	peer, err := readVersion(conn)
	if err != nil {
		Logger.Debugf("handshake read failed: %s", err)
		return
	}
	if err := writeVersion(conn, localVersion()); err != nil {
		return
	}
	if err := checkVersion(peer); err != nil {
		Logger.Warningf("rejected connection from %s: %s", conn.RemoteAddr(), err)
		return
	}

	var opBuf [4]byte
	if _, err := io.ReadFull(conn, opBuf[:]); err != nil {
		return
	}

	switch op := binary.LittleEndian.Uint32(opBuf[:]); op {
	case OpGetFile:
		err = s.handleGetFile(conn)
	case OpGetUpdates:
		err = s.handleGetUpdates(ctx, conn)
	default:
		Logger.Warningf("unknown data-plane opcode %d from %s", op, conn.RemoteAddr())
		err = writeCheckedUint32(conn, CodeOther)
	}
	if err != nil && ctx.Err() == nil {
		Logger.Debugf("data-plane connection from %s ended: %s", conn.RemoteAddr(), err)
	}
}

// --------------------------------------------------------------------------
// GetFile
// --------------------------------------------------------------------------

// handleGetFile serves one dump file (or, for an empty name, the file
// listing of the dump).
//
// Request fields: u64 dumpID ∥ u64 offset ∥ u32 nameLen ∥ name.
// File response: CodeOK ∥ u64 remaining ∥ bytes ∥ u32 crc32c(bytes).
// Listing response: CodeOK ∥ u32 count ∥ (u32 len ∥ name)*.
func (s *Server) handleGetFile(conn net.Conn) error {
	var head [20]byte
	if _, err := io.ReadFull(conn, head[:]); err != nil {
		return err
	}
	dumpID := binary.LittleEndian.Uint64(head[0:])
	offset := binary.LittleEndian.Uint64(head[8:])
	nameLen := binary.LittleEndian.Uint32(head[16:])
	if nameLen > 4096 {
		return writeCheckedUint32(conn, CodeOther)
	}
	name := make([]byte, nameLen)
	if _, err := io.ReadFull(conn, name); err != nil {
		return err
	}

	if len(name) == 0 {
		return s.sendListing(conn, dumpID)
	}
	return s.sendFile(conn, dumpID, offset, string(name))
}

func (s *Server) sendListing(conn net.Conn, dumpID uint64) error {
	names, err := s.dumps.Files(dumpID)
	if err != nil {
		return writeCheckedUint32(conn, CodeUnknownDump)
	}
	if err := writeCheckedUint32(conn, CodeOK); err != nil {
		return err
	}
	buf := binary.LittleEndian.AppendUint32(nil, uint32(len(names)))
	for _, n := range names {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(n)))
		buf = append(buf, n...)
	}
	_, err = conn.Write(buf)
	return err
}

func (s *Server) sendFile(conn net.Conn, dumpID, offset uint64, name string) error {
	f, err := s.dumps.open(dumpID, name)
	switch {
	case errors.Is(err, errUnknownDump):
		return writeCheckedUint32(conn, CodeUnknownDump)
	case errors.Is(err, errUnknownFile):
		return writeCheckedUint32(conn, CodeUnknownFile)
	case err != nil:
		return writeCheckedUint32(conn, CodeOther)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return writeCheckedUint32(conn, CodeOther)
	}
	if offset > uint64(info.Size()) {
		return writeCheckedUint32(conn, CodeOther)
	}
	if _, err := f.Seek(int64(offset), io.SeekStart); err != nil {
		return writeCheckedUint32(conn, CodeOther)
	}
	remaining := uint64(info.Size()) - offset

	if err := writeCheckedUint32(conn, CodeOK); err != nil {
		return err
	}
	var sizeBuf [8]byte
	binary.LittleEndian.PutUint64(sizeBuf[:], remaining)
	if _, err := conn.Write(sizeBuf[:]); err != nil {
		return err
	}

	// Stream the file, checksumming as we go.
	crc := crc32.New(crcTable)
	if _, err := io.Copy(io.MultiWriter(conn, crc), io.LimitReader(f, int64(remaining))); err != nil {
		return err
	}
	var crcBuf [4]byte
	binary.LittleEndian.PutUint32(crcBuf[:], crc.Sum32())
	_, err = conn.Write(crcBuf[:])
	return err
}

// --------------------------------------------------------------------------
// GetUpdates
// --------------------------------------------------------------------------

// handleGetUpdates subscribes the connection to the live commit stream.
// dumpID names the snapshot the consumer bootstrapped from; 0 means the
// consumer only wants updates from now on.
func (s *Server) handleGetUpdates(ctx context.Context, conn net.Conn) error {
	var idBuf [8]byte
	if _, err := io.ReadFull(conn, idBuf[:]); err != nil {
		return err
	}
	dumpID := binary.LittleEndian.Uint64(idBuf[:])
	if dumpID != 0 {
		if _, ok := s.dumps.lookup(dumpID); !ok {
			return writeCheckedUint32(conn, CodeUnknownDump)
		}
	}
	if err := writeCheckedUint32(conn, CodeOK); err != nil {
		return err
	}

	Logger.Infof("update stream started for %s", conn.RemoteAddr())
	return replication.NewProducer(s.hub, conn).Run(ctx)
}
