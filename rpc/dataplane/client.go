package dataplane

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"net"

	"github.com/tessera-db/tessera/lib/replication"
	"github.com/tessera-db/tessera/rpc/common"
)

// --------------------------------------------------------------------------
// Client
// --------------------------------------------------------------------------

// dial opens a data-plane connection and completes the handshake.
func dial(endpoint string) (net.Conn, error) {
	conn, err := net.Dial("tcp", endpoint)
	if err != nil {
		return nil, err
	}
	if err := writeVersion(conn, localVersion()); err != nil {
		conn.Close()
		return nil, err
	}
	peer, err := readVersion(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := checkVersion(peer); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// codeError maps a non-OK response code to a typed error.
func codeError(code uint32) error {
	switch code {
	case CodeOK:
		return nil
	case CodeUnknownDump:
		return common.NewError(common.EKStorage, "unknown dump")
	case CodeUnknownFile:
		return common.NewError(common.EKStorage, "unknown file")
	default:
		return common.NewError(common.EKStorage, fmt.Sprintf("data-plane error code %d", code))
	}
}

// ListFiles returns the file names of a dump snapshot.
func ListFiles(endpoint string, dumpID uint64) ([]string, error) {
	conn, err := dial(endpoint)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := writeGetFileRequest(conn, dumpID, 0, ""); err != nil {
		return nil, err
	}
	code, err := readCheckedUint32(conn)
	if err != nil {
		return nil, err
	}
	if code != CodeOK {
		return nil, codeError(code)
	}

	var countBuf [4]byte
	if _, err := io.ReadFull(conn, countBuf[:]); err != nil {
		return nil, err
	}
	count := binary.LittleEndian.Uint32(countBuf[:])
	names := make([]string, 0, count)
	for i := uint32(0); i < count; i++ {
		var lenBuf [4]byte
		if _, err := io.ReadFull(conn, lenBuf[:]); err != nil {
			return nil, err
		}
		name := make([]byte, binary.LittleEndian.Uint32(lenBuf[:]))
		if _, err := io.ReadFull(conn, name); err != nil {
			return nil, err
		}
		names = append(names, string(name))
	}
	return names, nil
}

// FetchFile streams one dump file, starting at offset, into w. It returns
// the number of bytes written, so a caller can resume after a failure by
// passing the bytes already on disk as the new offset.
func FetchFile(endpoint string, dumpID, offset uint64, name string, w io.Writer) (uint64, error) {
	conn, err := dial(endpoint)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	if err := writeGetFileRequest(conn, dumpID, offset, name); err != nil {
		return 0, err
	}
	code, err := readCheckedUint32(conn)
	if err != nil {
		return 0, err
	}
	if code != CodeOK {
		return 0, codeError(code)
	}

	var sizeBuf [8]byte
	if _, err := io.ReadFull(conn, sizeBuf[:]); err != nil {
		return 0, err
	}
	remaining := binary.LittleEndian.Uint64(sizeBuf[:])

	crc := crc32.New(crcTable)
	n, err := io.Copy(io.MultiWriter(w, crc), io.LimitReader(conn, int64(remaining)))
	if err != nil {
		return uint64(n), err
	}
	if uint64(n) != remaining {
		return uint64(n), common.NewError(common.EKInconsistentLength,
			fmt.Sprintf("expected %d file bytes, got %d", remaining, n))
	}

	var crcBuf [4]byte
	if _, err := io.ReadFull(conn, crcBuf[:]); err != nil {
		return uint64(n), err
	}
	if want := binary.LittleEndian.Uint32(crcBuf[:]); crc.Sum32() != want {
		return uint64(n), common.NewError(common.EKCorruptedFrame,
			fmt.Sprintf("file checksum mismatch: got %08x, want %08x", crc.Sum32(), want))
	}
	return uint64(n), nil
}

func writeGetFileRequest(conn net.Conn, dumpID, offset uint64, name string) error {
	buf := binary.LittleEndian.AppendUint32(nil, OpGetFile)
	buf = binary.LittleEndian.AppendUint64(buf, dumpID)
	buf = binary.LittleEndian.AppendUint64(buf, offset)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(name)))
	buf = append(buf, name...)
	_, err := conn.Write(buf)
	return err
}

// --------------------------------------------------------------------------
// Update Stream
// --------------------------------------------------------------------------

// UpdateStream is a consumer-side handle on a live update subscription.
type UpdateStream struct {
	conn net.Conn
}

// StreamUpdates subscribes to the server's commit stream. dumpID names the
// snapshot the consumer bootstrapped from, or 0 for updates only.
func StreamUpdates(endpoint string, dumpID uint64) (*UpdateStream, error) {
	conn, err := dial(endpoint)
	if err != nil {
		return nil, err
	}

	buf := binary.LittleEndian.AppendUint32(nil, OpGetUpdates)
	buf = binary.LittleEndian.AppendUint64(buf, dumpID)
	if _, err := conn.Write(buf); err != nil {
		conn.Close()
		return nil, err
	}
	code, err := readCheckedUint32(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if code != CodeOK {
		conn.Close()
		return nil, codeError(code)
	}
	return &UpdateStream{conn: conn}, nil
}

// Next blocks for the next update payload. Checksum failures are answered
// with a retry request transparently; any other error ends the stream.
func (s *UpdateStream) Next() ([]byte, error) {
	for {
		payload, err := replication.ReadUpdate(s.conn)
		if err == nil {
			if _, err := s.conn.Write([]byte{replication.AckOK}); err != nil {
				return nil, err
			}
			return payload, nil
		}
		if errors.Is(err, common.NewError(common.EKCorruptedFrame, "")) {
			Logger.Warningf("corrupt update, requesting resend: %s", err)
			if _, werr := s.conn.Write([]byte{replication.AckRetry}); werr != nil {
				return nil, werr
			}
			continue
		}
		return nil, err
	}
}

// Close ends the subscription.
func (s *UpdateStream) Close() error {
	return s.conn.Close()
}
