package dataplane

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/tessera-db/tessera/rpc/common"
)

// --------------------------------------------------------------------------
// Protocol Constants
// --------------------------------------------------------------------------

// Version of the data-plane protocol. The tuple is exchanged during the
// handshake; a major mismatch aborts the connection.
const (
	VersionMajor  uint32 = 1
	VersionMinor  uint32 = 0
	VersionBugfix uint32 = 0
)

// Operation codes.
const (
	OpGetFile    uint32 = 1
	OpGetUpdates uint32 = 2
)

// Response codes.
const (
	CodeOK          uint32 = 0
	CodeOther       uint32 = 1
	CodeUnknownDump uint32 = 2
	CodeUnknownFile uint32 = 3
)

var crcTable = crc32.MakeTable(crc32.Castagnoli)

// --------------------------------------------------------------------------
// Checksummed Integers
// --------------------------------------------------------------------------

// Response codes travel as a checksummed integer so a desynchronized
// stream is detected immediately:
//
//	u32 value LE ∥ u32 crc32c(value bytes) LE

// writeCheckedUint32 writes one checksummed integer.
func writeCheckedUint32(w io.Writer, v uint32) error {
	var buf [8]byte
	binary.LittleEndian.PutUint32(buf[:4], v)
	binary.LittleEndian.PutUint32(buf[4:], crc32.Checksum(buf[:4], crcTable))
	_, err := w.Write(buf[:])
	return err
}

// readCheckedUint32 reads and validates one checksummed integer.
func readCheckedUint32(r io.Reader) (uint32, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	want := binary.LittleEndian.Uint32(buf[4:])
	if got := crc32.Checksum(buf[:4], crcTable); got != want {
		return 0, common.NewError(common.EKCorruptedFrame,
			fmt.Sprintf("checksum mismatch on response code: got %08x, want %08x", got, want))
	}
	return binary.LittleEndian.Uint32(buf[:4]), nil
}

// --------------------------------------------------------------------------
// Handshake
// --------------------------------------------------------------------------

// version is one side's protocol version tuple.
type version struct {
	Major, Minor, Bugfix uint32
}

func localVersion() version {
	return version{VersionMajor, VersionMinor, VersionBugfix}
}

func (v version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Bugfix)
}

func writeVersion(w io.Writer, v version) error {
	var buf [12]byte
	binary.LittleEndian.PutUint32(buf[0:], v.Major)
	binary.LittleEndian.PutUint32(buf[4:], v.Minor)
	binary.LittleEndian.PutUint32(buf[8:], v.Bugfix)
	_, err := w.Write(buf[:])
	return err
}

func readVersion(r io.Reader) (version, error) {
	var buf [12]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return version{}, err
	}
	return version{
		Major:  binary.LittleEndian.Uint32(buf[0:]),
		Minor:  binary.LittleEndian.Uint32(buf[4:]),
		Bugfix: binary.LittleEndian.Uint32(buf[8:]),
	}, nil
}

// checkVersion validates the peer's tuple against ours.
func checkVersion(peer version) error {
	if peer.Major != VersionMajor {
		return common.NewError(common.EKBadVersion,
			fmt.Sprintf("incompatible protocol version %s, want %d.x.x", peer, VersionMajor))
	}
	return nil
}
